// repairwatch is a read-only terminal view of repair requests. It polls
// the service's listing endpoint and redraws the table whenever a new
// snapshot arrives.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/spec-kit/repair-service/internal/config"
	"github.com/spec-kit/repair-service/internal/domain"
	"github.com/spec-kit/repair-service/internal/observability"
	"github.com/spec-kit/repair-service/internal/poller"
)

const clearScreen = "\033[H\033[2J"

type options struct {
	baseURL  string
	interval time.Duration
	status   string
	search   string
	token    string
	logLevel string
	width    int
	once     bool
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var opts options
	flagSet := pflag.NewFlagSet("repairwatch", pflag.ContinueOnError)
	flagSet.StringVar(&opts.baseURL, "url", "http://localhost:8080", "repair service base URL")
	flagSet.DurationVar(&opts.interval, "interval", poller.DefaultInterval, "polling interval")
	flagSet.StringVar(&opts.status, "status", "", "only show requests in this status")
	flagSet.StringVarP(&opts.search, "query", "q", "", "filter by id or email substring")
	flagSet.StringVar(&opts.token, "token", os.Getenv("REPAIRWATCH_TOKEN"), "bearer token (default $REPAIRWATCH_TOKEN)")
	flagSet.StringVar(&opts.logLevel, "log-level", "warn", "log level written to stderr")
	flagSet.IntVar(&opts.width, "width", 120, "table width in columns")
	flagSet.BoolVar(&opts.once, "once", false, "print the first snapshot and exit")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}

	filter := domain.RequestFilter{Search: opts.search}
	if opts.status != "" {
		status, ok := domain.ParseStatus(opts.status)
		if !ok {
			return fmt.Errorf("invalid --status %q", opts.status)
		}
		filter.Status = status
	}

	logger, err := observability.NewLogger(config.LoggerConfig{Level: opts.logLevel, Format: "console", Output: "stderr"})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	token := opts.token
	fetcher := poller.NewHTTPFetcher(opts.baseURL, filter, func() string { return token })
	feed := poller.NewPollingFeed(fetcher, opts.interval, logger)
	view := poller.Open(ctx, feed, domain.RequestFilter{})
	defer view.Close()

	go func() {
		<-ctx.Done()
		view.Close()
	}()

	logger.Info("watching repair requests",
		zap.String("url", opts.baseURL),
		zap.Duration("interval", opts.interval),
		zap.String("status", string(filter.Status)))

	for range view.Updates() {
		records := view.Snapshot()
		if !opts.once {
			fmt.Print(clearScreen)
		}
		fmt.Println(renderHeader(opts.baseURL, filter, len(records), time.Now()))
		fmt.Println(renderTable(records, opts.width))
		if opts.once {
			return nil
		}
	}
	return nil
}
