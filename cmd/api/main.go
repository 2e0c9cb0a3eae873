package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/repair-service/internal/api/http"
	"github.com/spec-kit/repair-service/internal/api/http/handlers"
	"github.com/spec-kit/repair-service/internal/auth"
	"github.com/spec-kit/repair-service/internal/backend/supabase"
	"github.com/spec-kit/repair-service/internal/config"
	"github.com/spec-kit/repair-service/internal/events"
	"github.com/spec-kit/repair-service/internal/observability"
	"github.com/spec-kit/repair-service/internal/persistence"
	"github.com/spec-kit/repair-service/internal/repository"
	"github.com/spec-kit/repair-service/internal/service"
	"github.com/spec-kit/repair-service/internal/store"
	"github.com/spec-kit/repair-service/internal/worker"
)

// backendSet is the adapter bundle chosen by BACKEND_DRIVER.
type backendSet struct {
	records  repository.RepairRequestBackend
	roles    repository.RoleRepository
	provider auth.Provider
	verifier handlers.MagicLinkVerifier
	storage  service.ObjectStorage
	checks   map[string]handlers.Pinger
	closers  []func()
}

func (b *backendSet) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	backends := buildBackends(ctx, cfg, logger, redis)
	defer backends.Close()

	var revocations auth.RevocationStore = auth.NewMemoryRevocations()
	if client := redis.Handle(); client != nil {
		revocations = auth.NewRedisRevocations(client)
		backends.checks["redis"] = redis
	}

	resolver := auth.NewResolver(auth.ResolverDependencies{
		Provider:    backends.provider,
		Roles:       backends.roles,
		Revocations: revocations,
		Logger:      logger,
		Timeout:     cfg.Auth.IdentityTimeout(),
	})

	dispatcher := events.NewInMemoryDispatcher()
	notifications := worker.StartNotificationWorker(dispatcher, service.NewNotificationService(dispatcher, logger, cfg.Notification), logger)
	defer notifications.Stop()

	repairStore := store.New(backends.records, logger)
	repairService := service.NewRepairService(service.RepairDependencies{
		Store:      repairStore,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	seedService := service.NewSeedService(repairService, logger)
	if cfg.Backend.Driver == config.DriverMemory {
		if _, err := seedService.SeedIfEmpty(ctx); err != nil {
			logger.Warn("demo seed failed", zap.Error(err))
		}
	}
	attachmentService := service.NewAttachmentService(backends.storage, cfg.Attachments.Bucket, int64(cfg.Attachments.MaxBytes), logger)

	summary, err := worker.NewSummaryWorker(repairService, logger, cfg.Summary.Cron)
	if err != nil {
		logger.Fatal("failed to schedule status summary", zap.Error(err))
	}
	summary.Start()
	defer summary.Stop()

	metrics := observability.NewMetrics()
	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: httptransport.ErrorHandler(logger, metrics),
		BodyLimit:    cfg.Attachments.MaxBytes + 1<<20,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:      handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, backends.checks),
		Auth:        handlers.NewAuthHandler(resolver, backends.verifier),
		Requests:    handlers.NewRequestsHandler(repairService),
		Attachments: handlers.NewAttachmentsHandler(attachmentService),
		Database:    handlers.NewDatabaseHandler(repairService, logger),
		Admin:       handlers.NewAdminHandler(seedService, metrics),
		Resolver:    resolver,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
	resolver.Wait()
}

// buildBackends selects adapters for the configured driver. A driver
// missing its settings degrades to unconfigured adapters.
func buildBackends(ctx context.Context, cfg *config.Config, logger *zap.Logger, redis *persistence.Redis) *backendSet {
	set := &backendSet{checks: map[string]handlers.Pinger{}}

	if !cfg.Backend.Configured(cfg.Postgres) {
		logger.Warn("backend not configured; running read-only with no identity provider",
			zap.String("driver", cfg.Backend.Driver))
		set.records = repository.Unconfigured{}
		set.roles = repository.Unconfigured{}
		set.provider = auth.Unconfigured{}
		set.storage = service.UnconfiguredStorage{}
		return set
	}

	var links auth.MagicLinkStore = auth.NewMemoryMagicLinks()
	if client := redis.Handle(); client != nil {
		links = auth.NewRedisMagicLinks(client)
	}
	local := func(users repository.UserRepository) *auth.LocalProvider {
		return auth.NewLocalProvider(cfg.Auth, auth.LocalDependencies{
			Users:  users,
			Links:  links,
			Mailer: auth.LogMailer{Logger: logger, From: cfg.Notification.EmailFrom},
			Logger: logger,
		})
	}

	switch cfg.Backend.Driver {
	case config.DriverSupabase:
		client := supabase.NewClient(cfg.Backend, logger)
		set.records = supabase.NewRecords(client)
		set.roles = supabase.NewRoles(client)
		set.provider = supabase.NewIdentity(client, cfg.Auth.MagicLinkRedirectURL)
		set.storage = supabase.NewStorage(client)
		set.checks["supabase"] = client
		logger.Info("using supabase backend", zap.String("url", cfg.Backend.URL))

	case config.DriverPostgres:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			logger.Fatal("failed to connect postgres", zap.Error(err))
		}
		set.closers = append(set.closers, pg.Close)
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		pool := pg.PoolHandle()
		provider := local(repository.NewUserRepository(pool))
		set.records = repository.NewRepairRequestRepository(pool)
		set.roles = repository.NewRoleRepository(pool)
		set.provider = provider
		set.verifier = provider
		set.storage = service.UnconfiguredStorage{}
		set.checks["postgres"] = pg
		logger.Info("using postgres backend")

	default:
		provider := local(repository.NewMemoryUsers(uuid.NewString))
		set.records = repository.NewMemoryBackend()
		set.roles = repository.NewMemoryRoles(nil)
		set.provider = provider
		set.verifier = provider
		set.storage = service.UnconfiguredStorage{}
		logger.Warn("using in-memory backend; data is lost on restart")
	}
	return set
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
