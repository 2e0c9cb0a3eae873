package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/repair-service/internal/domain"
)

// RequestLister returns the current repair requests.
type RequestLister interface {
	List(ctx context.Context, filter domain.RequestFilter) []domain.RepairRequest
}

// StatusSummary counts requests per lifecycle status.
type StatusSummary map[domain.RequestStatus]int

// Summarize counts records per status. Every known status is present.
func Summarize(records []domain.RepairRequest) StatusSummary {
	summary := make(StatusSummary, len(domain.Statuses))
	for _, status := range domain.Statuses {
		summary[status] = 0
	}
	for _, r := range records {
		summary[r.Status]++
	}
	return summary
}

// SummaryWorker periodically logs how many requests sit in each status.
type SummaryWorker struct {
	lister  RequestLister
	logger  *zap.Logger
	cron    *cron.Cron
	timeout time.Duration
}

// NewSummaryWorker schedules the job on a cron expression. The worker is idle until Start.
func NewSummaryWorker(lister RequestLister, logger *zap.Logger, spec string) (*SummaryWorker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &SummaryWorker{
		lister:  lister,
		logger:  logger,
		cron:    cron.New(),
		timeout: 30 * time.Second,
	}
	if _, err := w.cron.AddFunc(spec, w.run); err != nil {
		return nil, fmt.Errorf("schedule summary %q: %w", spec, err)
	}
	return w, nil
}

// Start begins the cron scheduler in its own goroutine.
func (w *SummaryWorker) Start() {
	w.cron.Start()
	w.logger.Info("status summary worker started")
}

// Stop halts scheduling and waits for a running job to finish.
func (w *SummaryWorker) Stop() {
	<-w.cron.Stop().Done()
}

// RunOnce computes and logs a summary immediately.
func (w *SummaryWorker) RunOnce(ctx context.Context) StatusSummary {
	summary := Summarize(w.lister.List(ctx, domain.RequestFilter{}))
	fields := make([]zap.Field, 0, len(summary))
	for _, status := range domain.Statuses {
		fields = append(fields, zap.Int(string(status), summary[status]))
	}
	w.logger.Info("repair request status summary", fields...)
	return summary
}

func (w *SummaryWorker) run() {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	w.RunOnce(ctx)
}
