package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/repair-service/internal/events"
	"github.com/spec-kit/repair-service/internal/service"
)

const defaultQueueSize = 256

// Notifier delivers one event.
type Notifier interface {
	Handle(ctx context.Context, event events.Event) error
}

// NotificationWorker moves notification delivery off the request path.
// Events are queued by dispatcher handlers and delivered in order by a
// single goroutine. A full queue drops the event with a warning.
type NotificationWorker struct {
	notifier Notifier
	logger   *zap.Logger
	timeout  time.Duration

	mu     sync.Mutex
	closed bool
	queue  chan events.Event
	done   chan struct{}
}

// NewNotificationWorker builds an idle worker. size <= 0 selects the default queue size.
func NewNotificationWorker(notifier Notifier, logger *zap.Logger, size int) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if size <= 0 {
		size = defaultQueueSize
	}
	return &NotificationWorker{
		notifier: notifier,
		logger:   logger,
		timeout:  10 * time.Second,
		queue:    make(chan events.Event, size),
		done:     make(chan struct{}),
	}
}

// StartNotificationWorker subscribes the worker to every request event
// and starts delivery.
func StartNotificationWorker(dispatcher events.Dispatcher, notificationService *service.NotificationService, logger *zap.Logger) *NotificationWorker {
	w := NewNotificationWorker(notificationService, logger, 0)
	w.Subscribe(dispatcher)
	w.Start()
	return w
}

// Subscribe registers the enqueue handler for request events.
func (w *NotificationWorker) Subscribe(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	for _, eventType := range []events.EventType{
		events.EventRequestCreated,
		events.EventRequestStatusChanged,
		events.EventRequestNoteUpdated,
	} {
		dispatcher.Subscribe(eventType, w.enqueue)
	}
}

func (w *NotificationWorker) enqueue(_ context.Context, event events.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	select {
	case w.queue <- event:
	default:
		w.logger.Warn("notification queue full; dropping event",
			zap.String("event_type", string(event.Type)),
			zap.String("request_id", event.RequestID))
	}
	return nil
}

// Start launches the delivery goroutine.
func (w *NotificationWorker) Start() {
	go func() {
		defer close(w.done)
		for event := range w.queue {
			w.deliver(event)
		}
	}()
}

func (w *NotificationWorker) deliver(event events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	if err := w.notifier.Handle(ctx, event); err != nil {
		w.logger.Warn("notification delivery failed",
			zap.String("event_type", string(event.Type)),
			zap.String("request_id", event.RequestID),
			zap.Error(err))
	}
}

// Stop rejects new events, delivers those already queued and waits.
func (w *NotificationWorker) Stop() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()
	<-w.done
}
