package notifications

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"shopflow/internal/logging"
)

// Dispatcher publishes events in the background so callers never wait on
// the notification transport.
type Dispatcher struct {
	svc     Service
	logger  *slog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewDispatcher wraps svc. A nil svc discards events.
func NewDispatcher(svc Service, logger *slog.Logger, timeout time.Duration) *Dispatcher {
	if svc == nil {
		svc = noopService{}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		svc:     svc,
		logger:  logging.NewComponentLogger(logger, "notifications"),
		timeout: timeout,
	}
}

// Publish sends event asynchronously. The request outlives ctx cancellation
// but is bounded by the dispatcher timeout.
func (d *Dispatcher) Publish(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	base := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		sendCtx, cancel := context.WithTimeout(base, d.timeout)
		defer cancel()
		if err := d.svc.Publish(sendCtx, event); err != nil {
			logging.WarnWithContext(logging.WithContext(base, d.logger), "notification failed", "notification_failed",
				logging.String("notification_type", string(event.Type)),
				logging.JobID(event.JobID),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic and network reachability"),
				logging.String(logging.FieldImpact, "event was not delivered; the transition itself succeeded"),
			)
		}
	}()
}

// Wait blocks until every in-flight publish has finished.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}
