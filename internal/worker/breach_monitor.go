package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/maintenance-service/internal/domain"
	"github.com/spec-kit/maintenance-service/internal/events"
	"github.com/spec-kit/maintenance-service/internal/observability"
	"github.com/spec-kit/maintenance-service/internal/repository"
)

// BreachMonitor periodically sweeps open requests and raises one breach event
// per crossed deadline. The repository's compare-and-set on the breach flag
// is the source of truth for "already counted": a sweep that loses the flip
// emits nothing, so restarts and overlapping sweeps cannot double-count.
// Event delivery itself is at-least-once.
type BreachMonitor struct {
	requests   repository.RequestRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics

	interval  time.Duration
	batchSize int
	now       func() time.Time
}

// BreachMonitorOptions configures the monitor.
type BreachMonitorOptions struct {
	Interval  time.Duration
	BatchSize int
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// NewBreachMonitor builds the monitor.
func NewBreachMonitor(requests repository.RequestRepository, dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics, opts BreachMonitorOptions) *BreachMonitor {
	interval := opts.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 500
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &BreachMonitor{
		requests:   requests,
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
		interval:   interval,
		batchSize:  batchSize,
		now:        now,
	}
}

// Run sweeps at the configured interval until ctx is cancelled.
func (m *BreachMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info("breach monitor started", zap.Duration("interval", m.interval))
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("breach monitor stopped")
			return
		case <-ticker.C:
			emitted := m.Sweep(ctx)
			if emitted > 0 {
				m.logger.Info("sweep raised breaches", zap.Int("count", emitted))
			}
		}
	}
}

// Sweep performs one pass over open requests and returns how many breach
// events were emitted. One request failing never aborts the rest; the failed
// request is simply retried on the next cycle.
func (m *BreachMonitor) Sweep(ctx context.Context) int {
	open, err := m.requests.ListOpen(ctx, m.batchSize)
	if err != nil {
		m.logger.Error("sweep: listing open requests failed", zap.Error(err))
		m.metrics.RecordSweepFailure()
		return 0
	}

	now := m.now()
	emitted := 0
	for i := range open {
		request := &open[i]
		n, err := m.checkRequest(ctx, request, now)
		if err != nil {
			m.logger.Error("sweep: request check failed",
				zap.String("request_id", request.ID), zap.Error(err))
			m.metrics.RecordSweepFailure()
			continue
		}
		emitted += n
	}
	m.metrics.RecordSweep()
	return emitted
}

func (m *BreachMonitor) checkRequest(ctx context.Context, request *domain.MaintenanceRequest, now time.Time) (int, error) {
	emitted := 0

	if request.ResponseDueAt != nil && !request.ResponseBreachRaised && now.After(*request.ResponseDueAt) {
		won, err := m.requests.MarkBreachRaised(ctx, request.ID, repository.BreachResponse)
		if err != nil {
			return emitted, err
		}
		if won {
			m.emit(ctx, request, events.BreachKindResponse, *request.ResponseDueAt, now)
			emitted++
		}
	}

	if !request.ResolutionBreachRaised && now.After(request.ResolutionDueAt) {
		won, err := m.requests.MarkBreachRaised(ctx, request.ID, repository.BreachResolution)
		if err != nil {
			return emitted, err
		}
		if won {
			m.emit(ctx, request, events.BreachKindResolution, request.ResolutionDueAt, now)
			emitted++
		}
	}

	return emitted, nil
}

func (m *BreachMonitor) emit(ctx context.Context, request *domain.MaintenanceRequest, kind events.BreachKind, dueAt, now time.Time) {
	m.metrics.RecordBreach(string(kind))
	if m.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventSLABreached,
		RequestID: request.ID,
		Actor:     events.Actor{Type: domain.ActorTypeSystem},
		Timestamp: now,
		Payload: events.SLABreachedPayload{
			Kind:     kind,
			Priority: request.Priority,
			State:    request.State,
			DueAt:    dueAt,
			Overdue:  now.Sub(dueAt),
		},
	}
	if err := m.dispatcher.Publish(ctx, event); err != nil {
		// The flag already flipped; delivery retries are the consumer's
		// problem under at-least-once semantics.
		m.logger.Warn("breach event publish failed",
			zap.String("request_id", request.ID), zap.Error(err))
	}
}
