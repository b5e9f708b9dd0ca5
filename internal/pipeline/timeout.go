package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/yourmoment/core/internal/broker"
	"github.com/yourmoment/core/internal/models"
	"github.com/yourmoment/core/internal/notify"
	"github.com/yourmoment/core/internal/store"
	"github.com/yourmoment/core/internal/telemetry"
)

// TimeoutEnforcer runs every T_timeout seconds and stops
// every RUNNING process whose expires_at has passed by revoking its
// in-flight stage tasks and clearing them so the coordinator never revives
// it.
type TimeoutEnforcer struct {
	store      *store.Store
	broker     broker.Broker
	dispatcher *Dispatcher
	notifier   *notify.Notifier
	logger     *slog.Logger
}

// NewTimeoutEnforcer builds a TimeoutEnforcer. dispatcher may be nil;
// notifier may be nil (a disabled notifier).
func NewTimeoutEnforcer(s *store.Store, b broker.Broker, dispatcher *Dispatcher, notifier *notify.Notifier) *TimeoutEnforcer {
	return &TimeoutEnforcer{
		store:      s,
		broker:     b,
		dispatcher: dispatcher,
		notifier:   notifier,
		logger:     slog.Default().With("component", "timeout_enforcer"),
	}
}

// Tick runs one enforcement pass. A failure stopping one process does not
// prevent the pass from evaluating the rest.
func (e *TimeoutEnforcer) Tick(ctx context.Context) error {
	now := time.Now()
	expired, err := e.store.ListExpiredRunning(ctx, now)
	if err != nil {
		return err
	}
	for i := range expired {
		e.stop(ctx, &expired[i], now)
	}
	return nil
}

func (e *TimeoutEnforcer) stop(ctx context.Context, p *models.MonitoringProcess, now time.Time) {
	log := e.logger.With("process_id", p.ID)

	for _, stage := range models.Stages() {
		taskID := p.StageTaskIDs.Get(stage)
		if taskID == nil {
			continue
		}
		if err := e.broker.Revoke(ctx, *taskID); err != nil {
			log.Error("revoke stage task failed", "stage", stage, "error", err)
		}
		if e.dispatcher != nil {
			e.dispatcher.Cancel(*taskID)
		}
		telemetry.TimeoutsEnforcedTotal.WithLabelValues(string(stage)).Inc()
	}

	if err := e.store.StopProcess(ctx, p.ID, now, models.StopReasonTimeout); err != nil {
		log.Error("stop process failed", "error", err)
		return
	}

	e.notifier.NotifyRepeatedTimeout(ctx, notify.RepeatedTimeoutInput{
		ProcessID:    p.ID,
		Name:         p.Name,
		TimeoutCount: 1,
	})
}
