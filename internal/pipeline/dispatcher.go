package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/yourmoment/core/internal/broker"
	"github.com/yourmoment/core/internal/models"
	"github.com/yourmoment/core/internal/telemetry"
)

// StageRunner is a single-pass, serial-iteration stage worker: discovery,
// preparation, generation, or posting. Run is expected to return quickly
// once every eligible WorkRecord has been visited once.
type StageRunner interface {
	Run(ctx context.Context, processID string) error
}

// Dispatcher binds a dispatched broker task to the StageRunner that
// implements its stage, reporting the outcome back to the broker and
// tracking run duration/error telemetry. It also holds the one piece of
// in-process cooperative-cancellation state this core needs: a registry of
// cancel funcs so TimeoutEnforcer's revoke can interrupt a stage run at its
// next checkpoint instead of waiting for it to finish on its own.
type Dispatcher struct {
	broker  broker.Broker
	runners map[models.Stage]StageRunner
	logger  *slog.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewDispatcher builds a Dispatcher over the four stage runners.
func NewDispatcher(b broker.Broker, discovery, preparation, generation, posting StageRunner) *Dispatcher {
	return &Dispatcher{
		broker: b,
		runners: map[models.Stage]StageRunner{
			models.StageDiscovery:   discovery,
			models.StagePreparation: preparation,
			models.StageGeneration:  generation,
			models.StagePosting:     posting,
		},
		logger:  slog.Default().With("component", "dispatcher"),
		cancels: make(map[string]context.CancelFunc),
	}
}

// Dispatch marks taskID started, runs the stage for processID to
// completion (or until ctx/cancel fires), and reports success or failure
// back to the broker. Safe to run as its own goroutine.
func (d *Dispatcher) Dispatch(ctx context.Context, stage models.Stage, processID, taskID string) {
	log := d.logger.With("process_id", processID, "stage", stage, "task_id", taskID)

	runCtx, cancel := context.WithCancel(ctx)
	d.mu.Lock()
	d.cancels[taskID] = cancel
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		delete(d.cancels, taskID)
		d.mu.Unlock()
		cancel()
	}()

	if err := d.broker.MarkStarted(runCtx, taskID); err != nil {
		log.Error("mark started failed", "error", err)
	}

	runner, ok := d.runners[stage]
	if !ok {
		log.Error("no runner registered for stage")
		return
	}

	start := time.Now()
	err := runner.Run(runCtx, processID)
	telemetry.StageDuration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())

	if err != nil {
		log.Error("stage run returned error", "error", err)
		if mErr := d.broker.MarkFailure(ctx, taskID); mErr != nil {
			log.Error("mark failure failed", "error", mErr)
		}
		return
	}
	if mErr := d.broker.MarkSuccess(ctx, taskID); mErr != nil {
		log.Error("mark success failed", "error", mErr)
	}
}

// Cancel interrupts a task's run context if it is currently executing in
// this process — the in-process half of a broker revoke. A no-op if the
// task is unknown here (already finished, or dispatched elsewhere).
func (d *Dispatcher) Cancel(taskID string) {
	d.mu.Lock()
	cancel, ok := d.cancels[taskID]
	d.mu.Unlock()
	if ok {
		cancel()
	}
}
