package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/yourmoment/core/internal/broker"
	"github.com/yourmoment/core/internal/models"
	"github.com/yourmoment/core/internal/store"
	"github.com/yourmoment/core/internal/telemetry"
)

var stageQueue = map[models.Stage]string{
	models.StageDiscovery:   broker.QueueDiscovery,
	models.StagePreparation: broker.QueuePreparation,
	models.StageGeneration:  broker.QueueGeneration,
	models.StagePosting:     broker.QueuePosting,
}

// Coordinator runs every T_trigger seconds and, for each RUNNING process,
// (re-)dispatches any stage that is not currently in flight. It never runs
// stage logic itself — that is Dispatcher's job, invoked after a successful
// enqueue — so a coordinator tick is always cheap and bounded.
type Coordinator struct {
	store      *store.Store
	broker     broker.Broker
	dispatcher *Dispatcher
	logger     *slog.Logger
}

// NewCoordinator builds a Coordinator. dispatcher may be nil, in which case
// the coordinator only enqueues and persists task ids without ever running
// stage logic — useful for isolating spawn/skip behavior in tests.
func NewCoordinator(s *store.Store, b broker.Broker, dispatcher *Dispatcher) *Coordinator {
	return &Coordinator{
		store:      s,
		broker:     b,
		dispatcher: dispatcher,
		logger:     slog.Default().With("component", "coordinator"),
	}
}

// Tick runs one coordinator pass over every RUNNING process. A failure
// evaluating one process's stages does not stop the pass over the rest.
func (c *Coordinator) Tick(ctx context.Context) error {
	processes, err := c.store.ListRunning(ctx)
	if err != nil {
		return err
	}
	for i := range processes {
		c.tickProcess(ctx, &processes[i])
	}
	return nil
}

func (c *Coordinator) tickProcess(ctx context.Context, p *models.MonitoringProcess) {
	for _, stage := range models.Stages() {
		if !p.ConsumesStage(stage) {
			continue
		}
		c.tickStage(ctx, p, stage)
	}
}

func (c *Coordinator) tickStage(ctx context.Context, p *models.MonitoringProcess, stage models.Stage) {
	log := c.logger.With("process_id", p.ID, "stage", stage)

	if taskID := p.StageTaskIDs.Get(stage); taskID != nil {
		info, err := c.broker.Inspect(ctx, *taskID)
		switch {
		case err != nil && !errors.Is(err, broker.ErrTaskNotFound):
			// Broker inspection errors fall back to "skip spawn" to avoid
			// duplicates; the next tick re-evaluates.
			log.Warn("broker inspect failed, skipping spawn this tick", "error", err)
			telemetry.CoordinatorTasksSkippedTotal.WithLabelValues(string(stage)).Inc()
			return
		case err == nil && info.State.InFlight():
			telemetry.CoordinatorTasksSkippedTotal.WithLabelValues(string(stage)).Inc()
			return
		}
		// Terminal state or ErrTaskNotFound (expired): fall through to spawn.
	}

	taskID, err := c.broker.Enqueue(ctx, stageQueue[stage], p.ID)
	if err != nil {
		log.Error("enqueue failed", "error", err)
		return
	}
	if err := c.store.SetStageTaskID(ctx, p.ID, stage, taskID); err != nil {
		log.Error("persist stage task id failed", "error", err)
		return
	}
	telemetry.CoordinatorTasksSpawnedTotal.WithLabelValues(string(stage)).Inc()

	if c.dispatcher != nil {
		go c.dispatcher.Dispatch(context.Background(), stage, p.ID, taskID)
	}
}
