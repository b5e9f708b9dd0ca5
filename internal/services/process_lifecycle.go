package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/yourmoment/core/internal/broker"
	"github.com/yourmoment/core/internal/models"
	"github.com/yourmoment/core/internal/notify"
	"github.com/yourmoment/core/internal/store"
)

// ProcessLifecycleService implements the start/stop/status
// operations the REST API collaborator calls. The coordinator, not this
// service, ever spawns stage workers — start() only flips status to RUNNING
// and leaves dispatch to the coordinator's next tick (bounded by
// T_trigger).
type ProcessLifecycleService struct {
	store               *store.Store
	broker              broker.Broker
	notifier            *notify.Notifier
	maxProcessesPerUser int
	logger              *slog.Logger
}

// NewProcessLifecycleService builds a ProcessLifecycleService. notifier may
// be nil.
func NewProcessLifecycleService(s *store.Store, b broker.Broker, notifier *notify.Notifier, maxProcessesPerUser int) *ProcessLifecycleService {
	return &ProcessLifecycleService{
		store:               s,
		broker:              b,
		notifier:            notifier,
		maxProcessesPerUser: maxProcessesPerUser,
		logger:              slog.Default().With("component", "process_lifecycle"),
	}
}

// Start validates a process's configuration and transitions it to RUNNING.
// Validation failures mark the process FAILED per the error taxonomy
// and are returned wrapped in ErrValidation; the process never
// reaches RUNNING in that case.
func (s *ProcessLifecycleService) Start(ctx context.Context, processID string) error {
	cfg, err := s.store.LoadProcessConfig(ctx, processID)
	if err != nil {
		return fmt.Errorf("services: start: load config: %w", err)
	}

	if len(cfg.CredentialIDs) == 0 {
		return s.rejectConfig(ctx, processID, "process has no upstream credentials configured")
	}
	if len(cfg.TemplateIDs) == 0 {
		return s.rejectConfig(ctx, processID, "process has no prompt templates configured")
	}

	provider, err := s.store.GetLLMProvider(ctx, cfg.LLMProviderID)
	if err != nil {
		return s.rejectConfig(ctx, processID, "referenced llm provider does not exist")
	}
	if provider.UserID != cfg.UserID {
		return s.rejectConfig(ctx, processID, "llm provider does not belong to the process owner")
	}

	running, err := s.store.CountRunningByUser(ctx, cfg.UserID)
	if err != nil {
		return fmt.Errorf("services: start: count running processes: %w", err)
	}
	if running >= s.maxProcessesPerUser {
		return s.rejectConfig(ctx, processID, fmt.Sprintf("user already has %d running processes, the configured maximum", s.maxProcessesPerUser))
	}

	process, err := s.store.GetProcess(ctx, processID)
	if err != nil {
		return fmt.Errorf("services: start: load process: %w", err)
	}

	if err := s.store.StartProcess(ctx, processID, time.Now(), process.MaxDurationMinutes); err != nil {
		return fmt.Errorf("services: start: %w", err)
	}
	return nil
}

func (s *ProcessLifecycleService) rejectConfig(ctx context.Context, processID, reason string) error {
	if err := s.store.MarkProcessFailed(ctx, processID, reason); err != nil {
		s.logger.Error("mark process failed failed", "process_id", processID, "error", err)
	}
	if process, err := s.store.GetProcess(ctx, processID); err == nil {
		s.notifier.NotifyProcessFailed(ctx, notify.FailureInput{ProcessID: processID, Name: process.Name, Message: reason})
	}
	return fmt.Errorf("%w: %s", ErrValidation, reason)
}

// Stop revokes every stored stage task id and transitions the process to
// STOPPED with stop_reason=manual.
func (s *ProcessLifecycleService) Stop(ctx context.Context, processID string) error {
	process, err := s.store.GetProcess(ctx, processID)
	if err != nil {
		return fmt.Errorf("services: stop: load process: %w", err)
	}

	for _, stage := range models.Stages() {
		taskID := process.StageTaskIDs.Get(stage)
		if taskID == nil {
			continue
		}
		if err := s.broker.Revoke(ctx, *taskID); err != nil {
			s.logger.Error("revoke stage task failed", "process_id", processID, "stage", stage, "error", err)
		}
	}

	if err := s.store.StopProcess(ctx, processID, time.Now(), models.StopReasonManual); err != nil {
		return fmt.Errorf("services: stop: %w", err)
	}
	return nil
}

// ProcessStatus is the view returned by Status: process fields plus the
// derived pipeline counters from a single WorkRecord status aggregation.
type ProcessStatus struct {
	Process      models.MonitoringProcess
	RecordCounts store.StatusCounts
}

// Status returns a process's fields plus its pipeline-status counters.
func (s *ProcessLifecycleService) Status(ctx context.Context, processID string) (ProcessStatus, error) {
	process, err := s.store.GetProcess(ctx, processID)
	if err != nil {
		return ProcessStatus{}, fmt.Errorf("services: status: load process: %w", err)
	}
	counts, err := s.store.CountWorkRecordsByStatus(ctx, processID)
	if err != nil {
		return ProcessStatus{}, fmt.Errorf("services: status: count records: %w", err)
	}
	return ProcessStatus{Process: *process, RecordCounts: counts}, nil
}
