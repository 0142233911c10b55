package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/agencyflow/pkg/models"
	"github.com/dukex/agencyflow/pkg/persistence"
	"github.com/robfig/cron/v3"
)

// SchedulerActorID is recorded as TriggeredByID on runs started by a schedule.
const SchedulerActorID = "system:scheduler"

// TriggerConfigContext optionally holds the initial context of scheduled runs.
const TriggerConfigContext = "context"

// DefaultSyncInterval is how often the scheduler reloads SCHEDULED definitions.
const DefaultSyncInterval = time.Minute

type scheduledEntry struct {
	id         cron.EntryID
	expression string
}

// Scheduler starts runs of active SCHEDULED definitions on their cron expression
// and periodically flags in-progress steps that passed their SLA due date.
type Scheduler struct {
	engine      *Engine
	persistence persistence.Persistence
	cron        *cron.Cron
	logger      *slog.Logger

	mu      sync.Mutex
	entries map[string]scheduledEntry
}

func NewScheduler(engine *Engine, persistence persistence.Persistence, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		engine:      engine,
		persistence: persistence,
		cron:        cron.New(),
		logger:      logger.With("module", "workflow_scheduler"),
		entries:     make(map[string]scheduledEntry),
	}
}

// Run syncs the schedules, then on every interval re-syncs them and flags
// overdue steps, until ctx is done.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	if err := s.Sync(ctx); err != nil {
		return err
	}

	s.cron.Start()
	defer func() {
		<-s.cron.Stop().Done()
	}()

	s.checkOverdue(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "stopping scheduler")

			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick is one scheduler pass: reload schedules and flag overdue steps. Errors
// are logged so the next pass can retry.
func (s *Scheduler) Tick(ctx context.Context) {
	if err := s.Sync(ctx); err != nil {
		s.logger.ErrorContext(ctx, "failed to sync schedules", "error", err)
	}

	s.checkOverdue(ctx)
}

func (s *Scheduler) checkOverdue(ctx context.Context) {
	flagged, err := s.engine.FlagOverdue(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to flag overdue steps", "error", err)

		return
	}

	if flagged > 0 {
		s.logger.InfoContext(ctx, "flagged overdue steps", "count", flagged)
	}
}

// Sync registers new or changed schedules and drops those of definitions that
// are no longer active and SCHEDULED.
func (s *Scheduler) Sync(ctx context.Context) error {
	definitions, err := s.persistence.DefinitionRepository().ListActiveScheduled(ctx)
	if err != nil {
		return fmt.Errorf("failed to list scheduled definitions: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(definitions))

	for _, definition := range definitions {
		schedule, ok := definition.Schedule()
		if !ok {
			continue
		}

		seen[definition.ID] = true

		if entry, exists := s.entries[definition.ID]; exists {
			if entry.expression == schedule.CronExpression {
				continue
			}

			s.cron.Remove(entry.id)
			delete(s.entries, definition.ID)
		}

		definitionID := definition.ID

		id, err := s.cron.AddFunc(schedule.CronExpression, func() {
			if _, err := s.Trigger(ctx, definitionID); err != nil {
				s.logger.ErrorContext(ctx, "scheduled run failed", "definition_id", definitionID, "error", err)
			}
		})
		if err != nil {
			s.logger.WarnContext(ctx, "skipping invalid schedule",
				"definition_id", definitionID,
				"cron", schedule.CronExpression,
				"error", err)

			continue
		}

		s.entries[definitionID] = scheduledEntry{id: id, expression: schedule.CronExpression}
		s.logger.InfoContext(ctx, "scheduled workflow", "definition_id", definitionID, "cron", schedule.CronExpression)
	}

	for definitionID, entry := range s.entries {
		if !seen[definitionID] {
			s.cron.Remove(entry.id)
			delete(s.entries, definitionID)
			s.logger.InfoContext(ctx, "unscheduled workflow", "definition_id", definitionID)
		}
	}

	return nil
}

// Trigger starts one scheduled run of definitionID now.
func (s *Scheduler) Trigger(ctx context.Context, definitionID string) (*models.WorkflowRun, error) {
	definition, err := s.persistence.DefinitionRepository().GetByID(ctx, definitionID)
	if err != nil {
		return nil, err
	}

	runContext := map[string]any{}
	if initial, ok := definition.TriggerConfig[TriggerConfigContext].(map[string]any); ok {
		runContext = models.CloneMap(initial)
	}

	runContext["scheduledAt"] = s.engine.now().UTC().Format(time.RFC3339)

	return s.engine.StartWorkflow(ctx, definitionID, SchedulerActorID, runContext)
}

// Scheduled returns the ids of the definitions currently registered.
func (s *Scheduler) Scheduled() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}

	return ids
}
