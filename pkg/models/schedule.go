package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// TriggerConfigCron is the TriggerConfig key holding a SCHEDULED definition's cron expression.
const TriggerConfigCron = "cron"

// ErrInvalidSchedule is returned when a SCHEDULED definition has no usable cron expression.
var ErrInvalidSchedule = errors.New("invalid schedule configuration")

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// TriggerSchedule is the cron schedule of a SCHEDULED workflow definition.
// Uses the standard 5-field format (minute hour day month weekday).
type TriggerSchedule struct {
	DefinitionID   string `json:"definition_id"`
	CronExpression string `json:"cron_expression"`
}

// Validate checks the cron expression parses.
func (s *TriggerSchedule) Validate() error {
	if s.CronExpression == "" {
		return fmt.Errorf("%w: missing %q in trigger config", ErrInvalidSchedule, TriggerConfigCron)
	}

	if _, err := cronParser.Parse(s.CronExpression); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
	}

	return nil
}

// NextDueAt returns the first activation strictly after from.
func (s *TriggerSchedule) NextDueAt(from time.Time) (time.Time, error) {
	schedule, err := cronParser.Parse(s.CronExpression)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
	}

	return schedule.Next(from), nil
}

// IsDue reports whether an activation falls in (last, now].
func (s *TriggerSchedule) IsDue(last, now time.Time) bool {
	next, err := s.NextDueAt(last)
	if err != nil {
		return false
	}

	return !next.After(now)
}
