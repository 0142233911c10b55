package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/dukex/agencyflow/pkg/models"
	"github.com/dukex/agencyflow/pkg/workdays"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// BlackoutCalendar supplies an organization's blackout periods.
type BlackoutCalendar interface {
	Blackouts(ctx context.Context, organizationID string) ([]*models.BlackoutPeriod, error)
}

// StaticBlackouts is an in-memory BlackoutCalendar, typically loaded from YAML.
type StaticBlackouts struct {
	mu      sync.RWMutex
	periods []*models.BlackoutPeriod
}

func NewStaticBlackouts(periods ...*models.BlackoutPeriod) *StaticBlackouts {
	return &StaticBlackouts{periods: periods}
}

type yamlBlackout struct {
	ID             string    `yaml:"id"`
	OrganizationID string    `yaml:"organization_id"`
	Name           string    `yaml:"name"`
	StartDate      time.Time `yaml:"start_date"`
	EndDate        time.Time `yaml:"end_date"`
}

// LoadBlackoutsFile reads a YAML document of the form:
//
//	blackouts:
//	  - id: year-end
//	    organization_id: org-1
//	    name: Year-end close
//	    start_date: 2025-12-24
//	    end_date: 2025-12-31
func LoadBlackoutsFile(path string) (*StaticBlackouts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read blackouts file: %w", err)
	}

	var document struct {
		Blackouts []yamlBlackout `yaml:"blackouts"`
	}

	if err := yaml.Unmarshal(data, &document); err != nil {
		return nil, fmt.Errorf("failed to parse blackouts file %s: %w", path, err)
	}

	periods := make([]*models.BlackoutPeriod, 0, len(document.Blackouts))
	for _, entry := range document.Blackouts {
		if entry.EndDate.Before(entry.StartDate) {
			return nil, fmt.Errorf("blackout %q ends before it starts", entry.ID)
		}

		periods = append(periods, &models.BlackoutPeriod{
			ID:             entry.ID,
			OrganizationID: entry.OrganizationID,
			Name:           entry.Name,
			StartDate:      entry.StartDate,
			EndDate:        entry.EndDate,
		})
	}

	return NewStaticBlackouts(periods...), nil
}

func (s *StaticBlackouts) Blackouts(_ context.Context, organizationID string) ([]*models.BlackoutPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	periods := slices.Clone(s.periods)

	return slices.DeleteFunc(periods, func(period *models.BlackoutPeriod) bool {
		return period.OrganizationID != organizationID
	}), nil
}

// Leave answers day-count questions for leave requests.
type Leave struct {
	calendar  BlackoutCalendar
	weekend   workdays.Weekend
	validator *validator.Validate
}

func NewLeave(calendar BlackoutCalendar, weekend workdays.Weekend) *Leave {
	return &Leave{
		calendar:  calendar,
		weekend:   weekend,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// LeaveCheckRequest asks how many days a request charges for one organization.
// A nil Balance skips the balance check.
type LeaveCheckRequest struct {
	OrganizationID string `validate:"required"`
	Request        models.LeaveRequest
	Balance        *models.LeaveBalance
}

// LeaveCheckResult reports the charge and whether the request may go ahead.
type LeaveCheckResult struct {
	Days     decimal.Decimal        `json:"days"`
	Allowed  bool                   `json:"allowed"`
	Reason   string                 `json:"reason,omitempty"`
	Blackout *models.BlackoutPeriod `json:"blackout,omitempty"`
}

// Check counts working days and evaluates the blackout and balance rules.
// Malformed ranges are returned as errors; rule violations are reported in the result.
func (l *Leave) Check(ctx context.Context, req LeaveCheckRequest) (*LeaveCheckResult, error) {
	if err := l.validator.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	blackouts, err := l.calendar.Blackouts(ctx, req.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load blackout periods: %w", err)
	}

	days, err := workdays.CheckLeaveRequest(req.Request, req.Balance, blackouts, l.weekend)

	var (
		blackoutErr *workdays.BlackoutError
		balanceErr  *workdays.BalanceError
	)

	switch {
	case err == nil:
		return &LeaveCheckResult{Days: days, Allowed: true}, nil
	case errors.As(err, &blackoutErr):
		return &LeaveCheckResult{Days: days, Reason: err.Error(), Blackout: blackoutErr.Period}, nil
	case errors.As(err, &balanceErr):
		return &LeaveCheckResult{Days: days, Reason: err.Error()}, nil
	default:
		return nil, err
	}
}

// Weekend returns the configured weekend days.
func (l *Leave) Weekend() workdays.Weekend {
	return l.weekend
}
