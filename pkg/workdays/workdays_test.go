package workdays

import (
	"errors"
	"testing"
	"time"

	"github.com/dukex/agencyflow/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func TestWorkingDays(t *testing.T) {
	tests := []struct {
		name    string
		start   time.Time
		end     time.Time
		weekend Weekend
		halfDay bool
		want    string
	}{
		{"sunday to thursday UAE week", date(2025, 1, 5), date(2025, 1, 9), UAEWeekend, false, "5"},
		{"monday to friday UAE week", date(2025, 1, 6), date(2025, 1, 10), UAEWeekend, false, "4"},
		{"single weekend day", date(2025, 1, 10), date(2025, 1, 10), UAEWeekend, false, "0"},
		{"two full weeks", date(2025, 1, 5), date(2025, 1, 18), UAEWeekend, false, "10"},
		{"western weekend", date(2025, 1, 6), date(2025, 1, 12), NewWeekend(time.Saturday, time.Sunday), false, "5"},
		{"no weekend", date(2025, 1, 6), date(2025, 1, 12), Weekend{}, false, "7"},
		{"end before start", date(2025, 1, 9), date(2025, 1, 5), UAEWeekend, false, "0"},
		{"half day ignores range", date(2025, 1, 5), date(2025, 1, 9), UAEWeekend, true, "0.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WorkingDays(tt.start, tt.end, tt.weekend, tt.halfDay)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestWorkingDays_IgnoresTimeOfDay(t *testing.T) {
	start := time.Date(2025, 1, 5, 23, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 6, 1, 0, 0, 0, time.UTC)

	assert.True(t, decimal.NewFromInt(2).Equal(WorkingDays(start, end, UAEWeekend, false)))
}

func TestParseWeekend(t *testing.T) {
	weekend, err := ParseWeekend("5,6")
	require.NoError(t, err)
	assert.Equal(t, UAEWeekend, weekend)

	weekend, err = ParseWeekend("Sat, sunday")
	require.NoError(t, err)
	assert.True(t, weekend.Contains(time.Saturday))
	assert.True(t, weekend.Contains(time.Sunday))
	assert.Equal(t, "sun,sat", weekend.String())

	weekend, err = ParseWeekend("")
	require.NoError(t, err)
	assert.Empty(t, weekend)

	_, err = ParseWeekend("7")
	assert.Error(t, err)

	_, err = ParseWeekend("someday")
	assert.Error(t, err)
}

func TestOverlapsBlackout(t *testing.T) {
	periods := []*models.BlackoutPeriod{
		{ID: "b1", Name: "Year end close", StartDate: date(2025, 12, 24), EndDate: date(2025, 12, 31)},
		{ID: "b2", Name: "Launch week", StartDate: date(2025, 3, 10), EndDate: date(2025, 3, 14)},
	}

	assert.Nil(t, OverlapsBlackout(date(2025, 3, 1), date(2025, 3, 9), periods))
	assert.Equal(t, "b2", OverlapsBlackout(date(2025, 3, 1), date(2025, 3, 10), periods).ID)
	assert.Equal(t, "b2", OverlapsBlackout(date(2025, 3, 14), date(2025, 3, 20), periods).ID)
	assert.Equal(t, "b2", OverlapsBlackout(date(2025, 3, 11), date(2025, 3, 12), periods).ID)
	assert.Equal(t, "b1", OverlapsBlackout(date(2025, 12, 1), date(2026, 1, 5), periods).ID)
	assert.Nil(t, OverlapsBlackout(date(2025, 3, 1), date(2025, 3, 9), nil))
}

func TestAddWorkingHours(t *testing.T) {
	thursdayEvening := time.Date(2025, 1, 9, 18, 0, 0, 0, time.UTC)

	due := AddWorkingHours(thursdayEvening, 24, UAEWeekend)
	assert.Equal(t, time.Date(2025, 1, 12, 18, 0, 0, 0, time.UTC), due)

	due = AddWorkingHours(thursdayEvening, 4, UAEWeekend)
	assert.Equal(t, time.Date(2025, 1, 9, 22, 0, 0, 0, time.UTC), due)

	friday := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	due = AddWorkingHours(friday, 1, UAEWeekend)
	assert.Equal(t, time.Date(2025, 1, 12, 1, 0, 0, 0, time.UTC), due)

	due = AddWorkingHours(friday, 48, Weekend{})
	assert.Equal(t, friday.Add(48*time.Hour), due)
}

func TestCheckLeaveRequest(t *testing.T) {
	balance := &models.LeaveBalance{
		Entitlement: decimal.NewFromInt(3),
		Used:        decimal.Zero,
	}
	blackouts := []*models.BlackoutPeriod{
		{ID: "b1", Name: "Launch week", StartDate: date(2025, 3, 10), EndDate: date(2025, 3, 14)},
	}

	days, err := CheckLeaveRequest(models.LeaveRequest{StartDate: date(2025, 1, 5), EndDate: date(2025, 1, 7)}, balance, blackouts, UAEWeekend)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(3).Equal(days))

	_, err = CheckLeaveRequest(models.LeaveRequest{StartDate: date(2025, 1, 5), EndDate: date(2025, 1, 8)}, balance, blackouts, UAEWeekend)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	var balanceErr *BalanceError
	require.True(t, errors.As(err, &balanceErr))
	assert.True(t, decimal.NewFromInt(4).Equal(balanceErr.Requested))

	_, err = CheckLeaveRequest(models.LeaveRequest{StartDate: date(2025, 3, 9), EndDate: date(2025, 3, 10)}, nil, blackouts, UAEWeekend)
	assert.ErrorIs(t, err, ErrBlackoutOverlap)
	assert.Contains(t, err.Error(), "Launch week")

	_, err = CheckLeaveRequest(models.LeaveRequest{StartDate: date(2025, 1, 7), EndDate: date(2025, 1, 5)}, nil, nil, UAEWeekend)
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = CheckLeaveRequest(models.LeaveRequest{StartDate: date(2025, 1, 5), EndDate: date(2025, 1, 6), HalfDay: true}, nil, nil, UAEWeekend)
	assert.ErrorIs(t, err, ErrHalfDaySpan)

	days, err = CheckLeaveRequest(models.LeaveRequest{StartDate: date(2025, 1, 5), EndDate: date(2025, 1, 5), HalfDay: true}, nil, nil, UAEWeekend)
	require.NoError(t, err)
	assert.True(t, HalfDay.Equal(days))
}
