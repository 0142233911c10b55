package workdays

import (
	"errors"
	"fmt"

	"github.com/dukex/agencyflow/pkg/models"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidRange        = errors.New("leave end date is before start date")
	ErrHalfDaySpan         = errors.New("half-day leave must start and end on the same day")
	ErrBlackoutOverlap     = errors.New("leave request overlaps a blackout period")
	ErrInsufficientBalance = errors.New("insufficient leave balance")
)

// BlackoutError names the blackout period a request collided with.
type BlackoutError struct {
	Period *models.BlackoutPeriod
}

func (e *BlackoutError) Error() string {
	return fmt.Sprintf("%v: %s", ErrBlackoutOverlap, e.Period.Name)
}

func (e *BlackoutError) Unwrap() error {
	return ErrBlackoutOverlap
}

// BalanceError reports how many days were requested against how many remain.
type BalanceError struct {
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *BalanceError) Error() string {
	return fmt.Sprintf("%v: requested %s, available %s", ErrInsufficientBalance, e.Requested, e.Available)
}

func (e *BalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// CheckLeaveRequest returns the number of days a request charges, or the first
// rule it breaks. A nil balance skips the balance check.
func CheckLeaveRequest(
	request models.LeaveRequest,
	balance *models.LeaveBalance,
	blackouts []*models.BlackoutPeriod,
	weekend Weekend,
) (decimal.Decimal, error) {
	start, end := dateOf(request.StartDate), dateOf(request.EndDate)

	if end.Before(start) {
		return decimal.Zero, ErrInvalidRange
	}

	if request.HalfDay && !start.Equal(end) {
		return decimal.Zero, ErrHalfDaySpan
	}

	days := WorkingDays(start, end, weekend, request.HalfDay)

	if period := OverlapsBlackout(start, end, blackouts); period != nil {
		return days, &BlackoutError{Period: period}
	}

	if balance != nil {
		available := balance.Available()
		if days.GreaterThan(available) {
			return days, &BalanceError{Requested: days, Available: available}
		}
	}

	return days, nil
}
