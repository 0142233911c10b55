// Package workdays counts chargeable days and SLA hours over calendars with a
// configurable weekend and organization blackout periods.
package workdays

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dukex/agencyflow/pkg/models"
	"github.com/shopspring/decimal"
)

// Weekend is the set of weekdays that are not worked.
type Weekend map[time.Weekday]bool

// UAEWeekend is the Friday/Saturday weekend used by default.
var UAEWeekend = NewWeekend(time.Friday, time.Saturday)

// HalfDay is the value charged for a half-day request.
var HalfDay = decimal.RequireFromString("0.5")

func NewWeekend(days ...time.Weekday) Weekend {
	weekend := make(Weekend, len(days))
	for _, day := range days {
		weekend[day] = true
	}

	return weekend
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

// ParseWeekend accepts a comma separated list of weekday numbers (0=Sunday)
// or three-letter names, e.g. "5,6" or "fri,sat". An empty string means no weekend.
func ParseWeekend(value string) (Weekend, error) {
	weekend := Weekend{}

	for _, field := range strings.Split(value, ",") {
		field = strings.ToLower(strings.TrimSpace(field))
		if field == "" {
			continue
		}

		if day, ok := weekdayNames[field[:min(3, len(field))]]; ok {
			weekend[day] = true

			continue
		}

		number, err := strconv.Atoi(field)
		if err != nil || number < 0 || number > 6 {
			return nil, fmt.Errorf("invalid weekday %q", field)
		}

		weekend[time.Weekday(number)] = true
	}

	return weekend, nil
}

func (w Weekend) Contains(day time.Weekday) bool {
	return w[day]
}

func (w Weekend) String() string {
	days := make([]int, 0, len(w))
	for day, off := range w {
		if off {
			days = append(days, int(day))
		}
	}

	slices.Sort(days)

	names := make([]string, len(days))
	for i, day := range days {
		names[i] = strings.ToLower(time.Weekday(day).String()[:3])
	}

	return strings.Join(names, ",")
}

// WorkingDays counts the calendar days from start to end inclusive whose weekday
// is not in weekend. A half-day request always counts as 0.5 regardless of the
// range. An end before start yields zero.
func WorkingDays(start, end time.Time, weekend Weekend, halfDay bool) decimal.Decimal {
	if halfDay {
		return HalfDay
	}

	count := int64(0)
	last := dateOf(end)

	for day := dateOf(start); !day.After(last); day = day.AddDate(0, 0, 1) {
		if !weekend.Contains(day.Weekday()) {
			count++
		}
	}

	return decimal.NewFromInt(count)
}

// OverlapsBlackout returns the first period whose inclusive range intersects
// [start, end], or nil.
func OverlapsBlackout(start, end time.Time, periods []*models.BlackoutPeriod) *models.BlackoutPeriod {
	from, to := dateOf(start), dateOf(end)

	for _, period := range periods {
		if !dateOf(period.StartDate).After(to) && !dateOf(period.EndDate).Before(from) {
			return period
		}
	}

	return nil
}

// AddWorkingHours returns the instant hours working hours after from. Time that
// falls on a weekend day does not consume hours.
func AddWorkingHours(from time.Time, hours int, weekend Weekend) time.Time {
	if len(weekend) >= 7 {
		return from.Add(time.Duration(hours) * time.Hour)
	}

	current := from
	remaining := time.Duration(hours) * time.Hour

	for remaining > 0 {
		nextMidnight := dateOf(current).AddDate(0, 0, 1)

		if weekend.Contains(current.Weekday()) {
			current = nextMidnight

			continue
		}

		available := nextMidnight.Sub(current)
		if remaining <= available {
			return current.Add(remaining)
		}

		remaining -= available
		current = nextMidnight
	}

	return current
}

func dateOf(t time.Time) time.Time {
	year, month, day := t.Date()

	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
