package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BlackoutPeriod is an inclusive date range in which leave may not be taken.
type BlackoutPeriod struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
}

// LeaveBalance is a user's yearly allowance for one leave type.
type LeaveBalance struct {
	Entitlement decimal.Decimal `json:"entitlement"`
	CarriedOver decimal.Decimal `json:"carried_over"`
	Adjustment  decimal.Decimal `json:"adjustment"`
	Used        decimal.Decimal `json:"used"`
}

// Available returns entitlement + carried over + adjustment - used.
func (b LeaveBalance) Available() decimal.Decimal {
	return b.Entitlement.Add(b.CarriedOver).Add(b.Adjustment).Sub(b.Used)
}

// LeaveRequest is a request to take leave between two dates inclusive.
type LeaveRequest struct {
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date"   validate:"required"`
	HalfDay   bool      `json:"half_day"`
}
