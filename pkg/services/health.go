package services

import (
	"context"

	"github.com/dukex/agencyflow/pkg/persistence"
)

type Health struct {
	persistence persistence.Persistence
}

// NewHealth creates a new health service.
func NewHealth(persistence persistence.Persistence) *Health {
	return &Health{
		persistence: persistence,
	}
}

// HealthCheck checks the health of the persistence layer.
func (h *Health) HealthCheck(ctx context.Context) (string, bool) {
	if h.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := h.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}
