package http

import (
	"context"

	"dateresample/internal/services"
	"dateresample/pkg/contracts/domain"
)

// ResampleService is the part of services.ResampleService the HTTP layer
// depends on.
type ResampleService interface {
	ResampleTable(ctx context.Context, t *domain.Table, plan services.Plan) (*domain.Table, error)
}

// HealthService reports process health.
type HealthService interface {
	HealthCheck(ctx context.Context) services.HealthStatus
	ReadinessCheck(ctx context.Context) services.HealthStatus
	LivenessCheck(ctx context.Context) services.HealthStatus
	Version() map[string]interface{}
}
