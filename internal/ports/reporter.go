package ports

import (
	"context"

	"github.com/alejandrodnm/repricer/internal/domain"
)

// Reporter renderiza los reportes para consumo humano (consola, etc.).
type Reporter interface {
	Regression(ctx context.Context, r *domain.RegressionReport) error
	Products(ctx context.Context, r *domain.ProductReport) error
	WhatIf(ctx context.Context, r *domain.WhatIfReport) error
}
