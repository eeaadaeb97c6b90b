package ports

import (
	"context"

	"github.com/alejandrodnm/repricer/internal/domain"
)

// DecisionInput es el estado de mercado reconstruido que consume el
// algoritmo de decisión: snapshot completo, identidades propias y la lista
// de settings de todos los vendors propios (el algoritmo necesita
// visibilidad sobre los settings de los siblings, no solo del target).
type DecisionInput struct {
	ProductID  int64
	Snapshot   domain.MarketSnapshot
	OwnVendors []int64
	Settings   []domain.VendorSettings
	JobID      string
	SlowRun    bool
	SourceURL  string
	Thresholds []domain.VendorThreshold
}

// Decision es el output crudo del algoritmo para un (vendor, cantidad).
// El comment es texto libre en el dialecto de cada versión; el replay lo
// canoniza antes de compararlo.
type Decision struct {
	VendorID      int64
	Quantity      int
	Price         *float64
	Comment       string
	TriggerVendor int64
	BreaksValid   bool
}

// Algorithm es el algoritmo de decisión de precios, consumido como función
// pura inyectada: este motor lo evalúa pero no lo posee. Un método por
// versión para que los tests puedan sustituir stubs deterministas.
type Algorithm interface {
	// Decide ejecuta la versión actual del algoritmo.
	Decide(ctx context.Context, in DecisionInput) ([]Decision, error)

	// DecideLegacy ejecuta la versión legacy. Asume que el listing propio,
	// si está presente, tiene price break de cantidad 1; el replay guarda
	// esa precondición antes de invocar.
	DecideLegacy(ctx context.Context, in DecisionInput) ([]Decision, error)
}
