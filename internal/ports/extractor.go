package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/repricer/internal/domain"
)

// Window es el rango temporal de una extracción.
type Window struct {
	From time.Time
	To   time.Time
}

// Filters acota el batch extraído. Los slices vacíos no filtran.
type Filters struct {
	ProductIDs []int64
	VendorIDs  []int64
	RunName    string
	// Limit acota la cantidad de filas leídas. 0 = sin límite.
	Limit int
}

// Extractor reconstruye records de backtest autocontenidos desde el storage.
// La elección de schema (actual vs legacy) es por implementación, nunca
// inferida de los datos.
type Extractor interface {
	// Extract devuelve los records del rango, ordenados del más reciente al
	// más viejo. Una fila malformada se loguea y se saltea; un fallo de
	// conectividad corta la extracción y propaga.
	Extract(ctx context.Context, w Window, f Filters) ([]domain.Record, error)
}
