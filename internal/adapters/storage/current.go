package storage

// current.go — extractor del schema actual: decision log estructurado +
// settings + thresholds + snapshots de mercado serializados.
//
// Resolución de estado de mercado: para cada job_id distinto se busca el
// snapshot del mismo producto dentro de ±60s del timestamp de la decisión
// (gana el más cercano en el tiempo). Sin snapshot no hay replay posible:
// todas las filas de ese job se descartan.
//
// Memoización por llamada: settings por (producto, vendor), snapshots por
// job_id, thresholds en una sola query batcheada sobre la unión de vendors
// vistos. Ninguna lookup se repite dentro de una extracción; las caches
// viven en un contexto local a la llamada, nunca en estado global.

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/alejandrodnm/repricer/internal/domain"
	"github.com/alejandrodnm/repricer/internal/ports"
)

// snapshotWindow es la tolerancia entre la decisión y su snapshot.
const snapshotWindow = 60 * time.Second

// CurrentExtractor implementa ports.Extractor sobre el schema actual.
type CurrentExtractor struct {
	store      *Store
	ownVendors []int64
}

// NewCurrentExtractor crea el extractor. ownVendors son los vendor ids del
// negocio; sus settings se resuelven para cada record (comparación a nivel
// producto).
func NewCurrentExtractor(store *Store, ownVendors []int64) *CurrentExtractor {
	return &CurrentExtractor{store: store, ownVendors: ownVendors}
}

type decisionRow struct {
	ID             int64     `db:"id"`
	JobID          string    `db:"job_id"`
	ProductID      int64     `db:"product_id"`
	VendorID       int64     `db:"vendor_id"`
	Quantity       int       `db:"quantity"`
	SuggestedPrice *float64  `db:"suggested_price"`
	Comment        string    `db:"comment"`
	TriggerVendor  int64     `db:"trigger_vendor"`
	Category       string    `db:"category"`
	RunName        string    `db:"run_name"`
	BreaksValid    bool      `db:"breaks_valid"`
	LowestPrice    *float64  `db:"lowest_price"`
	LowestVendor   int64     `db:"lowest_vendor"`
	CreatedAt      time.Time `db:"created_at"`
}

// Extract reconstruye los records del rango, del más reciente al más viejo.
func (e *CurrentExtractor) Extract(ctx context.Context, w ports.Window, f ports.Filters) ([]domain.Record, error) {
	rows, err := e.queryLog(ctx, w, f)
	if err != nil {
		return nil, err
	}

	cache := newExtractCache()
	records := make([]domain.Record, 0, len(rows))
	dropped := 0

	for _, row := range rows {
		snapshot, err := e.resolveSnapshot(ctx, cache, row.JobID, row.ProductID, row.CreatedAt)
		if err != nil {
			return nil, err // conectividad: propaga
		}
		if snapshot == nil {
			// Sin estado de mercado no hay record: replay imposible.
			dropped++
			continue
		}

		settings, err := cache.resolveSettings(ctx, e.store, row.ProductID, row.VendorID)
		if err != nil {
			return nil, err
		}
		ownSettings, err := cache.resolveOwnSettings(ctx, e.store, e.ownVendors, row.ProductID)
		if err != nil {
			return nil, err
		}
		legacy, err := cache.resolveLegacy(ctx, e.store, row.ProductID, row.VendorID)
		if err != nil {
			return nil, err
		}

		records = append(records, domain.Record{
			ID:             row.ID,
			JobID:          row.JobID,
			ProductID:      row.ProductID,
			VendorID:       row.VendorID,
			Quantity:       row.Quantity,
			At:             row.CreatedAt,
			RunName:        row.RunName,
			Snapshot:       *snapshot,
			Settings:       settings,
			OwnSettings:    ownSettings,
			LegacySettings: legacy,
			Historical: domain.Historical{
				Tag:           historicalTag(row.Category, row.Comment),
				Price:         row.SuggestedPrice,
				Comment:       row.Comment,
				TriggerVendor: row.TriggerVendor,
				BreaksValid:   row.BreaksValid,
				LowestVendor:  row.LowestVendor,
				LowestPrice:   row.LowestPrice,
			},
		})
	}

	if dropped > 0 {
		slog.Warn("records dropped without market snapshot", "dropped", dropped, "kept", len(records))
	}

	// Thresholds: una sola query sobre la unión de vendors de todos los
	// snapshots resueltos, repartida después por record.
	if err := attachThresholds(ctx, e.store, records); err != nil {
		return nil, err
	}

	return records, nil
}

// queryLog trae las filas del decision log acotadas por ventana y filtros,
// ordenadas del más reciente al más viejo.
func (e *CurrentExtractor) queryLog(ctx context.Context, w ports.Window, f ports.Filters) ([]decisionRow, error) {
	if err := e.store.wait(ctx); err != nil {
		return nil, err
	}

	from, to := timeWindow(w.From, w.To)
	query := `SELECT * FROM decision_log WHERE created_at BETWEEN ? AND ?`
	args := []any{from, to}

	if len(f.ProductIDs) > 0 {
		query += ` AND product_id IN (?)`
		args = append(args, f.ProductIDs)
	}
	if len(f.VendorIDs) > 0 {
		query += ` AND vendor_id IN (?)`
		args = append(args, f.VendorIDs)
	}
	if f.RunName != "" {
		query += ` AND run_name = ?`
		args = append(args, f.RunName)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	query, flat, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage.CurrentExtractor: build query: %w", err)
	}
	var rows []decisionRow
	if err := e.store.db.SelectContext(ctx, &rows, query, flat...); err != nil {
		return nil, fmt.Errorf("storage.CurrentExtractor: query decision_log: %w", err)
	}
	return rows, nil
}

// resolveSnapshot devuelve el snapshot del job, memoizado. nil sin error =
// resuelto y ausente (el job entero se descarta).
func (e *CurrentExtractor) resolveSnapshot(ctx context.Context, cache *extractCache, jobID string, productID int64, at time.Time) (*domain.MarketSnapshot, error) {
	if snap, seen := cache.snapshots[jobID]; seen {
		return snap, nil
	}

	if err := e.store.wait(ctx); err != nil {
		return nil, err
	}
	type snapRow struct {
		ID         int64     `db:"id"`
		ProductID  int64     `db:"product_id"`
		CapturedAt time.Time `db:"captured_at"`
		Payload    string    `db:"payload"`
	}
	var rows []snapRow
	err := e.store.db.SelectContext(ctx, &rows,
		`SELECT id, product_id, captured_at, payload FROM market_snapshots
		  WHERE product_id = ? AND captured_at BETWEEN ? AND ?`,
		productID, at.Add(-snapshotWindow).UTC(), at.Add(snapshotWindow).UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("storage.CurrentExtractor: query snapshots: %w", err)
	}

	// El más cercano en el tiempo gana.
	var best *snapRow
	for i := range rows {
		if best == nil ||
			math.Abs(rows[i].CapturedAt.Sub(at).Seconds()) < math.Abs(best.CapturedAt.Sub(at).Seconds()) {
			best = &rows[i]
		}
	}
	if best == nil {
		cache.snapshots[jobID] = nil
		return nil, nil
	}

	var listings []domain.Listing
	if err := json.Unmarshal([]byte(best.Payload), &listings); err != nil {
		// Fila malformada: se loguea y el job se trata como sin snapshot.
		slog.Warn("malformed snapshot payload, skipping job",
			"job_id", jobID, "snapshot_id", best.ID, "err", err)
		cache.snapshots[jobID] = nil
		return nil, nil
	}

	snap := &domain.MarketSnapshot{
		ProductID:  best.ProductID,
		CapturedAt: best.CapturedAt,
		Listings:   listings,
	}
	cache.snapshots[jobID] = snap
	return snap, nil
}

// historicalTag normaliza la categoría registrada; si no es un tag conocido
// cae a clasificar el comment de texto libre.
func historicalTag(category, comment string) domain.Tag {
	switch t := domain.Tag(category); t {
	case domain.TagChangeUp, domain.TagChangeDown, domain.TagIgnoreFloor,
		domain.TagIgnoreSister, domain.TagIgnoreLowest, domain.TagIgnoreOther,
		domain.TagNoSolution:
		return t
	}
	return domain.ClassifyComment(comment)
}

var _ ports.Extractor = (*CurrentExtractor)(nil)
