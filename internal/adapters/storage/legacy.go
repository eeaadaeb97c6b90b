package storage

// legacy.go — extractor del schema legacy: history de texto libre joineado a
// la tabla de respuestas crudas del marketplace.
//
// Diferencias con el schema actual:
//   - El vendor viene como nombre de canal; se resuelve con el lookup de
//     configuración (config.Config.ChannelVendor, que normaliza mayúsculas
//     y espacios). Canal desconocido = fila malformada (se saltea).
//   - El estado de mercado es el payload crudo guardado de la respuesta del
//     marketplace, linkeado por response_id. Las filas viejas envuelven el
//     array en {data: [...]}; hay que tolerar ambas formas.
//   - El desenlace es solo texto libre: se normaliza con la precedencia de
//     ClassifyComment.

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/alejandrodnm/repricer/internal/domain"
	"github.com/alejandrodnm/repricer/internal/ports"
)

// ChannelLookup resuelve un nombre de canal a su vendor id. El segundo
// resultado es false para canales desconocidos.
type ChannelLookup func(channel string) (int64, bool)

// LegacyExtractor implementa ports.Extractor sobre el schema legacy.
type LegacyExtractor struct {
	store      *Store
	ownVendors []int64
	channel    ChannelLookup
}

// NewLegacyExtractor crea el extractor con el lookup canal → vendor.
func NewLegacyExtractor(store *Store, ownVendors []int64, channel ChannelLookup) *LegacyExtractor {
	return &LegacyExtractor{store: store, ownVendors: ownVendors, channel: channel}
}

type historyRow struct {
	ID             int64     `db:"id"`
	ProductID      int64     `db:"product_id"`
	Channel        string    `db:"channel"`
	ExistingPrice  *float64  `db:"existing_price"`
	MinQty         int       `db:"min_qty"`
	Rank           int       `db:"rank"`
	LowestVendor   int64     `db:"lowest_vendor"`
	LowestPrice    *float64  `db:"lowest_price"`
	SuggestedPrice *float64  `db:"suggested_price"`
	Comment        string    `db:"comment"`
	TriggeredBy    int64     `db:"triggered_by"`
	ResponseID     int64     `db:"response_id"`
	RunName        string    `db:"run_name"`
	RefTime        time.Time `db:"ref_time"`
}

// rawListing es la forma con la que el marketplace serializaba cada oferta
// en las respuestas crudas guardadas.
type rawListing struct {
	VendorID     int64   `json:"vendor_id"`
	VendorName   string  `json:"vendor_name"`
	InStock      bool    `json:"in_stock"`
	Shipping     float64 `json:"shipping"`
	ShippingDays int     `json:"shipping_days"`
	Inventory    int     `json:"inventory"`
	BadgeID      int64   `json:"badge_id"`
	BadgeName    string  `json:"badge_name"`
	Breaks       []struct {
		MinQty int     `json:"min_qty"`
		Price  float64 `json:"price"`
	} `json:"breaks"`
	FreeShipGap       float64 `json:"free_ship_gap"`
	FreeShipThreshold float64 `json:"free_ship_threshold"`
}

// Extract reconstruye los records del history legacy, del más reciente al
// más viejo.
func (e *LegacyExtractor) Extract(ctx context.Context, w ports.Window, f ports.Filters) ([]domain.Record, error) {
	rows, err := e.queryHistory(ctx, w, f)
	if err != nil {
		return nil, err
	}

	cache := newExtractCache()
	responses := make(map[int64]*domain.MarketSnapshot) // response_id → snapshot (nil = malformado/ausente)
	records := make([]domain.Record, 0, len(rows))
	skipped := 0

	for _, row := range rows {
		vendorID, ok := e.channel(row.Channel)
		if !ok {
			slog.Warn("unknown legacy channel, skipping row", "channel", row.Channel, "row_id", row.ID)
			skipped++
			continue
		}
		if len(f.VendorIDs) > 0 && !containsID(f.VendorIDs, vendorID) {
			continue
		}

		snapshot, err := e.resolveResponse(ctx, responses, row.ResponseID, row.ProductID)
		if err != nil {
			return nil, err // conectividad: propaga
		}
		if snapshot == nil {
			skipped++
			continue
		}

		settings, err := cache.resolveSettings(ctx, e.store, row.ProductID, vendorID)
		if err != nil {
			return nil, err
		}
		ownSettings, err := cache.resolveOwnSettings(ctx, e.store, e.ownVendors, row.ProductID)
		if err != nil {
			return nil, err
		}
		legacy, err := cache.resolveLegacy(ctx, e.store, row.ProductID, vendorID)
		if err != nil {
			return nil, err
		}

		records = append(records, domain.Record{
			ID:             row.ID,
			JobID:          fmt.Sprintf("legacy-%d-%d", row.ResponseID, vendorID),
			ProductID:      row.ProductID,
			VendorID:       vendorID,
			Quantity:       row.MinQty,
			At:             row.RefTime,
			RunName:        row.RunName,
			Snapshot:       *snapshot,
			Settings:       settings,
			OwnSettings:    ownSettings,
			LegacySettings: legacy,
			Historical: domain.Historical{
				Tag:           domain.ClassifyComment(row.Comment),
				Price:         row.SuggestedPrice,
				Comment:       row.Comment,
				TriggerVendor: row.TriggeredBy,
				BreaksValid:   true,
				ExistingPrice: row.ExistingPrice,
				Rank:          row.Rank,
				LowestVendor:  row.LowestVendor,
				LowestPrice:   row.LowestPrice,
			},
		})
	}

	if skipped > 0 {
		slog.Warn("legacy rows skipped", "skipped", skipped, "kept", len(records))
	}

	if err := attachThresholds(ctx, e.store, records); err != nil {
		return nil, err
	}

	return records, nil
}

func (e *LegacyExtractor) queryHistory(ctx context.Context, w ports.Window, f ports.Filters) ([]historyRow, error) {
	if err := e.store.wait(ctx); err != nil {
		return nil, err
	}

	from, to := timeWindow(w.From, w.To)
	query := `SELECT * FROM history WHERE ref_time BETWEEN ? AND ?`
	args := []any{from, to}

	if len(f.ProductIDs) > 0 {
		query += ` AND product_id IN (?)`
		args = append(args, f.ProductIDs)
	}
	if f.RunName != "" {
		query += ` AND run_name = ?`
		args = append(args, f.RunName)
	}
	query += ` ORDER BY ref_time DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	query, flat, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage.LegacyExtractor: build query: %w", err)
	}
	var rows []historyRow
	if err := e.store.db.SelectContext(ctx, &rows, query, flat...); err != nil {
		return nil, fmt.Errorf("storage.LegacyExtractor: query history: %w", err)
	}
	return rows, nil
}

// resolveResponse trae y parsea la respuesta cruda linkeada, memoizada por
// response_id. nil sin error = join ausente o payload malformado (la fila se
// saltea, nunca aborta el batch).
func (e *LegacyExtractor) resolveResponse(ctx context.Context, cache map[int64]*domain.MarketSnapshot, responseID, productID int64) (*domain.MarketSnapshot, error) {
	if snap, seen := cache[responseID]; seen {
		return snap, nil
	}

	if err := e.store.wait(ctx); err != nil {
		return nil, err
	}
	var row struct {
		ID      int64     `db:"id"`
		RefTime time.Time `db:"ref_time"`
		Payload string    `db:"payload"`
	}
	err := e.store.db.GetContext(ctx, &row,
		`SELECT id, ref_time, payload FROM raw_responses WHERE id = ?`, responseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			slog.Warn("raw response missing, skipping row", "response_id", responseID)
			cache[responseID] = nil
			return nil, nil
		}
		return nil, fmt.Errorf("storage.LegacyExtractor: query raw_responses: %w", err)
	}

	listings, err := parseRawListings([]byte(row.Payload))
	if err != nil {
		slog.Warn("malformed raw response payload, skipping row",
			"response_id", responseID, "err", err)
		cache[responseID] = nil
		return nil, nil
	}

	snap := &domain.MarketSnapshot{
		ProductID:  productID,
		CapturedAt: row.RefTime,
		Listings:   listings,
	}
	cache[responseID] = snap
	return snap, nil
}

// parseRawListings tolera las dos formas del payload: el array directo y el
// envoltorio {data: [...]} de las filas viejas.
func parseRawListings(payload []byte) ([]domain.Listing, error) {
	var raw []rawListing
	if err := json.Unmarshal(payload, &raw); err != nil {
		var env struct {
			Data []rawListing `json:"data"`
		}
		if err2 := json.Unmarshal(payload, &env); err2 != nil || env.Data == nil {
			return nil, fmt.Errorf("storage.parseRawListings: %w", err)
		}
		raw = env.Data
	}

	listings := make([]domain.Listing, 0, len(raw))
	for _, r := range raw {
		breaks := make([]domain.PriceBreak, 0, len(r.Breaks))
		for _, b := range r.Breaks {
			breaks = append(breaks, domain.PriceBreak{MinQty: b.MinQty, UnitPrice: b.Price})
		}
		listings = append(listings, domain.Listing{
			VendorID:          r.VendorID,
			VendorName:        r.VendorName,
			InStock:           r.InStock,
			ShippingCost:      r.Shipping,
			ShippingDays:      r.ShippingDays,
			Inventory:         r.Inventory,
			BadgeID:           r.BadgeID,
			BadgeName:         r.BadgeName,
			Breaks:            breaks,
			FreeShipGap:       r.FreeShipGap,
			FreeShipThreshold: r.FreeShipThreshold,
		})
	}
	return listings, nil
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

var _ ports.Extractor = (*LegacyExtractor)(nil)
