package storage

// resolve.go — memoización compartida por los dos extractors: settings por
// (producto, vendor), settings legacy por vendor y thresholds en una sola
// query batcheada. Los extractors difieren solo en el mapeo de filas; la
// resolución de settings/thresholds es idéntica y vive acá.

import (
	"context"

	"github.com/alejandrodnm/repricer/internal/domain"
)

// extractCache es el estado memoizado de UNA llamada a Extract. Ninguna
// lookup se repite dentro de una extracción; las caches nunca se comparten
// entre invocaciones.
type extractCache struct {
	settings  map[[2]int64]domain.VendorSettings
	legacy    map[[2]int64]*domain.VendorSettings
	snapshots map[string]*domain.MarketSnapshot // job_id → snapshot (nil = resuelto y ausente)
}

func newExtractCache() *extractCache {
	return &extractCache{
		settings:  make(map[[2]int64]domain.VendorSettings),
		legacy:    make(map[[2]int64]*domain.VendorSettings),
		snapshots: make(map[string]*domain.MarketSnapshot),
	}
}

// resolveSettings memoiza por (producto, vendor); fila ausente sintetiza los
// defaults documentados en lugar de fallar el record.
func (c *extractCache) resolveSettings(ctx context.Context, store *Store, productID, vendorID int64) (domain.VendorSettings, error) {
	key := [2]int64{productID, vendorID}
	if s, ok := c.settings[key]; ok {
		return s, nil
	}
	s, err := store.fetchSettings(ctx, "settings", productID, vendorID)
	if err != nil {
		return domain.VendorSettings{}, err
	}
	var out domain.VendorSettings
	if s == nil {
		out = domain.DefaultSettings(productID, vendorID)
	} else {
		out = *s
	}
	c.settings[key] = out
	return out, nil
}

func (c *extractCache) resolveOwnSettings(ctx context.Context, store *Store, ownVendors []int64, productID int64) ([]domain.VendorSettings, error) {
	out := make([]domain.VendorSettings, 0, len(ownVendors))
	for _, vendorID := range ownVendors {
		s, err := c.resolveSettings(ctx, store, productID, vendorID)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// resolveLegacy memoiza settings legacy; ausente ⇒ nil (el algoritmo legacy
// no aplica para el vendor, no es un error).
func (c *extractCache) resolveLegacy(ctx context.Context, store *Store, productID, vendorID int64) (*domain.VendorSettings, error) {
	key := [2]int64{productID, vendorID}
	if s, seen := c.legacy[key]; seen {
		return s, nil
	}
	s, err := store.fetchSettings(ctx, "legacy_settings", productID, vendorID)
	if err != nil {
		return nil, err
	}
	c.legacy[key] = s
	return s, nil
}

// attachThresholds trae los thresholds de la unión de vendors vistos en los
// snapshots resueltos (una query) y asigna a cada record los de su snapshot.
func attachThresholds(ctx context.Context, store *Store, records []domain.Record) error {
	var union []int64
	for _, rec := range records {
		union = append(union, rec.Snapshot.VendorIDs()...)
	}
	union = uniqueIDs(union)

	thresholds, err := store.fetchThresholds(ctx, union)
	if err != nil {
		return err
	}
	byVendor := make(map[int64]domain.VendorThreshold, len(thresholds))
	for _, t := range thresholds {
		byVendor[t.VendorID] = t
	}

	for i := range records {
		var own []domain.VendorThreshold
		for _, id := range records[i].Snapshot.VendorIDs() {
			if t, ok := byVendor[id]; ok {
				own = append(own, t)
			}
		}
		records[i].Thresholds = own
	}
	return nil
}
