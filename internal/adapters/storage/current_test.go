package storage

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/repricer/internal/domain"
	"github.com/alejandrodnm/repricer/internal/ports"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:", 0)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func fp(v float64) *float64 { return &v }

func marshalListings(t *testing.T, listings []domain.Listing) string {
	t.Helper()
	data, err := json.Marshal(listings)
	require.NoError(t, err)
	return string(data)
}

func testListings() []domain.Listing {
	return []domain.Listing{
		{VendorID: 101, VendorName: "own", InStock: true, Breaks: []domain.PriceBreak{{MinQty: 1, UnitPrice: 10.00}}},
		{VendorID: 7, VendorName: "rival", InStock: true, ShippingCost: 1.50, Breaks: []domain.PriceBreak{{MinQty: 1, UnitPrice: 9.50}}},
	}
}

func insertDecision(t *testing.T, store *Store, jobID string, productID, vendorID int64, price *float64, comment, category string, at time.Time) {
	t.Helper()
	_, err := store.DB().Exec(
		`INSERT INTO decision_log
		   (job_id, product_id, vendor_id, quantity, suggested_price, comment, category, created_at)
		 VALUES (?, ?, ?, 1, ?, ?, ?, ?)`,
		jobID, productID, vendorID, price, comment, category, at)
	require.NoError(t, err)
}

func insertSnapshot(t *testing.T, store *Store, productID int64, at time.Time, payload string) {
	t.Helper()
	_, err := store.DB().Exec(
		`INSERT INTO market_snapshots (product_id, captured_at, payload) VALUES (?, ?, ?)`,
		productID, at, payload)
	require.NoError(t, err)
}

func TestCurrentExtractor_Extract(t *testing.T) {
	store := newTestStore(t)
	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	insertDecision(t, store, "j1", 55, 101, fp(9.49), "CHANGE $DOWN to 9.49 under vendor 7", "CHANGE_DOWN", at)
	// Dos snapshots dentro de la ventana: gana el más cercano.
	insertSnapshot(t, store, 55, at.Add(-30*time.Second), marshalListings(t, testListings()))
	far := testListings()
	far[1].Breaks[0].UnitPrice = 1.00
	insertSnapshot(t, store, 55, at.Add(50*time.Second), marshalListings(t, far))

	_, err := store.DB().Exec(
		`INSERT INTO settings (product_id, vendor_id, floor_price, sister_vendors) VALUES (55, 101, 5.0, '102,103')`)
	require.NoError(t, err)
	_, err = store.DB().Exec(
		`INSERT INTO vendor_thresholds (vendor_id, shipping_cost, free_ship_threshold) VALUES (7, 4.99, 50)`)
	require.NoError(t, err)

	e := NewCurrentExtractor(store, []int64{101})
	recs, err := e.Extract(context.Background(), ports.Window{From: at.Add(-time.Hour), To: at.Add(time.Hour)}, ports.Filters{})

	require.NoError(t, err)
	require.Len(t, recs, 1)
	rec := recs[0]

	assert.Equal(t, "j1", rec.JobID)
	assert.Equal(t, int64(55), rec.ProductID)
	assert.Equal(t, int64(101), rec.VendorID)
	assert.Equal(t, domain.TagChangeDown, rec.Historical.Tag)
	assert.Equal(t, 9.49, *rec.Historical.Price)

	// Snapshot resuelto: el más cercano (−30s), no el de +50s.
	rival, ok := rec.Snapshot.Listing(7)
	require.True(t, ok)
	assert.Equal(t, 9.50, rival.Breaks[0].UnitPrice)

	// Settings de la tabla, con el CSV de sisters parseado.
	assert.Equal(t, 5.0, rec.Settings.FloorPrice)
	assert.Equal(t, []int64{102, 103}, rec.Settings.SisterVendors)

	// Thresholds de los vendors del snapshot.
	require.Len(t, rec.Thresholds, 1)
	assert.Equal(t, int64(7), rec.Thresholds[0].VendorID)
	assert.Equal(t, 50.0, rec.Thresholds[0].FreeShipThreshold)

	// Sin fila en legacy_settings: el algoritmo legacy no aplica.
	assert.Nil(t, rec.LegacySettings)
}

func TestCurrentExtractor_DropsJobWithoutSnapshot(t *testing.T) {
	store := newTestStore(t)
	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	insertDecision(t, store, "j1", 55, 101, nil, "IGNORE: ALREADY LOWEST", "", at)
	// Snapshot fuera de la ventana de ±60s.
	insertSnapshot(t, store, 55, at.Add(90*time.Second), marshalListings(t, testListings()))

	e := NewCurrentExtractor(store, []int64{101})
	recs, err := e.Extract(context.Background(), ports.Window{From: at.Add(-time.Hour), To: at.Add(time.Hour)}, ports.Filters{})

	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestCurrentExtractor_MalformedSnapshotDropsJob(t *testing.T) {
	store := newTestStore(t)
	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	insertDecision(t, store, "j1", 55, 101, nil, "IGNORE: ALREADY LOWEST", "", at)
	insertSnapshot(t, store, 55, at, `{not json`)

	e := NewCurrentExtractor(store, []int64{101})
	recs, err := e.Extract(context.Background(), ports.Window{From: at.Add(-time.Hour), To: at.Add(time.Hour)}, ports.Filters{})

	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestCurrentExtractor_SynthesizesDefaultSettings(t *testing.T) {
	store := newTestStore(t)
	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	insertDecision(t, store, "j1", 55, 101, nil, "N/A", "", at)
	insertSnapshot(t, store, 55, at, marshalListings(t, testListings()))

	e := NewCurrentExtractor(store, []int64{101})
	recs, err := e.Extract(context.Background(), ports.Window{From: at.Add(-time.Hour), To: at.Add(time.Hour)}, ports.Filters{})

	require.NoError(t, err)
	require.Len(t, recs, 1)

	// Sin fila en settings se sintetizan los defaults documentados.
	assert.Equal(t, domain.DefaultCeiling, recs[0].Settings.CeilingPrice)
	assert.Equal(t, domain.DirectionUpDown, recs[0].Settings.Direction)
	assert.True(t, recs[0].Settings.Enabled)
	assert.Equal(t, domain.TagNoSolution, recs[0].Historical.Tag)
}

func TestCurrentExtractor_ResolvesLegacySettings(t *testing.T) {
	store := newTestStore(t)
	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	insertDecision(t, store, "j1", 55, 101, fp(9.49), "CHANGE $DOWN", "CHANGE_DOWN", at)
	insertSnapshot(t, store, 55, at, marshalListings(t, testListings()))
	_, err := store.DB().Exec(
		`INSERT INTO legacy_settings (product_id, vendor_id, floor_price) VALUES (55, 101, 7.5)`)
	require.NoError(t, err)

	e := NewCurrentExtractor(store, []int64{101})
	recs, err := e.Extract(context.Background(), ports.Window{From: at.Add(-time.Hour), To: at.Add(time.Hour)}, ports.Filters{})

	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.NotNil(t, recs[0].LegacySettings)
	assert.Equal(t, 7.5, recs[0].LegacySettings.FloorPrice)
}

func TestCurrentExtractor_Filters(t *testing.T) {
	store := newTestStore(t)
	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	insertDecision(t, store, "j1", 55, 101, nil, "N/A", "", at)
	insertDecision(t, store, "j2", 56, 101, nil, "N/A", "", at)
	insertSnapshot(t, store, 55, at, marshalListings(t, testListings()))
	insertSnapshot(t, store, 56, at, marshalListings(t, testListings()))

	e := NewCurrentExtractor(store, []int64{101})
	recs, err := e.Extract(context.Background(),
		ports.Window{From: at.Add(-time.Hour), To: at.Add(time.Hour)},
		ports.Filters{ProductIDs: []int64{56}})

	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, int64(56), recs[0].ProductID)
}

func TestHistoricalTag(t *testing.T) {
	// Categoría registrada conocida gana sobre el comment.
	assert.Equal(t, domain.TagChangeUp, historicalTag("CHANGE_UP", "whatever"))
	// Desconocida: cae a clasificar el texto libre.
	assert.Equal(t, domain.TagIgnoreFloor, historicalTag("legacy-junk", "IGNORE: HITFLOOR"))
	assert.Equal(t, domain.TagNoSolution, historicalTag("", ""))
}

func TestParseCSVIDs(t *testing.T) {
	assert.Nil(t, parseCSVIDs(""))
	assert.Equal(t, []int64{12, 34}, parseCSVIDs("12, 34"))
	// Entradas no numéricas se ignoran.
	assert.Equal(t, []int64{7}, parseCSVIDs("7,abc,"))
	assert.Equal(t, "12,34", joinCSVIDs([]int64{12, 34}))
}
