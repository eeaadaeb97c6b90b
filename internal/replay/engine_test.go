package replay

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/repricer/internal/domain"
	"github.com/alejandrodnm/repricer/internal/ports"
)

// stubAlgo devuelve decisiones fijas y captura el último input recibido.
type stubAlgo struct {
	decisions       []ports.Decision
	legacyDecisions []ports.Decision
	err             error
	panicMsg        string

	lastInput       ports.DecisionInput
	lastLegacyInput ports.DecisionInput
}

func (a *stubAlgo) Decide(_ context.Context, in ports.DecisionInput) ([]ports.Decision, error) {
	a.lastInput = in
	if a.panicMsg != "" {
		panic(a.panicMsg)
	}
	return a.decisions, a.err
}

func (a *stubAlgo) DecideLegacy(_ context.Context, in ports.DecisionInput) ([]ports.Decision, error) {
	a.lastLegacyInput = in
	if a.panicMsg != "" {
		panic(a.panicMsg)
	}
	return a.legacyDecisions, a.err
}

func fp(v float64) *float64 { return &v }

func makeRecord() domain.Record {
	settings := domain.DefaultSettings(55, 101)
	settings.SyncSisters = true // el replay debe apagarlo
	old := 10.0
	return domain.Record{
		ID:        1,
		JobID:     "job-1",
		ProductID: 55,
		VendorID:  101,
		Quantity:  1,
		Snapshot: domain.MarketSnapshot{
			ProductID: 55,
			Listings: []domain.Listing{
				{VendorID: 101, InStock: true, Breaks: []domain.PriceBreak{{MinQty: 1, UnitPrice: 10.00}}},
				{VendorID: 7, InStock: true, Breaks: []domain.PriceBreak{{MinQty: 1, UnitPrice: 9.50}}},
			},
		},
		Settings:    settings,
		OwnSettings: []domain.VendorSettings{settings},
		Thresholds:  []domain.VendorThreshold{{VendorID: 7, ShippingCost: 4.99, FreeShipThreshold: 50}},
		Historical:  domain.Historical{Tag: domain.TagChangeDown, Price: fp(9.49), ExistingPrice: &old},
	}
}

func TestEngine_Replay_Canonicalizes(t *testing.T) {
	algo := &stubAlgo{decisions: []ports.Decision{
		{VendorID: 101, Quantity: 1, Price: fp(9.49), Comment: "CHANGE $DOWN to 9.49 under vendor 7", TriggerVendor: 7, BreaksValid: true},
	}}
	e := New(algo, false, "")

	results := e.Replay(context.Background(), makeRecord())

	require.Len(t, results, 1)
	assert.Equal(t, domain.ChangeDown, results[0].Category)
	assert.Equal(t, 9.49, *results[0].Price)
	assert.Equal(t, int64(7), results[0].TriggerVendor)
}

func TestEngine_Replay_InfersDirectionFromListing(t *testing.T) {
	// Comment sin tag de dirección: el listing propio a 10.00 y el precio
	// nuevo a 10.50 infieren CHANGE_UP.
	algo := &stubAlgo{decisions: []ports.Decision{
		{VendorID: 101, Quantity: 1, Price: fp(10.50), Comment: "CHANGE to 10.50"},
	}}
	e := New(algo, false, "")

	results := e.Replay(context.Background(), makeRecord())

	require.Len(t, results, 1)
	assert.Equal(t, domain.ChangeUp, results[0].Category)
}

func TestEngine_Replay_Deterministic(t *testing.T) {
	algo := &stubAlgo{decisions: []ports.Decision{
		{VendorID: 101, Quantity: 1, Price: fp(9.49), Comment: "CHANGE $DOWN"},
	}}
	e := New(algo, false, "")
	rec := makeRecord()

	first := e.Replay(context.Background(), rec)
	second := e.Replay(context.Background(), rec)

	assert.Equal(t, first, second)
}

func TestEngine_Replay_SanitizesSyncSisters(t *testing.T) {
	algo := &stubAlgo{}
	e := New(algo, false, "")
	rec := makeRecord()

	e.Replay(context.Background(), rec)

	require.Len(t, algo.lastInput.Settings, 1)
	assert.False(t, algo.lastInput.Settings[0].SyncSisters)
	// El record original no se muta.
	assert.True(t, rec.Settings.SyncSisters)
}

func TestEngine_Replay_OverlaysFreeShipThreshold(t *testing.T) {
	algo := &stubAlgo{}
	e := New(algo, false, "")
	rec := makeRecord()
	rec.Snapshot.Listings[1].ShippingCost = 3.00
	rec.Snapshot.Listings[1].FreeShipThreshold = 25

	e.Replay(context.Background(), rec)

	l, ok := algo.lastInput.Snapshot.Listing(7)
	require.True(t, ok)
	// El umbral de envío gratis se pisa desde thresholds; el shipping
	// reportado se preserva verbatim.
	assert.Equal(t, 50.0, l.FreeShipThreshold)
	assert.Equal(t, 3.00, l.ShippingCost)
}

func TestEngine_Replay_ErrorContained(t *testing.T) {
	algo := &stubAlgo{err: errors.New("boom")}
	e := New(algo, false, "")

	results := e.Replay(context.Background(), makeRecord())

	require.Len(t, results, 1)
	assert.Equal(t, domain.Error, results[0].Category)
	assert.Contains(t, results[0].Comment, "boom")
}

func TestEngine_Replay_PanicContained(t *testing.T) {
	algo := &stubAlgo{panicMsg: "index out of range"}
	e := New(algo, false, "")

	results := e.Replay(context.Background(), makeRecord())

	require.Len(t, results, 1)
	assert.Equal(t, domain.Error, results[0].Category)
	assert.Contains(t, results[0].Comment, "index out of range")
}

func TestEngine_ReplayLegacy_NilWithoutSettings(t *testing.T) {
	algo := &stubAlgo{}
	e := New(algo, false, "")
	rec := makeRecord()
	rec.LegacySettings = nil

	assert.Nil(t, e.ReplayLegacy(context.Background(), rec))
}

func TestEngine_ReplayLegacy_SkipWithoutQtyOneBreak(t *testing.T) {
	algo := &stubAlgo{}
	e := New(algo, false, "")
	rec := makeRecord()
	ls := domain.DefaultSettings(55, 101)
	rec.LegacySettings = &ls
	// Listing propio presente pero sin escalón de cantidad 1.
	rec.Snapshot.Listings[0].Breaks = []domain.PriceBreak{{MinQty: 2, UnitPrice: 5.00}}

	results := e.ReplayLegacy(context.Background(), rec)

	require.Len(t, results, 1)
	assert.Equal(t, domain.Skip, results[0].Category)
	// El algoritmo no llega a invocarse.
	assert.Empty(t, algo.lastLegacyInput.JobID)
}

func TestEngine_ReplayLegacy_SwapsTargetSettings(t *testing.T) {
	algo := &stubAlgo{legacyDecisions: []ports.Decision{
		{VendorID: 101, Quantity: 1, Price: fp(9.49), Comment: "CHANGE #DOWN"},
	}}
	e := New(algo, false, "")
	rec := makeRecord()
	ls := domain.DefaultSettings(55, 101)
	ls.FloorPrice = 8.00
	rec.LegacySettings = &ls

	results := e.ReplayLegacy(context.Background(), rec)

	require.Len(t, results, 1)
	assert.Equal(t, domain.ChangeDown, results[0].Category)
	require.Len(t, algo.lastLegacyInput.Settings, 1)
	assert.Equal(t, 8.00, algo.lastLegacyInput.Settings[0].FloorPrice)
}

func TestEngine_ReplayWithOverrides_DoesNotMutate(t *testing.T) {
	algo := &stubAlgo{}
	e := New(algo, false, "")
	rec := makeRecord()
	origFloor := rec.Settings.FloorPrice

	floor := 9.75
	e.ReplayWithOverrides(context.Background(), rec, domain.SettingsPatch{FloorPrice: &floor})

	require.Len(t, algo.lastInput.Settings, 1)
	assert.Equal(t, 9.75, algo.lastInput.Settings[0].FloorPrice)
	assert.Equal(t, origFloor, rec.Settings.FloorPrice)
	assert.Equal(t, origFloor, rec.OwnSettings[0].FloorPrice)
}
