package snapshot

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/repricer/internal/domain"
)

func TestWriteRead_Roundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.json")
	price := 9.49
	settings := domain.DefaultSettings(55, 101)

	records := []domain.Record{{
		ID:        1,
		JobID:     "j1",
		ProductID: 55,
		VendorID:  101,
		Quantity:  1,
		At:        time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
		Snapshot: domain.MarketSnapshot{
			ProductID:  55,
			CapturedAt: time.Date(2026, 3, 10, 11, 59, 30, 0, time.UTC),
			Listings: []domain.Listing{
				{VendorID: 7, InStock: true, Breaks: []domain.PriceBreak{{MinQty: 1, UnitPrice: 9.50}}},
			},
		},
		Settings:    settings,
		OwnSettings: []domain.VendorSettings{settings},
		Historical:  domain.Historical{Tag: domain.TagChangeDown, Price: &price},
	}}

	require.NoError(t, Write(path, records))

	got, err := Read(path)
	require.NoError(t, err)
	require.Len(t, got, 1)

	// Los timestamps se rehidratan al mismo instante.
	assert.True(t, got[0].At.Equal(records[0].At))
	assert.True(t, got[0].Snapshot.CapturedAt.Equal(records[0].Snapshot.CapturedAt))
	assert.Equal(t, records[0].Historical.Tag, got[0].Historical.Tag)
	assert.Equal(t, 9.49, *got[0].Historical.Price)
	assert.Equal(t, records[0].Settings, got[0].Settings)
}

func TestWrite_NilBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")

	require.NoError(t, Write(path, nil))

	got, err := Read(path)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRead_MissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
