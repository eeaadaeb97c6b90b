package notify

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/repricer/internal/domain"
)

func fp(v float64) *float64 { return &v }

func TestConsole_Regression(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleWriter(&buf, true)

	err := c.Regression(context.Background(), &domain.RegressionReport{
		RunID:     "0d4f8c1a-aaaa-bbbb-cccc-000000000000",
		Total:     2,
		Matched:   1,
		MatchRate: 0.5,
		Diffs: []domain.BacktestDiff{{
			RecordID:     1,
			ProductID:    55,
			VendorID:     101,
			Quantity:     1,
			HistCategory: domain.ChangeDown,
			CurrCategory: domain.ChangeUp,
			HistPrice:    fp(9.50),
			CurrPrice:    fp(9.80),
			PriceDelta:   fp(0.30),
		}},
	})

	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "2 records, 1 matched (50.00%)")
	assert.Contains(t, out, "0d4f8c1a")
	assert.Contains(t, out, "CHANGE_UP")
	assert.Contains(t, out, "9.5000")
}

func TestConsole_Regression_CompactSkipsTable(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleWriter(&buf, false)

	err := c.Regression(context.Background(), &domain.RegressionReport{
		RunID: "run", Total: 1, Matched: 1, MatchRate: 1,
		Diffs: []domain.BacktestDiff{{RecordID: 1, HistCategory: domain.NoChange, CurrCategory: domain.NoChange}},
	})

	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "Record")
}

func TestConsole_Products(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleWriter(&buf, true)

	legacyCat := domain.ChangeDown
	legacyOK := true
	err := c.Products(context.Background(), &domain.ProductReport{
		RunID:       "run",
		TotalGroups: 1, MatchedBoth: 1, RateBoth: 1, MatchedCurr: 1, RateCurr: 1,
		LegacyGroups: 1, MatchedLegacy: 1, RateLegacy: 1,
		Products: []domain.ProductDiff{{
			ProductID: 55,
			Ranking: []domain.MarketRank{
				{Position: 1, VendorID: 7, VendorName: "rival", TotalPrice: fp(10.50)},
				{Position: 2, VendorID: 9, VendorName: "empty"},
			},
			Decisions: []domain.VendorDecision{{
				VendorID: 101, Quantity: 1,
				HistCategory: domain.ChangeDown, HistPrice: fp(9.50),
				CurrCategory: domain.ChangeDown, CurrPrice: fp(9.49), CurrMatch: true,
				LegacyCategory: &legacyCat, LegacyPrice: fp(9.49), LegacyMatch: &legacyOK,
			}},
			Match: true, CurrMatch: true, LegacyMatch: true, HasLegacy: true,
		}},
	})

	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "1 groups")
	assert.Contains(t, out, "rival")
	// Listing sin precio resoluble se imprime con guión.
	assert.Contains(t, out, "-")
	assert.Contains(t, out, "OK")
}

func TestConsole_WhatIf(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleWriter(&buf, true)

	err := c.WhatIf(context.Background(), &domain.WhatIfReport{
		RunID: "run", Total: 10, Changed: 2, PricedHigher: 2, AvgDelta: 0.02,
		Samples: []domain.WhatIfSample{{
			RecordID: 1, ProductID: 55, VendorID: 101, Quantity: 1,
			BaseCategory: domain.ChangeDown, NewCategory: domain.ChangeDown,
			BasePrice: fp(10.00), NewPrice: fp(10.02), Delta: fp(0.02),
			Kind: domain.WhatIfPricedHigher,
		}},
	})

	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "10 records, 2 changed")
	assert.Contains(t, out, "PRICED_HIGHER")
	assert.Contains(t, out, "0.0200")
}
