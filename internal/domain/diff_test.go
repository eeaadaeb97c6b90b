package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func fp(v float64) *float64 { return &v }

func TestPricesMatch(t *testing.T) {
	cases := []struct {
		name string
		a, b *float64
		want bool
	}{
		{"both nil", nil, nil, true},
		{"one nil", fp(9.50), nil, false},
		{"other nil", nil, fp(9.50), false},
		{"equal", fp(9.50), fp(9.50), true},
		// Exactamente en el límite del centavo.
		{"boundary one cent", fp(9.50), fp(9.49), true},
		{"over one cent", fp(9.50), fp(9.48), false},
		{"symmetric", fp(9.49), fp(9.50), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, PricesMatch(tc.a, tc.b))
		})
	}
}

func TestRound4(t *testing.T) {
	assert.Equal(t, 0.0001, Round4(0.00012))
	assert.Equal(t, -0.01, Round4(-0.010000001))
	assert.Equal(t, 0.0, Round4(0))
}

func TestPriceDelta(t *testing.T) {
	assert.Nil(t, PriceDelta(nil, fp(9.49)))
	assert.Nil(t, PriceDelta(fp(9.50), nil))

	d := PriceDelta(fp(9.50), fp(9.49))
	if assert.NotNil(t, d) {
		assert.Equal(t, -0.01, *d)
	}
}

func TestDecisionsMatch(t *testing.T) {
	histChange := Historical{Tag: TagChangeDown, Price: fp(9.50)}
	histNoChange := Historical{Tag: TagIgnoreFloor}

	// Misma categoría, precio dentro de tolerancia.
	assert.True(t, DecisionsMatch(histChange, &ReplayResult{
		Category: ChangeDown, Price: fp(9.49),
	}))

	// Mismatch de categoría manda aunque los precios sean idénticos.
	assert.False(t, DecisionsMatch(histChange, &ReplayResult{
		Category: ChangeUp, Price: fp(9.50),
	}))

	// Precio fuera de tolerancia.
	assert.False(t, DecisionsMatch(histChange, &ReplayResult{
		Category: ChangeDown, Price: fp(9.40),
	}))

	// Sin resultado del replay: solo matchea un histórico NO_CHANGE.
	assert.True(t, DecisionsMatch(histNoChange, nil))
	assert.False(t, DecisionsMatch(histChange, nil))
}
