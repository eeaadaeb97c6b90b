package whatif

// analyzer.go — mide el impacto hipotético de un override parcial de
// settings: re-ejecuta cada record dos veces (baseline vs override) y
// clasifica el delta. El override nunca se persiste ni muta los records.

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/repricer/internal/domain"
	"github.com/alejandrodnm/repricer/internal/replay"
)

// ErrEmptyPatch: el override no tiene ningún campo seteado. Input malformado
// del caller; bloquea la operación en vez de defaultear en silencio.
var ErrEmptyPatch = errors.New("whatif: override patch has no fields set")

// deadband: diferencias de precio por debajo de esto no cuentan como cambio
// real.
const deadband = 0.001

const progressEvery = 100

// Analyzer corre el análisis what-if sobre un batch.
type Analyzer struct {
	engine     *replay.Engine
	maxSamples int
}

// New crea un Analyzer. maxSamples acota la lista de muestras del reporte
// (<=0 usa 50).
func New(engine *replay.Engine, maxSamples int) *Analyzer {
	if maxSamples <= 0 {
		maxSamples = 50
	}
	return &Analyzer{engine: engine, maxSamples: maxSamples}
}

// Run re-ejecuta cada record con los settings originales y con el patch
// aplicado, y agrega la clasificación de los deltas.
func (a *Analyzer) Run(ctx context.Context, recs []domain.Record, patch domain.SettingsPatch) (*domain.WhatIfReport, error) {
	if patch.IsEmpty() {
		return nil, ErrEmptyPatch
	}

	started := time.Now()
	report := &domain.WhatIfReport{
		RunID: uuid.New().String(),
		Total: len(recs),
	}

	var deltaSum float64
	var deltaN int

	for i, rec := range recs {
		if (i+1)%progressEvery == 0 {
			slog.Info("what-if progress", "done", i+1, "total", len(recs))
		}

		base := pick(a.engine.Replay(ctx, rec), rec)
		mod := pick(a.engine.ReplayWithOverrides(ctx, rec, patch), rec)

		if base.Price != nil && mod.Price != nil {
			deltaSum += *mod.Price - *base.Price
			deltaN++
		}

		kind, changed := classify(base, mod)
		if !changed {
			continue
		}
		report.Changed++
		switch kind {
		case domain.WhatIfNewlyRepriced:
			report.NewlyRepriced++
		case domain.WhatIfNoLongerRepriced:
			report.NoLongerRepriced++
		case domain.WhatIfPricedHigher:
			report.PricedHigher++
		case domain.WhatIfPricedLower:
			report.PricedLower++
		}

		if len(report.Samples) < a.maxSamples {
			report.Samples = append(report.Samples, domain.WhatIfSample{
				RecordID:     rec.ID,
				ProductID:    rec.ProductID,
				VendorID:     rec.VendorID,
				Quantity:     rec.Quantity,
				BaseCategory: base.Category,
				NewCategory:  mod.Category,
				BasePrice:    base.Price,
				NewPrice:     mod.Price,
				Delta:        domain.PriceDelta(base.Price, mod.Price),
				Kind:         kind,
			})
		}
	}

	if deltaN > 0 {
		report.AvgDelta = domain.Round4(deltaSum / float64(deltaN))
	}
	report.Elapsed = time.Since(started)
	return report, nil
}

// pick localiza el resultado del par (vendor, cantidad) del record; sin
// match defaultea a NO_CHANGE sin precio (el NO_SOLUTION canónico).
func pick(results []domain.ReplayResult, rec domain.Record) domain.ReplayResult {
	if r := domain.FindResult(results, rec.VendorID, rec.Quantity); r != nil {
		return *r
	}
	return domain.ReplayResult{
		ProductID: rec.ProductID,
		VendorID:  rec.VendorID,
		Quantity:  rec.Quantity,
		Category:  domain.NoChange,
	}
}

// classify aplica la clasificación mutuamente excluyente, en orden:
// idéntico ⇒ unchanged; cruce de categoría repricing ⇒ newly/noLonger;
// ambos con precio ⇒ higher/lower con deadband de 0.001 — por debajo no es
// un cambio real y no incrementa el contador.
func classify(base, mod domain.ReplayResult) (domain.WhatIfKind, bool) {
	if base.Category == mod.Category && samePrice(base.Price, mod.Price) {
		return domain.WhatIfUnchanged, false
	}

	switch {
	case !base.Category.IsPriceChange() && mod.Category.IsPriceChange():
		return domain.WhatIfNewlyRepriced, true
	case base.Category.IsPriceChange() && !mod.Category.IsPriceChange():
		return domain.WhatIfNoLongerRepriced, true
	}

	if base.Price != nil && mod.Price != nil {
		d := *mod.Price - *base.Price
		switch {
		case d > deadband:
			return domain.WhatIfPricedHigher, true
		case d < -deadband:
			return domain.WhatIfPricedLower, true
		default:
			// Sub-deadband: no es un cambio real.
			return domain.WhatIfUnchanged, false
		}
	}

	return domain.WhatIfChanged, true
}

func samePrice(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
