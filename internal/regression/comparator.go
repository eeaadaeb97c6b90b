package regression

// comparator.go — corre el replay sobre un batch y computa estadísticas de
// match contra los desenlaces históricos, a nivel record y a nivel producto
// (three-way: histórico vs algoritmo actual vs legacy).

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/repricer/internal/domain"
	"github.com/alejandrodnm/repricer/internal/replay"
)

// progressEvery define cada cuántos records se loguea progreso en batches
// largos. Solo observabilidad: no afecta orden ni resultados.
const progressEvery = 100

// bucketMillis agrupa records del mismo producto en ventanas de 2 minutos.
// Es la heurística de "misma corrida del algoritmo": no hay una clave de
// correlación más fuerte disponible en el schema legacy.
const bucketMillis = 120_000

// Comparator compara decisiones históricas contra el replay.
type Comparator struct {
	engine *replay.Engine
}

// New crea un Comparator sobre el engine de replay dado.
func New(engine *replay.Engine) *Comparator {
	return &Comparator{engine: engine}
}

// CompareRecord re-ejecuta un record con el algoritmo actual y lo compara
// contra el desenlace histórico. Devuelve nil cuando no hay resultado para
// el par (vendor, cantidad) y el histórico fue NO_CHANGE: match implícito,
// sin diff.
func (c *Comparator) CompareRecord(ctx context.Context, rec domain.Record) *domain.BacktestDiff {
	results := c.engine.Replay(ctx, rec)
	res := domain.FindResult(results, rec.VendorID, rec.Quantity)

	if res == nil && rec.Historical.Category() == domain.NoChange {
		return nil
	}

	diff := &domain.BacktestDiff{
		RecordID:     rec.ID,
		JobID:        rec.JobID,
		ProductID:    rec.ProductID,
		VendorID:     rec.VendorID,
		Quantity:     rec.Quantity,
		HistCategory: rec.Historical.Category(),
		HistPrice:    rec.Historical.Price,
		HistComment:  rec.Historical.Comment,
		CurrCategory: domain.NoChange,
	}
	if res != nil {
		diff.CurrCategory = res.Category
		diff.CurrPrice = res.Price
		diff.CurrComment = res.Comment
	}
	diff.PriceDelta = domain.PriceDelta(diff.HistPrice, diff.CurrPrice)
	diff.Match = domain.DecisionsMatch(rec.Historical, res)
	return diff
}

// Run compara el batch completo a nivel record. Batch vacío ⇒ total 0 y
// match rate 1 (vacuamente verdadero), nunca un error.
func (c *Comparator) Run(ctx context.Context, recs []domain.Record) *domain.RegressionReport {
	started := time.Now()
	report := &domain.RegressionReport{
		RunID: uuid.New().String(),
		Total: len(recs),
	}

	matched := 0
	for i, rec := range recs {
		if (i+1)%progressEvery == 0 {
			slog.Info("regression progress", "done", i+1, "total", len(recs))
		}

		diff := c.CompareRecord(ctx, rec)
		if diff == nil {
			matched++ // match implícito, sin diff
			continue
		}
		if diff.CurrCategory == domain.Error {
			report.Errors++
		}
		if diff.Match {
			matched++
		}
		report.Diffs = append(report.Diffs, *diff)
	}

	report.Matched = matched
	report.MatchRate = rate(matched, report.Total)
	report.Elapsed = time.Since(started)
	return report
}

// RunProducts compara el batch a nivel producto: agrupa por (producto,
// bucket de 2 minutos), re-ejecuta cada record con ambas versiones del
// algoritmo y exige que todas las filas aplicables matcheen.
func (c *Comparator) RunProducts(ctx context.Context, recs []domain.Record) *domain.ProductReport {
	started := time.Now()
	report := &domain.ProductReport{RunID: uuid.New().String()}

	type groupKey struct {
		productID int64
		bucket    int64
	}
	groups := make(map[groupKey][]domain.Record)
	var order []groupKey
	for _, rec := range recs {
		k := groupKey{rec.ProductID, rec.At.UnixMilli() / bucketMillis}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], rec)
	}

	done := 0
	for _, k := range order {
		group := groups[k]
		diff := domain.ProductDiff{
			ProductID: k.productID,
			Bucket:    time.UnixMilli(k.bucket * bucketMillis).UTC(),
			Ranking:   buildRanking(group[0]),
		}

		currAll, legacyAll := true, true
		for _, rec := range group {
			done++
			if done%progressEvery == 0 {
				slog.Info("product regression progress", "done", done, "total", len(recs))
			}

			row := c.compareThreeWay(ctx, rec)
			diff.Decisions = append(diff.Decisions, row)

			if !row.CurrMatch {
				currAll = false
			}
			if row.LegacyMatch != nil {
				diff.HasLegacy = true
				if !*row.LegacyMatch {
					legacyAll = false
				}
			}
		}

		diff.CurrMatch = currAll
		diff.LegacyMatch = legacyAll
		// Match combinado: todas las filas aplicables en verde; las entradas
		// legacy no aplicables no bloquean.
		diff.Match = currAll && legacyAll

		report.TotalGroups++
		if diff.HasLegacy {
			report.LegacyGroups++
			if legacyAll {
				report.MatchedLegacy++
			}
		}
		if currAll {
			report.MatchedCurr++
		}
		if diff.Match {
			report.MatchedBoth++
		}
		report.Products = append(report.Products, diff)
	}

	report.RateBoth = rate(report.MatchedBoth, report.TotalGroups)
	report.RateCurr = rate(report.MatchedCurr, report.TotalGroups)
	report.RateLegacy = rate(report.MatchedLegacy, report.LegacyGroups)
	report.Elapsed = time.Since(started)
	return report
}

// compareThreeWay computa los booleans de match independientes de un record
// contra ambas versiones. El match legacy es nil (no aplica) cuando los
// settings legacy no son resolubles o el replay devolvió el sentinel SKIP.
func (c *Comparator) compareThreeWay(ctx context.Context, rec domain.Record) domain.VendorDecision {
	row := domain.VendorDecision{
		VendorID:     rec.VendorID,
		Quantity:     rec.Quantity,
		HistCategory: rec.Historical.Category(),
		HistPrice:    rec.Historical.Price,
		CurrCategory: domain.NoChange,
	}

	curr := domain.FindResult(c.engine.Replay(ctx, rec), rec.VendorID, rec.Quantity)
	if curr != nil {
		row.CurrCategory = curr.Category
		row.CurrPrice = curr.Price
	}
	row.CurrMatch = domain.DecisionsMatch(rec.Historical, curr)

	legacyResults := c.engine.ReplayLegacy(ctx, rec)
	if legacyResults == nil {
		return row
	}
	legacy := domain.FindResult(legacyResults, rec.VendorID, rec.Quantity)
	if legacy != nil {
		cat := legacy.Category
		row.LegacyCategory = &cat
		row.LegacyPrice = legacy.Price
		if cat == domain.Skip {
			// Precondición no cumplida: el record no puede evaluarse con el
			// algoritmo legacy; no cuenta en el denominador.
			return row
		}
	}
	m := domain.DecisionsMatch(rec.Historical, legacy)
	row.LegacyMatch = &m
	return row
}

// buildRanking arma el ranking de mercado desde el snapshot del primer
// record del grupo: precio total (unitario + shipping estándar) ascendente;
// listings sin precio unitario resoluble ordenan últimos.
func buildRanking(rec domain.Record) []domain.MarketRank {
	own := make(map[int64]bool, len(rec.OwnSettings))
	for _, id := range rec.OwnVendorIDs() {
		own[id] = true
	}

	ranking := make([]domain.MarketRank, 0, len(rec.Snapshot.Listings))
	for _, l := range rec.Snapshot.Listings {
		entry := domain.MarketRank{
			VendorID:   l.VendorID,
			VendorName: l.VendorName,
			IsOwn:      own[l.VendorID],
		}
		if unit, ok := l.UnitPrice(); ok {
			total := unit + l.ShippingCost
			entry.TotalPrice = &total
		}
		ranking = append(ranking, entry)
	}

	sort.SliceStable(ranking, func(i, j int) bool {
		a, b := ranking[i].TotalPrice, ranking[j].TotalPrice
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a < *b
		}
	})
	for i := range ranking {
		ranking[i].Position = i + 1
	}
	return ranking
}

// rate devuelve matched/total, con total 0 ⇒ 1 (match vacuo).
func rate(matched, total int) float64 {
	if total == 0 {
		return 1
	}
	return float64(matched) / float64(total)
}
