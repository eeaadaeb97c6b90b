package notify

// console.go — render de reportes en consola. Modo compacto de una línea
// para corridas programadas; tablas completas con -table para inspección.

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/repricer/internal/domain"
	"github.com/alejandrodnm/repricer/internal/ports"
)

// Console implementa ports.Reporter.
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole crea un reporter que escribe a stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter crea un reporter para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// Regression imprime el reporte record-level.
func (c *Console) Regression(_ context.Context, r *domain.RegressionReport) error {
	fmt.Fprintf(c.out, "[%s] regression %s: %d records, %d matched (%.2f%%), %d errors, %s\n",
		time.Now().Format("15:04:05"), shortID(r.RunID),
		r.Total, r.Matched, r.MatchRate*100, r.Errors, r.Elapsed.Round(time.Millisecond))

	if !c.table || len(r.Diffs) == 0 {
		return nil
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Record", "Product", "Vendor", "Qty", "Hist", "Curr", "Hist$", "Curr$", "Delta", "Match")
	for _, d := range r.Diffs {
		table.Append(
			fmt.Sprintf("%d", d.RecordID),
			fmt.Sprintf("%d", d.ProductID),
			fmt.Sprintf("%d", d.VendorID),
			fmt.Sprintf("%d", d.Quantity),
			string(d.HistCategory),
			string(d.CurrCategory),
			fmtPrice(d.HistPrice),
			fmtPrice(d.CurrPrice),
			fmtPrice(d.PriceDelta),
			fmtBool(d.Match),
		)
	}
	table.Render()
	return nil
}

// Products imprime el reporte three-way a nivel producto.
func (c *Console) Products(_ context.Context, r *domain.ProductReport) error {
	fmt.Fprintf(c.out, "[%s] products %s: %d groups | both %d (%.2f%%) | curr %d (%.2f%%) | legacy %d/%d (%.2f%%) | %s\n",
		time.Now().Format("15:04:05"), shortID(r.RunID),
		r.TotalGroups,
		r.MatchedBoth, r.RateBoth*100,
		r.MatchedCurr, r.RateCurr*100,
		r.MatchedLegacy, r.LegacyGroups, r.RateLegacy*100,
		r.Elapsed.Round(time.Millisecond))

	if !c.table {
		return nil
	}

	for _, p := range r.Products {
		fmt.Fprintf(c.out, "\nproduct %d @ %s  match=%v\n", p.ProductID, p.Bucket.Format(time.RFC3339), p.Match)

		rank := tablewriter.NewWriter(c.out)
		rank.Header("Pos", "Vendor", "Name", "Total$", "Own")
		for _, e := range p.Ranking {
			rank.Append(
				fmt.Sprintf("%d", e.Position),
				fmt.Sprintf("%d", e.VendorID),
				e.VendorName,
				fmtPrice(e.TotalPrice),
				fmtBool(e.IsOwn),
			)
		}
		rank.Render()

		rows := tablewriter.NewWriter(c.out)
		rows.Header("Vendor", "Qty", "Hist", "Hist$", "Curr", "Curr$", "CurrOK", "Legacy", "Legacy$", "LegacyOK")
		for _, d := range p.Decisions {
			legacyCat, legacyOK := "-", "-"
			if d.LegacyCategory != nil {
				legacyCat = string(*d.LegacyCategory)
			}
			if d.LegacyMatch != nil {
				legacyOK = fmtBool(*d.LegacyMatch)
			}
			rows.Append(
				fmt.Sprintf("%d", d.VendorID),
				fmt.Sprintf("%d", d.Quantity),
				string(d.HistCategory),
				fmtPrice(d.HistPrice),
				string(d.CurrCategory),
				fmtPrice(d.CurrPrice),
				fmtBool(d.CurrMatch),
				legacyCat,
				fmtPrice(d.LegacyPrice),
				legacyOK,
			)
		}
		rows.Render()
	}
	return nil
}

// WhatIf imprime el reporte de impacto de un override.
func (c *Console) WhatIf(_ context.Context, r *domain.WhatIfReport) error {
	fmt.Fprintf(c.out, "[%s] what-if %s: %d records, %d changed | +repriced %d | -repriced %d | higher %d | lower %d | avgΔ %.4f | %s\n",
		time.Now().Format("15:04:05"), shortID(r.RunID),
		r.Total, r.Changed,
		r.NewlyRepriced, r.NoLongerRepriced, r.PricedHigher, r.PricedLower,
		r.AvgDelta, r.Elapsed.Round(time.Millisecond))

	if !c.table || len(r.Samples) == 0 {
		return nil
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Record", "Product", "Vendor", "Qty", "Base", "New", "Base$", "New$", "Delta", "Kind")
	for _, s := range r.Samples {
		table.Append(
			fmt.Sprintf("%d", s.RecordID),
			fmt.Sprintf("%d", s.ProductID),
			fmt.Sprintf("%d", s.VendorID),
			fmt.Sprintf("%d", s.Quantity),
			string(s.BaseCategory),
			string(s.NewCategory),
			fmtPrice(s.BasePrice),
			fmtPrice(s.NewPrice),
			fmtPrice(s.Delta),
			string(s.Kind),
		)
	}
	table.Render()
	return nil
}

func fmtPrice(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%.4f", *p)
}

func fmtBool(b bool) string {
	if b {
		return "OK"
	}
	return "DIFF"
}

// shortID acorta el run id para el resumen de una línea.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

var _ ports.Reporter = (*Console)(nil)
