package main

// run.go — resolución de batch (storage o snapshot) y despacho de modos.

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/alejandrodnm/repricer/config"
	"github.com/alejandrodnm/repricer/internal/adapters/snapshot"
	"github.com/alejandrodnm/repricer/internal/adapters/storage"
	"github.com/alejandrodnm/repricer/internal/adapters/web"
	"github.com/alejandrodnm/repricer/internal/domain"
	"github.com/alejandrodnm/repricer/internal/ports"
	"github.com/alejandrodnm/repricer/internal/regression"
	"github.com/alejandrodnm/repricer/internal/whatif"
)

type runOptions struct {
	mode         string
	from         string
	to           string
	productIDs   string
	vendorIDs    string
	runName      string
	limit        int
	schema       string
	snapshotPath string
	outPath      string
	overridePath string
}

type runner struct {
	cfg        *config.Config
	comparator *regression.Comparator
	analyzer   *whatif.Analyzer
	reporter   ports.Reporter
	opts       runOptions

	extractors map[string]ports.Extractor
	stores     []*storage.Store
}

func (r *runner) close() {
	for _, s := range r.stores {
		s.Close()
	}
}

// runOnce ejecuta el modo configurado una vez.
func (r *runner) runOnce(ctx context.Context) error {
	switch r.opts.mode {
	case "regression":
		recs, err := r.batch(ctx)
		if err != nil {
			return err
		}
		return r.reporter.Regression(ctx, r.comparator.Run(ctx, recs))

	case "products":
		recs, err := r.batch(ctx)
		if err != nil {
			return err
		}
		return r.reporter.Products(ctx, r.comparator.RunProducts(ctx, recs))

	case "whatif":
		patch, err := loadPatch(r.opts.overridePath)
		if err != nil {
			return err
		}
		recs, err := r.batch(ctx)
		if err != nil {
			return err
		}
		report, err := r.analyzer.Run(ctx, recs, patch)
		if err != nil {
			return err
		}
		return r.reporter.WhatIf(ctx, report)

	case "export":
		if r.opts.outPath == "" {
			return fmt.Errorf("run: -mode export requires -out")
		}
		recs, err := r.extractFromStorage(ctx)
		if err != nil {
			return err
		}
		if err := snapshot.Write(r.opts.outPath, recs); err != nil {
			return err
		}
		slog.Info("snapshot written", "path", r.opts.outPath, "records", len(recs))
		return nil

	default:
		return fmt.Errorf("run: unknown mode %q", r.opts.mode)
	}
}

// serve levanta la superficie HTTP hasta que el contexto se cancele.
func (r *runner) serve(ctx context.Context) error {
	if err := r.ensureExtractors(); err != nil {
		return err
	}
	server := web.NewServer(r.extractors, r.comparator, r.analyzer)
	return server.Run(ctx, r.cfg.Web.Addr)
}

// batch devuelve los records a procesar: del snapshot portable si se pasó
// -snapshot, o extrayendo del storage.
func (r *runner) batch(ctx context.Context) ([]domain.Record, error) {
	if r.opts.snapshotPath != "" {
		recs, err := snapshot.Read(r.opts.snapshotPath)
		if err != nil {
			return nil, err
		}
		slog.Info("records loaded from snapshot", "path", r.opts.snapshotPath, "records", len(recs))
		return recs, nil
	}
	return r.extractFromStorage(ctx)
}

func (r *runner) extractFromStorage(ctx context.Context) ([]domain.Record, error) {
	w, err := parseWindow(r.opts.from, r.opts.to)
	if err != nil {
		return nil, err
	}
	products, err := splitIDs(r.opts.productIDs)
	if err != nil {
		return nil, fmt.Errorf("run: invalid -products: %w", err)
	}
	vendors, err := splitIDs(r.opts.vendorIDs)
	if err != nil {
		return nil, fmt.Errorf("run: invalid -vendors: %w", err)
	}
	f := ports.Filters{
		ProductIDs: products,
		VendorIDs:  vendors,
		RunName:    r.opts.runName,
		Limit:      r.opts.limit,
	}

	if err := r.ensureExtractors(); err != nil {
		return nil, err
	}
	extractor, ok := r.extractors[r.opts.schema]
	if !ok {
		return nil, fmt.Errorf("run: unknown schema %q", r.opts.schema)
	}

	recs, err := extractor.Extract(ctx, w, f)
	if err != nil {
		return nil, err
	}
	slog.Info("records extracted", "schema", r.opts.schema, "records", len(recs))
	return recs, nil
}

func (r *runner) ensureExtractors() error {
	if r.extractors != nil {
		return nil
	}
	extractors, stores, err := openExtractors(r.cfg)
	if err != nil {
		return err
	}
	r.extractors = extractors
	r.stores = stores
	return nil
}

// parseWindow acepta RFC 3339 o fecha corta; -to vacío = ahora.
func parseWindow(from, to string) (ports.Window, error) {
	if from == "" {
		return ports.Window{}, fmt.Errorf("run: -from is required when extracting from storage")
	}
	f, err := parseTime(from)
	if err != nil {
		return ports.Window{}, err
	}
	t := time.Now()
	if to != "" {
		if t, err = parseTime(to); err != nil {
			return ports.Window{}, err
		}
	}
	return ports.Window{From: f, To: t}, nil
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("run: invalid time %q (want RFC3339 or YYYY-MM-DD)", s)
	}
	return t, nil
}

// loadPatch lee el override parcial de settings desde un archivo JSON.
func loadPatch(path string) (domain.SettingsPatch, error) {
	if path == "" {
		return domain.SettingsPatch{}, fmt.Errorf("run: -mode whatif requires -override")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.SettingsPatch{}, fmt.Errorf("run: read override %q: %w", path, err)
	}
	var patch domain.SettingsPatch
	if err := json.Unmarshal(data, &patch); err != nil {
		return domain.SettingsPatch{}, fmt.Errorf("run: parse override %q: %w", path, err)
	}
	return patch, nil
}
