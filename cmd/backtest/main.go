package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/alejandrodnm/repricer/config"
	"github.com/alejandrodnm/repricer/internal/adapters/algorithm"
	"github.com/alejandrodnm/repricer/internal/adapters/notify"
	"github.com/alejandrodnm/repricer/internal/adapters/storage"
	"github.com/alejandrodnm/repricer/internal/ports"
	"github.com/alejandrodnm/repricer/internal/regression"
	"github.com/alejandrodnm/repricer/internal/replay"
	"github.com/alejandrodnm/repricer/internal/whatif"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	mode := flag.String("mode", "regression", "regression|products|whatif|export|serve")
	from := flag.String("from", "", "window start (RFC3339 or YYYY-MM-DD)")
	to := flag.String("to", "", "window end (RFC3339 or YYYY-MM-DD, default now)")
	productIDs := flag.String("products", "", "comma-separated product id filter")
	vendorIDs := flag.String("vendors", "", "comma-separated vendor id filter")
	runName := flag.String("run", "", "run/context name filter")
	limit := flag.Int("limit", 0, "max rows to extract (0 = no limit)")
	schema := flag.String("schema", "current", "storage schema: current|legacy")
	snapshotPath := flag.String("snapshot", "", "read records from snapshot file instead of storage")
	outPath := flag.String("out", "", "output path for -mode export")
	overridePath := flag.String("override", "", "JSON settings patch file for -mode whatif")
	table := flag.Bool("table", false, "print full tables (default: compact 1-line)")
	cronSpec := flag.String("cron", "", "run the mode on a cron schedule instead of once")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("repricer backtest starting",
		"config", *configPath,
		"mode", *mode,
		"schema", *schema,
		"snapshot", *snapshotPath,
		"cron", *cronSpec,
	)

	engine := replay.New(algorithm.New(), cfg.Replay.SlowRun, cfg.Replay.SourceURL)
	comparator := regression.New(engine)
	analyzer := whatif.New(engine, cfg.Replay.MaxSamples)
	reporter := notify.NewConsole(*table)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	r := &runner{
		cfg:        cfg,
		comparator: comparator,
		analyzer:   analyzer,
		reporter:   reporter,
		opts: runOptions{
			mode:         *mode,
			from:         *from,
			to:           *to,
			productIDs:   *productIDs,
			vendorIDs:    *vendorIDs,
			runName:      *runName,
			limit:        *limit,
			schema:       *schema,
			snapshotPath: *snapshotPath,
			outPath:      *outPath,
			overridePath: *overridePath,
		},
	}
	defer r.close()

	if *mode == "serve" {
		if err := r.serve(ctx); err != nil {
			slog.Error("web server exited with error", "err", err)
			os.Exit(1)
		}
		return
	}

	if *cronSpec != "" {
		runScheduled(ctx, *cronSpec, r)
		return
	}

	if err := r.runOnce(ctx); err != nil {
		slog.Error("run failed", "err", err)
		os.Exit(1)
	}
	slog.Info("done")
}

// runScheduled corre el modo en cada tick del cron hasta SIGINT.
func runScheduled(ctx context.Context, spec string, r *runner) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if err := r.runOnce(ctx); err != nil {
			slog.Error("scheduled run failed", "err", err)
		}
	})
	if err != nil {
		slog.Error("invalid cron spec", "spec", spec, "err", err)
		os.Exit(1)
	}

	slog.Info("scheduler started", "spec", spec)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	slog.Info("scheduler stopped cleanly")
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// openExtractors abre los stores y arma ambos extractors. El caller es
// responsable de cerrar los stores devueltos.
func openExtractors(cfg *config.Config) (map[string]ports.Extractor, []*storage.Store, error) {
	current, err := storage.Open(cfg.Storage.DSN, cfg.QueryInterval())
	if err != nil {
		return nil, nil, err
	}
	stores := []*storage.Store{current}

	legacyStore := current
	if cfg.Storage.LegacyDSN != cfg.Storage.DSN {
		legacyStore, err = storage.Open(cfg.Storage.LegacyDSN, cfg.QueryInterval())
		if err != nil {
			current.Close()
			return nil, nil, err
		}
		stores = append(stores, legacyStore)
	}

	extractors := map[string]ports.Extractor{
		"current": storage.NewCurrentExtractor(current, cfg.Vendors.OwnIDs),
		"legacy":  storage.NewLegacyExtractor(legacyStore, cfg.Vendors.OwnIDs, cfg.ChannelVendor),
	}
	return extractors, stores, nil
}

// splitIDs parsea una lista de ids separada por comas. Un id no numérico es
// un error: correr sin filtro porque el filtro no parseó sería extraer el
// rango entero contra la réplica.
func splitIDs(s string) ([]int64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	return config.ParseIDList(s)
}
