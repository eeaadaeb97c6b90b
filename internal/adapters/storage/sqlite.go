package storage

// sqlite.go — acceso compartido a las tablas de pricing.
//
// Estrategia:
//   - Un Store por schema (actual y legacy pueden vivir en bases distintas).
//   - El schema se aplica con IF NOT EXISTS: contra la réplica de producción
//     es un no-op, y permite levantar bases efímeras en tests y corridas
//     locales.
//   - Rate limiting opcional por query: los backtests suelen correr contra
//     una réplica compartida y no deben saturarla.
//   - Las listas de vendors (sisters, excluidos) se guardan como CSV en una
//     columna de texto, igual que en las tablas de origen.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/time/rate"
	_ "modernc.org/sqlite"

	"github.com/alejandrodnm/repricer/internal/domain"
)

func init() {
	// El driver de modernc se registra como "sqlite"; sqlx no lo conoce.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

const schema = `
-- Decision log del schema actual: una fila por (job, vendor, cantidad)
CREATE TABLE IF NOT EXISTS decision_log (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    job_id          TEXT    NOT NULL,
    product_id      INTEGER NOT NULL,
    vendor_id       INTEGER NOT NULL,
    quantity        INTEGER NOT NULL DEFAULT 1,
    suggested_price REAL,
    comment         TEXT    NOT NULL DEFAULT '',
    trigger_vendor  INTEGER NOT NULL DEFAULT 0,
    category        TEXT    NOT NULL DEFAULT '',
    run_name        TEXT    NOT NULL DEFAULT '',
    breaks_valid    INTEGER NOT NULL DEFAULT 1,
    lowest_price    REAL,
    lowest_vendor   INTEGER NOT NULL DEFAULT 0,
    created_at      DATETIME NOT NULL
);

-- Snapshot de mercado serializado, capturado cerca de cada corrida
CREATE TABLE IF NOT EXISTS market_snapshots (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    product_id  INTEGER NOT NULL,
    captured_at DATETIME NOT NULL,
    payload     TEXT    NOT NULL
);

-- Settings por (producto, vendor); legacy_settings es el espejo para la
-- versión legacy del algoritmo
CREATE TABLE IF NOT EXISTS settings (
    product_id            INTEGER NOT NULL,
    vendor_id             INTEGER NOT NULL,
    floor_price           REAL    NOT NULL DEFAULT 0,
    ceiling_price         REAL    NOT NULL DEFAULT 1e8,
    basis                 TEXT    NOT NULL DEFAULT 'UNIT',
    direction             TEXT    NOT NULL DEFAULT 'UP_DOWN',
    badge_mode            TEXT    NOT NULL DEFAULT 'ALL',
    handling_group        TEXT    NOT NULL DEFAULT 'ALL',
    max_up_pct            REAL    NOT NULL DEFAULT -1,
    max_down_pct          REAL    NOT NULL DEFAULT -1,
    max_up_pct_badge      REAL    NOT NULL DEFAULT -1,
    max_down_pct_badge    REAL    NOT NULL DEFAULT -1,
    sister_vendors        TEXT    NOT NULL DEFAULT '',
    excluded_vendors      TEXT    NOT NULL DEFAULT '',
    inactive_vendor       INTEGER NOT NULL DEFAULT 0,
    inventory_threshold   INTEGER NOT NULL DEFAULT 1,
    keep_position         INTEGER NOT NULL DEFAULT 0,
    compete_with_all      INTEGER NOT NULL DEFAULT 0,
    floor_compete_next    INTEGER NOT NULL DEFAULT 0,
    suppress_breaks       INTEGER NOT NULL DEFAULT 0,
    suppress_badge_breaks INTEGER NOT NULL DEFAULT 0,
    sync_sisters          INTEGER NOT NULL DEFAULT 0,
    priority              INTEGER NOT NULL DEFAULT 0,
    enabled               INTEGER NOT NULL DEFAULT 1,
    PRIMARY KEY (product_id, vendor_id)
);

CREATE TABLE IF NOT EXISTS legacy_settings (
    product_id            INTEGER NOT NULL,
    vendor_id             INTEGER NOT NULL,
    floor_price           REAL    NOT NULL DEFAULT 0,
    ceiling_price         REAL    NOT NULL DEFAULT 1e8,
    basis                 TEXT    NOT NULL DEFAULT 'UNIT',
    direction             TEXT    NOT NULL DEFAULT 'UP_DOWN',
    badge_mode            TEXT    NOT NULL DEFAULT 'ALL',
    handling_group        TEXT    NOT NULL DEFAULT 'ALL',
    max_up_pct            REAL    NOT NULL DEFAULT -1,
    max_down_pct          REAL    NOT NULL DEFAULT -1,
    max_up_pct_badge      REAL    NOT NULL DEFAULT -1,
    max_down_pct_badge    REAL    NOT NULL DEFAULT -1,
    sister_vendors        TEXT    NOT NULL DEFAULT '',
    excluded_vendors      TEXT    NOT NULL DEFAULT '',
    inactive_vendor       INTEGER NOT NULL DEFAULT 0,
    inventory_threshold   INTEGER NOT NULL DEFAULT 1,
    keep_position         INTEGER NOT NULL DEFAULT 0,
    compete_with_all      INTEGER NOT NULL DEFAULT 0,
    floor_compete_next    INTEGER NOT NULL DEFAULT 0,
    suppress_breaks       INTEGER NOT NULL DEFAULT 0,
    suppress_badge_breaks INTEGER NOT NULL DEFAULT 0,
    sync_sisters          INTEGER NOT NULL DEFAULT 0,
    priority              INTEGER NOT NULL DEFAULT 0,
    enabled               INTEGER NOT NULL DEFAULT 1,
    PRIMARY KEY (product_id, vendor_id)
);

CREATE TABLE IF NOT EXISTS vendor_thresholds (
    vendor_id           INTEGER PRIMARY KEY,
    shipping_cost       REAL NOT NULL DEFAULT 0,
    free_ship_threshold REAL NOT NULL DEFAULT 0
);

-- History legacy: texto libre, una fila por decisión
CREATE TABLE IF NOT EXISTS history (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    product_id     INTEGER NOT NULL,
    channel        TEXT    NOT NULL,
    existing_price REAL,
    min_qty        INTEGER NOT NULL DEFAULT 1,
    rank           INTEGER NOT NULL DEFAULT 0,
    lowest_vendor  INTEGER NOT NULL DEFAULT 0,
    lowest_price   REAL,
    suggested_price REAL,
    comment        TEXT    NOT NULL DEFAULT '',
    triggered_by   INTEGER NOT NULL DEFAULT 0,
    response_id    INTEGER NOT NULL DEFAULT 0,
    run_name       TEXT    NOT NULL DEFAULT '',
    ref_time       DATETIME NOT NULL
);

-- Respuesta cruda del marketplace, linkeada desde history
CREATE TABLE IF NOT EXISTS raw_responses (
    id       INTEGER PRIMARY KEY AUTOINCREMENT,
    ref_time DATETIME NOT NULL,
    payload  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_log_created  ON decision_log(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_log_product  ON decision_log(product_id);
CREATE INDEX IF NOT EXISTS idx_snap_product ON market_snapshots(product_id, captured_at);
CREATE INDEX IF NOT EXISTS idx_hist_ref     ON history(ref_time DESC);
`

// Store es la conexión a un schema de pricing (actual o legacy).
type Store struct {
	db      *sqlx.DB
	limiter *rate.Limiter // nil = sin límite
}

// Open abre (o crea) la base en el DSN dado y aplica el schema.
// queryInterval > 0 espacia las queries contra la réplica; el valor sale de
// config.Config.QueryInterval.
func Open(dsn string, queryInterval time.Duration) (*Store, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage.Open: open %q: %w", dsn, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.Open: apply schema: %w", err)
	}

	var limiter *rate.Limiter
	if queryInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(queryInterval), 1)
	}
	return &Store{db: db, limiter: limiter}, nil
}

// DB expone la conexión para seeds de tests y fixtures.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Close cierra la conexión limpiamente.
func (s *Store) Close() error {
	return s.db.Close()
}

// wait respeta el rate limit antes de cada query.
func (s *Store) wait(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Wait(ctx)
}

// settingsRow es la fila cruda de settings / legacy_settings.
type settingsRow struct {
	ProductID           int64   `db:"product_id"`
	VendorID            int64   `db:"vendor_id"`
	FloorPrice          float64 `db:"floor_price"`
	CeilingPrice        float64 `db:"ceiling_price"`
	Basis               string  `db:"basis"`
	Direction           string  `db:"direction"`
	BadgeMode           string  `db:"badge_mode"`
	HandlingGroup       string  `db:"handling_group"`
	MaxUpPct            float64 `db:"max_up_pct"`
	MaxDownPct          float64 `db:"max_down_pct"`
	MaxUpPctBadge       float64 `db:"max_up_pct_badge"`
	MaxDownPctBadge     float64 `db:"max_down_pct_badge"`
	SisterVendors       string  `db:"sister_vendors"`
	ExcludedVendors     string  `db:"excluded_vendors"`
	InactiveVendor      int64   `db:"inactive_vendor"`
	InventoryThreshold  int     `db:"inventory_threshold"`
	KeepPosition        bool    `db:"keep_position"`
	CompeteWithAll      bool    `db:"compete_with_all"`
	FloorCompeteNext    bool    `db:"floor_compete_next"`
	SuppressBreaks      bool    `db:"suppress_breaks"`
	SuppressBadgeBreaks bool    `db:"suppress_badge_breaks"`
	SyncSisters         bool    `db:"sync_sisters"`
	Priority            int     `db:"priority"`
	Enabled             bool    `db:"enabled"`
}

func (r settingsRow) toDomain() domain.VendorSettings {
	return domain.VendorSettings{
		ProductID:           r.ProductID,
		VendorID:            r.VendorID,
		FloorPrice:          r.FloorPrice,
		CeilingPrice:        r.CeilingPrice,
		Basis:               domain.PriceBasis(r.Basis),
		Direction:           domain.Direction(r.Direction),
		BadgeMode:           domain.BadgeMode(r.BadgeMode),
		HandlingGroup:       r.HandlingGroup,
		MaxUpPct:            r.MaxUpPct,
		MaxDownPct:          r.MaxDownPct,
		MaxUpPctBadge:       r.MaxUpPctBadge,
		MaxDownPctBadge:     r.MaxDownPctBadge,
		SisterVendors:       parseCSVIDs(r.SisterVendors),
		ExcludedVendors:     parseCSVIDs(r.ExcludedVendors),
		InactiveVendor:      r.InactiveVendor,
		InventoryThreshold:  r.InventoryThreshold,
		KeepPosition:        r.KeepPosition,
		CompeteWithAll:      r.CompeteWithAll,
		FloorCompeteNext:    r.FloorCompeteNext,
		SuppressBreaks:      r.SuppressBreaks,
		SuppressBadgeBreaks: r.SuppressBadgeBreaks,
		SyncSisters:         r.SyncSisters,
		Priority:            r.Priority,
		Enabled:             r.Enabled,
	}
}

// fetchSettings lee los settings de (producto, vendor) de la tabla dada.
// Fila ausente ⇒ (nil, nil): el caller decide entre defaults y "no aplica".
func (s *Store) fetchSettings(ctx context.Context, table string, productID, vendorID int64) (*domain.VendorSettings, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	var row settingsRow
	err := s.db.GetContext(ctx, &row,
		`SELECT * FROM `+table+` WHERE product_id = ? AND vendor_id = ?`,
		productID, vendorID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("storage.fetchSettings: %s (%d,%d): %w", table, productID, vendorID, err)
	}
	out := row.toDomain()
	return &out, nil
}

// fetchThresholds trae los thresholds de todos los vendor ids dados en una
// sola query batcheada.
func (s *Store) fetchThresholds(ctx context.Context, vendorIDs []int64) ([]domain.VendorThreshold, error) {
	if len(vendorIDs) == 0 {
		return nil, nil
	}
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	query, args, err := sqlx.In(
		`SELECT vendor_id, shipping_cost, free_ship_threshold
		   FROM vendor_thresholds WHERE vendor_id IN (?)`, vendorIDs)
	if err != nil {
		return nil, fmt.Errorf("storage.fetchThresholds: build query: %w", err)
	}
	var out []domain.VendorThreshold
	if err := s.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("storage.fetchThresholds: %w", err)
	}
	return out, nil
}

// parseCSVIDs parsea "12,34,56" a ids; las entradas no numéricas se ignoran.
func parseCSVIDs(s string) []int64 {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if id, err := strconv.ParseInt(p, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// joinCSVIDs es el inverso de parseCSVIDs, para seeds y fixtures.
func joinCSVIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

// uniqueIDs deduplica preservando el orden de primera aparición.
func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// timeWindow normaliza el rango a UTC; To en cero = ahora.
func timeWindow(from, to time.Time) (time.Time, time.Time) {
	if to.IsZero() {
		to = time.Now()
	}
	return from.UTC(), to.UTC()
}
