package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del motor de backtest.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Vendors VendorsConfig `yaml:"vendors"`
	Replay  ReplayConfig  `yaml:"replay"`
	Web     WebConfig     `yaml:"web"`
	Log     LogConfig     `yaml:"log"`
}

// StorageConfig controla las conexiones a las tablas de decisiones.
type StorageConfig struct {
	// DSN apunta a la base con el schema actual (decision log estructurado).
	DSN string `yaml:"dsn"`
	// LegacyDSN apunta a la base con el schema legacy (history de texto libre).
	// Vacío = usar DSN.
	LegacyDSN string `yaml:"legacy_dsn"`
	// QueriesPerSec limita las queries del extractor contra la réplica.
	// 0 = sin límite.
	QueriesPerSec float64 `yaml:"queries_per_sec"`
}

// VendorsConfig identifica los vendors propios y el mapeo de canales legacy.
type VendorsConfig struct {
	// OwnIDs son los vendor ids que opera el negocio (vs. competidores).
	OwnIDs []int64 `yaml:"own_ids"`
	// Channels mapea el nombre de canal del history legacy a vendor id.
	Channels map[string]int64 `yaml:"channels"`
}

// ReplayConfig controla el comportamiento del replay.
type ReplayConfig struct {
	// SlowRun se pasa tal cual al algoritmo de decisión.
	SlowRun bool `yaml:"slow_run"`
	// SourceURL se pasa tal cual al algoritmo de decisión.
	SourceURL string `yaml:"source_url"`
	// MaxSamples limita las muestras incluidas en reportes what-if.
	MaxSamples int `yaml:"max_samples"`
}

// WebConfig controla el servidor HTTP opcional.
type WebConfig struct {
	Addr string `yaml:"addr"` // ej. ":8080"
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// ChannelVendor resuelve el nombre de canal legacy a vendor id.
// La comparación es case-insensitive.
func (c *Config) ChannelVendor(channel string) (int64, bool) {
	id, ok := c.Vendors.Channels[strings.ToUpper(strings.TrimSpace(channel))]
	return id, ok
}

// QueryInterval devuelve el intervalo mínimo entre queries como time.Duration.
// Devuelve 0 si no hay límite configurado.
func (c *Config) QueryInterval() time.Duration {
	if c.Storage.QueriesPerSec <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / c.Storage.QueriesPerSec)
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("STORAGE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("STORAGE_LEGACY_DSN"); v != "" {
		cfg.Storage.LegacyDSN = v
	}
	if v := os.Getenv("WEB_ADDR"); v != "" {
		cfg.Web.Addr = v
	}
	if v := os.Getenv("OWN_VENDOR_IDS"); v != "" {
		if ids, err := ParseIDList(v); err == nil {
			cfg.Vendors.OwnIDs = ids
		}
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "repricer.db"
	}
	if cfg.Storage.LegacyDSN == "" {
		cfg.Storage.LegacyDSN = cfg.Storage.DSN
	}
	if cfg.Replay.MaxSamples <= 0 {
		cfg.Replay.MaxSamples = 50
	}
	if cfg.Web.Addr == "" {
		cfg.Web.Addr = ":8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	// Normalizar las keys de canales a mayúsculas una sola vez.
	normalized := make(map[string]int64, len(cfg.Vendors.Channels))
	for k, v := range cfg.Vendors.Channels {
		normalized[strings.ToUpper(strings.TrimSpace(k))] = v
	}
	cfg.Vendors.Channels = normalized
}

// ParseIDList parsea una lista de ids separados por coma ("12,34,56").
func ParseIDList(s string) ([]int64, error) {
	parts := strings.Split(s, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("config.ParseIDList: %q: %w", p, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
