// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// WarehouseConfig describes the warehouse metric queries run against.
type WarehouseConfig struct {
	Type         string        // duckdb, clickhouse, postgres or redshift
	DSN          string        // driver connection string
	MaxOpenConns int           // connection cap (0 = driver default)
	QueryTimeout time.Duration // per-query timeout (0 = none)
}

// ExportConfig controls CSV export.
type ExportConfig struct {
	LocalDir          string
	CellsLimit        int
	ChunkSize         int
	WorkerThreshold   int
	WorkerConcurrency int
	LocalFileTTL      time.Duration
	SweepSchedule     string // cron spec for the orphaned file sweeper
}

// ObjectStorageConfig configures CSV delivery through a bucket. URL is
// s3://bucket/prefix, gs://bucket/prefix or az://container/prefix; empty
// disables uploads.
type ObjectStorageConfig struct {
	URL       string
	URLExpiry time.Duration

	// S3 fields
	S3KeyID    string
	S3Secret   string
	S3Endpoint string
	S3Region   string
	S3URLStyle string

	GCSKeyFile string

	AzureAccountName string
	AzureAccountKey  string
}

// Enabled reports whether uploads are configured.
func (o *ObjectStorageConfig) Enabled() bool {
	return o.URL != ""
}

// Config holds the configuration for the HTTP API, the warehouse and CSV export.
type Config struct {
	MetaDBPath        string // path to SQLite metadata file (explores, user attributes)
	ListenAddr        string // HTTP listen address (default ":8080")
	TLSCertFile       string // TLS certificate file path (optional)
	TLSKeyFile        string // TLS private key file path (optional)
	AllowInsecureHTTP bool   // allow non-TLS listener in production (for trusted TLS termination)
	LogLevel          string // log level: debug, info, warn, error (default "info")
	Env               string // environment: "development" (default) or "production"
	UserIDHeader      string // header carrying the requesting user id (default "X-User-ID")

	// Rate limiting
	RateLimitRPS   float64 // sustained requests per second (default 100)
	RateLimitBurst int     // burst capacity (default 200)

	// CORS
	CORSAllowedOrigins []string // allowed origins for CORS (default: ["*"])

	Warehouse     WarehouseConfig
	Export        ExportConfig
	ObjectStorage ObjectStorageConfig

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when the server is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		MetaDBPath:        os.Getenv("META_DB_PATH"),
		ListenAddr:        os.Getenv("LISTEN_ADDR"),
		TLSCertFile:       os.Getenv("TLS_CERT_FILE"),
		TLSKeyFile:        os.Getenv("TLS_KEY_FILE"),
		AllowInsecureHTTP: parseBoolEnvDefault("ALLOW_INSECURE_HTTP", false),
		LogLevel:          os.Getenv("LOG_LEVEL"),
		Env:               os.Getenv("ENV"),
		UserIDHeader:      os.Getenv("USER_ID_HEADER"),
		Warehouse: WarehouseConfig{
			Type: strings.ToLower(os.Getenv("WAREHOUSE_TYPE")),
			DSN:  os.Getenv("WAREHOUSE_DSN"),
		},
		Export: ExportConfig{
			LocalDir:      os.Getenv("CSV_LOCAL_DIR"),
			SweepSchedule: os.Getenv("CSV_SWEEP_SCHEDULE"),
		},
		ObjectStorage: ObjectStorageConfig{
			URL:              os.Getenv("OBJECT_STORAGE_URL"),
			S3KeyID:          os.Getenv("KEY_ID"),
			S3Secret:         os.Getenv("SECRET"),
			S3Endpoint:       os.Getenv("ENDPOINT"),
			S3Region:         os.Getenv("REGION"),
			S3URLStyle:       os.Getenv("URL_STYLE"),
			GCSKeyFile:       os.Getenv("GCS_KEY_FILE"),
			AzureAccountName: os.Getenv("AZURE_ACCOUNT_NAME"),
			AzureAccountKey:  os.Getenv("AZURE_ACCOUNT_KEY"),
		},
	}

	var errs []string
	parseFloat := func(key string, dst *float64) {
		if v := os.Getenv(key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = f
		}
	}
	parseInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = n
		}
	}
	parseDuration := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = d
		}
	}

	parseFloat("RATE_LIMIT_RPS", &cfg.RateLimitRPS)
	parseInt("RATE_LIMIT_BURST", &cfg.RateLimitBurst)
	parseInt("WAREHOUSE_MAX_CONNS", &cfg.Warehouse.MaxOpenConns)
	parseDuration("WAREHOUSE_QUERY_TIMEOUT", &cfg.Warehouse.QueryTimeout)
	parseInt("CSV_CELLS_LIMIT", &cfg.Export.CellsLimit)
	parseInt("CSV_CHUNK_SIZE", &cfg.Export.ChunkSize)
	parseInt("CSV_WORKER_THRESHOLD", &cfg.Export.WorkerThreshold)
	parseInt("CSV_WORKER_CONCURRENCY", &cfg.Export.WorkerConcurrency)
	parseDuration("CSV_LOCAL_FILE_TTL", &cfg.Export.LocalFileTTL)
	parseDuration("OBJECT_STORAGE_URL_EXPIRY", &cfg.ObjectStorage.URLExpiry)
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}

	// CORS
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORSAllowedOrigins = compactNonEmpty(origins)
	}

	// Defaults
	if cfg.MetaDBPath == "" {
		cfg.MetaDBPath = "metricql_meta.sqlite"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.UserIDHeader == "" {
		cfg.UserIDHeader = "X-User-ID"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 100
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 200
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}
	if cfg.Warehouse.Type == "" {
		cfg.Warehouse.Type = "duckdb"
		cfg.Warnings = append(cfg.Warnings, "WAREHOUSE_TYPE not set, using an in-memory DuckDB warehouse")
	}
	if cfg.Export.SweepSchedule == "" {
		cfg.Export.SweepSchedule = "@every 15m"
	}
	if (cfg.TLSCertFile == "") != (cfg.TLSKeyFile == "") {
		return nil, fmt.Errorf("both TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}
	if !cfg.ObjectStorage.Enabled() {
		cfg.Warnings = append(cfg.Warnings, "OBJECT_STORAGE_URL not set, CSV exports are served from local disk")
	}

	// Production mode: insecure defaults are fatal errors.
	if cfg.IsProduction() {
		if len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*" {
			return nil, fmt.Errorf("CORS wildcard (*) is not allowed in production (ENV=production)")
		}
		if cfg.TLSCertFile == "" && !cfg.AllowInsecureHTTP {
			return nil, fmt.Errorf("TLS_CERT_FILE/TLS_KEY_FILE must be set in production unless ALLOW_INSECURE_HTTP=true")
		}
	}

	return cfg, nil
}

func parseBoolEnvDefault(key string, defaultVal bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return defaultVal
	}
	if v == "0" || v == "false" || v == "no" || v == "off" {
		return false
	}
	if v == "1" || v == "true" || v == "yes" || v == "on" {
		return true
	}
	return defaultVal
}

func compactNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = stripQuotes(strings.TrimSpace(value))
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
