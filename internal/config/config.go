// Package config reads the engine's settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Dataset source kinds, in priority order.
const (
	SourcePostgres = "postgres"
	SourceSQLite   = "sqlite"
	SourceFile     = "file"
)

// Config holds the settings of one engine process.
type Config struct {
	Port         string `validate:"required,numeric"`
	DatasetPath  string `validate:"required"`
	DatabaseURL  string `validate:"omitempty,pgdsn"`
	DatasetTable string `validate:"required"`
	SQLitePath   string
	RedisURL     string `validate:"omitempty,url"`

	CacheTTL        time.Duration `validate:"gt=0"`
	CacheMaxEntries int           `validate:"gte=0"`

	// EmptyYearsSelectNothing makes an empty year selection match no record.
	EmptyYearsSelectNothing bool
}

// Default returns the settings used when no variable is set.
func Default() Config {
	return Config{
		Port:            "8080",
		DatasetPath:     "trade_subset_latam.csv.gz",
		DatasetTable:    "trade_records",
		CacheTTL:        300 * time.Second,
		CacheMaxEntries: 1024,
	}
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	cfg := Default()

	setString(getenv, "PORT", &cfg.Port)
	setString(getenv, "DATASET_PATH", &cfg.DatasetPath)
	setString(getenv, "DATABASE_URL", &cfg.DatabaseURL)
	setString(getenv, "DATASET_TABLE", &cfg.DatasetTable)
	setString(getenv, "SQLITE_PATH", &cfg.SQLitePath)
	setString(getenv, "REDIS_URL", &cfg.RedisURL)

	if v := getenv("CACHE_TTL"); v != "" {
		ttl, err := parseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: CACHE_TTL: %w", err)
		}
		cfg.CacheTTL = ttl
	}
	if v := getenv("CACHE_MAX_ENTRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: CACHE_MAX_ENTRIES: %w", err)
		}
		cfg.CacheMaxEntries = n
	}
	if v := getenv("EMPTY_YEARS_SELECT_NOTHING"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: EMPTY_YEARS_SELECT_NOTHING: %w", err)
		}
		cfg.EmptyYearsSelectNothing = b
	}

	if err := newValidator().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// newValidator adds "pgdsn", which accepts every connection string pgxpool
// does: URLs as well as keyword/value DSNs ("host=db user=app").
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterValidation("pgdsn", func(fl validator.FieldLevel) bool {
		_, err := pgxpool.ParseConfig(fl.Field().String())
		return err == nil
	})
	return v
}

// Source reports which dataset source the configuration selects.
func (c Config) Source() string {
	switch {
	case c.DatabaseURL != "":
		return SourcePostgres
	case c.SQLitePath != "":
		return SourceSQLite
	default:
		return SourceFile
	}
}

func setString(getenv func(string) string, name string, dst *string) {
	if v := getenv(name); v != "" {
		*dst = v
	}
}

// parseDuration accepts Go durations ("5m") and plain seconds ("300").
func parseDuration(v string) (time.Duration, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(v)
}
