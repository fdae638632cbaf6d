package config

import (
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(env(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg != Default() {
		t.Errorf("got %+v, want defaults", cfg)
	}
	if cfg.Source() != SourceFile {
		t.Errorf("source = %s, want file", cfg.Source())
	}
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := load(env(map[string]string{
		"PORT":                       "9090",
		"DATASET_PATH":               "/data/trade.csv.gz",
		"SQLITE_PATH":                "/data/trade.db",
		"REDIS_URL":                  "redis://localhost:6379/0",
		"CACHE_TTL":                  "5m",
		"CACHE_MAX_ENTRIES":          "0",
		"EMPTY_YEARS_SELECT_NOTHING": "true",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "9090" || cfg.CacheTTL != 5*time.Minute || cfg.CacheMaxEntries != 0 {
		t.Errorf("unexpected config %+v", cfg)
	}
	if !cfg.EmptyYearsSelectNothing {
		t.Error("EmptyYearsSelectNothing should be set")
	}
	if cfg.Source() != SourceSQLite {
		t.Errorf("source = %s, want sqlite", cfg.Source())
	}
}

func TestLoad_PlainSecondsTTL(t *testing.T) {
	cfg, err := load(env(map[string]string{"CACHE_TTL": "60"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.CacheTTL != time.Minute {
		t.Errorf("ttl = %s", cfg.CacheTTL)
	}
}

func TestLoad_PostgresTakesPriority(t *testing.T) {
	cfg, err := load(env(map[string]string{
		"DATABASE_URL": "postgres://user:pw@localhost:5432/trade",
		"SQLITE_PATH":  "/data/trade.db",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Source() != SourcePostgres {
		t.Errorf("source = %s, want postgres", cfg.Source())
	}
}

func TestLoad_KeywordDSN(t *testing.T) {
	cfg, err := load(env(map[string]string{
		"DATABASE_URL": "host=localhost port=5432 user=app dbname=trade sslmode=disable",
	}))
	if err != nil {
		t.Fatalf("keyword/value DSN should be accepted: %v", err)
	}
	if cfg.Source() != SourcePostgres {
		t.Errorf("source = %s, want postgres", cfg.Source())
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
	}{
		{"port", map[string]string{"PORT": "http"}},
		{"ttl syntax", map[string]string{"CACHE_TTL": "soon"}},
		{"ttl zero", map[string]string{"CACHE_TTL": "0"}},
		{"max entries", map[string]string{"CACHE_MAX_ENTRIES": "-1"}},
		{"bool", map[string]string{"EMPTY_YEARS_SELECT_NOTHING": "maybe"}},
		{"redis url", map[string]string{"REDIS_URL": "not a url"}},
		{"database dsn", map[string]string{"DATABASE_URL": "not a dsn"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := load(env(tt.vars)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoad_ValidationErrorsUnwrap(t *testing.T) {
	_, err := load(env(map[string]string{"PORT": "abc"}))
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected validator errors, got %v", err)
	}
	if verrs[0].Field() != "Port" {
		t.Errorf("field = %s", verrs[0].Field())
	}
}
