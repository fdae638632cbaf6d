package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/tradelens/analytics-engine/internal/api"
	"github.com/tradelens/analytics-engine/internal/cache"
	"github.com/tradelens/analytics-engine/internal/codeindex"
	"github.com/tradelens/analytics-engine/internal/config"
	"github.com/tradelens/analytics-engine/internal/dataset"
	"github.com/tradelens/analytics-engine/internal/engine"
	"github.com/tradelens/analytics-engine/internal/format"
	"github.com/tradelens/analytics-engine/internal/metrics"
	"github.com/tradelens/analytics-engine/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	var cleanup []func()
	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Load dataset ---
	src, closeSrc, err := openSource(cfg)
	if err != nil {
		slog.Error("dataset source unavailable", "source", cfg.Source(), "err", err)
		os.Exit(1)
	}

	loadCtx, cancelLoad := context.WithTimeout(context.Background(), 5*time.Minute)
	ds, err := dataset.Load(loadCtx, src)
	cancelLoad()
	closeSrc()
	if err != nil {
		slog.Error("dataset load failed", "err", err)
		os.Exit(1)
	}
	metrics.DatasetRecords.Set(float64(ds.Len()))

	// --- Engine ---
	var opts []engine.Option
	if cfg.EmptyYearsSelectNothing {
		opts = append(opts, engine.WithEmptyYearsSelectNothing())
		slog.Info("empty year selections match no record")
	}
	eng := engine.New(ds, opts...)
	index := codeindex.Build(ds)

	// --- Result cache ---
	var resultCache cache.Cache
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "err", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })
		resultCache = cache.NewRedis(rdb, cfg.CacheTTL)
		slog.Info("Redis result cache enabled", "ttl", cfg.CacheTTL.String())
	} else {
		resultCache = cache.NewMemory(cfg.CacheTTL, cfg.CacheMaxEntries)
		slog.Info("in-memory result cache enabled",
			"ttl", cfg.CacheTTL.String(),
			"max_entries", cfg.CacheMaxEntries,
		)
	}
	svc := cache.NewService(eng, resultCache)
	handler := api.NewHandler(svc, index)

	// Warm the cache with the initial dashboard.
	initial := svc.Dashboard(context.Background(), eng.InitialSpec())
	slog.Info("initial dashboard ready",
		"exports", format.Money(initial.KPIs.Exports),
		"imports", format.Money(initial.KPIs.Imports),
	)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","service":"analytics-engine","records":%d}`, ds.Len())
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", handler.Routes)

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: api.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("analytics-engine listening", "port", cfg.Port, "records", ds.Len())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down analytics-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("analytics-engine stopped")
}

// openSource picks the dataset source: PostgreSQL, then SQLite, then the
// delimited file. The returned func releases the source's connections.
func openSource(cfg config.Config) (store.Source, func(), error) {
	switch cfg.Source() {
	case config.SourcePostgres:
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		src, err := store.NewPostgresSource(pool, cfg.DatasetTable)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		slog.Info("reading dataset from PostgreSQL", "table", cfg.DatasetTable)
		return src, pool.Close, nil

	case config.SourceSQLite:
		src, err := store.OpenSQLite(cfg.SQLitePath, cfg.DatasetTable)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("reading dataset from SQLite", "path", cfg.SQLitePath, "table", cfg.DatasetTable)
		return src, func() { src.Close() }, nil

	default:
		slog.Info("reading dataset file", "path", cfg.DatasetPath)
		return store.NewFileSource(cfg.DatasetPath), func() {}, nil
	}
}
