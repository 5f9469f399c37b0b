package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/gatekeeper/pkg/api"
	"github.com/platinummonkey/gatekeeper/pkg/audit"
	"github.com/platinummonkey/gatekeeper/pkg/catalog"
	"github.com/platinummonkey/gatekeeper/pkg/claimcache"
	"github.com/platinummonkey/gatekeeper/pkg/config"
	"github.com/platinummonkey/gatekeeper/pkg/engine"
	"github.com/platinummonkey/gatekeeper/pkg/observability"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	var metrics *observability.Metrics
	registry := prometheus.NewRegistry()
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	// Connect to database
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	backend, err := buildCacheBackend(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize claims cache backend: %v", err)
	}

	cat, err := loadCatalog(cfg)
	if err != nil {
		log.Fatalf("Failed to load permission catalog: %v", err)
	}

	eng := engine.New(engine.Config{
		DB:           db,
		Catalog:      cat,
		CacheBackend: backend,
		CacheTimeout: cfg.Cache.BackendTimeout,
		Logger:       logger,
		Metrics:      metrics,
	})

	ctx := context.Background()
	if err := eng.Migrate(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Catalog file hot reload. Swapped catalogs apply to new checks and
	// grant validation; checks in flight finish on the old catalog.
	if cfg.Catalog.Watch {
		watcher, err := catalog.WatchFile(cfg.Catalog.FilePath, logger, func(c *catalog.Catalog) {
			eng.ReplaceCatalog(c)
		})
		if err != nil {
			log.Fatalf("Failed to watch catalog file: %v", err)
		}
		defer watcher.Close()
	}

	var auditRecorder *audit.DBRecorder
	if cfg.Audit.Enabled {
		auditRecorder, err = audit.NewDBRecorder(db)
		if err != nil {
			log.Fatalf("Failed to initialize audit recorder: %v", err)
		}
	}

	// Background sweeper: expired role assignments, soft-deleted
	// memberships past retention, and old audit events.
	c := cron.New()
	_, err = c.AddFunc(cfg.Sweeper.Schedule, func() {
		sweepCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		if n, err := eng.RoleStore().PurgeExpiredAssignments(sweepCtx); err != nil {
			logger.WithError(err).Error("Expired assignment sweep failed")
		} else if n > 0 {
			logger.WithField("purged", n).Info("Purged expired role assignments")
		}

		if n, err := eng.MembershipStore().PurgeDeleted(sweepCtx, cfg.Sweeper.MembershipRetention); err != nil {
			logger.WithError(err).Error("Membership retention sweep failed")
		} else if n > 0 {
			logger.WithField("purged", n).Info("Purged soft-deleted memberships")
		}

		if auditRecorder != nil {
			if n, err := auditRecorder.Purge(sweepCtx, cfg.Audit.Retention); err != nil {
				logger.WithError(err).Error("Audit retention sweep failed")
			} else if n > 0 {
				logger.WithField("purged", n).Info("Purged old audit events")
			}
		}
	})
	if err != nil {
		log.Fatalf("Failed to schedule sweeper: %v", err)
	}
	c.Start()

	server := api.NewServer(eng, logger, metrics)
	if auditRecorder != nil {
		server.EnableAudit(auditRecorder)
	}
	if cfg.Server.RateLimitEnabled {
		limiter := api.NewRateLimiter(&api.RateLimitConfig{
			RequestsPerWindow: cfg.Server.RateLimitPerMinute,
			WindowDuration:    time.Minute,
			BurstSize:         cfg.Server.RateLimitBurst,
		})
		limiter.StartCleanup(ctx)
		server.EnableRateLimit(limiter)
	}
	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthServer := newHealthServer(cfg, db, registry)

	go func() {
		logger.WithField("addr", healthServer.Addr).Info("Health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Health server failed: %v", err)
		}
	}()

	go func() {
		logger.WithField("addr", httpServer.Addr).Info("Gatekeeper listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for termination signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Health server shutdown failed")
	}

	<-c.Stop().Done()
	logger.Info("Gatekeeper stopped")
}

// buildCacheBackend selects the claims cache backend: Redis when a URL is
// configured, otherwise the in-process LRU.
func buildCacheBackend(cfg *config.Config) (claimcache.Backend, error) {
	if cfg.Cache.RedisURL == "" {
		return claimcache.NewMemoryBackend(cfg.Cache.MemorySize, cfg.Cache.TTL), nil
	}

	opts, err := redis.ParseURL(cfg.Cache.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if cfg.Cache.RedisPassword != "" {
		opts.Password = cfg.Cache.RedisPassword
	}
	if cfg.Cache.RedisDB > 0 {
		opts.DB = cfg.Cache.RedisDB
	}
	if cfg.Cache.RedisPoolSize > 0 {
		opts.PoolSize = cfg.Cache.RedisPoolSize
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return claimcache.NewRedisBackend(client, cfg.Cache.TTL), nil
}

// loadCatalog loads the catalog file when configured, otherwise the
// built-in catalog.
func loadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.Catalog.FilePath == "" {
		return catalog.Default(), nil
	}
	return catalog.LoadFile(cfg.Catalog.FilePath)
}

// newHealthServer serves liveness, readiness, and metrics on a separate
// port so they stay reachable behind internal-only network policy.
func newHealthServer(cfg *config.Config, db *sql.DB, registry *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler(registry))

	return &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}
