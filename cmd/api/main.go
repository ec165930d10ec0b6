package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fx-blockstream/config"
	httpHandler "fx-blockstream/internal/adapter/http/handler"
	pgStorage "fx-blockstream/internal/adapter/storage/postgres"
	redisStorage "fx-blockstream/internal/adapter/storage/redis"
	sqliteStorage "fx-blockstream/internal/adapter/storage/sqlite"
	"fx-blockstream/internal/core/domain"
	"fx-blockstream/internal/core/ports"
	"fx-blockstream/internal/service"
	"fx-blockstream/pkg/logger"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	auditStream    = "audit"
	auditStreamMax = 100_000
)

// stores is the storage backend picked by store.driver.
type stores struct {
	currency   ports.Repository[*domain.Currency]
	customer   ports.Repository[*domain.Customer]
	smartTrade ports.Repository[*domain.SmartTrade]
	wallet     ports.Repository[*domain.Wallet]
	audit      ports.AuditRepository
	health     []ports.HealthChecker
	close      func()
}

var collections = []string{
	domain.CurrencySchema.Collection,
	domain.CustomerSchema.Collection,
	domain.SmartTradeSchema.Collection,
	domain.WalletSchema.Collection,
}

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("fx-blockstream", cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Str("driver", cfg.Store.Driver).
		Int("port", cfg.Server.Port).
		Msg("Starting FX Blockstream")

	ctx := context.Background()

	// Redis always backs idempotency keys and rate limits.
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	st, err := openStores(ctx, cfg, rdb, log)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("Failed to open document store")
	}
	defer st.close()

	hashSvc := service.NewArgon2HashService(service.Argon2Params{
		Time:    cfg.Hashing.Time,
		Memory:  cfg.Hashing.Memory,
		Threads: cfg.Hashing.Threads,
	})
	services := httpHandler.Services{
		Currency:   service.NewResourceService(domain.CurrencySchema, st.currency, log),
		Customer:   service.NewCustomerService(st.customer, hashSvc, log),
		SmartTrade: service.NewResourceService(domain.SmartTradeSchema, st.smartTrade, log),
		Wallet:     service.NewResourceService(domain.WalletSchema, st.wallet, log),
	}

	// Load OpenAPI spec for Swagger UI
	specBytes, err := os.ReadFile("docs/api/openapi.yaml")
	if err != nil {
		log.Warn().Err(err).Msg("OpenAPI spec not found, Swagger UI will be unavailable")
	}
	docs, err := httpHandler.NewDocsHandler(specBytes, "FX Blockstream")
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid OpenAPI spec")
	}
	if specBytes != nil {
		log.Info().Msg("OpenAPI spec loaded for Swagger UI at /swagger")
	}

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		Config:         cfg,
		Services:       services,
		Idempotency:    redisStorage.NewIdempotencyCache(rdb),
		RateLimiter:    redisStorage.NewRateLimitStore(rdb),
		AuditSvc:       service.NewAuditService(st.audit, log),
		HealthCheckers: st.health,
		Docs:           docs,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := cfg.Server.Addr()
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

func openStores(ctx context.Context, cfg *config.Config, rdb *goredis.Client, log zerolog.Logger) (*stores, error) {
	batch := cfg.Store.StreamBatch
	redisHealth := redisStorage.NewHealthCheck(rdb)

	switch cfg.Store.Driver {
	case config.DriverPostgres:
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			return nil, err
		}
		if err := pgStorage.EnsureSchema(ctx, pool, collections...); err != nil {
			pool.Close()
			return nil, err
		}
		log.Info().Msg("PostgreSQL connected")
		return &stores{
			currency:   pgStorage.NewRepository(pool, domain.CurrencySchema, batch),
			customer:   pgStorage.NewRepository(pool, domain.CustomerSchema, batch),
			smartTrade: pgStorage.NewRepository(pool, domain.SmartTradeSchema, batch),
			wallet:     pgStorage.NewRepository(pool, domain.WalletSchema, batch),
			audit:      pgStorage.NewAuditRepo(pool),
			health:     []ports.HealthChecker{pgStorage.NewHealthCheck(pool), redisHealth},
			close:      pool.Close,
		}, nil

	case config.DriverSQLite:
		db, err := sqliteStorage.Open(ctx, cfg.Store.SQLitePath, log)
		if err != nil {
			return nil, err
		}
		if err := sqliteStorage.EnsureSchema(ctx, db, collections...); err != nil {
			db.Close()
			return nil, err
		}
		return &stores{
			currency:   sqliteStorage.NewRepository(db, domain.CurrencySchema, batch),
			customer:   sqliteStorage.NewRepository(db, domain.CustomerSchema, batch),
			smartTrade: sqliteStorage.NewRepository(db, domain.SmartTradeSchema, batch),
			wallet:     sqliteStorage.NewRepository(db, domain.WalletSchema, batch),
			audit:      redisStorage.NewAuditRepo(rdb, auditStream, auditStreamMax),
			health:     []ports.HealthChecker{sqliteStorage.NewHealthCheck(db), redisHealth},
			close:      func() { db.Close() },
		}, nil

	default:
		return &stores{
			currency:   redisStorage.NewRepository(rdb, domain.CurrencySchema, batch),
			customer:   redisStorage.NewRepository(rdb, domain.CustomerSchema, batch),
			smartTrade: redisStorage.NewRepository(rdb, domain.SmartTradeSchema, batch),
			wallet:     redisStorage.NewRepository(rdb, domain.WalletSchema, batch),
			audit:      redisStorage.NewAuditRepo(rdb, auditStream, auditStreamMax),
			health:     []ports.HealthChecker{redisHealth},
			close:      func() {},
		}, nil
	}
}
