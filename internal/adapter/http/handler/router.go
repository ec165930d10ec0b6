package handler

import (
	"slices"

	"fx-blockstream/config"
	"fx-blockstream/internal/adapter/http/middleware"
	"fx-blockstream/internal/core/domain"
	"fx-blockstream/internal/core/ports"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Services bundles the resource services of every collection.
type Services struct {
	Currency   ports.ResourceService[*domain.Currency]
	Customer   ports.ResourceService[*domain.Customer]
	SmartTrade ports.ResourceService[*domain.SmartTrade]
	Wallet     ports.ResourceService[*domain.Wallet]
}

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	Config         *config.Config
	Services       Services
	Idempotency    ports.IdempotencyCache // nil = Idempotency-Key ignored
	RateLimiter    ports.RateLimiter      // nil = rate limiting disabled
	AuditSvc       ports.AuditService     // nil = audit logging disabled
	HealthCheckers []ports.HealthChecker
	Docs           *DocsHandler // nil = /swagger not mounted
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	cfg := deps.Config
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	r := gin.New()
	r.HandleMethodNotAllowed = true

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(corsMiddleware(cfg.CORS, cfg.Server.AppName))
	if cfg.Server.BodyLimit > 0 {
		r.Use(middleware.MaxBodySize(cfg.Server.BodyLimit))
	}

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	// Health check (deep: pings every backing store)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Swagger documentation
	if deps.Docs != nil {
		deps.Docs.Register(r)
	}

	rules := middleware.RateLimitRules(cfg.RateLimit)
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimiter == nil || !cfg.RateLimit.Enabled {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimiter, group, rules[group], deps.Logger)
	}
	read, write := rl(middleware.GroupRead), rl(middleware.GroupWrite)

	opts := ResourceOptions{
		AppName:        cfg.Server.AppName,
		Idempotency:    deps.Idempotency,
		IdempotencyTTL: cfg.Idempotency.TTL,
	}

	api := r.Group("/api")
	NewResourceHandler(domain.CurrencySchema, deps.Services.Currency, opts, deps.Logger).Register(api, read, write)
	NewResourceHandler(domain.CustomerSchema, deps.Services.Customer, opts, deps.Logger).Register(api, read, write)
	NewResourceHandler(domain.SmartTradeSchema, deps.Services.SmartTrade, opts, deps.Logger).Register(api, read, write)
	NewResourceHandler(domain.WalletSchema, deps.Services.Wallet, opts, deps.Logger).Register(api, read, write)

	return r
}

func corsMiddleware(cfg config.CORSConfig, app string) gin.HandlerFunc {
	cc := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept", "If-Match",
			HeaderIdempotencyKey, middleware.HeaderRequestID,
		},
		ExposeHeaders: []string{
			"Location", "ETag", "Link", "X-Total-Count", middleware.HeaderRequestID,
			"X-" + app + "-alert", "X-" + app + "-params",
		},
		MaxAge: cfg.MaxAge,
	}
	if len(cfg.AllowedOrigins) == 0 || slices.Contains(cfg.AllowedOrigins, "*") {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = cfg.AllowedOrigins
	}
	return cors.New(cc)
}
