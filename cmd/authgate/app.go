package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vyrodovalexey/authgate/internal/config"
	"github.com/vyrodovalexey/authgate/internal/gatekeeper"
	"github.com/vyrodovalexey/authgate/internal/license"
	"github.com/vyrodovalexey/authgate/internal/middleware"
	"github.com/vyrodovalexey/authgate/internal/observability"
	"github.com/vyrodovalexey/authgate/internal/policy"
	"github.com/vyrodovalexey/authgate/internal/timing"
	"github.com/vyrodovalexey/authgate/internal/trust"
)

// App wires the gate together: stores, gatekeeper, middleware chain,
// and the HTTP server.
type App struct {
	cfg         *config.Config
	logger      observability.Logger
	tracer      *observability.Tracer
	gk          *gatekeeper.Gatekeeper
	credentials license.Store
	policies    policy.Store
	server      *http.Server
}

// NewApp builds the application from configuration.
func NewApp(ctx context.Context, cfg *config.Config, logger observability.Logger) (*App, error) {
	tracer, err := observability.NewTracer(ctx, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	credentials, policies, err := buildStores(cfg, logger)
	if err != nil {
		return nil, err
	}

	resolver := trust.NewResolver(
		trust.ParseNetworkSet(cfg.TrustedProxies, logger),
		trust.WithResolverLogger(logger),
	)

	gk, err := gatekeeper.New(
		&gatekeeper.Config{
			VerifyContract: timing.Contract{
				MinDelay:  cfg.Timing.MinDelay.Duration(),
				MaxJitter: cfg.Timing.MaxJitter.Duration(),
			},
		},
		resolver,
		policies,
		credentials,
		gatekeeper.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build gatekeeper: %w", err)
	}

	app := &App{
		cfg:         cfg,
		logger:      logger,
		tracer:      tracer,
		gk:          gk,
		credentials: credentials,
		policies:    policies,
	}
	app.server = &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      app.buildRouter(),
		ReadTimeout:  cfg.Server.ReadTimeout.Duration(),
		WriteTimeout: cfg.Server.WriteTimeout.Duration(),
		IdleTimeout:  cfg.Server.IdleTimeout.Duration(),
	}
	return app, nil
}

// buildStores constructs the credential and policy backends.
func buildStores(cfg *config.Config, logger observability.Logger) (license.Store, policy.Store, error) {
	if cfg.Store.Backend == config.StoreBackendMemory {
		return license.NewMemoryStore(), policy.NewMemoryStore(), nil
	}

	credentials, err := license.NewRedisStore(license.RedisConfig{
		Address:      cfg.Store.Redis.Address,
		Password:     cfg.Store.Redis.Password,
		DB:           cfg.Store.Redis.DB,
		Prefix:       cfg.Store.Redis.CredentialPrefix,
		DialTimeout:  cfg.Store.Redis.DialTimeout.Duration(),
		ReadTimeout:  cfg.Store.Redis.ReadTimeout.Duration(),
		WriteTimeout: cfg.Store.Redis.WriteTimeout.Duration(),
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build credential store: %w", err)
	}

	policies, err := policy.NewRedisStore(policy.RedisConfig{
		Address:      cfg.Store.Redis.Address,
		Password:     cfg.Store.Redis.Password,
		DB:           cfg.Store.Redis.DB,
		Prefix:       cfg.Store.Redis.PolicyPrefix,
		DialTimeout:  cfg.Store.Redis.DialTimeout.Duration(),
		ReadTimeout:  cfg.Store.Redis.ReadTimeout.Duration(),
		WriteTimeout: cfg.Store.Redis.WriteTimeout.Duration(),
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build policy store: %w", err)
	}

	breakered := license.NewBreakerStore(credentials, license.BreakerConfig{
		Threshold: cfg.Store.Breaker.Threshold,
		Timeout:   cfg.Store.Breaker.Timeout.Duration(),
	}, logger)

	return breakered, policies, nil
}

// buildRouter assembles the middleware chain and routes.
func (a *App) buildRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(
		middleware.RequestID(),
		middleware.Recovery(a.logger.Zap()),
		middleware.ClientIP(a.gk),
		middleware.LoggingWithConfig(middleware.LoggingConfig{
			Logger:    a.logger.Zap(),
			SkipPaths: []string{"/healthz", "/metrics"},
		}),
	)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// The forward-auth surface: upstream services delegate their access
	// decision here and read the verdict headers back.
	authorized := router.Group("/v1")
	authorized.Use(a.gk.Middleware(gatekeeper.DefaultExtractor(), a.cfg.RequestCost))
	authorized.GET("/authorize", func(c *gin.Context) {
		c.Header("X-Auth-Tenant", gatekeeper.TenantID(c))
		c.Header("X-Auth-Client-Addr", gatekeeper.ClientAddr(c))
		c.JSON(http.StatusOK, gin.H{
			"allowed":    true,
			"tenantID":   gatekeeper.TenantID(c),
			"clientAddr": gatekeeper.ClientAddr(c),
		})
	})

	return router
}

// Reload applies a freshly loaded configuration. Only the trusted proxy
// set is reload-safe; everything else requires a restart. The new
// network set is built first and swapped atomically, in-flight requests
// keep reading the old snapshot.
func (a *App) Reload(cfg *config.Config) {
	a.gk.SwapResolver(trust.NewResolver(
		trust.ParseNetworkSet(cfg.TrustedProxies, a.logger),
		trust.WithResolverLogger(a.logger),
	))
	a.logger.Info("trusted proxy set reloaded",
		observability.String("trustedProxies", cfg.TrustedProxies),
	)
}

// Run serves HTTP until the server is shut down.
func (a *App) Run() error {
	a.logger.Info("gate listening",
		observability.String("address", a.cfg.Server.Address),
		observability.String("storeBackend", a.cfg.Store.Backend),
	)
	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains the server and releases resources.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	if cerr := a.credentials.Close(); err == nil {
		err = cerr
	}
	if cerr := a.policies.Close(); err == nil {
		err = cerr
	}
	if cerr := a.tracer.Shutdown(ctx); err == nil {
		err = cerr
	}
	return err
}
