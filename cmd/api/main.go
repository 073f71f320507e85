package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/medibook/medibook-api/internal/config"
	"github.com/medibook/medibook-api/internal/domain/account"
	"github.com/medibook/medibook-api/internal/domain/authz"
	"github.com/medibook/medibook-api/internal/domain/settlement"
	"github.com/medibook/medibook-api/internal/middleware"
	"github.com/medibook/medibook-api/internal/pkg/database"
	"github.com/medibook/medibook-api/internal/pkg/invalidate"
	"github.com/medibook/medibook-api/internal/pkg/jwt"
	"github.com/medibook/medibook-api/internal/pkg/logger"
	pkgresponse "github.com/medibook/medibook-api/internal/pkg/response"
	"github.com/medibook/medibook-api/internal/pkg/storage"
	"github.com/medibook/medibook-api/internal/storage/memory"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Env,
		Service:     "medibook-api",
	})

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Str("storage", cfg.StorageDriver).
		Msg("Starting MediBook settlement API")

	// ---------- Stores ----------
	var (
		accountRepo     account.Repository
		settlementStore settlement.Store
	)
	if cfg.UsesMemoryStore() {
		mem := memory.New()
		accountRepo, settlementStore = mem, mem
		log.Warn().Msg("Using in-memory store; data is lost on restart")
	} else {
		db, err := database.NewPostgres(cfg.Postgres())
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer database.ClosePostgres(db)

		schemaCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := database.EnsureSchema(schemaCtx, db); err != nil {
			cancel()
			log.Fatal().Err(err).Msg("Failed to ensure database schema")
		}
		cancel()

		accountRepo = account.NewRepository(db)
		settlementStore = settlement.NewRepository(db, cfg.SettlementTxTimeout)
	}

	// ---------- Invalidation hooks ----------
	var hooks invalidate.Multi

	redis, err := database.NewRedis(cfg.RedisURL, cfg.RedisPoolSize)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	if redis != nil {
		defer database.CloseRedis(redis)
		hooks = append(hooks, invalidate.NewRedisHook(redis, cfg.InvalidationChannel))
	}

	if cfg.AMQPURL != "" {
		amqpHook, err := invalidate.NewAMQPHook(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to RabbitMQ")
		}
		defer amqpHook.Close()
		hooks = append(hooks, amqpHook)
	}

	dispatcher := invalidate.NewDispatcher(hooks, 3*time.Second)

	// ---------- Statement storage ----------
	var objects storage.ObjectStore
	if cfg.StatementsEnabled() {
		s3Storage, err := storage.NewS3Storage(context.Background(), storage.Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create S3 storage")
		}
		objects = s3Storage
	} else {
		log.Warn().Msg("S3 credentials not set; statement export disabled")
	}

	// ---------- Services ----------
	gate := authz.NewContextGate()
	registry := account.NewRegistry(accountRepo, gate, dispatcher)
	settlementSvc := settlement.NewService(settlementStore, gate, dispatcher, objects)

	reconciler := settlement.NewReconciler(settlementSvc, cfg.ReconcileSchedule)
	if err := reconciler.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start reconciler")
	}

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)

	r := newRouter(cfg, routerDeps{
		auth:       middleware.Auth(jwtService),
		providers:  account.NewHandler(registry),
		settlement: settlement.NewHandler(settlementSvc, gate),
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	select {
	case <-reconciler.Stop().Done():
	case <-ctx.Done():
		log.Warn().Msg("Reconciliation still running at shutdown")
	}
	dispatcher.Wait()

	log.Info().Msg("Server exited properly")
}

type routerDeps struct {
	auth       func(http.Handler) http.Handler
	providers  *account.Handler
	settlement *settlement.Handler
}

func newRouter(cfg *config.Config, deps routerDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Mount("/api/v1", deps.settlement.Routes(deps.auth))

	r.Mount("/api/admin/providers", deps.providers.Routes(deps.auth))
	r.Mount("/api/admin", deps.settlement.AdminRoutes(deps.auth))

	return r
}
