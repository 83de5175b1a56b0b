package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"japa/internal/ingest"
	"japa/internal/ledger"
	"japa/internal/ledger/handler"
	ledgermetrics "japa/internal/ledger/metrics"
	"japa/internal/ledger/service"
	"japa/internal/ledger/store/aggregate"
	"japa/internal/ledger/store/event"
	"japa/internal/platform/clock"
	"japa/internal/platform/config"
	"japa/internal/platform/httpserver"
	"japa/internal/platform/logger"
	"japa/internal/platform/middleware"
	"japa/internal/platform/postgres"
	"japa/internal/platform/redis"
	"japa/internal/platform/token"
	"japa/internal/reconcile"
	"japa/pkg/platform/httputil"
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc, err := time.LoadLocation(cfg.Ledger.Timezone)
	if err != nil {
		log.Error("invalid timezone", "timezone", cfg.Ledger.Timezone, "error", err)
		os.Exit(1)
	}

	// Event store: postgres when configured, in-memory otherwise (dev only,
	// non-durable).
	var events ledger.EventStore = event.NewInMemoryStore()
	db, err := postgres.Open(cfg.Postgres)
	if err != nil {
		log.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
		pgStore := event.NewPostgresStore(db)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			log.Error("schema setup failed", "error", err)
			os.Exit(1)
		}
		events = pgStore
		log.Info("event store: postgres")
	} else {
		log.Warn("DATABASE_URL not set, using in-memory event store")
	}

	// Aggregate cache: redis when configured, in-memory otherwise.
	var cache ledger.AggregateCache = aggregate.NewInMemoryCache()
	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		cache = aggregate.NewRedisCache(redisClient.Client)
		log.Info("aggregate cache: redis")
	} else {
		log.Warn("REDIS_URL not set, using in-memory aggregate cache")
	}

	metrics := ledgermetrics.New()
	ledgerService := service.New(events, cache, clock.System(), loc, log, metrics)
	ledgerHandler := handler.NewHandler(ledgerService, log, cfg.Server.AdminTokenHash)
	validator := token.NewValidator(cfg.Server.JWTSigningKey)

	router := buildRouter(ledgerHandler, validator, log, db, redisClient)
	srv := httpserver.New(cfg.Server.Addr, router)

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("starting japa ledger", "addr", cfg.Server.Addr, "timezone", cfg.Ledger.Timezone)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.Kafka.Brokers != "" {
		brokers := strings.Split(cfg.Kafka.Brokers, ",")
		if err := ingest.EnsureTopic(ctx, brokers, cfg.Kafka.Topic); err != nil {
			log.Error("topic setup failed", "topic", cfg.Kafka.Topic, "error", err)
			os.Exit(1)
		}
		consumer, err := ingest.NewConsumer(brokers, cfg.Kafka.Topic, cfg.Kafka.Group, ledgerService, log)
		if err != nil {
			log.Error("consumer setup failed", "error", err)
			os.Exit(1)
		}
		defer consumer.Close()
		group.Go(func() error {
			log.Info("starting detection consumer", "topic", cfg.Kafka.Topic, "group", cfg.Kafka.Group)
			err := consumer.Run(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		log.Warn("KAFKA_BROKERS not set, detection ingest disabled")
	}

	worker := reconcile.NewWorker(ledgerService, cfg.Ledger.ReconcileInterval, log)
	group.Go(func() error {
		err := worker.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if err := group.Wait(); err != nil {
		log.Error("shutdown with error", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

// buildRouter assembles the middleware chain and routes. Ledger routes sit
// behind identity auth; the admin route authenticates with the operator
// token inside the handler; health and metrics are open.
func buildRouter(ledgerHandler *handler.Handler, validator middleware.TokenValidator, log *slog.Logger, db *sql.DB, redisClient *redis.Client) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.ClientMetadata)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", healthHandler(db, redisClient))

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(validator, log))
		ledgerHandler.RegisterRoutes(r)
	})
	ledgerHandler.RegisterAdminRoutes(r)

	return r
}

func healthHandler(db *sql.DB, redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		checks := map[string]string{}
		healthy := true

		if db != nil {
			if err := postgres.Health(ctx, db); err != nil {
				checks["postgres"] = err.Error()
				healthy = false
			} else {
				checks["postgres"] = "ok"
			}
		}
		if redisClient != nil {
			if err := redisClient.Health(ctx); err != nil {
				checks["redis"] = err.Error()
				healthy = false
			} else {
				checks["redis"] = "ok"
			}
		}

		status := http.StatusOK
		state := "ok"
		if !healthy {
			status = http.StatusServiceUnavailable
			state = "degraded"
		}
		httputil.WriteJSON(w, status, map[string]any{"status": state, "checks": checks})
	}
}
