package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	declhandler "habita/internal/declaration/handler"
	declservice "habita/internal/declaration/service"
	declstore "habita/internal/declaration/store"
	"habita/internal/engine"
	"habita/internal/history"
	"habita/internal/jwtauth"
	"habita/internal/notify"
	"habita/internal/platform/config"
	"habita/internal/platform/httpserver"
	"habita/internal/platform/logger"
	"habita/internal/platform/metrics"
	"habita/internal/platform/middleware"
	"habita/internal/platform/postgres"
	platformredis "habita/internal/platform/redis"
	provcache "habita/internal/provider/cache"
	provhandler "habita/internal/provider/handler"
	provservice "habita/internal/provider/service"
	provstore "habita/internal/provider/store"
)

const issuer = "habita"

// main wires dependencies and owns the process lifecycle. Business logic
// lives under internal/.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	appMetrics := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores: postgres when configured, in-memory otherwise (dev mode).
	var (
		db           *sql.DB
		declarations declstore.Store
		providers    provservice.Store
		historyLog   history.Store
	)
	if cfg.DatabaseURL != "" {
		var err error
		db, err = postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Error("failed to apply migrations", "error", err)
			os.Exit(1)
		}
		declarations = declstore.NewPostgres(db)
		providers = provstore.NewPostgres(db)
		historyLog = history.NewPostgres(db)
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		declarations = declstore.NewInMemory()
		providers = provstore.NewInMemory()
		historyLog = history.NewInMemoryStore()
	}

	var redisClient *platformredis.Client
	if cfg.RedisURL != "" {
		var err error
		redisClient, err = platformredis.New(ctx, cfg.RedisURL)
		if err != nil {
			log.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
	}

	notifiers := notify.Fanout{notify.NewLogNotifier(log)}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaNotifier, err := notify.NewKafkaNotifier(ctx, cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Error("failed to connect to kafka", "error", err)
			os.Exit(1)
		}
		defer kafkaNotifier.Close()
		notifiers = append(notifiers, kafkaNotifier)
	}

	jwtValidator := jwtauth.New(cfg.JWTSigningKey, issuer)

	providerOpts := []provservice.Option{
		provservice.WithLogger(log),
		provservice.WithMetrics(appMetrics),
	}
	if redisClient != nil {
		providerOpts = append(providerOpts, provservice.WithCache(provcache.New(redisClient, 30*time.Second)))
	}
	providerService := provservice.New(providers, providerOpts...)

	declarationService := declservice.New(declarations, historyLog,
		declservice.WithLogger(log),
		declservice.WithMetrics(appMetrics),
	)

	lifecycle := engine.New(declarations, providerService, historyLog, notifiers,
		engine.WithLogger(log),
		engine.WithMetrics(appMetrics),
		engine.WithNotifyTimeout(cfg.NotifyTimeout),
	)

	router := chi.NewRouter()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(log))
	router.Use(middleware.Timeout(30 * time.Second))

	router.Get("/healthz", healthz(db, redisClient))
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	declhandler.New(declarationService, lifecycle, jwtValidator, log).Register(router)
	provhandler.New(providerService, jwtValidator, log).Register(router)

	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("starting habita server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func healthz(db *sql.DB, redisClient *platformredis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		if redisClient != nil {
			if err := redisClient.Health(ctx); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	}
}
