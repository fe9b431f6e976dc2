package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	clerk "github.com/clerk/clerk-sdk-go/v2"
	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"habitCoachAPI/handlers"
	"habitCoachAPI/internal/config"
	"habitCoachAPI/internal/db"
	"habitCoachAPI/internal/logger"
	"habitCoachAPI/internal/metrics"
	"habitCoachAPI/internal/notification"
	"habitCoachAPI/internal/textgen"
	"habitCoachAPI/middleware"
	"habitCoachAPI/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Env, cfg.LogFile)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if cfg.ClerkSecretKey == "" {
		log.Fatal("CLERK_SECRET_KEY environment variable is not set")
	}
	clerk.SetKey(cfg.ClerkSecretKey)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	dbPool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		cancel()
		log.Fatal("failed to connect to database", "error", err)
	}
	applied, err := db.Migrate(ctx, dbPool)
	cancel()
	if err != nil {
		log.Fatal("failed to apply migrations", "error", err)
	}
	log.Info("database ready", "migrations_applied", len(applied))
	defer func() {
		log.Info("closing database connection pool")
		dbPool.Close()
	}()

	middleware.InitPrometheus(prometheus.DefaultRegisterer)
	metrics.Register(prometheus.DefaultRegisterer)

	userService := services.NewUserService(dbPool, log)
	habitService := services.NewHabitService(dbPool, log)
	logService := services.NewLogService(dbPool, log)
	coachService := services.NewCoachService(dbPool, log)
	syncService := services.NewSyncService(dbPool, logService, log)
	generator := textgen.NewClient(textgen.Config{
		URL:     cfg.AIURL,
		APIKey:  cfg.AIKey,
		Model:   cfg.AIModel,
		Timeout: cfg.AITimeout,
	}, log)
	insightService := services.NewInsightService(services.NewInsightStore(dbPool), generator, log)

	var reminders *services.ReminderDispatcher
	if cfg.RemindersEnabled {
		fcmService, err := notification.NewFCMService(context.Background(), cfg.FCMCredentialsJSON, cfg.FCMCredentialsFile, log)
		if err != nil {
			log.Warn("could not initialize FCM, reminders disabled", "error", err)
		} else {
			reminders = services.NewReminderDispatcher(dbPool, fcmService, log)
			reminders.Start()
			log.Info("reminder dispatcher started")
		}
	}

	stopCleanup := make(chan struct{})
	limiter, backend := buildLimiter(cfg, log, stopCleanup)

	userHandler := handlers.NewUserHandler(userService, log)
	habitHandler := handlers.NewHabitHandler(userService, habitService, log)
	analyticsHandler := handlers.NewAnalyticsHandler(userService, habitService, log)
	logHandler := handlers.NewLogHandler(userService, logService, log)
	coachHandler := handlers.NewCoachHandler(userService, coachService, log)
	insightHandler := handlers.NewInsightHandler(userService, insightService, cfg.AITimeout, log)
	syncHandler := handlers.NewSyncHandler(userService, syncService, log)

	r := mux.NewRouter()
	r.Use(middleware.MonitorMiddleware)
	r.Use(middleware.RateLimitMiddleware(limiter, backend, log))

	r.Handle("/metrics", middleware.BasicAuthMiddleware(cfg.MetricsUser, cfg.MetricsPass)(promhttp.Handler()))
	r.HandleFunc("/health", healthHandler(dbPool)).Methods("GET")

	// -------------------------------------------------------------------------
	// PROTECTED ROUTES (REQUIRE AUTH HEADER)
	// -------------------------------------------------------------------------
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.ClerkAuthMiddleware(middleware.ClerkVerifier, log))

	api.HandleFunc("/me", userHandler.GetProfile).Methods("GET")
	api.HandleFunc("/me", userHandler.UpdateProfile).Methods("PUT")
	api.HandleFunc("/devices", userHandler.RegisterDevice).Methods("POST")

	api.HandleFunc("/habits", habitHandler.List).Methods("GET")
	api.HandleFunc("/habits", habitHandler.Create).Methods("POST")
	api.HandleFunc("/habits/{id}", habitHandler.Get).Methods("GET")
	api.HandleFunc("/habits/{id}", habitHandler.Update).Methods("PUT")
	api.HandleFunc("/habits/{id}", habitHandler.Delete).Methods("DELETE")
	api.HandleFunc("/habits/{id}/archive", habitHandler.Archive).Methods("PATCH")

	api.HandleFunc("/habits/{id}/logs", logHandler.List).Methods("GET")
	api.HandleFunc("/habits/{id}/logs/upsert", logHandler.Upsert).Methods("POST")
	api.HandleFunc("/habits/{id}/logs/toggle-today", logHandler.ToggleToday).Methods("POST")

	api.HandleFunc("/analytics/summary", analyticsHandler.Summary).Methods("GET")

	api.HandleFunc("/sync/push", syncHandler.Push).Methods("POST")
	api.HandleFunc("/sync/pull", syncHandler.Pull).Methods("GET")

	api.HandleFunc("/coach/suggestions", coachHandler.Suggestions).Methods("GET")
	api.HandleFunc("/coach/suggestions/{id}/accept", coachHandler.Accept).Methods("POST")
	api.HandleFunc("/coach/suggestions/{id}/dismiss", coachHandler.Dismiss).Methods("POST")

	api.HandleFunc("/coach/ai/weekly", insightHandler.Weekly).Methods("GET")
	api.HandleFunc("/coach/ai/atomic", insightHandler.Atomic).Methods("POST")
	api.HandleFunc("/coach/ai/parse-log", insightHandler.ParseLog).Methods("POST")

	corsHandler := gorillaHandlers.CORS(
		gorillaHandlers.AllowedOrigins([]string{"*"}),
		gorillaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		gorillaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		gorillaHandlers.ExposedHeaders([]string{"Content-Length"}),
	)

	server := http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      corsHandler(r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.AITimeout + 15*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("error starting server", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	log.Info("got signal", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", "error", err)
	}
	close(stopCleanup)
	if reminders != nil {
		reminders.Stop()
	}

	log.Info("server shutdown complete")
}

func healthHandler(dbPool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := dbPool.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "database connection failed"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "habit-coach-api"}`))
	}
}

// buildLimiter uses the shared redis window when REDIS_URL is reachable and
// the in-process token bucket otherwise.
func buildLimiter(cfg *config.Config, log *logger.Logger, stop <-chan struct{}) (middleware.Limiter, string) {
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Warn("invalid REDIS_URL, using in-memory rate limiter", "error", err)
		} else {
			client := redis.NewClient(opts)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err = client.Ping(ctx).Err()
			cancel()
			if err == nil {
				perMinute := max(int64(cfg.RateLimitRPS*60), int64(cfg.RateLimitBurst))
				log.Info("redis rate limiter enabled", "addr", opts.Addr, "per_minute", perMinute)
				return middleware.NewRedisLimiter(client, perMinute, time.Minute), "redis"
			}
			log.Warn("redis unreachable, using in-memory rate limiter", "error", err)
			client.Close()
		}
	}

	l := middleware.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go l.CleanupVisitors(stop)
	return l, "memory"
}
