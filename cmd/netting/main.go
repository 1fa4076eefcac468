// ==============================================================================
// NETTING SERVICE MAIN - cmd/netting/main.go
// ==============================================================================
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"findebt/internal/auth"
	"findebt/internal/handler"
	"findebt/internal/ledger"
	"findebt/internal/middleware"
	"findebt/internal/netting"
	"findebt/internal/repository/postgres"
	"findebt/internal/settlement"
	"findebt/pkg/cache"
	"findebt/pkg/config"
	"findebt/pkg/logger"
	"findebt/pkg/validator"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New("netting-service")

	if err := cfg.ValidateCore(); err != nil {
		log.Fatal("Invalid configuration", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Starting Netting Service", map[string]interface{}{
		"port": cfg.Server.Port,
	})

	// Database connection
	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatal("Failed to connect to database", map[string]interface{}{
			"error": err.Error(),
		})
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	// Redis: run locks, idempotency, rate limiting
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatal("Failed to connect to redis", map[string]interface{}{
			"error": err.Error(),
		})
	}
	defer redisCache.Close()

	// Repositories
	participantRepo := postgres.NewParticipantRepository(db)
	channelRepo := postgres.NewChannelRepository(db)
	obligationRepo := postgres.NewObligationRepository(db)
	settlementRepo := postgres.NewSettlementRepository(db)

	// Services
	engine := netting.NewEngine(log, cfg.Netting.MaxIterations)
	settlementService := settlement.NewService(
		participantRepo,
		channelRepo,
		obligationRepo,
		settlement.NewPostgresApplier(db),
		redisCache,
		engine,
		log,
		cfg.Netting.RunLockTTL,
		cfg.Netting.WorkerInterval,
	)
	ledgerService := ledger.NewService(participantRepo, channelRepo, obligationRepo, settlementRepo, log)
	authService := auth.NewService(participantRepo, cfg.JWT.Secret, cfg.JWT.Expiration)

	val := validator.New()

	// Handlers
	streamHub := handler.NewStreamHub(log)
	authHandler := handler.NewAuthHandler(authService, val, log)
	channelHandler := handler.NewChannelHandler(ledgerService, val, log)
	obligationHandler := handler.NewObligationHandler(ledgerService, val, log)
	settlementHandler := handler.NewSettlementHandler(settlementService, ledgerService, streamHub, log)
	participantHandler := handler.NewParticipantHandler(ledgerService, log)
	systemHandler := handler.NewSystemHandler(db, redisCache.Client(), log)

	// Router
	r := mux.NewRouter()

	r.Use(middleware.CORS)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CorrelationID)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.NewLoggingMiddleware(log).Log)
	r.Use(middleware.BodyLimit(1 << 20))

	r.HandleFunc("/health", systemHandler.Health).Methods("GET")
	r.HandleFunc("/ready", systemHandler.Ready).Methods("GET")
	r.HandleFunc("/ws/settlements", streamHub.Serve).Methods("GET")

	// Public auth routes
	authRouter := r.PathPrefix("/api/v1/auth").Subrouter()
	authRouter.HandleFunc("/register", authHandler.Register).Methods("POST")
	authRouter.HandleFunc("/login", authHandler.Login).Methods("POST")

	// Authenticated API routes
	authMw := middleware.NewAuthMiddleware(cfg.JWT.Secret)
	rateLimiter := middleware.NewRateLimiter(redisCache.Client(), 100, time.Minute)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(authMw.Authenticate)
	api.Use(rateLimiter.Limit)

	api.HandleFunc("/channels", channelHandler.List).Methods("GET")
	api.HandleFunc("/channels", channelHandler.Create).Methods("POST")
	api.HandleFunc("/participants/me/channels", channelHandler.SetMine).Methods("PUT")
	api.HandleFunc("/participants/me/summary", participantHandler.Summary).Methods("GET")

	api.HandleFunc("/obligations", obligationHandler.Create).Methods("POST")
	api.HandleFunc("/obligations", obligationHandler.History).Methods("GET")
	api.HandleFunc("/obligations/{id}", obligationHandler.Cancel).Methods("DELETE")

	api.HandleFunc("/settlements", settlementHandler.List).Methods("GET")
	api.HandleFunc("/settlements/{id}", settlementHandler.Get).Methods("GET")

	// Run initiation is guarded by idempotency keys on top of the run lock.
	idempotency := middleware.NewIdempotencyMiddleware(redisCache.Client(), 10*time.Minute, log)
	api.Handle("/settlements", idempotency.Require(http.HandlerFunc(settlementHandler.Initiate))).Methods("POST")

	// Server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("Netting service started", map[string]interface{}{
			"address": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down netting service...", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Netting service forced to shutdown", map[string]interface{}{
			"error": err.Error(),
		})
	}

	log.Info("Netting service stopped gracefully", nil)
}
