package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/ruralpay/minibank/docs"
	"github.com/ruralpay/minibank/internal/config"
	"github.com/ruralpay/minibank/internal/database"
	"github.com/ruralpay/minibank/internal/handlers"
	mW "github.com/ruralpay/minibank/internal/middleware"
	"github.com/ruralpay/minibank/internal/services"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title Minibank Ledger API
// @version 1.0
// @description Multi-user ledger: accounts, deposits, withdrawals, transfers and history
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	config.Load()

	port := viper.GetString("server.port")
	docs.SwaggerInfo.Host = "localhost:" + port

	db := database.InitDatabase()
	defer db.Close()

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.Migrate(migrateCtx, db); err != nil {
		log.Fatalf("Failed to migrate schema: %v", err)
	}
	cancelMigrate()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	ledgerService := services.NewLedgerService(db, config.LoadLedgerConfig())
	ledgerHandler := handlers.NewLedgerHandler(ledgerService)
	authService := services.NewAuthService(db, redisClient)
	authenticator := mW.NewAuthenticator(redisClient)

	idempotencyTTL := viper.GetDuration("idempotency.ttl")
	if idempotencyTTL <= 0 {
		idempotencyTTL = 24 * time.Hour
	}
	idempotent := mW.Idempotency(redisClient, idempotencyTTL)

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", mW.IdempotencyHeader},
		ExposedHeaders:   []string{"X-Idempotency-Hit"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			log.Printf("[HTTP] Health check failed: %v", err)
			services.SendJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
		services.SendJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", authService.Register)
		r.Post("/auth/login", authService.Login)

		r.Group(func(r chi.Router) {
			r.Use(authenticator.Middleware)

			r.Post("/auth/logout", authService.Logout)

			r.Post("/accounts", ledgerHandler.CreateAccount)
			r.Get("/accounts", ledgerHandler.ListAccounts)
			r.Get("/accounts/{id}", ledgerHandler.GetAccount)
			r.Get("/accounts/{id}/transactions", ledgerHandler.AccountHistory)
			r.Get("/transactions", ledgerHandler.History)

			// Money movements replay their first response for a repeated Idempotency-Key.
			r.Group(func(r chi.Router) {
				r.Use(idempotent)
				r.Post("/accounts/{id}/deposit", ledgerHandler.Deposit)
				r.Post("/accounts/{id}/withdraw", ledgerHandler.Withdraw)
				r.Post("/transfers", ledgerHandler.Transfer)
			})
		})
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
