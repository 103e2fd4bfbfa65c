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
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/fkhayef/paygate/docs"
	"github.com/fkhayef/paygate/internal/config"
	"github.com/fkhayef/paygate/internal/database"
	"github.com/fkhayef/paygate/internal/ledger"
	"github.com/fkhayef/paygate/internal/metrics"
	"github.com/fkhayef/paygate/internal/notification"
	"github.com/fkhayef/paygate/internal/seller"
	"github.com/fkhayef/paygate/internal/webhook"
	mw "github.com/fkhayef/paygate/pkg/middleware"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := config.Load()

	if cfg.WebhookSecret == "" {
		log.Fatal("WEBHOOK_SECRET is required: unsigned settlement events must never be accepted")
	}

	// Initialize database connection
	db, err := database.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	log.Println("Connected to database successfully")

	metrics.Register()

	// Notification fan-out (best-effort, never blocks settlement)
	var mailer notification.Mailer
	if cfg.EmailAPIURL != "" {
		mailer = notification.NewAPIMailer(cfg.EmailAPIURL, cfg.EmailAPIKey, cfg.EmailFrom)
	} else {
		log.Println("EMAIL_API_URL not set, logging emails instead of sending")
		mailer = &notification.LogMailer{}
	}
	fanout := notification.NewFanout(mailer, 256)
	fanoutCtx, cancelFanout := context.WithCancel(context.Background())
	fanout.Start(fanoutCtx)
	defer cancelFanout()

	// Ledger feature
	ledgerRepo := ledger.NewRepository(db)
	ledgerService := ledger.NewService(ledgerRepo)
	ledgerHandler := ledger.NewHandler(ledgerService)

	// Seller feature
	sellerRepo := seller.NewRepository(db)
	sellerService := seller.NewService(sellerRepo, cfg.DefaultFeePercent)
	sellerHandler := seller.NewHandler(sellerService)

	// Webhook dispatcher
	dispatcher := webhook.NewDispatcher(cfg.WebhookSecret, cfg.DefaultFeePercent, ledgerService, fanout)
	webhookHandler := webhook.NewHandler(dispatcher)

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(mw.TestSellerMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Mount feature routers
		r.Mount("/webhooks", webhookHandler.Routes())
		r.Mount("/wallet", ledgerHandler.WalletRoutes())
		r.Mount("/links", ledgerHandler.LinkRoutes())
		r.Mount("/purchases", ledgerHandler.PurchaseRoutes())
		r.Mount("/sellers", sellerHandler.Routes())
	})

	// Start server
	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	go func() {
		log.Printf("Server starting on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Drain the fan-out queue before exiting so committed sales still get
	// their emails
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
	fanout.Stop()
}
