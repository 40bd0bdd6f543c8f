package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"webstore-backend/internal/api/handlers"
	"webstore-backend/internal/api/middleware"
	"webstore-backend/internal/cache"
	"webstore-backend/internal/config"
	"webstore-backend/internal/currency"
	"webstore-backend/internal/health"
	"webstore-backend/internal/metrics"
	repository "webstore-backend/internal/repositories"
	service "webstore-backend/internal/services"
	"webstore-backend/pkg/sendGrid"
)

func main() {

	// Logger setup
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load config
	cfg := config.MustLoad()

	// Database setup
	repos, err := repository.New(cfg)
	if err != nil {
		slog.Error("Error accessing the database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	defer func() {
		if err := repos.Close(); err != nil {
			slog.Error("Error closing database connection", slog.String("error", err.Error()))
		} else {
			slog.Info("Database connection closed")
		}
	}()

	// Redis setup
	redisClient, err := repository.NewRedisClient(cfg)
	if err != nil {
		slog.Error("Error accessing the redis instance", slog.String("error", err.Error()))
		os.Exit(1)
	}

	productCache := cache.NewRedisCache(redisClient, &cfg.Cache)

	// Currency conversion
	rateSource := currency.NewHTTPRateSource(&cfg.Currency)
	converter := currency.NewConverter(rateSource, &cfg.Currency, time.Now)

	jwtKey := []byte(cfg.Security.JWTKey)
	sendGridClient := sendGrid.NewEmailService(cfg.SendGrid.APIKey, cfg.SendGrid.FromEmail, cfg.SendGrid.FromName)

	catalogService := service.NewCatalogService(repos.Product, productCache, &cfg.Cache)
	cartService := service.NewCartService(repos.Cart, repos.User, catalogService, converter, sendGridClient, cfg.Checkout.MaxRetries)
	cartHandler := handlers.NewCartHandler(cartService)
	userService := service.NewUserService(repos.User)
	userHandler := handlers.NewUserHandler(userService)
	authMiddleware := middleware.NewAuthMiddleware(jwtKey)

	healthHandler, err := health.NewHealthHandler(cfg)
	if err != nil {
		slog.Error("Error creating health handler", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("storage initialized", slog.String("env", cfg.Env), slog.String("version", "1.0.0"))

	// Setup router
	routerMux := http.NewServeMux()
	routerMux.HandleFunc("GET /api/v1/carts", authMiddleware.Authenticate(cartHandler.GetCart()))
	routerMux.HandleFunc("POST /api/v1/carts/items/{productId}", authMiddleware.Authenticate(cartHandler.AddProduct()))
	routerMux.HandleFunc("DELETE /api/v1/carts/items/{productId}", authMiddleware.Authenticate(cartHandler.RemoveProduct()))
	routerMux.HandleFunc("PATCH /api/v1/carts/items/{itemId}/select", authMiddleware.Authenticate(cartHandler.ToggleSelect()))
	routerMux.HandleFunc("POST /api/v1/carts/checkout", authMiddleware.Authenticate(cartHandler.Checkout()))
	routerMux.HandleFunc("PUT /api/v1/users/currency", authMiddleware.Authenticate(userHandler.UpdateCurrency()))
	routerMux.Handle("GET /health", healthHandler.Handler())
	routerMux.Handle("GET /metrics", metrics.Handler())

	// Middleware chaining
	var handler http.Handler = routerMux
	handler = metrics.Middleware(handler)
	handler = middleware.Logging(handler)

	// Setup http server
	server := http.Server{
		Addr:    cfg.Addr,
		Handler: handler,
	}

	slog.Info("Server is starting", slog.String("address", cfg.Addr))

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("Failed to start server", slog.String("error", err.Error()))
		}
	}()

	<-done

	slog.Warn("Shutdown signal received. Preparing to stop the server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown encountered an issue", slog.String("error", err.Error()))
	} else {
		slog.Info("Server shut down gracefully. All connections closed")
	}
}
