// Aura storefront service - cart API, Shopify checkout proxy and webhooks.
// Designed for Cloud Run deployment; session carts live in the configured storage backend.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aura-storefront/internal/cart"
	"aura-storefront/internal/catalog"
	"aura-storefront/internal/checkout"
	"aura-storefront/internal/config"
	"aura-storefront/internal/handler"
	"aura-storefront/internal/middleware"
	"aura-storefront/internal/shopify"
	"aura-storefront/internal/storage"
	"aura-storefront/internal/webhook"
)

// rateLimitBurst is the per-client burst allowed on checkout routes.
const rateLimitBurst = 5

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Initialize structured logger
	logger := initLogger(cfg)

	logger.Info("configuration loaded",
		slog.String("environment", cfg.Environment),
		slog.String("store_domain", cfg.Shopify.StoreDomain),
		slog.String("api_version", cfg.Shopify.APIVersion),
		slog.String("storage", cfg.Storage.Backend),
		slog.Bool("webhooks_enabled", cfg.Shopify.WebhookSecret != ""),
	)

	store, err := storage.Open(ctx, storage.Options{
		Backend:  cfg.Storage.Backend,
		Dir:      cfg.Storage.Dir,
		RedisURL: cfg.Storage.RedisURL,
	})
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	if c, ok := store.(io.Closer); ok {
		defer c.Close()
	}

	client := shopify.NewClient(shopify.Options{
		StoreDomain:     cfg.Shopify.StoreDomain,
		StorefrontToken: cfg.Shopify.StorefrontToken,
		APIVersion:      cfg.Shopify.APIVersion,
		Logger:          logger,
	})

	cat, err := loadCatalog(ctx, cfg, client, logger)
	if err != nil {
		return err
	}

	shipping := cart.ShippingPolicy{
		FreeThreshold: cfg.Shipping.FreeThreshold,
		FlatRate:      cfg.Shipping.FlatRate,
	}

	limit := middleware.RateLimit(middleware.RateLimitOptions{
		RPS:              cfg.RateLimitRPS,
		Burst:            rateLimitBurst,
		TrustedProxyHops: cfg.TrustedProxyHops,
	}, logger)

	h := handler.New(handler.Options{
		Bridge:               checkout.NewBridge(client, logger),
		Sessions:             cart.NewSessions(store, cart.WithShipping(shipping), cart.WithLogger(logger)),
		Catalog:              cat,
		Webhooks:             webhook.NewReceiver(cfg.Shopify.WebhookSecret, webhook.NewDefaultDispatcher(logger), logger),
		RateLimit:            limit,
		DefaultVariantID:     cfg.DefaultVariantID,
		DefaultProductHandle: cfg.DefaultProductHandle,
		Logger:               logger,
	})

	// Setup routes
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	// Apply middleware chain: recovery → request ID → logging → handler
	// Recovery must be outermost to catch panics from logging middleware
	httpHandler := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logging(logger),
	)(mux)

	// Create HTTP server with timeouts
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpHandler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Channel for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Channel for server errors
	serverErr := make(chan error, 1)

	go func() {
		logger.Info("server starting",
			slog.String("port", cfg.Port),
			slog.String("addr", server.Addr),
		)
		serverErr <- server.ListenAndServe()
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-shutdown:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		// Give outstanding requests time to complete
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			// Force close if graceful shutdown fails
			server.Close()
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	logger.Info("server stopped")
	return nil
}

// loadCatalog returns the static catalog, optionally filling missing
// variant references from Shopify by product handle.
func loadCatalog(ctx context.Context, cfg *config.Config, client *shopify.Client, logger *slog.Logger) (*catalog.Catalog, error) {
	cat := catalog.Default()

	missing := cat.MissingVariants()
	if len(missing) == 0 {
		return cat, nil
	}
	if !cfg.ResolveVariants {
		for _, p := range missing {
			logger.Warn("product has no Shopify variant; checkout will fail for it",
				slog.String("product", p.Info().ID))
		}
		return cat, nil
	}

	resolveCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	refs, unresolved, err := shopify.ResolveVariants(resolveCtx, client, missing)
	if err != nil {
		return nil, fmt.Errorf("resolving variants: %w", err)
	}
	for _, id := range unresolved {
		logger.Warn("no available Shopify variant", slog.String("product", id))
	}
	logger.Info("variants resolved", slog.Int("resolved", len(refs)), slog.Int("unresolved", len(unresolved)))
	return cat.WithVariants(refs), nil
}

// initLogger creates a structured logger configured for the environment.
// Production uses JSON format for GCP Cloud Logging compatibility.
// Development uses text format for readability.
func initLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{
		Level: level,
		// Add source location in debug mode
		AddSource: level == slog.LevelDebug,
	}

	// JSON for production (Cloud Logging compatible), text for development
	var logger *slog.Logger
	if cfg.IsProduction() {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, opts))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	slog.SetDefault(logger)
	return logger
}
