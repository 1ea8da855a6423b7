package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/celerix-dev/negmarket/internal/api"
	"github.com/celerix-dev/negmarket/internal/config"
	"github.com/celerix-dev/negmarket/internal/i18n"
	"github.com/celerix-dev/negmarket/internal/logger"
	"github.com/celerix-dev/negmarket/internal/market"
	"github.com/celerix-dev/negmarket/internal/metrics"
	"github.com/celerix-dev/negmarket/internal/notify"
	"github.com/celerix-dev/negmarket/internal/seed"
	"github.com/celerix-dev/negmarket/internal/server"
	"github.com/celerix-dev/negmarket/internal/vault"
	"github.com/celerix-dev/negmarket/pkg/engine"
	"github.com/celerix-dev/negmarket/pkg/sdk"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "negmarket-stored: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Configuration and logging
	cfg, err := config.Load(os.Getenv("NEGMARKET_CONFIG"))
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return err
	}
	defer log.Sync()

	// 2. Seed the session
	gen := seed.New(seed.Config{
		CatalogSize:     cfg.Market.CatalogSize,
		StartingCredits: cfg.Market.StartingCredits,
		Seed:            cfg.Market.Seed,
	})
	store, err := engine.Seed(gen)
	if err != nil {
		return fmt.Errorf("seed market: %w", err)
	}
	log.Info("Market seeded",
		logger.Int("listings", len(store.Listings())),
		logger.Int("accounts", len(store.Accounts())),
	)

	// 3. Coordinator
	m := metrics.New()
	emitter := notify.NewEmitter(cfg.Market.NotificationTTL, notify.WithIdleHook(func() {
		log.Debug("Notification expired")
	}))
	coord := market.New(store, emitter,
		market.WithLogger(log),
		market.WithMetrics(m),
		market.WithUploadDelay(cfg.Market.UploadDelay),
	)
	mkt := sdk.NewEmbedded(coord)

	// 4. TCP console
	router := server.NewRouter(mkt,
		server.WithLogger(log.With(logger.String("component", "tcp"))),
		server.WithMaxConns(cfg.TCP.MaxConns),
		server.WithPriceCeiling(cfg.Market.DefaultPriceCeiling),
	)
	if !cfg.TCP.DisableTLS {
		cert, err := vault.GenerateSelfSignedCert()
		if err != nil {
			return fmt.Errorf("generate TLS certificate: %w", err)
		}
		router.SetCertificate(cert)
	} else {
		log.Warn("TLS disabled for the TCP console")
	}

	// 5. HTTP API
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), m.Middleware(), api.CORS())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	h := &api.Handler{
		Market:       mkt,
		I18n:         i18n.New(),
		PriceCeiling: cfg.Market.DefaultPriceCeiling,
		Locale:       cfg.Market.Locale,
	}
	h.Register(r.Group("/api"))
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})

	srv := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.HTTP.Port),
		Handler: r,
	}

	// 6. Start servers
	errCh := make(chan error, 2)
	go func() {
		log.Info("HTTP API listening", logger.Int("port", cfg.HTTP.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		if err := router.Listen(strconv.Itoa(cfg.TCP.Port)); err != nil {
			errCh <- fmt.Errorf("tcp server: %w", err)
		}
	}()

	// 7. Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case err = <-errCh:
		log.Error("Server failed", logger.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	router.Stop()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Warn("HTTP shutdown incomplete", logger.Error(shutdownErr))
	}
	coord.Close()

	log.Info("Shutdown complete")
	return err
}
