// DigiData Server
//
// Features:
// - Hierarchical drive metadata with trash, restore, and purge
// - Starring, sharing grants, and per-user storage quotas
// - Content upload/download with async thumbnail generation
// - Drive/recent/starred/shared/trash/search views
// - SSE real-time events
// - Prometheus metrics & structured logging (zap)
// - Multi-backend storage (S3, local)
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/arjunkorath02/DigiData/internal/api"
	"github.com/arjunkorath02/DigiData/internal/config"
	"github.com/arjunkorath02/DigiData/internal/drive"
	"github.com/arjunkorath02/DigiData/internal/events"
	"github.com/arjunkorath02/DigiData/internal/identity"
	"github.com/arjunkorath02/DigiData/internal/logging"
	"github.com/arjunkorath02/DigiData/internal/metrics"
	"github.com/arjunkorath02/DigiData/internal/persistence/postgres"
	"github.com/arjunkorath02/DigiData/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Can't use structured logging yet
		panic("configuration error: " + err.Error())
	}

	// Initialize structured logging
	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		panic("logging init error: " + err.Error())
	}
	defer logging.Sync()

	logging.Info("DigiData Server starting...",
		zap.String("listen", cfg.ListenAddr),
		zap.String("metrics", cfg.MetricsAddr))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize PostgreSQL
	logging.Info("connecting to PostgreSQL...")
	db, err := postgres.New(cfg.DatabaseURL)
	if err != nil {
		logging.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	if cfg.MigrationsDir != "" {
		logging.Info("running migrations...", zap.String("dir", cfg.MigrationsDir))
		if err := db.Migrate(cfg.MigrationsDir); err != nil {
			logging.Fatal("migration failed", zap.Error(err))
		}
	}

	// Initialize the drive core and hydrate it from the database
	driveStore := drive.NewStore(drive.Config{
		LockTimeout:       cfg.LockTimeout,
		DefaultQuotaBytes: cfg.DefaultStorageLimit,
	})
	if err := db.LoadAll(ctx, driveStore); err != nil {
		logging.Fatal("hydration failed", zap.Error(err))
	}

	// Initialize identity service
	users := identity.New(db.DB(), cfg.JWTSecret, cfg.TokenTTL, cfg.DefaultStorageLimit)

	// Initialize OIDC provider (optional)
	if cfg.OIDCIssuerURL != "" {
		oidcProvider, err := identity.NewOIDCProvider(ctx, identity.OIDCConfig{
			IssuerURL:    cfg.OIDCIssuerURL,
			ClientID:     cfg.OIDCClientID,
			ClientSecret: cfg.OIDCClientSecret,
		}, users)
		if err != nil {
			logging.Fatal("OIDC provider init failed", zap.Error(err))
		}
		if oidcProvider != nil {
			users.SetOIDCProvider(oidcProvider)
		}
	}

	// Initialize storage backend
	blobs, err := storage.Open(ctx, cfg)
	if err != nil {
		logging.Fatal("storage backend init failed", zap.Error(err))
	}
	defer blobs.Close()
	logging.Info("storage backend ready", zap.String("type", blobs.Type()))

	// Initialize SSE broadcaster
	broadcaster := events.NewBroadcaster()

	// Create API server
	srv := api.NewServer(cfg, driveStore, db, blobs, users, broadcaster)

	// Start metrics server
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metrics.Handler(),
	}
	go func() {
		logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logging.Error("metrics server error", zap.Error(err))
		}
	}()

	// Start HTTP server
	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Handler(),
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logging.Info("shutting down...")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
		metricsServer.Close()
	}()

	// Start periodic metrics update
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				db.UpdateConnectionMetrics()
				if n, err := db.NodeCount(ctx); err == nil {
					metrics.SetNodeCount(n)
				}
			}
		}
	}()

	logging.Info("server listening", zap.String("addr", cfg.ListenAddr))
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		logging.Fatal("server error", zap.Error(err))
	}
}
