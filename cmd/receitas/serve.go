package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/receitas/internal/cachestore"
	"github.com/MarcoPoloResearchLab/receitas/internal/config"
	"github.com/MarcoPoloResearchLab/receitas/internal/database"
	"github.com/MarcoPoloResearchLab/receitas/internal/logging"
	"github.com/MarcoPoloResearchLab/receitas/internal/offline"
	"github.com/MarcoPoloResearchLab/receitas/internal/recipes"
	"github.com/MarcoPoloResearchLab/receitas/internal/server"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the recipe pages",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, store, err := openRecipeStore(ctx, appConfig, logger)
	if err != nil {
		return err
	}
	defer database.Close(db) //nolint:errcheck

	gin.SetMode(gin.ReleaseMode)
	handler, err := server.NewHTTPHandler(server.Dependencies{
		Recipes:      store,
		Clock:        time.Now,
		Logger:       logger,
		FallbackPath: appConfig.OfflineFallbackPath,
	})
	if err != nil {
		return err
	}

	if appConfig.OfflineEnabled {
		storage, closeStorage := openOfflineStorage(ctx, appConfig, db, logger)
		defer closeStorage()
		handler = server.WithOfflineCache(ctx, offline.NewInstaller(logger), handler, server.OfflineConfig{
			Storage:      storage,
			Upstream:     appConfig.OfflineUpstream,
			FallbackPath: appConfig.OfflineFallbackPath,
			Clock:        time.Now,
			Logger:       logger,
		})
	}

	httpServer := &http.Server{
		Addr:              appConfig.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress), zap.Bool("offline", appConfig.OfflineEnabled))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		if gateway, ok := handler.(*offline.Gateway); ok {
			gateway.Wait()
		}
		return err
	case err := <-errCh:
		return err
	}
}

func openRecipeStore(ctx context.Context, appConfig config.AppConfig, logger *zap.Logger) (*gorm.DB, *recipes.Store, error) {
	db, err := database.OpenSQLite(ctx, appConfig.DatabasePath, logger)
	if err != nil {
		return nil, nil, err
	}
	store, err := recipes.Open(ctx, recipes.StoreConfig{Database: db, Logger: logger})
	if err != nil {
		_ = database.Close(db)
		return nil, nil, err
	}
	return db, store, nil
}

// openOfflineStorage returns nil storage when the backend is unavailable; the
// gateway installer then logs the failure and the pages are served directly.
func openOfflineStorage(ctx context.Context, appConfig config.AppConfig, db *gorm.DB, logger *zap.Logger) (offline.Storage, func()) {
	noop := func() {}
	switch appConfig.OfflineBackend {
	case config.BackendMemory:
		return offline.NewMemoryStorage(), noop
	case config.BackendRedis:
		client, err := cachestore.OpenRedis(ctx, appConfig.RedisURL)
		if err != nil {
			logger.Warn("offline cache backend unavailable", zap.String("backend", appConfig.OfflineBackend), zap.Error(err))
			return nil, noop
		}
		storage, err := cachestore.NewRedisStorage(client, appConfig.RedisPrefix)
		if err != nil {
			_ = client.Close()
			logger.Warn("offline cache backend unavailable", zap.String("backend", appConfig.OfflineBackend), zap.Error(err))
			return nil, noop
		}
		return storage, func() { _ = client.Close() }
	default:
		storage, err := cachestore.NewGormStorage(ctx, db, logger)
		if err != nil {
			logger.Warn("offline cache backend unavailable", zap.String("backend", appConfig.OfflineBackend), zap.Error(err))
			return nil, noop
		}
		return storage, noop
	}
}
