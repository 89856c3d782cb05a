package server

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/MarcoPoloResearchLab/receitas/internal/offline"
	"go.uber.org/zap"
)

// OfflineConfig describes the gateway placed in front of the application.
type OfflineConfig struct {
	Storage      offline.Storage
	Upstream     *url.URL
	Transport    http.RoundTripper
	FallbackPath string
	Clock        func() time.Time
	Logger       *zap.Logger
}

// WithOfflineCache installs the offline gateway in front of app and warms the
// page cache with the entry page and the fallback document. When the gateway
// cannot be installed the application is served directly.
func WithOfflineCache(ctx context.Context, installer *offline.Installer, app http.Handler, cfg OfflineConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	fallbackPath := cfg.FallbackPath
	if fallbackPath == "" {
		fallbackPath = defaultFallbackPath
	}

	gateway := installer.Install(func() (*offline.Gateway, error) {
		fetcher, err := newOriginFetcher(app, cfg)
		if err != nil {
			return nil, err
		}
		gateway, err := offline.NewGateway(offline.GatewayConfig{
			Policy:  offline.DefaultPolicy(),
			Storage: cfg.Storage,
			Fetcher: fetcher,
			Clock:   cfg.Clock,
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
		if err := gateway.Warm(ctx, offline.PageStrategy(), "/", fallbackPath); err != nil {
			logger.Warn("offline cache warm-up incomplete", zap.Error(err))
		}
		return gateway, nil
	})
	if gateway == nil {
		return app
	}
	return gateway
}

func newOriginFetcher(app http.Handler, cfg OfflineConfig) (offline.Fetcher, error) {
	if cfg.Upstream == nil {
		return offline.NewHandlerFetcher(app), nil
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	return offline.NewTransportFetcher(cfg.Upstream, transport)
}
