package offline

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	headerCacheStatus = "X-Cache"

	// HeaderRequestID carries the per-request id. It is never cached.
	HeaderRequestID = "X-Request-ID"
)

//go:embed offline.html
var defaultFallbackDocument []byte

var (
	errMissingStorage = errors.New("offline: storage is required")
	errMissingFetcher = errors.New("offline: fetcher is required")

	// DefaultCacheableStatuses admits opaque (0) and OK (200) responses.
	DefaultCacheableStatuses = []int{0, http.StatusOK}

	hopByHopHeaders = []string{
		"Connection", "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization",
		"Te", "Trailer", "Transfer-Encoding", "Upgrade", "Content-Length",
	}
)

// FallbackDocument returns the built-in offline page.
func FallbackDocument() []byte {
	return slices.Clone(defaultFallbackDocument)
}

// GatewayConfig describes the dependencies of a Gateway.
type GatewayConfig struct {
	Policy            Policy
	Storage           Storage
	Fetcher           Fetcher
	Clock             func() time.Time
	Logger            *zap.Logger
	FallbackDocument  []byte
	CacheableStatuses []int
}

// Gateway intercepts requests and answers them according to its Policy.
type Gateway struct {
	policy     Policy
	storage    Storage
	fetcher    Fetcher
	clock      func() time.Time
	logger     *zap.Logger
	fallback   []byte
	statuses   []int
	refreshes  singleflight.Group
	background sync.WaitGroup
}

// NewGateway validates the configuration and constructs a Gateway.
func NewGateway(cfg GatewayConfig) (*Gateway, error) {
	if cfg.Storage == nil {
		return nil, errMissingStorage
	}
	if cfg.Fetcher == nil {
		return nil, errMissingFetcher
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	fallback := cfg.FallbackDocument
	if len(fallback) == 0 {
		fallback = defaultFallbackDocument
	}
	statuses := cfg.CacheableStatuses
	if len(statuses) == 0 {
		statuses = DefaultCacheableStatuses
	}
	return &Gateway{
		policy:   cfg.Policy,
		storage:  cfg.Storage,
		fetcher:  cfg.Fetcher,
		clock:    clock,
		logger:   logger,
		fallback: slices.Clone(fallback),
		statuses: slices.Clone(statuses),
	}, nil
}

// CacheKey identifies the cached response for a request.
func CacheKey(request *http.Request) string {
	return request.URL.RequestURI()
}

// ServeHTTP answers GET requests through the matching route and passes every
// other request to the network. Failed navigations resolve to the fallback document.
func (g *Gateway) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	if request.Header == nil {
		request.Header = http.Header{}
	}
	requestID := request.Header.Get(HeaderRequestID)
	if requestID == "" {
		requestID = newRequestID()
		request.Header.Set(HeaderRequestID, requestID)
	}
	writer.Header().Set(HeaderRequestID, requestID)

	route, matched := Route{}, false
	if request.Method == http.MethodGet {
		route, matched = g.policy.match(request)
	}

	var (
		result strategyResult
		err    error
	)
	if matched {
		result, err = route.Strategy.handle(request, g)
	} else {
		var entry Entry
		entry, err = g.fetch(request)
		result = strategyResult{entry: entry, status: CacheStatusBypass}
	}

	if err != nil {
		g.logger.Info("request failed",
			zap.String("request_id", requestID),
			zap.String("route", route.Name),
			zap.String("method", request.Method),
			zap.String("url", CacheKey(request)),
			zap.Error(err))
		if IsNavigation(request) {
			g.serveFallback(writer)
			return
		}
		writer.Header().Set(headerCacheStatus, string(CacheStatusOffline))
		http.Error(writer, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}

	writeEntry(writer, result.entry, result.status, requestID)
	g.logger.Debug("request served",
		zap.String("request_id", requestID),
		zap.String("route", route.Name),
		zap.String("url", CacheKey(request)),
		zap.String("cache_status", string(result.status)),
		zap.Int("status", result.entry.Status))
}

// Warm fetches each URL through strategy so that it is cached before first use.
func (g *Gateway) Warm(ctx context.Context, strategy Strategy, urls ...string) error {
	var failures []error
	for _, target := range urls {
		request, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
		if err != nil {
			failures = append(failures, fmt.Errorf("warm %s: %w", target, err))
			continue
		}
		request.Header.Set(headerFetchMode, fetchModeNavigate)
		request.Header.Set(headerFetchDest, string(DestinationDocument))
		if _, err := strategy.handle(request, g); err != nil {
			failures = append(failures, fmt.Errorf("warm %s: %w", target, err))
		}
	}
	return errors.Join(failures...)
}

// Wait blocks until background refreshes started so far have finished.
func (g *Gateway) Wait() {
	g.background.Wait()
}

func (g *Gateway) serveFallback(writer http.ResponseWriter) {
	writer.Header().Set("Content-Type", "text/html; charset=utf-8")
	writer.Header().Set("Cache-Control", "no-store")
	writer.Header().Set(headerCacheStatus, string(CacheStatusOffline))
	writer.WriteHeader(http.StatusOK)
	_, _ = writer.Write(g.fallback)
}

func (g *Gateway) lookup(ctx context.Context, cacheName, key string) (Entry, bool) {
	entry, found, err := g.storage.Match(ctx, cacheName, key)
	if err != nil {
		g.logger.Warn("cache lookup failed", zap.String("cache", cacheName), zap.String("url", key), zap.Error(err))
		return Entry{}, false
	}
	return entry, found
}

func (g *Gateway) remove(ctx context.Context, cacheName, key string) {
	if err := g.storage.Delete(ctx, cacheName, key); err != nil {
		g.logger.Warn("cache delete failed", zap.String("cache", cacheName), zap.String("url", key), zap.Error(err))
	}
}

func (g *Gateway) fetch(request *http.Request) (Entry, error) {
	entry, err := g.fetcher.Fetch(request)
	if err != nil {
		return Entry{}, err
	}
	entry.Key = CacheKey(request)
	return entry, nil
}

// revalidate starts, or joins, the single in-flight network refresh for a cache key.
func (g *Gateway) revalidate(request *http.Request, cacheName string, expiration Expiration) <-chan singleflight.Result {
	detached := request.Clone(context.WithoutCancel(request.Context()))
	flightKey := cacheName + " " + CacheKey(request)
	return g.refreshes.DoChan(flightKey, func() (any, error) {
		entry, err := g.fetch(detached)
		if err != nil {
			g.logger.Info("background refresh failed",
				zap.String("cache", cacheName),
				zap.String("url", CacheKey(detached)),
				zap.Error(err))
			return Entry{}, err
		}
		g.admit(detached.Context(), cacheName, expiration, entry)
		return entry, nil
	})
}

func (g *Gateway) cacheable(status int) bool {
	return slices.Contains(g.statuses, status)
}

func writeEntry(writer http.ResponseWriter, entry Entry, status CacheStatus, requestID string) {
	header := writer.Header()
	for name, values := range entry.Header {
		header[name] = slices.Clone(values)
	}
	for _, name := range hopByHopHeaders {
		header.Del(name)
	}
	header.Set("Content-Length", strconv.Itoa(len(entry.Body)))
	header.Set(headerCacheStatus, string(status))
	header.Set(HeaderRequestID, requestID)

	code := entry.Status
	if code == 0 {
		code = http.StatusOK
	}
	writer.WriteHeader(code)
	_, _ = writer.Write(entry.Body)
}

func newRequestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Installer installs a Gateway at most once per process.
type Installer struct {
	once    sync.Once
	gateway *Gateway
	logger  *zap.Logger
}

// NewInstaller constructs an Installer that reports failures through logger.
func NewInstaller(logger *zap.Logger) *Installer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Installer{logger: logger}
}

// Install runs build on the first call only. A failed build is logged and
// yields nil; the caller keeps serving without the cache layer.
func (i *Installer) Install(build func() (*Gateway, error)) *Gateway {
	logger := i.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	i.once.Do(func() {
		gateway, err := build()
		if err != nil {
			logger.Warn("offline cache registration failed", zap.Error(err))
			return
		}
		i.gateway = gateway
		logger.Info("offline cache registered")
	})
	return i.gateway
}
