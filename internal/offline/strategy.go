package offline

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// CacheStatus reports how a response was produced.
type CacheStatus string

const (
	CacheStatusHit     CacheStatus = "HIT"
	CacheStatusMiss    CacheStatus = "MISS"
	CacheStatusStale   CacheStatus = "STALE"
	CacheStatusBypass  CacheStatus = "BYPASS"
	CacheStatusOffline CacheStatus = "OFFLINE"
)

// Expiration bounds the age and size of a cache. Zero values disable a bound.
type Expiration struct {
	MaxAge     time.Duration
	MaxEntries int
}

func (e Expiration) fresh(storedAt, now time.Time) bool {
	if e.MaxAge <= 0 {
		return true
	}
	return now.Sub(storedAt) < e.MaxAge
}

// Strategy decides how a matched request is answered.
type Strategy interface {
	Cache() string
	handle(request *http.Request, gateway *Gateway) (strategyResult, error)
}

type strategyResult struct {
	entry  Entry
	status CacheStatus
}

// CacheFirst answers from the cache when a fresh entry exists and only
// consults the network on a miss.
type CacheFirst struct {
	CacheName  string
	Expiration Expiration
}

// Cache returns the cache name.
func (s CacheFirst) Cache() string {
	return s.CacheName
}

func (s CacheFirst) handle(request *http.Request, gateway *Gateway) (strategyResult, error) {
	ctx := request.Context()
	key := CacheKey(request)

	cached, found := gateway.lookup(ctx, s.CacheName, key)
	if found {
		if s.Expiration.fresh(cached.StoredAt, gateway.clock()) {
			return strategyResult{entry: cached, status: CacheStatusHit}, nil
		}
		gateway.remove(ctx, s.CacheName, key)
	}

	fetched, err := gateway.fetch(request)
	if err != nil {
		return strategyResult{}, err
	}
	gateway.admit(ctx, s.CacheName, s.Expiration, fetched)
	return strategyResult{entry: fetched, status: CacheStatusMiss}, nil
}

// StaleWhileRevalidate answers from the cache immediately and refreshes the
// entry in the background. Misses wait for the network.
type StaleWhileRevalidate struct {
	CacheName  string
	Expiration Expiration
}

// Cache returns the cache name.
func (s StaleWhileRevalidate) Cache() string {
	return s.CacheName
}

func (s StaleWhileRevalidate) handle(request *http.Request, gateway *Gateway) (strategyResult, error) {
	ctx := request.Context()
	key := CacheKey(request)

	cached, found := gateway.lookup(ctx, s.CacheName, key)
	if found && !s.Expiration.fresh(cached.StoredAt, gateway.clock()) {
		gateway.remove(ctx, s.CacheName, key)
		found = false
	}

	refresh := gateway.revalidate(request, s.CacheName, s.Expiration)
	if found {
		gateway.background.Add(1)
		go func() {
			defer gateway.background.Done()
			<-refresh
		}()
		return strategyResult{entry: cached, status: CacheStatusStale}, nil
	}

	outcome := <-refresh
	if outcome.Err != nil {
		return strategyResult{}, outcome.Err
	}
	fetched, _ := outcome.Val.(Entry)
	return strategyResult{entry: CloneEntry(fetched), status: CacheStatusMiss}, nil
}

// admit stores a network response when its status is cacheable, then applies expiration.
func (g *Gateway) admit(ctx context.Context, cacheName string, expiration Expiration, entry Entry) {
	if !g.cacheable(entry.Status) {
		g.logger.Debug("response not cacheable",
			zap.String("cache", cacheName),
			zap.String("url", entry.Key),
			zap.Int("status", entry.Status))
		return
	}

	stored := CloneEntry(entry)
	stored.Header.Del("Set-Cookie")
	stored.Header.Del(HeaderRequestID)
	stored.StoredAt = g.clock()
	if err := g.storage.Put(ctx, cacheName, stored); err != nil {
		g.logger.Warn("cache write failed",
			zap.String("cache", cacheName),
			zap.String("url", entry.Key),
			zap.Error(err))
		return
	}
	g.expire(ctx, cacheName, expiration)
}

// expire removes entries past their maximum age, then the oldest entries beyond the cap.
func (g *Gateway) expire(ctx context.Context, cacheName string, expiration Expiration) {
	if expiration.MaxAge <= 0 && expiration.MaxEntries <= 0 {
		return
	}
	metas, err := g.storage.Keys(ctx, cacheName)
	if err != nil {
		g.logger.Warn("cache expiration scan failed", zap.String("cache", cacheName), zap.Error(err))
		return
	}

	now := g.clock()
	retained := make([]EntryMeta, 0, len(metas))
	for _, meta := range metas {
		if !expiration.fresh(meta.StoredAt, now) {
			g.remove(ctx, cacheName, meta.Key)
			continue
		}
		retained = append(retained, meta)
	}

	if expiration.MaxEntries <= 0 || len(retained) <= expiration.MaxEntries {
		return
	}
	for _, meta := range retained[:len(retained)-expiration.MaxEntries] {
		g.remove(ctx, cacheName, meta.Key)
	}
}
