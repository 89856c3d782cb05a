package offline

import (
	"net/http"
	"path"
	"strings"
	"time"
)

const (
	// PageCacheName holds top-level page navigations.
	PageCacheName = "pwareceitas"
	// AssetCacheName holds style, script and worker assets.
	AssetCacheName = "asset-cache"
	// ImageCacheName holds images.
	ImageCacheName = "images"
	// RecipeCacheName holds responses for the recipes route.
	RecipeCacheName = "receitas-cache"

	// RecipesRouteMarker selects requests for the recipes route.
	RecipesRouteMarker = "/receitas"

	thirtyDays        = 30 * 24 * time.Hour
	imageCacheLimit   = 50
	headerFetchDest   = "Sec-Fetch-Dest"
	headerFetchMode   = "Sec-Fetch-Mode"
	fetchModeNavigate = "navigate"
)

// Destination mirrors the fetch destination of a request.
type Destination string

const (
	DestinationDocument Destination = "document"
	DestinationStyle    Destination = "style"
	DestinationScript   Destination = "script"
	DestinationWorker   Destination = "worker"
	DestinationImage    Destination = "image"
	DestinationEmpty    Destination = ""
)

var extensionDestinations = map[string]Destination{
	".css":  DestinationStyle,
	".js":   DestinationScript,
	".mjs":  DestinationScript,
	".png":  DestinationImage,
	".jpg":  DestinationImage,
	".jpeg": DestinationImage,
	".gif":  DestinationImage,
	".webp": DestinationImage,
	".avif": DestinationImage,
	".svg":  DestinationImage,
	".ico":  DestinationImage,
}

// RequestDestination classifies a request from its Sec-Fetch-Dest header,
// falling back to the path extension and navigation heuristics.
func RequestDestination(request *http.Request) Destination {
	if raw := strings.TrimSpace(request.Header.Get(headerFetchDest)); raw != "" {
		return Destination(strings.ToLower(raw))
	}
	if destination, ok := extensionDestinations[strings.ToLower(path.Ext(request.URL.Path))]; ok {
		return destination
	}
	if IsNavigation(request) {
		return DestinationDocument
	}
	return DestinationEmpty
}

// IsNavigation reports whether the request is a top-level page navigation.
func IsNavigation(request *http.Request) bool {
	if mode := strings.TrimSpace(request.Header.Get(headerFetchMode)); mode != "" {
		return strings.EqualFold(mode, fetchModeNavigate)
	}
	if request.Method != http.MethodGet {
		return false
	}
	if _, ok := extensionDestinations[strings.ToLower(path.Ext(request.URL.Path))]; ok {
		return false
	}
	return strings.Contains(request.Header.Get("Accept"), "text/html")
}

// Route binds a request matcher to a caching strategy.
type Route struct {
	Name     string
	Match    func(*http.Request) bool
	Strategy Strategy
}

// Policy is an ordered list of routes; the first matching route handles a request.
type Policy struct {
	Routes []Route
}

func (p Policy) match(request *http.Request) (Route, bool) {
	for _, route := range p.Routes {
		if route.Match != nil && route.Match(request) {
			return route, true
		}
	}
	return Route{}, false
}

// PageStrategy returns the cache-first strategy used for page navigations.
func PageStrategy() Strategy {
	return CacheFirst{CacheName: PageCacheName, Expiration: Expiration{MaxAge: thirtyDays}}
}

// DefaultPolicy returns the recipe application's caching policy.
// The recipes route is matched before page navigations so that the recipe
// list is revalidated on every visit instead of being pinned for thirty days.
func DefaultPolicy() Policy {
	return Policy{Routes: []Route{
		{
			Name: "assets",
			Match: func(request *http.Request) bool {
				switch RequestDestination(request) {
				case DestinationStyle, DestinationScript, DestinationWorker:
					return true
				}
				return false
			},
			Strategy: StaleWhileRevalidate{CacheName: AssetCacheName},
		},
		{
			Name: "images",
			Match: func(request *http.Request) bool {
				return RequestDestination(request) == DestinationImage
			},
			Strategy: CacheFirst{
				CacheName:  ImageCacheName,
				Expiration: Expiration{MaxAge: thirtyDays, MaxEntries: imageCacheLimit},
			},
		},
		{
			Name: "recipes",
			Match: func(request *http.Request) bool {
				return strings.Contains(request.URL.RequestURI(), RecipesRouteMarker)
			},
			Strategy: StaleWhileRevalidate{CacheName: RecipeCacheName},
		},
		{
			Name:     "pages",
			Match:    IsNavigation,
			Strategy: PageStrategy(),
		},
	}}
}
