package offline

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestDestination(t *testing.T) {
	testCases := []struct {
		name    string
		target  string
		headers map[string]string
		want    Destination
	}{
		{name: "fetch-metadata-style", target: "/theme", headers: map[string]string{"Sec-Fetch-Dest": "style"}, want: DestinationStyle},
		{name: "fetch-metadata-worker", target: "/sw", headers: map[string]string{"Sec-Fetch-Dest": "Worker"}, want: DestinationWorker},
		{name: "extension-script", target: "/static/app.js", want: DestinationScript},
		{name: "extension-image", target: "/img/bolo.WEBP", want: DestinationImage},
		{name: "html-accept", target: "/", headers: map[string]string{"Accept": "text/html,application/xhtml+xml"}, want: DestinationDocument},
		{name: "unknown", target: "/data", headers: map[string]string{"Accept": "application/json"}, want: DestinationEmpty},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodGet, testCase.target, http.NoBody)
			for name, value := range testCase.headers {
				request.Header.Set(name, value)
			}
			assert.Equal(t, testCase.want, RequestDestination(request))
		})
	}
}

func TestIsNavigation(t *testing.T) {
	navigate := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	navigate.Header.Set("Sec-Fetch-Mode", "navigate")
	assert.True(t, IsNavigation(navigate))

	cors := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	cors.Header.Set("Sec-Fetch-Mode", "cors")
	cors.Header.Set("Accept", "text/html")
	assert.False(t, IsNavigation(cors), "fetch metadata wins over Accept")

	legacy := httptest.NewRequest(http.MethodGet, "/receitas", http.NoBody)
	legacy.Header.Set("Accept", "text/html")
	assert.True(t, IsNavigation(legacy))

	post := httptest.NewRequest(http.MethodPost, "/receitas", http.NoBody)
	post.Header.Set("Accept", "text/html")
	assert.False(t, IsNavigation(post))
}

func TestDefaultPolicyRouteSelection(t *testing.T) {
	policy := DefaultPolicy()
	testCases := []struct {
		name      string
		request   *http.Request
		wantRoute string
		wantCache string
	}{
		{name: "page", request: navigationRequest("/"), wantRoute: "pages", wantCache: PageCacheName},
		{name: "style", request: destinationRequest("/style.css", "style"), wantRoute: "assets", wantCache: AssetCacheName},
		{name: "worker", request: destinationRequest("/worker.js", "worker"), wantRoute: "assets", wantCache: AssetCacheName},
		{name: "image", request: destinationRequest("/bolo.png", "image"), wantRoute: "images", wantCache: ImageCacheName},
		{name: "recipes-page", request: navigationRequest("/receitas?nova=3"), wantRoute: "recipes", wantCache: RecipeCacheName},
		{name: "recipes-image", request: destinationRequest("/receitas/1.png", "image"), wantRoute: "images", wantCache: ImageCacheName},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			route, ok := policy.match(testCase.request)
			if assert.True(t, ok) {
				assert.Equal(t, testCase.wantRoute, route.Name)
				assert.Equal(t, testCase.wantCache, route.Strategy.Cache())
			}
		})
	}

	fetchRequest := httptest.NewRequest(http.MethodGet, "/api/outra", http.NoBody)
	fetchRequest.Header.Set("Sec-Fetch-Mode", "cors")
	fetchRequest.Header.Set("Sec-Fetch-Dest", "empty")
	_, ok := policy.match(fetchRequest)
	assert.False(t, ok)
}
