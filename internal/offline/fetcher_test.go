package offline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransportFetcherForwardsToUpstream(t *testing.T) {
	var seenPath, seenQuery string
	upstream := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		seenPath = request.URL.Path
		seenQuery = request.URL.RawQuery
		if request.URL.Path == "/app/antigo" {
			http.Redirect(writer, request, "/app/novo", http.StatusFound)
			return
		}
		writer.Header().Set("Content-Type", "text/css")
		_, _ = writer.Write([]byte("body{}"))
	}))
	defer upstream.Close()

	base, err := url.Parse(upstream.URL + "/app/")
	require.NoError(t, err)
	fetcher, err := NewTransportFetcher(base, nil)
	require.NoError(t, err)

	entry, err := fetcher.Fetch(httptest.NewRequest(http.MethodGet, "/style.css?v=2", http.NoBody))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, entry.Status)
	assert.Equal(t, "body{}", string(entry.Body))
	assert.Equal(t, "text/css", entry.Header.Get("Content-Type"))
	assert.Equal(t, "/app/style.css", seenPath)
	assert.Equal(t, "v=2", seenQuery)

	redirect, err := fetcher.Fetch(httptest.NewRequest(http.MethodGet, "/antigo", http.NoBody))
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, redirect.Status, "redirects are passed through")
}

func TestTransportFetcherReportsUnreachableUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	base, err := url.Parse(upstream.URL)
	require.NoError(t, err)
	upstream.Close()

	fetcher, err := NewTransportFetcher(base, nil)
	require.NoError(t, err)
	_, err = fetcher.Fetch(httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	assert.Error(t, err)
}

func TestNewTransportFetcherRequiresAbsoluteURL(t *testing.T) {
	_, err := NewTransportFetcher(&url.URL{Path: "/relative"}, nil)
	assert.Error(t, err)
}

func TestHandlerFetcherCapturesResponse(t *testing.T) {
	fetcher := NewHandlerFetcher(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Location", "/receitas")
		writer.WriteHeader(http.StatusSeeOther)
	}))

	entry, err := fetcher.Fetch(httptest.NewRequest(http.MethodPost, "/receitas", http.NoBody))
	require.NoError(t, err)
	assert.Equal(t, http.StatusSeeOther, entry.Status)
	assert.Equal(t, "/receitas", entry.Header.Get("Location"))
}

func TestHandlerFetcherHonoursCancelledContext(t *testing.T) {
	fetcher := NewHandlerFetcher(http.NotFoundHandler())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	request := httptest.NewRequest(http.MethodGet, "/", http.NoBody).WithContext(ctx)
	_, err := fetcher.Fetch(request)
	assert.ErrorIs(t, err, context.Canceled)
}
