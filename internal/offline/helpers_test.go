package offline

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errNetworkDown = errors.New("network unreachable")

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(delta time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(delta)
}

// stubOrigin answers every request with a body naming the path and call number.
type stubOrigin struct {
	calls   atomic.Int64
	offline atomic.Bool
	status  atomic.Int64
}

func (o *stubOrigin) Fetch(request *http.Request) (Entry, error) {
	call := o.calls.Add(1)
	if o.offline.Load() {
		return Entry{}, errNetworkDown
	}
	status := int(o.status.Load())
	if status == 0 {
		status = http.StatusOK
	}
	header := http.Header{}
	header.Set("Content-Type", "text/plain")
	return Entry{
		Status: status,
		Header: header,
		Body:   []byte(request.URL.Path + "#" + strconv.FormatInt(call, 10)),
	}, nil
}

func newTestGateway(t *testing.T, fetcher Fetcher, clock *testClock) (*Gateway, *MemoryStorage) {
	t.Helper()
	storage := NewMemoryStorage()
	gateway, err := NewGateway(GatewayConfig{
		Policy:  DefaultPolicy(),
		Storage: storage,
		Fetcher: fetcher,
		Clock:   clock.Now,
		Logger:  zap.NewNop(),
	})
	require.NoError(t, err)
	return gateway, storage
}

func navigationRequest(target string) *http.Request {
	request := httptest.NewRequest(http.MethodGet, target, http.NoBody)
	request.Header.Set("Sec-Fetch-Mode", "navigate")
	request.Header.Set("Sec-Fetch-Dest", "document")
	return request
}

func destinationRequest(target, destination string) *http.Request {
	request := httptest.NewRequest(http.MethodGet, target, http.NoBody)
	request.Header.Set("Sec-Fetch-Mode", "no-cors")
	request.Header.Set("Sec-Fetch-Dest", destination)
	return request
}

func serve(gateway *Gateway, request *http.Request) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	gateway.ServeHTTP(recorder, request)
	return recorder
}
