package offline

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

const maxResponseBytes = 32 << 20

var errResponseTooLarge = errors.New("offline: response exceeds size limit")

// Fetcher performs the network half of a request.
// Non-2xx responses are returned as entries; only transport failures are errors.
type Fetcher interface {
	Fetch(request *http.Request) (Entry, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(request *http.Request) (Entry, error)

// Fetch calls f(request).
func (f FetcherFunc) Fetch(request *http.Request) (Entry, error) {
	return f(request)
}

// TransportFetcher forwards requests to a remote origin.
type TransportFetcher struct {
	upstream *url.URL
	client   *http.Client
}

// NewTransportFetcher builds a Fetcher for upstream. A nil transport uses http.DefaultTransport.
func NewTransportFetcher(upstream *url.URL, transport http.RoundTripper) (*TransportFetcher, error) {
	if upstream == nil || upstream.Scheme == "" || upstream.Host == "" {
		return nil, fmt.Errorf("offline: upstream must be an absolute URL")
	}
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &TransportFetcher{
		upstream: upstream,
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}, nil
}

func (f *TransportFetcher) Fetch(request *http.Request) (Entry, error) {
	target := *f.upstream
	target.Path = singleJoiningSlash(f.upstream.Path, request.URL.Path)
	target.RawQuery = request.URL.RawQuery

	outbound, err := http.NewRequestWithContext(request.Context(), request.Method, target.String(), request.Body)
	if err != nil {
		return Entry{}, err
	}
	outbound.Header = request.Header.Clone()
	for _, name := range hopByHopHeaders {
		outbound.Header.Del(name)
	}
	outbound.ContentLength = request.ContentLength

	response, err := f.client.Do(outbound)
	if err != nil {
		return Entry{}, err
	}
	defer response.Body.Close()

	body, err := readLimited(response.Body)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Status: response.StatusCode, Header: response.Header.Clone(), Body: body}, nil
}

// HandlerFetcher serves requests from an in-process origin.
type HandlerFetcher struct {
	handler http.Handler
}

// NewHandlerFetcher wraps handler as a Fetcher.
func NewHandlerFetcher(handler http.Handler) *HandlerFetcher {
	return &HandlerFetcher{handler: handler}
}

func (f *HandlerFetcher) Fetch(request *http.Request) (Entry, error) {
	if f.handler == nil {
		return Entry{}, errors.New("offline: origin handler unavailable")
	}
	if err := request.Context().Err(); err != nil {
		return Entry{}, err
	}
	buffer := newBufferedResponse()
	f.handler.ServeHTTP(buffer, request)
	if buffer.body.Len() > maxResponseBytes {
		return Entry{}, errResponseTooLarge
	}
	return Entry{Status: buffer.statusCode(), Header: buffer.header.Clone(), Body: bytes.Clone(buffer.body.Bytes())}, nil
}

type bufferedResponse struct {
	header http.Header
	body   bytes.Buffer
	status int
}

func newBufferedResponse() *bufferedResponse {
	return &bufferedResponse{header: make(http.Header)}
}

func (r *bufferedResponse) Header() http.Header {
	return r.header
}

func (r *bufferedResponse) Write(payload []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.body.Write(payload)
}

func (r *bufferedResponse) WriteHeader(statusCode int) {
	if r.status == 0 {
		r.status = statusCode
	}
}

func (r *bufferedResponse) statusCode() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

func readLimited(reader io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(reader, maxResponseBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxResponseBytes {
		return nil, errResponseTooLarge
	}
	return body, nil
}

func singleJoiningSlash(base, suffix string) string {
	switch {
	case base == "" || base == "/":
		return suffix
	case suffix == "":
		return base
	}
	baseSlash := base[len(base)-1] == '/'
	suffixSlash := suffix[0] == '/'
	switch {
	case baseSlash && suffixSlash:
		return base + suffix[1:]
	case !baseSlash && !suffixSlash:
		return base + "/" + suffix
	}
	return base + suffix
}
