package stream

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/quic-go/quic-go/http3"
)

// Fetcher returns the raw bytes of one named frame.
type Fetcher interface {
	Fetch(ctx context.Context, name string) ([]byte, error)
}

// HTTPClient is the subset of *http.Client the fetcher needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

const (
	TransportHTTP  = "http"
	TransportHTTP3 = "http3"
)

// FetcherConfig configures an HTTPFetcher.
type FetcherConfig struct {
	BaseURL            string
	Transport          string
	Timeout            time.Duration
	MaxBytes           int64
	InsecureSkipVerify bool

	// Client overrides the client built from Transport.
	Client HTTPClient
}

// HTTPFetcher requests frames as BaseURL+name. Any status other than
// 200 is a failure; there is no retry.
type HTTPFetcher struct {
	client   HTTPClient
	closer   io.Closer
	baseURL  string
	timeout  time.Duration
	maxBytes int64
}

func NewHTTPFetcher(cfg FetcherConfig) (*HTTPFetcher, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.MaxBytes <= 0 {
		return nil, fmt.Errorf("max frame bytes must be positive")
	}

	f := &HTTPFetcher{
		client:   cfg.Client,
		baseURL:  cfg.BaseURL,
		timeout:  cfg.Timeout,
		maxBytes: cfg.MaxBytes,
	}
	if f.client != nil {
		return f, nil
	}

	tlsConfig := &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify} //nolint:gosec // operator opt-in
	switch cfg.Transport {
	case "", TransportHTTP:
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.TLSClientConfig = tlsConfig
		f.client = &http.Client{Transport: tr}
	case TransportHTTP3:
		if !strings.HasPrefix(cfg.BaseURL, "https://") {
			return nil, fmt.Errorf("http3 transport requires an https base URL")
		}
		rt := &http3.RoundTripper{TLSClientConfig: tlsConfig}
		f.client = &http.Client{Transport: rt}
		f.closer = rt
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
	return f, nil
}

// URL is the address a frame is fetched from.
func (f *HTTPFetcher) URL(name string) string {
	return f.baseURL + name
}

func (f *HTTPFetcher) Fetch(ctx context.Context, name string) ([]byte, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL(name), nil)
	if err != nil {
		return nil, &FetchError{Name: name, Err: err}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{Name: name, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{Name: name, Status: resp.StatusCode}
	}
	if resp.ContentLength > f.maxBytes {
		return nil, &FetchError{Name: name, Status: resp.StatusCode, Err: ErrFrameTooLarge}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, &FetchError{Name: name, Status: resp.StatusCode, Err: err}
	}
	if int64(len(data)) > f.maxBytes {
		return nil, &FetchError{Name: name, Status: resp.StatusCode, Err: ErrFrameTooLarge}
	}
	return data, nil
}

// Close releases the HTTP/3 transport, if one was built.
func (f *HTTPFetcher) Close() error {
	if f.closer != nil {
		return f.closer.Close()
	}
	return nil
}
