package verify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultTimeout        = 10 * time.Second
	defaultMaxContentSize = 2 * 1024 * 1024
	defaultUserAgent      = "trackref/1.0"
)

// HTTPConfig carries the per-call HTTP settings taken from configuration.
type HTTPConfig struct {
	// UseHTTPS selects https on port 443; otherwise http on port 80.
	UseHTTPS bool

	UseBasicAuth bool
	Username     string
	Password     string

	// Timeout bounds the whole request including the body read.
	Timeout time.Duration

	// MaxContentSize is the largest body accepted, in bytes.
	MaxContentSize int64

	UserAgent string
}

func (c HTTPConfig) timeout() time.Duration {
	if c.Timeout <= 0 {
		return defaultTimeout
	}
	return c.Timeout
}

func (c HTTPConfig) maxContentSize() int64 {
	if c.MaxContentSize <= 0 {
		return defaultMaxContentSize
	}
	return c.MaxContentSize
}

func (c HTTPConfig) userAgent() string {
	if c.UserAgent == "" {
		return defaultUserAgent
	}
	return c.UserAgent
}

// FetchResult contains a successful 200 response.
type FetchResult struct {
	Body        []byte
	ContentType string
}

// Fetcher issues the single GET behind each verification.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a fetcher. A nil transport gets a dialer with fixed
// connect and TLS handshake timeouts.
func NewFetcher(transport http.RoundTripper) *Fetcher {
	if transport == nil {
		dialer := &net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}
		transport = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         dialer.DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
		}
	}

	return &Fetcher{
		client: &http.Client{
			Transport: transport,
			// Redirects are reported as a non-200 status, never followed.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Fetch retrieves target with the scheme and port implied by cfg.UseHTTPS.
// Errors are *StatusError, *FetchError or *ParseError.
func (f *Fetcher) Fetch(ctx context.Context, target string, cfg HTTPConfig) (*FetchResult, error) {
	u, err := forceScheme(target, cfg.UseHTTPS)
	if err != nil {
		return nil, &FetchError{URL: target, Cause: err}
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &FetchError{URL: target, Cause: fmt.Errorf("create request: %w", err)}
	}

	req.Header.Set("User-Agent", cfg.userAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if cfg.UseBasicAuth {
		req.SetBasicAuth(cfg.Username, cfg.Password)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: target, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: target, Code: resp.StatusCode, Status: reasonPhrase(resp)}
	}

	limit := cfg.maxContentSize()
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, &FetchError{URL: target, Cause: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(body)) > limit {
		return nil, &ParseError{URL: target, Cause: fmt.Errorf("%w (exceeds %d bytes)", ErrContentTooLarge, limit)}
	}

	return &FetchResult{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// forceScheme rewrites target onto http:80 or https:443. Any port in the
// configured base URL is replaced.
func forceScheme(target string, useHTTPS bool) (*url.URL, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Hostname() == "" {
		return nil, errors.New("invalid URL: missing host")
	}

	scheme, port := "http", "80"
	if useHTTPS {
		scheme, port = "https", "443"
	}
	u.Scheme = scheme
	u.Host = net.JoinHostPort(u.Hostname(), port)
	return u, nil
}

// reasonPhrase returns the server's reason phrase, e.g. "Not Found".
func reasonPhrase(resp *http.Response) string {
	if phrase, ok := strings.CutPrefix(resp.Status, strconv.Itoa(resp.StatusCode)+" "); ok && phrase != "" {
		return phrase
	}
	return http.StatusText(resp.StatusCode)
}
