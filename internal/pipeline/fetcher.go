package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ppiankov/ttpmap/internal/util"
	"github.com/ppiankov/ttpmap/internal/worker"
)

const maxFetchAttempts = 3

// fetchSleepFunc is replaced in tests to skip backoff
var fetchSleepFunc = time.Sleep

// ErrRobotsDisallowed is returned when robots.txt forbids a download
var ErrRobotsDisallowed = errors.New("disallowed by robots.txt")

// Fetcher downloads corpus sources
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	robots     *util.RobotsChecker
	limiter    *worker.Limiter
}

// FetcherOption configures optional Fetcher behaviour
type FetcherOption func(*Fetcher)

// WithHostLimiter throttles requests per host
func WithHostLimiter(l *worker.Limiter) FetcherOption {
	return func(f *Fetcher) {
		f.limiter = l
	}
}

// NewFetcher creates a new Fetcher with the given configuration
func NewFetcher(timeout time.Duration, userAgent string, maxBytes int64, respectRobots bool, httpProxy, httpsProxy, noProxy string, opts ...FetcherOption) *Fetcher {
	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: util.NewProxyFunc(httpProxy, httpsProxy, noProxy),
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return fmt.Errorf("stopped after 3 redirects")
			}
			return nil
		},
	}

	f := &Fetcher{
		httpClient: client,
		userAgent:  userAgent,
		maxBytes:   maxBytes,
	}
	if respectRobots {
		f.robots = util.NewRobotsChecker(userAgent, client)
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchResult contains the downloaded body and metadata
type FetchResult struct {
	Body     string
	Meta     FetchMeta
	FinalURL string
}

// FetchMeta records response headers worth logging
type FetchMeta struct {
	StatusCode   int
	ContentType  string
	LastModified string
	ETag         string
	Bytes        int
}

// FetchWithRetry fetches rawURL, retrying transient failures with backoff
func (f *Fetcher) FetchWithRetry(ctx context.Context, rawURL string) (*FetchResult, error) {
	var lastErr error
	for attempt := 1; attempt <= maxFetchAttempts; attempt++ {
		result, err := f.Fetch(ctx, rawURL)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isRetryableFetchError(err) || ctx.Err() != nil {
			return nil, err
		}
		if attempt < maxFetchAttempts {
			fetchSleepFunc(time.Duration(attempt) * time.Second)
		}
	}
	return nil, fmt.Errorf("giving up after %d attempts: %w", maxFetchAttempts, lastErr)
}

// Fetch performs a single download of rawURL
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	if f.robots != nil {
		allowed, delay, err := f.robots.CanFetch(ctx, rawURL)
		if err != nil {
			return nil, fmt.Errorf("check robots.txt: %w", err)
		}
		if !allowed {
			return nil, fmt.Errorf("%w: %s", ErrRobotsDisallowed, rawURL)
		}
		if f.limiter != nil && delay > 0 {
			host := hostOf(rawURL)
			if err := f.limiter.WaitWithDelay(ctx, host, delay); err != nil {
				return nil, fmt.Errorf("rate limit: %w", err)
			}
		}
	}
	if f.limiter != nil {
		if err := f.limiter.WaitURL(ctx, rawURL); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/json, */*;q=0.8")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status: %d %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("read body: response exceeds %d bytes", f.maxBytes)
	}

	return &FetchResult{
		Body: string(body),
		Meta: FetchMeta{
			StatusCode:   resp.StatusCode,
			ContentType:  resp.Header.Get("Content-Type"),
			LastModified: resp.Header.Get("Last-Modified"),
			ETag:         resp.Header.Get("ETag"),
			Bytes:        len(body),
		},
		FinalURL: resp.Request.URL.String(),
	}, nil
}

// isRetryableFetchError reports whether err is a network error, a 5xx or a 429
func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if strings.HasPrefix(msg, "fetch: ") {
		return true
	}
	if rest, ok := strings.CutPrefix(msg, "unexpected status: "); ok {
		return strings.HasPrefix(rest, "5") || strings.HasPrefix(rest, "429")
	}
	return false
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return parsed.Host
}
