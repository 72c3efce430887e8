package feed

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pders01/przepisy/internal/config"
	"github.com/pders01/przepisy/internal/storage"
)

// requestsPerSecond caps outgoing feed requests across all workers.
const requestsPerSecond = 4

// StatusError is returned for HTTP error responses. RetryAfter is set for
// 429 and 503 responses.
type StatusError struct {
	Code       int
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("HTTP error: %d (retry after %s)", e.Code, e.RetryAfter)
	}
	return fmt.Sprintf("HTTP error: %d", e.Code)
}

type Fetcher struct {
	client            *http.Client
	limiter           *rate.Limiter
	userAgent         string
	defaultRetryAfter time.Duration
	ignoreCache       bool
}

func NewFetcher(cfg *config.Config) *Fetcher {
	burst := cfg.Import.Concurrency
	if burst < 1 {
		burst = 1
	}
	return &Fetcher{
		client:            &http.Client{Timeout: cfg.Import.HTTPTimeout},
		limiter:           rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
		userAgent:         cfg.Import.UserAgent,
		defaultRetryAfter: cfg.Import.DefaultRetryAfter,
	}
}

// SetIgnoreCache makes Fetch skip the conditional request headers.
func (f *Fetcher) SetIgnoreCache(ignore bool) {
	f.ignoreCache = ignore
}

// Fetch downloads the source's feed. A 304 reply returns (nil, false, nil);
// the caller owns the body of a returned response.
func (f *Fetcher) Fetch(ctx context.Context, source *storage.Source) (*http.Response, bool, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, false, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.URL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml")

	if !f.ignoreCache {
		if source.ETag != "" {
			req.Header.Set("If-None-Match", source.ETag)
		}
		if source.LastModified != "" {
			req.Header.Set("If-Modified-Since", source.LastModified)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("fetching feed: %w", err)
	}

	if resp.StatusCode == http.StatusNotModified {
		resp.Body.Close()
		return nil, false, nil
	}

	if resp.StatusCode >= 400 {
		resp.Body.Close()
		statusErr := &StatusError{Code: resp.StatusCode}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
			statusErr.RetryAfter = f.RetryAfter(resp)
		}
		return nil, false, statusErr
	}

	return resp, true, nil
}

func (f *Fetcher) UpdateSourceMetadata(source *storage.Source, resp *http.Response) {
	if etag := resp.Header.Get("ETag"); etag != "" {
		source.ETag = etag
	}
	if lastMod := resp.Header.Get("Last-Modified"); lastMod != "" {
		source.LastModified = lastMod
	}
	source.LastFetched = time.Now()
}

// RetryAfter reads Retry-After as delay seconds or an HTTP date, falling back
// to the configured default.
func (f *Fetcher) RetryAfter(resp *http.Response) time.Duration {
	value := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if value == "" {
		return f.defaultRetryAfter
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		if d := time.Until(when); d > 0 {
			return d
		}
		return 0
	}
	return f.defaultRetryAfter
}
