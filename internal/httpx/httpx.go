package httpx

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"BTCMonitor/internal/cache"
	"BTCMonitor/internal/ratelimit"
)

var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Options configures a Client. Zero fields get defaults.
type Options struct {
	Timeout    time.Duration // per-attempt HTTP timeout (default 30s)
	MaxRetries int           // retries after the first attempt (default 3)
	CacheTTL   time.Duration // 0 disables response caching
	RetryBase  time.Duration // exponential backoff base (default 2s)
	RetryCap   time.Duration // backoff ceiling (default 60s)
	UserAgent  string
}

// Client wraps one provider's transport with rate limiting, short-TTL
// response caching, and bounded retry with backoff.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *ratelimit.TokenBucket
	cache   *cache.Cache
	opts    Options
}

// New creates a client for baseURL. limiter may be nil for unthrottled
// sources; responses may be nil, in which case the client allocates its own
// cache. The cache is only consulted when opts.CacheTTL > 0.
func New(baseURL string, limiter *ratelimit.TokenBucket, responses *cache.Cache, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	} else if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = 2 * time.Second
	}
	if opts.RetryCap <= 0 {
		opts.RetryCap = 60 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "BTCMonitor/1.0"
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}
	if responses == nil {
		responses = cache.New()
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: opts.Timeout, Transport: transport},
		limiter: limiter,
		cache:   responses,
		opts:    opts,
	}
}

// Get performs a GET against path with query params, going through the
// cache, rate limiter, and retry policy. On success it returns the raw
// response body.
func (c *Client) Get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	return c.request(ctx, http.MethodGet, path, params)
}

func (c *Client) cacheKey(method, path string, params url.Values) string {
	raw := method + ":" + c.baseURL + path + ":" + params.Encode()
	sum := md5.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func (c *Client) request(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	// A fresh cache hit skips the network and the rate limiter entirely.
	var key string
	if c.opts.CacheTTL > 0 {
		key = c.cacheKey(method, path, params)
		if body, ok := c.cache.Get(key); ok {
			return body, nil
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.opts.MaxRetries; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Acquire(ctx); err != nil {
				return nil, err
			}
		}

		body, err := c.do(ctx, method, fullURL)
		if err == nil {
			if c.opts.CacheTTL > 0 {
				c.cache.Set(key, body, c.opts.CacheTTL)
			}
			return body, nil
		}

		var ce *ClientError
		if errors.As(err, &ce) {
			// Permanent: a bad API key or not-found won't improve with retries.
			return nil, err
		}

		lastErr = err
		if attempt == c.opts.MaxRetries {
			break
		}

		wait := c.backoff(attempt, err)
		log.Printf("[WARN] %s %s failed (attempt %d/%d): %v, retrying in %v",
			method, fullURL, attempt+1, c.opts.MaxRetries+1, err, wait)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}

	return nil, &RetryExhaustedError{Attempts: c.opts.MaxRetries + 1, URL: fullURL, Last: lastErr}
}

// backoff returns the wait before the next attempt: the server-requested
// Retry-After when present, else min(2^attempt * base, cap).
func (c *Client) backoff(attempt int, err error) time.Duration {
	var se *ServerError
	if errors.As(err, &se) && se.RetryAfter > 0 {
		return se.RetryAfter
	}
	wait := time.Duration(1<<uint(attempt)) * c.opts.RetryBase
	if wait > c.opts.RetryCap {
		wait = c.opts.RetryCap
	}
	return wait
}

// do performs one HTTP attempt and classifies the outcome.
func (c *Client) do(ctx context.Context, method, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case retryableStatus[resp.StatusCode]:
		return nil, &ServerError{
			StatusCode: resp.StatusCode,
			URL:        fullURL,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	default:
		// 400/401/403/404 and anything else unexpected: the request
		// itself is wrong, retrying won't help.
		return nil, &ClientError{StatusCode: resp.StatusCode, URL: fullURL, Body: truncate(string(body), 512)}
	}
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
