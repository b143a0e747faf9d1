package fetcher

import (
	"context"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/camarohq/hunter/internal/resilience"
)

// DefaultUserAgents are rotated across requests.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:122.0) Gecko/20100101 Firefox/122.0",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
}

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgents  []string
	Timeout     time.Duration
	MaxRetries  int
	RatePerHost rate.Limit
	Burst       int
	Backoff     resilience.BackoffFunc

	// Breakers short-circuits hosts that keep failing. Nil disables it.
	Breakers *resilience.Breakers
}

// HTTPFetcher implements Fetcher with per-host rate limiting, retries on
// transient failures and an optional per-host circuit breaker.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHTTPFetcher creates an HTTPFetcher, filling unset options with defaults.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if len(opts.UserAgents) == 0 {
		opts.UserAgents = DefaultUserAgents
	}
	if opts.RatePerHost == 0 {
		opts.RatePerHost = 0.5
	}
	if opts.Burst == 0 {
		opts.Burst = 1
	}
	if opts.Backoff == nil {
		opts.Backoff = resilience.ExponentialBackoff(2*time.Second, 30*time.Second, 2, 0.5)
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:     opts,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (f *HTTPFetcher) limiterFor(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[host]
	if !ok {
		lim = rate.NewLimiter(f.opts.RatePerHost, f.opts.Burst)
		f.limiters[host] = lim
	}
	return lim
}

func (f *HTTPFetcher) userAgent() string {
	return f.opts.UserAgents[rand.IntN(len(f.opts.UserAgents))]
}

func setBrowserHeaders(req *http.Request, ua string) {
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Cache-Control", "max-age=0")
}

// Download fetches rawURL and returns the response body.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: parse url")
	}
	host := u.Host

	var breaker *resilience.Breaker
	if f.opts.Breakers != nil {
		breaker = f.opts.Breakers.Get(host)
	}

	policy := resilience.Policy{
		MaxAttempts: f.opts.MaxRetries,
		Backoff:     f.opts.Backoff,
		ShouldRetry: resilience.IsTransient,
		OnRetry: func(attempt int, err error) {
			zap.L().Warn("http request failed, retrying",
				zap.String("url", rawURL),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		},
	}

	body, err := resilience.Do(ctx, policy, func(ctx context.Context) (io.ReadCloser, error) {
		if breaker != nil {
			if err := breaker.Allow(); err != nil {
				return nil, err
			}
		}
		body, err := f.attempt(ctx, rawURL, host)
		if breaker != nil {
			breaker.Record(err)
		}
		return body, err
	})
	if err != nil {
		if resilience.IsTransient(err) {
			return nil, eris.Wrapf(err, "fetcher: all retries exhausted for %s", rawURL)
		}
		return nil, eris.Wrapf(err, "fetcher: download %s", rawURL)
	}
	return body, nil
}

func (f *HTTPFetcher) attempt(ctx context.Context, rawURL, host string) (io.ReadCloser, error) {
	if err := f.limiterFor(host).Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	setBrowserHeaders(req, f.userAgent())

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "http request")
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		statusErr := eris.Errorf("http %d from %s", resp.StatusCode, host)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return nil, statusErr
	}
	return resp.Body, nil
}
