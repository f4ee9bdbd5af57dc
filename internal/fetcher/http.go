package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/chainreactions/screener/internal/resilience"
)

// HTTPOptions configures the HTTP fetcher. The zero value works.
type HTTPOptions struct {
	UserAgent string
	Timeout   time.Duration

	// Retry shapes the per-request retry loop. Zero fields default to
	// 3 tries, 1s base delay, 30s cap.
	Retry resilience.Policy

	// HostRates overrides or extends the built-in per-host pacing,
	// keyed by host, in sustained requests per second.
	HostRates map[string]rate.Limit
}

// Hosts serving the published lists, paced at the rates their terms ask
// for. Everything else gets defaultHostRate.
var defaultHostRates = map[string]rate.Limit{
	"data.opensanctions.org":              10,
	"api.trade.gov":                       5,
	"sanctionslistservice.ofac.treas.gov": 5,
	"www.bis.doc.gov":                     5,
}

const defaultHostRate rate.Limit = 20

// Throttle paces requests to one host and adapts to how the host answers:
// every success nudges the rate up 20% (to at most twice the configured
// rate), every 429 halves it (to at least a quarter of it).
type Throttle struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	base    rate.Limit
	current rate.Limit
}

// NewThrottle returns a pacer at perSecond with roughly a second of burst.
func NewThrottle(perSecond rate.Limit) *Throttle {
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return &Throttle{
		limiter: rate.NewLimiter(perSecond, burst),
		base:    perSecond,
		current: perSecond,
	}
}

// Wait blocks until the pacer admits the next request.
func (t *Throttle) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}

// Reward nudges the rate up after a successful response.
func (t *Throttle) Reward() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = min(t.current*1.2, t.base*2)
	t.limiter.SetLimit(t.current)
}

// Penalize halves the rate after a 429.
func (t *Throttle) Penalize() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = max(t.current/2, t.base/4)
	t.limiter.SetLimit(t.current)
	zap.L().Warn("http: host rate limited, slowing down",
		zap.Float64("rps", float64(t.current)),
	)
}

// Rate reports the current paced rate.
func (t *Throttle) Rate() rate.Limit {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// HTTPFetcher downloads watchlist exports over HTTP with per-host adaptive
// pacing and transient-error retries.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions

	mu        sync.Mutex
	throttles map[string]*Throttle
}

// NewHTTPFetcher creates an HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "screener/1.0"
	}
	if opts.Retry.Attempts == 0 {
		opts.Retry.Attempts = 3
	}
	if opts.Retry.BaseDelay == 0 {
		opts.Retry.BaseDelay = time.Second
	}
	if opts.Retry.MaxDelay == 0 {
		opts.Retry.MaxDelay = 30 * time.Second
	}
	if opts.Retry.Growth == 0 {
		opts.Retry.Growth = 2.0
	}
	if opts.Retry.Jitter == 0 {
		opts.Retry.Jitter = 0.25
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				MaxConnsPerHost:     20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:      opts,
		throttles: make(map[string]*Throttle),
	}
}

// throttleFor returns the pacer for the URL's host, creating one on first
// contact so every host stays paced, listed or not.
func (f *HTTPFetcher) throttleFor(rawURL string) *Throttle {
	var host string
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if th, ok := f.throttles[host]; ok {
		return th
	}
	r := defaultHostRate
	if hr, ok := defaultHostRates[host]; ok {
		r = hr
	}
	if hr, ok := f.opts.HostRates[host]; ok {
		r = hr
	}
	th := NewThrottle(r)
	f.throttles[host] = th
	return th
}

// get runs paced request cycles until one yields a non-retryable outcome.
// A 429 penalizes the host throttle and retries; 5xx retries; transport
// errors retry only when they classify as transient.
func (f *HTTPFetcher) get(ctx context.Context, rawURL string) (*http.Response, error) {
	th := f.throttleFor(rawURL)

	p := f.opts.Retry
	p.OnRetry = func(attempt int, wait time.Duration, err error) {
		zap.L().Warn("http: retrying",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	var resp *http.Response
	err := resilience.Do(ctx, p, func(ctx context.Context) error {
		if err := th.Wait(ctx); err != nil {
			return eris.Wrap(err, "http: wait for host rate")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return eris.Wrap(err, "http: build request")
		}
		req.Header.Set("User-Agent", f.opts.UserAgent)

		r, err := f.client.Do(req)
		if err != nil {
			return eris.Wrapf(err, "http: GET %s", rawURL)
		}

		switch {
		case r.StatusCode == http.StatusTooManyRequests:
			_ = r.Body.Close()
			th.Penalize()
			return resilience.MarkTransient(eris.Errorf("http: 429 from %s", rawURL))
		case r.StatusCode >= 500:
			_ = r.Body.Close()
			return resilience.MarkTransient(eris.Errorf("http: %d from %s", r.StatusCode, rawURL))
		}

		th.Reward()
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Download fetches the URL and hands back the body stream. The caller
// closes it.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	resp, err := f.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, eris.Errorf("http: unexpected status %d from %s", resp.StatusCode, rawURL)
	}
	return resp.Body, nil
}

// DownloadToFile fetches the URL and writes the body to path, returning the
// byte count.
func (f *HTTPFetcher) DownloadToFile(ctx context.Context, rawURL string, path string) (int64, error) {
	body, err := f.Download(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer body.Close() //nolint:errcheck

	file, err := os.Create(path)
	if err != nil {
		return 0, eris.Wrapf(err, "http: create %s", path)
	}
	defer file.Close() //nolint:errcheck

	n, err := io.Copy(file, body)
	if err != nil {
		return n, eris.Wrapf(err, "http: write %s", path)
	}
	return n, nil
}
