package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"golang.org/x/time/rate"
)

// Response is one fetched page body.
type Response struct {
	URL    string
	Status int
	Body   []byte
}

// CollyFetcher wraps Colly for polite page fetching with per-host limits and
// backoff on 429/5xx.
type CollyFetcher struct {
	userAgent    string
	timeout      time.Duration
	maxAttempts  int
	mu           sync.Mutex
	defaultRate  rate.Limit
	defaultBurst int
	hosts        map[string]*hostPolicy
}

type hostPolicy struct {
	limiter     *rate.Limiter
	nextAllowed time.Time
	mu          sync.Mutex
}

type FetchError struct {
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch error (status %d)", e.Status)
	}
	return fmt.Sprintf("fetch error (status %d): %v", e.Status, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func NewCollyFetcher(userAgent string, timeout time.Duration) *CollyFetcher {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &CollyFetcher{
		userAgent:    userAgent,
		timeout:      timeout,
		maxAttempts:  3,
		defaultRate:  rate.Every(time.Second),
		defaultBurst: 2,
		hosts:        make(map[string]*hostPolicy),
	}
}

// SetHostLimit overrides the request rate for one host. Job boards that
// throttle aggressively get a slower limiter than the default 1 req/s.
func (f *CollyFetcher) SetHostLimit(host string, per time.Duration, burst int) {
	if host == "" || per <= 0 || burst <= 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	policy := f.getOrCreatePolicyLocked(normalizeHost(host))
	policy.mu.Lock()
	policy.limiter = rate.NewLimiter(rate.Every(per), burst)
	policy.mu.Unlock()
}

// Get fetches rawURL and returns the body of the final response.
func (f *CollyFetcher) Get(ctx context.Context, rawURL string) (*Response, error) {
	target, err := normalizeURL(rawURL)
	if err != nil {
		return nil, err
	}
	host := hostKey(target)

	var (
		lastErr error
		resp    *Response
	)
	for attempt := 0; attempt < f.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err := f.waitForHost(ctx, host); err != nil {
			return nil, err
		}
		resp, lastErr = f.fetchOnce(ctx, target)
		if lastErr == nil {
			return resp, nil
		}
		if shouldBackoff(resp.Status) {
			f.applyBackoff(host, attempt)
			continue
		}
		return nil, &FetchError{Status: resp.Status, Err: lastErr}
	}

	if lastErr == nil {
		lastErr = errors.New("colly fetch failed")
	}
	return nil, &FetchError{Status: resp.Status, Err: lastErr}
}

func (f *CollyFetcher) fetchOnce(ctx context.Context, target string) (*Response, error) {
	c := f.newCollector()

	resp := &Response{URL: target}
	var reqErr error
	c.OnResponse(func(r *colly.Response) {
		resp.Status = r.StatusCode
		resp.URL = r.Request.URL.String()
		resp.Body = append([]byte(nil), r.Body...)
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			resp.Status = r.StatusCode
		}
		reqErr = err
	})

	collyCtx := colly.NewContext()
	collyCtx.Put("ctx", ctx)

	if err := c.Request(http.MethodGet, target, nil, collyCtx, nil); err != nil {
		return resp, err
	}
	if reqErr != nil {
		return resp, reqErr
	}
	if resp.Status >= 400 {
		return resp, fmt.Errorf("status %d", resp.Status)
	}
	if resp.Status == 0 {
		resp.Status = http.StatusOK
	}
	return resp, nil
}

func (f *CollyFetcher) newCollector() *colly.Collector {
	c := colly.NewCollector(colly.UserAgent(f.userAgent), colly.AllowURLRevisit())
	c.IgnoreRobotsTxt = false
	c.SetRequestTimeout(f.timeout)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
		ctx := context.Background()
		if v := r.Ctx.GetAny("ctx"); v != nil {
			if reqCtx, ok := v.(context.Context); ok {
				ctx = reqCtx
			}
		}
		if ctx.Err() != nil {
			r.Abort()
		}
	})

	return c
}

func (f *CollyFetcher) waitForHost(ctx context.Context, host string) error {
	policy := f.hostPolicy(host)
	if err := policy.waitBackoff(ctx); err != nil {
		return err
	}
	return policy.limiter.Wait(ctx)
}

func (f *CollyFetcher) hostPolicy(host string) *hostPolicy {
	key := normalizeHost(host)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getOrCreatePolicyLocked(key)
}

func (f *CollyFetcher) getOrCreatePolicyLocked(host string) *hostPolicy {
	if host == "" {
		host = "default"
	}
	if policy, ok := f.hosts[host]; ok {
		return policy
	}
	policy := &hostPolicy{
		limiter: rate.NewLimiter(f.defaultRate, f.defaultBurst),
	}
	f.hosts[host] = policy
	return policy
}

func (f *CollyFetcher) applyBackoff(host string, attempt int) {
	if attempt < 0 {
		attempt = 0
	}
	policy := f.hostPolicy(host)
	delay := time.Duration(500*(1<<attempt)) * time.Millisecond
	policy.mu.Lock()
	next := time.Now().Add(delay)
	if next.After(policy.nextAllowed) {
		policy.nextAllowed = next
	}
	policy.mu.Unlock()
}

func normalizeURL(rawURL string) (string, error) {
	if rawURL == "" {
		return "", errors.New("empty url")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	return u.String(), nil
}

func normalizeHost(host string) string {
	host = strings.ToLower(host)
	host = strings.TrimPrefix(host, "www.")
	return host
}

func hostKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "default"
	}
	return normalizeHost(u.Hostname())
}

func shouldBackoff(status int) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	return status >= 500 && status <= 599
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p *hostPolicy) waitBackoff(ctx context.Context) error {
	for {
		p.mu.Lock()
		next := p.nextAllowed
		p.mu.Unlock()
		now := time.Now()
		if !now.Before(next) {
			return nil
		}
		if err := sleepWithContext(ctx, next.Sub(now)); err != nil {
			return err
		}
	}
}
