package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"golang.org/x/time/rate"
)

const DefaultUserAgent = "job-extractor/1.0"

// maxBodyBytes caps a single page body; job pages above this are truncated.
const maxBodyBytes = 4 << 20

var ErrBlockedByRobots = errors.New("blocked by robots.txt")

// PoliteClient enforces per-host rate limits, robots.txt rules, and polite retries.
type PoliteClient struct {
	client      *http.Client
	ua          string
	limiters    map[string]*rate.Limiter
	robotsCache map[string]*robotstxt.RobotsData
	mu          sync.Mutex
}

func NewPoliteClient(userAgent string, timeout time.Duration) *PoliteClient {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &PoliteClient{
		client:      &http.Client{Timeout: timeout},
		ua:          userAgent,
		limiters:    map[string]*rate.Limiter{},
		robotsCache: map[string]*robotstxt.RobotsData{},
	}
}

func (p *PoliteClient) limiterFor(host string) *rate.Limiter {
	key := normalizeHost(host)
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.limiters[key]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Every(time.Second), 2) // 1 req/s, burst 2
	p.limiters[key] = l
	return l
}

// SetHostLimit overrides the request rate for one host.
func (p *PoliteClient) SetHostLimit(host string, per time.Duration, burst int) {
	if host == "" || per <= 0 || burst <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.limiters[normalizeHost(host)] = rate.NewLimiter(rate.Every(per), burst)
}

// NewRequest builds an HTTP GET request with context and a safe URL defaulting to https.
func NewRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	target, err := normalizeURL(rawURL)
	if err != nil {
		return nil, err
	}
	return http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
}

func (p *PoliteClient) robotsFor(ctx context.Context, u *url.URL) (*robotstxt.RobotsData, error) {
	host := u.Hostname()
	p.mu.Lock()
	if data, ok := p.robotsCache[host]; ok {
		p.mu.Unlock()
		return data, nil
	}
	p.mu.Unlock()

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", p.ua)

	if err := p.limiterFor(host).Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.robotsCache[host] = data
	p.mu.Unlock()
	return data, nil
}

// Get fetches rawURL respecting robots.txt and rate limits.
func (p *PoliteClient) Get(ctx context.Context, rawURL string) (*Response, error) {
	req, err := NewRequest(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	resp, err := p.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, &FetchError{Status: resp.StatusCode, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &FetchError{Status: resp.StatusCode, Err: err}
	}
	return &Response{URL: resp.Request.URL.String(), Status: resp.StatusCode, Body: body}, nil
}

// Do executes the request respecting robots.txt and rate limits.
func (p *PoliteClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", p.ua)
	}

	u := req.URL
	if u.Scheme == "" {
		u.Scheme = "https"
	}

	if ok := p.allowed(ctx, u, req.Method); !ok {
		return nil, fmt.Errorf("%w: %s", ErrBlockedByRobots, u)
	}

	limiter := p.limiterFor(u.Hostname())

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := p.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
			lastErr = &FetchError{Status: resp.StatusCode, Err: fmt.Errorf("retryable status %d", resp.StatusCode)}
			resp.Body.Close()
			backoff := time.Duration(500*(1<<attempt)) * time.Millisecond
			if err := sleepWithContext(ctx, backoff); err != nil {
				return nil, err
			}
			continue
		}

		return resp, nil
	}

	if lastErr == nil {
		lastErr = errors.New("polite client: failed without error")
	}
	return nil, lastErr
}

func (p *PoliteClient) allowed(ctx context.Context, u *url.URL, method string) bool {
	if !strings.EqualFold(method, http.MethodGet) && !strings.EqualFold(method, http.MethodHead) {
		return false
	}
	data, err := p.robotsFor(ctx, u)
	if err != nil {
		return true // fail open; an unreachable robots.txt should not block parsing
	}
	group := data.FindGroup(p.ua)
	if group == nil {
		return true
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	return group.Test(path)
}
