package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/baxromumarov/job-extractor/internal/clock"
	"github.com/baxromumarov/job-extractor/internal/events"
	"github.com/baxromumarov/job-extractor/internal/extractor"
	"github.com/baxromumarov/job-extractor/internal/observability"
	"github.com/baxromumarov/job-extractor/internal/urlutil"
)

const DefaultSettleDelay = 500 * time.Millisecond

// Change is one batch of DOM mutations together with the URL the page
// reported when the batch was observed.
type Change struct {
	URL string
	At  time.Time
}

// ChangeSource delivers DOM change batches. The channel is closed when the
// source goes away.
type ChangeSource interface {
	Changes() <-chan Change
}

// Extractor is the part of extractor.Extractor the watcher needs.
type Extractor interface {
	Extract(ctx context.Context, p extractor.Page) (extractor.ParsedJobPosting, error)
}

type Option func(*Watcher)

func WithClock(c clock.Clock) Option {
	return func(w *Watcher) { w.clock = c }
}

func WithSettleDelay(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.settle = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithSource tags published events, typically with a session id.
func WithSource(source string) Option {
	return func(w *Watcher) { w.source = source }
}

// Watcher re-extracts a page after its URL changes without a full
// navigation. Changes that arrive within the settle delay of each other
// collapse into one extraction of the last URL seen.
type Watcher struct {
	extractor Extractor
	page      extractor.Page
	publisher events.Publisher
	clock     clock.Clock
	settle    time.Duration
	source    string
	logger    *slog.Logger

	mu      sync.Mutex
	started bool
	lastURL string
	gen     uint64
	timer   clock.Timer
}

func New(x Extractor, page extractor.Page, pub events.Publisher, opts ...Option) *Watcher {
	w := &Watcher{
		extractor: x,
		page:      page,
		publisher: pub,
		clock:     clock.New(),
		settle:    DefaultSettleDelay,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start records the page's current URL as the baseline. It does not
// extract.
func (w *Watcher) Start(ctx context.Context) error {
	u, err := w.page.URL(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", extractor.ErrPageUnavailable, err)
	}
	w.mu.Lock()
	w.lastURL = u
	w.started = true
	w.mu.Unlock()
	return nil
}

// Run consumes src until ctx is done or the source closes, calling Start
// first unless it already ran. Any pending extraction is cancelled on
// return.
func (w *Watcher) Run(ctx context.Context, src ChangeSource) error {
	w.mu.Lock()
	started := w.started
	w.mu.Unlock()
	if !started {
		if err := w.Start(ctx); err != nil {
			return err
		}
	}
	defer w.Stop()

	changes := src.Changes()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c, ok := <-changes:
			if !ok {
				return nil
			}
			w.Observe(ctx, c)
		}
	}
}

// Observe handles one change batch and reports whether it scheduled an
// extraction. A batch whose URL equals the last one seen never schedules.
func (w *Watcher) Observe(ctx context.Context, c Change) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if c.URL == "" || c.URL == w.lastURL {
		return false
	}
	w.lastURL = c.URL
	w.gen++
	gen := w.gen
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = w.clock.AfterFunc(w.settle, func() { w.fire(ctx, gen) })

	w.logger.Debug("url change scheduled", "url", c.URL, "generation", gen)
	return true
}

// Stop cancels a pending extraction.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.gen++
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

// LastURL returns the most recent URL the watcher has seen.
func (w *Watcher) LastURL() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastURL
}

func (w *Watcher) fire(ctx context.Context, gen uint64) {
	w.mu.Lock()
	if gen != w.gen {
		w.mu.Unlock()
		return
	}
	w.timer = nil
	u := w.lastURL
	w.mu.Unlock()

	if ctx.Err() != nil {
		return
	}
	observability.IncReextraction()
	w.ExtractNow(ctx, u)
}

// ExtractNow extracts the page and publishes the result. Failures are
// logged and dropped.
func (w *Watcher) ExtractNow(ctx context.Context, u string) {
	posting, err := w.extractor.Extract(ctx, w.page)
	if err != nil {
		w.logger.Warn("re-extraction failed", "url", u, "error", err)
		return
	}
	site := extractor.AdapterFor(urlutil.Hostname(u)).String()
	w.publisher.Publish(events.NewEvent(w.source, u, site, posting, w.clock.Now()))
}
