package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/baxromumarov/job-extractor/internal/watcher"
)

// Tab is a live browser tab. Snapshots read the DOM as rendered at the time
// of the call. Tab never navigates after Open.
type Tab struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	closed  bool
	changes chan watcher.Change
}

func newTab(ctx context.Context, cancel context.CancelFunc) *Tab {
	return &Tab{ctx: ctx, cancel: cancel, changes: make(chan watcher.Change, 1)}
}

// run executes actions on the tab, cancelled by either ctx or the tab.
func (t *Tab) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(t.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (t *Tab) URL(ctx context.Context) (string, error) {
	var u string
	if err := t.run(ctx, chromedp.Location(&u)); err != nil {
		return "", fmt.Errorf("chrome location: %w", err)
	}
	return u, nil
}

func (t *Tab) Snapshot(ctx context.Context) (*goquery.Document, error) {
	var markup string
	if err := t.run(ctx, chromedp.OuterHTML("html", &markup, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("chrome snapshot: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse failed: %w", err)
	}
	return doc, nil
}

// Changes reports URL changes of the top frame, including history API
// navigations that keep the document. Only the latest undelivered change is
// kept. The channel closes with the tab.
func (t *Tab) Changes() <-chan watcher.Change {
	return t.changes
}

// Done is closed when the tab goes away.
func (t *Tab) Done() <-chan struct{} {
	return t.ctx.Done()
}

func (t *Tab) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	t.cancel()
	close(t.changes)
}

func (t *Tab) onEvent(ev any) {
	switch e := ev.(type) {
	case *page.EventNavigatedWithinDocument:
		t.emit(e.URL)
	case *page.EventFrameNavigated:
		if e.Frame != nil && e.Frame.ParentID == "" {
			t.emit(e.Frame.URL)
		}
	}
}

// emit never blocks the event listener: an undelivered older change is
// replaced by the newer one.
func (t *Tab) emit(u string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || u == "" {
		return
	}
	c := watcher.Change{URL: u, At: time.Now()}
	select {
	case t.changes <- c:
		return
	default:
	}
	select {
	case <-t.changes:
	default:
	}
	select {
	case t.changes <- c:
	default:
	}
}
