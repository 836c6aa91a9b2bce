package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/chromedp/chromedp"
)

var ErrClosed = errors.New("browser closed")

type Options struct {
	ExecPath        string
	Headless        bool
	UserAgent       string
	NavigateTimeout time.Duration
}

// Browser owns one Chrome process. Tabs opened from it share the process
// but not their state.
type Browser struct {
	opts        Options
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
}

// Start launches Chrome. CHROME_PATH overrides Options.ExecPath.
func Start(ctx context.Context, opts Options) (*Browser, error) {
	if opts.NavigateTimeout <= 0 {
		opts.NavigateTimeout = 30 * time.Second
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	execPath := opts.ExecPath
	if p := os.Getenv("CHROME_PATH"); p != "" {
		execPath = p
	}
	if execPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(execPath))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	bctx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		slog.Debug(fmt.Sprintf(format, args...), "component", "chromedp")
	}))

	// the first Run starts the process and binds its lifetime to bctx
	if err := chromedp.Run(bctx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}
	return &Browser{opts: opts, allocCancel: allocCancel, ctx: bctx, cancel: cancel}, nil
}

// Open creates a tab and navigates it to rawURL.
func (b *Browser) Open(ctx context.Context, rawURL string) (*Tab, error) {
	if b.ctx.Err() != nil {
		return nil, ErrClosed
	}
	tctx, cancel := chromedp.NewContext(b.ctx)
	t := newTab(tctx, cancel)
	chromedp.ListenTarget(tctx, t.onEvent)

	if err := chromedp.Run(tctx); err != nil {
		t.Close()
		return nil, fmt.Errorf("open tab: %w", err)
	}

	navCtx, navCancel := context.WithTimeout(ctx, b.opts.NavigateTimeout)
	defer navCancel()
	if err := t.run(navCtx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		t.Close()
		return nil, fmt.Errorf("navigate %s: %w", rawURL, err)
	}
	return t, nil
}

// Close shuts every tab and the Chrome process.
func (b *Browser) Close() {
	b.cancel()
	b.allocCancel()
}
