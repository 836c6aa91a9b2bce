package page

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/baxromumarov/job-extractor/internal/httpx"
	"github.com/baxromumarov/job-extractor/internal/observability"
	"github.com/baxromumarov/job-extractor/internal/urlutil"
)

// Remote is a page served over HTTP. Each snapshot refetches the document,
// so retries see whatever the server renders at that moment. After the
// first fetch URL reports the final URL, redirects included.
type Remote struct {
	getter httpx.Getter

	mu  sync.Mutex
	url string
}

func NewRemote(getter httpx.Getter, rawURL string) (*Remote, error) {
	u, err := urlutil.ValidatePageURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page url %q: %w", rawURL, err)
	}
	return &Remote{getter: getter, url: u}, nil
}

func (r *Remote) URL(context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.url, nil
}

func (r *Remote) Snapshot(ctx context.Context) (*goquery.Document, error) {
	target, _ := r.URL(ctx)
	resp, err := r.getter.Get(ctx, target)
	if err != nil {
		observability.IncError(observability.ClassifyFetchError(err), "page")
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}
	observability.IncPagesFetched(urlutil.Hostname(resp.URL))

	if resp.URL != "" && resp.URL != target {
		r.mu.Lock()
		r.url = resp.URL
		r.mu.Unlock()
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("parse failed: %w", err)
	}
	return doc, nil
}
