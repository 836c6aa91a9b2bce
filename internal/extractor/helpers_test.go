package extractor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

// scriptedPage serves one HTML string per snapshot; the last one repeats.
type scriptedPage struct {
	mu        sync.Mutex
	url       string
	htmls     []string
	failFirst int
	urlErr    error
	snapshots int
}

func (p *scriptedPage) URL(context.Context) (string, error) {
	if p.urlErr != nil {
		return "", p.urlErr
	}
	return p.url, nil
}

func (p *scriptedPage) Snapshot(context.Context) (*goquery.Document, error) {
	p.mu.Lock()
	n := p.snapshots
	p.snapshots++
	p.mu.Unlock()

	if n < p.failFirst {
		return nil, errors.New("target closed")
	}
	idx := n - p.failFirst
	if idx >= len(p.htmls) {
		idx = len(p.htmls) - 1
	}
	return goquery.NewDocumentFromReader(strings.NewReader(p.htmls[idx]))
}

func (p *scriptedPage) Snapshots() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshots
}

func mustDoc(t *testing.T, markup string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	require.NoError(t, err)
	return doc
}
