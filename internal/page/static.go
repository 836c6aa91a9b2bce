package page

import (
	"bytes"
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

// Static is a fixed document. Every snapshot parses the same markup.
type Static struct {
	url  string
	html []byte
}

func NewStatic(url string, html []byte) *Static {
	return &Static{url: url, html: html}
}

func (s *Static) URL(context.Context) (string, error) {
	return s.url, nil
}

func (s *Static) Snapshot(ctx context.Context) (*goquery.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(s.html))
	if err != nil {
		return nil, fmt.Errorf("parse failed: %w", err)
	}
	return doc, nil
}
