package page

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baxromumarov/job-extractor/internal/clock"
	"github.com/baxromumarov/job-extractor/internal/extractor"
	"github.com/baxromumarov/job-extractor/internal/httpx"
	"github.com/baxromumarov/job-extractor/internal/observability"
	"github.com/baxromumarov/job-extractor/internal/urlutil"
)

var (
	_ extractor.Page = (*Static)(nil)
	_ extractor.Page = (*Remote)(nil)
)

func TestStaticSnapshot(t *testing.T) {
	p := NewStatic("https://example.com/jobs/1", []byte(`<main><h1>Generic Title</h1></main>`))

	u, err := p.URL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/jobs/1", u)

	doc, err := p.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Generic Title", doc.Find("h1").Text())
}

func TestStaticSnapshotCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewStatic("https://example.com", nil).Snapshot(ctx)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRemoteRejectsBadURLs(t *testing.T) {
	for _, raw := range []string{"", "ftp://example.com/job", "https://example.com/logo.png", "/relative"} {
		_, err := NewRemote(httpx.NewPoliteClient("", time.Second), raw)
		assert.Error(t, err, raw)
	}
}

func TestRemoteRefetchesEachSnapshot(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		n := hits.Add(1)
		if n < 2 {
			_, _ = w.Write([]byte(`<div class="spinner"></div>`))
			return
		}
		_, _ = w.Write([]byte(`<h1>Loaded</h1><span class="company">Acme</span>`))
	}))
	defer srv.Close()

	p, err := NewRemote(httpx.NewPoliteClient("test-agent", 5*time.Second), srv.URL+"/job")
	require.NoError(t, err)
	host := urlutil.Hostname(srv.URL)
	before := observability.Snapshot().PagesByHost[host]

	first, err := p.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, first.Find("h1").Length())

	second, err := p.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Loaded", second.Find("h1").Text())
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, before+2, observability.Snapshot().PagesByHost[host])
}

func TestRemoteFollowsRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<h1>Moved</h1>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p, err := NewRemote(httpx.NewPoliteClient("", 5*time.Second), srv.URL+"/old")
	require.NoError(t, err)

	_, err = p.Snapshot(context.Background())
	require.NoError(t, err)

	u, err := p.URL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/new", u)
}

func TestRemoteUnreachableIsPageUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	p, err := NewRemote(httpx.NewPoliteClient("", time.Second), srv.URL+"/job")
	require.NoError(t, err)

	x := extractor.New(extractor.WithClock(clock.NewFake(time.Unix(0, 0))))
	_, err = x.Extract(context.Background(), p)

	assert.ErrorIs(t, err, extractor.ErrPageUnavailable)
}

func TestRemoteExtractsGenericPosting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`<main><h1>Generic Title</h1></main>`))
	}))
	defer srv.Close()

	p, err := NewRemote(httpx.NewPoliteClient("", 5*time.Second), srv.URL+"/careers/1")
	require.NoError(t, err)

	got, err := extractor.New().Extract(context.Background(), p)

	require.NoError(t, err)
	assert.Equal(t, extractor.ParsedJobPosting{JobTitle: "Generic Title"}, got)
}
