package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baxromumarov/job-extractor/internal/extractor"
	"github.com/baxromumarov/job-extractor/internal/watcher"
)

var (
	_ extractor.Page       = (*Tab)(nil)
	_ watcher.ChangeSource = (*Tab)(nil)
)

func detachedTab() *Tab {
	ctx, cancel := context.WithCancel(context.Background())
	return newTab(ctx, cancel)
}

func TestTabEmitsTopFrameNavigations(t *testing.T) {
	tab := detachedTab()
	defer tab.Close()

	tab.onEvent(&page.EventFrameNavigated{Frame: &cdp.Frame{ID: "child", ParentID: "main", URL: "https://ads.example.com"}})
	select {
	case c := <-tab.Changes():
		t.Fatalf("unexpected change %q from child frame", c.URL)
	default:
	}

	tab.onEvent(&page.EventNavigatedWithinDocument{FrameID: "main", URL: "https://www.linkedin.com/jobs/view/2"})
	c := <-tab.Changes()
	assert.Equal(t, "https://www.linkedin.com/jobs/view/2", c.URL)

	tab.onEvent(&page.EventFrameNavigated{Frame: &cdp.Frame{ID: "main", URL: "https://www.indeed.com/viewjob"}})
	c = <-tab.Changes()
	assert.Equal(t, "https://www.indeed.com/viewjob", c.URL)
}

func TestTabKeepsLatestUndeliveredChange(t *testing.T) {
	tab := detachedTab()
	defer tab.Close()

	for _, u := range []string{"https://example.com/1", "https://example.com/2", "https://example.com/3"} {
		tab.emit(u)
	}

	c := <-tab.Changes()
	assert.Equal(t, "https://example.com/3", c.URL)
	select {
	case extra := <-tab.Changes():
		t.Fatalf("unexpected change %q", extra.URL)
	default:
	}
}

func TestTabCloseIsIdempotent(t *testing.T) {
	tab := detachedTab()
	tab.Close()
	tab.Close()

	assert.NotPanics(t, func() { tab.emit("https://example.com/after-close") })
	_, open := <-tab.Changes()
	assert.False(t, open)
	<-tab.Done()
}

// Requires a local Chrome; set BROWSER_TESTS=1 to run.
func TestTabExtractsLivePage(t *testing.T) {
	if os.Getenv("BROWSER_TESTS") == "" {
		t.Skip("BROWSER_TESTS not set")
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><main></main><script>
setTimeout(function () { document.querySelector("main").innerHTML = "<h1>Rendered Later</h1>"; }, 300);
</script></body></html>`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	b, err := Start(ctx, Options{Headless: true})
	require.NoError(t, err)
	defer b.Close()

	tab, err := b.Open(ctx, srv.URL)
	require.NoError(t, err)
	defer tab.Close()

	x := extractor.New(extractor.WithPolicy(extractor.GenericAdapter, extractor.RetryPolicy{MaxAttempts: 10, Delay: 200 * time.Millisecond}))
	got, err := x.Extract(ctx, tab)

	require.NoError(t, err)
	assert.Equal(t, "Rendered Later", got.JobTitle)
}
