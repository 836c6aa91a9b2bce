package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baxromumarov/job-extractor/internal/clock"
	"github.com/baxromumarov/job-extractor/internal/events"
	"github.com/baxromumarov/job-extractor/internal/extractor"
	"github.com/baxromumarov/job-extractor/internal/httpx"
	"github.com/baxromumarov/job-extractor/internal/store"
)

type stubGetter struct {
	body string
	err  error
}

func (g stubGetter) Get(_ context.Context, rawURL string) (*httpx.Response, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &httpx.Response{URL: rawURL, Status: http.StatusOK, Body: []byte(g.body)}, nil
}

type memStore struct {
	mu       sync.Mutex
	nextID   int64
	postings map[int64]store.SavedPosting
	err      error
}

func newMemStore() *memStore {
	return &memStore{postings: make(map[int64]store.SavedPosting)}
}

func (m *memStore) SavePosting(_ context.Context, url, site string, p extractor.ParsedJobPosting) (store.SavedPosting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return store.SavedPosting{}, m.err
	}
	m.nextID++
	saved := store.SavedPosting{
		ID:             m.nextID,
		URL:            url,
		Site:           site,
		JobTitle:       p.JobTitle,
		CompanyName:    p.CompanyName,
		JobDescription: p.JobDescription,
	}
	m.postings[saved.ID] = saved
	return saved, nil
}

func (m *memStore) GetPosting(_ context.Context, id int64) (store.SavedPosting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return store.SavedPosting{}, m.err
	}
	p, ok := m.postings[id]
	if !ok {
		return store.SavedPosting{}, store.ErrNotFound
	}
	return p, nil
}

func (m *memStore) ListPostings(_ context.Context, limit, offset int) ([]store.SavedPosting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []store.SavedPosting
	for id := int64(1); id <= m.nextID; id++ {
		if p, ok := m.postings[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) DeletePosting(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.postings[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.postings, id)
	return nil
}

func newTestServer(getter stubGetter, opts ...Option) (*Server, *events.Broker) {
	broker := events.NewBroker(8)
	x := extractor.New(extractor.WithClock(clock.NewFake(time.Unix(0, 0))))
	return NewServer(x, getter, broker, opts...), broker
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(stubGetter{})
	rec := do(t, srv.Router(), http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestStats(t *testing.T) {
	srv, _ := newTestServer(stubGetter{})
	rec := do(t, srv.Router(), http.MethodGet, "/stats", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
}

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		getter   stubGetter
		body     string
		wantCode int
		want     extractor.ParsedJobPosting
	}{
		{
			name:     "inline linkedin html",
			body:     `{"url":"https://www.linkedin.com/jobs/view/1","html":"<h1 class=\"top-card-layout__title\">Senior Engineer</h1>"}`,
			wantCode: http.StatusOK,
			want:     extractor.ParsedJobPosting{JobTitle: "Senior Engineer"},
		},
		{
			name:     "inline indeed html without job content",
			body:     `{"url":"https://www.indeed.com/viewjob?jk=1","html":"<p>Sign in</p>"}`,
			wantCode: http.StatusOK,
			want:     extractor.ParsedJobPosting{},
		},
		{
			name:     "empty inline html",
			body:     `{"url":"https://example.com/jobs/1","html":""}`,
			wantCode: http.StatusOK,
			want:     extractor.ParsedJobPosting{},
		},
		{
			name:     "fetched generic page",
			getter:   stubGetter{body: `<main><h1>Generic Title</h1></main>`},
			body:     `{"url":"https://example.com/careers/1"}`,
			wantCode: http.StatusOK,
			want:     extractor.ParsedJobPosting{JobTitle: "Generic Title"},
		},
		{
			name:     "unreachable page",
			getter:   stubGetter{err: &httpx.FetchError{Status: 503, Err: errors.New("unavailable")}},
			body:     `{"url":"https://example.com/careers/1"}`,
			wantCode: http.StatusBadGateway,
		},
		{name: "missing url", body: `{"html":"<h1>x</h1>"}`, wantCode: http.StatusBadRequest},
		{name: "unknown field", body: `{"url":"https://example.com","dom":"x"}`, wantCode: http.StatusBadRequest},
		{name: "wrong type", body: `{"url":42}`, wantCode: http.StatusBadRequest},
		{name: "not json", body: `url=https://example.com`, wantCode: http.StatusBadRequest},
		{name: "empty body", body: ``, wantCode: http.StatusBadRequest},
		{name: "unsupported scheme", body: `{"url":"ftp://example.com/job"}`, wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(tt.getter)
			rec := do(t, srv.Router(), http.MethodPost, "/parse", tt.body)

			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantCode != http.StatusOK {
				var body map[string]string
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.NotEmpty(t, body["error"])
				return
			}
			var got map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, map[string]string{
				"jobTitle":       tt.want.JobTitle,
				"companyName":    tt.want.CompanyName,
				"jobDescription": tt.want.JobDescription,
			}, got)
		})
	}
}

func TestDisabledFeatures(t *testing.T) {
	srv, _ := newTestServer(stubGetter{})
	h := srv.Router()

	for _, tc := range []struct{ method, path, body string }{
		{http.MethodGet, "/watch", ""},
		{http.MethodPost, "/watch", `{"url":"https://example.com"}`},
		{http.MethodDelete, "/watch/abc", ""},
		{http.MethodGet, "/postings", ""},
		{http.MethodPost, "/postings", `{"url":"https://example.com"}`},
		{http.MethodDelete, "/postings/1", ""},
	} {
		rec := do(t, h, tc.method, tc.path, tc.body)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "%s %s", tc.method, tc.path)
	}
}

func TestPostings(t *testing.T) {
	st := newMemStore()
	srv, _ := newTestServer(stubGetter{}, WithStore(st))
	h := srv.Router()

	rec := do(t, h, http.MethodPost, "/postings",
		`{"url":"https://www.linkedin.com/jobs/view/9?utm_source=x#top","jobTitle":"Senior Engineer","companyName":"Acme"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var saved store.SavedPosting
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saved))
	assert.Equal(t, "https://linkedin.com/jobs/view/9", saved.URL)
	assert.Equal(t, "linkedin", saved.Site)
	assert.Equal(t, "Senior Engineer", saved.JobTitle)

	rec = do(t, h, http.MethodGet, "/postings?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Items  []store.SavedPosting `json:"items"`
		Limit  int                  `json:"limit"`
		Offset int                  `json:"offset"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Items, 1)
	assert.Equal(t, 5, list.Limit)

	rec = do(t, h, http.MethodGet, "/postings/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got store.SavedPosting
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, saved.ID, got.ID)
	assert.Equal(t, "Acme", got.CompanyName)
	rec = do(t, h, http.MethodGet, "/postings/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodDelete, "/postings/1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, h, http.MethodGet, "/postings/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, h, http.MethodDelete, "/postings/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, h, http.MethodDelete, "/postings/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/postings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[],"limit":20,"offset":0}`, rec.Body.String())
}

func TestSavePostingValidation(t *testing.T) {
	srv, _ := newTestServer(stubGetter{}, WithStore(newMemStore()))

	rec := do(t, srv.Router(), http.MethodPost, "/postings", `{"jobTitle":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSavePostingStoreFailure(t *testing.T) {
	st := newMemStore()
	st.err = errors.New("connection reset")
	srv, _ := newTestServer(stubGetter{}, WithStore(st))

	rec := do(t, srv.Router(), http.MethodPost, "/postings", `{"url":"https://example.com/1"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestParsePagination(t *testing.T) {
	tests := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"", 20, 0},
		{"limit=5&offset=10", 5, 10},
		{"limit=-1&offset=-3", 20, 0},
		{"limit=abc", 20, 0},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/postings?"+tt.query, nil)
		limit, offset := parsePagination(r, 20)
		assert.Equal(t, tt.wantLimit, limit, tt.query)
		assert.Equal(t, tt.wantOffset, offset, tt.query)
	}
}

func TestEventsStream(t *testing.T) {
	srv, broker := newTestServer(stubGetter{})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	require.Eventually(t, func() bool { return broker.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	ev := events.NewEvent("s1", "https://linkedin.com/jobs/view/2", "linkedin",
		extractor.ParsedJobPosting{JobTitle: "Senior Engineer"}, time.Now())
	broker.Publish(ev)

	reader := bufio.NewReader(resp.Body)
	var data string
	for data == "" {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: ") {
			data = strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		}
	}

	var got events.Event
	require.NoError(t, json.Unmarshal([]byte(data), &got))
	assert.Equal(t, ev.ID, got.ID)
	assert.Equal(t, "Senior Engineer", got.Posting.JobTitle)

	cancel()
	assert.Eventually(t, func() bool { return broker.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}
