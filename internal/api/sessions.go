package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/baxromumarov/job-extractor/internal/browser"
	"github.com/baxromumarov/job-extractor/internal/events"
	"github.com/baxromumarov/job-extractor/internal/extractor"
	"github.com/baxromumarov/job-extractor/internal/watcher"
)

var (
	ErrSessionNotFound = errors.New("watch session not found")
	ErrSessionLimit    = errors.New("watch session limit reached")
)

// Tab is a live page that reports its own URL changes.
type Tab interface {
	extractor.Page
	watcher.ChangeSource
	Done() <-chan struct{}
	Close()
}

// Opener opens a tab at a URL.
type Opener interface {
	Open(ctx context.Context, rawURL string) (Tab, error)
}

type OpenerFunc func(ctx context.Context, rawURL string) (Tab, error)

func (f OpenerFunc) Open(ctx context.Context, rawURL string) (Tab, error) { return f(ctx, rawURL) }

// BrowserOpener opens tabs in b.
func BrowserOpener(b *browser.Browser) Opener {
	return OpenerFunc(func(ctx context.Context, rawURL string) (Tab, error) {
		tab, err := b.Open(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		return tab, nil
	})
}

type SessionInfo struct {
	ID       string    `json:"id"`
	URL      string    `json:"url"`
	OpenedAt time.Time `json:"opened_at"`
}

type session struct {
	id       string
	openedAt time.Time
	tab      Tab
	watcher  *watcher.Watcher
	cancel   context.CancelFunc
	done     chan struct{}
}

// Sessions tracks open watch sessions. Each session is one tab whose URL
// changes trigger re-extraction; every result goes to the publisher.
type Sessions struct {
	opener    Opener
	extractor watcher.Extractor
	publisher events.Publisher
	settle    time.Duration
	max       int

	mu       sync.Mutex
	sessions map[string]*session
}

// NewSessions allows at most max concurrent sessions; zero means no limit.
func NewSessions(opener Opener, x watcher.Extractor, pub events.Publisher, settle time.Duration, limit int) *Sessions {
	return &Sessions{
		opener:    opener,
		extractor: x,
		publisher: pub,
		settle:    settle,
		max:       limit,
		sessions:  make(map[string]*session),
	}
}

// Open opens rawURL in a new tab, publishes its first extraction, and keeps
// watching it until Close or the tab goes away.
func (m *Sessions) Open(ctx context.Context, rawURL string) (SessionInfo, error) {
	if m.full() {
		return SessionInfo{}, ErrSessionLimit
	}

	tab, err := m.opener.Open(ctx, rawURL)
	if err != nil {
		return SessionInfo{}, fmt.Errorf("open tab: %w", err)
	}

	id := uuid.NewString()
	w := watcher.New(m.extractor, tab, m.publisher,
		watcher.WithSettleDelay(m.settle),
		watcher.WithSource(id),
	)
	if err := w.Start(ctx); err != nil {
		tab.Close()
		return SessionInfo{}, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s := &session{
		id:       id,
		openedAt: time.Now().UTC(),
		tab:      tab,
		watcher:  w,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	m.mu.Lock()
	if m.max > 0 && len(m.sessions) >= m.max {
		m.mu.Unlock()
		cancel()
		tab.Close()
		return SessionInfo{}, ErrSessionLimit
	}
	m.sessions[id] = s
	m.mu.Unlock()

	go m.run(runCtx, s)
	return s.info(), nil
}

func (m *Sessions) run(ctx context.Context, s *session) {
	defer close(s.done)
	defer m.remove(s.id)
	defer s.tab.Close()

	go func() {
		select {
		case <-s.tab.Done():
			s.cancel()
		case <-ctx.Done():
		}
	}()

	s.watcher.ExtractNow(ctx, s.watcher.LastURL())
	if err := s.watcher.Run(ctx, s.tab); err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("watch session ended", "session", s.id, "error", err)
	}
	slog.Info("watch session closed", "session", s.id)
}

func (m *Sessions) full() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.max > 0 && len(m.sessions) >= m.max
}

func (m *Sessions) remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Close stops a session and waits for its watcher to exit.
func (m *Sessions) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.cancel()
	<-s.done
	return nil
}

func (m *Sessions) CloseAll() {
	m.mu.Lock()
	all := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.Unlock()

	for _, s := range all {
		s.cancel()
		<-s.done
	}
}

func (m *Sessions) List() []SessionInfo {
	m.mu.Lock()
	out := make([]SessionInfo, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.info())
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.Before(out[j].OpenedAt) })
	return out
}

func (s *session) info() SessionInfo {
	return SessionInfo{ID: s.id, URL: s.watcher.LastURL(), OpenedAt: s.openedAt}
}
