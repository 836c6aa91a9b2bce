package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/baxromumarov/job-extractor/internal/events"
	"github.com/baxromumarov/job-extractor/internal/extractor"
	"github.com/baxromumarov/job-extractor/internal/httpx"
	"github.com/baxromumarov/job-extractor/internal/store"
)

// PostingStore keeps postings the user chose to save.
type PostingStore interface {
	SavePosting(ctx context.Context, url, site string, posting extractor.ParsedJobPosting) (store.SavedPosting, error)
	GetPosting(ctx context.Context, id int64) (store.SavedPosting, error)
	ListPostings(ctx context.Context, limit, offset int) ([]store.SavedPosting, error)
	DeletePosting(ctx context.Context, id int64) error
}

type Server struct {
	router      *chi.Mux
	extractor   *extractor.Extractor
	fetcher     httpx.Getter
	broker      *events.Broker
	store       PostingStore
	sessions    *Sessions
	corsOrigins []string
}

type Option func(*Server)

// WithStore enables the /postings endpoints.
func WithStore(st PostingStore) Option {
	return func(s *Server) { s.store = st }
}

// WithSessions enables the /watch endpoints.
func WithSessions(sessions *Sessions) Option {
	return func(s *Server) { s.sessions = sessions }
}

func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.corsOrigins = origins
		}
	}
}

func NewServer(x *extractor.Extractor, fetcher httpx.Getter, broker *events.Broker, opts ...Option) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		extractor:   x,
		fetcher:     fetcher,
		broker:      broker,
		corsOrigins: []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/stats", s.handleStats)
	s.router.Post("/parse", s.handleParse)
	s.router.Get("/events", s.handleEvents)

	s.router.Route("/watch", func(r chi.Router) {
		r.Use(s.requireSessions)
		r.Get("/", s.handleListSessions)
		r.Post("/", s.handleOpenSession)
		r.Delete("/{id}", s.handleCloseSession)
	})

	s.router.Route("/postings", func(r chi.Router) {
		r.Use(s.requireStore)
		r.Get("/", s.handleListPostings)
		r.Post("/", s.handleSavePosting)
		r.Get("/{id}", s.handleGetPosting)
		r.Delete("/{id}", s.handleDeletePosting)
	})
}

func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) requireStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.store == nil {
			respondError(w, http.StatusServiceUnavailable, "Storage is not configured")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireSessions(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.sessions == nil {
			respondError(w, http.StatusServiceUnavailable, "Browser is disabled")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
