package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/baxromumarov/job-extractor/internal/extractor"
	"github.com/baxromumarov/job-extractor/internal/observability"
	"github.com/baxromumarov/job-extractor/internal/page"
	"github.com/baxromumarov/job-extractor/internal/store"
	"github.com/baxromumarov/job-extractor/internal/urlutil"
)

const sseHeartbeat = 15 * time.Second

type ParseRequest struct {
	URL  string  `json:"url"`
	HTML *string `json:"html,omitempty"`
}

type WatchRequest struct {
	URL string `json:"url"`
}

type SavePostingRequest struct {
	URL string `json:"url"`
	extractor.ParsedJobPosting
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, observability.Snapshot())
}

// handleParse extracts a posting from inline HTML or, without it, from the
// URL fetched now. An empty posting is still a 200.
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	var req ParseRequest
	if err := decodeValid(r, parseSchema, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	target, err := urlutil.ValidatePageURL(req.URL)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid URL: "+req.URL)
		return
	}

	var p extractor.Page
	if req.HTML != nil {
		p = page.NewStatic(target, []byte(*req.HTML))
	} else {
		remote, err := page.NewRemote(s.fetcher, target)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		p = remote
	}

	posting, err := s.extractor.Extract(r.Context(), p)
	if errors.Is(err, extractor.ErrPageUnavailable) {
		slog.Warn("parse failed", "url", target, "error", err)
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, posting)
}

// handleEvents streams every published posting as a server-sent event until
// the client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	ch, cancel := s.broker.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ev, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				slog.Error("encode event", "error", err)
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: posting\ndata: %s\n\n", ev.ID, data)
			flusher.Flush()
		}
	}
}

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	var req WatchRequest
	if err := decodeValid(r, watchSchema, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	target, err := urlutil.ValidatePageURL(req.URL)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid URL: "+req.URL)
		return
	}

	info, err := s.sessions.Open(r.Context(), target)
	switch {
	case errors.Is(err, ErrSessionLimit):
		respondError(w, http.StatusTooManyRequests, err.Error())
		return
	case err != nil:
		observability.IncError(observability.ErrorBrowser, "api")
		respondError(w, http.StatusBadGateway, "Failed to open page: "+err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, info)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"items": s.sessions.List(),
	})
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Close(chi.URLParam(r, "id")); err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListPostings(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r, 20)

	postings, err := s.store.ListPostings(r.Context(), limit, offset)
	if err != nil {
		observability.IncError(observability.ErrorStore, "api")
		respondError(w, http.StatusInternalServerError, "Failed to fetch postings: "+err.Error())
		return
	}
	if postings == nil {
		postings = []store.SavedPosting{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"items":  postings,
		"limit":  limit,
		"offset": offset,
	})
}

func (s *Server) handleSavePosting(w http.ResponseWriter, r *http.Request) {
	var req SavePostingRequest
	if err := decodeValid(r, saveSchema, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	normalized, host, err := urlutil.Normalize(req.URL)
	if err != nil || host == "" {
		respondError(w, http.StatusBadRequest, "Invalid URL: "+req.URL)
		return
	}

	site := extractor.AdapterFor(host).String()
	saved, err := s.store.SavePosting(r.Context(), normalized, site, req.ParsedJobPosting)
	if err != nil {
		observability.IncError(observability.ErrorStore, "api")
		respondError(w, http.StatusInternalServerError, "Failed to save posting: "+err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleGetPosting(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid posting ID")
		return
	}

	saved, err := s.store.GetPosting(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		observability.IncError(observability.ErrorStore, "api")
		respondError(w, http.StatusInternalServerError, "Failed to fetch posting: "+err.Error())
		return
	}
	respondJSON(w, http.StatusOK, saved)
}

func (s *Server) handleDeletePosting(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid posting ID")
		return
	}

	err = s.store.DeletePosting(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		observability.IncError(observability.ErrorStore, "api")
		respondError(w, http.StatusInternalServerError, "Failed to delete posting: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parsePagination(r *http.Request, defaultLimit int) (int, int) {
	q := r.URL.Query()
	limit := defaultLimit
	offset := 0

	if v := q.Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}

	if v := q.Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}

	if limit <= 0 {
		limit = defaultLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
