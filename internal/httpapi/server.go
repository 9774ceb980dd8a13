// Package httpapi exposes the conversation engine over HTTP: one ask
// endpoint plus health and metrics. Sessions are kept in memory; a client
// that wants continuity across turns sends back the session_id it was
// given.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/ricardo-yos/rag-petmarket-reviews/internal/engine"
	"github.com/ricardo-yos/rag-petmarket-reviews/internal/index"
	"github.com/ricardo-yos/rag-petmarket-reviews/internal/observability"
)

// defaultSessionTTL is how long an idle session stays registered. An
// evicted session is not lost: asking again with the same id starts a
// fresh conversation restored from the turn store.
const defaultSessionTTL = 30 * time.Minute

type sessionEntry struct {
	conv     *engine.Conversation
	lastSeen time.Time
}

type Server struct {
	eng     *engine.Engine
	metrics *observability.Metrics
	logger  *slog.Logger

	sessionTTL time.Duration
	now        func() time.Time

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

func New(eng *engine.Engine, metrics *observability.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		eng:        eng,
		metrics:    metrics,
		logger:     logger,
		sessionTTL: defaultSessionTTL,
		now:        time.Now,
		sessions:   make(map[string]*sessionEntry),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})
	r.Post("/v1/ask", s.handleAsk)

	return r
}

type askRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
}

type askResponse struct {
	SessionID string `json:"session_id"`
	Answer    string `json:"answer"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	active := len(s.sessions)
	s.mu.Unlock()
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"active_sessions": active,
	})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		respondError(w, http.StatusBadRequest, "empty_question", "question must not be empty")
		return
	}

	conv := s.conversation(r, req.SessionID)

	start := time.Now()
	answer, err := conv.Ask(r.Context(), req.Question)
	if err != nil {
		s.logger.Error("ask failed",
			"session_id", conv.SessionID(),
			"elapsed", time.Since(start),
			"err", err)
		switch {
		case errors.Is(err, engine.ErrEmptyQuestion):
			respondError(w, http.StatusBadRequest, "empty_question", err.Error())
		case errors.Is(err, index.ErrRetrievalUnavailable):
			respondError(w, http.StatusServiceUnavailable, "retrieval_unavailable",
				"the review index is unreachable, try again shortly")
		case errors.Is(err, engine.ErrGenerationFailed):
			respondError(w, http.StatusBadGateway, "generation_failed",
				"the language model did not produce an answer, try again shortly")
		default:
			respondError(w, http.StatusInternalServerError, "internal", "internal error")
		}
		return
	}

	s.logger.Info("ask served",
		"session_id", conv.SessionID(),
		"elapsed", time.Since(start))
	respondJSON(w, http.StatusOK, askResponse{SessionID: conv.SessionID(), Answer: answer})
}

// conversation returns the existing conversation for id, or registers a new
// one. An unknown or blank id starts a fresh session with a generated id.
// Sessions idle past the TTL are evicted here, so the registry stays
// bounded by the set of recently active sessions.
func (s *Server) conversation(r *http.Request, id string) *engine.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.evictIdleLocked(now)

	id = strings.TrimSpace(id)
	if id != "" {
		if entry, ok := s.sessions[id]; ok {
			entry.lastSeen = now
			return entry.conv
		}
	} else {
		id = uuid.NewString()
	}

	conv := s.eng.NewConversation(r.Context(), id)
	s.sessions[id] = &sessionEntry{conv: conv, lastSeen: now}
	s.updateSessionGaugeLocked()
	return conv
}

func (s *Server) evictIdleLocked(now time.Time) {
	evicted := 0
	for id, entry := range s.sessions {
		if now.Sub(entry.lastSeen) > s.sessionTTL {
			delete(s.sessions, id)
			evicted++
		}
	}
	if evicted > 0 {
		s.logger.Info("evicted idle sessions", "count", evicted)
		s.updateSessionGaugeLocked()
	}
}

func (s *Server) updateSessionGaugeLocked() {
	if s.metrics != nil {
		s.metrics.ActiveSessions.Set(float64(len(s.sessions)))
	}
}

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
