// Package httpapi exposes the interview service over HTTP: session CRUD
// plus a websocket audio bridge per session.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ai-interview-session-service/internal/observability/logging"
	"ai-interview-session-service/internal/session"
	"ai-interview-session-service/internal/store"
)

// API wires the session manager and assessment store to HTTP handlers.
type API struct {
	manager *session.Manager
	store   *store.Store
}

func New(manager *session.Manager, st *store.Store) *API {
	return &API{manager: manager, store: st}
}

// NewRouter constructs the HTTP router for the service.
func (a *API) NewRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	r.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/", a.createSession)
		r.Get("/{id}", a.getSession)
		r.Delete("/{id}", a.stopSession)
		r.Get("/{id}/result", a.getResult)
		r.Get("/{id}/audio", a.attachAudio)
	})

	return r
}

type createSessionRequest struct {
	Role           string `json:"role"`
	Organization   string `json:"organization"`
	JobDescription string `json:"jobDescription"`
}

type createSessionResponse struct {
	SessionID       string `json:"sessionId"`
	Role            string `json:"role"`
	Organization    string `json:"organization"`
	Model           string `json:"model"`
	Voice           string `json:"voice"`
	TimeLimitMs     int64  `json:"timeLimitMs"`
	TargetQuestions int    `json:"targetQuestions"`
}

func (a *API) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Role) == "" || strings.TrimSpace(req.Organization) == "" {
		writeError(w, http.StatusBadRequest, "role and organization are required")
		return
	}

	cfg, err := a.manager.Create(r.Context(), req.Role, req.Organization, req.JobDescription)
	if err != nil {
		log := logging.Logger()
		log.Error().Err(err).Msg("creating session")
		writeError(w, http.StatusBadGateway, "could not provision session, try again")
		return
	}

	writeJSON(w, http.StatusCreated, createSessionResponse{
		SessionID:       cfg.SessionID,
		Role:            cfg.Role,
		Organization:    cfg.Organization,
		Model:           cfg.Model,
		Voice:           cfg.Voice,
		TimeLimitMs:     cfg.TimeLimit.Milliseconds(),
		TargetQuestions: cfg.TargetQuestions,
	})
}

func (a *API) getSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if sess, ok := a.manager.Get(id); ok {
		writeJSON(w, http.StatusOK, sess.Snapshot())
		return
	}
	if cfg, ok := a.manager.Config(id); ok {
		writeJSON(w, http.StatusOK, session.Snapshot{
			SessionID: cfg.SessionID,
			State:     session.StateIdle.String(),
		})
		return
	}
	writeError(w, http.StatusNotFound, "session not found")
}

func (a *API) stopSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.manager.Stop(id); err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) getResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if sess, ok := a.manager.Get(id); ok {
		if result := sess.Result(); result != nil {
			writeJSON(w, http.StatusOK, result)
			return
		}
		if sess.State() != session.StateEnded {
			writeError(w, http.StatusConflict, "session still in progress")
			return
		}
	}

	record, err := a.store.GetBySessionID(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no result for session")
		return
	}
	if err != nil {
		log := logging.Logger()
		log.Error().Err(err).Str("sessionId", id).Msg("loading result")
		writeError(w, http.StatusInternalServerError, "could not load result")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
