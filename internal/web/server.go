package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	kmw "github.com/ssuji15/kennel/internal/web/middleware"

	"github.com/ssuji15/kennel/internal/launcher"
	"github.com/ssuji15/kennel/internal/reaper"
	"github.com/ssuji15/kennel/model"
)

// Server is the admin API consumed by the UI and CLI layers.
type Server struct {
	router  chi.Router
	svc     *launcher.Service
	reaper  *reaper.Reaper
	limiter *kmw.Limiter
}

func NewServer(svc *launcher.Service, rp *reaper.Reaper) *Server {
	s := &Server{
		router: chi.NewRouter(),
		svc:    svc,
		reaper: rp,
		// launches are serialized by the service lock anyway; the limiter
		// keeps a burst of requests from piling up on it
		limiter: kmw.NewLimiter(16, 1),
	}

	s.routes()
	return s
}

// Router exposes the handler for main.go.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.With(s.limiter.Limit).Post("/sessions", s.handleLaunch)
	r.Get("/sessions", s.handleListSessions)
	r.Delete("/sessions/{id}", s.handleKill)
	r.Post("/reaper/run", s.handleReap)
}

func (s *Server) handleLaunch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	var req model.LaunchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	result := s.svc.Launch(ctx, req)

	status := http.StatusCreated
	if !result.OK {
		status = kindStatus(result.Kind)
	}
	writeJSON(w, status, result)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	filterUntracked := r.URL.Query().Get("all") == ""

	sessions, err := s.svc.ListSessions(ctx, filterUntracked)
	if err != nil {
		http.Error(w, "failed to list sessions: "+err.Error(), http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleKill(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	id := chi.URLParam(r, "id")

	// body is optional; only credential-protected sessions need it
	var req model.KillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	result := s.svc.Kill(ctx, id, req.Credential)

	status := http.StatusOK
	if !result.OK {
		status = kindStatus(result.Kind)
	}
	writeJSON(w, status, result)
}

func (s *Server) handleReap(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	reaped, err := s.reaper.RunOnce(ctx)
	if err != nil {
		http.Error(w, "reap cycle failed: "+err.Error(), http.StatusBadGateway)
		return
	}

	if reaped == nil {
		reaped = []model.ReapedSession{}
	}
	writeJSON(w, http.StatusOK, map[string][]model.ReapedSession{"reaped": reaped})
}

func kindStatus(kind model.ErrorKind) int {
	switch kind {
	case model.KindUnknownImageType, model.KindUnknownUser, model.KindNoHomeDirectory, model.KindMissingCredential:
		return http.StatusBadRequest
	case model.KindCredentialMismatch:
		return http.StatusForbidden
	case model.KindAlreadyRunning, model.KindInsufficientCapacity, model.KindNoPortAvailable:
		return http.StatusConflict
	case model.KindRuntimeCreateFailed, model.KindRuntimeKillFailed, model.KindUpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
