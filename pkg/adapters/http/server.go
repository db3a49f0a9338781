// Package http exposes a session host over a small JSON API: document and
// effect reads, command ingestion through the same policy path the bus uses,
// archive management, and Prometheus metrics.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/evhart/bivouac"
	"github.com/evhart/bivouac/internal/archive"
	"github.com/evhart/bivouac/internal/broadcast"
	"github.com/evhart/bivouac/pkg/domain"
)

// Session is the host surface the API serves. *bivouac.Host satisfies it.
type Session interface {
	Submit(ctx context.Context, cmd domain.Command) (bool, error)
	Document(ctx context.Context, name domain.DocName) (map[string]any, error)
	Effects(ctx context.Context, entity domain.EntityRef) ([]domain.Effect, error)
	OpenApp(ctx context.Context, app string) (string, <-chan broadcast.Result, error)
	Archive() *archive.Store
}

// Server routes the API onto a Session.
type Server struct {
	session  Session
	logger   *slog.Logger
	gatherer prometheus.Gatherer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithMetrics mounts /metrics for the given gatherer.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// NewHandler builds the HTTP handler for a session host.
func NewHandler(session Session, opts ...Option) http.Handler {
	s := &Server{
		session: session,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Get("/healthz", s.getHealth)
	r.Get("/info", s.getInfo)
	r.Get("/documents/{name}", s.getDocument)
	r.Get("/effects/{entity}", s.getEffects)
	r.Post("/commands", s.postCommand)
	r.Get("/archive", s.listArchive)
	r.Post("/archive/{id}/restore", s.restoreArchive)
	r.Delete("/archive/{id}", s.deleteArchive)
	r.Post("/open", s.postOpen)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics",
			promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("response encode failed", "err", err)
	}
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"name":    "bivouac",
		"version": bivouac.Version,
	})
}

func (s *Server) getDocument(w http.ResponseWriter, r *http.Request) {
	name := domain.DocName(chi.URLParam(r, "name"))
	known := false
	for _, d := range domain.DocNames {
		if d == name {
			known = true
			break
		}
	}
	if !known {
		http.Error(w, "unknown document", http.StatusNotFound)
		return
	}

	blob, err := s.session.Document(r.Context(), name)
	if err != nil {
		s.logger.Error("document read failed", "doc", name, "err", err)
		http.Error(w, "document read failed", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, blob)
}

func (s *Server) getEffects(w http.ResponseWriter, r *http.Request) {
	entity := domain.EntityRef(chi.URLParam(r, "entity"))
	effects, err := s.session.Effects(r.Context(), entity)
	if err != nil {
		s.logger.Error("effect read failed", "entity", entity, "err", err)
		http.Error(w, "effect read failed", http.StatusInternalServerError)
		return
	}
	if effects == nil {
		effects = []domain.Effect{}
	}
	s.writeJSON(w, http.StatusOK, effects)
}

func (s *Server) postCommand(w http.ResponseWriter, r *http.Request) {
	var cmd domain.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	applied, err := s.session.Submit(r.Context(), cmd)
	if err != nil {
		s.logger.Error("command failed", "op", cmd.Kind, "err", err)
		http.Error(w, "command failed", http.StatusInternalServerError)
		return
	}
	// A policy rejection is not an HTTP error; applied=false tells the
	// caller nothing changed.
	s.writeJSON(w, http.StatusAccepted, map[string]bool{"applied": applied})
}

func (s *Server) listArchive(w http.ResponseWriter, r *http.Request) {
	entries := s.session.Archive().List()
	if entries == nil {
		entries = []archive.Entry{}
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) restoreArchive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	effect, err := s.session.Archive().Restore(r.Context(), id)
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, effect)
	case errors.Is(err, domain.ErrArchiveEntryNotFound):
		http.Error(w, "archive entry not found", http.StatusNotFound)
	default:
		s.logger.Error("restore failed", "id", id, "err", err)
		http.Error(w, "restore failed", http.StatusInternalServerError)
	}
}

func (s *Server) deleteArchive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	switch err := s.session.Archive().Delete(id); err {
	case nil:
		w.WriteHeader(http.StatusNoContent)
	case domain.ErrArchiveEntryNotFound:
		http.Error(w, "archive entry not found", http.StatusNotFound)
	default:
		http.Error(w, "delete failed", http.StatusInternalServerError)
	}
}

func (s *Server) postOpen(w http.ResponseWriter, r *http.Request) {
	var body struct {
		App string `json:"app"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.App == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	requestID, _, err := s.session.OpenApp(r.Context(), body.App)
	if err != nil {
		s.logger.Error("open broadcast failed", "app", body.App, "err", err)
		http.Error(w, "open broadcast failed", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"requestId": requestID})
}
