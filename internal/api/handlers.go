// Package api exposes the streaming session and its published frames over
// HTTP for rendering clients.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	apperrors "github.com/zsiec/cloudstream/internal/errors"
	"github.com/zsiec/cloudstream/internal/logger"
	"github.com/zsiec/cloudstream/internal/ply"
	"github.com/zsiec/cloudstream/internal/registry"
	"github.com/zsiec/cloudstream/internal/stream"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 1000
)

// SessionSource returns the current streaming session.
type SessionSource interface {
	Session() stream.Session
}

// Handlers serves the frame API.
type Handlers struct {
	sessions  SessionSource
	publisher *stream.Publisher
	registry  registry.Registry
	hub       http.Handler
	errors    *apperrors.ErrorHandler
	logger    logger.Logger
}

func NewHandlers(sessions SessionSource, publisher *stream.Publisher, reg registry.Registry, hub http.Handler, log logger.Logger) *Handlers {
	if log == nil {
		log = logger.NewNullLogger()
	}
	log = log.WithField("component", "api")
	return &Handlers{
		sessions:  sessions,
		publisher: publisher,
		registry:  reg,
		hub:       hub,
		errors:    apperrors.NewErrorHandler(log),
		logger:    log,
	}
}

// Register mounts the API on r.
func (h *Handlers) Register(r *mux.Router) {
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/session", h.handleSession).Methods(http.MethodGet)
	api.HandleFunc("/frames/latest", h.handleLatest).Methods(http.MethodGet)
	api.HandleFunc("/frames/latest.bin", h.handleLatestPacked).Methods(http.MethodGet)
	api.HandleFunc("/frames/history", h.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/sessions", h.handleSessions).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", h.handleGetSession).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/frames/latest", h.handleSessionLatest).Methods(http.MethodGet)

	if h.hub != nil {
		r.Handle("/ws/frames", h.hub).Methods(http.MethodGet)
	}
}

// FrameResponse is the JSON form of a published frame.
type FrameResponse struct {
	Name        string         `json:"name"`
	Index       uint64         `json:"frame_index"`
	Slot        int            `json:"slot"`
	Points      int            `json:"points"`
	Min         ply.Position   `json:"min"`
	Max         ply.Position   `json:"max"`
	PublishedAt time.Time      `json:"published_at"`
	Positions   []ply.Position `json:"positions"`
	Colors      []ply.Color    `json:"colors"`
}

// HistoryResponse lists recently published frames, newest first.
type HistoryResponse struct {
	SessionID string           `json:"session_id"`
	Frames    []registry.Entry `json:"frames"`
}

// SessionsResponse lists every session the registry still holds.
type SessionsResponse struct {
	Sessions []stream.Session `json:"sessions"`
	Count    int              `json:"count"`
}

func (h *Handlers) handleSession(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, h.sessions.Session())
}

// latest returns the published snapshot or the error explaining its absence.
func (h *Handlers) latest() (*stream.Snapshot, error) {
	if snap := h.publisher.Latest(); snap != nil {
		return snap, nil
	}
	if s := h.sessions.Session(); s.Halted {
		return nil, apperrors.NewSessionHaltedError(nil).WithDetail("last_error", s.LastError)
	}
	return nil, apperrors.NewNoSnapshotError()
}

func (h *Handlers) handleLatest(w http.ResponseWriter, r *http.Request) {
	snap, err := h.latest()
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	lo, hi := snap.Cloud.Bounds()
	h.writeJSON(w, r, http.StatusOK, FrameResponse{
		Name:        snap.Name,
		Index:       snap.Index,
		Slot:        snap.Slot,
		Points:      snap.Len(),
		Min:         lo,
		Max:         hi,
		PublishedAt: snap.PublishedAt,
		Positions:   snap.Cloud.Positions,
		Colors:      snap.Cloud.Colors,
	})
}

func (h *Handlers) handleLatestPacked(w http.ResponseWriter, r *http.Request) {
	snap, err := h.latest()
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	buf := snap.Cloud.Pack()
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(buf)))
	w.Header().Set("X-Point-Count", strconv.Itoa(snap.Len()))
	w.Header().Set("X-Point-Stride", strconv.Itoa(ply.PackedStride))
	w.Header().Set("X-Frame-Name", snap.Name)
	w.Header().Set("X-Frame-Index", strconv.FormatUint(snap.Index, 10))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf); err != nil {
		logger.FromContext(r.Context()).WithError(err).Debug("Client went away during frame download")
	}
}

func (h *Handlers) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			h.errors.HandleError(w, r, apperrors.NewValidationError("limit must be an integer between 1 and 1000").
				WithDetail("limit", raw))
			return
		}
		limit = n
	}

	sessionID := h.sessions.Session().ID
	frames, err := h.registry.History(r.Context(), sessionID, limit)
	if err != nil {
		h.errors.HandleError(w, r, apperrors.WrapInternalError(err, "failed to read frame history"))
		return
	}
	h.writeJSON(w, r, http.StatusOK, HistoryResponse{SessionID: sessionID, Frames: frames})
}

func (h *Handlers) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.registry.Sessions(r.Context())
	if err != nil {
		h.errors.HandleError(w, r, apperrors.WrapInternalError(err, "failed to list sessions"))
		return
	}
	h.writeJSON(w, r, http.StatusOK, SessionsResponse{Sessions: sessions, Count: len(sessions)})
}

func (h *Handlers) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s, err := h.registry.GetSession(r.Context(), id)
	if err != nil {
		h.errors.HandleError(w, r, registryError(err, "session", id))
		return
	}
	h.writeJSON(w, r, http.StatusOK, s)
}

// handleSessionLatest returns the newest registry entry of a session, which
// outlives the in-memory snapshot of a previous run.
func (h *Handlers) handleSessionLatest(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	e, err := h.registry.Latest(r.Context(), id)
	if err != nil {
		h.errors.HandleError(w, r, registryError(err, "frame", id))
		return
	}
	h.writeJSON(w, r, http.StatusOK, e)
}

func registryError(err error, resource, id string) error {
	if errors.Is(err, registry.ErrNotFound) {
		return apperrors.NewNotFoundError(resource).WithDetail("session_id", id)
	}
	return apperrors.WrapInternalError(err, "failed to read "+resource)
}

func (h *Handlers) writeJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.FromContext(r.Context()).WithError(err).Error("Failed to encode response")
	}
}
