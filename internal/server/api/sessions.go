package api

import (
	"errors"
	"image"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ayusman/avoid/internal/store"
)

// SessionHandler serves the flight log.
//
//	GET    /api/sessions
//	GET    /api/sessions/{id}
//	DELETE /api/sessions/{id}
//	GET    /api/sessions/{id}/commands
type SessionHandler struct {
	store *store.Store
	log   zerolog.Logger
}

// NewSessionHandler creates a SessionHandler backed by s.
func NewSessionHandler(s *store.Store, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{store: s, log: log}
}

// ServeHTTP routes collection, item and command log requests.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/sessions")
	path = strings.Trim(path, "/")

	if path == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
		return
	}

	id, sub, _ := strings.Cut(path, "/")
	switch {
	case sub == "commands" && r.Method == http.MethodGet:
		h.commands(w, r, id)
	case sub != "":
		writeError(w, http.StatusNotFound, "Not found")
	case r.Method == http.MethodGet:
		h.get(w, r, id)
	case r.Method == http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type sessionResponse struct {
	ID            string `json:"id"`
	Source        string `json:"source"`
	PitchInverted bool   `json:"pitch_inverted"`
	StartedAt     string `json:"started_at"`
	EndedAt       string `json:"ended_at,omitempty"`
}

type listSessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

type commandResponse struct {
	Seq        uint64       `json:"seq"`
	Command    string       `json:"command"`
	Label      string       `json:"label"`
	Threat     *image.Point `json:"threat,omitempty"`
	Dangerous  int          `json:"dangerous"`
	Objects    int          `json:"objects"`
	RecordedAt string       `json:"recorded_at"`
}

type listCommandsResponse struct {
	SessionID string            `json:"session_id"`
	Commands  []commandResponse `json:"commands"`
}

func toSessionResponse(s *store.Session) sessionResponse {
	resp := sessionResponse{
		ID:            s.ID,
		Source:        s.Source,
		PitchInverted: s.PitchInverted,
		StartedAt:     s.StartedAt.UTC().Format(timeLayout),
	}
	if s.EndedAt != nil {
		resp.EndedAt = s.EndedAt.UTC().Format(timeLayout)
	}
	return resp
}

func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.store.Sessions().List()
	if err != nil {
		h.log.Error().Err(err).Msg("list sessions")
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	resp := listSessionsResponse{Sessions: make([]sessionResponse, 0, len(sessions))}
	for _, s := range sessions {
		resp.Sessions = append(resp.Sessions, toSessionResponse(s))
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *SessionHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	sess, err := h.store.Sessions().GetByID(id)
	if err != nil {
		h.notFoundOr500(w, err, "get session")
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

func (h *SessionHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Sessions().Delete(id); err != nil {
		h.notFoundOr500(w, err, "delete session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) commands(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := h.store.Sessions().GetByID(id); err != nil {
		h.notFoundOr500(w, err, "get session")
		return
	}

	entries, err := h.store.Commands().ListBySession(id)
	if err != nil {
		h.log.Error().Err(err).Str("session", id).Msg("list commands")
		writeError(w, http.StatusInternalServerError, "Failed to list commands")
		return
	}

	resp := listCommandsResponse{
		SessionID: id,
		Commands:  make([]commandResponse, 0, len(entries)),
	}
	for _, e := range entries {
		resp.Commands = append(resp.Commands, commandResponse{
			Seq:        e.Seq,
			Command:    e.Command.Key(),
			Label:      e.Command.String(),
			Threat:     e.Threat,
			Dangerous:  e.Dangerous,
			Objects:    e.Objects,
			RecordedAt: e.RecordedAt.UTC().Format(timeLayout),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *SessionHandler) notFoundOr500(w http.ResponseWriter, err error, op string) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	h.log.Error().Err(err).Msg(op)
	writeError(w, http.StatusInternalServerError, "Failed to "+op)
}
