package api

import (
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/avoid/internal/avoidance"
	"github.com/ayusman/avoid/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

func seedSession(t *testing.T, s *store.Store) *store.Session {
	t.Helper()

	sess := &store.Session{Source: "0", StartedAt: time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)}
	require.NoError(t, s.Sessions().Create(sess))

	threat := image.Pt(330, 90)
	require.NoError(t, s.Commands().Record(&store.CommandEntry{SessionID: sess.ID, Seq: 1, Command: avoidance.Clear}))
	require.NoError(t, s.Commands().Record(&store.CommandEntry{
		SessionID: sess.ID, Seq: 8, Command: avoidance.PitchDown, Threat: &threat, Dangerous: 1, Objects: 2,
	}))
	return sess
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestSessionHandler_List(t *testing.T) {
	s := newTestStore(t)
	sess := seedSession(t, s)
	h := NewSessionHandler(s, zerolog.Nop())

	rec := serve(h, http.MethodGet, "/api/sessions")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp listSessionsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Sessions, 1)
	assert.Equal(t, sess.ID, resp.Sessions[0].ID)
	assert.Equal(t, "2026-04-02T10:00:00Z", resp.Sessions[0].StartedAt)
	assert.Empty(t, resp.Sessions[0].EndedAt)
}

func TestSessionHandler_ListEmpty(t *testing.T) {
	h := NewSessionHandler(newTestStore(t), zerolog.Nop())

	rec := serve(h, http.MethodGet, "/api/sessions")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"sessions":[]}`, rec.Body.String())
}

func TestSessionHandler_Get(t *testing.T) {
	s := newTestStore(t)
	sess := seedSession(t, s)
	h := NewSessionHandler(s, zerolog.Nop())

	rec := serve(h, http.MethodGet, "/api/sessions/"+sess.ID)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp sessionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, sess.ID, resp.ID)
	assert.Equal(t, "0", resp.Source)

	rec = serve(h, http.MethodGet, "/api/sessions/does-not-exist")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionHandler_Commands(t *testing.T) {
	s := newTestStore(t)
	sess := seedSession(t, s)
	h := NewSessionHandler(s, zerolog.Nop())

	rec := serve(h, http.MethodGet, "/api/sessions/"+sess.ID+"/commands")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp listCommandsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, sess.ID, resp.SessionID)
	require.Len(t, resp.Commands, 2)

	assert.Equal(t, "clear", resp.Commands[0].Command)
	assert.Nil(t, resp.Commands[0].Threat)

	last := resp.Commands[1]
	assert.Equal(t, uint64(8), last.Seq)
	assert.Equal(t, "pitch_down", last.Command)
	assert.Equal(t, "Pitch Down", last.Label)
	require.NotNil(t, last.Threat)
	assert.Equal(t, image.Pt(330, 90), *last.Threat)

	rec = serve(h, http.MethodGet, "/api/sessions/missing/commands")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(h, http.MethodGet, "/api/sessions/"+sess.ID+"/frames")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionHandler_Delete(t *testing.T) {
	s := newTestStore(t)
	sess := seedSession(t, s)
	h := NewSessionHandler(s, zerolog.Nop())

	rec := serve(h, http.MethodDelete, "/api/sessions/"+sess.ID)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(h, http.MethodDelete, "/api/sessions/"+sess.ID)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionHandler_MethodNotAllowed(t *testing.T) {
	s := newTestStore(t)
	sess := seedSession(t, s)
	h := NewSessionHandler(s, zerolog.Nop())

	assert.Equal(t, http.StatusMethodNotAllowed, serve(h, http.MethodPost, "/api/sessions").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, serve(h, http.MethodPut, "/api/sessions/"+sess.ID).Code)
}
