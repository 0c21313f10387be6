package server

import (
	"bufio"
	"encoding/json"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/avoid/internal/avoidance"
	"github.com/ayusman/avoid/internal/store"
	"github.com/ayusman/avoid/internal/telemetry"
)

func TestTelemetry_WebSocket(t *testing.T) {
	pub := telemetry.NewPublisher()
	srv := New(Config{Publisher: pub, BroadcastInterval: 10 * time.Millisecond})
	defer srv.Close()

	ts := httptest.NewServer(srv)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/telemetry"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() telemetry.Snapshot {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)

		var raw struct {
			Seq     uint64 `json:"seq"`
			Command string `json:"command"`
		}
		require.NoError(t, json.Unmarshal(msg, &raw))
		cmd, err := avoidance.ParseCommand(raw.Command)
		require.NoError(t, err)
		return telemetry.Snapshot{Seq: raw.Seq, Command: cmd}
	}

	// A new client first receives the current snapshot.
	first := read()
	assert.Equal(t, uint64(0), first.Seq)
	assert.Equal(t, avoidance.Clear, first.Command)

	threat := image.Pt(100, 130)
	pub.Publish(telemetry.Snapshot{Command: avoidance.PitchUp, Threat: &threat})

	next := read()
	assert.Equal(t, uint64(1), next.Seq)
	assert.Equal(t, avoidance.PitchUp, next.Command)
}

func TestTelemetry_CloseDisconnects(t *testing.T) {
	pub := telemetry.NewPublisher()
	h := NewTelemetryHandler(pub, 5*time.Millisecond, testLogger())

	ts := httptest.NewServer(h)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return h.Clients() == 1 }, time.Second, 5*time.Millisecond)

	h.Close()
	h.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	assert.Eventually(t, func() bool { return h.Clients() == 0 }, time.Second, 5*time.Millisecond)
}

func TestStream_MJPEG(t *testing.T) {
	frames := telemetry.NewFrameSlot()
	srv := New(Config{Frames: frames})

	ts := httptest.NewServer(srv)
	defer ts.Close()

	frames.Put([]byte("\xff\xd8first\xff\xd9"))

	resp, err := ts.Client().Get(ts.URL + "/api/stream")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "multipart/x-mixed-replace; boundary=frame", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)
	readPart := func() []byte {
		t.Helper()
		boundary, err := r.ReadString('\n')
		require.NoError(t, err)
		require.Equal(t, "--frame\r\n", boundary)

		hdr, err := textproto.NewReader(r).ReadMIMEHeader()
		require.NoError(t, err)
		assert.Equal(t, "image/jpeg", hdr.Get("Content-Type"))

		n, err := strconv.Atoi(hdr.Get("Content-Length"))
		require.NoError(t, err)
		body := make([]byte, n)
		_, err = io.ReadFull(r, body)
		require.NoError(t, err)

		_, err = r.ReadString('\n')
		require.NoError(t, err)
		return body
	}

	assert.Equal(t, []byte("\xff\xd8first\xff\xd9"), readPart())

	frames.Put([]byte("\xff\xd8second\xff\xd9"))
	assert.Equal(t, []byte("\xff\xd8second\xff\xd9"), readPart())
}

func TestAPI_FlightLogWorkflow(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer s.Close()

	sess := &store.Session{Source: "0"}
	require.NoError(t, s.Sessions().Create(sess))

	rec := store.NewFlightRecorder(s, sess.ID)
	pub := telemetry.NewPublisher()
	for _, cmd := range []avoidance.Command{avoidance.Clear, avoidance.RollRight, avoidance.RollRight, avoidance.Clear} {
		require.NoError(t, rec.Send(pub.Publish(telemetry.Snapshot{Command: cmd})))
	}

	srv := New(Config{Store: s})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/api/sessions")
	require.NoError(t, err)
	var listed struct {
		Sessions []struct {
			ID string `json:"id"`
		} `json:"sessions"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listed))
	resp.Body.Close()
	require.Len(t, listed.Sessions, 1)
	assert.Equal(t, sess.ID, listed.Sessions[0].ID)

	resp, err = ts.Client().Get(ts.URL + "/api/sessions/" + sess.ID + "/commands")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var log struct {
		Commands []struct {
			Seq     uint64 `json:"seq"`
			Command string `json:"command"`
		} `json:"commands"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&log))

	var got []string
	for _, c := range log.Commands {
		got = append(got, c.Command)
	}
	assert.Equal(t, []string{"clear", "roll_right", "clear"}, got)
}
