package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ayusman/avoid/internal/telemetry"
)

// streamIdle bounds how long a client waits for a frame before the loop
// rechecks its connection.
const streamIdle = time.Second

// StreamHandler serves the annotated frames as MJPEG.
type StreamHandler struct {
	frames *telemetry.FrameSlot
}

// NewStreamHandler creates a StreamHandler reading from frames.
func NewStreamHandler(frames *telemetry.FrameSlot) *StreamHandler {
	return &StreamHandler{frames: frames}
}

// ServeHTTP writes each new frame as a multipart part until the client goes
// away. Frames published faster than the client reads are skipped.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	timer := time.NewTimer(streamIdle)
	defer timer.Stop()

	var sent uint64
	for {
		wait := h.frames.Wait()
		data, seq := h.frames.Get()

		if seq != sent && len(data) > 0 {
			if err := writePart(w, data); err != nil {
				return
			}
			sent = seq
			continue
		}

		timer.Reset(streamIdle)
		select {
		case <-r.Context().Done():
			return
		case <-wait:
		case <-timer.C:
		}
	}
}

func writePart(w http.ResponseWriter, jpeg []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(jpeg)); err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		return err
	}
	if _, err := fmt.Fprint(w, "\r\n"); err != nil {
		return err
	}

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}
