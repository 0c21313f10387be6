package hook

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ayusman/avoid/internal/avoidance"
	"github.com/ayusman/avoid/internal/telemetry"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("hook closed")

// Hook is a telemetry.Sink that runs an Executor on command transitions.
// The command before the first snapshot is taken to be Clear, so a run that
// starts clear does not fire the hook until something changes.
// Runs happen on a background goroutine; if transitions arrive faster than
// the program finishes, only the newest pending one is run.
type Hook struct {
	exec *Executor
	log  zerolog.Logger

	mu      sync.Mutex
	last    avoidance.Command
	pending *Request
	closed  bool
	runs    int
	failed  int

	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New starts a Hook around exec.
func New(exec *Executor, log zerolog.Logger) *Hook {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hook{
		exec:   exec,
		log:    log.With().Str("component", "hook").Str("path", exec.Path()).Logger(),
		last:   avoidance.Clear,
		wake:   make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go h.run()
	return h
}

// Send implements telemetry.Sink. It never blocks on the program.
func (h *Hook) Send(s telemetry.Snapshot) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}
	if s.Command == h.last {
		return nil
	}

	h.pending = NewRequest(s, h.last)
	h.last = s.Command

	select {
	case h.wake <- struct{}{}:
	default:
	}
	return nil
}

func (h *Hook) run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-h.wake:
		}

		h.mu.Lock()
		req := h.pending
		h.pending = nil
		h.mu.Unlock()
		if req == nil {
			continue
		}

		resp, err := h.exec.Execute(h.ctx, req)
		if err == nil && !resp.Success {
			err = errors.New(resp.Error)
		}

		h.mu.Lock()
		h.runs++
		if err != nil {
			h.failed++
		}
		h.mu.Unlock()

		if err != nil {
			h.log.Warn().Err(err).Uint64("seq", req.Seq).Str("command", req.Label).Msg("hook failed")
		} else {
			h.log.Debug().Uint64("seq", req.Seq).Str("command", req.Label).Msg("hook ran")
		}
	}
}

// Stats returns how many runs completed and how many of them failed.
func (h *Hook) Stats() (runs, failed int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.runs, h.failed
}

// Close stops the worker, cancelling a run in progress.
func (h *Hook) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	h.cancel()
	<-h.done
	return nil
}
