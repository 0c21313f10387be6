package telemetry

import (
	"sync"
)

// FrameSlot holds the most recent encoded frame. Older frames are dropped
// when a newer one arrives before they are read.
type FrameSlot struct {
	mu    sync.RWMutex
	frame []byte
	seq   uint64
	ready chan struct{}
}

// NewFrameSlot returns an empty slot.
func NewFrameSlot() *FrameSlot {
	return &FrameSlot{ready: make(chan struct{})}
}

// Put stores a frame and wakes any waiting readers. The slot takes ownership
// of data.
func (f *FrameSlot) Put(data []byte) {
	f.mu.Lock()
	f.frame = data
	f.seq++
	close(f.ready)
	f.ready = make(chan struct{})
	f.mu.Unlock()
}

// Get returns the latest frame and its sequence number. The returned slice
// must not be modified.
func (f *FrameSlot) Get() ([]byte, uint64) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.frame, f.seq
}

// Wait returns a channel closed by the next Put.
func (f *FrameSlot) Wait() <-chan struct{} {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.ready
}
