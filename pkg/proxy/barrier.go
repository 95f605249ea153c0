package proxy

import "sync"

// HighWaterMarks tracks, per entry name, the largest version this
// process has itself produced by a write. One instance is shared by
// every Proxy a Share container hands out (spec 4.4.5).
type HighWaterMarks struct {
	mu    sync.Mutex
	marks map[string]uint64
}

// NewHighWaterMarks returns an empty tracker.
func NewHighWaterMarks() *HighWaterMarks {
	return &HighWaterMarks{marks: make(map[string]uint64)}
}

// Observe records that this process has seen version for name,
// raising the mark only if it advances it.
func (h *HighWaterMarks) Observe(name string, version uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if version > h.marks[name] {
		h.marks[name] = version
	}
}

// Get returns the current high-water mark for name, 0 if none.
func (h *HighWaterMarks) Get(name string) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.marks[name]
}
