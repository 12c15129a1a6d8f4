package logging

import (
	"sync"
	"time"
)

// LogEntry is one log line kept for the log stream.
type LogEntry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Level      string         `json:"level"`
	Module     string         `json:"module"`
	CameraID   string         `json:"camera_id,omitempty"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Filter selects log entries. Zero fields match everything.
type Filter struct {
	CameraID string
	Module   string
	// Level is the minimum level ("debug", "info", "warn", "error").
	Level string
}

// Allows reports whether an entry with the given fields passes the filter.
func (f Filter) Allows(level, module, cameraID string) bool {
	if f.CameraID != "" && f.CameraID != cameraID {
		return false
	}
	if f.Module != "" && f.Module != module {
		return false
	}
	if floor, ok := parseLevel(f.Level); ok {
		if got, known := parseLevel(level); known && got < floor {
			return false
		}
	}
	return true
}

// Match reports whether entry passes the filter.
func (f Filter) Match(entry LogEntry) bool {
	return f.Allows(entry.Level, entry.Module, entry.CameraID)
}

// RingBuffer keeps the most recent log entries. Safe for concurrent use.
type RingBuffer struct {
	mu      sync.RWMutex
	entries []LogEntry
	next    int
	full    bool
}

// NewRingBuffer creates a buffer holding up to size entries.
func NewRingBuffer(size int) *RingBuffer {
	if size < 1 {
		size = 1
	}
	return &RingBuffer{entries: make([]LogEntry, size)}
}

// Write stores entry, evicting the oldest one when full.
func (rb *RingBuffer) Write(entry LogEntry) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.entries[rb.next] = entry
	rb.next++
	if rb.next == len(rb.entries) {
		rb.next = 0
		rb.full = true
	}
}

// ReadAll returns every entry, oldest first.
func (rb *RingBuffer) ReadAll() []LogEntry {
	return rb.Tail(0, Filter{})
}

// Tail returns up to n of the newest entries matching filter, oldest first.
// n <= 0 means no limit.
func (rb *RingBuffer) Tail(n int, filter Filter) []LogEntry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	count := rb.next
	if rb.full {
		count = len(rb.entries)
	}
	if n <= 0 || n > count {
		n = count
	}

	// walk newest to oldest, then reverse
	out := make([]LogEntry, 0, n)
	for i := 0; i < count && len(out) < n; i++ {
		idx := (rb.next - 1 - i + len(rb.entries)) % len(rb.entries)
		if filter.Match(rb.entries[idx]) {
			out = append(out, rb.entries[idx])
		}
	}
	for l, r := 0, len(out)-1; l < r; l, r = l+1, r-1 {
		out[l], out[r] = out[r], out[l]
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Count returns the number of stored entries.
func (rb *RingBuffer) Count() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	if rb.full {
		return len(rb.entries)
	}
	return rb.next
}
