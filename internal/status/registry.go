// Package status holds the latest observable state of every camera and fans
// changes out to observers.
package status

import (
	"log/slog"
	"sync"
	"time"
)

// Status tags surfaced to observers.
const (
	Idle         = "idle"
	Starting     = "starting"
	Streaming    = "streaming"
	Stopped      = "stopped"
	Ended        = "ended"
	Errored      = "errored"
	Reconnecting = "reconnecting"
)

// Record is a snapshot of one camera session.
type Record struct {
	CameraID  string     `json:"camera_id" example:"front" doc:"Camera identifier"`
	Name      string     `json:"name" example:"Front door" doc:"Camera display name"`
	Streaming bool       `json:"streaming" doc:"Whether the camera is currently producing segments"`
	Attempts  int        `json:"attempts" example:"0" doc:"Reconnect attempts since the last confirmed start"`
	Status    string     `json:"status" example:"streaming" enum:"idle,starting,streaming,stopped,ended,errored,reconnecting" doc:"Lifecycle status"`
	Message   string     `json:"message,omitempty" example:"Streaming" doc:"Human-readable detail"`
	UpdatedAt time.Time  `json:"updated_at" doc:"When this record was published"`
	StartedAt *time.Time `json:"started_at,omitempty" doc:"Start time of the current attempt"`
}

// Observer receives every published record.
type Observer func(Record)

type observerEntry struct {
	id uint64
	fn Observer
}

// Registry stores the latest record per camera. Reads are safe from any
// goroutine; observers run synchronously on the publishing goroutine.
type Registry struct {
	mu        sync.RWMutex
	records   map[string]Record
	order     []string
	observers []observerEntry
	nextID    uint64
	logger    *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		records: make(map[string]Record),
		logger:  logger,
	}
}

// Get returns the latest record for a camera.
func (r *Registry) Get(cameraID string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[cameraID]
	return rec, ok
}

// GetAll returns every record in first-publish order.
func (r *Registry) GetAll() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Record, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.records[id])
	}
	return out
}

// Publish stores rec and then calls each observer in registration order.
// A panicking observer is logged and does not stop the others.
func (r *Registry) Publish(rec Record) {
	r.mu.Lock()
	if _, exists := r.records[rec.CameraID]; !exists {
		r.order = append(r.order, rec.CameraID)
	}
	r.records[rec.CameraID] = rec
	observers := make([]observerEntry, len(r.observers))
	copy(observers, r.observers)
	r.mu.Unlock()

	for _, o := range observers {
		r.notify(o, rec)
	}
}

func (r *Registry) notify(o observerEntry, rec Record) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Status observer panicked", "camera_id", rec.CameraID, "observer", o.id, "panic", p)
		}
	}()
	o.fn(rec)
}

// Subscribe registers an observer. The returned function removes it and is
// safe to call more than once.
func (r *Registry) Subscribe(fn Observer) func() {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.observers = append(r.observers, observerEntry{id: id, fn: fn})
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, o := range r.observers {
			if o.id == id {
				r.observers = append(r.observers[:i:i], r.observers[i+1:]...)
				return
			}
		}
	}
}
