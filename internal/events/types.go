package events

import (
	"time"

	"github.com/smazurov/camhls/internal/logging"
	"github.com/smazurov/camhls/internal/status"
)

// Event type constants for kelindar/event.
const (
	TypeCameraStatus uint32 = iota + 1
	TypeCameraMetrics
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// CameraStatusEvent carries a published status record.
type CameraStatusEvent struct {
	status.Record
}

// Type returns the event type identifier for CameraStatusEvent.
func (e CameraStatusEvent) Type() uint32 { return TypeCameraStatus }

// CameraMetricsEvent carries the latest ffmpeg progress block for a camera.
type CameraMetricsEvent struct {
	CameraID   string  `json:"camera_id" example:"front" doc:"Camera identifier"`
	Frame      int64   `json:"frame" example:"1500" doc:"Frames written by the current process"`
	FPS        float64 `json:"fps" example:"25" doc:"Current output frame rate"`
	Speed      float64 `json:"speed" example:"1.0" doc:"Processing speed relative to realtime"`
	DropFrames int64   `json:"drop_frames" example:"0" doc:"Frames dropped"`
	DupFrames  int64   `json:"dup_frames" example:"0" doc:"Frames duplicated"`
	Timestamp  string  `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Sample time"`
}

// Type returns the event type identifier for CameraMetricsEvent.
func (e CameraMetricsEvent) Type() uint32 { return TypeCameraMetrics }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"supervisor" doc:"Source module"`
	CameraID   string         `json:"camera_id,omitempty" example:"front-door" doc:"Camera the entry belongs to, if any"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }

// NewLogEntryEvent converts a buffered log entry for SSE clients.
func NewLogEntryEvent(entry logging.LogEntry) LogEntryEvent {
	return LogEntryEvent{
		Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
		Level:      entry.Level,
		Module:     entry.Module,
		CameraID:   entry.CameraID,
		Message:    entry.Message,
		Attributes: entry.Attributes,
	}
}
