package exporters

import (
	"context"
	"time"

	"github.com/smazurov/camhls/internal/events"
	"github.com/smazurov/camhls/internal/metrics"
)

// EventPublisher publishes events.
type EventPublisher interface {
	Publish(ev events.Event)
}

// SSEExporter periodically publishes the cached ffmpeg metrics of every
// camera as CameraMetricsEvent.
type SSEExporter struct {
	eventBus EventPublisher
	interval time.Duration
}

// NewSSEExporter creates an exporter that publishes once per second.
func NewSSEExporter(eventBus EventPublisher) *SSEExporter {
	return &SSEExporter{
		eventBus: eventBus,
		interval: 1 * time.Second,
	}
}

// Serve publishes until ctx is cancelled.
func (s *SSEExporter) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.publishMetrics()
		}
	}
}

func (s *SSEExporter) String() string { return "metrics-sse-exporter" }

func (s *SSEExporter) publishMetrics() {
	now := time.Now().UTC().Format(time.RFC3339)
	for cameraID, m := range metrics.GetAllFFmpegMetrics() {
		s.eventBus.Publish(events.CameraMetricsEvent{
			CameraID:   cameraID,
			Frame:      m.Frame,
			FPS:        m.FPS,
			Speed:      m.Speed,
			DropFrames: m.DroppedFrames,
			DupFrames:  m.DuplicateFrames,
			Timestamp:  now,
		})
	}
}
