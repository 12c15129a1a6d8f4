package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/camhls/internal/events"
)

// MetricsStreamInput optionally narrows the metrics stream to one camera.
type MetricsStreamInput struct {
	CameraID string `query:"camera_id" doc:"Only metrics for this camera" example:"front-door"`
}

// registerMetricsRoutes registers the per-camera progress stream.
func (s *Server) registerMetricsRoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "metrics-stream",
		Method:      http.MethodGet,
		Path:        "/api/metrics",
		Summary:     "Camera Metrics Stream",
		Description: "Per-camera ffmpeg progress (frame, fps, speed, drops) as Server-Sent Events, about once per second per streaming camera",
		Tags:        []string{"metrics"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"camera-metrics": events.CameraMetricsEvent{},
	}, func(ctx context.Context, input *MetricsStreamInput, send sse.Sender) {
		progress := make(chan any, 10)
		unsubscribe := events.SubscribeToChannel[events.CameraMetricsEvent](s.eventBus, progress)
		defer unsubscribe()

		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-progress:
				if m, ok := ev.(events.CameraMetricsEvent); ok && input.CameraID != "" && m.CameraID != input.CameraID {
					continue
				}
				if err := send.Data(ev); err != nil {
					return
				}
			}
		}
	})
}
