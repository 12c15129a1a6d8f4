package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/camhls/internal/events"
)

// registerSSERoutes registers the camera event stream.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time camera status and ffmpeg metrics. Every camera's current status is sent first.",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"camera-status":  events.CameraStatusEvent{},
		"camera-metrics": events.CameraMetricsEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 64)

		// subscribe before the snapshot so no transition falls in between
		unsubscribers := []func(){
			events.SubscribeToChannel[events.CameraStatusEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.CameraMetricsEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		for _, rec := range s.cameras.StatusAll() {
			if err := send.Data(events.CameraStatusEvent{Record: rec}); err != nil {
				return
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
