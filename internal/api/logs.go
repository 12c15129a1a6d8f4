package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/camhls/internal/events"
	"github.com/smazurov/camhls/internal/logging"
)

// LogStreamInput narrows the log stream. Every field is optional.
type LogStreamInput struct {
	CameraID string `query:"camera_id" doc:"Only entries for this camera" example:"front-door"`
	Module   string `query:"module" doc:"Only entries from this module" example:"supervisor"`
	Level    string `query:"level" enum:"debug,info,warn,error" doc:"Minimum level"`
	History  int    `query:"history" default:"200" minimum:"0" maximum:"1000" doc:"Buffered entries to replay before streaming"`
}

func (in *LogStreamInput) filter() logging.Filter {
	return logging.Filter{CameraID: in.CameraID, Module: in.Module, Level: in.Level}
}

// registerLogRoutes registers the log streaming SSE endpoint.
func (s *Server) registerLogRoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "logs-stream",
		Method:      http.MethodGet,
		Path:        "/api/logs/stream",
		Summary:     "Log Stream",
		Description: "Real-time log streaming via Server-Sent Events. Replays recent buffered entries, then streams new ones. Filter by camera, module or minimum level.",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401, 422},
	}, map[string]any{
		"message": events.LogEntryEvent{},
	}, func(ctx context.Context, input *LogStreamInput, send sse.Sender) {
		filter := input.filter()
		eventCh := make(chan any, 100) // logs are bursty

		unsubscribe := events.SubscribeToChannel[events.LogEntryEvent](s.eventBus, eventCh)
		defer unsubscribe()

		if buffer := logging.GetBuffer(); buffer != nil && input.History > 0 {
			for _, entry := range buffer.Tail(input.History, filter) {
				if err := send.Data(events.NewLogEntryEvent(entry)); err != nil {
					return
				}
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if ev, ok := event.(events.LogEntryEvent); ok && !filter.Allows(ev.Level, ev.Module, ev.CameraID) {
					continue
				}
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
