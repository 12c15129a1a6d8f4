package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/camhls/internal/api/models"
	"github.com/smazurov/camhls/internal/segments"
	"github.com/smazurov/camhls/internal/supervisor"
)

// registerCameraRoutes registers listing, status and lifecycle endpoints
func (s *Server) registerCameraRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-cameras",
		Method:      http.MethodGet,
		Path:        "/api/cameras",
		Summary:     "List Cameras",
		Description: "List configured cameras. Source URLs are never exposed.",
		Tags:        []string{"cameras"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.CameraListResponse, error) {
		summaries := s.cameras.Cameras()
		cameras := make([]models.CameraData, len(summaries))
		for i, cam := range summaries {
			cameras[i] = models.CameraData{
				ID:       cam.ID,
				Name:     cam.Name,
				Playlist: path.Join(s.options.HLSPrefix, cam.ID, segments.PlaylistName),
			}
		}
		return &models.CameraListResponse{
			Body: models.CameraListData{Cameras: cameras, Count: len(cameras)},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-camera-status",
		Method:      http.MethodGet,
		Path:        "/api/cameras/status",
		Summary:     "All Camera Status",
		Description: "Get the latest status record of every camera",
		Tags:        []string{"cameras"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.CameraStatusListResponse, error) {
		records := s.cameras.StatusAll()
		return &models.CameraStatusListResponse{
			Body: models.CameraStatusListData{Cameras: records, Count: len(records)},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-camera-status",
		Method:      http.MethodGet,
		Path:        "/api/cameras/{camera_id}/status",
		Summary:     "Camera Status",
		Description: "Get the latest status record of one camera",
		Tags:        []string{"cameras"},
		Errors:      []int{401, 404},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.CameraInput) (*models.CameraStatusResponse, error) {
		rec, err := s.cameras.Status(input.CameraID)
		if err != nil {
			return nil, s.mapCameraError(err)
		}
		return &models.CameraStatusResponse{Body: rec}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "start-camera",
		Method:      http.MethodPost,
		Path:        "/api/cameras/{camera_id}/start",
		Summary:     "Start Camera",
		Description: "Start a camera, cancelling any pending reconnect. A camera that is already starting or streaming is left alone.",
		Tags:        []string{"cameras"},
		Errors:      []int{401, 404, 500, 503},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.CameraInput) (*models.CameraStatusResponse, error) {
		if err := s.cameras.Start(input.CameraID); err != nil {
			// a failed launch is already recorded and retried
			var camErr *supervisor.CameraError
			if !errors.As(err, &camErr) || camErr.Code == supervisor.ErrCodeCameraNotFound || camErr.Code == supervisor.ErrCodeShuttingDown {
				return nil, s.mapCameraError(err)
			}
			s.logger.Warn("Camera start failed", "camera_id", input.CameraID, "error", err)
		}
		return s.statusResponse(input.CameraID)
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "stop-camera",
		Method:      http.MethodPost,
		Path:        "/api/cameras/{camera_id}/stop",
		Summary:     "Stop Camera",
		Description: "Stop a camera and cancel any pending reconnect",
		Tags:        []string{"cameras"},
		Errors:      []int{401, 404},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.CameraInput) (*models.CameraStatusResponse, error) {
		if err := s.cameras.Stop(input.CameraID); err != nil {
			return nil, s.mapCameraError(err)
		}
		return s.statusResponse(input.CameraID)
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "start-all-cameras",
		Method:      http.MethodPost,
		Path:        "/api/cameras/start",
		Summary:     "Start All Cameras",
		Description: "Start every camera concurrently. Failures are reported per camera and do not block the others.",
		Tags:        []string{"cameras"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.BulkActionResponse, error) {
		failures := splitErrors(s.cameras.StartAll())
		total := len(s.cameras.Cameras())
		return &models.BulkActionResponse{
			Body: models.BulkActionData{
				Message: fmt.Sprintf("%d of %d cameras running or starting", total-len(failures), total),
				Errors:  failures,
				Cameras: s.cameras.StatusAll(),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "stop-all-cameras",
		Method:      http.MethodPost,
		Path:        "/api/cameras/stop",
		Summary:     "Stop All Cameras",
		Description: "Stop every camera concurrently",
		Tags:        []string{"cameras"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.BulkActionResponse, error) {
		s.cameras.StopAll()
		return &models.BulkActionResponse{
			Body: models.BulkActionData{
				Message: fmt.Sprintf("Stopped %d cameras", len(s.cameras.Cameras())),
				Cameras: s.cameras.StatusAll(),
			},
		}, nil
	})
}

func (s *Server) statusResponse(cameraID string) (*models.CameraStatusResponse, error) {
	rec, err := s.cameras.Status(cameraID)
	if err != nil {
		return nil, s.mapCameraError(err)
	}
	return &models.CameraStatusResponse{Body: rec}, nil
}

// mapCameraError maps supervisor errors to HTTP errors
func (s *Server) mapCameraError(err error) error {
	var camErr *supervisor.CameraError
	if errors.As(err, &camErr) {
		switch camErr.Code {
		case supervisor.ErrCodeCameraNotFound:
			return huma.Error404NotFound(fmt.Sprintf("camera %q not found", camErr.CameraID), err)
		case supervisor.ErrCodeShuttingDown:
			return huma.Error503ServiceUnavailable("server is shutting down", err)
		default:
			return huma.Error500InternalServerError(camErr.Message, err)
		}
	}
	if errors.Is(err, supervisor.ErrCameraNotFound) {
		return huma.Error404NotFound("camera not found", err)
	}
	return huma.Error500InternalServerError("internal server error", err)
}

// splitErrors flattens an errors.Join result into messages.
func splitErrors(err error) []string {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}
