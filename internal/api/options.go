package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/camhls/internal/api/models"
	"github.com/smazurov/camhls/internal/ffmpeg"
)

// registerOptionsRoutes registers the ffmpeg input option catalogue.
func (s *Server) registerOptionsRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-ffmpeg-options",
		Method:      http.MethodGet,
		Path:        "/api/options",
		Summary:     "Get FFmpeg Options",
		Description: "List the decoder and error_detection values accepted in cameras.toml and the ffmpeg arguments each expands to",
		Tags:        []string{"configuration"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.OptionsResponse, error) {
		return &models.OptionsResponse{
			Body: models.OptionsData{
				Decoders:        ffmpeg.DecoderOptions,
				ErrorDetections: ffmpeg.ErrorDetectionOptions,
			},
		}, nil
	})
}
