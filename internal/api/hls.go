package api

import (
	"net/http"
	"strings"

	"github.com/smazurov/camhls/internal/manifest"
	"github.com/smazurov/camhls/internal/segments"
)

// registerHLSRoutes serves playlists and segments as plain handlers. Players
// poll these constantly, so they bypass the API middleware.
func (s *Server) registerHLSRoutes() {
	prefix := strings.TrimSuffix(s.options.HLSPrefix, "/")
	s.mux.HandleFunc("GET "+prefix+"/{camera_id}/{file}", withCORS(DefaultCORSConfig(), s.serveHLS))
}

func (s *Server) serveHLS(w http.ResponseWriter, r *http.Request) {
	cameraID := r.PathValue("camera_id")
	file := r.PathValue("file")
	_, err := s.cameras.Status(cameraID)
	known := err == nil

	if file == segments.PlaylistName {
		body := manifest.Empty
		if known && s.manifests != nil {
			body = s.manifests.Render(cameraID)
		}
		w.Header().Set("Content-Type", manifest.ContentType)
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
		return
	}

	if !known || s.segments == nil {
		http.NotFound(w, r)
		return
	}
	segmentPath, ok := s.segments.SegmentPath(cameraID, file)
	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "video/mp2t")
	http.ServeFile(w, r, segmentPath)
}
