package api

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/smazurov/camhls/internal/api/models"
	"github.com/smazurov/camhls/internal/events"
	"github.com/smazurov/camhls/internal/logging"
	"github.com/smazurov/camhls/internal/manifest"
	"github.com/smazurov/camhls/internal/status"
	"github.com/smazurov/camhls/internal/supervisor"
	"github.com/smazurov/camhls/internal/version"
)

const authRealm = `Basic realm="camhls"`

// CameraService is the part of the supervisor the API drives.
type CameraService interface {
	Cameras() []supervisor.CameraSummary
	Start(cameraID string) error
	Stop(cameraID string) error
	Status(cameraID string) (status.Record, error)
	StatusAll() []status.Record
	StartAll() error
	StopAll()
}

// SegmentLocator resolves segment files for the HLS routes.
type SegmentLocator interface {
	SegmentPath(cameraID, name string) (string, bool)
}

// Server represents the Huma v2 API server
type Server struct {
	api       huma.API
	mux       *http.ServeMux
	cameras   CameraService
	manifests *manifest.Proxy
	segments  SegmentLocator
	eventBus  *events.Bus
	options   *Options
	logger    *slog.Logger
}

// basicAuthMiddleware creates middleware for HTTP basic authentication
func (s *Server) basicAuthMiddleware(username, password string) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		// Skip auth for operations without security requirements
		op := ctx.Operation()
		if op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}

		credentials, err := requestCredentials(ctx.Header("Authorization"), ctx.Query("auth"))
		if err != nil {
			ctx.SetHeader("WWW-Authenticate", authRealm)
			huma.WriteErr(s.api, ctx, http.StatusUnauthorized, err.Error())
			return
		}

		user, pass, ok := strings.Cut(credentials, ":")
		if !ok {
			ctx.SetHeader("WWW-Authenticate", authRealm)
			huma.WriteErr(s.api, ctx, http.StatusUnauthorized, "Invalid credentials format")
			return
		}
		if user != username || pass != password {
			ctx.SetHeader("WWW-Authenticate", authRealm)
			huma.WriteErr(s.api, ctx, http.StatusUnauthorized, "Invalid credentials")
			return
		}

		next(ctx)
	}
}

// requestCredentials decodes "user:pass" from a Basic Authorization header,
// or from the auth query parameter that EventSource clients use instead.
func requestCredentials(header, query string) (string, error) {
	encoded := query
	if header != "" {
		const prefix = "Basic "
		if !strings.HasPrefix(header, prefix) {
			return "", errors.New("Invalid authentication type")
		}
		encoded = header[len(prefix):]
	}
	if encoded == "" {
		return "", errors.New("Authentication required")
	}

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(decoded) == 0 {
		return "", errors.New("Invalid credentials format")
	}
	return string(decoded), nil
}

// Options configures the API server.
type Options struct {
	AuthUsername      string
	AuthPassword      string
	Cameras           CameraService
	Manifests         *manifest.Proxy
	Segments          SegmentLocator
	EventBus          *events.Bus
	HLSPrefix         string       // defaults to /hls
	PrometheusHandler http.Handler // Optional Prometheus metrics handler
}

// NewServer creates a new API server with Huma v2 using Go 1.22+ native routing
func NewServer(opts *Options) *Server {
	if opts.HLSPrefix == "" {
		opts.HLSPrefix = "/hls"
	}
	opts.HLSPrefix = "/" + strings.Trim(opts.HLSPrefix, "/")

	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig()
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig("camhls API", version.String())
	config.Info.Description = "Camera supervisor that republishes network video streams as HLS"
	// Empty servers list will make OpenAPI use relative paths, working with any host
	config.Servers = []*huma.Server{}
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	api := humago.New(mux, config)

	server := &Server{
		api:       api,
		mux:       mux,
		cameras:   opts.Cameras,
		manifests: opts.Manifests,
		segments:  opts.Segments,
		eventBus:  opts.EventBus,
		options:   opts,
		logger:    logging.GetLogger("api"),
	}

	// CORS first, then logging, then auth
	api.UseMiddleware(NewCORSMiddleware(corsConfig))
	api.UseMiddleware(HTTPLoggingMiddleware)
	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		api.UseMiddleware(server.basicAuthMiddleware(opts.AuthUsername, opts.AuthPassword))
	}

	// Prometheus and HLS are plain handlers without auth; players and
	// scrapers do not send credentials.
	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}

	server.registerRoutes()

	return server
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// NewHTTPServer returns an *http.Server for addr serving this API.
func (s *Server) NewHTTPServer(addr string) *http.Server {
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")
	return &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// registerRoutes sets up all API endpoints
func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Liveness probe with a count of streaming cameras. Always 200 while the process serves HTTP.",
		Tags:        []string{"health"},
		Security:    []map[string][]string{}, // no auth for probes
	}, func(_ context.Context, _ *struct{}) (*models.HealthResponse, error) {
		data := models.HealthData{Status: "ok"}
		for _, rec := range s.cameras.StatusAll() {
			data.Cameras++
			if rec.Streaming {
				data.Streaming++
			}
		}
		data.Message = fmt.Sprintf("%d/%d cameras streaming", data.Streaming, data.Cameras)
		return &models.HealthResponse{Body: data}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(ctx context.Context, input *struct{}) (*models.VersionResponse, error) {
		versionInfo := version.Get()
		return &models.VersionResponse{
			Body: models.VersionData{
				Version:   versionInfo.Version,
				GitCommit: versionInfo.GitCommit,
				BuildDate: versionInfo.BuildDate,
				BuildID:   versionInfo.BuildID,
				GoVersion: versionInfo.GoVersion,
				Compiler:  versionInfo.Compiler,
				Platform:  versionInfo.Platform,
			},
		}, nil
	})

	s.registerCameraRoutes()
	s.registerSSERoutes()
	s.registerMetricsRoutes()
	s.registerOptionsRoutes()
	s.registerLogRoutes()
	s.registerHLSRoutes()
}

// withAuth returns security requirement for basic auth
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}
