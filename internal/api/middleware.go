package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/smazurov/camhls/internal/logging"
)

// RequestIDHeader carries the request ID. A client-supplied value is kept.
const RequestIDHeader = "X-Request-ID"

// Operations polled often enough that a line per request is noise.
var quietOperations = map[string]bool{
	"health-check":       true,
	"list-camera-status": true,
}

// HTTPLoggingMiddleware tags each API request with an ID and logs it when it
// completes. The level follows the status code; probes and pre-flight
// requests log at debug. The raw query is never logged because the auth
// parameter may carry credentials.
func HTTPLoggingMiddleware(ctx huma.Context, next func(huma.Context)) {
	start := time.Now()

	requestID := ctx.Header(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	ctx.SetHeader(RequestIDHeader, requestID)

	next(ctx)

	attrs := []slog.Attr{
		slog.String("request_id", requestID),
		slog.String("method", ctx.Method()),
		slog.String("path", ctx.URL().Path),
		slog.Int("status", ctx.Status()),
		slog.Duration("duration", time.Since(start)),
		slog.String("remote_addr", ctx.RemoteAddr()),
	}
	if id := ctx.Param("camera_id"); id != "" {
		attrs = append(attrs, slog.String("camera_id", id))
	}
	if ua := ctx.Header("User-Agent"); ua != "" {
		attrs = append(attrs, slog.String("user_agent", ua))
	}

	logging.GetLogger("http").LogAttrs(ctx.Context(), requestLevel(ctx), "HTTP request completed", attrs...)
}

func requestLevel(ctx huma.Context) slog.Level {
	switch status := ctx.Status(); {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	}
	if ctx.Method() == http.MethodOptions {
		return slog.LevelDebug
	}
	if op := ctx.Operation(); op != nil && quietOperations[op.OperationID] {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
