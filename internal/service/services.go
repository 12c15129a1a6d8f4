package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// HTTPServer matches the *http.Server lifecycle.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServerService runs an HTTP server until the tree stops it.
type HTTPServerService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
}

// NewHTTPServerService wraps server. A zero shutdownTimeout means 5s; SSE
// streams are cut when it expires.
func NewHTTPServerService(server HTTPServer, shutdownTimeout time.Duration) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 5 * time.Second
	}
	return &HTTPServerService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve implements suture.Service. A listen failure is returned so suture
// restarts the server with backoff.
func (h *HTTPServerService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()

		if err := h.server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (h *HTTPServerService) String() string {
	return "http-server"
}

// Fleet is the camera supervisor as the tree sees it.
type Fleet interface {
	StartAll() error
	Shutdown(ctx context.Context) error
}

// FleetService starts every camera and stops them all when the tree stops.
type FleetService struct {
	fleet           Fleet
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

// NewFleetService wraps fleet. A zero shutdownTimeout means 10s.
func NewFleetService(fleet Fleet, shutdownTimeout time.Duration, logger *slog.Logger) *FleetService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &FleetService{fleet: fleet, shutdownTimeout: shutdownTimeout, logger: logger}
}

// Serve implements suture.Service. Cameras that fail to start are already
// scheduled for reconnect, so their errors are only logged.
func (f *FleetService) Serve(ctx context.Context) error {
	if err := f.fleet.StartAll(); err != nil {
		f.logger.Warn("Some cameras failed to start", "error", err)
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), f.shutdownTimeout)
	defer cancel()
	if err := f.fleet.Shutdown(shutdownCtx); err != nil {
		f.logger.Error("Camera shutdown incomplete", "error", err)
	}
	return ctx.Err()
}

func (f *FleetService) String() string {
	return "camera-fleet"
}

// StartStopper is a component with a non-blocking Start and a Stop, such as
// config.Watcher.
type StartStopper interface {
	Start() error
	Stop() error
}

// LifecycleService adapts a StartStopper to suture.Service.
type LifecycleService struct {
	component StartStopper
	name      string
}

// NewLifecycleService wraps component under name.
func NewLifecycleService(name string, component StartStopper) *LifecycleService {
	return &LifecycleService{component: component, name: name}
}

// Serve implements suture.Service.
func (l *LifecycleService) Serve(ctx context.Context) error {
	if err := l.component.Start(); err != nil {
		return fmt.Errorf("%s start failed: %w", l.name, err)
	}

	<-ctx.Done()

	if err := l.component.Stop(); err != nil {
		return fmt.Errorf("%s stop failed: %w", l.name, err)
	}
	return ctx.Err()
}

func (l *LifecycleService) String() string {
	return l.name
}
