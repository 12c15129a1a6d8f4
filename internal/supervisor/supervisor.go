// Package supervisor keeps one ffmpeg process alive per camera. Each camera
// is an independent session with its own lock, reconnect timer and process
// handle; sessions never share state except through the status registry.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/smazurov/camhls/internal/backoff"
	"github.com/smazurov/camhls/internal/config"
	"github.com/smazurov/camhls/internal/ffmpeg"
	"github.com/smazurov/camhls/internal/process"
	"github.com/smazurov/camhls/internal/segments"
	"github.com/smazurov/camhls/internal/status"
)

const defaultRetainInterval = 30 * time.Second

// CommandBuilder turns a camera into the command that streams it into outDir.
type CommandBuilder func(cam config.EffectiveConfig, outDir string) process.Command

// Options configures a Supervisor.
type Options struct {
	Launcher process.Launcher // required
	Segments *segments.Manager
	Registry *status.Registry
	// Build defaults to ffmpeg.BuildHLSCommand with the default ffmpeg path.
	Build   CommandBuilder
	Backoff backoff.Policy

	// RetainInterval throttles the segment retention sweep. Zero means 30s.
	RetainInterval time.Duration

	Logger       *slog.Logger
	FFmpegLogger *slog.Logger // process output
}

// CameraSummary is the public identity of a camera. It never carries the URL.
type CameraSummary struct {
	ID   string `json:"id" example:"front" doc:"Camera identifier"`
	Name string `json:"name" example:"Front door" doc:"Camera display name"`
}

// Supervisor owns every camera session.
type Supervisor struct {
	opts     Options
	sessions map[string]*session
	order    []string
	logger   *slog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	closing atomic.Bool
	wg      sync.WaitGroup
}

// New creates a supervisor for cameras and publishes an idle record for each.
func New(cameras []config.EffectiveConfig, opts Options) *Supervisor {
	if opts.Launcher == nil {
		panic("supervisor: Options.Launcher is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.FFmpegLogger == nil {
		opts.FFmpegLogger = opts.Logger
	}
	if opts.Registry == nil {
		opts.Registry = status.NewRegistry(opts.Logger)
	}
	if opts.Segments == nil {
		opts.Segments = segments.NewManager("hls", opts.Logger)
	}
	if opts.Build == nil {
		opts.Build = func(cam config.EffectiveConfig, outDir string) process.Command {
			return ffmpeg.BuildHLSCommand(cam, outDir, ffmpeg.BuildOptions{})
		}
	}
	if opts.RetainInterval <= 0 {
		opts.RetainInterval = defaultRetainInterval
	}
	opts.Backoff = opts.Backoff.Normalize()

	ctx, cancel := context.WithCancel(context.Background())
	s := &Supervisor{
		opts:     opts,
		sessions: make(map[string]*session, len(cameras)),
		logger:   opts.Logger,
		ctx:      ctx,
		cancel:   cancel,
	}

	for _, cam := range cameras {
		if _, dup := s.sessions[cam.ID]; dup {
			s.logger.Warn("Ignoring duplicate camera", "camera_id", cam.ID)
			continue
		}
		sess := newSession(s, cam)
		s.sessions[cam.ID] = sess
		s.order = append(s.order, cam.ID)

		sess.mu.Lock()
		sess.publishLocked()
		sess.mu.Unlock()
	}

	return s
}

// Registry returns the status registry the supervisor publishes to.
func (s *Supervisor) Registry() *status.Registry {
	return s.opts.Registry
}

// Cameras lists configured cameras in configuration order.
func (s *Supervisor) Cameras() []CameraSummary {
	out := make([]CameraSummary, 0, len(s.order))
	for _, id := range s.order {
		cam := s.sessions[id].cam
		out = append(out, CameraSummary{ID: cam.ID, Name: cam.Name})
	}
	return out
}

// Start launches a camera. It is a no-op while the camera is starting or
// streaming, and cancels a pending reconnect.
func (s *Supervisor) Start(cameraID string) error {
	sess, ok := s.sessions[cameraID]
	if !ok {
		return notFound(cameraID)
	}
	return sess.start()
}

// Stop terminates a camera and cancels its reconnect timer. It is idempotent.
func (s *Supervisor) Stop(cameraID string) error {
	sess, ok := s.sessions[cameraID]
	if !ok {
		return notFound(cameraID)
	}
	sess.stop()
	return nil
}

// Status returns the latest published record for a camera.
func (s *Supervisor) Status(cameraID string) (status.Record, error) {
	if _, ok := s.sessions[cameraID]; !ok {
		return status.Record{}, notFound(cameraID)
	}
	rec, _ := s.opts.Registry.Get(cameraID)
	return rec, nil
}

// StatusAll returns every camera's record in configuration order.
func (s *Supervisor) StatusAll() []status.Record {
	return s.opts.Registry.GetAll()
}

// StartAll starts every camera concurrently. One camera's failure never
// blocks another; the failures are joined.
func (s *Supervisor) StartAll() error {
	s.logger.Info("Starting all cameras", "total_cameras", len(s.order))

	errs := make([]error, len(s.order))
	var g errgroup.Group
	for i, id := range s.order {
		g.Go(func() error {
			if err := s.Start(id); err != nil {
				s.logger.Error("Failed to start camera", "camera_id", id, "error", err)
				errs[i] = err
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

// StopAll stops every camera concurrently.
func (s *Supervisor) StopAll() {
	s.logger.Info("Stopping all cameras")

	var g errgroup.Group
	for _, id := range s.order {
		g.Go(func() error {
			return s.Stop(id)
		})
	}
	_ = g.Wait()
}

// Shutdown stops every camera, refuses further starts, and waits until every
// process has been reaped or ctx is done.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.closing.Store(true)
	s.StopAll()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("All camera processes stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Timeout waiting for camera processes to exit")
		return fmt.Errorf("waiting for processes: %w", ctx.Err())
	}
}
