package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/smazurov/camhls/internal/backoff"
	"github.com/smazurov/camhls/internal/config"
	"github.com/smazurov/camhls/internal/ffmpeg"
	"github.com/smazurov/camhls/internal/logging"
	"github.com/smazurov/camhls/internal/process"
	"github.com/smazurov/camhls/internal/segments"
	"github.com/smazurov/camhls/internal/status"
	"github.com/smazurov/camhls/internal/supervisor"
	"github.com/spf13/cobra"
)

const streamShutdownTimeout = 10 * time.Second

// CreateStreamCmd creates the stream command.
func CreateStreamCmd() *cobra.Command {
	var camerasFile string
	var outputDir string
	var ffmpegPath string
	var logJSON bool

	cmd := &cobra.Command{
		Use:   "stream [camera-id]",
		Short: "Supervise a single camera in the foreground",
		Long: `Runs ffmpeg for one camera from the cameras file, writing its HLS playlist and ` +
			`segments under the output directory. Reconnects with backoff, restarts when the ` +
			`camera's configuration changes and stops on SIGINT or SIGTERM.`,
		Args: cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			cameraID := args[0]

			// Initialize minimal logging
			loggingConfig := logging.Config{
				Level:  "info",
				Format: "text",
			}
			if logJSON {
				loggingConfig.Format = "json"
			}
			logging.Initialize(loggingConfig)
			logger := logging.GetLogger("main").With("camera_id", cameraID)

			logger.Info("Starting stream command", "cameras", camerasFile, "output", outputDir)

			file, err := config.LoadCameras(camerasFile)
			if err != nil {
				logger.Error("Failed to load cameras configuration", "error", err)
				os.Exit(1)
			}
			cameras, err := file.ResolveAll()
			if err != nil {
				logger.Error("Invalid cameras configuration", "error", err)
				os.Exit(1)
			}
			cam, ok := findCamera(cameras, cameraID)
			if !ok {
				logger.Error("Camera not found")
				os.Exit(1)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			runner := newStreamRunner(streamRunnerOptions{
				Launcher: &process.ExecLauncher{
					Logger:            logging.GetLogger("process"),
					Classifier:        ffmpeg.Classify,
					NewProgressParser: ffmpeg.NewProcessProgressParser,
				},
				Segments:   segments.NewManager(outputDir, logging.GetLogger("segments")),
				FFmpegPath: ffmpegPath,
				Logger:     logger,
			})
			runner.registry.Subscribe(func(rec status.Record) {
				logger.Info("Status", "status", rec.Status, "message", rec.Message, "attempts", rec.Attempts)
			})

			if err := runner.Run(cam); err != nil {
				logger.Warn("Initial start failed, reconnect scheduled", "error", err)
			}

			// Create typed config watcher with fresh config loading
			watcher := config.NewConfigWatcher(
				camerasFile,
				func(path string) ([]config.EffectiveConfig, error) {
					f, loadErr := config.LoadCameras(path)
					if loadErr != nil {
						return nil, loadErr
					}
					return f.ResolveAll()
				},
				logger,
				config.WithDebounce[[]config.EffectiveConfig](1500*time.Millisecond),
				config.WithErrorHandler[[]config.EffectiveConfig](func(err error) {
					logger.Warn("Cameras file reload failed, keeping current configuration", "error", err)
				}),
			)
			watcher.OnReload(func(all []config.EffectiveConfig) {
				next, exists := findCamera(all, cameraID)
				if !exists {
					logger.Warn("Camera removed from config, shutting down")
					stop()
					return
				}
				runner.Apply(next)
			})

			// Start config watcher (non-fatal if it fails)
			if err := watcher.Start(); err != nil {
				logger.Warn("Failed to start config watcher, hot-reload disabled", "error", err)
			} else {
				defer func() { _ = watcher.Stop() }()
			}

			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), streamShutdownTimeout)
			defer cancel()
			if err := runner.Shutdown(shutdownCtx); err != nil {
				logger.Error("Shutdown incomplete", "error", err)
				os.Exit(1)
			}
			logger.Info("Stream command exiting")
		},
	}

	cmd.Flags().StringVar(&camerasFile, "cameras", "cameras.toml", "Path to cameras configuration file")
	cmd.Flags().StringVar(&outputDir, "output-dir", "./hls", "Directory for the playlist and segments")
	cmd.Flags().StringVar(&ffmpegPath, "ffmpeg", ffmpeg.DefaultPath, "ffmpeg binary")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Use JSON log format")

	return cmd
}

func findCamera(cameras []config.EffectiveConfig, id string) (config.EffectiveConfig, bool) {
	for _, cam := range cameras {
		if cam.ID == id {
			return cam, true
		}
	}
	return config.EffectiveConfig{}, false
}

type streamRunnerOptions struct {
	Launcher   process.Launcher
	Segments   *segments.Manager
	FFmpegPath string
	Backoff    backoff.Policy
	Logger     *slog.Logger
}

// streamRunner owns a single-camera supervisor and replaces it whenever the
// camera's effective configuration changes.
type streamRunner struct {
	opts     streamRunnerOptions
	registry *status.Registry

	mu  sync.Mutex
	cam config.EffectiveConfig
	sup *supervisor.Supervisor
}

func newStreamRunner(opts streamRunnerOptions) *streamRunner {
	return &streamRunner{
		opts:     opts,
		registry: status.NewRegistry(opts.Logger),
	}
}

// Run supervises cam, replacing any previous supervisor.
func (r *streamRunner) Run(cam config.EffectiveConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runLocked(cam)
}

// Apply restarts the camera when cam differs from what is running.
func (r *streamRunner) Apply(cam config.EffectiveConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sup != nil && cam == r.cam {
		r.opts.Logger.Debug("Config reloaded, camera unchanged")
		return
	}
	r.opts.Logger.Info("Camera configuration changed, restarting")
	if err := r.runLocked(cam); err != nil {
		r.opts.Logger.Warn("Restart failed, reconnect scheduled", "error", err)
	}
}

func (r *streamRunner) runLocked(cam config.EffectiveConfig) error {
	if r.sup != nil {
		ctx, cancel := context.WithTimeout(context.Background(), streamShutdownTimeout)
		err := r.sup.Shutdown(ctx)
		cancel()
		if err != nil {
			return fmt.Errorf("stopping previous supervisor: %w", err)
		}
	}

	ffmpegPath := r.opts.FFmpegPath
	r.cam = cam
	r.sup = supervisor.New([]config.EffectiveConfig{cam}, supervisor.Options{
		Launcher: r.opts.Launcher,
		Segments: r.opts.Segments,
		Registry: r.registry,
		Build: func(c config.EffectiveConfig, outDir string) process.Command {
			return ffmpeg.BuildHLSCommand(c, outDir, ffmpeg.BuildOptions{FFmpegPath: ffmpegPath})
		},
		Backoff:      r.opts.Backoff,
		Logger:       r.opts.Logger,
		FFmpegLogger: logging.GetLogger("ffmpeg").With("camera_id", cam.ID),
	})
	return r.sup.Start(cam.ID)
}

// Shutdown stops the current supervisor and waits for ffmpeg to exit.
func (r *streamRunner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sup == nil {
		return nil
	}
	return r.sup.Shutdown(ctx)
}

func (r *streamRunner) status() (status.Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sup == nil {
		return status.Record{}, false
	}
	rec, err := r.sup.Status(r.cam.ID)
	return rec, err == nil
}
