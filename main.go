package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/camhls/cmd"
	"github.com/smazurov/camhls/internal/api"
	"github.com/smazurov/camhls/internal/backoff"
	"github.com/smazurov/camhls/internal/config"
	"github.com/smazurov/camhls/internal/events"
	"github.com/smazurov/camhls/internal/ffmpeg"
	"github.com/smazurov/camhls/internal/logging"
	"github.com/smazurov/camhls/internal/manifest"
	"github.com/smazurov/camhls/internal/metrics"
	"github.com/smazurov/camhls/internal/metrics/exporters"
	"github.com/smazurov/camhls/internal/process"
	"github.com/smazurov/camhls/internal/segments"
	"github.com/smazurov/camhls/internal/service"
	"github.com/smazurov/camhls/internal/status"
	"github.com/smazurov/camhls/internal/supervisor"
	"github.com/smazurov/camhls/internal/systemd"
	"github.com/smazurov/camhls/internal/version"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Cameras settings
	CamerasConfigFile string `help:"Camera definitions file" default:"cameras.toml" toml:"cameras.config_file" env:"CAMERAS_CONFIG_FILE"`

	// HLS settings
	HLSOutputDir  string `help:"Directory ffmpeg writes playlists and segments into" default:"./hls" toml:"hls.output_dir" env:"HLS_OUTPUT_DIR"`
	HLSPathPrefix string `help:"URL prefix for playlists and segments" default:"/hls" toml:"hls.path_prefix" env:"HLS_PATH_PREFIX"`

	// FFmpeg settings
	FFmpegPath string `help:"ffmpeg binary" default:"ffmpeg" toml:"ffmpeg.path" env:"FFMPEG_PATH"`

	// Reconnect settings
	ReconnectInitialDelayMs int    `help:"First reconnect delay in milliseconds" default:"1000" toml:"reconnect.initial_delay_ms" env:"RECONNECT_INITIAL_DELAY_MS"`
	ReconnectMaxDelayMs     int    `help:"Reconnect delay cap in milliseconds" default:"30000" toml:"reconnect.max_delay_ms" env:"RECONNECT_MAX_DELAY_MS"`
	ReconnectMultiplier     string `help:"Reconnect delay growth factor" default:"1.5" toml:"reconnect.multiplier" env:"RECONNECT_MULTIPLIER"`
	ReconnectMaxAttempts    int    `help:"Consecutive failures before giving up (0 = never)" default:"0" toml:"reconnect.max_attempts" env:"RECONNECT_MAX_ATTEMPTS"`

	// Auth settings
	AuthUsername string `help:"Basic auth username (empty disables auth)" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Observability settings
	ObsPrometheusEnabled bool `help:"Enable Prometheus" default:"true" toml:"obs.prometheus_enabled" env:"OBS_PROMETHEUS_ENABLED"`
	ObsSSEEnabled        bool `help:"Publish ffmpeg metrics over SSE" default:"true" toml:"obs.sse_enabled" env:"OBS_SSE_ENABLED"`

	// Logging settings
	LoggingLevel      string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat     string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingConfig     string `help:"Config logging level" default:"info" toml:"logging.config" env:"LOGGING_CONFIG"`
	LoggingSupervisor string `help:"Supervisor logging level" default:"info" toml:"logging.supervisor" env:"LOGGING_SUPERVISOR"`
	LoggingProcess    string `help:"Process launcher logging level" default:"info" toml:"logging.process" env:"LOGGING_PROCESS"`
	LoggingFFmpeg     string `help:"ffmpeg output logging level" default:"info" toml:"logging.ffmpeg" env:"LOGGING_FFMPEG"`
	LoggingSegments   string `help:"Segments logging level" default:"info" toml:"logging.segments" env:"LOGGING_SEGMENTS"`
	LoggingManifest   string `help:"Manifest logging level" default:"info" toml:"logging.manifest" env:"LOGGING_MANIFEST"`
	LoggingAPI        string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingHTTP       string `help:"HTTP request logging level" default:"info" toml:"logging.http" env:"LOGGING_HTTP"`
	LoggingService    string `help:"Service tree logging level" default:"info" toml:"logging.service" env:"LOGGING_SERVICE"`
}

func (o *Options) backoffPolicy(logger *slog.Logger) backoff.Policy {
	multiplier, err := strconv.ParseFloat(o.ReconnectMultiplier, 64)
	if err != nil {
		logger.Warn("Invalid reconnect multiplier, using default", "value", o.ReconnectMultiplier, "error", err)
		multiplier = 0
	}
	return backoff.Policy{
		Initial:     time.Duration(o.ReconnectInitialDelayMs) * time.Millisecond,
		Max:         time.Duration(o.ReconnectMaxDelayMs) * time.Millisecond,
		Multiplier:  multiplier,
		MaxAttempts: o.ReconnectMaxAttempts,
	}.Normalize()
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		// Initialize logging system
		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"config":     opts.LoggingConfig,
				"supervisor": opts.LoggingSupervisor,
				"process":    opts.LoggingProcess,
				"ffmpeg":     opts.LoggingFFmpeg,
				"segments":   opts.LoggingSegments,
				"manifest":   opts.LoggingManifest,
				"api":        opts.LoggingAPI,
				"http":       opts.LoggingHTTP,
				"service":    opts.LoggingService,
			},
		})

		logger := logging.GetLogger("main")

		ctx, cancel := context.WithCancel(context.Background())
		stopped := make(chan struct{})
		var tree atomic.Pointer[service.Tree]

		hooks.OnStart(func() {
			defer close(stopped)

			t := buildServer(opts, logger)
			tree.Store(t)
			logger.Info("Starting camhls", "version", version.String(), "port", opts.Port)
			if err := <-t.ServeBackground(ctx); err != nil && ctx.Err() == nil {
				logger.Error("Service tree stopped", "error", err)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			cancel()

			select {
			case <-stopped:
			case <-time.After(service.DefaultTreeConfig().ShutdownTimeout + 5*time.Second):
				logger.Error("Shutdown timed out")
			}
			if t := tree.Load(); t != nil {
				t.LogUnstopped()
			}
		})
	})

	cli.Root().AddCommand(cmd.CreateValidateCmd())
	cli.Root().AddCommand(cmd.CreateStreamCmd())
	cli.Root().AddCommand(cmd.CreateVersionCmd())

	// Run the CLI
	cli.Run()
}

// buildServer wires the supervisor, API and cameras-file watcher into a
// service tree. Invalid cameras are fatal.
func buildServer(opts *Options, logger *slog.Logger) *service.Tree {
	configLogger := logging.GetLogger("config")

	camerasFile, err := config.LoadCameras(opts.CamerasConfigFile)
	if err != nil {
		logger.Error("Failed to load cameras", "file", opts.CamerasConfigFile, "error", err)
		os.Exit(1)
	}
	cameras, err := camerasFile.ResolveAll()
	if err != nil {
		logger.Error("Invalid cameras configuration", "file", opts.CamerasConfigFile, "error", err)
		os.Exit(1)
	}
	for _, warning := range camerasFile.Warnings {
		configLogger.Warn(warning, "file", opts.CamerasConfigFile)
	}
	for _, cam := range camerasFile.Cameras {
		for _, warning := range config.Lint(cam, camerasFile.Defaults) {
			configLogger.Warn(warning, "camera_id", cam.ID)
		}
	}
	logger.Info("Loaded cameras", "count", len(cameras), "file", opts.CamerasConfigFile)

	if lookErr := process.LookPath(opts.FFmpegPath); lookErr != nil {
		logger.Warn("ffmpeg not found, every camera will fail to launch", "path", opts.FFmpegPath, "error", lookErr)
	}

	// Create event bus for in-process event handling
	eventBus := events.New()
	logging.SetLogCallback(func(entry logging.LogEntry) {
		eventBus.Publish(events.NewLogEntryEvent(entry))
	})

	segmentManager := segments.NewManager(opts.HLSOutputDir, logging.GetLogger("segments"))

	sup := supervisor.New(cameras, supervisor.Options{
		Launcher: &process.ExecLauncher{
			Logger:            logging.GetLogger("process"),
			Classifier:        ffmpeg.Classify,
			NewProgressParser: ffmpeg.NewProcessProgressParser,
		},
		Segments: segmentManager,
		Build: func(cam config.EffectiveConfig, outDir string) process.Command {
			return ffmpeg.BuildHLSCommand(cam, outDir, ffmpeg.BuildOptions{FFmpegPath: opts.FFmpegPath})
		},
		Backoff:      opts.backoffPolicy(logger),
		Logger:       logging.GetLogger("supervisor"),
		FFmpegLogger: logging.GetLogger("ffmpeg"),
	})
	sup.Registry().Subscribe(metrics.ObserveStatus)
	sup.Registry().Subscribe(eventBus.StatusObserver())

	apiOpts := &api.Options{
		AuthUsername: opts.AuthUsername,
		AuthPassword: opts.AuthPassword,
		Cameras:      sup,
		Manifests:    manifest.NewProxy(segmentManager, opts.HLSPathPrefix, logging.GetLogger("manifest")),
		Segments:     segmentManager,
		EventBus:     eventBus,
		HLSPrefix:    opts.HLSPathPrefix,
	}
	if opts.ObsPrometheusEnabled {
		apiOpts.PrometheusHandler = exporters.HTTPHandler()
	}
	if opts.AuthUsername == "" || opts.AuthPassword == "" {
		logger.Warn("Basic auth disabled; set auth.username and auth.password to enable it")
	}
	server := api.NewServer(apiOpts)

	tree := service.NewTree(logging.GetLogger("service"), service.DefaultTreeConfig())
	tree.AddCoreService(service.NewFleetService(sup, 0, logger))
	if opts.ObsSSEEnabled {
		tree.AddCoreService(exporters.NewSSEExporter(eventBus))
	}

	watcher := config.NewConfigWatcher(opts.CamerasConfigFile, loadResolvedCameras, configLogger,
		config.WithErrorHandler[[]config.EffectiveConfig](func(err error) {
			configLogger.Warn("Cameras file reload failed", "error", err)
		}),
	)
	watcher.OnReload(func(next []config.EffectiveConfig) {
		changes := config.Diff(cameras, next)
		if changes.Empty() {
			configLogger.Debug("Cameras file reloaded, nothing changed")
			return
		}
		configLogger.Warn("Cameras file changed, restart camhls to apply",
			"added", changes.Added, "removed", changes.Removed, "changed", changes.Changed)
	})
	tree.AddCoreService(service.NewLifecycleService("cameras-watcher", watcher))

	tree.AddAPIService(service.NewHTTPServerService(server.NewHTTPServer(opts.Port), 0))

	notifier := systemd.NewNotifier(logging.GetLogger("service"))
	sup.Registry().Subscribe(func(status.Record) {
		streaming := 0
		all := sup.StatusAll()
		for _, rec := range all {
			if rec.Streaming {
				streaming++
			}
		}
		notifier.Status("%d/%d cameras streaming", streaming, len(all))
	})
	tree.AddAPIService(notifier)

	return tree
}

func loadResolvedCameras(path string) ([]config.EffectiveConfig, error) {
	file, err := config.LoadCameras(path)
	if err != nil {
		return nil, err
	}
	return file.ResolveAll()
}
