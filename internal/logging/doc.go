// Package logging sets up camhls's slog loggers.
//
// Each subsystem asks for its own logger by module name and gets the same
// *slog.Logger every time:
//
//	logger := logging.GetLogger("supervisor").With("camera_id", cam.ID)
//	logger.Warn("ffmpeg exited", "exit_code", 1)
//
// Module levels come from the [logging] table of the daemon config. "level"
// and "format" are global, and any other key names a module:
//
//	[logging]
//	level = "info"
//	format = "json"
//	supervisor = "debug"
//	ffmpeg = "warn"
//
// Records fan out to stdout (when attached), the systemd journal (when
// journald is running) and an in-memory RingBuffer. The buffer backs
// /api/logs/stream; entries keep "module" and "camera_id" as fields so the
// stream can filter on them.
//
// In the journal, attributes become upper-case fields:
//
//	journalctl -t camhls CAMERA_ID=front -p warning
package logging
