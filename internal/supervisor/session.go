package supervisor

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/camhls/internal/backoff"
	"github.com/smazurov/camhls/internal/config"
	"github.com/smazurov/camhls/internal/metrics"
	"github.com/smazurov/camhls/internal/process"
	"github.com/smazurov/camhls/internal/status"
)

const retryLimitMessage = "retry limit reached"

// session is the lifecycle of one camera. Every field below mu is guarded
// by it; cam and the loggers are immutable.
type session struct {
	sup          *Supervisor
	cam          config.EffectiveConfig
	logger       *slog.Logger
	ffmpegLogger *slog.Logger

	mu         sync.Mutex
	state      string
	handle     process.Handle
	runID      string
	attempts   int
	timer      backoff.Timer
	timerGen   uint64
	message    string
	startedAt  *time.Time
	lastRetain time.Time
}

func newSession(sup *Supervisor, cam config.EffectiveConfig) *session {
	return &session{
		sup:          sup,
		cam:          cam,
		logger:       sup.opts.Logger.With("camera_id", cam.ID),
		ffmpegLogger: sup.opts.FFmpegLogger.With("camera_id", cam.ID),
		state:        status.Idle,
		message:      "Idle",
	}
}

func (s *session) start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked()
}

func (s *session) startLocked() error {
	if s.state == status.Starting || s.state == status.Streaming {
		return nil
	}

	s.timerGen++
	if s.timer.Cancel() {
		s.logger.Info("Manual start cancelled pending reconnect")
	}
	// an explicit start gives an exhausted camera a fresh retry budget
	if s.sup.opts.Backoff.Exhausted(s.attempts) {
		s.attempts = 0
	}

	return s.launchLocked()
}

func (s *session) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// stopLocked bumps timerGen so a reconnect whose timer already fired, and is
// waiting for mu, aborts instead of relaunching.
func (s *session) stopLocked() {
	s.timerGen++
	s.timer.Cancel()
	if s.handle != nil {
		s.logger.Info("Stopping camera", "run_id", s.runID)
		s.handle.Terminate()
		s.handle = nil
		s.runID = ""
	}
	s.attempts = 0

	if s.state == status.Stopped {
		return
	}
	s.state = status.Stopped
	s.message = "Stopped"
	s.startedAt = nil
	s.publishLocked()
}

// launchLocked resets the output directory and starts a new process.
func (s *session) launchLocked() error {
	if s.sup.closing.Load() {
		return newCameraError(ErrCodeShuttingDown, s.cam.ID, "not starting", ErrShuttingDown)
	}

	if err := s.sup.opts.Segments.Ensure(s.cam.ID); err != nil {
		s.logger.Error("Failed to prepare output directory", "error", err)
		s.settleLocked(status.Errored, fmt.Sprintf("output directory: %v", err))
		return newCameraError(ErrCodeDirectory, s.cam.ID, "prepare output directory", err)
	}

	cmd := s.sup.opts.Build(s.cam, s.sup.opts.Segments.Dir(s.cam.ID))
	h, err := s.sup.opts.Launcher.Launch(s.sup.ctx, cmd)
	if err != nil {
		msg := process.Redact(err.Error(), cmd.Redact)
		s.logger.Error("Failed to launch ffmpeg", "error", msg)
		s.settleLocked(status.Errored, "launch failed: "+msg)
		// the launcher error may echo the source URL
		return newCameraError(ErrCodeLaunch, s.cam.ID, "launch ffmpeg", errors.New(msg))
	}

	now := time.Now()
	s.handle = h
	s.runID = h.ID()
	s.startedAt = &now
	s.lastRetain = now
	s.state = status.Starting
	s.message = "Starting"
	s.publishLocked()

	s.logger.Info("Camera starting", "run_id", s.runID, "pid", h.PID(), "attempts", s.attempts)

	s.sup.wg.Add(1)
	go s.consume(h)
	return nil
}

// settleLocked moves to Errored or Ended, drops the handle and arms the
// reconnect timer unless the retry limit has been reached.
func (s *session) settleLocked(state, message string) {
	s.handle = nil
	s.runID = ""
	s.startedAt = nil
	s.state = state

	policy := s.sup.opts.Backoff
	exhausted := policy.Exhausted(s.attempts)
	if exhausted {
		s.message = retryLimitMessage
	} else {
		s.message = message
	}
	s.publishLocked()

	if exhausted {
		s.logger.Error("Giving up on camera", "attempts", s.attempts, "last_error", message)
		return
	}

	if s.timer.Pending() {
		return
	}
	delay := policy.Delay(s.attempts)
	s.timerGen++
	gen := s.timerGen
	if s.timer.Schedule(delay, func() { s.reconnect(gen) }) {
		s.logger.Info("Reconnect scheduled", "delay", delay, "attempt", s.attempts+1)
	}
}

// reconnect runs when the backoff timer armed at generation gen fires.
func (s *session) reconnect(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// stopped or manually restarted after the timer fired
	if gen != s.timerGen || (s.state != status.Errored && s.state != status.Ended) {
		s.logger.Debug("Reconnect aborted", "state", s.state)
		return
	}

	s.attempts++
	s.state = status.Reconnecting
	s.message = fmt.Sprintf("Reconnecting (attempt %d)", s.attempts)
	s.publishLocked()

	if err := s.launchLocked(); err != nil {
		s.logger.Warn("Reconnect failed", "attempt", s.attempts, "error", err)
	}
}

// consume delivers one handle's events in order until its channel closes.
func (s *session) consume(h process.Handle) {
	defer s.sup.wg.Done()
	for ev := range h.Events() {
		s.handleEvent(h.ID(), ev)
	}
}

func (s *session) handleEvent(runID string, ev process.Event) {
	s.mu.Lock()
	if s.handle == nil || runID != s.runID {
		s.mu.Unlock()
		s.logger.Debug("Ignoring event from stale process", "run_id", runID, "event", ev.Kind.String())
		return
	}

	switch ev.Kind {
	case process.EventStarted:
		if s.state == status.Starting {
			s.state = status.Streaming
			s.attempts = 0
			s.message = "Streaming"
			s.publishLocked()
			s.logger.Info("Camera streaming", "run_id", runID)
		}
		s.mu.Unlock()

	case process.EventDiagnostic:
		s.mu.Unlock()
		s.logDiagnostic(ev)

	case process.EventProgress:
		sweep := time.Since(s.lastRetain) >= s.sup.opts.RetainInterval
		if sweep {
			s.lastRetain = time.Now()
		}
		s.mu.Unlock()

		metrics.RecordProgress(s.cam.ID, ev.Progress)
		if sweep {
			s.retain()
		}

	case process.EventFailed:
		if ev.Outcome == process.OutcomeDecodeAnomaly {
			s.mu.Unlock()
			s.logger.Warn("Decoding anomaly, still running", "detail", ev.Reason)
			return
		}
		s.logger.Warn("ffmpeg terminated", "run_id", runID, "exit_code", ev.ExitCode, "reason", ev.Reason)
		s.settleLocked(status.Errored, "ffmpeg terminated: "+ev.Reason)
		s.mu.Unlock()

	case process.EventExited:
		s.logger.Info("ffmpeg exited", "run_id", runID, "exit_code", ev.ExitCode)
		s.settleLocked(status.Ended, "Stream ended")
		s.mu.Unlock()

	default:
		s.mu.Unlock()
	}
}

func (s *session) logDiagnostic(ev process.Event) {
	switch ev.Class {
	case process.ClassConnectivity:
		s.ffmpegLogger.Warn(ev.Line, "class", ev.Class.String())
	case process.ClassDecodeAnomaly:
		if ev.Level == "error" || ev.Level == "fatal" || ev.Level == "panic" {
			s.ffmpegLogger.Warn(ev.Line, "class", ev.Class.String())
		} else {
			s.ffmpegLogger.Debug(ev.Line, "class", ev.Class.String())
		}
	default:
		switch ev.Level {
		case "panic", "fatal", "error":
			s.ffmpegLogger.Error(ev.Line)
		case "warning":
			s.ffmpegLogger.Warn(ev.Line)
		case "verbose", "debug", "trace":
			s.ffmpegLogger.Debug(ev.Line)
		default:
			s.ffmpegLogger.Info(ev.Line)
		}
	}
}

func (s *session) retain() {
	removed := s.sup.opts.Segments.Retain(s.cam.ID, s.cam.SegmentRetention)
	if removed > 0 {
		s.logger.Debug("Pruned stale segments", "removed", removed)
		metrics.AddSegmentsPruned(s.cam.ID, removed)
	}
}

// publishLocked pushes the session's projection to the registry. Holding the
// session lock keeps one camera's records in order.
func (s *session) publishLocked() {
	s.sup.opts.Registry.Publish(s.recordLocked())
}

func (s *session) recordLocked() status.Record {
	rec := status.Record{
		CameraID:  s.cam.ID,
		Name:      s.cam.Name,
		Streaming: s.state == status.Streaming,
		Attempts:  s.attempts,
		Status:    s.state,
		Message:   s.message,
		UpdatedAt: time.Now().UTC(),
	}
	if s.startedAt != nil {
		started := *s.startedAt
		rec.StartedAt = &started
	}
	return rec
}
