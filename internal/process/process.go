package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/smazurov/camhls/internal/logging"
)

const (
	defaultKillGrace = 5 * time.Second
	eventBuffer      = 256
	maxLineLength    = 1024 * 1024
)

// Command is a program invocation. Redact lists substrings (such as
// credentials embedded in URLs) that must never reach the logs.
type Command struct {
	Path   string
	Args   []string
	Dir    string
	Redact []string
}

// String renders the command line with redacted values masked.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, c.Path)
	parts = append(parts, c.Args...)
	return Redact(strings.Join(parts, " "), c.Redact)
}

// Launcher starts commands.
type Launcher interface {
	Launch(ctx context.Context, cmd Command) (Handle, error)
}

// Handle is a running command.
type Handle interface {
	ID() string
	PID() int
	Events() <-chan Event
	// Terminate requests a graceful stop and returns without waiting.
	Terminate()
	// Done is closed once the process has been reaped and Events is closed.
	Done() <-chan struct{}
}

// ExecLauncher runs commands with os/exec in their own process group.
type ExecLauncher struct {
	Logger logging.Logger
	// Classifier labels stderr lines. Nil treats every line as info.
	Classifier Classifier
	// NewProgressParser returns a parser for a fresh stdout stream. When nil,
	// the first stdout line confirms readiness and no progress is reported.
	NewProgressParser func() ProgressParser
	// KillGrace is how long Terminate waits before SIGKILL. Zero means 5s.
	KillGrace time.Duration
}

// Launch starts cmd. Cancelling ctx terminates the process.
func (l *ExecLauncher) Launch(ctx context.Context, cmd Command) (Handle, error) {
	if cmd.Path == "" {
		return nil, errors.New("empty command")
	}

	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	grace := l.KillGrace
	if grace <= 0 {
		grace = defaultKillGrace
	}

	c := exec.Command(cmd.Path, cmd.Args...)
	c.Dir = cmd.Dir
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := c.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := c.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := c.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", cmd.Path, err)
	}

	h := &execHandle{
		id:         uuid.NewString(),
		cmd:        c,
		events:     make(chan Event, eventBuffer),
		done:       make(chan struct{}),
		logger:     logger,
		classifier: l.Classifier,
		grace:      grace,
		redact:     cmd.Redact,
	}
	if l.NewProgressParser != nil {
		h.progress = l.NewProgressParser()
	}

	logger.Info("Process started", "run_id", h.id, "pid", h.PID(), "command", cmd.String())

	var readers sync.WaitGroup
	readers.Add(2)
	go func() {
		defer readers.Done()
		h.readStdout(stdout)
	}()
	go func() {
		defer readers.Done()
		h.readStderr(stderr)
	}()

	go func() {
		readers.Wait()
		h.finish(c.Wait())
	}()

	go func() {
		select {
		case <-ctx.Done():
			h.Terminate()
		case <-h.done:
		}
	}()

	return h, nil
}

type execHandle struct {
	id         string
	cmd        *exec.Cmd
	events     chan Event
	done       chan struct{}
	logger     logging.Logger
	classifier Classifier
	progress   ProgressParser
	grace      time.Duration
	redact     []string

	terminateOnce sync.Once
}

func (h *execHandle) ID() string { return h.id }

func (h *execHandle) Events() <-chan Event { return h.events }

func (h *execHandle) Done() <-chan struct{} { return h.done }

func (h *execHandle) PID() int {
	if h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}

// Terminate sends SIGINT to the process group once, then SIGKILL after the
// grace period if the group has not exited.
func (h *execHandle) Terminate() {
	h.terminateOnce.Do(func() {
		select {
		case <-h.done:
			return
		default:
		}

		pid := h.PID()
		h.logger.Info("Sending SIGINT to process group", "run_id", h.id, "pid", pid)
		if err := syscall.Kill(-pid, syscall.SIGINT); err != nil && !errors.Is(err, syscall.ESRCH) {
			h.logger.Warn("Failed to send SIGINT", "run_id", h.id, "error", err)
		}

		go func() {
			select {
			case <-h.done:
			case <-time.After(h.grace):
				h.logger.Warn("Graceful shutdown timeout, forcing kill", "run_id", h.id, "pid", pid, "timeout", h.grace)
				if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
					h.logger.Error("Failed to kill process group", "run_id", h.id, "error", err)
				}
			}
		}()
	})
}

func (h *execHandle) readStdout(r io.Reader) {
	started := false
	h.scan(r, "stdout", func(line string) {
		if h.progress == nil {
			if !started {
				started = true
				h.events <- Event{Kind: EventStarted, Line: line}
			}
			return
		}

		p, ok := h.progress.Feed(line)
		if !ok {
			return
		}
		if !started {
			started = true
			h.events <- Event{Kind: EventStarted}
		}
		h.events <- Event{Kind: EventProgress, Progress: p}
	})
}

func (h *execHandle) readStderr(r io.Reader) {
	h.scan(r, "stderr", func(line string) {
		line = Redact(line, h.redact)

		d := Diagnosis{Level: "info", Message: line, Class: ClassInfo}
		if h.classifier != nil {
			d = h.classifier(line)
		}

		h.events <- Event{Kind: EventDiagnostic, Line: d.Message, Level: d.Level, Class: d.Class}

		if d.Class == ClassDecodeAnomaly && isErrorLevel(d.Level) {
			h.events <- Event{Kind: EventFailed, Outcome: OutcomeDecodeAnomaly, Line: d.Message, Level: d.Level, Class: d.Class, Reason: d.Message}
		}
	})
}

// scan feeds each line of r to fn. On a read error the rest of the stream is
// discarded so the child never blocks on a full pipe.
func (h *execHandle) scan(r io.Reader, source string, fn func(string)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	for scanner.Scan() {
		fn(strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		h.logger.Warn("Error reading output", "run_id", h.id, "source", source, "error", err)
		_, _ = io.Copy(io.Discard, r)
	}
}

func (h *execHandle) finish(waitErr error) {
	code := exitCodeFromError(waitErr)
	if waitErr == nil {
		h.logger.Info("Process exited", "run_id", h.id, "exit_code", code)
		h.events <- Event{Kind: EventExited, ExitCode: 0, Reason: "exit status 0"}
	} else {
		reason := Redact(waitErr.Error(), h.redact)
		h.logger.Info("Process terminated", "run_id", h.id, "exit_code", code, "reason", reason)
		h.events <- Event{Kind: EventFailed, Outcome: OutcomeTerminated, ExitCode: code, Reason: reason}
	}
	close(h.events)
	close(h.done)
}

// exitCodeFromError returns 0 for nil, the exit code for an ExitError, or 1
// for anything else. A process killed by a signal reports -1.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}

func isErrorLevel(level string) bool {
	switch level {
	case "error", "fatal", "panic":
		return true
	}
	return false
}

// Redact masks every non-empty secret in s.
func Redact(s string, secrets []string) string {
	for _, secret := range secrets {
		if secret != "" {
			s = strings.ReplaceAll(s, secret, "***")
		}
	}
	return s
}

// LookPath reports whether the launcher can find path.
func LookPath(path string) error {
	if _, err := exec.LookPath(path); err != nil {
		return fmt.Errorf("%s not found: %w", path, err)
	}
	return nil
}
