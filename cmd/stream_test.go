package cmd

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/camhls/internal/backoff"
	"github.com/smazurov/camhls/internal/config"
	"github.com/smazurov/camhls/internal/process"
	"github.com/smazurov/camhls/internal/segments"
	"github.com/smazurov/camhls/internal/status"
)

type liveHandle struct {
	events chan process.Event
	done   chan struct{}
	once   sync.Once
}

func newLiveHandle() *liveHandle {
	h := &liveHandle{events: make(chan process.Event, 8), done: make(chan struct{})}
	h.events <- process.Event{Kind: process.EventStarted}
	return h
}

func (h *liveHandle) ID() string                   { return "run" }
func (h *liveHandle) PID() int                     { return 1 }
func (h *liveHandle) Events() <-chan process.Event { return h.events }
func (h *liveHandle) Done() <-chan struct{}        { return h.done }

func (h *liveHandle) Terminate() {
	h.once.Do(func() {
		h.events <- process.Event{Kind: process.EventFailed, Outcome: process.OutcomeTerminated, Reason: "signal: terminated"}
		close(h.events)
		close(h.done)
	})
}

type recordingLauncher struct {
	mu       sync.Mutex
	commands []process.Command
	handles  []*liveHandle
}

func (l *recordingLauncher) Launch(_ context.Context, cmd process.Command) (process.Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	h := newLiveHandle()
	l.commands = append(l.commands, cmd)
	l.handles = append(l.handles, h)
	return h, nil
}

func (l *recordingLauncher) launches() []process.Command {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.commands)
}

func (l *recordingLauncher) handle(i int) *liveHandle {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.handles[i]
}

func newTestRunner(t *testing.T) (*streamRunner, *recordingLauncher) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	launcher := &recordingLauncher{}
	runner := newStreamRunner(streamRunnerOptions{
		Launcher:   launcher,
		Segments:   segments.NewManager(t.TempDir(), logger),
		FFmpegPath: "/opt/ffmpeg",
		Backoff:    backoff.Policy{Initial: time.Hour, Max: time.Hour},
		Logger:     logger,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = runner.Shutdown(ctx)
	})
	return runner, launcher
}

func waitStreaming(t *testing.T, r *streamRunner) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if rec, ok := r.status(); ok && rec.Status == status.Streaming {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	rec, _ := r.status()
	t.Fatalf("camera never streamed, last status %q", rec.Status)
}

func TestStreamRunnerAppliesOnlyChanges(t *testing.T) {
	runner, launcher := newTestRunner(t)
	cam := config.Resolve(config.CameraConfig{ID: "front", Name: "Front", URL: "rtsp://cam/1"}, config.Defaults{})

	if err := runner.Run(cam); err != nil {
		t.Fatalf("Run: %v", err)
	}
	waitStreaming(t, runner)

	runner.Apply(cam)
	if n := len(launcher.launches()); n != 1 {
		t.Fatalf("unchanged config relaunched: %d launches", n)
	}

	moved := cam
	moved.URL = "rtsp://cam/2"
	runner.Apply(moved)
	waitStreaming(t, runner)

	cmds := launcher.launches()
	if len(cmds) != 2 {
		t.Fatalf("launches = %d, want 2", len(cmds))
	}
	if cmds[1].Path != "/opt/ffmpeg" || !slices.Contains(cmds[1].Args, "rtsp://cam/2") {
		t.Errorf("restart command = %s", cmds[1].String())
	}
	select {
	case <-launcher.handle(0).Done():
	default:
		t.Error("previous ffmpeg still running after restart")
	}
}

func TestStreamRunnerShutdown(t *testing.T) {
	runner, launcher := newTestRunner(t)
	cam := config.Resolve(config.CameraConfig{ID: "yard", Name: "Yard", URL: "rtsp://cam/3"}, config.Defaults{})

	if err := runner.Run(cam); err != nil {
		t.Fatalf("Run: %v", err)
	}
	waitStreaming(t, runner)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := runner.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	select {
	case <-launcher.handle(0).Done():
	default:
		t.Error("ffmpeg not terminated on shutdown")
	}
}

func TestFindCamera(t *testing.T) {
	cams := []config.EffectiveConfig{{ID: "a"}, {ID: "b"}}
	if cam, ok := findCamera(cams, "b"); !ok || cam.ID != "b" {
		t.Errorf("findCamera(b) = %+v, %v", cam, ok)
	}
	if _, ok := findCamera(cams, "c"); ok {
		t.Error("findCamera(c) found a camera")
	}
}
