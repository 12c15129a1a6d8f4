package exporters

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/camhls/internal/events"
	"github.com/smazurov/camhls/internal/metrics"
	"github.com/smazurov/camhls/internal/process"
)

type mockEventBus struct {
	mu        sync.Mutex
	events    []events.Event
	published chan struct{}
}

func newMockEventBus() *mockEventBus {
	return &mockEventBus{published: make(chan struct{}, 100)}
}

func (m *mockEventBus) Publish(ev events.Event) {
	m.mu.Lock()
	m.events = append(m.events, ev)
	m.mu.Unlock()
	select {
	case m.published <- struct{}{}:
	default:
	}
}

func (m *mockEventBus) getEvents() []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]events.Event, len(m.events))
	copy(result, m.events)
	return result
}

// serveAsync runs Serve in a goroutine and returns its result channel.
func serveAsync(ctx context.Context, s *SSEExporter) <-chan error {
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()
	return done
}

func TestSSEExporterPublishesMetrics(t *testing.T) {
	cameraID := "sse-test-camera"
	metrics.RecordProgress(cameraID, process.Progress{Frame: 90, FPS: 30, DropFrames: 5, DupFrames: 2})
	defer metrics.DeleteFFmpegMetrics(cameraID)

	mock := newMockEventBus()
	exporter := NewSSEExporter(mock)
	exporter.interval = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := serveAsync(ctx, exporter)

	select {
	case <-mock.published:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for metrics publish")
	}
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve returned %v, want context.Canceled", err)
	}

	var found bool
	for _, ev := range mock.getEvents() {
		cme, ok := ev.(events.CameraMetricsEvent)
		if !ok || cme.CameraID != cameraID {
			continue
		}
		found = true
		if cme.FPS != 30 || cme.DropFrames != 5 || cme.DupFrames != 2 || cme.Frame != 90 {
			t.Errorf("event = %+v", cme)
		}
		if cme.Timestamp == "" {
			t.Error("expected a timestamp")
		}
		break
	}
	if !found {
		t.Error("expected CameraMetricsEvent for test camera")
	}
}

func TestSSEExporterSkipsCamerasWithoutMetrics(t *testing.T) {
	cameraID := "sse-no-metrics-camera"
	metrics.DeleteFFmpegMetrics(cameraID)

	mock := newMockEventBus()
	exporter := NewSSEExporter(mock)
	exporter.interval = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	<-serveAsync(ctx, exporter)

	for _, ev := range mock.getEvents() {
		if cme, ok := ev.(events.CameraMetricsEvent); ok && cme.CameraID == cameraID {
			t.Error("expected no events for a camera without metrics")
		}
	}
}

func TestSSEExporterStopsPublishingAfterCancel(t *testing.T) {
	cameraID := "sse-cancel-camera"
	metrics.RecordProgress(cameraID, process.Progress{FPS: 30})
	defer metrics.DeleteFFmpegMetrics(cameraID)

	mock := newMockEventBus()
	exporter := NewSSEExporter(mock)
	exporter.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := serveAsync(ctx, exporter)
	time.Sleep(30 * time.Millisecond)
	cancel()
	<-done

	countAfterStop := len(mock.getEvents())
	time.Sleep(30 * time.Millisecond)
	if countAfterWait := len(mock.getEvents()); countAfterWait != countAfterStop {
		t.Errorf("events published after stop: got %d, want %d", countAfterWait, countAfterStop)
	}
}
