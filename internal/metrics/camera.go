package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/smazurov/camhls/internal/status"
)

var (
	cameraStreaming = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "camera",
		Name:      "streaming",
		Help:      "1 while the camera is producing segments",
	}, []string{"camera_id"})

	cameraReconnectAttempts = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "camera",
		Name:      "reconnect_attempts",
		Help:      "Reconnect attempts since the last confirmed start",
	}, []string{"camera_id"})

	cameraTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "camera",
		Name:      "transitions_total",
		Help:      "Status records published, by target status",
	}, []string{"camera_id", "status"})

	segmentsPruned = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "segments",
		Name:      "pruned_total",
		Help:      "Stale segment files removed by the retention sweep",
	}, []string{"camera_id"})
)

// ObserveStatus is a status.Observer that mirrors records into gauges.
// Progress metrics are dropped once the camera has no live process.
func ObserveStatus(rec status.Record) {
	streaming := 0.0
	if rec.Streaming {
		streaming = 1
	}
	cameraStreaming.WithLabelValues(rec.CameraID).Set(streaming)
	cameraReconnectAttempts.WithLabelValues(rec.CameraID).Set(float64(rec.Attempts))
	cameraTransitions.WithLabelValues(rec.CameraID, rec.Status).Inc()

	switch rec.Status {
	case status.Stopped, status.Ended, status.Errored:
		DeleteFFmpegMetrics(rec.CameraID)
	}
}

// AddSegmentsPruned counts segments removed by retention.
func AddSegmentsPruned(cameraID string, n int) {
	if n > 0 {
		segmentsPruned.WithLabelValues(cameraID).Add(float64(n))
	}
}
