// Package metrics provides Prometheus metrics for cameras and their ffmpeg
// processes.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/smazurov/camhls/internal/process"
)

const namespace = "camhls"

var (
	ffmpegFPS = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ffmpeg",
		Name:      "fps",
		Help:      "Current ffmpeg output frame rate",
	}, []string{"camera_id"})

	ffmpegSpeed = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ffmpeg",
		Name:      "processing_speed",
		Help:      "ffmpeg processing speed relative to realtime",
	}, []string{"camera_id"})

	ffmpegDroppedFrames = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ffmpeg",
		Name:      "dropped_frames",
		Help:      "Frames dropped by the current ffmpeg process",
	}, []string{"camera_id"})

	ffmpegDuplicateFrames = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ffmpeg",
		Name:      "duplicate_frames",
		Help:      "Frames duplicated by the current ffmpeg process",
	}, []string{"camera_id"})

	// Local cache for the SSE exporter and the API.
	ffmpegCache   = make(map[string]*FFmpegCameraMetrics)
	ffmpegCacheMu sync.RWMutex
)

// FFmpegCameraMetrics holds the latest progress values for a camera.
type FFmpegCameraMetrics struct {
	Frame           int64
	FPS             float64
	Speed           float64
	DroppedFrames   int64
	DuplicateFrames int64
}

// RecordProgress updates the gauges and cache from one progress block.
func RecordProgress(cameraID string, p process.Progress) {
	ffmpegFPS.WithLabelValues(cameraID).Set(p.FPS)
	ffmpegSpeed.WithLabelValues(cameraID).Set(p.Speed)
	ffmpegDroppedFrames.WithLabelValues(cameraID).Set(float64(p.DropFrames))
	ffmpegDuplicateFrames.WithLabelValues(cameraID).Set(float64(p.DupFrames))

	ffmpegCacheMu.Lock()
	ffmpegCache[cameraID] = &FFmpegCameraMetrics{
		Frame:           p.Frame,
		FPS:             p.FPS,
		Speed:           p.Speed,
		DroppedFrames:   p.DropFrames,
		DuplicateFrames: p.DupFrames,
	}
	ffmpegCacheMu.Unlock()
}

// DeleteFFmpegMetrics removes all ffmpeg metrics for a camera.
func DeleteFFmpegMetrics(cameraID string) {
	ffmpegFPS.DeleteLabelValues(cameraID)
	ffmpegSpeed.DeleteLabelValues(cameraID)
	ffmpegDroppedFrames.DeleteLabelValues(cameraID)
	ffmpegDuplicateFrames.DeleteLabelValues(cameraID)

	ffmpegCacheMu.Lock()
	delete(ffmpegCache, cameraID)
	ffmpegCacheMu.Unlock()
}

// GetFFmpegMetrics returns a copy of a camera's latest values, or nil.
func GetFFmpegMetrics(cameraID string) *FFmpegCameraMetrics {
	ffmpegCacheMu.RLock()
	defer ffmpegCacheMu.RUnlock()
	if m, ok := ffmpegCache[cameraID]; ok {
		dup := *m
		return &dup
	}
	return nil
}

// GetAllFFmpegMetrics returns copies for every camera with a live process.
func GetAllFFmpegMetrics() map[string]*FFmpegCameraMetrics {
	ffmpegCacheMu.RLock()
	defer ffmpegCacheMu.RUnlock()
	result := make(map[string]*FFmpegCameraMetrics, len(ffmpegCache))
	for id, m := range ffmpegCache {
		dup := *m
		result[id] = &dup
	}
	return result
}
