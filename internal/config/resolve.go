package config

import (
	"fmt"
	"slices"
	"strings"
)

// Fallbacks used when neither the camera nor the defaults set a field.
const (
	FallbackTransport        = "tcp"
	FallbackVideoMode        = "copy"
	FallbackAudioMode        = "transcode"
	FallbackAudioStream      = 0
	FallbackAudioEncoding    = "aac"
	FallbackDecoder          = "none"
	FallbackErrorDetection   = "ignore_err"
	FallbackSegmentRetention = 6
	FallbackFrameRateCap     = 0
	FallbackResolutionCap    = 0
	FallbackThreadCap        = 0
	FallbackSegmentSeconds   = 2
)

var (
	transports      = []string{"tcp", "udp", "http"}
	videoModes      = []string{"copy", "transcode"}
	audioModes      = []string{"copy", "transcode", "none"}
	audioEncodings  = []string{"aac", "opus", "mp3"}
	decoders        = []string{"none", "auto", "vaapi", "cuda", "qsv", "videotoolbox", "drm"}
	errorDetections = []string{"ignore_err", "careful", "compliant", "aggressive", "none"}
)

// EffectiveConfig is a camera with every optional field concrete.
type EffectiveConfig struct {
	ID   string
	Name string
	URL  string

	Transport        string
	VideoMode        string
	AudioMode        string
	AudioStream      int
	AudioEncoding    string
	Decoder          string
	ErrorDetection   string
	SegmentRetention int
	FrameRateCap     int
	ResolutionCap    int
	ThreadCap        int
	SegmentSeconds   int
}

// Resolve merges a camera with the global defaults. It never fails: unset or
// unrecognised values fall through to the defaults, then to the fallbacks.
func Resolve(cam CameraConfig, defaults Defaults) EffectiveConfig {
	return EffectiveConfig{
		ID:   cam.ID,
		Name: cam.Name,
		URL:  cam.URL,

		Transport:        pickString(transports, FallbackTransport, cam.Transport, defaults.Transport),
		VideoMode:        pickString(videoModes, FallbackVideoMode, cam.VideoMode, defaults.VideoMode),
		AudioMode:        pickString(audioModes, FallbackAudioMode, cam.AudioMode, defaults.AudioMode),
		AudioStream:      pickInt(FallbackAudioStream, cam.AudioStream, defaults.AudioStream),
		AudioEncoding:    pickString(audioEncodings, FallbackAudioEncoding, cam.AudioEncoding, defaults.AudioEncoding),
		Decoder:          pickString(decoders, FallbackDecoder, cam.Decoder, defaults.Decoder),
		ErrorDetection:   pickString(errorDetections, FallbackErrorDetection, cam.ErrorDetection, defaults.ErrorDetection),
		SegmentRetention: pickPositive(FallbackSegmentRetention, cam.SegmentRetention, defaults.SegmentRetention),
		FrameRateCap:     pickInt(FallbackFrameRateCap, cam.FrameRateCap, defaults.FrameRateCap),
		ResolutionCap:    pickInt(FallbackResolutionCap, cam.ResolutionCap, defaults.ResolutionCap),
		ThreadCap:        pickInt(FallbackThreadCap, cam.ThreadCap, defaults.ThreadCap),
		SegmentSeconds:   pickPositive(FallbackSegmentSeconds, nil, defaults.SegmentSeconds),
	}
}

// Lint reports optional values that Resolve will ignore. The result is meant
// for startup warnings only.
func Lint(cam CameraConfig, defaults Defaults) []string {
	var warnings []string
	check := func(scope, field, value string, allowed []string) {
		if isUnset(value) || slices.Contains(allowed, strings.ToLower(value)) {
			return
		}
		warnings = append(warnings, fmt.Sprintf("%s: unknown %s %q (expected one of %s)",
			scope, field, value, strings.Join(allowed, ", ")))
	}

	for _, scope := range []struct {
		name                                                  string
		transport, video, audio, encoding, decoder, detection string
	}{
		{"defaults", defaults.Transport, defaults.VideoMode, defaults.AudioMode, defaults.AudioEncoding, defaults.Decoder, defaults.ErrorDetection},
		{"camera " + cam.ID, cam.Transport, cam.VideoMode, cam.AudioMode, cam.AudioEncoding, cam.Decoder, cam.ErrorDetection},
	} {
		check(scope.name, "transport", scope.transport, transports)
		check(scope.name, "video_mode", scope.video, videoModes)
		check(scope.name, "audio_mode", scope.audio, audioModes)
		check(scope.name, "audio_encoding", scope.encoding, audioEncodings)
		check(scope.name, "decoder", scope.decoder, decoders)
		check(scope.name, "error_detection", scope.detection, errorDetections)
	}
	return warnings
}

func isUnset(value string) bool {
	return value == "" || strings.EqualFold(value, "default")
}

func pickString(allowed []string, fallback string, candidates ...string) string {
	for _, c := range candidates {
		if isUnset(c) {
			continue
		}
		if v := strings.ToLower(c); slices.Contains(allowed, v) {
			return v
		}
	}
	return fallback
}

func pickInt(fallback int, candidates ...*int) int {
	for _, c := range candidates {
		if c != nil && *c >= 0 {
			return *c
		}
	}
	return fallback
}

// pickPositive is pickInt for fields where zero is meaningless.
func pickPositive(fallback int, candidates ...*int) int {
	for _, c := range candidates {
		if c != nil && *c > 0 {
			return *c
		}
	}
	return fallback
}
