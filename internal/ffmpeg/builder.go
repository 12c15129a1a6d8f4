package ffmpeg

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/smazurov/camhls/internal/config"
	"github.com/smazurov/camhls/internal/process"
	"github.com/smazurov/camhls/internal/segments"
)

// DefaultPath is used when BuildOptions.FFmpegPath is empty.
const DefaultPath = "ffmpeg"

// BuildOptions holds settings shared by every camera.
type BuildOptions struct {
	FFmpegPath string
}

// Base returns the flags every camhls ffmpeg invocation starts with.
func Base() []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-loglevel", "level+warning",
		"-progress", "pipe:1",
		"-nostats",
	}
}

// BuildHLSCommand builds the ffmpeg invocation that pulls cam's feed and
// writes a rolling HLS playlist into outDir.
func BuildHLSCommand(cam config.EffectiveConfig, outDir string, opts BuildOptions) process.Command {
	path := opts.FFmpegPath
	if path == "" {
		path = DefaultPath
	}

	args := Base()

	// Input
	if isRTSP(cam.URL) {
		args = append(args, "-rtsp_transport", cam.Transport)
	}
	args = append(args, optionArgs(ErrorDetectionOptions, cam.ErrorDetection)...)
	args = append(args, optionArgs(DecoderOptions, cam.Decoder)...)
	if cam.ThreadCap > 0 {
		args = append(args, "-threads", strconv.Itoa(cam.ThreadCap))
	}
	args = append(args, "-i", cam.URL)

	args = append(args, "-map", "0:v:0")
	if cam.AudioMode != "none" {
		args = append(args, "-map", fmt.Sprintf("0:a:%d?", cam.AudioStream))
	}

	args = append(args, videoArgs(cam)...)
	args = append(args, audioArgs(cam)...)

	// Output
	args = append(args,
		"-f", "hls",
		"-hls_time", strconv.Itoa(cam.SegmentSeconds),
		"-hls_list_size", strconv.Itoa(cam.SegmentRetention),
		"-hls_flags", "delete_segments+omit_endlist+independent_segments",
		"-start_number", "0",
		"-hls_segment_filename", filepath.Join(outDir, segments.SegmentPattern),
		filepath.Join(outDir, segments.PlaylistName),
	)

	cmd := process.Command{Path: path, Args: args}
	if creds := credentials(cam.URL); creds != "" {
		cmd.Redact = []string{creds}
	}
	return cmd
}

func videoArgs(cam config.EffectiveConfig) []string {
	if cam.VideoMode != "transcode" {
		return []string{"-c:v", "copy"}
	}

	args := []string{
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-tune", "zerolatency",
		"-sc_threshold", "0",
		"-force_key_frames", fmt.Sprintf("expr:gte(t,n_forced*%d)", cam.SegmentSeconds),
	}

	var filters []string
	if cam.ResolutionCap > 0 {
		filters = append(filters, fmt.Sprintf("scale=-2:'min(ih,%d)'", cam.ResolutionCap))
	}
	if cam.FrameRateCap > 0 {
		filters = append(filters, fmt.Sprintf("fps=%d", cam.FrameRateCap))
	}
	if len(filters) > 0 {
		args = append(args, "-vf", strings.Join(filters, ","))
	}
	return args
}

func audioArgs(cam config.EffectiveConfig) []string {
	switch cam.AudioMode {
	case "none":
		return []string{"-an"}
	case "copy":
		return []string{"-c:a", "copy"}
	}

	switch cam.AudioEncoding {
	case "opus":
		return []string{"-c:a", "libopus", "-b:a", "128k", "-ar", "48000"}
	case "mp3":
		return []string{"-c:a", "libmp3lame", "-b:a", "128k"}
	default:
		return []string{"-c:a", "aac", "-b:a", "128k"}
	}
}

func isRTSP(url string) bool {
	lower := strings.ToLower(url)
	return strings.HasPrefix(lower, "rtsp://") || strings.HasPrefix(lower, "rtsps://")
}

// credentials returns the userinfo part of a URL ("user:pass"), or "".
func credentials(url string) string {
	_, rest, ok := strings.Cut(url, "://")
	if !ok {
		return ""
	}
	if slash := strings.IndexByte(rest, '/'); slash >= 0 {
		rest = rest[:slash]
	}
	at := strings.LastIndexByte(rest, '@')
	if at <= 0 {
		return ""
	}
	return rest[:at]
}
