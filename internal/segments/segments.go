// Package segments manages the per-camera HLS output directories.
package segments

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

const (
	// PlaylistName is the playlist file ffmpeg writes in each camera directory.
	PlaylistName = "index.m3u8"
	// SegmentPattern is the ffmpeg -hls_segment_filename template.
	SegmentPattern = "segment_%d.ts"
	// retainSlack covers the segment being written plus the one ffmpeg is
	// about to delete.
	retainSlack = 2
)

var segmentName = regexp.MustCompile(`^segment_(\d+)\.ts$`)

// IsSegment reports whether name is an HLS segment produced by ffmpeg.
func IsSegment(name string) bool {
	return segmentName.MatchString(name)
}

// isArtifact reports whether name is something ffmpeg produced and Ensure
// should clear before a fresh launch.
func isArtifact(name string) bool {
	return IsSegment(name) ||
		strings.HasSuffix(name, ".m3u8") ||
		strings.HasSuffix(name, ".m3u8.tmp")
}

// Manager owns the output root. Each camera gets <root>/<camera id>.
type Manager struct {
	root   string
	logger *slog.Logger
}

// NewManager creates a manager rooted at root.
func NewManager(root string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{root: root, logger: logger}
}

// Root returns the output root.
func (m *Manager) Root() string {
	return m.root
}

// Dir returns the output directory for a camera.
func (m *Manager) Dir(cameraID string) string {
	return filepath.Join(m.root, cameraID)
}

// PlaylistPath returns the playlist path for a camera.
func (m *Manager) PlaylistPath(cameraID string) string {
	return filepath.Join(m.Dir(cameraID), PlaylistName)
}

// Ensure prepares a clean output directory for a camera. A missing directory
// is created; an existing one has its playlists and segments removed while
// unrelated files stay. Individual deletion failures are logged and skipped.
func (m *Manager) Ensure(cameraID string) error {
	dir := m.Dir(cameraID)
	logger := m.logger.With("camera_id", cameraID, "dir", dir)

	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
			return fmt.Errorf("failed to create output directory: %w", mkErr)
		}
		logger.Debug("Created output directory")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to list output directory: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !isArtifact(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			logger.Warn("Failed to remove stale artifact", "file", entry.Name(), "error", rmErr)
			continue
		}
		removed++
	}

	if removed > 0 {
		logger.Debug("Cleared stale artifacts", "removed", removed)
	}
	return nil
}

// Retain deletes the oldest segments so that at most keep (plus a small
// slack) remain. It returns how many files were removed. ffmpeg prunes its
// own segments; this catches the ones left behind when it dies mid-write.
func (m *Manager) Retain(cameraID string, keep int) int {
	if keep <= 0 {
		return 0
	}

	dir := m.Dir(cameraID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			m.logger.Warn("Failed to list output directory", "camera_id", cameraID, "error", err)
		}
		return 0
	}

	type segment struct {
		name string
		seq  uint64
	}
	var segments []segment
	for _, entry := range entries {
		match := segmentName.FindStringSubmatch(entry.Name())
		if entry.IsDir() || match == nil {
			continue
		}
		seq, parseErr := strconv.ParseUint(match[1], 10, 64)
		if parseErr != nil {
			continue
		}
		segments = append(segments, segment{name: entry.Name(), seq: seq})
	}

	excess := len(segments) - (keep + retainSlack)
	if excess <= 0 {
		return 0
	}

	slices.SortFunc(segments, func(a, b segment) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})

	removed := 0
	for _, seg := range segments[:excess] {
		if rmErr := os.Remove(filepath.Join(dir, seg.name)); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			m.logger.Warn("Failed to prune segment", "camera_id", cameraID, "file", seg.name, "error", rmErr)
			continue
		}
		removed++
	}
	return removed
}

// SegmentPath resolves a segment file for serving. It returns false if name
// is not a segment file name.
func (m *Manager) SegmentPath(cameraID, name string) (string, bool) {
	if !IsSegment(name) {
		return "", false
	}
	return filepath.Join(m.Dir(cameraID), name), true
}
