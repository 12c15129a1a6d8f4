// Package manifest serves a camera's HLS playlist in a form that is always
// valid, whether or not ffmpeg is currently running.
package manifest

import (
	"bytes"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"strings"
)

// ContentType is the media type of an HLS playlist.
const ContentType = "application/vnd.apple.mpegurl"

const endList = "#EXT-X-ENDLIST"

// Empty is returned when no playlist can be read. Players keep polling a
// well-formed empty playlist instead of failing.
var Empty = []byte("#EXTM3U\n" +
	"#EXT-X-VERSION:3\n" +
	"#EXT-X-TARGETDURATION:2\n" +
	"#EXT-X-MEDIA-SEQUENCE:0\n")

// PlaylistLocator maps a camera to its playlist file.
type PlaylistLocator interface {
	PlaylistPath(cameraID string) string
}

// Proxy renders playlists for HTTP clients.
type Proxy struct {
	files  PlaylistLocator
	prefix string
	logger *slog.Logger
}

// NewProxy creates a proxy that rewrites segment references to
// <prefix>/<camera id>/<segment>.
func NewProxy(files PlaylistLocator, prefix string, logger *slog.Logger) *Proxy {
	if logger == nil {
		logger = slog.Default()
	}
	prefix = "/" + strings.Trim(prefix, "/")
	return &Proxy{files: files, prefix: prefix, logger: logger}
}

// Render returns the camera's playlist with the end marker removed and
// segment lines made absolute. A missing or unreadable playlist yields Empty.
func (p *Proxy) Render(cameraID string) []byte {
	data, err := os.ReadFile(p.files.PlaylistPath(cameraID))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			p.logger.Warn("Failed to read playlist, serving empty manifest", "camera_id", cameraID, "error", err)
		}
		return bytes.Clone(Empty)
	}
	return Rewrite(data, path.Join(p.prefix, cameraID))
}

// Rewrite drops #EXT-X-ENDLIST and joins bare segment lines onto base.
// Directive lines and line endings are kept as they are.
func Rewrite(data []byte, base string) []byte {
	var out bytes.Buffer
	out.Grow(len(data) + 64)

	for len(data) > 0 {
		line := data
		rest := []byte(nil)
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			line, rest = data[:i+1], data[i+1:]
		}
		data = rest

		content := bytes.TrimRight(line, "\r\n")
		ending := line[len(content):]

		switch {
		case bytes.Equal(bytes.TrimSpace(content), []byte(endList)):
			continue
		case isBareSegment(content):
			out.WriteString(base)
			out.WriteByte('/')
			out.Write(bytes.TrimSpace(content))
			out.Write(ending)
		default:
			out.Write(line)
		}
	}
	return out.Bytes()
}

func isBareSegment(line []byte) bool {
	trimmed := bytes.TrimSpace(line)
	return len(trimmed) > 0 &&
		trimmed[0] != '#' &&
		!bytes.ContainsRune(trimmed, '/')
}
