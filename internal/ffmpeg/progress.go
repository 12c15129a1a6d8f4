package ffmpeg

import (
	"strconv"
	"strings"
	"time"

	"github.com/smazurov/camhls/internal/process"
)

// ProgressParser accumulates the key=value lines ffmpeg writes with
// -progress. A block ends at progress=continue or progress=end.
type ProgressParser struct {
	cur process.Progress
}

// NewProgressParser returns an empty parser.
func NewProgressParser() *ProgressParser {
	return &ProgressParser{}
}

// NewProcessProgressParser adapts NewProgressParser for process.ExecLauncher.
func NewProcessProgressParser() process.ProgressParser {
	return NewProgressParser()
}

// Feed consumes one line and returns the finished block when line closes one.
func (p *ProgressParser) Feed(line string) (process.Progress, bool) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return process.Progress{}, false
	}
	value = strings.TrimSpace(value)

	switch key {
	case "frame":
		p.cur.Frame = parseInt(value)
	case "fps":
		p.cur.FPS = parseFloat(value)
	case "bitrate":
		p.cur.Bitrate = value
	case "total_size":
		p.cur.TotalSize = parseInt(value)
	case "out_time_us", "out_time_ms":
		// ffmpeg writes microseconds under both keys
		p.cur.OutTime = time.Duration(parseInt(value)) * time.Microsecond
	case "dup_frames":
		p.cur.DupFrames = parseInt(value)
	case "drop_frames":
		p.cur.DropFrames = parseInt(value)
	case "speed":
		p.cur.Speed = parseFloat(strings.TrimSuffix(value, "x"))
	case "progress":
		block := p.cur
		block.State = value
		p.cur = process.Progress{}
		return block, true
	}
	return process.Progress{}, false
}

func parseInt(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
