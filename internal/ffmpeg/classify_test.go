package ffmpeg

import (
	"testing"
	"time"

	"github.com/smazurov/camhls/internal/process"
)

func TestSplitLevel(t *testing.T) {
	tests := []struct {
		line      string
		wantLevel string
		wantMsg   string
	}{
		{"[error] Connection refused", "error", "Connection refused"},
		{"[h264 @ 0x55d0] [warning] concealing 12 DC errors", "warning", "[h264 @ 0x55d0] concealing 12 DC errors"},
		{"[h264 @ 0x55d0] no level here", "info", "[h264 @ 0x55d0] no level here"},
		{"plain line", "info", "plain line"},
		{"[]", "info", "[]"},
		{"[in#0/rtsp @ 0x1] [tcp @ 0x2] [error] reset", "error", "[in#0/rtsp @ 0x1] [tcp @ 0x2] reset"},
		{"[info]no space", "info", "[info]no space"},
	}
	for _, tt := range tests {
		level, msg := SplitLevel(tt.line)
		if level != tt.wantLevel || msg != tt.wantMsg {
			t.Errorf("SplitLevel(%q) = %q, %q; want %q, %q", tt.line, level, msg, tt.wantLevel, tt.wantMsg)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		line      string
		wantClass process.Class
		wantLevel string
	}{
		{"[tcp @ 0x1] [error] Connection to tcp://10.0.0.5:554 failed: Connection refused", process.ClassConnectivity, "error"},
		{"[rtsp @ 0x1] [error] method DESCRIBE failed: 401 Unauthorized", process.ClassConnectivity, "error"},
		{"[error] rtsp://cam/stream: Network is unreachable", process.ClassConnectivity, "error"},
		{"[in#0/rtsp @ 0x1] [error] Error opening input: End of file", process.ClassConnectivity, "error"},
		{"[h264 @ 0x1] [error] error while decoding MB 12 34, bytestream -5", process.ClassDecodeAnomaly, "error"},
		{"[h264 @ 0x1] [warning] concealing 120 DC, 120 AC, 120 MV errors in P frame", process.ClassDecodeAnomaly, "warning"},
		{"[h264 @ 0x1] [error] non-existing PPS 0 referenced", process.ClassDecodeAnomaly, "error"},
		{"[rtsp @ 0x1] [warning] max delay reached. need to consume packet", process.ClassDecodeAnomaly, "warning"},
		{"[rtsp @ 0x1] [warning] RTP: missed 3 packets", process.ClassDecodeAnomaly, "warning"},
		{"[hls @ 0x1] [info] Opening 'segment_4.ts' for writing", process.ClassInfo, "info"},
		{"[warning] Guessed Channel Layout: mono", process.ClassInfo, "warning"},
	}
	for _, tt := range tests {
		d := Classify(tt.line)
		if d.Class != tt.wantClass {
			t.Errorf("Classify(%q).Class = %v, want %v", tt.line, d.Class, tt.wantClass)
		}
		if d.Level != tt.wantLevel {
			t.Errorf("Classify(%q).Level = %q, want %q", tt.line, d.Level, tt.wantLevel)
		}
	}
}

func TestProgressParser(t *testing.T) {
	p := NewProgressParser()
	block := []string{
		"frame=250",
		"fps=25.03",
		"stream_0_0_q=-1.0",
		"bitrate=N/A",
		"total_size=N/A",
		"out_time_us=10000000",
		"out_time=00:00:10.000000",
		"dup_frames=1",
		"drop_frames=3",
		"speed=1.01x",
	}
	for _, line := range block {
		if _, done := p.Feed(line); done {
			t.Fatalf("block ended early at %q", line)
		}
	}

	got, done := p.Feed("progress=continue")
	if !done {
		t.Fatal("progress= line should end the block")
	}
	want := process.Progress{
		Frame:      250,
		FPS:        25.03,
		Bitrate:    "N/A",
		OutTime:    10 * time.Second,
		DupFrames:  1,
		DropFrames: 3,
		Speed:      1.01,
		State:      "continue",
	}
	if got != want {
		t.Errorf("block = %+v\nwant %+v", got, want)
	}

	// next block starts empty
	p.Feed("frame=260")
	next, _ := p.Feed("progress=end")
	if next.Frame != 260 || next.FPS != 0 || next.State != "end" {
		t.Errorf("second block = %+v", next)
	}
}

func TestProgressParserIgnoresNoise(t *testing.T) {
	p := NewProgressParser()
	for _, line := range []string{"", "garbage", "speed=N/A"} {
		if _, done := p.Feed(line); done {
			t.Errorf("%q ended a block", line)
		}
	}
	got, _ := p.Feed("progress=continue")
	if got.Speed != 0 {
		t.Errorf("Speed = %v, want 0 for N/A", got.Speed)
	}
}
