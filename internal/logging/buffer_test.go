package logging

import "testing"

func TestRingBufferTailFilters(t *testing.T) {
	rb := NewRingBuffer(4)
	for _, e := range []LogEntry{
		{Message: "evicted", Module: "supervisor", CameraID: "front", Level: "error"},
		{Message: "front starting", Module: "supervisor", CameraID: "front", Level: "info"},
		{Message: "back failed", Module: "supervisor", CameraID: "back", Level: "warn"},
		{Message: "front progress", Module: "ffmpeg", CameraID: "front", Level: "debug"},
		{Message: "front failed", Module: "supervisor", CameraID: "front", Level: "error"},
	} {
		rb.Write(e)
	}

	messages := func(entries []LogEntry) []string {
		out := make([]string, len(entries))
		for i, e := range entries {
			out[i] = e.Message
		}
		return out
	}

	tests := []struct {
		name   string
		n      int
		filter Filter
		want   []string
	}{
		{"all", 0, Filter{}, []string{"front starting", "back failed", "front progress", "front failed"}},
		{"newest two", 2, Filter{}, []string{"front progress", "front failed"}},
		{"camera", 0, Filter{CameraID: "front"}, []string{"front starting", "front progress", "front failed"}},
		{"camera limited", 1, Filter{CameraID: "front"}, []string{"front failed"}},
		{"module", 0, Filter{Module: "ffmpeg"}, []string{"front progress"}},
		{"min level", 0, Filter{Level: "warn"}, []string{"back failed", "front failed"}},
		{"no match", 0, Filter{CameraID: "yard"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := messages(rb.Tail(tt.n, tt.filter))
			if len(got) != len(tt.want) {
				t.Fatalf("Tail = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("Tail = %v, want %v", got, tt.want)
				}
			}
		})
	}

	if rb.Count() != 4 {
		t.Errorf("Count = %d, want 4", rb.Count())
	}
}

func TestFilterUnknownLevelPasses(t *testing.T) {
	f := Filter{Level: "warn"}
	if !f.Allows("custom", "api", "") {
		t.Error("unparseable entry level should not be filtered out")
	}
	if !(Filter{Level: "bogus"}).Allows("debug", "api", "") {
		t.Error("unparseable filter level should match everything")
	}
}
