package segments

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func listNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	slices.Sort(names)
	return names
}

func TestEnsureCreatesMissingDirectory(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "hls")
	m := NewManager(root, testLogger())

	if err := m.Ensure("cam1"); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}

	info, err := os.Stat(m.Dir("cam1"))
	if err != nil || !info.IsDir() {
		t.Fatalf("expected directory %s to exist: %v", m.Dir("cam1"), err)
	}
}

func TestEnsureClearsOnlyArtifacts(t *testing.T) {
	m := NewManager(t.TempDir(), testLogger())
	dir := m.Dir("cam1")
	if err := os.MkdirAll(filepath.Join(dir, "snapshots"), 0o755); err != nil {
		t.Fatal(err)
	}
	touch(t, dir,
		"index.m3u8", "index.m3u8.tmp", "old.m3u8",
		"segment_0.ts", "segment_17.ts",
		"notes.txt", "segment_x.ts", "thumb.jpg",
	)

	if err := m.Ensure("cam1"); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}

	want := []string{"notes.txt", "segment_x.ts", "snapshots", "thumb.jpg"}
	if got := listNames(t, dir); !slices.Equal(got, want) {
		t.Errorf("remaining = %v, want %v", got, want)
	}
}

func TestEnsureIsIdempotent(t *testing.T) {
	m := NewManager(t.TempDir(), testLogger())
	if err := m.Ensure("cam1"); err != nil {
		t.Fatal(err)
	}
	touch(t, m.Dir("cam1"), "index.m3u8", "segment_3.ts", "keep.me")

	if err := m.Ensure("cam1"); err != nil {
		t.Fatal(err)
	}
	first := listNames(t, m.Dir("cam1"))

	if err := m.Ensure("cam1"); err != nil {
		t.Fatal(err)
	}
	second := listNames(t, m.Dir("cam1"))

	if !slices.Equal(first, []string{"keep.me"}) || !slices.Equal(first, second) {
		t.Errorf("first = %v, second = %v, want [keep.me] both times", first, second)
	}
}

func TestEnsureFailsWhenRootIsAFile(t *testing.T) {
	root := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(root, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := NewManager(root, testLogger()).Ensure("cam1"); err == nil {
		t.Fatal("expected an error when the root cannot hold directories")
	}
}

func TestRetainPrunesOldestSegments(t *testing.T) {
	m := NewManager(t.TempDir(), testLogger())
	if err := m.Ensure("cam1"); err != nil {
		t.Fatal(err)
	}

	// numeric, not lexical, order: segment_9 is older than segment_10
	for i := 5; i < 15; i++ {
		touch(t, m.Dir("cam1"), fmt.Sprintf("segment_%d.ts", i))
	}
	touch(t, m.Dir("cam1"), "index.m3u8")

	removed := m.Retain("cam1", 4)
	if removed != 4 {
		t.Fatalf("removed = %d, want 4", removed)
	}

	want := []string{
		"index.m3u8",
		"segment_10.ts", "segment_11.ts", "segment_12.ts", "segment_13.ts", "segment_14.ts",
		"segment_9.ts",
	}
	if got := listNames(t, m.Dir("cam1")); !slices.Equal(got, want) {
		t.Errorf("remaining = %v, want %v", got, want)
	}
}

func TestRetainNoop(t *testing.T) {
	m := NewManager(t.TempDir(), testLogger())
	if got := m.Retain("missing", 3); got != 0 {
		t.Errorf("Retain on a missing dir = %d, want 0", got)
	}
	if got := m.Retain("missing", 0); got != 0 {
		t.Errorf("Retain with keep=0 = %d, want 0", got)
	}
}

func TestSegmentPath(t *testing.T) {
	m := NewManager("/var/lib/camhls", testLogger())

	if path, ok := m.SegmentPath("cam1", "segment_7.ts"); !ok || path != filepath.Join("/var/lib/camhls", "cam1", "segment_7.ts") {
		t.Errorf("SegmentPath = %q, %v", path, ok)
	}
	for _, bad := range []string{"../secret.ts", "index.m3u8", "segment_7.ts.bak", ""} {
		if _, ok := m.SegmentPath("cam1", bad); ok {
			t.Errorf("SegmentPath accepted %q", bad)
		}
	}
}
