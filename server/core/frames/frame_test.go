package frames

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseFrameName(t *testing.T) {
	tests := []struct {
		name      string
		wantIndex int
		wantOK    bool
	}{
		{"frame-0001.png", 1, true},
		{"frame-0120.png", 120, true},
		{"frame-12345.png", 12345, true},
		{"frame-001.png", 0, false},
		{"frame-00001.png", 0, false},
		{"frame-012345.png", 0, false},
		{"frame-0001.jpg", 0, false},
		{"frame-0001.png.tmp", 0, false},
		{"xframe-0001.png", 0, false},
		{"frame-abcd.png", 0, false},
		{"thumbnail.png", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			index, ok := ParseFrameName(tt.name)
			if ok != tt.wantOK {
				t.Fatalf("Expected ok=%v, got %v", tt.wantOK, ok)
			}
			if index != tt.wantIndex {
				t.Errorf("Expected index %d, got %d", tt.wantIndex, index)
			}
		})
	}
}

func TestFrameName(t *testing.T) {
	if got := FrameName(7); got != "frame-0007.png" {
		t.Errorf("Expected frame-0007.png, got %s", got)
	}
	if got := FrameName(10000); got != "frame-10000.png" {
		t.Errorf("Expected frame-10000.png, got %s", got)
	}
}

func TestScanFrames(t *testing.T) {
	dir := t.TempDir()

	files := []string{
		"frame-0010.png",
		"frame-0002.png",
		"frame-10001.png",
		"frame-0001.png",
		"notes.txt",
		"frame-0003.png.part",
		"frame-03.png",
		"frame-00001.png",
	}
	for _, name := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	// a directory that happens to match the naming scheme is not a frame
	if err := os.Mkdir(filepath.Join(dir, "frame-0005.png"), 0755); err != nil {
		t.Fatal(err)
	}

	frames, err := ScanFrames(dir)
	if err != nil {
		t.Fatalf("ScanFrames failed: %v", err)
	}

	want := []Frame{
		{Index: 1, Path: filepath.Join(dir, "frame-0001.png")},
		{Index: 2, Path: filepath.Join(dir, "frame-0002.png")},
		{Index: 10, Path: filepath.Join(dir, "frame-0010.png")},
		{Index: 10001, Path: filepath.Join(dir, "frame-10001.png")},
	}
	if diff := cmp.Diff(want, frames); diff != "" {
		t.Errorf("ScanFrames mismatch (-want +got):\n%s", diff)
	}
}

func TestScanFrames_EmptyDirectory(t *testing.T) {
	frames, err := ScanFrames(t.TempDir())
	if err != nil {
		t.Fatalf("ScanFrames failed: %v", err)
	}
	if len(frames) != 0 {
		t.Errorf("Expected no frames, got %d", len(frames))
	}
}

func TestScanFrames_MissingDirectory(t *testing.T) {
	if _, err := ScanFrames(filepath.Join(t.TempDir(), "gone")); err == nil {
		t.Error("Expected error for missing directory")
	}
}

func TestPaths(t *testing.T) {
	frames := []Frame{{Index: 1, Path: "a"}, {Index: 2, Path: "b"}}
	if diff := cmp.Diff([]string{"a", "b"}, Paths(frames)); diff != "" {
		t.Errorf("Paths mismatch (-want +got):\n%s", diff)
	}
}
