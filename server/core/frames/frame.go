package frames

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

// FramePattern is the printf pattern every decoder writes frames with
const FramePattern = "frame-%04d.png"

// exactly what %04d produces: four digits, or more without a leading zero
var frameNameRegex = regexp.MustCompile(`^frame-(\d{4}|[1-9]\d{4,})\.png$`)

// Frame is one still image written by the decoder
type Frame struct {
	Index int
	Path  string
}

// FrameName returns the file name of the frame with the given index
func FrameName(index int) string {
	return fmt.Sprintf(FramePattern, index)
}

// ParseFrameName returns the index encoded in name, or false if name does not follow the frame naming scheme
func ParseFrameName(name string) (int, bool) {
	match := frameNameRegex.FindStringSubmatch(name)
	if match == nil {
		return 0, false
	}

	index, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}

	return index, true
}

// ScanFrames lists the frames in dir ordered by index. Files that do not
// follow the naming scheme are ignored.
func ScanFrames(dir string) ([]Frame, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame directory: %w", err)
	}

	frames := make([]Frame, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}

		index, ok := ParseFrameName(entry.Name())
		if !ok {
			continue
		}

		frames = append(frames, Frame{
			Index: index,
			Path:  filepath.Join(dir, entry.Name()),
		})
	}

	sort.Slice(frames, func(i, j int) bool {
		if frames[i].Index != frames[j].Index {
			return frames[i].Index < frames[j].Index
		}
		return frames[i].Path < frames[j].Path
	})

	return frames, nil
}

// Paths returns the file paths of frames in order
func Paths(frames []Frame) []string {
	paths := make([]string, len(frames))
	for i, frame := range frames {
		paths[i] = frame.Path
	}
	return paths
}
