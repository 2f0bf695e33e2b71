package frames

import (
	"context"
	"math"
	"path/filepath"
	"time"
)

const maxDuration = time.Duration(math.MaxInt64)

var maxDurationSeconds = maxDuration.Seconds()

// DecodeRequest describes one decoder run
type DecodeRequest struct {
	InputPath string
	// OutputDir receives the frames. The decoder must not write anywhere else.
	OutputDir    string
	FramePattern string
	// FrameRate is in frames per second of video
	FrameRate int
}

// OutputPattern is the full path pattern frames are written to
func (r DecodeRequest) OutputPattern() string {
	return filepath.Join(r.OutputDir, r.FramePattern)
}

// Decoder turns a video into still frames. Implementations report a failed
// run as *DecodeError and must stop the underlying process when ctx is done.
type Decoder interface {
	Decode(ctx context.Context, req DecodeRequest) error
}

// DurationProber is implemented by decoders that can determine the length of a video up front
type DurationProber interface {
	ProbeDuration(ctx context.Context, path string) (time.Duration, error)
}

// TimeoutPolicy scales the decode deadline with the length of the video
type TimeoutPolicy struct {
	Base           time.Duration
	PerVideoSecond time.Duration
	Max            time.Duration
}

// For returns the deadline for a video of the given length. An unknown length
// (zero) yields Max. A zero Max disables the deadline.
func (p TimeoutPolicy) For(videoDuration time.Duration) time.Duration {
	if p.Max <= 0 {
		return 0
	}
	if videoDuration <= 0 {
		return p.Max
	}

	if p.Base >= p.Max {
		return p.Max
	}

	// scaled in float space so huge durations clamp instead of overflowing
	scaled := videoDuration.Seconds() * float64(p.PerVideoSecond)
	if scaled >= float64(p.Max-p.Base) {
		return p.Max
	}
	if scaled < 0 {
		scaled = 0
	}
	return p.Base + time.Duration(scaled)
}
