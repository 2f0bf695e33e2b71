package frames

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xfrr/goffmpeg/media"
	"github.com/xfrr/goffmpeg/transcoder"
	"github.com/yeti47/framesight/server/core/ccc/logging"
)

// FFmpegDecoder implements Decoder using ffmpeg. goffmpeg builds the command line;
// the process itself runs under the caller's context so it can be killed and its
// diagnostics captured.
type FFmpegDecoder struct {
	logger      logging.Logger
	ffmpegPath  string
	ffprobePath string
}

// NewFFmpegDecoder creates a new FFmpeg-based decoder using ffmpeg and ffprobe from PATH
func NewFFmpegDecoder(logger logging.Logger) *FFmpegDecoder {
	if logger == nil {
		logger = logging.NopLogger
	}

	return &FFmpegDecoder{
		logger:      logger,
		ffmpegPath:  "ffmpeg",
		ffprobePath: "ffprobe",
	}
}

// Decode extracts frames at req.FrameRate as PNG images into req.OutputDir
func (d *FFmpegDecoder) Decode(ctx context.Context, req DecodeRequest) error {
	args := append([]string{"-nostdin", "-hide_banner", "-nostats", "-loglevel", "error"}, d.command(req)...)

	d.logger.Debug("Starting frame extraction", "input", req.InputPath, "output", req.OutputPattern(), "fps", req.FrameRate)

	return runDecoderProcess(ctx, req.InputPath, d.ffmpegPath, args)
}

// command builds the ffmpeg arguments without probing the input a second time
func (d *FFmpegDecoder) command(req DecodeRequest) []string {
	trans := new(transcoder.Transcoder)
	trans.SetMediaFile(new(media.File))

	trans.MediaFile().SetInputPath(req.InputPath)
	trans.MediaFile().SetOutputPath(req.OutputPattern())
	trans.MediaFile().SetVideoFilter(fmt.Sprintf("fps=%d", req.FrameRate))
	trans.MediaFile().SetVideoCodec("png")
	trans.MediaFile().SetSkipAudio(true)
	trans.MediaFile().SetOutputFormat("image2")

	return trans.GetCommand()
}

// ProbeDuration reads the container duration with ffprobe
func (d *FFmpegDecoder) ProbeDuration(ctx context.Context, path string) (time.Duration, error) {
	output, err := runOutputProcess(ctx, d.ffprobePath, []string{
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		path,
	})
	if err != nil {
		return 0, err
	}

	var metadata media.Metadata
	if err := json.Unmarshal(output, &metadata); err != nil {
		return 0, fmt.Errorf("failed to decode ffprobe output: %w", err)
	}

	return parseSeconds(metadata.Format.Duration)
}

// parseSeconds parses ffprobe's decimal seconds notation, e.g. "12.480000"
func parseSeconds(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" || value == "N/A" {
		return 0, fmt.Errorf("duration not available")
	}

	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", value, err)
	}
	if seconds < 0 {
		return 0, fmt.Errorf("invalid duration %q", value)
	}
	if seconds > maxDurationSeconds {
		return maxDuration, nil
	}

	return time.Duration(seconds * float64(time.Second)), nil
}
