package frames

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/yeti47/framesight/server/core/ccc/logging"
	"github.com/yeti47/framesight/server/core/sessions"
)

// Extractor turns a source video into an ordered set of frames inside a session directory
type Extractor interface {
	// Extract decodes sourceVideoPath into session.WorkingDir and returns the frames found there
	Extract(ctx context.Context, sourceVideoPath string, session *sessions.Session) ([]Frame, error)
}

// ExtractorSettings configures frame extraction
type ExtractorSettings struct {
	FrameRate int
	Timeout   TimeoutPolicy
}

// DefaultExtractorSettings returns one frame per second with a 30 minute ceiling
func DefaultExtractorSettings() ExtractorSettings {
	return ExtractorSettings{
		FrameRate: 1,
		Timeout: TimeoutPolicy{
			Base:           30 * time.Second,
			PerVideoSecond: 2 * time.Second,
			Max:            30 * time.Minute,
		},
	}
}

type extractor struct {
	logger   logging.Logger
	decoder  Decoder
	settings ExtractorSettings
}

func NewExtractor(logger logging.Logger, decoder Decoder, settings ExtractorSettings) Extractor {
	if logger == nil {
		logger = logging.NopLogger
	}
	if settings.FrameRate <= 0 {
		settings.FrameRate = 1
	}

	return &extractor{
		logger:   logger,
		decoder:  decoder,
		settings: settings,
	}
}

func (e *extractor) Extract(ctx context.Context, sourceVideoPath string, session *sessions.Session) ([]Frame, error) {
	if err := checkSource(sourceVideoPath); err != nil {
		return nil, err
	}

	timeout := e.settings.Timeout.For(e.probeDuration(ctx, sourceVideoPath))
	decodeCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		decodeCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req := DecodeRequest{
		InputPath:    sourceVideoPath,
		OutputDir:    session.WorkingDir,
		FramePattern: FramePattern,
		FrameRate:    e.settings.FrameRate,
	}

	start := time.Now()
	if err := e.decoder.Decode(decodeCtx, req); err != nil {
		return nil, e.decodeFailure(ctx, decodeCtx, sourceVideoPath, timeout, err)
	}

	frames, err := ScanFrames(session.WorkingDir)
	if err != nil {
		return nil, sessions.NewStorageError("scan session directory", session.WorkingDir, err)
	}

	e.logger.Info("Extracted frames", "session_id", session.ID, "frames", len(frames), "duration", time.Since(start).String())
	return frames, nil
}

// decodeFailure normalizes a decoder error into a *DecodeError. Cancellation by the
// caller stays recognizable through errors.Is(err, context.Canceled).
func (e *extractor) decodeFailure(ctx, decodeCtx context.Context, input string, timeout time.Duration, err error) error {
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		decodeErr = &DecodeError{Input: input, Inner: err}
	}

	switch {
	case ctx.Err() != nil:
		decodeErr.Inner = ctx.Err()
	case errors.Is(decodeCtx.Err(), context.DeadlineExceeded):
		decodeErr.TimedOut = true
		decodeErr.Inner = fmt.Errorf("decoder exceeded %s: %w", timeout, context.DeadlineExceeded)
	}

	e.logger.Warn("Frame extraction failed", "input", input, "timed_out", decodeErr.TimedOut, "error", decodeErr.Inner)
	return decodeErr
}

func (e *extractor) probeDuration(ctx context.Context, path string) time.Duration {
	prober, ok := e.decoder.(DurationProber)
	if !ok {
		return 0
	}

	if limit := e.settings.Timeout.Max; limit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, limit)
		defer cancel()
	}

	duration, err := prober.ProbeDuration(ctx, path)
	if err != nil {
		e.logger.Debug("Could not probe video duration, using maximum decode timeout", "input", path, "error", err)
		return 0
	}
	return duration
}

func checkSource(path string) error {
	if path == "" {
		return NewInputError(path, "no source video given", nil)
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewInputError(path, "source video does not exist", err)
		}
		return NewInputError(path, "source video is not accessible", err)
	}
	if info.IsDir() {
		return NewInputError(path, "source video is a directory", nil)
	}

	file, err := os.Open(path)
	if err != nil {
		return NewInputError(path, "source video is not readable", err)
	}
	file.Close()

	return nil
}
