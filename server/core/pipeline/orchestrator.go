package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/yeti47/framesight/server/core/ccc/logging"
	"github.com/yeti47/framesight/server/core/classification"
	"github.com/yeti47/framesight/server/core/frames"
	"github.com/yeti47/framesight/server/core/sessions"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
)

const tracerName = "github.com/yeti47/framesight/server/core/pipeline"

const (
	EmptyFramePolicyShortCircuit = "short-circuit"
	EmptyFramePolicySubmit       = "submit"
)

// Settings configures the orchestrator
type Settings struct {
	// EmptyFramePolicy decides what happens when a video yields no frames:
	// "short-circuit" answers without calling the classifier, "submit" sends an empty request
	EmptyFramePolicy string
	// MaxConcurrentJobs caps simultaneous runs, 0 means unlimited
	MaxConcurrentJobs int
}

// Orchestrator runs uploads through allocation, extraction, classification and cleanup
type Orchestrator struct {
	logger     logging.Logger
	allocator  sessions.Allocator
	extractor  frames.Extractor
	classifier classification.Classifier
	ledger     sessions.Ledger
	metrics    *Metrics
	tracer     trace.Tracer
	slots      *semaphore.Weighted
	settings   Settings
}

// NewOrchestrator creates a new pipeline orchestrator. A nil ledger or metrics disables them.
func NewOrchestrator(
	logger logging.Logger,
	allocator sessions.Allocator,
	extractor frames.Extractor,
	classifier classification.Classifier,
	ledger sessions.Ledger,
	metrics *Metrics,
	settings Settings,
) *Orchestrator {
	if logger == nil {
		logger = logging.NopLogger
	}
	if ledger == nil {
		ledger = sessions.NopLedger
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if settings.EmptyFramePolicy == "" {
		settings.EmptyFramePolicy = EmptyFramePolicyShortCircuit
	}

	var slots *semaphore.Weighted
	if settings.MaxConcurrentJobs > 0 {
		slots = semaphore.NewWeighted(int64(settings.MaxConcurrentJobs))
	}

	return &Orchestrator{
		logger:     logger,
		allocator:  allocator,
		extractor:  extractor,
		classifier: classifier,
		ledger:     ledger,
		metrics:    metrics,
		tracer:     otel.Tracer(tracerName),
		slots:      slots,
		settings:   settings,
	}
}

// ProcessVideo extracts frames from sourceVideoPath into a fresh session below
// baseOutputDir and classifies them. The source video, the frames and the session
// directory are removed before it returns, whatever the outcome.
func (o *Orchestrator) ProcessVideo(ctx context.Context, sourceVideoPath, baseOutputDir string) (result *classification.Result, err error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.ProcessVideo", trace.WithAttributes(attribute.String("source", sourceVideoPath)))
	defer span.End()

	run := o.newRun(ctx, "video")
	var session *sessions.Session
	var extracted []frames.Frame

	defer func() {
		recovered := recover()
		if recovered != nil {
			err = fmt.Errorf("pipeline panicked: %v", recovered)
			result = nil
		}

		run.transition(StateCleaningUp)
		cleanupErr := o.cleanupVideo(session, extracted, sourceVideoPath)
		o.finish(run, span, err, cleanupErr)

		if recovered != nil {
			panic(recovered)
		}
	}()

	if err := o.acquire(ctx); err != nil {
		return nil, err
	}
	defer o.release()

	// allocation
	run.transition(StateAllocating)
	stageStart := time.Now()
	session, err = o.allocator.Allocate(ctx, baseOutputDir, sourceVideoPath)
	o.metrics.observeStage(StateAllocating, stageStart)
	if err != nil {
		return nil, err
	}
	run.attach(session)
	span.SetAttributes(attribute.String("session_id", session.ID))

	// extraction
	run.transition(StateExtracting)
	extracted, err = o.extract(ctx, sourceVideoPath, session)
	if err != nil {
		return nil, err
	}

	if len(extracted) == 0 && o.settings.EmptyFramePolicy != EmptyFramePolicySubmit {
		run.logger.Info("No frames extracted, skipping classification")
		run.transition(StateResponding)
		return &classification.Result{NoContent: true}, nil
	}

	// classification
	run.transition(StateClassifying)
	result, err = o.classify(ctx, extracted)
	if err != nil {
		return nil, err
	}

	run.transition(StateResponding)
	return result, nil
}

// ProcessImages classifies already stored images. The image files are removed before it returns.
func (o *Orchestrator) ProcessImages(ctx context.Context, imagePaths []string) (result *classification.Result, err error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.ProcessImages", trace.WithAttributes(attribute.Int("images", len(imagePaths))))
	defer span.End()

	run := o.newRun(ctx, "images")

	defer func() {
		recovered := recover()
		if recovered != nil {
			err = fmt.Errorf("pipeline panicked: %v", recovered)
			result = nil
		}

		run.transition(StateCleaningUp)
		cleanupErr := o.cleanupFiles(run.id, imagePaths)
		o.finish(run, span, err, cleanupErr)

		if recovered != nil {
			panic(recovered)
		}
	}()

	if len(imagePaths) == 0 {
		return nil, frames.NewInputError("", "no images given", nil)
	}

	images := make([]frames.Frame, len(imagePaths))
	for i, path := range imagePaths {
		info, statErr := os.Stat(path)
		if statErr != nil {
			return nil, frames.NewInputError(path, "image is not accessible", statErr)
		}
		if info.IsDir() {
			return nil, frames.NewInputError(path, "image is a directory", nil)
		}
		images[i] = frames.Frame{Index: i + 1, Path: path}
	}

	if err := o.acquire(ctx); err != nil {
		return nil, err
	}
	defer o.release()

	run.transition(StateClassifying)
	result, err = o.classify(ctx, images)
	if err != nil {
		return nil, err
	}

	run.transition(StateResponding)
	return result, nil
}

func (o *Orchestrator) extract(ctx context.Context, sourceVideoPath string, session *sessions.Session) ([]frames.Frame, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.extract")
	defer span.End()

	start := time.Now()
	extracted, err := o.extractor.Extract(ctx, sourceVideoPath, session)
	o.metrics.observeStage(StateExtracting, start)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("frames", len(extracted)))
	o.metrics.FramesExtracted.Observe(float64(len(extracted)))
	return extracted, nil
}

func (o *Orchestrator) classify(ctx context.Context, images []frames.Frame) (*classification.Result, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.classify", trace.WithAttributes(attribute.Int("frames", len(images))))
	defer span.End()

	start := time.Now()
	result, err := o.classifier.Classify(ctx, images)
	o.metrics.observeStage(StateClassifying, start)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	return result, nil
}

// cleanupVideo deletes the frames, the session directory and the source video.
// It keeps going after a failure so that one stuck file does not leak the rest.
func (o *Orchestrator) cleanupVideo(session *sessions.Session, extracted []frames.Frame, sourceVideoPath string) error {
	start := time.Now()
	defer o.metrics.observeStage(StateCleaningUp, start)

	var failures []error
	for _, frame := range extracted {
		if err := removeFile(frame.Path); err != nil {
			failures = append(failures, err)
		}
	}

	sessionID := ""
	if session != nil {
		sessionID = session.ID
		if err := o.allocator.Release(session); err != nil {
			failures = append(failures, err)
		}
	}

	if err := removeFile(sourceVideoPath); err != nil {
		failures = append(failures, err)
	}

	if len(failures) > 0 {
		return NewCleanupError(sessionID, failures)
	}
	return nil
}

func (o *Orchestrator) cleanupFiles(runID string, paths []string) error {
	start := time.Now()
	defer o.metrics.observeStage(StateCleaningUp, start)

	var failures []error
	for _, path := range paths {
		if err := removeFile(path); err != nil {
			failures = append(failures, err)
		}
	}

	if len(failures) > 0 {
		return NewCleanupError(runID, failures)
	}
	return nil
}

// finish records the outcome of a run. A cleanup failure is logged and counted only.
func (o *Orchestrator) finish(run *run, span trace.Span, err, cleanupErr error) {
	if cleanupErr != nil {
		o.metrics.CleanupFailures.Inc()
		recordSpanError(span, cleanupErr)
		run.logger.Error("Failed to clean up after pipeline run", "error", cleanupErr)
	}

	kind := ErrorKind(err)
	o.metrics.Jobs.WithLabelValues(run.kind, kind).Inc()

	if err != nil {
		recordSpanError(span, err)
		run.fail(err)
		run.logger.Warn("Pipeline run failed", "error_kind", kind, "error", err, "duration", time.Since(run.started).String())
		return
	}

	run.transition(StateDone)
	run.logger.Info("Pipeline run finished", "duration", time.Since(run.started).String())
}

func (o *Orchestrator) acquire(ctx context.Context) error {
	if o.slots == nil {
		return ctx.Err()
	}
	return o.slots.Acquire(ctx, 1)
}

func (o *Orchestrator) release() {
	if o.slots != nil {
		o.slots.Release(1)
	}
}

func removeFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
