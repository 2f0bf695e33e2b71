package sessions

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/yeti47/framesight/server/core/ccc/logging"
)

// SweepReport summarizes one janitor pass
type SweepReport struct {
	StaleSessions  int
	OrphanedDirs   int
	RemovedSources int
	Failures       int
}

// Janitor removes session leftovers that a crashed process never cleaned up.
// It only touches sessions idle for longer than staleAfter, which must exceed
// the longest time a live request can hold a session.
type Janitor struct {
	logger     logging.Logger
	ledger     Ledger
	baseDir    string
	staleAfter time.Duration
	interval   time.Duration
	now        func() time.Time
}

func NewJanitor(logger logging.Logger, ledger Ledger, baseDir string, staleAfter, interval time.Duration) *Janitor {
	if logger == nil {
		logger = logging.NopLogger
	}
	if ledger == nil {
		ledger = NopLedger
	}

	return &Janitor{
		logger:     logger,
		ledger:     ledger,
		baseDir:    baseDir,
		staleAfter: staleAfter,
		interval:   interval,
		now:        time.Now,
	}
}

// Start runs a sweep every interval until ctx is cancelled
func (j *Janitor) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info("Started session janitor", "dir", j.baseDir, "stale_after", j.staleAfter.String())

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("Session janitor stopped", "dir", j.baseDir)
			return
		case <-ticker.C:
			if _, err := j.Sweep(ctx); err != nil {
				j.logger.Error("Session sweep failed", "error", err)
			}
		}
	}
}

// Sweep removes stale ledger sessions and orphaned session directories once
func (j *Janitor) Sweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	cutoff := j.now().Add(-j.staleAfter)

	records, err := j.ledger.ListStale(ctx, cutoff)
	if err != nil {
		return report, err
	}

	for _, record := range records {
		if err := os.RemoveAll(record.WorkingDir); err != nil {
			j.logger.Warn("Failed to remove stale session directory", "session_id", record.ID, "error", err)
			report.Failures++
			continue
		}
		if removeIfExists(record.SourcePath, &report) != nil {
			j.logger.Warn("Failed to remove stale source file", "session_id", record.ID, "path", record.SourcePath)
		}

		if err := j.ledger.UpdateState(ctx, record.ID, StateSwept, "swept after "+j.staleAfter.String()+" in state "+record.State); err != nil {
			j.logger.Warn("Failed to mark session swept", "session_id", record.ID, "error", err)
			report.Failures++
		}
		report.StaleSessions++
	}

	if err := j.sweepOrphans(ctx, cutoff, &report); err != nil {
		return report, err
	}

	if report.StaleSessions > 0 || report.OrphanedDirs > 0 || report.Failures > 0 {
		j.logger.Info("Session sweep finished",
			"stale_sessions", report.StaleSessions,
			"orphaned_dirs", report.OrphanedDirs,
			"removed_sources", report.RemovedSources,
			"failures", report.Failures)
	}

	return report, nil
}

// sweepOrphans removes old directories under baseDir the ledger does not consider live
func (j *Janitor) sweepOrphans(ctx context.Context, cutoff time.Time, report *SweepReport) error {
	entries, err := os.ReadDir(j.baseDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return NewStorageError("read base directory", j.baseDir, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}

		record, err := j.ledger.GetByID(ctx, entry.Name())
		if err != nil {
			j.logger.Warn("Failed to look up session", "session_id", entry.Name(), "error", err)
			report.Failures++
			continue
		}
		if record != nil && !IsTerminal(record.State) && record.UpdatedAt.After(cutoff) {
			continue
		}

		dir := filepath.Join(j.baseDir, entry.Name())
		if err := os.RemoveAll(dir); err != nil {
			j.logger.Warn("Failed to remove orphaned session directory", "dir", dir, "error", err)
			report.Failures++
			continue
		}
		report.OrphanedDirs++
	}

	return nil
}

func removeIfExists(path string, report *SweepReport) error {
	if path == "" {
		return nil
	}

	err := os.Remove(path)
	switch {
	case err == nil:
		report.RemovedSources++
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return nil
	default:
		report.Failures++
		return err
	}
}
