package sessions

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/yeti47/framesight/server/core/ccc/logging"
)

// defaultMaxAttempts bounds retries on an id collision. UUIDv4 carries 122 random bits,
// so even a single retry is practically unreachable.
const defaultMaxAttempts = 3

// Allocator hands out isolated working directories
type Allocator interface {
	// Allocate creates a fresh session directory below baseOutputDir
	Allocate(ctx context.Context, baseOutputDir, sourcePath string) (*Session, error)
	// Release removes the session directory and everything left inside it
	Release(session *Session) error
}

type directoryAllocator struct {
	logger      logging.Logger
	newID       func() string
	now         func() time.Time
	maxAttempts int
}

// NewDirectoryAllocator creates an allocator naming sessions with random UUIDs
func NewDirectoryAllocator(logger logging.Logger) Allocator {
	if logger == nil {
		logger = logging.NopLogger
	}

	return &directoryAllocator{
		logger:      logger,
		newID:       uuid.NewString,
		now:         time.Now,
		maxAttempts: defaultMaxAttempts,
	}
}

func (a *directoryAllocator) Allocate(ctx context.Context, baseOutputDir, sourcePath string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(baseOutputDir, 0755); err != nil {
		return nil, NewStorageError("create base directory", baseOutputDir, err)
	}

	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		id := a.newID()
		dir := filepath.Join(baseOutputDir, id)

		// Mkdir, not MkdirAll: an existing directory must be reported, never shared
		err := os.Mkdir(dir, 0755)
		if err == nil {
			a.logger.Debug("Allocated session", "session_id", id, "dir", dir)
			return &Session{
				ID:         id,
				WorkingDir: dir,
				SourcePath: sourcePath,
				CreatedAt:  a.now().UTC(),
			}, nil
		}

		if !errors.Is(err, fs.ErrExist) {
			return nil, NewStorageError("create session directory", dir, err)
		}

		a.logger.Warn("Session id collision, retrying", "session_id", id, "attempt", attempt)
	}

	return nil, NewStorageError("create session directory", baseOutputDir,
		fmt.Errorf("no unique session id after %d attempts", a.maxAttempts))
}

func (a *directoryAllocator) Release(session *Session) error {
	if session == nil || session.WorkingDir == "" {
		return nil
	}

	if err := os.RemoveAll(session.WorkingDir); err != nil {
		return NewStorageError("remove session directory", session.WorkingDir, err)
	}

	a.logger.Debug("Released session", "session_id", session.ID)
	return nil
}
