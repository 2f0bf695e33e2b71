package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yeti47/framesight/server/core/classification"
	"github.com/yeti47/framesight/server/core/frames"
	"github.com/yeti47/framesight/server/core/sessions"
)

// CleanupError collects the removals that failed after a run. It is logged and
// counted but never returned to the caller.
type CleanupError struct {
	SessionID string
	Failures  []error
}

func (e *CleanupError) Error() string {
	messages := make([]string, len(e.Failures))
	for i, failure := range e.Failures {
		messages[i] = failure.Error()
	}
	return fmt.Sprintf("cleanup error: session %s: %s", e.SessionID, strings.Join(messages, "; "))
}

func (e *CleanupError) Unwrap() []error {
	return e.Failures
}

func NewCleanupError(sessionID string, failures []error) error {
	return &CleanupError{
		SessionID: sessionID,
		Failures:  failures,
	}
}

func IsCleanupError(err error) bool {
	var cleanupErr *CleanupError
	return errors.As(err, &cleanupErr)
}

// Error kinds used as metric labels and by the upload boundary to pick a status code
const (
	KindNone      = "none"
	KindInput     = "input"
	KindStorage   = "storage"
	KindDecode    = "decode"
	KindTransport = "transport"
	KindService   = "service"
	KindCancelled = "cancelled"
	KindInternal  = "internal"
)

// ErrorKind classifies an error returned by ProcessVideo or ProcessImages
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case frames.IsInputError(err):
		return KindInput
	case frames.IsDecodeError(err):
		return KindDecode
	case sessions.IsStorageError(err):
		return KindStorage
	case classification.IsServiceError(err):
		return KindService
	case classification.IsTransportError(err):
		return KindTransport
	case errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	default:
		return KindInternal
	}
}
