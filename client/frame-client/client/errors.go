package client

import (
	"errors"
	"fmt"
)

// UploadServerError represents an error response from the frame server
type UploadServerError struct {
	StatusCode int
	Message    string
	// IsRecoverable is true when repeating the same upload later may succeed
	IsRecoverable bool
}

func (e *UploadServerError) Error() string {
	return fmt.Sprintf("frame server returned status %d: %s", e.StatusCode, e.Message)
}

// NewUploadServerError classifies the response by status: server side and gateway failures are recoverable
func NewUploadServerError(statusCode int, message string) *UploadServerError {
	return &UploadServerError{
		StatusCode:    statusCode,
		Message:       message,
		IsRecoverable: statusCode >= 500 || statusCode == 499 || statusCode == 429,
	}
}

// IsUploadServerError checks if the error is an UploadServerError
func IsUploadServerError(err error) bool {
	var serverErr *UploadServerError
	return errors.As(err, &serverErr)
}

// IsRecoverableUploadError returns true if the error is recoverable (not a client-side error)
func IsRecoverableUploadError(err error) bool {
	var serverErr *UploadServerError
	if errors.As(err, &serverErr) {
		return serverErr.IsRecoverable
	}
	return false
}
