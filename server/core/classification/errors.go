package classification

import (
	"errors"
	"fmt"
)

// TransportError reports that the classifier could not be reached or did not answer in time
type TransportError struct {
	URL     string
	Timeout bool
	Inner   error
}

func (e *TransportError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("transport error: %s: timed out: %v", e.URL, e.Inner)
	}
	return fmt.Sprintf("transport error: %s: %v", e.URL, e.Inner)
}

func (e *TransportError) Unwrap() error {
	return e.Inner
}

func NewTransportError(url string, timeout bool, inner error) error {
	return &TransportError{
		URL:     url,
		Timeout: timeout,
		Inner:   inner,
	}
}

func IsTransportError(err error) bool {
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}

// ServiceError reports a response the classifier produced but that cannot be used:
// a non-2xx status or a body without the expected result
type ServiceError struct {
	StatusCode int
	Body       string
	Reason     string
}

func (e *ServiceError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("classification service error: status %d: %s", e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("classification service error: status %d: %s", e.StatusCode, e.Body)
}

func NewServiceError(statusCode int, body, reason string) error {
	return &ServiceError{
		StatusCode: statusCode,
		Body:       body,
		Reason:     reason,
	}
}

func IsServiceError(err error) bool {
	var serviceErr *ServiceError
	return errors.As(err, &serviceErr)
}
