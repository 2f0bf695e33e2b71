package frames

import (
	"errors"
	"fmt"
)

// InputError reports a source video that cannot be read
type InputError struct {
	Path   string
	Reason string
	Inner  error
}

func (e *InputError) Error() string {
	if e.Inner != nil {
		return fmt.Sprintf("input error: %s: %s: %v", e.Path, e.Reason, e.Inner)
	}
	return fmt.Sprintf("input error: %s: %s", e.Path, e.Reason)
}

func (e *InputError) Unwrap() error {
	return e.Inner
}

func NewInputError(path, reason string, inner error) error {
	return &InputError{
		Path:   path,
		Reason: reason,
		Inner:  inner,
	}
}

func IsInputError(err error) bool {
	var inputErr *InputError
	return errors.As(err, &inputErr)
}

// DecodeError reports a failed decoder run. Diagnostics holds the decoder's
// own error output unmodified.
type DecodeError struct {
	Input       string
	Diagnostics string
	TimedOut    bool
	Inner       error
}

func (e *DecodeError) Error() string {
	switch {
	case e.TimedOut:
		return fmt.Sprintf("decode error: %s: timed out", e.Input)
	case e.Inner != nil:
		return fmt.Sprintf("decode error: %s: %v", e.Input, e.Inner)
	default:
		return fmt.Sprintf("decode error: %s", e.Input)
	}
}

func (e *DecodeError) Unwrap() error {
	return e.Inner
}

func NewDecodeError(input, diagnostics string, inner error) error {
	return &DecodeError{
		Input:       input,
		Diagnostics: diagnostics,
		Inner:       inner,
	}
}

func IsDecodeError(err error) bool {
	var decodeErr *DecodeError
	return errors.As(err, &decodeErr)
}
