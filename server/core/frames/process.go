package frames

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// waitDelay bounds how long Wait blocks on output pipes held open by descendants after the process was killed
const waitDelay = 5 * time.Second

func newProcess(ctx context.Context, name string, args []string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = waitDelay
	configureProcessGroup(cmd)
	return cmd
}

// runDecoderProcess runs a decoder to completion. A failed run is reported as *DecodeError
// carrying the process's stderr verbatim; cancellation is reported as ctx.Err().
func runDecoderProcess(ctx context.Context, input, name string, args []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cmd := newProcess(ctx, name, args)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return NewDecodeError(input, stderr.String(), fmt.Errorf("%s exited with code %d", filepath.Base(name), exitErr.ExitCode()))
	}
	return NewDecodeError(input, stderr.String(), fmt.Errorf("failed to run %s: %w", name, err))
}

// runOutputProcess runs a helper tool and returns its stdout
func runOutputProcess(ctx context.Context, name string, args []string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := newProcess(ctx, name, args)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err == nil {
		return output, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if msg := strings.TrimSpace(stderr.String()); msg != "" {
		return nil, fmt.Errorf("%s failed: %w: %s", filepath.Base(name), err, msg)
	}
	return nil, fmt.Errorf("%s failed: %w", filepath.Base(name), err)
}
