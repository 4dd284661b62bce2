package browser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Runner executes one CLI invocation and returns its stdout.
type Runner interface {
	Run(ctx context.Context, args ...string) ([]byte, error)
}

// ExecRunner runs the automation CLI as a child process.
type ExecRunner struct {
	// Binary is the executable name or path.
	Binary string

	// Timeout bounds a single invocation. Zero means no extra bound.
	Timeout time.Duration

	// Dir is the working directory for the child process.
	Dir string
}

// Run implements Runner. Surrounding whitespace is trimmed from stdout.
func (r *ExecRunner) Run(ctx context.Context, args ...string) ([]byte, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, r.Binary, args...)
	cmd.Dir = r.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrBinaryNotFound, r.Binary)
		}
		if ctx.Err() == context.DeadlineExceeded {
			err = fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, &CommandError{
			Command: r.Binary + " " + commandLine(args),
			Stderr:  strings.TrimSpace(stderr.String()),
			Err:     err,
		}
	}

	return bytes.TrimSpace(stdout.Bytes()), nil
}

// Available reports whether the binary can be found in PATH.
func (r *ExecRunner) Available() bool {
	_, err := exec.LookPath(r.Binary)
	return err == nil
}
