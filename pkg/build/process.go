package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/holon-run/buildbridge/pkg/log"
)

// Command is one invocation of an external program.
type Command struct {
	Name string
	Args []string
	Dir  string
	// Env entries in KEY=VALUE form, appended to the runner's base environment.
	Env []string

	// Stdout and Stderr receive the process streams. Nil discards them.
	Stdout io.Writer
	Stderr io.Writer
}

// ProcessResult describes a process that ran to completion.
type ProcessResult struct {
	ExitCode int
}

// ProcessRunner runs a command and waits for it to exit.
//
// Run returns an error only when the process could not be started or
// waited on (for example a missing executable or a cancelled context).
// A process that exits non-zero is reported through ProcessResult.ExitCode
// with a nil error.
type ProcessRunner interface {
	Run(ctx context.Context, cmd Command) (ProcessResult, error)
}

// DefaultWaitDelay bounds how long Run waits for the output pipes to close
// after the process exited or was killed.
const DefaultWaitDelay = 5 * time.Second

// ExecRunner runs commands as local subprocesses.
//
// On unix the process gets its own process group, and cancellation kills the
// whole group, so helpers forked by the editor cannot hold the build open
// after a timeout.
type ExecRunner struct {
	// WaitDelay is applied to exec.Cmd.WaitDelay. Zero means DefaultWaitDelay.
	WaitDelay time.Duration
}

// NewExecRunner creates a local subprocess runner.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{WaitDelay: DefaultWaitDelay}
}

// Run starts cmd and blocks until it exits.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (ProcessResult, error) {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = append(os.Environ(), cmd.Env...)
	c.Stdout = cmd.Stdout
	c.Stderr = cmd.Stderr
	c.WaitDelay = r.WaitDelay
	if c.WaitDelay <= 0 {
		c.WaitDelay = DefaultWaitDelay
	}
	setProcessGroup(c)

	if err := c.Start(); err != nil {
		return ProcessResult{ExitCode: -1}, fmt.Errorf("failed to start %s: %w", cmd.Name, err)
	}

	err := c.Wait()
	if err == nil {
		return ProcessResult{ExitCode: 0}, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ProcessResult{ExitCode: -1}, fmt.Errorf("%s interrupted: %w", cmd.Name, ctxErr)
	}
	if errors.Is(err, exec.ErrWaitDelay) {
		// The process exited 0 but a child kept the output pipes open.
		log.Warn("process exited but its output stayed open", "command", cmd.Name, "wait_delay", c.WaitDelay.String())
		killProcessGroup(c)
		return ProcessResult{ExitCode: 0}, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return ProcessResult{ExitCode: exitErr.ExitCode()}, nil
	}
	return ProcessResult{ExitCode: -1}, fmt.Errorf("failed waiting for %s: %w", cmd.Name, err)
}
