// Package build runs the external engine build tool, one target at a time,
// and collects a per-target outcome list.
package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/holon-run/buildbridge/pkg/artifact"
	"github.com/holon-run/buildbridge/pkg/log"
)

const (
	// DefaultMethod is the entry point invoked inside the project.
	DefaultMethod = "BuildScript.PerformBuild"

	// NoLogFound replaces the log contents when the tool wrote no log file.
	NoLogFound = "No log file found"
)

// ToolConfig configures the build tool invocation.
type ToolConfig struct {
	// Executable is the path to the editor binary.
	Executable string

	// Method is the static method executed in batch mode.
	Method string

	// ExtraArgs are appended after the fixed arguments.
	ExtraArgs []string

	// Timeout bounds one target's build. Zero means no timeout.
	Timeout time.Duration
}

// RunContext carries the run-scoped paths for one target build.
type RunContext struct {
	RunID       string
	Target      string
	ProjectPath string
	OutputRoot  string
}

// OutputDir is the per-run, per-target output directory.
func (rc RunContext) OutputDir() string {
	return filepath.Join(rc.OutputRoot, "pr-"+rc.RunID, rc.Target)
}

// OutputPath is the nominal build path passed to the tool.
func (rc RunContext) OutputPath() string {
	return filepath.Join(rc.OutputDir(), fmt.Sprintf("build-%s-pr-%s", rc.Target, rc.RunID))
}

// LogPath is the tool's log file inside the output directory.
func (rc RunContext) LogPath() string {
	return filepath.Join(rc.OutputDir(), fmt.Sprintf("build-%s.log", rc.Target))
}

// BuildError is a failed build of one target.
type BuildError struct {
	Target string
	// ExitCode is the process exit code, or -1 when it did not run to completion.
	ExitCode int
	// Log is the tool's log file contents (or NoLogFound).
	Log string
	// Err is set when the process could not be run.
	Err error
}

func (e *BuildError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("build failed for %s: %v", e.Target, e.Err)
	}
	return fmt.Sprintf("build failed for %s with code %d\nLog: %s", e.Target, e.ExitCode, e.Log)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// Packager post-processes a successful build's output.
type Packager interface {
	Package(nominal, target string) artifact.Result
}

// LineSink receives each line the build tool prints, attributed to a target.
type LineSink func(target, stream, line string)

// TargetBuilder builds a single target.
type TargetBuilder struct {
	tool     ToolConfig
	runner   ProcessRunner
	packager Packager
	sink     LineSink
}

// BuilderOption configures a TargetBuilder.
type BuilderOption func(*TargetBuilder)

// WithLineSink forwards tool output lines to sink in addition to the log.
func WithLineSink(sink LineSink) BuilderOption {
	return func(b *TargetBuilder) {
		b.sink = sink
	}
}

// NewTargetBuilder creates a builder invoking tool through runner.
func NewTargetBuilder(tool ToolConfig, runner ProcessRunner, packager Packager, opts ...BuilderOption) *TargetBuilder {
	if tool.Method == "" {
		tool.Method = DefaultMethod
	}
	b := &TargetBuilder{
		tool:     tool,
		runner:   runner,
		packager: packager,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Args returns the command line for rc.
func (b *TargetBuilder) Args(rc RunContext) []string {
	args := []string{
		"-batchmode",
		"-nographics",
		"-silent-crashes",
		"-quit",
		"-projectPath", rc.ProjectPath,
		"-buildTarget", rc.Target,
		"-executeMethod", b.tool.Method,
		"-buildPath", rc.OutputPath(),
		"-logFile", rc.LogPath(),
	}
	return append(args, b.tool.ExtraArgs...)
}

// Build runs the tool for rc.Target and returns the artifact path.
// Failures are returned as *BuildError.
func (b *TargetBuilder) Build(ctx context.Context, rc RunContext) (string, error) {
	logger := log.With("target", rc.Target, "run_id", rc.RunID)

	if err := os.MkdirAll(rc.OutputDir(), 0755); err != nil {
		return "", &BuildError{Target: rc.Target, ExitCode: -1, Err: fmt.Errorf("failed to create output directory: %w", err)}
	}

	if b.tool.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.tool.Timeout)
		defer cancel()
	}

	stdout := newLineWriter(func(line string) {
		logger.Info(line, "stream", "stdout")
		if b.sink != nil {
			b.sink(rc.Target, "stdout", line)
		}
	})
	stderr := newLineWriter(func(line string) {
		logger.Warn(line, "stream", "stderr")
		if b.sink != nil {
			b.sink(rc.Target, "stderr", line)
		}
	})

	args := b.Args(rc)
	logger.Info("starting build", "executable", b.tool.Executable, "args", args)

	res, err := b.runner.Run(ctx, Command{
		Name:   b.tool.Executable,
		Args:   args,
		Dir:    rc.ProjectPath,
		Stdout: stdout,
		Stderr: stderr,
	})
	stdout.Flush()
	stderr.Flush()

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && b.tool.Timeout > 0 {
			err = fmt.Errorf("timed out after %s: %w", b.tool.Timeout, err)
		}
		return "", &BuildError{Target: rc.Target, ExitCode: -1, Err: err}
	}
	if res.ExitCode != 0 {
		return "", &BuildError{Target: rc.Target, ExitCode: res.ExitCode, Log: readLog(rc.LogPath())}
	}

	logger.Info("build completed")
	packaged := b.packager.Package(rc.OutputPath(), rc.Target)
	return packaged.Path, nil
}

func readLog(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return NoLogFound
	}
	return string(data)
}
