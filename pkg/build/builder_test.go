package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/holon-run/buildbridge/pkg/artifact"
)

// MockRunner is a mock implementation of ProcessRunner for testing
type MockRunner struct {
	RunFunc func(ctx context.Context, cmd Command) (ProcessResult, error)
	mu      sync.Mutex
	calls   []Command
}

func (m *MockRunner) Run(ctx context.Context, cmd Command) (ProcessResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, cmd)
	m.mu.Unlock()

	if m.RunFunc != nil {
		return m.RunFunc(ctx, cmd)
	}
	return ProcessResult{}, nil
}

func (m *MockRunner) GetCalls() []Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Command(nil), m.calls...)
}

// stubPackager returns the nominal path unchanged and records calls.
type stubPackager struct {
	calls []string
}

func (p *stubPackager) Package(nominal, target string) artifact.Result {
	p.calls = append(p.calls, target)
	return artifact.Result{Path: nominal + ".packaged"}
}

// argValue returns the value following flag in args.
func argValue(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func TestRunContext_Paths(t *testing.T) {
	rc := RunContext{RunID: "42", Target: "WebGL", ProjectPath: "/p", OutputRoot: "/out"}

	if got, want := rc.OutputDir(), filepath.Join("/out", "pr-42", "WebGL"); got != want {
		t.Errorf("OutputDir() = %q, want %q", got, want)
	}
	if got, want := rc.OutputPath(), filepath.Join("/out", "pr-42", "WebGL", "build-WebGL-pr-42"); got != want {
		t.Errorf("OutputPath() = %q, want %q", got, want)
	}
	if got, want := rc.LogPath(), filepath.Join("/out", "pr-42", "WebGL", "build-WebGL.log"); got != want {
		t.Errorf("LogPath() = %q, want %q", got, want)
	}
}

func TestTargetBuilder_Args(t *testing.T) {
	b := NewTargetBuilder(ToolConfig{Executable: "/opt/editor", ExtraArgs: []string{"-username", "ci"}}, &MockRunner{}, &stubPackager{})
	rc := RunContext{RunID: "7", Target: "StandaloneWindows64", ProjectPath: "/repo", OutputRoot: "/builds"}

	args := b.Args(rc)

	for _, flag := range []string{"-batchmode", "-nographics", "-silent-crashes", "-quit"} {
		found := false
		for _, a := range args {
			if a == flag {
				found = true
			}
		}
		if !found {
			t.Errorf("args missing %s: %v", flag, args)
		}
	}

	tests := map[string]string{
		"-projectPath":   "/repo",
		"-buildTarget":   "StandaloneWindows64",
		"-executeMethod": DefaultMethod,
		"-buildPath":     rc.OutputPath(),
		"-logFile":       rc.LogPath(),
		"-username":      "ci",
	}
	for flag, want := range tests {
		if got := argValue(args, flag); got != want {
			t.Errorf("%s = %q, want %q", flag, got, want)
		}
	}
}

func TestTargetBuilder_Build(t *testing.T) {
	t.Run("success packages output", func(t *testing.T) {
		tmp := t.TempDir()
		runner := &MockRunner{}
		pkg := &stubPackager{}
		b := NewTargetBuilder(ToolConfig{Executable: "editor", Method: "Ci.Build"}, runner, pkg)
		rc := RunContext{RunID: "1", Target: "WebGL", ProjectPath: tmp, OutputRoot: filepath.Join(tmp, "builds")}

		path, err := b.Build(context.Background(), rc)
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		if path != rc.OutputPath()+".packaged" {
			t.Errorf("path = %q", path)
		}
		if _, err := os.Stat(rc.OutputDir()); err != nil {
			t.Errorf("output dir not created: %v", err)
		}

		calls := runner.GetCalls()
		if len(calls) != 1 {
			t.Fatalf("expected 1 call, got %d", len(calls))
		}
		if calls[0].Name != "editor" || calls[0].Dir != tmp {
			t.Errorf("unexpected command: %+v", calls[0])
		}
		if got := argValue(calls[0].Args, "-executeMethod"); got != "Ci.Build" {
			t.Errorf("-executeMethod = %q", got)
		}
		if len(pkg.calls) != 1 || pkg.calls[0] != "WebGL" {
			t.Errorf("packager calls = %v", pkg.calls)
		}
	})

	t.Run("non-zero exit includes log contents", func(t *testing.T) {
		tmp := t.TempDir()
		runner := &MockRunner{
			RunFunc: func(ctx context.Context, cmd Command) (ProcessResult, error) {
				logPath := argValue(cmd.Args, "-logFile")
				if err := os.WriteFile(logPath, []byte("Compiler error CS1002"), 0644); err != nil {
					return ProcessResult{}, err
				}
				return ProcessResult{ExitCode: 1}, nil
			},
		}
		pkg := &stubPackager{}
		b := NewTargetBuilder(ToolConfig{Executable: "editor"}, runner, pkg)
		rc := RunContext{RunID: "3", Target: "StandaloneOSX", ProjectPath: tmp, OutputRoot: tmp}

		_, err := b.Build(context.Background(), rc)
		var be *BuildError
		if !errors.As(err, &be) {
			t.Fatalf("expected *BuildError, got %T: %v", err, err)
		}
		if be.ExitCode != 1 {
			t.Errorf("ExitCode = %d, want 1", be.ExitCode)
		}
		want := "build failed for StandaloneOSX with code 1\nLog: Compiler error CS1002"
		if err.Error() != want {
			t.Errorf("Error() = %q, want %q", err.Error(), want)
		}
		if len(pkg.calls) != 0 {
			t.Error("packager must not run for failed builds")
		}
	})

	t.Run("missing log file", func(t *testing.T) {
		tmp := t.TempDir()
		runner := &MockRunner{
			RunFunc: func(ctx context.Context, cmd Command) (ProcessResult, error) {
				return ProcessResult{ExitCode: 2}, nil
			},
		}
		b := NewTargetBuilder(ToolConfig{Executable: "editor"}, runner, &stubPackager{})

		_, err := b.Build(context.Background(), RunContext{RunID: "3", Target: "Android", ProjectPath: tmp, OutputRoot: tmp})
		if err == nil || !strings.Contains(err.Error(), "Log: "+NoLogFound) {
			t.Errorf("error = %v, want log placeholder", err)
		}
	})

	t.Run("spawn failure", func(t *testing.T) {
		tmp := t.TempDir()
		runner := &MockRunner{
			RunFunc: func(ctx context.Context, cmd Command) (ProcessResult, error) {
				return ProcessResult{ExitCode: -1}, fmt.Errorf("failed to start editor: %w", os.ErrNotExist)
			},
		}
		b := NewTargetBuilder(ToolConfig{Executable: "editor"}, runner, &stubPackager{})

		_, err := b.Build(context.Background(), RunContext{RunID: "3", Target: "WebGL", ProjectPath: tmp, OutputRoot: tmp})
		var be *BuildError
		if !errors.As(err, &be) {
			t.Fatalf("expected *BuildError, got %v", err)
		}
		if be.ExitCode != -1 || !errors.Is(err, os.ErrNotExist) {
			t.Errorf("unexpected error: %+v", be)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		tmp := t.TempDir()
		runner := &MockRunner{
			RunFunc: func(ctx context.Context, cmd Command) (ProcessResult, error) {
				<-ctx.Done()
				return ProcessResult{ExitCode: -1}, ctx.Err()
			},
		}
		b := NewTargetBuilder(ToolConfig{Executable: "editor", Timeout: 10 * time.Millisecond}, runner, &stubPackager{})

		_, err := b.Build(context.Background(), RunContext{RunID: "3", Target: "WebGL", ProjectPath: tmp, OutputRoot: tmp})
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline error, got %v", err)
		}
		if !strings.Contains(err.Error(), "timed out after 10ms") {
			t.Errorf("error = %q", err.Error())
		}
	})

	t.Run("output lines reach the sink", func(t *testing.T) {
		tmp := t.TempDir()
		runner := &MockRunner{
			RunFunc: func(ctx context.Context, cmd Command) (ProcessResult, error) {
				fmt.Fprint(cmd.Stdout, "Building player\nCompiling ")
				fmt.Fprint(cmd.Stdout, "scripts\n\n")
				fmt.Fprint(cmd.Stderr, "warning: slow")
				return ProcessResult{}, nil
			},
		}
		var mu sync.Mutex
		var got []string
		sink := func(target, stream, line string) {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, target+"|"+stream+"|"+line)
		}
		b := NewTargetBuilder(ToolConfig{Executable: "editor"}, runner, &stubPackager{}, WithLineSink(sink))

		if _, err := b.Build(context.Background(), RunContext{RunID: "3", Target: "WebGL", ProjectPath: tmp, OutputRoot: tmp}); err != nil {
			t.Fatal(err)
		}

		want := []string{
			"WebGL|stdout|Building player",
			"WebGL|stdout|Compiling scripts",
			"WebGL|stderr|warning: slow",
		}
		if strings.Join(got, "\n") != strings.Join(want, "\n") {
			t.Errorf("sink lines = %v, want %v", got, want)
		}
	})
}
