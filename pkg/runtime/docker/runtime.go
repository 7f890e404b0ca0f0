// Package docker runs the build tool inside a container image instead of on
// the host.
package docker

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/holon-run/buildbridge/pkg/build"
	"github.com/holon-run/buildbridge/pkg/log"
)

// Options configures the container runtime.
type Options struct {
	// Image is the editor image, e.g. unityci/editor:ubuntu-2022.3.20f1-webgl-3.
	Image string

	// OutputRoot is mounted alongside the project.
	OutputRoot string

	// LicenseDir is an optional host directory mounted read-only at LicenseTarget.
	LicenseDir string

	// Env is added to every container.
	Env map[string]string

	// Pull pulls Image before each run.
	Pull bool
}

// engine is the subset of the Docker API the runtime uses.
type engine interface {
	pull(ctx context.Context, ref string) error
	create(ctx context.Context, cfg *container.Config, host *container.HostConfig) (string, error)
	start(ctx context.Context, id string) error
	logs(ctx context.Context, id string) (io.ReadCloser, error)
	wait(ctx context.Context, id string) (int64, error)
	remove(ctx context.Context, id string) error
}

// Runtime is a build.ProcessRunner that executes commands in containers.
type Runtime struct {
	eng  engine
	opts Options
}

// NewRuntime connects to the Docker daemon from the environment.
func NewRuntime(opts Options) (*Runtime, error) {
	if opts.Image == "" {
		return nil, fmt.Errorf("image is required")
	}
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, err
	}
	return &Runtime{eng: &clientEngine{cli: cli}, opts: opts}, nil
}

// Run creates a container for cmd, streams its output and waits for it to exit.
func (r *Runtime) Run(ctx context.Context, cmd build.Command) (build.ProcessResult, error) {
	failed := build.ProcessResult{ExitCode: -1}

	mountConfig := &MountConfig{
		ProjectPath: cmd.Dir,
		OutputRoot:  r.opts.OutputRoot,
		LicenseDir:  r.opts.LicenseDir,
	}
	if err := ValidateMountTargets(mountConfig); err != nil {
		return failed, err
	}

	if r.opts.Pull {
		log.Info("pulling image", "image", r.opts.Image)
		if err := r.eng.pull(ctx, r.opts.Image); err != nil {
			log.Warn("failed to pull image, using local copy", "image", r.opts.Image, "error", err)
		}
	}

	env := BuildContainerEnv(&EnvConfig{
		UserEnv:    r.opts.Env,
		CommandEnv: cmd.Env,
		HostUID:    os.Getuid(),
		HostGID:    os.Getgid(),
	})

	id, err := r.eng.create(ctx, &container.Config{
		Image:      r.opts.Image,
		Entrypoint: []string{cmd.Name},
		Cmd:        cmd.Args,
		Env:        env,
		WorkingDir: cmd.Dir,
		Tty:        false,
	}, &container.HostConfig{
		Mounts: BuildContainerMounts(mountConfig),
	})
	if err != nil {
		return failed, fmt.Errorf("failed to create container: %w", err)
	}
	logger := log.With("container", shortID(id))
	defer func() {
		// The caller's context may already be done.
		if err := r.eng.remove(context.Background(), id); err != nil {
			logger.Warn("failed to remove container", "error", err)
		}
	}()

	if err := r.eng.start(ctx, id); err != nil {
		return failed, fmt.Errorf("failed to start container: %w", err)
	}
	logger.Info("container started", "image", r.opts.Image)

	var wg sync.WaitGroup
	out, err := r.eng.logs(ctx, id)
	if err != nil {
		logger.Warn("failed to stream container logs", "error", err)
	} else {
		defer out.Close()
		wg.Add(1)
		go func() {
			defer wg.Done()
			stdcopy.StdCopy(orDiscard(cmd.Stdout), orDiscard(cmd.Stderr), out)
		}()
	}

	code, err := r.eng.wait(ctx, id)
	if err != nil {
		return failed, fmt.Errorf("container wait error: %w", err)
	}
	wg.Wait()

	return build.ProcessResult{ExitCode: int(code)}, nil
}

func orDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

type clientEngine struct {
	cli *client.Client
}

func (e *clientEngine) pull(ctx context.Context, ref string) error {
	reader, err := e.cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return err
	}
	defer reader.Close()
	_, err = io.Copy(io.Discard, reader)
	return err
}

func (e *clientEngine) create(ctx context.Context, cfg *container.Config, host *container.HostConfig) (string, error) {
	resp, err := e.cli.ContainerCreate(ctx, cfg, host, nil, nil, "")
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (e *clientEngine) start(ctx context.Context, id string) error {
	return e.cli.ContainerStart(ctx, id, container.StartOptions{})
}

func (e *clientEngine) logs(ctx context.Context, id string) (io.ReadCloser, error) {
	return e.cli.ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
}

func (e *clientEngine) wait(ctx context.Context, id string) (int64, error) {
	statusCh, errCh := e.cli.ContainerWait(ctx, id, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		return -1, err
	case status := <-statusCh:
		if status.Error != nil && status.Error.Message != "" {
			return -1, fmt.Errorf("%s", status.Error.Message)
		}
		return status.StatusCode, nil
	}
}

func (e *clientEngine) remove(ctx context.Context, id string) error {
	return e.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true})
}
