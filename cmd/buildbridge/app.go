package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/holon-run/buildbridge/pkg/artifact"
	"github.com/holon-run/buildbridge/pkg/build"
	"github.com/holon-run/buildbridge/pkg/config"
	"github.com/holon-run/buildbridge/pkg/github"
	"github.com/holon-run/buildbridge/pkg/log"
	"github.com/holon-run/buildbridge/pkg/metrics"
	"github.com/holon-run/buildbridge/pkg/notify"
	"github.com/holon-run/buildbridge/pkg/pipeline"
	"github.com/holon-run/buildbridge/pkg/runtime/docker"
	"github.com/holon-run/buildbridge/pkg/status"
	"github.com/holon-run/buildbridge/pkg/storage"
	"github.com/holon-run/buildbridge/pkg/upload"
	"github.com/holon-run/buildbridge/pkg/workspace"
)

// defaultDockerExecutable is the editor entrypoint in unityci images.
const defaultDockerExecutable = "unity-editor"

// app holds the wired components shared by serve and build.
type app struct {
	cfg      *config.Config
	metrics  *metrics.Metrics
	status   status.Store
	store    storage.Store
	notifier *notify.Registry
	pipeline *pipeline.Pipeline

	closers []func() error
}

type appOptions struct {
	// upload wires the artifact store and aggregator.
	upload bool

	// targets overrides the configured target specification.
	targets string
}

func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	a := &app{cfg: cfg, metrics: metrics.New()}

	outputRoot, err := filepath.Abs(cfg.Workdir.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output dir: %w", err)
	}
	reposRoot, err := filepath.Abs(cfg.Workdir.ReposDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve repos dir: %w", err)
	}

	if err := a.openStatusStore(ctx); err != nil {
		return nil, err
	}
	logs := pipeline.NewLogRecorder(a.status)

	runner, executable, err := newRunner(cfg, outputRoot)
	if err != nil {
		a.Close()
		return nil, err
	}
	builder := build.NewTargetBuilder(build.ToolConfig{
		Executable: executable,
		Method:     cfg.Unity.BuildMethod,
		ExtraArgs:  cfg.Unity.ExtraArgs,
		Timeout:    cfg.Unity.Timeout,
	}, runner, artifact.NewPackager(), build.WithLineSink(logs.Sink))
	orchestrator := build.NewOrchestrator(builder, outputRoot).WithObserver(a.metrics)

	var uploader pipeline.Uploader
	if opts.upload {
		store, err := newStore(cfg)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.store = store
		uploader = upload.NewAggregator(store,
			upload.WithFileConcurrency(cfg.Storage.Concurrency),
			upload.WithObserver(a.metrics),
		)
	}

	a.notifier, err = newNotifiers(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	targets, source := cfg.ResolveTargets(opts.targets, os.Getenv)
	log.Info("build targets resolved", "targets", targets, "source", source)

	a.pipeline, err = pipeline.New(pipeline.Deps{
		Checkout: workspace.NewService(reposRoot),
		Builder:  orchestrator,
		Uploader: uploader,
		Notifier: a.notifier.Multi(),
		Store:    a.status,
		Logs:     logs,
		Observer: a.metrics,
	}, pipeline.WithTargets(targets), pipeline.WithToken(cfg.GitHub.Token))
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) openStatusStore(ctx context.Context) error {
	if a.cfg.Server.RedisAddr == "" {
		a.status = status.NewMemoryStore()
		return nil
	}
	client, err := status.DialRedis(ctx, a.cfg.Server.RedisAddr)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, client.Close)
	a.status = status.NewRedisStore(client, status.DefaultTTL)
	log.Info("using redis run status store", "addr", a.cfg.Server.RedisAddr)
	return nil
}

// Close releases connections held by the app.
func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			log.Warn("failed to close resource", "error", err)
		}
	}
	a.closers = nil
}

// newRunner returns the process runner for the configured runtime and the
// editor executable it should invoke.
func newRunner(cfg *config.Config, outputRoot string) (build.ProcessRunner, string, error) {
	switch cfg.Unity.Runtime {
	case config.RuntimeDocker:
		rt, err := docker.NewRuntime(docker.Options{
			Image:      cfg.Unity.Docker.Image,
			OutputRoot: outputRoot,
			LicenseDir: cfg.Unity.Docker.LicenseDir,
			Env:        cfg.Unity.Docker.Env,
			Pull:       cfg.Unity.Docker.Pull,
		})
		if err != nil {
			return nil, "", fmt.Errorf("failed to initialize docker runtime: %w", err)
		}
		executable := cfg.Unity.Path
		if executable == "" {
			executable = defaultDockerExecutable
		}
		return rt, executable, nil
	case config.RuntimeHost, "":
		if cfg.Unity.Path == "" {
			return nil, "", fmt.Errorf("unity path is required (set %s)", config.EnvUnityPath)
		}
		return build.NewExecRunner(), cfg.Unity.Path, nil
	default:
		return nil, "", fmt.Errorf("unknown unity runtime %q", cfg.Unity.Runtime)
	}
}

// newStore returns the configured artifact store.
func newStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendLocal:
		root, err := filepath.Abs(cfg.Storage.LocalDir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve storage dir: %w", err)
		}
		publicURL := cfg.Storage.PublicURL
		if publicURL == "" {
			publicURL = fmt.Sprintf("http://localhost:%s/artifacts", cfg.Server.Port)
		}
		return storage.NewDirStore(root, publicURL)
	case config.BackendS3, "":
		return storage.NewS3Store(storage.S3Config{
			Endpoint:        cfg.Storage.Endpoint,
			Region:          cfg.Storage.Region,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			Bucket:          cfg.Storage.Bucket,
			PublicURL:       cfg.Storage.PublicURL,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// newNotifiers registers the configured notification sinks.
func newNotifiers(cfg *config.Config) (*notify.Registry, error) {
	reg := notify.NewRegistry()

	if err := reg.Register(notify.NewDiscord(cfg.Notify.DiscordWebhookURL)); err != nil {
		return nil, err
	}
	if cfg.Notify.DiscordWebhookURL == "" {
		log.Warn("discord webhook URL not configured, discord notifications disabled")
	}

	if cfg.Notify.GitHubStatus {
		var opts []github.ClientOption
		if cfg.GitHub.APIBaseURL != "" {
			opts = append(opts, github.WithBaseURL(cfg.GitHub.APIBaseURL))
		}
		client := github.NewClient(cfg.GitHub.Token, opts...)
		gh := notify.NewGitHubStatus(client,
			notify.WithStatusContext(cfg.Notify.StatusContext),
			notify.WithPRComment(cfg.Notify.PRComment),
		)
		if err := reg.Register(gh); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
