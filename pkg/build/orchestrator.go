package build

import (
	"context"
	"time"

	v1 "github.com/holon-run/buildbridge/pkg/api/v1"
	"github.com/holon-run/buildbridge/pkg/log"
)

// Builder builds one target. *TargetBuilder implements it.
type Builder interface {
	Build(ctx context.Context, rc RunContext) (string, error)
}

// Observer is notified after every target build.
type Observer interface {
	ObserveBuild(target string, success bool, duration time.Duration)
}

// Orchestrator builds every target of a request in order.
//
// Targets are built strictly one after another: the build tool is an
// exclusive resource. A failing target is recorded and the remaining
// targets are still built.
type Orchestrator struct {
	builder    Builder
	outputRoot string
	observer   Observer
}

// NewOrchestrator creates an orchestrator writing build output under outputRoot.
func NewOrchestrator(builder Builder, outputRoot string) *Orchestrator {
	return &Orchestrator{builder: builder, outputRoot: outputRoot}
}

// WithObserver sets the per-target build observer.
func (o *Orchestrator) WithObserver(obs Observer) *Orchestrator {
	o.observer = obs
	return o
}

// BuildAll returns exactly one outcome per requested target, in order.
func (o *Orchestrator) BuildAll(ctx context.Context, req v1.BuildRequest) []v1.BuildOutcome {
	log.Info("building targets", "run_id", req.RunID, "targets", req.Targets)

	outcomes := make([]v1.BuildOutcome, 0, len(req.Targets))
	for _, target := range req.Targets {
		rc := RunContext{
			RunID:       req.RunID,
			Target:      target,
			ProjectPath: req.ProjectPath,
			OutputRoot:  o.outputRoot,
		}

		start := time.Now()
		path, err := o.builder.Build(ctx, rc)
		elapsed := time.Since(start)

		if err != nil {
			log.Error("build failed", "target", target, "run_id", req.RunID, "error", err)
			outcomes = append(outcomes, v1.BuildFailed(target, err))
		} else {
			log.Info("build succeeded", "target", target, "run_id", req.RunID, "artifact", path, "duration", elapsed.String())
			outcomes = append(outcomes, v1.BuildSucceeded(target, path))
		}
		if o.observer != nil {
			o.observer.ObserveBuild(target, err == nil, elapsed)
		}
	}
	return outcomes
}
