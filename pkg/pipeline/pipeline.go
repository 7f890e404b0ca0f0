// Package pipeline runs one pull request end to end: notify, check out,
// build every target, upload the artifacts and report the result.
package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	v1 "github.com/holon-run/buildbridge/pkg/api/v1"
	"github.com/holon-run/buildbridge/pkg/log"
	"github.com/holon-run/buildbridge/pkg/notify"
	"github.com/holon-run/buildbridge/pkg/status"
	"github.com/holon-run/buildbridge/pkg/target"
	"github.com/holon-run/buildbridge/pkg/upload"
	"github.com/holon-run/buildbridge/pkg/workspace"
)

// Checkouter checks out the source of a run. *workspace.Service implements it.
type Checkouter interface {
	Checkout(ctx context.Context, req workspace.CheckoutRequest) (string, error)
}

// BuildRunner builds all targets of a run. *build.Orchestrator implements it.
type BuildRunner interface {
	BuildAll(ctx context.Context, req v1.BuildRequest) []v1.BuildOutcome
}

// Uploader publishes build outcomes. *upload.Aggregator implements it.
type Uploader interface {
	UploadAll(ctx context.Context, req upload.UploadRequest) ([]v1.UploadOutcome, v1.RunSummary)
}

// RunObserver is told when runs start and finish. *metrics.Metrics implements it.
type RunObserver interface {
	RunStarted()
	RunFinished(status v1.RunStatus)
}

// Deps are the collaborators of a Pipeline. Checkout and Builder are
// required; the rest may be nil.
type Deps struct {
	Checkout Checkouter
	Builder  BuildRunner
	Uploader Uploader
	Notifier notify.Notifier
	Store    status.Store
	Logs     *LogRecorder
	Observer RunObserver
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTargets sets the target specification resolved for every run.
func WithTargets(spec string) Option {
	return func(p *Pipeline) {
		p.targets = spec
	}
}

// WithToken sets the token used to clone private repositories.
func WithToken(token string) Option {
	return func(p *Pipeline) {
		p.token = token
	}
}

// WithClock overrides the clock used for run record timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// WithTraceIDs overrides the trace id generator.
func WithTraceIDs(gen func() string) Option {
	return func(p *Pipeline) {
		p.newTraceID = gen
	}
}

// Pipeline processes pull requests one at a time.
type Pipeline struct {
	deps    Deps
	targets string
	token   string

	now        func() time.Time
	newTraceID func() string

	// runMu serializes runs: the build tool is exclusive.
	runMu sync.Mutex
}

// New returns a pipeline over deps.
func New(deps Deps, opts ...Option) (*Pipeline, error) {
	if deps.Checkout == nil {
		return nil, fmt.Errorf("pipeline requires a checkout service")
	}
	if deps.Builder == nil {
		return nil, fmt.Errorf("pipeline requires a builder")
	}
	if deps.Store == nil {
		deps.Store = status.NewMemoryStore()
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.NewMulti()
	}
	p := &Pipeline{
		deps:       deps,
		now:        time.Now,
		newTraceID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Store returns the run status store.
func (p *Pipeline) Store() status.Store {
	return p.deps.Store
}

// Trigger runs pr and logs the outcome. It satisfies webhook.Trigger.
func (p *Pipeline) Trigger(ctx context.Context, pr v1.PullRequest) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("run panicked", "pr", pr.Number, "panic", fmt.Sprint(r))
		}
	}()
	if _, err := p.Run(ctx, pr); err != nil {
		log.Error("run failed", "pr", pr.Number, "error", err)
	}
}

// Run processes one pull request. Concurrent calls wait for the running one.
//
// Per-target failures are reported in the returned record and the success
// notification; an error is returned only when the run could not reach the
// build stage.
func (p *Pipeline) Run(ctx context.Context, pr v1.PullRequest) (v1.RunRecord, error) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	runID := strconv.Itoa(pr.Number)
	now := p.now()
	rec := v1.RunRecord{
		RunID:     runID,
		TraceID:   p.newTraceID(),
		PR:        pr,
		Phase:     v1.PhaseQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	logger := log.With("run_id", runID, "trace_id", rec.TraceID)
	logger.Info("run started", "pr", pr.Number, "title", pr.Title, "branch", pr.Branch)

	if p.deps.Logs != nil {
		p.deps.Logs.Begin(runID)
		defer p.deps.Logs.End()
	}
	if p.deps.Observer != nil {
		p.deps.Observer.RunStarted()
	}
	p.save(ctx, &rec)
	p.notify(ctx, notify.Started(runID, pr))

	p.advance(ctx, &rec, v1.PhaseCheckout)
	projectPath, err := p.deps.Checkout.Checkout(ctx, workspace.CheckoutRequest{
		CloneURL: pr.CloneURL,
		Branch:   pr.Branch,
		RunID:    runID,
		Token:    p.token,
	})
	if err != nil {
		logger.Error("checkout failed", "error", err)
		rec.Error = err.Error()
		p.advance(ctx, &rec, v1.PhaseFailed)
		p.notify(ctx, notify.Failed(runID, pr, err))
		if p.deps.Observer != nil {
			p.deps.Observer.RunFinished(v1.RunAllFailed)
		}
		return rec, err
	}

	rec.Targets = target.ResolveString(p.targets)
	p.advance(ctx, &rec, v1.PhaseBuilding)
	outcomes := p.deps.Builder.BuildAll(ctx, v1.BuildRequest{
		ProjectPath: projectPath,
		Targets:     rec.Targets,
		RunID:       runID,
	})

	var results []v1.UploadOutcome
	var summary v1.RunSummary
	if p.deps.Uploader != nil {
		p.advance(ctx, &rec, v1.PhaseUploading)
		results, summary = p.deps.Uploader.UploadAll(ctx, upload.UploadRequest{
			RunID:    runID,
			Branch:   pr.Branch,
			Outcomes: outcomes,
		})
	} else {
		results = unpublished(outcomes)
		summary = v1.Summarize(results)
	}

	rec.Results = results
	rec.Summary = &summary
	p.advance(ctx, &rec, v1.PhaseCompleted)
	p.notify(ctx, notify.Succeeded(runID, pr, results))
	if p.deps.Observer != nil {
		p.deps.Observer.RunFinished(summary.Status())
	}
	logger.Info("run finished", "status", string(summary.Status()), "succeeded", summary.Succeeded, "total", summary.Total)
	return rec, nil
}

// unpublished maps build outcomes onto upload outcomes without uploading,
// linking to the local artifact path.
func unpublished(outcomes []v1.BuildOutcome) []v1.UploadOutcome {
	results := make([]v1.UploadOutcome, len(outcomes))
	for i, o := range outcomes {
		results[i] = v1.UploadOutcome{Target: o.Target, Success: o.Success, Error: o.Error}
		if o.Success {
			results[i].DownloadURL = o.ArtifactPath
		}
	}
	return results
}

func (p *Pipeline) advance(ctx context.Context, rec *v1.RunRecord, phase v1.RunPhase) {
	rec.Phase = phase
	rec.UpdatedAt = p.now()
	p.save(ctx, rec)
	if p.deps.Logs != nil {
		p.deps.Logs.Line(fmt.Sprintf("phase: %s", phase))
	}
}

func (p *Pipeline) save(ctx context.Context, rec *v1.RunRecord) {
	if err := p.deps.Store.Save(ctx, *rec); err != nil {
		log.Warn("failed to save run record", "run_id", rec.RunID, "phase", string(rec.Phase), "error", err)
	}
}

func (p *Pipeline) notify(ctx context.Context, ev notify.Event) {
	if err := p.deps.Notifier.Notify(ctx, ev); err != nil {
		log.Warn("notification failed", "notifier", p.deps.Notifier.Name(), "event", string(ev.Type), "error", err)
	}
}

// LocalRequest is a one-shot build of an existing working directory.
type LocalRequest struct {
	ProjectPath string
	RunID       string
	Branch      string

	// Targets overrides the pipeline's target specification when set.
	Targets string
}

// BuildLocal builds and, when an uploader is configured, publishes an
// existing working directory. No checkout or notification takes place.
func (p *Pipeline) BuildLocal(ctx context.Context, req LocalRequest) ([]v1.BuildOutcome, []v1.UploadOutcome, v1.RunSummary) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	spec := req.Targets
	if spec == "" {
		spec = p.targets
	}
	outcomes := p.deps.Builder.BuildAll(ctx, v1.BuildRequest{
		ProjectPath: req.ProjectPath,
		Targets:     target.ResolveString(spec),
		RunID:       req.RunID,
	})

	if p.deps.Uploader == nil {
		results := unpublished(outcomes)
		return outcomes, results, v1.Summarize(results)
	}
	results, summary := p.deps.Uploader.UploadAll(ctx, upload.UploadRequest{
		RunID:    req.RunID,
		Branch:   req.Branch,
		Outcomes: outcomes,
	})
	return outcomes, results, summary
}
