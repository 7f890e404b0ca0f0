// Package v1 defines the data exchanged between the buildbridge stages:
// the inbound pull request, per-target build and upload outcomes, and the
// run summary handed to notifiers.
package v1

import "time"

// PullRequest is the metadata of the pull request that triggered a run.
type PullRequest struct {
	Number     int    `json:"number"`
	Title      string `json:"title"`
	HTMLURL    string `json:"html_url"`
	Branch     string `json:"branch"`
	HeadSHA    string `json:"head_sha,omitempty"`
	CloneURL   string `json:"clone_url"`
	Repository string `json:"repository"` // base repository full name, e.g. "owner/repo"
	Author     string `json:"author,omitempty"`
}

// BuildRequest describes one run of the build pipeline. It is created per
// inbound event and not modified afterwards.
type BuildRequest struct {
	// ProjectPath is the checked-out working directory. Read-only to the builder.
	ProjectPath string

	// Targets is the resolved, ordered target list.
	Targets []string

	// RunID namespaces output paths and artifact keys (the PR number).
	RunID string
}

// BuildOutcome is the result of building one target.
// Exactly one of ArtifactPath or Error is meaningful, selected by Success.
type BuildOutcome struct {
	Target       string `json:"target"`
	Success      bool   `json:"success"`
	ArtifactPath string `json:"artifact_path,omitempty"`
	Error        string `json:"error,omitempty"`
}

// BuildSucceeded returns a successful outcome for target.
func BuildSucceeded(target, artifactPath string) BuildOutcome {
	return BuildOutcome{Target: target, Success: true, ArtifactPath: artifactPath}
}

// BuildFailed returns a failed outcome for target carrying err's message.
func BuildFailed(target string, err error) BuildOutcome {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return BuildOutcome{Target: target, Success: false, Error: msg}
}

// UploadOutcome is the result of publishing one target's artifact.
type UploadOutcome struct {
	Target      string `json:"target"`
	Success     bool   `json:"success"`
	DownloadURL string `json:"download_url,omitempty"`
	// PreviewURL is set only for artifacts uploaded as a browsable tree.
	PreviewURL string `json:"preview_url,omitempty"`
	Error      string `json:"error,omitempty"`
}

// LinkURL returns the preferred link for a successful outcome.
func (o UploadOutcome) LinkURL() string {
	if o.PreviewURL != "" {
		return o.PreviewURL
	}
	return o.DownloadURL
}

// RunStatus classifies a finished run.
type RunStatus string

const (
	RunAllSucceeded RunStatus = "all_succeeded"
	RunPartial      RunStatus = "partial"
	RunAllFailed    RunStatus = "all_failed"
)

// RunSummary counts successful uploads over all targets of a run.
type RunSummary struct {
	Succeeded int `json:"succeeded"`
	Total     int `json:"total"`
}

// Summarize counts the successful outcomes.
func Summarize(outcomes []UploadOutcome) RunSummary {
	s := RunSummary{Total: len(outcomes)}
	for _, o := range outcomes {
		if o.Success {
			s.Succeeded++
		}
	}
	return s
}

// Status classifies the summary. An empty run counts as failed.
func (s RunSummary) Status() RunStatus {
	switch {
	case s.Total > 0 && s.Succeeded == s.Total:
		return RunAllSucceeded
	case s.Succeeded > 0:
		return RunPartial
	default:
		return RunAllFailed
	}
}

// Failed returns Total - Succeeded.
func (s RunSummary) Failed() int {
	return s.Total - s.Succeeded
}

// RunPhase is the lifecycle phase of a run record.
type RunPhase string

const (
	PhaseQueued    RunPhase = "queued"
	PhaseCheckout  RunPhase = "checkout"
	PhaseBuilding  RunPhase = "building"
	PhaseUploading RunPhase = "uploading"
	PhaseCompleted RunPhase = "completed"
	PhaseFailed    RunPhase = "failed"
)

// RunRecord is the persisted view of a run, served by the status endpoint.
type RunRecord struct {
	RunID     string          `json:"run_id"`
	TraceID   string          `json:"trace_id"`
	PR        PullRequest     `json:"pull_request"`
	Phase     RunPhase        `json:"phase"`
	Targets   []string        `json:"targets,omitempty"`
	Results   []UploadOutcome `json:"results,omitempty"`
	Summary   *RunSummary     `json:"summary,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
