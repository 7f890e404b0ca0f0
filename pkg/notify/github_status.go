package notify

import (
	"context"
	"fmt"
	"strings"

	v1 "github.com/holon-run/buildbridge/pkg/api/v1"
	"github.com/holon-run/buildbridge/pkg/github"
	"github.com/holon-run/buildbridge/pkg/log"
)

// DefaultStatusContext is the commit status context reported on the head SHA.
const DefaultStatusContext = "buildbridge"

// StatusClient is the subset of the GitHub API the status notifier uses.
type StatusClient interface {
	CreateCommitStatus(ctx context.Context, owner, repo, ref string, status github.CommitStatus) error
	CreateIssueComment(ctx context.Context, owner, repo string, issueNumber int, body string) (int64, error)
}

// GitHubStatusOption configures a GitHubStatus notifier.
type GitHubStatusOption func(*GitHubStatus)

// WithStatusContext overrides the commit status context.
func WithStatusContext(name string) GitHubStatusOption {
	return func(g *GitHubStatus) {
		if name != "" {
			g.statusContext = name
		}
	}
}

// WithPRComment enables a results comment on the pull request when a run ends.
func WithPRComment(enabled bool) GitHubStatusOption {
	return func(g *GitHubStatus) {
		g.comment = enabled
	}
}

// GitHubStatus reports run progress as a commit status on the PR head.
type GitHubStatus struct {
	client        StatusClient
	statusContext string
	comment       bool
}

// NewGitHubStatus returns a status notifier using client.
func NewGitHubStatus(client StatusClient, opts ...GitHubStatusOption) *GitHubStatus {
	g := &GitHubStatus{client: client, statusContext: DefaultStatusContext}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *GitHubStatus) Name() string { return "github-status" }

// Notify creates the commit status for ev and, for finished runs, the
// optional PR comment.
func (g *GitHubStatus) Notify(ctx context.Context, ev Event) error {
	if ev.PR.HeadSHA == "" {
		log.Debug("no head SHA, skipping commit status", "run_id", ev.RunID)
		return nil
	}
	owner, repo, err := github.SplitRepository(ev.PR.Repository)
	if err != nil {
		return err
	}

	status := StatusFor(ev)
	status.Context = g.statusContext
	if err := g.client.CreateCommitStatus(ctx, owner, repo, ev.PR.HeadSHA, status); err != nil {
		return err
	}

	if !g.comment || ev.Type == EventStarted {
		return nil
	}
	if _, err := g.client.CreateIssueComment(ctx, owner, repo, ev.PR.Number, CommentBody(ev)); err != nil {
		return err
	}
	return nil
}

// StatusFor maps ev onto a commit status. Only a run in which every target
// was published is reported as success.
func StatusFor(ev Event) github.CommitStatus {
	switch ev.Type {
	case EventStarted:
		return github.CommitStatus{State: github.StatusPending, Description: "Build started"}
	case EventSuccess:
		summary := v1.Summarize(ev.Results)
		status := github.CommitStatus{
			State:       github.StatusFailure,
			Description: fmt.Sprintf("%d/%d targets built", summary.Succeeded, summary.Total),
		}
		if summary.Status() == v1.RunAllSucceeded {
			status.State = github.StatusSuccess
		}
		for _, r := range ev.Results {
			if r.Success {
				status.TargetURL = r.LinkURL()
				break
			}
		}
		return status
	default:
		desc := ev.Error
		if desc == "" {
			desc = unknownError
		}
		return github.CommitStatus{State: github.StatusFailure, Description: desc}
	}
}

// CommentBody renders the PR comment for a finished run.
func CommentBody(ev Event) string {
	var b strings.Builder
	if ev.Type != EventSuccess {
		msg := ev.Error
		if msg == "" {
			msg = unknownError
		}
		fmt.Fprintf(&b, "### ❌ Build failed\n\n```\n%s\n```\n", truncate(msg, maxErrorLen))
		return b.String()
	}

	summary := v1.Summarize(ev.Results)
	fmt.Fprintf(&b, "### Build results: %d/%d succeeded\n\n", summary.Succeeded, summary.Total)
	b.WriteString("| Target | Result | Link |\n")
	b.WriteString("|---|---|---|\n")
	for _, r := range ev.Results {
		if r.Success {
			fmt.Fprintf(&b, "| %s | ✅ | [download](%s) |\n", r.Target, r.LinkURL())
			continue
		}
		msg := r.Error
		if msg == "" {
			msg = unknownError
		}
		msg = strings.ReplaceAll(truncate(msg, maxFailureLen), "\n", " ")
		fmt.Fprintf(&b, "| %s | ❌ %s | |\n", r.Target, strings.ReplaceAll(msg, "|", "\\|"))
	}
	return b.String()
}
