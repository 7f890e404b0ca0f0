package github

import (
	"context"
	"fmt"

	"github.com/google/go-github/v68/github"
)

// CreateCommitStatus reports status on ref.
func (c *Client) CreateCommitStatus(ctx context.Context, owner, repo, ref string, status CommitStatus) error {
	desc := status.Description
	if r := []rune(desc); len(r) > maxDescriptionLen {
		desc = string(r[:maxDescriptionLen-3]) + "..."
	}

	req := &github.RepoStatus{
		State:       github.Ptr(string(status.State)),
		Description: github.Ptr(desc),
		Context:     github.Ptr(status.Context),
	}
	if status.TargetURL != "" {
		req.TargetURL = github.Ptr(status.TargetURL)
	}

	if _, _, err := c.GitHubClient().Repositories.CreateStatus(ctx, owner, repo, ref, req); err != nil {
		return fmt.Errorf("failed to create commit status: %w", convertError(err))
	}
	return nil
}

// CreateIssueComment creates a new comment on an issue or PR
func (c *Client) CreateIssueComment(ctx context.Context, owner, repo string, issueNumber int, body string) (int64, error) {
	comment, _, err := c.GitHubClient().Issues.CreateComment(ctx, owner, repo, issueNumber, &github.IssueComment{Body: &body})
	if err != nil {
		return 0, fmt.Errorf("failed to create issue comment: %w", convertError(err))
	}
	return comment.GetID(), nil
}
