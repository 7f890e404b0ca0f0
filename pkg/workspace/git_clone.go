package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/holon-run/buildbridge/pkg/git"
)

var (
	errSourceEmpty = errors.New("source cannot be empty")
	errDestEmpty   = errors.New("dest cannot be empty")
)

// GitCLIPreparer prepares a workspace with the system git binary
type GitCLIPreparer struct {
	name string
}

// NewGitCLIPreparer creates a new git-cli preparer
func NewGitCLIPreparer() *GitCLIPreparer {
	return &GitCLIPreparer{
		name: "git-cli",
	}
}

// Name returns the strategy name
func (p *GitCLIPreparer) Name() string {
	return p.name
}

// Validate checks if the request is valid for this preparer
func (p *GitCLIPreparer) Validate(req PrepareRequest) error {
	return validateRequest(req)
}

// Prepare creates a workspace using git clone
func (p *GitCLIPreparer) Prepare(ctx context.Context, req PrepareRequest) (PrepareResult, error) {
	if err := p.Validate(req); err != nil {
		return PrepareResult{}, fmt.Errorf("validation failed: %w", err)
	}

	result := NewPrepareResult(p.Name())
	result.Source = req.Source
	result.Branch = req.Branch

	if err := prepareDest(req); err != nil {
		return PrepareResult{}, err
	}

	cloned, err := git.Clone(ctx, git.CloneOptions{
		Source: git.AuthenticatedURL(req.Source, req.Token),
		Dest:   req.Dest,
		Branch: req.Branch,
		Depth:  req.Depth,
		Quiet:  true,
	})
	if err != nil {
		// git echoes the remote URL on failure; keep the token out of logs.
		return PrepareResult{}, errors.New(git.Redact(err.Error(), req.Token))
	}

	result.HeadSHA = cloned.HEAD
	result.IsShallow = cloned.IsShallow
	if result.Branch == "" {
		result.Branch = cloned.Branch
	}
	return result, nil
}

// Cleanup removes the workspace directory
func (p *GitCLIPreparer) Cleanup(dest string) error {
	return os.RemoveAll(dest)
}

// prepareDest cleans Dest when requested and creates its parent.
func prepareDest(req PrepareRequest) error {
	if req.CleanDest {
		if err := os.RemoveAll(req.Dest); err != nil {
			return fmt.Errorf("failed to clean destination: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(req.Dest), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}
	return nil
}
