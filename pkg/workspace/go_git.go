package workspace

import (
	"context"
	"fmt"
	"os"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/holon-run/buildbridge/pkg/git"
)

// tokenUser is the basic-auth user GitHub accepts alongside a token.
const tokenUser = "x-access-token"

// GoGitPreparer prepares a workspace with the pure-Go git implementation.
// It does not need a git binary on the host.
type GoGitPreparer struct {
	name string
}

// NewGoGitPreparer creates a new go-git preparer
func NewGoGitPreparer() *GoGitPreparer {
	return &GoGitPreparer{
		name: "go-git",
	}
}

// Name returns the strategy name
func (p *GoGitPreparer) Name() string {
	return p.name
}

// Validate checks if the request is valid for this preparer
func (p *GoGitPreparer) Validate(req PrepareRequest) error {
	return validateRequest(req)
}

// Prepare clones req.Source into req.Dest
func (p *GoGitPreparer) Prepare(ctx context.Context, req PrepareRequest) (PrepareResult, error) {
	if err := p.Validate(req); err != nil {
		return PrepareResult{}, fmt.Errorf("validation failed: %w", err)
	}

	result := NewPrepareResult(p.Name())
	result.Source = req.Source
	result.Branch = req.Branch

	if err := prepareDest(req); err != nil {
		return PrepareResult{}, err
	}

	opts := &gogit.CloneOptions{
		URL:   req.Source,
		Depth: req.Depth,
	}
	if req.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(req.Branch)
		opts.SingleBranch = true
	}
	if req.Token != "" && strings.HasPrefix(req.Source, git.GitHubHTTPSPrefix) {
		opts.Auth = &http.BasicAuth{Username: tokenUser, Password: req.Token}
	}

	repo, err := gogit.PlainCloneContext(ctx, req.Dest, false, opts)
	if err != nil {
		// A failed clone may leave a partial .git behind.
		os.RemoveAll(req.Dest)
		return PrepareResult{}, fmt.Errorf("go-git clone failed: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		result.Notes = append(result.Notes, fmt.Sprintf("Warning: failed to resolve HEAD: %v", err))
		return result, nil
	}
	result.HeadSHA = head.Hash().String()
	result.IsShallow = req.Depth > 0
	if result.Branch == "" && head.Name().IsBranch() {
		result.Branch = head.Name().Short()
	}
	return result, nil
}

// Cleanup removes the workspace directory
func (p *GoGitPreparer) Cleanup(dest string) error {
	return os.RemoveAll(dest)
}
