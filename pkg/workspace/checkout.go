package workspace

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/holon-run/buildbridge/pkg/log"
)

// DefaultDepth is the history depth fetched for a build checkout.
const DefaultDepth = 1

// CheckoutRequest identifies the source to check out for one run.
type CheckoutRequest struct {
	CloneURL string
	Branch   string
	RunID    string
	Token    string
}

// Service checks out pull request branches under a repos root, trying a
// preferred preparer first and a fallback only when the preferred one fails.
type Service struct {
	reposRoot string
	preferred Preparer
	fallback  Preparer
	depth     int
}

// NewService creates a checkout service using git-cli with a go-git fallback.
func NewService(reposRoot string) *Service {
	return NewServiceWithPreparers(reposRoot, NewGitCLIPreparer(), NewGoGitPreparer())
}

// NewServiceWithPreparers creates a checkout service with explicit strategies.
// fallback may be nil.
func NewServiceWithPreparers(reposRoot string, preferred, fallback Preparer) *Service {
	return &Service{
		reposRoot: reposRoot,
		preferred: preferred,
		fallback:  fallback,
		depth:     DefaultDepth,
	}
}

// Dest returns the checkout directory for runID.
func (s *Service) Dest(runID string) string {
	return filepath.Join(s.reposRoot, "pr-"+runID)
}

// Checkout clones req.Branch into <reposRoot>/pr-<RunID>, replacing any
// previous checkout, and returns the working directory.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (string, error) {
	preq := PrepareRequest{
		Source:    req.CloneURL,
		Branch:    req.Branch,
		Dest:      s.Dest(req.RunID),
		Depth:     s.depth,
		Token:     req.Token,
		CleanDest: true,
	}

	log.Info("checking out branch", "run_id", req.RunID, "branch", req.Branch, "strategy", s.preferred.Name(), "dest", preq.Dest)
	result, err := s.preferred.Prepare(ctx, preq)
	if err != nil && s.fallback != nil {
		log.Warn("checkout failed, falling back", "strategy", s.preferred.Name(), "fallback", s.fallback.Name(), "error", err)
		var fbErr error
		result, fbErr = s.fallback.Prepare(ctx, preq)
		if fbErr != nil {
			return "", fmt.Errorf("checkout failed: %w", errors.Join(err, fbErr))
		}
		err = nil
	}
	if err != nil {
		return "", fmt.Errorf("checkout failed: %w", err)
	}

	if err := WriteManifest(preq.Dest, result); err != nil {
		log.Warn("failed to write checkout manifest", "dest", preq.Dest, "error", err)
	}
	log.Info("checkout complete", "run_id", req.RunID, "strategy", result.Strategy, "head", result.HeadSHA)
	return preq.Dest, nil
}
