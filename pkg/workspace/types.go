package workspace

import (
	"context"
	"time"
)

// PrepareRequest contains the parameters for a workspace preparation operation
type PrepareRequest struct {
	// Source is the clone URL or local repository path
	// Examples: "https://github.com/owner/repo.git", "/path/to/repo"
	Source string

	// Branch is cloned as the only branch. Empty means the remote default.
	Branch string

	// Dest is the host directory where the workspace will be created
	Dest string

	// Depth limits fetched history. 0 fetches full history.
	Depth int

	// Token authenticates HTTPS clones of private GitHub repositories
	Token string

	// CleanDest indicates whether to clean the destination directory before preparation
	// If true, any existing content at Dest will be removed
	CleanDest bool
}

// PrepareResult contains the outcome of a workspace preparation operation
type PrepareResult struct {
	// Strategy is the name of the strategy that handled this request
	Strategy string `json:"strategy"`

	// Source is the origin that was used, without credentials
	Source string `json:"source"`

	// Branch is the branch that was checked out
	Branch string `json:"branch,omitempty"`

	// HeadSHA is the commit SHA of the workspace after preparation
	HeadSHA string `json:"head_sha"`

	// CreatedAt is the timestamp when preparation completed
	CreatedAt time.Time `json:"created_at"`

	// IsShallow indicates whether the git repository is shallow
	IsShallow bool `json:"is_shallow"`

	// Notes contains any additional information about the preparation
	Notes []string `json:"notes,omitempty"`
}

// Preparer is the interface for preparing workspaces
type Preparer interface {
	// Prepare creates a workspace directory at Dest with the requested content
	Prepare(ctx context.Context, req PrepareRequest) (PrepareResult, error)

	// Name returns the strategy name (e.g., "git-cli", "go-git")
	Name() string

	// Validate checks if the request is valid for this preparer
	// Returns nil if valid, or an error describing what's invalid
	Validate(req PrepareRequest) error

	// Cleanup removes a workspace created by Prepare
	Cleanup(dest string) error
}

// NewPrepareResult creates a PrepareResult with the current timestamp
func NewPrepareResult(strategy string) PrepareResult {
	return PrepareResult{
		Strategy:  strategy,
		CreatedAt: time.Now(),
		Notes:     []string{},
	}
}

func validateRequest(req PrepareRequest) error {
	if req.Source == "" {
		return errSourceEmpty
	}
	if req.Dest == "" {
		return errDestEmpty
	}
	return nil
}
