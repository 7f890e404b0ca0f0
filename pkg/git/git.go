// Package git provides a thin utility layer over the system git binary.
// It wraps git commands, providing a consistent API for the checkout
// strategies in pkg/workspace.
package git

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// GitHubHTTPSPrefix is the clone URL prefix eligible for token injection.
const GitHubHTTPSPrefix = "https://github.com/"

// Client runs git commands inside one working directory.
type Client struct {
	// Dir is the working directory of the git repository.
	Dir string
}

// NewClient creates a new git client for the given directory.
func NewClient(dir string) *Client {
	return &Client{Dir: dir}
}

// RepositoryInfo holds information about a git repository.
type RepositoryInfo struct {
	// HEAD is the current commit SHA.
	HEAD string

	// IsShallow indicates if the repository is a shallow clone.
	IsShallow bool

	// Branch is the current branch name (empty if detached HEAD).
	Branch string
}

// CloneOptions specifies options for cloning a repository.
type CloneOptions struct {
	// Source is the repository URL or path to clone from.
	Source string

	// Dest is the destination directory.
	Dest string

	// Branch is cloned as the only branch when set.
	Branch string

	// Depth specifies shallow clone depth (0 for full history).
	Depth int

	// Quiet suppresses output.
	Quiet bool
}

// CloneResult holds the result of a clone operation.
type CloneResult struct {
	// HEAD is the checked out commit SHA.
	HEAD string

	// Branch is the checked out branch name.
	Branch string

	// IsShallow indicates if the clone is shallow.
	IsShallow bool
}

// AuthenticatedURL embeds token into a GitHub HTTPS clone URL.
// Other URLs, and an empty token, return cloneURL unchanged.
func AuthenticatedURL(cloneURL, token string) string {
	if token == "" || !strings.HasPrefix(cloneURL, GitHubHTTPSPrefix) {
		return cloneURL
	}
	return "https://" + token + "@github.com/" + strings.TrimPrefix(cloneURL, GitHubHTTPSPrefix)
}

// Redact replaces secret in s, so command output can be logged safely.
func Redact(s, secret string) string {
	if secret == "" {
		return s
	}
	return strings.ReplaceAll(s, secret, "***")
}

// execCommand executes a git command with proper error handling.
func (c *Client) execCommand(ctx context.Context, args ...string) ([]byte, error) {
	cmdArgs := []string{"-C", c.Dir}
	cmdArgs = append(cmdArgs, args...)

	cmd := exec.CommandContext(ctx, "git", cmdArgs...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return output, fmt.Errorf("git %s failed: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(output)))
	}

	return output, nil
}

// BuildCloneArgs returns the arguments of `git clone` for opts.
func BuildCloneArgs(opts CloneOptions) []string {
	args := []string{"clone"}

	if opts.Quiet {
		args = append(args, "--quiet")
	}
	if opts.Branch != "" {
		args = append(args, "--branch", opts.Branch, "--single-branch")
	}
	if opts.Depth > 0 {
		args = append(args, "--depth", fmt.Sprintf("%d", opts.Depth))
	}

	return append(args, opts.Source, opts.Dest)
}

// Clone clones a repository and reports what was checked out.
func Clone(ctx context.Context, opts CloneOptions) (*CloneResult, error) {
	cmd := exec.CommandContext(ctx, "git", BuildCloneArgs(opts)...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("git clone failed: %w: %s", err, strings.TrimSpace(string(output)))
	}

	client := NewClient(opts.Dest)
	if !client.IsRepo(ctx) {
		return nil, fmt.Errorf("git clone succeeded but destination is not a git repository")
	}

	info, err := client.GetRepositoryInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get repository info: %w", err)
	}

	return &CloneResult{
		HEAD:      info.HEAD,
		Branch:    info.Branch,
		IsShallow: info.IsShallow,
	}, nil
}

// IsRepo checks if the directory is a git repository.
func (c *Client) IsRepo(ctx context.Context) bool {
	_, err := c.execCommand(ctx, "rev-parse", "--git-dir")
	return err == nil
}

// GetRepositoryInfo returns information about the repository.
func (c *Client) GetRepositoryInfo(ctx context.Context) (*RepositoryInfo, error) {
	info := &RepositoryInfo{}

	headSHA, err := c.GetHeadSHA(ctx)
	if err != nil {
		return nil, err
	}
	info.HEAD = headSHA

	shallowOutput, err := c.execCommand(ctx, "rev-parse", "--is-shallow-repository")
	if err == nil {
		info.IsShallow = strings.TrimSpace(string(shallowOutput)) == "true"
	}

	branch, err := c.execCommand(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err == nil {
		if b := strings.TrimSpace(string(branch)); b != "HEAD" {
			info.Branch = b
		}
	}

	return info, nil
}

// GetHeadSHA returns the current HEAD SHA.
func (c *Client) GetHeadSHA(ctx context.Context) (string, error) {
	output, err := c.execCommand(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to get HEAD SHA: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}
