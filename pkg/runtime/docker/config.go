package docker

import (
	"fmt"
	"os"
	"sort"

	"github.com/docker/docker/api/types/mount"
)

// Pure helper functions for container configuration assembly

// LicenseTarget is where the editor looks for its license inside the container.
const LicenseTarget = "/root/.local/share/unity3d"

// MountConfig represents the mount configuration for a build container
type MountConfig struct {
	ProjectPath string
	OutputRoot  string
	LicenseDir  string // Optional: host directory holding the editor license
}

// EnvConfig represents the environment configuration for a container
type EnvConfig struct {
	UserEnv    map[string]string
	CommandEnv []string
	HostUID    int
	HostGID    int
}

// BuildContainerMounts assembles the Docker mounts configuration.
// Project and output are mounted at their host paths so that every path on
// the build tool's command line is valid on both sides.
// This function is pure and deterministic - no Docker client interaction
func BuildContainerMounts(cfg *MountConfig) []mount.Mount {
	mounts := []mount.Mount{
		{
			Type:   mount.TypeBind,
			Source: cfg.ProjectPath,
			Target: cfg.ProjectPath,
		},
		{
			Type:   mount.TypeBind,
			Source: cfg.OutputRoot,
			Target: cfg.OutputRoot,
		},
	}

	if cfg.LicenseDir != "" {
		mounts = append(mounts, mount.Mount{
			Type:        mount.TypeBind,
			Source:      cfg.LicenseDir,
			Target:      LicenseTarget,
			ReadOnly:    true,
			BindOptions: &mount.BindOptions{Propagation: mount.PropagationRPrivate},
		})
	}

	return mounts
}

// BuildContainerEnv assembles the environment variables for a container.
// Command entries come last so they win over configured ones.
// This function is pure and deterministic - no Docker client interaction
func BuildContainerEnv(cfg *EnvConfig) []string {
	env := make([]string, 0, len(cfg.UserEnv)+len(cfg.CommandEnv)+2)

	keys := make([]string, 0, len(cfg.UserEnv))
	for k := range cfg.UserEnv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, fmt.Sprintf("%s=%s", k, cfg.UserEnv[k]))
	}

	// Host UID/GID let the entrypoint chown build output back to the host user
	env = append(env, fmt.Sprintf("HOST_UID=%d", cfg.HostUID))
	env = append(env, fmt.Sprintf("HOST_GID=%d", cfg.HostGID))

	return append(env, cfg.CommandEnv...)
}

// ValidateMountTargets validates that all mount sources exist
// This function is pure and deterministic - no Docker client interaction
func ValidateMountTargets(cfg *MountConfig) error {
	if cfg.ProjectPath == "" {
		return fmt.Errorf("project path cannot be empty")
	}
	if cfg.OutputRoot == "" {
		return fmt.Errorf("output root cannot be empty")
	}

	if _, err := os.Stat(cfg.ProjectPath); os.IsNotExist(err) {
		return fmt.Errorf("project path does not exist: %s", cfg.ProjectPath)
	}
	if _, err := os.Stat(cfg.OutputRoot); os.IsNotExist(err) {
		return fmt.Errorf("output root does not exist: %s", cfg.OutputRoot)
	}
	if cfg.LicenseDir != "" {
		if _, err := os.Stat(cfg.LicenseDir); os.IsNotExist(err) {
			return fmt.Errorf("license directory does not exist: %s", cfg.LicenseDir)
		}
	}

	return nil
}
