package docker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/docker/docker/api/types/mount"
)

func TestBuildContainerMounts(t *testing.T) {
	tmpDir := t.TempDir()
	projectDir := filepath.Join(tmpDir, "repos", "pr-1")
	outDir := filepath.Join(tmpDir, "builds")
	licenseDir := filepath.Join(tmpDir, "license")

	tests := []struct {
		name     string
		cfg      *MountConfig
		expected []mount.Mount
	}{
		{
			name: "required mounts only",
			cfg: &MountConfig{
				ProjectPath: projectDir,
				OutputRoot:  outDir,
			},
			expected: []mount.Mount{
				{Type: mount.TypeBind, Source: projectDir, Target: projectDir},
				{Type: mount.TypeBind, Source: outDir, Target: outDir},
			},
		},
		{
			name: "with license directory",
			cfg: &MountConfig{
				ProjectPath: projectDir,
				OutputRoot:  outDir,
				LicenseDir:  licenseDir,
			},
			expected: []mount.Mount{
				{Type: mount.TypeBind, Source: projectDir, Target: projectDir},
				{Type: mount.TypeBind, Source: outDir, Target: outDir},
				{Type: mount.TypeBind, Source: licenseDir, Target: LicenseTarget, ReadOnly: true},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := BuildContainerMounts(tt.cfg)

			if len(result) != len(tt.expected) {
				t.Errorf("BuildContainerMounts() returned %d mounts, expected %d", len(result), len(tt.expected))
				return
			}

			for i := range result {
				if result[i].Type != tt.expected[i].Type {
					t.Errorf("mount %d: Type = %v, want %v", i, result[i].Type, tt.expected[i].Type)
				}
				if result[i].Source != tt.expected[i].Source {
					t.Errorf("mount %d: Source = %v, want %v", i, result[i].Source, tt.expected[i].Source)
				}
				if result[i].Target != tt.expected[i].Target {
					t.Errorf("mount %d: Target = %v, want %v", i, result[i].Target, tt.expected[i].Target)
				}
				if result[i].ReadOnly != tt.expected[i].ReadOnly {
					t.Errorf("mount %d: ReadOnly = %v, want %v", i, result[i].ReadOnly, tt.expected[i].ReadOnly)
				}
			}
		})
	}
}

func TestBuildContainerEnv(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *EnvConfig
		expected []string
	}{
		{
			name: "sorted user env then host ids",
			cfg: &EnvConfig{
				UserEnv: map[string]string{
					"UNITY_SERIAL": "S1",
					"BUILD_NAME":   "game",
				},
				HostUID: 1000,
				HostGID: 1001,
			},
			expected: []string{
				"BUILD_NAME=game",
				"UNITY_SERIAL=S1",
				"HOST_UID=1000",
				"HOST_GID=1001",
			},
		},
		{
			name: "command env appended last",
			cfg: &EnvConfig{
				UserEnv:    map[string]string{"MODE": "ci"},
				CommandEnv: []string{"MODE=debug"},
				HostUID:    0,
				HostGID:    0,
			},
			expected: []string{
				"MODE=ci",
				"HOST_UID=0",
				"HOST_GID=0",
				"MODE=debug",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := BuildContainerEnv(tt.cfg)
			if len(result) != len(tt.expected) {
				t.Fatalf("BuildContainerEnv() = %v, want %v", result, tt.expected)
			}
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("env[%d] = %q, want %q", i, result[i], tt.expected[i])
				}
			}
		})
	}
}

func TestValidateMountTargets(t *testing.T) {
	tmpDir := t.TempDir()
	projectDir := filepath.Join(tmpDir, "project")
	outDir := filepath.Join(tmpDir, "builds")
	for _, d := range []string{projectDir, outDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name    string
		cfg     *MountConfig
		wantErr bool
	}{
		{"valid", &MountConfig{ProjectPath: projectDir, OutputRoot: outDir}, false},
		{"empty project", &MountConfig{OutputRoot: outDir}, true},
		{"empty output", &MountConfig{ProjectPath: projectDir}, true},
		{"missing project", &MountConfig{ProjectPath: filepath.Join(tmpDir, "nope"), OutputRoot: outDir}, true},
		{"missing license", &MountConfig{ProjectPath: projectDir, OutputRoot: outDir, LicenseDir: filepath.Join(tmpDir, "lic")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMountTargets(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateMountTargets() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
