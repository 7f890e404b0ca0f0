package artifact

import (
	"fmt"
	"os"

	"github.com/holon-run/buildbridge/pkg/log"
)

// Result is the outcome of packaging. Path is always usable as a return
// value: when packaging could not complete, Path is the nominal output path
// and Degraded holds the reason.
type Result struct {
	Path     string
	Platform Platform
	Archived bool
	Degraded error
}

// Packager applies the platform packaging policy to build output.
type Packager struct {
	// archive is swappable in tests.
	archive func(src, dst string) error
}

// NewPackager returns a Packager that writes zip archives.
func NewPackager() *Packager {
	return &Packager{archive: Archive}
}

// Package converts the build tool's output at nominal into the artifact to
// publish for target. It never fails; see Result.
func (p *Packager) Package(nominal, target string) Result {
	platform := Classify(target)
	res := Result{Path: nominal, Platform: platform}

	actual := ProbeOutput(nominal, target)
	if _, err := os.Stat(actual); err != nil {
		res.Degraded = fmt.Errorf("build output not found: %w", err)
		log.Warn("failed to process build output, using nominal path", "target", target, "path", nominal, "error", err)
		return res
	}

	switch {
	case platform.Archived():
		zipPath := actual + ArchiveSuffix
		if err := p.archive(actual, zipPath); err != nil {
			res.Degraded = fmt.Errorf("failed to create archive: %w", err)
			log.Warn("failed to process build output, using nominal path", "target", target, "path", nominal, "error", err)
			return res
		}
		log.Info("created archive", "target", target, "path", zipPath)
		res.Path = zipPath
		res.Archived = true
	default:
		res.Path = actual
	}
	return res
}

// ProbeOutput returns the path the build tool actually wrote for target.
// macOS builds get an implicit ".app" suffix; when that path exists it is
// preferred, otherwise nominal is returned.
func ProbeOutput(nominal, target string) string {
	if Classify(target) != PlatformMacOS {
		return nominal
	}
	app := nominal + AppBundleSuffix
	if _, err := os.Stat(app); err == nil {
		return app
	}
	return nominal
}
