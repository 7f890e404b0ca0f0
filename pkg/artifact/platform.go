// Package artifact turns raw build tool output into distributable artifacts.
//
// Desktop targets are archived into a single zip, the web target is left as
// a directory so it can be uploaded file by file and previewed, and any other
// target is returned as produced.
package artifact

import "strings"

// Platform is the packaging family of a build target.
type Platform int

const (
	// PlatformOther targets are returned unchanged.
	PlatformOther Platform = iota
	// PlatformWindows targets are archived.
	PlatformWindows
	// PlatformMacOS targets may get an implicit ".app" suffix and are archived.
	PlatformMacOS
	// PlatformWeb targets stay a directory for tree upload.
	PlatformWeb
)

// Target identifiers with special packaging rules.
const (
	TargetWebGL         = "WebGL"
	TargetStandaloneOSX = "StandaloneOSX"
	TargetOSXUniversal  = "OSXUniversal"
	TargetWin64         = "Win64"
)

// AppBundleSuffix is appended by the build tool to macOS outputs.
const AppBundleSuffix = ".app"

func (p Platform) String() string {
	switch p {
	case PlatformWindows:
		return "windows"
	case PlatformMacOS:
		return "macos"
	case PlatformWeb:
		return "web"
	default:
		return "other"
	}
}

// Classify maps a target identifier to its platform family.
func Classify(target string) Platform {
	switch {
	case target == TargetWebGL:
		return PlatformWeb
	case target == TargetStandaloneOSX || target == TargetOSXUniversal:
		return PlatformMacOS
	case strings.Contains(target, "Windows") || target == TargetWin64:
		return PlatformWindows
	default:
		return PlatformOther
	}
}

// Archived reports whether artifacts of this platform are zipped.
func (p Platform) Archived() bool {
	return p == PlatformWindows || p == PlatformMacOS
}

// IsTree reports whether target artifacts are uploaded as a browsable tree.
func IsTree(target string) bool {
	return Classify(target) == PlatformWeb
}
