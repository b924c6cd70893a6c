package platform

import (
	"path/filepath"
	"runtime"
)

// Platform represents the detected platform
type Platform string

const (
	PlatformMacOS   Platform = "macos"
	PlatformLinux   Platform = "linux"
	PlatformBSD     Platform = "bsd"
	PlatformUnknown Platform = "unknown"
)

// cached detection result
var detectedPlatform Platform
var detectionDone bool

// Detect returns the current platform, caching the result
func Detect() Platform {
	if detectionDone {
		return detectedPlatform
	}

	detectedPlatform = detectPlatform(runtime.GOOS)
	detectionDone = true
	return detectedPlatform
}

func detectPlatform(goos string) Platform {
	switch goos {
	case "darwin":
		return PlatformMacOS
	case "linux":
		return PlatformLinux
	case "freebsd", "openbsd", "netbsd", "dragonfly":
		return PlatformBSD
	default:
		return PlatformUnknown
	}
}

// GameDirs returns the directories where packaged games are conventionally
// installed, most specific first.
func (p Platform) GameDirs() []string {
	switch p {
	case PlatformMacOS:
		return []string{"/opt/homebrew/bin", "/usr/local/games", "/usr/local/bin"}
	case PlatformLinux:
		return []string{"/usr/games", "/usr/local/games"}
	case PlatformBSD:
		return []string{"/usr/local/bin", "/usr/games"}
	default:
		return nil
	}
}

// GamePaths joins name onto each of the platform's game directories.
func (p Platform) GamePaths(name string) []string {
	dirs := p.GameDirs()
	paths := make([]string, 0, len(dirs))
	for _, d := range dirs {
		paths = append(paths, filepath.Join(d, name))
	}
	return paths
}

// String returns a human-readable platform name
func (p Platform) String() string {
	switch p {
	case PlatformMacOS:
		return "macOS"
	case PlatformLinux:
		return "Linux"
	case PlatformBSD:
		return "BSD"
	default:
		return "Unknown"
	}
}
