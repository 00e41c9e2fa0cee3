// Package platform resolves OS specific runtime facts and the default data
// locations used across the tool.
package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

type Runtime struct {
	OS   string
	Arch string
}

func CurrentRuntime() Runtime {
	return Runtime{
		OS:   runtime.GOOS,
		Arch: NormalizeArch(runtime.GOARCH),
	}
}

func NormalizeArch(arch string) string {
	switch arch {
	case "x86_64":
		return "amd64"
	case "aarch64":
		return "arm64"
	default:
		return arch
	}
}

func DefaultModelDirFor(goos, homeDir, xdgDataHome string) (string, error) {
	return defaultDataSubdirFor(goos, homeDir, xdgDataHome, "models")
}

func DefaultRecordingDirFor(goos, homeDir, xdgDataHome string) (string, error) {
	return defaultDataSubdirFor(goos, homeDir, xdgDataHome, "recordings")
}

func DefaultReportDirFor(goos, homeDir, xdgDataHome string) (string, error) {
	return defaultDataSubdirFor(goos, homeDir, xdgDataHome, "reports")
}

func DefaultDatabasePathFor(goos, homeDir, xdgDataHome string) (string, error) {
	dataDir, err := defaultDataDirFor(goos, homeDir, xdgDataHome)
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "neuromind.db"), nil
}

func ResolveModelDir(override string) (string, error) {
	if override != "" {
		return filepath.Clean(override), nil
	}
	return resolveDefault(DefaultModelDirFor)
}

func ResolveRecordingDir(override string) (string, error) {
	if override != "" {
		return filepath.Clean(override), nil
	}
	return resolveDefault(DefaultRecordingDirFor)
}

func ResolveReportDir(override string) (string, error) {
	if override != "" {
		return filepath.Clean(override), nil
	}
	return resolveDefault(DefaultReportDirFor)
}

func ResolveDatabasePath(override string) (string, error) {
	if override != "" {
		return filepath.Clean(override), nil
	}
	return resolveDefault(DefaultDatabasePathFor)
}

func resolveDefault(fn func(goos, homeDir, xdgDataHome string) (string, error)) (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}
	return fn(runtime.GOOS, homeDir, os.Getenv("XDG_DATA_HOME"))
}

func defaultDataSubdirFor(goos, homeDir, xdgDataHome, subdir string) (string, error) {
	dataDir, err := defaultDataDirFor(goos, homeDir, xdgDataHome)
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, subdir), nil
}

func defaultDataDirFor(goos, homeDir, xdgDataHome string) (string, error) {
	if homeDir == "" {
		return "", errors.New("home directory is empty")
	}

	switch goos {
	case "linux":
		if xdgDataHome != "" {
			return filepath.Join(xdgDataHome, "neuromind"), nil
		}
		return filepath.Join(homeDir, ".local", "share", "neuromind"), nil
	case "darwin":
		return filepath.Join(homeDir, "Library", "Application Support", "neuromind"), nil
	default:
		return "", fmt.Errorf("unsupported OS: %s", goos)
	}
}
