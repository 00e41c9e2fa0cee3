// Package version reports the build version, enriched with git metadata when
// the binary runs inside a source checkout.
package version

import (
	"os/exec"
	"strings"
)

// Set at build time via -ldflags.
var (
	Version = "0.1.0"
	Commit  = "unknown"
	Date    = "unknown"
)

// Resolve returns the version string. When HEAD of the surrounding git
// repository does not sit on a release tag, a describe-derived suffix is
// appended so development builds stay distinguishable.
func Resolve() string {
	return resolve(Version, gitOutput)
}

func resolve(base string, git func(...string) (string, error)) string {
	if base == "" {
		base = "0.0.0"
	}

	if _, err := git("rev-parse", "--git-dir"); err != nil {
		return base
	}
	if _, err := git("describe", "--tags", "--exact-match"); err == nil {
		return base
	}

	desc, err := git("describe", "--tags", "--dirty", "--always")
	if err != nil || desc == "" {
		return base
	}

	desc = strings.TrimPrefix(desc, "v"+base+"-")
	return base + "-" + desc
}

func gitOutput(args ...string) (string, error) {
	out, err := exec.Command("git", args...).Output()
	return strings.TrimSpace(string(out)), err
}
