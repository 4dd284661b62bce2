package browser

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/mod/semver"
)

// MinVersion is the oldest automation CLI whose snapshot output carries
// the refs map the parsers read.
const MinVersion = "v0.4.0"

var versionRe = regexp.MustCompile(`\bv?(\d+\.\d+(?:\.\d+)?(?:-[0-9A-Za-z.-]+)?)\b`)

// Version runs the CLI with --version and returns its canonical semantic
// version, e.g. "v0.5.1".
func Version(ctx context.Context, r Runner) (string, error) {
	out, err := r.Run(ctx, "--version")
	if err != nil {
		return "", err
	}
	m := versionRe.FindStringSubmatch(strings.TrimSpace(string(out)))
	if m == nil {
		return "", fmt.Errorf("no version in %q", strings.TrimSpace(string(out)))
	}
	v := semver.Canonical("v" + m[1])
	if v == "" {
		return "", fmt.Errorf("invalid version %q", m[1])
	}
	return v, nil
}

// Supported reports whether version is at least MinVersion.
func Supported(version string) bool {
	return semver.IsValid(version) && semver.Compare(version, MinVersion) >= 0
}
