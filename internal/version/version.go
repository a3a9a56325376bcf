// Package version reports the build version and checks for newer releases.
package version

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/CoinSpace/cs-bitcoin-wallet/internal/chain"
)

// Build information, set with -ldflags "-X".
//
//nolint:gochecknoglobals // linker-populated build metadata
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// ReleasesURL is the API root the latest release is read from.
const ReleasesURL = "https://api.github.com"

const releasePath = "repos/CoinSpace/cs-bitcoin-wallet/releases/latest"

// Release is the subset of a published release the CLI shows.
type Release struct {
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	Prerelease  bool      `json:"prerelease"`
	PublishedAt time.Time `json:"published_at"`
}

// Info describes the running build.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	Date      string `json:"date,omitempty"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
	Latest    string `json:"latest,omitempty"`
	Newer     bool   `json:"update_available,omitempty"`
}

// Current returns the running build's information.
func Current() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// UserAgent identifies the CLI to remote APIs.
func UserAgent() string {
	return fmt.Sprintf("cswallet/%s (%s/%s)", Version, runtime.GOOS, runtime.GOARCH)
}

// Latest fetches the latest release through t.
func Latest(ctx context.Context, t *chain.Transport) (*Release, error) {
	var rel Release
	if err := t.GetJSON(ctx, releasePath, nil, &rel); err != nil {
		return nil, fmt.Errorf("fetching latest release: %w", err)
	}
	return &rel, nil
}

// Check fills in the latest release and whether it is newer than the build.
func Check(ctx context.Context, t *chain.Transport) (Info, error) {
	info := Current()
	rel, err := Latest(ctx, t)
	if err != nil {
		return info, err
	}
	info.Latest = rel.TagName
	info.Newer = IsNewer(info.Version, rel.TagName)
	return info, nil
}

// IsNewer reports whether latest is a newer release than current. Dev
// builds and commit hashes are older than any release.
func IsNewer(current, latest string) bool {
	return Compare(latest, current) > 0
}

// Compare orders two versions: 1 if a > b, -1 if a < b, 0 if equal.
func Compare(a, b string) int {
	devA, devB := isDev(a), isDev(b)
	switch {
	case devA && devB:
		return 0
	case devA:
		return -1
	case devB:
		return 1
	}

	pa, pb := parse(a), parse(b)
	for i := range 3 {
		if pa[i] != pb[i] {
			if pa[i] > pb[i] {
				return 1
			}
			return -1
		}
	}
	return 0
}

// Normalize strips whitespace, "v" prefixes and pre-release or build suffixes.
func Normalize(v string) string {
	v = strings.TrimLeft(strings.TrimSpace(v), "v")
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		v = v[:i]
	}
	return v
}

func parse(v string) [3]int {
	var out [3]int
	for i, part := range strings.SplitN(Normalize(v), ".", 3) {
		_, _ = fmt.Sscanf(part, "%d", &out[i])
	}
	return out
}

func isDev(v string) bool {
	v = Normalize(v)
	return v == "" || v == "dev" || isCommitHash(v)
}

// isCommitHash matches 7-40 hex characters with at least one letter, so
// date-like numeric versions are not mistaken for hashes.
func isCommitHash(s string) bool {
	if len(s) < 7 || len(s) > 40 {
		return false
	}
	letter := false
	for _, c := range strings.ToLower(s) {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
			letter = true
		default:
			return false
		}
	}
	return letter
}
