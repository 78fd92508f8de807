package version

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/m-mizutani/goerr/v2"
)

// ErrNotAVersion is returned when no version can be coerced from a string
var ErrNotAVersion = goerr.New("not a version")

var coercePattern = regexp.MustCompile(`(?:^|[^\d])(\d{1,16})(?:\.(\d{1,16}))?(?:\.(\d{1,16}))?(?:$|[^\d])`)

// Coerce parses a loosely formatted tag name into a semantic version.
//
// A string that is already a version (optionally "v" prefixed, with pre-release
// or build metadata) is returned as is. Anything else is reduced to its first
// MAJOR[.MINOR[.PATCH]] run, so "release-2.4" becomes 2.4.0.
func Coerce(s string) (*semver.Version, error) {
	name := strings.TrimPrefix(strings.TrimSpace(s), "refs/tags/")

	if v, err := semver.NewVersion(name); err == nil {
		return v, nil
	}

	m := coercePattern.FindStringSubmatch(name)
	if m == nil {
		return nil, goerr.Wrap(ErrNotAVersion, "failed to coerce version", goerr.V("value", s))
	}

	parts := []string{m[1], m[2], m[3]}
	for i, p := range parts {
		if p == "" {
			parts[i] = "0"
		}
	}

	v, err := semver.NewVersion(fmt.Sprintf("%s.%s.%s", parts[0], parts[1], parts[2]))
	if err != nil {
		return nil, goerr.Wrap(ErrNotAVersion, "failed to coerce version", goerr.V("value", s), goerr.V("cause", err.Error()))
	}
	return v, nil
}

// MustCoerce is like Coerce but panics on failure. Intended for tests and constants.
func MustCoerce(s string) *semver.Version {
	v, err := Coerce(s)
	if err != nil {
		panic(err)
	}
	return v
}
