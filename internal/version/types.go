package version

import (
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/m-mizutani/goerr/v2"
)

// ReleaseType is the category of version increment signalled by a pull request label
type ReleaseType string

const (
	Major ReleaseType = "major"
	Minor ReleaseType = "minor"
	Patch ReleaseType = "patch"
)

// LabelPrefix marks pull request labels that carry a ReleaseType
const LabelPrefix = "release:"

var (
	ErrNoReleaseLabel     = goerr.New("no release label on pull request")
	ErrUnknownReleaseType = goerr.New("unknown release type")
)

// Release represents a published GitHub release
type Release struct {
	Version     *semver.Version
	TagName     string
	PublishedAt time.Time
	URL         string
}

// ParseReleaseType validates s against the closed set of release types
func ParseReleaseType(s string) (ReleaseType, error) {
	switch t := ReleaseType(s); t {
	case Major, Minor, Patch:
		return t, nil
	default:
		return "", goerr.Wrap(ErrUnknownReleaseType, "invalid release type", goerr.V("value", s))
	}
}

// Label returns the pull request label for the release type, e.g. "release:minor"
func (t ReleaseType) Label() string {
	return LabelPrefix + string(t)
}

// Labels returns every recognized release label
func Labels() []string {
	return []string{Major.Label(), Minor.Label(), Patch.Label()}
}

// ReleaseTypeFromLabels takes the first label carrying the release prefix and
// parses its suffix. Later release labels are ignored.
func ReleaseTypeFromLabels(labels []string) (ReleaseType, error) {
	for _, label := range labels {
		if !strings.HasPrefix(label, LabelPrefix) {
			continue
		}
		return ParseReleaseType(strings.TrimPrefix(label, LabelPrefix))
	}

	return "", goerr.Wrap(ErrNoReleaseLabel, "failed to find release label", goerr.V("labels", labels))
}

// Bump increments v by the release type. Pre-release and build metadata on v
// are dropped first, so 1.2.3-rc.1 bumps to 1.2.4 on a patch.
func Bump(v *semver.Version, t ReleaseType) *semver.Version {
	base := semver.New(v.Major(), v.Minor(), v.Patch(), "", "")

	var next semver.Version
	switch t {
	case Major:
		next = base.IncMajor()
	case Minor:
		next = base.IncMinor()
	default:
		next = base.IncPatch()
	}
	return &next
}
