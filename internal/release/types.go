package release

import (
	"context"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/m-mizutani/goerr/v2"
	"github.com/nickromney-org/release-tagger/internal/version"
)

var (
	// ErrLabelParse means the selected pull request carries no usable release label
	ErrLabelParse = goerr.New("failed to parse release label")
	// ErrVersionParse means the latest release tag is not a semantic version
	ErrVersionParse = goerr.New("failed to parse latest release version")

	// ErrRefNotFound is returned by a Gateway when a ref does not exist
	ErrRefNotFound = goerr.New("ref not found")
	// ErrAlreadyExists is returned by a Gateway when a ref or release already exists
	ErrAlreadyExists = goerr.New("already exists")
)

// Trigger is the kind of event that started the run
type Trigger string

const (
	TriggerTagPush Trigger = "tag-push"
	TriggerOther   Trigger = "other"
)

// EventContext describes the triggering event
type EventContext struct {
	Trigger Trigger
	SHA     string
	Ref     string // pushed ref, only set for TriggerTagPush
}

// Source records how a ReleaseVersion was resolved
type Source string

const (
	SourceTag         Source = "tag"
	SourcePullRequest Source = "pull-request"
)

// ReleaseVersion is the resolved version and the tag it is published under
type ReleaseVersion struct {
	Version *semver.Version
	TagName string
	Source  Source

	// Set on the pull request path only
	ReleaseType version.ReleaseType
	PullRequest int
	Previous    string
}

// PullRequest is a merged pull request candidate returned by a search
type PullRequest struct {
	Number    int
	Title     string
	Labels    []string
	CreatedAt time.Time
	SHA       string
}

// SearchResult holds the reported match count and the first page of matches
type SearchResult struct {
	Total int
	Items []PullRequest
}

// TagReference is a git tag ref
type TagReference struct {
	Name string
	SHA  string
}

// ReleaseRecord is a published release
type ReleaseRecord struct {
	TagName string
	URL     string
}

// Gateway is the set of remote repository operations the resolver and reconciler need.
//
// Implementations must wrap ErrRefNotFound when GetRef finds nothing and
// ErrAlreadyExists when a create call conflicts.
type Gateway interface {
	// SearchMergedPullRequests finds closed, merged pull requests containing sha
	// and carrying any of labels, most recently created first.
	SearchMergedPullRequests(ctx context.Context, sha string, labels []string, limit int) (*SearchResult, error)
	GetLatestRelease(ctx context.Context) (*ReleaseRecord, error)
	CreateRef(ctx context.Context, tagName, sha string) error
	GetRef(ctx context.Context, tagName string) (*TagReference, error)
	UpdateRef(ctx context.Context, tagName, sha string, force bool) error
	CreateRelease(ctx context.Context, tagName string) (*ReleaseRecord, error)
}
