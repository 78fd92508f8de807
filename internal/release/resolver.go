package release

import (
	"context"
	"log/slog"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/nickromney-org/release-tagger/internal/version"
)

// DefaultSearchLimit is the page size used when searching for release pull requests
const DefaultSearchLimit = 5

// ResolverConfig holds configuration for the version resolver
type ResolverConfig struct {
	TagPrefix   string
	SearchLimit int
}

// Resolver decides the next release version for an event
type Resolver struct {
	gw     Gateway
	config ResolverConfig
	logger *slog.Logger
}

// NewResolver creates a new version resolver
func NewResolver(gw Gateway, config ResolverConfig, logger *slog.Logger) *Resolver {
	if config.SearchLimit <= 0 {
		config.SearchLimit = DefaultSearchLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		gw:     gw,
		config: config,
		logger: logger,
	}
}

// Resolve returns the release version for the event, or nil when the event
// should not produce a release.
func (r *Resolver) Resolve(ctx context.Context, ec EventContext) (*ReleaseVersion, error) {
	if ec.Trigger == TriggerTagPush {
		return r.fromTag(ec.Ref), nil
	}
	return r.fromPullRequest(ctx, ec.SHA)
}

func (r *Resolver) fromTag(ref string) *ReleaseVersion {
	r.logger.Debug("Getting version from pushed tag", "ref", ref)

	v, err := version.Coerce(ref)
	if err != nil {
		r.logger.Warn("Tag is not a valid version", "ref", ref)
		return nil
	}

	return &ReleaseVersion{
		Version: v,
		TagName: strings.TrimPrefix(ref, "refs/tags/"),
		Source:  SourceTag,
	}
}

func (r *Resolver) fromPullRequest(ctx context.Context, sha string) (*ReleaseVersion, error) {
	r.logger.Debug("Finding related pull requests", "sha", sha)

	result, err := r.gw.SearchMergedPullRequests(ctx, sha, version.Labels(), r.config.SearchLimit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search pull requests", goerr.V("sha", sha))
	}

	if result.Total < 1 || len(result.Items) == 0 {
		r.logger.Warn("No release pull request found for commit", "sha", sha)
		return nil, nil
	}
	if result.Total > 1 {
		r.logger.Warn("Multiple pull requests found for commit, will use the most recent",
			"sha", sha,
			"count", result.Total,
		)
	}

	pr := result.Items[0]

	r.logger.Debug("Getting release type", "pull_request", pr.Number, "title", pr.Title, "labels", pr.Labels)
	releaseType, err := version.ReleaseTypeFromLabels(pr.Labels)
	if err != nil {
		return nil, goerr.Wrap(ErrLabelParse, "failed to get release type from pull request",
			goerr.V("pull_request", pr.Number),
			goerr.V("labels", pr.Labels),
			goerr.V("cause", err.Error()),
		)
	}

	r.logger.Debug("Getting latest version")
	latest, err := r.gw.GetLatestRelease(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get latest release")
	}

	latestVersion, err := version.Coerce(latest.TagName)
	if err != nil {
		return nil, goerr.Wrap(ErrVersionParse, "failed to parse latest release tag",
			goerr.V("tag", latest.TagName),
		)
	}
	r.logger.Debug("Repo latest release version", "version", latestVersion.String())

	next := version.Bump(latestVersion, releaseType)
	r.logger.Debug("Incrementing version",
		"release_type", string(releaseType),
		"from", latestVersion.String(),
		"to", next.String(),
	)

	return &ReleaseVersion{
		Version:     next,
		TagName:     r.config.TagPrefix + next.String(),
		Source:      SourcePullRequest,
		ReleaseType: releaseType,
		PullRequest: pr.Number,
		Previous:    latest.TagName,
	}, nil
}
