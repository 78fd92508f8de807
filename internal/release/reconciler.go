package release

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/m-mizutani/goerr/v2"
)

// MajorTagAction records what happened to the major alias tag
type MajorTagAction string

const (
	MajorTagNone    MajorTagAction = "none"
	MajorTagCreated MajorTagAction = "created"
	MajorTagUpdated MajorTagAction = "updated"
)

// ReconcilerConfig holds configuration for the tag reconciler
type ReconcilerConfig struct {
	TagPrefix      string
	UpdateMajorTag bool
}

// Outcome describes the remote changes made for a release
type Outcome struct {
	Version        *ReleaseVersion `json:"-"`
	SHA            string          `json:"sha"`
	TagCreated     bool            `json:"tag_created"`
	Release        *ReleaseRecord  `json:"-"`
	MajorTag       string          `json:"major_tag,omitempty"`
	MajorTagAction MajorTagAction  `json:"major_tag_action"`
}

// Reconciler creates the release tag, the release, and the major alias tag
type Reconciler struct {
	gw     Gateway
	config ReconcilerConfig
	logger *slog.Logger
}

// NewReconciler creates a new tag reconciler
func NewReconciler(gw Gateway, config ReconcilerConfig, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		gw:     gw,
		config: config,
		logger: logger,
	}
}

// Reconcile publishes rv at sha. It is not transactional: a tag created before
// a failing step is left in place.
func (r *Reconciler) Reconcile(ctx context.Context, rv *ReleaseVersion, sha string) (*Outcome, error) {
	if rv == nil {
		return nil, goerr.New("no release version to reconcile")
	}

	outcome := &Outcome{
		Version:        rv,
		SHA:            sha,
		MajorTagAction: MajorTagNone,
	}

	// A pushed tag already exists remotely
	if rv.Source == SourcePullRequest {
		r.logger.Info("Creating tag for version", "version", rv.Version.String(), "tag", rv.TagName)
		if err := r.gw.CreateRef(ctx, rv.TagName, sha); err != nil {
			return nil, goerr.Wrap(err, "failed to create release tag", goerr.V("tag", rv.TagName), goerr.V("sha", sha))
		}
		outcome.TagCreated = true
	}

	r.logger.Info("Creating release for tag", "tag", rv.TagName)
	record, err := r.gw.CreateRelease(ctx, rv.TagName)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create release", goerr.V("tag", rv.TagName))
	}
	outcome.Release = record

	if !r.config.UpdateMajorTag {
		return outcome, nil
	}

	majorTag := r.config.TagPrefix + strconv.FormatUint(rv.Version.Major(), 10)
	outcome.MajorTag = majorTag

	action, err := r.upsertMajorTag(ctx, majorTag, sha)
	if err != nil {
		return nil, err
	}
	outcome.MajorTagAction = action

	return outcome, nil
}

func (r *Reconciler) upsertMajorTag(ctx context.Context, majorTag, sha string) (MajorTagAction, error) {
	r.logger.Debug("Looking up major version tag", "tag", majorTag)
	_, err := r.gw.GetRef(ctx, majorTag)

	switch {
	case err == nil:
		r.logger.Info("Updating major version tag", "tag", majorTag, "sha", sha)
		if err := r.gw.UpdateRef(ctx, majorTag, sha, true); err != nil {
			return "", goerr.Wrap(err, "failed to update major version tag", goerr.V("tag", majorTag))
		}
		return MajorTagUpdated, nil

	case errors.Is(err, ErrRefNotFound):
		r.logger.Info("Creating major version tag", "tag", majorTag, "sha", sha)
		if err := r.gw.CreateRef(ctx, majorTag, sha); err != nil {
			return "", goerr.Wrap(err, "failed to create major version tag", goerr.V("tag", majorTag))
		}
		return MajorTagCreated, nil

	default:
		return "", goerr.Wrap(err, "failed to read major version tag", goerr.V("tag", majorTag))
	}
}
