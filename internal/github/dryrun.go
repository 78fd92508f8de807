package github

import (
	"context"
	"log/slog"

	"github.com/nickromney-org/release-tagger/internal/release"
)

// DryRun passes reads through to the wrapped gateway and logs writes instead of sending them
type DryRun struct {
	gw     release.Gateway
	logger *slog.Logger
}

var _ release.Gateway = (*DryRun)(nil)

// NewDryRun wraps gw so that no remote state is changed
func NewDryRun(gw release.Gateway, logger *slog.Logger) *DryRun {
	if logger == nil {
		logger = slog.Default()
	}
	return &DryRun{gw: gw, logger: logger}
}

func (d *DryRun) SearchMergedPullRequests(ctx context.Context, sha string, labels []string, limit int) (*release.SearchResult, error) {
	return d.gw.SearchMergedPullRequests(ctx, sha, labels, limit)
}

func (d *DryRun) GetLatestRelease(ctx context.Context) (*release.ReleaseRecord, error) {
	return d.gw.GetLatestRelease(ctx)
}

func (d *DryRun) GetRef(ctx context.Context, tagName string) (*release.TagReference, error) {
	return d.gw.GetRef(ctx, tagName)
}

func (d *DryRun) CreateRef(ctx context.Context, tagName, sha string) error {
	d.logger.Info("[dry-run] would create tag", "tag", tagName, "sha", sha)
	return nil
}

func (d *DryRun) UpdateRef(ctx context.Context, tagName, sha string, force bool) error {
	d.logger.Info("[dry-run] would update tag", "tag", tagName, "sha", sha, "force", force)
	return nil
}

func (d *DryRun) CreateRelease(ctx context.Context, tagName string) (*release.ReleaseRecord, error) {
	d.logger.Info("[dry-run] would create release", "tag", tagName)
	return &release.ReleaseRecord{TagName: tagName}, nil
}
