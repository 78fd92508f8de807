package cmd

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/nickromney-org/release-tagger/internal/config"
	"github.com/nickromney-org/release-tagger/internal/release"
)

// execute resolves the release version for ec and publishes it through gw.
// A commit that cannot be released yields an unreleased Result, not an error.
func execute(ctx context.Context, gw release.Gateway, cfg *config.Config, ec release.EventContext, logger *slog.Logger) (*Result, error) {
	resolver := release.NewResolver(gw, release.ResolverConfig{
		TagPrefix:   cfg.TagPrefix,
		SearchLimit: cfg.SearchLimit,
	}, logger)

	rv, err := resolver.Resolve(ctx, ec)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to resolve release version", goerr.V("sha", ec.SHA))
	}
	if rv == nil {
		logger.Warn("Could not determine the release version, ignoring commit", "sha", ec.SHA)
		return &Result{SHA: ec.SHA, DryRun: cfg.DryRun}, nil
	}

	reconciler := release.NewReconciler(gw, release.ReconcilerConfig{
		TagPrefix:      cfg.TagPrefix,
		UpdateMajorTag: cfg.UpdateMajorTag,
	}, logger)

	outcome, err := reconciler.Reconcile(ctx, rv, ec.SHA)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to publish release", goerr.V("tag", rv.TagName))
	}

	return newResult(rv, outcome, cfg.DryRun), nil
}
