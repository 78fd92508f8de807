package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v57/github"
	"github.com/m-mizutani/goerr/v2"
	"github.com/nickromney-org/release-tagger/internal/release"
	"github.com/nickromney-org/release-tagger/internal/version"
	"golang.org/x/oauth2"
)

// Client wraps the GitHub API client for a single repository
type Client struct {
	gh    *gh.Client
	Owner string
	Repo  string
}

var _ release.Gateway = (*Client)(nil)

// NewClient creates a new GitHub API client
func NewClient(token, owner, repo string) *Client {
	var client *gh.Client

	if token != "" {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		)
		tc := oauth2.NewClient(context.Background(), ts)
		client = gh.NewClient(tc)
	} else {
		client = gh.NewClient(nil)
	}

	return &Client{
		gh:    client,
		Owner: owner,
		Repo:  repo,
	}
}

// WithBaseURL points the client at another API root, e.g. GitHub Enterprise or a test server
func (c *Client) WithBaseURL(rawURL string) (*Client, error) {
	if !strings.HasSuffix(rawURL, "/") {
		rawURL += "/"
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid API base URL", goerr.V("url", rawURL))
	}
	c.gh.BaseURL = u
	return c, nil
}

// FullName returns owner/repo
func (c *Client) FullName() string {
	return fmt.Sprintf("%s/%s", c.Owner, c.Repo)
}

// SearchMergedPullRequests finds merged pull requests containing sha with any of the labels
func (c *Client) SearchMergedPullRequests(ctx context.Context, sha string, labels []string, limit int) (*release.SearchResult, error) {
	query := searchQuery(c.Owner, c.Repo, sha, labels)
	opts := &gh.SearchOptions{
		Sort:        "created",
		Order:       "desc",
		ListOptions: gh.ListOptions{PerPage: limit},
	}

	result, _, err := c.gh.Search.Issues(ctx, query, opts)
	if err != nil {
		return nil, c.wrap(err, "failed to search pull requests", goerr.V("query", query))
	}

	out := &release.SearchResult{Total: result.GetTotal()}
	for _, issue := range result.Issues {
		pr := release.PullRequest{
			Number:    issue.GetNumber(),
			Title:     issue.GetTitle(),
			CreatedAt: issue.GetCreatedAt().Time,
			SHA:       sha,
		}
		for _, label := range issue.Labels {
			pr.Labels = append(pr.Labels, label.GetName())
		}
		out.Items = append(out.Items, pr)
	}

	return out, nil
}

// GetLatestRelease fetches the latest published release
func (c *Client) GetLatestRelease(ctx context.Context) (*release.ReleaseRecord, error) {
	r, _, err := c.gh.Repositories.GetLatestRelease(ctx, c.Owner, c.Repo)
	if err != nil {
		return nil, c.wrap(err, "failed to get latest release")
	}

	return &release.ReleaseRecord{
		TagName: r.GetTagName(),
		URL:     r.GetHTMLURL(),
	}, nil
}

// LatestVersion fetches the latest release and parses its tag
func (c *Client) LatestVersion(ctx context.Context) (*version.Release, error) {
	r, _, err := c.gh.Repositories.GetLatestRelease(ctx, c.Owner, c.Repo)
	if err != nil {
		return nil, c.wrap(err, "failed to get latest release")
	}

	return parseRelease(r)
}

// CreateRef creates refs/tags/<tagName> at sha
func (c *Client) CreateRef(ctx context.Context, tagName, sha string) error {
	ref := &gh.Reference{
		Ref:    gh.String("refs/tags/" + tagName),
		Object: &gh.GitObject{SHA: gh.String(sha)},
	}

	if _, _, err := c.gh.Git.CreateRef(ctx, c.Owner, c.Repo, ref); err != nil {
		return c.wrap(err, "failed to create ref", goerr.V("ref", ref.GetRef()), goerr.V("sha", sha))
	}
	return nil
}

// GetRef reads tags/<tagName>. A missing ref yields an error wrapping release.ErrRefNotFound.
func (c *Client) GetRef(ctx context.Context, tagName string) (*release.TagReference, error) {
	ref, _, err := c.gh.Git.GetRef(ctx, c.Owner, c.Repo, "tags/"+tagName)
	if err != nil {
		if statusCode(err) == http.StatusNotFound {
			return nil, goerr.Wrap(release.ErrRefNotFound, "ref not found",
				goerr.V("ref", "tags/"+tagName), goerr.V("owner", c.Owner), goerr.V("repo", c.Repo))
		}
		return nil, c.wrap(err, "failed to get ref", goerr.V("ref", "tags/"+tagName))
	}

	return &release.TagReference{
		Name: tagName,
		SHA:  ref.GetObject().GetSHA(),
	}, nil
}

// UpdateRef moves tags/<tagName> to sha
func (c *Client) UpdateRef(ctx context.Context, tagName, sha string, force bool) error {
	ref := &gh.Reference{
		Ref:    gh.String("tags/" + tagName),
		Object: &gh.GitObject{SHA: gh.String(sha)},
	}

	if _, _, err := c.gh.Git.UpdateRef(ctx, c.Owner, c.Repo, ref, force); err != nil {
		return c.wrap(err, "failed to update ref", goerr.V("ref", ref.GetRef()), goerr.V("sha", sha))
	}
	return nil
}

// CreateRelease creates a release for an existing tag
func (c *Client) CreateRelease(ctx context.Context, tagName string) (*release.ReleaseRecord, error) {
	r, _, err := c.gh.Repositories.CreateRelease(ctx, c.Owner, c.Repo, &gh.RepositoryRelease{
		TagName: gh.String(tagName),
	})
	if err != nil {
		return nil, c.wrap(err, "failed to create release", goerr.V("tag", tagName))
	}

	return &release.ReleaseRecord{
		TagName: r.GetTagName(),
		URL:     r.GetHTMLURL(),
	}, nil
}

// wrap attaches repository context to an API error. Duplicate creates are
// mapped onto release.ErrAlreadyExists.
func (c *Client) wrap(err error, msg string, opts ...goerr.Option) error {
	opts = append(opts, goerr.V("owner", c.Owner), goerr.V("repo", c.Repo))

	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) {
		opts = append(opts, goerr.V("rate_reset", rateErr.Rate.Reset.Time.String()))
		return goerr.Wrap(err, msg+": rate limit exceeded", opts...)
	}

	var respErr *gh.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		opts = append(opts, goerr.V("status", respErr.Response.StatusCode))
		if respErr.Response.StatusCode == http.StatusUnprocessableEntity && isAlreadyExists(respErr) {
			return goerr.Wrap(release.ErrAlreadyExists, msg, append(opts, goerr.V("cause", err.Error()))...)
		}
	}

	return goerr.Wrap(err, msg, opts...)
}

func statusCode(err error) int {
	var respErr *gh.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		return respErr.Response.StatusCode
	}
	return 0
}

// isAlreadyExists reports whether a 422 is a duplicate rather than a validation failure
func isAlreadyExists(respErr *gh.ErrorResponse) bool {
	if strings.Contains(strings.ToLower(respErr.Message), "already exists") {
		return true
	}
	for _, e := range respErr.Errors {
		if e.Code == "already_exists" {
			return true
		}
	}
	return false
}

// searchQuery builds the issue search query for merged release pull requests
func searchQuery(owner, repo, sha string, labels []string) string {
	return fmt.Sprintf("type:pr state:closed is:merged label:%s repo:%s/%s SHA:%s",
		strings.Join(labels, ","), owner, repo, sha)
}

// parseRelease converts a GitHub release to our Release type
func parseRelease(ghRelease *gh.RepositoryRelease) (*version.Release, error) {
	tagName := ghRelease.GetTagName()
	if tagName == "" {
		return nil, goerr.New("release has no tag name")
	}

	ver, err := version.Coerce(tagName)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid release version", goerr.V("tag", tagName))
	}

	return &version.Release{
		Version:     ver,
		TagName:     tagName,
		PublishedAt: ghRelease.GetPublishedAt().Time,
		URL:         ghRelease.GetHTMLURL(),
	}, nil
}
