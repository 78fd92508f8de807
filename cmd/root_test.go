package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/nickromney-org/release-tagger/internal/config"
	"github.com/nickromney-org/release-tagger/internal/logging"
	"github.com/nickromney-org/release-tagger/internal/release"
	"github.com/sethvargo/go-githubactions"
)

// stubGateway serves a fixed search result and latest release and records writes
type stubGateway struct {
	search  *release.SearchResult
	latest  string
	refs    map[string]string
	writes  []string
	failAll error
}

func (g *stubGateway) SearchMergedPullRequests(ctx context.Context, sha string, labels []string, limit int) (*release.SearchResult, error) {
	if g.failAll != nil {
		return nil, g.failAll
	}
	if g.search == nil {
		return &release.SearchResult{}, nil
	}
	return g.search, nil
}

func (g *stubGateway) GetLatestRelease(ctx context.Context) (*release.ReleaseRecord, error) {
	return &release.ReleaseRecord{TagName: g.latest}, nil
}

func (g *stubGateway) CreateRef(ctx context.Context, tagName, sha string) error {
	g.writes = append(g.writes, "create-ref:"+tagName)
	if g.refs == nil {
		g.refs = map[string]string{}
	}
	g.refs[tagName] = sha
	return nil
}

func (g *stubGateway) GetRef(ctx context.Context, tagName string) (*release.TagReference, error) {
	sha, ok := g.refs[tagName]
	if !ok {
		return nil, release.ErrRefNotFound
	}
	return &release.TagReference{Name: tagName, SHA: sha}, nil
}

func (g *stubGateway) UpdateRef(ctx context.Context, tagName, sha string, force bool) error {
	g.writes = append(g.writes, "update-ref:"+tagName)
	g.refs[tagName] = sha
	return nil
}

func (g *stubGateway) CreateRelease(ctx context.Context, tagName string) (*release.ReleaseRecord, error) {
	g.writes = append(g.writes, "create-release:"+tagName)
	return &release.ReleaseRecord{TagName: tagName, URL: "https://github.com/octo/widgets/releases/tag/" + tagName}, nil
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Repository = "octo/widgets"
	return cfg
}

func minorPR() *release.SearchResult {
	return &release.SearchResult{
		Total: 1,
		Items: []release.PullRequest{{Number: 42, Labels: []string{"enhancement", "release:minor"}}},
	}
}

func TestExecute(t *testing.T) {
	ctx := context.Background()

	t.Run("pull request release with major tag", func(t *testing.T) {
		gw := &stubGateway{search: minorPR(), latest: "v1.4.9", refs: map[string]string{"v1": "old"}}
		cfg := testConfig()
		cfg.UpdateMajorTag = true

		result, err := execute(ctx, gw, cfg, release.EventContext{Trigger: release.TriggerOther, SHA: "abc123"}, logging.Discard())
		gt.NoError(t, err)

		gt.Value(t, result.Released).Equal(true)
		gt.Value(t, result.Version).Equal("1.5.0")
		gt.Value(t, result.Tag).Equal("v1.5.0")
		gt.Value(t, result.Previous).Equal("v1.4.9")
		gt.Value(t, result.PullRequest).Equal(42)
		gt.Value(t, result.ReleaseType).Equal("minor")
		gt.Value(t, result.TagCreated).Equal(true)
		gt.Value(t, result.MajorTag).Equal("v1")
		gt.Value(t, result.MajorTagAction).Equal("updated")
		gt.Value(t, gw.writes).Equal([]string{"create-ref:v1.5.0", "create-release:v1.5.0", "update-ref:v1"})
		gt.Value(t, gw.refs["v1"]).Equal("abc123")
	})

	t.Run("tag push", func(t *testing.T) {
		gw := &stubGateway{}
		result, err := execute(ctx, gw, testConfig(), release.EventContext{
			Trigger: release.TriggerTagPush,
			SHA:     "abc123",
			Ref:     "refs/tags/v3.0.0",
		}, logging.Discard())
		gt.NoError(t, err)

		gt.Value(t, result.Tag).Equal("v3.0.0")
		gt.Value(t, result.TagCreated).Equal(false)
		gt.Value(t, gw.writes).Equal([]string{"create-release:v3.0.0"})
	})

	t.Run("no release for commit", func(t *testing.T) {
		gw := &stubGateway{}
		result, err := execute(ctx, gw, testConfig(), release.EventContext{Trigger: release.TriggerOther, SHA: "abc123"}, logging.Discard())
		gt.NoError(t, err)

		gt.Value(t, result.Released).Equal(false)
		gt.Value(t, result.SHA).Equal("abc123")
		gt.Value(t, len(gw.writes)).Equal(0)
	})

	t.Run("search failure", func(t *testing.T) {
		gw := &stubGateway{failAll: errors.New("HTTP 502")}
		_, err := execute(ctx, gw, testConfig(), release.EventContext{Trigger: release.TriggerOther, SHA: "abc123"}, logging.Discard())
		gt.Error(t, err)
	})

	t.Run("missing release label", func(t *testing.T) {
		gw := &stubGateway{search: &release.SearchResult{
			Total: 1,
			Items: []release.PullRequest{{Number: 7, Labels: []string{"bug"}}},
		}, latest: "v1.0.0"}
		_, err := execute(ctx, gw, testConfig(), release.EventContext{Trigger: release.TriggerOther, SHA: "abc123"}, logging.Discard())
		gt.Error(t, err).Is(release.ErrLabelParse)
		gt.Value(t, len(gw.writes)).Equal(0)
	})
}

func TestNewResult(t *testing.T) {
	t.Run("no major tag action when disabled", func(t *testing.T) {
		gw := &stubGateway{search: minorPR(), latest: "v0.9.0"}
		result, err := execute(context.Background(), gw, testConfig(), release.EventContext{SHA: "abc123"}, logging.Discard())
		gt.NoError(t, err)
		gt.Value(t, result.MajorTag).Equal("")
		gt.Value(t, result.MajorTagAction).Equal("")
		gt.Value(t, result.ReleaseURL).Equal("https://github.com/octo/widgets/releases/tag/v0.10.0")
	})
}

func releasedResult() *Result {
	return &Result{
		Released:       true,
		Version:        "2.3.2",
		Tag:            "v2.3.2",
		Source:         "pull-request",
		ReleaseType:    "patch",
		PullRequest:    12,
		Previous:       "v2.3.1",
		SHA:            "abc123",
		TagCreated:     true,
		ReleaseURL:     "https://github.com/octo/widgets/releases/tag/v2.3.2",
		MajorTag:       "v2",
		MajorTagAction: "created",
	}
}

func TestOutputJSON(t *testing.T) {
	var buf bytes.Buffer
	gt.NoError(t, outputJSON(&buf, releasedResult()))

	var got map[string]interface{}
	gt.NoError(t, json.Unmarshal(buf.Bytes(), &got))

	for _, key := range []string{"released", "version", "tag", "release_type", "pull_request", "previous", "sha", "major_tag", "major_tag_action", "dry_run"} {
		if _, ok := got[key]; !ok {
			t.Errorf("Missing expected key in JSON: %s", key)
		}
	}
	gt.Value(t, got["tag"]).Equal(interface{}("v2.3.2"))
}

// runnerEnv creates empty $GITHUB_OUTPUT and $GITHUB_STEP_SUMMARY files the way a runner does
func runnerEnv(t *testing.T) (getenv func(string) string, outputPath, summaryPath string) {
	t.Helper()
	dir := t.TempDir()
	outputPath = filepath.Join(dir, "output")
	summaryPath = filepath.Join(dir, "summary")
	gt.NoError(t, os.WriteFile(outputPath, nil, 0o600))
	gt.NoError(t, os.WriteFile(summaryPath, nil, 0o600))

	env := map[string]string{
		"GITHUB_OUTPUT":       outputPath,
		"GITHUB_STEP_SUMMARY": summaryPath,
	}
	return func(k string) string { return env[k] }, outputPath, summaryPath
}

// readOutputs parses a $GITHUB_OUTPUT file in either the name=value or the
// name<<delimiter form
func readOutputs(t *testing.T, path string) map[string]string {
	t.Helper()
	data, err := os.ReadFile(path)
	gt.NoError(t, err)

	out := map[string]string{}
	lines := strings.Split(string(data), "\n")
	for i := 0; i < len(lines); i++ {
		if name, delim, ok := strings.Cut(lines[i], "<<"); ok {
			var value []string
			for i++; i < len(lines) && lines[i] != delim; i++ {
				value = append(value, lines[i])
			}
			out[name] = strings.Join(value, "\n")
			continue
		}
		if name, value, ok := strings.Cut(lines[i], "="); ok {
			out[name] = value
		}
	}
	return out
}

func TestWriteOutputs(t *testing.T) {
	tests := []struct {
		name   string
		result *Result
		want   map[string]string
	}{
		{
			name:   "released",
			result: releasedResult(),
			want:   map[string]string{"version": "2.3.2", "tag": "v2.3.2", "major-tag": "v2", "released": "true"},
		},
		{
			name:   "not released",
			result: &Result{SHA: "abc123"},
			want:   map[string]string{"version": "", "tag": "", "major-tag": "", "released": "false"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			getenv, outputPath, _ := runnerEnv(t)
			action := githubactions.New(githubactions.WithGetenv(getenv), githubactions.WithWriter(io.Discard))

			writeOutputs(action, tt.result)
			gt.Value(t, readOutputs(t, outputPath)).Equal(tt.want)
		})
	}
}

func TestWriteSummary(t *testing.T) {
	tests := []struct {
		name         string
		result       *Result
		wantContains []string
	}{
		{
			name:   "released",
			result: releasedResult(),
			wantContains: []string{
				"## 🏷️ Release v2.3.2",
				"| Previous Release | v2.3.1 |",
				"| Bump | patch |",
				"| Pull Request | #12 |",
				"| Major Tag | v2 (created) |",
				"[View release](https://github.com/octo/widgets/releases/tag/v2.3.2)",
			},
		},
		{
			name: "dry run",
			result: func() *Result {
				r := releasedResult()
				r.DryRun = true
				return r
			}(),
			wantContains: []string{"Release (dry run) v2.3.2"},
		},
		{
			name:         "skipped",
			result:       &Result{SHA: "abc123"},
			wantContains: []string{"skipped", "`abc123`"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			gt.NoError(t, writeSummary(&buf, tt.result))
			for _, want := range tt.wantContains {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("summary missing %q:\n%s", want, buf.String())
				}
			}
		})
	}
}

func TestOutputTerminal(t *testing.T) {
	tests := []struct {
		name         string
		result       *Result
		wantContains []string
	}{
		{
			name:         "released",
			result:       releasedResult(),
			wantContains: []string{"Released v2.3.2", "patch bump from v2.3.1, PR #12", "created v2 -> abc123"},
		},
		{
			name:         "not released",
			result:       &Result{SHA: "abc123"},
			wantContains: []string{"No release for commit abc123"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			gt.NoError(t, outputTerminal(&buf, tt.result))
			for _, want := range tt.wantContains {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("output missing %q:\n%s", want, buf.String())
				}
			}
		})
	}
}

func TestDetectGitHubToken(t *testing.T) {
	tests := []struct {
		name     string
		provided string
		want     string
	}{
		{
			name:     "provided token",
			provided: "ghp_test123",
			want:     "ghp_test123",
		},
		{
			name:     "empty token",
			provided: "",
			want:     "", // Falls back to gh CLI, which likely returns empty in tests
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := detectGitHubToken(tt.provided)
			if tt.provided != "" && got != tt.want {
				t.Errorf("detectGitHubToken(%v) = %v, want %v", tt.provided, got, tt.want)
			}
		})
	}
}

func TestWriteResult(t *testing.T) {
	t.Run("on a runner", func(t *testing.T) {
		getenv, outputPath, summaryPath := runnerEnv(t)
		action := githubactions.New(githubactions.WithGetenv(getenv), githubactions.WithWriter(io.Discard))

		var out bytes.Buffer
		gt.NoError(t, writeResult(action, getenv, &out, releasedResult()))

		gt.Value(t, readOutputs(t, outputPath)["tag"]).Equal("v2.3.2")
		summary, err := os.ReadFile(summaryPath)
		gt.NoError(t, err)
		gt.Value(t, strings.Contains(string(summary), "Release v2.3.2")).Equal(true)
		gt.Value(t, strings.Contains(out.String(), "Released v2.3.2")).Equal(true)
	})

	t.Run("outside a runner", func(t *testing.T) {
		_, outputPath, summaryPath := runnerEnv(t)
		noenv := func(string) string { return "" }
		action := githubactions.New(githubactions.WithGetenv(noenv), githubactions.WithWriter(io.Discard))

		var out bytes.Buffer
		gt.NoError(t, writeResult(action, noenv, &out, releasedResult()))

		for _, path := range []string{outputPath, summaryPath} {
			data, err := os.ReadFile(path)
			gt.NoError(t, err)
			gt.Value(t, len(data)).Equal(0)
		}
		gt.Value(t, strings.Contains(out.String(), "Released v2.3.2")).Equal(true)
	})
}

func TestNewDefaultLogger(t *testing.T) {
	var buf bytes.Buffer
	l := newDefaultLogger(&buf, func(k string) string {
		if k == "GITHUB_ACTIONS" {
			return "true"
		}
		return ""
	})

	l.Error("release failed", "error", errors.New("repository is required"))
	gt.Value(t, strings.HasPrefix(buf.String(), "::error::release failed")).Equal(true)
}

func TestRootFlags(t *testing.T) {
	for _, name := range []string{"repo", "token", "tag-prefix", "update-major-tag", "dry-run", "search-limit", "config", "event", "ref", "sha", "log-level", "log-format", "json", "version", "timeout"} {
		if rootCmd.Flags().Lookup(name) == nil {
			t.Errorf("missing flag --%s", name)
		}
	}
	gt.Value(t, rootCmd.Flags().Lookup("timeout").DefValue).Equal((2 * time.Minute).String())
}
