package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nickromney-org/release-tagger/internal/release"
	"github.com/sethvargo/go-githubactions"
)

// Result is what a run reports to the workflow and the terminal
type Result struct {
	Released       bool   `json:"released"`
	Version        string `json:"version,omitempty"`
	Tag            string `json:"tag,omitempty"`
	Source         string `json:"source,omitempty"`
	ReleaseType    string `json:"release_type,omitempty"`
	PullRequest    int    `json:"pull_request,omitempty"`
	Previous       string `json:"previous,omitempty"`
	SHA            string `json:"sha"`
	TagCreated     bool   `json:"tag_created"`
	ReleaseURL     string `json:"release_url,omitempty"`
	MajorTag       string `json:"major_tag,omitempty"`
	MajorTagAction string `json:"major_tag_action,omitempty"`
	DryRun         bool   `json:"dry_run"`
}

func newResult(rv *release.ReleaseVersion, outcome *release.Outcome, dryRun bool) *Result {
	r := &Result{
		Released:    true,
		Version:     rv.Version.String(),
		Tag:         rv.TagName,
		Source:      string(rv.Source),
		ReleaseType: string(rv.ReleaseType),
		PullRequest: rv.PullRequest,
		Previous:    rv.Previous,
		DryRun:      dryRun,
	}

	if outcome != nil {
		r.SHA = outcome.SHA
		r.TagCreated = outcome.TagCreated
		r.MajorTag = outcome.MajorTag
		if outcome.MajorTagAction != release.MajorTagNone {
			r.MajorTagAction = string(outcome.MajorTagAction)
		}
		if outcome.Release != nil {
			r.ReleaseURL = outcome.Release.URL
		}
	}

	return r
}

func outputJSON(w io.Writer, result *Result) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// writeOutputs sets the step outputs read by later workflow steps
func writeOutputs(action *githubactions.Action, result *Result) {
	action.SetOutput("version", result.Version)
	action.SetOutput("tag", result.Tag)
	action.SetOutput("major-tag", result.MajorTag)
	action.SetOutput("released", strconv.FormatBool(result.Released))
}

// writeSummary writes a markdown job summary for $GITHUB_STEP_SUMMARY
func writeSummary(w io.Writer, result *Result) error {
	title := "Release"
	if result.DryRun {
		title = "Release (dry run)"
	}

	if !result.Released {
		fmt.Fprintf(w, "## ⏭️ %s skipped\n\n", title)
		fmt.Fprintf(w, "No release label was found for commit `%s`.\n", result.SHA)
		fmt.Fprintf(w, "\n*Checked at: %s*\n\n---\n\n", formatTimestamp(time.Now()))
		return nil
	}

	fmt.Fprintf(w, "## 🏷️ %s %s\n\n", title, result.Tag)

	fmt.Fprintf(w, "| Metric | Value |\n")
	fmt.Fprintf(w, "|--------|-------|\n")
	fmt.Fprintf(w, "| Version | %s |\n", result.Version)
	fmt.Fprintf(w, "| Tag | %s |\n", result.Tag)
	if result.Previous != "" {
		fmt.Fprintf(w, "| Previous Release | %s |\n", result.Previous)
	}
	if result.ReleaseType != "" {
		fmt.Fprintf(w, "| Bump | %s |\n", result.ReleaseType)
	}
	if result.PullRequest != 0 {
		fmt.Fprintf(w, "| Pull Request | #%d |\n", result.PullRequest)
	}
	fmt.Fprintf(w, "| Commit | `%s` |\n", result.SHA)
	if result.MajorTag != "" {
		fmt.Fprintf(w, "| Major Tag | %s (%s) |\n", result.MajorTag, result.MajorTagAction)
	}

	if result.ReleaseURL != "" {
		fmt.Fprintf(w, "\n[View release](%s)\n", result.ReleaseURL)
	}

	fmt.Fprintf(w, "\n*Released at: %s*\n", formatTimestamp(time.Now()))
	_, err := fmt.Fprintf(w, "\n---\n\n")
	return err
}

func outputTerminal(w io.Writer, result *Result) error {
	if !result.Released {
		yellow.Fprintf(w, "⏭️  No release for commit %s\n", result.SHA)
		return nil
	}

	prefix := ""
	if result.DryRun {
		prefix = "[dry-run] "
	}

	statusLine := fmt.Sprintf("%s✅ Released %s", prefix, result.Tag)
	if result.ReleaseType != "" {
		statusLine += fmt.Sprintf(" (%s bump from %s, PR #%d)", result.ReleaseType, result.Previous, result.PullRequest)
	}
	green.Fprintln(w, statusLine)

	if result.MajorTag != "" {
		cyan.Fprintf(w, "   %s %s -> %s\n", result.MajorTagAction, result.MajorTag, result.SHA)
	}
	if result.ReleaseURL != "" {
		fmt.Fprintf(w, "   %s\n", result.ReleaseURL)
	}

	return nil
}
