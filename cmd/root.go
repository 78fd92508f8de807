package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	colour "github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/nickromney-org/release-tagger/internal/config"
	"github.com/nickromney-org/release-tagger/internal/event"
	"github.com/nickromney-org/release-tagger/internal/github"
	"github.com/nickromney-org/release-tagger/internal/logging"
	"github.com/nickromney-org/release-tagger/internal/release"
	"github.com/sethvargo/go-githubactions"
	"github.com/spf13/cobra"
)

const defaultAPIURL = "https://api.github.com/"

var (
	repository     string
	githubToken    string
	tagPrefix      string
	updateMajorTag bool
	dryRun         bool
	searchLimit    int
	configPath     string
	eventName      string
	ref            string
	sha            string
	apiURL         string
	logLevel       string
	logFormat      string
	jsonOutput     bool
	showVersion    bool
	timeout        time.Duration

	// Version information (set via SetVersionInfo from main)
	appVersion = "dev"
	buildTime  = "unknown"
	gitCommit  = "unknown"

	// logger is replaced once the configuration is known
	logger = newDefaultLogger(os.Stderr, os.Getenv)

	// Colours for output
	green  = colour.New(colour.FgGreen, colour.Bold)
	yellow = colour.New(colour.FgYellow, colour.Bold)
	cyan   = colour.New(colour.FgCyan)
)

// SetVersionInfo sets the version information from the main package
func SetVersionInfo(version, build, commit string) {
	appVersion = version
	buildTime = build
	gitCommit = commit
}

var rootCmd = &cobra.Command{
	Use:   "release-tagger",
	Short: "Tag and release a merged pull request",
	Long: `Create the next semantic version tag and GitHub release for a commit.

On a tag push the pushed tag is released as-is. On any other event the merged
pull request containing the commit is looked up, its release:major,
release:minor or release:patch label decides the bump applied to the latest
release, and the new tag and release are created. With --update-major-tag the
floating major tag (e.g. v2) is moved to the released commit.`,
	Example: `  # Inside a GitHub Actions job
  release-tagger --update-major-tag

  # Preview a release for a commit without writing anything
  release-tagger --repo octo/widgets --sha 1a2b3c4 --dry-run

  # JSON output for automation
  release-tagger --json`,
	RunE:          run,
	SilenceErrors: true,
}

func init() {
	defaults := config.Default()

	rootCmd.Flags().StringVarP(&repository, "repo", "r", "", "repository in owner/repo format (default $GITHUB_REPOSITORY)")
	rootCmd.Flags().StringVarP(&githubToken, "token", "t", "", "GitHub token (or GITHUB_TOKEN env var)")
	rootCmd.Flags().StringVar(&tagPrefix, "tag-prefix", defaults.TagPrefix, "prefix added to version tags")
	rootCmd.Flags().BoolVar(&updateMajorTag, "update-major-tag", defaults.UpdateMajorTag, "create or move the major version tag")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", defaults.DryRun, "resolve the version but do not write tags or releases")
	rootCmd.Flags().IntVar(&searchLimit, "search-limit", defaults.SearchLimit, "maximum pull requests fetched per search")
	rootCmd.Flags().StringVar(&configPath, "config", config.DefaultPath, "config file")
	rootCmd.Flags().StringVar(&eventName, "event", "", "event name (default $GITHUB_EVENT_NAME)")
	rootCmd.Flags().StringVar(&ref, "ref", "", "git ref (default $GITHUB_REF)")
	rootCmd.Flags().StringVar(&sha, "sha", "", "commit SHA (default $GITHUB_SHA)")
	rootCmd.Flags().StringVar(&apiURL, "api-url", os.Getenv("GITHUB_API_URL"), "GitHub API URL")
	rootCmd.Flags().StringVar(&logLevel, "log-level", defaults.Log.Level, "log level (debug, info, warn, error)")
	rootCmd.Flags().StringVar(&logFormat, "log-format", defaults.Log.Format, "log format (auto, actions, console, json)")
	rootCmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "show version information")
	rootCmd.Flags().DurationVar(&timeout, "timeout", defaults.Timeout, "overall timeout for GitHub API calls")
}

// newDefaultLogger picks the output format from the environment alone, so
// failures before the configuration is loaded still become ::error:: annotations
func newDefaultLogger(w io.Writer, getenv func(string) string) *slog.Logger {
	l, err := logging.New(logging.Options{Writer: w, Getenv: getenv})
	if err != nil {
		return slog.Default()
	}
	return l
}

// Execute runs the root command. Failures are logged at error level.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		logger.Error("release failed", "error", err)
	}
	return err
}

// detectGitHubToken attempts to find a GitHub token from multiple sources
func detectGitHubToken(providedToken string) string {
	// 1. Use explicitly provided token (via -t flag, action input or GITHUB_TOKEN env var)
	if providedToken != "" {
		return providedToken
	}

	// 2. Try to get token from GitHub CLI
	ghToken, err := getGitHubCLIToken()
	if err == nil && ghToken != "" {
		return ghToken
	}

	// 3. No token found - writes will fail with 401
	return ""
}

// getGitHubCLIToken attempts to retrieve a token from the GitHub CLI
func getGitHubCLIToken() (string, error) {
	cmd := exec.Command("gh", "auth", "token")
	output, err := cmd.Output()
	if err != nil {
		return "", err
	}

	token := strings.TrimSpace(string(output))
	if token == "" {
		return "", goerr.New("gh auth token returned empty")
	}

	return token, nil
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath, cmd.Flags().Changed("config"))
	if err != nil {
		return nil, err
	}
	if cfg, err = config.ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	cfg = config.MergeFlags(cfg, cmd.Flags())
	cfg.Token = detectGitHubToken(cfg.Token)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newGateway(cfg *config.Config, repo *config.Repository) (release.Gateway, error) {
	client := github.NewClient(cfg.Token, repo.Owner, repo.Repo)
	if apiURL != "" && strings.TrimSuffix(apiURL, "/") != strings.TrimSuffix(defaultAPIURL, "/") {
		var err error
		if client, err = client.WithBaseURL(apiURL); err != nil {
			return nil, err
		}
	}

	if cfg.DryRun {
		return github.NewDryRun(client, logger), nil
	}
	return client, nil
}

func run(cmd *cobra.Command, args []string) error {
	// Disable automatic usage printing on error
	cmd.SilenceUsage = true

	// Show version if requested
	if showVersion {
		fmt.Printf("release-tagger %s\n", appVersion)
		fmt.Printf("Build time: %s\n", buildTime)
		fmt.Printf("Git commit: %s\n", gitCommit)
		return nil
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	configured, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Writer: os.Stderr,
	})
	if err != nil {
		return err
	}
	logger = configured

	repo, err := config.ParseRepositoryString(cfg.Repository)
	if err != nil {
		return err
	}

	ec, err := event.FromEnv(os.Getenv, event.Overrides{
		EventName: eventName,
		Ref:       ref,
		SHA:       sha,
	})
	if err != nil {
		return err
	}

	gw, err := newGateway(cfg, repo)
	if err != nil {
		return err
	}

	logger.Debug("starting release",
		"repository", repo.FullName(),
		"event", ec.EventName,
		"ref", ec.Ref,
		"sha", ec.SHA,
		"dry_run", cfg.DryRun,
	)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	result, err := execute(ctx, gw, cfg, ec.Release(), logger)
	if err != nil {
		return err
	}

	return writeResult(githubactions.New(), os.Getenv, os.Stdout, result)
}

// writeResult reports result to the workflow (step outputs and job summary)
// when running on a runner, then to out
func writeResult(action *githubactions.Action, getenv func(string) string, out io.Writer, result *Result) error {
	if getenv("GITHUB_OUTPUT") != "" {
		writeOutputs(action, result)
	}

	if getenv("GITHUB_STEP_SUMMARY") != "" {
		var summary strings.Builder
		if err := writeSummary(&summary, result); err != nil {
			logger.Warn("Failed to write job summary", "error", err)
		} else {
			action.AddStepSummary(summary.String())
		}
	}

	if jsonOutput {
		return outputJSON(out, result)
	}
	return outputTerminal(out, result)
}
