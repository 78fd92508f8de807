package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/sethvargo/go-githubactions"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file read when --config is not given
const DefaultPath = ".release-tagger.yml"

// Config holds the run configuration
type Config struct {
	Repository     string        `yaml:"repository"`
	Token          string        `yaml:"-"`
	TagPrefix      string        `yaml:"tag-prefix"`
	UpdateMajorTag bool          `yaml:"update-major-tag"`
	SearchLimit    int           `yaml:"search-limit"`
	DryRun         bool          `yaml:"dry-run"`
	Timeout        time.Duration `yaml:"timeout"`
	Log            Log           `yaml:"log"`
}

// Log holds logger configuration
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

var (
	logLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	logFormats = map[string]bool{"auto": true, "actions": true, "console": true, "json": true}
)

// Default returns the configuration used when nothing else is set
func Default() *Config {
	return &Config{
		TagPrefix:   "v",
		SearchLimit: 5,
		Timeout:     2 * time.Minute,
		Log: Log{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load reads a YAML config file over the defaults. A missing file is only
// an error when required is set.
func Load(path string, required bool) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return cfg, nil
		}
		return nil, goerr.Wrap(err, "failed to read config file", goerr.V("path", path))
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, goerr.Wrap(err, "failed to parse config file", goerr.V("path", path))
	}
	return cfg, nil
}

// ApplyEnv applies GitHub Actions inputs and runner variables over cfg
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) (*Config, error) {
	getenv := func(key string) string {
		v, _ := lookup(key)
		return v
	}
	action := githubactions.New(githubactions.WithGetenv(getenv))

	if v := getenv("GITHUB_REPOSITORY"); v != "" {
		cfg.Repository = v
	}

	if v := getenv("GITHUB_TOKEN"); v != "" {
		cfg.Token = v
	}
	for _, input := range []string{"tokens", "token"} {
		if v := action.GetInput(input); v != "" {
			cfg.Token = v
		}
	}

	// an empty tag-prefix input is a deliberate empty prefix
	if _, ok := lookup("INPUT_TAG-PREFIX"); ok {
		cfg.TagPrefix = action.GetInput("tag-prefix")
	}

	for input, dst := range map[string]*bool{
		"update-major-tag": &cfg.UpdateMajorTag,
		"dry-run":          &cfg.DryRun,
	} {
		v := action.GetInput(input)
		if v == "" {
			continue
		}
		b, err := ParseBoolInput(v)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid boolean input", goerr.V("input", input))
		}
		*dst = b
	}

	if getenv("RUNNER_DEBUG") == "1" {
		cfg.Log.Level = "debug"
	}

	return cfg, nil
}

// MergeFlags overrides cfg with flags set explicitly on the command line
func MergeFlags(cfg *Config, flags *pflag.FlagSet) *Config {
	if flags.Changed("repo") {
		cfg.Repository, _ = flags.GetString("repo")
	}
	if flags.Changed("token") {
		cfg.Token, _ = flags.GetString("token")
	}
	if flags.Changed("tag-prefix") {
		cfg.TagPrefix, _ = flags.GetString("tag-prefix")
	}
	if flags.Changed("update-major-tag") {
		cfg.UpdateMajorTag, _ = flags.GetBool("update-major-tag")
	}
	if flags.Changed("search-limit") {
		cfg.SearchLimit, _ = flags.GetInt("search-limit")
	}
	if flags.Changed("dry-run") {
		cfg.DryRun, _ = flags.GetBool("dry-run")
	}
	if flags.Changed("timeout") {
		cfg.Timeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		cfg.Log.Format, _ = flags.GetString("log-format")
	}
	return cfg
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Repository == "" {
		return goerr.New("repository is required (--repo or GITHUB_REPOSITORY)")
	}
	if _, err := ParseRepositoryString(c.Repository); err != nil {
		return err
	}
	if c.SearchLimit < 1 || c.SearchLimit > 100 {
		return goerr.New("search-limit must be between 1 and 100", goerr.V("search_limit", c.SearchLimit))
	}
	if c.Timeout < 0 {
		return goerr.New("timeout must be non-negative", goerr.V("timeout", c.Timeout))
	}
	if !logLevels[c.Log.Level] {
		return goerr.New("unknown log level", goerr.V("level", c.Log.Level))
	}
	if !logFormats[c.Log.Format] {
		return goerr.New("unknown log format", goerr.V("format", c.Log.Format))
	}
	return nil
}

// ParseBoolInput parses a GitHub Actions boolean input (YAML 1.2 core schema)
func ParseBoolInput(v string) (bool, error) {
	switch v {
	case "true", "True", "TRUE":
		return true, nil
	case "false", "False", "FALSE":
		return false, nil
	}
	return false, goerr.New("boolean input must be one of true | True | TRUE | false | False | FALSE", goerr.V("value", v))
}
