// Package logging builds the slog loggers used by release-tagger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/fatih/color"
	"github.com/m-mizutani/clog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/masq"
)

// Supported output formats
const (
	FormatAuto    = "auto"
	FormatActions = "actions"
	FormatConsole = "console"
	FormatJSON    = "json"
)

var tokenPattern = regexp.MustCompile(`^(ghp_|gho_|ghs_|ghu_|github_pat_)`)

// Options configures New
type Options struct {
	Level  string
	Format string
	Writer io.Writer

	// Getenv is used to detect GitHub Actions for FormatAuto. Defaults to os.Getenv.
	Getenv func(string) string
}

// New returns a logger for the given options
func New(opts Options) (*slog.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	format := opts.Format
	if format == "" || format == FormatAuto {
		format = FormatConsole
		if getenv("GITHUB_ACTIONS") == "true" {
			format = FormatActions
		}
	}

	var handler slog.Handler
	switch format {
	case FormatActions:
		handler = NewActionsHandler(w, &slog.HandlerOptions{
			Level:       level,
			ReplaceAttr: redactor(),
		})
	case FormatJSON:
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:       level,
			ReplaceAttr: redactor(),
		})
	case FormatConsole:
		handler = clog.New(
			clog.WithWriter(w),
			clog.WithLevel(level),
			clog.WithColor(!color.NoColor),
		)
	default:
		return nil, goerr.New("unknown log format", goerr.V("format", opts.Format))
	}

	return slog.New(handler), nil
}

// ParseLevel maps a level name to a slog.Level
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, goerr.New("unknown log level", goerr.V("level", s))
}

// Discard returns a logger that drops everything
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// redactor masks GitHub tokens in log attributes. Errors are passed through
// untouched so goerr values keep their message and context.
func redactor() func(groups []string, a slog.Attr) slog.Attr {
	mask := masq.New(
		masq.WithFieldName("Token"),
		masq.WithRegex(tokenPattern),
	)
	return func(groups []string, a slog.Attr) slog.Attr {
		if _, ok := a.Value.Any().(error); ok {
			return a
		}
		return mask(groups, a)
	}
}
