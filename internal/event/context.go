package event

import (
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/nickromney-org/release-tagger/internal/release"
	"github.com/sethvargo/go-githubactions"
)

const tagRefPrefix = "refs/tags/"

// Context holds the parts of the GitHub Actions event environment the run needs
type Context struct {
	EventName string
	Ref       string
	SHA       string
}

// Overrides replace environment values, e.g. from command line flags. Empty fields are ignored.
type Overrides struct {
	EventName string
	Ref       string
	SHA       string
}

// FromEnv reads the event context from the runner's GITHUB_* variables
func FromEnv(getenv func(string) string, overrides Overrides) (*Context, error) {
	ghctx, err := githubactions.New(githubactions.WithGetenv(getenv)).Context()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read GitHub Actions context")
	}

	c := &Context{
		EventName: ghctx.EventName,
		Ref:       ghctx.Ref,
		SHA:       ghctx.SHA,
	}

	if overrides.EventName != "" {
		c.EventName = overrides.EventName
	}
	if overrides.Ref != "" {
		c.Ref = overrides.Ref
	}
	if overrides.SHA != "" {
		c.SHA = overrides.SHA
	}

	if c.SHA == "" {
		return nil, goerr.New("commit SHA is not set (GITHUB_SHA or --sha)")
	}

	return c, nil
}

// IsTagPush reports whether the event is a push of a tag
func (c *Context) IsTagPush() bool {
	return c.EventName == "push" && strings.HasPrefix(c.Ref, tagRefPrefix)
}

// Release converts to the resolver's event context
func (c *Context) Release() release.EventContext {
	if c.IsTagPush() {
		return release.EventContext{
			Trigger: release.TriggerTagPush,
			SHA:     c.SHA,
			Ref:     c.Ref,
		}
	}
	return release.EventContext{
		Trigger: release.TriggerOther,
		SHA:     c.SHA,
	}
}
