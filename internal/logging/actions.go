package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/sethvargo/go-githubactions"
)

// ActionsHandler writes records as GitHub Actions workflow commands.
//
// Debug, warn and error records become ::debug::, ::warning:: and ::error::
// commands; info records are written as plain log lines.
type ActionsHandler struct {
	action *githubactions.Action
	mu     *sync.Mutex
	opts   slog.HandlerOptions
	attrs  []groupedAttr
	group  []string
}

type groupedAttr struct {
	groups []string
	attr   slog.Attr
}

// NewActionsHandler creates an ActionsHandler writing to w
func NewActionsHandler(w io.Writer, opts *slog.HandlerOptions) *ActionsHandler {
	h := &ActionsHandler{
		action: githubactions.New(githubactions.WithWriter(w)),
		mu:     &sync.Mutex{},
	}
	if opts != nil {
		h.opts = *opts
	}
	return h
}

// Enabled implements slog.Handler
func (h *ActionsHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

// Handle implements slog.Handler
func (h *ActionsHandler) Handle(_ context.Context, r slog.Record) error {
	var buf bytes.Buffer
	buf.WriteString(r.Message)

	for _, ga := range h.attrs {
		h.appendAttr(&buf, ga.groups, ga.attr)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.appendAttr(&buf, h.group, a)
		return true
	})

	msg := buf.String()

	h.mu.Lock()
	defer h.mu.Unlock()

	switch {
	case r.Level < slog.LevelInfo:
		h.action.Debugf("%s", msg)
	case r.Level < slog.LevelWarn:
		h.action.Infof("%s", escapeLine(msg))
	case r.Level < slog.LevelError:
		h.action.Warningf("%s", msg)
	default:
		h.action.Errorf("%s", msg)
	}
	return nil
}

// WithAttrs implements slog.Handler
func (h *ActionsHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := h.clone()
	for _, a := range attrs {
		h2.attrs = append(h2.attrs, groupedAttr{groups: h.group, attr: a})
	}
	return h2
}

// WithGroup implements slog.Handler
func (h *ActionsHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := h.clone()
	h2.group = append(h2.group, name)
	return h2
}

func (h *ActionsHandler) clone() *ActionsHandler {
	return &ActionsHandler{
		action: h.action,
		mu:     h.mu,
		opts:   h.opts,
		attrs:  append([]groupedAttr(nil), h.attrs...),
		group:  append([]string(nil), h.group...),
	}
}

func (h *ActionsHandler) appendAttr(buf *bytes.Buffer, groups []string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if h.opts.ReplaceAttr != nil && a.Value.Kind() != slog.KindGroup {
		a = h.opts.ReplaceAttr(groups, a)
		a.Value = a.Value.Resolve()
	}
	if a.Equal(slog.Attr{}) {
		return
	}

	if a.Value.Kind() == slog.KindGroup {
		sub := groups
		if a.Key != "" {
			sub = append(append([]string(nil), groups...), a.Key)
		}
		for _, ga := range a.Value.Group() {
			h.appendAttr(buf, sub, ga)
		}
		return
	}

	key := a.Key
	if len(groups) > 0 {
		key = strings.Join(groups, ".") + "." + key
	}
	fmt.Fprintf(buf, " %s=%s", key, formatValue(a.Value))
}

func formatValue(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindString:
		s = v.String()
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			s = err.Error()
		} else {
			s = fmt.Sprintf("%+v", v.Any())
		}
	default:
		s = v.String()
	}

	if s == "" || strings.ContainsAny(s, " \t\"=") {
		return fmt.Sprintf("%q", s)
	}
	return s
}

// escapeLine keeps a plain log line on one line so the runner cannot read
// part of it as a workflow command
func escapeLine(s string) string {
	s = strings.ReplaceAll(s, "\r", "%0D")
	s = strings.ReplaceAll(s, "\n", "%0A")
	return s
}
