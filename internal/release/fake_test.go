package release_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/nickromney-org/release-tagger/internal/release"
)

// fakeGateway records calls and returns configured results
type fakeGateway struct {
	search       *release.SearchResult
	searchErr    error
	latest       *release.ReleaseRecord
	latestErr    error
	refs         map[string]string
	getRefErr    error
	createRefErr map[string]error
	updateRefErr error
	releases     map[string]bool
	createRelErr error
	calls        []string
	searchLimit  int
	searchLabels []string
	updateForced bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		refs:         map[string]string{},
		releases:     map[string]bool{},
		createRefErr: map[string]error{},
	}
}

func (f *fakeGateway) SearchMergedPullRequests(ctx context.Context, sha string, labels []string, limit int) (*release.SearchResult, error) {
	f.calls = append(f.calls, "search:"+sha)
	f.searchLimit = limit
	f.searchLabels = labels
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if f.search == nil {
		return &release.SearchResult{}, nil
	}
	return f.search, nil
}

func (f *fakeGateway) GetLatestRelease(ctx context.Context) (*release.ReleaseRecord, error) {
	f.calls = append(f.calls, "latest")
	if f.latestErr != nil {
		return nil, f.latestErr
	}
	return f.latest, nil
}

func (f *fakeGateway) CreateRef(ctx context.Context, tagName, sha string) error {
	f.calls = append(f.calls, "create-ref:"+tagName)
	if err := f.createRefErr[tagName]; err != nil {
		return err
	}
	if _, ok := f.refs[tagName]; ok {
		return release.ErrAlreadyExists
	}
	f.refs[tagName] = sha
	return nil
}

func (f *fakeGateway) GetRef(ctx context.Context, tagName string) (*release.TagReference, error) {
	f.calls = append(f.calls, "get-ref:"+tagName)
	if f.getRefErr != nil {
		return nil, f.getRefErr
	}
	sha, ok := f.refs[tagName]
	if !ok {
		return nil, release.ErrRefNotFound
	}
	return &release.TagReference{Name: tagName, SHA: sha}, nil
}

func (f *fakeGateway) UpdateRef(ctx context.Context, tagName, sha string, force bool) error {
	f.calls = append(f.calls, "update-ref:"+tagName)
	f.updateForced = force
	if f.updateRefErr != nil {
		return f.updateRefErr
	}
	if _, ok := f.refs[tagName]; !ok {
		return errors.New("reference does not exist")
	}
	f.refs[tagName] = sha
	return nil
}

func (f *fakeGateway) CreateRelease(ctx context.Context, tagName string) (*release.ReleaseRecord, error) {
	f.calls = append(f.calls, "create-release:"+tagName)
	if f.createRelErr != nil {
		return nil, f.createRelErr
	}
	if f.releases[tagName] {
		return nil, release.ErrAlreadyExists
	}
	f.releases[tagName] = true
	return &release.ReleaseRecord{TagName: tagName, URL: "https://github.com/o/r/releases/tag/" + tagName}, nil
}

// writes returns the recorded calls that mutate remote state
func (f *fakeGateway) writes() []string {
	var out []string
	for _, c := range f.calls {
		if strings.HasPrefix(c, "create-") || strings.HasPrefix(c, "update-") {
			out = append(out, c)
		}
	}
	return out
}

// recordingHandler keeps log records for assertions
type recordingHandler struct {
	records *[]slog.Record
}

func (h recordingHandler) Enabled(context.Context, slog.Level) bool { return true }
func (h recordingHandler) Handle(_ context.Context, r slog.Record) error {
	*h.records = append(*h.records, r)
	return nil
}
func (h recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h recordingHandler) WithGroup(string) slog.Handler      { return h }

func newRecordingLogger() (*slog.Logger, *[]slog.Record) {
	var records []slog.Record
	return slog.New(recordingHandler{records: &records}), &records
}

func warnings(records *[]slog.Record) []string {
	var out []string
	for _, r := range *records {
		if r.Level == slog.LevelWarn {
			out = append(out, r.Message)
		}
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
