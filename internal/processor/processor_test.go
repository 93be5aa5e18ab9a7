package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pauljones0/rin-throwback/internal/media"
	"github.com/pauljones0/rin-throwback/internal/models"
	"github.com/pauljones0/rin-throwback/internal/publisher"
	"github.com/pauljones0/rin-throwback/internal/selection"
)

// --- Mock implementations ---

type mockManifest struct {
	entries []models.ManifestEntry
	err     error
}

func (m *mockManifest) LoadManifest(context.Context) ([]models.ManifestEntry, error) {
	return m.entries, m.err
}

type mockHistory struct {
	records   []models.HistoryRecord
	loadErr   error
	appendErr error
	appended  []models.HistoryRecord
}

func (m *mockHistory) Load(context.Context) ([]models.HistoryRecord, error) {
	return m.records, m.loadErr
}

func (m *mockHistory) Append(_ context.Context, rec models.HistoryRecord) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.appended = append(m.appended, rec)
	return nil
}

type mockAdapter struct {
	platform string
	failAt   models.Stage
	calls    int
	lastPost publisher.Post
}

func (m *mockAdapter) Platform() string     { return m.platform }
func (m *mockAdapter) MaxImageBytes() int64 { return 1 << 20 }

func (m *mockAdapter) Authenticate(context.Context) error {
	m.calls++
	if m.failAt == models.StageAuth {
		return &models.RemoteError{Op: "login", Status: 401, Detail: "bad password"}
	}
	return nil
}

func (m *mockAdapter) UploadMedia(context.Context, *media.Asset) (publisher.MediaRef, error) {
	if m.failAt == models.StageUpload {
		return publisher.MediaRef{}, &models.RemoteError{Op: "upload", Status: 413, Detail: "too big"}
	}
	return publisher.MediaRef{ID: "media-1"}, nil
}

func (m *mockAdapter) CreatePost(_ context.Context, post publisher.Post) (string, error) {
	m.lastPost = post
	if m.failAt == models.StageCreate {
		return "", &models.RemoteError{Op: "create", Status: 403, Detail: "forbidden"}
	}
	return m.platform + "-post-1", nil
}

func (m *mockAdapter) PostURL(id string) string { return "https://example.com/" + id }

// --- Fixtures ---

type fixture struct {
	manifest *mockManifest
	history  *mockHistory
	twitter  *mockAdapter
	bluesky  *mockAdapter
	opts     Options
	out      bytes.Buffer
	dir      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	img := make([]byte, 64)
	copy(img, []byte{0xFF, 0xD8, 0xFF, 0xE0})
	mustWrite(t, filepath.Join(dir, "cover.jpg"), string(img))
	mustWrite(t, filepath.Join(dir, "twitter.tmpl"), `Throwback: {{ .SetName }} ({{ .Published }}) {{ .SetURL }}`)
	mustWrite(t, filepath.Join(dir, "bluesky.tmpl"), `Throwback to {{ .SetName }} {{ .SetURL }}`)

	return &fixture{
		manifest: &mockManifest{entries: []models.ManifestEntry{{
			Filename:      "cover.jpg",
			SetName:       "Summer Set",
			SetURL:        "https://example.com/summer",
			DatePublished: "2021-07-04T10:00:00",
			Tags:          "#one #two",
		}}},
		history: &mockHistory{},
		twitter: &mockAdapter{platform: publisher.PlatformTwitter},
		bluesky: &mockAdapter{platform: publisher.PlatformBluesky},
		opts:    Options{ImagesDir: dir, ThresholdDays: 90, HistoryLabel: "post_history.json"},
		dir:     dir,
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) runner() *Runner {
	targets := []Target{
		{Adapter: f.twitter, TemplatePath: filepath.Join(f.dir, "twitter.tmpl"), MaxChars: publisher.TwitterMaxChars},
		{Adapter: f.bluesky, TemplatePath: filepath.Join(f.dir, "bluesky.tmpl"), MaxChars: publisher.BlueskyMaxChars},
	}
	r := New(f.manifest, f.history, nil, targets, f.opts, selection.NewRand("42"), &f.out)
	r.now = func() time.Time { return time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC) }
	r.newID = func() string { return "run-1" }
	return r
}

// --- Tests ---

func TestRun_Success(t *testing.T) {
	f := newFixture(t)

	err := f.runner().Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(f.history.appended) != 1 {
		t.Fatalf("Expected 1 history record, got %d", len(f.history.appended))
	}
	rec := f.history.appended[0]
	if rec.RunID != "run-1" || rec.SetName != "Summer Set" || rec.Filename != "cover.jpg" {
		t.Errorf("Unexpected record: %+v", rec)
	}
	if rec.PostedAt != "2024-06-10T12:00:00.000000+00:00" {
		t.Errorf("PostedAt = %q", rec.PostedAt)
	}
	if rec.TwitterPostID == nil || *rec.TwitterPostID != "twitter-post-1" {
		t.Errorf("TwitterPostID = %v", rec.TwitterPostID)
	}
	if rec.BlueskyURI == nil || *rec.BlueskyURI != "bluesky-post-1" {
		t.Errorf("BlueskyURI = %v", rec.BlueskyURI)
	}

	if got := f.twitter.lastPost.Text; got != "Throwback: Summer Set (Jul 04, 2021) https://example.com/summer" {
		t.Errorf("Twitter text = %q", got)
	}
	if got := f.bluesky.lastPost.AltText; got != "Cover image for Summer Set" {
		t.Errorf("Alt text = %q", got)
	}

	out := f.out.String()
	for _, want := range []string{
		"Selected set: https://example.com/summer",
		"Posted throwback for set: Summer Set",
		"Twitter URL: https://example.com/twitter-post-1",
		"Bluesky URL: https://example.com/bluesky-post-1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Output missing %q:\n%s", want, out)
		}
	}
}

func TestRun_IndependentPlatformFailure(t *testing.T) {
	f := newFixture(t)
	f.twitter.failAt = models.StageCreate

	err := f.runner().Run(context.Background())

	if code := ExitCode(err); code != ExitTwitterCreate {
		t.Errorf("ExitCode = %d, want %d (err=%v)", code, ExitTwitterCreate, err)
	}
	if f.bluesky.calls != 1 {
		t.Errorf("Bluesky should still be attempted")
	}
	if len(f.history.appended) != 1 {
		t.Fatalf("Expected the successful platform to be recorded")
	}
	rec := f.history.appended[0]
	if rec.TwitterPostID != nil || rec.TwitterURL != nil {
		t.Errorf("Failed platform should be null, got %+v", rec)
	}
	if rec.BlueskyURI == nil || rec.BlueskyURL == nil || *rec.BlueskyURL != "https://example.com/bluesky-post-1" {
		t.Errorf("Bluesky result not recorded: %+v", rec)
	}
}

func TestRun_AllPlatformsFail(t *testing.T) {
	f := newFixture(t)
	f.twitter.failAt = models.StageAuth
	f.bluesky.failAt = models.StageUpload

	err := f.runner().Run(context.Background())

	if code := ExitCode(err); code != ExitTwitterAuth {
		t.Errorf("ExitCode = %d, want %d", code, ExitTwitterAuth)
	}
	if len(f.history.appended) != 0 {
		t.Errorf("Nothing should be recorded when every platform fails")
	}
}

func TestRun_HistoryWriteFailure(t *testing.T) {
	t.Run("After full success", func(t *testing.T) {
		f := newFixture(t)
		f.history.appendErr = fmt.Errorf("%w: disk full", models.ErrHistoryWriteFailed)

		err := f.runner().Run(context.Background())
		if code := ExitCode(err); code != ExitHistory {
			t.Errorf("ExitCode = %d, want %d", code, ExitHistory)
		}
	})

	t.Run("Platform failure wins", func(t *testing.T) {
		f := newFixture(t)
		f.bluesky.failAt = models.StageCreate
		f.history.appendErr = fmt.Errorf("%w: disk full", models.ErrHistoryWriteFailed)

		err := f.runner().Run(context.Background())
		if code := ExitCode(err); code != ExitBlueskyCreate {
			t.Errorf("ExitCode = %d, want %d", code, ExitBlueskyCreate)
		}
		if !errors.Is(err, models.ErrHistoryWriteFailed) {
			t.Errorf("History failure should still be reported: %v", err)
		}
	})
}

func TestRun_DryRun(t *testing.T) {
	f := newFixture(t)
	f.opts.DryRun = true

	if err := f.runner().Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if f.twitter.calls+f.bluesky.calls != 0 {
		t.Error("Dry run must not invoke adapters")
	}
	if len(f.history.appended) != 0 {
		t.Error("Dry run without record must not write history")
	}
	out := f.out.String()
	if !strings.Contains(out, "DRY RUN - would post:") || !strings.Contains(out, "[twitter]\nThrowback: Summer Set") {
		t.Errorf("Unexpected dry run output:\n%s", out)
	}
	if !strings.Contains(out, "With image: "+filepath.Join(f.dir, "cover.jpg")) {
		t.Errorf("Missing image line:\n%s", out)
	}
}

func TestRun_RecordDryRun(t *testing.T) {
	f := newFixture(t)
	f.opts.DryRun = true
	f.opts.RecordDryRun = true

	if err := f.runner().Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(f.history.appended) != 1 {
		t.Fatalf("Expected dry run record")
	}
	rec := f.history.appended[0]
	if rec.TwitterPostID != nil || rec.BlueskyURI != nil || rec.BlueskyURL != nil {
		t.Errorf("Dry run record should carry null platform ids: %+v", rec)
	}
	if rec.SetURL != "https://example.com/summer" || rec.PostedAt == "" {
		t.Errorf("Unexpected record: %+v", rec)
	}
	if !strings.Contains(f.out.String(), "Recorded dry run in history: post_history.json") {
		t.Errorf("Missing record line:\n%s", f.out.String())
	}
}

func TestRun_FatalErrors(t *testing.T) {
	recent := models.HistoryRecord{SetURL: "https://example.com/summer", PostedAt: "2024-06-01T00:00:00"}

	tests := []struct {
		name  string
		setup func(f *fixture)
		want  int
	}{
		{"Manifest missing", func(f *fixture) { f.manifest.err = models.ErrManifestNotFound }, ExitManifestNotFound},
		{"Manifest malformed", func(f *fixture) { f.manifest.err = models.ErrMalformedManifest }, ExitMalformedManifest},
		{"History malformed", func(f *fixture) { f.history.loadErr = models.ErrMalformedHistory }, ExitHistory},
		{"History unreadable", func(f *fixture) { f.history.loadErr = errors.New("permission denied") }, ExitHistory},
		{"No eligible entries", func(f *fixture) { f.history.records = []models.HistoryRecord{recent} }, ExitSelection},
		{"No such set name", func(f *fixture) { f.opts.SetName = "Winter" }, ExitSelection},
		{"Incomplete entry", func(f *fixture) { f.manifest.entries[0].SetURL = "" }, ExitIncompleteEntry},
		{"Unparsable publish date", func(f *fixture) { f.manifest.entries[0].DatePublished = "last summer" }, ExitIncompleteEntry},
		{"Image missing", func(f *fixture) { f.manifest.entries[0].Filename = "nope.jpg" }, ExitImageNotFound},
		{"Template missing", func(f *fixture) { os.Remove(filepath.Join(f.dir, "bluesky.tmpl")) }, ExitRender},
		{"Template broken", func(f *fixture) { mustWrite(t, filepath.Join(f.dir, "twitter.tmpl"), "{{ .Nope }}") }, ExitRender},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setup(f)

			err := f.runner().Run(context.Background())
			if code := ExitCode(err); code != tt.want {
				t.Errorf("ExitCode = %d, want %d (err=%v)", code, tt.want, err)
			}
			if f.twitter.calls+f.bluesky.calls != 0 {
				t.Error("No adapter should run after a fatal error")
			}
			if len(f.history.appended) != 0 {
				t.Error("No history should be written after a fatal error")
			}
		})
	}
}

func TestRun_SetNameOverrideIgnoresThreshold(t *testing.T) {
	f := newFixture(t)
	f.history.records = []models.HistoryRecord{{SetURL: "https://example.com/summer", PostedAt: "2024-06-09T00:00:00"}}
	f.manifest.entries = append(f.manifest.entries, models.ManifestEntry{
		Filename: "other.jpg", SetName: "summer set", SetURL: "https://example.com/dup", DatePublished: "2020-01-01",
	})
	f.opts.SetName = "SUMMER SET"

	if err := f.runner().Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := f.history.appended[0].SetURL; got != "https://example.com/summer" {
		t.Errorf("Expected first match, got %s", got)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"Nil", nil, ExitOK},
		{"Unknown", errors.New("boom"), ExitGeneric},
		{"Template", models.ErrTemplateRenderError, ExitRender},
		{"Twitter media", &models.PlatformError{Platform: publisher.PlatformTwitter, Stage: models.StageMedia, Err: models.ErrStillTooLarge}, ExitTwitterUpload},
		{"Bluesky auth", &models.PlatformError{Platform: publisher.PlatformBluesky, Stage: models.StageAuth, Err: models.ErrAuth}, ExitBlueskyAuth},
		{"Bluesky upload", &models.PlatformError{Platform: publisher.PlatformBluesky, Stage: models.StageUpload, Err: models.ErrMediaUploadError}, ExitBlueskyUpload},
		{"Unknown platform", &models.PlatformError{Platform: "mastodon", Stage: models.StageAuth}, ExitGeneric},
		{"Record exists", models.ErrRecordExists, ExitHistory},
		{"Joined keeps platform first", errors.Join(
			&models.PlatformError{Platform: publisher.PlatformTwitter, Stage: models.StageCreate, Err: models.ErrPostCreateError},
			models.ErrHistoryWriteFailed,
		), ExitTwitterCreate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
