// Package publisher drives one post through a platform adapter:
// authenticate, prepare media, upload, create the post.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pauljones0/rin-throwback/internal/media"
	"github.com/pauljones0/rin-throwback/internal/models"
)

const (
	PlatformTwitter = "twitter"
	PlatformBluesky = "bluesky"
)

// MediaRef is a platform's handle to an uploaded image. Twitter returns an
// opaque ID, Bluesky a blob object that is embedded verbatim in the record.
type MediaRef struct {
	ID   string
	Blob json.RawMessage
}

type Post struct {
	Text      string
	AltText   string
	Media     MediaRef
	CreatedAt time.Time
}

// Adapter is the per-platform half of the publishing pipeline.
type Adapter interface {
	Platform() string
	// MaxImageBytes is the upload budget handed to media.Prepare.
	MaxImageBytes() int64
	Authenticate(ctx context.Context) error
	UploadMedia(ctx context.Context, asset *media.Asset) (MediaRef, error)
	CreatePost(ctx context.Context, post Post) (string, error)
	// PostURL maps a post identifier to a shareable URL, or "" when the
	// identifier cannot be resolved.
	PostURL(id string) string
}

type State int

const (
	StateNotAuthenticated State = iota
	StateAuthenticated
	StateMediaPrepared
	StatePosted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNotAuthenticated:
		return "not_authenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateMediaPrepared:
		return "media_prepared"
	case StatePosted:
		return "posted"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type Request struct {
	Text      string
	AltText   string
	ImagePath string
	Now       time.Time
}

// Result is the outcome for one platform. Err is a *models.PlatformError
// when State is StateFailed.
type Result struct {
	Platform string
	State    State
	PostID   string
	URL      string
	Err      error
}

// Publish runs the adapter to a terminal state. It never panics on adapter
// errors; failures are reported through Result.Err.
func Publish(ctx context.Context, a Adapter, t media.ImageTranscoder, req Request) Result {
	res := Result{Platform: a.Platform(), State: StateNotAuthenticated}

	fail := func(stage models.Stage, err error) Result {
		res.State = StateFailed
		res.Err = &models.PlatformError{Platform: res.Platform, Stage: stage, Err: classify(stage, err)}
		slog.Error("Publish failed", "platform", res.Platform, "stage", stage, "error", err)
		return res
	}

	if err := a.Authenticate(ctx); err != nil {
		return fail(models.StageAuth, err)
	}
	res.State = StateAuthenticated

	asset, err := media.Prepare(ctx, t, req.ImagePath, a.MaxImageBytes())
	if err != nil {
		return fail(models.StageMedia, err)
	}
	defer asset.Cleanup()
	res.State = StateMediaPrepared

	ref, err := a.UploadMedia(ctx, asset)
	if err != nil {
		return fail(models.StageUpload, err)
	}

	id, err := a.CreatePost(ctx, Post{
		Text:      req.Text,
		AltText:   req.AltText,
		Media:     ref,
		CreatedAt: req.Now,
	})
	if err != nil {
		return fail(models.StageCreate, err)
	}

	res.State = StatePosted
	res.PostID = id
	res.URL = a.PostURL(id)
	slog.Info("Posted", "platform", res.Platform, "id", id, "url", res.URL)
	return res
}

// classify makes sure a stage failure carries its taxonomy sentinel.
func classify(stage models.Stage, err error) error {
	var sentinel error
	switch stage {
	case models.StageAuth:
		sentinel = models.ErrAuth
	case models.StageUpload:
		sentinel = models.ErrMediaUploadError
	case models.StageCreate:
		sentinel = models.ErrPostCreateError
	default:
		return err
	}
	if errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}
