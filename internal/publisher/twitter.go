package publisher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dghubble/oauth1"
	"golang.org/x/time/rate"

	"github.com/pauljones0/rin-throwback/internal/config"
	"github.com/pauljones0/rin-throwback/internal/media"
	"github.com/pauljones0/rin-throwback/internal/models"
)

const (
	TwitterMaxChars = 280

	twitterUploadURL = "https://upload.twitter.com/1.1/media/upload.json"
	twitterAPIURL    = "https://api.twitter.com/2"
)

// Twitter posts to X through the v1.1 media endpoint and the v2 tweets
// endpoint, signing both with OAuth 1.0a user context.
type Twitter struct {
	loadCredentials func() (*config.TwitterCredentials, error)
	maxBytes        int64
	uploadURL       string
	apiURL          string
	rateLimiter     *rate.Limiter

	client *http.Client
}

func NewTwitter(credentialsPath string, maxBytes int64) *Twitter {
	return &Twitter{
		loadCredentials: func() (*config.TwitterCredentials, error) {
			return config.LoadTwitterCredentials(credentialsPath)
		},
		maxBytes:    maxBytes,
		uploadURL:   twitterUploadURL,
		apiURL:      twitterAPIURL,
		rateLimiter: newRateLimiter(),
	}
}

// WithEndpoints points the adapter at an alternate media upload endpoint
// and v2 API base.
func (t *Twitter) WithEndpoints(uploadURL, apiURL string) *Twitter {
	t.uploadURL = uploadURL
	t.apiURL = strings.TrimRight(apiURL, "/")
	return t
}

func (t *Twitter) Platform() string     { return PlatformTwitter }
func (t *Twitter) MaxImageBytes() int64 { return t.maxBytes }

type twitterMeResponse struct {
	Data struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"data"`
}

// Authenticate loads the credential file, builds the signing client and
// checks the keys against GET /2/users/me.
func (t *Twitter) Authenticate(ctx context.Context) error {
	creds, err := t.loadCredentials()
	if err != nil {
		return err
	}
	cfg := oauth1.NewConfig(creds.APIKey, creds.APISecret)
	token := oauth1.NewToken(creds.AccessToken, creds.AccessTokenSecret)
	client := cfg.Client(ctx, token)
	client.Timeout = requestTimeout

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.apiURL+"/users/me", nil)
	if err != nil {
		return err
	}
	var me twitterMeResponse
	if err := doJSON(client, t.rateLimiter, req, "twitter verify credentials", &me); err != nil {
		return err
	}
	if me.Data.ID == "" {
		return &models.RemoteError{Op: "twitter verify credentials", Detail: "response missing data.id"}
	}
	slog.Debug("Twitter credentials verified", "username", me.Data.Username)

	t.client = client
	return nil
}

type twitterMediaResponse struct {
	MediaID       int64  `json:"media_id"`
	MediaIDString string `json:"media_id_string"`
}

func (t *Twitter) UploadMedia(ctx context.Context, asset *media.Asset) (MediaRef, error) {
	if t.client == nil {
		return MediaRef{}, fmt.Errorf("%w: not authenticated", models.ErrMediaUploadError)
	}

	f, err := os.Open(asset.Path)
	if err != nil {
		return MediaRef{}, err
	}
	defer f.Close()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("media", filepath.Base(asset.Path))
	if err != nil {
		return MediaRef{}, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return MediaRef{}, err
	}
	if err := w.Close(); err != nil {
		return MediaRef{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.uploadURL, &body)
	if err != nil {
		return MediaRef{}, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var resp twitterMediaResponse
	if err := doJSON(t.client, t.rateLimiter, req, "twitter media upload", &resp); err != nil {
		return MediaRef{}, err
	}

	id := resp.MediaIDString
	if id == "" && resp.MediaID != 0 {
		id = fmt.Sprintf("%d", resp.MediaID)
	}
	if id == "" {
		return MediaRef{}, &models.RemoteError{Op: "twitter media upload", Detail: "response missing media_id_string"}
	}
	return MediaRef{ID: id}, nil
}

type tweetRequest struct {
	Text  string      `json:"text"`
	Media *tweetMedia `json:"media,omitempty"`
}

type tweetMedia struct {
	MediaIDs []string `json:"media_ids"`
}

type tweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

func (t *Twitter) CreatePost(ctx context.Context, post Post) (string, error) {
	if t.client == nil {
		return "", fmt.Errorf("%w: not authenticated", models.ErrPostCreateError)
	}

	payload := tweetRequest{Text: post.Text}
	if post.Media.ID != "" {
		payload.Media = &tweetMedia{MediaIDs: []string{post.Media.ID}}
	}
	req, err := newJSONRequest(ctx, t.apiURL+"/tweets", payload)
	if err != nil {
		return "", err
	}

	var resp tweetResponse
	if err := doJSON(t.client, t.rateLimiter, req, "twitter create tweet", &resp); err != nil {
		return "", err
	}
	if resp.Data.ID == "" {
		return "", &models.RemoteError{Op: "twitter create tweet", Detail: "response missing data.id"}
	}
	return resp.Data.ID, nil
}

func (t *Twitter) PostURL(id string) string {
	if id == "" {
		return ""
	}
	return "https://x.com/i/web/status/" + id
}
