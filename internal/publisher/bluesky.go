package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"golang.org/x/time/rate"

	"github.com/pauljones0/rin-throwback/internal/config"
	"github.com/pauljones0/rin-throwback/internal/media"
	"github.com/pauljones0/rin-throwback/internal/models"
	"github.com/pauljones0/rin-throwback/internal/render"
)

const (
	BlueskyMaxChars = 300
	// BlueskyMaxImageBytes is the PDS blob limit for images.
	BlueskyMaxImageBytes = 1_000_000

	maxAltTextChars = 1000
	postCollection  = "app.bsky.feed.post"
	createdAtLayout = "2006-01-02T15:04:05.000000Z"
)

type blueskySession struct {
	AccessJwt string `json:"accessJwt"`
	DID       string `json:"did"`
	Handle    string `json:"handle"`
}

// Bluesky posts through the AT Protocol XRPC endpoints of the account's PDS.
type Bluesky struct {
	loadCredentials func() (*config.BlueskyCredentials, error)
	maxBytes        int64
	client          *http.Client
	rateLimiter     *rate.Limiter

	service string
	session *blueskySession
}

func NewBluesky(credentialsPath string, maxBytes int64) *Bluesky {
	return &Bluesky{
		loadCredentials: func() (*config.BlueskyCredentials, error) {
			return config.LoadBlueskyCredentials(credentialsPath)
		},
		maxBytes:    min(maxBytes, BlueskyMaxImageBytes),
		client:      &http.Client{Timeout: requestTimeout},
		rateLimiter: newRateLimiter(),
	}
}

func (b *Bluesky) Platform() string     { return PlatformBluesky }
func (b *Bluesky) MaxImageBytes() int64 { return b.maxBytes }

func (b *Bluesky) Authenticate(ctx context.Context) error {
	creds, err := b.loadCredentials()
	if err != nil {
		return err
	}
	b.service = strings.TrimRight(creds.Service, "/")
	if b.service == "" {
		b.service = config.DefaultBlueskyService
	}

	req, err := newJSONRequest(ctx, b.xrpc("com.atproto.server.createSession"), map[string]string{
		"identifier": creds.Identifier,
		"password":   creds.AppPassword,
	})
	if err != nil {
		return err
	}

	var session blueskySession
	if err := doJSON(b.client, b.rateLimiter, req, "bluesky createSession", &session); err != nil {
		return err
	}
	if session.AccessJwt == "" || session.DID == "" {
		return &models.RemoteError{Op: "bluesky createSession", Detail: "response missing accessJwt or did"}
	}
	b.session = &session
	return nil
}

func (b *Bluesky) UploadMedia(ctx context.Context, asset *media.Asset) (MediaRef, error) {
	if b.session == nil {
		return MediaRef{}, fmt.Errorf("%w: not authenticated", models.ErrMediaUploadError)
	}

	f, err := os.Open(asset.Path)
	if err != nil {
		return MediaRef{}, err
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.xrpc("com.atproto.repo.uploadBlob"), f)
	if err != nil {
		return MediaRef{}, err
	}
	req.ContentLength = asset.Size
	contentType := asset.MIME
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+b.session.AccessJwt)

	var resp struct {
		Blob json.RawMessage `json:"blob"`
	}
	if err := doJSON(b.client, b.rateLimiter, req, "bluesky uploadBlob", &resp); err != nil {
		return MediaRef{}, err
	}
	if len(resp.Blob) == 0 || string(resp.Blob) == "null" {
		return MediaRef{}, &models.RemoteError{Op: "bluesky uploadBlob", Detail: "response missing blob"}
	}
	return MediaRef{Blob: resp.Blob}, nil
}

type feedPost struct {
	Type      string      `json:"$type"`
	Text      string      `json:"text"`
	CreatedAt string      `json:"createdAt"`
	Facets    []facet     `json:"facets,omitempty"`
	Embed     *imageEmbed `json:"embed,omitempty"`
}

type imageEmbed struct {
	Type   string          `json:"$type"`
	Images []embeddedImage `json:"images"`
}

type embeddedImage struct {
	Alt   string          `json:"alt"`
	Image json.RawMessage `json:"image"`
}

type createRecordRequest struct {
	Repo       string   `json:"repo"`
	Collection string   `json:"collection"`
	Record     feedPost `json:"record"`
}

func (b *Bluesky) CreatePost(ctx context.Context, post Post) (string, error) {
	if b.session == nil {
		return "", fmt.Errorf("%w: not authenticated", models.ErrPostCreateError)
	}

	record := feedPost{
		Type:      postCollection,
		Text:      post.Text,
		CreatedAt: post.CreatedAt.UTC().Format(createdAtLayout),
		Facets:    linkFacets(post.Text),
	}
	if len(post.Media.Blob) > 0 {
		record.Embed = &imageEmbed{
			Type: "app.bsky.embed.images",
			Images: []embeddedImage{{
				Alt:   render.Truncate(post.AltText, maxAltTextChars),
				Image: post.Media.Blob,
			}},
		}
	}

	req, err := newJSONRequest(ctx, b.xrpc("com.atproto.repo.createRecord"), createRecordRequest{
		Repo:       b.session.DID,
		Collection: postCollection,
		Record:     record,
	})
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+b.session.AccessJwt)

	var resp struct {
		URI string `json:"uri"`
		CID string `json:"cid"`
	}
	if err := doJSON(b.client, b.rateLimiter, req, "bluesky createRecord", &resp); err != nil {
		return "", err
	}
	if resp.URI == "" {
		return "", &models.RemoteError{Op: "bluesky createRecord", Detail: "response missing uri"}
	}
	return resp.URI, nil
}

// PostURL resolves at://<did>/app.bsky.feed.post/<rkey> to the bsky.app web
// URL, preferring the session handle over the DID as the profile reference.
func (b *Bluesky) PostURL(uri string) string {
	profile := ""
	if b.session != nil {
		profile = b.session.Handle
		if profile == "" {
			profile = b.session.DID
		}
	}
	return webURLFromATURI(uri, profile)
}

func webURLFromATURI(uri, profile string) string {
	rest, ok := strings.CutPrefix(uri, "at://")
	if !ok || profile == "" {
		return ""
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[1] != postCollection || parts[2] == "" {
		return ""
	}
	return fmt.Sprintf("https://bsky.app/profile/%s/post/%s", profile, parts[2])
}

func (b *Bluesky) xrpc(method string) string {
	return b.service + "/xrpc/" + method
}
