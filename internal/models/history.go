package models

import "strings"

// HistoryRecord is one append-only log entry, written once per completed run.
// Platform fields are nil when the platform failed or was not attempted.
type HistoryRecord struct {
	RunID    string `json:"run_id,omitempty" firestore:"run_id,omitempty"`
	PostedAt string `json:"posted_at,omitempty" firestore:"posted_at,omitempty"`
	Filename string `json:"filename" firestore:"filename"`
	SetName  string `json:"set_name" firestore:"set_name"`
	SetURL   string `json:"set_url" firestore:"set_url"`

	TwitterPostID *string `json:"twitter_post_id" firestore:"twitter_post_id"`
	TwitterURL    *string `json:"twitter_url,omitempty" firestore:"twitter_url,omitempty"`
	BlueskyURI    *string `json:"bluesky_uri" firestore:"bluesky_uri"`
	BlueskyURL    *string `json:"bluesky_url" firestore:"bluesky_url"`

	// Written by the older tweet-only tool.
	TweetedAt string  `json:"tweeted_at,omitempty" firestore:"tweeted_at,omitempty"`
	TweetID   *string `json:"tweet_id,omitempty" firestore:"tweet_id,omitempty"`
}

// IdentityKey mirrors ManifestEntry.IdentityKey for history records.
func (r HistoryRecord) IdentityKey() string {
	if k := strings.TrimSpace(r.SetURL); k != "" {
		return k
	}
	return strings.TrimSpace(r.SetName)
}

// Timestamp returns posted_at, falling back to the legacy tweeted_at field.
func (r HistoryRecord) Timestamp() string {
	if r.PostedAt != "" {
		return r.PostedAt
	}
	return r.TweetedAt
}
