package models

// ManifestEntry is one postable content item from the manifest.
// Fields are normalized once when the manifest is loaded.
type ManifestEntry struct {
	Filename      string `json:"filename" validate:"required"`
	SetName       string `json:"set_name" validate:"required"`
	SetURL        string `json:"set_url" validate:"required"`
	DatePublished string `json:"date_published" validate:"required,iso8601"`
	Tags          string `json:"tags"`
}

// IdentityKey returns the key used to correlate the entry with history:
// the set URL when present, otherwise the set name.
func (e ManifestEntry) IdentityKey() string {
	if e.SetURL != "" {
		return e.SetURL
	}
	return e.SetName
}
