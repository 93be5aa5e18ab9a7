package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/pauljones0/rin-throwback/internal/models"
	"github.com/pauljones0/rin-throwback/internal/util"
)

// ManifestFile reads the externally owned manifest. It never writes to it.
type ManifestFile struct {
	path string
}

func NewManifestFile(path string) *ManifestFile {
	return &ManifestFile{path: path}
}

func (m *ManifestFile) Path() string { return m.path }

// LoadManifest decodes the manifest and normalizes every entry once.
func (m *ManifestFile) LoadManifest(_ context.Context) ([]models.ManifestEntry, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", models.ErrManifestNotFound, m.path)
		}
		return nil, fmt.Errorf("failed to read manifest %s: %w", m.path, err)
	}

	raw, err := decodeList(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrMalformedManifest, m.path, err)
	}

	entries := make([]models.ManifestEntry, 0, len(raw))
	for i, item := range raw {
		var e models.ManifestEntry
		if err := json.Unmarshal(item, &e); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", models.ErrMalformedManifest, i, err)
		}
		entries = append(entries, NormalizeEntry(e))
	}
	return entries, nil
}

// NormalizeEntry trims every field, unescapes and straightens the set name,
// and strips separator characters from tags.
func NormalizeEntry(e models.ManifestEntry) models.ManifestEntry {
	return models.ManifestEntry{
		Filename:      strings.TrimSpace(e.Filename),
		SetName:       util.NormalizeTitle(e.SetName),
		SetURL:        strings.TrimSpace(e.SetURL),
		DatePublished: strings.TrimSpace(e.DatePublished),
		Tags:          util.CleanTags(e.Tags),
	}
}

// decodeList splits a JSON array into its raw elements. Anything other than
// an array (including null) is rejected.
func decodeList(data []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, errors.New("top-level value is not a JSON array")
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}
