package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pauljones0/rin-throwback/internal/models"
)

const tempSuffix = ".tmp"

// HistoryFile is the append-only history log kept as a JSON array on disk.
//
// Records are retained exactly as loaded so fields this version does not know
// about survive the rewrite. The whole array is written back atomically: the
// new content goes to a sibling temp file which is then renamed over the
// original.
type HistoryFile struct {
	path   string
	raw    []json.RawMessage
	loaded bool

	// beforeRename runs after the temp file is durable and before the rename.
	// Tests use it to simulate a crash between the two steps.
	beforeRename func(tmpPath string) error
}

func NewHistoryFile(path string) *HistoryFile {
	return &HistoryFile{path: path}
}

func (h *HistoryFile) Path() string { return h.path }

// Load reads the full history. A missing file is an empty history.
func (h *HistoryFile) Load(_ context.Context) ([]models.HistoryRecord, error) {
	if _, err := os.Stat(h.path + tempSuffix); err == nil {
		slog.Warn("Found leftover history temp file from an interrupted write", "path", h.path+tempSuffix)
	}

	data, err := os.ReadFile(h.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			h.raw = nil
			h.loaded = true
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read history %s: %w", h.path, err)
	}

	raw, err := decodeList(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrMalformedHistory, h.path, err)
	}

	records := make([]models.HistoryRecord, 0, len(raw))
	for i, item := range raw {
		var rec models.HistoryRecord
		if err := json.Unmarshal(item, &rec); err != nil {
			slog.Warn("Skipping unreadable history record", "index", i, "error", err)
			continue
		}
		records = append(records, rec)
	}

	h.raw = raw
	h.loaded = true
	return records, nil
}

// Append adds one record and persists the whole log atomically.
func (h *HistoryFile) Append(ctx context.Context, rec models.HistoryRecord) error {
	if !h.loaded {
		if _, err := h.Load(ctx); err != nil {
			return err
		}
	}

	item, err := encodeRecord(rec)
	if err != nil {
		return fmt.Errorf("%w: encode record: %v", models.ErrHistoryWriteFailed, err)
	}

	next := append(append([]json.RawMessage(nil), h.raw...), item)
	if err := h.save(next); err != nil {
		return err
	}
	h.raw = next
	return nil
}

// encodeRecord marshals rec without HTML escaping so new records match the
// bytes of records loaded from disk.
func encodeRecord(rec models.HistoryRecord) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec); err != nil {
		return nil, err
	}
	return json.RawMessage(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

func (h *HistoryFile) save(records []json.RawMessage) error {
	if records == nil {
		records = []json.RawMessage{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("%w: encode history: %v", models.ErrHistoryWriteFailed, err)
	}

	if err := writeFileAtomic(h.path, buf.Bytes(), h.beforeRename); err != nil {
		return fmt.Errorf("%w: %s: %v", models.ErrHistoryWriteFailed, h.path, err)
	}
	return nil
}

// writeFileAtomic writes data to path+".tmp", syncs it and renames it over path.
// If anything fails after the temp file is complete, the temp file is left in
// place so its content can be recovered.
func writeFileAtomic(path string, data []byte, beforeRename func(string) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}

	tmp := path + tempSuffix
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	if beforeRename != nil {
		if err := beforeRename(tmp); err != nil {
			return err
		}
	}
	return os.Rename(tmp, path)
}
