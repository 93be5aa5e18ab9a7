package media

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/pauljones0/rin-throwback/internal/models"
)

const mib = 1024 * 1024

// Asset is an upload-ready image. When it was produced by resizing, Path is
// a temp file owned by the asset and removed by Cleanup.
type Asset struct {
	Path string
	MIME string
	Size int64

	temp bool
}

// Cleanup removes the asset's temp file, if any. Safe to call more than once.
func (a *Asset) Cleanup() {
	if a == nil || !a.temp {
		return
	}
	if err := os.Remove(a.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to remove temp image", "path", a.Path, "error", err)
	}
	a.temp = false
}

// Prepare returns src unchanged when it fits maxBytes, otherwise asks t to
// shrink it. Temp files are removed on every error path; on success the
// caller owns the asset and must call Cleanup.
func Prepare(ctx context.Context, t ImageTranscoder, src string, maxBytes int64) (*Asset, error) {
	info, err := os.Stat(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrImageNotFound, err)
	}

	mtype, err := mimetype.DetectFile(src)
	if err != nil {
		return nil, fmt.Errorf("%w: detect type of %s: %v", models.ErrMediaPreparation, src, err)
	}

	if info.Size() <= maxBytes {
		return &Asset{Path: src, MIME: mtype.String(), Size: info.Size()}, nil
	}

	slog.Info("Resizing before upload",
		"file", filepath.Base(src),
		"size_mb", fmt.Sprintf("%.2f", float64(info.Size())/mib),
		"limit_mb", fmt.Sprintf("%.2f", float64(maxBytes)/mib),
	)

	format, ok := sourceFormat(src, mtype)
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUnsupportedFormat, filepath.Ext(src))
	}
	if t == nil {
		return nil, fmt.Errorf("%w: no transcoder configured", models.ErrToolUnavailable)
	}

	dst, err := resize(ctx, t, src, format, maxBytes)
	if err != nil {
		return nil, err
	}

	asset := &Asset{Path: dst, temp: true}
	size, err := fileSize(dst)
	if err != nil {
		asset.Cleanup()
		return nil, err
	}
	if size > maxBytes {
		asset.Cleanup()
		return nil, fmt.Errorf("%w: %.2f MB > %.2f MB", models.ErrStillTooLarge, float64(size)/mib, float64(maxBytes)/mib)
	}

	asset.Size = size
	asset.MIME = "application/octet-stream"
	if m, err := mimetype.DetectFile(dst); err == nil {
		asset.MIME = m.String()
	}
	return asset, nil
}

// resize produces the shrunken file. PNGs that stay over budget after
// recompression are re-encoded as JPEG on a white background.
func resize(ctx context.Context, t ImageTranscoder, src string, format Format, maxBytes int64) (string, error) {
	ext := ".jpg"
	if format == FormatPNG {
		ext = ".png"
	}
	dst, err := tempPath(ext)
	if err != nil {
		return "", err
	}

	if err := t.Resize(ctx, ResizeRequest{Src: src, Dst: dst, Format: format, MaxBytes: maxBytes}); err != nil {
		removeQuietly(dst)
		return "", err
	}
	if format != FormatPNG {
		return dst, nil
	}

	size, err := fileSize(dst)
	if err != nil {
		removeQuietly(dst)
		return "", err
	}
	if size <= maxBytes {
		return dst, nil
	}
	removeQuietly(dst)

	jpg, err := tempPath(".jpg")
	if err != nil {
		return "", err
	}
	req := ResizeRequest{Src: src, Dst: jpg, Format: FormatJPEG, MaxBytes: maxBytes, FlattenAlpha: true}
	if err := t.Resize(ctx, req); err != nil {
		removeQuietly(jpg)
		return "", err
	}
	return jpg, nil
}

func sourceFormat(path string, mtype *mimetype.MIME) (Format, bool) {
	switch {
	case mtype.Is("image/jpeg"):
		return FormatJPEG, true
	case mtype.Is("image/png"):
		return FormatPNG, true
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return FormatJPEG, true
	case ".png":
		return FormatPNG, true
	}
	return "", false
}

func tempPath(ext string) (string, error) {
	f, err := os.CreateTemp("", "throwback-*"+ext)
	if err != nil {
		return "", fmt.Errorf("%w: create temp file: %v", models.ErrMediaPreparation, err)
	}
	name := f.Name()
	f.Close()
	return name, nil
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("%w: resized output: %v", models.ErrMediaPreparation, err)
	}
	return info.Size(), nil
}

func removeQuietly(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to remove temp image", "path", path, "error", err)
	}
}
