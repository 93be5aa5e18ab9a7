// Package media turns a source image into an upload-ready asset within a
// platform's byte budget.
package media

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/pauljones0/rin-throwback/internal/models"
)

// Format is the output encoding requested from a transcoder.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
)

// ResizeRequest describes one downscale/recompress operation.
type ResizeRequest struct {
	Src      string
	Dst      string
	Format   Format
	MaxBytes int64
	// FlattenAlpha composites transparency onto white, needed when a PNG is
	// re-encoded as JPEG.
	FlattenAlpha bool
}

// ImageTranscoder downsizes an image file into Dst.
type ImageTranscoder interface {
	Resize(ctx context.Context, req ResizeRequest) error
}

const maxDimension = "2048x2048>"

// MagickTranscoder shells out to ImageMagick, preferring `magick` over the
// older `convert` entry point.
type MagickTranscoder struct {
	lookPath func(string) (string, error)
}

func NewMagickTranscoder() *MagickTranscoder {
	return &MagickTranscoder{lookPath: exec.LookPath}
}

func (m *MagickTranscoder) binary() (string, error) {
	for _, name := range []string{"magick", "convert"} {
		if p, err := m.lookPath(name); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: ImageMagick (magick/convert) not found in PATH", models.ErrToolUnavailable)
}

func (m *MagickTranscoder) Resize(ctx context.Context, req ResizeRequest) error {
	bin, err := m.binary()
	if err != nil {
		return err
	}
	args, err := magickArgs(req)
	if err != nil {
		return err
	}

	out, err := exec.CommandContext(ctx, bin, args...).CombinedOutput()
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return fmt.Errorf("%w: %s exited %d: %s", models.ErrMediaPreparation, bin, ee.ExitCode(), strings.TrimSpace(string(out)))
		}
		return fmt.Errorf("%w: exec %s: %v", models.ErrToolUnavailable, bin, err)
	}
	return nil
}

func magickArgs(req ResizeRequest) ([]string, error) {
	args := []string{req.Src, "-strip", "-resize", maxDimension}
	switch req.Format {
	case FormatJPEG:
		if req.FlattenAlpha {
			args = append(args, "-background", "white", "-alpha", "remove", "-alpha", "off")
		}
		args = append(args,
			"-define", fmt.Sprintf("jpeg:extent=%dB", req.MaxBytes),
			"-quality", "92",
		)
	case FormatPNG:
		args = append(args, "-define", "png:compression-level=9")
	default:
		return nil, fmt.Errorf("%w: %q", models.ErrUnsupportedFormat, req.Format)
	}
	return append(args, req.Dst), nil
}
