package processor

import (
	"errors"

	"github.com/pauljones0/rin-throwback/internal/models"
	"github.com/pauljones0/rin-throwback/internal/publisher"
)

const (
	ExitOK                = 0
	ExitGeneric           = 1
	ExitManifestNotFound  = 2
	ExitSelection         = 3
	ExitIncompleteEntry   = 4
	ExitImageNotFound     = 5
	ExitTwitterAuth       = 6
	ExitTwitterUpload     = 7
	ExitTwitterCreate     = 8
	ExitRender            = 9
	ExitBlueskyAuth       = 10
	ExitBlueskyCreate     = 11
	ExitBlueskyUpload     = 12
	ExitMalformedManifest = 13
	ExitHistory           = 14
)

// ExitCode maps a run error to a stable process status. When several
// failures are joined, the first platform failure wins.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var pe *models.PlatformError
	if errors.As(err, &pe) {
		return platformExitCode(pe)
	}

	switch {
	case errors.Is(err, models.ErrManifestNotFound):
		return ExitManifestNotFound
	case errors.Is(err, models.ErrMalformedManifest):
		return ExitMalformedManifest
	case errors.Is(err, models.ErrSelectionFailure):
		return ExitSelection
	case errors.Is(err, models.ErrIncompleteEntry):
		return ExitIncompleteEntry
	case errors.Is(err, models.ErrImageNotFound):
		return ExitImageNotFound
	case errors.Is(err, models.ErrRenderFailure):
		return ExitRender
	case errors.Is(err, models.ErrHistoryUnreadable),
		errors.Is(err, models.ErrMalformedHistory),
		errors.Is(err, models.ErrHistoryWriteFailed):
		return ExitHistory
	}
	return ExitGeneric
}

func platformExitCode(pe *models.PlatformError) int {
	codes := map[string]map[models.Stage]int{
		publisher.PlatformTwitter: {
			models.StageAuth:   ExitTwitterAuth,
			models.StageMedia:  ExitTwitterUpload,
			models.StageUpload: ExitTwitterUpload,
			models.StageCreate: ExitTwitterCreate,
		},
		publisher.PlatformBluesky: {
			models.StageAuth:   ExitBlueskyAuth,
			models.StageMedia:  ExitBlueskyUpload,
			models.StageUpload: ExitBlueskyUpload,
			models.StageCreate: ExitBlueskyCreate,
		},
	}
	if code, ok := codes[pe.Platform][pe.Stage]; ok {
		return code
	}
	return ExitGeneric
}
