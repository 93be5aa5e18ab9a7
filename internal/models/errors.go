package models

import (
	"errors"
	"fmt"
)

// Error classes. Specific errors below wrap one of these so callers can test
// either the class or the exact condition with errors.Is.
var (
	ErrInputNotFound      = errors.New("input not found")
	ErrMalformedInput     = errors.New("malformed input")
	ErrSelectionFailure   = errors.New("selection failed")
	ErrIncompleteEntry    = errors.New("chosen entry missing required fields")
	ErrRenderFailure      = errors.New("render failed")
	ErrMediaPreparation   = errors.New("media preparation failed")
	ErrRemoteFailure      = errors.New("remote call failed")
	ErrHistoryWriteFailed = errors.New("history write failed")
	ErrHistoryUnreadable  = errors.New("history unreadable")
)

var (
	ErrManifestNotFound    = fmt.Errorf("manifest: %w", ErrInputNotFound)
	ErrImageNotFound       = fmt.Errorf("image file: %w", ErrInputNotFound)
	ErrCredentialsNotFound = fmt.Errorf("credentials file: %w", ErrInputNotFound)

	ErrMalformedManifest    = fmt.Errorf("manifest must be a list of entries: %w", ErrMalformedInput)
	ErrMalformedHistory     = fmt.Errorf("history must be a list of records: %w", ErrMalformedInput)
	ErrMalformedCredentials = fmt.Errorf("credentials: %w", ErrMalformedInput)

	ErrNoEligibleEntries = fmt.Errorf("no eligible entries: %w", ErrSelectionFailure)
	ErrNoSuchSetName     = fmt.Errorf("no manifest entry with that set name: %w", ErrSelectionFailure)

	ErrTemplateMissing     = fmt.Errorf("template not found: %w", ErrRenderFailure)
	ErrTemplateRenderError = fmt.Errorf("template render error: %w", ErrRenderFailure)

	ErrUnsupportedFormat = fmt.Errorf("unsupported image format for resize: %w", ErrMediaPreparation)
	ErrToolUnavailable   = fmt.Errorf("image tool unavailable: %w", ErrMediaPreparation)
	ErrStillTooLarge     = fmt.Errorf("resized image still too large: %w", ErrMediaPreparation)

	ErrAuth             = fmt.Errorf("authentication failed: %w", ErrRemoteFailure)
	ErrMediaUploadError = fmt.Errorf("media upload failed: %w", ErrRemoteFailure)
	ErrPostCreateError  = fmt.Errorf("post create failed: %w", ErrRemoteFailure)
)

// ErrRecordExists is returned when a history record for the same run was already stored.
var ErrRecordExists = fmt.Errorf("history record already exists: %w", ErrHistoryWriteFailed)

// RemoteError carries the status and body returned by a platform API.
type RemoteError struct {
	Op     string
	Status int
	Detail string
}

func (e *RemoteError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.Op, e.Detail)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.Status, e.Detail)
}

// Stage names a step of the per-platform publishing pipeline.
type Stage string

const (
	StageAuth   Stage = "auth"
	StageMedia  Stage = "media"
	StageUpload Stage = "upload"
	StageCreate Stage = "create"
)

// PlatformError scopes a failure to one platform and pipeline stage.
type PlatformError struct {
	Platform string
	Stage    Stage
	Err      error
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Platform, e.Stage, e.Err)
}

func (e *PlatformError) Unwrap() error { return e.Err }
