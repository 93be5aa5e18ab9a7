package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/pauljones0/rin-throwback/internal/models"
	"github.com/pauljones0/rin-throwback/internal/validator"
)

const DefaultBlueskyService = "https://bsky.social"

// TwitterCredentials are the OAuth 1.0a user-context keys for X/Twitter.
type TwitterCredentials struct {
	APIKey            string `json:"api_key" validate:"required"`
	APISecret         string `json:"api_secret" validate:"required"`
	AccessToken       string `json:"access_token" validate:"required"`
	AccessTokenSecret string `json:"access_token_secret" validate:"required"`
	BearerToken       string `json:"bearer_token,omitempty"`
}

// BlueskyCredentials log in to a PDS with an app password.
type BlueskyCredentials struct {
	Identifier  string `json:"identifier" validate:"required"`
	AppPassword string `json:"app_password" validate:"required"`
	Service     string `json:"service,omitempty" validate:"omitempty,url"`
}

func LoadTwitterCredentials(path string) (*TwitterCredentials, error) {
	var creds TwitterCredentials
	if err := loadCredentials(path, &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

func LoadBlueskyCredentials(path string) (*BlueskyCredentials, error) {
	var creds BlueskyCredentials
	if err := loadCredentials(path, &creds); err != nil {
		return nil, err
	}
	creds.Service = strings.TrimRight(creds.Service, "/")
	if creds.Service == "" {
		creds.Service = DefaultBlueskyService
	}
	return &creds, nil
}

func loadCredentials(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", models.ErrCredentialsNotFound, path)
		}
		return fmt.Errorf("read credentials %s: %w", path, err)
	}

	if !bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		return fmt.Errorf("%w: %s must be a JSON object", models.ErrMalformedCredentials, path)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: %s: %v", models.ErrMalformedCredentials, path, err)
	}

	if err := validator.New().ValidateStruct(dst); err != nil {
		if fields := validator.FailedFields(err); len(fields) > 0 {
			return fmt.Errorf("%w: %s missing or invalid keys: %s", models.ErrMalformedCredentials, path, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %s: %v", models.ErrMalformedCredentials, path, err)
	}
	return nil
}
