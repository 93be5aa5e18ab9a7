package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/pauljones0/rin-throwback/internal/validator"
)

const (
	DefaultConfigFile      = "throwback.yaml"
	DefaultManifest        = "Rin_Covers/manifest.json"
	DefaultImagesDir       = "Rin_Covers"
	DefaultTwitterAuth     = "twitter_auth.json"
	DefaultBlueskyAuth     = "bluesky_auth.json"
	DefaultHistory         = "post_history.json"
	DefaultTwitterTemplate = "twitter_template.tmpl"
	DefaultBlueskyTemplate = "bluesky_template.tmpl"
	DefaultThresholdDays   = 90
	DefaultMaxImageMB      = 5

	PlatformBoth = "both"

	BackendFile      = "file"
	BackendFirestore = "firestore"

	envFile       = ".env"
	legacyHistory = "tweet_history.json"
	templatesDir  = "templates"
)

var legacyTemplates = []string{"post_template.tmpl", "tweet_template.tmpl", templatesDir + "/" + DefaultTwitterTemplate}

type Config struct {
	ManifestPath    string `yaml:"manifest" validate:"required"`
	ImagesDir       string `yaml:"images_dir" validate:"required"`
	TwitterAuthPath string `yaml:"twitter_auth" validate:"required"`
	BlueskyAuthPath string `yaml:"bluesky_auth" validate:"required"`
	HistoryPath     string `yaml:"history" validate:"required"`
	ThresholdDays   int    `yaml:"threshold_days" validate:"gte=0"`
	TwitterTemplate string `yaml:"template" validate:"required"`
	BlueskyTemplate string `yaml:"bluesky_template" validate:"required"`
	MaxImageMB      int    `yaml:"max_image_mb" validate:"gt=0"`
	Platform        string `yaml:"platform" validate:"oneof=twitter bluesky both"`
	LogLevel        string `yaml:"log_level" validate:"oneof=debug info warn error"`

	HistoryBackend      string `yaml:"history_backend" validate:"oneof=file firestore"`
	ProjectID           string `yaml:"project_id" validate:"required_if=HistoryBackend firestore"`
	FirestoreCollection string `yaml:"firestore_collection"`
}

func Defaults() *Config {
	return &Config{
		ManifestPath:    DefaultManifest,
		ImagesDir:       DefaultImagesDir,
		TwitterAuthPath: DefaultTwitterAuth,
		BlueskyAuthPath: DefaultBlueskyAuth,
		HistoryPath:     DefaultHistory,
		ThresholdDays:   DefaultThresholdDays,
		TwitterTemplate: DefaultTwitterTemplate,
		BlueskyTemplate: DefaultBlueskyTemplate,
		MaxImageMB:      DefaultMaxImageMB,
		Platform:        PlatformBoth,
		LogLevel:        "info",
		HistoryBackend:  BackendFile,
	}
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in increasing precedence. An empty path means THROWBACK_CONFIG
// or throwback.yaml, either of which may be absent.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	explicit := path != ""
	if !explicit {
		path = os.Getenv("THROWBACK_CONFIG")
		explicit = path != ""
	}
	if path == "" {
		path = DefaultConfigFile
	}

	cfg := Defaults()
	if err := cfg.loadYAML(path, explicit); err != nil {
		return nil, err
	}
	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	slog.Debug("Loaded config file", "path", path)
	return nil
}

func (c *Config) loadEnv() error {
	strVars := map[string]*string{
		"THROWBACK_MANIFEST":         &c.ManifestPath,
		"THROWBACK_IMAGES_DIR":       &c.ImagesDir,
		"THROWBACK_TWITTER_AUTH":     &c.TwitterAuthPath,
		"THROWBACK_BLUESKY_AUTH":     &c.BlueskyAuthPath,
		"THROWBACK_HISTORY":          &c.HistoryPath,
		"THROWBACK_TEMPLATE":         &c.TwitterTemplate,
		"THROWBACK_BLUESKY_TEMPLATE": &c.BlueskyTemplate,
		"THROWBACK_PLATFORM":         &c.Platform,
		"LOG_LEVEL":                  &c.LogLevel,
		"HISTORY_BACKEND":            &c.HistoryBackend,
		"GOOGLE_CLOUD_PROJECT":       &c.ProjectID,
		"FIRESTORE_COLLECTION":       &c.FirestoreCollection,
	}
	for name, dst := range strVars {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	intVars := map[string]*int{
		"THROWBACK_THRESHOLD_DAYS": &c.ThresholdDays,
		"THROWBACK_MAX_IMAGE_MB":   &c.MaxImageMB,
	}
	for name, dst := range intVars {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, v, err)
		}
		*dst = parsed
	}
	return nil
}

// ResolveLegacyPaths swaps default paths that do not exist for the names
// used by the older tweet-only tool, then for the templates shipped in
// templates/. The Bluesky template falls back to the main template.
func (c *Config) ResolveLegacyPaths() {
	if c.HistoryPath == DefaultHistory && !exists(c.HistoryPath) && exists(legacyHistory) {
		slog.Info("Using legacy history file", "path", legacyHistory)
		c.HistoryPath = legacyHistory
	}
	if c.TwitterTemplate == DefaultTwitterTemplate && !exists(c.TwitterTemplate) {
		for _, name := range legacyTemplates {
			if exists(name) {
				slog.Info("Using legacy template", "path", name)
				c.TwitterTemplate = name
				break
			}
		}
	}
	if c.BlueskyTemplate == DefaultBlueskyTemplate && !exists(c.BlueskyTemplate) {
		if shipped := templatesDir + "/" + DefaultBlueskyTemplate; exists(shipped) {
			c.BlueskyTemplate = shipped
		}
	}
	if !exists(c.BlueskyTemplate) {
		c.BlueskyTemplate = c.TwitterTemplate
	}
}

func (c *Config) Validate() error {
	c.LogLevel = strings.ToLower(c.LogLevel)
	if err := validator.New().ValidateStruct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *Config) PostToTwitter() bool {
	return c.Platform == "twitter" || c.Platform == PlatformBoth
}

func (c *Config) PostToBluesky() bool {
	return c.Platform == "bluesky" || c.Platform == PlatformBoth
}

// MaxImageBytes is the upload budget in bytes (MiB-based, as X counts it).
func (c *Config) MaxImageBytes() int64 {
	return int64(c.MaxImageMB) * 1024 * 1024
}

// NewLogger returns a text logger writing to w at the named level.
// Unknown levels fall back to info.
func NewLogger(level string, w io.Writer) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l}))
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
