package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/pauljones0/rin-throwback/internal/config"
	"github.com/pauljones0/rin-throwback/internal/media"
	"github.com/pauljones0/rin-throwback/internal/processor"
	"github.com/pauljones0/rin-throwback/internal/publisher"
	"github.com/pauljones0/rin-throwback/internal/selection"
	"github.com/pauljones0/rin-throwback/internal/storage"
)

type flagValues struct {
	configPath      string
	manifest        string
	imagesDir       string
	auth            string
	twitterAuth     string
	blueskyAuth     string
	history         string
	thresholdDays   int
	setName         string
	seed            string
	template        string
	blueskyTemplate string
	maxImageMB      int
	platform        string
	dryRun          bool
	recordDryRun    bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var f flagValues

	cmd := &cobra.Command{
		Use:           "throwback",
		Short:         "Post a random throwback cover set to X/Twitter and Bluesky",
		Long:          "Pick a cover set that has not been posted within the repeat window, render its post text, publish it with its cover image and record the run in the history log.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, &f)
			if err != nil {
				return err
			}
			slog.SetDefault(config.NewLogger(cfg.LogLevel, stderr))
			return execute(cmd.Context(), cfg, &f, stdout)
		},
	}

	d := config.Defaults()
	fl := cmd.Flags()
	fl.StringVar(&f.configPath, "config", "", "YAML config file (default "+config.DefaultConfigFile+" or $THROWBACK_CONFIG)")
	fl.StringVar(&f.manifest, "manifest", d.ManifestPath, "path to manifest.json")
	fl.StringVar(&f.imagesDir, "images-dir", d.ImagesDir, "directory containing downloaded cover images")
	fl.StringVar(&f.auth, "auth", d.TwitterAuthPath, "Twitter auth JSON file (legacy flag)")
	fl.StringVar(&f.twitterAuth, "twitter-auth", "", "Twitter auth JSON file (overrides --auth)")
	fl.StringVar(&f.blueskyAuth, "bluesky-auth", d.BlueskyAuthPath, "Bluesky auth JSON file")
	fl.StringVar(&f.history, "history", d.HistoryPath, "history file used to avoid repeats")
	fl.IntVar(&f.thresholdDays, "threshold-days", d.ThresholdDays, "do not repeat a set within this many days")
	fl.StringVar(&f.setName, "set-name", "", "post this set_name, ignoring the repeat window")
	fl.StringVar(&f.seed, "seed", "", "RNG seed for a reproducible choice")
	fl.StringVar(&f.template, "template", d.TwitterTemplate, "Twitter template file")
	fl.StringVar(&f.blueskyTemplate, "bluesky-template", d.BlueskyTemplate, "Bluesky template file (falls back to --template)")
	fl.IntVar(&f.maxImageMB, "max-image-mb", d.MaxImageMB, "max image size for upload (MB)")
	fl.StringVar(&f.platform, "platform", d.Platform, "where to post: twitter|bluesky|both")
	fl.BoolVar(&f.dryRun, "dry-run", false, "do not post; print what would be posted")
	fl.BoolVar(&f.recordDryRun, "record-dry-run", false, "with --dry-run, record the selection in history")

	return cmd
}

// loadConfig layers explicitly set flags over the file and environment config.
func loadConfig(cmd *cobra.Command, f *flagValues) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	setStr := func(name string, dst *string, v string) {
		if changed(name) {
			*dst = v
		}
	}
	setInt := func(name string, dst *int, v int) {
		if changed(name) {
			*dst = v
		}
	}

	setStr("manifest", &cfg.ManifestPath, f.manifest)
	setStr("images-dir", &cfg.ImagesDir, f.imagesDir)
	setStr("auth", &cfg.TwitterAuthPath, f.auth)
	setStr("twitter-auth", &cfg.TwitterAuthPath, f.twitterAuth)
	setStr("bluesky-auth", &cfg.BlueskyAuthPath, f.blueskyAuth)
	setStr("history", &cfg.HistoryPath, f.history)
	setInt("threshold-days", &cfg.ThresholdDays, f.thresholdDays)
	setStr("template", &cfg.TwitterTemplate, f.template)
	setStr("bluesky-template", &cfg.BlueskyTemplate, f.blueskyTemplate)
	setInt("max-image-mb", &cfg.MaxImageMB, f.maxImageMB)
	setStr("platform", &cfg.Platform, f.platform)

	cfg.ResolveLegacyPaths()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func execute(ctx context.Context, cfg *config.Config, f *flagValues, stdout io.Writer) error {
	history, label, closeHistory, err := openHistory(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeHistory()

	var targets []processor.Target
	if cfg.PostToTwitter() {
		targets = append(targets, processor.Target{
			Adapter:      publisher.NewTwitter(cfg.TwitterAuthPath, cfg.MaxImageBytes()),
			TemplatePath: cfg.TwitterTemplate,
			MaxChars:     publisher.TwitterMaxChars,
		})
	}
	if cfg.PostToBluesky() {
		targets = append(targets, processor.Target{
			Adapter:      publisher.NewBluesky(cfg.BlueskyAuthPath, cfg.MaxImageBytes()),
			TemplatePath: cfg.BlueskyTemplate,
			MaxChars:     publisher.BlueskyMaxChars,
		})
	}

	runner := processor.New(
		storage.NewManifestFile(cfg.ManifestPath),
		history,
		media.NewMagickTranscoder(),
		targets,
		processor.Options{
			ImagesDir:     cfg.ImagesDir,
			ThresholdDays: cfg.ThresholdDays,
			SetName:       f.setName,
			DryRun:        f.dryRun,
			RecordDryRun:  f.recordDryRun,
			HistoryLabel:  label,
		},
		selection.NewRand(f.seed),
		stdout,
	)
	return runner.Run(ctx)
}

func openHistory(ctx context.Context, cfg *config.Config) (processor.HistoryStore, string, func(), error) {
	if cfg.HistoryBackend == config.BackendFirestore {
		store, err := storage.NewFirestoreHistory(ctx, cfg.ProjectID, cfg.FirestoreCollection)
		if err != nil {
			return nil, "", nil, fmt.Errorf("open firestore history: %w", err)
		}
		closeFn := func() {
			if err := store.Close(); err != nil {
				slog.Warn("Failed to close Firestore client", "error", err)
			}
		}
		return store, "firestore:" + store.Collection(), closeFn, nil
	}
	return storage.NewHistoryFile(cfg.HistoryPath), cfg.HistoryPath, func() {}, nil
}
