package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pauljones0/rin-throwback/internal/media"
	"github.com/pauljones0/rin-throwback/internal/models"
	"github.com/pauljones0/rin-throwback/internal/publisher"
	"github.com/pauljones0/rin-throwback/internal/render"
	"github.com/pauljones0/rin-throwback/internal/selection"
	"github.com/pauljones0/rin-throwback/internal/util"
	"github.com/pauljones0/rin-throwback/internal/validator"
)

// Target is one enabled platform: its adapter and the template rendered for it.
type Target struct {
	Adapter      publisher.Adapter
	TemplatePath string
	MaxChars     int
}

type Options struct {
	ImagesDir     string
	ThresholdDays int
	// SetName forces a specific set, bypassing the eligibility window.
	SetName      string
	DryRun       bool
	RecordDryRun bool
	// HistoryLabel names the history store in output lines.
	HistoryLabel string
}

// Runner executes one throwback run end to end.
type Runner struct {
	manifest   ManifestSource
	history    HistoryStore
	transcoder media.ImageTranscoder
	targets    []Target
	opts       Options
	rng        *rand.Rand
	out        io.Writer
	validator  *validator.Validator

	now   func() time.Time
	newID func() string
}

func New(manifest ManifestSource, history HistoryStore, transcoder media.ImageTranscoder, targets []Target, opts Options, rng *rand.Rand, out io.Writer) *Runner {
	if out == nil {
		out = io.Discard
	}
	return &Runner{
		manifest:   manifest,
		history:    history,
		transcoder: transcoder,
		targets:    targets,
		opts:       opts,
		rng:        rng,
		out:        out,
		validator:  validator.New(),
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
	}
}

type rendered struct {
	target Target
	text   string
}

// Run selects one set, publishes it to every target and records the run.
// The returned error is nil on full success; otherwise ExitCode maps it to
// the process status.
func (r *Runner) Run(ctx context.Context) error {
	manifest, err := r.manifest.LoadManifest(ctx)
	if err != nil {
		return err
	}
	history, err := r.history.Load(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrHistoryUnreadable, err)
	}
	slog.Debug("Loaded inputs", "manifest_entries", len(manifest), "history_records", len(history))

	now := r.now()
	chosen, err := r.choose(manifest, history, now)
	if err != nil {
		return err
	}

	if err := r.validator.ValidateStruct(chosen); err != nil {
		return fmt.Errorf("%w: missing or invalid %s: %+v", models.ErrIncompleteEntry,
			strings.Join(validator.FailedFields(err), ", "), chosen)
	}
	fmt.Fprintf(r.out, "Selected set: %s\n", chosen.SetURL)

	imagePath := filepath.Join(r.opts.ImagesDir, chosen.Filename)
	if _, err := os.Stat(imagePath); err != nil {
		return fmt.Errorf("%w: %s", models.ErrImageNotFound, imagePath)
	}

	texts, err := r.renderAll(chosen)
	if err != nil {
		return err
	}

	if r.opts.DryRun {
		return r.dryRun(ctx, chosen, texts, imagePath, now)
	}

	rec := r.newRecord(chosen, now)
	var (
		firstErr  error
		succeeded int
	)
	for _, rt := range texts {
		res := publisher.Publish(ctx, rt.target.Adapter, r.transcoder, publisher.Request{
			Text:      rt.text,
			AltText:   "Cover image for " + chosen.SetName,
			ImagePath: imagePath,
			Now:       now,
		})
		if res.Err != nil {
			if firstErr == nil {
				firstErr = res.Err
			}
			continue
		}
		succeeded++
		applyResult(&rec, res)
	}

	if succeeded == 0 {
		slog.Error("No platform succeeded, history left unchanged", "set", chosen.SetName)
		return firstErr
	}

	if err := r.history.Append(ctx, rec); err != nil {
		return errors.Join(firstErr, fmt.Errorf("record run: %w", err))
	}

	r.report(chosen, rec)
	return firstErr
}

func (r *Runner) choose(manifest []models.ManifestEntry, history []models.HistoryRecord, now time.Time) (models.ManifestEntry, error) {
	if r.opts.SetName != "" {
		chosen, matches, err := selection.ChooseByName(manifest, r.opts.SetName)
		if err != nil {
			return models.ManifestEntry{}, err
		}
		if matches > 1 {
			slog.Warn("Multiple manifest entries matched set name, using first match", "set_name", r.opts.SetName, "matches", matches)
		}
		return chosen, nil
	}

	eligible := selection.Eligible(manifest, history, r.opts.ThresholdDays, now)
	slog.Info("Eligible sets", "count", len(eligible), "threshold_days", r.opts.ThresholdDays)
	chosen, err := selection.Choose(eligible, r.rng)
	if err != nil {
		return models.ManifestEntry{}, fmt.Errorf("%w (threshold_days=%d)", err, r.opts.ThresholdDays)
	}
	return chosen, nil
}

// renderAll renders every target up front so a template problem stops the
// run before anything is posted.
func (r *Runner) renderAll(entry models.ManifestEntry) ([]rendered, error) {
	published, err := util.FormatPublished(entry.DatePublished)
	if err != nil {
		return nil, fmt.Errorf("%w: date_published %q", models.ErrIncompleteEntry, entry.DatePublished)
	}

	out := make([]rendered, 0, len(r.targets))
	for _, t := range r.targets {
		text, err := render.RenderFile(t.TemplatePath, render.Context{
			SetName:          entry.SetName,
			SetURL:           entry.SetURL,
			DatePublishedISO: entry.DatePublished,
			Published:        published,
			Tags:             entry.Tags,
			MaxLen:           t.MaxChars,
		}, t.MaxChars)
		if err != nil {
			return nil, fmt.Errorf("%s template: %w", t.Adapter.Platform(), err)
		}
		out = append(out, rendered{target: t, text: text})
	}
	return out, nil
}

func (r *Runner) dryRun(ctx context.Context, entry models.ManifestEntry, texts []rendered, imagePath string, now time.Time) error {
	fmt.Fprintln(r.out, "DRY RUN - would post:")
	for _, rt := range texts {
		fmt.Fprintf(r.out, "\n[%s]\n%s\n", rt.target.Adapter.Platform(), rt.text)
	}
	fmt.Fprintf(r.out, "\nWith image: %s\n", imagePath)

	if !r.opts.RecordDryRun {
		return nil
	}
	if err := r.history.Append(ctx, r.newRecord(entry, now)); err != nil {
		return fmt.Errorf("record dry run: %w", err)
	}
	fmt.Fprintf(r.out, "\nRecorded dry run in history: %s\n", r.opts.HistoryLabel)
	return nil
}

func (r *Runner) newRecord(entry models.ManifestEntry, now time.Time) models.HistoryRecord {
	return models.HistoryRecord{
		RunID:    r.newID(),
		PostedAt: util.FormatPostedAt(now),
		Filename: entry.Filename,
		SetName:  entry.SetName,
		SetURL:   entry.SetURL,
	}
}

func applyResult(rec *models.HistoryRecord, res publisher.Result) {
	id := res.PostID
	var url *string
	if res.URL != "" {
		u := res.URL
		url = &u
	}
	switch res.Platform {
	case publisher.PlatformTwitter:
		rec.TwitterPostID = &id
		rec.TwitterURL = url
	case publisher.PlatformBluesky:
		rec.BlueskyURI = &id
		rec.BlueskyURL = url
	default:
		slog.Warn("No history field for platform", "platform", res.Platform)
	}
}

func (r *Runner) report(entry models.ManifestEntry, rec models.HistoryRecord) {
	fmt.Fprintf(r.out, "Posted throwback for set: %s\n", entry.SetName)
	if rec.TwitterURL != nil {
		fmt.Fprintf(r.out, "Twitter URL: %s\n", *rec.TwitterURL)
	}
	switch {
	case rec.BlueskyURL != nil:
		fmt.Fprintf(r.out, "Bluesky URL: %s\n", *rec.BlueskyURL)
	case rec.BlueskyURI != nil:
		fmt.Fprintf(r.out, "Bluesky URI: %s\n", *rec.BlueskyURI)
	}
}
