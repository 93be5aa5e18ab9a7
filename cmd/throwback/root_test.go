package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pauljones0/rin-throwback/internal/processor"
)

func setupWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	for _, name := range []string{"THROWBACK_CONFIG", "THROWBACK_MANIFEST", "THROWBACK_HISTORY", "THROWBACK_PLATFORM", "HISTORY_BACKEND"} {
		t.Setenv(name, "")
	}

	if err := os.MkdirAll("Rin_Covers", 0o755); err != nil {
		t.Fatal(err)
	}
	img := make([]byte, 128)
	copy(img, []byte{0xFF, 0xD8, 0xFF, 0xE0})
	files := map[string]string{
		"Rin_Covers/cover.jpg":     string(img),
		"Rin_Covers/manifest.json": `[{"filename":"cover.jpg","set_name":"Beach Day","set_url":"https://example.com/beach","date_published":"2022-08-01","tags":"#summer"}]`,
		"twitter_template.tmpl":    `Throwback: {{ .SetName }} {{ .SetURL }}`,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestRun_DryRunWithRecord(t *testing.T) {
	dir := setupWorkspace(t)
	var stdout, stderr bytes.Buffer

	code := run([]string{"--dry-run", "--record-dry-run", "--seed", "1"}, &stdout, &stderr)
	if code != processor.ExitOK {
		t.Fatalf("run() = %d, stderr: %s", code, stderr.String())
	}

	out := stdout.String()
	for _, want := range []string{
		"Selected set: https://example.com/beach",
		"DRY RUN - would post:",
		"[twitter]\nThrowback: Beach Day https://example.com/beach",
		"[bluesky]\nThrowback: Beach Day",
		"Recorded dry run in history: post_history.json",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Output missing %q:\n%s", want, out)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, "post_history.json"))
	if err != nil {
		t.Fatalf("History not written: %v", err)
	}
	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil || len(records) != 1 {
		t.Fatalf("Unexpected history %s: %v", data, err)
	}
	if records[0]["twitter_post_id"] != nil || records[0]["set_url"] != "https://example.com/beach" {
		t.Errorf("Unexpected record: %v", records[0])
	}

	// The set is now inside the repeat window.
	stdout.Reset()
	if code := run([]string{"--dry-run"}, &stdout, &stderr); code != processor.ExitSelection {
		t.Errorf("Second run = %d, want %d", code, processor.ExitSelection)
	}
}

func TestRun_ExitCodes(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"Manifest missing", []string{"--dry-run", "--manifest", "nope.json"}, processor.ExitManifestNotFound},
		{"Unknown set name", []string{"--dry-run", "--set-name", "Winter"}, processor.ExitSelection},
		{"Template missing", []string{"--dry-run", "--platform", "twitter", "--template", "missing.tmpl"}, processor.ExitRender},
		{"Invalid platform", []string{"--platform", "mastodon"}, processor.ExitGeneric},
		{"Twitter credentials missing", []string{"--platform", "twitter"}, processor.ExitTwitterAuth},
		{"Bluesky credentials missing", []string{"--platform", "bluesky"}, processor.ExitBlueskyAuth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupWorkspace(t)
			var stdout, stderr bytes.Buffer

			if code := run(tt.args, &stdout, &stderr); code != tt.want {
				t.Errorf("run(%v) = %d, want %d; stderr: %s", tt.args, code, tt.want, stderr.String())
			}
			if !strings.Contains(stderr.String(), "ERROR:") {
				t.Errorf("Expected a diagnostic on stderr, got %q", stderr.String())
			}
		})
	}
}

func TestLoadConfig_AuthFlagPrecedence(t *testing.T) {
	setupWorkspace(t)

	tests := []struct {
		args []string
		want string
	}{
		{nil, "twitter_auth.json"},
		{[]string{"--auth", "legacy.json"}, "legacy.json"},
		{[]string{"--auth", "legacy.json", "--twitter-auth", "new.json"}, "new.json"},
	}

	for _, tt := range tests {
		var stdout, stderr bytes.Buffer
		cmd := newRootCmd(&stdout, &stderr)
		if err := cmd.ParseFlags(tt.args); err != nil {
			t.Fatal(err)
		}
		var f flagValues
		f.auth, _ = cmd.Flags().GetString("auth")
		f.twitterAuth, _ = cmd.Flags().GetString("twitter-auth")

		cfg, err := loadConfig(cmd, &f)
		if err != nil {
			t.Fatalf("loadConfig(%v) error = %v", tt.args, err)
		}
		if cfg.TwitterAuthPath != tt.want {
			t.Errorf("loadConfig(%v) twitter auth = %s, want %s", tt.args, cfg.TwitterAuthPath, tt.want)
		}
	}
}
