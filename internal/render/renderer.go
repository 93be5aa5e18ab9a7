// Package render binds an entry's context to a post template.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"unicode/utf8"

	"github.com/pauljones0/rin-throwback/internal/models"
)

// Context is the data a template is executed against.
type Context struct {
	SetName          string
	SetURL           string
	DatePublishedISO string
	Published        string
	Tags             string
	MaxLen           int
}

var funcs = template.FuncMap{
	"fitTags": FitTags,
}

// RenderFile renders the template at path. The result is trimmed and hard
// truncated to maxLen characters.
func RenderFile(path string, data Context, maxLen int) (string, error) {
	text, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", models.ErrTemplateMissing, path)
		}
		return "", fmt.Errorf("%w: %s: %v", models.ErrTemplateMissing, path, err)
	}
	return Render(filepath.Base(path), string(text), data, maxLen)
}

// Render executes template text against data.
func Render(name, text string, data Context, maxLen int) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Funcs(funcs).Parse(text)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrTemplateRenderError, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrTemplateRenderError, err)
	}
	return Truncate(strings.TrimSpace(buf.String()), maxLen), nil
}

// Truncate cuts s to at most maxLen characters with no word-boundary handling.
func Truncate(s string, maxLen int) string {
	if maxLen < 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen])
}

// FitTags returns the longest prefix of hashtags from tags such that
// base + "\n\n" + tags stays within maxLen characters. If every tag fits the
// whole tag string is returned unchanged. Otherwise only "#" words are
// considered and the first one that overflows ends the list.
func FitTags(base, tags string, maxLen int) string {
	tags = strings.TrimSpace(tags)
	if tags == "" {
		return ""
	}
	if fits(base, tags, maxLen) {
		return tags
	}

	var kept []string
	for _, t := range strings.Fields(tags) {
		if !strings.HasPrefix(t, "#") {
			continue
		}
		if !fits(base, strings.Join(append(kept, t), " "), maxLen) {
			break
		}
		kept = append(kept, t)
	}
	return strings.Join(kept, " ")
}

func fits(base, tags string, maxLen int) bool {
	return utf8.RuneCountInString(base)+2+utf8.RuneCountInString(tags) <= maxLen
}
