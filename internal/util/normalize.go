package util

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/cases"
)

// quoteReplacer maps typographic quote glyphs to their ASCII forms in a single pass.
var quoteReplacer = strings.NewReplacer(
	"“", `"`,
	"”", `"`,
	"„", `"`,
	"«", `"`,
	"»", `"`,
	"’", "'",
	"‘", "'",
	"‚", "'",
	"`", "'",
)

// NormalizeQuotes replaces curly and angled quotes with straight ASCII quotes.
func NormalizeQuotes(s string) string {
	return quoteReplacer.Replace(s)
}

// NormalizeTitle trims, unescapes HTML entities and straightens quotes.
func NormalizeTitle(s string) string {
	return NormalizeQuotes(html.UnescapeString(strings.TrimSpace(s)))
}

var folder = cases.Fold()

// FoldKey case-folds a set name that was already normalized at load.
func FoldKey(name string) string {
	return folder.String(name)
}

// MatchKey returns the comparison form of a raw, user-supplied set name:
// normalized once and case-folded.
func MatchKey(name string) string {
	return FoldKey(NormalizeTitle(name))
}

// CleanTags trims the tag string and strips separator dashes.
func CleanTags(tags string) string {
	return strings.ReplaceAll(strings.TrimSpace(tags), "-", "")
}
