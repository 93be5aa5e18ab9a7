package publisher

import (
	"regexp"
	"strings"
)

var linkPattern = regexp.MustCompile(`https?://[^\s\p{Z}]+`)

const linkTrailers = ".,;:!?)]}"

type facet struct {
	Index    facetIndex     `json:"index"`
	Features []facetFeature `json:"features"`
}

// facetIndex spans are UTF-8 byte offsets into the post text.
type facetIndex struct {
	ByteStart int `json:"byteStart"`
	ByteEnd   int `json:"byteEnd"`
}

type facetFeature struct {
	Type string `json:"$type"`
	URI  string `json:"uri"`
}

// linkFacets annotates every http(s) URL in text. Trailing punctuation is
// left outside the link.
func linkFacets(text string) []facet {
	var facets []facet
	for _, loc := range linkPattern.FindAllStringIndex(text, -1) {
		url := strings.TrimRight(text[loc[0]:loc[1]], linkTrailers)
		if url == "" {
			continue
		}
		facets = append(facets, facet{
			Index: facetIndex{ByteStart: loc[0], ByteEnd: loc[0] + len(url)},
			Features: []facetFeature{{
				Type: "app.bsky.richtext.facet#link",
				URI:  url,
			}},
		})
	}
	return facets
}
