// Package selection decides which manifest entries may be posted and picks one.
package selection

import (
	"time"

	"github.com/pauljones0/rin-throwback/internal/models"
	"github.com/pauljones0/rin-throwback/internal/util"
)

// LastSeen maps an identity key to the most recent time it was posted.
type LastSeen map[string]time.Time

// BuildLastSeen indexes history by identity key. Records without a key or
// with an unparsable timestamp are skipped individually; other records for
// the same key still count.
func BuildLastSeen(history []models.HistoryRecord) LastSeen {
	last := make(LastSeen, len(history))
	for _, h := range history {
		key := h.IdentityKey()
		ts := h.Timestamp()
		if key == "" || ts == "" {
			continue
		}
		when, err := util.ParseTimestamp(ts)
		if err != nil {
			continue
		}
		if prev, ok := last[key]; !ok || when.After(prev) {
			last[key] = when
		}
	}
	return last
}

// Eligible returns the manifest entries that were never posted or were last
// posted at least thresholdDays calendar days before now. Manifest order is
// kept. Entries without an identity key are never eligible.
func Eligible(manifest []models.ManifestEntry, history []models.HistoryRecord, thresholdDays int, now time.Time) []models.ManifestEntry {
	last := BuildLastSeen(history)

	eligible := make([]models.ManifestEntry, 0, len(manifest))
	for _, e := range manifest {
		key := e.IdentityKey()
		if key == "" {
			continue
		}
		when, seen := last[key]
		if !seen || util.CalendarDaysBetween(when, now) >= thresholdDays {
			eligible = append(eligible, e)
		}
	}
	return eligible
}
