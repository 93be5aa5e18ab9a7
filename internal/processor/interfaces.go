package processor

import (
	"context"

	"github.com/pauljones0/rin-throwback/internal/models"
)

// ManifestSource abstracts where the catalog of postable sets comes from.
type ManifestSource interface {
	LoadManifest(ctx context.Context) ([]models.ManifestEntry, error)
}

// HistoryStore abstracts the append-only posting log.
type HistoryStore interface {
	Load(ctx context.Context) ([]models.HistoryRecord, error)
	Append(ctx context.Context, rec models.HistoryRecord) error
}
