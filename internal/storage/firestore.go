package storage

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pauljones0/rin-throwback/internal/models"
)

const defaultHistoryCollection = "throwback_history"

// FirestoreHistory keeps one document per run, keyed by the record's run ID.
type FirestoreHistory struct {
	client     *firestore.Client
	collection string
}

func NewFirestoreHistory(ctx context.Context, projectID, collection string) (*FirestoreHistory, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("firestore.NewClient: %w", err)
	}
	if collection == "" {
		collection = defaultHistoryCollection
	}
	return &FirestoreHistory{client: client, collection: collection}, nil
}

func (c *FirestoreHistory) Collection() string { return c.collection }

func (c *FirestoreHistory) Close() error {
	return c.client.Close()
}

// Load reads every history document in the collection.
func (c *FirestoreHistory) Load(ctx context.Context) ([]models.HistoryRecord, error) {
	iter := c.client.Collection(c.collection).Documents(ctx)
	defer iter.Stop()

	var records []models.HistoryRecord
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate history: %w", err)
		}

		var rec models.HistoryRecord
		if err := doc.DataTo(&rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal history record %s: %w", doc.Ref.ID, err)
		}
		if rec.RunID == "" {
			rec.RunID = doc.Ref.ID
		}
		records = append(records, rec)
	}
	return records, nil
}

// Append stores the record under its run ID. Create fails if the document
// already exists, so a run can be recorded at most once.
func (c *FirestoreHistory) Append(ctx context.Context, rec models.HistoryRecord) error {
	if rec.RunID == "" {
		return fmt.Errorf("%w: record has no run ID", models.ErrHistoryWriteFailed)
	}

	_, err := c.client.Collection(c.collection).Doc(rec.RunID).Create(ctx, rec)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return fmt.Errorf("%w: %s", models.ErrRecordExists, rec.RunID)
		}
		return errors.Join(models.ErrHistoryWriteFailed, err)
	}
	return nil
}
