package storage

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/citypulse/eventsync/internal/models"
)

const (
	eventsCollection   = "events"
	syncLogsCollection = "sync_logs"

	// Firestore caps a single transactional commit at 500 writes; chunk
	// deletes and upserts accordingly.
	writeChunkSize = 500

	// Ceiling on expiry sweep iterations, bounding worst-case runtime
	// against a pathological backlog of past events.
	maxExpirySweeps = 20
)

type Client struct {
	client *firestore.Client
}

func New(ctx context.Context, projectID string) (*Client, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("firestore.NewClient: %w", err)
	}
	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// GetEventByID retrieves a single event document, or nil when absent.
func (c *Client) GetEventByID(ctx context.Context, id string) (*models.EventRecord, error) {
	doc, err := c.client.Collection(eventsCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get event %s: %w", id, err)
	}
	if !doc.Exists() {
		return nil, nil
	}

	var rec models.EventRecord
	if err := doc.DataTo(&rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event %s: %w", id, err)
	}
	rec.ID = doc.Ref.ID
	return &rec, nil
}

// GetEventsByIDs performs one batched multi-get across all requested IDs.
// Absent documents are simply missing from the returned map. This is a
// single round trip for existence checks across a whole sync batch instead
// of one read per listing.
func (c *Client) GetEventsByIDs(ctx context.Context, ids []string) (map[string]*models.EventRecord, error) {
	if len(ids) == 0 {
		return map[string]*models.EventRecord{}, nil
	}

	refs := make([]*firestore.DocumentRef, len(ids))
	for i, id := range ids {
		refs[i] = c.client.Collection(eventsCollection).Doc(id)
	}

	snaps, err := c.client.GetAll(ctx, refs)
	if err != nil {
		return nil, fmt.Errorf("failed batched event read: %w", err)
	}

	existing := make(map[string]*models.EventRecord, len(snaps))
	for _, snap := range snaps {
		if !snap.Exists() {
			continue
		}
		var rec models.EventRecord
		if err := snap.DataTo(&rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event %s: %w", snap.Ref.ID, err)
		}
		rec.ID = snap.Ref.ID
		existing[rec.ID] = &rec
	}
	return existing, nil
}

// DeleteExpiredEvents removes all events with startDate strictly before now,
// in bounded batches, looping until no matches remain or the sweep ceiling
// is hit. Returns the number of documents deleted.
func (c *Client) DeleteExpiredEvents(ctx context.Context, now time.Time) (int, error) {
	total := 0
	for sweep := 0; sweep < maxExpirySweeps; sweep++ {
		iter := c.client.Collection(eventsCollection).
			Where("startDate", "<", now).
			Limit(writeChunkSize).
			Documents(ctx)

		var refs []*firestore.DocumentRef
		for {
			doc, err := iter.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				iter.Stop()
				return total, fmt.Errorf("failed to query expired events: %w", err)
			}
			refs = append(refs, doc.Ref)
		}
		iter.Stop()

		if len(refs) == 0 {
			return total, nil
		}

		bw := c.client.BulkWriter(ctx)
		for _, ref := range refs {
			if _, err := bw.Delete(ref); err != nil {
				slog.Warn("Failed to queue expiry delete", "id", ref.ID, "error", err)
			}
		}
		bw.End()

		total += len(refs)
		slog.Info("Cleaned up past events", "count", len(refs))
	}
	slog.Warn("Expiry sweep ceiling reached, remaining past events deferred to next run", "deleted", total)
	return total, nil
}

// CommitEvents writes all records for a run in chunked transactional
// commits. Each chunk is atomic; none of a chunk's writes become visible
// until the chunk commits.
func (c *Client) CommitEvents(ctx context.Context, records []*models.EventRecord) error {
	for chunk := range slices.Chunk(records, writeChunkSize) {
		err := c.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
			for _, rec := range chunk {
				ref := c.client.Collection(eventsCollection).Doc(rec.ID)
				if err := tx.Set(ref, rec); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to commit event batch: %w", err)
		}
	}
	return nil
}

// NewRunID allocates a sync-log document ID up front, so the failure path
// writes to the same document the run reserved at its start.
func (c *Client) NewRunID() string {
	return c.client.Collection(syncLogsCollection).NewDoc().ID
}

// WriteSyncRun persists the audit record for one pipeline invocation.
func (c *Client) WriteSyncRun(ctx context.Context, run *models.SyncRun) error {
	if run.ID == "" {
		run.ID = c.NewRunID()
	}
	if _, err := c.client.Collection(syncLogsCollection).Doc(run.ID).Set(ctx, run); err != nil {
		return fmt.Errorf("failed to write sync log %s: %w", run.ID, err)
	}
	return nil
}

// GetRecentSyncRuns returns the newest audit records, most recent first.
func (c *Client) GetRecentSyncRuns(ctx context.Context, limit int) ([]models.SyncRun, error) {
	iter := c.client.Collection(syncLogsCollection).
		OrderBy("timestamp", firestore.Desc).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	var runs []models.SyncRun
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate sync logs: %w", err)
		}
		var run models.SyncRun
		if err := doc.DataTo(&run); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sync log %s: %w", doc.Ref.ID, err)
		}
		run.ID = doc.Ref.ID
		runs = append(runs, run)
	}
	return runs, nil
}
