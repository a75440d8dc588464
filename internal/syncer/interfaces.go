package syncer

import (
	"context"
	"time"

	"github.com/citypulse/eventsync/internal/models"
)

// ListingSource abstracts the external event search API.
type ListingSource interface {
	FetchListings(ctx context.Context, cap int) ([]models.RawListing, error)
}

// EventStore abstracts the persistent store for events and sync logs. The
// engine is the only writer of event content and sync logs; admin tooling
// touches operator flags only.
type EventStore interface {
	GetEventsByIDs(ctx context.Context, ids []string) (map[string]*models.EventRecord, error)
	DeleteExpiredEvents(ctx context.Context, now time.Time) (int, error)
	CommitEvents(ctx context.Context, records []*models.EventRecord) error
	NewRunID() string
	WriteSyncRun(ctx context.Context, run *models.SyncRun) error
}

// ImageResolver abstracts the high-resolution image scrape. Failures are
// soft: an empty string means no upgrade was found.
type ImageResolver interface {
	ResolveHighRes(ctx context.Context, pageURL string) string
}

// ImagePersister abstracts the blob-store mirror for event thumbnails.
type ImagePersister interface {
	IsPersisted(url string) bool
	Persist(ctx context.Context, srcURL, recordID string) string
}
