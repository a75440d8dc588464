// Package syncer implements the event reconciliation engine: fetch listings,
// expire past events, read existing documents in one batch, enrich with
// bounded concurrency, and commit the merged result transactionally with an
// audit record per run.
package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/citypulse/eventsync/internal/config"
	"github.com/citypulse/eventsync/internal/dates"
	"github.com/citypulse/eventsync/internal/identity"
	"github.com/citypulse/eventsync/internal/images"
	"github.com/citypulse/eventsync/internal/models"
)

// Options parameterizes a single run.
type Options struct {
	// TriggeredBy identifies who or what started the run; recorded in
	// the audit log.
	TriggeredBy string

	// ForceImageResync re-runs the image scrape and persist even for
	// records that already have a persisted thumbnail.
	ForceImageResync bool
}

type Engine struct {
	source    ListingSource
	store     EventStore
	resolver  ImageResolver
	persister ImagePersister
	dates     *dates.Resolver
	config    *config.Config
	now       func() time.Time
}

func New(source ListingSource, store EventStore, resolver ImageResolver, persister ImagePersister, cfg *config.Config) *Engine {
	return &Engine{
		source:    source,
		store:     store,
		resolver:  resolver,
		persister: persister,
		dates:     dates.New(),
		config:    cfg,
		now:       time.Now,
	}
}

// Sync executes one full reconciliation run. Exactly one SyncRun audit
// record is written whether the run succeeds or fails; on failure the error
// is also returned so callers can surface it.
func (e *Engine) Sync(ctx context.Context, opts Options) (models.SyncStats, error) {
	var stats models.SyncStats
	runID := e.store.NewRunID()

	runErr := e.run(ctx, opts, &stats)

	run := &models.SyncRun{
		ID:          runID,
		TriggeredBy: opts.TriggeredBy,
		Timestamp:   e.now(),
		Status:      models.RunStatusSuccess,
		Stats:       stats,
	}
	if runErr != nil {
		slog.Error("Sync run failed", "triggeredBy", opts.TriggeredBy, "error", runErr)
		run.Status = models.RunStatusFailure
		run.Error = runErr.Error()
	}

	if logErr := e.store.WriteSyncRun(ctx, run); logErr != nil {
		slog.Error("Failed to write sync log", "run", runID, "error", logErr)
		if runErr == nil {
			runErr = logErr
		}
	}

	if runErr == nil {
		slog.Info("Sync run succeeded",
			"triggeredBy", opts.TriggeredBy,
			"added", stats.Added,
			"updated", stats.Updated,
			"removed", stats.Removed,
			"skipped", stats.Skipped,
		)
	}
	return stats, runErr
}

func (e *Engine) run(ctx context.Context, opts Options, stats *models.SyncStats) error {
	// FETCHING
	listings, err := e.source.FetchListings(ctx, e.config.FetchCap)
	if err != nil {
		return fmt.Errorf("fetch listings: %w", err)
	}

	now := e.now()

	// EXPIRING. Removed counts even when the sweep fails midway, so a
	// failed run's audit record reflects the work already done.
	removed, err := e.store.DeleteExpiredEvents(ctx, now)
	stats.Removed = removed
	if err != nil {
		return fmt.Errorf("expire past events: %w", err)
	}

	// READING: one batched multi-get for the whole run.
	ids := make([]string, len(listings))
	for i := range listings {
		ids[i] = identity.DeriveID(listings[i])
	}
	existing, err := e.store.GetEventsByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("read existing events: %w", err)
	}

	// ENRICHING: bounded fan-out. Each listing's outcome is independent;
	// enrichment never returns an error, it degrades per listing.
	outcomes := make([]*models.EventRecord, len(listings))
	var g errgroup.Group
	g.SetLimit(e.config.EnrichConcurrency)
	for i := range listings {
		g.Go(func() error {
			outcomes[i] = e.enrich(ctx, listings[i], ids[i], existing[ids[i]], now, opts.ForceImageResync)
			return nil
		})
	}
	g.Wait()

	// COMMITTING: merge outcomes, first occurrence wins for duplicate
	// IDs within one fetch, then chunked atomic writes.
	committed := make(map[string]bool, len(outcomes))
	var toCommit []*models.EventRecord
	for i, rec := range outcomes {
		if rec == nil {
			stats.Skipped++
			continue
		}
		if committed[rec.ID] {
			continue
		}
		committed[rec.ID] = true
		if existing[ids[i]] != nil {
			stats.Updated++
		} else {
			stats.Added++
		}
		toCommit = append(toCommit, rec)
	}

	if err := e.store.CommitEvents(ctx, toCommit); err != nil {
		return fmt.Errorf("commit events: %w", err)
	}

	return nil
}

// enrich resolves a listing's absolute date and thumbnail and merges it with
// its stored record. Returns nil when the event is already past; past events
// are never created or updated as active.
func (e *Engine) enrich(ctx context.Context, listing models.RawListing, id string, existing *models.EventRecord, now time.Time, force bool) *models.EventRecord {
	startDate := e.dates.Resolve(listing.StartDateText(), now)
	if startDate.Before(now) {
		slog.Debug("Skipping past event", "title", listing.Title, "startDate", startDate)
		return nil
	}

	thumbnail := e.resolveThumbnail(ctx, listing, id, existing, force)

	rec := &models.EventRecord{
		ID:          id,
		Title:       listing.Title,
		Description: listing.Description,
		Link:        listing.Link,
		Thumbnail:   thumbnail,
		Address:     listing.Address,
		Venue:       listing.VenueName(),
		DateDisplay: listing.DateDisplay(),
		StartDate:   startDate,
		Tags:        e.config.DefaultTags,
		UpdatedAt:   now,
		Metadata:    models.Provenance{Source: models.SourceSerpAPI},
	}
	if raw, err := json.Marshal(listing); err == nil {
		rec.Metadata.OriginalData = string(raw)
	}

	if existing == nil {
		rec.IsActive = true
		rec.CreatedAt = now
		return rec
	}

	// Non-destructive merge: operator flags and createdAt are never
	// overwritten from fetched data, and missing new fields fall back to
	// the stored values instead of blanking them.
	rec.IsActive = existing.IsActive
	rec.IsSponsored = existing.IsSponsored
	rec.IsHighlighted = existing.IsHighlighted
	rec.CreatedAt = existing.CreatedAt
	if rec.Title == "" {
		rec.Title = existing.Title
	}
	if rec.Description == "" {
		rec.Description = existing.Description
	}
	if rec.Link == "" {
		rec.Link = existing.Link
	}
	if rec.Thumbnail == "" {
		rec.Thumbnail = existing.Thumbnail
	}
	if len(rec.Address) == 0 {
		rec.Address = existing.Address
	}
	if rec.Venue == "" {
		rec.Venue = existing.Venue
	}
	if rec.DateDisplay == "" {
		rec.DateDisplay = existing.DateDisplay
	}
	return rec
}

// resolveThumbnail runs the image fallback chain: reuse the already
// persisted copy, else scrape the source page for a high-res preview when
// the candidate is a low-res thumbnail, else upgrade known resizable URLs,
// then mirror the winner into the blob store. Every step degrades; the worst
// case is the raw provider thumbnail, or an empty string.
func (e *Engine) resolveThumbnail(ctx context.Context, listing models.RawListing, id string, existing *models.EventRecord, force bool) string {
	if existing != nil && !force && e.persister.IsPersisted(existing.Thumbnail) {
		return existing.Thumbnail
	}

	imageURL := listing.BestImage()
	if images.IsLowResThumbnail(imageURL) && listing.Link != "" {
		if scraped := e.resolver.ResolveHighRes(ctx, listing.Link); scraped != "" {
			imageURL = scraped
		}
	}
	imageURL = images.UpgradeGoogleImageURL(imageURL)

	if imageURL == "" {
		if existing != nil {
			return existing.Thumbnail
		}
		return ""
	}

	if stored := e.persister.Persist(ctx, imageURL, id); stored != "" {
		return stored
	}
	return imageURL
}
