// Package refresh decides when the persisted snapshot is stale, coordinates
// concurrent refreshers so at most one scrape-and-reconcile runs at a time,
// and keeps serving the last good snapshot when a refresh fails.
package refresh

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/forest-watch/internal/match"
	"github.com/sells-group/forest-watch/internal/model"
	"github.com/sells-group/forest-watch/internal/reconcile"
	"github.com/sells-group/forest-watch/internal/registry"
	"github.com/sells-group/forest-watch/internal/source"
	"github.com/sells-group/forest-watch/internal/store"
)

// DefaultTTL is how long a snapshot stays fresh after FetchedAt.
const DefaultTTL = 6 * time.Hour

// ErrRefreshPending is returned by cached-only reads when no snapshot exists
// yet; a background refresh has been started.
var ErrRefreshPending = eris.New("refresh: no snapshot yet, refresh in progress")

// Coordinator serves snapshots, refreshing through a single flight.
type Coordinator struct {
	store      store.Store
	scraper    source.Scraper
	reconciler *reconcile.Reconciler
	registry   registry.Registry

	ttl         time.Duration
	sourceLabel string
	now         func() time.Time
	group       singleflight.Group
}

// Option configures the coordinator.
type Option func(*Coordinator)

// WithTTL sets the snapshot freshness window.
func WithTTL(ttl time.Duration) Option {
	return func(c *Coordinator) { c.ttl = ttl }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithSourceLabel sets the label recorded on every snapshot this coordinator
// produces, identifying where the feed data came from.
func WithSourceLabel(label string) Option {
	return func(c *Coordinator) { c.sourceLabel = label }
}

// New creates a coordinator.
func New(st store.Store, scraper source.Scraper, rec *reconcile.Reconciler, reg registry.Registry, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:       st,
		scraper:     scraper,
		reconciler:  rec,
		registry:    reg,
		ttl:         DefaultTTL,
		sourceLabel: "scrape",
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOptions controls one snapshot read.
type GetOptions struct {
	// ForceRefresh refreshes even when the cached snapshot is fresh.
	ForceRefresh bool
	// PreferCachedOnly serves whatever snapshot exists without refreshing.
	PreferCachedOnly bool
	// OnProgress receives phase progress from a refresh this call initiates.
	OnProgress reconcile.ProgressFunc
}

// Get returns a snapshot, refreshing first when the cached one is missing,
// expired, written by another schema version, or structurally incomplete.
// Concurrent callers needing a refresh share one underlying run.
func (c *Coordinator) Get(ctx context.Context, opts GetOptions) (*model.Snapshot, error) {
	cached, err := c.store.LoadSnapshot(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "refresh: load snapshot")
	}
	if cached != nil {
		cached.Normalize()
	}

	if opts.PreferCachedOnly {
		if cached != nil {
			return cached, nil
		}
		// Nothing to serve: kick a refresh off without holding the caller.
		go func() {
			bg := context.WithoutCancel(ctx)
			if _, err := c.refreshShared(bg, nil); err != nil {
				zap.L().Error("refresh: background refresh failed", zap.Error(err))
			}
		}()
		return nil, ErrRefreshPending
	}

	if !opts.ForceRefresh && c.isFresh(cached) {
		return cached, nil
	}

	snap, err := c.refreshShared(ctx, opts.OnProgress)
	if err == nil {
		return snap, nil
	}
	if cached == nil {
		return nil, err
	}

	// Serve the last good snapshot, marked stale, with the failure recorded.
	zap.L().Warn("refresh: failed, serving stale snapshot", zap.Error(err))
	stale := *cached
	stale.Stale = true
	stale.Warnings = append(append([]string{}, cached.Warnings...),
		fmt.Sprintf("refresh failed: %s; serving stale snapshot from %s",
			eris.Cause(err), cached.FetchedAt.Format(time.RFC3339)))
	return &stale, nil
}

// isFresh applies the freshness rule: within TTL, written by this schema
// version, structurally complete, and not already marked stale.
func (c *Coordinator) isFresh(snap *model.Snapshot) bool {
	if snap == nil || snap.Stale {
		return false
	}
	if snap.SchemaVersion != model.SchemaVersion {
		return false
	}
	if c.now().Sub(snap.FetchedAt) >= c.ttl {
		return false
	}
	return snap.StructurallyComplete()
}

// refreshShared funnels concurrent refreshes into one run.
func (c *Coordinator) refreshShared(ctx context.Context, progress reconcile.ProgressFunc) (*model.Snapshot, error) {
	v, err, shared := c.group.Do("refresh", func() (any, error) {
		return c.refresh(ctx, progress)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		zap.L().Debug("refresh: joined in-flight refresh")
	}
	return v.(*model.Snapshot), nil
}

// refresh runs one scrape-reconcile-persist cycle.
func (c *Coordinator) refresh(ctx context.Context, progress reconcile.ProgressFunc) (*model.Snapshot, error) {
	prev, err := c.store.LoadSnapshot(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "refresh: load previous snapshot")
	}
	if prev != nil {
		prev.Normalize()
	}

	report := func(phase reconcile.Phase, completed, total int) {
		if progress != nil {
			progress(phase, completed, total)
		}
	}

	report(reconcile.PhaseScrape, 0, 3)
	areas, err := c.scraper.FetchAreas(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "refresh: fetch areas")
	}
	report(reconcile.PhaseScrape, 1, 3)
	directory, err := c.scraper.FetchDirectory(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "refresh: fetch directory")
	}
	report(reconcile.PhaseScrape, 2, 3)
	closures, err := c.scraper.FetchClosures(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "refresh: fetch closures")
	}
	report(reconcile.PhaseScrape, 3, 3)

	out, err := c.reconciler.Run(ctx, reconcile.Input{
		Areas:                areas,
		Directory:            directory,
		Closures:             closures,
		PreviouslyUnresolved: previouslyUnresolved(prev),
		Progress:             progress,
	})
	if err != nil {
		return nil, eris.Wrap(err, "refresh: reconcile")
	}

	snap := &model.Snapshot{
		SchemaVersion:   model.SchemaVersion,
		FetchedAt:       c.now(),
		Source:          c.sourceLabel,
		FacilityDefs:    c.registry.Facilities,
		TagDefs:         c.registry.Tags,
		FacilityMatches: out.FacilityMatches,
		ClosureMatches:  out.ClosureMatches,
		Warnings:        out.Warnings,
		Forests:         out.Forests,
	}
	snap.Normalize()

	// A run where geocoding collapsed entirely must not replace a snapshot
	// that had working coordinates.
	if snap.MappedCount() == 0 && prev != nil && prev.MappedCount() > 0 {
		zap.L().Error("refresh: zero mappable coordinates, keeping previous snapshot",
			zap.Int("previous_mapped", prev.MappedCount()))
		stale := *prev
		stale.Stale = true
		stale.Warnings = append(append([]string{}, prev.Warnings...),
			"refresh produced zero mappable coordinates; keeping previous snapshot")
		return &stale, nil
	}

	report(reconcile.PhasePersist, 0, 1)
	if err := c.store.SaveSnapshot(ctx, snap); err != nil {
		return nil, eris.Wrap(err, "refresh: persist snapshot")
	}
	report(reconcile.PhasePersist, 1, 1)

	zap.L().Info("refresh: snapshot persisted",
		zap.Int("forests", len(snap.Forests)),
		zap.Int("mapped", snap.MappedCount()),
		zap.Time("fetched_at", snap.FetchedAt))
	return snap, nil
}

// previouslyUnresolved collects normalized keys of forests that lacked
// coordinates last run, so the next run geocodes them first.
func previouslyUnresolved(prev *model.Snapshot) map[string]bool {
	if prev == nil {
		return nil
	}
	keys := make(map[string]bool)
	for i := range prev.Forests {
		if prev.Forests[i].Coordinates == nil {
			keys[match.Normalize(prev.Forests[i].Name)] = true
		}
	}
	return keys
}
