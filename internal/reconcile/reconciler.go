// Package reconcile folds the scraped feeds into canonical forest records:
// ban statuses merged pessimistically across areas, facilities joined by the
// two-pass name matcher, coordinates resolved through the geocode waterfall,
// and closure notices attached with merged impact summaries.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/forest-watch/internal/match"
	"github.com/sells-group/forest-watch/internal/model"
	"github.com/sells-group/forest-watch/internal/registry"
	"github.com/sells-group/forest-watch/internal/source"
	"github.com/sells-group/forest-watch/pkg/geocode"
)

// DefaultRegion is appended to geocode queries to anchor them geographically.
const DefaultRegion = "NSW, Australia"

const (
	defaultFacilityThreshold = 0.75
	defaultClosureThreshold  = 0.85
)

// Reconciler builds forest records from one pull of the upstream feeds.
type Reconciler struct {
	resolver   *geocode.Resolver
	fireDanger source.FireDangerLookup
	registry   registry.Registry

	region            string
	facilityThreshold float64
	closureThreshold  float64
	now               func() time.Time
}

// Option configures the reconciler.
type Option func(*Reconciler)

// WithRegion sets the region suffix for geocode queries.
func WithRegion(region string) Option {
	return func(r *Reconciler) { r.region = region }
}

// WithFacilityThreshold sets the fuzzy-match acceptance score for the
// facilities directory join.
func WithFacilityThreshold(t float64) Option {
	return func(r *Reconciler) { r.facilityThreshold = t }
}

// WithClosureThreshold sets the fuzzy-match acceptance score for closure
// notices. Closures use a stricter cutoff than facilities: attaching a
// closure to the wrong forest is worse than leaving it unattached.
func WithClosureThreshold(t float64) Option {
	return func(r *Reconciler) { r.closureThreshold = t }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// New creates a reconciler.
func New(resolver *geocode.Resolver, fireDanger source.FireDangerLookup, reg registry.Registry, opts ...Option) *Reconciler {
	r := &Reconciler{
		resolver:          resolver,
		fireDanger:        fireDanger,
		registry:          reg,
		region:            DefaultRegion,
		facilityThreshold: defaultFacilityThreshold,
		closureThreshold:  defaultClosureThreshold,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Input is one point-in-time pull of the feeds plus run context.
type Input struct {
	Areas     []model.ForestArea
	Directory []model.DirectoryForestEntry
	Closures  []model.ClosureNotice

	// PreviouslyUnresolved holds normalized keys of forests that lacked
	// coordinates in the prior snapshot; they are geocoded first so leftover
	// budget is spent where the last run came up short.
	PreviouslyUnresolved map[string]bool

	Progress ProgressFunc
}

// Output is the reconciled record set with match diagnostics and warnings.
type Output struct {
	Forests         []model.ForestRecord
	FacilityMatches model.MatchDiagnostics
	ClosureMatches  model.MatchDiagnostics
	Warnings        []string
}

// forestDraft accumulates one forest's memberships before record assembly.
type forestDraft struct {
	name        string
	key         string
	memberships []model.AreaMembership
}

// Run reconciles one pull of the feeds into forest records.
func (r *Reconciler) Run(ctx context.Context, in Input) (*Output, error) {
	log := zap.L().With(zap.Int("areas", len(in.Areas)), zap.Int("directory", len(in.Directory)))
	log.Info("reconcile: starting run")

	centroids := r.resolveAreaCentroids(ctx, in)

	drafts := collectForests(in.Areas)
	names := make([]string, len(drafts))
	for i, d := range drafts {
		names[i] = d.name
	}
	dirNames := make([]string, len(in.Directory))
	dirByName := make(map[string]model.DirectoryForestEntry, len(in.Directory))
	for i, e := range in.Directory {
		dirNames[i] = e.Name
		dirByName[e.Name] = e
	}
	facilityOutcome := match.TwoPass(names, dirNames, r.facilityThreshold)

	total := len(drafts) + len(facilityOutcome.UnmatchedCandidates)
	in.Progress.report(PhaseGeocodeForests, 0, total)

	records := make([]model.ForestRecord, len(drafts))
	var limitReached, unresolved int
	done := 0
	for _, i := range geocodeOrder(drafts, in.PreviouslyUnresolved) {
		d := drafts[i]
		records[i] = r.buildRecord(ctx, d, facilityOutcome.Matches[d.name], dirByName, centroids, &limitReached, &unresolved)
		done++
		in.Progress.report(PhaseGeocodeForests, done, total)
	}

	// Directory forests that matched no fire-ban area still get a record, with
	// ban status UNKNOWN and no memberships.
	for _, name := range facilityOutcome.UnmatchedCandidates {
		records = append(records, r.buildOrphanRecord(ctx, dirByName[name], &limitReached, &unresolved))
		done++
		in.Progress.report(PhaseGeocodeForests, done, total)
	}

	closureDiag := r.attachClosures(in.Closures, records)

	out := &Output{
		Forests:         records,
		FacilityMatches: facilityOutcome.Diagnostics(),
		ClosureMatches:  closureDiag,
	}
	out.Warnings = r.buildWarnings(out, limitReached, unresolved)

	log.Info("reconcile: run complete",
		zap.Int("forests", len(records)),
		zap.Int("unresolved_coords", unresolved),
		zap.Int("warnings", len(out.Warnings)))
	return out, nil
}

// collectForests groups area listings into one draft per normalized forest
// name, preserving first-seen listing order. A (forest, area) pair listed
// verbatim more than once contributes a single membership.
func collectForests(areas []model.ForestArea) []*forestDraft {
	var drafts []*forestDraft
	byKey := make(map[string]*forestDraft)
	seen := make(map[string]bool)

	for _, area := range areas {
		for _, name := range area.ForestNames {
			key := match.Normalize(name)
			if key == "" {
				continue
			}
			pair := key + "\x00" + area.Name
			if seen[pair] {
				continue
			}
			seen[pair] = true

			d := byKey[key]
			if d == nil {
				d = &forestDraft{name: name, key: key}
				byKey[key] = d
				drafts = append(drafts, d)
			}
			d.memberships = append(d.memberships, model.AreaMembership{
				AreaName:  area.Name,
				AreaURL:   area.URL,
				BanStatus: area.BanStatus,
				BanText:   area.BanText,
			})
		}
	}
	return drafts
}

// geocodeOrder returns draft indices with previously-unresolved forests
// first, each group keeping its listing order.
func geocodeOrder(drafts []*forestDraft, previouslyUnresolved map[string]bool) []int {
	order := make([]int, 0, len(drafts))
	for i, d := range drafts {
		if previouslyUnresolved[d.key] {
			order = append(order, i)
		}
	}
	for i, d := range drafts {
		if !previouslyUnresolved[d.key] {
			order = append(order, i)
		}
	}
	return order
}

// resolveAreaCentroids geocodes each area name up front; centroids serve as
// the approximate fallback for forests the providers cannot place.
func (r *Reconciler) resolveAreaCentroids(ctx context.Context, in Input) map[string]*model.Coordinates {
	centroids := make(map[string]*model.Coordinates, len(in.Areas))
	in.Progress.report(PhaseGeocodeAreas, 0, len(in.Areas))

	for i, area := range in.Areas {
		key := match.Normalize(area.Name)
		if _, ok := centroids[key]; !ok {
			res := r.resolver.Resolve(ctx, r.areaQueryCandidates(area.Name), "area:"+key)
			if res.Resolved() {
				centroids[key] = &model.Coordinates{
					Latitude:  res.Result.Latitude,
					Longitude: res.Result.Longitude,
				}
			} else {
				zap.L().Warn("reconcile: area centroid unresolved",
					zap.String("area", area.Name),
					zap.String("reason", res.FailureReason()))
			}
		}
		in.Progress.report(PhaseGeocodeAreas, i+1, len(in.Areas))
	}
	return centroids
}

func (r *Reconciler) areaQueryCandidates(areaName string) []string {
	return []string{
		fmt.Sprintf("%s state forests, %s", areaName, r.region),
		fmt.Sprintf("%s, %s", areaName, r.region),
	}
}

func (r *Reconciler) forestQueryCandidates(name, areaName string) []string {
	if areaName == "" {
		return []string{fmt.Sprintf("%s, %s", name, r.region)}
	}
	return []string{
		fmt.Sprintf("%s, %s, %s", name, areaName, r.region),
		fmt.Sprintf("%s, %s", name, r.region),
	}
}

// buildRecord assembles one forest record: pessimistic ban merge, directory
// facilities, resolved coordinates with centroid fallback, and fire danger.
func (r *Reconciler) buildRecord(
	ctx context.Context,
	d *forestDraft,
	m match.Match,
	dirByName map[string]model.DirectoryForestEntry,
	centroids map[string]*model.Coordinates,
	limitReached, unresolved *int,
) model.ForestRecord {
	rec := model.ForestRecord{
		ID:          uuid.NewString(),
		Name:        d.name,
		Memberships: d.memberships,
	}
	rec.BanStatus = rec.MergedBanStatus()
	rec.Facilities, rec.DetailURL = r.mergeFacilities(m, dirByName)

	areaName := ""
	if len(d.memberships) > 0 {
		areaName = d.memberships[0].AreaName
	}
	res := r.resolver.Resolve(ctx, r.forestQueryCandidates(d.name, areaName), "forest:"+d.key)
	*limitReached += countLimitReached(res)

	switch {
	case res.Resolved():
		rec.Coordinates = &model.Coordinates{
			Latitude:  res.Result.Latitude,
			Longitude: res.Result.Longitude,
		}
		rec.Geo = model.GeoResolution{
			DisplayName: res.Result.DisplayName,
			Confidence:  res.Result.Confidence,
			Provider:    res.Result.Provider,
		}
	case res.NoResult() && r.centroidFor(d.memberships, centroids) != nil:
		// The providers definitively found nothing, so the area centroid is
		// the best available position. Transient or config failures do not
		// take this path: the forest might still resolve exactly next run.
		c := r.centroidFor(d.memberships, centroids)
		rec.Coordinates = &model.Coordinates{Latitude: c.Latitude, Longitude: c.Longitude}
		rec.Geo = model.GeoResolution{
			DisplayName: areaName + " (area centroid)",
			Provider:    "area-centroid",
			Approximate: true,
		}
	default:
		*unresolved++
		rec.Geo = model.GeoResolution{FailureReason: res.FailureReason()}
	}

	rec.FireDanger = r.fireDanger(rec.Coordinates)
	rec.ClosureStatus = model.ClosureStatusNone
	return rec
}

// buildOrphanRecord assembles a record for a directory-only forest.
func (r *Reconciler) buildOrphanRecord(
	ctx context.Context,
	entry model.DirectoryForestEntry,
	limitReached, unresolved *int,
) model.ForestRecord {
	rec := model.ForestRecord{
		ID:        uuid.NewString(),
		Name:      entry.Name,
		BanStatus: model.BanStatusUnknown,
		DetailURL: entry.DetailURL,
	}
	rec.Facilities = r.facilitiesFromEntries([]model.DirectoryForestEntry{entry})

	key := match.Normalize(entry.Name)
	res := r.resolver.Resolve(ctx, r.forestQueryCandidates(entry.Name, ""), "forest:"+key)
	*limitReached += countLimitReached(res)

	if res.Resolved() {
		rec.Coordinates = &model.Coordinates{
			Latitude:  res.Result.Latitude,
			Longitude: res.Result.Longitude,
		}
		rec.Geo = model.GeoResolution{
			DisplayName: res.Result.DisplayName,
			Confidence:  res.Result.Confidence,
			Provider:    res.Result.Provider,
		}
	} else {
		*unresolved++
		rec.Geo = model.GeoResolution{FailureReason: res.FailureReason()}
	}

	rec.FireDanger = r.fireDanger(rec.Coordinates)
	rec.ClosureStatus = model.ClosureStatusNone
	return rec
}

// mergeFacilities folds the matched directory entries into one three-valued
// facility map. With several entries (parenthetical variants matched as
// facets of one forest), a facility is "yes" if any variant offers it.
func (r *Reconciler) mergeFacilities(m match.Match, dirByName map[string]model.DirectoryForestEntry) (map[string]model.FacilityValue, string) {
	if len(m.Candidates) == 0 {
		return r.facilitiesFromEntries(nil), ""
	}
	entries := make([]model.DirectoryForestEntry, 0, len(m.Candidates))
	for _, c := range m.Candidates {
		entries = append(entries, dirByName[c])
	}
	return r.facilitiesFromEntries(entries), entries[0].DetailURL
}

func (r *Reconciler) facilitiesFromEntries(entries []model.DirectoryForestEntry) map[string]model.FacilityValue {
	facilities := make(map[string]model.FacilityValue, len(r.registry.Facilities))
	for _, key := range r.registry.FacilityKeys() {
		facilities[key] = model.FacilityUnknown
	}
	for _, e := range entries {
		for key, present := range e.Facilities {
			if _, known := facilities[key]; !known {
				continue
			}
			if present {
				facilities[key] = model.FacilityYes
			} else if facilities[key] == model.FacilityUnknown {
				facilities[key] = model.FacilityNo
			}
		}
	}
	return facilities
}

// centroidFor returns the first membership area with a resolved centroid.
func (r *Reconciler) centroidFor(memberships []model.AreaMembership, centroids map[string]*model.Coordinates) *model.Coordinates {
	for _, m := range memberships {
		if c := centroids[match.Normalize(m.AreaName)]; c != nil {
			return c
		}
	}
	return nil
}

func countLimitReached(res *geocode.Resolution) int {
	for _, a := range res.Attempts {
		if a.Outcome == geocode.OutcomeLimitReached {
			return 1
		}
	}
	return 0
}

// buildWarnings derives user-facing warnings from the run's structured
// diagnostics. Nothing here is parsed back out of log text.
func (r *Reconciler) buildWarnings(out *Output, limitReached, unresolved int) []string {
	var warnings []string
	if n := len(out.FacilityMatches.Unmatched); n > 0 {
		warnings = append(warnings, fmt.Sprintf("facilities: %d forest name(s) had no directory match", n))
	}
	if unresolved > 0 {
		warnings = append(warnings, fmt.Sprintf("geocode: %d forest(s) have no coordinates", unresolved))
	}
	if limitReached > 0 {
		warnings = append(warnings, fmt.Sprintf("geocode: premium lookup budget exhausted, %d forest(s) skipped the premium provider", limitReached))
	}
	fdUnknown := 0
	for i := range out.Forests {
		if out.Forests[i].FireDanger.Status == model.FireDangerUnknown {
			fdUnknown++
		}
	}
	if fdUnknown > 0 {
		warnings = append(warnings, fmt.Sprintf("firedanger: %d forest(s) have no rating", fdUnknown))
	}
	if n := len(out.ClosureMatches.Unmatched); n > 0 {
		warnings = append(warnings, fmt.Sprintf("closures: %d notice(s) matched no forest", n))
	}
	return warnings
}
