// Package model holds the canonical domain types shared across the
// reconciliation pipeline, the stores, and the API surface.
package model

// BanStatus is the solid-fuel fire ban state of an area or forest.
type BanStatus string

const (
	BanStatusBanned    BanStatus = "BANNED"
	BanStatusNotBanned BanStatus = "NOT_BANNED"
	BanStatusUnknown   BanStatus = "UNKNOWN"
)

// banRestrictiveness orders ban statuses from least to most restrictive.
var banRestrictiveness = map[BanStatus]int{
	BanStatusUnknown:   0,
	BanStatusNotBanned: 1,
	BanStatusBanned:    2,
}

// Merge returns the more restrictive of the two statuses under the total
// order BANNED > NOT_BANNED > UNKNOWN. Unrecognized values rank as UNKNOWN.
func (s BanStatus) Merge(other BanStatus) BanStatus {
	if banRestrictiveness[other] > banRestrictiveness[s] {
		return other
	}
	if _, ok := banRestrictiveness[s]; !ok {
		return BanStatusUnknown.Merge(other)
	}
	return s
}

// FacilityValue is a three-valued facility flag. Absence of a directory match
// is "unknown", never "false".
type FacilityValue string

const (
	FacilityYes     FacilityValue = "yes"
	FacilityNo      FacilityValue = "no"
	FacilityUnknown FacilityValue = "unknown"
)

// FacilityFromBool converts a directory boolean to a facility value.
func FacilityFromBool(b bool) FacilityValue {
	if b {
		return FacilityYes
	}
	return FacilityNo
}

// ForestArea is one administrative region from the fire-ban feed, grouping
// several raw forest names under a single area-level ban status.
type ForestArea struct {
	Name        string    `json:"name"`
	URL         string    `json:"url,omitempty"`
	BanStatus   BanStatus `json:"ban_status"`
	BanText     string    `json:"ban_text,omitempty"`
	ForestNames []string  `json:"forest_names"`
}

// DirectoryForestEntry is one forest from the facilities directory.
type DirectoryForestEntry struct {
	Name       string          `json:"name"`
	DetailURL  string          `json:"detail_url,omitempty"`
	Facilities map[string]bool `json:"facilities"`
}

// AreaMembership records one (forest, area) pairing with the ban status the
// area carried for it. A forest may legitimately belong to multiple areas.
type AreaMembership struct {
	AreaName  string    `json:"area_name"`
	AreaURL   string    `json:"area_url,omitempty"`
	BanStatus BanStatus `json:"ban_status"`
	BanText   string    `json:"ban_text,omitempty"`
}

// Coordinates is a WGS84 point.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// GeoResolution describes how a forest's coordinates were obtained, or why
// they could not be.
type GeoResolution struct {
	DisplayName string  `json:"display_name,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
	Provider    string  `json:"provider,omitempty"`
	// Approximate marks coordinates inherited from the area centroid rather
	// than resolved for the forest itself.
	Approximate bool `json:"approximate,omitempty"`
	// FailureReason is non-empty whenever Coordinates is nil on the record.
	FailureReason string `json:"failure_reason,omitempty"`
}

// FireDanger is the fire-danger rating resolved for a forest's coordinates.
type FireDanger struct {
	Status     string `json:"status"`
	StatusText string `json:"status_text,omitempty"`
	AreaName   string `json:"area_name,omitempty"`
	LookupCode string `json:"lookup_code,omitempty"`
	// FailureReason is non-empty whenever Status is UNKNOWN.
	FailureReason string `json:"failure_reason,omitempty"`
}

// FireDangerUnknown is the status recorded when no rating could be resolved.
const FireDangerUnknown = "UNKNOWN"

// RouteEstimate is the driving distance/duration from a configured origin,
// filled downstream of the reconciliation core.
type RouteEstimate struct {
	DistanceKm      float64 `json:"distance_km"`
	DurationMinutes float64 `json:"duration_minutes"`
}

// ForestRecord is the canonical per-forest aggregate produced by the
// reconciler. Exactly one record exists per (forest, area) pair.
type ForestRecord struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Memberships []AreaMembership `json:"memberships"`
	// BanStatus is the pessimistic merge across all memberships.
	BanStatus BanStatus `json:"ban_status"`

	Facilities map[string]FacilityValue `json:"facilities"`
	DetailURL  string                   `json:"detail_url,omitempty"`

	Coordinates *Coordinates  `json:"coordinates,omitempty"`
	Geo         GeoResolution `json:"geo"`

	FireDanger FireDanger `json:"fire_danger"`

	ClosureStatus ClosureStatus          `json:"closure_status"`
	Notices       []ClosureNotice        `json:"notices,omitempty"`
	Tags          []string               `json:"tags,omitempty"`
	Impact        map[string]ImpactLevel `json:"impact,omitempty"`

	Route *RouteEstimate `json:"route,omitempty"`
}

// MergedBanStatus folds the record's memberships into one pessimistic status.
func (r *ForestRecord) MergedBanStatus() BanStatus {
	merged := BanStatusUnknown
	for _, m := range r.Memberships {
		merged = merged.Merge(m.BanStatus)
	}
	return merged
}
