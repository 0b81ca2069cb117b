package model

import "time"

// SchemaVersion is the snapshot document schema this build reads and writes.
// A persisted snapshot with any other version forces a full refresh.
const SchemaVersion = 3

// MatchTag records how a cross-source name match was derived.
type MatchTag string

const (
	MatchExact     MatchTag = "EXACT"
	MatchFuzzy     MatchTag = "FUZZY"
	MatchUnmatched MatchTag = "UNMATCHED"
)

// FuzzyMatch is one accepted similarity match, kept for diagnostics.
type FuzzyMatch struct {
	Name      string  `json:"name"`
	MatchedTo string  `json:"matched_to"`
	Score     float64 `json:"score"`
}

// MatchDiagnostics summarizes one run of the two-pass matcher.
type MatchDiagnostics struct {
	Exact     int          `json:"exact"`
	Fuzzy     []FuzzyMatch `json:"fuzzy,omitempty"`
	Unmatched []string     `json:"unmatched,omitempty"`
}

// FacilityDef describes one facility key from the directory registry.
type FacilityDef struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// TagDef describes one closure-tag key from the notices registry.
type TagDef struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Snapshot is one immutable point-in-time view of the dataset. It is produced
// wholesale by the refresh coordinator and replaced atomically, never mutated.
type Snapshot struct {
	SchemaVersion int       `json:"schema_version"`
	FetchedAt     time.Time `json:"fetched_at"`
	Stale         bool      `json:"stale"`
	Source        string    `json:"source,omitempty"`

	FacilityDefs []FacilityDef `json:"facility_defs,omitempty"`
	TagDefs      []TagDef      `json:"tag_defs,omitempty"`

	FacilityMatches MatchDiagnostics `json:"facility_matches"`
	ClosureMatches  MatchDiagnostics `json:"closure_matches"`

	Warnings []string       `json:"warnings,omitempty"`
	Forests  []ForestRecord `json:"forests"`
}

// MappedCount returns the number of records carrying resolved coordinates.
func (s *Snapshot) MappedCount() int {
	n := 0
	for i := range s.Forests {
		if s.Forests[i].Coordinates != nil {
			n++
		}
	}
	return n
}

// StructurallyComplete reports whether the snapshot is eligible to be served
// fresh: every coordinate-less record must carry failure diagnostics, and
// every UNKNOWN fire-danger record must carry failure diagnostics.
func (s *Snapshot) StructurallyComplete() bool {
	for i := range s.Forests {
		r := &s.Forests[i]
		if r.Coordinates == nil && r.Geo.FailureReason == "" {
			return false
		}
		if r.FireDanger.Status == FireDangerUnknown && r.FireDanger.FailureReason == "" {
			return false
		}
	}
	return true
}

// Normalize backfills optional fields with safe defaults so that every loaded
// snapshot, whatever version wrote it, is usable without nil checks upstream.
func (s *Snapshot) Normalize() {
	if s.Warnings == nil {
		s.Warnings = []string{}
	}
	if s.Forests == nil {
		s.Forests = []ForestRecord{}
	}
	for i := range s.Forests {
		r := &s.Forests[i]
		if r.BanStatus == "" {
			r.BanStatus = r.MergedBanStatus()
		}
		if r.Facilities == nil {
			r.Facilities = map[string]FacilityValue{}
		}
		if r.FireDanger.Status == "" {
			r.FireDanger.Status = FireDangerUnknown
			if r.FireDanger.FailureReason == "" {
				r.FireDanger.FailureReason = "not recorded"
			}
		}
		if r.ClosureStatus == "" {
			r.ClosureStatus = ClosureStatusNone
		}
	}
}
