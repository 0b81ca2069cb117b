package model

import "time"

// ClosureStatus is the merged closure state of a forest.
type ClosureStatus string

const (
	ClosureStatusNone    ClosureStatus = "NONE"
	ClosureStatusNotice  ClosureStatus = "NOTICE"
	ClosureStatusPartial ClosureStatus = "PARTIAL"
	ClosureStatusClosed  ClosureStatus = "CLOSED"
)

var closureSeverity = map[ClosureStatus]int{
	ClosureStatusNone:    0,
	ClosureStatusNotice:  1,
	ClosureStatusPartial: 2,
	ClosureStatusClosed:  3,
}

// ImpactLevel grades how severely a notice affects one activity category.
type ImpactLevel string

const (
	ImpactUnknown    ImpactLevel = "UNKNOWN"
	ImpactNone       ImpactLevel = "NONE"
	ImpactAdvisory   ImpactLevel = "ADVISORY"
	ImpactRestricted ImpactLevel = "RESTRICTED"
	ImpactClosed     ImpactLevel = "CLOSED"
)

var impactSeverity = map[ImpactLevel]int{
	ImpactNone:       0,
	ImpactAdvisory:   1,
	ImpactRestricted: 2,
	ImpactClosed:     3,
}

// Merge returns the more severe of the two levels. UNKNOWN never wins a merge:
// it only survives when both sides are UNKNOWN.
func (l ImpactLevel) Merge(other ImpactLevel) ImpactLevel {
	if l == ImpactUnknown {
		return other
	}
	if other == ImpactUnknown {
		return l
	}
	if impactSeverity[other] > impactSeverity[l] {
		return other
	}
	return l
}

// CategoryImpact is the structured impact a notice declares for one category.
type CategoryImpact struct {
	Level      ImpactLevel `json:"level"`
	Confidence float64     `json:"confidence,omitempty"`
	Rationale  string      `json:"rationale,omitempty"`
}

// ClosureNotice is one closure/advisory notice from the notices feed.
type ClosureNotice struct {
	ID         string                    `json:"id"`
	Title      string                    `json:"title"`
	DetailURL  string                    `json:"detail_url,omitempty"`
	ListedAt   *time.Time                `json:"listed_at,omitempty"`
	UntilAt    *time.Time                `json:"until_at,omitempty"`
	ForestHint string                    `json:"forest_hint,omitempty"`
	Status     ClosureStatus             `json:"status"`
	Tags       []string                  `json:"tags,omitempty"`
	Impact     map[string]CategoryImpact `json:"impact,omitempty"`
}

// ActiveAt reports whether the notice applies at the given time. Open bounds
// are always satisfied.
func (n ClosureNotice) ActiveAt(t time.Time) bool {
	if n.ListedAt != nil && t.Before(*n.ListedAt) {
		return false
	}
	if n.UntilAt != nil && t.After(*n.UntilAt) {
		return false
	}
	return true
}

// MergeClosureStatus folds the statuses of active notices: CLOSED if any is
// CLOSED, else PARTIAL if any, else NOTICE if any remain, else NONE.
func MergeClosureStatus(notices []ClosureNotice) ClosureStatus {
	merged := ClosureStatusNone
	for _, n := range notices {
		if closureSeverity[n.Status] > closureSeverity[merged] {
			merged = n.Status
		}
	}
	return merged
}

// MergeImpacts takes the most severe level per category across the notices.
func MergeImpacts(notices []ClosureNotice, categories []string) map[string]ImpactLevel {
	if len(categories) == 0 {
		return nil
	}
	out := make(map[string]ImpactLevel, len(categories))
	for _, cat := range categories {
		level := ImpactUnknown
		for _, n := range notices {
			if ci, ok := n.Impact[cat]; ok {
				level = level.Merge(ci.Level)
			}
		}
		out[cat] = level
	}
	return out
}
