package reconcile

import (
	"sort"

	"github.com/sells-group/forest-watch/internal/match"
	"github.com/sells-group/forest-watch/internal/model"
)

// attachClosures matches active closure notices against the reconciled
// records and folds the attached notices into each record's closure state.
//
// Unlike the facilities join, this is many-to-one: several notices may
// legitimately target the same forest, so candidates are never consumed.
// Exact normalized-key matches are taken first, the rest fall through to
// fuzzy scoring under the stricter closure threshold.
func (r *Reconciler) attachClosures(notices []model.ClosureNotice, records []model.ForestRecord) model.MatchDiagnostics {
	now := r.now()

	byKey := make(map[string][]int)
	names := make([]string, 0, len(records))
	for i := range records {
		key := match.Normalize(records[i].Name)
		if len(byKey[key]) == 0 {
			names = append(names, records[i].Name)
		}
		byKey[key] = append(byKey[key], i)
	}
	sort.Strings(names)

	var diag model.MatchDiagnostics
	for _, n := range notices {
		if !n.ActiveAt(now) {
			continue
		}
		subject := n.ForestHint
		if subject == "" {
			subject = n.Title
		}

		if targets := byKey[match.Normalize(subject)]; len(targets) > 0 {
			diag.Exact++
			for _, i := range targets {
				records[i].Notices = append(records[i].Notices, n)
			}
			continue
		}

		eligible := names[:0:0]
		for _, name := range names {
			if !match.DirectionConflict(subject, name) {
				eligible = append(eligible, name)
			}
		}
		best, score, ok := match.BestMatch(subject, eligible)
		if !ok || score < r.closureThreshold {
			diag.Unmatched = append(diag.Unmatched, subject)
			continue
		}
		diag.Fuzzy = append(diag.Fuzzy, model.FuzzyMatch{Name: subject, MatchedTo: best, Score: score})
		for _, i := range byKey[match.Normalize(best)] {
			records[i].Notices = append(records[i].Notices, n)
		}
	}

	for i := range records {
		rec := &records[i]
		rec.ClosureStatus = model.MergeClosureStatus(rec.Notices)
		rec.Tags = mergeTags(rec.Notices)
		if len(rec.Notices) > 0 {
			rec.Impact = model.MergeImpacts(rec.Notices, r.registry.ImpactCategories)
		}
	}
	return diag
}

// mergeTags unions the notice tags in first-seen order.
func mergeTags(notices []model.ClosureNotice) []string {
	var tags []string
	seen := make(map[string]bool)
	for _, n := range notices {
		for _, t := range n.Tags {
			if !seen[t] {
				seen[t] = true
				tags = append(tags, t)
			}
		}
	}
	return tags
}
