package match

import (
	"sort"

	"github.com/sells-group/forest-watch/internal/model"
)

// Match is one accepted pairing of a source name with directory candidates.
// Candidates holds more than one entry when parenthetical variants of the same
// physical forest were merged as facets of one logical match.
type Match struct {
	Name       string
	Candidates []string
	Score      float64
	Tag        model.MatchTag
}

// Outcome is the result of one two-pass matching run.
type Outcome struct {
	// Matches maps each matched source name to its pairing.
	Matches map[string]Match
	// UnmatchedNames lists source names no candidate could be found for.
	UnmatchedNames []string
	// UnmatchedCandidates lists directory candidates left unclaimed.
	UnmatchedCandidates []string
}

// Diagnostics converts the outcome into snapshot-shaped match diagnostics.
func (o Outcome) Diagnostics() model.MatchDiagnostics {
	d := model.MatchDiagnostics{Unmatched: o.UnmatchedNames}
	for _, name := range sortedKeys(o.Matches) {
		m := o.Matches[name]
		switch m.Tag {
		case model.MatchExact:
			d.Exact++
		case model.MatchFuzzy:
			d.Fuzzy = append(d.Fuzzy, model.FuzzyMatch{
				Name:      name,
				MatchedTo: m.Candidates[0],
				Score:     m.Score,
			})
		}
	}
	return d
}

// TwoPass matches source names against directory candidates.
//
// Pass 1 pairs exact normalized keys one-to-one, assigning ties greedily in
// lexicographic order. When several candidates share one key (parenthetical
// variants of one physical forest) and the source side has exactly one
// occurrence of that key, every variant is claimed as a facet of that match.
//
// Pass 2 scores the residual with Similarity, accepting a pairing only when
// the score meets threshold and the names carry no opposing compass tokens.
func TwoPass(names, candidates []string, threshold float64) Outcome {
	out := Outcome{Matches: make(map[string]Match)}

	namesByKey := groupByKey(names)
	candsByKey := groupByKey(candidates)

	var residualNames []string
	claimed := make(map[string]bool)

	for _, key := range sortedKeys(namesByKey) {
		srcNames := namesByKey[key]
		variants := candsByKey[key]

		if len(variants) == 0 {
			residualNames = append(residualNames, srcNames...)
			continue
		}

		if len(srcNames) == 1 {
			// Single source occurrence claims every variant as a facet.
			out.Matches[srcNames[0]] = Match{
				Name:       srcNames[0],
				Candidates: variants,
				Score:      1.0,
				Tag:        model.MatchExact,
			}
			for _, v := range variants {
				claimed[v] = true
			}
			continue
		}

		// Duplicate source occurrences pair off one-to-one in order.
		n := len(srcNames)
		if len(variants) < n {
			n = len(variants)
		}
		for i := 0; i < n; i++ {
			out.Matches[srcNames[i]] = Match{
				Name:       srcNames[i],
				Candidates: []string{variants[i]},
				Score:      1.0,
				Tag:        model.MatchExact,
			}
			claimed[variants[i]] = true
		}
		residualNames = append(residualNames, srcNames[n:]...)
	}

	var residualCands []string
	for _, key := range sortedKeys(candsByKey) {
		for _, c := range candsByKey[key] {
			if !claimed[c] {
				residualCands = append(residualCands, c)
			}
		}
	}
	sort.Strings(residualNames)
	sort.Strings(residualCands)

	for _, name := range residualNames {
		eligible := residualCands[:0:0]
		for _, c := range residualCands {
			if !DirectionConflict(name, c) {
				eligible = append(eligible, c)
			}
		}
		best, score, ok := BestMatch(name, eligible)
		if !ok || score < threshold {
			out.UnmatchedNames = append(out.UnmatchedNames, name)
			continue
		}
		out.Matches[name] = Match{
			Name:       name,
			Candidates: []string{best},
			Score:      score,
			Tag:        model.MatchFuzzy,
		}
		residualCands = remove(residualCands, best)
	}

	out.UnmatchedCandidates = residualCands
	return out
}

func groupByKey(values []string) map[string][]string {
	grouped := make(map[string][]string)
	for _, v := range values {
		key := Normalize(v)
		if key == "" {
			continue
		}
		grouped[key] = append(grouped[key], v)
	}
	for key := range grouped {
		sort.Strings(grouped[key])
	}
	return grouped
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func remove(values []string, target string) []string {
	out := values[:0]
	for _, v := range values {
		if v != target {
			out = append(out, v)
		}
	}
	return out
}
