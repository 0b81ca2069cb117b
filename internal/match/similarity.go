package match

import "strings"

// Similarity scores how alike two forest names are on [0,1]. It is symmetric
// and returns 1.0 when the normalized keys are equal.
//
// The score is the stronger of two signals: token-set Jaccard overlap (robust
// to word reordering and extra qualifiers) and a normalized Levenshtein ratio
// over the joined keys (robust to typos). Taking the max means close edits of
// opposing names like "bago east"/"bago west" also score high, which is why
// callers pair this with the directional conflict guard.
func Similarity(a, b string) float64 {
	ka, kb := Normalize(a), Normalize(b)
	if ka == kb {
		if ka == "" {
			return 0
		}
		return 1.0
	}
	if ka == "" || kb == "" {
		return 0
	}

	jaccard := tokenJaccard(ka, kb)
	edit := levenshteinRatio(ka, kb)
	if jaccard > edit {
		return jaccard
	}
	return edit
}

func tokenJaccard(a, b string) float64 {
	as, bs := tokenSet(a), tokenSet(b)
	if len(as) == 0 || len(bs) == 0 {
		return 0
	}
	inter := 0
	for tok := range as {
		if bs[tok] {
			inter++
		}
	}
	union := len(as) + len(bs) - inter
	return float64(inter) / float64(union)
}

// levenshteinRatio returns 1 - distance/maxLen over the two strings.
func levenshteinRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	if maxLen == 0 {
		return 0
	}
	return 1 - float64(levenshtein(ra, rb))/float64(maxLen)
}

func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// BestMatch returns the candidate with the highest similarity to name, or
// ok=false when candidates is empty. Ties break lexicographically so results
// are deterministic across runs.
func BestMatch(name string, candidates []string) (best string, score float64, ok bool) {
	for _, c := range candidates {
		s := Similarity(name, c)
		if !ok || s > score || (s == score && strings.Compare(c, best) < 0) {
			best, score, ok = c, s, true
		}
	}
	return best, score, ok
}
