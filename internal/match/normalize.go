// Package match resolves identity across feeds that share no stable key,
// only similar free-text forest names.
package match

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// designationSuffixes lists land-designation suffixes stripped during
// normalization. Longest first so compound designations win.
var designationSuffixes = []string{
	" state forest",
	" national forest",
	" state park",
	" national park",
	" flora reserve",
	" nature reserve",
	" regional park",
	" forest park",
	" forest",
}

var (
	parentheticalRe = regexp.MustCompile(`\([^)]*\)`)
	multiSpaceRe    = regexp.MustCompile(`\s{2,}`)
)

var foldAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize reduces a free-text forest name to its canonical matching key:
// lower-cased, accents folded, parenthetical qualifiers and designation
// suffixes removed, punctuation stripped, whitespace collapsed. Idempotent.
func Normalize(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return ""
	}

	if folded, _, err := transform.String(foldAccents, name); err == nil {
		name = folded
	}

	name = parentheticalRe.ReplaceAllString(name, " ")

	name = strings.NewReplacer(
		",", " ",
		".", "",
		"'", "",
		"’", "",
		"\"", "",
		"&", " and ",
		"-", " ",
		"/", " ",
	).Replace(name)

	name = multiSpaceRe.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)

	// Designations stack ("X State Forest Flora Reserve"), so strip until a
	// fixed point: the key must not change under a second Normalize.
	for stripped := true; stripped; {
		stripped = false
		for _, suffix := range designationSuffixes {
			if strings.HasSuffix(name, suffix) {
				name = strings.TrimSpace(strings.TrimSuffix(name, suffix))
				stripped = true
				break
			}
		}
	}

	return name
}

// directionOpposites pairs the literal compass tokens the conflict guard
// checks. Other disambiguating qualifiers (upper/lower and the like) are
// deliberately not widened here.
var directionOpposites = map[string]string{
	"east":  "west",
	"west":  "east",
	"north": "south",
	"south": "north",
}

// DirectionConflict reports whether the two raw names carry opposing compass
// tokens. Such pairs must never fuzzy-match regardless of score.
func DirectionConflict(a, b string) bool {
	aTokens := tokenSet(Normalize(a))
	bTokens := tokenSet(Normalize(b))
	for tok, opposite := range directionOpposites {
		if aTokens[tok] && bTokens[opposite] {
			return true
		}
	}
	return false
}

func tokenSet(key string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(key) {
		set[tok] = true
	}
	return set
}
