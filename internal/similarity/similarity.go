// Package similarity scores road and stream name agreement between the bridge
// inventory and the road network. Scores are token-order-insensitive integers
// in [0,100].
package similarity

import (
	"math"
	"sort"
	"strings"

	"github.com/agext/levenshtein"
)

// abbreviations maps common road-name abbreviations to their spelled-out
// forms so "Main St" and "Main Street" compare as identical tokens.
var abbreviations = map[string]string{
	"ST":   "STREET",
	"RD":   "ROAD",
	"AVE":  "AVENUE",
	"HWY":  "HIGHWAY",
	"PKWY": "PARKWAY",
	"BLVD": "BOULEVARD",
	"LN":   "LANE",
	"DR":   "DRIVE",
	"CT":   "COURT",
	"PIKE": "PIKE",
	"CRK":  "CREEK",
	"BR":   "BRANCH",
	"FK":   "FORK",
	"RIV":  "RIVER",
}

// noiseTokens are structure words that carry no identity: the inventory calls
// the crossing "X Bridge" while the way is named plain "X".
var noiseTokens = map[string]bool{
	"BRIDGE":   true,
	"BRG":      true,
	"OVERPASS": true,
	"OF":       true,
	"THE":      true,
}

// tokenize uppercases, strips non-alphanumeric characters, expands
// abbreviations, drops noise tokens, and returns the sorted token list.
// Noise-token removal is skipped when it would empty the list, so a name that
// is nothing but "Bridge" still compares against itself as identical.
func tokenize(s string) []string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}

	raw := strings.Fields(b.String())
	tokens := make([]string, 0, len(raw))
	for _, tok := range raw {
		if full, ok := abbreviations[tok]; ok {
			tok = full
		}
		if noiseTokens[tok] {
			continue
		}
		tokens = append(tokens, tok)
	}
	if len(tokens) == 0 {
		tokens = raw
	}

	sort.Strings(tokens)
	return tokens
}

// TokenSortRatio returns the normalized edit-distance similarity of the two
// names after tokenizing and sorting, scaled to [0,100]. Identical word
// multisets score 100 regardless of order. Either side empty scores 0; that
// is data, never an error.
func TokenSortRatio(a, b string) int {
	sa := strings.Join(tokenize(a), " ")
	sb := strings.Join(tokenize(b), " ")
	if sa == "" || sb == "" {
		return 0
	}
	return int(math.Round(100 * levenshtein.Similarity(sa, sb, levParams)))
}

var levParams = levenshtein.NewParams()
