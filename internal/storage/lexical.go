package storage

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

var wordRe = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)

// tokenSet extracts the set of lowercased word tokens from s.
func tokenSet(s string) map[string]struct{} {
	tokens := wordRe.FindAllString(strings.ToLower(s), -1)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// lexicalScore is the Ochiai coefficient |Q ∩ T| / sqrt(|Q|·|T|) between the
// query token set and the text's token set. It is deterministic, lands in
// [0,1], and is 1 only when the sets are identical.
func lexicalScore(querySet map[string]struct{}, text string) float64 {
	textSet := tokenSet(text)
	if len(querySet) == 0 || len(textSet) == 0 {
		return 0
	}
	inter := 0
	for t := range textSet {
		if _, ok := querySet[t]; ok {
			inter++
		}
	}
	if inter == 0 {
		return 0
	}
	return float64(inter) / math.Sqrt(float64(len(querySet))*float64(len(textSet)))
}

// sortResults orders results by score descending, ties broken by chunk index
// ascending then document ID for full determinism.
func sortResults(results []SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Chunk.Index != results[j].Chunk.Index {
			return results[i].Chunk.Index < results[j].Chunk.Index
		}
		return results[i].Chunk.DocumentID < results[j].Chunk.DocumentID
	})
}
