package grading

import "strings"

// Similarity returns the Jaccard similarity of the word sets of a and b:
// the number of shared unique words divided by the number of unique words
// overall. Words are lowercased and split on whitespace, so comparison is
// case-insensitive and ignores duplicates and ordering.
//
// When both inputs are blank the union is empty and the result is 0, not
// 1: two empty answers tell us nothing about each other, and treating them
// as identical would award full marks for silence.
func Similarity(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)

	intersection := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
