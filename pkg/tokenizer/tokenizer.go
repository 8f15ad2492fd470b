// Package tokenizer provides rough token estimates. Exact-token
// billing accuracy is out of scope; provider-reported usage wins
// whenever it is available, this is only the fallback.
package tokenizer

import (
	"strings"
)

// Estimate approximates the token count of text (~4/3 tokens per word
// for English-like input, never less than 1 for non-empty text).
func Estimate(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	return max(words*4/3, 1)
}

// EstimateAll sums estimates over multiple texts.
func EstimateAll(texts []string) int {
	total := 0
	for _, t := range texts {
		total += Estimate(t)
	}
	return total
}
