package rag

import (
	"strings"
	"unicode"
)

const (
	// keywordStemLen truncates words to a crude prefix stem so that
	// "connectors" still matches "connector" in an ILIKE scan.
	keywordStemLen = 5
	maxKeywords    = 4
)

var stopWords = map[string]bool{
	"about": true, "after": true, "again": true, "being": true, "before": true,
	"below": true, "between": true, "could": true, "doing": true, "during": true,
	"every": true, "having": true, "other": true, "should": true, "there": true,
	"these": true, "thing": true, "things": true, "think": true, "those": true,
	"through": true, "under": true, "where": true, "which": true, "while": true,
	"would": true, "their": true, "what": true, "when": true, "your": true,
	"please": true, "tell": true, "does": true, "have": true, "with": true,
	"this": true, "that": true, "from": true, "they": true, "will": true,
	"want": true, "know": true, "need": true, "much": true, "many": true,
	"some": true, "more": true, "most": true, "each": true, "been": true,
	"were": true, "them": true, "then": true, "than": true, "into": true,
	"only": true, "over": true, "such": true, "very": true, "just": true,
	"also": true, "here": true, "give": true, "show": true, "like": true,
}

// extractKeywords pulls up to maxKeywords literal stems out of a
// question. Short words and common function words carry no retrieval
// signal and are skipped; the rest are truncated prefix stems for
// substring matching against chunk text.
func extractKeywords(question string) []string {
	words := strings.FieldsFunc(strings.ToLower(question), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]bool)
	var stems []string
	for _, w := range words {
		runes := []rune(w)
		if len(runes) < 4 || stopWords[w] {
			continue
		}
		stem := w
		if len(runes) > keywordStemLen {
			stem = string(runes[:keywordStemLen])
		}
		if seen[stem] {
			continue
		}
		seen[stem] = true
		stems = append(stems, stem)
		if len(stems) == maxKeywords {
			break
		}
	}
	return stems
}
