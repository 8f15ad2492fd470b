package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractKeywordsStemsAndFilters(t *testing.T) {
	stems := extractKeywords("What are the shipping costs for international orders?")
	assert.Equal(t, []string{"shipp", "costs", "inter", "order"}, stems)
}

func TestExtractKeywordsSkipsShortAndStopWords(t *testing.T) {
	stems := extractKeywords("tell me about the API")
	assert.Empty(t, stems)
}

func TestExtractKeywordsDeduplicatesByStem(t *testing.T) {
	// "connector" and "connectors" collapse into one stem.
	stems := extractKeywords("connector connectors cable")
	assert.Equal(t, []string{"conne", "cable"}, stems)
}

func TestExtractKeywordsCapsAtFour(t *testing.T) {
	stems := extractKeywords("warranty returns refunds exchanges replacements repairs")
	assert.Len(t, stems, 4)
}

func TestExtractKeywordsKeepsDigits(t *testing.T) {
	stems := extractKeywords("price of model rtx4090 card")
	assert.Contains(t, stems, "rtx40")
}

func TestExtractKeywordsEmptyQuestion(t *testing.T) {
	assert.Empty(t, extractKeywords(""))
	assert.Empty(t, extractKeywords("   ?!  "))
}
