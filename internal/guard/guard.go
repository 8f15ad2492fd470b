// Package guard screens incoming chat questions before any provider
// spend: a length cap and a pattern check for known prompt-injection
// phrasings. Detection yields a fixed refusal, the question is never
// forwarded to embedding, retrieval, or the LLM.
package guard

import (
	"regexp"

	"github.com/mentorix/backend/internal/apperr"
)

// RefusalMessage is the fixed answer returned for flagged questions.
const RefusalMessage = "I can't help with that request. Please ask a question about the available documents."

var injectionPatterns = []*regexp.Regexp{
	// Classic override attempts
	regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above)\s+(instructions?|prompts?|rules?)`),
	regexp.MustCompile(`(?i)forget\s+(all\s+)?(previous|your)\s+(instructions?|training)`),
	regexp.MustCompile(`(?i)disregard\s+(all\s+)?(previous|prior)\s+instructions?`),
	// DAN / jailbreak
	regexp.MustCompile(`\bDAN\b`),
	regexp.MustCompile(`(?i)do\s+anything\s+now`),
	regexp.MustCompile(`(?i)jailbreak`),
	regexp.MustCompile(`(?i)pretend\s+(you\s+are|to\s+be)\s+(a\s+)?(\w+\s+)?AI\s+(without|with\s+no)`),
	// Delimiter injection
	regexp.MustCompile(`(?i)</?system>`),
	regexp.MustCompile(`(?i)\[/?INST\]`),
	regexp.MustCompile(`(?i)###\s*(system|instruction|prompt)`),
	regexp.MustCompile(`(?i)<\|im_(start|end)\|>`),
	// Role manipulation
	regexp.MustCompile(`(?i)you\s+are\s+now\s+(a\s+)?(different|new|other|unrestricted)`),
	regexp.MustCompile(`(?i)switch\s+to\s+(developer|admin|root|god)\s+mode`),
	regexp.MustCompile(`(?i)enable\s+(dev|debug|admin|god|unrestricted)\s+mode`),
	// Prompt extraction
	regexp.MustCompile(`(?i)(show|reveal|print|output|display|tell)\s+(me\s+)?(your|the)\s+(system\s+)?(prompt|instructions?|rules?|training)`),
	regexp.MustCompile(`(?i)what\s+(is|are)\s+your\s+(system\s+)?(prompt|instructions?|rules?)`),
}

type Guard struct {
	maxQuestionChars int
}

func New(maxQuestionChars int) *Guard {
	if maxQuestionChars <= 0 {
		maxQuestionChars = 2000
	}
	return &Guard{maxQuestionChars: maxQuestionChars}
}

// CheckLength rejects over-long questions. Runs first so a flood of
// oversized input never reaches the pattern scan or any provider.
func (g *Guard) CheckLength(question string) error {
	if len([]rune(question)) > g.maxQuestionChars {
		return apperr.New(apperr.KindQuestionTooLong,
			"question too long (max %d characters)", g.maxQuestionChars)
	}
	return nil
}

// Flagged reports whether the question matches a known injection
// phrasing.
func (g *Guard) Flagged(question string) bool {
	for _, p := range injectionPatterns {
		if p.MatchString(question) {
			return true
		}
	}
	return false
}
