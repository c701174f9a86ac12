// Package extract converts acquired page content into a canonical
// structured record using an ordered list of model providers.
package extract

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/radarhq/enrichd/internal/entity"
)

// Shape limits enforced at the provider boundary.
const (
	MaxWhatItDoes = 6
	MaxKeywords   = 10
	MaxSignals    = 4
	MaxContentLen = 100_000
)

const systemPrompt = `You are an analyst profiling a business from its website content.
Extract only what the content supports; do not invent facts. When a field
cannot be filled from the content, use an empty array rather than omitting
the field, but always produce a best-effort relevance_score (0-100) and a
short score_explanation. Respond with a single JSON object and nothing else.`

// resultSchema is the JSON schema submitted to schema-constrained
// providers and described textually to free-form providers.
const resultSchema = `{
  "type": "object",
  "properties": {
    "summary": {"type": "string"},
    "what_it_does": {"type": "array", "items": {"type": "string"}, "maxItems": 6},
    "keywords": {"type": "array", "items": {"type": "string"}, "maxItems": 10},
    "signals": {"type": "array", "items": {"type": "string"}, "maxItems": 4},
    "relevance_score": {"type": "integer", "minimum": 0, "maximum": 100},
    "score_explanation": {"type": "string"}
  },
  "required": ["summary", "what_it_does", "keywords", "signals", "relevance_score", "score_explanation"],
  "additionalProperties": false
}`

// userPrompt renders the extraction request for a chat completion.
func userPrompt(content, sourceURL string) string {
	var b strings.Builder
	b.WriteString("Source URL: ")
	b.WriteString(sourceURL)
	b.WriteString("\n\nPage content:\n")
	b.WriteString(Truncate(content, MaxContentLen))
	return b.String()
}

// Truncate bounds content before submission, for cost control and
// provider limits. The cut backs off to a rune boundary so a
// multi-byte character is never split.
func Truncate(content string, limit int) string {
	if limit <= 0 || len(content) <= limit {
		return content
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut]
}

// rawResult mirrors the provider reply with pointer fields so missing
// required keys are detectable after unmarshaling.
type rawResult struct {
	Summary          *string  `json:"summary"`
	WhatItDoes       []string `json:"what_it_does"`
	Keywords         []string `json:"keywords"`
	Signals          []string `json:"signals"`
	RelevanceScore   *int     `json:"relevance_score"`
	ScoreExplanation *string  `json:"score_explanation"`
}

// validate checks required fields and clamps list and score bounds,
// returning the canonical result.
func (r rawResult) validate() (entity.ExtractionResult, error) {
	if r.Summary == nil || strings.TrimSpace(*r.Summary) == "" {
		return entity.ExtractionResult{}, fmt.Errorf("missing required field summary")
	}
	if r.RelevanceScore == nil {
		return entity.ExtractionResult{}, fmt.Errorf("missing required field relevance_score")
	}
	if r.ScoreExplanation == nil {
		return entity.ExtractionResult{}, fmt.Errorf("missing required field score_explanation")
	}
	score := *r.RelevanceScore
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return entity.ExtractionResult{
		Summary:          strings.TrimSpace(*r.Summary),
		WhatItDoes:       capList(r.WhatItDoes, MaxWhatItDoes),
		Keywords:         capList(r.Keywords, MaxKeywords),
		Signals:          capList(r.Signals, MaxSignals),
		RelevanceScore:   score,
		ScoreExplanation: strings.TrimSpace(*r.ScoreExplanation),
	}, nil
}

// capList drops blank items, trims the rest, and truncates to the cap.
// A nil list becomes an empty one so persisted fields are never absent.
func capList(items []string, limit int) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
		if len(out) == limit {
			break
		}
	}
	return out
}
