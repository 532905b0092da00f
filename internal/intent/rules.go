package intent

import (
	"context"
	"regexp"
	"strings"
)

// Request phrasing that carries no keyword. Longer phrases come first so
// "photos of" is removed before "photos".
var defaultFillers = []string{
	"i want to see", "i would like to see", "can you", "could you", "please",
	"show me", "give me", "search for", "look for", "looking for", "find me",
	"find", "show", "display", "get",
	"photos of", "pictures of", "images of", "pics of", "photos with", "pictures with",
	"photos", "photo", "pictures", "picture", "images", "image", "pics",
	"some", "any", "my",
}

var (
	punctuation = regexp.MustCompile(`[?!.;:"]+`)
	separators  = regexp.MustCompile(`(?i),|\band\b|\bor\b`)
)

// RuleExtractor removes request fillers and splits the rest into phrases on
// commas, "and" and "or". It needs no model.
type RuleExtractor struct {
	fillers *regexp.Regexp
}

// NewRuleExtractor returns an extractor using the built-in filler phrases
// plus extra ones.
func NewRuleExtractor(extra ...string) *RuleExtractor {
	words := append(append([]string{}, extra...), defaultFillers...)
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			quoted = append(quoted, strings.ReplaceAll(regexp.QuoteMeta(w), " ", `\s+`))
		}
	}
	return &RuleExtractor{
		fillers: regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`),
	}
}

// ExtractIntent implements Extractor.
func (e *RuleExtractor) ExtractIntent(ctx context.Context, text string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text = punctuation.ReplaceAllString(text, " ")
	text = e.fillers.ReplaceAllString(text, ",")
	var phrases []string
	for _, part := range separators.Split(text, -1) {
		part = strings.Join(strings.Fields(part), " ")
		if part != "" {
			phrases = append(phrases, part)
		}
	}
	return phrases, nil
}
