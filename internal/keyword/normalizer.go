// Package keyword turns search phrases into keyword tokens and raw tags into index labels.
package keyword

import (
	"regexp"
	"sort"
	"strings"

	"github.com/gertd/go-pluralize"
	"golang.org/x/text/unicode/norm"
)

// Policy configures a Normalizer. It is copied on construction; later changes
// to the caller's slices or map do not affect an existing Normalizer.
type Policy struct {
	// StopWords are removed (case-insensitive, whole word) and act as phrase separators.
	StopWords []string
	// SingularRules map an exact token to its singular form. An identity mapping
	// protects words that only look plural ("pants").
	SingularRules map[string]string
	// Wildcard is the phrase that means "every document".
	Wildcard string
	// MatchAllWords also mean "every document" when present as a whole word.
	MatchAllWords []string
}

// DefaultPolicy returns the canonical stop words and singular rules.
func DefaultPolicy() Policy {
	return Policy{
		StopWords: []string{"and", "in", "the", "a"},
		SingularRules: map[string]string{
			"pants":   "pants",
			"jeans":   "jeans",
			"glasses": "glasses",
			"shorts":  "shorts",
		},
		Wildcard:      "*",
		MatchAllWords: []string{"all", "everything"},
	}
}

// Normalizer produces keyword tokens. It holds no mutable state and is safe
// for concurrent use.
type Normalizer struct {
	stopWords *regexp.Regexp
	matchAll  *regexp.Regexp
	wildcard  string
	rules     map[string]string
	plural    *pluralize.Client
}

// NewNormalizer builds a Normalizer from p.
func NewNormalizer(p Policy) *Normalizer {
	rules := make(map[string]string, len(p.SingularRules))
	for k, v := range p.SingularRules {
		rules[strings.ToLower(k)] = strings.ToLower(v)
	}
	return &Normalizer{
		stopWords: wordsPattern(p.StopWords),
		matchAll:  wordsPattern(p.MatchAllWords),
		wildcard:  strings.TrimSpace(p.Wildcard),
		rules:     rules,
		plural:    pluralize.NewClient(),
	}
}

// wordsPattern compiles a case-insensitive whole-word alternation, or nil for no words.
func wordsPattern(words []string) *regexp.Regexp {
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w != "" {
			quoted = append(quoted, regexp.QuoteMeta(w))
		}
	}
	if len(quoted) == 0 {
		return nil
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

// IsMatchAll reports whether any phrase asks for every document: the wildcard
// itself, or a phrase containing one of the match-all words.
func (n *Normalizer) IsMatchAll(phrases ...string) bool {
	for _, p := range phrases {
		p = strings.TrimSpace(p)
		if n.wildcard != "" && p == n.wildcard {
			return true
		}
		if n.matchAll != nil && n.matchAll.MatchString(p) {
			return true
		}
	}
	return false
}

// Normalize fully normalizes phrases: stop words split phrases into fragments,
// each fragment loses its internal whitespace, is lowercased and singularized.
// The result is sorted and free of duplicates. When the phrases ask for every
// document, it returns no tokens and matchAll true.
func (n *Normalizer) Normalize(phrases []string) (tokens []string, matchAll bool) {
	if n.IsMatchAll(phrases...) {
		return nil, true
	}
	set := make(map[string]struct{})
	for _, phrase := range phrases {
		for _, frag := range n.splitStopWords(phrase) {
			frag = strings.Join(strings.Fields(frag), "")
			if frag == "" {
				continue
			}
			set[n.singular(fold(frag))] = struct{}{}
		}
	}
	return sortedTokens(set), false
}

// NormalizeBasic lowercases and singularizes the words of each phrase with a
// trailing-"s" heuristic. Stop words are kept and phrases are not collapsed.
func (n *Normalizer) NormalizeBasic(phrases []string) []string {
	set := make(map[string]struct{})
	for _, phrase := range phrases {
		for _, word := range strings.Fields(phrase) {
			set[n.trimPlural(fold(word))] = struct{}{}
		}
	}
	return sortedTokens(set)
}

func (n *Normalizer) splitStopWords(phrase string) []string {
	if n.stopWords == nil {
		return []string{strings.TrimSpace(phrase)}
	}
	parts := n.stopWords.Split(phrase, -1)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func (n *Normalizer) singular(token string) string {
	if s, ok := n.rules[token]; ok {
		return s
	}
	return n.plural.Singular(token)
}

func (n *Normalizer) trimPlural(token string) string {
	if s, ok := n.rules[token]; ok {
		return s
	}
	if len(token) > 3 && strings.HasSuffix(token, "s") && !strings.HasSuffix(token, "ss") {
		return strings.TrimSuffix(token, "s")
	}
	return token
}

// fold puts s in NFC form and lowercases it.
func fold(s string) string {
	return strings.ToLower(norm.NFC.String(s))
}

func sortedTokens(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
