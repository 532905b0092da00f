package keyword

import "strings"

// Label sanitizes a detected or user-supplied tag: lowercase with all whitespace removed.
func Label(raw string) string {
	return strings.Join(strings.Fields(fold(raw)), "")
}

// Label sanitizes raw like the package-level Label and singularizes the
// result with the normalizer's rules, so a stored tag matches the tokens
// Normalize derives from the same word.
func (n *Normalizer) Label(raw string) string {
	l := Label(raw)
	if l == "" {
		return ""
	}
	return n.singular(l)
}

// Labels passes raw tags through n.Label, dropping empty ones and
// duplicates. The first occurrence of a label keeps its position.
func (n *Normalizer) Labels(raw ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, group := range raw {
		for _, r := range group {
			l := n.Label(r)
			if l == "" {
				continue
			}
			if _, ok := seen[l]; ok {
				continue
			}
			seen[l] = struct{}{}
			out = append(out, l)
		}
	}
	return out
}

// SplitCustomLabels splits a comma-separated metadata value into raw tags.
func SplitCustomLabels(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return strings.Split(value, ",")
}
