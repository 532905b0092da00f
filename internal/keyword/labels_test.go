package keyword

import (
	"reflect"
	"testing"
)

func TestLabel(t *testing.T) {
	tests := map[string]string{
		"Dog":          "dog",
		"Living Room":  "livingroom",
		"  Sea  Lion ": "sealion",
		"":             "",
		"\t":           "",
	}
	for in, want := range tests {
		if got := Label(in); got != want {
			t.Errorf("Label(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLabels(t *testing.T) {
	detected := []string{"Dog", "Pet", "Living Room"}
	custom := []string{" dog", "Max", "", "living room"}
	got := NewNormalizer(DefaultPolicy()).Labels(detected, custom)
	want := []string{"dog", "pet", "livingroom", "max"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Labels = %q, want %q", got, want)
	}
}

func TestSplitCustomLabels(t *testing.T) {
	if got := SplitCustomLabels(""); got != nil {
		t.Errorf("empty value: got %q", got)
	}
	got := SplitCustomLabels("Max, Birthday Party,")
	want := []string{"Max", " Birthday Party", ""}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestNormalizerLabel(t *testing.T) {
	n := NewNormalizer(DefaultPolicy())
	tests := map[string]string{
		"Puppies":      "puppy",
		"Dogs":         "dog",
		"pants":        "pants",
		"Living Rooms": "livingroom",
		"Beach":        "beach",
		" ":            "",
	}
	for in, want := range tests {
		if got := n.Label(in); got != want {
			t.Errorf("Label(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizerLabels_matchNormalizedTokens(t *testing.T) {
	n := NewNormalizer(DefaultPolicy())
	got := n.Labels([]string{"Dogs", "Beach"}, []string{"Puppies", "dog", "Flowers"})
	want := []string{"dog", "beach", "puppy", "flower"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Labels = %q, want %q", got, want)
	}
	for _, query := range []string{"puppies", "dogs", "flowers"} {
		tokens, _ := n.Normalize([]string{query})
		if len(tokens) != 1 || !contains(got, tokens[0]) {
			t.Errorf("Normalize(%q) = %q, not among stored labels %q", query, tokens, got)
		}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
