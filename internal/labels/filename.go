package labels

import (
	"context"
	"path"
	"strings"
	"unicode"
)

// camera and export prefixes that say nothing about the picture
var filenameNoise = map[string]bool{
	"img": true, "dsc": true, "dscn": true, "pxl": true, "photo": true,
	"image": true, "screenshot": true, "jpg": true, "jpeg": true, "png": true,
}

// FilenameDetector labels a photo with the words of its file name, so
// "2023/max_the-dog.jpg" yields max, the, dog. It needs no model.
type FilenameDetector struct {
	max int
}

// NewFilenameDetector returns a detector returning at most max labels.
func NewFilenameDetector(max int) *FilenameDetector {
	if max <= 0 {
		max = DefaultMaxLabels
	}
	return &FilenameDetector{max: max}
}

// DetectLabels implements Detector.
func (d *FilenameDetector) DetectLabels(ctx context.Context, container, key string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	base := path.Base(key)
	base = strings.TrimSuffix(base, path.Ext(base))
	words := strings.FieldsFunc(base, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	seen := make(map[string]bool)
	var out []string
	for _, w := range words {
		w = strings.ToLower(w)
		if len(w) < 2 || filenameNoise[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return capLabels(out, d.max), nil
}
