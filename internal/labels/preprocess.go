package labels

import (
	"bufio"
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"sort"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Classifier input geometry and ImageNet normalization.
const inputSize = 224

var (
	imageMean = [3]float32{0.485, 0.456, 0.406}
	imageStd  = [3]float32{0.229, 0.224, 0.225}
)

// imageTensor decodes data and returns a 1x3x224x224 NCHW float tensor.
func imageTensor(data []byte) ([]float32, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	dst := image.NewRGBA(image.Rect(0, 0, inputSize, inputSize))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	plane := inputSize * inputSize
	out := make([]float32, 3*plane)
	for y := 0; y < inputSize; y++ {
		for x := 0; x < inputSize; x++ {
			i := dst.PixOffset(x, y)
			p := y*inputSize + x
			for c := 0; c < 3; c++ {
				v := float32(dst.Pix[i+c]) / 255
				out[c*plane+p] = (v - imageMean[c]) / imageStd[c]
			}
		}
	}
	return out, nil
}

// softmax converts logits to probabilities in place.
func softmax(x []float32) {
	if len(x) == 0 {
		return
	}
	max := x[0]
	for _, v := range x[1:] {
		if v > max {
			max = v
		}
	}
	var sum float64
	for i, v := range x {
		e := math.Exp(float64(v - max))
		x[i] = float32(e)
		sum += e
	}
	for i := range x {
		x[i] = float32(float64(x[i]) / sum)
	}
}

type scoredClass struct {
	index int
	prob  float32
}

// topClasses returns class names with probability >= minProb, best first, at most max.
func topClasses(probs []float32, classes []string, minProb float32, max int) []string {
	scored := make([]scoredClass, 0, len(probs))
	for i, p := range probs {
		if i < len(classes) && p >= minProb {
			scored = append(scored, scoredClass{index: i, prob: p})
		}
	}
	sort.SliceStable(scored, func(a, b int) bool { return scored[a].prob > scored[b].prob })
	var out []string
	for _, s := range scored {
		out = append(out, classes[s.index])
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}

// readClasses reads one class name per line. For ImageNet-style lines
// ("n02084071 dog, domestic dog") only the first synonym is kept.
func readClasses(r io.Reader) ([]string, error) {
	var classes []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if id, rest, ok := strings.Cut(line, " "); ok && isSynsetID(id) {
			line = rest
		}
		if first, _, ok := strings.Cut(line, ","); ok {
			line = first
		}
		classes = append(classes, strings.TrimSpace(line))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(classes) == 0 {
		return nil, fmt.Errorf("no class names found")
	}
	return classes, nil
}

func isSynsetID(s string) bool {
	if len(s) != 9 || s[0] != 'n' {
		return false
	}
	for _, r := range s[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
