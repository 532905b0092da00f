//go:build !cgo
// +build !cgo

package labels

import (
	"context"
	"errors"
)

var errNoCGO = errors.New("ONNX label detector requires CGO; build with CGO_ENABLED=1 and onnxruntime")

// ONNXDetector stub type when built without CGO (see onnx.go for real implementation).
type ONNXDetector struct{}

// NewONNXDetector returns an error when built without CGO.
func NewONNXDetector(_ ONNXConfig, _ ObjectOpener) (*ONNXDetector, error) {
	return nil, errNoCGO
}

// DetectLabels implements Detector.
func (d *ONNXDetector) DetectLabels(_ context.Context, _, _ string) ([]string, error) {
	return nil, errNoCGO
}

// Close is a no-op.
func (d *ONNXDetector) Close() error { return nil }
