//go:build cgo
// +build cgo

package labels

import (
	"context"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXDetector runs an image classification model with ONNX Runtime. It
// requires CGO and the onnxruntime shared library.
type ONNXDetector struct {
	session      *ort.AdvancedSession
	objects      ObjectOpener
	classes      []string
	max          int
	minProb      float32
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	mu           sync.Mutex
}

// NewONNXDetector loads the model and class names. InitializeEnvironment is
// called if not already done.
func NewONNXDetector(cfg ONNXConfig, objects ObjectOpener) (*ONNXDetector, error) {
	cfg.applyDefaults()
	f, err := os.Open(cfg.ClassesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open classes file: %w", err)
	}
	classes, err := readClasses(f)
	_ = f.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read classes file: %w", err)
	}

	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	}

	inputTensor, err := ort.NewTensor(ort.NewShape(1, 3, inputSize, inputSize), make([]float32, 3*inputSize*inputSize))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	outputTensor, err := ort.NewTensor(ort.NewShape(1, int64(len(classes))), make([]float32, len(classes)))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	session, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{cfg.InputName},
		[]string{cfg.OutputName},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		nil,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXDetector{
		session:      session,
		objects:      objects,
		classes:      classes,
		max:          cfg.MaxLabels,
		minProb:      cfg.MinConfidence,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

// DetectLabels implements Detector.
func (d *ONNXDetector) DetectLabels(ctx context.Context, container, key string) ([]string, error) {
	data, _, err := readObject(ctx, d.objects, container, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	input, err := imageTensor(data)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	copy(d.inputTensor.GetData(), input)
	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	probs := make([]float32, len(d.classes))
	copy(probs, d.outputTensor.GetData())
	softmax(probs)
	return topClasses(probs, d.classes, d.minProb, d.max), nil
}

// Close destroys the session and tensors.
func (d *ONNXDetector) Close() error {
	var err error
	if d.session != nil {
		err = d.session.Destroy()
		d.session = nil
	}
	if d.inputTensor != nil {
		_ = d.inputTensor.Destroy()
		d.inputTensor = nil
	}
	if d.outputTensor != nil {
		_ = d.outputTensor.Destroy()
		d.outputTensor = nil
	}
	return err
}
