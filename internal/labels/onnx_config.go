package labels

// ONNXConfig configures an ONNXDetector.
type ONNXConfig struct {
	ModelPath   string
	ClassesPath string
	// InputName and OutputName are the model's tensor names.
	InputName     string
	OutputName    string
	MaxLabels     int
	MinConfidence float32
}

func (c *ONNXConfig) applyDefaults() {
	if c.InputName == "" {
		c.InputName = "input"
	}
	if c.OutputName == "" {
		c.OutputName = "output"
	}
	if c.MaxLabels <= 0 {
		c.MaxLabels = DefaultMaxLabels
	}
}
