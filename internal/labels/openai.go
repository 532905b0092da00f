package labels

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/hyperjump/shashin/internal/llm"
)

const visionPrompt = `List what is visible in this photo as short labels: objects, animals, people, scenery, activities.
Answer with JSON only: {"labels": ["label", ...]}, most prominent first, at most %d labels.`

// OpenAIDetector asks a vision chat model to label the image.
type OpenAIDetector struct {
	client  *openai.Client
	model   string
	objects ObjectOpener
	max     int
	logger  *zap.Logger
}

// OpenAIConfig configures an OpenAIDetector.
type OpenAIConfig struct {
	Client    *openai.Client
	Model     string
	MaxLabels int
	Logger    *zap.Logger
}

// NewOpenAIDetector returns a detector reading images from objects.
func NewOpenAIDetector(cfg OpenAIConfig, objects ObjectOpener) *OpenAIDetector {
	if cfg.MaxLabels <= 0 {
		cfg.MaxLabels = DefaultMaxLabels
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &OpenAIDetector{
		client:  cfg.Client,
		model:   cfg.Model,
		objects: objects,
		max:     cfg.MaxLabels,
		logger:  cfg.Logger,
	}
}

// DetectLabels implements Detector.
func (d *OpenAIDetector) DetectLabels(ctx context.Context, container, key string) ([]string, error) {
	data, obj, err := readObject(ctx, d.objects, container, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	contentType := obj.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	dataURL := "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)

	msgs := []openai.ChatCompletionMessage{{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: fmt.Sprintf(visionPrompt, d.max)},
			{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
				URL:    dataURL,
				Detail: openai.ImageURLDetailLow,
			}},
		},
	}}
	var out struct {
		Labels []string `json:"labels"`
	}
	if err := llm.CompleteJSON(ctx, d.client, d.model, msgs, &out); err != nil {
		return nil, err
	}
	d.logger.Debug("vision labels", zap.String("key", key), zap.Strings("labels", out.Labels))
	return capLabels(out.Labels, d.max), nil
}
