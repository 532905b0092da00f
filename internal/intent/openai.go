package intent

import (
	"context"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperjump/shashin/internal/llm"
)

const intentPrompt = `You extract search keywords for a personal photo album.
Given the user's request, return the things they want to see in the photos as short keyword phrases.
Keep multi-word names together ("living room", "birthday cake"). Drop request words like "show me" or "photos of".
If the user asks for all photos, return ["all"]. If there is nothing to search for, return an empty list.
Answer with JSON only: {"keywords": ["...", ...]}`

// OpenAIExtractor asks a chat model for the keyword phrases.
type OpenAIExtractor struct {
	client *openai.Client
	model  string
}

// NewOpenAIExtractor returns an extractor using model through client.
func NewOpenAIExtractor(client *openai.Client, model string) *OpenAIExtractor {
	return &OpenAIExtractor{client: client, model: model}
}

// ExtractIntent implements Extractor.
func (e *OpenAIExtractor) ExtractIntent(ctx context.Context, text string) ([]string, error) {
	msgs := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: intentPrompt},
		{Role: openai.ChatMessageRoleUser, Content: text},
	}
	var out struct {
		Keywords []string `json:"keywords"`
	}
	if err := llm.CompleteJSON(ctx, e.client, e.model, msgs, &out); err != nil {
		return nil, err
	}
	var phrases []string
	for _, k := range out.Keywords {
		if k = strings.TrimSpace(k); k != "" {
			phrases = append(phrases, k)
		}
	}
	return phrases, nil
}
