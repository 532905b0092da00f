package intent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperjump/shashin/internal/llm"
)

func TestRuleExtractor(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"dog", []string{"dog"}},
		{"Show me photos of dogs and cats", []string{"dogs", "cats"}},
		{"find pictures of the living room", []string{"the living room"}},
		{"beach, sunset or sea?", []string{"beach", "sunset", "sea"}},
		{"show me everything", []string{"everything"}},
		{"Can you please show me my photos", nil},
		{"   ", nil},
		{"*", []string{"*"}},
		{"birthday cake", []string{"birthday cake"}},
	}
	e := NewRuleExtractor()
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := e.ExtractIntent(context.Background(), tt.text)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractIntent(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestRuleExtractor_ExtraFillers(t *testing.T) {
	e := NewRuleExtractor("snapshots from")
	got, _ := e.ExtractIntent(context.Background(), "snapshots from paris")
	if !reflect.DeepEqual(got, []string{"paris"}) {
		t.Errorf("got %q", got)
	}
}

func TestOpenAIExtractor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatCompletionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) != 2 || req.Messages[1].Content != "show me dogs in the park" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{Content: `{"keywords":["dogs"," ","park"]}`},
			}},
		})
	}))
	defer srv.Close()

	e := NewOpenAIExtractor(llm.NewClient(llm.Config{APIKey: "k", BaseURL: srv.URL}), "chat")
	got, err := e.ExtractIntent(context.Background(), "show me dogs in the park")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []string{"dogs", "park"}) {
		t.Errorf("got %q", got)
	}
}

func TestCache(t *testing.T) {
	c := NewCache(2)
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected miss")
	}
	c.Set("a", []string{"x"})
	c.Set("b", []string{"y"})
	c.Get("a")
	c.Set("c", []string{"z"}) // evicts b
	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if v, ok := c.Get("a"); !ok || v[0] != "x" {
		t.Errorf("a: got %v, %v", v, ok)
	}
}

func TestCached(t *testing.T) {
	calls := 0
	fail := false
	next := Func(func(_ context.Context, text string) ([]string, error) {
		calls++
		if fail {
			return nil, errors.New("boom")
		}
		return []string{text}, nil
	})
	ex := Cached(next, NewCache(10))
	ctx := context.Background()

	first, _ := ex.ExtractIntent(ctx, "Dogs")
	first[0] = "mutated"
	second, _ := ex.ExtractIntent(ctx, " dogs ")
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if second[0] != "Dogs" {
		t.Errorf("cached value should not be shared with callers: %v", second)
	}

	fail = true
	if _, err := ex.ExtractIntent(ctx, "cats"); err == nil {
		t.Error("expected error")
	}
	fail = false
	if _, err := ex.ExtractIntent(ctx, "cats"); err != nil {
		t.Errorf("errors should not be cached: %v", err)
	}
}
