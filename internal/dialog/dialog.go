// Package dialog fulfills search requests coming from a conversational bot.
// Events and responses follow the Lex V2 fulfillment format.
package dialog

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/shashin/internal/models"
)

// Intent and slot names the bot is configured with.
const (
	SearchIntent = "SearchIntent"
	KeywordsSlot = "Keywords"
)

// Messages returned to the bot.
const (
	ElicitKeywordsMessage = "Please provide some keywords to search for photos."
	InternalErrorMessage  = "Internal server error"
)

// Dialog action types.
const (
	ActionClose      = "Close"
	ActionElicitSlot = "ElicitSlot"
)

// Event is a fulfillment request.
type Event struct {
	InputTranscript string           `json:"inputTranscript"`
	SessionState    SessionState     `json:"sessionState"`
	Interpretations []Interpretation `json:"interpretations"`
}

// SessionState carries the conversation state between bot and fulfillment.
type SessionState struct {
	SessionAttributes map[string]string `json:"sessionAttributes,omitempty"`
	Intent            *Intent           `json:"intent,omitempty"`
	DialogAction      *DialogAction     `json:"dialogAction,omitempty"`
}

// Interpretation is one way the bot understood the input.
type Interpretation struct {
	Intent *Intent `json:"intent"`
}

// Intent is a recognized intent with its slots. A slot the user did not fill is null.
type Intent struct {
	Name  string           `json:"name"`
	Slots map[string]*Slot `json:"slots"`
	State string           `json:"state,omitempty"`
}

// Slot holds the value recognized for a slot.
type Slot struct {
	Value *SlotValue `json:"value,omitempty"`
}

// SlotValue is the user's original text and the bot's interpretation of it.
type SlotValue struct {
	OriginalValue    string   `json:"originalValue,omitempty"`
	InterpretedValue string   `json:"interpretedValue"`
	ResolvedValues   []string `json:"resolvedValues,omitempty"`
}

// DialogAction tells the bot what to do next.
type DialogAction struct {
	Type         string `json:"type"`
	SlotToElicit string `json:"slotToElicit,omitempty"`
}

// Message is a message for the user.
type Message struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

// Response is a fulfillment response.
type Response struct {
	SessionState SessionState `json:"sessionState"`
	Messages     []Message    `json:"messages"`
}

// Searcher runs a photo search.
type Searcher interface {
	Search(ctx context.Context, req *models.SearchRequest) (*models.SearchResponse, error)
}

// Handler answers fulfillment events.
type Handler struct {
	searcher Searcher
	logger   *zap.Logger
}

// NewHandler returns a handler using searcher. A nil logger is silent.
func NewHandler(searcher Searcher, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{searcher: searcher, logger: logger}
}

var errNoTranscript = errors.New("input transcript not found in the event")

// Fulfill answers ev. Failures are reported to the user as a Close with a
// generic message; the cause is only logged.
func (h *Handler) Fulfill(ctx context.Context, ev *Event) *Response {
	intent := ev.currentIntent()
	if intent == nil || intent.Name != SearchIntent {
		h.logger.Warn("unsupported intent", zap.String("intent", intentName(intent)))
		return closeResponse(ev.SessionState, "Failed", InternalErrorMessage)
	}

	words, err := keywords(ev)
	if err != nil {
		h.logger.Error("dialog event rejected", zap.Error(err))
		return closeResponse(ev.SessionState, "Failed", InternalErrorMessage)
	}
	if len(words) == 0 {
		return elicitSlot(ev.SessionState, SearchIntent, KeywordsSlot, ElicitKeywordsMessage)
	}
	h.logger.Debug("dialog keywords", zap.Strings("keywords", words))

	resp, err := h.searcher.Search(ctx, &models.SearchRequest{Query: ev.InputTranscript, Phrases: words})
	if err != nil {
		h.logger.Error("dialog search failed", zap.Error(err))
		return closeResponse(ev.SessionState, "Failed", InternalErrorMessage)
	}
	body, err := json.Marshal(resp.Results)
	if err != nil {
		h.logger.Error("dialog results encoding failed", zap.Error(err))
		return closeResponse(ev.SessionState, "Failed", InternalErrorMessage)
	}
	return closeResponse(ev.SessionState, "Fulfilled", string(body))
}

func (ev *Event) currentIntent() *Intent {
	if len(ev.Interpretations) > 0 && ev.Interpretations[0].Intent != nil {
		return ev.Interpretations[0].Intent
	}
	return ev.SessionState.Intent
}

func intentName(i *Intent) string {
	if i == nil {
		return ""
	}
	return i.Name
}

// keywords returns the interpreted values of the filled slots, ordered by slot name.
func keywords(ev *Event) ([]string, error) {
	if strings.TrimSpace(ev.InputTranscript) == "" {
		return nil, errNoTranscript
	}
	slots := ev.currentIntent().Slots
	names := make([]string, 0, len(slots))
	for name := range slots {
		names = append(names, name)
	}
	sort.Strings(names)
	var out []string
	for _, name := range names {
		slot := slots[name]
		if slot == nil || slot.Value == nil {
			continue
		}
		if v := strings.TrimSpace(slot.Value.InterpretedValue); v != "" {
			out = append(out, v)
		}
	}
	return out, nil
}

func closeResponse(state SessionState, intentState, content string) *Response {
	if state.Intent != nil {
		intent := *state.Intent
		intent.State = intentState
		state.Intent = &intent
	}
	state.DialogAction = &DialogAction{Type: ActionClose}
	return &Response{
		SessionState: state,
		Messages:     []Message{{ContentType: "PlainText", Content: content}},
	}
}

func elicitSlot(state SessionState, name, slot, content string) *Response {
	intent := Intent{Name: name, Slots: map[string]*Slot{}}
	if state.Intent != nil {
		intent.State = state.Intent.State
	}
	state.Intent = &intent
	state.DialogAction = &DialogAction{Type: ActionElicitSlot, SlotToElicit: slot}
	return &Response{
		SessionState: state,
		Messages:     []Message{{ContentType: "PlainText", Content: content}},
	}
}
