package models

import "strings"

// MatchMode selects how a token set is matched against a document's labels.
type MatchMode string

const (
	// MatchAll requires every token to be among the labels.
	MatchAll MatchMode = "ALL"
	// MatchAny requires at least one token to be among the labels.
	MatchAny MatchMode = "ANY"
	// MatchEverything applies no keyword filter.
	MatchEverything MatchMode = "EVERYTHING"
)

// DefaultPageSize caps every query issued to the index.
const DefaultPageSize = 100

// SearchRequest is a search request from the HTTP API or the CLI.
type SearchRequest struct {
	// Query is the raw user text.
	Query string `json:"q"`
	// Phrases, when non-nil, are used instead of running intent extraction.
	Phrases []string `json:"phrases,omitempty"`
}

// Validate trims the query and rejects an empty one.
func (r *SearchRequest) Validate() error {
	r.Query = strings.TrimSpace(r.Query)
	if r.Query == "" {
		return InvalidInputf("query cannot be empty")
	}
	return nil
}

// SearchResponse wraps the projected results of a search.
type SearchResponse struct {
	Query   string         `json:"query"`
	Attempt string         `json:"attempt,omitempty"`
	Results []*PhotoResult `json:"results"`
	// QueryTime is the search duration in milliseconds.
	QueryTime int64 `json:"query_time_ms"`
}
