// Package models defines core data structures for photos, storage objects, and search results.
package models

import "time"

// PhotoDocument is the unit stored in and retrieved from the search index.
// Field names follow the index schema ("bucket" holds the container id).
type PhotoDocument struct {
	ObjectKey   string    `json:"objectKey"`
	ContainerID string    `json:"bucket"`
	CreatedAt   time.Time `json:"createdTimestamp"`
	Labels      []string  `json:"labels"`
}

// PhotoResult is the caller-visible projection of a PhotoDocument.
type PhotoResult struct {
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`
	Labels    []string  `json:"labels"`
}

// Object describes a stored blob and its user metadata.
type Object struct {
	Container   string            `json:"container"`
	Key         string            `json:"key"`
	ContentType string            `json:"content_type"`
	Size        int64             `json:"size"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// ObjectEvent identifies a newly created object. It is the input of upload-time indexing.
type ObjectEvent struct {
	Container string
	Key       string
	EventTime time.Time
}

// Validate returns ErrInvalidInput when the event does not identify an object.
func (e *ObjectEvent) Validate() error {
	if e.Container == "" {
		return InvalidInputf("event container is empty")
	}
	if e.Key == "" {
		return InvalidInputf("event object key is empty")
	}
	return nil
}
