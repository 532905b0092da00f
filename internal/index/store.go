// Package index provides the photo document store used by indexing and search.
package index

import (
	"context"

	"github.com/hyperjump/shashin/internal/models"
)

// Field names of the index schema.
const (
	FieldObjectKey = "objectKey"
	FieldContainer = "bucket"
	FieldCreatedAt = "createdTimestamp"
	FieldLabels    = "labels"
)

// SourceFields are the fields loaded for search results.
var SourceFields = []string{FieldObjectKey, FieldContainer, FieldCreatedAt, FieldLabels}

// Query is a single lookup against the store.
type Query struct {
	Mode   models.MatchMode
	Tokens []string
	// Fields restricts the loaded fields; nil loads SourceFields.
	Fields []string
	// Size caps the number of returned documents.
	Size int
}

// Store indexes and queries photo documents.
type Store interface {
	// IndexDocument upserts doc under id. The document is visible to the next Query.
	IndexDocument(ctx context.Context, id string, doc *models.PhotoDocument) error
	Query(ctx context.Context, q Query) ([]*models.PhotoDocument, error)
	Delete(ctx context.Context, id string) error
	Exists(ctx context.Context, id string) (bool, error)
	DocCount() (uint64, error)
	Close() error
}
