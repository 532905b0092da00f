package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/hyperjump/shashin/internal/models"
)

const photoType = "photo"

// BleveStore implements Store using Bleve. Labels are indexed with the keyword
// analyzer so a token only matches an identical label.
type BleveStore struct {
	index bleve.Index
}

// NewBleveStore creates or opens a Bleve index at path.
// If you change the index mapping in code, remove the index directory to force a full re-index.
func NewBleveStore(path string) (*BleveStore, error) {
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveStore{index: index}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}
	index, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveStore{index: index}, nil
}

// NewMemoryBleveStore creates an in-memory index.
func NewMemoryBleveStore() (*BleveStore, error) {
	index, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveStore{index: index}, nil
}

func newMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	keywordField := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt(FieldObjectKey, keywordField)
	docMapping.AddFieldMappingsAt(FieldContainer, keywordField)
	docMapping.AddFieldMappingsAt(FieldLabels, keywordField)
	docMapping.AddFieldMappingsAt(FieldCreatedAt, bleve.NewDateTimeFieldMapping())
	im.AddDocumentMapping(photoType, docMapping)
	im.DefaultType = photoType
	im.DefaultMapping = docMapping
	return im
}

// IndexDocument indexes doc by id. Bleve batches are applied synchronously, so
// the document is searchable when this returns.
func (b *BleveStore) IndexDocument(ctx context.Context, id string, doc *models.PhotoDocument) error {
	if err := b.index.Index(id, doc); err != nil {
		return fmt.Errorf("Bleve index failed: %w", err)
	}
	return nil
}

// Query runs q and returns at most q.Size documents, best match first and
// newest first among equal scores.
func (b *BleveStore) Query(ctx context.Context, q Query) ([]*models.PhotoDocument, error) {
	bq, err := buildQuery(q)
	if err != nil {
		return nil, err
	}
	req := bleve.NewSearchRequest(bq)
	req.Size = q.Size
	if req.Size <= 0 {
		req.Size = models.DefaultPageSize
	}
	req.Fields = q.Fields
	if req.Fields == nil {
		req.Fields = SourceFields
	}
	req.SortBy([]string{"-_score", "-" + FieldCreatedAt, "_id"})
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*models.PhotoDocument, 0, len(results.Hits))
	for _, hit := range results.Hits {
		out = append(out, documentFromFields(hit.Fields))
	}
	return out, nil
}

// buildQuery maps ALL to a conjunction and ANY to a disjunction of label term queries.
func buildQuery(q Query) (blevequery.Query, error) {
	if q.Mode == models.MatchEverything {
		return bleve.NewMatchAllQuery(), nil
	}
	if len(q.Tokens) == 0 {
		return nil, fmt.Errorf("%s query without tokens", q.Mode)
	}
	terms := make([]blevequery.Query, 0, len(q.Tokens))
	for _, tok := range q.Tokens {
		tq := bleve.NewTermQuery(tok)
		tq.SetField(FieldLabels)
		terms = append(terms, tq)
	}
	switch q.Mode {
	case models.MatchAll:
		return bleve.NewConjunctionQuery(terms...), nil
	case models.MatchAny:
		return bleve.NewDisjunctionQuery(terms...), nil
	default:
		return nil, fmt.Errorf("unknown match mode %q", q.Mode)
	}
}

// documentFromFields rebuilds a document from stored fields. A multi-valued
// field comes back as []interface{}, a single value as its scalar.
func documentFromFields(fields map[string]interface{}) *models.PhotoDocument {
	doc := &models.PhotoDocument{
		ObjectKey:   stringField(fields[FieldObjectKey]),
		ContainerID: stringField(fields[FieldContainer]),
		Labels:      stringsField(fields[FieldLabels]),
	}
	switch v := fields[FieldCreatedAt].(type) {
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			doc.CreatedAt = t
		}
	case time.Time:
		doc.CreatedAt = v
	}
	return doc
}

func stringField(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case []interface{}:
		if len(s) > 0 {
			return stringField(s[0])
		}
	}
	return ""
}

func stringsField(v interface{}) []string {
	switch s := v.(type) {
	case string:
		return []string{s}
	case []interface{}:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// Delete removes a document from the index.
func (b *BleveStore) Delete(ctx context.Context, id string) error {
	return b.index.Delete(id)
}

// Exists reports whether a document with id is indexed.
func (b *BleveStore) Exists(ctx context.Context, id string) (bool, error) {
	doc, err := b.index.Document(id)
	if err != nil {
		return false, fmt.Errorf("Bleve document lookup failed: %w", err)
	}
	return doc != nil, nil
}

// DocCount returns the total number of documents in the index.
func (b *BleveStore) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveStore) Close() error {
	return b.index.Close()
}
