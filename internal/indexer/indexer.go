// Package indexer turns stored photos into search index documents.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/shashin/internal/index"
	"github.com/hyperjump/shashin/internal/keyword"
	"github.com/hyperjump/shashin/internal/labels"
	"github.com/hyperjump/shashin/internal/metrics"
	"github.com/hyperjump/shashin/internal/models"
	"github.com/hyperjump/shashin/internal/objectid"
	"github.com/hyperjump/shashin/internal/storage"
)

// Indexer labels stored photos and upserts their documents into the index.
type Indexer struct {
	storage     storage.Storage
	detector    labels.Detector
	store       index.Store
	normalizer  *keyword.Normalizer
	metadataKey string
	maxLabels   int
	extensions  []string
	syncIndex   bool
	logger      *zap.Logger // optional; when set, logs debug events
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for debug output (photo indexed, document deleted, etc.).
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithMetadataKey sets the user metadata key read for custom labels.
func WithMetadataKey(key string) IndexerOption {
	return func(idx *Indexer) {
		if key != "" {
			idx.metadataKey = strings.ToLower(key)
		}
	}
}

// WithMaxLabels caps the number of detected labels kept per photo.
func WithMaxLabels(n int) IndexerOption {
	return func(idx *Indexer) {
		if n > 0 {
			idx.maxLabels = n
		}
	}
}

// WithExtensions restricts IndexFile and SyncExisting to these file extensions.
func WithExtensions(exts []string) IndexerOption {
	return func(idx *Indexer) { idx.extensions = exts }
}

// WithSyncIndexing makes Upload index the object before returning. Without it
// indexing is left to the storage watcher.
func WithSyncIndexing(on bool) IndexerOption {
	return func(idx *Indexer) { idx.syncIndex = on }
}

// WithNormalizer sets the normalizer whose singular rules shape stored
// labels. It should be the one the search engine uses.
func WithNormalizer(n *keyword.Normalizer) IndexerOption {
	return func(idx *Indexer) {
		if n != nil {
			idx.normalizer = n
		}
	}
}

// NewIndexer creates an indexer with the given dependencies.
func NewIndexer(st storage.Storage, detector labels.Detector, store index.Store, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		storage:     st,
		detector:    detector,
		store:       store,
		normalizer:  keyword.NewNormalizer(keyword.DefaultPolicy()),
		metadataKey: storage.MetadataCustomLabels,
		maxLabels:   labels.DefaultMaxLabels,
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

func (idx *Indexer) debug(msg string, fields ...zap.Field) {
	if idx.logger != nil {
		idx.logger.Debug(msg, fields...)
	}
}

// IndexObject handles an object-created event: it detects labels, reads the
// custom labels from the object's metadata, sanitizes and merges both, and
// upserts the photo document keyed by the object key.
func (idx *Indexer) IndexObject(ctx context.Context, ev *models.ObjectEvent) (*models.PhotoDocument, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	obj, err := idx.storage.HeadObject(ctx, ev.Container, ev.Key)
	if err != nil {
		idx.countFailure("index")
		if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrInvalidInput) {
			return nil, err
		}
		metrics.CollaboratorErrorsTotal.WithLabelValues("storage").Inc()
		return nil, models.CollaboratorError("storage", err)
	}

	detected, err := idx.detector.DetectLabels(ctx, ev.Container, ev.Key)
	if err != nil {
		idx.countFailure("index")
		metrics.CollaboratorErrorsTotal.WithLabelValues("labels").Inc()
		return nil, models.CollaboratorError("label detector", err)
	}
	if len(detected) > idx.maxLabels {
		detected = detected[:idx.maxLabels]
	}
	custom := keyword.SplitCustomLabels(obj.Metadata[idx.metadataKey])
	idx.debug("labels",
		zap.String("container", ev.Container),
		zap.String("key", ev.Key),
		zap.Strings("detected", detected),
		zap.Strings("custom", custom))

	createdAt := ev.EventTime
	if createdAt.IsZero() {
		createdAt = obj.CreatedAt
	}
	merged := idx.normalizer.Labels(detected, custom)
	if len(merged) == 0 {
		idx.countFailure("index")
		if idx.logger != nil {
			idx.logger.Warn("photo has no labels, not indexed",
				zap.String("container", ev.Container),
				zap.String("key", ev.Key))
		}
		return nil, models.InvalidInputf("object %s/%s has no labels", ev.Container, ev.Key)
	}
	doc := &models.PhotoDocument{
		ObjectKey:   ev.Key,
		ContainerID: ev.Container,
		CreatedAt:   createdAt.UTC(),
		Labels:      merged,
	}
	if err := idx.store.IndexDocument(ctx, objectid.DocID(ev.Key), doc); err != nil {
		idx.countFailure("index")
		metrics.CollaboratorErrorsTotal.WithLabelValues("index").Inc()
		return nil, models.CollaboratorError("document store", err)
	}
	metrics.PhotosIndexedTotal.WithLabelValues("index", "success").Inc()
	if idx.logger != nil {
		idx.logger.Info("photo indexed",
			zap.String("container", ev.Container),
			zap.String("key", ev.Key),
			zap.Strings("labels", doc.Labels))
	}
	return doc, nil
}

func (idx *Indexer) countFailure(op string) {
	metrics.PhotosIndexedTotal.WithLabelValues(op, "error").Inc()
}

// DeleteObject removes the photo document of an object from the index.
func (idx *Indexer) DeleteObject(ctx context.Context, container, key string) error {
	idx.debug("indexer deleting document", zap.String("container", container), zap.String("key", key))
	if err := idx.store.Delete(ctx, objectid.DocID(key)); err != nil {
		idx.countFailure("delete")
		metrics.CollaboratorErrorsTotal.WithLabelValues("index").Inc()
		return models.CollaboratorError("document store", err)
	}
	metrics.PhotosIndexedTotal.WithLabelValues("delete", "success").Inc()
	return nil
}

// Remove deletes the stored object and its document.
func (idx *Indexer) Remove(ctx context.Context, container, key string) error {
	if err := objectid.Validate(container, key); err != nil {
		return err
	}
	if err := idx.storage.DeleteObject(ctx, container, key); err != nil {
		metrics.CollaboratorErrorsTotal.WithLabelValues("storage").Inc()
		return models.CollaboratorError("storage", err)
	}
	return idx.DeleteObject(ctx, container, key)
}

// Upload stores an object. With sync indexing on, the returned document is
// the indexed one; otherwise it is nil and the watcher indexes the object.
func (idx *Indexer) Upload(ctx context.Context, obj *models.Object, body io.Reader) (*models.PhotoDocument, error) {
	if err := objectid.Validate(obj.Container, obj.Key); err != nil {
		return nil, err
	}
	if err := idx.storage.PutObject(ctx, obj, body); err != nil {
		metrics.CollaboratorErrorsTotal.WithLabelValues("storage").Inc()
		return nil, models.CollaboratorError("storage", err)
	}
	idx.debug("object stored", zap.String("container", obj.Container), zap.String("key", obj.Key), zap.Int64("size", obj.Size))
	if !idx.syncIndex {
		return nil, nil
	}
	return idx.IndexObject(ctx, &models.ObjectEvent{Container: obj.Container, Key: obj.Key, EventTime: obj.CreatedAt})
}

// IndexFile uploads a local file into container under its base name with the
// given custom labels, then indexes it regardless of the sync setting.
func (idx *Indexer) IndexFile(ctx context.Context, path, container string, customLabels []string) (*models.PhotoDocument, error) {
	idx.debug("indexer indexing file", zap.String("path", path))
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	if !idx.ExtensionAllowed(absPath) {
		return nil, models.InvalidInputf("extension %q not in allowed list", filepath.Ext(absPath))
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, models.InvalidInputf("not a regular file: %s", absPath)
	}
	f, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	obj := &models.Object{
		Container: container,
		Key:       filepath.Base(absPath),
		Metadata:  map[string]string{},
	}
	if len(customLabels) > 0 {
		obj.Metadata[idx.metadataKey] = strings.Join(customLabels, ",")
	}
	if err := objectid.Validate(obj.Container, obj.Key); err != nil {
		return nil, err
	}
	if err := idx.storage.PutObject(ctx, obj, f); err != nil {
		return nil, models.CollaboratorError("storage", err)
	}
	return idx.IndexObject(ctx, &models.ObjectEvent{Container: container, Key: obj.Key, EventTime: obj.CreatedAt})
}

// SyncExisting indexes objects under the storage root that have no document
// yet, e.g. photos copied in while the server was down. It returns the number
// of objects indexed and the first error encountered. Objects that yield no
// labels are skipped.
func (idx *Indexer) SyncExisting(ctx context.Context) (n int, err error) {
	root := idx.storage.Root()
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !idx.ExtensionAllowed(path) {
			return nil
		}
		container, key, err := objectid.FromPath(root, path)
		if err != nil {
			return nil
		}
		exists, err := idx.store.Exists(ctx, objectid.DocID(key))
		if err != nil {
			return models.CollaboratorError("document store", err)
		}
		if exists {
			return nil
		}
		if _, err := idx.IndexObject(ctx, &models.ObjectEvent{Container: container, Key: key}); err != nil {
			if errors.Is(err, models.ErrInvalidInput) {
				return nil
			}
			return err
		}
		n++
		return nil
	})
	return n, err
}

// ExtensionAllowed reports whether path has one of the configured extensions
// (case-insensitive). With no extensions configured every file is allowed.
func (idx *Indexer) ExtensionAllowed(path string) bool {
	if len(idx.extensions) == 0 {
		return true
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	for _, a := range idx.extensions {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == ext {
			return true
		}
	}
	return false
}
