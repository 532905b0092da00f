// Package storage defines the object storage used for uploaded photos.
package storage

import (
	"context"
	"io"

	"github.com/hyperjump/shashin/internal/models"
)

// MetadataCustomLabels is the user metadata key holding comma-separated custom labels.
const MetadataCustomLabels = "customlabels"

// Storage stores photo blobs with their metadata. Keys are unique per container.
type Storage interface {
	// PutObject stores body under obj.Container/obj.Key, replacing any existing object.
	// Size and CreatedAt are filled in on obj.
	PutObject(ctx context.Context, obj *models.Object, body io.Reader) error
	// HeadObject returns an object's metadata without its body.
	HeadObject(ctx context.Context, container, key string) (*models.Object, error)
	// OpenObject returns the object body; the caller closes it.
	OpenObject(ctx context.Context, container, key string) (io.ReadCloser, *models.Object, error)
	DeleteObject(ctx context.Context, container, key string) error
	ListObjects(ctx context.Context, container string, offset, limit int) ([]*models.Object, error)
	CountObjects(ctx context.Context) (int64, error)
	// Root is the directory that holds one sub-directory per container.
	Root() string
	Close() error
}
