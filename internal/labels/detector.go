// Package labels detects descriptive labels for stored photos.
package labels

import (
	"context"
	"io"

	"github.com/hyperjump/shashin/internal/models"
)

// DefaultMaxLabels caps the labels returned by a detector.
const DefaultMaxLabels = 10

// Detector returns raw labels for a stored object. Callers sanitize them.
type Detector interface {
	DetectLabels(ctx context.Context, container, key string) ([]string, error)
}

// ObjectOpener reads stored objects. storage.Storage satisfies it.
type ObjectOpener interface {
	OpenObject(ctx context.Context, container, key string) (io.ReadCloser, *models.Object, error)
}

// maxImageBytes bounds how much of an object a detector reads.
const maxImageBytes = 20 << 20

func readObject(ctx context.Context, objects ObjectOpener, container, key string) ([]byte, *models.Object, error) {
	rc, obj, err := objects.OpenObject(ctx, container, key)
	if err != nil {
		return nil, nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, maxImageBytes))
	if err != nil {
		return nil, nil, err
	}
	return data, obj, nil
}

func capLabels(labels []string, max int) []string {
	if max > 0 && len(labels) > max {
		return labels[:max]
	}
	return labels
}
