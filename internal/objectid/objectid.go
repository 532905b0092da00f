// Package objectid maps storage objects to index document IDs and blob paths.
package objectid

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/hyperjump/shashin/internal/models"
)

// DocID returns the index document ID for an object key. The key is escaped
// as a URL path component, so "/" becomes "%2F" and IDs never nest.
func DocID(key string) string {
	return url.PathEscape(key)
}

// Validate rejects containers and keys that cannot be stored safely on disk.
func Validate(container, key string) error {
	if container == "" || strings.ContainsAny(container, `/\`) || container == "." || container == ".." || strings.HasPrefix(container, ".") {
		return models.InvalidInputf("invalid container %q", container)
	}
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return models.InvalidInputf("invalid object key %q", key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return models.InvalidInputf("invalid object key %q", key)
		}
	}
	return nil
}

// Path returns the blob path of an object under root.
func Path(root, container, key string) (string, error) {
	if err := Validate(container, key); err != nil {
		return "", err
	}
	return filepath.Join(root, container, filepath.FromSlash(key)), nil
}

// FromPath is the inverse of Path. It fails for paths outside root or directly in it.
func FromPath(root, path string) (container, key string, err error) {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil {
		return "", "", fmt.Errorf("relative path: %w", err)
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", "", fmt.Errorf("path %s is not under %s", path, root)
	}
	container, key, ok := strings.Cut(rel, "/")
	if !ok {
		return "", "", fmt.Errorf("path %s has no container directory", path)
	}
	if err := Validate(container, key); err != nil {
		return "", "", err
	}
	return container, key, nil
}
