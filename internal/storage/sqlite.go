package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/shashin/internal/models"
	"github.com/hyperjump/shashin/internal/objectid"
)

const defaultContentType = "application/octet-stream"

// DiskStore implements Storage with blobs on disk and metadata rows in SQLite.
// Blobs are written to a staging directory next to the root and renamed into
// place after their metadata row is committed, so a watcher on the root only
// ever sees complete objects with metadata.
type DiskStore struct {
	db      *sql.DB
	root    string
	staging string
}

// NewDiskStore opens or creates the blob root and the SQLite database at dbPath.
// Parent directories are created if they do not exist.
func NewDiskStore(root, dbPath string) (*DiskStore, error) {
	root = filepath.Clean(root)
	staging := filepath.Join(filepath.Dir(root), ".staging")
	for _, dir := range []string{root, staging, filepath.Dir(dbPath)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &DiskStore{db: db, root: root, staging: staging}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS objects (
		container TEXT NOT NULL,
		key TEXT NOT NULL,
		content_type TEXT NOT NULL,
		size INTEGER NOT NULL,
		metadata TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (container, key)
	);

	CREATE INDEX IF NOT EXISTS idx_objects_created_at ON objects(created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// Root returns the blob root directory.
func (s *DiskStore) Root() string {
	return s.root
}

// PutObject writes the blob, upserts its row, then moves the blob into place.
func (s *DiskStore) PutObject(ctx context.Context, obj *models.Object, body io.Reader) error {
	dest, err := objectid.Path(s.root, obj.Container, obj.Key)
	if err != nil {
		return err
	}
	tmp := filepath.Join(s.staging, uuid.New().String())
	size, err := writeFile(tmp, body)
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write blob: %w", err)
	}
	obj.Size = size
	if obj.ContentType == "" {
		obj.ContentType = contentTypeByExtension(obj.Key)
	}
	if obj.CreatedAt.IsZero() {
		obj.CreatedAt = time.Now().UTC()
	}
	obj.Metadata = lowerKeys(obj.Metadata)
	metadataJSON, err := json.Marshal(obj.Metadata)
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO objects (container, key, content_type, size, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(container, key) DO UPDATE SET
		 	content_type = excluded.content_type,
		 	size = excluded.size,
		 	metadata = excluded.metadata,
		 	created_at = excluded.created_at`,
		obj.Container, obj.Key, obj.ContentType, obj.Size, string(metadataJSON), obj.CreatedAt,
	)
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to store object row: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to create container directory: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to move blob into place: %w", err)
	}
	return nil
}

func writeFile(path string, body io.Reader) (int64, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	return n, err
}

// HeadObject returns the object's row. A blob without a row (copied straight
// into the root) is described from the file itself with empty metadata.
func (s *DiskStore) HeadObject(ctx context.Context, container, key string) (*models.Object, error) {
	path, err := objectid.Path(s.root, container, key)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("object %s/%s: %w", container, key, models.ErrNotFound)
		}
		return nil, err
	}
	obj, err := s.getRow(ctx, container, key)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.Object{
			Container:   container,
			Key:         key,
			ContentType: contentTypeByExtension(key),
			Size:        info.Size(),
			Metadata:    map[string]string{},
			CreatedAt:   info.ModTime().UTC(),
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func (s *DiskStore) getRow(ctx context.Context, container, key string) (*models.Object, error) {
	var obj models.Object
	var metadataJSON sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT container, key, content_type, size, metadata, created_at
		 FROM objects WHERE container = ? AND key = ?`, container, key,
	).Scan(&obj.Container, &obj.Key, &obj.ContentType, &obj.Size, &metadataJSON, &obj.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := decodeMetadata(metadataJSON, &obj); err != nil {
		return nil, err
	}
	return &obj, nil
}

func decodeMetadata(raw sql.NullString, obj *models.Object) error {
	obj.Metadata = map[string]string{}
	if !raw.Valid || raw.String == "" || raw.String == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw.String), &obj.Metadata); err != nil {
		return fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return nil
}

// OpenObject opens the blob for reading.
func (s *DiskStore) OpenObject(ctx context.Context, container, key string) (io.ReadCloser, *models.Object, error) {
	obj, err := s.HeadObject(ctx, container, key)
	if err != nil {
		return nil, nil, err
	}
	path, _ := objectid.Path(s.root, container, key)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("object %s/%s: %w", container, key, models.ErrNotFound)
		}
		return nil, nil, err
	}
	return f, obj, nil
}

// DeleteObject removes the blob and its row. Deleting a missing object is not an error.
func (s *DiskStore) DeleteObject(ctx context.Context, container, key string) error {
	path, err := objectid.Path(s.root, container, key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove blob: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM objects WHERE container = ? AND key = ?`, container, key)
	return err
}

// ListObjects returns objects of a container, newest first. An empty container lists all.
func (s *DiskStore) ListObjects(ctx context.Context, container string, offset, limit int) ([]*models.Object, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT container, key, content_type, size, metadata, created_at
		 FROM objects WHERE (? = '' OR container = ?)
		 ORDER BY created_at DESC, key LIMIT ? OFFSET ?`,
		container, container, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var objs []*models.Object
	for rows.Next() {
		var obj models.Object
		var metadataJSON sql.NullString
		if err := rows.Scan(&obj.Container, &obj.Key, &obj.ContentType, &obj.Size, &metadataJSON, &obj.CreatedAt); err != nil {
			return nil, err
		}
		if err := decodeMetadata(metadataJSON, &obj); err != nil {
			return nil, err
		}
		objs = append(objs, &obj)
	}
	return objs, rows.Err()
}

// CountObjects returns the number of object rows.
func (s *DiskStore) CountObjects(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM objects`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *DiskStore) Close() error {
	return s.db.Close()
}

func contentTypeByExtension(key string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(key))); ct != "" {
		return ct
	}
	return defaultContentType
}

func lowerKeys(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[strings.ToLower(k)] = v
	}
	return out
}
