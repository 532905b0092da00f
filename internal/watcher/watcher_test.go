package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hyperjump/shashin/internal/models"
)

// recorder collects watcher callbacks.
type recorder struct {
	mu      sync.Mutex
	created []models.ObjectEvent
	removed []string
}

func (r *recorder) onCreated(ev *models.ObjectEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, *ev)
}

func (r *recorder) onRemoved(container, key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, container+"/"+key)
}

func (r *recorder) createdKeys() map[string]bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]bool)
	for _, ev := range r.created {
		out[ev.Container+"/"+ev.Key] = true
	}
	return out
}

func (r *recorder) removedKeys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.removed...)
}

func startWatcher(t *testing.T, root string, exts []string) *recorder {
	t.Helper()
	rec := &recorder{}
	w := NewWatcher(root, exts, rec.onCreated, rec.onRemoved, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Start(ctx); err != nil {
		cancel()
		t.Fatal(err)
	}
	t.Cleanup(func() {
		cancel()
		w.Stop()
	})
	return rec
}

// eventually polls cond for up to two seconds.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Error(msg)
}

func TestWatcher_ReportsCreatedObjects(t *testing.T) {
	root := t.TempDir()
	album := filepath.Join(root, "album")
	if err := os.MkdirAll(album, 0755); err != nil {
		t.Fatal(err)
	}
	rec := startWatcher(t, root, []string{".jpg"})

	if err := os.WriteFile(filepath.Join(album, "dog.jpg"), []byte("img"), 0600); err != nil {
		t.Fatal(err)
	}
	_ = os.WriteFile(filepath.Join(album, "notes.txt"), []byte("x"), 0600)
	_ = os.WriteFile(filepath.Join(root, "stray.jpg"), []byte("x"), 0600)

	eventually(t, func() bool { return rec.createdKeys()["album/dog.jpg"] }, "album/dog.jpg not reported")
	time.Sleep(150 * time.Millisecond)
	keys := rec.createdKeys()
	if keys["album/notes.txt"] {
		t.Error("extension filter should skip notes.txt")
	}
	if len(keys) != 1 {
		t.Errorf("created = %v, want only album/dog.jpg", keys)
	}
	rec.mu.Lock()
	if rec.created[0].EventTime.IsZero() {
		t.Error("event time should be set")
	}
	rec.mu.Unlock()
}

func TestWatcher_NewContainerDirectory(t *testing.T) {
	root := t.TempDir()
	rec := startWatcher(t, root, []string{".jpg"})

	nested := filepath.Join(root, "trip", "2023", "day1")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(nested, "beach.jpg"), []byte("img"), 0600); err != nil {
		t.Fatal(err)
	}
	eventually(t, func() bool { return rec.createdKeys()["trip/2023/day1/beach.jpg"] }, "nested photo not reported")
}

func TestWatcher_DebouncesWrites(t *testing.T) {
	root := t.TempDir()
	album := filepath.Join(root, "album")
	_ = os.MkdirAll(album, 0755)
	rec := startWatcher(t, root, nil)

	path := filepath.Join(album, "big.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		_, _ = f.Write([]byte("chunk"))
		time.Sleep(5 * time.Millisecond)
	}
	_ = f.Close()

	eventually(t, func() bool { return rec.createdKeys()["album/big.png"] }, "big.png not reported")
	time.Sleep(150 * time.Millisecond)
	rec.mu.Lock()
	n := len(rec.created)
	rec.mu.Unlock()
	if n != 1 {
		t.Errorf("created events = %d, want 1 after debouncing", n)
	}
}

func TestWatcher_ReportsRemovals(t *testing.T) {
	root := t.TempDir()
	album := filepath.Join(root, "album")
	_ = os.MkdirAll(album, 0755)
	path := filepath.Join(album, "old.jpg")
	_ = os.WriteFile(path, []byte("img"), 0600)
	rec := startWatcher(t, root, []string{".jpg"})

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	eventually(t, func() bool {
		r := rec.removedKeys()
		return len(r) == 1 && r[0] == "album/old.jpg"
	}, "removal not reported")
}

func TestWatcher_IgnoresHiddenDirectories(t *testing.T) {
	root := t.TempDir()
	rec := startWatcher(t, root, nil)
	hiddenDir := filepath.Join(root, "album", ".thumbs")
	_ = os.MkdirAll(hiddenDir, 0755)
	_ = os.WriteFile(filepath.Join(hiddenDir, "t.jpg"), []byte("x"), 0600)
	_ = os.WriteFile(filepath.Join(root, "album", "shown.jpg"), []byte("x"), 0600)

	eventually(t, func() bool { return rec.createdKeys()["album/shown.jpg"] }, "shown.jpg not reported")
	if rec.createdKeys()["album/.thumbs/t.jpg"] {
		t.Error("files in hidden directories should be ignored")
	}
}

func TestSyncDirectory_SkipsHiddenDirectories(t *testing.T) {
	root := t.TempDir()
	album := filepath.Join(root, "album")
	for _, dir := range []string{filepath.Join(album, ".thumbs"), filepath.Join(album, "2023", ".cache")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
		_ = os.WriteFile(filepath.Join(dir, "t.jpg"), []byte("x"), 0600)
	}
	_ = os.WriteFile(filepath.Join(album, "2023", "shown.jpg"), []byte("x"), 0600)

	rec := &recorder{}
	w := NewWatcher(root, nil, rec.onCreated, rec.onRemoved, WithDebounce(10*time.Millisecond))
	w.syncDirectory(album)

	eventually(t, func() bool { return rec.createdKeys()["album/2023/shown.jpg"] }, "shown.jpg not reported")
	time.Sleep(50 * time.Millisecond)
	keys := rec.createdKeys()
	if len(keys) != 1 {
		t.Errorf("reported %v, want only album/2023/shown.jpg", keys)
	}
}

func TestWatcher_StartCreatesMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "watch", "me")
	startWatcher(t, root, nil)
	if _, err := os.Stat(root); err != nil {
		t.Errorf("root directory should exist after Start: %v", err)
	}
}

func TestMatchExtension(t *testing.T) {
	tests := []struct {
		path       string
		extensions []string
		want       bool
	}{
		{"/a/b.jpg", []string{".jpg"}, true},
		{"/a/b.JPG", []string{"jpg"}, true},
		{"/a/b.png", []string{".jpg"}, false},
		{"/a/b", nil, true},
		{"/a/b", []string{}, true},
	}
	for _, tt := range tests {
		if got := matchExtension(tt.path, tt.extensions); got != tt.want {
			t.Errorf("matchExtension(%q, %v) = %v, want %v", tt.path, tt.extensions, got, tt.want)
		}
	}
}

func TestInDirAndHidden(t *testing.T) {
	if !inDir("/tmp/a", "/tmp/a/b.jpg") || inDir("/tmp/a", "/tmp/b") || inDir("/tmp/a", "/tmp/a/../b") {
		t.Error("inDir mismatch")
	}
	if !hidden("/r", "/r/c/.x/y.jpg") || hidden("/r", "/r/c/y.jpg") {
		t.Error("hidden mismatch")
	}
}
