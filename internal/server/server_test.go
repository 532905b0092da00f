package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/shashin/internal/config"
	"github.com/hyperjump/shashin/internal/index"
	"github.com/hyperjump/shashin/internal/indexer"
	"github.com/hyperjump/shashin/internal/intent"
	"github.com/hyperjump/shashin/internal/keyword"
	"github.com/hyperjump/shashin/internal/labels"
	"github.com/hyperjump/shashin/internal/models"
	"github.com/hyperjump/shashin/internal/objectid"
	"github.com/hyperjump/shashin/internal/search"
	"github.com/hyperjump/shashin/internal/signer"
	"github.com/hyperjump/shashin/internal/storage"
)

type testServer struct {
	srv     *Server
	handler http.Handler
	storage *storage.DiskStore
	docs    *index.BleveStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{Storage: config.StorageConfig{
		Root:         filepath.Join(dir, "photos"),
		DatabasePath: filepath.Join(dir, "objects.db"),
		IndexPath:    filepath.Join(dir, "index.bleve"),
	}}
	config.ApplyDefaults(cfg)

	st, err := storage.NewDiskStore(cfg.Storage.Root, cfg.Storage.DatabasePath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })
	docs, err := index.NewMemoryBleveStore()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = docs.Close() })
	sig, err := signer.NewHMACSigner("http://photos.test", []byte("secret"))
	if err != nil {
		t.Fatal(err)
	}
	engine := search.NewEngine(docs, keyword.NewNormalizer(keyword.DefaultPolicy()), sig,
		search.WithExtractor(intent.NewRuleExtractor()))
	idx := indexer.NewIndexer(st, labels.NewFilenameDetector(10), docs, indexer.WithSyncIndexing(true))
	srv := NewServer(engine, idx, st, docs, sig, cfg, nil)
	return &testServer{srv: srv, handler: srv.Handler(), storage: st, docs: docs}
}

func (ts *testServer) do(t *testing.T, method, target string, body io.Reader, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, target, body)
	for k, v := range header {
		r.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, r)
	return w
}

func (ts *testServer) upload(t *testing.T, container, key, customLabels string) map[string]interface{} {
	t.Helper()
	w := ts.do(t, http.MethodPut, "/upload/"+container+"/"+key, strings.NewReader("jpeg bytes of "+key), map[string]string{
		"Content-Type":            "image/jpeg",
		"x-amz-meta-customLabels": customLabels,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("upload %s: status %d: %s", key, w.Code, w.Body.String())
	}
	var out map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	return out
}

func (ts *testServer) search(t *testing.T, q string) []models.PhotoResult {
	t.Helper()
	w := ts.do(t, http.MethodGet, "/search?q="+url.QueryEscape(q), nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search %q: status %d: %s", q, w.Code, w.Body.String())
	}
	var results []models.PhotoResult
	if err := json.NewDecoder(w.Body).Decode(&results); err != nil {
		t.Fatal(err)
	}
	return results
}

func TestHandleSearch_MissingQuery(t *testing.T) {
	ts := newTestServer(t)
	for _, target := range []string{"/search", "/search?q=%20%20"} {
		w := ts.do(t, http.MethodGet, target, nil, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status %d, want 400", target, w.Code)
		}
	}
}

func TestUploadSearchAndServePhoto(t *testing.T) {
	ts := newTestServer(t)
	out := ts.upload(t, "album", "dog.jpg", "Max, pet")
	if out["status"] != "indexed" {
		t.Fatalf("upload response = %v", out)
	}
	ts.upload(t, "album", "sunset.jpg", "")

	results := ts.search(t, "show me pets")
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	got := results[0]
	if strings.Join(got.Labels, ",") != "dog,max,pet" {
		t.Errorf("labels = %v", got.Labels)
	}
	u, err := url.Parse(got.URL)
	if err != nil {
		t.Fatal(err)
	}
	if u.Host != "photos.test" || u.Path != "/photos/album/dog.jpg" {
		t.Errorf("url = %s", got.URL)
	}

	w := ts.do(t, http.MethodGet, u.RequestURI(), nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("photo status %d: %s", w.Code, w.Body.String())
	}
	if w.Body.String() != "jpeg bytes of dog.jpg" {
		t.Errorf("photo body = %q", w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("content type = %q", ct)
	}

	q := u.Query()
	q.Set(signer.ParamSignature, strings.Repeat("0", 64))
	w = ts.do(t, http.MethodGet, u.Path+"?"+q.Encode(), nil, nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("tampered signature: status %d, want 403", w.Code)
	}
	w = ts.do(t, http.MethodGet, "/photos/album/dog.jpg", nil, nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("unsigned: status %d, want 403", w.Code)
	}
}

func TestSearch_NoMatchIsEmptyArray(t *testing.T) {
	ts := newTestServer(t)
	ts.upload(t, "album", "dog.jpg", "")
	w := ts.do(t, http.MethodGet, "/search?q=giraffe", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if body := strings.TrimSpace(w.Body.String()); body != "[]" {
		t.Errorf("body = %s, want []", body)
	}
}

func TestSearch_Everything(t *testing.T) {
	ts := newTestServer(t)
	ts.upload(t, "album", "dog.jpg", "")
	ts.upload(t, "album", "cat.jpg", "")
	if got := ts.search(t, "*"); len(got) != 2 {
		t.Errorf("got %d results, want 2", len(got))
	}
}

func TestSearch_PluralLabels(t *testing.T) {
	ts := newTestServer(t)
	out := ts.upload(t, "album", "beach_dogs.jpg", "Puppies,Flowers")
	if out["status"] != "indexed" {
		t.Fatalf("upload response = %v", out)
	}
	for _, q := range []string{"puppies", "dogs", "flowers", "beach", "show me puppies and flowers"} {
		results := ts.search(t, q)
		if len(results) != 1 {
			t.Errorf("search %q: got %d results, want 1", q, len(results))
			continue
		}
		if got := strings.Join(results[0].Labels, ","); got != "beach,dog,puppy,flower" {
			t.Errorf("search %q: labels = %s", q, got)
		}
	}
}

func TestHandleUpload_NoLabels(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodPut, "/upload/album/IMG_0001.jpg", strings.NewReader("x"), map[string]string{"Content-Type": "image/jpeg"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status %d, want 400: %s", w.Code, w.Body.String())
	}
	if ok, _ := ts.docs.Exists(context.Background(), objectid.DocID("IMG_0001.jpg")); ok {
		t.Error("a photo without labels should not be indexed")
	}
}

func TestHandleUploadGenerated(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodPost, "/upload/album", strings.NewReader("png"), map[string]string{
		"Content-Type":            "image/png",
		"x-amz-meta-customLabels": "screenshot",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var out map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	key, _ := out["key"].(string)
	if !strings.HasSuffix(key, ".png") || len(key) != 36+len(".png") {
		t.Errorf("key = %q", key)
	}

	w = ts.do(t, http.MethodPost, "/upload/album", strings.NewReader("x"), map[string]string{"Content-Type": "text/plain"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("text upload: status %d, want 400", w.Code)
	}
}

func TestHandleUpload_InvalidKey(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodPut, "/upload/.hidden/a.jpg", strings.NewReader("x"), map[string]string{"Content-Type": "image/jpeg"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status %d, want 400", w.Code)
	}
}

func storageEventBody(container, key string) string {
	return `{"Records":[{"eventName":"ObjectCreated:Put","eventTime":"2024-05-01T10:00:00.000Z",` +
		`"s3":{"bucket":{"name":"` + container + `"},"object":{"key":"` + key + `"}}}]}`
}

func TestHandleEvents(t *testing.T) {
	ts := newTestServer(t)
	obj := &models.Object{Container: "album", Key: "beach day.jpg", Metadata: map[string]string{storage.MetadataCustomLabels: "summer"}}
	if err := ts.storage.PutObject(context.Background(), obj, strings.NewReader("x")); err != nil {
		t.Fatal(err)
	}

	w := ts.do(t, http.MethodPost, "/api/v1/events", strings.NewReader(storageEventBody("album", "beach+day.jpg")), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	ok, err := ts.docs.Exists(context.Background(), objectid.DocID("beach day.jpg"))
	if err != nil || !ok {
		t.Fatalf("document not indexed: %v", err)
	}
	results := ts.search(t, "summer")
	if len(results) != 1 || results[0].CreatedAt.Format("2006-01-02T15:04") != "2024-05-01T10:00" {
		t.Errorf("results = %+v", results)
	}
}

func TestHandleEvents_Errors(t *testing.T) {
	ts := newTestServer(t)
	tests := []struct {
		name string
		body string
		want int
	}{
		{"not json", "{", http.StatusBadRequest},
		{"no records", `{"Records":[]}`, http.StatusBadRequest},
		{"missing container", storageEventBody("", "a.jpg"), http.StatusBadRequest},
		{"missing object", storageEventBody("album", "nope.jpg"), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, "/api/v1/events", strings.NewReader(tt.body), nil)
			if w.Code != tt.want {
				t.Errorf("status %d, want %d: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestHandleInspectEvent(t *testing.T) {
	ts := newTestServer(t)
	ts.upload(t, "album", "dog.jpg", "")

	w := ts.do(t, http.MethodPost, "/api/v1/events/inspect", strings.NewReader(storageEventBody("album", "dog.jpg")), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var out map[string]string
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out["contentType"] != "image/jpeg" {
		t.Errorf("contentType = %q", out["contentType"])
	}

	w = ts.do(t, http.MethodPost, "/api/v1/events/inspect", strings.NewReader(storageEventBody("album", "missing.jpg")), nil)
	if w.Code != http.StatusInternalServerError || !strings.Contains(w.Body.String(), "missing.jpg") {
		t.Errorf("missing object: status %d body %s", w.Code, w.Body.String())
	}
}

func TestHandleDialog(t *testing.T) {
	ts := newTestServer(t)
	ts.upload(t, "album", "dog.jpg", "")
	body := `{"inputTranscript":"show me dogs","sessionState":{},"interpretations":[{"intent":{"name":"SearchIntent",` +
		`"slots":{"Keywords":{"value":{"originalValue":"dogs","interpretedValue":"dogs"}}}}}]}`
	w := ts.do(t, http.MethodPost, "/api/v1/dialog", strings.NewReader(body), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		SessionState struct {
			DialogAction struct {
				Type string `json:"type"`
			} `json:"dialogAction"`
		} `json:"sessionState"`
		Messages []struct {
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.SessionState.DialogAction.Type != "Close" || len(resp.Messages) != 1 {
		t.Fatalf("response = %+v", resp)
	}
	if !strings.Contains(resp.Messages[0].Content, "/photos/album/dog.jpg") {
		t.Errorf("message = %s", resp.Messages[0].Content)
	}

	w = ts.do(t, http.MethodPost, "/api/v1/dialog", strings.NewReader("nope"), nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad body: status %d", w.Code)
	}
}

func TestHandleDeletePhoto(t *testing.T) {
	ts := newTestServer(t)
	ts.upload(t, "album", "trips/dog.jpg", "")
	if len(ts.search(t, "dog")) != 1 {
		t.Fatal("expected the uploaded photo to be searchable")
	}
	w := ts.do(t, http.MethodDelete, "/api/v1/photos/album/trips/dog.jpg", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if got := ts.search(t, "dog"); len(got) != 0 {
		t.Errorf("deleted photo still found: %+v", got)
	}
	if _, err := ts.storage.HeadObject(context.Background(), "album", "trips/dog.jpg"); err == nil {
		t.Error("object should be deleted from storage")
	}
}

func TestHandleStatus(t *testing.T) {
	ts := newTestServer(t)
	ts.upload(t, "album", "dog.jpg", "")
	w := ts.do(t, http.MethodGet, "/api/v1/status", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var out struct {
		Objects   int64                  `json:"objects"`
		Documents uint64                 `json:"documents"`
		DiskUsage int64                  `json:"disk_usage_bytes"`
		Config    map[string]interface{} `json:"config"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Objects != 1 || out.Documents != 1 {
		t.Errorf("counts = %d objects, %d documents", out.Objects, out.Documents)
	}
	if out.DiskUsage <= 0 {
		t.Errorf("disk usage = %d", out.DiskUsage)
	}
	if out.Config["labels_provider"] != "filename" {
		t.Errorf("config = %v", out.Config)
	}
}

func TestHealthIndexPageMetricsAndCORS(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/health", nil, nil)
	if w.Code != http.StatusOK || w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("health: status %d headers %v", w.Code, w.Header())
	}

	w = ts.do(t, http.MethodGet, "/", nil, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "<title>Shashin</title>") {
		t.Errorf("index page: status %d", w.Code)
	}

	w = ts.do(t, http.MethodOptions, "/upload/album/dog.jpg", nil, nil)
	if w.Code != http.StatusNoContent || !strings.Contains(w.Header().Get("Access-Control-Allow-Headers"), "x-amz-meta-customLabels") {
		t.Errorf("preflight: status %d headers %v", w.Code, w.Header())
	}

	ts.search(t, "dog")
	w = ts.do(t, http.MethodGet, "/metrics", nil, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "shashin_search_duration_seconds") {
		t.Errorf("metrics: status %d", w.Code)
	}
}
