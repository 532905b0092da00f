package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/shashin/internal/dialog"
	"github.com/hyperjump/shashin/internal/models"
	"github.com/hyperjump/shashin/internal/signer"
	"github.com/hyperjump/shashin/internal/storage"
)

const metaHeaderPrefix = "x-amz-meta-"

var uploadExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/heic": ".heic",
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	s.logger.Debug("search request", zap.String("query", q))
	resp, err := s.engine.Search(r.Context(), &models.SearchRequest{Query: q})
	if err != nil {
		s.respondErr(w, "search failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp.Results)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	container, key := objectParams(r)
	s.upload(w, r, container, key)
}

func (s *Server) handleUploadGenerated(w http.ResponseWriter, r *http.Request) {
	ct := mediaType(r.Header.Get("Content-Type"))
	ext, ok := uploadExtensions[ct]
	if !ok {
		s.respondError(w, http.StatusBadRequest, "unsupported content type "+strconv.Quote(ct))
		return
	}
	container, _ := objectParams(r)
	s.upload(w, r, container, uuid.NewString()+ext)
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request, container, key string) {
	obj := &models.Object{
		Container:   container,
		Key:         key,
		ContentType: mediaType(r.Header.Get("Content-Type")),
		Metadata:    userMetadata(r.Header),
	}
	s.logger.Debug("upload request",
		zap.String("container", container),
		zap.String("key", key),
		zap.String("custom_labels", obj.Metadata[storage.MetadataCustomLabels]))
	body := http.MaxBytesReader(w, r.Body, maxUploadBytes)
	doc, err := s.indexer.Upload(r.Context(), obj, body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "photo too large")
			return
		}
		s.respondErr(w, "upload failed", err)
		return
	}
	resp := map[string]interface{}{
		"container": obj.Container,
		"key":       obj.Key,
		"size":      obj.Size,
		"status":    "stored",
	}
	if doc != nil {
		resp["status"] = "indexed"
		resp["labels"] = doc.Labels
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// objectParams returns the container and key route parameters. chi matches
// on the escaped path when the request carries one, so they are unescaped here.
func objectParams(r *http.Request) (container, key string) {
	container, key = chi.URLParam(r, "container"), chi.URLParam(r, "*")
	if r.URL.RawPath == "" {
		return container, key
	}
	if c, err := url.PathUnescape(container); err == nil {
		container = c
	}
	if k, err := url.PathUnescape(key); err == nil {
		key = k
	}
	return container, key
}

// userMetadata collects x-amz-meta-* headers with lower-cased names.
func userMetadata(h http.Header) map[string]string {
	meta := map[string]string{}
	for name, values := range h {
		lower := strings.ToLower(name)
		if strings.HasPrefix(lower, metaHeaderPrefix) && len(values) > 0 {
			meta[strings.TrimPrefix(lower, metaHeaderPrefix)] = values[0]
		}
	}
	return meta
}

func mediaType(contentType string) string {
	ct, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(ct))
}

func (s *Server) handlePhoto(w http.ResponseWriter, r *http.Request) {
	container, key := objectParams(r)
	q := r.URL.Query()
	if err := s.verifier.Verify(container, key, q.Get(signer.ParamExpires), q.Get(signer.ParamSignature)); err != nil {
		s.logger.Debug("photo URL rejected", zap.String("key", key), zap.Error(err))
		s.respondError(w, http.StatusForbidden, err.Error())
		return
	}
	body, obj, err := s.storage.OpenObject(r.Context(), container, key)
	if err != nil {
		s.respondErr(w, "open photo failed", err)
		return
	}
	defer body.Close()
	if obj.ContentType != "" {
		w.Header().Set("Content-Type", obj.ContentType)
	}
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		s.logger.Warn("photo write failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *Server) handleDeletePhoto(w http.ResponseWriter, r *http.Request) {
	container, key := objectParams(r)
	s.logger.Debug("delete photo request", zap.String("container", container), zap.String("key", key))
	if err := s.indexer.Remove(r.Context(), container, key); err != nil {
		s.respondErr(w, "deletion failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleDialog(w http.ResponseWriter, r *http.Request) {
	var ev dialog.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.respondJSON(w, http.StatusOK, s.dialog.Fulfill(r.Context(), &ev))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	objects, err := s.storage.CountObjects(r.Context())
	if err != nil {
		s.respondErr(w, "status: count objects failed", models.CollaboratorError("storage", err))
		return
	}
	docs, err := s.docs.DocCount()
	if err != nil {
		s.respondErr(w, "status: count documents failed", models.CollaboratorError("document store", err))
		return
	}
	resp := map[string]interface{}{
		"objects":   objects,
		"documents": docs,
	}
	if s.config != nil {
		resp["config"] = map[string]interface{}{
			"storage_root":       s.config.Storage.Root,
			"index_path":         s.config.Storage.IndexPath,
			"database_path":      s.config.Storage.DatabasePath,
			"labels_provider":    s.config.Labels.Provider,
			"intent_provider":    s.config.Intent.Provider,
			"page_size":          s.config.Search.PageSize,
			"url_expiry_seconds": s.config.Search.URLExpirySeconds,
			"watching":           s.config.Watch.EnabledOrDefault(),
		}
		diskBytes, err := storage.DiskUsageBytes(s.config.Storage.Root, s.config.Storage.DatabasePath, s.config.Storage.IndexPath)
		if err == nil {
			resp["disk_usage_bytes"] = diskBytes
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleIndexPage(w http.ResponseWriter, r *http.Request) {
	page, err := webFS.ReadFile("web/index.html")
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "frontend missing")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(page)
}

// respondErr maps err to a status code. Collaborator failures are checked
// first since they may wrap an invalid-input cause, and their details are
// only logged.
func (s *Server) respondErr(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, models.ErrCollaborator):
		s.logger.Error(msg, zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "internal server error")
	case errors.Is(err, models.ErrInvalidInput):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error(msg, zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
