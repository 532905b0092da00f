package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/shashin/internal/models"
)

// storageEvent is an object-created notification in the S3 event format.
type storageEvent struct {
	Records []eventRecord `json:"Records"`
}

type eventRecord struct {
	EventName string `json:"eventName"`
	EventTime string `json:"eventTime"`
	S3        struct {
		Bucket struct {
			Name string `json:"name"`
		} `json:"bucket"`
		Object struct {
			Key string `json:"key"`
		} `json:"object"`
	} `json:"s3"`
}

// objectEvent converts a record. Keys arrive form-encoded, so "+" is a space.
func (rec *eventRecord) objectEvent() (*models.ObjectEvent, error) {
	key, err := url.QueryUnescape(rec.S3.Object.Key)
	if err != nil {
		return nil, models.InvalidInputf("object key %q is not URL encoded: %v", rec.S3.Object.Key, err)
	}
	ev := &models.ObjectEvent{Container: rec.S3.Bucket.Name, Key: key}
	if rec.EventTime != "" {
		t, err := time.Parse(time.RFC3339Nano, rec.EventTime)
		if err != nil {
			return nil, models.InvalidInputf("event time %q: %v", rec.EventTime, err)
		}
		ev.EventTime = t
	}
	return ev, ev.Validate()
}

func decodeStorageEvent(r *http.Request) (*storageEvent, error) {
	var ev storageEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		return nil, models.InvalidInputf("invalid request body")
	}
	if len(ev.Records) == 0 {
		return nil, models.InvalidInputf("event has no records")
	}
	return &ev, nil
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	ev, err := decodeStorageEvent(r)
	if err != nil {
		s.respondErr(w, "event rejected", err)
		return
	}
	docs := make([]*models.PhotoDocument, 0, len(ev.Records))
	for i := range ev.Records {
		oe, err := ev.Records[i].objectEvent()
		if err != nil {
			s.respondErr(w, "event rejected", err)
			return
		}
		s.logger.Debug("object event", zap.String("container", oe.Container), zap.String("key", oe.Key))
		doc, err := s.indexer.IndexObject(r.Context(), oe)
		if err != nil {
			s.respondErr(w, "event indexing failed", err)
			return
		}
		docs = append(docs, doc)
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"indexed": docs})
}

// handleInspectEvent reports the content type of the event's first object.
func (s *Server) handleInspectEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := decodeStorageEvent(r)
	if err != nil {
		s.respondErr(w, "event rejected", err)
		return
	}
	oe, err := ev.Records[0].objectEvent()
	if err != nil {
		s.respondErr(w, "event rejected", err)
		return
	}
	obj, err := s.storage.HeadObject(r.Context(), oe.Container, oe.Key)
	if err != nil {
		s.logger.Error("inspect object failed", zap.String("container", oe.Container), zap.String("key", oe.Key), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError,
			fmt.Sprintf("Error getting object %s from container %s. Make sure they exist.", oe.Key, oe.Container))
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"contentType": obj.ContentType})
}
