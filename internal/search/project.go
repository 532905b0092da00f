package search

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/shashin/internal/metrics"
	"github.com/hyperjump/shashin/internal/models"
)

// Project turns documents into caller-visible results, signing every URL
// concurrently. Results keep the input order. If any signing fails the whole
// projection fails and no partial list is returned.
func (e *Engine) Project(ctx context.Context, docs []*models.PhotoDocument) ([]*models.PhotoResult, error) {
	results := make([]*models.PhotoResult, len(docs))
	if len(docs) == 0 {
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	if e.signLimit > 0 {
		g.SetLimit(e.signLimit)
	}
	for i, doc := range docs {
		i, doc := i, doc
		g.Go(func() error {
			url, err := e.signer.SignURL(gctx, doc.ContainerID, doc.ObjectKey, e.urlExpiry)
			if err != nil {
				return err
			}
			results[i] = &models.PhotoResult{
				URL:       url,
				CreatedAt: doc.CreatedAt,
				Labels:    append([]string{}, doc.Labels...),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		metrics.CollaboratorErrorsTotal.WithLabelValues("signer").Inc()
		return nil, models.CollaboratorError("url signer", err)
	}
	return results, nil
}
