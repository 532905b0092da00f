// Package search runs the relaxation search over the photo index and projects
// matching documents into signed results.
package search

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/shashin/internal/index"
	"github.com/hyperjump/shashin/internal/intent"
	"github.com/hyperjump/shashin/internal/keyword"
	"github.com/hyperjump/shashin/internal/metrics"
	"github.com/hyperjump/shashin/internal/models"
	"github.com/hyperjump/shashin/internal/signer"
)

// DefaultURLExpiry is the lifetime of result URLs.
const DefaultURLExpiry = time.Hour

// Engine answers photo searches.
type Engine struct {
	store      index.Store
	normalizer *keyword.Normalizer
	extractor  intent.Extractor
	signer     signer.URLSigner
	pageSize   int
	urlExpiry  time.Duration
	signLimit  int
	logger     *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Nil keeps the no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithExtractor sets the intent extractor used by Search. Without one,
// Search uses the raw query only.
func WithExtractor(x intent.Extractor) Option {
	return func(e *Engine) {
		e.extractor = x
	}
}

// WithPageSize caps every index query at n documents.
func WithPageSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.pageSize = n
		}
	}
}

// WithURLExpiry sets the lifetime of signed result URLs.
func WithURLExpiry(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.urlExpiry = d
		}
	}
}

// WithSignConcurrency bounds the number of URLs signed at once. Zero or less means unbounded.
func WithSignConcurrency(n int) Option {
	return func(e *Engine) {
		e.signLimit = n
	}
}

// NewEngine creates a search engine over store.
func NewEngine(store index.Store, normalizer *keyword.Normalizer, s signer.URLSigner, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		normalizer: normalizer,
		signer:     s,
		pageSize:   models.DefaultPageSize,
		urlExpiry:  DefaultURLExpiry,
		signLimit:  32,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search extracts keyword phrases from the request (unless it carries them),
// runs the relaxation search and projects the winning documents.
func (e *Engine) Search(ctx context.Context, req *models.SearchRequest) (*models.SearchResponse, error) {
	start := time.Now()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	phrases := req.Phrases
	if phrases == nil && e.extractor != nil {
		var err error
		phrases, err = e.extractor.ExtractIntent(ctx, req.Query)
		if err != nil {
			metrics.CollaboratorErrorsTotal.WithLabelValues("intent").Inc()
			return nil, models.CollaboratorError("intent extractor", err)
		}
	}
	e.logger.Debug("intent", zap.String("query", req.Query), zap.Strings("phrases", phrases))

	relaxed, err := e.Relax(ctx, req.Query, phrases)
	if err != nil {
		return nil, err
	}
	results, err := e.Project(ctx, relaxed.Documents)
	if err != nil {
		return nil, err
	}
	metrics.SearchDuration.Observe(time.Since(start).Seconds())

	return &models.SearchResponse{
		Query:     req.Query,
		Attempt:   relaxed.Attempt,
		Results:   results,
		QueryTime: time.Since(start).Milliseconds(),
	}, nil
}
