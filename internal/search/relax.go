package search

import (
	"context"

	"go.uber.org/zap"

	"github.com/hyperjump/shashin/internal/index"
	"github.com/hyperjump/shashin/internal/metrics"
	"github.com/hyperjump/shashin/internal/models"
)

// Attempt names, in the order they are tried.
const (
	AttemptEverything     = "everything"
	AttemptAllIntent      = "all-intent"
	AttemptAnyIntent      = "any-intent"
	AttemptAllIntentBasic = "all-intent-basic"
	AttemptAnyIntentBasic = "any-intent-basic"
	AttemptAnyQueryBasic  = "any-query-basic"
)

// Attempt is one query of the relaxation sequence.
type Attempt struct {
	Name   string
	Mode   models.MatchMode
	Tokens []string
}

// Relaxation is the outcome of Relax. Attempt is empty when nothing matched.
type Relaxation struct {
	Attempt   string
	Documents []*models.PhotoDocument
}

// Plan returns the ordered attempts for a raw query and its intent phrases.
// Attempts whose token set is empty are left out.
//
// Without phrases the raw query is basic-normalized into a single ANY attempt.
// With phrases the order is: ALL then ANY over fully normalized phrases, ALL
// then ANY over basic-normalized phrases, ANY over the basic-normalized raw query.
// A match-all request yields a single EVERYTHING attempt.
func (e *Engine) Plan(rawQuery string, phrases []string) []Attempt {
	everything := []Attempt{{Name: AttemptEverything, Mode: models.MatchEverything}}

	if len(phrases) == 0 {
		if e.normalizer.IsMatchAll(rawQuery) {
			return everything
		}
		return nonEmpty(Attempt{Name: AttemptAnyQueryBasic, Mode: models.MatchAny, Tokens: e.normalizer.NormalizeBasic([]string{rawQuery})})
	}

	full, matchAll := e.normalizer.Normalize(phrases)
	if matchAll {
		return everything
	}
	basic := e.normalizer.NormalizeBasic(phrases)
	raw := e.normalizer.NormalizeBasic([]string{rawQuery})
	return nonEmpty(
		Attempt{Name: AttemptAllIntent, Mode: models.MatchAll, Tokens: full},
		Attempt{Name: AttemptAnyIntent, Mode: models.MatchAny, Tokens: full},
		Attempt{Name: AttemptAllIntentBasic, Mode: models.MatchAll, Tokens: basic},
		Attempt{Name: AttemptAnyIntentBasic, Mode: models.MatchAny, Tokens: basic},
		Attempt{Name: AttemptAnyQueryBasic, Mode: models.MatchAny, Tokens: raw},
	)
}

func nonEmpty(attempts ...Attempt) []Attempt {
	out := attempts[:0]
	for _, a := range attempts {
		if a.Mode == models.MatchEverything || len(a.Tokens) > 0 {
			out = append(out, a)
		}
	}
	return out
}

// Relax runs the planned attempts one after another and returns the documents
// of the first attempt that matches anything. No match is an empty result, not
// an error. An index failure aborts the sequence.
func (e *Engine) Relax(ctx context.Context, rawQuery string, phrases []string) (*Relaxation, error) {
	plan := e.Plan(rawQuery, phrases)
	for _, a := range plan {
		docs, err := e.store.Query(ctx, index.Query{
			Mode:   a.Mode,
			Tokens: a.Tokens,
			Size:   e.pageSize,
		})
		if err != nil {
			metrics.SearchAttemptsTotal.WithLabelValues(a.Name, "error").Inc()
			metrics.CollaboratorErrorsTotal.WithLabelValues("index").Inc()
			return nil, models.CollaboratorError("document store", err)
		}
		e.logger.Debug("search attempt",
			zap.String("attempt", a.Name),
			zap.String("mode", string(a.Mode)),
			zap.Strings("tokens", a.Tokens),
			zap.Int("results", len(docs)))
		if len(docs) == 0 {
			metrics.SearchAttemptsTotal.WithLabelValues(a.Name, "miss").Inc()
			continue
		}
		metrics.SearchAttemptsTotal.WithLabelValues(a.Name, "hit").Inc()
		e.logger.Info("search matched",
			zap.String("attempt", a.Name),
			zap.Int("results", len(docs)))
		return &Relaxation{Attempt: a.Name, Documents: docs}, nil
	}
	e.logger.Info("search matched nothing", zap.Int("attempts", len(plan)))
	return &Relaxation{Documents: []*models.PhotoDocument{}}, nil
}
