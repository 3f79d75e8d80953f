// Package resolve turns a free-text item into an emission factor with a
// confidence score, using the local knowledge base first and the remote
// estimator only when nothing local is a real match.
package resolve

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/emissions-service/internal/estimate"
	"github.com/sells-group/emissions-service/internal/model"
	"github.com/sells-group/emissions-service/internal/tables"
)

// Source notes for non-local results.
const (
	NoteAI     = "AI Estimation"
	NoteNoData = "No data available"
)

// Lookuper resolves an item against the local knowledge base.
type Lookuper interface {
	Lookup(item string, category model.Category) model.FactorRecord
}

// Recorder receives the tier of each resolution.
type Recorder interface {
	ObserveResolution(tier string)
}

// Resolver orchestrates local lookup, remote estimation and unit harmonization.
// It holds no per-call state and is safe for concurrent use.
type Resolver struct {
	kb        Lookuper
	estimator estimate.Estimator
	conf      tables.Confidence
	recorder  Recorder
}

// New creates a Resolver. A nil estimator behaves as estimate.Disabled and
// nil tables select the builtin confidence values.
func New(kb Lookuper, est estimate.Estimator, tbl *tables.Tables) *Resolver {
	if est == nil {
		est = estimate.Disabled{}
	}
	if tbl == nil {
		tbl = tables.Builtin()
	}
	return &Resolver{kb: kb, estimator: est, conf: tbl.Confidence}
}

// WithRecorder attaches a resolution metrics recorder.
func (r *Resolver) WithRecorder(rec Recorder) *Resolver {
	r.recorder = rec
	return r
}

// Lookup passes through to the knowledge base.
func (r *Resolver) Lookup(item string, category model.Category) model.FactorRecord {
	return r.kb.Lookup(item, category)
}

// IsRealMatch reports whether rec came from actual data rather than a
// category default or the unknown sentinel.
func IsRealMatch(rec model.FactorRecord) bool {
	if rec.IsDefault || rec.Factor <= 0 {
		return false
	}
	return !strings.HasPrefix(strings.ToLower(strings.TrimSpace(rec.Source)), "average")
}

// ResolveFactor returns the best available factor for item. requestedUnit is
// the unit the caller's quantity is expressed in and only affects gram
// harmonization of per_kg factors.
func (r *Resolver) ResolveFactor(ctx context.Context, item string, category model.Category, requestedUnit string) model.ResolvedFactor {
	var out model.ResolvedFactor

	rec := r.kb.Lookup(item, category)
	if IsRealMatch(rec) {
		note := rec.Source
		if rec.Note != "" {
			note += " (" + rec.Note + ")"
		}
		out = model.ResolvedFactor{
			Factor:     rec.Factor,
			Unit:       rec.Unit,
			Confidence: r.conf.Local,
			SourceNote: note,
			Tier:       model.TierLocal,
		}
	} else {
		est := r.estimator.Estimate(ctx, item, category)
		if est.Factor > 0 {
			out = model.ResolvedFactor{
				Factor:     est.Factor,
				Unit:       model.ParseUnit(est.Unit),
				Confidence: r.conf.AI,
				SourceNote: NoteAI,
				Tier:       model.TierAI,
			}
		} else {
			out = model.ResolvedFactor{
				Factor:     0,
				Unit:       model.UnitUnknown,
				Confidence: r.conf.None,
				SourceNote: NoteNoData,
				Tier:       model.TierNone,
			}
		}
	}

	if model.IsGramScale(requestedUnit) && out.Unit == model.UnitPerKg {
		out.Factor /= 1000
		out.Unit = model.UnitPerGram
	}

	zap.L().Debug("resolve: factor resolved",
		zap.String("item", item),
		zap.String("category", string(category)),
		zap.String("tier", string(out.Tier)),
		zap.Float64("factor", out.Factor),
		zap.String("unit", string(out.Unit)),
	)
	if r.recorder != nil {
		r.recorder.ObserveResolution(string(out.Tier))
	}
	return out
}
