// Package estimate asks a remote language model for an emission factor when
// the local knowledge base has no confident match.
package estimate

import (
	"context"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/sells-group/emissions-service/internal/model"
	"github.com/sells-group/emissions-service/pkg/anthropic"
)

// Estimate is a factor/unit pair as returned by the remote model. Unit is
// free text and still needs model.ParseUnit.
type Estimate struct {
	Factor float64 `json:"factor"`
	Unit   string  `json:"unit"`
}

// NoEstimate is returned for every failure mode.
var NoEstimate = Estimate{Factor: 0, Unit: "unknown"}

// Estimator produces an Estimate for an item. Implementations never return
// errors; failures collapse to NoEstimate.
type Estimator interface {
	Estimate(ctx context.Context, item string, category model.Category) Estimate
}

// Disabled is the estimator used when no credential is configured.
type Disabled struct{}

func (Disabled) Estimate(context.Context, string, model.Category) Estimate { return NoEstimate }

// Defaults for the LLM estimator.
const (
	DefaultModel     = "claude-haiku-4-5-20251001"
	DefaultMaxTokens = 128
	DefaultTimeout   = 15 * time.Second
)

// Options configures New.
type Options struct {
	APIKey    string
	Model     string
	MaxTokens int64
	Timeout   time.Duration
	BaseURL   string
}

// New builds the estimator for opts. Without an API key it logs once and
// returns Disabled.
func New(opts Options) Estimator {
	if opts.APIKey == "" {
		zap.L().Warn("estimate: no anthropic api key configured, AI estimation disabled")
		return Disabled{}
	}

	var extra []option.RequestOption
	if opts.BaseURL != "" {
		extra = append(extra, option.WithBaseURL(opts.BaseURL))
	}
	client := anthropic.NewClient(opts.APIKey, extra...)

	zap.L().Info("estimate: AI estimation enabled", zap.String("model", orDefault(opts.Model, DefaultModel)))
	return NewLLMEstimator(client, opts)
}

// Enabled reports whether e can reach a remote model.
func Enabled(e Estimator) bool {
	switch e.(type) {
	case nil, Disabled, *Disabled:
		return false
	default:
		return true
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
