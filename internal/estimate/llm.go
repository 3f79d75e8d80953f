package estimate

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/emissions-service/internal/model"
	"github.com/sells-group/emissions-service/pkg/anthropic"
)

// LLMEstimator estimates factors with a single Anthropic Messages call.
type LLMEstimator struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	timeout   time.Duration
}

// NewLLMEstimator creates an estimator backed by client. Zero-valued options
// fall back to DefaultModel, DefaultMaxTokens and DefaultTimeout.
func NewLLMEstimator(client anthropic.Client, opts Options) *LLMEstimator {
	e := &LLMEstimator{
		client:    client,
		model:     orDefault(opts.Model, DefaultModel),
		maxTokens: opts.MaxTokens,
		timeout:   opts.Timeout,
	}
	if e.maxTokens <= 0 {
		e.maxTokens = DefaultMaxTokens
	}
	if e.timeout <= 0 {
		e.timeout = DefaultTimeout
	}
	return e
}

// SystemPrompt sets the persona for every estimation request.
const SystemPrompt = "You are an expert in carbon accounting and life-cycle emissions."

const promptTemplate = `Estimate the carbon emission factor for the item %q in the category %q, using global averages.
Reply with ONLY a JSON object of the form {"factor": <number>, "unit": "<string>"}, where factor is in kg CO2 per unit and unit is one of "kgCO2_per_kg", "kgCO2_per_km", "kgCO2_per_kWh" or "kgCO2_per_liter".
Do not use markdown, code fences or any text outside the JSON object.`

// BuildPrompt renders the estimation prompt for item and category.
func BuildPrompt(item string, category model.Category) string {
	cat := string(category)
	if cat == "" {
		cat = "UNSPECIFIED"
	}
	return fmt.Sprintf(promptTemplate, item, cat)
}

// Estimate makes exactly one remote call. Any failure is logged and
// reported as NoEstimate.
func (e *LLMEstimator) Estimate(ctx context.Context, item string, category model.Category) Estimate {
	log := zap.L().With(zap.String("item", item), zap.String("category", string(category)))

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	temp := 0.0
	resp, err := e.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       e.model,
		MaxTokens:   e.maxTokens,
		System:      SystemPrompt,
		Messages:    []anthropic.Message{{Role: "user", Content: BuildPrompt(item, category)}},
		Temperature: &temp,
	})
	if err != nil {
		log.Warn("estimate: remote call failed", zap.Error(err))
		return NoEstimate
	}
	resp.Usage.LogCost(e.model, "estimate")

	est, err := ParseReply(resp.Text())
	if err != nil {
		log.Warn("estimate: unusable reply", zap.Error(err))
		return NoEstimate
	}

	log.Debug("estimate: remote estimate", zap.Float64("factor", est.Factor), zap.String("unit", est.Unit))
	return est
}

type reply struct {
	Factor *float64 `json:"factor"`
	Unit   *string  `json:"unit"`
}

// ParseReply decodes a model reply, tolerating markdown fences and text
// around the JSON object.
func ParseReply(text string) (Estimate, error) {
	cleaned := cleanJSON(text)
	if cleaned == "" {
		return NoEstimate, eris.New("estimate: empty reply")
	}

	var r reply
	if err := json.Unmarshal([]byte(cleaned), &r); err != nil {
		return NoEstimate, eris.Wrap(err, "estimate: decode reply")
	}
	if r.Factor == nil {
		return NoEstimate, eris.New("estimate: reply missing factor")
	}
	if r.Unit == nil || strings.TrimSpace(*r.Unit) == "" {
		return NoEstimate, eris.New("estimate: reply missing unit")
	}
	if *r.Factor < 0 || math.IsNaN(*r.Factor) || math.IsInf(*r.Factor, 0) {
		return NoEstimate, eris.Errorf("estimate: invalid factor %v", *r.Factor)
	}
	return Estimate{Factor: *r.Factor, Unit: strings.TrimSpace(*r.Unit)}, nil
}

// cleanJSON strips markdown fences and extracts the JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
