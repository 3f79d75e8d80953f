// Package summary builds the rule-based weekly insights and recommendations
// returned for a user's logged week.
package summary

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/emissions-service/internal/model"
	"github.com/sells-group/emissions-service/internal/tables"
)

// ErrEmptyBreakdown is returned when the request has no category totals.
var ErrEmptyBreakdown = eris.New("summary: category breakdown is empty")

// MaxRecommendations caps the recommendation list.
const MaxRecommendations = 3

// UrgencyHigh is the urgency attached to the next best action.
const UrgencyHigh = "HIGH"

// DailyEmission is one day's logged total.
type DailyEmission struct {
	Date string  `json:"date"`
	CO2  float64 `json:"co2"`
}

// Request is a user's weekly totals.
type Request struct {
	UserID            int                `json:"userId"`
	WeekStart         string             `json:"weekStart"`
	WeekEnd           string             `json:"weekEnd"`
	CurrentWeekTotal  float64            `json:"currentWeekTotal"`
	LastWeekTotal     float64            `json:"lastWeekTotal"`
	PercentageChange  float64            `json:"percentageChange"`
	CategoryBreakdown map[string]float64 `json:"categoryBreakdown"`
	DailyEmissions    []DailyEmission    `json:"dailyEmissions"`
	Notes             *string            `json:"notes,omitempty"`
}

// Insights describes the week at a glance.
type Insights struct {
	Trend           string `json:"trend"`
	HighestCategory string `json:"highestCategory"`
	KeyObservation  string `json:"keyObservation"`
}

// Recommendation is a tip suggested for the coming week.
type Recommendation struct {
	Title                   string  `json:"title"`
	EstimatedSavingsPerWeek float64 `json:"estimatedSavingsPerWeek"`
	Category                string  `json:"category"`
}

// NextBestAction is the single highest-impact recommendation.
type NextBestAction struct {
	Title           string  `json:"title"`
	EstimatedImpact float64 `json:"estimatedImpact"`
	Urgency         string  `json:"urgency"`
}

// Response is the weekly summary.
type Response struct {
	WeeklyInsights  Insights         `json:"weeklyInsights"`
	Recommendations []Recommendation `json:"recommendations"`
	NextBestAction  NextBestAction   `json:"nextBestAction"`
}

var fallbackAction = Recommendation{Title: "Keep logging data", EstimatedSavingsPerWeek: 0.0, Category: "GENERAL"}

// Analyze builds the weekly summary for req using the tips in tbl.
func Analyze(req Request, tbl *tables.Tables) (Response, error) {
	if len(req.CategoryBreakdown) == 0 {
		return Response{}, ErrEmptyBreakdown
	}
	if tbl == nil {
		tbl = tables.Builtin()
	}

	highest, value := highestCategory(req.CategoryBreakdown, tbl.TipOrder)

	recs := recommendations(highest, tbl)

	best := fallbackAction
	if len(recs) > 0 {
		best = recs[0]
		for _, r := range recs[1:] {
			if r.EstimatedSavingsPerWeek > best.EstimatedSavingsPerWeek {
				best = r
			}
		}
	}

	return Response{
		WeeklyInsights: Insights{
			Trend:           trendText(req.PercentageChange),
			HighestCategory: highest,
			KeyObservation:  fmt.Sprintf("%s was your biggest contributor (%skg CO2).", highest, formatNumber(value)),
		},
		Recommendations: recs,
		NextBestAction: NextBestAction{
			Title:           best.Title,
			EstimatedImpact: best.EstimatedSavingsPerWeek,
			Urgency:         UrgencyHigh,
		},
	}, nil
}

func trendText(change float64) string {
	if change < 0 {
		return fmt.Sprintf("Your emissions decreased by %s%% compared to last week. Great job!", formatNumber(math.Abs(change)))
	}
	return fmt.Sprintf("Your emissions increased by %s%% compared to last week.", formatNumber(change))
}

// highestCategory picks the largest breakdown value. Ties go to the category
// listed first in order; names outside order come after it, alphabetically.
// Recognized names are reported in canonical upper case.
func highestCategory(breakdown map[string]float64, order []model.Category) (string, float64) {
	values := make(map[string]float64, len(breakdown))
	for k, v := range breakdown {
		name := strings.TrimSpace(k)
		if c, ok := model.ParseCategory(k); ok {
			name = string(c)
		}
		if _, dup := values[name]; !dup || v > values[name] {
			values[name] = v
		}
	}

	seen := make(map[string]bool, len(values))
	var candidates []string
	for _, c := range order {
		if _, ok := values[string(c)]; ok && !seen[string(c)] {
			candidates = append(candidates, string(c))
			seen[string(c)] = true
		}
	}
	var rest []string
	for name := range values {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	candidates = append(candidates, rest...)

	best := candidates[0]
	for _, c := range candidates[1:] {
		if values[c] > values[best] {
			best = c
		}
	}
	return best, values[best]
}

func recommendations(highest string, tbl *tables.Tables) []Recommendation {
	var recs []Recommendation

	if tips := tbl.Tips[model.Category(highest)]; len(tips) > 0 {
		recs = append(recs, Recommendation{
			Title:                   tips[0].Title,
			EstimatedSavingsPerWeek: tips[0].SavingsKgPerWeek,
			Category:                highest,
		})
	}

	for _, c := range tbl.TipOrder {
		if len(recs) >= MaxRecommendations {
			break
		}
		if string(c) == highest {
			continue
		}
		tips := tbl.Tips[c]
		if len(tips) == 0 {
			continue
		}
		recs = append(recs, Recommendation{
			Title:                   tips[0].Title,
			EstimatedSavingsPerWeek: tips[0].SavingsKgPerWeek,
			Category:                string(c),
		})
	}
	return recs
}

// formatNumber renders v with the shortest exact representation, always
// keeping one decimal place for whole numbers ("12.0", "4.25").
func formatNumber(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
