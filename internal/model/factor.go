package model

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// FactorRecord is one known or estimated emission factor.
type FactorRecord struct {
	Key      string   `json:"key,omitempty" yaml:"key"`
	Factor   float64  `json:"factor" yaml:"factor"`
	Unit     Unit     `json:"unit" yaml:"unit"`
	Source   string   `json:"source" yaml:"source"`
	Note     string   `json:"note,omitempty" yaml:"note"`
	Category Category `json:"category,omitempty" yaml:"category"`

	// IsDefault marks synthetic category defaults and the unknown sentinel.
	IsDefault bool `json:"is_default,omitempty" yaml:"-"`
}

// UnknownRecord is returned when nothing matched and no category default applies.
func UnknownRecord() FactorRecord {
	return FactorRecord{
		Factor:    0,
		Unit:      UnitUnknown,
		Source:    "Unknown",
		IsDefault: true,
	}
}

// NormalizeKey canonicalizes an item name for store keys and lookups.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFC.String(s)))
}

// ResolutionTier records which tier produced a resolved factor.
type ResolutionTier string

const (
	TierLocal ResolutionTier = "local"
	TierAI    ResolutionTier = "ai"
	TierNone  ResolutionTier = "none"
)

// ResolvedFactor is the end-to-end answer for a custom item.
type ResolvedFactor struct {
	Factor     float64        `json:"factor"`
	Unit       Unit           `json:"unit"`
	Confidence float64        `json:"confidence"`
	SourceNote string         `json:"source_note"`
	Tier       ResolutionTier `json:"tier"`
}

// TipRecord is a curated emission-reduction tip.
type TipRecord struct {
	Title            string  `json:"title" yaml:"title"`
	SavingsKgPerWeek float64 `json:"savings_kg_per_week" yaml:"savings_kg_per_week"`
}
