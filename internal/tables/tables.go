// Package tables holds the hand-tuned reference data used by the resolver:
// category defaults, confidence tiers, seed factors and reduction tips.
package tables

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/emissions-service/internal/model"
)

// Confidence holds the score assigned to each resolution tier.
type Confidence struct {
	Local float64 `yaml:"local"`
	AI    float64 `yaml:"ai"`
	None  float64 `yaml:"none"`
}

// Tables is the consolidated reference configuration passed to the resolver
// and the weekly summary.
type Tables struct {
	Defaults   map[model.Category]model.FactorRecord `yaml:"defaults"`
	Confidence Confidence                            `yaml:"confidence"`
	Seeds      []model.FactorRecord                  `yaml:"seeds"`
	Tips       map[model.Category][]model.TipRecord  `yaml:"tips"`

	// TipOrder fixes the category iteration order for recommendations.
	TipOrder []model.Category `yaml:"tip_order"`
}

// Builtin returns the compiled-in reference tables.
func Builtin() *Tables {
	return &Tables{
		Defaults: map[model.Category]model.FactorRecord{
			model.CategoryFood:      {Factor: 3.0, Unit: model.UnitPerKg, Source: "Average Food Item", Category: model.CategoryFood, IsDefault: true},
			model.CategoryTransport: {Factor: 0.2, Unit: model.UnitPerKm, Source: "Average Vehicle", Category: model.CategoryTransport, IsDefault: true},
			model.CategoryEnergy:    {Factor: 0.5, Unit: model.UnitPerKWh, Source: "Average Grid", Category: model.CategoryEnergy, IsDefault: true},
			model.CategoryWater:     {Factor: 0.001, Unit: model.UnitPerLiter, Source: "Water Treatment", Category: model.CategoryWater, IsDefault: true},
		},
		Confidence: Confidence{Local: 0.9, AI: 0.4, None: 0.0},
		Seeds: []model.FactorRecord{
			{Key: "beef", Factor: 60.0, Unit: model.UnitPerKg, Source: "Global Livestock Data", Category: model.CategoryFood},
			{Key: "shrimp", Factor: 12.0, Unit: model.UnitPerKg, Source: "Ocean Friendly", Category: model.CategoryFood},
			{Key: "shrimp pasta", Factor: 4.3, Unit: model.UnitPerKg, Source: "Composite Meal Est.", Category: model.CategoryFood},
			{Key: "rice", Factor: 4.0, Unit: model.UnitPerKg, Source: "Agri-Stats", Category: model.CategoryFood},
			{Key: "quad bike", Factor: 0.45, Unit: model.UnitPerKm, Source: "Offroad Vehicle Est.", Category: model.CategoryTransport},
			{Key: "bus", Factor: 0.1, Unit: model.UnitPerKm, Source: "Public Transport", Category: model.CategoryTransport},
			{Key: "industrial sewing machine", Factor: 0.5, Unit: model.UnitPerKWh, Source: "Industrial Grid Avg", Category: model.CategoryEnergy},
			{Key: "spa tub", Factor: 0.005, Unit: model.UnitPerLiter, Source: "Water Heating Est.", Category: model.CategoryWater},
		},
		Tips: map[model.Category][]model.TipRecord{
			model.CategoryFood: {
				{Title: "Try Meatless Mondays", SavingsKgPerWeek: 1.5},
				{Title: "Reduce seafood meals to once weekly", SavingsKgPerWeek: 1.1},
				{Title: "Buy local produce to cut transport carbon", SavingsKgPerWeek: 0.5},
			},
			model.CategoryTransport: {
				{Title: "Switch 1 short trip from driving to walking", SavingsKgPerWeek: 0.6},
				{Title: "Carpool for your commute", SavingsKgPerWeek: 2.0},
				{Title: "Check tire pressure to improve fuel efficiency", SavingsKgPerWeek: 0.2},
			},
			model.CategoryEnergy: {
				{Title: "Turn off AC 30 minutes earlier", SavingsKgPerWeek: 0.3},
				{Title: "Unplug 'vampire' electronics at night", SavingsKgPerWeek: 0.1},
				{Title: "Switch to LED bulbs", SavingsKgPerWeek: 0.15},
			},
			model.CategoryWater: {
				{Title: "Take shorter showers (under 5 mins)", SavingsKgPerWeek: 0.2},
				{Title: "Fix leaking taps immediately", SavingsKgPerWeek: 0.1},
			},
		},
		TipOrder: append([]model.Category(nil), model.Categories...),
	}
}

// Load reads a tables YAML file and overlays it on the builtin tables.
// Sections present in the file replace the builtin section wholesale;
// an empty path returns the builtin tables.
func Load(path string) (*Tables, error) {
	t := Builtin()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "tables: read %s", path)
	}

	var file Tables
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, eris.Wrap(err, "tables: parse")
	}

	if len(file.Defaults) > 0 {
		t.Defaults = make(map[model.Category]model.FactorRecord, len(file.Defaults))
		for cat, rec := range file.Defaults {
			c, ok := model.ParseCategory(string(cat))
			if !ok {
				return nil, eris.Errorf("tables: unknown default category %q", cat)
			}
			rec.Key = ""
			rec.Category = c
			rec.IsDefault = true
			rec.Unit = model.ParseUnit(string(rec.Unit))
			t.Defaults[c] = rec
		}
	}
	var conf confidenceOverlay
	if err := yaml.Unmarshal(data, &conf); err != nil {
		return nil, eris.Wrap(err, "tables: parse confidence")
	}
	conf.apply(&t.Confidence)
	if file.Seeds != nil {
		t.Seeds = make([]model.FactorRecord, 0, len(file.Seeds))
		for _, rec := range file.Seeds {
			rec.Key = model.NormalizeKey(rec.Key)
			if rec.Key == "" || rec.Factor < 0 {
				continue
			}
			rec.Unit = model.ParseUnit(string(rec.Unit))
			t.Seeds = append(t.Seeds, rec)
		}
	}
	if len(file.Tips) > 0 {
		t.Tips = make(map[model.Category][]model.TipRecord, len(file.Tips))
		for cat, tips := range file.Tips {
			c, ok := model.ParseCategory(string(cat))
			if !ok {
				return nil, eris.Errorf("tables: unknown tip category %q", cat)
			}
			t.Tips[c] = tips
		}
	}
	if len(file.TipOrder) > 0 {
		t.TipOrder = make([]model.Category, 0, len(file.TipOrder))
		for _, cat := range file.TipOrder {
			c, ok := model.ParseCategory(string(cat))
			if !ok {
				return nil, eris.Errorf("tables: unknown tip_order category %q", cat)
			}
			t.TipOrder = append(t.TipOrder, c)
		}
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// confidenceOverlay tracks which confidence tiers a file sets so unset tiers
// keep their builtin values.
type confidenceOverlay struct {
	Confidence struct {
		Local *float64 `yaml:"local"`
		AI    *float64 `yaml:"ai"`
		None  *float64 `yaml:"none"`
	} `yaml:"confidence"`
}

func (o confidenceOverlay) apply(c *Confidence) {
	if o.Confidence.Local != nil {
		c.Local = *o.Confidence.Local
	}
	if o.Confidence.AI != nil {
		c.AI = *o.Confidence.AI
	}
	if o.Confidence.None != nil {
		c.None = *o.Confidence.None
	}
}

// Validate checks the invariants the resolver depends on.
func (t *Tables) Validate() error {
	for cat, rec := range t.Defaults {
		if rec.Factor < 0 {
			return eris.Errorf("tables: negative default factor for %s", cat)
		}
	}
	for _, v := range []float64{t.Confidence.Local, t.Confidence.AI, t.Confidence.None} {
		if v < 0 || v > 1 {
			return eris.Errorf("tables: confidence %v outside [0,1]", v)
		}
	}
	return nil
}

// Default returns the category default for c, or the unknown sentinel when
// c is empty or has no configured default.
func (t *Tables) Default(c model.Category) model.FactorRecord {
	if rec, ok := t.Defaults[c]; ok {
		return rec
	}
	return model.UnknownRecord()
}
