package tables

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/emissions-service/internal/model"
)

func writeTables(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tables.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBuiltin(t *testing.T) {
	tb := Builtin()
	require.NoError(t, tb.Validate())

	food := tb.Default(model.CategoryFood)
	assert.InDelta(t, 3.0, food.Factor, 1e-9)
	assert.Equal(t, model.UnitPerKg, food.Unit)
	assert.Equal(t, "Average Food Item", food.Source)
	assert.True(t, food.IsDefault)

	water := tb.Default(model.CategoryWater)
	assert.InDelta(t, 0.001, water.Factor, 1e-9)
	assert.Equal(t, "Water Treatment", water.Source)
	assert.True(t, water.IsDefault)

	assert.InDelta(t, 0.9, tb.Confidence.Local, 1e-9)
	assert.InDelta(t, 0.4, tb.Confidence.AI, 1e-9)
	assert.Equal(t, model.Categories, tb.TipOrder)
	assert.Len(t, tb.Tips[model.CategoryWater], 2)
}

func TestDefault_Unknown(t *testing.T) {
	tb := Builtin()
	assert.Equal(t, model.UnknownRecord(), tb.Default(""))
	assert.Equal(t, model.UnknownRecord(), tb.Default("SPACE"))
}

func TestLoad_EmptyPath(t *testing.T) {
	tb, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Builtin(), tb)
}

func TestLoad_Overlay(t *testing.T) {
	path := writeTables(t, `
defaults:
  food:
    factor: 2.5
    unit: kgCO2_per_kg
    source: Regional Food Average
confidence:
  local: 0.85
  ai: 0.35
  none: 0
seeds:
  - key: "  Lentils "
    factor: 0.9
    unit: per_kg
    source: Pulse Council
    category: FOOD
  - key: ""
    factor: 1
tips:
  transport:
    - title: Cycle to work
      savings_kg_per_week: 3.0
tip_order: [transport, food]
`)

	tb, err := Load(path)
	require.NoError(t, err)

	food := tb.Default(model.CategoryFood)
	assert.InDelta(t, 2.5, food.Factor, 1e-9)
	assert.Equal(t, model.UnitPerKg, food.Unit)
	assert.True(t, food.IsDefault)
	assert.Equal(t, model.CategoryFood, food.Category)

	// Defaults section replaced wholesale.
	assert.Equal(t, model.UnknownRecord(), tb.Default(model.CategoryWater))

	assert.InDelta(t, 0.85, tb.Confidence.Local, 1e-9)

	require.Len(t, tb.Seeds, 1)
	assert.Equal(t, "lentils", tb.Seeds[0].Key)
	assert.Equal(t, model.UnitPerKg, tb.Seeds[0].Unit)

	require.Len(t, tb.Tips, 1)
	assert.Equal(t, "Cycle to work", tb.Tips[model.CategoryTransport][0].Title)
	assert.Equal(t, []model.Category{model.CategoryTransport, model.CategoryFood}, tb.TipOrder)
}

func TestLoad_PartialConfidenceKeepsOtherTiers(t *testing.T) {
	path := writeTables(t, `
confidence:
  local: 0.85
`)

	tb, err := Load(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.85, tb.Confidence.Local, 1e-9)
	assert.InDelta(t, 0.4, tb.Confidence.AI, 1e-9)
	assert.InDelta(t, 0.0, tb.Confidence.None, 1e-9)
}

func TestLoad_UnknownCategory(t *testing.T) {
	path := writeTables(t, `
defaults:
  space:
    factor: 1
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown default category")
}

func TestLoad_BadConfidence(t *testing.T) {
	path := writeTables(t, `
confidence:
  local: 1.5
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside [0,1]")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tables: read")
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeTables(t, "defaults: [unclosed")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tables: parse")
}
