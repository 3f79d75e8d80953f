package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCategory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		want   Category
		wantOK bool
	}{
		{"FOOD", CategoryFood, true},
		{"food", CategoryFood, true},
		{" Transport ", CategoryTransport, true},
		{"energy", CategoryEnergy, true},
		{"WATER", CategoryWater, true},
		{"", "", false},
		{"GENERAL", "", false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseCategory(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCategoryValid(t *testing.T) {
	t.Parallel()

	for _, c := range Categories {
		assert.True(t, c.Valid(), string(c))
	}
	assert.False(t, Category("SPACE").Valid())
}

func TestNormalizeKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "shrimp pasta", NormalizeKey("  Shrimp Pasta "))
	// Decomposed "é" (e + combining acute) folds to the composed form.
	assert.Equal(t, "caf\u00e9", NormalizeKey("Cafe\u0301"))
}

func TestUnknownRecord(t *testing.T) {
	t.Parallel()

	rec := UnknownRecord()
	assert.Zero(t, rec.Factor)
	assert.Equal(t, UnitUnknown, rec.Unit)
	assert.Equal(t, "Unknown", rec.Source)
	assert.True(t, rec.IsDefault)
	assert.Empty(t, rec.Key)
}
