package kb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/emissions-service/internal/model"
	"github.com/sells-group/emissions-service/internal/tables"
)

func testSnapshot(t *testing.T, recs ...model.FactorRecord) *Snapshot {
	t.Helper()
	b := NewBuilder(tables.Builtin().Defaults)
	for _, r := range recs {
		require.True(t, b.Put(r))
	}
	return b.Build()
}

func rec(key string, factor float64, unit model.Unit, category model.Category) model.FactorRecord {
	return model.FactorRecord{Key: key, Factor: factor, Unit: unit, Source: "test", Category: category}
}

func TestLookup_ExactMatchIgnoresCategory(t *testing.T) {
	s := testSnapshot(t, rec("beef", 60, model.UnitPerKg, model.CategoryFood))

	got := s.Lookup("  BEEF ", model.CategoryTransport)
	assert.Equal(t, "beef", got.Key)
	assert.Equal(t, 60.0, got.Factor)
}

func TestLookup_SubstringFollowsInsertionOrder(t *testing.T) {
	s := testSnapshot(t,
		rec("shrimp", 12, model.UnitPerKg, model.CategoryFood),
		rec("shrimp pasta", 4.3, model.UnitPerKg, model.CategoryFood),
	)

	// "shrimp" was inserted first and is contained in the input.
	got := s.Lookup("spicy shrimp pasta dish", model.CategoryFood)
	assert.Equal(t, "shrimp", got.Key)

	// Reverse direction: the stored key contains the input.
	got = s.Lookup("pasta", model.CategoryFood)
	assert.Equal(t, "shrimp pasta", got.Key)
}

func TestLookup_SubstringOrderDependsOnInsertion(t *testing.T) {
	s := testSnapshot(t,
		rec("shrimp pasta", 4.3, model.UnitPerKg, model.CategoryFood),
		rec("shrimp", 12, model.UnitPerKg, model.CategoryFood),
	)

	got := s.Lookup("spicy shrimp pasta dish", model.CategoryFood)
	assert.Equal(t, "shrimp pasta", got.Key)
}

func TestLookup_CategoryFilterSkipsOtherCategories(t *testing.T) {
	s := testSnapshot(t,
		rec("bus", 0.1, model.UnitPerKm, model.CategoryTransport),
		rec("uncategorized bus", 9, model.UnitPerKm, ""),
	)

	got := s.Lookup("school bus", model.CategoryFood)
	assert.True(t, got.IsDefault)
	assert.Equal(t, "Average Food Item", got.Source)

	got = s.Lookup("school bus", model.CategoryTransport)
	assert.Equal(t, "bus", got.Key)

	// Without a category filter the first entry in order wins.
	got = s.Lookup("bus ride", "")
	assert.Equal(t, "bus", got.Key)
}

func TestLookup_UnknownItemWithCategoryReturnsDefault(t *testing.T) {
	s := testSnapshot(t, rec("beef", 60, model.UnitPerKg, model.CategoryFood))

	got := s.Lookup("dragonfruit", model.CategoryFood)
	assert.Equal(t, 3.0, got.Factor)
	assert.Equal(t, model.UnitPerKg, got.Unit)
	assert.Equal(t, "Average Food Item", got.Source)
	assert.True(t, got.IsDefault)
}

func TestLookup_UnknownItemWithoutCategoryReturnsSentinel(t *testing.T) {
	s := testSnapshot(t, rec("beef", 60, model.UnitPerKg, model.CategoryFood))

	got := s.Lookup("dragonfruit", "")
	assert.Equal(t, model.UnknownRecord(), got)

	got = s.Lookup("dragonfruit", model.Category("PLASTIC"))
	assert.Equal(t, model.UnknownRecord(), got)
}

func TestLookup_UnrecognizedCategory(t *testing.T) {
	s := testSnapshot(t,
		rec("beef", 60, model.UnitPerKg, model.CategoryFood),
		rec("shrimp", 12, model.UnitPerKg, model.CategoryFood),
	)

	assert.Equal(t, model.UnknownRecord(), s.Lookup("dragonfruit", model.Category("SPACE")))

	// The filter matches no entry, so substring candidates are skipped.
	assert.Equal(t, model.UnknownRecord(), s.Lookup("shrimp pasta", model.Category("SPACE")))

	// Exact matches still ignore the category.
	assert.Equal(t, "beef", s.Lookup("beef", model.Category("SPACE")).Key)
}

func TestLookup_EmptyInputNeverSubstringMatches(t *testing.T) {
	s := testSnapshot(t, rec("beef", 60, model.UnitPerKg, model.CategoryFood))

	got := s.Lookup("   ", model.CategoryFood)
	assert.True(t, got.IsDefault)
	assert.Empty(t, got.Key)

	got = s.Lookup("", "")
	assert.Equal(t, model.UnknownRecord(), got)
}

func TestLookup_NormalizesUnicode(t *testing.T) {
	s := testSnapshot(t, rec("caf\u00e9 latte", 0.6, model.UnitPerKg, model.CategoryFood))

	got := s.Lookup("Cafe\u0301 Latte", model.CategoryFood)
	assert.Equal(t, "caf\u00e9 latte", got.Key)
}

func TestBuilder_OverwriteKeepsPosition(t *testing.T) {
	b := NewBuilder(nil)
	b.Put(rec("beef", 60, model.UnitPerKg, model.CategoryFood))
	b.Put(rec("rice", 4, model.UnitPerKg, model.CategoryFood))
	b.Put(rec("Beef", 27, model.UnitPerKg, model.CategoryFood))
	s := b.Build()

	entries := s.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "beef", entries[0].Key)
	assert.Equal(t, 27.0, entries[0].Factor)
	assert.Equal(t, "rice", entries[1].Key)
}

func TestBuilder_RejectsEmptyKeyAndFillsUnit(t *testing.T) {
	b := NewBuilder(nil)
	assert.False(t, b.Put(model.FactorRecord{Key: "  ", Factor: 1}))
	assert.True(t, b.Put(model.FactorRecord{Key: "mystery", Factor: 1}))

	s := b.Build()
	got, ok := s.Get("mystery")
	require.True(t, ok)
	assert.Equal(t, model.UnitUnknown, got.Unit)
	assert.Equal(t, 1, s.Len())
}

func TestSnapshot_GenerationIsUnique(t *testing.T) {
	a := NewBuilder(nil).Build()
	b := NewBuilder(nil).Build()
	assert.NotEmpty(t, a.Generation())
	assert.NotEqual(t, a.Generation(), b.Generation())
	assert.False(t, a.BuiltAt().IsZero())
}

func TestSnapshot_EntriesFor(t *testing.T) {
	s := testSnapshot(t,
		rec("beef", 60, model.UnitPerKg, model.CategoryFood),
		rec("bus", 0.1, model.UnitPerKm, model.CategoryTransport),
		rec("rice", 4, model.UnitPerKg, model.CategoryFood),
	)

	food := s.EntriesFor(model.CategoryFood)
	require.Len(t, food, 2)
	assert.Equal(t, "beef", food[0].Key)
	assert.Equal(t, "rice", food[1].Key)
	assert.Empty(t, s.EntriesFor(model.CategoryWater))
}

func TestStore_PublishSwapsSnapshot(t *testing.T) {
	first := testSnapshot(t, rec("beef", 60, model.UnitPerKg, model.CategoryFood))
	st := NewStore(first)
	assert.Equal(t, 60.0, st.Lookup("beef", "").Factor)

	second := testSnapshot(t, rec("beef", 27, model.UnitPerKg, model.CategoryFood))
	prev := st.Publish(second)

	assert.Same(t, first, prev)
	assert.Same(t, second, st.Current())
	assert.Equal(t, 27.0, st.Lookup("beef", "").Factor)
}

func TestStore_NilInitial(t *testing.T) {
	st := NewStore(nil)
	require.NotNil(t, st.Current())
	assert.Equal(t, model.UnknownRecord(), st.Lookup("beef", model.CategoryFood))
}
