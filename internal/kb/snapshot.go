// Package kb holds the in-memory emission factor knowledge base: immutable
// snapshots, the atomically swapped store that serves them, and the
// ingester that rebuilds them from remote tabular sources.
package kb

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/emissions-service/internal/model"
)

// Snapshot is an immutable, ordered mapping of normalized item keys to
// factor records plus the category defaults used when nothing matches.
type Snapshot struct {
	entries    []model.FactorRecord
	index      map[string]int
	defaults   map[model.Category]model.FactorRecord
	generation string
	builtAt    time.Time
}

// Builder assembles a Snapshot. It is not safe for concurrent use.
type Builder struct {
	entries  []model.FactorRecord
	index    map[string]int
	defaults map[model.Category]model.FactorRecord
}

// NewBuilder starts a snapshot that falls back to the given category defaults.
func NewBuilder(defaults map[model.Category]model.FactorRecord) *Builder {
	d := make(map[model.Category]model.FactorRecord, len(defaults))
	for c, rec := range defaults {
		rec.IsDefault = true
		rec.Key = ""
		if rec.Category == "" {
			rec.Category = c
		}
		d[c] = rec
	}
	return &Builder{
		index:    make(map[string]int),
		defaults: d,
	}
}

// Put inserts rec under its normalized key. Overwriting an existing key
// replaces the record but keeps its original position. Records whose key
// normalizes to empty are ignored.
func (b *Builder) Put(rec model.FactorRecord) bool {
	key := model.NormalizeKey(rec.Key)
	if key == "" {
		return false
	}
	rec.Key = key
	if rec.Unit == "" {
		rec.Unit = model.UnitUnknown
	}
	if i, ok := b.index[key]; ok {
		b.entries[i] = rec
		return true
	}
	b.index[key] = len(b.entries)
	b.entries = append(b.entries, rec)
	return true
}

// Len reports the number of distinct keys added so far.
func (b *Builder) Len() int { return len(b.entries) }

// Build freezes the builder into a Snapshot with a fresh generation id.
// The builder must not be used afterwards.
func (b *Builder) Build() *Snapshot {
	s := &Snapshot{
		entries:    b.entries,
		index:      b.index,
		defaults:   b.defaults,
		generation: uuid.New().String(),
		builtAt:    time.Now().UTC(),
	}
	b.entries, b.index = nil, nil
	return s
}

// Generation returns the unique id assigned when the snapshot was built.
func (s *Snapshot) Generation() string { return s.generation }

// BuiltAt returns the build time of the snapshot.
func (s *Snapshot) BuiltAt() time.Time { return s.builtAt }

// Len returns the number of entries.
func (s *Snapshot) Len() int { return len(s.entries) }

// Entries returns a copy of all entries in insertion order.
func (s *Snapshot) Entries() []model.FactorRecord {
	return append([]model.FactorRecord(nil), s.entries...)
}

// EntriesFor returns the entries tagged with category, in insertion order.
func (s *Snapshot) EntriesFor(category model.Category) []model.FactorRecord {
	var out []model.FactorRecord
	for _, e := range s.entries {
		if e.Category == category {
			out = append(out, e)
		}
	}
	return out
}

// Get returns the entry stored under the normalized form of key.
func (s *Snapshot) Get(key string) (model.FactorRecord, bool) {
	i, ok := s.index[model.NormalizeKey(key)]
	if !ok {
		return model.FactorRecord{}, false
	}
	return s.entries[i], true
}

// Default returns the default record for category, or the unknown sentinel.
func (s *Snapshot) Default(category model.Category) model.FactorRecord {
	if rec, ok := s.defaults[category]; ok {
		return rec
	}
	return model.UnknownRecord()
}

// Lookup always returns a record. Precedence:
//
//  1. exact key match, ignoring category;
//  2. the first entry in insertion order whose key contains the input or is
//     contained in it, skipping entries of another category when one is given;
//  3. the category default, or the unknown sentinel.
func (s *Snapshot) Lookup(item string, category model.Category) model.FactorRecord {
	key := model.NormalizeKey(item)

	if i, ok := s.index[key]; ok {
		return s.entries[i]
	}

	if key != "" {
		for _, e := range s.entries {
			if category != "" && e.Category != category {
				continue
			}
			if strings.Contains(key, e.Key) || strings.Contains(e.Key, key) {
				return e
			}
		}
	}

	return s.Default(category)
}
