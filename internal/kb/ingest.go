package kb

import (
	"context"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/emissions-service/internal/cache"
	"github.com/sells-group/emissions-service/internal/fetcher"
	"github.com/sells-group/emissions-service/internal/model"
	"github.com/sells-group/emissions-service/internal/tables"
)

// Row defaults for optional columns.
const (
	DefaultUnitText = "unknown unit"
	DefaultSource   = "Teammate Research"
)

var errNoFetcher = eris.New("kb: no fetcher configured")

// DefaultFetchTimeout bounds each category download.
const DefaultFetchTimeout = 10 * time.Second

// Source is the remote table for one category.
type Source struct {
	Category model.Category
	URL      string
	Format   fetcher.Format
}

// Outcome describes where a category's data came from during a refresh.
type Outcome string

const (
	OutcomeFresh   Outcome = "fresh"
	OutcomeCache   Outcome = "cache"
	OutcomeSkipped Outcome = "skipped"
)

// CategoryReport is the per-category result of a refresh.
type CategoryReport struct {
	Category    model.Category `json:"category"`
	Outcome     Outcome        `json:"outcome"`
	Rows        int            `json:"rows"`
	SkippedRows int            `json:"skipped_rows"`
	CarriedOver int            `json:"carried_over,omitempty"`
	Reason      string         `json:"reason,omitempty"`
}

// RefreshReport summarizes a completed refresh.
type RefreshReport struct {
	Generation string           `json:"generation"`
	BuiltAt    time.Time        `json:"built_at"`
	Entries    int              `json:"entries"`
	Categories []CategoryReport `json:"categories"`
}

// Recorder receives per-category ingestion outcomes.
type Recorder interface {
	ObserveIngest(category, outcome string, rows int)
}

// Ingester rebuilds the knowledge base from the configured sources.
type Ingester struct {
	store    *Store
	fetch    fetcher.Fetcher
	cache    cache.Cache
	tables   *tables.Tables
	sources  []Source
	timeout  time.Duration
	maxBytes int64
	recorder Recorder

	mu sync.Mutex
}

// Option configures an Ingester.
type Option func(*Ingester)

// WithTimeout overrides the per-category fetch timeout.
func WithTimeout(d time.Duration) Option {
	return func(in *Ingester) {
		if d > 0 {
			in.timeout = d
		}
	}
}

// WithMaxBytes caps the payload size accepted from a source.
func WithMaxBytes(n int64) Option {
	return func(in *Ingester) { in.maxBytes = n }
}

// WithRecorder attaches an ingestion metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(in *Ingester) { in.recorder = r }
}

// NewIngester creates an Ingester publishing into store. The cache may be nil,
// in which case a failed fetch skips the category. Sources are merged in the
// canonical category order regardless of the order given; a later source for
// the same category replaces an earlier one.
func NewIngester(store *Store, f fetcher.Fetcher, c cache.Cache, tbl *tables.Tables, sources []Source, opts ...Option) *Ingester {
	if tbl == nil {
		tbl = tables.Builtin()
	}
	in := &Ingester{
		store:   store,
		fetch:   f,
		cache:   c,
		tables:  tbl,
		sources: orderSources(sources),
		timeout: DefaultFetchTimeout,
	}
	for _, o := range opts {
		o(in)
	}
	return in
}

func orderSources(sources []Source) []Source {
	byCat := make(map[model.Category]Source, len(sources))
	for _, s := range sources {
		if s.URL == "" || !s.Category.Valid() {
			continue
		}
		if s.Format == "" {
			s.Format = fetcher.FormatCSV
		}
		byCat[s.Category] = s
	}
	var out []Source
	for _, c := range model.Categories {
		if s, ok := byCat[c]; ok {
			out = append(out, s)
		}
	}
	return out
}

// Sources returns the sources in merge order.
func (in *Ingester) Sources() []Source {
	return append([]Source(nil), in.sources...)
}

type payload struct {
	data    []byte
	outcome Outcome
	reason  string
}

// Refresh fetches every source, builds a new snapshot and publishes it.
// It never fails: a category whose source and cache are both unusable keeps
// the entries it had in the previous snapshot. Concurrent calls are serialized.
func (in *Ingester) Refresh(ctx context.Context) RefreshReport {
	in.mu.Lock()
	defer in.mu.Unlock()

	start := time.Now()
	prev := in.store.Current()

	payloads := make([]payload, len(in.sources))
	var g errgroup.Group
	for i, src := range in.sources {
		i, src := i, src
		g.Go(func() error {
			payloads[i] = in.load(ctx, src)
			return nil
		})
	}
	_ = g.Wait()

	b := NewBuilder(in.tables.Defaults)
	for _, seed := range in.tables.Seeds {
		b.Put(seed)
	}

	reports := make([]CategoryReport, 0, len(in.sources))
	for i, src := range in.sources {
		rep := CategoryReport{Category: src.Category, Outcome: payloads[i].outcome, Reason: payloads[i].reason}

		if rep.Outcome != OutcomeSkipped {
			rows, skipped, reason := ingestPayload(ctx, b, src, payloads[i].data)
			if reason != "" {
				zap.L().Warn("kb: category skipped",
					zap.String("category", string(src.Category)),
					zap.String("reason", reason),
				)
				rep.Outcome = OutcomeSkipped
				rep.Reason = reason
			} else {
				rep.Rows = rows
				rep.SkippedRows = skipped
			}
		}

		if rep.Outcome == OutcomeSkipped {
			for _, e := range prev.EntriesFor(src.Category) {
				b.Put(e)
				rep.CarriedOver++
			}
		}

		if in.recorder != nil {
			in.recorder.ObserveIngest(string(src.Category), string(rep.Outcome), rep.Rows)
		}
		reports = append(reports, rep)
	}

	snap := b.Build()
	in.store.Publish(snap)

	zap.L().Info("kb: snapshot published",
		zap.String("generation", snap.Generation()),
		zap.Int("entries", snap.Len()),
		zap.Duration("elapsed", time.Since(start)),
	)

	return RefreshReport{
		Generation: snap.Generation(),
		BuiltAt:    snap.BuiltAt(),
		Entries:    snap.Len(),
		Categories: reports,
	}
}

// load downloads a category payload, persisting it to the cache on success
// and reading the cached copy on failure.
func (in *Ingester) load(ctx context.Context, src Source) payload {
	log := zap.L().With(zap.String("category", string(src.Category)), zap.String("url", src.URL))
	format := string(src.Format)

	var (
		data []byte
		err  = errNoFetcher
	)
	if in.fetch != nil {
		fctx, cancel := context.WithTimeout(ctx, in.timeout)
		data, err = fetcher.ReadAll(fctx, in.fetch, src.URL, in.maxBytes)
		cancel()
	}

	if err == nil {
		log.Debug("kb: fetched source", zap.Int("bytes", len(data)))
		if in.cache != nil {
			if perr := in.cache.Put(ctx, src.Category, format, data); perr != nil {
				log.Warn("kb: cache write failed", zap.Error(perr))
			}
		}
		return payload{data: data, outcome: OutcomeFresh}
	}

	log.Warn("kb: fetch failed, falling back to cache", zap.Error(err))
	if in.cache == nil {
		return payload{outcome: OutcomeSkipped, reason: "fetch failed and no cache configured"}
	}

	cached, cerr := in.cache.Get(ctx, src.Category, format)
	if cerr != nil {
		log.Warn("kb: cache read failed", zap.Error(cerr))
		return payload{outcome: OutcomeSkipped, reason: "fetch failed and cache unreadable"}
	}
	if cached == nil {
		log.Warn("kb: no cached payload")
		return payload{outcome: OutcomeSkipped, reason: "fetch failed and no cached payload"}
	}

	log.Info("kb: using cached payload", zap.Int("bytes", len(cached)))
	return payload{data: cached, outcome: OutcomeCache}
}

// ingestPayload parses data and inserts its rows into b. A non-empty reason
// means the whole payload was rejected and nothing was inserted.
func ingestPayload(ctx context.Context, b *Builder, src Source, data []byte) (rows, skipped int, reason string) {
	tbl, err := fetcher.ReadTable(ctx, data, src.Format)
	if err != nil {
		return 0, 0, "parse failed: " + err.Error()
	}

	cols := resolveColumns(tbl.Header)
	if cols.item < 0 || cols.factor < 0 {
		return 0, 0, "missing item or factor column"
	}

	for _, row := range tbl.Rows {
		rec, ok := parseRow(row, cols, src.Category)
		if !ok {
			skipped++
			continue
		}
		b.Put(rec)
		rows++
	}

	if skipped > 0 {
		zap.L().Debug("kb: rows skipped",
			zap.String("category", string(src.Category)),
			zap.Int("skipped", skipped),
		)
	}
	return rows, skipped, ""
}

// Header fragments recognizing each logical column.
var (
	itemFragments   = []string{"item", "name", "appliance", "mode"}
	factorFragments = []string{"factor", "emission", "co2", "value"}
	unitFragments   = []string{"unit"}
	sourceFragments = []string{"source", "reference"}
	noteFragments   = []string{"note", "comment", "remark"}
)

type columns struct {
	item, factor, unit, source, note int
}

// resolveColumns maps logical columns to header positions. Columns are
// resolved in a fixed order and a header claimed by one is not reused.
func resolveColumns(header []string) columns {
	norm := make([]string, len(header))
	for i, h := range header {
		norm[i] = strings.ToLower(strings.TrimSpace(h))
	}
	claimed := make(map[int]bool)

	find := func(fragments []string) int {
		for i, h := range norm {
			if claimed[i] {
				continue
			}
			for _, f := range fragments {
				if strings.Contains(h, f) {
					claimed[i] = true
					return i
				}
			}
		}
		return -1
	}

	var c columns
	c.item = find(itemFragments)
	c.factor = find(factorFragments)
	c.unit = find(unitFragments)
	c.source = find(sourceFragments)
	c.note = find(noteFragments)
	return c
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseRow(row []string, cols columns, category model.Category) (model.FactorRecord, bool) {
	name := cell(row, cols.item)
	if model.NormalizeKey(name) == "" {
		return model.FactorRecord{}, false
	}

	raw := strings.ReplaceAll(cell(row, cols.factor), ",", "")
	factor, err := strconv.ParseFloat(raw, 64)
	if err != nil || factor < 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return model.FactorRecord{}, false
	}

	unitText := cell(row, cols.unit)
	if unitText == "" {
		unitText = DefaultUnitText
	}
	source := cell(row, cols.source)
	if source == "" {
		source = DefaultSource
	}

	return model.FactorRecord{
		Key:      name,
		Factor:   factor,
		Unit:     model.ParseUnit(unitText),
		Source:   source,
		Note:     cell(row, cols.note),
		Category: category,
	}, true
}
