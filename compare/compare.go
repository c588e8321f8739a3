// Package compare drives a full comparison of two databases and yields
// one difference record per table, lazily, in sorted table-name order.
package compare

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/opendpm/dbdiff/compare/changeset"
	"github.com/opendpm/dbdiff/compare/rowdiff"
	"github.com/opendpm/dbdiff/compare/rowkey"
	"github.com/opendpm/dbdiff/compare/tablediff"
	"github.com/opendpm/dbdiff/dbconn"
	"github.com/opendpm/dbdiff/dbtable"
	"github.com/opendpm/dbdiff/dbval"
	"github.com/opendpm/dbdiff/inspect"
	"github.com/opendpm/dbdiff/rowiterator"
)

const DefaultRowBatchSize = 1000

type Opt func(*opts)

type opts struct {
	rowBatchSize  int
	rowsPerSecond int
	tableFilter   string
	rows          bool
	concurrency   int
	keyOverrides  map[string][]string
}

func (o opts) rateLimit() rate.Limit {
	if o.rowsPerSecond == 0 {
		return rate.Inf
	}
	perBatch := float64(o.rowBatchSize) / float64(o.rowsPerSecond)
	return rate.Every(time.Duration(float64(time.Second) * perBatch))
}

func WithRowBatchSize(n int) Opt {
	return func(o *opts) {
		o.rowBatchSize = n
	}
}

func WithRowsPerSecond(n int) Opt {
	return func(o *opts) {
		o.rowsPerSecond = n
	}
}

// WithTableFilter restricts the comparison to tables whose name matches
// the POSIX regular expression.
func WithTableFilter(filter string) Opt {
	return func(o *opts) {
		o.tableFilter = filter
	}
}

// WithRows toggles row-level comparison. Column-level comparison always
// runs.
func WithRows(b bool) Opt {
	return func(o *opts) {
		o.rows = b
	}
}

// WithConcurrency sets how many tables are compared in parallel by
// Compare. Values above one trade the sorted output ordering for speed;
// each extra worker clones its own pair of connections.
func WithConcurrency(n int) Opt {
	return func(o *opts) {
		o.concurrency = n
	}
}

// WithKeyOverride forces the matching key for one table instead of the
// usual key selection.
func WithKeyOverride(table dbtable.Name, columns []string) Opt {
	return func(o *opts) {
		if o.keyOverrides == nil {
			o.keyOverrides = make(map[string][]string)
		}
		o.keyOverrides[lowerName(table)] = columns
	}
}

func defaultOpts() opts {
	return opts{
		rowBatchSize: DefaultRowBatchSize,
		tableFilter:  DefaultFilterString,
		rows:         true,
		concurrency:  1,
	}
}

// tablePair is one entry of the union of table names across both sides.
type tablePair struct {
	name     dbtable.Name
	inSource bool
	inTarget bool
}

var tablesComparedMetric = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "dbdiff",
	Subsystem: "compare",
	Name:      "tables_compared",
	Help:      "Number of tables whose comparison has completed.",
})

// Aggregator yields one Comparison per table as a lazy sequence. Work
// happens only as the consumer advances it; ceasing to pull and calling
// Close issues no further queries. The Aggregator does not own the
// connections; the caller releases them after the sequence is done.
type Aggregator struct {
	inspectors [2]*inspect.Inspector
	logger     zerolog.Logger
	opts       opts
	limiter    *rate.Limiter

	pairs []tablePair
	idx   int
	err   error
	next  *changeset.Comparison
}

// NewAggregator lists and pairs the tables of both databases. Row data is
// not touched until the sequence is advanced.
func NewAggregator(
	ctx context.Context, conns dbconn.OrderedConns, logger zerolog.Logger, inOpts ...Opt,
) (*Aggregator, error) {
	o := defaultOpts()
	for _, applyOpt := range inOpts {
		applyOpt(&o)
	}

	a := &Aggregator{
		inspectors: [2]*inspect.Inspector{inspect.NewInspector(conns[0]), inspect.NewInspector(conns[1])},
		logger:     logger,
		opts:       o,
		limiter:    rate.NewLimiter(o.rateLimit(), 1),
	}

	var names [2][]dbtable.Name
	for i, insp := range a.inspectors {
		tbls, err := insp.Tables(ctx)
		if err != nil {
			return nil, err
		}
		if names[i], err = filterNames(o.tableFilter, tbls); err != nil {
			return nil, err
		}
	}
	a.pairs = pairTables(names[0], names[1])
	return a, nil
}

// HasNext advances to the next table comparison if one remains. It
// returns false once the sequence is exhausted or a fatal error occurred;
// check Error afterwards.
func (a *Aggregator) HasNext(ctx context.Context) bool {
	if a.next != nil {
		return true
	}
	if a.err != nil || a.idx >= len(a.pairs) {
		return false
	}
	pair := a.pairs[a.idx]
	a.idx++
	cmp, err := compareOne(ctx, a.inspectors, a.logger, a.opts, a.limiter, pair)
	if err != nil {
		a.err = err
		return false
	}
	a.next = &cmp
	return true
}

func (a *Aggregator) Next(ctx context.Context) changeset.Comparison {
	if !a.HasNext(ctx) {
		return changeset.Comparison{}
	}
	cmp := *a.next
	a.next = nil
	return cmp
}

func (a *Aggregator) Error() error {
	return a.err
}

// pairTables walks two sorted name lists with two pointers and returns
// their union in ascending order, tagging each entry with the sides it
// appears on.
func pairTables(source, target []dbtable.Name) []tablePair {
	var pairs []tablePair
	i, j := 0, 0
	for i < len(source) && j < len(target) {
		switch c := source[i].Compare(target[j]); {
		case c < 0:
			pairs = append(pairs, tablePair{name: source[i], inSource: true})
			i++
		case c > 0:
			pairs = append(pairs, tablePair{name: target[j], inTarget: true})
			j++
		default:
			pairs = append(pairs, tablePair{name: source[i], inSource: true, inTarget: true})
			i++
			j++
		}
	}
	for ; i < len(source); i++ {
		pairs = append(pairs, tablePair{name: source[i], inSource: true})
	}
	for ; j < len(target); j++ {
		pairs = append(pairs, tablePair{name: target[j], inTarget: true})
	}
	return pairs
}

func compareOne(
	ctx context.Context,
	inspectors [2]*inspect.Inspector,
	logger zerolog.Logger,
	o opts,
	limiter *rate.Limiter,
	pair tablePair,
) (changeset.Comparison, error) {
	defer tablesComparedMetric.Inc()

	cmp := changeset.Comparison{Table: pair.name}

	// A table absent from one side short-circuits: every column of the
	// present side is flagged and no row merge is attempted.
	if !pair.inSource || !pair.inTarget {
		if pair.inSource {
			meta, err := inspectors[0].TableMeta(ctx, pair.name)
			if err != nil {
				return cmp, err
			}
			cmp.Columns = tablediff.AllRemoved(meta)
			cmp.Rows = changeset.ChangeSet{OldHeader: meta.ColumnNames()}
		} else {
			meta, err := inspectors[1].TableMeta(ctx, pair.name)
			if err != nil {
				return cmp, err
			}
			cmp.Columns = tablediff.AllAdded(meta)
			cmp.Rows = changeset.ChangeSet{NewHeader: meta.ColumnNames()}
		}
		return cmp, nil
	}

	source, err := inspectors[0].TableMeta(ctx, pair.name)
	if err != nil {
		return cmp, err
	}
	target, err := inspectors[1].TableMeta(ctx, pair.name)
	if err != nil {
		return cmp, err
	}

	cmp.Columns = tablediff.Columns(source, target)
	cmp.Rows = changeset.ChangeSet{
		NewHeader: target.ColumnNames(),
		OldHeader: source.ColumnNames(),
	}
	if !o.rows {
		return cmp, nil
	}

	key, ok := pickKey(source, target, o)
	if !ok {
		cmp.Warnings = append(cmp.Warnings, changeset.Warning{
			Kind:   changeset.WarningSchemaIncompatible,
			Detail: "the two sides share no columns; row comparison skipped",
		})
		return cmp, nil
	}
	logger.Debug().
		Stringer("table", pair.name).
		Stringer("key", key.Kind).
		Strs("columns", key.Columns).
		Msg("matching key chosen")

	mergeTable, iterTables := buildTables(pair.name, source, target, key)

	// Keyset pagination silently skips duplicate and NULL keys, so it is
	// only used when the key provably excludes both. Everything else
	// streams a single ordered query per side.
	paginated := key.Unique && keyNotNull(source, key.Columns) && keyNotNull(target, key.Columns)

	var iterators [2]rowiterator.Iterator
	for i, insp := range inspectors {
		it, err := insp.Rows(ctx, iterTables[i], o.rowBatchSize, limiter, paginated)
		if err != nil {
			return cmp, errors.Wrapf(err, "error initializing row iterator on %s", insp.Conn().ID())
		}
		defer it.Close()
		iterators[i] = it
	}

	evl := rowdiff.NewChangeSetListener(logger, mergeTable)
	if err := rowdiff.Merge(ctx, iterators[0], iterators[1], mergeTable, evl); err != nil {
		return cmp, err
	}
	cmp.Rows.Mods = evl.Mods

	if evl.Stats.NumDuplicate > 0 {
		cmp.Warnings = append(cmp.Warnings, changeset.Warning{
			Kind:   changeset.WarningKeyAmbiguity,
			Detail: "matching key is not unique; duplicates paired in emission order",
		})
	}
	if evl.Stats.NumNullKey > 0 && key.Kind == rowkey.KindAllColumns {
		cmp.Warnings = append(cmp.Warnings, changeset.Warning{
			Kind:   changeset.WarningKeyAmbiguity,
			Detail: "full-row matching key contains NULLs; matches may be ambiguous",
		})
	}
	for idx := range evl.LooseColumns {
		cmp.Warnings = append(cmp.Warnings, changeset.Warning{
			Kind:   changeset.WarningTypeMismatch,
			Detail: "column " + source.Columns[idx].Name + " compared by string form due to diverging types",
		})
	}
	logger.Info().
		Stringer("table", pair.name).
		Msgf("finished row comparison: %s", evl.Stats.String())
	return cmp, nil
}

func pickKey(source, target dbtable.TableMeta, o opts) (rowkey.Key, bool) {
	if override, ok := o.keyOverrides[lowerName(source.Name)]; ok {
		if key, ok := rowkey.Override(source, target, override); ok {
			return key, true
		}
	}
	return rowkey.Pick(source, target)
}

// buildTables derives the iterator scan for each side and the index
// plumbing the merge needs. Each side scans its own full column list;
// the key and shared columns are addressed positionally per side.
func buildTables(
	name dbtable.Name, source, target dbtable.TableMeta, key rowkey.Key,
) (rowdiff.Table, [2]rowiterator.Table) {
	mergeTable := rowdiff.Table{Name: name}
	for _, k := range key.Columns {
		mergeTable.SourceKeyIdx = append(mergeTable.SourceKeyIdx, source.ColumnIndex(k))
		mergeTable.TargetKeyIdx = append(mergeTable.TargetKeyIdx, target.ColumnIndex(k))
	}
	for _, c := range tablediff.SharedColumns(source, target) {
		mergeTable.SharedIdx = append(mergeTable.SharedIdx, [2]int{source.ColumnIndex(c), target.ColumnIndex(c)})
	}

	var iterTables [2]rowiterator.Table
	for i, meta := range [2]dbtable.TableMeta{source, target} {
		t := rowiterator.Table{Name: name, ColumnNames: meta.ColumnNames()}
		for _, col := range meta.Columns {
			t.ColumnAffinities = append(t.ColumnAffinities, dbval.AffinityOf(col.Type))
		}
		for _, k := range key.Columns {
			// Key columns must carry the side's own spelling.
			col, _ := meta.Column(k)
			t.KeyColumns = append(t.KeyColumns, col.Name)
		}
		iterTables[i] = t
	}
	return mergeTable, iterTables
}

func keyNotNull(meta dbtable.TableMeta, key []string) bool {
	for _, k := range key {
		col, ok := meta.Column(k)
		if !ok || !col.NotNull {
			return false
		}
	}
	return true
}

func lowerName(n dbtable.Name) string {
	return strings.ToLower(string(n))
}
