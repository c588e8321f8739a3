package rowdiff

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/opendpm/dbdiff/compare/changeset"
	"github.com/opendpm/dbdiff/dbconn"
	"github.com/opendpm/dbdiff/dbval"
	"github.com/opendpm/dbdiff/rowiterator"
)

// genIterator produces rows on demand from a generator function, so large
// inputs never materialize in the test itself.
type genIterator struct {
	conn    dbconn.Conn
	gen     func(i int) (dbval.Values, bool)
	idx     int
	peeked  dbval.Values
	hasPeek bool

	// maxOutstanding tracks how many rows were handed out beyond the one
	// the consumer most recently finished with.
	outstanding    int
	maxOutstanding int
}

var _ rowiterator.Iterator = (*genIterator)(nil)

func newGenIterator(gen func(i int) (dbval.Values, bool)) *genIterator {
	return &genIterator{conn: dbconn.MakeFakeConn("gen"), gen: gen}
}

func (it *genIterator) Conn() dbconn.Conn { return it.conn }

func (it *genIterator) HasNext(ctx context.Context) bool {
	if it.hasPeek {
		return true
	}
	row, ok := it.gen(it.idx)
	if !ok {
		return false
	}
	it.peeked = row
	it.hasPeek = true
	it.outstanding++
	if it.outstanding > it.maxOutstanding {
		it.maxOutstanding = it.outstanding
	}
	return true
}

func (it *genIterator) Peek(ctx context.Context) dbval.Values {
	if !it.hasPeek && !it.HasNext(ctx) {
		return nil
	}
	return it.peeked
}

func (it *genIterator) Next(ctx context.Context) dbval.Values {
	row := it.Peek(ctx)
	it.hasPeek = false
	it.idx++
	it.outstanding--
	return row
}

func (it *genIterator) Error() error { return nil }
func (it *genIterator) Close()       {}

func sliceIterator(rows []dbval.Values) *genIterator {
	return newGenIterator(func(i int) (dbval.Values, bool) {
		if i >= len(rows) {
			return nil, false
		}
		return rows[i], true
	})
}

func row(id int64, email string) dbval.Values {
	return dbval.Values{dbval.NewInt(id), dbval.NewText(email)}
}

func singleKeyTable() Table {
	return Table{
		Name:         "users",
		SourceKeyIdx: []int{0},
		TargetKeyIdx: []int{0},
		SharedIdx:    [][2]int{{0, 0}, {1, 1}},
	}
}

func TestMerge(t *testing.T) {
	ctx := context.Background()

	for _, tc := range []struct {
		desc     string
		source   []dbval.Values
		target   []dbval.Values
		expected []changeset.Mod
	}{
		{
			desc:   "modified and added",
			source: []dbval.Values{row(1, "a@x"), row(2, "b@x")},
			target: []dbval.Values{row(1, "a@x"), row(2, "c@x"), row(3, "d@x")},
			expected: []changeset.Mod{
				changeset.Modified(row(2, "b@x"), row(2, "c@x")),
				changeset.Added(row(3, "d@x")),
			},
		},
		{
			desc:   "removed in the middle",
			source: []dbval.Values{row(1, "a"), row(2, "b"), row(3, "c")},
			target: []dbval.Values{row(1, "a"), row(3, "c")},
			expected: []changeset.Mod{
				changeset.Removed(row(2, "b")),
			},
		},
		{
			desc:     "identical",
			source:   []dbval.Values{row(1, "a"), row(2, "b")},
			target:   []dbval.Values{row(1, "a"), row(2, "b")},
			expected: nil,
		},
		{
			desc:   "empty source drains target as added",
			source: nil,
			target: []dbval.Values{row(1, "a"), row(2, "b")},
			expected: []changeset.Mod{
				changeset.Added(row(1, "a")),
				changeset.Added(row(2, "b")),
			},
		},
		{
			desc:   "empty target drains source as removed",
			source: []dbval.Values{row(1, "a")},
			target: nil,
			expected: []changeset.Mod{
				changeset.Removed(row(1, "a")),
			},
		},
		{
			desc:   "null key sorts first and matches",
			source: []dbval.Values{{dbval.Null, dbval.NewText("n")}, row(1, "a")},
			target: []dbval.Values{{dbval.Null, dbval.NewText("m")}, row(1, "a")},
			expected: []changeset.Mod{
				changeset.Modified(
					dbval.Values{dbval.Null, dbval.NewText("n")},
					dbval.Values{dbval.Null, dbval.NewText("m")},
				),
			},
		},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			evl := NewChangeSetListener(zerolog.Nop(), singleKeyTable())
			require.NoError(t, Merge(ctx, sliceIterator(tc.source), sliceIterator(tc.target), singleKeyTable(), evl))
			require.Equal(t, tc.expected, evl.Mods)
		})
	}
}

func TestMergeSymmetry(t *testing.T) {
	ctx := context.Background()
	a := []dbval.Values{row(1, "a"), row(2, "b"), row(4, "d")}
	b := []dbval.Values{row(1, "a"), row(2, "x"), row(3, "c")}

	fwd := NewChangeSetListener(zerolog.Nop(), singleKeyTable())
	require.NoError(t, Merge(ctx, sliceIterator(a), sliceIterator(b), singleKeyTable(), fwd))
	rev := NewChangeSetListener(zerolog.Nop(), singleKeyTable())
	require.NoError(t, Merge(ctx, sliceIterator(b), sliceIterator(a), singleKeyTable(), rev))

	require.Len(t, rev.Mods, len(fwd.Mods))
	for i, m := range fwd.Mods {
		require.Equal(t, m.New, rev.Mods[i].Old)
		require.Equal(t, m.Old, rev.Mods[i].New)
	}
}

func TestMergeDuplicateKeys(t *testing.T) {
	ctx := context.Background()
	// Full-row fallback key over a single column with duplicates: the i-th
	// duplicate pairs with the i-th on the other side, extras drain out.
	table := Table{
		Name:         "dups",
		SourceKeyIdx: []int{0},
		TargetKeyIdx: []int{0},
		SharedIdx:    [][2]int{{0, 0}},
	}
	key := func(s string) dbval.Values { return dbval.Values{dbval.NewText(s)} }

	source := []dbval.Values{key("a"), key("a"), key("a"), key("b")}
	target := []dbval.Values{key("a"), key("a"), key("c")}

	evl := NewChangeSetListener(zerolog.Nop(), table)
	require.NoError(t, Merge(ctx, sliceIterator(source), sliceIterator(target), table, evl))

	require.Equal(t, []changeset.Mod{
		changeset.Removed(key("a")),
		changeset.Removed(key("b")),
		changeset.Added(key("c")),
	}, evl.Mods)
	// Two source repeats of "a" plus one target repeat.
	require.Equal(t, 3, evl.Stats.NumDuplicate)
	require.Equal(t, 2, evl.Stats.NumMatch)
}

func TestMergeDuplicateKeysTargetOnly(t *testing.T) {
	ctx := context.Background()
	// A key duplicated only on the target side must still be reported, both
	// when the extra row pairs against a matching source row and when it
	// drains out after the source is exhausted.
	table := Table{
		Name:         "dups",
		SourceKeyIdx: []int{0},
		TargetKeyIdx: []int{0},
		SharedIdx:    [][2]int{{0, 0}},
	}
	key := func(s string) dbval.Values { return dbval.Values{dbval.NewText(s)} }

	for _, tc := range []struct {
		desc          string
		source        []dbval.Values
		target        []dbval.Values
		numDuplicates int
	}{
		{
			desc:          "extra pairs against later source row",
			source:        []dbval.Values{key("a"), key("b")},
			target:        []dbval.Values{key("a"), key("a"), key("b")},
			numDuplicates: 1,
		},
		{
			desc:          "extra drains after source exhausts",
			source:        []dbval.Values{key("a")},
			target:        []dbval.Values{key("a"), key("b"), key("b")},
			numDuplicates: 1,
		},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			evl := NewChangeSetListener(zerolog.Nop(), table)
			require.NoError(t, Merge(ctx, sliceIterator(tc.source), sliceIterator(tc.target), table, evl))
			require.Equal(t, tc.numDuplicates, evl.Stats.NumDuplicate)
		})
	}
}

func TestMergeLooseCompare(t *testing.T) {
	ctx := context.Background()
	source := []dbval.Values{{dbval.NewInt(1), dbval.NewText("7")}}
	target := []dbval.Values{{dbval.NewInt(1), dbval.NewBlob([]byte("7"))}}

	evl := NewChangeSetListener(zerolog.Nop(), singleKeyTable())
	require.NoError(t, Merge(ctx, sliceIterator(source), sliceIterator(target), singleKeyTable(), evl))

	// TEXT "7" and BLOB "7" agree in string form, so no mod is emitted,
	// but the loose comparison is recorded for the type warning.
	require.Empty(t, evl.Mods)
	require.Contains(t, evl.LooseColumns, 1)
}

func TestMergeDifferingHeaders(t *testing.T) {
	ctx := context.Background()
	// Source rows are (id, email, legacy); target rows are (created, id,
	// email). Only id and email are shared and id is the key.
	table := Table{
		Name:         "skewed",
		SourceKeyIdx: []int{0},
		TargetKeyIdx: []int{1},
		SharedIdx:    [][2]int{{0, 1}, {1, 2}},
	}
	source := []dbval.Values{
		{dbval.NewInt(1), dbval.NewText("a@x"), dbval.NewText("old")},
	}
	target := []dbval.Values{
		{dbval.NewText("2020"), dbval.NewInt(1), dbval.NewText("b@x")},
	}

	evl := NewChangeSetListener(zerolog.Nop(), table)
	require.NoError(t, Merge(ctx, sliceIterator(source), sliceIterator(target), table, evl))
	require.Equal(t, []changeset.Mod{
		changeset.Modified(source[0], target[0]),
	}, evl.Mods)
}

func TestMergeStreamingBound(t *testing.T) {
	ctx := context.Background()
	const numRows = 1_000_000

	source := newGenIterator(func(i int) (dbval.Values, bool) {
		if i >= numRows {
			return nil, false
		}
		return row(int64(i), "same"), true
	})
	target := newGenIterator(func(i int) (dbval.Values, bool) {
		if i >= numRows {
			return nil, false
		}
		v := "same"
		if i == 500_000 {
			v = "changed"
		}
		return row(int64(i), v), true
	})

	evl := NewChangeSetListener(zerolog.Nop(), singleKeyTable())
	require.NoError(t, Merge(ctx, source, target, singleKeyTable(), evl))

	require.Len(t, evl.Mods, 1)
	require.Equal(t, numRows, evl.Stats.NumScanned)
	// The merge never buffers beyond the current row on each side.
	require.LessOrEqual(t, source.maxOutstanding, 1)
	require.LessOrEqual(t, target.maxOutstanding, 1)
}
