// Package rowdiff performs the streaming sort-merge diff of two row
// sequences. Both inputs must already be sorted ascending by the matching
// key; the merge holds at most one row per side beyond the iterators' own
// buffering, so tables far larger than memory can be compared.
package rowdiff

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/opendpm/dbdiff/dbtable"
	"github.com/opendpm/dbdiff/dbval"
	"github.com/opendpm/dbdiff/rowiterator"
)

// EventListener receives merge events as they are discovered. Added and
// removed rows are oriented source-to-target: a row only on the target
// side was added, a row only on the source side was removed.
type EventListener interface {
	OnRowScan()
	OnMatch()
	OnModifiedRow(old, new dbval.Values)
	OnAddedRow(row dbval.Values)
	OnRemovedRow(row dbval.Values)
	OnDuplicateKey(key dbval.Values)
	OnNullKey(key dbval.Values)
	OnLooseCompare(sourceIdx int)
}

// Table carries the index plumbing the merge needs. Rows from each side
// are positionally aligned to that side's own column list, so key and
// shared columns are addressed through per-side index slices.
type Table struct {
	Name dbtable.Name

	// SourceKeyIdx and TargetKeyIdx locate the i-th key column within each
	// side's row. Both have the same length.
	SourceKeyIdx []int
	TargetKeyIdx []int

	// SharedIdx pairs the positions of each column present on both sides,
	// [0] in the source row and [1] in the target row. Key columns are
	// included; content comparison skips them.
	SharedIdx [][2]int
}

func (t Table) keyColumn(idx [2]int) bool {
	for i, s := range t.SourceKeyIdx {
		if s == idx[0] && t.TargetKeyIdx[i] == idx[1] {
			return true
		}
	}
	return false
}

// Merge walks both iterators in one forward pass. Duplicate keys pair the
// i-th occurrence on one side with the i-th on the other; unmatched extras
// drain as plain adds or removes. A NULL inside a key tuple is reported
// but still merged, since NULL sorts first on both sides.
func Merge(
	ctx context.Context,
	source, target rowiterator.Iterator,
	table Table,
	evl EventListener,
) error {
	var lastSourceKey, lastTargetKey dbval.Values

	// noteTargetKey mirrors the source-side duplicate tracking for every
	// consumed target row, so a key duplicated on either side is reported.
	noteTargetKey := func(row dbval.Values) {
		key := keyValues(row, table.TargetKeyIdx)
		if lastTargetKey != nil && keysEqual(key, lastTargetKey) {
			evl.OnDuplicateKey(key)
		}
		lastTargetKey = key
	}

	for source.HasNext(ctx) {
		evl.OnRowScan()
		sourceVals := source.Next(ctx)

		sourceKey := keyValues(sourceVals, table.SourceKeyIdx)
		if hasNull(sourceKey) {
			evl.OnNullKey(sourceKey)
		}
		if lastSourceKey != nil && keysEqual(sourceKey, lastSourceKey) {
			evl.OnDuplicateKey(sourceKey)
		}
		lastSourceKey = sourceKey

	targetLoop:
		for {
			if !target.HasNext(ctx) {
				if err := target.Error(); err == nil {
					evl.OnRemovedRow(sourceVals)
				}
				break
			}

			targetVals := target.Peek(ctx)
			c := sourceVals.CompareAt(table.SourceKeyIdx, table.TargetKeyIdx, targetVals)
			switch {
			case c > 0:
				// Target-only row. Consume and keep scanning.
				targetVals = target.Next(ctx)
				noteTargetKey(targetVals)
				evl.OnAddedRow(targetVals)
			case c == 0:
				targetVals = target.Next(ctx)
				noteTargetKey(targetVals)
				if contentEqual(sourceVals, targetVals, table, evl) {
					evl.OnMatch()
				} else {
					evl.OnModifiedRow(sourceVals, targetVals)
				}
				break targetLoop
			default:
				evl.OnRemovedRow(sourceVals)
				break targetLoop
			}
		}
	}

	if err := source.Error(); err != nil {
		return errors.Wrapf(err, "error reading source rows for table %s", table.Name)
	}
	for target.HasNext(ctx) {
		targetVals := target.Next(ctx)
		noteTargetKey(targetVals)
		evl.OnAddedRow(targetVals)
	}
	if err := target.Error(); err != nil {
		return errors.Wrapf(err, "error reading target rows for table %s", table.Name)
	}
	return nil
}

// contentEqual compares the non-key shared columns of two key-equal rows.
// When declared types diverge enough that a cell pair has incompatible
// kinds, comparison falls back to string form and the fallback is
// reported once per offending column.
func contentEqual(sourceVals, targetVals dbval.Values, table Table, evl EventListener) bool {
	equal := true
	for _, idx := range table.SharedIdx {
		if table.keyColumn(idx) {
			continue
		}
		eq, lossy := sourceVals[idx[0]].EqualLoose(targetVals[idx[1]])
		if lossy {
			evl.OnLooseCompare(idx[0])
		}
		if !eq {
			equal = false
		}
	}
	return equal
}

func keyValues(row dbval.Values, idx []int) dbval.Values {
	key := make(dbval.Values, len(idx))
	for i, j := range idx {
		key[i] = row[j]
	}
	return key
}

func keysEqual(a, b dbval.Values) bool {
	for i := range a {
		if a[i].Compare(b[i]) != 0 {
			return false
		}
	}
	return true
}

func hasNull(key dbval.Values) bool {
	for _, v := range key {
		if v.IsNull() {
			return true
		}
	}
	return false
}
