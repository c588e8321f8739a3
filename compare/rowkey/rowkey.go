// Package rowkey selects the column set used to match rows between the
// two definitions of one table. Selection is deterministic: identical
// metadata always yields the same key columns in the same order.
package rowkey

import (
	"strings"

	"github.com/opendpm/dbdiff/dbtable"
)

// Kind records which strategy produced a key.
type Kind int

const (
	// KindRowGUID means a conventionally named globally unique identifier
	// column exists on both sides and is used alone.
	KindRowGUID Kind = iota
	// KindPrimaryKey means the key is the intersection of the two declared
	// primary keys.
	KindPrimaryKey
	// KindAllColumns means no usable identifier exists and the full shared
	// column set stands in for row identity.
	KindAllColumns
	// KindOverride means the caller supplied the key explicitly.
	KindOverride
)

func (k Kind) String() string {
	switch k {
	case KindRowGUID:
		return "rowguid"
	case KindPrimaryKey:
		return "primary_key"
	case KindAllColumns:
		return "all_columns"
	case KindOverride:
		return "override"
	}
	return "unknown"
}

// rowGUIDColumn is the conventional identifier column name, matched
// case-insensitively. Tables migrated from Access carry it.
const rowGUIDColumn = "RowGUID"

// Key is the chosen matching key for one table.
type Key struct {
	Kind    Kind
	Columns []string

	// Unique is true when the key provably identifies at most one row per
	// side, which is what makes keyset pagination sound. The RowGUID
	// convention is trusted; a primary key intersection is unique only when
	// it covers both full primary keys.
	Unique bool
}

// Pick chooses the matching key for a table present on both sides.
// Preference order: the RowGUID convention, then the primary key
// intersection, then the full shared column set. Column names are spelled
// as the source declares them. ok is false when the two sides share no
// columns at all.
func Pick(source, target dbtable.TableMeta) (Key, bool) {
	if sc, ok := source.Column(rowGUIDColumn); ok {
		if _, ok := target.Column(rowGUIDColumn); ok {
			return Key{Kind: KindRowGUID, Columns: []string{sc.Name}, Unique: true}, true
		}
	}

	if len(source.PrimaryKey) > 0 && len(target.PrimaryKey) > 0 {
		shared := intersect(source.PrimaryKey, target.PrimaryKey)
		if len(shared) > 0 {
			return Key{
				Kind:    KindPrimaryKey,
				Columns: shared,
				Unique:  len(shared) == len(source.PrimaryKey) && len(shared) == len(target.PrimaryKey),
			}, true
		}
	}

	shared := intersect(source.ColumnNames(), target.ColumnNames())
	if len(shared) == 0 {
		return Key{}, false
	}
	return Key{Kind: KindAllColumns, Columns: shared}, true
}

// Override builds a caller-specified key after validating that every
// column exists on both sides. Nothing proves the caller's columns are
// unique, so the key never qualifies for keyset pagination; duplicate
// values surface as a key ambiguity warning instead of dropped rows.
func Override(source, target dbtable.TableMeta, columns []string) (Key, bool) {
	var resolved []string
	for _, c := range columns {
		sc, ok := source.Column(c)
		if !ok {
			return Key{}, false
		}
		if _, ok := target.Column(c); !ok {
			return Key{}, false
		}
		resolved = append(resolved, sc.Name)
	}
	if len(resolved) == 0 {
		return Key{}, false
	}
	return Key{Kind: KindOverride, Columns: resolved}, true
}

// intersect keeps the members of a that also appear in b, preserving a's
// order and spelling. Matching is case-insensitive.
func intersect(a, b []string) []string {
	var ret []string
	for _, x := range a {
		for _, y := range b {
			if strings.EqualFold(x, y) {
				ret = append(ret, x)
				break
			}
		}
	}
	return ret
}
