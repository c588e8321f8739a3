// Package changeset holds the difference records produced by a comparison
// and their wire encoding. The JSON shape is nested arrays rather than
// named fields; downstream report generators consume it positionally, so
// the encoding here is fixed.
package changeset

import (
	"encoding/json"

	"github.com/opendpm/dbdiff/dbtable"
	"github.com/opendpm/dbdiff/dbval"
)

// Mod is one add, remove, or modify event. A nil New means the row exists
// only on the old side (removed); a nil Old means it exists only on the
// new side (added). Both non-nil means modified, and the two rows must
// differ in content.
type Mod struct {
	New dbval.Values
	Old dbval.Values
}

func Added(row dbval.Values) Mod {
	return Mod{New: row}
}

func Removed(row dbval.Values) Mod {
	return Mod{Old: row}
}

func Modified(old, new dbval.Values) Mod {
	return Mod{New: new, Old: old}
}

// MarshalJSON encodes the pair as [new, old] with null for an absent side.
func (m Mod) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{m.New, m.Old})
}

// ChangeSet is the header-plus-changes structure for one dimension of one
// table. A nil header means that side has no such object at all (the table
// is missing on that side); headers may also differ in content after a
// schema change, which is why both are carried.
type ChangeSet struct {
	NewHeader []string
	OldHeader []string
	Mods      []Mod
}

// Empty reports whether the set carries no changes.
func (cs ChangeSet) Empty() bool {
	return len(cs.Mods) == 0
}

// MarshalJSON encodes [[newHeader|null, oldHeader|null], [mods...]].
func (cs ChangeSet) MarshalJSON() ([]byte, error) {
	mods := cs.Mods
	if mods == nil {
		mods = []Mod{}
	}
	return json.Marshal([2]any{[2]any{cs.NewHeader, cs.OldHeader}, mods})
}

// WarningKind classifies non-fatal anomalies found during a comparison.
type WarningKind int

const (
	// WarningKeyAmbiguity means the matching key did not uniquely identify
	// rows; duplicates were paired in emission order.
	WarningKeyAmbiguity WarningKind = iota
	// WarningTypeMismatch means a column's declared type differed enough
	// between sides that value comparison fell back to string form.
	WarningTypeMismatch
	// WarningSchemaIncompatible means the two sides share no columns, so
	// row comparison was skipped entirely.
	WarningSchemaIncompatible
)

func (k WarningKind) String() string {
	switch k {
	case WarningKeyAmbiguity:
		return "key_ambiguity"
	case WarningTypeMismatch:
		return "type_mismatch"
	case WarningSchemaIncompatible:
		return "schema_incompatible"
	}
	return "unknown"
}

// Warning is advisory metadata attached to a Comparison. Warnings are for
// the caller to log; they are not part of the wire shape.
type Warning struct {
	Kind   WarningKind
	Detail string
}

// Comparison is the full difference record for one table.
type Comparison struct {
	Table    dbtable.Name
	Columns  ChangeSet
	Rows     ChangeSet
	Warnings []Warning
}

// Empty reports whether the table had no differences at all.
func (c Comparison) Empty() bool {
	return c.Columns.Empty() && c.Rows.Empty()
}

// MarshalJSON encodes [tableName, [colsChangeSet, rowsChangeSet]].
// Warnings are deliberately excluded.
func (c Comparison) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{c.Table, [2]any{c.Columns, c.Rows}})
}

// ColumnHeader is the header used for column-level ChangeSets. Each column
// difference row carries the fields of the column definition itself, in
// this fixed order. cid is the column's declaration index on its own side.
var ColumnHeader = []string{"cid", "name", "type", "notnull", "dflt_value", "pk"}

// ColumnValues encodes one column definition as a difference row aligned
// to ColumnHeader.
func ColumnValues(cid int, cm dbtable.ColumnMeta) dbval.Values {
	vals := dbval.Values{
		dbval.NewInt(int64(cid)),
		dbval.NewText(cm.Name),
		dbval.NewText(cm.Type),
		dbval.NewInt(boolInt(cm.NotNull)),
		dbval.Null,
		dbval.NewInt(boolInt(cm.PrimaryKey)),
	}
	if cm.Default != nil {
		vals[4] = dbval.NewText(*cm.Default)
	}
	return vals
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
