// Package tablediff computes column-level differences between the two
// definitions of one table. It is a pure function of the inspected
// metadata and touches no connection.
package tablediff

import (
	"strings"

	"github.com/opendpm/dbdiff/compare/changeset"
	"github.com/opendpm/dbdiff/dbtable"
)

// Columns diffs the column definitions of a table present on both sides.
// Differences are emitted in source declaration order, with columns that
// exist only on the target appended in target declaration order.
func Columns(source, target dbtable.TableMeta) changeset.ChangeSet {
	cs := changeset.ChangeSet{
		NewHeader: changeset.ColumnHeader,
		OldHeader: changeset.ColumnHeader,
	}
	for i, sc := range source.Columns {
		tc, ok := target.Column(sc.Name)
		switch {
		case !ok:
			cs.Mods = append(cs.Mods, changeset.Removed(changeset.ColumnValues(i, sc)))
		case !sc.Equal(tc):
			cs.Mods = append(cs.Mods, changeset.Modified(
				changeset.ColumnValues(i, sc),
				changeset.ColumnValues(target.ColumnIndex(tc.Name), tc),
			))
		}
	}
	for i, tc := range target.Columns {
		if _, ok := source.Column(tc.Name); !ok {
			cs.Mods = append(cs.Mods, changeset.Added(changeset.ColumnValues(i, tc)))
		}
	}
	return cs
}

// AllAdded marks every column of a table that exists only on the target.
func AllAdded(target dbtable.TableMeta) changeset.ChangeSet {
	cs := changeset.ChangeSet{NewHeader: changeset.ColumnHeader}
	for i, c := range target.Columns {
		cs.Mods = append(cs.Mods, changeset.Added(changeset.ColumnValues(i, c)))
	}
	return cs
}

// AllRemoved marks every column of a table that exists only on the source.
func AllRemoved(source dbtable.TableMeta) changeset.ChangeSet {
	cs := changeset.ChangeSet{OldHeader: changeset.ColumnHeader}
	for i, c := range source.Columns {
		cs.Mods = append(cs.Mods, changeset.Removed(changeset.ColumnValues(i, c)))
	}
	return cs
}

// SharedColumns returns the columns present on both sides, in source
// declaration order, matched case-insensitively by name.
func SharedColumns(source, target dbtable.TableMeta) []string {
	var shared []string
	for _, sc := range source.Columns {
		if _, ok := target.Column(sc.Name); ok {
			shared = append(shared, sc.Name)
		}
	}
	return shared
}

// TypesDiverge reports whether the declared types of a shared column are
// incompatible enough that value comparison may degrade to string form.
func TypesDiverge(source, target dbtable.ColumnMeta) bool {
	return !strings.EqualFold(strings.TrimSpace(source.Type), strings.TrimSpace(target.Type))
}
