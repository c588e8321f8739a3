package dbtable

import (
	"fmt"
	"strings"
)

// Name is an unqualified table name. Comparisons are case-insensitive to
// match SQLite identifier semantics, but the declared spelling is kept.
type Name string

func (n Name) Compare(o Name) int {
	return strings.Compare(strings.ToLower(string(n)), strings.ToLower(string(o)))
}

func (n Name) Less(o Name) bool {
	return n.Compare(o) < 0
}

func (n Name) String() string {
	return string(n)
}

// ColumnMeta is an immutable snapshot of one column definition, taken at
// inspection time.
type ColumnMeta struct {
	Name       string
	Type       string
	NotNull    bool
	Default    *string
	PrimaryKey bool
}

func (c ColumnMeta) Equal(o ColumnMeta) bool {
	if c.Name != o.Name || c.Type != o.Type || c.NotNull != o.NotNull || c.PrimaryKey != o.PrimaryKey {
		return false
	}
	if (c.Default == nil) != (o.Default == nil) {
		return false
	}
	return c.Default == nil || *c.Default == *o.Default
}

func (c ColumnMeta) String() string {
	return fmt.Sprintf("%s %s", c.Name, c.Type)
}

// TableMeta is an immutable snapshot of one table definition.
// PrimaryKey preserves declaration order for stable key construction.
type TableMeta struct {
	Name       Name
	Columns    []ColumnMeta
	PrimaryKey []string
}

// ColumnNames returns column names in declaration order.
func (t TableMeta) ColumnNames() []string {
	ret := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		ret[i] = c.Name
	}
	return ret
}

// Column returns the column with the given name, matched case-insensitively.
func (t TableMeta) Column(name string) (ColumnMeta, bool) {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return ColumnMeta{}, false
}

// ColumnIndex returns the declaration-order index of the named column, or -1.
func (t TableMeta) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}
