package dbtable

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNameCompare(t *testing.T) {
	for _, tc := range []struct {
		a, b     Name
		expected int
	}{
		{a: "b", b: "b", expected: 0},
		{a: "b", b: "a", expected: 1},
		{a: "c", b: "e", expected: -1},
		{a: "Users", b: "users", expected: 0},
		{a: "ROLES", b: "users", expected: -1},
	} {
		t.Run(fmt.Sprintf("%s_%s", tc.a, tc.b), func(t *testing.T) {
			require.Equal(t, tc.expected, tc.a.Compare(tc.b))
			require.Equal(t, -tc.expected, tc.b.Compare(tc.a))
		})
	}
}

func TestColumnMetaEqual(t *testing.T) {
	def := func(s string) *string { return &s }
	for _, tc := range []struct {
		desc     string
		a, b     ColumnMeta
		expected bool
	}{
		{
			desc:     "identical",
			a:        ColumnMeta{Name: "id", Type: "INTEGER", NotNull: true, PrimaryKey: true},
			b:        ColumnMeta{Name: "id", Type: "INTEGER", NotNull: true, PrimaryKey: true},
			expected: true,
		},
		{
			desc:     "type changed",
			a:        ColumnMeta{Name: "id", Type: "INTEGER"},
			b:        ColumnMeta{Name: "id", Type: "TEXT"},
			expected: false,
		},
		{
			desc:     "default added",
			a:        ColumnMeta{Name: "v", Type: "TEXT"},
			b:        ColumnMeta{Name: "v", Type: "TEXT", Default: def("'x'")},
			expected: false,
		},
		{
			desc:     "same default",
			a:        ColumnMeta{Name: "v", Type: "TEXT", Default: def("'x'")},
			b:        ColumnMeta{Name: "v", Type: "TEXT", Default: def("'x'")},
			expected: true,
		},
		{
			desc:     "nullability changed",
			a:        ColumnMeta{Name: "v", Type: "TEXT", NotNull: true},
			b:        ColumnMeta{Name: "v", Type: "TEXT"},
			expected: false,
		},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			require.Equal(t, tc.expected, tc.a.Equal(tc.b))
			require.Equal(t, tc.expected, tc.b.Equal(tc.a))
		})
	}
}

func TestTableMetaColumnLookup(t *testing.T) {
	tm := TableMeta{
		Name: "users",
		Columns: []ColumnMeta{
			{Name: "id", Type: "INTEGER", PrimaryKey: true},
			{Name: "Email", Type: "TEXT"},
		},
		PrimaryKey: []string{"id"},
	}
	require.Equal(t, []string{"id", "Email"}, tm.ColumnNames())
	require.Equal(t, 1, tm.ColumnIndex("email"))
	require.Equal(t, -1, tm.ColumnIndex("missing"))
	c, ok := tm.Column("EMAIL")
	require.True(t, ok)
	require.Equal(t, "Email", c.Name)
}
