package cmdutil

import (
	"github.com/spf13/cobra"

	"github.com/opendpm/dbdiff/compare"
)

var tableFilter = compare.DefaultFilterString

func RegisterNameFilterFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(
		&tableFilter,
		"table-filter",
		tableFilter,
		"POSIX regexp filter for tables to action on",
	)
}

func TableFilter() string {
	return tableFilter
}
