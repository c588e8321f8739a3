package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opendpm/dbdiff/cmd/compare"
)

var rootCmd = &cobra.Command{
	Use:   "dbdiff",
	Short: "Structural and content comparison of relational databases",
	Long:  `dbdiff compares two relational databases with mostly identical schemas and reports every table, column, and row difference without loading either database fully into memory.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(compare.Command())
}
