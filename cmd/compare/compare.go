package compare

import (
	"context"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/opendpm/dbdiff/cmd/internal/cmdutil"
	"github.com/opendpm/dbdiff/compare"
	"github.com/opendpm/dbdiff/compare/report"
	"github.com/opendpm/dbdiff/dbtable"
)

func Command() *cobra.Command {
	var (
		compareConcurrency   int
		compareRowBatchSize  int
		compareRowsPerSecond int
		compareRows          bool
		compareKeyOverrides  []string
		compareJSONPath      string
	)

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare the schemas and row data of two databases.",
		Long:  `Compare reports every added, removed, or modified table, column, and row between the source and target databases.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := cmdutil.Logger()
			if err != nil {
				return err
			}
			cmdutil.RunMetricsServer(logger)

			ctx := context.Background()
			conns, err := cmdutil.LoadDBConns(ctx)
			if err != nil {
				return err
			}
			defer func() {
				for _, conn := range conns {
					_ = conn.Close(context.Background())
				}
			}()

			reporter := report.CombinedReporter{}
			reporter.Reporters = append(reporter.Reporters, report.LogReporter{Logger: logger})
			if compareJSONPath != "" {
				w := os.Stdout
				if compareJSONPath != "-" {
					if w, err = os.Create(compareJSONPath); err != nil {
						return errors.Wrapf(err, "error creating %s", compareJSONPath)
					}
				}
				reporter.Reporters = append(reporter.Reporters, report.NewJSONReporter(w))
			}

			opts := []compare.Opt{
				compare.WithConcurrency(compareConcurrency),
				compare.WithRowBatchSize(compareRowBatchSize),
				compare.WithRowsPerSecond(compareRowsPerSecond),
				compare.WithRows(compareRows),
				compare.WithTableFilter(cmdutil.TableFilter()),
			}
			for _, override := range compareKeyOverrides {
				table, cols, found := strings.Cut(override, "=")
				if !found || table == "" || cols == "" {
					return errors.Newf("malformed --key %q, expected table=col1,col2", override)
				}
				opts = append(opts, compare.WithKeyOverride(dbtable.Name(table), strings.Split(cols, ",")))
			}

			logger.Info().Msg("comparison in progress")
			if err := compare.Compare(ctx, conns, logger, reporter, opts...); err != nil {
				_ = reporter.Close()
				return errors.Wrapf(err, "error comparing databases")
			}
			if err := reporter.Close(); err != nil {
				return errors.Wrapf(err, "error finishing report")
			}
			logger.Info().Msg("comparison complete")
			return nil
		},
	}

	cmd.PersistentFlags().IntVar(
		&compareConcurrency,
		"concurrency",
		1,
		"number of tables to compare at a time (values above 1 report in completion order)",
	)
	cmd.PersistentFlags().IntVar(
		&compareRowBatchSize,
		"row-batch-size",
		compare.DefaultRowBatchSize,
		"number of rows to get from a table at a time",
	)
	cmd.PersistentFlags().IntVar(
		&compareRowsPerSecond,
		"rows-per-second",
		0,
		"if set, maximum number of rows to read per second during scanning",
	)
	cmd.PersistentFlags().BoolVar(
		&compareRows,
		"rows",
		true,
		"whether to compare row data in addition to schemas",
	)
	cmd.PersistentFlags().StringArrayVar(
		&compareKeyOverrides,
		"key",
		nil,
		"override the matching key for a table, e.g. --key users=id,email (repeatable)",
	)
	cmd.PersistentFlags().StringVar(
		&compareJSONPath,
		"json-output",
		"",
		"write each table comparison as a line of JSON to this file ('-' for stdout)",
	)
	cmdutil.RegisterLoggerFlags(cmd)
	cmdutil.RegisterDBConnFlags(cmd)
	cmdutil.RegisterMetricsFlags(cmd)
	cmdutil.RegisterNameFilterFlags(cmd)
	return cmd
}
