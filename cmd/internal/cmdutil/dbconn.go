package cmdutil

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/opendpm/dbdiff/dbconn"
	"github.com/opendpm/dbdiff/retry"
)

var DBConnConfig = dbconn.Config{}

func RegisterDBConnFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(
		&DBConnConfig.Source,
		"source",
		"",
		"URL or file path of the source database",
	)
	cmd.PersistentFlags().StringVar(
		&DBConnConfig.Target,
		"target",
		"",
		"URL or file path of the target database",
	)

	for _, required := range []string{"source", "target"} {
		if err := cmd.MarkPersistentFlagRequired(required); err != nil {
			panic(err)
		}
	}
}

func LoadDBConns(ctx context.Context) (dbconn.OrderedConns, error) {
	source, err := dbconn.ConnectWithRetry(ctx, "source", DBConnConfig.Source, retry.DefaultSettings())
	if err != nil {
		return dbconn.OrderedConns{}, err
	}
	target, err := dbconn.ConnectWithRetry(ctx, "target", DBConnConfig.Target, retry.DefaultSettings())
	if err != nil {
		return dbconn.OrderedConns{}, err
	}
	return dbconn.OrderedConns{source, target}, nil
}
