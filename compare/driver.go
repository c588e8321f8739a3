package compare

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/opendpm/dbdiff/compare/report"
	"github.com/opendpm/dbdiff/dbconn"
	"github.com/opendpm/dbdiff/inspect"
)

var workersRunningMetric = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "dbdiff",
	Subsystem: "compare",
	Name:      "workers_running",
	Help:      "Number of table comparison workers that are running.",
})

// Compare runs the whole comparison and delivers each table's result to
// the reporter. At the default concurrency of one, tables are reported in
// sorted name order. Higher concurrency compares tables in parallel on
// cloned connections and reports in completion order instead.
func Compare(
	ctx context.Context,
	conns dbconn.OrderedConns,
	logger zerolog.Logger,
	reporter report.Reporter,
	inOpts ...Opt,
) error {
	o := defaultOpts()
	for _, applyOpt := range inOpts {
		applyOpt(&o)
	}

	agg, err := NewAggregator(ctx, conns, logger, inOpts...)
	if err != nil {
		return errors.Wrap(err, "error listing database tables")
	}

	if o.concurrency <= 1 {
		for agg.HasNext(ctx) {
			reporter.Report(agg.Next(ctx))
		}
		return agg.Error()
	}

	// Parallel mode. Database driver cursors are not assumed thread safe,
	// so every worker clones its own pair of connections and holds its own
	// inspectors for the tables it picks up.
	g, gctx := errgroup.WithContext(ctx)
	workQueue := make(chan tablePair)
	for i := 0; i < o.concurrency; i++ {
		g.Go(func() error {
			workersRunningMetric.Inc()
			defer workersRunningMetric.Dec()

			var cloned [2]dbconn.Conn
			for j, conn := range conns {
				c, err := conn.Clone(gctx)
				if err != nil {
					return errors.Wrapf(err, "error cloning connection %s", conn.ID())
				}
				defer func() {
					_ = c.Close(context.Background())
				}()
				cloned[j] = c
			}
			inspectors := [2]*inspect.Inspector{
				inspect.NewInspector(cloned[0]),
				inspect.NewInspector(cloned[1]),
			}
			limiter := rate.NewLimiter(o.rateLimit(), 1)

			for pair := range workQueue {
				cmp, err := compareOne(gctx, inspectors, logger, o, limiter, pair)
				if err != nil {
					return err
				}
				reporter.Report(cmp)
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(workQueue)
		for _, pair := range agg.pairs {
			select {
			case workQueue <- pair:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	return g.Wait()
}
