package rowdiff

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/opendpm/dbdiff/compare/changeset"
	"github.com/opendpm/dbdiff/dbval"
)

// Stats tallies merge outcomes for one table.
type Stats struct {
	NumScanned   int
	NumMatch     int
	NumModified  int
	NumAdded     int
	NumRemoved   int
	NumDuplicate int
	NumNullKey   int
}

func (s *Stats) String() string {
	return fmt.Sprintf(
		"source rows seen: %d, match: %d, modified: %d, added: %d, removed: %d, duplicate_key: %d, null_key: %d",
		s.NumScanned,
		s.NumMatch,
		s.NumModified,
		s.NumAdded,
		s.NumRemoved,
		s.NumDuplicate,
		s.NumNullKey,
	)
}

var (
	rowStatusMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dbdiff",
		Subsystem: "compare",
		Name:      "row_diff_status",
		Help:      "Outcome of rows that have been compared.",
	}, []string{"status"})
	rowsReadMetric = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dbdiff",
		Subsystem: "compare",
		Name:      "rows_read",
		Help:      "Rate of rows being read from the source database.",
	})
)

func init() {
	for _, s := range []string{"match", "modified", "added", "removed"} {
		rowStatusMetric.WithLabelValues(s)
	}
}

// ChangeSetListener is the default listener. It collects merge events into
// an ordered Mod list and remembers the anomalies the caller should
// surface as warnings.
type ChangeSetListener struct {
	logger zerolog.Logger
	table  Table

	Mods         []changeset.Mod
	Stats        Stats
	LooseColumns map[int]struct{}
}

func NewChangeSetListener(logger zerolog.Logger, table Table) *ChangeSetListener {
	return &ChangeSetListener{logger: logger, table: table}
}

func (l *ChangeSetListener) OnRowScan() {
	if l.Stats.NumScanned%10000 == 0 && l.Stats.NumScanned > 0 {
		l.logger.Debug().
			Stringer("table", l.table.Name).
			Msgf("progress: %s", l.Stats.String())
	}
	rowsReadMetric.Inc()
	l.Stats.NumScanned++
}

func (l *ChangeSetListener) OnMatch() {
	l.Stats.NumMatch++
	rowStatusMetric.WithLabelValues("match").Inc()
}

func (l *ChangeSetListener) OnModifiedRow(old, new dbval.Values) {
	l.Mods = append(l.Mods, changeset.Modified(old, new))
	l.Stats.NumModified++
	rowStatusMetric.WithLabelValues("modified").Inc()
}

func (l *ChangeSetListener) OnAddedRow(row dbval.Values) {
	l.Mods = append(l.Mods, changeset.Added(row))
	l.Stats.NumAdded++
	rowStatusMetric.WithLabelValues("added").Inc()
}

func (l *ChangeSetListener) OnRemovedRow(row dbval.Values) {
	l.Mods = append(l.Mods, changeset.Removed(row))
	l.Stats.NumRemoved++
	rowStatusMetric.WithLabelValues("removed").Inc()
}

func (l *ChangeSetListener) OnDuplicateKey(key dbval.Values) {
	if l.Stats.NumDuplicate == 0 {
		l.logger.Warn().
			Stringer("table", l.table.Name).
			Stringer("key", key).
			Msg("matching key is not unique; duplicates pair in emission order")
	}
	l.Stats.NumDuplicate++
}

func (l *ChangeSetListener) OnNullKey(key dbval.Values) {
	l.Stats.NumNullKey++
}

func (l *ChangeSetListener) OnLooseCompare(sourceIdx int) {
	if l.LooseColumns == nil {
		l.LooseColumns = make(map[int]struct{})
	}
	l.LooseColumns[sourceIdx] = struct{}{}
}
