// Package report delivers finished table comparisons to their consumers.
package report

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/opendpm/dbdiff/compare/changeset"
)

// Reporter consumes table comparisons as they complete. Implementations
// must be safe for concurrent use; parallel comparisons report from
// multiple goroutines. Close flushes the reporter and surfaces any write
// error accumulated while reporting.
type Reporter interface {
	Report(cmp changeset.Comparison)
	Close() error
}

type CombinedReporter struct {
	Reporters []Reporter
}

func (c CombinedReporter) Report(cmp changeset.Comparison) {
	for _, r := range c.Reporters {
		r.Report(cmp)
	}
}

func (c CombinedReporter) Close() error {
	var err error
	for _, r := range c.Reporters {
		err = errors.CombineErrors(err, r.Close())
	}
	return err
}

// LogReporter reports to `zerolog`.
type LogReporter struct {
	zerolog.Logger
}

func (l LogReporter) Report(cmp changeset.Comparison) {
	if cmp.Empty() && len(cmp.Warnings) == 0 {
		l.Info().
			Str("table_name", string(cmp.Table)).
			Msg("table matches")
		return
	}
	l.Warn().
		Str("table_name", string(cmp.Table)).
		Int("column_changes", len(cmp.Columns.Mods)).
		Int("row_changes", len(cmp.Rows.Mods)).
		Msg("table differs")
	for _, w := range cmp.Warnings {
		l.Warn().
			Str("table_name", string(cmp.Table)).
			Stringer("kind", w.Kind).
			Msg(w.Detail)
	}
}

func (l LogReporter) Close() error {
	return nil
}

// JSONReporter streams each comparison as one line of its wire form,
// preserving the nested-array shape the downstream report generators
// consume. The first write failure is kept and returned from Close, so a
// truncated report never passes silently.
type JSONReporter struct {
	mu  sync.Mutex
	enc *json.Encoder
	c   io.Closer
	err error
}

func NewJSONReporter(w io.WriteCloser) *JSONReporter {
	return &JSONReporter{enc: json.NewEncoder(w), c: w}
}

func (j *JSONReporter) Report(cmp changeset.Comparison) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return
	}
	if err := j.enc.Encode(cmp); err != nil {
		j.err = errors.Wrap(err, "error writing comparison report")
	}
}

func (j *JSONReporter) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return errors.CombineErrors(j.err, j.c.Close())
}
