// Package ledger accumulates the run's disposition funnel: every bridge that
// enters the pipeline must land in exactly one category, and the categories
// must sum back to the initial total. A mismatch means a bridge was dropped
// or double-counted somewhere, which is a pipeline bug.
package ledger

import (
	"io"
	"sort"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/osmtools/bridgematch/internal/classify"
)

// Entry is one (category, count) line of the funnel.
type Entry struct {
	Category string `csv:"category" yaml:"category"`
	Count    int    `csv:"count" yaml:"count"`
}

// Ledger collects stage counts for a single pipeline run. Not safe for
// concurrent use; stages report sequentially.
type Ledger struct {
	total   int
	entries []Entry
	index   map[string]int
	order   map[string]int
}

// categoryOrder fixes the report order so diffs between runs line up. The
// exclusion reasons come first in pipeline order, then the terminal
// dispositions.
var categoryOrder = []string{
	string(classify.ReasonDuplicateCoordinates),
	string(classify.ReasonNonPostedCulvert),
	string(classify.ReasonExistingOSMBridge),
	string(classify.ReasonFreeway),
	string(classify.ReasonParallelBridge),
	string(classify.ReasonTunnelCulvert),
	string(classify.ReasonNearbyBridge),
	string(classify.ReasonUnsnapped),
	string(classify.ReasonMethodDisagreement),
	string(classify.ReasonLowConfidence),
	string(classify.NotApplicable),
	string(classify.ReviewRequired),
	string(classify.AutomatedEdit),
}

// New starts a ledger for a run that began with total bridges.
func New(total int) *Ledger {
	l := &Ledger{
		total: total,
		index: make(map[string]int),
		order: make(map[string]int, len(categoryOrder)),
	}
	for i, c := range categoryOrder {
		l.order[c] = i
	}
	return l
}

// Total returns the initial bridge count the funnel must reconcile against.
func (l *Ledger) Total() int { return l.total }

// Add reports count bridges landing in category, accumulating across calls.
func (l *Ledger) Add(category string, count int) {
	if i, ok := l.index[category]; ok {
		l.entries[i].Count += count
		return
	}
	l.index[category] = len(l.entries)
	l.entries = append(l.entries, Entry{Category: category, Count: count})
}

// AddOutcome reports one bridge's terminal outcome, bucketing exclusions by
// their reason and everything else by disposition.
func (l *Ledger) AddOutcome(o classify.Outcome) {
	if o.Disposition == classify.Excluded && o.Reason != "" {
		l.Add(string(o.Reason), 1)
		return
	}
	l.Add(string(o.Disposition), 1)
}

// Entries returns the funnel in the fixed category order; categories the run
// never reported are omitted. Unknown categories sort after known ones, by
// name.
func (l *Ledger) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	sort.SliceStable(out, func(i, j int) bool {
		oi, iok := l.order[out[i].Category]
		oj, jok := l.order[out[j].Category]
		switch {
		case iok && jok:
			return oi < oj
		case iok:
			return true
		case jok:
			return false
		default:
			return out[i].Category < out[j].Category
		}
	})
	return out
}

// Verify checks the telescoping invariant: the categories must account for
// every bridge exactly once. A mismatch is fatal to the run.
func (l *Ledger) Verify() error {
	sum := 0
	for _, e := range l.entries {
		sum += e.Count
	}
	if sum != l.total {
		zap.L().Error("ledger mismatch",
			zap.Int("total", l.total),
			zap.Int("category_sum", sum))
		return eris.Errorf("ledger: funnel mismatch: %d bridges in, %d accounted for", l.total, sum)
	}
	return nil
}

// report is the serialized form shared by the CSV and YAML writers.
type report struct {
	Total   int     `yaml:"total_bridges"`
	Entries []Entry `yaml:"funnel"`
}

// WriteCSV verifies the funnel and writes it as category,count rows. It
// refuses to emit an unreconciled ledger.
func (l *Ledger) WriteCSV(w io.Writer) error {
	if err := l.Verify(); err != nil {
		return err
	}
	b, err := csvutil.Marshal(l.Entries())
	if err != nil {
		return eris.Wrap(err, "ledger: marshal csv")
	}
	if _, err := w.Write(b); err != nil {
		return eris.Wrap(err, "ledger: write csv")
	}
	return nil
}

// WriteYAML verifies the funnel and writes it with the run total, for the
// summary humans read.
func (l *Ledger) WriteYAML(w io.Writer) error {
	if err := l.Verify(); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	if err := enc.Encode(report{Total: l.total, Entries: l.Entries()}); err != nil {
		return eris.Wrap(err, "ledger: write yaml")
	}
	return nil
}
