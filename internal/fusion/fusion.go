// Package fusion consolidates the per-portfolio report files into a single
// table. The consolidated file is rebuilt only when a report is newer.
package fusion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentic-research/atlas/internal/metrics"
	"github.com/agentic-research/atlas/internal/source"
)

const (
	ColumnProjectName = "ProjectName"
	ColumnPortfolio   = "Portfolio"

	reportExt = ".csv"
)

// Result describes one fusion check.
type Result struct {
	Rebuilt bool
	Reports int // report files seen
	Rows    int // rows written; zero when not rebuilt
}

// Engine fuses a directory dataset of reports into a consolidated dataset.
type Engine struct {
	reg          *source.Registry
	reports      string
	consolidated string
	log          zerolog.Logger
	metrics      *metrics.Metrics
}

func New(reg *source.Registry, reports, consolidated string, log zerolog.Logger, m *metrics.Metrics) *Engine {
	return &Engine{reg: reg, reports: reports, consolidated: consolidated, log: log, metrics: m}
}

// Plan reports whether Fuse would rebuild, without writing. It fails when
// there are no reports and no consolidated file to fall back on.
func (e *Engine) Plan() (bool, []source.Entry, error) {
	entries, err := e.reg.ReadDir(e.reports, reportExt)
	if err != nil {
		return false, nil, err
	}
	mod, exists, err := e.reg.ModTime(e.consolidated)
	if err != nil {
		return false, nil, err
	}
	if len(entries) == 0 {
		if !exists {
			ds, _ := e.reg.Resolve(e.consolidated)
			return false, nil, &source.UnavailableError{Dataset: ds.Name, Path: ds.Path, Err: errors.New("no reports to fuse and no consolidated report")}
		}
		return false, nil, nil
	}
	if !exists {
		return true, entries, nil
	}
	return newest(entries).After(mod), entries, nil
}

func newest(entries []source.Entry) time.Time {
	var t time.Time
	for _, e := range entries {
		if e.ModTime.After(t) {
			t = e.ModTime
		}
	}
	return t
}

// Fuse rebuilds the consolidated report when any report is newer than it
// or it does not exist. Reports are read in lexical filename order.
func (e *Engine) Fuse(ctx context.Context) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	rebuild, entries, err := e.Plan()
	if err != nil {
		return Result{}, err
	}
	res := Result{Reports: len(entries)}
	if !rebuild {
		e.log.Info().Str("dataset", e.consolidated).Int("reports", len(entries)).Msg("up-to-date")
		e.metrics.ObserveRebuild(e.consolidated, false)
		return res, nil
	}

	tables := make(map[string]*source.Table, len(entries))
	order := make([]string, 0, len(entries))
	for _, ent := range entries {
		data, err := e.reg.ReadEntry(e.reports, ent)
		if err != nil {
			return Result{}, err
		}
		t, err := source.ParseTable(data)
		if err != nil {
			return Result{}, e.malformed(ent, err)
		}
		if !t.Has(ColumnProjectName) {
			return Result{}, e.malformed(ent, fmt.Errorf("missing %s column", ColumnProjectName))
		}
		portfolio := strings.TrimSuffix(ent.Name, reportExt)
		tables[portfolio] = t
		order = append(order, portfolio)
	}

	fused := Merge(order, tables)
	data, err := fused.Bytes()
	if err != nil {
		return Result{}, fmt.Errorf("encode consolidated report: %w", err)
	}
	ds, err := e.reg.Resolve(e.consolidated)
	if err != nil {
		return Result{}, err
	}
	if err := source.WriteFileAtomic(e.reg.Filesystem(), ds.Path, data); err != nil {
		return Result{}, fmt.Errorf("write %s: %w", ds.Path, err)
	}

	res.Rebuilt = true
	res.Rows = fused.Len()
	e.log.Info().Str("dataset", e.consolidated).Int("reports", len(entries)).Int("rows", res.Rows).Msg("has been updated")
	e.metrics.ObserveRebuild(e.consolidated, true)
	return res, nil
}

func (e *Engine) malformed(ent source.Entry, err error) error {
	ds, _ := e.reg.Resolve(e.reports)
	return &source.UnavailableError{Dataset: ds.Name, Path: ent.Path, Err: fmt.Errorf("malformed report: %w", err)}
}

// Merge concatenates the tables in order. Each row is tagged with its
// portfolio, its ProjectName is qualified as "<portfolio> - <name>", and
// exact duplicate rows after tagging are dropped keeping the first.
// Columns are the union in first-seen order with Portfolio last.
func Merge(order []string, tables map[string]*source.Table) *source.Table {
	var columns []string
	pos := map[string]int{}
	for _, p := range order {
		for _, c := range tables[p].Columns {
			if c == ColumnPortfolio {
				continue
			}
			if _, ok := pos[c]; !ok {
				pos[c] = len(columns)
				columns = append(columns, c)
			}
		}
	}
	pos[ColumnPortfolio] = len(columns)
	columns = append(columns, ColumnPortfolio)

	var rows [][]string
	seen := map[string]struct{}{}
	for _, p := range order {
		t := tables[p]
		for _, r := range t.Rows {
			out := make([]string, len(columns))
			for j, c := range t.Columns {
				out[pos[c]] = r[j]
			}
			out[pos[ColumnPortfolio]] = p
			out[pos[ColumnProjectName]] = p + " - " + out[pos[ColumnProjectName]]

			key := strings.Join(out, "\x1f")
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			rows = append(rows, out)
		}
	}
	return source.NewTable(columns, rows)
}
