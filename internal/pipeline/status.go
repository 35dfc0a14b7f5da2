package pipeline

import (
	"errors"
	"fmt"

	"github.com/agentic-research/atlas/api"
	"github.com/agentic-research/atlas/internal/convert"
	"github.com/agentic-research/atlas/internal/fusion"
	"github.com/agentic-research/atlas/internal/source"
)

// StatusEntry is one line of the freshness report. Fresh is only
// meaningful for derived datasets. Detail carries what a cache recorded
// about its conversion.
type StatusEntry struct {
	source.Status
	Derived bool
	Fresh   bool
	Problem string
	Detail  string
}

// Status reports every dataset without writing anything.
func (p *Pipeline) Status() ([]StatusEntry, error) {
	snap, err := p.reg.Refresh()
	if err != nil {
		return nil, err
	}

	fresh := map[string]StatusEntry{}
	rebuild, _, err := fusion.New(p.reg, DatasetReports, DatasetReport, p.log, nil).Plan()
	fresh[DatasetReport] = derived(!rebuild, err)

	conv := convert.New(p.reg, p.log, nil)
	for _, g := range api.GeometryNames {
		stale, err := conv.Stale(GeoJSONDataset(g), CacheDataset(g))
		e := derived(!stale, err)
		e.Detail = p.cacheDetail(CacheDataset(g))
		fresh[CacheDataset(g)] = e
	}

	out := make([]StatusEntry, 0, len(snap))
	for _, st := range snap {
		e, ok := fresh[st.Name]
		if !ok {
			e = StatusEntry{}
			if !st.Exists {
				e.Problem = "missing"
			}
		}
		e.Status = st
		out = append(out, e)
	}
	return out, nil
}

func (p *Pipeline) cacheDetail(name string) string {
	path, err := p.reg.LocalPath(name)
	if err != nil {
		return ""
	}
	meta, err := convert.CacheMeta(path)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%s features from %s", meta["features"], meta["source"])
}

func derived(fresh bool, err error) StatusEntry {
	e := StatusEntry{Derived: true, Fresh: fresh}
	if err != nil {
		e.Fresh = false
		var ue *source.UnavailableError
		if errors.As(err, &ue) && ue.Err != nil {
			e.Problem = ue.Err.Error()
		} else {
			e.Problem = err.Error()
		}
	}
	return e
}
