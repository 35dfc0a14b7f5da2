// Package entity joins the organisation table, the consolidated report,
// the boundary caches and the area statistics into the entities the views
// are drawn from. Joins never fail on missing keys: unmatched records are
// dropped or zero-filled and counted.
package entity

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"

	"github.com/agentic-research/atlas/api"
	"github.com/agentic-research/atlas/internal/metrics"
	"github.com/agentic-research/atlas/internal/source"
)

// Column names in the input tables.
const (
	ColName         = "Name"
	ColLatitude     = "Latitude"
	ColLongitude    = "Longitude"
	ColProjectName  = "ProjectName"
	ColPortfolio    = "Portfolio"
	ColStage        = "Stage"
	ColInterest     = "Interest"
	ColWhyImportant = "WhyImportant"

	ColLSOACode  = "LSOA_CODE"
	ColIMDCode   = "lsoa11cd"
	ColIMDDecile = "IMDDec0"
	ColBAME      = "BAME %"
	ColUnder25   = "Age 0 to 24"
	ColFrom25    = "Age 25 to 49"
	ColFrom50    = "Age 50 to 64"
	ColOver65    = "Age 65 and over"

	ColLACodeIMD      = "Local Authority District code (2019)"
	ColIncomeQuintile = "Income deprivation rate quintile"
	ColAreaCode       = "Area code"
	ColOver65Share    = "% of all persons 65+"
)

// Join names used for miss accounting.
const (
	JoinOrganisations = "organisations"
	JoinRegions       = "regions"
	JoinLocalAreas    = "local_areas"
	JoinAuthorities   = "authorities"
)

// Inputs are the loaded datasets. Geometry collections come from the
// converted caches.
type Inputs struct {
	Organisations *source.Table
	Report        *source.Table
	RegionRefs    *source.Table // ics_locations

	Ethnicity *source.Table
	Age       *source.Table
	IMD       *source.Table

	PopulationRegional *source.Table
	IMDRegional        *source.Table
	EthnicityRegional  *source.Table

	Regions     *geojson.FeatureCollection
	LocalAreas  *geojson.FeatureCollection
	Authorities *geojson.FeatureCollection
}

type keys struct {
	name, code *source.Selector
}

// Joiner holds the matching strategies. It is stateless between calls.
type Joiner struct {
	harmonize Harmonizer
	aliases   AliasMap
	matcher   Matcher
	field     string

	excludePrefixes []string
	excludeNames    []string

	keys map[string]keys

	log     zerolog.Logger
	metrics *metrics.Metrics
}

func NewJoiner(cfg api.Config, log zerolog.Logger, m *metrics.Metrics) (*Joiner, error) {
	j := &Joiner{
		harmonize:       NewHarmonizer(cfg.Regions.Harmonize),
		aliases:         AliasMap(cfg.Regions.Aliases),
		matcher:         Substring{},
		field:           cfg.Regions.ProjectMatch,
		excludePrefixes: cfg.Regions.ExcludeCodePrefixes,
		excludeNames:    cfg.Regions.ExcludeNames,
		keys:            make(map[string]keys, len(api.GeometryNames)),
		log:             log,
		metrics:         m,
	}
	for _, name := range api.GeometryNames {
		k := cfg.Geometry[name]
		ns, err := source.CompileSelector(k.NamePath)
		if err != nil {
			return nil, fmt.Errorf("geometry %s name: %w", name, err)
		}
		cs, err := source.CompileSelector(k.CodePath)
		if err != nil {
			return nil, fmt.Errorf("geometry %s code: %w", name, err)
		}
		j.keys[name] = keys{name: ns, code: cs}
	}
	return j, nil
}

// Join builds the Result. Only structurally unusable input (a nil table or
// a report without ProjectName) is an error.
func (j *Joiner) Join(in Inputs) (*Result, error) {
	if in.Organisations == nil || in.Report == nil {
		return nil, errors.New("organisations and report tables are required")
	}
	if !in.Report.Has(ColProjectName) {
		return nil, fmt.Errorf("report has no %s column", ColProjectName)
	}

	res := &Result{Misses: map[string]int{}}
	orgs := j.harmonize.Table(in.Organisations)
	report := j.harmonize.Table(in.Report)

	res.Reports = j.reportRows(report)
	res.Organisations = j.organisations(orgs, res.Reports, res)
	res.Projects, res.Portfolios = j.projects(res)
	res.Regions = j.regions(in, res)
	res.LocalAreas = j.localAreas(in, res)
	res.Authorities = j.authorities(in, res)

	for join, n := range res.Misses {
		j.metrics.AddJoinMisses(join, n)
	}
	ev := j.log.Info()
	for _, join := range []string{JoinOrganisations, JoinRegions, JoinLocalAreas, JoinAuthorities} {
		ev = ev.Int(join, res.Misses[join])
	}
	ev.Msg("join misses")
	return res, nil
}

func (j *Joiner) reportRows(t *source.Table) []ReportRow {
	rows := make([]ReportRow, 0, t.Len())
	for i := range t.Rows {
		r := ReportRow{
			Organisation: t.Value(i, ColName),
			Project:      t.Value(i, ColProjectName),
			Portfolio:    t.Value(i, ColPortfolio),
			Stage:        t.Value(i, ColStage),
			Interest:     t.Value(i, ColInterest),
			WhyImportant: t.Value(i, ColWhyImportant),
		}
		if r.Stage == "" {
			r.Stage = NotAvailable
		}
		if r.Interest == "" {
			r.Interest = NotAvailable
		}
		r.RawStage = ParseStage(r.Stage)
		r.PresentationStage = PresentationStage(r.RawStage, r.Interest)
		r.Ended = Ended(r.RawStage, r.Interest)
		rows = append(rows, r)
	}
	return rows
}

func (j *Joiner) haystack(r ReportRow) string {
	if j.field == api.MatchProject {
		return r.Project
	}
	return r.Organisation
}

// organisations outer-joins the table with the organisations named in the
// report: table rows first in input order, then report-only names sorted.
func (j *Joiner) organisations(t *source.Table, rows []ReportRow, res *Result) []Organisation {
	var out []Organisation
	seen := map[string]bool{}
	for i := range t.Rows {
		name := t.Value(i, ColName)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, Organisation{
			Name:   name,
			Lat:    parseCoord(t.Value(i, ColLatitude)),
			Lon:    parseCoord(t.Value(i, ColLongitude)),
			Listed: true,
		})
	}

	var extra []string
	for _, r := range rows {
		if r.Organisation != "" && !seen[r.Organisation] {
			seen[r.Organisation] = true
			extra = append(extra, r.Organisation)
		}
	}
	sort.Strings(extra)
	res.Misses[JoinOrganisations] = len(extra)
	for _, name := range extra {
		out = append(out, Organisation{Name: name})
	}

	for k := range out {
		o := &out[k]
		o.Projects = []string{}
		for idx, r := range rows {
			if j.matcher.Match(j.haystack(r), o.Name) {
				o.Rows = append(o.Rows, idx)
				o.Projects = append(o.Projects, r.Project)
			}
		}
		o.ProjectCount = len(o.Projects)
	}
	return out
}

// projects groups participants per distinct project name. An organisation
// participates when its project list mentions the project and it has a
// row for that project under its own name.
func (j *Joiner) projects(res *Result) ([]Project, []string) {
	byName := map[string]*Project{}
	var names []string
	portfolios := map[string]bool{}
	for _, r := range res.Reports {
		if r.Portfolio != "" {
			portfolios[r.Portfolio] = true
		}
		if _, ok := byName[r.Project]; ok || r.Project == "" {
			continue
		}
		byName[r.Project] = &Project{Name: r.Project, Portfolio: r.Portfolio}
		names = append(names, r.Project)
	}
	sort.Strings(names)

	for _, o := range res.Organisations {
		joined := strings.Join(o.Projects, "<br>")
		for _, name := range names {
			if !j.matcher.Match(joined, name) {
				continue
			}
			for _, r := range res.Reports {
				if r.Organisation == o.Name && j.matcher.Match(r.Project, name) {
					p := byName[name]
					p.Participants = append(p.Participants, Participant{
						Organisation: o.Name, Lat: o.Lat, Lon: o.Lon, Row: r,
					})
				}
			}
		}
	}

	out := make([]Project, len(names))
	for i, name := range names {
		out[i] = *byName[name]
	}
	pf := make([]string, 0, len(portfolios))
	for p := range portfolios {
		pf = append(pf, p)
	}
	sort.Strings(pf)
	return out, pf
}

func (j *Joiner) regions(in Inputs, res *Result) []Region {
	if in.Regions == nil || in.RegionRefs == nil {
		return nil
	}
	lat := in.RegionRefs.Lookup(ColName, ColLatitude)
	lon := in.RegionRefs.Lookup(ColName, ColLongitude)
	k := j.keys[api.GeometryRegions]

	var out []Region
	seen := map[string]bool{}
	for _, f := range in.Regions.Features {
		props := map[string]any(f.Properties)
		boundary, _ := k.name.Text(props)
		code, _ := k.code.Text(props)
		name := j.aliases.Resolve(boundary)
		if _, ok := lat[name]; !ok {
			continue // not a region of interest
		}
		if seen[name] {
			continue
		}
		org, ok := res.Organisation(name)
		if !ok {
			res.Misses[JoinRegions]++
			continue
		}
		seen[name] = true
		out = append(out, Region{
			Name:         name,
			Boundary:     boundary,
			Code:         code,
			Lat:          parseCoord(lat[name]),
			Lon:          parseCoord(lon[name]),
			ProjectCount: org.ProjectCount,
			Projects:     org.Projects,
			Geometry:     f.Geometry,
		})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

func (j *Joiner) localAreas(in Inputs, res *Result) []LocalArea {
	if in.LocalAreas == nil {
		return nil
	}
	bame := lookup(in.Ethnicity, ColLSOACode, ColBAME)
	imd := lookup(in.IMD, ColIMDCode, ColIMDDecile)
	ages := ageLookup(in.Age)
	k := j.keys[api.GeometryLocalAreas]

	var out []LocalArea
	for _, f := range in.LocalAreas.Features {
		props := map[string]any(f.Properties)
		code, _ := k.code.Text(props)
		name, _ := k.name.Text(props)
		b, ok1 := parseNumber(bame[code])
		d, ok2 := parseNumber(imd[code])
		a, ok3 := ages[code]
		if !ok1 || !ok2 || !ok3 {
			res.Misses[JoinLocalAreas]++
			continue
		}
		pop := a.Derive()
		out = append(out, LocalArea{
			Code: code, Name: name,
			BAME: b, Over65: a.Over65, Population: pop, IMDDecile: d,
			Geometry: f.Geometry,
		})
	}
	return out
}

func ageLookup(t *source.Table) map[string]*AgeBands {
	out := map[string]*AgeBands{}
	if t == nil {
		return out
	}
	for i := range t.Rows {
		code := t.Value(i, ColLSOACode)
		if code == "" || out[code] != nil {
			continue
		}
		var a AgeBands
		ok := true
		for _, f := range []struct {
			dst *float64
			col string
		}{
			{&a.Under25, ColUnder25}, {&a.From25, ColFrom25}, {&a.From50, ColFrom50}, {&a.Over65, ColOver65},
		} {
			v, good := parseNumber(t.Value(i, f.col))
			*f.dst = v
			ok = ok && good
		}
		if ok {
			out[code] = &a
		}
	}
	return out
}

func (j *Joiner) authorities(in Inputs, res *Result) []Authority {
	if in.Authorities == nil {
		return nil
	}
	quintile := lookup(in.IMDRegional, ColLACodeIMD, ColIncomeQuintile)
	over65 := lookup(in.PopulationRegional, ColAreaCode, ColOver65Share)
	bame := lookup(in.EthnicityRegional, ColAreaCode, ColBAME)
	k := j.keys[api.GeometryAuthorities]

	var out []Authority
	for _, f := range in.Authorities.Features {
		props := map[string]any(f.Properties)
		code, _ := k.code.Text(props)
		name, _ := k.name.Text(props)
		if j.excluded(code, name) {
			continue
		}
		q, ok1 := parseNumber(quintile[code])
		o, ok2 := parseNumber(over65[code])
		b, ok3 := parseNumber(bame[code])
		if !ok1 || !ok2 || !ok3 {
			res.Misses[JoinAuthorities]++
			continue
		}
		out = append(out, Authority{
			Code: code, Name: name,
			IncomeQuintile: q, BAME: b, Over65: o,
			Geometry: f.Geometry,
		})
	}
	return out
}

func (j *Joiner) excluded(code, name string) bool {
	for _, p := range j.excludePrefixes {
		if p != "" && strings.HasPrefix(code, p) {
			return true
		}
	}
	for _, n := range j.excludeNames {
		if n != "" && strings.Contains(name, n) {
			return true
		}
	}
	return false
}

func lookup(t *source.Table, key, col string) map[string]string {
	if t == nil {
		return map[string]string{}
	}
	return t.Lookup(key, col)
}

func parseCoord(s string) *float64 {
	v, ok := parseNumber(s)
	if !ok {
		return nil
	}
	return &v
}
