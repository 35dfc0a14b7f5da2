package entity

import "github.com/paulmach/orb"

// Organisation is one row of the joined organisation table.
type Organisation struct {
	Name     string
	Lat, Lon *float64 // nil when the organisation only appears in reports
	// ProjectCount is always len(Projects).
	ProjectCount int
	Projects     []string
	// Rows indexes the matched rows in Result.Reports.
	Rows   []int
	Listed bool // present in the organisation table
}

// ReportRow is one consolidated report row with derived stage fields.
type ReportRow struct {
	Organisation string
	Project      string // qualified "<portfolio> - <name>"
	Portfolio    string
	Stage        string
	Interest     string
	WhyImportant string

	RawStage          int
	PresentationStage int
	Ended             bool
}

// Participant is an organisation taking part in a project.
type Participant struct {
	Organisation string
	Lat, Lon     *float64
	Row          ReportRow
}

type Project struct {
	Name         string
	Portfolio    string
	Participants []Participant
}

// Region is an integrated care system boundary that survived alias
// resolution and the reference-table filter.
type Region struct {
	Name         string // canonical
	Boundary     string // name in the boundary file
	Code         string
	Lat, Lon     *float64
	ProjectCount int
	Projects     []string
	Geometry     orb.Geometry
}

// LocalArea carries small-area statistics keyed by boundary code.
type LocalArea struct {
	Code       string
	Name       string
	BAME       float64
	Over65     float64 // percent of population
	Population float64
	IMDDecile  float64
	Geometry   orb.Geometry
}

// Authority carries local-authority statistics keyed by boundary code.
type Authority struct {
	Code           string
	Name           string
	IncomeQuintile float64
	BAME           float64
	Over65         float64
	Geometry       orb.Geometry
}

// Result is everything the views are compiled from.
type Result struct {
	Organisations []Organisation
	Reports       []ReportRow
	Projects      []Project // lexical by name
	Portfolios    []string  // lexical
	Regions       []Region  // lexical by canonical name
	LocalAreas    []LocalArea
	Authorities   []Authority

	// Misses counts unmatched keys per join.
	Misses map[string]int
}

// Organisation returns the organisation named name.
func (r *Result) Organisation(name string) (Organisation, bool) {
	for _, o := range r.Organisations {
		if o.Name == name {
			return o, true
		}
	}
	return Organisation{}, false
}

// RowsOf returns the report rows matched to o.
func (r *Result) RowsOf(o Organisation) []ReportRow {
	out := make([]ReportRow, len(o.Rows))
	for i, idx := range o.Rows {
		out[i] = r.Reports[idx]
	}
	return out
}
