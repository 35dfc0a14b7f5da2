package layer

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/agentic-research/atlas/api"
	"github.com/agentic-research/atlas/internal/entity"
)

const (
	wrapWidth = 50
	lineBreak = "<br>"

	projectMarkerSize = 15
	pointMarkerSize   = 10
	pointOpacity      = 0.9
	pointScaleMax     = 10

	authorityOpacity = 0.5
	localAreaOpacity = 0.3
	regionOpacity    = 0.5
	highlightOpacity = 0.3
)

// Overlay names, in the order the overlay family is emitted.
const (
	OverlayLAIncome    = "LA: Income deprivation rate quintile"
	OverlayLABAME      = "LA: BAME %"
	OverlayLAOver65    = "LA: % of all persons 65+"
	OverlayLSOAIMD     = "LSOA: Index of multiple deprivation decile"
	OverlayLSOABAME    = "LSOA: BAME %"
	OverlayLSOAOver65  = "LSOA: Age 65 and over"
	OverlayRegions     = "ICSs"
	OrganisationPoints = "Organisations"
)

var OverlayOrder = []string{
	OverlayLAIncome, OverlayLABAME, OverlayLAOver65,
	OverlayLSOAIMD, OverlayLSOABAME, OverlayLSOAOver65,
	OverlayRegions,
}

// ProjectStageTicks label the presentation stages on the project colour bar.
var ProjectStageTicks = []string{
	" 0 - No Information", " 1 - Knowledge", " 2 - Interest", " 3 - Decision: No",
	"3.1 - Decision:Yes", " 4 - Implementation", " 5 - Adoption", "<br> 6 - Spread<br><sup>(Only PSC)</sup>",
}

// Compiler turns a join result into layer families.
type Compiler struct {
	cfg api.Config
}

func NewCompiler(cfg api.Config) *Compiler {
	return &Compiler{cfg: cfg}
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// Organisations emits one bar layer per organisation in table order,
// including organisations without projects. Ended projects get the
// decision-no colour.
func (c *Compiler) Organisations(res *entity.Result) []Layer {
	oc := c.cfg.Organisation
	out := make([]Layer, 0, len(res.Organisations))
	for i, o := range res.Organisations {
		l := Layer{
			ID:     fmt.Sprintf("organisation-%d", i),
			Name:   o.Name,
			Family: FamilyOrganisations,
			Kind:   KindBar,
			Bars:   []Bar{},
			Custom: [][]string{},
			Descriptor: Descriptor{
				Hover: "<b>%{customdata[3]}</b><extra></extra>",
			},
		}
		for _, r := range res.RowsOf(o) {
			color := oc.OtherProjectColor
			if r.Ended {
				color = oc.DecisionNoColor
			}
			l.Bars = append(l.Bars, Bar{X: float64(r.RawStage), Y: r.Project, Color: color})
			l.Custom = append(l.Custom, []string{r.Project, o.Name, r.Stage, Wrap(r.WhyImportant, wrapWidth, lineBreak)})
		}
		out = append(out, l)
	}
	return out
}

// Projects emits one scatter layer per project, lexical by name, coloured
// by presentation stage on a fixed eight-step scale.
func (c *Compiler) Projects(res *entity.Result) ([]Layer, error) {
	pc := c.cfg.Project
	pal, err := api.Palette(pc.Colorbar)
	if err != nil {
		return nil, err
	}
	steps := Span(1, 8)
	if len(pal) <= steps[len(steps)-1] {
		return nil, fmt.Errorf("palette %s has %d colours, project scale needs 9", pc.Colorbar, len(pal))
	}
	stepColors := make([]string, len(steps))
	for i, s := range steps {
		stepColors[i] = pal[s]
	}
	scale, err := Discretize(stepColors, Span(0, 7))
	if err != nil {
		return nil, err
	}

	out := make([]Layer, 0, len(res.Projects))
	for i, p := range res.Projects {
		l := Layer{
			ID:     fmt.Sprintf("project-%d", i),
			Name:   p.Name,
			Family: FamilyProjects,
			Kind:   KindScatterMap,
			Points: []Point{},
			Colors: []float64{},
			Custom: [][]string{},
			Descriptor: Descriptor{
				ColorScale: scale,
				Min:        f64(0),
				Max:        f64(7),
				ColorBar: &ColorBar{
					Title:    "Stage Number",
					TickVals: floats(Span(0, 7)),
					TickText: ProjectStageTicks,
				},
				Hover:      "<b>%{customdata[0]}</b><extra></extra><br>%{customdata[2]}",
				Opacity:    pc.Opacity,
				ShowScale:  true,
				MarkerSize: projectMarkerSize,
			},
		}
		for _, part := range p.Participants {
			l.Points = append(l.Points, Point{Label: part.Organisation, Lat: part.Lat, Lon: part.Lon})
			l.Colors = append(l.Colors, float64(part.Row.PresentationStage))
			l.Custom = append(l.Custom, []string{part.Organisation, p.Name, part.Row.Interest, part.Row.Stage})
		}
		out = append(out, l)
	}
	return out, nil
}

// PortfolioGroup lists the positions, within the project family, of the
// projects belonging to one portfolio.
type PortfolioGroup struct {
	Name    string
	Members []int
}

// Portfolios groups project layers by portfolio, lexical by name.
func (c *Compiler) Portfolios(res *entity.Result) []PortfolioGroup {
	out := make([]PortfolioGroup, 0, len(res.Portfolios))
	for _, name := range res.Portfolios {
		g := PortfolioGroup{Name: name, Members: []int{}}
		for i, p := range res.Projects {
			if p.Portfolio == name {
				g.Members = append(g.Members, i)
			}
		}
		out = append(out, g)
	}
	return out
}

// Overlays emits the seven statistical choropleths in OverlayOrder.
func (c *Compiler) Overlays(res *entity.Result) ([]Layer, error) {
	cb := c.cfg.Overall.Colorbars

	authorities := func(name string, z func(entity.Authority) float64) Layer {
		l := choropleth(name, api.GeometryAuthorities)
		for _, a := range res.Authorities {
			l.Locations = append(l.Locations, a.Code)
			l.Z = append(l.Z, z(a))
			l.Custom = append(l.Custom, []string{a.Name, num(a.IncomeQuintile), num(a.BAME), num(a.Over65)})
		}
		l.Descriptor.Opacity = authorityOpacity
		return l
	}
	areas := func(name string, z func(entity.LocalArea) float64) Layer {
		l := choropleth(name, api.GeometryLocalAreas)
		for _, a := range res.LocalAreas {
			l.Locations = append(l.Locations, a.Code)
			l.Z = append(l.Z, z(a))
			l.Custom = append(l.Custom, []string{a.Name, num(a.BAME), num(a.Over65), num(a.IMDDecile)})
		}
		l.Descriptor.Opacity = localAreaOpacity
		return l
	}

	// Authorities.
	pal, err := api.Palette(cb.LAIMD)
	if err != nil {
		return nil, err
	}
	laIncome := authorities(OverlayLAIncome, func(a entity.Authority) float64 { return a.IncomeQuintile })
	if laIncome.Descriptor.ColorScale, err = Discretize(pal, []int{0, 2, 4, 6, 8}); err != nil {
		return nil, fmt.Errorf("%s: %w", OverlayLAIncome, err)
	}
	laIncome.Descriptor.ColorBar = &ColorBar{
		Title:    "IncDep Quintile",
		TickVals: floats(Span(1, 5)),
		TickText: []string{" 1 - Most Deprived", "2", "3", "4", "5 - Least Deprived"},
	}
	laIncome.Descriptor.Hover = "<b>%{customdata[0]}</b><extra></extra><br>IncDep Quintile: %{customdata[1]}"

	if pal, err = api.Palette(cb.LABAME); err != nil {
		return nil, err
	}
	laBAME := authorities(OverlayLABAME, func(a entity.Authority) float64 { return a.BAME })
	laBAME.Descriptor.ColorScale = Continuous(pal)
	laBAME.Descriptor.ColorBar = &ColorBar{Title: "BAME %"}
	laBAME.Descriptor.Hover = "<b>%{customdata[0]}</b><extra></extra><br>% BAME: %{customdata[2]}"

	if pal, err = api.Palette(cb.LAAge); err != nil {
		return nil, err
	}
	laOver65 := authorities(OverlayLAOver65, func(a entity.Authority) float64 { return a.Over65 })
	laOver65.Descriptor.ColorScale = Continuous(pal)
	laOver65.Descriptor.ColorBar = &ColorBar{Title: "% Over 65"}
	laOver65.Descriptor.Hover = "<b>%{customdata[0]}</b><extra></extra><br>Over 65 %: %{customdata[3]}"

	// Small areas.
	if pal, err = api.Palette(cb.LSOAIMD); err != nil {
		return nil, err
	}
	lsoaIMD := areas(OverlayLSOAIMD, func(a entity.LocalArea) float64 { return a.IMDDecile })
	if lsoaIMD.Descriptor.ColorScale, err = Discretize(append(pal, "rgb(255,255,255)"), Span(0, 9)); err != nil {
		return nil, fmt.Errorf("%s: %w", OverlayLSOAIMD, err)
	}
	lsoaIMD.Descriptor.ColorBar = &ColorBar{
		Title:    "IMD Decile",
		TickVals: floats(Span(1, 10)),
		TickText: []string{" 1 - Most Deprived", "2", "3", "4", "5", "6", "7", "8", "9", "10 - Least Deprived"},
	}
	lsoaIMD.Descriptor.Hover = "<b>%{customdata[0]}</b><extra></extra><br>IMD Decile: %{customdata[3]}"

	if pal, err = api.Palette(cb.LSOABAME); err != nil {
		return nil, err
	}
	lsoaBAME := areas(OverlayLSOABAME, func(a entity.LocalArea) float64 { return a.BAME })
	lsoaBAME.Descriptor.ColorScale = Continuous(pal)
	lsoaBAME.Descriptor.ColorBar = &ColorBar{Title: "BAME %"}
	lsoaBAME.Descriptor.Hover = "<b>%{customdata[0]}</b><extra></extra><br>% BAME: %{customdata[1]}"

	if pal, err = api.Palette(cb.LSOAAge); err != nil {
		return nil, err
	}
	lsoaOver65 := areas(OverlayLSOAOver65, func(a entity.LocalArea) float64 { return a.Over65 })
	lsoaOver65.Descriptor.ColorScale = Continuous(pal)
	lsoaOver65.Descriptor.ColorBar = &ColorBar{Title: "% Over 65"}
	lsoaOver65.Descriptor.Hover = "<b>%{customdata[0]}</b><extra></extra><br>Population over 65: %{customdata[2]}"

	regions, err := c.regionCounts(res)
	if err != nil {
		return nil, err
	}

	out := []Layer{laIncome, laBAME, laOver65, lsoaIMD, lsoaBAME, lsoaOver65, regions}
	for i := range out {
		out[i].ID = fmt.Sprintf("overlay-%d", i)
		out[i].Descriptor.ShowScale = true
	}
	return out, nil
}

// RegionScaleMax is the top of the region colour scale: the largest
// project count, capped by configuration and by palette length.
func (c *Compiler) RegionScaleMax(res *entity.Result, paletteLen int) int {
	hi := 0
	for _, r := range res.Regions {
		if r.ProjectCount > hi {
			hi = r.ProjectCount
		}
	}
	if hi > c.cfg.Regions.MaxProjectScale {
		hi = c.cfg.Regions.MaxProjectScale
	}
	if hi > paletteLen-2 {
		hi = paletteLen - 2
	}
	return hi
}

func (c *Compiler) regionCounts(res *entity.Result) (Layer, error) {
	name := c.cfg.Overall.Colorbars.ICS
	pal, err := api.Palette(name)
	if err != nil {
		return Layer{}, err
	}
	hi := c.RegionScaleMax(res, len(pal))
	scale, err := Discretize(pal, Span(1, hi+1))
	if err != nil {
		return Layer{}, fmt.Errorf("%s: %w", OverlayRegions, err)
	}
	l := c.regionLayer(OverlayRegions, res, func(entity.Region) float64 { return 0 })
	for i, r := range res.Regions {
		l.Z[i] = float64(r.ProjectCount)
	}
	l.Descriptor.ColorScale = scale
	l.Descriptor.Min = f64(0)
	l.Descriptor.Max = f64(float64(hi + 1))
	l.Descriptor.ColorBar = &ColorBar{Title: "No. of Projects in ICS", TickVals: floats(Span(0, hi))}
	l.Descriptor.Opacity = regionOpacity
	return l, nil
}

func (c *Compiler) regionLayer(name string, res *entity.Result, z func(entity.Region) float64) Layer {
	l := choropleth(name, api.GeometryRegions)
	for _, r := range res.Regions {
		l.Locations = append(l.Locations, r.Name)
		l.Z = append(l.Z, z(r))
		l.Custom = append(l.Custom, []string{r.Name, strconv.Itoa(r.ProjectCount), strings.Join(r.Projects, lineBreak)})
	}
	l.Descriptor.Hover = "<b>%{customdata[0]}</b><extra></extra>Project Number: %{customdata[1]}<br>%{customdata[2]}"
	return l
}

// RegionHighlights emits one layer per region, lexical by name, that
// paints only that region.
func (c *Compiler) RegionHighlights(res *entity.Result) ([]Layer, error) {
	pal, err := api.Palette(c.cfg.Overall.Colorbars.ICSSelection)
	if err != nil {
		return nil, err
	}
	regions := append([]entity.Region(nil), res.Regions...)
	sort.SliceStable(regions, func(a, b int) bool { return regions[a].Name < regions[b].Name })
	sorted := &entity.Result{Regions: regions}

	out := make([]Layer, 0, len(regions))
	for i, sel := range regions {
		l := c.regionLayer(sel.Name, sorted, func(r entity.Region) float64 {
			if r.Name == sel.Name {
				return 1
			}
			return 0
		})
		l.ID = fmt.Sprintf("region-%d", i)
		l.Family = FamilyRegionHighlights
		l.Descriptor.ColorScale = Continuous(pal)
		l.Descriptor.Opacity = highlightOpacity
		out = append(out, l)
	}
	return out, nil
}

// OrganisationPoints is the always-on scatter of every organisation with
// coordinates, coloured by project count.
func (c *Compiler) OrganisationPoints(res *entity.Result) (Layer, error) {
	pal, err := api.Palette(c.cfg.Overall.Colorbars.Scatter)
	if err != nil {
		return Layer{}, err
	}
	top := pointScaleMax
	if top > len(pal)-1 {
		top = len(pal) - 1
	}
	scale, err := Discretize(pal, Span(0, top))
	if err != nil {
		return Layer{}, err
	}

	l := Layer{
		ID:     "organisation-points",
		Name:   OrganisationPoints,
		Family: FamilyOrganisationPoints,
		Kind:   KindScatterMap,
		Points: []Point{},
		Colors: []float64{},
		Custom: [][]string{},
	}
	lo, hi := 0, 0
	for i, o := range res.Organisations {
		if i == 0 || o.ProjectCount < lo {
			lo = o.ProjectCount
		}
		if o.ProjectCount > hi {
			hi = o.ProjectCount
		}
		if o.Lat == nil || o.Lon == nil {
			continue
		}
		l.Points = append(l.Points, Point{Label: o.Name, Lat: o.Lat, Lon: o.Lon})
		l.Colors = append(l.Colors, float64(o.ProjectCount))
		l.Custom = append(l.Custom, []string{o.Name, strconv.Itoa(o.ProjectCount), strings.Join(o.Projects, lineBreak)})
	}
	ticks := Span(lo, hi)
	text := make([]string, len(ticks))
	for i, t := range ticks {
		text[i] = strconv.Itoa(t)
	}
	l.Descriptor = Descriptor{
		ColorScale: scale,
		ColorBar: &ColorBar{
			Title:       "No. of Projects (Scatter plot)",
			TickVals:    floats(ticks),
			TickText:    text,
			X:           f64(0.52),
			Y:           f64(-0.22),
			Orientation: "h",
		},
		Hover:      "<b>%{customdata[0]}</b><extra></extra>Project Number: %{customdata[1]}<br>%{customdata[2]}",
		Opacity:    pointOpacity,
		ShowScale:  true,
		ShowLegend: true,
		MarkerSize: pointMarkerSize,
	}
	return l, nil
}

func choropleth(name, ref string) Layer {
	return Layer{
		Name:        name,
		Family:      FamilyOverlays,
		Kind:        KindChoropleth,
		GeometryRef: ref,
		Locations:   []string{},
		Z:           []float64{},
		Custom:      [][]string{},
	}
}
