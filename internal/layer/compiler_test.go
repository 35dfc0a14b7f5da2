package layer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/atlas/api"
	"github.com/agentic-research/atlas/internal/entity"
)

func ptr(v float64) *float64 { return &v }

func fixture() *entity.Result {
	rows := []entity.ReportRow{
		{Organisation: "Alpha", Project: "Digital - App", Portfolio: "Digital", Stage: "Stage 3", Interest: "Yes - approved", RawStage: 3, PresentationStage: 4},
		{Organisation: "Alpha", Project: "Acute - Beds", Portfolio: "Acute", Stage: "Stage 3", Interest: "Decision No", RawStage: 3, PresentationStage: 3, Ended: true},
		{Organisation: "Mid", Project: "Digital - App", Portfolio: "Digital", Stage: "Stage 5", RawStage: 5, PresentationStage: 6},
	}
	return &entity.Result{
		Reports: rows,
		Organisations: []entity.Organisation{
			{Name: "Zeta", Lat: ptr(52.1), Lon: ptr(0.1), Projects: []string{}, Listed: true},
			{Name: "Alpha", Lat: ptr(52.2), Lon: ptr(0.2), ProjectCount: 2, Projects: []string{"Digital - App", "Acute - Beds"}, Rows: []int{0, 1}, Listed: true},
			{Name: "Mid", ProjectCount: 1, Projects: []string{"Digital - App"}, Rows: []int{2}},
		},
		Projects: []entity.Project{
			{Name: "Acute - Beds", Portfolio: "Acute", Participants: []entity.Participant{{Organisation: "Alpha", Lat: ptr(52.2), Lon: ptr(0.2), Row: rows[1]}}},
			{Name: "Digital - App", Portfolio: "Digital", Participants: []entity.Participant{
				{Organisation: "Alpha", Lat: ptr(52.2), Lon: ptr(0.2), Row: rows[0]},
				{Organisation: "Mid", Row: rows[2]},
			}},
		},
		Portfolios: []string{"Acute", "Digital"},
		Regions: []entity.Region{
			{Name: "ICS: A", ProjectCount: 12, Projects: []string{"x"}},
			{Name: "ICS: B", ProjectCount: 3},
		},
		LocalAreas: []entity.LocalArea{
			{Code: "E01", Name: "Area 1", BAME: 10, Over65: 20, IMDDecile: 3},
		},
		Authorities: []entity.Authority{
			{Code: "E07", Name: "Cambridge", IncomeQuintile: 2, BAME: 15, Over65: 18},
			{Code: "E08", Name: "Ely", IncomeQuintile: 4, BAME: 5, Over65: 22},
		},
	}
}

func TestCompiler_Organisations(t *testing.T) {
	cfg := api.Default()
	layers := NewCompiler(cfg).Organisations(fixture())

	require.Len(t, layers, 3)
	assert.Equal(t, []string{"Zeta", "Alpha", "Mid"}, []string{layers[0].Name, layers[1].Name, layers[2].Name})
	assert.Equal(t, []int{0, 2, 1}, []int{layers[0].Len(), layers[1].Len(), layers[2].Len()})

	assert.Empty(t, layers[0].Bars)
	alpha := layers[1]
	assert.Equal(t, KindBar, alpha.Kind)
	assert.Equal(t, cfg.Organisation.OtherProjectColor, alpha.Bars[0].Color)
	assert.Equal(t, cfg.Organisation.DecisionNoColor, alpha.Bars[1].Color)
	assert.InDelta(t, 3, alpha.Bars[0].X, 1e-9, "bars use the raw stage")
	assert.Equal(t, "Digital - App", alpha.Bars[0].Y)
	assert.Len(t, alpha.Custom[0], 4)
}

func TestCompiler_Projects(t *testing.T) {
	layers, err := NewCompiler(api.Default()).Projects(fixture())
	require.NoError(t, err)
	require.Len(t, layers, 2)

	app := layers[1]
	assert.Equal(t, "Digital - App", app.Name)
	assert.Equal(t, []float64{4, 6}, app.Colors)
	assert.Len(t, app.Descriptor.ColorScale, 16)
	assert.InDelta(t, 7, *app.Descriptor.Max, 1e-9)
	assert.Len(t, app.Descriptor.ColorBar.TickText, 8)
	assert.Nil(t, app.Points[1].Lat, "unknown coordinates kept as null")
	assert.InDelta(t, 0.8, app.Descriptor.Opacity, 1e-9)

	viridis, _ := api.Palette("Viridis")
	assert.Equal(t, viridis[1], app.Descriptor.ColorScale[0].Color)
	assert.Equal(t, viridis[8], app.Descriptor.ColorScale[15].Color)
}

func TestCompiler_Projects_UnknownPalette(t *testing.T) {
	cfg := api.Default()
	cfg.Project.Colorbar = "Tiny"
	_, err := NewCompiler(cfg).Projects(fixture())
	assert.Error(t, err)
}

func TestCompiler_Portfolios(t *testing.T) {
	groups := NewCompiler(api.Default()).Portfolios(fixture())
	assert.Equal(t, []PortfolioGroup{
		{Name: "Acute", Members: []int{0}},
		{Name: "Digital", Members: []int{1}},
	}, groups)
}

func TestCompiler_Overlays(t *testing.T) {
	layers, err := NewCompiler(api.Default()).Overlays(fixture())
	require.NoError(t, err)
	require.Len(t, layers, len(OverlayOrder))
	for i, l := range layers {
		assert.Equal(t, OverlayOrder[i], l.Name)
		assert.Equal(t, KindChoropleth, l.Kind)
		assert.True(t, l.Descriptor.ShowScale)
	}

	income := layers[0]
	assert.Equal(t, api.GeometryAuthorities, income.GeometryRef)
	assert.Equal(t, []string{"E07", "E08"}, income.Locations)
	assert.Equal(t, []float64{2, 4}, income.Z)
	assert.Len(t, income.Descriptor.ColorScale, 10)

	imd := layers[3]
	assert.Equal(t, api.GeometryLocalAreas, imd.GeometryRef)
	assert.Len(t, imd.Descriptor.ColorScale, 20)
	assert.Equal(t, "rgb(255,255,255)", imd.Descriptor.ColorScale[19].Color)

	regions := layers[6]
	assert.Equal(t, api.GeometryRegions, regions.GeometryRef)
	assert.Equal(t, []float64{12, 3}, regions.Z)
	// Blues has nine colours, so the scale tops out at 7 before the
	// configured cap of 8 applies.
	assert.Len(t, regions.Descriptor.ColorScale, 16)
	assert.InDelta(t, 8, *regions.Descriptor.Max, 1e-9)
	assert.Len(t, regions.Descriptor.ColorBar.TickVals, 8)
}

func TestCompiler_RegionScaleMax(t *testing.T) {
	c := NewCompiler(api.Default())
	res := fixture()
	assert.Equal(t, 8, c.RegionScaleMax(res, 15))
	assert.Equal(t, 7, c.RegionScaleMax(res, 9))
	res.Regions[0].ProjectCount = 2
	assert.Equal(t, 3, c.RegionScaleMax(res, 15))
}

func TestCompiler_RegionHighlights(t *testing.T) {
	res := fixture()
	res.Regions[0], res.Regions[1] = res.Regions[1], res.Regions[0]
	layers, err := NewCompiler(api.Default()).RegionHighlights(res)
	require.NoError(t, err)
	require.Len(t, layers, 2)
	assert.Equal(t, "ICS: A", layers[0].Name)
	assert.Equal(t, []string{"ICS: A", "ICS: B"}, layers[0].Locations)
	assert.Equal(t, []float64{1, 0}, layers[0].Z)
	assert.Equal(t, []float64{0, 1}, layers[1].Z)
	assert.Equal(t, FamilyRegionHighlights, layers[1].Family)
}

func TestCompiler_OrganisationPoints(t *testing.T) {
	l, err := NewCompiler(api.Default()).OrganisationPoints(fixture())
	require.NoError(t, err)
	assert.Len(t, l.Points, 2, "organisations without coordinates skipped")
	assert.Equal(t, []float64{0, 2}, l.Colors)
	assert.Equal(t, []float64{0, 1, 2}, l.Descriptor.ColorBar.TickVals)
	assert.Equal(t, []string{"0", "1", "2"}, l.Descriptor.ColorBar.TickText)
	assert.Len(t, l.Descriptor.ColorScale, 22)
	assert.Equal(t, "h", l.Descriptor.ColorBar.Orientation)
	assert.True(t, l.Descriptor.ShowLegend)
}
