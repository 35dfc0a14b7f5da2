// Package layer compiles joined entities into ordered, renderer-neutral
// layers. Each family is emitted in a deterministic order and carries its
// own colour scale and hover text.
package layer

// Kind is the drawing primitive of a layer.
type Kind string

const (
	KindBar        Kind = "bar"
	KindScatterMap Kind = "scattermapbox"
	KindChoropleth Kind = "choroplethmapbox"
)

// Family groups layers that are built and selected together.
type Family string

const (
	FamilyOrganisations      Family = "organisations"
	FamilyProjects           Family = "projects"
	FamilyOverlays           Family = "overlays"
	FamilyRegionHighlights   Family = "region_highlights"
	FamilyOrganisationPoints Family = "organisation_points"
)

// Point is a map marker. Lat/Lon are nil for organisations without
// coordinates; the renderer emits null for them.
type Point struct {
	Label    string
	Lat, Lon *float64
}

// Bar is one horizontal bar: X is the stage, Y the project.
type Bar struct {
	X     float64
	Y     string
	Color string
}

// ColorBar configures the legend bar of a coloured layer.
type ColorBar struct {
	Title       string
	TickVals    []float64
	TickText    []string
	X, Y        *float64
	Orientation string
}

// Descriptor is how a layer is displayed.
type Descriptor struct {
	ColorScale ColorScale
	Min, Max   *float64
	ColorBar   *ColorBar
	Hover      string
	Opacity    float64
	ShowScale  bool
	ShowLegend bool
	MarkerSize float64
}

type Layer struct {
	ID      string
	Name    string
	Family  Family
	Kind    Kind
	Visible bool

	// Choropleth layers reference a shared geometry collection by name;
	// Locations are feature ids in it and Z the value per location.
	GeometryRef string
	Locations   []string
	Z           []float64

	// Scatter layers.
	Points []Point
	Colors []float64

	Bars []Bar

	// Custom holds per-item hover data, addressed as customdata[i].
	Custom [][]string

	Descriptor Descriptor
}

// Len is the number of drawn items.
func (l Layer) Len() int {
	switch l.Kind {
	case KindBar:
		return len(l.Bars)
	case KindScatterMap:
		return len(l.Points)
	default:
		return len(l.Locations)
	}
}

func f64(v float64) *float64 { return &v }

func floats(ints []int) []float64 {
	out := make([]float64, len(ints))
	for i, v := range ints {
		out[i] = float64(v)
	}
	return out
}
