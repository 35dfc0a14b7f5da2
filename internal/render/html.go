package render

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/paulmach/orb/geojson"

	"github.com/agentic-research/atlas/internal/layer"
	"github.com/agentic-research/atlas/internal/visibility"
)

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<script src="{{.PlotlyURL}}"></script>
<style>
html, body { height: 100%; margin: 0; }
#atlas { width: 100%; height: 100%; }
</style>
</head>
<body>
<div id="atlas"></div>
<script>
var geometries = {{.Geometries}};
var data = {{.Data}};
var layout = {{.Layout}};
data.forEach(function (trace) {
  if (trace.geometry_ref) {
    trace.geojson = geometries[trace.geometry_ref];
    delete trace.geometry_ref;
  }
});
Plotly.newPlot("atlas", data, layout, {responsive: true});
</script>
</body>
</html>
`

var htmlTmpl = template.Must(template.New("figure").Parse(htmlTemplate))

// HTML renders plotly documents. Geometry collections are embedded once
// and attached to their choropleth traces by the page script.
type HTML struct {
	PlotlyURL string
}

type htmlData struct {
	Title      string
	PlotlyURL  string
	Geometries map[string]*geojson.FeatureCollection
	Data       []map[string]any
	Layout     map[string]any
}

func (h HTML) Render(fig *Figure) ([]byte, error) {
	geoms := fig.Geometries
	if geoms == nil {
		geoms = map[string]*geojson.FeatureCollection{}
	}
	for _, l := range fig.Layers {
		if l.GeometryRef != "" && geoms[l.GeometryRef] == nil {
			return nil, fmt.Errorf("layer %s references missing geometry %q", l.ID, l.GeometryRef)
		}
	}

	data := make([]map[string]any, len(fig.Layers))
	for i, l := range fig.Layers {
		data[i] = Trace(l)
	}

	var buf bytes.Buffer
	err := htmlTmpl.Execute(&buf, htmlData{
		Title:      fig.Title,
		PlotlyURL:  h.PlotlyURL,
		Geometries: geoms,
		Data:       data,
		Layout:     Layout(fig),
	})
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", fig.Title, err)
	}
	return buf.Bytes(), nil
}

// Trace converts a layer to a plotly trace object.
func Trace(l layer.Layer) map[string]any {
	d := l.Descriptor
	t := map[string]any{
		"type":       string(l.Kind),
		"uid":        l.ID,
		"name":       l.Name,
		"visible":    l.Visible,
		"showlegend": d.ShowLegend,
		"customdata": l.Custom,
	}
	if d.Hover != "" {
		t["hovertemplate"] = d.Hover
	}

	switch l.Kind {
	case layer.KindBar:
		x := make([]float64, len(l.Bars))
		y := make([]string, len(l.Bars))
		colors := make([]string, len(l.Bars))
		for i, b := range l.Bars {
			x[i], y[i], colors[i] = b.X, b.Y, b.Color
		}
		t["x"], t["y"] = x, y
		t["orientation"] = "h"
		t["marker"] = map[string]any{"color": colors}

	case layer.KindScatterMap:
		lat := make([]*float64, len(l.Points))
		lon := make([]*float64, len(l.Points))
		text := make([]string, len(l.Points))
		for i, p := range l.Points {
			lat[i], lon[i], text[i] = p.Lat, p.Lon, p.Label
		}
		t["lat"], t["lon"], t["hovertext"] = lat, lon, text
		t["mode"] = "markers"
		marker := map[string]any{
			"color":     l.Colors,
			"showscale": d.ShowScale,
		}
		if d.MarkerSize > 0 {
			marker["size"] = d.MarkerSize
		}
		if len(d.ColorScale) > 0 {
			marker["colorscale"] = d.ColorScale
		}
		if d.Min != nil {
			marker["cmin"] = *d.Min
		}
		if d.Max != nil {
			marker["cmax"] = *d.Max
		}
		if d.ColorBar != nil {
			marker["colorbar"] = colorBar(d.ColorBar)
		}
		t["marker"] = marker
		if d.Opacity > 0 {
			t["opacity"] = d.Opacity
		}

	case layer.KindChoropleth:
		t["geometry_ref"] = l.GeometryRef
		t["featureidkey"] = "id"
		t["locations"] = l.Locations
		t["z"] = l.Z
		t["showscale"] = d.ShowScale
		if len(d.ColorScale) > 0 {
			t["colorscale"] = d.ColorScale
		}
		if d.Min != nil {
			t["zmin"] = *d.Min
		}
		if d.Max != nil {
			t["zmax"] = *d.Max
		}
		if d.ColorBar != nil {
			t["colorbar"] = colorBar(d.ColorBar)
		}
		if d.Opacity > 0 {
			t["marker"] = map[string]any{"opacity": d.Opacity}
		}
	}
	return t
}

func colorBar(cb *layer.ColorBar) map[string]any {
	out := map[string]any{"title": map[string]any{"text": cb.Title}}
	if len(cb.TickVals) > 0 {
		out["tickmode"] = "array"
		out["tickvals"] = cb.TickVals
	}
	if len(cb.TickText) > 0 {
		out["ticktext"] = cb.TickText
	}
	if cb.X != nil {
		out["x"] = *cb.X
	}
	if cb.Y != nil {
		out["y"] = *cb.Y
	}
	if cb.Orientation != "" {
		out["orientation"] = cb.Orientation
	}
	return out
}

// Layout merges the figure layout with its selector menus.
func Layout(fig *Figure) map[string]any {
	out := make(map[string]any, len(fig.Layout)+1)
	for k, v := range fig.Layout {
		out[k] = v
	}
	menus := make([]map[string]any, len(fig.Menus))
	for i, m := range fig.Menus {
		menus[i] = menu(m)
	}
	out["updatemenus"] = menus
	return out
}

func menu(m visibility.Menu) map[string]any {
	buttons := make([]map[string]any, len(m.Buttons))
	for i, b := range m.Buttons {
		restyle := map[string]any{"visible": b.Visible}
		for k, v := range b.Update.Restyle {
			restyle[k] = v
		}
		relayout := map[string]any{}
		if b.Update.Title != "" {
			relayout["title.text"] = b.Update.Title
		}
		for k, v := range b.Update.Relayout {
			relayout[k] = v
		}
		buttons[i] = map[string]any{
			"label":  b.Label,
			"method": "update",
			"args":   []any{restyle, relayout},
		}
	}
	out := map[string]any{"buttons": buttons, "x": m.X, "y": m.Y}
	if m.Active != nil {
		out["active"] = *m.Active
	}
	return out
}
