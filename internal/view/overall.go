package view

import (
	"github.com/agentic-research/atlas/api"
	"github.com/agentic-research/atlas/internal/entity"
	"github.com/agentic-research/atlas/internal/layer"
	"github.com/agentic-research/atlas/internal/render"
	"github.com/agentic-research/atlas/internal/visibility"
)

// Overall is the statistical map: one overlay at a time from the first
// menu, one highlighted region at a time from the second, and the
// organisation scatter shown under every selection.
func Overall(cfg api.Config, c *layer.Compiler, res *entity.Result) (*render.Figure, error) {
	oc := cfg.Overall
	overlays, err := c.Overlays(res)
	if err != nil {
		return nil, err
	}
	highlights, err := c.RegionHighlights(res)
	if err != nil {
		return nil, err
	}
	points, err := c.OrganisationPoints(res)
	if err != nil {
		return nil, err
	}

	b := visibility.NewBuilder()
	ovSpan := b.Append(string(layer.FamilyOverlays), len(overlays))
	hlSpan := b.Append(string(layer.FamilyRegionHighlights), len(highlights))
	ptSpan := b.Append(string(layer.FamilyOrganisationPoints), 1)
	b.Pin(ptSpan.Index(0))

	idle := visibility.Update{Title: idleTitle, Relayout: map[string]any{"showlegend": true}}
	// Colour bars follow visibility so only the selected overlay's shows.
	ov := b.Group("overlays", idle).At(oc.HeatmapButton.X, oc.HeatmapButton.Y).Active(0).Mirror("showscale")
	for i, l := range overlays {
		ov.Button(l.Name, []int{ovSpan.Index(i)}, visibility.Update{
			Title:    l.Name + oc.Subheading,
			Relayout: map[string]any{"showlegend": true},
		})
	}

	regions := b.Group("regions", idle).At(oc.ICSButton.X, oc.ICSButton.Y)
	for i, l := range highlights {
		regions.Button(l.Name, []int{hlSpan.Index(i)}, visibility.Update{
			Title:   l.Name + oc.Subheading,
			Restyle: map[string]any{"showscale": false},
		})
	}

	menus, err := b.Finalize()
	if err != nil {
		return nil, err
	}

	layers := make([]layer.Layer, 0, b.Len())
	layers = append(layers, overlays...)
	layers = append(layers, highlights...)
	layers = append(layers, points)

	return &render.Figure{
		Title:  oc.TitleDefault,
		Layers: layers,
		Menus:  menus,
		Layout: map[string]any{
			"title": map[string]any{
				"text":    oc.TitleDefault + oc.Subheading,
				"yanchor": "top", "xanchor": "left",
				"y": 0.96, "x": 0.02,
			},
			"mapbox": mapbox(oc.Zoom, oc.Center),
			"legend": map[string]any{"yanchor": "top", "y": 0.99, "xanchor": "left", "x": 0.01},
		},
		Geometries: Geometries(res),
	}, nil
}
