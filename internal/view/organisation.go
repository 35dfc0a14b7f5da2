// Package view assembles compiled layers and selector groups into the
// three published figures.
package view

import (
	"fmt"

	"github.com/agentic-research/atlas/api"
	"github.com/agentic-research/atlas/internal/entity"
	"github.com/agentic-research/atlas/internal/layer"
	"github.com/agentic-research/atlas/internal/render"
	"github.com/agentic-research/atlas/internal/visibility"
)

const idleTitle = "Please Select"

func idleAnnotation() []map[string]any {
	return []map[string]any{{
		"text":      "Please select an organisation",
		"xref":      "paper",
		"yref":      "paper",
		"showarrow": false,
		"font":      map[string]any{"size": 28},
	}}
}

func stageAxis() map[string]any {
	return map[string]any{
		"tickmode": "array",
		"tickvals": layer.Span(0, 7),
		"ticktext": entity.StageLabels,
		"range":    []int{0, 7},
		"title":    map[string]any{"text": "Stage Number"},
	}
}

// Organisation is the bar chart of each organisation's projects by stage,
// one selectable organisation at a time.
func Organisation(cfg api.Config, c *layer.Compiler, res *entity.Result) (*render.Figure, error) {
	oc := cfg.Organisation
	layers := c.Organisations(res)

	b := visibility.NewBuilder()
	span := b.Append(string(layer.FamilyOrganisations), len(layers))
	g := b.Group("organisations", visibility.Update{
		Title:    idleTitle,
		Relayout: map[string]any{"showlegend": true, "annotations": idleAnnotation()},
	}).At(oc.Button.X, oc.Button.Y)
	for i, l := range layers {
		g.Button(l.Name, []int{span.Index(i)}, visibility.Update{
			Title: fmt.Sprintf("%s %s%s", oc.TitleOrganisation, l.Name, oc.Subheading),
			Relayout: map[string]any{
				"showlegend":  true,
				"xaxis":       stageAxis(),
				"annotations": []any{},
			},
		})
	}
	menus, err := b.Finalize()
	if err != nil {
		return nil, err
	}

	return &render.Figure{
		Title:  oc.TitleDefault,
		Layers: layers,
		Menus:  menus,
		Layout: map[string]any{
			"title": map[string]any{
				"text":    oc.TitleDefault + oc.Subheading,
				"yanchor": "top", "xanchor": "left",
				"y": 0.97, "x": 0.015,
			},
			"margin":      map[string]any{"t": 80, "b": 10, "r": 15, "l": 15},
			"yaxis":       map[string]any{"title": map[string]any{"text": "Project"}},
			"annotations": idleAnnotation(),
		},
	}, nil
}
