package view

import (
	"fmt"

	"github.com/agentic-research/atlas/api"
	"github.com/agentic-research/atlas/internal/entity"
	"github.com/agentic-research/atlas/internal/layer"
	"github.com/agentic-research/atlas/internal/render"
	"github.com/agentic-research/atlas/internal/visibility"
)

func mapbox(zoom float64, center api.Center) map[string]any {
	return map[string]any{
		"style":  "open-street-map",
		"zoom":   zoom,
		"center": map[string]any{"lat": center.Lat, "lon": center.Lon},
	}
}

// Project maps the participants of each project, selectable by project
// or by portfolio.
func Project(cfg api.Config, c *layer.Compiler, res *entity.Result) (*render.Figure, error) {
	pc := cfg.Project
	layers, err := c.Projects(res)
	if err != nil {
		return nil, err
	}
	groups := c.Portfolios(res)

	idle := visibility.Update{Title: idleTitle, Relayout: map[string]any{"showlegend": true}}
	b := visibility.NewBuilder()
	span := b.Append(string(layer.FamilyProjects), len(layers))

	projects := b.Group("projects", idle).At(pc.ProjectButton.X, pc.ProjectButton.Y)
	for i, l := range layers {
		projects.Button(l.Name, []int{span.Index(i)}, visibility.Update{
			Title:    fmt.Sprintf("%s %s%s", pc.TitleProject, l.Name, pc.Subheading),
			Relayout: map[string]any{"showlegend": true},
		})
	}

	portfolios := b.Group("portfolios", idle).At(pc.PortfolioButton.X, pc.PortfolioButton.Y)
	for _, grp := range groups {
		idx := make([]int, len(grp.Members))
		for i, m := range grp.Members {
			idx[i] = span.Index(m)
		}
		portfolios.Button(grp.Name, idx, visibility.Update{
			Title: fmt.Sprintf("%s %s%s", pc.TitlePortfolio, grp.Name, pc.Subheading),
		})
	}

	menus, err := b.Finalize()
	if err != nil {
		return nil, err
	}
	return &render.Figure{
		Title:  pc.TitleDefault,
		Layers: layers,
		Menus:  menus,
		Layout: map[string]any{
			"title": map[string]any{
				"text":    pc.TitleDefault + pc.Subheading,
				"yanchor": "top", "xanchor": "left",
				"y": 0.98, "x": 0.001,
			},
			"legend":        map[string]any{"yanchor": "top", "xanchor": "left", "y": 0.98, "x": 0.01},
			"mapbox":        mapbox(pc.Zoom, pc.Center),
			"margin":        map[string]any{"t": 80, "b": 10, "r": 10, "l": 10},
			"hoverdistance": 10,
		},
	}, nil
}
