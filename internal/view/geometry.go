package view

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/agentic-research/atlas/api"
	"github.com/agentic-research/atlas/internal/entity"
)

// Geometries builds the collections choropleth layers refer to. Feature
// ids are the layer locations: canonical names for regions, codes for
// small areas and authorities. Only joined boundaries are included.
func Geometries(res *entity.Result) map[string]*geojson.FeatureCollection {
	regions := geojson.NewFeatureCollection()
	for _, r := range res.Regions {
		add(regions, r.Name, r.Name, r.Geometry)
	}
	areas := geojson.NewFeatureCollection()
	for _, a := range res.LocalAreas {
		add(areas, a.Code, a.Name, a.Geometry)
	}
	authorities := geojson.NewFeatureCollection()
	for _, a := range res.Authorities {
		add(authorities, a.Code, a.Name, a.Geometry)
	}
	return map[string]*geojson.FeatureCollection{
		api.GeometryRegions:     regions,
		api.GeometryLocalAreas:  areas,
		api.GeometryAuthorities: authorities,
	}
}

func add(fc *geojson.FeatureCollection, id, name string, g orb.Geometry) {
	if g == nil {
		return
	}
	f := geojson.NewFeature(g)
	f.ID = id
	f.Properties["name"] = name
	fc.Append(f)
}
