package source

import (
	"fmt"

	"github.com/paulmach/orb/geojson"
)

// ReadFeatures decodes a GeoJSON FeatureCollection dataset.
func (r *Registry) ReadFeatures(name string) (*geojson.FeatureCollection, error) {
	data, err := r.ReadFile(name)
	if err != nil {
		return nil, err
	}
	ds, _ := r.Resolve(name)
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, unavailable(ds, fmt.Errorf("malformed geojson: %w", err))
	}
	return fc, nil
}
