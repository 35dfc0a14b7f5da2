package pipeline

import (
	"github.com/agentic-research/atlas/api"
	"github.com/agentic-research/atlas/internal/source"
)

// Logical dataset names registered by every run.
const (
	DatasetReports            = "individual_reports"
	DatasetReport             = "implementation_report"
	DatasetOrganisations      = "organisations"
	DatasetRegionRefs         = "ics_locations"
	DatasetEthnicity          = "ethnicity"
	DatasetIMD                = "imds"
	DatasetAge                = "age"
	DatasetPopulationRegional = "population_regional"
	DatasetIMDRegional        = "imd_regional"
	DatasetEthnicityRegional  = "ethnicity_regional"
)

// GeoJSONDataset names the boundary source of a geometry.
func GeoJSONDataset(geometry string) string { return "geojson:" + geometry }

// CacheDataset names the converted cache of a geometry.
func CacheDataset(geometry string) string { return "cache:" + geometry }

// Datasets maps the configured file names onto registry entries.
func Datasets(f api.Files) []source.Dataset {
	out := []source.Dataset{
		{Name: DatasetReports, Path: f.IndividualReports, Kind: source.KindDirectory},
		{Name: DatasetReport, Path: f.ImplementationReport, Kind: source.KindTabular},
		{Name: DatasetOrganisations, Path: f.Organisations, Kind: source.KindTabular},
		{Name: DatasetRegionRefs, Path: f.ICSLocations, Kind: source.KindTabular},
		{Name: DatasetEthnicity, Path: f.Ethnicity, Kind: source.KindTabular},
		{Name: DatasetIMD, Path: f.IMDs, Kind: source.KindTabular},
		{Name: DatasetAge, Path: f.Age, Kind: source.KindTabular},
		{Name: DatasetPopulationRegional, Path: f.PopulationRegional, Kind: source.KindTabular},
		{Name: DatasetIMDRegional, Path: f.IMDRegional, Kind: source.KindTabular},
		{Name: DatasetEthnicityRegional, Path: f.EthnicityRegional, Kind: source.KindTabular},
	}
	for _, g := range api.GeometryNames {
		out = append(out,
			source.Dataset{Name: GeoJSONDataset(g), Path: f.GeoJSON[g], Kind: source.KindGeometry},
			source.Dataset{Name: CacheDataset(g), Path: f.Cache[g], Kind: source.KindCachedGeometry},
		)
	}
	return out
}

// required lists the datasets that must exist before anything is written.
// The consolidated report and the caches are derived, so they may be
// missing.
func required() []string {
	names := []string{
		DatasetReports,
		DatasetOrganisations,
		DatasetRegionRefs,
		DatasetEthnicity,
		DatasetIMD,
		DatasetAge,
		DatasetPopulationRegional,
		DatasetIMDRegional,
		DatasetEthnicityRegional,
	}
	for _, g := range api.GeometryNames {
		names = append(names, GeoJSONDataset(g))
	}
	return names
}
