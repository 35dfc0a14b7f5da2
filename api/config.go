package api

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Geometry dataset names. Each has a GeoJSON source and a cached counterpart.
const (
	GeometryLocalAreas  = "lsoas"
	GeometryRegions     = "stps"
	GeometryAuthorities = "local_authorities"
)

// GeometryNames lists the boundary layers in conversion order.
var GeometryNames = []string{GeometryLocalAreas, GeometryRegions, GeometryAuthorities}

// Config is the build configuration document. Everything outside Files,
// Geometry and Regions is cosmetic and never changes the joined data.
type Config struct {
	Files    Files                  `yaml:"files"`
	Geometry map[string]GeometryKey `yaml:"geometry"`
	Regions  Regions                `yaml:"regions"`

	Organisation OrganisationView `yaml:"organisation_view"`
	Project      ProjectView      `yaml:"project_view"`
	Overall      OverallView      `yaml:"overall_view"`

	// PlotlyURL is the script the rendered documents load plotly.js from.
	PlotlyURL string `yaml:"plotly_url"`

	// MetricsTextfile, when set, receives the run's metrics in the
	// Prometheus text format after a successful build.
	MetricsTextfile string `yaml:"metrics_textfile"`
}

// Files maps logical datasets to paths relative to the data root.
type Files struct {
	IndividualReports    string `yaml:"individual_reports"`
	ImplementationReport string `yaml:"implementation_report"`
	Organisations        string `yaml:"organisations"`
	ICSLocations         string `yaml:"ics_locations"`
	Ethnicity            string `yaml:"ethnicity"`
	IMDs                 string `yaml:"imds"`
	Age                  string `yaml:"age"`
	PopulationRegional   string `yaml:"population_regional"`
	IMDRegional          string `yaml:"imd_regional"`
	EthnicityRegional    string `yaml:"ethnicity_regional"`

	GeoJSON map[string]string `yaml:"geojson_files"`
	Cache   map[string]string `yaml:"cache_files"`
}

// GeometryKey holds JSONPath selectors evaluated against a feature's
// properties, e.g. "$.LAD21CD".
type GeometryKey struct {
	NamePath string `yaml:"name_path"`
	CodePath string `yaml:"code_path"`
}

// Replacement is a literal substring rewrite.
type Replacement struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Regions controls name harmonisation and area filtering.
type Regions struct {
	Harmonize           []Replacement     `yaml:"harmonize"`
	Aliases             map[string]string `yaml:"aliases"`
	ExcludeCodePrefixes []string          `yaml:"exclude_code_prefixes"`
	ExcludeNames        []string          `yaml:"exclude_names"`
	MaxProjectScale     int               `yaml:"max_project_scale"`

	// ProjectMatch selects the report field searched for an organisation's
	// name when counting its projects: "project" (the qualified project
	// name, default) or "organisation" (the report's Name column).
	ProjectMatch string `yaml:"project_match"`
}

// Values accepted by Regions.ProjectMatch.
const (
	MatchOrganisation = "organisation"
	MatchProject      = "project"
)

// Anchor positions a dropdown in paper coordinates.
type Anchor struct {
	X float64 `yaml:"pos_x"`
	Y float64 `yaml:"pos_y"`
}

// Center is a map centre in degrees.
type Center struct {
	Lat float64 `yaml:"lat"`
	Lon float64 `yaml:"lon"`
}

type OrganisationView struct {
	Filename          string `yaml:"filename"`
	TitleDefault      string `yaml:"title_default"`
	TitleOrganisation string `yaml:"title_organisation"`
	Subheading        string `yaml:"subheading"`
	DecisionNoColor   string `yaml:"decision_no_color"`
	OtherProjectColor string `yaml:"other_project_color"`
	Button            Anchor `yaml:"button"`
}

type ProjectView struct {
	Filename        string  `yaml:"filename"`
	TitleDefault    string  `yaml:"title_default"`
	TitleProject    string  `yaml:"title_project"`
	TitlePortfolio  string  `yaml:"title_portfolio"`
	Subheading      string  `yaml:"subheading"`
	Colorbar        string  `yaml:"colorbar"`
	Opacity         float64 `yaml:"opacity"`
	Zoom            float64 `yaml:"zoom"`
	Center          Center  `yaml:"center"`
	ProjectButton   Anchor  `yaml:"project_button"`
	PortfolioButton Anchor  `yaml:"portfolio_button"`
}

type OverallView struct {
	Filename      string    `yaml:"filename"`
	TitleDefault  string    `yaml:"title_default"`
	Subheading    string    `yaml:"subheading"`
	Colorbars     Colorbars `yaml:"colorbars"`
	Zoom          float64   `yaml:"zoom"`
	Center        Center    `yaml:"center"`
	HeatmapButton Anchor    `yaml:"heatmap_button"`
	ICSButton     Anchor    `yaml:"ics_button"`
}

// Colorbars names the sequential palette used by each overlay.
type Colorbars struct {
	ICS          string `yaml:"ics"`
	ICSSelection string `yaml:"ics_selection"`
	LSOABAME     string `yaml:"lsoa_bame"`
	LSOAAge      string `yaml:"lsoa_age"`
	LSOAIMD      string `yaml:"lsoa_imd"`
	LAIMD        string `yaml:"la_imd"`
	LABAME       string `yaml:"la_bame"`
	LAAge        string `yaml:"la_age"`
	Scatter      string `yaml:"scatter"`
}

// DefaultAliases are the boundary names that differ from the region
// reference table.
func DefaultAliases() map[string]string {
	return map[string]string{
		"Cambridgeshire and Peterborough":                 "ICS: Cambridge and Peterborough",
		"Norfolk and Waveney Health and Care Partnership": "ICS: Norfolk and Waveney",
		"Suffolk and North East Essex":                    "ICS: Suffolk and North East Essex",
		"Bedfordshire, Luton and Milton Keynes":           "ICS: BLMK",
		"Hertfordshire and West Essex":                    "ICS: Herts and West Essex",
	}
}

// Default returns a configuration with every option populated.
func Default() Config {
	var c Config
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	f := &c.Files
	if f.IndividualReports == "" {
		f.IndividualReports = "individual_reports"
	}
	if f.ImplementationReport == "" {
		f.ImplementationReport = "combined_report.csv"
	}
	if f.Organisations == "" {
		f.Organisations = "organisations.csv"
	}
	if f.ICSLocations == "" {
		f.ICSLocations = "ics_locations.csv"
	}
	if f.Ethnicity == "" {
		f.Ethnicity = "ethnicity.csv"
	}
	if f.IMDs == "" {
		f.IMDs = "imd.csv"
	}
	if f.Age == "" {
		f.Age = "age.csv"
	}
	if f.PopulationRegional == "" {
		f.PopulationRegional = "population_regional.csv"
	}
	if f.IMDRegional == "" {
		f.IMDRegional = "imd_regional.csv"
	}
	if f.EthnicityRegional == "" {
		f.EthnicityRegional = "ethnicity_regional.csv"
	}
	if f.GeoJSON == nil {
		f.GeoJSON = map[string]string{}
	}
	if f.Cache == nil {
		f.Cache = map[string]string{}
	}
	for _, name := range GeometryNames {
		if f.GeoJSON[name] == "" {
			f.GeoJSON[name] = name + ".geojson"
		}
		if f.Cache[name] == "" {
			f.Cache[name] = name + ".db"
		}
	}

	if c.Geometry == nil {
		c.Geometry = map[string]GeometryKey{}
	}
	defaultKeys := map[string]GeometryKey{
		GeometryLocalAreas:  {NamePath: "$.LSOA11NM", CodePath: "$.LSOA11CD"},
		GeometryRegions:     {NamePath: "$.STP21NM", CodePath: "$.STP21CD"},
		GeometryAuthorities: {NamePath: "$.LAD21NM", CodePath: "$.LAD21CD"},
	}
	for name, def := range defaultKeys {
		k := c.Geometry[name]
		if k.NamePath == "" {
			k.NamePath = def.NamePath
		}
		if k.CodePath == "" {
			k.CodePath = def.CodePath
		}
		c.Geometry[name] = k
	}

	r := &c.Regions
	if r.Harmonize == nil {
		r.Harmonize = []Replacement{{From: "STP: ", To: "ICS: "}}
	}
	if r.Aliases == nil {
		r.Aliases = DefaultAliases()
	}
	if r.ExcludeCodePrefixes == nil {
		r.ExcludeCodePrefixes = []string{"E09"}
	}
	if r.ExcludeNames == nil {
		r.ExcludeNames = []string{"South Oxfordshire", "Oadby and Wigston", "Harborough", "Melton", "Rutland"}
	}
	if r.MaxProjectScale == 0 {
		r.MaxProjectScale = 8
	}
	if r.ProjectMatch == "" {
		r.ProjectMatch = MatchProject
	}

	o := &c.Organisation
	if o.Filename == "" {
		o.Filename = "organisations.html"
	}
	if o.TitleDefault == "" {
		o.TitleDefault = "Projects by Organisation"
	}
	if o.TitleOrganisation == "" {
		o.TitleOrganisation = "Projects involving"
	}
	if o.DecisionNoColor == "" {
		o.DecisionNoColor = "rgb(203,24,29)"
	}
	if o.OtherProjectColor == "" {
		o.OtherProjectColor = "rgb(33,113,181)"
	}
	if o.Button == (Anchor{}) {
		o.Button = Anchor{X: 0.1, Y: 1.1}
	}

	p := &c.Project
	if p.Filename == "" {
		p.Filename = "projects.html"
	}
	if p.TitleDefault == "" {
		p.TitleDefault = "Project View"
	}
	if p.TitleProject == "" {
		p.TitleProject = "Project:"
	}
	if p.TitlePortfolio == "" {
		p.TitlePortfolio = "Portfolio:"
	}
	if p.Colorbar == "" {
		p.Colorbar = "Viridis"
	}
	if p.Opacity == 0 {
		p.Opacity = 0.8
	}
	if p.Zoom == 0 {
		p.Zoom = 6
	}
	if p.Center == (Center{}) {
		p.Center = Center{Lat: 52.1951, Lon: 0.1313}
	}
	if p.ProjectButton == (Anchor{}) {
		p.ProjectButton = Anchor{X: 0.1, Y: 1.08}
	}
	if p.PortfolioButton == (Anchor{}) {
		p.PortfolioButton = Anchor{X: 0.5, Y: 1.08}
	}

	v := &c.Overall
	if v.Filename == "" {
		v.Filename = "overall.html"
	}
	if v.TitleDefault == "" {
		v.TitleDefault = "Overall View"
	}
	cb := &v.Colorbars
	if cb.ICS == "" {
		cb.ICS = "Blues"
	}
	if cb.ICSSelection == "" {
		cb.ICSSelection = "Reds"
	}
	if cb.LSOABAME == "" {
		cb.LSOABAME = "Purples"
	}
	if cb.LSOAAge == "" {
		cb.LSOAAge = "Oranges"
	}
	if cb.LSOAIMD == "" {
		cb.LSOAIMD = "YlOrRd"
	}
	if cb.LAIMD == "" {
		cb.LAIMD = "YlOrRd"
	}
	if cb.LABAME == "" {
		cb.LABAME = "Purples"
	}
	if cb.LAAge == "" {
		cb.LAAge = "Oranges"
	}
	if cb.Scatter == "" {
		cb.Scatter = "Turbo"
	}
	if v.Zoom == 0 {
		v.Zoom = 6
	}
	if v.Center == (Center{}) {
		v.Center = Center{Lat: 52.1951, Lon: 0.1313}
	}
	if v.HeatmapButton == (Anchor{}) {
		v.HeatmapButton = Anchor{X: 0.1, Y: 1.08}
	}
	if v.ICSButton == (Anchor{}) {
		v.ICSButton = Anchor{X: 0.5, Y: 1.08}
	}

	if c.PlotlyURL == "" {
		c.PlotlyURL = "https://cdn.plot.ly/plotly-2.35.2.min.js"
	}
}

// projectPaletteLen is the number of colours the project stage scale
// draws from: slots 1..8 of the palette.
const projectPaletteLen = 9

// Validate reports structural problems that would make a build meaningless.
func (c *Config) Validate() error {
	var errs []error
	for _, v := range []struct{ view, name string }{
		{"organisation_view", c.Organisation.Filename},
		{"project_view", c.Project.Filename},
		{"overall_view", c.Overall.Filename},
	} {
		if v.name == "" {
			errs = append(errs, fmt.Errorf("%s has no filename", v.view))
		}
	}
	if pal, err := Palette(c.Project.Colorbar); err != nil {
		errs = append(errs, fmt.Errorf("project_view colorbar: %w", err))
	} else if len(pal) < projectPaletteLen {
		errs = append(errs, fmt.Errorf("project_view colorbar %s has %d colours, need %d", c.Project.Colorbar, len(pal), projectPaletteLen))
	}
	cb := c.Overall.Colorbars
	for _, p := range []struct{ key, name string }{
		{"ics", cb.ICS},
		{"ics_selection", cb.ICSSelection},
		{"lsoa_bame", cb.LSOABAME},
		{"lsoa_age", cb.LSOAAge},
		{"lsoa_imd", cb.LSOAIMD},
		{"la_imd", cb.LAIMD},
		{"la_bame", cb.LABAME},
		{"la_age", cb.LAAge},
		{"scatter", cb.Scatter},
	} {
		if _, err := Palette(p.name); err != nil {
			errs = append(errs, fmt.Errorf("overall_view colorbars.%s: %w", p.key, err))
		}
	}

	views := map[string]string{
		"organisation_view": c.Organisation.Filename,
		"project_view":      c.Project.Filename,
		"overall_view":      c.Overall.Filename,
	}
	seen := make(map[string]string, len(views))
	for view, name := range views {
		if name == "" {
			continue
		}
		if prev, ok := seen[name]; ok {
			errs = append(errs, fmt.Errorf("%s and %s share output filename %q", prev, view, name))
		}
		seen[name] = view
	}
	for from, to := range c.Regions.Aliases {
		if _, chained := c.Regions.Aliases[to]; chained {
			errs = append(errs, fmt.Errorf("region alias %q maps to %q, which is itself an alias", from, to))
		}
	}
	for _, r := range c.Regions.Harmonize {
		if r.From == "" {
			errs = append(errs, errors.New("harmonize rule with empty 'from'"))
		}
	}
	if c.Regions.MaxProjectScale < 1 {
		errs = append(errs, fmt.Errorf("max_project_scale must be positive, got %d", c.Regions.MaxProjectScale))
	}
	if m := c.Regions.ProjectMatch; m != MatchOrganisation && m != MatchProject {
		errs = append(errs, fmt.Errorf("project_match must be %q or %q, got %q", MatchOrganisation, MatchProject, m))
	}
	return errors.Join(errs...)
}

// LoadConfig reads a YAML configuration file, fills defaults and validates it.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes a YAML document into a validated Config.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
