// Package pipeline runs one build: fuse reports, refresh geometry caches,
// join, compile the three views and publish them together.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	billy "github.com/go-git/go-billy/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/agentic-research/atlas/api"
	"github.com/agentic-research/atlas/internal/convert"
	"github.com/agentic-research/atlas/internal/entity"
	"github.com/agentic-research/atlas/internal/fusion"
	"github.com/agentic-research/atlas/internal/layer"
	"github.com/agentic-research/atlas/internal/metrics"
	"github.com/agentic-research/atlas/internal/render"
	"github.com/agentic-research/atlas/internal/source"
	"github.com/agentic-research/atlas/internal/view"
)

// Options are optional collaborators. Zero values get defaults.
type Options struct {
	Metrics  *metrics.Metrics
	Renderer render.Renderer
}

// Pipeline owns the registry and output filesystem for a build.
type Pipeline struct {
	cfg      api.Config
	reg      *source.Registry
	out      billy.Filesystem
	log      zerolog.Logger
	metrics  *metrics.Metrics
	renderer render.Renderer
}

// New wires a pipeline. data must be backed by the OS filesystem since
// geometry caches are opened by path.
func New(cfg api.Config, data, out billy.Filesystem, log zerolog.Logger, opts Options) *Pipeline {
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}
	r := opts.Renderer
	if r == nil {
		r = render.HTML{PlotlyURL: cfg.PlotlyURL}
	}
	return &Pipeline{
		cfg:      cfg,
		reg:      source.NewRegistry(data, Datasets(cfg.Files)...),
		out:      out,
		log:      log,
		metrics:  m,
		renderer: r,
	}
}

// Artifact is one published view.
type Artifact struct {
	View string
	Path string
	Size int
}

// Report summarises a successful run.
type Report struct {
	RunID       string
	Fusion      fusion.Result
	Conversions map[string]convert.Outcome
	Misses      map[string]int
	Artifacts   []Artifact
	Duration    time.Duration
}

type viewBuilder func(api.Config, *layer.Compiler, *entity.Result) (*render.Figure, error)

type viewTarget struct {
	name     string
	filename string
	build    viewBuilder
}

func (p *Pipeline) views() []viewTarget {
	return []viewTarget{
		{name: "organisation", filename: p.cfg.Organisation.Filename, build: view.Organisation},
		{name: "project", filename: p.cfg.Project.Filename, build: view.Project},
		{name: "overall", filename: p.cfg.Overall.Filename, build: view.Overall},
	}
}

// Run executes the build. Nothing is published unless every view renders,
// and a failed run leaves previously published views in place.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	rep := Report{RunID: uuid.NewString(), Conversions: map[string]convert.Outcome{}}
	log := p.log.With().Str("run", rep.RunID).Logger()

	if err := p.cfg.Validate(); err != nil {
		return rep, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := p.reg.Require(required()...); err != nil {
		return rep, err
	}

	fused, err := fusion.New(p.reg, DatasetReports, DatasetReport, log, p.metrics).Fuse(ctx)
	if err != nil {
		return rep, fmt.Errorf("fuse reports: %w", err)
	}
	rep.Fusion = fused

	conv := convert.New(p.reg, log, p.metrics)
	for _, g := range api.GeometryNames {
		out, err := conv.ConvertIfStale(ctx, GeoJSONDataset(g), CacheDataset(g))
		if err != nil {
			return rep, err
		}
		rep.Conversions[g] = out
	}

	in, err := p.load(conv)
	if err != nil {
		return rep, err
	}
	joiner, err := entity.NewJoiner(p.cfg, log, p.metrics)
	if err != nil {
		return rep, err
	}
	res, err := joiner.Join(in)
	if err != nil {
		return rep, fmt.Errorf("join: %w", err)
	}
	rep.Misses = res.Misses

	if err := ctx.Err(); err != nil {
		return rep, err
	}
	artifacts, err := p.publish(res, log)
	if err != nil {
		return rep, err
	}
	rep.Artifacts = artifacts

	rep.Duration = time.Since(start)
	p.metrics.ObserveRun(rep.RunID, rep.Duration, time.Now())
	if path := p.cfg.MetricsTextfile; path != "" {
		if err := p.metrics.WriteTextfile(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("metrics textfile not written")
		}
	}
	log.Info().Dur("duration", rep.Duration).Int("artifacts", len(artifacts)).Msg("build complete")
	return rep, nil
}

func (p *Pipeline) load(conv *convert.Converter) (entity.Inputs, error) {
	var in entity.Inputs
	tables := []struct {
		name string
		dst  **source.Table
	}{
		{DatasetOrganisations, &in.Organisations},
		{DatasetReport, &in.Report},
		{DatasetRegionRefs, &in.RegionRefs},
		{DatasetEthnicity, &in.Ethnicity},
		{DatasetAge, &in.Age},
		{DatasetIMD, &in.IMD},
		{DatasetPopulationRegional, &in.PopulationRegional},
		{DatasetIMDRegional, &in.IMDRegional},
		{DatasetEthnicityRegional, &in.EthnicityRegional},
	}
	for _, t := range tables {
		tbl, err := p.reg.ReadTable(t.name)
		if err != nil {
			return in, err
		}
		*t.dst = tbl
	}

	var err error
	if in.Regions, err = conv.Load(CacheDataset(api.GeometryRegions)); err != nil {
		return in, err
	}
	if in.LocalAreas, err = conv.Load(CacheDataset(api.GeometryLocalAreas)); err != nil {
		return in, err
	}
	if in.Authorities, err = conv.Load(CacheDataset(api.GeometryAuthorities)); err != nil {
		return in, err
	}
	return in, nil
}

// publish renders every view into a batch, then commits the batch.
func (p *Pipeline) publish(res *entity.Result, log zerolog.Logger) ([]Artifact, error) {
	compiler := layer.NewCompiler(p.cfg)
	batch := source.NewBatch(p.out)
	artifacts := make([]Artifact, 0, 3)

	for _, v := range p.views() {
		fig, err := v.build(p.cfg, compiler, res)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("compile %s view: %w", v.name, err), batch.Abort())
		}
		for family, n := range familyCounts(fig.Layers) {
			p.metrics.AddLayers(family, n)
		}
		data, err := p.renderer.Render(fig)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("render %s view: %w", v.name, err), batch.Abort())
		}
		if err := render.Stage(batch, v.filename, data); err != nil {
			return nil, errors.Join(err, batch.Abort())
		}
		artifacts = append(artifacts, Artifact{View: v.name, Path: v.filename, Size: len(data)})
	}

	log.Debug().Strs("paths", batch.Names()).Msg("committing views")
	if err := render.Commit(batch); err != nil {
		return nil, err
	}
	for _, a := range artifacts {
		p.metrics.ObserveArtifact(a.View, a.Size)
		log.Info().Str("view", a.View).Str("path", a.Path).Str("size", humanize.Bytes(uint64(a.Size))).Msg("published")
	}
	return artifacts, nil
}

func familyCounts(layers []layer.Layer) map[string]int {
	out := make(map[string]int)
	for _, l := range layers {
		out[string(l.Family)]++
	}
	return out
}
