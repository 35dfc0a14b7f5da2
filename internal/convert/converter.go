// Package convert keeps binary geometry caches in step with their GeoJSON
// sources. A cache is rebuilt only when it is missing or older than its
// source; otherwise it is left byte-for-byte untouched.
package convert

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"

	"github.com/agentic-research/atlas/internal/metrics"
	"github.com/agentic-research/atlas/internal/source"
)

// Outcome is what ConvertIfStale did.
type Outcome string

const (
	Converted Outcome = "converted"
	Unchanged Outcome = "unchanged"
)

// Converter rebuilds stale geometry caches.
type Converter struct {
	reg     *source.Registry
	log     zerolog.Logger
	metrics *metrics.Metrics
}

func New(reg *source.Registry, log zerolog.Logger, m *metrics.Metrics) *Converter {
	return &Converter{reg: reg, log: log, metrics: m}
}

// Stale reports whether the cache needs rebuilding: it is absent, or the
// source was modified strictly after it.
func (c *Converter) Stale(src, cache string) (bool, error) {
	srcMod, ok, err := c.reg.ModTime(src)
	if err != nil {
		return false, err
	}
	if !ok {
		ds, _ := c.reg.Resolve(src)
		return false, &source.UnavailableError{Dataset: ds.Name, Path: ds.Path, Err: fmt.Errorf("source missing")}
	}
	cacheMod, ok, err := c.reg.ModTime(cache)
	if err != nil {
		return false, err
	}
	return !ok || srcMod.After(cacheMod), nil
}

// ConvertIfStale rebuilds cache from src when stale. The new cache is
// written to a temp file beside the old one and renamed over it, so a
// failed conversion leaves the previous cache intact.
func (c *Converter) ConvertIfStale(ctx context.Context, src, cache string) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	stale, err := c.Stale(src, cache)
	if err != nil {
		return "", err
	}
	if !stale {
		c.log.Info().Str("dataset", cache).Msg("up-to-date")
		c.metrics.ObserveRebuild(cache, false)
		return Unchanged, nil
	}

	fc, err := c.reg.ReadFeatures(src)
	if err != nil {
		return "", err
	}

	ds, err := c.reg.Resolve(cache)
	if err != nil {
		return "", err
	}
	fs := c.reg.Filesystem()
	dir := path.Dir(ds.Path)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create cache directory %s: %w", dir, err)
	}
	tmp, err := fs.TempFile(dir, ".atlas-cache-")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	_ = tmp.Close()

	meta := map[string]string{
		"source":       src,
		"features":     strconv.Itoa(len(fc.Features)),
		"converted_at": time.Now().UTC().Format(time.RFC3339),
	}
	skipped, err := writeCache(ctx, filepath.Join(fs.Root(), filepath.FromSlash(tmpName)), fc, meta)
	if err != nil {
		_ = fs.Remove(tmpName) // best-effort cleanup
		return "", fmt.Errorf("convert %s: %w", src, err)
	}
	if err := fs.Rename(tmpName, ds.Path); err != nil {
		_ = fs.Remove(tmpName) // best-effort cleanup
		return "", fmt.Errorf("rename temp to %s: %w", ds.Path, err)
	}

	ev := c.log.Info().Str("dataset", cache).Int("features", len(fc.Features)-skipped)
	if skipped > 0 {
		ev = ev.Int("skipped_null_geometry", skipped)
	}
	ev.Msg("converted")
	c.metrics.ObserveRebuild(cache, true)
	return Converted, nil
}

// Load reads the cache registered under name.
func (c *Converter) Load(name string) (*geojson.FeatureCollection, error) {
	p, err := c.reg.LocalPath(name)
	if err != nil {
		return nil, err
	}
	fc, err := LoadCache(p)
	if err != nil {
		ds, _ := c.reg.Resolve(name)
		return nil, &source.UnavailableError{Dataset: ds.Name, Path: ds.Path, Err: err}
	}
	return fc, nil
}
