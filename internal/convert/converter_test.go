package convert

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/paulmach/orb"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/atlas/internal/source"
)

const regions = `{"type":"FeatureCollection","features":[
{"type":"Feature","id":"r1","properties":{"STP21NM":"Cambridgeshire and Peterborough","STP21CD":"E54000056"},"geometry":{"type":"Polygon","coordinates":[[[0,52],[1,52],[1,53],[0,52]]]}},
{"type":"Feature","properties":{"STP21NM":"Nowhere"},"geometry":null},
{"type":"Feature","properties":{"STP21NM":"Hertfordshire and West Essex","STP21CD":"E54000025"},"geometry":{"type":"MultiPolygon","coordinates":[[[[0,51],[1,51],[1,52],[0,51]]]]}}]}`

func setup(t *testing.T, content string) (string, *Converter) {
	t.Helper()
	dir := t.TempDir()
	if content != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "stps.geojson"), []byte(content), 0o644))
	}
	reg := source.NewRegistry(osfs.New(dir),
		source.Dataset{Name: "stps.geojson", Path: "stps.geojson", Kind: source.KindGeometry},
		source.Dataset{Name: "stps.db", Path: "cache/stps.db", Kind: source.KindCachedGeometry},
	)
	return dir, New(reg, zerolog.Nop(), nil)
}

func TestConvertIfStale_MissingCache(t *testing.T) {
	dir, c := setup(t, regions)

	out, err := c.ConvertIfStale(context.Background(), "stps.geojson", "stps.db")
	require.NoError(t, err)
	assert.Equal(t, Converted, out)

	fc, err := LoadCache(filepath.Join(dir, "cache", "stps.db"))
	require.NoError(t, err)
	require.Len(t, fc.Features, 2, "null geometry dropped")
	assert.Equal(t, "Cambridgeshire and Peterborough", fc.Features[0].Properties.MustString("STP21NM"))
	assert.Equal(t, "r1", fc.Features[0].ID)
	assert.Equal(t, "Polygon", fc.Features[0].Geometry.GeoJSONType())
	assert.Equal(t, "MultiPolygon", fc.Features[1].Geometry.GeoJSONType())
	assert.Equal(t, orb.Point{1, 52}, fc.Features[0].Geometry.(orb.Polygon)[0][1])

	meta, err := CacheMeta(filepath.Join(dir, "cache", "stps.db"))
	require.NoError(t, err)
	assert.Equal(t, "3", meta["features"])
}

func TestConvertIfStale_FreshCacheUntouched(t *testing.T) {
	dir, c := setup(t, regions)
	ctx := context.Background()
	_, err := c.ConvertIfStale(ctx, "stps.geojson", "stps.db")
	require.NoError(t, err)

	// Source older than cache.
	cachePath := filepath.Join(dir, "cache", "stps.db")
	srcTime := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	cacheTime := srcTime.Add(time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "stps.geojson"), srcTime, srcTime))
	require.NoError(t, os.Chtimes(cachePath, cacheTime, cacheTime))
	before, err := os.ReadFile(cachePath)
	require.NoError(t, err)

	out, err := c.ConvertIfStale(ctx, "stps.geojson", "stps.db")
	require.NoError(t, err)
	assert.Equal(t, Unchanged, out)

	after, err := os.ReadFile(cachePath)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	info, err := os.Stat(cachePath)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(cacheTime))

	// Equal timestamps are not stale.
	require.NoError(t, os.Chtimes(filepath.Join(dir, "stps.geojson"), cacheTime, cacheTime))
	out, err = c.ConvertIfStale(ctx, "stps.geojson", "stps.db")
	require.NoError(t, err)
	assert.Equal(t, Unchanged, out)
}

func TestConvertIfStale_NewerSourceRebuilds(t *testing.T) {
	dir, c := setup(t, regions)
	ctx := context.Background()
	_, err := c.ConvertIfStale(ctx, "stps.geojson", "stps.db")
	require.NoError(t, err)

	cacheTime := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	srcTime := cacheTime.Add(time.Minute)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "cache", "stps.db"), cacheTime, cacheTime))
	require.NoError(t, os.Chtimes(filepath.Join(dir, "stps.geojson"), srcTime, srcTime))

	out, err := c.ConvertIfStale(ctx, "stps.geojson", "stps.db")
	require.NoError(t, err)
	assert.Equal(t, Converted, out)

	entries, err := os.ReadDir(filepath.Join(dir, "cache"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestConvertIfStale_MalformedSourceKeepsCache(t *testing.T) {
	dir, c := setup(t, regions)
	ctx := context.Background()
	_, err := c.ConvertIfStale(ctx, "stps.geojson", "stps.db")
	require.NoError(t, err)
	cachePath := filepath.Join(dir, "cache", "stps.db")
	before, err := os.ReadFile(cachePath)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "stps.geojson"), []byte(`{"type":`), 0o644))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "stps.geojson"), future, future))

	_, err = c.ConvertIfStale(ctx, "stps.geojson", "stps.db")
	assert.ErrorIs(t, err, source.ErrUnavailable)

	after, err := os.ReadFile(cachePath)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestConvertIfStale_MissingSource(t *testing.T) {
	_, c := setup(t, "")
	_, err := c.ConvertIfStale(context.Background(), "stps.geojson", "stps.db")
	assert.ErrorIs(t, err, source.ErrUnavailable)
}

func TestConverter_Load(t *testing.T) {
	_, c := setup(t, regions)
	_, err := c.Load("stps.db")
	assert.ErrorIs(t, err, source.ErrUnavailable)

	_, err = c.ConvertIfStale(context.Background(), "stps.geojson", "stps.db")
	require.NoError(t, err)
	fc, err := c.Load("stps.db")
	require.NoError(t, err)
	assert.Len(t, fc.Features, 2)
}
