package fusion

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/atlas/internal/source"
)

func setup(t *testing.T, reports map[string]string) (string, *Engine) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "reports"), 0o755))
	for name, body := range reports {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "reports", name), []byte(body), 0o644))
	}
	reg := source.NewRegistry(osfs.New(dir),
		source.Dataset{Name: "individual_reports", Path: "reports", Kind: source.KindDirectory},
		source.Dataset{Name: "implementation_report", Path: "combined_report.csv", Kind: source.KindTabular},
	)
	return dir, New(reg, "individual_reports", "implementation_report", zerolog.Nop(), nil)
}

func read(t *testing.T, dir string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(dir, "combined_report.csv"))
	require.NoError(t, err)
	return string(b)
}

func TestFuse_BuildsConsolidatedReport(t *testing.T) {
	dir, e := setup(t, map[string]string{
		"Digital.csv": "ProjectName,Name,Stage\nApp,ICS: BLMK,Stage 1\nApp,ICS: BLMK,Stage 1\n",
		"Acute.csv":   "Name,ProjectName,Interest\nSTP: Herts,Beds,Yes - approved\n",
		"notes.txt":   "ignored",
	})

	res, err := e.Fuse(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Rebuilt)
	assert.Equal(t, 2, res.Reports)
	assert.Equal(t, 2, res.Rows, "exact duplicate dropped")

	want := "Name,ProjectName,Interest,Stage,Portfolio\n" +
		"STP: Herts,Acute - Beds,Yes - approved,,Acute\n" +
		"ICS: BLMK,Digital - App,,Stage 1,Digital\n"
	assert.Equal(t, want, read(t, dir))
}

func TestFuse_SecondRunIsNoop(t *testing.T) {
	dir, e := setup(t, map[string]string{
		"A.csv": "ProjectName,Name\nP,Org\n",
	})
	ctx := context.Background()

	_, err := e.Fuse(ctx)
	require.NoError(t, err)
	first := read(t, dir)

	// Reports older than the consolidated file.
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "reports", "A.csv"), old, old))
	info, err := os.Stat(filepath.Join(dir, "combined_report.csv"))
	require.NoError(t, err)

	res, err := e.Fuse(ctx)
	require.NoError(t, err)
	assert.False(t, res.Rebuilt)
	assert.Equal(t, first, read(t, dir))

	after, err := os.Stat(filepath.Join(dir, "combined_report.csv"))
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(after.ModTime()))
}

func TestFuse_NewerReportRebuilds(t *testing.T) {
	dir, e := setup(t, map[string]string{
		"A.csv": "ProjectName,Name\nP,Org\n",
	})
	ctx := context.Background()
	_, err := e.Fuse(ctx)
	require.NoError(t, err)

	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "combined_report.csv"), past, past))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "reports", "B.csv"), []byte("ProjectName,Name\nQ,Org\n"), 0o644))

	rebuild, _, err := e.Plan()
	require.NoError(t, err)
	assert.True(t, rebuild)

	res, err := e.Fuse(ctx)
	require.NoError(t, err)
	assert.True(t, res.Rebuilt)
	assert.Equal(t, "ProjectName,Name,Portfolio\nA - P,Org,A\nB - Q,Org,B\n", read(t, dir))
}

func TestFuse_EmptyDirectory(t *testing.T) {
	dir, e := setup(t, nil)

	_, err := e.Fuse(context.Background())
	assert.ErrorIs(t, err, source.ErrUnavailable, "nothing to fuse and nothing to fall back on")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "combined_report.csv"), []byte("ProjectName\n"), 0o644))
	res, err := e.Fuse(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Rebuilt)
	assert.Equal(t, "ProjectName\n", read(t, dir))
}

func TestFuse_ReportWithoutProjectName(t *testing.T) {
	dir, e := setup(t, map[string]string{
		"A.csv": "Name\nOrg\n",
	})
	_, err := e.Fuse(context.Background())
	assert.ErrorIs(t, err, source.ErrUnavailable)
	_, statErr := os.Stat(filepath.Join(dir, "combined_report.csv"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestMerge_DuplicatesAcrossPortfoliosKept(t *testing.T) {
	tables := map[string]*source.Table{
		"A": source.NewTable([]string{"ProjectName"}, [][]string{{"Same"}}),
		"B": source.NewTable([]string{"ProjectName"}, [][]string{{"Same"}}),
	}
	out := Merge([]string{"A", "B"}, tables)
	require.Equal(t, 2, out.Len())
	assert.Equal(t, []string{"A - Same", "B - Same"}, out.Column("ProjectName"))
}
