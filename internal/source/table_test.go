package source

import (
	"testing"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTable(t *testing.T) {
	data := "\xEF\xBB\xBFName,Lat,Lon\nAddenbrookes,52.17,0.14\n\"Smith, Jones\",1\n"
	tbl, err := ParseTable([]byte(data))
	require.NoError(t, err)

	assert.Equal(t, []string{"Name", "Lat", "Lon"}, tbl.Columns)
	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, "Addenbrookes", tbl.Value(0, "Name"))
	// Short records are padded.
	assert.Equal(t, "", tbl.Value(1, "Lon"))
	assert.Equal(t, "Smith, Jones", tbl.Value(1, "Name"))
	assert.Equal(t, "", tbl.Value(0, "Missing"))
	assert.Equal(t, -1, tbl.Index("Missing"))
	assert.Equal(t, []string{"52.17", "1"}, tbl.Column("Lat"))
}

func TestParseTable_Malformed(t *testing.T) {
	_, err := ParseTable(nil)
	require.Error(t, err)

	_, err = ParseTable([]byte("a,b\n\"unterminated,1\n"))
	require.Error(t, err)
}

func TestTable_Lookup(t *testing.T) {
	tbl := NewTable([]string{"code", "value"}, [][]string{
		{"E1", "10"},
		{"E1", "20"},
		{"", "30"},
		{"E2", "40"},
	})
	assert.Equal(t, map[string]string{"E1": "10", "E2": "40"}, tbl.Lookup("code", "value"))
	assert.Empty(t, tbl.Lookup("code", "absent"))
}

func TestTable_WriteCSV(t *testing.T) {
	tbl := NewTable([]string{"a", "b"}, [][]string{{"1", "x,y"}, {"2"}})
	data, err := tbl.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,\"x,y\"\n2,\n", string(data))
}

func TestRegistry_ReadTable(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ok.csv", "a\n1\n")
	writeFile(t, dir, "bad.csv", "a\n\"1\n")
	r := NewRegistry(osfs.New(dir),
		Dataset{Name: "ok", Path: "ok.csv", Kind: KindTabular},
		Dataset{Name: "bad", Path: "bad.csv", Kind: KindTabular},
		Dataset{Name: "gone", Path: "gone.csv", Kind: KindTabular},
	)

	tbl, err := r.ReadTable("ok")
	require.NoError(t, err)
	assert.Equal(t, "1", tbl.Value(0, "a"))

	_, err = r.ReadTable("bad")
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = r.ReadTable("gone")
	assert.ErrorIs(t, err, ErrUnavailable)
}
