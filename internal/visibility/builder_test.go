package visibility

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSelector(t *testing.T) {
	v, err := BuildSelector(4, []int{1, 3, 1})
	require.NoError(t, err)
	assert.Equal(t, []bool{false, true, false, true}, v)

	v, err = BuildSelector(3, nil)
	require.NoError(t, err)
	assert.Equal(t, []bool{false, false, false}, v)

	_, err = BuildSelector(3, []int{3})
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = BuildSelector(3, []int{-1})
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestBuilder_OneButtonPerLayer(t *testing.T) {
	const n = 5
	b := NewBuilder()
	span := b.Append("projects", n)
	g := b.Group("projects", Update{Title: "Please Select"})
	for i := 0; i < n; i++ {
		g.Button("p", []int{span.Index(i)}, Update{})
	}

	menus, err := b.Finalize()
	require.NoError(t, err)
	require.Len(t, menus, 1)
	buttons := menus[0].Buttons
	require.Len(t, buttons, n+1)

	assert.Equal(t, SentinelLabel, buttons[0].Label)
	assert.Equal(t, make([]bool, n), buttons[0].Visible)
	assert.Equal(t, "Please Select", buttons[0].Update.Title)

	for i := 0; i < n; i++ {
		v := buttons[i+1].Visible
		require.Len(t, v, n)
		for j := range v {
			assert.Equal(t, i == j, v[j], "button %d layer %d", i, j)
		}
	}
}

func TestBuilder_VectorsAreIndependent(t *testing.T) {
	b := NewBuilder()
	b.Append("a", 2)
	b.Group("a", Update{}).Button("x", []int{0}, Update{}).Button("y", []int{1}, Update{})

	menus, err := b.Finalize()
	require.NoError(t, err)
	menus[0].Buttons[1].Visible[1] = true
	assert.Equal(t, []bool{false, true}, menus[0].Buttons[2].Visible)
	assert.Equal(t, []bool{false, false}, menus[0].Buttons[0].Visible)
}

func TestBuilder_SpansAndPins(t *testing.T) {
	b := NewBuilder()
	overlays := b.Append("overlays", 3)
	regions := b.Append("regions", 2)
	points := b.Append("points", 1)
	assert.Equal(t, 6, b.Len())
	assert.Equal(t, []int{3, 4}, regions.Indices())
	assert.Equal(t, 5, points.Index(0))

	b.Pin(points.Index(0))
	b.Group("overlays", Update{}).Button("first", []int{overlays.Index(0)}, Update{}).At(0.1, 1.08).Active(0)
	b.Group("regions", Update{}).Button("r2", []int{regions.Index(1)}, Update{})

	menus, err := b.Finalize()
	require.NoError(t, err)
	require.Len(t, menus, 2)
	assert.Equal(t, []bool{true, false, false, false, false, true}, menus[0].Buttons[1].Visible)
	assert.Equal(t, []bool{false, false, false, false, true, true}, menus[1].Buttons[1].Visible)
	assert.Equal(t, make([]bool, 6), menus[1].Buttons[0].Visible, "sentinel hides pinned layers too")
	assert.InDelta(t, 0.1, menus[0].X, 1e-9)
	require.NotNil(t, menus[0].Active)
	assert.Equal(t, 0, *menus[0].Active)
	assert.Nil(t, menus[1].Active)
}

func TestBuilder_GroupedButton(t *testing.T) {
	b := NewBuilder()
	b.Append("projects", 4)
	b.Group("portfolios", Update{}).Button("Digital", []int{0, 2}, Update{Title: "Portfolio: Digital"})
	menus, err := b.Finalize()
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, true, false}, menus[0].Buttons[1].Visible)
	assert.Equal(t, "Portfolio: Digital", menus[0].Buttons[1].Update.Title)
}

func TestBuilder_OutOfRangeCaughtAtFinalize(t *testing.T) {
	b := NewBuilder()
	b.Append("a", 2)
	b.Group("g", Update{}).Button("bad", []int{2}, Update{})

	_, err := b.Finalize()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	var ie *IndexError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, "g", ie.Group)
	assert.Equal(t, "bad", ie.Button)
	assert.Equal(t, 2, ie.Index)
	assert.Equal(t, 2, ie.Count)

	// Layers appended later make the same index valid.
	b.Append("b", 1)
	_, err = b.Finalize()
	require.NoError(t, err)

	b.Pin(-1)
	_, err = b.Finalize()
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestGroup_MirrorUsesFinalLayerCount(t *testing.T) {
	b := NewBuilder()
	overlays := b.Append("overlays", 2)
	g := b.Group("overlays", Update{Title: "idle"}).Mirror("showscale")
	g.Button("second", []int{overlays.Index(1)}, Update{Restyle: map[string]any{"opacity": 0.5}})

	// Layers appended after the buttons still size the mirrored vector.
	points := b.Append("points", 1)
	b.Pin(points.Index(0))

	menus, err := b.Finalize()
	require.NoError(t, err)
	btn := menus[0].Buttons[1]
	want := []bool{false, true, true}
	assert.Equal(t, want, btn.Visible)
	assert.Equal(t, want, btn.Update.Restyle["showscale"])
	assert.InDelta(t, 0.5, btn.Update.Restyle["opacity"], 1e-9)
	assert.Nil(t, menus[0].Buttons[0].Update.Restyle, "sentinel keeps its idle update")

	// Each button owns its copy.
	btn.Update.Restyle["showscale"].([]bool)[0] = true
	assert.False(t, btn.Visible[0])
}
