// Package visibility builds the dropdown selectors of a compiled view.
// Every button carries its own finished visibility vector over all layers
// of the view; vectors are built once, at Finalize, and never shared.
package visibility

import (
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring"
)

// SentinelLabel is the idle entry inserted first in every menu.
const SentinelLabel = "Select..."

// ErrIndexOutOfRange matches every IndexError.
var ErrIndexOutOfRange = errors.New("visibility index out of range")

// IndexError is a button referring to a layer that does not exist.
type IndexError struct {
	Group  string
	Button string
	Index  int
	Count  int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("menu %q button %q: layer index %d out of range [0,%d)", e.Group, e.Button, e.Index, e.Count)
}

func (e *IndexError) Is(target error) bool { return target == ErrIndexOutOfRange }

// Update is what selecting a button changes besides layer visibility.
// Restyle applies to layers, Relayout to the figure.
type Update struct {
	Title    string
	Restyle  map[string]any
	Relayout map[string]any
}

type Button struct {
	Label   string
	Visible []bool
	Update  Update
}

type Menu struct {
	Name    string
	Buttons []Button
	X, Y    float64
	Active  *int
}

// Span is a contiguous run of layer indices belonging to one family.
type Span struct {
	Family string
	Start  int
	Len    int
}

// Index returns the absolute index of the i-th layer in the span.
func (s Span) Index(i int) int { return s.Start + i }

func (s Span) Indices() []int {
	out := make([]int, s.Len)
	for i := range out {
		out[i] = s.Start + i
	}
	return out
}

// Builder tracks the layer count of one view and its selector groups.
type Builder struct {
	count  int
	pinned []int
	groups []*Group
}

func NewBuilder() *Builder {
	return &Builder{}
}

// Append reserves n layer slots for a family and returns their span.
func (b *Builder) Append(family string, n int) Span {
	s := Span{Family: family, Start: b.count, Len: n}
	b.count += n
	return s
}

// Len is the current layer count.
func (b *Builder) Len() int { return b.count }

// Pin marks layers that stay visible whatever is selected. The idle
// sentinel still hides them.
func (b *Builder) Pin(indices ...int) {
	b.pinned = append(b.pinned, indices...)
}

// Group starts an independent selector. idle is applied by its sentinel.
func (b *Builder) Group(name string, idle Update) *Group {
	g := &Group{name: name, idle: idle}
	b.groups = append(b.groups, g)
	return g
}

// Group is one dropdown: a dimension of selection independent of the
// other groups of the same view.
type Group struct {
	name    string
	idle    Update
	x, y    float64
	active  *int
	mirror  []string
	buttons []pending
}

type pending struct {
	label   string
	indices []int
	update  Update
}

// Button registers a selectable item showing exactly the given layers
// (plus pinned ones).
func (g *Group) Button(label string, indices []int, update Update) *Group {
	g.buttons = append(g.buttons, pending{
		label:   label,
		indices: append([]int(nil), indices...),
		update:  update,
	})
	return g
}

// At anchors the dropdown in paper coordinates.
func (g *Group) At(x, y float64) *Group {
	g.x, g.y = x, y
	return g
}

// Mirror sets each restyle key to the button's own visibility vector
// when the group is finalized, e.g. "showscale" so that only visible
// layers draw a colour bar.
func (g *Group) Mirror(keys ...string) *Group {
	g.mirror = append(g.mirror, keys...)
	return g
}

// Active marks the initially selected entry; 0 is the sentinel.
func (g *Group) Active(i int) *Group {
	g.active = &i
	return g
}

// Finalize validates every index against the final layer count and
// builds one vector per button. The sentinel comes first in each menu.
func (b *Builder) Finalize() ([]Menu, error) {
	pinned := roaring.New()
	for _, i := range b.pinned {
		if i < 0 || i >= b.count {
			return nil, &IndexError{Group: "pinned", Index: i, Count: b.count}
		}
		pinned.Add(uint32(i))
	}

	menus := make([]Menu, 0, len(b.groups))
	for _, g := range b.groups {
		m := Menu{Name: g.name, X: g.x, Y: g.y, Active: g.active}
		m.Buttons = append(m.Buttons, Button{
			Label:   SentinelLabel,
			Visible: make([]bool, b.count),
			Update:  g.idle,
		})
		for _, p := range g.buttons {
			set := pinned.Clone()
			for _, i := range p.indices {
				if i < 0 || i >= b.count {
					return nil, &IndexError{Group: g.name, Button: p.label, Index: i, Count: b.count}
				}
				set.Add(uint32(i))
			}
			visible := vector(set, b.count)
			m.Buttons = append(m.Buttons, Button{Label: p.label, Visible: visible, Update: g.mirrored(p.update, visible)})
		}
		menus = append(menus, m)
	}
	return menus, nil
}

func (g *Group) mirrored(u Update, visible []bool) Update {
	if len(g.mirror) == 0 {
		return u
	}
	restyle := make(map[string]any, len(u.Restyle)+len(g.mirror))
	for k, v := range u.Restyle {
		restyle[k] = v
	}
	for _, k := range g.mirror {
		restyle[k] = append([]bool(nil), visible...)
	}
	u.Restyle = restyle
	return u
}

func vector(set *roaring.Bitmap, count int) []bool {
	out := make([]bool, count)
	it := set.Iterator()
	for it.HasNext() {
		out[it.Next()] = true
	}
	return out
}

// BuildSelector returns a vector of count flags with only active set.
func BuildSelector(count int, active []int) ([]bool, error) {
	set := roaring.New()
	for _, i := range active {
		if i < 0 || i >= count {
			return nil, &IndexError{Index: i, Count: count}
		}
		set.Add(uint32(i))
	}
	return vector(set, count), nil
}
