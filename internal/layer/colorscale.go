package layer

import (
	"encoding/json"
	"fmt"
)

// Stop is one colour-scale breakpoint. It encodes as [level, color].
type Stop struct {
	Level float64
	Color string
}

func (s Stop) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{s.Level, s.Color})
}

type ColorScale []Stop

// Discretize buckets [0,1] into len(indices) equal steps, each painted
// with palette[indices[i]] at both of its edges. The result has exactly
// two stops per category, so the scale is stepwise rather than
// interpolated.
func Discretize(palette []string, indices []int) (ColorScale, error) {
	n := len(indices)
	out := make(ColorScale, 0, 2*n)
	for i, idx := range indices {
		if idx < 0 || idx >= len(palette) {
			return nil, fmt.Errorf("palette index %d out of range [0,%d)", idx, len(palette))
		}
		c := palette[idx]
		out = append(out,
			Stop{Level: float64(i) / float64(n), Color: c},
			Stop{Level: float64(i+1) / float64(n), Color: c},
		)
	}
	return out, nil
}

// Continuous spreads the palette evenly over [0,1].
func Continuous(palette []string) ColorScale {
	out := make(ColorScale, len(palette))
	for i, c := range palette {
		level := 0.0
		if len(palette) > 1 {
			level = float64(i) / float64(len(palette)-1)
		}
		out[i] = Stop{Level: level, Color: c}
	}
	return out
}

// Span returns the integers lo..hi inclusive.
func Span(lo, hi int) []int {
	if hi < lo {
		return nil
	}
	out := make([]int, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		out = append(out, i)
	}
	return out
}
