package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseStage(t *testing.T) {
	tests := map[string]int{
		"Stage 3":         3,
		"3 - Decision":    3,
		"Stage 12 (late)": 12,
		"Knowledge":       0,
		"":                0,
		NotAvailable:      0,
		"Stage 4 of 7":    4,
	}
	for label, want := range tests {
		assert.Equal(t, want, ParseStage(label), label)
	}
	assert.Equal(t, 0, ParseStage("99999999999999999999"), "overflow")

	// Digits in other scripts count like ASCII ones.
	assert.Equal(t, 3, ParseStage("Stage ３"))
	assert.Equal(t, 3, ParseStage("Phase ٣ / Stage 5"))
	assert.Equal(t, 12, ParseStage("Stage １２"))
}

func TestPresentationStage(t *testing.T) {
	for raw := 0; raw <= 6; raw++ {
		want := raw
		if raw > 3 {
			want = raw + 1
		}
		assert.Equal(t, want, PresentationStage(raw, "no marker"), "raw %d", raw)
	}

	// A positive decision takes the reserved slot.
	assert.Equal(t, 4, PresentationStage(ParseStage("Stage 3"), "Board said Yes - approved"))
	// The marker only matters at the decision stage.
	assert.Equal(t, 2, PresentationStage(2, "Yes - approved"))
	assert.Equal(t, 5, PresentationStage(4, "Yes - approved"))
	assert.Equal(t, 3, PresentationStage(3, "Decision No - funding"))
}

func TestEnded(t *testing.T) {
	assert.True(t, Ended(3, "Decision No - funding"))
	assert.False(t, Ended(3, "decision no"), "literal, case-sensitive")
	assert.False(t, Ended(2, "Decision No"))
	assert.False(t, Ended(3, NotAvailable))
}
