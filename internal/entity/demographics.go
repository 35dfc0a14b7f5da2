package entity

import (
	"math"
	"strconv"
	"strings"
)

// AgeBands are head counts for one area.
type AgeBands struct {
	Under25 float64
	From25  float64
	From50  float64
	Over65  float64
}

// Derive returns the population and then rewrites Over65 as its share of
// that population in percent, rounded to one decimal. The sum is taken
// first; calling Derive twice is a bug.
func (a *AgeBands) Derive() float64 {
	pop := a.Under25 + a.From25 + a.From50 + a.Over65
	if pop == 0 {
		a.Over65 = 0
		return 0
	}
	a.Over65 = round1(100 * a.Over65 / pop)
	return pop
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// parseNumber accepts plain and comma-grouped numbers and a trailing "%".
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "%")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
