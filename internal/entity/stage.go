package entity

import (
	"math"
	"strings"
	"unicode"
)

const (
	// NotAvailable fills empty Interest and Stage cells.
	NotAvailable = "Not Available"

	decisionYesMarker = "Yes - "
	decisionNoMarker  = "Decision No"
	decisionStage     = 3
)

// StageLabels names the presentation stages 0-7 for axis ticks.
var StageLabels = []string{
	"0 - No Information",
	"1 - Knowledge",
	"2 - Interest",
	"3 - Decision",
	"4 - Implementation",
	"5 - Adoption",
	"6 - Spread<br><sup>(PSC Only)</sup>",
	"7 - Sustained<br><sup>(PSC Only)</sup>",
}

// ParseStage extracts the first run of decimal digits in label, in any
// script; 0 when there is none.
func ParseStage(label string) int {
	start := strings.IndexFunc(label, unicode.IsDigit)
	if start < 0 {
		return 0
	}
	n := 0
	for _, r := range label[start:] {
		d, ok := digitValue(r)
		if !ok {
			break
		}
		if n > (math.MaxInt-d)/10 {
			return 0
		}
		n = n*10 + d
	}
	return n
}

// digitValue maps a Unicode decimal digit to its value. Decimal digits
// are encoded in contiguous runs of ten, each starting at a zero.
func digitValue(r rune) (int, bool) {
	if !unicode.IsDigit(r) {
		return 0, false
	}
	zero := r
	for unicode.IsDigit(zero - 1) {
		zero--
	}
	return int(r-zero) % 10, true
}

// PresentationStage maps a raw stage onto the 0-7 ordinal. Stages after
// the decision shift up by one to leave room for a positive decision,
// which is slot 4.
func PresentationStage(raw int, interest string) int {
	switch {
	case raw > decisionStage:
		return raw + 1
	case raw == decisionStage && strings.Contains(interest, decisionYesMarker):
		return decisionStage + 1
	default:
		return raw
	}
}

// Ended reports a project that stopped at a negative decision.
func Ended(raw int, interest string) bool {
	return raw == decisionStage && strings.Contains(interest, decisionNoMarker)
}
