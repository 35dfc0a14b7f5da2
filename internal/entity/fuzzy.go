package entity

import (
	"strings"

	"github.com/agentic-research/atlas/api"
	"github.com/agentic-research/atlas/internal/source"
)

// Matcher decides whether a record identified by haystack belongs to the
// entity named needle.
type Matcher interface {
	Match(haystack, needle string) bool
}

// Substring is the tolerant join: a record belongs to an entity when the
// entity's name appears anywhere in the record's text. One organisation
// whose name is contained in another's will also claim the other's rows.
type Substring struct{}

func (Substring) Match(haystack, needle string) bool {
	return needle != "" && strings.Contains(haystack, needle)
}

// Harmonizer rewrites legacy naming with literal substring replacements,
// applied in order.
type Harmonizer struct {
	rules []api.Replacement
}

func NewHarmonizer(rules []api.Replacement) Harmonizer {
	return Harmonizer{rules: rules}
}

func (h Harmonizer) Apply(s string) string {
	for _, r := range h.rules {
		if r.From == "" {
			continue
		}
		s = strings.ReplaceAll(s, r.From, r.To)
	}
	return s
}

// Table returns a copy of t with every cell harmonized.
func (h Harmonizer) Table(t *source.Table) *source.Table {
	if t == nil {
		return nil
	}
	rows := make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		out := make([]string, len(r))
		for j, v := range r {
			out[j] = h.Apply(v)
		}
		rows[i] = out
	}
	return source.NewTable(t.Columns, rows)
}

// AliasMap renames region boundaries to their canonical names. Targets
// are never themselves keys, so Resolve is idempotent.
type AliasMap map[string]string

func (a AliasMap) Resolve(name string) string {
	if to, ok := a[name]; ok {
		return to
	}
	return name
}
