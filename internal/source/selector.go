package source

import (
	"fmt"

	"github.com/ohler55/ojg/jp"
)

// Selector is a compiled JSONPath expression used to pull keys and names
// out of feature properties.
type Selector struct {
	expr string
	x    jp.Expr
}

// CompileSelector parses a JSONPath such as "$.LAD21CD".
func CompileSelector(expr string) (*Selector, error) {
	x, err := jp.ParseString(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid jsonpath '%s': %w", expr, err)
	}
	return &Selector{expr: expr, x: x}, nil
}

func (s *Selector) String() string { return s.expr }

// Text returns the first match rendered as a string. ok is false when
// nothing matched or the match was null.
func (s *Selector) Text(root any) (string, bool) {
	for _, v := range s.x.Get(root) {
		switch t := v.(type) {
		case nil:
			continue
		case string:
			return t, true
		case float64:
			return fmt.Sprintf("%g", t), true
		default:
			return fmt.Sprint(t), true
		}
	}
	return "", false
}
