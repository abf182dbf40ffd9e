package extract

import (
	"strings"

	"github.com/touml/touml/internal/pyast"
)

// PrintValue renders a literal expression as Python-like source text.
//
// Strings, integers, booleans, None and set, tuple, list and dict displays
// are supported. Any other shape reports false, meaning "no default", which
// is not an error. Tuples always carry a trailing comma: (1,) and (1, 2,).
// Unprintable container elements are skipped. In a dict an unprintable key
// drops its pair and an unprintable value prints as None.
func PrintValue(expr pyast.Expr) (string, bool) {
	switch e := expr.(type) {
	case *pyast.Constant:
		switch e.Kind {
		case pyast.ConstStr:
			return "'" + e.Value + "'", true
		case pyast.ConstInt, pyast.ConstBool, pyast.ConstNone:
			return e.Value, true
		case pyast.ConstBytes, pyast.ConstFloat, pyast.ConstComplex, pyast.ConstEllipsis:
			return "", false
		}
		return "", false

	case *pyast.Set:
		return "{" + printElts(e.Elts) + "}", true

	case *pyast.Tuple:
		return "(" + printElts(e.Elts) + ",)", true

	case *pyast.List:
		return "[" + printElts(e.Elts) + "]", true

	case *pyast.Dict:
		pairs := make([]string, 0, len(e.Keys))
		for i, key := range e.Keys {
			k, ok := PrintValue(key)
			if !ok {
				continue
			}
			v, ok := PrintValue(e.Values[i])
			if !ok {
				v = "None"
			}
			pairs = append(pairs, k+": "+v)
		}
		return "{" + strings.Join(pairs, ", ") + "}", true

	case *pyast.Name, *pyast.Attribute, *pyast.Subscript, *pyast.BinOp,
		*pyast.UnaryOp, *pyast.Call, *pyast.Starred, *pyast.Opaque:
		return "", false
	}
	return "", false
}

func printElts(elts []pyast.Expr) string {
	parts := make([]string, 0, len(elts))
	for _, elt := range elts {
		if s, ok := PrintValue(elt); ok {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

// PrintAnnotation renders a type expression: names, None, Ellipsis,
// subscripts such as Dict[str, int], unions written with | and dotted
// names. Any other shape is an *UnexpectedExprError.
func PrintAnnotation(expr pyast.Expr) (string, error) {
	switch e := expr.(type) {
	case *pyast.Name:
		return e.ID, nil

	case *pyast.Constant:
		switch e.Kind {
		case pyast.ConstEllipsis:
			return "...", nil
		case pyast.ConstNone:
			return "None", nil
		}
		return "", unexpectedExpr(e)

	case *pyast.Subscript:
		outer, err := PrintAnnotation(e.Value)
		if err != nil {
			return "", err
		}
		var inner string
		if tuple, ok := e.Slice.(*pyast.Tuple); ok {
			parts := make([]string, 0, len(tuple.Elts))
			for _, elt := range tuple.Elts {
				s, err := PrintAnnotation(elt)
				if err != nil {
					return "", err
				}
				parts = append(parts, s)
			}
			inner = strings.Join(parts, ", ")
		} else {
			inner, err = PrintAnnotation(e.Slice)
			if err != nil {
				return "", err
			}
		}
		return outer + "[" + inner + "]", nil

	case *pyast.BinOp:
		if e.Op != "|" {
			return "", unexpectedExpr(e)
		}
		left, err := PrintAnnotation(e.Left)
		if err != nil {
			return "", err
		}
		right, err := PrintAnnotation(e.Right)
		if err != nil {
			return "", err
		}
		return left + " | " + right, nil

	case *pyast.Attribute:
		value, err := PrintAnnotation(e.Value)
		if err != nil {
			return "", err
		}
		return value + "." + e.Attr, nil

	case *pyast.Tuple, *pyast.List, *pyast.Set, *pyast.Dict, *pyast.UnaryOp,
		*pyast.Call, *pyast.Starred, *pyast.Opaque:
		return "", unexpectedExpr(e)
	}
	return "", unexpectedExpr(expr)
}

func unexpectedExpr(expr pyast.Expr) error {
	line := 0
	if expr != nil {
		line = expr.Pos()
	}
	return &UnexpectedExprError{Line: line, Kind: pyast.KindOf(expr)}
}
