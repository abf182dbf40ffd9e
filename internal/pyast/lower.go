package pyast

import (
	"fmt"
	"math/big"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/touml/touml/internal/parser"
)

// Tree-sitter node types referenced during lowering.
const (
	nodeModule             = "module"
	nodeComment            = "comment"
	nodeClassDefinition    = "class_definition"
	nodeFunctionDefinition = "function_definition"
	nodeDecoratedDef       = "decorated_definition"
	nodeExpressionStmt     = "expression_statement"
	nodeAssignment         = "assignment"
	nodeAugAssignment      = "augmented_assignment"
	nodeKeywordArgument    = "keyword_argument"
	nodeType               = "type"
)

// Lower converts a tree-sitter parse of a Python module into a Module.
// A tree containing syntax errors is rejected with a *parser.SyntaxError.
func Lower(result *parser.ParseResult) (*Module, error) {
	if result == nil || result.Root == nil {
		return nil, &parser.ParseError{Message: "no parse tree"}
	}
	if err := result.SyntaxError(); err != nil {
		return nil, err
	}
	if t := result.Root.Type(); t != nodeModule {
		return nil, &parser.ParseError{
			Message: fmt.Sprintf("expected module root, got %s", t),
			File:    result.FilePath,
		}
	}

	l := &lowerer{res: result}
	return &Module{Body: l.block(result.Root)}, nil
}

type lowerer struct {
	res *parser.ParseResult
}

func (l *lowerer) text(n *sitter.Node) string {
	return l.res.NodeText(n)
}

func line(n *sitter.Node) Node {
	return Node{Line: int(n.StartPoint().Row) + 1}
}

// named returns the named children of n, skipping comments.
func named(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	count := int(n.NamedChildCount())
	out := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		child := n.NamedChild(i)
		if child == nil || child.Type() == nodeComment {
			continue
		}
		out = append(out, child)
	}
	return out
}

// block lowers every statement directly under n.
func (l *lowerer) block(n *sitter.Node) []Stmt {
	var body []Stmt
	for _, child := range named(n) {
		body = append(body, l.stmt(child))
	}
	return body
}

func (l *lowerer) stmt(n *sitter.Node) Stmt {
	switch n.Type() {
	case nodeClassDefinition:
		return l.classDef(n)
	case nodeFunctionDefinition:
		return l.functionDef(n)
	case nodeDecoratedDef:
		if def := n.ChildByFieldName("definition"); def != nil {
			return l.stmt(def)
		}
	case nodeExpressionStmt:
		return l.expressionStmt(n)
	}
	return &OtherStmt{Node: line(n), Kind: n.Type()}
}

func (l *lowerer) classDef(n *sitter.Node) *ClassDef {
	cls := &ClassDef{
		Node: line(n),
		Name: l.text(n.ChildByFieldName("name")),
	}
	for _, arg := range named(n.ChildByFieldName("superclasses")) {
		if arg.Type() == nodeKeywordArgument {
			cls.Keywords = append(cls.Keywords, Keyword{
				Name:  l.text(arg.ChildByFieldName("name")),
				Value: l.expr(arg.ChildByFieldName("value")),
			})
			continue
		}
		cls.Bases = append(cls.Bases, l.expr(arg))
	}
	cls.Body = l.block(n.ChildByFieldName("body"))
	return cls
}

func (l *lowerer) functionDef(n *sitter.Node) Stmt {
	fn := FunctionDef{
		Node: line(n),
		Name: l.text(n.ChildByFieldName("name")),
		Args: l.parameters(n.ChildByFieldName("parameters")),
		Body: l.block(n.ChildByFieldName("body")),
	}
	if ret := n.ChildByFieldName("return_type"); ret != nil {
		fn.Returns = l.typeExpr(ret)
	}

	if first := n.Child(0); first != nil && first.Type() == "async" {
		return &AsyncFunctionDef{FunctionDef: fn}
	}
	return &fn
}

func (l *lowerer) expressionStmt(n *sitter.Node) Stmt {
	children := named(n)
	if len(children) != 1 {
		return &ExprStmt{Node: line(n), Value: &Tuple{Node: line(n), Elts: l.exprs(children)}}
	}

	child := children[0]
	switch child.Type() {
	case nodeAssignment:
		return l.assignment(child)
	case nodeAugAssignment:
		return &AugAssign{
			Node:   line(child),
			Target: l.target(child.ChildByFieldName("left")),
			Op:     l.text(child.ChildByFieldName("operator")),
			Value:  l.expr(child.ChildByFieldName("right")),
		}
	default:
		return &ExprStmt{Node: line(child), Value: l.expr(child)}
	}
}

// assignment handles plain, chained and annotated assignments. Tree-sitter
// nests chained assignments to the right: a = b = 1 is
// assignment(left: a, right: assignment(left: b, right: 1)).
func (l *lowerer) assignment(n *sitter.Node) Stmt {
	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")

	if typ := n.ChildByFieldName("type"); typ != nil {
		ann := &AnnAssign{
			Node:       line(n),
			Target:     l.target(left),
			Annotation: l.typeExpr(typ),
		}
		if right != nil {
			ann.Value = l.expr(right)
		}
		return ann
	}

	assign := &Assign{Node: line(n), Targets: []Expr{l.target(left)}}
	for right != nil && right.Type() == nodeAssignment && right.ChildByFieldName("type") == nil {
		assign.Targets = append(assign.Targets, l.target(right.ChildByFieldName("left")))
		right = right.ChildByFieldName("right")
	}
	if right != nil {
		assign.Value = l.expr(right)
	}
	return assign
}

func (l *lowerer) target(n *sitter.Node) Expr {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "pattern_list", "tuple_pattern":
		return &Tuple{Node: line(n), Elts: l.targets(named(n))}
	case "list_pattern":
		return &List{Node: line(n), Elts: l.targets(named(n))}
	case "list_splat_pattern":
		return &Starred{Node: line(n), Value: l.target(firstNamed(n))}
	}
	return l.expr(n)
}

func (l *lowerer) targets(nodes []*sitter.Node) []Expr {
	out := make([]Expr, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, l.target(n))
	}
	return out
}

// parameters lowers a function parameter list. Parameters before a "/" are
// positional-only; parameters after "*" or "*args" are keyword-only.
func (l *lowerer) parameters(n *sitter.Node) Arguments {
	var args Arguments
	kwOnly := false

	add := func(a Arg) {
		if kwOnly {
			args.KwOnly = append(args.KwOnly, a)
		} else {
			args.Args = append(args.Args, a)
		}
	}

	for _, p := range named(n) {
		switch p.Type() {
		case "identifier":
			add(Arg{Node: line(p), Name: l.text(p)})

		case "default_parameter":
			add(Arg{
				Node:    line(p),
				Name:    l.text(p.ChildByFieldName("name")),
				Default: l.expr(p.ChildByFieldName("value")),
			})

		case "typed_default_parameter":
			add(Arg{
				Node:       line(p),
				Name:       l.text(p.ChildByFieldName("name")),
				Annotation: l.typeExpr(p.ChildByFieldName("type")),
				Default:    l.expr(p.ChildByFieldName("value")),
			})

		case "typed_parameter":
			inner := firstNamed(p)
			annotation := l.typeExpr(p.ChildByFieldName("type"))
			if inner == nil {
				continue
			}
			switch inner.Type() {
			case "list_splat_pattern":
				args.Vararg = &Arg{Node: line(p), Name: l.text(firstNamed(inner)), Annotation: annotation}
				kwOnly = true
			case "dictionary_splat_pattern":
				args.Kwarg = &Arg{Node: line(p), Name: l.text(firstNamed(inner)), Annotation: annotation}
			default:
				add(Arg{Node: line(p), Name: l.text(inner), Annotation: annotation})
			}

		case "list_splat_pattern":
			args.Vararg = &Arg{Node: line(p), Name: l.text(firstNamed(p))}
			kwOnly = true

		case "dictionary_splat_pattern":
			args.Kwarg = &Arg{Node: line(p), Name: l.text(firstNamed(p))}

		case "keyword_separator":
			kwOnly = true

		case "positional_separator":
			args.PosOnly = append(args.PosOnly, args.Args...)
			args.Args = nil
		}
	}
	return args
}

func firstNamed(n *sitter.Node) *sitter.Node {
	if children := named(n); len(children) > 0 {
		return children[0]
	}
	return nil
}

func (l *lowerer) exprs(nodes []*sitter.Node) []Expr {
	out := make([]Expr, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, l.expr(n))
	}
	return out
}

func (l *lowerer) expr(n *sitter.Node) Expr {
	if n == nil {
		return nil
	}
	pos := line(n)

	switch n.Type() {
	case "identifier", "keyword_identifier":
		return &Name{Node: pos, ID: l.text(n)}

	case "attribute":
		return &Attribute{
			Node:  pos,
			Value: l.expr(n.ChildByFieldName("object")),
			Attr:  l.text(n.ChildByFieldName("attribute")),
		}

	case "integer":
		return intConstant(pos, l.text(n))

	case "float":
		text := l.text(n)
		if strings.HasSuffix(text, "j") || strings.HasSuffix(text, "J") {
			return &Constant{Node: pos, Kind: ConstComplex, Value: text}
		}
		return &Constant{Node: pos, Kind: ConstFloat, Value: text}

	case "string":
		return stringConstant(pos, l.text(n))

	case "concatenated_string":
		return l.concatenated(n)

	case "true":
		return &Constant{Node: pos, Kind: ConstBool, Value: "True"}
	case "false":
		return &Constant{Node: pos, Kind: ConstBool, Value: "False"}
	case "none":
		return &Constant{Node: pos, Kind: ConstNone, Value: "None"}
	case "ellipsis":
		return &Constant{Node: pos, Kind: ConstEllipsis, Value: "..."}

	case "tuple", "expression_list":
		return &Tuple{Node: pos, Elts: l.exprs(named(n))}
	case "list":
		return &List{Node: pos, Elts: l.exprs(named(n))}
	case "set":
		return &Set{Node: pos, Elts: l.exprs(named(n))}

	case "dictionary":
		d := &Dict{Node: pos}
		for _, item := range named(n) {
			switch item.Type() {
			case "pair":
				d.Keys = append(d.Keys, l.expr(item.ChildByFieldName("key")))
				d.Values = append(d.Values, l.expr(item.ChildByFieldName("value")))
			case "dictionary_splat":
				d.Keys = append(d.Keys, nil)
				d.Values = append(d.Values, l.expr(firstNamed(item)))
			}
		}
		return d

	case "parenthesized_expression":
		if inner := named(n); len(inner) == 1 {
			return l.expr(inner[0])
		}

	case "subscript":
		return &Subscript{
			Node:  pos,
			Value: l.expr(n.ChildByFieldName("value")),
			Slice: l.subscriptSlice(n),
		}

	case "binary_operator":
		return &BinOp{
			Node:  pos,
			Left:  l.expr(n.ChildByFieldName("left")),
			Op:    l.text(n.ChildByFieldName("operator")),
			Right: l.expr(n.ChildByFieldName("right")),
		}

	case "unary_operator":
		return &UnaryOp{
			Node:    pos,
			Op:      l.text(n.ChildByFieldName("operator")),
			Operand: l.expr(n.ChildByFieldName("argument")),
		}

	case "not_operator":
		return &UnaryOp{Node: pos, Op: "not", Operand: l.expr(n.ChildByFieldName("argument"))}

	case "call":
		return &Call{
			Node: pos,
			Func: l.expr(n.ChildByFieldName("function")),
			Args: l.exprs(named(n.ChildByFieldName("arguments"))),
		}

	case "list_splat", "dictionary_splat":
		return &Starred{Node: pos, Value: l.expr(firstNamed(n))}

	case nodeType, "generic_type", "union_type", "member_type":
		return l.typeExpr(n)
	}

	return &Opaque{Node: pos, Kind: n.Type(), Text: l.text(n)}
}

// subscriptSlice collects the index expressions of a subscript. Several
// comma-separated indices become one Tuple, as in value[a, b].
func (l *lowerer) subscriptSlice(n *sitter.Node) Expr {
	var indices []*sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.FieldNameForChild(i) == "subscript" {
			indices = append(indices, n.Child(i))
		}
	}
	switch len(indices) {
	case 0:
		return nil
	case 1:
		return l.expr(indices[0])
	default:
		return &Tuple{Node: line(indices[0]), Elts: l.exprs(indices)}
	}
}

// typeExpr lowers an annotation. Newer Python grammars emit dedicated type
// nodes (generic_type, union_type, member_type) instead of plain expressions;
// both shapes lower to the same variants.
func (l *lowerer) typeExpr(n *sitter.Node) Expr {
	if n == nil {
		return nil
	}
	pos := line(n)
	children := named(n)

	switch n.Type() {
	case nodeType:
		if len(children) == 1 {
			return l.typeExpr(children[0])
		}

	case "generic_type":
		if len(children) == 2 && children[1].Type() == "type_parameter" {
			params := named(children[1])
			var slice Expr
			if len(params) == 1 {
				slice = l.typeExpr(params[0])
			} else {
				elts := make([]Expr, 0, len(params))
				for _, p := range params {
					elts = append(elts, l.typeExpr(p))
				}
				slice = &Tuple{Node: line(children[1]), Elts: elts}
			}
			return &Subscript{Node: pos, Value: l.typeExpr(children[0]), Slice: slice}
		}

	case "union_type":
		if len(children) == 2 {
			return &BinOp{Node: pos, Left: l.typeExpr(children[0]), Op: "|", Right: l.typeExpr(children[1])}
		}

	case "member_type":
		if len(children) == 2 {
			return &Attribute{Node: pos, Value: l.typeExpr(children[0]), Attr: l.text(children[1])}
		}

	default:
		return l.expr(n)
	}

	return &Opaque{Node: pos, Kind: n.Type(), Text: l.text(n)}
}

func (l *lowerer) concatenated(n *sitter.Node) Expr {
	pos := line(n)
	kind := ConstStr
	var sb strings.Builder
	for i, part := range named(n) {
		c, ok := stringConstant(line(part), l.text(part)).(*Constant)
		if !ok {
			return &Opaque{Node: pos, Kind: "fstring", Text: l.text(n)}
		}
		if i == 0 {
			kind = c.Kind
		}
		sb.WriteString(c.Value)
	}
	return &Constant{Node: pos, Kind: kind, Value: sb.String()}
}

// intConstant normalises an integer literal to decimal digits. Literals with
// an imaginary suffix are complex.
func intConstant(pos Node, text string) Expr {
	if strings.HasSuffix(text, "j") || strings.HasSuffix(text, "J") {
		return &Constant{Node: pos, Kind: ConstComplex, Value: text}
	}
	if v, ok := new(big.Int).SetString(text, 0); ok {
		return &Constant{Node: pos, Kind: ConstInt, Value: v.String()}
	}
	return &Constant{Node: pos, Kind: ConstInt, Value: text}
}
