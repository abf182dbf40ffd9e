// Package pyast defines a small, closed Python syntax tree and lowers
// tree-sitter concrete syntax trees into it.
//
// Only the statement and expression shapes that class extraction cares about
// get their own variant. Everything else is kept as an Opaque expression or an
// OtherStmt so that consumers can still report what they found.
package pyast

// Node carries the source position shared by every variant.
type Node struct {
	// Line is the 1-based line the node starts on.
	Line int
}

// Pos returns the 1-based source line of the node.
func (n Node) Pos() int { return n.Line }

// Expr is one of the expression variants declared in this package.
type Expr interface {
	Pos() int
	exprNode()
}

// Stmt is one of the statement variants declared in this package.
type Stmt interface {
	Pos() int
	stmtNode()
}

// Module is a parsed source file.
type Module struct {
	Body []Stmt
}

// ConstKind identifies the kind of a literal constant.
type ConstKind int

const (
	ConstStr ConstKind = iota
	ConstBytes
	ConstInt
	ConstFloat
	ConstComplex
	ConstBool
	ConstNone
	ConstEllipsis
)

var constKindNames = [...]string{
	ConstStr:      "str",
	ConstBytes:    "bytes",
	ConstInt:      "int",
	ConstFloat:    "float",
	ConstComplex:  "complex",
	ConstBool:     "bool",
	ConstNone:     "None",
	ConstEllipsis: "Ellipsis",
}

func (k ConstKind) String() string {
	if int(k) < len(constKindNames) {
		return constKindNames[k]
	}
	return "unknown"
}

// Expression variants.
type (
	// Name is a bare identifier.
	Name struct {
		Node
		ID string
	}

	// Attribute is value.attr.
	Attribute struct {
		Node
		Value Expr
		Attr  string
	}

	// Constant is a literal. Value holds the decoded string contents for
	// ConstStr and ConstBytes, decimal digits for ConstInt, "True"/"False"
	// for ConstBool and the source text for the remaining kinds.
	Constant struct {
		Node
		Kind  ConstKind
		Value string
	}

	Tuple struct {
		Node
		Elts []Expr
	}

	List struct {
		Node
		Elts []Expr
	}

	Set struct {
		Node
		Elts []Expr
	}

	// Dict is a dict display. Keys and Values have equal length; a nil key
	// marks a **mapping splat whose operand is in Values.
	Dict struct {
		Node
		Keys   []Expr
		Values []Expr
	}

	// Subscript is value[slice]. Multiple comma-separated indices are
	// collected into a Tuple slice.
	Subscript struct {
		Node
		Value Expr
		Slice Expr
	}

	BinOp struct {
		Node
		Left  Expr
		Op    string
		Right Expr
	}

	UnaryOp struct {
		Node
		Op      string
		Operand Expr
	}

	Call struct {
		Node
		Func Expr
		Args []Expr
	}

	// Starred is *value inside a display or call.
	Starred struct {
		Node
		Value Expr
	}

	// Opaque is any expression shape without a dedicated variant
	// (lambda, comprehension, f-string, conditional, await and so on).
	Opaque struct {
		Node
		Kind string
		Text string
	}
)

func (*Name) exprNode()      {}
func (*Attribute) exprNode() {}
func (*Constant) exprNode()  {}
func (*Tuple) exprNode()     {}
func (*List) exprNode()      {}
func (*Set) exprNode()       {}
func (*Dict) exprNode()      {}
func (*Subscript) exprNode() {}
func (*BinOp) exprNode()     {}
func (*UnaryOp) exprNode()   {}
func (*Call) exprNode()      {}
func (*Starred) exprNode()   {}
func (*Opaque) exprNode()    {}

// Arg is one function parameter.
type Arg struct {
	Node
	Name       string
	Annotation Expr // nil when unannotated
	Default    Expr // nil when no default
}

// Arguments is a function parameter list split by parameter kind.
type Arguments struct {
	PosOnly []Arg
	Args    []Arg
	KwOnly  []Arg
	Vararg  *Arg
	Kwarg   *Arg
}

// FuncDef is the view shared by FunctionDef and AsyncFunctionDef.
type FuncDef interface {
	Stmt
	FuncName() string
	Arguments() *Arguments
	ReturnAnnotation() Expr
	Statements() []Stmt
}

// Statement variants.
type (
	ClassDef struct {
		Node
		Name     string
		Bases    []Expr
		Keywords []Keyword
		Body     []Stmt
	}

	FunctionDef struct {
		Node
		Name    string
		Args    Arguments
		Returns Expr // nil when there is no return annotation
		Body    []Stmt
	}

	AsyncFunctionDef struct {
		FunctionDef
	}

	// Assign is target = ... = value. Chained targets are listed left to
	// right.
	Assign struct {
		Node
		Targets []Expr
		Value   Expr
	}

	// AnnAssign is target: annotation [= value].
	AnnAssign struct {
		Node
		Target     Expr
		Annotation Expr
		Value      Expr // nil for a bare declaration
	}

	AugAssign struct {
		Node
		Target Expr
		Op     string
		Value  Expr
	}

	ExprStmt struct {
		Node
		Value Expr
	}

	// OtherStmt is any statement without a dedicated variant.
	OtherStmt struct {
		Node
		Kind string
	}
)

// Keyword is a name=value entry in a class header, such as metaclass=ABCMeta.
type Keyword struct {
	Name  string
	Value Expr
}

func (*ClassDef) stmtNode()    {}
func (*FunctionDef) stmtNode() {}
func (*Assign) stmtNode()      {}
func (*AnnAssign) stmtNode()   {}
func (*AugAssign) stmtNode()   {}
func (*ExprStmt) stmtNode()    {}
func (*OtherStmt) stmtNode()   {}

func (f *FunctionDef) FuncName() string       { return f.Name }
func (f *FunctionDef) Arguments() *Arguments  { return &f.Args }
func (f *FunctionDef) ReturnAnnotation() Expr { return f.Returns }
func (f *FunctionDef) Statements() []Stmt     { return f.Body }

var (
	_ FuncDef = (*FunctionDef)(nil)
	_ FuncDef = (*AsyncFunctionDef)(nil)
)

// KindOf returns a short, human-readable name for an expression variant,
// used in error messages.
func KindOf(e Expr) string {
	switch e := e.(type) {
	case nil:
		return "nothing"
	case *Name:
		return "Name"
	case *Attribute:
		return "Attribute"
	case *Constant:
		return "Constant(" + e.Kind.String() + ")"
	case *Tuple:
		return "Tuple"
	case *List:
		return "List"
	case *Set:
		return "Set"
	case *Dict:
		return "Dict"
	case *Subscript:
		return "Subscript"
	case *BinOp:
		return "BinOp(" + e.Op + ")"
	case *UnaryOp:
		return "UnaryOp(" + e.Op + ")"
	case *Call:
		return "Call"
	case *Starred:
		return "Starred"
	case *Opaque:
		return e.Kind
	default:
		return "unknown"
	}
}

// StmtKindOf returns a short name for a statement variant.
func StmtKindOf(s Stmt) string {
	switch s := s.(type) {
	case *ClassDef:
		return "ClassDef"
	case *AsyncFunctionDef:
		return "AsyncFunctionDef"
	case *FunctionDef:
		return "FunctionDef"
	case *Assign:
		return "Assign"
	case *AnnAssign:
		return "AnnAssign"
	case *AugAssign:
		return "AugAssign"
	case *ExprStmt:
		return "Expr"
	case *OtherStmt:
		return s.Kind
	default:
		return "unknown"
	}
}
