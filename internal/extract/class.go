package extract

import (
	"github.com/touml/touml/internal/pyast"
)

const initMethod = "__init__"

// ExtractStmt extracts a class record from a top-level statement.
// Statements other than class definitions yield *UnexpectedStmtError.
func ExtractStmt(stmt pyast.Stmt) (*ClassInfo, error) {
	cls, ok := stmt.(*pyast.ClassDef)
	if !ok {
		return nil, &UnexpectedStmtError{Line: stmt.Pos(), Kind: pyast.StmtKindOf(stmt)}
	}
	return ExtractClass(cls)
}

// ExtractClass builds the record for one class definition. Any unprintable
// annotation, non-name assignment target or unsupported base class fails the
// whole class.
func ExtractClass(cls *pyast.ClassDef) (*ClassInfo, error) {
	info := &ClassInfo{Name: cls.Name, Line: cls.Line}

	for _, base := range cls.Bases {
		parent, err := parentName(base)
		if err != nil {
			return nil, err
		}
		info.AddParent(parent)
	}

	for _, stmt := range cls.Body {
		if err := info.addMember(stmt); err != nil {
			return nil, err
		}
	}
	return info, nil
}

// parentName resolves a base class expression. A dotted base keeps its
// qualifier only when the qualifier is a bare name.
func parentName(base pyast.Expr) (string, error) {
	switch b := base.(type) {
	case *pyast.Name:
		return b.ID, nil
	case *pyast.Attribute:
		if mod, ok := b.Value.(*pyast.Name); ok {
			return mod.ID + "." + b.Attr, nil
		}
		return b.Attr, nil
	}
	return "", &ClassNameParseError{Line: base.Pos(), Kind: pyast.KindOf(base)}
}

func (c *ClassInfo) addMember(stmt pyast.Stmt) error {
	switch s := stmt.(type) {
	case *pyast.AnnAssign:
		f, err := annAssignField(s)
		if err != nil {
			return err
		}
		c.Fields.Insert(f)

	case *pyast.Assign:
		f, err := assignField(s)
		if err != nil {
			return err
		}
		c.Fields.Insert(f)

	case *pyast.FunctionDef:
		c.addMethod(s)
		if s.Name == initMethod {
			for _, f := range initFields(s.Body) {
				c.Fields.Insert(f)
			}
		}

	case *pyast.AsyncFunctionDef:
		c.addMethod(s)

	case *pyast.ClassDef, *pyast.AugAssign, *pyast.ExprStmt, *pyast.OtherStmt:
		// Nested classes, docstrings and control flow are not members.
	}
	return nil
}

func (c *ClassInfo) addMethod(fn pyast.FuncDef) {
	c.Methods.Insert(methodOf(fn))
}

// annAssignField handles "name: T" and "name: T = value". The annotation is
// required; the default is best effort.
func annAssignField(s *pyast.AnnAssign) (Field, error) {
	name, ok := s.Target.(*pyast.Name)
	if !ok {
		return Field{}, &AssignParseError{Line: s.Line, Target: pyast.KindOf(s.Target)}
	}
	typ, err := PrintAnnotation(s.Annotation)
	if err != nil {
		return Field{}, err
	}
	f := Field{Name: name.ID, Type: typ}
	if s.Value != nil {
		f.Default, _ = PrintValue(s.Value)
	}
	return f, nil
}

// assignField handles "name = value". Str, int, bool and None constants
// contribute a type and default, any other constant fails the class, and
// non-constant values give a bare field. The first target of a chain names
// the field.
func assignField(s *pyast.Assign) (Field, error) {
	if len(s.Targets) == 0 {
		return Field{}, &AssignParseError{Line: s.Line, Target: "nothing"}
	}
	name, ok := s.Targets[0].(*pyast.Name)
	if !ok {
		return Field{}, &AssignParseError{Line: s.Line, Target: pyast.KindOf(s.Targets[0])}
	}

	f := Field{Name: name.ID}
	c, ok := s.Value.(*pyast.Constant)
	if !ok {
		return f, nil
	}
	switch c.Kind {
	case pyast.ConstStr:
		f.Type, f.Default = "str", c.Value
	case pyast.ConstInt:
		f.Type, f.Default = "int", c.Value
	case pyast.ConstBool:
		f.Type, f.Default = "bool", c.Value
	case pyast.ConstNone:
		f.Type = "None"
	case pyast.ConstBytes, pyast.ConstFloat, pyast.ConstComplex, pyast.ConstEllipsis:
		return Field{}, &AssignParseError{Line: s.Line, Target: name.ID + " = " + pyast.KindOf(c)}
	}
	return f, nil
}

// methodOf builds a Method from either kind of function definition.
// Argument annotations and the return annotation are best effort.
func methodOf(fn pyast.FuncDef) Method {
	args := fn.Arguments()
	m := Method{Name: fn.FuncName()}

	for _, group := range [][]pyast.Arg{args.PosOnly, args.KwOnly, args.Args} {
		for _, a := range group {
			m.Args = append(m.Args, argField(a))
		}
	}
	if ret := fn.ReturnAnnotation(); ret != nil {
		if s, err := PrintAnnotation(ret); err == nil {
			m.Returns = s
		}
	}
	return m
}

func argField(a pyast.Arg) Field {
	f := Field{Name: a.Name}
	if a.Annotation != nil {
		if s, err := PrintAnnotation(a.Annotation); err == nil {
			f.Type = s
		}
	}
	if a.Default != nil {
		f.Default, _ = PrintValue(a.Default)
	}
	return f
}

// initFields collects attributes assigned onto self directly in the body of
// __init__. Plain assignments contribute bare fields; annotated ones carry
// their annotation when it prints.
func initFields(body []pyast.Stmt) []Field {
	var fields []Field
	for _, stmt := range body {
		switch s := stmt.(type) {
		case *pyast.Assign:
			for _, target := range s.Targets {
				if attr, ok := selfAttr(target); ok {
					fields = append(fields, Field{Name: attr})
				}
			}
		case *pyast.AnnAssign:
			if attr, ok := selfAttr(s.Target); ok {
				f := Field{Name: attr}
				if typ, err := PrintAnnotation(s.Annotation); err == nil {
					f.Type = typ
				}
				fields = append(fields, f)
			}
		}
	}
	return fields
}

func selfAttr(target pyast.Expr) (string, bool) {
	attr, ok := target.(*pyast.Attribute)
	if !ok {
		return "", false
	}
	if name, ok := attr.Value.(*pyast.Name); ok && name.ID == "self" {
		return attr.Attr, true
	}
	return "", false
}
