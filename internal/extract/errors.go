package extract

import (
	"fmt"
)

// UnexpectedStmtError is returned when a statement cannot be turned into a
// class record.
type UnexpectedStmtError struct {
	Line int
	Kind string
}

func (e *UnexpectedStmtError) Error() string {
	return fmt.Sprintf("line %d: found unexpected statement of type %s", e.Line, e.Kind)
}

// UnexpectedExprError is returned when an expression cannot be printed as an
// annotation.
type UnexpectedExprError struct {
	Line int
	Kind string
}

func (e *UnexpectedExprError) Error() string {
	return fmt.Sprintf("line %d: found unexpected expression of type %s", e.Line, e.Kind)
}

// AssignParseError is returned when an assignment target is not a simple name.
type AssignParseError struct {
	Line   int
	Target string
}

func (e *AssignParseError) Error() string {
	return fmt.Sprintf("line %d: unable to parse field from assignment to %s", e.Line, e.Target)
}

// ClassNameParseError is returned when a base class is neither a name nor an
// attribute access.
type ClassNameParseError struct {
	Line int
	Kind string
}

func (e *ClassNameParseError) Error() string {
	return fmt.Sprintf("line %d: unable to parse base class of type %s", e.Line, e.Kind)
}

// ClassError reports the class whose extraction failed.
type ClassError struct {
	Class string
	Line  int
	Err   error
}

func (e *ClassError) Error() string {
	return fmt.Sprintf("class %s (line %d): %v", e.Class, e.Line, e.Err)
}

// Unwrap returns the underlying error.
func (e *ClassError) Unwrap() error {
	return e.Err
}
