package extract

import (
	"iter"

	"github.com/touml/touml/internal/pyast"
)

// Scan yields one result per top-level class definition of mod, in source
// order. A failed class yields a *ClassError and scanning continues with the
// next class. Classes are extracted lazily as the sequence is consumed.
func Scan(mod *pyast.Module) iter.Seq2[*ClassInfo, error] {
	return func(yield func(*ClassInfo, error) bool) {
		if mod == nil {
			return
		}
		for _, stmt := range mod.Body {
			cls, ok := stmt.(*pyast.ClassDef)
			if !ok {
				continue
			}
			info, err := ExtractClass(cls)
			if err != nil {
				err = &ClassError{Class: cls.Name, Line: cls.Line, Err: err}
			}
			if !yield(info, err) {
				return
			}
		}
	}
}
