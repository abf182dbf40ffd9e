// Package extract reconstructs class-level facts from a Python syntax tree.
//
// The package has three entry points: PrintValue and PrintAnnotation render
// expressions back to source-like text, ExtractClass turns one class
// definition into a ClassInfo, and Scan walks a whole module.
package extract

import (
	"cmp"
	"iter"
	"slices"
	"strings"
)

// Field is a class attribute or a method parameter.
// Type and Default are empty when absent.
type Field struct {
	Name    string
	Type    string
	Default string
}

// IsPublic reports whether the name lacks a leading underscore.
func (f Field) IsPublic() bool {
	return !strings.HasPrefix(f.Name, "_")
}

// IsDunder reports whether the name both starts and ends with "__".
func (f Field) IsDunder() bool {
	return isDunder(f.Name)
}

// Method is a function defined directly in a class body. Args lists
// positional-only, keyword-only and normal parameters in that order.
type Method struct {
	Name    string
	Args    []Field
	Returns string
}

// IsPublic reports whether the name lacks a leading underscore.
func (m Method) IsPublic() bool {
	return !strings.HasPrefix(m.Name, "_")
}

// IsDunder reports whether the name both starts and ends with "__".
func (m Method) IsDunder() bool {
	return isDunder(m.Name)
}

func isDunder(name string) bool {
	return strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__")
}

// CompareField orders fields by name, then type, then default.
// An absent type or default sorts before any present one.
func CompareField(a, b Field) int {
	return cmp.Or(
		cmp.Compare(a.Name, b.Name),
		cmp.Compare(a.Type, b.Type),
		cmp.Compare(a.Default, b.Default),
	)
}

// CompareMethod orders methods by name, then arguments, then return type.
func CompareMethod(a, b Method) int {
	return cmp.Or(
		cmp.Compare(a.Name, b.Name),
		slices.CompareFunc(a.Args, b.Args, CompareField),
		cmp.Compare(a.Returns, b.Returns),
	)
}

// sortedSet is a slice kept sorted and free of duplicates under cmpFn.
type sortedSet[T any] struct {
	items []T
}

func (s *sortedSet[T]) insert(v T, cmpFn func(a, b T) int) bool {
	i, found := slices.BinarySearchFunc(s.items, v, cmpFn)
	if found {
		return false
	}
	s.items = slices.Insert(s.items, i, v)
	return true
}

// FieldSet is a set of fields in canonical order.
type FieldSet struct {
	set sortedSet[Field]
}

// NewFieldSet builds a set from fields in any order.
func NewFieldSet(fields ...Field) FieldSet {
	var s FieldSet
	for _, f := range fields {
		s.Insert(f)
	}
	return s
}

// Insert adds f unless an equal field is present. It reports whether f was added.
func (s *FieldSet) Insert(f Field) bool { return s.set.insert(f, CompareField) }

// Contains reports whether an equal field is present.
func (s FieldSet) Contains(f Field) bool {
	_, found := slices.BinarySearchFunc(s.set.items, f, CompareField)
	return found
}

// Len returns the number of fields.
func (s FieldSet) Len() int { return len(s.set.items) }

// All yields the fields in canonical order.
func (s FieldSet) All() iter.Seq[Field] { return slices.Values(s.set.items) }

// Slice returns a copy of the fields in canonical order.
func (s FieldSet) Slice() []Field { return slices.Clone(s.set.items) }

// MethodSet is a set of methods in canonical order.
type MethodSet struct {
	set sortedSet[Method]
}

// NewMethodSet builds a set from methods in any order.
func NewMethodSet(methods ...Method) MethodSet {
	var s MethodSet
	for _, m := range methods {
		s.Insert(m)
	}
	return s
}

// Insert adds m unless an equal method is present. It reports whether m was added.
func (s *MethodSet) Insert(m Method) bool { return s.set.insert(m, CompareMethod) }

// Contains reports whether an equal method is present.
func (s MethodSet) Contains(m Method) bool {
	_, found := slices.BinarySearchFunc(s.set.items, m, CompareMethod)
	return found
}

// Len returns the number of methods.
func (s MethodSet) Len() int { return len(s.set.items) }

// All yields the methods in canonical order.
func (s MethodSet) All() iter.Seq[Method] { return slices.Values(s.set.items) }

// Slice returns a copy of the methods in canonical order.
func (s MethodSet) Slice() []Method { return slices.Clone(s.set.items) }

// ClassInfo is everything extracted from one class definition.
//
// Parents is sorted and deduplicated, so declaration order (and with it the
// MRO) is not preserved.
type ClassInfo struct {
	Name    string
	Line    int
	Parents []string
	Fields  FieldSet
	Methods MethodSet
}

// AddParent inserts name into Parents, keeping it sorted and unique.
func (c *ClassInfo) AddParent(name string) {
	i, found := slices.BinarySearch(c.Parents, name)
	if !found {
		c.Parents = slices.Insert(c.Parents, i, name)
	}
}
