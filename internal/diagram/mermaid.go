// Package diagram renders extracted classes as Mermaid class diagrams.
package diagram

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/touml/touml/internal/extract"
)

// Header is the diagram-type line that opens every document.
const Header = "classDiagram"

// Options configures rendering.
type Options struct {
	EOL    string // line terminator
	Indent string // one level of indentation
}

// DefaultOptions returns LF line endings and four-space indentation.
func DefaultOptions() Options {
	return Options{EOL: "\n", Indent: "    "}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.EOL == "" {
		o.EOL = d.EOL
	}
	if o.Indent == "" {
		o.Indent = d.Indent
	}
	return o
}

// LineEnding resolves a line-ending name: "lf", "crlf" or "native" (CRLF on
// Windows, LF elsewhere). The empty name means "lf".
func LineEnding(name string) (string, error) {
	switch strings.ToLower(name) {
	case "", "lf":
		return "\n", nil
	case "crlf":
		return "\r\n", nil
	case "native":
		if runtime.GOOS == "windows" {
			return "\r\n", nil
		}
		return "\n", nil
	default:
		return "", fmt.Errorf("unknown line ending %q (want lf, crlf or native)", name)
	}
}

// MermaidClass is the display projection of a class: dunder fields and
// methods are removed, everything else is kept in canonical order.
type MermaidClass struct {
	Name    string
	Parents []string
	Fields  []extract.Field
	Methods []extract.Method
}

// ToMermaid projects c for display.
func ToMermaid(c *extract.ClassInfo) MermaidClass {
	mc := MermaidClass{Name: c.Name, Parents: c.Parents}
	for f := range c.Fields.All() {
		if !f.IsDunder() {
			mc.Fields = append(mc.Fields, f)
		}
	}
	for m := range c.Methods.All() {
		if !m.IsDunder() {
			mc.Methods = append(mc.Methods, m)
		}
	}
	return mc
}

// RenderClass renders the class block and inheritance lines for c.
func RenderClass(c *extract.ClassInfo, opts Options) string {
	return ToMermaid(c).Render(opts)
}

// Render returns the class block followed, after a blank line, by one
// inheritance declaration per parent.
func (mc MermaidClass) Render(opts Options) string {
	opts = opts.withDefaults()
	ind, eol := opts.Indent, opts.EOL

	var sb strings.Builder
	fmt.Fprintf(&sb, "%sclass %s {%s", ind, mc.Name, eol)
	for _, f := range mc.Fields {
		sb.WriteString(ind + ind + fieldLine(f) + eol)
	}
	for _, m := range mc.Methods {
		sb.WriteString(ind + ind + methodLine(m) + eol)
	}
	sb.WriteString(ind + "}" + eol)

	if len(mc.Parents) > 0 {
		sb.WriteString(eol)
	}
	for _, parent := range mc.Parents {
		fmt.Fprintf(&sb, "%s%s <|-- %s%s", ind, quoteParent(parent), mc.Name, eol)
	}
	return sb.String()
}

// Document assembles rendered class blocks into a complete diagram.
func Document(blocks []string, opts Options) string {
	opts = opts.withDefaults()
	return Header + opts.EOL + opts.EOL + strings.Join(blocks, opts.EOL+opts.EOL)
}

func accessMarker(public bool) string {
	if public {
		return "+"
	}
	return "-"
}

// fieldLine renders "+ name type", "+ name = default" or "+ name". A type
// hides the default.
func fieldLine(f extract.Field) string {
	line := accessMarker(f.IsPublic()) + " " + f.Name
	switch {
	case f.Type != "":
		line += " " + f.Type
	case f.Default != "":
		line += " = " + f.Default
	}
	return line
}

func methodLine(m extract.Method) string {
	args := make([]string, 0, len(m.Args))
	for _, a := range m.Args {
		if a.Type != "" {
			args = append(args, a.Type+" "+a.Name)
		} else {
			args = append(args, a.Name)
		}
	}
	line := accessMarker(m.IsPublic()) + " " + m.Name + "(" + strings.Join(args, ", ") + ")"
	if m.Returns != "" {
		line += " " + m.Returns
	}
	return line
}

// quoteParent wraps dotted names in backticks so Mermaid accepts them.
func quoteParent(name string) string {
	if strings.Contains(name, ".") {
		return "`" + name + "`"
	}
	return name
}
