package parser

import (
	"context"
	"errors"
	"strings"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
)

const testPySource = `import os


class Greeter(Base):
    greeting: str = "hello"

    def __init__(self, name):
        self.name = name

    def greet(self) -> str:
        return f"{self.greeting}, {self.name}"


def main():
    Greeter("world").greet()
`

func TestNewParser(t *testing.T) {
	p := NewParser()
	if p == nil {
		t.Fatal("expected non-nil parser")
	}
	p.Close()
	// Close is idempotent.
	p.Close()
}

func TestParser_Parse(t *testing.T) {
	p := NewParser()
	defer p.Close()

	t.Run("parses valid Python source", func(t *testing.T) {
		result, err := p.Parse(context.Background(), []byte(testPySource))
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		defer result.Close()

		if result.Root == nil {
			t.Fatal("expected non-nil root node")
		}
		if result.Root.Type() != "module" {
			t.Errorf("expected root type 'module', got %q", result.Root.Type())
		}
	})

	t.Run("preserves source", func(t *testing.T) {
		source := []byte(testPySource)
		result, err := p.Parse(context.Background(), source)
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		defer result.Close()

		if string(result.Source) != string(source) {
			t.Error("source was not preserved")
		}
	})

	t.Run("empty source", func(t *testing.T) {
		result, err := p.Parse(context.Background(), nil)
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		defer result.Close()

		if result.HasErrors() {
			t.Error("empty source should not have errors")
		}
	})
}

func TestParseResult_WalkNodes(t *testing.T) {
	p := NewParser()
	defer p.Close()

	result, err := p.Parse(context.Background(), []byte(testPySource))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	defer result.Close()

	t.Run("visits all nodes", func(t *testing.T) {
		count := 0
		result.WalkNodes(func(node *sitter.Node) bool {
			count++
			return true
		})
		if count == 0 {
			t.Error("expected to visit some nodes")
		}
	})

	t.Run("stops on false return", func(t *testing.T) {
		count := 0
		limit := 5
		result.WalkNodes(func(node *sitter.Node) bool {
			count++
			return count < limit
		})
		if count != limit {
			t.Errorf("expected to visit %d nodes, visited %d", limit, count)
		}
	})
}

func TestParseResult_NodeText(t *testing.T) {
	p := NewParser()
	defer p.Close()

	result, err := p.Parse(context.Background(), []byte(testPySource))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	defer result.Close()

	var class *sitter.Node
	result.WalkNodes(func(node *sitter.Node) bool {
		if node.Type() == "class_definition" {
			class = node
			return false
		}
		return true
	})
	if class == nil {
		t.Fatal("no class definition found")
	}
	if got := result.NodeText(class.ChildByFieldName("name")); got != "Greeter" {
		t.Errorf("expected class name 'Greeter', got %q", got)
	}
	if text := result.NodeText(result.Root.NamedChild(0)); !strings.Contains(text, "import os") {
		t.Errorf("expected import text to contain 'import os', got %q", text)
	}
	if text := result.NodeText(nil); text != "" {
		t.Errorf("expected empty text for nil node, got %q", text)
	}
}

func TestParseResult_SyntaxError(t *testing.T) {
	p := NewParser()
	defer p.Close()

	t.Run("valid source has no errors", func(t *testing.T) {
		result, err := p.Parse(context.Background(), []byte(testPySource))
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		defer result.Close()

		if result.HasErrors() {
			t.Error("expected no parse errors for valid source")
		}
		if err := result.SyntaxError(); err != nil {
			t.Errorf("expected nil SyntaxError, got %v", err)
		}
	})

	t.Run("invalid source has errors", func(t *testing.T) {
		result, err := p.Parse(context.Background(), []byte("x = 1\nclass A(:\n    pass\n"))
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		defer result.Close()
		result.FilePath = "broken.py"

		if !result.HasErrors() {
			t.Fatal("expected parse errors for invalid source")
		}
		err = result.SyntaxError()
		if !errors.Is(err, ErrSyntax) {
			t.Fatalf("expected ErrSyntax, got %v", err)
		}
		var se *SyntaxError
		if !errors.As(err, &se) {
			t.Fatalf("expected *SyntaxError, got %T", err)
		}
		if se.File != "broken.py" {
			t.Errorf("expected file 'broken.py', got %q", se.File)
		}
		if se.Line < 2 {
			t.Errorf("expected error on line 2 or later, got %d", se.Line)
		}
	})
}

func TestSyntaxErrorFormat(t *testing.T) {
	t.Run("formats with file", func(t *testing.T) {
		err := &SyntaxError{Message: "invalid syntax", File: "main.py", Line: 10, Column: 5}
		expected := "main.py:10:5: invalid syntax"
		if got := err.Error(); got != expected {
			t.Errorf("expected %q, got %q", expected, got)
		}
	})

	t.Run("formats without file", func(t *testing.T) {
		err := &SyntaxError{Message: "invalid syntax", Line: 10, Column: 5}
		expected := "10:5: invalid syntax"
		if got := err.Error(); got != expected {
			t.Errorf("expected %q, got %q", expected, got)
		}
	})
}

func TestParseError(t *testing.T) {
	err := &ParseError{Message: "parsing cancelled", File: "a.py"}
	if got := err.Error(); got != "a.py: parsing cancelled" {
		t.Errorf("unexpected message %q", got)
	}
}
