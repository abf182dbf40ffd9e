package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	if cfg.Root == "" {
		cfg.Root = t.TempDir()
	}
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return s
}

func TestGetToolSchemas(t *testing.T) {
	expectedTools := []string{"touml_convert", "touml_convert_path", "touml_classes"}

	for _, name := range expectedTools {
		schema, ok := toolSchemaRegistry[name]
		if !ok {
			t.Errorf("toolSchemaRegistry missing tool: %s", name)
			continue
		}
		if schema.Name != name {
			t.Errorf("schema name mismatch: got %q, want %q", schema.Name, name)
		}
		if schema.Description == "" {
			t.Errorf("tool %s has empty description", name)
		}
	}

	if len(toolSchemaRegistry) != len(expectedTools) {
		t.Errorf("toolSchemaRegistry has %d tools, want %d", len(toolSchemaRegistry), len(expectedTools))
	}

	s := newTestServer(t, Config{Tools: []string{"touml_convert"}})
	schemas := s.GetToolSchemas()
	if len(schemas) != 1 || schemas[0].Name != "touml_convert" {
		t.Errorf("expected only touml_convert schema, got %+v", schemas)
	}
}

func TestToolSchemaParameters(t *testing.T) {
	tests := []struct {
		tool          string
		requiredParam string
	}{
		{"touml_convert", "source"},
		{"touml_convert_path", "path"},
		{"touml_classes", "source"},
	}

	for _, tt := range tests {
		schema, ok := toolSchemaRegistry[tt.tool]
		if !ok {
			t.Fatalf("missing tool: %s", tt.tool)
		}

		required := 0
		for _, p := range schema.Parameters {
			if p.Required {
				required++
				if p.Name != tt.requiredParam {
					t.Errorf("tool %s param %s should not be required", tt.tool, p.Name)
				}
			}
		}
		if required != 1 {
			t.Errorf("tool %s has %d required params, want 1", tt.tool, required)
		}
	}
}

func TestAllToolsMatchesRegistry(t *testing.T) {
	registryNames := make([]string, 0, len(toolSchemaRegistry))
	for name := range toolSchemaRegistry {
		registryNames = append(registryNames, name)
	}
	sort.Strings(registryNames)

	allToolsCopy := make([]string, len(AllTools))
	copy(allToolsCopy, AllTools)
	sort.Strings(allToolsCopy)

	if strings.Join(registryNames, ",") != strings.Join(allToolsCopy, ",") {
		t.Errorf("schema registry %v does not match AllTools %v", registryNames, allToolsCopy)
	}
}

func TestNew_Errors(t *testing.T) {
	if _, err := New(Config{Root: t.TempDir(), Tools: []string{"touml_nope"}}); err == nil {
		t.Error("expected error for unknown tool")
	}
}

func TestListTools(t *testing.T) {
	s := newTestServer(t, Config{})
	got := strings.Join(s.ListTools(), ",")
	if got != "touml_classes,touml_convert,touml_convert_path" {
		t.Errorf("ListTools() = %s", got)
	}
}

func TestCallTool_Convert(t *testing.T) {
	s := newTestServer(t, Config{})
	ctx := context.Background()

	src := "class A:\n    x: int = 1\n\nclass B(A):\n    pass\n\nclass TestA(A):\n    pass\n"
	out, err := s.CallTool(ctx, "touml_convert", map[string]any{
		"source":        src,
		"exclude_names": "Test*, ",
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !strings.HasPrefix(out, "classDiagram\n\n") {
		t.Errorf("missing header: %q", out)
	}
	if !strings.Contains(out, "        + x int\n") {
		t.Errorf("missing field line: %q", out)
	}
	if !strings.Contains(out, "    A <|-- B\n") {
		t.Errorf("missing inheritance line: %q", out)
	}
	if strings.Contains(out, "TestA") {
		t.Errorf("excluded class rendered: %q", out)
	}

	if _, err := s.CallTool(ctx, "touml_convert", map[string]any{}); err == nil {
		t.Error("expected error for missing source")
	}
	if _, err := s.CallTool(ctx, "touml_convert", map[string]any{"source": "class (:\n"}); err == nil {
		t.Error("expected syntax error")
	}
	if _, err := s.CallTool(ctx, "touml_convert", map[string]any{"source": "x = 1", "exclude_bases": "[bad"}); err == nil {
		t.Error("expected pattern error")
	}
}

func TestCallTool_ConvertPath(t *testing.T) {
	root := t.TempDir()
	write := func(rel, content string) {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("pkg/a.py", "class A:\n    pass\n")
	write("pkg/tests/test_a.py", "class TestA:\n    pass\n")

	s := newTestServer(t, Config{Root: root})
	ctx := context.Background()

	out, err := s.CallTool(ctx, "touml_convert_path", map[string]any{
		"path":         "pkg",
		"exclude_dirs": "tests",
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if out != "classDiagram\n\n    class A {\n    }\n" {
		t.Errorf("unexpected document %q", out)
	}

	out, err = s.CallTool(ctx, "touml_convert_path", map[string]any{
		"path":   "pkg",
		"format": "json",
	})
	if err != nil {
		t.Fatalf("CallTool json: %v", err)
	}
	var res convertPathResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if res.Files != 2 || res.Classes != 2 {
		t.Errorf("files=%d classes=%d, want 2 and 2", res.Files, res.Classes)
	}

	if _, err := s.CallTool(ctx, "touml_convert_path", map[string]any{"path": "pkg", "format": "xml"}); err == nil {
		t.Error("expected error for unknown format")
	}
	if _, err := s.CallTool(ctx, "touml_convert_path", map[string]any{"path": "missing"}); err == nil {
		t.Error("expected error for missing path")
	}
}

func TestCallTool_Classes(t *testing.T) {
	s := newTestServer(t, Config{})

	src := "class Good(Base):\n    def run(self, n: int) -> bool:\n        pass\n\nclass Bad(make()):\n    pass\n"
	out, err := s.CallTool(context.Background(), "touml_classes", map[string]any{"source": src})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}

	var views []classView
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 classes, got %d", len(views))
	}

	good := views[0]
	if good.Name != "Good" || good.Error != "" || len(good.Parents) != 1 || good.Parents[0] != "Base" {
		t.Errorf("unexpected Good view: %+v", good)
	}
	if len(good.Methods) != 1 || good.Methods[0].Returns != "bool" || len(good.Methods[0].Args) != 2 {
		t.Errorf("unexpected methods: %+v", good.Methods)
	}

	bad := views[1]
	if bad.Name != "Bad" || bad.Line != 5 || bad.Error == "" {
		t.Errorf("unexpected Bad view: %+v", bad)
	}
}

func TestCallTool_Unregistered(t *testing.T) {
	s := newTestServer(t, Config{Tools: []string{"touml_convert"}})
	if _, err := s.CallTool(context.Background(), "touml_classes", map[string]any{"source": "x = 1"}); err == nil {
		t.Error("expected error for unregistered tool")
	}
}

func TestStringList(t *testing.T) {
	args := map[string]any{
		"csv":   " a, b ,,c ",
		"array": []any{"x", 1, " y "},
	}
	if got := strings.Join(stringList(args, "csv"), "|"); got != "a|b|c" {
		t.Errorf("csv = %q", got)
	}
	if got := strings.Join(stringList(args, "array"), "|"); got != "x|y" {
		t.Errorf("array = %q", got)
	}
	if got := stringList(args, "missing"); len(got) != 0 {
		t.Errorf("missing = %v", got)
	}
}

func TestToolSchemas(t *testing.T) {
	schemas := ToolSchemas()
	if len(schemas) != len(AllTools) {
		t.Fatalf("ToolSchemas() returned %d schemas, want %d", len(schemas), len(AllTools))
	}
	for i, schema := range schemas {
		if schema.Name != AllTools[i] {
			t.Errorf("schema %d = %s, want %s", i, schema.Name, AllTools[i])
		}
	}
}
