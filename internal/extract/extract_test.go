package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/touml/touml/internal/parser"
	"github.com/touml/touml/internal/pyast"
)

func parseModule(t *testing.T, src string) *pyast.Module {
	t.Helper()
	p := parser.NewParser()
	defer p.Close()

	result, err := p.Parse(context.Background(), []byte(src))
	require.NoError(t, err)
	defer result.Close()

	mod, err := pyast.Lower(result)
	require.NoError(t, err)
	return mod
}

func extractOne(t *testing.T, src string) (*ClassInfo, error) {
	t.Helper()
	mod := parseModule(t, src)
	require.NotEmpty(t, mod.Body)
	return ExtractStmt(mod.Body[0])
}

func mustExtract(t *testing.T, src string) *ClassInfo {
	t.Helper()
	info, err := extractOne(t, src)
	require.NoError(t, err)
	return info
}

func TestExtractClass_BasesAndAnnotatedField(t *testing.T) {
	info := mustExtract(t, "class C(B, A):\n    x: int = 1\n")

	assert.Equal(t, "C", info.Name)
	assert.Equal(t, 1, info.Line)
	assert.Equal(t, []string{"A", "B"}, info.Parents)
	assert.Equal(t, []Field{{Name: "x", Type: "int", Default: "1"}}, info.Fields.Slice())
	assert.Zero(t, info.Methods.Len())
}

func TestExtractClass_Parents(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{"duplicates collapse", "class C(A, A):\n    pass\n", []string{"A"}},
		{"module qualified", "class C(abc.ABC):\n    pass\n", []string{"abc.ABC"}},
		{"deep attribute keeps attr", "class C(a.b.Base):\n    pass\n", []string{"Base"}},
		{"keywords ignored", "class C(Base, metaclass=Meta):\n    pass\n", []string{"Base"}},
		{"no bases", "class C:\n    pass\n", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := mustExtract(t, tt.src)
			assert.Equal(t, tt.want, info.Parents)
		})
	}
}

func TestExtractClass_CallBaseFails(t *testing.T) {
	_, err := extractOne(t, "class C(make_base()):\n    pass\n")
	var nameErr *ClassNameParseError
	require.True(t, errors.As(err, &nameErr), "got %v", err)
	assert.Equal(t, "Call", nameErr.Kind)
}

func TestExtractClass_InitFields(t *testing.T) {
	info := mustExtract(t, `class M:
    def __init__(self, name, id) -> None:
        self.id = id
        self.name = name
`)
	assert.Equal(t, []Field{{Name: "id"}, {Name: "name"}}, info.Fields.Slice())

	swapped := mustExtract(t, `class M:
    def __init__(self, name, id) -> None:
        self.name = name
        self.id = id
`)
	assert.Equal(t, info.Fields.Slice(), swapped.Fields.Slice())
}

func TestExtractClass_InitScraping(t *testing.T) {
	info := mustExtract(t, `class M:
    count: int = 0

    def __init__(self, count):
        self.a = self.b = 1
        self.count = count
        self.typed: str = "x"
        other.skip = 1
        local = 2
        if count:
            self.nested = True

    def reset(self):
        self.later = 0
`)
	assert.Equal(t, []Field{
		{Name: "a"},
		{Name: "b"},
		{Name: "count"},
		{Name: "count", Type: "int", Default: "0"},
		{Name: "typed", Type: "str"},
	}, info.Fields.Slice())
}

func TestExtractClass_PlainAssignments(t *testing.T) {
	info := mustExtract(t, `class K:
    s = "hi"
    n = 0x10
    b = False
    z = None
    c = compute()
    a = b2 = 3
`)
	assert.Equal(t, []Field{
		{Name: "a", Type: "int", Default: "3"},
		{Name: "b", Type: "bool", Default: "False"},
		{Name: "c"},
		{Name: "n", Type: "int", Default: "16"},
		{Name: "s", Type: "str", Default: "hi"},
		{Name: "z", Type: "None"},
	}, info.Fields.Slice())
}

func TestExtractClass_FieldIdentity(t *testing.T) {
	info := mustExtract(t, `class K:
    x = 1
    x = 2
    x = 1
`)
	assert.Equal(t, []Field{
		{Name: "x", Type: "int", Default: "1"},
		{Name: "x", Type: "int", Default: "2"},
	}, info.Fields.Slice())
}

func TestExtractClass_Failures(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		target any
	}{
		{"tuple target", "class K:\n    a, b = 1, 2\n", new(*AssignParseError)},
		{"attribute target", "class K:\n    self.x = 1\n", new(*AssignParseError)},
		{"annotated attribute target", "class K:\n    self.x: int = 1\n", new(*AssignParseError)},
		{"float constant", "class K:\n    rate = 0.5\n", new(*AssignParseError)},
		{"bytes constant", "class K:\n    data = b'x'\n", new(*AssignParseError)},
		{"complex constant", "class K:\n    z = 2j\n", new(*AssignParseError)},
		{"ellipsis constant", "class K:\n    e = ...\n", new(*AssignParseError)},
		{"list annotation", "class K:\n    x: [int] = []\n", new(*UnexpectedExprError)},
		{"string annotation", "class K:\n    x: 'Foo'\n", new(*UnexpectedExprError)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := extractOne(t, tt.src)
			require.Error(t, err)
			assert.True(t, errors.As(err, tt.target), "got %T: %v", err, err)
		})
	}
}

func TestExtractClass_Methods(t *testing.T) {
	info := mustExtract(t, `class Svc:
    def run(self, a, /, b: int = 2, *args, c: str, **kw) -> bool:
        return True

    async def fetch(self, url: str) -> "Response":
        pass

    def odd(self, x: [int]):
        pass

    @staticmethod
    def make():
        pass
`)
	methods := info.Methods.Slice()
	require.Len(t, methods, 4)

	assert.Equal(t, Method{
		Name:    "fetch",
		Args:    []Field{{Name: "self"}, {Name: "url", Type: "str"}},
		Returns: "",
	}, methods[0], "string return annotations are dropped")

	assert.Equal(t, Method{Name: "make"}, methods[1])

	assert.Equal(t, Method{
		Name: "odd",
		Args: []Field{{Name: "self"}, {Name: "x"}},
	}, methods[2], "argument annotation errors are swallowed")

	assert.Equal(t, Method{
		Name: "run",
		Args: []Field{
			{Name: "self"},
			{Name: "a"},
			{Name: "c", Type: "str"},
			{Name: "b", Type: "int", Default: "2"},
		},
		Returns: "bool",
	}, methods[3], "positional-only, then keyword-only, then normal")
}

func TestExtractClass_AsyncInitNotScraped(t *testing.T) {
	info := mustExtract(t, `class K:
    async def __init__(self):
        self.z = 1
`)
	assert.Zero(t, info.Fields.Len())
	assert.Equal(t, []Method{{Name: "__init__", Args: []Field{{Name: "self"}}}}, info.Methods.Slice())
}

func TestExtractClass_IgnoredStatements(t *testing.T) {
	info := mustExtract(t, `class K:
    """Docs."""
    x += 1
    if True:
        y = 1
    class Inner:
        z = 1
    pass
`)
	assert.Zero(t, info.Fields.Len())
	assert.Zero(t, info.Methods.Len())
}

func TestExtractStmt_NotAClass(t *testing.T) {
	_, err := extractOne(t, "def f():\n    pass\n")
	var stmtErr *UnexpectedStmtError
	require.True(t, errors.As(err, &stmtErr))
	assert.Equal(t, "FunctionDef", stmtErr.Kind)
}

func TestScan(t *testing.T) {
	mod := parseModule(t, `import os

class Bad(factory()):
    pass

x = 1

class Good(Base):
    y: int

class AlsoBad:
    z: make()
`)

	var names []string
	var errs []error
	for info, err := range Scan(mod) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		names = append(names, info.Name)
	}

	assert.Equal(t, []string{"Good"}, names)
	require.Len(t, errs, 2)

	var classErr *ClassError
	require.True(t, errors.As(errs[0], &classErr))
	assert.Equal(t, "Bad", classErr.Class)
	assert.Equal(t, 3, classErr.Line)
	var nameErr *ClassNameParseError
	assert.True(t, errors.As(errs[0], &nameErr))

	require.True(t, errors.As(errs[1], &classErr))
	assert.Equal(t, "AlsoBad", classErr.Class)
	var exprErr *UnexpectedExprError
	assert.True(t, errors.As(errs[1], &exprErr))
}

func TestScan_StopsEarly(t *testing.T) {
	mod := parseModule(t, "class A:\n    pass\nclass B:\n    pass\n")
	count := 0
	for range Scan(mod) {
		count++
		break
	}
	assert.Equal(t, 1, count)
}

func TestScan_NilModule(t *testing.T) {
	for range Scan(nil) {
		t.Fatal("expected no results")
	}
}
