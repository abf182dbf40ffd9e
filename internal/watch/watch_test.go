package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/touml/touml/internal/pipeline"
)

func newConverter(t *testing.T) *pipeline.Converter {
	t.Helper()
	conv, err := pipeline.NewConverter(pipeline.Options{})
	require.NoError(t, err)
	return conv
}

// docSink collects rendered documents.
type docSink struct {
	docs chan string
}

func newSink() *docSink {
	return &docSink{docs: make(chan string, 16)}
}

func (s *docSink) write(doc string) error {
	s.docs <- doc
	return nil
}

func (s *docSink) next(t *testing.T) string {
	t.Helper()
	select {
	case doc := <-s.docs:
		return doc
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a render")
		return ""
	}
}

// waitFor drains renders until one satisfies cond.
func (s *docSink) waitFor(t *testing.T, cond func(string) bool) string {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case doc := <-s.docs:
			if cond(doc) {
				return doc
			}
		case <-deadline:
			t.Fatal("timed out waiting for the expected render")
			return ""
		}
	}
}

func startWatcher(t *testing.T, cfg Config) (*Watcher, *docSink) {
	t.Helper()
	sink := newSink()
	cfg.Write = sink.write
	cfg.Debounce = 20 * time.Millisecond

	w, err := New(newConverter(t), cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("watcher did not stop")
		}
	})
	return w, sink
}

func TestNew_Validation(t *testing.T) {
	conv := newConverter(t)

	_, err := New(conv, Config{Write: func(string) error { return nil }})
	assert.Error(t, err, "root is required")

	_, err = New(conv, Config{Root: t.TempDir()})
	assert.Error(t, err, "write is required")

	w, err := New(conv, Config{Root: ".", Write: func(string) error { return nil }})
	require.NoError(t, err)
	assert.Equal(t, DefaultDebounce, w.config.Debounce)
	assert.True(t, filepath.IsAbs(w.config.Root))
}

func TestRender(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.py"), []byte("class A:\n    pass\n"), 0o644))

	sink := newSink()
	w, err := New(newConverter(t), Config{Root: root, Write: sink.write})
	require.NoError(t, err)

	require.NoError(t, w.Render(context.Background()))
	assert.Equal(t, "classDiagram\n\n    class A {\n    }\n", sink.next(t))

	st := w.Status()
	assert.Equal(t, 1, st.Renders)
	assert.Equal(t, 1, st.Files)
	assert.NoError(t, st.LastError)
	assert.False(t, st.Running)
}

func TestRender_SyntaxErrorKeepsPrevious(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.py"), []byte("class A(:\n"), 0o644))

	sink := newSink()
	w, err := New(newConverter(t), Config{Root: root, Write: sink.write})
	require.NoError(t, err)

	assert.Error(t, w.Render(context.Background()))
	assert.Empty(t, sink.docs)
	assert.Error(t, w.Status().LastError)
	assert.Zero(t, w.Status().Renders)
}

func TestRun_RerendersOnChange(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "models.py")
	require.NoError(t, os.WriteFile(path, []byte("class A:\n    pass\n"), 0o644))

	w, sink := startWatcher(t, Config{Root: root})

	first := sink.next(t)
	assert.Contains(t, first, "class A {")

	require.NoError(t, os.WriteFile(path, []byte("class A:\n    pass\n\nclass B(A):\n    pass\n"), 0o644))
	doc := sink.waitFor(t, func(doc string) bool { return strings.Contains(doc, "class B {") })
	assert.Contains(t, doc, "A <|-- B")

	assert.True(t, w.Status().Running)
	assert.GreaterOrEqual(t, w.Status().Renders, 2)
}

func TestRun_NewDirectory(t *testing.T) {
	root := t.TempDir()
	_, sink := startWatcher(t, Config{Root: root})

	assert.Equal(t, "classDiagram\n\n", sink.next(t))

	pkg := filepath.Join(root, "pkg")
	require.NoError(t, os.Mkdir(pkg, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pkg, "m.py"), []byte("class M:\n    pass\n"), 0o644))

	sink.waitFor(t, func(doc string) bool { return strings.Contains(doc, "class M {") })
}

func TestRun_IgnoresOtherFiles(t *testing.T) {
	root := t.TempDir()
	_, sink := startWatcher(t, Config{Root: root})
	sink.next(t)

	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("hi"), 0o644))

	select {
	case doc := <-sink.docs:
		t.Fatalf("unexpected render: %q", doc)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestRun_IdleTimeout(t *testing.T) {
	sink := newSink()
	w, err := New(newConverter(t), Config{
		Root:        t.TempDir(),
		Write:       sink.write,
		IdleTimeout: 50 * time.Millisecond,
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("idle timeout did not stop the watcher")
	}
	assert.False(t, w.Status().Running)
}

func TestStop(t *testing.T) {
	sink := newSink()
	w, err := New(newConverter(t), Config{Root: t.TempDir(), Write: sink.write})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()
	sink.next(t)

	w.Stop()
	w.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not end Run")
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.mmd")
	write := WriteFile(path)

	require.NoError(t, write("first"))
	require.NoError(t, write("second"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}
