package exclude

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func mkdir(t *testing.T, parts ...string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(parts...), 0o755); err != nil {
		t.Fatal(err)
	}
}

func touch(t *testing.T, parts ...string) {
	t.Helper()
	path := filepath.Join(parts...)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDetectAutoExcludes_Empty(t *testing.T) {
	tmpDir := t.TempDir()
	touch(t, tmpDir, "app.py")

	result := DetectAutoExcludes(tmpDir)

	if len(result.Directories) != 0 {
		t.Errorf("expected 0 directories, got %d: %v", len(result.Directories), result.Directories)
	}
}

func TestDetectAutoExcludes_Venv(t *testing.T) {
	tmpDir := t.TempDir()
	touch(t, tmpDir, "venv", "pyvenv.cfg")
	touch(t, tmpDir, "venv", "lib", "python3.12", "site-packages", "six.py")

	result := DetectAutoExcludes(tmpDir)

	if !slices.Equal(result.Directories, []string{"venv"}) {
		t.Fatalf("expected [venv], got %v", result.Directories)
	}
	if result.Reasons["venv"] == "" {
		t.Error("expected reason for venv directory")
	}
}

func TestDetectAutoExcludes_BuildOutput(t *testing.T) {
	tmpDir := t.TempDir()
	touch(t, tmpDir, "pyproject.toml")
	mkdir(t, tmpDir, "build", "lib")
	mkdir(t, tmpDir, "dist")
	mkdir(t, tmpDir, ".tox")
	mkdir(t, tmpDir, "mypkg.egg-info")
	mkdir(t, tmpDir, "src")

	result := DetectAutoExcludes(tmpDir)

	for _, want := range []string{"build", "dist", ".tox", "mypkg.egg-info"} {
		if !slices.Contains(result.Directories, want) {
			t.Errorf("expected %q in directories, got %v", want, result.Directories)
		}
	}
	if slices.Contains(result.Directories, "src") {
		t.Error("src should not be excluded")
	}
}

func TestDetectAutoExcludes_BuildWithoutMarker(t *testing.T) {
	tmpDir := t.TempDir()
	mkdir(t, tmpDir, "build")
	touch(t, tmpDir, "build", "gen.py")

	result := DetectAutoExcludes(tmpDir)

	if len(result.Directories) != 0 {
		t.Errorf("expected 0 directories without a project marker, got %v", result.Directories)
	}
}

func TestDetectAutoExcludes_NestedProject(t *testing.T) {
	tmpDir := t.TempDir()
	touch(t, tmpDir, "packages", "core", "setup.py")
	mkdir(t, tmpDir, "packages", "core", "dist")

	result := DetectAutoExcludes(tmpDir)

	want := filepath.Join("packages", "core", "dist")
	if !slices.Equal(result.Directories, []string{want}) {
		t.Errorf("expected [%s], got %v", want, result.Directories)
	}
}

func TestDetectAutoExcludes_RustExtension(t *testing.T) {
	tmpDir := t.TempDir()
	touch(t, tmpDir, "Cargo.toml")
	touch(t, tmpDir, "pyproject.toml")
	mkdir(t, tmpDir, "target")

	result := DetectAutoExcludes(tmpDir)

	if !slices.Equal(result.Directories, []string{"target"}) {
		t.Errorf("expected [target], got %v", result.Directories)
	}
}

func TestAutoExcludeResult_Contains(t *testing.T) {
	r := &AutoExcludeResult{Directories: []string{"venv", filepath.Join("pkg", "build")}}

	tests := []struct {
		rel  string
		want bool
	}{
		{"venv", true},
		{"venv/lib/site.py", true},
		{"venvs", false},
		{"pkg/build/x.py", true},
		{"pkg/src/x.py", false},
	}
	for _, tt := range tests {
		if got := r.Contains(tt.rel); got != tt.want {
			t.Errorf("Contains(%q) = %v, want %v", tt.rel, got, tt.want)
		}
	}

	var none *AutoExcludeResult
	if none.Contains("venv") {
		t.Error("nil result should contain nothing")
	}
}
