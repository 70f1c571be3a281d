package featprobe

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// fakePython writes a shell script standing in for a Python interpreter.
// Modules listed in present import fine; "broken" fails during import;
// "silent" exits non-zero without output; anything else is not found.
func fakePython(t *testing.T, present ...string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake interpreter requires a POSIX shell")
	}

	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	b.WriteString("case \"$3\" in\n")
	for _, m := range present {
		fmt.Fprintf(&b, "  %s) exit 0 ;;\n", m)
	}
	b.WriteString("  broken) echo 'Traceback (most recent call last):' >&2; echo 'RuntimeError: initialization failed' >&2; exit 1 ;;\n")
	b.WriteString("  silent) exit 3 ;;\n")
	b.WriteString("esac\n")
	b.WriteString("echo 'Traceback (most recent call last):' >&2\n")
	b.WriteString("echo \"ModuleNotFoundError: No module named '$3'\" >&2\n")
	b.WriteString("exit 1\n")

	path := filepath.Join(t.TempDir(), "python")
	if err := os.WriteFile(path, []byte(b.String()), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewPythonModule_EmptyName(t *testing.T) {
	for _, name := range []string{"", "   "} {
		m, err := NewPythonModule(name)
		if !errors.Is(err, ErrEmptyName) {
			t.Errorf("NewPythonModule(%q) error = %v, want ErrEmptyName", name, err)
		}
		if m != nil {
			t.Errorf("NewPythonModule(%q) = %v, want nil", name, m)
		}
	}
}

func TestNewExecutable_EmptyName(t *testing.T) {
	if _, err := NewExecutable(""); !errors.Is(err, ErrEmptyName) {
		t.Errorf("NewExecutable(\"\") error = %v, want ErrEmptyName", err)
	}
}

func TestNewPythonModule_Options(t *testing.T) {
	m, err := NewPythonModule(" docutils ",
		WithSpkg("docutils"),
		WithURL("https://docutils.sourceforge.io"),
		WithDescription("reStructuredText parser"),
		WithInterpreter("/opt/python/bin/python3"),
	)
	if err != nil {
		t.Fatalf("NewPythonModule() error = %v", err)
	}
	if m.Name() != "docutils" {
		t.Errorf("Name() = %q, want docutils", m.Name())
	}
	if m.Spkg() != "docutils" {
		t.Errorf("Spkg() = %q, want docutils", m.Spkg())
	}
	if m.Description() != "reStructuredText parser" {
		t.Errorf("Description() = %q", m.Description())
	}
	if m.Interpreter() != "/opt/python/bin/python3" {
		t.Errorf("Interpreter() = %q", m.Interpreter())
	}
	want := `install package "docutils" (see https://docutils.sourceforge.io)`
	if got := m.Resolution(); got != want {
		t.Errorf("Resolution() = %q, want %q", got, want)
	}
}

func TestPythonModule_Interpreter(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		t.Setenv(EnvPython, "")
		m, _ := NewPythonModule("x")
		if got := m.Interpreter(); got != "python3" {
			t.Errorf("Interpreter() = %q, want python3", got)
		}
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv(EnvPython, "/usr/local/bin/python3.12")
		m, _ := NewPythonModule("x")
		if got := m.Interpreter(); got != "/usr/local/bin/python3.12" {
			t.Errorf("Interpreter() = %q", got)
		}
	})

	t.Run("option wins over environment", func(t *testing.T) {
		t.Setenv(EnvPython, "/usr/local/bin/python3.12")
		m, _ := NewPythonModule("x", WithInterpreter("pypy3"))
		if got := m.Interpreter(); got != "pypy3" {
			t.Errorf("Interpreter() = %q, want pypy3", got)
		}
	})

	t.Run("UsingInterpreter copies", func(t *testing.T) {
		t.Setenv(EnvPython, "")
		m, _ := NewPythonModule("x", WithSpkg("x"))
		c := m.UsingInterpreter("pypy3")
		if c.Interpreter() != "pypy3" || c.Spkg() != "x" {
			t.Errorf("copy = %q/%q", c.Interpreter(), c.Spkg())
		}
		if m.Interpreter() != "python3" {
			t.Errorf("original mutated: %q", m.Interpreter())
		}
	})
}

func TestPythonModule_Check(t *testing.T) {
	python := fakePython(t, "docutils")

	tests := []struct {
		module      string
		wantPresent bool
		wantReason  string
	}{
		{"docutils", true, ""},
		{"nosuchmodule", false, "failed to import nosuchmodule: ModuleNotFoundError: No module named 'nosuchmodule'"},
		{"broken", false, "failed to import broken: RuntimeError: initialization failed"},
		{"silent", false, "failed to import silent: exit status 3"},
	}

	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			m, err := NewPythonModule(tt.module, WithSpkg("pkg-"+tt.module), WithInterpreter(python))
			if err != nil {
				t.Fatal(err)
			}
			res := m.Check()
			if res.Feature != tt.module {
				t.Errorf("Feature = %q, want %q", res.Feature, tt.module)
			}
			if res.Present != tt.wantPresent {
				t.Errorf("Present = %v, want %v", res.Present, tt.wantPresent)
			}
			if res.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", res.Reason, tt.wantReason)
			}
			if !tt.wantPresent && res.Resolution != `install package "pkg-`+tt.module+`"` {
				t.Errorf("Resolution = %q", res.Resolution)
			}
			if tt.wantPresent && res.Resolution != "" {
				t.Errorf("Resolution = %q, want empty for a present feature", res.Resolution)
			}
		})
	}
}

func TestPythonModule_Check_Idempotent(t *testing.T) {
	python := fakePython(t, "docutils")
	for _, name := range []string{"docutils", "nosuchmodule"} {
		m, _ := NewPythonModule(name, WithInterpreter(python))
		first, second := m.Check(), m.Check()
		if first != second {
			t.Errorf("Check() not idempotent for %s: %+v vs %+v", name, first, second)
		}
	}
}

func TestPythonModule_Check_MissingInterpreter(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "no-python-here")
	m, _ := NewPythonModule("sphinx", WithInterpreter(missing))

	res := m.Check()
	if res.Present {
		t.Fatal("Present = true with a missing interpreter")
	}
	if want := "python interpreter " + missing + " not found"; res.Reason != want {
		t.Errorf("Reason = %q, want %q", res.Reason, want)
	}
}

func TestPythonModule_Check_RealInterpreter(t *testing.T) {
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
	t.Setenv(EnvPython, "")

	present, _ := NewPythonModule("sys")
	if res := present.Check(); !res.Present {
		t.Errorf("sys not present: %s", res.Reason)
	}

	absent, _ := NewPythonModule("featprobe_absent_7f3c9a1e")
	res := absent.Check()
	if res.Present {
		t.Fatal("nonexistent module reported present")
	}
	if !strings.Contains(res.Reason, "featprobe_absent_7f3c9a1e") {
		t.Errorf("Reason %q does not name the module", res.Reason)
	}
}

func TestExecutable_Check(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires POSIX executables")
	}
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "sphinx-build"), []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", dir)

	t.Run("present", func(t *testing.T) {
		e, _ := NewExecutable("sphinx-build", WithSpkg("sphinx"))
		res := e.Check()
		if !res.Present {
			t.Errorf("Present = false, reason %q", res.Reason)
		}
	})

	t.Run("absent", func(t *testing.T) {
		e, _ := NewExecutable("dot", WithSpkg("graphviz"), WithURL("https://graphviz.org"))
		res := e.Check()
		if res.Present {
			t.Fatal("Present = true for a missing program")
		}
		if res.Reason != "executable dot not found on PATH" {
			t.Errorf("Reason = %q", res.Reason)
		}
		if res.Resolution != `install package "graphviz" (see https://graphviz.org)` {
			t.Errorf("Resolution = %q", res.Resolution)
		}
	})
}

func TestResolution(t *testing.T) {
	tests := []struct {
		name string
		opts options
		want string
	}{
		{"none", options{}, ""},
		{"spkg only", options{spkg: "sphinx"}, `install package "sphinx"`},
		{"url only", options{url: "https://example.org"}, "(see https://example.org)"},
		{"both", options{spkg: "sphinx", url: "https://example.org"}, `install package "sphinx" (see https://example.org)`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.opts.resolution(); got != tt.want {
				t.Errorf("resolution() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLastLine(t *testing.T) {
	fallback := errors.New("exit status 1")
	tests := []struct {
		stderr string
		want   string
	}{
		{"", "exit status 1"},
		{"  \n\n", "exit status 1"},
		{"ImportError: x\n", "ImportError: x"},
		{"Traceback:\n  File x\nValueError: bad\n\n", "ValueError: bad"},
	}
	for _, tt := range tests {
		if got := lastLine(tt.stderr, fallback); got != tt.want {
			t.Errorf("lastLine(%q) = %q, want %q", tt.stderr, got, tt.want)
		}
	}
}

func requirePython3(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
	t.Setenv(EnvPython, "")
}

func TestPythonModule_Check_IgnoresWorkingDirectory(t *testing.T) {
	requirePython3(t)

	dir := t.TempDir()
	const name = "featprobe_shadowed_4b1d"
	if err := os.Mkdir(filepath.Join(dir, name), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name+"_file.py"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	for _, module := range []string{name, name + "_file"} {
		m, _ := NewPythonModule(module)
		res := m.Check()
		if res.Present {
			t.Errorf("%s in the working directory reported present", module)
		}
		if want := "No module named '" + module + "'"; !strings.Contains(res.Reason, want) {
			t.Errorf("Reason = %q, want it to contain %q", res.Reason, want)
		}
	}
}

func TestPythonModule_Check_ImportTimeExit(t *testing.T) {
	requirePython3(t)

	lib := t.TempDir()
	modules := map[string]string{
		"featprobe_exits_zero": "import sys\nsys.exit(0)\n",
		"featprobe_interrupts": "raise KeyboardInterrupt\n",
		"featprobe_ok":         "VALUE = 1\n",
	}
	for name, src := range modules {
		if err := os.WriteFile(filepath.Join(lib, name+".py"), []byte(src), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	t.Setenv("PYTHONPATH", lib)

	tests := []struct {
		module      string
		wantPresent bool
		wantReason  string
	}{
		{"featprobe_exits_zero", false, "failed to import featprobe_exits_zero: SystemExit: 0"},
		{"featprobe_interrupts", false, "failed to import featprobe_interrupts: KeyboardInterrupt: "},
		{"featprobe_ok", true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			m, _ := NewPythonModule(tt.module)
			res := m.Check()
			if res.Present != tt.wantPresent {
				t.Errorf("Present = %v, want %v (reason %q)", res.Present, tt.wantPresent, res.Reason)
			}
			if tt.wantReason != "" && !strings.HasPrefix(res.Reason, strings.TrimSpace(tt.wantReason)) {
				t.Errorf("Reason = %q, want prefix %q", res.Reason, tt.wantReason)
			}
		})
	}
}
