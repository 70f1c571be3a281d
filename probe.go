package featprobe

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"k8s.io/klog/v2"
)

// EnvPython names the environment variable that overrides the default
// Python interpreter used by [PythonModule] probes.
const EnvPython = "FEATPROBE_PYTHON"

const defaultPython = "python3"

// importScript imports the module named by the first script argument.
// The empty sys.path entry that -c adds for the working directory is
// dropped, so local directories cannot shadow installed modules.
// Any BaseException raised while importing, SystemExit included, exits 1
// with the exception as the last stderr line.
const importScript = `import importlib, sys
sys.path[:] = [p for p in sys.path if p]
try:
    importlib.import_module(sys.argv[1])
except BaseException as e:
    sys.stderr.write("%s: %s\n" % (type(e).__name__, e))
    sys.exit(1)
`

// options holds the optional attributes of a feature.
type options struct {
	spkg        string
	url         string
	description string
	interpreter string
}

// Option configures optional feature attributes.
type Option func(*options)

// WithSpkg sets the installable package that provides the feature.
func WithSpkg(spkg string) Option {
	return func(o *options) {
		o.spkg = spkg
	}
}

// WithURL sets a homepage shown in the resolution hint.
func WithURL(url string) Option {
	return func(o *options) {
		o.url = url
	}
}

// WithDescription sets a short human-readable description.
func WithDescription(descr string) Option {
	return func(o *options) {
		o.description = descr
	}
}

// WithInterpreter sets the Python interpreter used to resolve the module.
// It may be a bare program name looked up on PATH or a path.
// Executable features ignore it.
func WithInterpreter(python string) Option {
	return func(o *options) {
		o.interpreter = python
	}
}

func newOptions(name string, opts []Option) (string, options, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", options{}, ErrEmptyName
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return name, o, nil
}

func (o options) resolution() string {
	if o.spkg == "" && o.url == "" {
		return ""
	}
	var b strings.Builder
	if o.spkg != "" {
		fmt.Fprintf(&b, "install package %q", o.spkg)
	}
	if o.url != "" {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "(see %s)", o.url)
	}
	return b.String()
}

// PythonModule is a feature that is present when a Python module can be imported.
type PythonModule struct {
	name string
	opts options
}

// NewPythonModule creates a probe for the named Python module.
// It returns [ErrEmptyName] if name is empty.
func NewPythonModule(name string, opts ...Option) (*PythonModule, error) {
	name, o, err := newOptions(name, opts)
	if err != nil {
		return nil, err
	}
	return &PythonModule{name: name, opts: o}, nil
}

func (m *PythonModule) Name() string        { return m.name }
func (m *PythonModule) Spkg() string        { return m.opts.spkg }
func (m *PythonModule) URL() string         { return m.opts.url }
func (m *PythonModule) Description() string { return m.opts.description }

// Resolution returns installation guidance, or "" if none is known.
func (m *PythonModule) Resolution() string { return m.opts.resolution() }

// Interpreter returns the Python interpreter the probe runs.
// Precedence: [WithInterpreter], then $FEATPROBE_PYTHON, then python3.
func (m *PythonModule) Interpreter() string {
	if m.opts.interpreter != "" {
		return m.opts.interpreter
	}
	if env := strings.TrimSpace(os.Getenv(EnvPython)); env != "" {
		return env
	}
	return defaultPython
}

// UsingInterpreter returns a copy of m that resolves with python.
func (m *PythonModule) UsingInterpreter(python string) *PythonModule {
	c := *m
	c.opts.interpreter = python
	return &c
}

// Check imports the module in a fresh interpreter process.
// Importing runs the module's top-level code.
func (m *PythonModule) Check() TestResult {
	python := m.Interpreter()
	path, err := exec.LookPath(python)
	if err != nil {
		klog.V(4).Infof("python interpreter %s not found: %v", python, err)
		return m.absent(fmt.Sprintf("python interpreter %s not found", python))
	}

	klog.V(4).Infof("importing python module %s with %s", m.name, path)
	var stderr bytes.Buffer
	cmd := exec.Command(path, "-c", importScript, m.name)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		reason := fmt.Sprintf("failed to import %s: %s", m.name, lastLine(stderr.String(), err))
		klog.V(4).Info(reason)
		return m.absent(reason)
	}
	return TestResult{Feature: m.name, Present: true}
}

func (m *PythonModule) absent(reason string) TestResult {
	return TestResult{
		Feature:    m.name,
		Present:    false,
		Reason:     reason,
		Resolution: m.Resolution(),
	}
}

// Executable is a feature that is present when a program is found on PATH.
type Executable struct {
	name string
	opts options
}

// NewExecutable creates a probe for the named program.
// It returns [ErrEmptyName] if name is empty.
func NewExecutable(name string, opts ...Option) (*Executable, error) {
	name, o, err := newOptions(name, opts)
	if err != nil {
		return nil, err
	}
	return &Executable{name: name, opts: o}, nil
}

func (e *Executable) Name() string        { return e.name }
func (e *Executable) Spkg() string        { return e.opts.spkg }
func (e *Executable) URL() string         { return e.opts.url }
func (e *Executable) Description() string { return e.opts.description }

// Resolution returns installation guidance, or "" if none is known.
func (e *Executable) Resolution() string { return e.opts.resolution() }

// Check looks the program up on PATH.
func (e *Executable) Check() TestResult {
	path, err := exec.LookPath(e.name)
	if err != nil {
		reason := fmt.Sprintf("executable %s not found on PATH", e.name)
		if !errors.Is(err, exec.ErrNotFound) {
			reason = fmt.Sprintf("executable %s: %v", e.name, err)
		}
		klog.V(4).Info(reason)
		return TestResult{
			Feature:    e.name,
			Present:    false,
			Reason:     reason,
			Resolution: e.Resolution(),
		}
	}
	klog.V(4).Infof("found executable %s at %s", e.name, path)
	return TestResult{Feature: e.name, Present: true}
}

// lastLine returns the last non-empty line of a traceback,
// falling back to the process error when stderr is empty.
func lastLine(stderr string, err error) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return err.Error()
}
