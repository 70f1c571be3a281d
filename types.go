package featprobe

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyName is returned when a feature is constructed without a name.
	ErrEmptyName = errors.New("feature name must not be empty")
	// ErrUnknownFeature is returned when a name is not in the registry.
	ErrUnknownFeature = errors.New("unknown feature")
)

// Feature is an optional capability whose presence can be checked.
type Feature interface {
	// Name is the stable identifier used as registry key.
	Name() string
	// Spkg is the installable package that provides the feature, if known.
	Spkg() string
	// Check resolves the feature once and reports the outcome.
	// It never fails: resolution errors become a negative result.
	Check() TestResult
}

// TestResult is the outcome of a single presence check.
type TestResult struct {
	// Feature is the name of the checked feature.
	Feature string `json:"feature" yaml:"feature"`
	// Present is true if the feature could be resolved.
	Present bool `json:"present" yaml:"present"`
	// Reason explains a negative result.
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
	// Resolution tells the operator how to make the feature available.
	Resolution string `json:"resolution,omitempty" yaml:"resolution,omitempty"`
}

func (r TestResult) String() string {
	if r.Present {
		return fmt.Sprintf("%s: present", r.Feature)
	}
	if r.Reason != "" {
		return fmt.Sprintf("%s: not present (%s)", r.Feature, r.Reason)
	}
	return fmt.Sprintf("%s: not present", r.Feature)
}

// FeatureError represents an error when a required feature is unavailable.
type FeatureError struct {
	Feature    string
	Reason     string
	Resolution string
}

func (e *FeatureError) Error() string {
	msg := fmt.Sprintf("feature %s is not present", e.Feature)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Resolution != "" {
		msg += "; " + e.Resolution
	}
	return msg
}

// Kind selects the resolution mechanism of a config-declared feature.
type Kind string

const (
	// KindPythonModule resolves by importing a Python module.
	KindPythonModule Kind = "python-module"
	// KindExecutable resolves by looking up a program on PATH.
	KindExecutable Kind = "executable"
)

// ParseKind maps a case-insensitive string to a [Kind].
// The empty string defaults to [KindPythonModule].
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(KindPythonModule):
		return KindPythonModule, nil
	case string(KindExecutable):
		return KindExecutable, nil
	default:
		return "", fmt.Errorf("invalid feature kind %q (want %s or %s)", s, KindPythonModule, KindExecutable)
	}
}

func (k Kind) String() string {
	return string(k)
}
