package featprobe

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Require checks the named features and returns a *[FeatureError] for the
// first absent one, or nil if all are present.
// Unregistered names yield an error wrapping [ErrUnknownFeature].
func (r *Registry) Require(names ...string) error {
	for _, name := range normalizeRequirements(names) {
		if err := r.require(name); err != nil {
			return err
		}
	}
	return nil
}

// RequireAll is like [Registry.Require] but checks every name and
// returns all failures combined in a *multierror.Error.
func (r *Registry) RequireAll(names ...string) error {
	var result *multierror.Error
	for _, name := range normalizeRequirements(names) {
		if err := r.require(name); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (r *Registry) require(name string) error {
	res, err := r.IsPresent(name)
	if err != nil {
		return err
	}
	if res.Present {
		return nil
	}
	return &FeatureError{
		Feature:    name,
		Reason:     res.Reason,
		Resolution: res.Resolution,
	}
}

// Require checks a single feature directly, bypassing any registry.
func Require(f Feature) error {
	if f == nil {
		return fmt.Errorf("require: %w", ErrUnknownFeature)
	}
	res := f.Check()
	if res.Present {
		return nil
	}
	return &FeatureError{
		Feature:    f.Name(),
		Reason:     res.Reason,
		Resolution: res.Resolution,
	}
}
