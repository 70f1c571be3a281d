package featprobe

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// reasonHidden is the reason reported for a hidden feature.
const reasonHidden = "hidden"

// Registry collects features by name, in registration order.
//
// Results of [Registry.IsPresent] are cached per name: the environment is
// not expected to change while a build runs. Use [Registry.CheckNoCache]
// for fresh results.
type Registry struct {
	mu       sync.Mutex
	order    []string
	features map[string]Feature
	hidden   map[string]struct{}
	cache    map[string]TestResult
}

// NewRegistry creates a registry holding the given features.
func NewRegistry(features ...Feature) (*Registry, error) {
	r := &Registry{
		features: map[string]Feature{},
		hidden:   map[string]struct{}{},
		cache:    map[string]TestResult{},
	}
	for _, f := range features {
		if err := r.Register(f); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Default returns a registry holding [ListFeatures].
func Default() *Registry {
	r, err := NewRegistry(ListFeatures()...)
	if err != nil {
		panic(err)
	}
	return r
}

// Register adds a feature. Names must be unique.
func (r *Registry) Register(f Feature) error {
	if f == nil {
		return errors.New("nil feature")
	}
	name := f.Name()
	if name == "" {
		return ErrEmptyName
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.features[name]; ok {
		return fmt.Errorf("feature %q already registered", name)
	}
	r.features[name] = f
	r.order = append(r.order, name)
	return nil
}

// Lookup returns the feature registered under name.
func (r *Registry) Lookup(name string) (Feature, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.features[name]
	return f, ok
}

// Features returns all registered features in registration order.
func (r *Registry) Features() []Feature {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Feature, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.features[name])
	}
	return out
}

// Names returns all registered feature names in registration order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// Hide makes the named features report absent without being checked.
func (r *Registry) Hide(names ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range names {
		if _, ok := r.features[name]; !ok {
			return fmt.Errorf("hide %q: %w", name, ErrUnknownFeature)
		}
	}
	for _, name := range names {
		r.hidden[name] = struct{}{}
	}
	return nil
}

// Unhide reverts [Registry.Hide]. Unknown or visible names are ignored.
func (r *Registry) Unhide(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range names {
		delete(r.hidden, name)
	}
}

// IsHidden reports whether name is hidden.
func (r *Registry) IsHidden(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.hidden[name]
	return ok
}

// IsPresent checks the named feature, caching the first result.
// It returns an error wrapping [ErrUnknownFeature] for unregistered names;
// resolution failures are reported in the result, never as an error.
func (r *Registry) IsPresent(name string) (TestResult, error) {
	return r.check(name, true)
}

// CheckNoCache checks the named feature without reading or filling the cache.
func (r *Registry) CheckNoCache(name string) (TestResult, error) {
	return r.check(name, false)
}

// ResetCache clears cached results, forcing the next [Registry.IsPresent]
// call to check again.
func (r *Registry) ResetCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = map[string]TestResult{}
}

func (r *Registry) check(name string, cached bool) (TestResult, error) {
	r.mu.Lock()
	f, ok := r.features[name]
	if !ok {
		r.mu.Unlock()
		return TestResult{Feature: name}, fmt.Errorf("%w: %s", ErrUnknownFeature, name)
	}
	if _, hidden := r.hidden[name]; hidden {
		r.mu.Unlock()
		return TestResult{Feature: name, Present: false, Reason: reasonHidden}, nil
	}
	if cached {
		if res, ok := r.cache[name]; ok {
			r.mu.Unlock()
			return res, nil
		}
	}
	r.mu.Unlock()

	// Run the probe unlocked: resolution may spawn a process.
	res := f.Check()
	klog.V(4).Infof("checked feature %s: present=%v", name, res.Present)

	if cached {
		r.mu.Lock()
		if prev, ok := r.cache[name]; ok {
			res = prev
		} else {
			r.cache[name] = res
		}
		r.mu.Unlock()
	}
	return res, nil
}

// Report checks every registered feature concurrently.
// Results keep registration order.
func (r *Registry) Report(ctx context.Context) (*Report, error) {
	names := r.Names()
	results := make([]TestResult, len(names))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, name := range names {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := r.IsPresent(name)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("report features: %w", err)
	}
	return &Report{Results: results}, nil
}
