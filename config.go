package featprobe

import (
	"fmt"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables overriding config keys.
const EnvPrefix = "FEATPROBE"

// FeatureSpec declares an extra feature in a config file.
type FeatureSpec struct {
	Name        string `mapstructure:"name"`
	Kind        string `mapstructure:"kind"`
	Spkg        string `mapstructure:"spkg"`
	URL         string `mapstructure:"url"`
	Description string `mapstructure:"description"`
}

// Config holds user configuration.
type Config struct {
	// Python overrides the interpreter of every Python module feature.
	Python string `mapstructure:"python"`
	// Hide lists features that must report absent.
	Hide []string `mapstructure:"hide"`
	// Features declares extra features next to the built-in ones.
	Features []FeatureSpec `mapstructure:"features"`
}

// LoadConfig reads configuration from path, if not empty, and from
// FEATPROBE_* environment variables. The file format follows the extension
// (yaml, json, toml).
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	for _, key := range []string{"python", "hide"} {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &c, nil
}

// Build turns a declaration into a feature.
func (s FeatureSpec) Build(python string) (Feature, error) {
	kind, err := ParseKind(s.Kind)
	if err != nil {
		return nil, fmt.Errorf("feature %q: %w", s.Name, err)
	}
	opts := []Option{
		WithSpkg(s.Spkg),
		WithURL(s.URL),
		WithDescription(s.Description),
	}

	switch kind {
	case KindExecutable:
		return NewExecutable(s.Name, opts...)
	default:
		if python != "" {
			opts = append(opts, WithInterpreter(python))
		}
		return NewPythonModule(s.Name, opts...)
	}
}

// Registry builds a registry with [ListFeatures] followed by the
// configured features, then hides the configured names.
func (c *Config) Registry() (*Registry, error) {
	builtin := ListFeatures()
	features := make([]Feature, 0, len(builtin)+len(c.Features))
	for _, f := range builtin {
		if m, ok := f.(*PythonModule); ok && c.Python != "" {
			f = m.UsingInterpreter(c.Python)
		}
		features = append(features, f)
	}
	for i, s := range c.Features {
		f, err := s.Build(c.Python)
		if err != nil {
			return nil, fmt.Errorf("features[%d]: %w", i, err)
		}
		features = append(features, f)
	}

	r, err := NewRegistry(features...)
	if err != nil {
		return nil, err
	}
	if err := r.Hide(normalizeRequirements(c.Hide)...); err != nil {
		return nil, err
	}
	return r, nil
}
