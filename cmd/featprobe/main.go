package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"text/tabwriter"

	"github.com/leodido/featprobe"
	"github.com/leodido/structcli"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/thediveo/enumflag/v2"
	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"
)

// Build metadata injected via ldflags.
// Plain `go build` leaves them empty and the version command omits them.
var (
	version = ""
	commit  = ""
	date    = ""
)

// errCheckFailed signals that a required feature is absent.
// The failure has already been reported when it is returned.
var errCheckFailed = errors.New("requirements not satisfied")

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the CLI and returns the process exit code.
// Errors are printed to stderr, except errCheckFailed whose
// failures were already reported.
func execute(args []string, stdout, stderr io.Writer) int {
	defer klog.Flush()

	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		if !errors.Is(err, errCheckFailed) {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// app carries state shared by all subcommands.
type app struct {
	configPath string
	hide       []string
	stdout     io.Writer
	stderr     io.Writer
	registry   *featprobe.Registry
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "featprobe",
		Short: "Detect optional toolchain components",
		Long: `featprobe checks whether optional components, such as the Sphinx
documentation generator, are available in the current environment.

Use it to gate documentation builds and tests in CI or local builds.
Extra features can be declared in a config file (--config).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(c *cobra.Command, args []string) error {
			return a.load()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Config file declaring extra features (yaml, json, toml)")
	root.PersistentFlags().StringSliceVar(&a.hide, "hide", nil, "Features to report as absent without checking them")
	addKlogFlags(root)

	root.AddCommand(a.listCmd())
	root.AddCommand(a.probeCmd())
	root.AddCommand(a.checkCmd())
	root.AddCommand(a.versionCmd())

	return root
}

// addKlogFlags exposes klog flags (-v, --logtostderr, ...) on the root command.
func addKlogFlags(root *cobra.Command) {
	fs := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(fs)
	fs.VisitAll(func(gf *flag.Flag) {
		root.PersistentFlags().AddGoFlag(gf)
	})
}

func (a *app) load() error {
	cfg, err := featprobe.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	cfg.Hide = append(cfg.Hide, a.hide...)

	r, err := cfg.Registry()
	if err != nil {
		return fmt.Errorf("build registry: %w", err)
	}
	klog.V(2).Infof("registered features: %s", strings.Join(r.Names(), ", "))
	a.registry = r
	return nil
}

// ListOptions defines flags for the list subcommand.
type ListOptions struct {
	JSON bool `flag:"json" flagshort:"j" flagdescr:"Output in JSON format"`
}

func (o *ListOptions) Attach(c *cobra.Command) error {
	return structcli.Define(c, o)
}

type listEntry struct {
	Name       string `json:"name"`
	Spkg       string `json:"spkg,omitempty"`
	Resolution string `json:"resolution,omitempty"`
	Hidden     bool   `json:"hidden,omitempty"`
}

func (a *app) listCmd() *cobra.Command {
	opts := &ListOptions{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered features",
		PreRunE: func(c *cobra.Command, args []string) error {
			return structcli.Unmarshal(c, opts)
		},
		RunE: func(c *cobra.Command, args []string) error {
			entries := a.listEntries()
			if opts.JSON {
				return printJSON(a.stdout, entries)
			}

			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tPACKAGE\tHIDDEN")
			for _, e := range entries {
				spkg := e.Spkg
				if spkg == "" {
					spkg = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%v\n", e.Name, spkg, e.Hidden)
			}
			return tw.Flush()
		},
	}

	if err := opts.Attach(cmd); err != nil {
		panic(err)
	}
	return cmd
}

func (a *app) listEntries() []listEntry {
	features := a.registry.Features()
	entries := make([]listEntry, 0, len(features))
	for _, f := range features {
		e := listEntry{
			Name:   f.Name(),
			Spkg:   f.Spkg(),
			Hidden: a.registry.IsHidden(f.Name()),
		}
		if r, ok := f.(interface{ Resolution() string }); ok {
			e.Resolution = r.Resolution()
		}
		entries = append(entries, e)
	}
	return entries
}

// outputFormat selects how the probe subcommand renders its report.
type outputFormat enumflag.Flag

const (
	formatText outputFormat = iota
	formatJSON
	formatYAML
)

var formatIdentifiers = map[outputFormat][]string{
	formatText: {"text"},
	formatJSON: {"json"},
	formatYAML: {"yaml"},
}

// ProbeOptions defines flags for the probe subcommand.
type ProbeOptions struct {
	Format outputFormat `flag:"format" flagshort:"o" flagdescr:"Output format (text, json, yaml)" flagcustom:"true"`
}

func (o *ProbeOptions) Attach(c *cobra.Command) error {
	return structcli.Define(c, o)
}

func (o *ProbeOptions) DefineFormat(name, short, descr string, structField reflect.StructField, fieldValue reflect.Value) (pflag.Value, string) {
	fieldPtr := fieldValue.Addr().Interface().(*outputFormat)
	return enumflag.New(fieldPtr, "format", formatIdentifiers, enumflag.EnumCaseInsensitive), descr
}

func (o *ProbeOptions) DecodeFormat(input any) (any, error) {
	s, ok := input.(string)
	if !ok {
		return input, nil
	}
	return parseOutputFormat(s)
}

func parseOutputFormat(s string) (outputFormat, error) {
	var f outputFormat
	v := enumflag.New(&f, "format", formatIdentifiers, enumflag.EnumCaseInsensitive)
	if err := v.Set(strings.TrimSpace(s)); err != nil {
		return formatText, fmt.Errorf("unknown format: %q (available: text, json, yaml)", s)
	}
	return f, nil
}

func (a *app) probeCmd() *cobra.Command {
	opts := &ProbeOptions{}

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check every registered feature and display results",
		PreRunE: func(c *cobra.Command, args []string) error {
			return structcli.Unmarshal(c, opts)
		},
		RunE: func(c *cobra.Command, args []string) error {
			ctx := c.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			rep, err := a.registry.Report(ctx)
			if err != nil {
				return err
			}

			switch opts.Format {
			case formatJSON:
				return printJSON(a.stdout, rep)
			case formatYAML:
				enc := yaml.NewEncoder(a.stdout)
				enc.SetIndent(2)
				if err := enc.Encode(rep); err != nil {
					return err
				}
				return enc.Close()
			default:
				return rep.WriteText(a.stdout, isTerminal(a.stdout))
			}
		},
	}

	if err := opts.Attach(cmd); err != nil {
		panic(err)
	}
	return cmd
}

// CheckOptions defines flags for the check subcommand.
type CheckOptions struct {
	Require featureRequirements `flag:"require" flagshort:"r" flagdescr:"Required features (comma-separated, see 'featprobe list')" flagrequired:"true" flagcustom:"true"`
	All     bool                `flag:"all" flagshort:"a" flagdescr:"Report every missing feature instead of the first one"`
	JSON    bool                `flag:"json" flagshort:"j" flagdescr:"Output in JSON format"`
}

func (o *CheckOptions) Attach(c *cobra.Command) error {
	return structcli.Define(c, o)
}

func (o *CheckOptions) DefineRequire(name, short, descr string, structField reflect.StructField, fieldValue reflect.Value) (pflag.Value, string) {
	fieldPtr := fieldValue.Addr().Interface().(*featureRequirements)
	*fieldPtr = nil
	return fieldPtr, descr
}

func (o *CheckOptions) DecodeRequire(input any) (any, error) {
	s, ok := input.(string)
	if !ok {
		return input, nil
	}
	return parseFeatureRequirements(s), nil
}

// completionRegistry returns the registry described by the --config flag
// of cmd, falling back to the built-in features when it cannot be loaded.
func completionRegistry(cmd *cobra.Command) *featprobe.Registry {
	path := ""
	if cmd != nil {
		if f := cmd.Flag("config"); f != nil {
			path = f.Value.String()
		}
	}
	cfg, err := featprobe.LoadConfig(path)
	if err != nil {
		return featprobe.Default()
	}
	r, err := cfg.Registry()
	if err != nil {
		return featprobe.Default()
	}
	return r
}

// CompleteRequire suggests registered feature names for --require,
// including features declared in the --config file.
// Comma-separated input completes the last element and skips names
// already listed.
func (o *CheckOptions) CompleteRequire(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	prefix := ""
	current := toComplete
	if i := strings.LastIndex(toComplete, ","); i >= 0 {
		prefix = toComplete[:i+1]
		current = toComplete[i+1:]
	}

	selected := map[string]struct{}{}
	for _, name := range parseFeatureRequirements(prefix) {
		selected[strings.ToLower(name)] = struct{}{}
	}

	var candidates []string
	for _, name := range completionRegistry(cmd).Names() {
		if _, ok := selected[strings.ToLower(name)]; ok {
			continue
		}
		if strings.HasPrefix(strings.ToLower(name), strings.ToLower(strings.TrimSpace(current))) {
			candidates = append(candidates, prefix+name)
		}
	}
	return candidates, cobra.ShellCompDirectiveNoFileComp | cobra.ShellCompDirectiveNoSpace
}

type checkFailure struct {
	Feature    string `json:"feature"`
	Reason     string `json:"reason,omitempty"`
	Resolution string `json:"resolution,omitempty"`
}

func (a *app) checkCmd() *cobra.Command {
	opts := &CheckOptions{}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check that required features are present",
		Long: `Check that all required features are present.
Exits with code 0 if all requirements are met, 1 if any are missing.`,
		PreRunE: func(c *cobra.Command, args []string) error {
			return structcli.Unmarshal(c, opts)
		},
		RunE: func(c *cobra.Command, args []string) error {
			if len(opts.Require) == 0 {
				return fmt.Errorf("no features specified")
			}
			return a.runCheck(opts)
		},
	}

	if err := opts.Attach(cmd); err != nil {
		panic(err)
	}
	return cmd
}

func (a *app) runCheck(opts *CheckOptions) error {
	var err error
	if opts.All {
		err = a.registry.RequireAll(opts.Require...)
	} else {
		err = a.registry.Require(opts.Require...)
	}
	if err == nil {
		if opts.JSON {
			return printJSON(a.stdout, map[string]any{"ok": true})
		}
		fmt.Fprintln(a.stdout, "OK: all requirements satisfied")
		return nil
	}

	failures, ok := collectFailures(err)
	if !ok {
		return err
	}
	if opts.JSON {
		if perr := printJSON(a.stdout, map[string]any{"ok": false, "missing": failures}); perr != nil {
			return perr
		}
		return errCheckFailed
	}
	for _, f := range failures {
		fmt.Fprintf(a.stderr, "FAIL: %s - %s\n", f.Feature, f.Reason)
		if f.Resolution != "" {
			fmt.Fprintf(a.stderr, "      %s\n", f.Resolution)
		}
	}
	return errCheckFailed
}

// collectFailures extracts every *FeatureError from err.
// It returns false if err holds anything else, e.g. an unknown feature.
func collectFailures(err error) ([]checkFailure, bool) {
	errs := []error{err}
	var multi interface{ WrappedErrors() []error }
	if errors.As(err, &multi) {
		errs = multi.WrappedErrors()
	}

	failures := make([]checkFailure, 0, len(errs))
	for _, e := range errs {
		var fe *featprobe.FeatureError
		if !errors.As(e, &fe) {
			return nil, false
		}
		failures = append(failures, checkFailure{
			Feature:    fe.Feature,
			Reason:     fe.Reason,
			Resolution: fe.Resolution,
		})
	}
	return failures, true
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show tool version and platform",
		// Overrides the root hook: version must work with a broken config.
		PersistentPreRunE: func(c *cobra.Command, args []string) error {
			return nil
		},
		RunE: func(c *cobra.Command, args []string) error {
			if version != "" {
				fmt.Fprintf(a.stdout, "featprobe %s", version)
				if commit != "" {
					fmt.Fprintf(a.stdout, " (%s)", commit)
				}
				if date != "" {
					fmt.Fprintf(a.stdout, " built %s", date)
				}
				fmt.Fprintln(a.stdout)
			} else {
				fmt.Fprintln(a.stdout, "featprobe (dev)")
			}
			fmt.Fprintf(a.stdout, "Platform: %s\n", featprobe.Platform())
			return nil
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

type featureRequirements []string

func (r *featureRequirements) String() string {
	return strings.Join(*r, ",")
}

func (r *featureRequirements) Set(input string) error {
	*r = append(*r, parseFeatureRequirements(input)...)
	return nil
}

func (r *featureRequirements) Type() string {
	return "features"
}

// parseFeatureRequirements splits a comma-separated list of feature names.
// Names are checked against the registry when the command runs, since
// config files may declare extra features.
func parseFeatureRequirements(input string) featureRequirements {
	parts := strings.Split(input, ",")
	names := make(featureRequirements, 0, len(parts))
	for _, part := range parts {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	return names
}
