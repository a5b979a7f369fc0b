package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	charmlog "github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/unbound-force/bindcheck/internal/binding"
	"github.com/unbound-force/bindcheck/internal/config"
	"github.com/unbound-force/bindcheck/internal/failure"
	"github.com/unbound-force/bindcheck/internal/gcsteps"
	"github.com/unbound-force/bindcheck/internal/loader"
	"github.com/unbound-force/bindcheck/internal/modules"
	"github.com/unbound-force/bindcheck/internal/report"
	"github.com/unbound-force/bindcheck/internal/scaffold"
	"github.com/unbound-force/bindcheck/internal/suite"
	"github.com/unbound-force/bindcheck/internal/taxonomy"
	"github.com/unbound-force/bindcheck/internal/variant"
	"github.com/unbound-force/bindcheck/internal/watch"
)

// logger is the application-wide structured logger (writes to stderr).
var logger = charmlog.NewWithOptions(os.Stderr, charmlog.Options{
	ReportTimestamp: false,
})

// Set by build flags.
var version = "dev"

// exitStatus carries a run's exit code out of a command whose report
// has already been written.
type exitStatus int

func (e exitStatus) Error() string {
	return fmt.Sprintf("exit status %d", int(e))
}

func main() {
	var verbose bool
	root := &cobra.Command{
		Use:   "bindcheck",
		Short: "bindcheck runs binding conformance tests across build variants",
		Long: `bindcheck loads every compiled variant of a native binding, runs
the conformance modules against each one, and reconciles call-count
expectations when the run exits.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				logger.SetLevel(charmlog.DebugLevel)
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return failure.Wrap(failure.Usage, cmd.CommandPath(), err)
	})

	root.AddCommand(newRunCmd())
	root.AddCommand(newVariantsCmd())
	root.AddCommand(newSchemaCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newWatchCmd())

	if err := root.Execute(); err != nil {
		os.Exit(exitCode(os.Stderr, err))
	}
}

// exitCode maps a command error to the process status, printing it
// unless the report already carried the diagnostics.
func exitCode(w io.Writer, err error) int {
	var status exitStatus
	if errors.As(err, &status) {
		return int(status)
	}
	fmt.Fprintln(w, err)
	return failure.ExitCode(err)
}

// configFlags are the settings shared by every command that loads
// bindcheck.yaml.
type configFlags struct {
	configPath  string
	root        string
	buildConfig string
	variants    []string
	loader      string
	apiVersion  int
	include     []string
	exclude     []string
}

func (f *configFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "",
		"path to bindcheck.yaml (default: <root>/bindcheck.yaml)")
	cmd.Flags().StringVar(&f.root, "root", "",
		"project directory containing build/")
	cmd.Flags().StringVar(&f.buildConfig, "build-config", "",
		"build configuration directory under build/ (default: Release)")
	cmd.Flags().StringSliceVar(&f.variants, "variants", nil,
		"variant names in dispatch order")
	cmd.Flags().StringVar(&f.loader, "loader", "",
		"binding loader: builtin or plugin")
	cmd.Flags().IntVar(&f.apiVersion, "api-version", 0,
		"binding API version gate")
	cmd.Flags().StringSliceVar(&f.include, "include", nil,
		"only run modules matching these globs")
	cmd.Flags().StringSliceVar(&f.exclude, "exclude", nil,
		"skip modules matching these globs")
}

func (f configFlags) load(lookup func(string) (string, bool)) (config.Config, error) {
	return config.Load(config.Options{
		Path: f.configPath,
		Flags: config.Flags{
			Root:        f.root,
			BuildConfig: f.buildConfig,
			Variants:    f.variants,
			Loader:      f.loader,
			APIVersion:  f.apiVersion,
			Include:     f.include,
			Exclude:     f.exclude,
		},
		Lookup: lookup,
	})
}

// runParams holds the parsed flags for the run command.
type runParams struct {
	cfg         configFlags
	format      string
	canonical   bool
	interactive bool
	lookup      func(string) (string, bool)
	stdout      io.Writer
	stderr      io.Writer
}

// runRun is the extracted, testable body of the run command.
func runRun(ctx context.Context, p runParams) error {
	if err := checkFormat(p.format); err != nil {
		return err
	}
	cfg, err := p.cfg.load(p.lookup)
	if err != nil {
		return err
	}

	rpt, err := runSuite(ctx, cfg)
	if err != nil {
		return err
	}

	if p.interactive {
		if err := runInteractiveReport(rpt); err != nil {
			return err
		}
	} else if err := writeReport(p.stdout, p.stderr, p.format, p.canonical, rpt); err != nil {
		return err
	}

	if rpt.ExitCode != 0 {
		return exitStatus(rpt.ExitCode)
	}
	return nil
}

func checkFormat(format string) error {
	switch format {
	case "text", "table", "json":
		return nil
	default:
		return failure.Newf(failure.Usage,
			"invalid format %q: must be 'text', 'table', or 'json'", format)
	}
}

// newSuite assembles the suite for cfg. Resolution failures are
// returned before anything runs.
func newSuite(cfg config.Config) (*suite.Suite, error) {
	artifacts, err := variant.Resolve(cfg.Layout())
	if err != nil {
		return nil, err
	}

	var l variant.Loader[binding.Binding]
	switch cfg.Loader {
	case config.LoaderPlugin:
		l = loader.Plugin[binding.Binding]{Symbol: cfg.PluginSymbol}
	default:
		l = loader.NewBuiltin(builtinFactories())
	}

	return &suite.Suite{
		Modules:    modules.All(),
		Artifacts:  artifacts,
		Loader:     l,
		Collector:  &gcsteps.RuntimeCollector{Rounds: cfg.GC.Rounds, Timeout: cfg.GC.Timeout},
		APIVersion: cfg.APIVersion,
		Filter: suite.Filter{
			Include: cfg.Modules.Include,
			Exclude: cfg.Modules.Exclude,
		},
		Logger: logger,
		Metadata: taxonomy.Metadata{
			RunID:            uuid.NewString(),
			BindcheckVersion: version,
			BuildConfig:      cfg.BuildConfig,
		},
	}, nil
}

func runSuite(ctx context.Context, cfg config.Config) (taxonomy.RunReport, error) {
	s, err := newSuite(cfg)
	if err != nil {
		return taxonomy.RunReport{}, err
	}
	logger.Debug("running suite", "build", cfg.BuildConfig, "variants", cfg.Variants, "api", cfg.APIVersion)
	rpt, err := s.Run(ctx)
	if err != nil {
		return rpt, err
	}
	logger.Debug("run complete", "modules", len(rpt.Modules), "exit", rpt.ExitCode)
	return rpt, nil
}

func builtinFactories() map[string]func() binding.Binding {
	out := map[string]func() binding.Binding{}
	for name, f := range binding.Factories() {
		out[name] = f
	}
	return out
}

// writeReport outputs the run report in the requested format.
func writeReport(stdout, stderr io.Writer, format string, canonical bool, rpt taxonomy.RunReport) error {
	switch format {
	case "json":
		return report.WriteJSON(stdout, rpt, canonical)
	case "table":
		return report.WriteTable(stdout, rpt)
	default:
		return report.WriteText(stdout, stderr, rpt)
	}
}

func newRunCmd() *cobra.Command {
	var p runParams

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the conformance modules against every variant",
		Long: `Resolve build/<config>/<variant> artifacts, run each selected
module against every variant, and audit call-count expectations.

Exits 0 when everything passed, 1 on a test failure or unmet
expectation, and 2 on a setup, capability or usage error.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p.lookup = os.LookupEnv
			p.stdout = cmd.OutOrStdout()
			p.stderr = cmd.ErrOrStderr()
			return runRun(cmd.Context(), p)
		},
	}

	p.cfg.register(cmd)
	cmd.Flags().StringVar(&p.format, "format", "text",
		"output format: text, table, or json")
	cmd.Flags().BoolVar(&p.canonical, "canonical", false,
		"emit RFC 8785 canonical JSON (with --format=json)")
	cmd.Flags().BoolVarP(&p.interactive, "interactive", "i", false,
		"launch interactive TUI for browsing the report")

	return cmd
}

// variantsParams holds the parsed flags for the variants command.
type variantsParams struct {
	cfg    configFlags
	lookup func(string) (string, bool)
	stdout io.Writer
}

// runVariants prints the resolved artifact for each variant.
func runVariants(p variantsParams) error {
	cfg, err := p.cfg.load(p.lookup)
	if err != nil {
		return err
	}
	artifacts, err := variant.Resolve(cfg.Layout())
	if err != nil {
		return err
	}
	for _, a := range artifacts {
		if _, err := fmt.Fprintf(p.stdout, "%s\t%s\n", a.Variant(), a.Path()); err != nil {
			return err
		}
	}
	return nil
}

func newVariantsCmd() *cobra.Command {
	var p variantsParams

	cmd := &cobra.Command{
		Use:   "variants",
		Short: "List the resolved variant artifacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p.lookup = os.LookupEnv
			p.stdout = cmd.OutOrStdout()
			return runVariants(p)
		},
	}
	p.cfg.register(cmd)
	return cmd
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema for bindcheck run reports",
		Long: `Print the JSON Schema (Draft 2020-12) that documents the
structure of bindcheck run --format=json output. Useful for
validating output or generating client types.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), report.Schema)
			return err
		},
	}
}

func newInitCmd() *cobra.Command {
	var (
		force bool
		tmpl  scaffold.Template
	)

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a starter bindcheck.yaml",
		Long: `Write a commented bindcheck.yaml into the target directory
(default: the current directory). Existing files are skipped
unless --force is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			_, err := scaffold.Run(scaffold.Options{
				TargetDir: dir,
				Force:     force,
				Version:   version,
				Template:  tmpl,
				Stdout:    cmd.OutOrStdout(),
			})
			return err
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing files")
	cmd.Flags().StringVar(&tmpl.BuildConfig, "build-config", "",
		"build configuration to write (default: Release)")
	cmd.Flags().StringSliceVar(&tmpl.Variants, "variants", nil,
		"variant names to write")
	cmd.Flags().IntVar(&tmpl.APIVersion, "api-version", 0,
		"API version gate to write")
	return cmd
}

// watchParams holds the parsed flags for the watch command.
type watchParams struct {
	cfg    configFlags
	format string
	lookup func(string) (string, bool)
	stdout io.Writer
	stderr io.Writer

	// ready, when set, is called once the build directory is watched.
	ready func()
}

// runWatch runs the suite once, then again after every rebuild of an
// artifact, until ctx is done. Failing runs are reported and watching
// continues.
func runWatch(ctx context.Context, p watchParams) error {
	if err := checkFormat(p.format); err != nil {
		return err
	}
	cfg, err := p.cfg.load(p.lookup)
	if err != nil {
		return err
	}

	rerun := func(ctx context.Context) {
		rpt, err := runSuite(ctx, cfg)
		if err != nil {
			logger.Error("run failed", "err", err)
			return
		}
		if err := writeReport(p.stdout, p.stderr, p.format, false, rpt); err != nil {
			logger.Error("writing report", "err", err)
		}
	}
	rerun(ctx)

	w := watch.New(watch.Options{
		Dir:    cfg.Layout().Dir(),
		Ext:    cfg.ArtifactExt,
		Logger: logger,
	})
	if p.ready != nil {
		go func() {
			select {
			case <-w.Ready():
				p.ready()
			case <-ctx.Done():
			}
		}()
	}
	return w.Run(ctx, func(ctx context.Context, changed []string) {
		logger.Info("artifacts rebuilt", "files", len(changed))
		rerun(ctx)
	})
}

func newWatchCmd() *cobra.Command {
	var p watchParams

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rerun the suite whenever a variant artifact is rebuilt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			p.lookup = os.LookupEnv
			p.stdout = cmd.OutOrStdout()
			p.stderr = cmd.ErrOrStderr()
			return runWatch(ctx, p)
		},
	}
	p.cfg.register(cmd)
	cmd.Flags().StringVar(&p.format, "format", "text",
		"output format: text, table, or json")
	return cmd
}
