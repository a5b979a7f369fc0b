// Package config loads bindcheck settings from bindcheck.yaml, the
// environment and command-line flags.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/unbound-force/bindcheck/internal/failure"
	"github.com/unbound-force/bindcheck/internal/variant"
)

// DefaultPath is the project config file looked up when no path is
// given.
const DefaultPath = "bindcheck.yaml"

// LatestAPIVersion is the newest binding API version the suite knows.
// It is the default version gate.
const LatestAPIVersion = 2

// Loader kinds.
const (
	LoaderBuiltin = "builtin"
	LoaderPlugin  = "plugin"
)

// Environment variables consulted by Load.
const (
	EnvRoot        = "BINDCHECK_ROOT"
	EnvBuildConfig = "BINDCHECK_BUILD_CONFIG"
	EnvVariants    = "BINDCHECK_VARIANTS"
	EnvAPIVersion  = "BINDCHECK_API_VERSION"
)

// Config is the merged bindcheck configuration.
type Config struct {
	Root         string       `yaml:"root"`
	BuildConfig  string       `yaml:"build_config"`
	Variants     []string     `yaml:"variants"`
	ArtifactExt  string       `yaml:"artifact_ext"`
	Loader       string       `yaml:"loader"`
	PluginSymbol string       `yaml:"plugin_symbol"`
	APIVersion   int          `yaml:"api_version"`
	Modules      ModuleFilter `yaml:"modules"`
	GC           GC           `yaml:"gc"`

	// Sources records, per setting, where its value came from:
	// "default", the config file path, "env:<NAME>" or "flag".
	Sources map[string]string `yaml:"-"`
}

// ModuleFilter selects test modules by glob.
type ModuleFilter struct {
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

// GC configures the runtime collector.
type GC struct {
	Rounds  int           `yaml:"rounds"`
	Timeout time.Duration `yaml:"timeout"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	c := Config{
		Root:         ".",
		BuildConfig:  "Release",
		Variants:     variant.DefaultVariants(),
		ArtifactExt:  variant.DefaultExt,
		Loader:       LoaderBuiltin,
		PluginSymbol: "Binding",
		APIVersion:   LatestAPIVersion,
		GC:           GC{Rounds: 2, Timeout: 10 * time.Second},
		Sources:      map[string]string{},
	}
	for _, k := range []string{"root", "build_config", "variants", "artifact_ext", "loader",
		"plugin_symbol", "api_version", "modules", "gc"} {
		c.Sources[k] = "default"
	}
	return c
}

// Flags holds command-line overrides. Zero values are unset.
type Flags struct {
	Root        string
	BuildConfig string
	Variants    []string
	Loader      string
	APIVersion  int
	Include     []string
	Exclude     []string
}

// Options controls Load.
type Options struct {
	// Path is the config file. Empty means DefaultPath under the
	// resolved root, which may be absent.
	Path string

	// Flags are applied last.
	Flags Flags

	// Lookup reads environment variables. Default: os.LookupEnv.
	Lookup func(string) (string, bool)
}

// Load merges, in increasing precedence, defaults, the config file,
// the environment and flags, then validates the result. Invalid input
// is a USAGE failure.
func Load(opts Options) (Config, error) {
	lookup := opts.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	cfg := Defaults()

	// The file location depends on the root, which flags and env can
	// move, so resolve root first.
	root := cfg.Root
	if v, ok := env(lookup, EnvRoot); ok {
		root = v
	}
	if opts.Flags.Root != "" {
		root = opts.Flags.Root
	}

	p, explicit := opts.Path, opts.Path != ""
	if !explicit {
		p = path.Join(root, DefaultPath)
	}
	if err := cfg.mergeFile(p, explicit); err != nil {
		return Config{}, err
	}
	if err := cfg.mergeEnv(lookup); err != nil {
		return Config{}, err
	}
	cfg.mergeFlags(opts.Flags)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(p string, explicit bool) error {
	raw, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return failure.Wrap(failure.Usage, "reading config", err)
	}
	file, err := Parse(raw)
	if err != nil {
		return failure.Wrap(failure.Usage, fmt.Sprintf("parsing %s", p), err)
	}

	set := func(key string, ok bool) {
		if ok {
			c.Sources[key] = p
		}
	}
	if file.Root != "" {
		c.Root = file.Root
		set("root", true)
	}
	if file.BuildConfig != "" {
		c.BuildConfig = file.BuildConfig
		set("build_config", true)
	}
	if len(file.Variants) > 0 {
		c.Variants = file.Variants
		set("variants", true)
	}
	if file.ArtifactExt != "" {
		c.ArtifactExt = file.ArtifactExt
		set("artifact_ext", true)
	}
	if file.Loader != "" {
		c.Loader = file.Loader
		set("loader", true)
	}
	if file.PluginSymbol != "" {
		c.PluginSymbol = file.PluginSymbol
		set("plugin_symbol", true)
	}
	if file.APIVersion != 0 {
		c.APIVersion = file.APIVersion
		set("api_version", true)
	}
	if len(file.Modules.Include)+len(file.Modules.Exclude) > 0 {
		c.Modules = file.Modules
		set("modules", true)
	}
	if file.GC.Rounds != 0 {
		c.GC.Rounds = file.GC.Rounds
		set("gc", true)
	}
	if file.GC.Timeout != 0 {
		c.GC.Timeout = file.GC.Timeout
		set("gc", true)
	}
	return nil
}

// Parse decodes a config document. Unknown keys are rejected.
func Parse(raw []byte) (Config, error) {
	var c Config
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) mergeEnv(lookup func(string) (string, bool)) error {
	if v, ok := env(lookup, EnvRoot); ok {
		c.Root = v
		c.Sources["root"] = "env:" + EnvRoot
	}
	if v, ok := env(lookup, EnvBuildConfig); ok {
		c.BuildConfig = v
		c.Sources["build_config"] = "env:" + EnvBuildConfig
	}
	if v, ok := env(lookup, EnvVariants); ok {
		if list := SplitList(v); len(list) > 0 {
			c.Variants = list
			c.Sources["variants"] = "env:" + EnvVariants
		}
	}
	if v, ok := env(lookup, EnvAPIVersion); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return failure.Wrap(failure.Usage, EnvAPIVersion+" must be an integer", err)
		}
		c.APIVersion = n
		c.Sources["api_version"] = "env:" + EnvAPIVersion
	}
	return nil
}

func (c *Config) mergeFlags(f Flags) {
	if f.Root != "" {
		c.Root = f.Root
		c.Sources["root"] = "flag"
	}
	if f.BuildConfig != "" {
		c.BuildConfig = f.BuildConfig
		c.Sources["build_config"] = "flag"
	}
	if len(f.Variants) > 0 {
		c.Variants = f.Variants
		c.Sources["variants"] = "flag"
	}
	if f.Loader != "" {
		c.Loader = f.Loader
		c.Sources["loader"] = "flag"
	}
	if f.APIVersion != 0 {
		c.APIVersion = f.APIVersion
		c.Sources["api_version"] = "flag"
	}
	if len(f.Include) > 0 {
		c.Modules.Include = f.Include
		c.Sources["modules"] = "flag"
	}
	if len(f.Exclude) > 0 {
		c.Modules.Exclude = f.Exclude
		c.Sources["modules"] = "flag"
	}
}

func env(lookup func(string) (string, bool), name string) (string, bool) {
	v, ok := lookup(name)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

// SplitList parses a comma-separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate reports the first invalid setting as a USAGE failure.
func (c Config) Validate() error {
	if c.BuildConfig == "" {
		return failure.New(failure.Usage, "build_config must not be empty")
	}
	if strings.ContainsAny(c.BuildConfig, `/\`) {
		return failure.Newf(failure.Usage, "build_config %q must be a single directory name", c.BuildConfig)
	}
	if len(c.Variants) == 0 {
		return failure.New(failure.Usage, "at least one variant is required")
	}
	seen := map[string]bool{}
	for _, v := range c.Variants {
		if v == "" || seen[v] {
			return failure.Newf(failure.Usage, "invalid or duplicate variant %q", v)
		}
		seen[v] = true
	}
	if c.ArtifactExt != "" && !strings.HasPrefix(c.ArtifactExt, ".") {
		return failure.Newf(failure.Usage, "artifact_ext %q must start with '.'", c.ArtifactExt)
	}
	switch c.Loader {
	case LoaderBuiltin, LoaderPlugin:
	default:
		return failure.Newf(failure.Usage, "loader must be %q or %q, got %q",
			LoaderBuiltin, LoaderPlugin, c.Loader)
	}
	if c.APIVersion < 1 {
		return failure.Newf(failure.Usage, "api_version must be at least 1, got %d", c.APIVersion)
	}
	for _, g := range append(append([]string{}, c.Modules.Include...), c.Modules.Exclude...) {
		if _, err := path.Match(g, ""); err != nil {
			return failure.Wrap(failure.Usage, fmt.Sprintf("module pattern %q", g), err)
		}
	}
	if c.GC.Rounds < 1 {
		return failure.Newf(failure.Usage, "gc.rounds must be at least 1, got %d", c.GC.Rounds)
	}
	if c.GC.Timeout < 0 {
		return failure.Newf(failure.Usage, "gc.timeout must not be negative, got %s", c.GC.Timeout)
	}
	return nil
}

// Layout returns the artifact layout described by c.
func (c Config) Layout() variant.Layout {
	return variant.Layout{
		Root:        c.Root,
		BuildConfig: c.BuildConfig,
		Variants:    append([]string(nil), c.Variants...),
		Ext:         c.ArtifactExt,
	}
}
