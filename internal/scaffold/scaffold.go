// Package scaffold embeds the starter bindcheck configuration and
// writes it to a target project directory.
package scaffold

import (
	"bytes"
	"embed"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/unbound-force/bindcheck/internal/config"
	"github.com/unbound-force/bindcheck/internal/failure"
)

//go:embed assets/*
var assets embed.FS

const templateExt = ".tmpl"

// Template holds the values rendered into the scaffolded config.
// Zero fields take the config defaults.
type Template struct {
	BuildConfig string
	Variants    []string
	APIVersion  int
}

func (t Template) withDefaults() Template {
	d := config.Defaults()
	if t.BuildConfig == "" {
		t.BuildConfig = d.BuildConfig
	}
	if len(t.Variants) == 0 {
		t.Variants = d.Variants
	}
	if t.APIVersion == 0 {
		t.APIVersion = d.APIVersion
	}
	return t
}

// Options configures the scaffold operation.
type Options struct {
	// TargetDir is the root directory to scaffold into.
	// Defaults to the current working directory.
	TargetDir string

	// Force overwrites existing files when true.
	// When false, existing files are skipped.
	Force bool

	// Version is the bindcheck version string to embed in the
	// version marker comment. Defaults to "dev".
	Version string

	Template Template

	// Stdout is the writer for summary output.
	// Defaults to os.Stdout.
	Stdout io.Writer
}

// Result reports what the scaffold operation did.
type Result struct {
	Created     []string
	Skipped     []string
	Overwritten []string
}

// versionMarker returns the comment prepended to each scaffolded file.
func versionMarker(version string) string {
	if version == "" {
		version = "dev"
	}
	return fmt.Sprintf("# scaffolded by bindcheck %s\n", version)
}

// Run renders every embedded asset into the target directory, each
// prefixed with a version marker:
//
//	# scaffolded by bindcheck vX.Y.Z
//
// A rendered config that does not parse is a USAGE failure and nothing
// is written for it. Existing files are skipped unless opts.Force is
// set.
func Run(opts Options) (*Result, error) {
	if opts.TargetDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting working directory: %w", err)
		}
		opts.TargetDir = cwd
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	tmpl := opts.Template.withDefaults()

	buildDir := filepath.Join(opts.TargetDir, "build", tmpl.BuildConfig)
	if info, err := os.Stat(buildDir); err != nil || !info.IsDir() {
		fmt.Fprintf(opts.Stdout, "Warning: no build/%s directory found.\n", tmpl.BuildConfig)
		fmt.Fprintln(opts.Stdout, "Build the binding variants before running bindcheck.")
		fmt.Fprintln(opts.Stdout)
	}

	result := &Result{}
	marker := versionMarker(opts.Version)

	err := fs.WalkDir(assets, "assets", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}

		rel := strings.TrimSuffix(strings.TrimPrefix(path, "assets/"), templateExt)
		outPath := filepath.Join(opts.TargetDir, filepath.FromSlash(rel))

		_, statErr := os.Stat(outPath)
		exists := statErr == nil
		if exists && !opts.Force {
			result.Skipped = append(result.Skipped, rel)
			return nil
		}

		content, err := render(path, tmpl)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
			return fmt.Errorf("creating directory for %s: %w", rel, err)
		}
		if err := os.WriteFile(outPath, append([]byte(marker), content...), 0o644); err != nil {
			return fmt.Errorf("creating %s: %w", rel, err)
		}

		if exists {
			result.Overwritten = append(result.Overwritten, rel)
		} else {
			result.Created = append(result.Created, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	printSummary(opts.Stdout, result, tmpl)
	return result, nil
}

// Render returns the embedded asset rel (e.g. "bindcheck.yaml")
// rendered with t.
func Render(rel string, t Template) ([]byte, error) {
	return render("assets/"+rel+templateExt, t.withDefaults())
}

func render(path string, t Template) ([]byte, error) {
	raw, err := assets.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading embedded asset %s: %w", path, err)
	}
	tpl, err := template.New(filepath.Base(path)).Option("missingkey=error").Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing embedded asset %s: %w", path, err)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, t); err != nil {
		return nil, fmt.Errorf("rendering %s: %w", path, err)
	}
	if _, err := config.Parse(buf.Bytes()); err != nil {
		return nil, failure.Wrap(failure.Usage, "rendered config does not parse", err)
	}
	return buf.Bytes(), nil
}

func printSummary(w io.Writer, r *Result, t Template) {
	fmt.Fprintln(w, "bindcheck initialized:")
	for _, f := range r.Created {
		fmt.Fprintf(w, "  created: %s\n", f)
	}
	for _, f := range r.Skipped {
		fmt.Fprintf(w, "  skipped: %s (already exists)\n", f)
	}
	for _, f := range r.Overwritten {
		fmt.Fprintf(w, "  overwritten: %s\n", f)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Run `bindcheck run` to test %s against build/%s.\n",
		strings.Join(t.Variants, ", "), t.BuildConfig)
	if len(r.Skipped) > 0 {
		fmt.Fprintf(w, "%d file(s) skipped (use --force to overwrite).\n", len(r.Skipped))
	}
}
