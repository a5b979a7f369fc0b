// Package variant resolves the compiled variants of a binding and
// dispatches one test over each of them.
package variant

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/unbound-force/bindcheck/internal/failure"
)

// DefaultExt is the artifact file extension used when Layout.Ext is
// empty.
const DefaultExt = ".so"

// DefaultVariants returns the variant names used when Layout.Variants
// is empty: the panicking build and the error-returning build.
func DefaultVariants() []string {
	return []string{"binding", "binding_noexcept"}
}

// Layout locates variant artifacts on disk as
// <Root>/build/<BuildConfig>/<variant><Ext>.
type Layout struct {
	// Root is the project directory. Default: ".".
	Root string

	// BuildConfig is the build configuration directory, e.g. "Release".
	// It is never inferred.
	BuildConfig string

	// Variants lists variant names in dispatch order.
	Variants []string

	// Ext is the artifact extension including the dot.
	Ext string
}

// WithDefaults returns l with empty fields filled in. BuildConfig is
// left untouched.
func (l Layout) WithDefaults() Layout {
	if l.Root == "" {
		l.Root = "."
	}
	if len(l.Variants) == 0 {
		l.Variants = DefaultVariants()
	}
	if l.Ext == "" {
		l.Ext = DefaultExt
	}
	return l
}

// Dir returns the build configuration directory.
func (l Layout) Dir() string {
	return filepath.Join(l.Root, "build", l.BuildConfig)
}

// Path returns the artifact path for variant v.
func (l Layout) Path(v string) string {
	return filepath.Join(l.Dir(), v+l.Ext)
}

// Artifact is one resolved variant. Its identity is its absolute path.
type Artifact struct {
	variant string
	path    string
}

// NewArtifact returns the artifact for variant at path, made absolute.
func NewArtifact(variant, path string) (Artifact, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("resolving %s: %w", path, err)
	}
	return Artifact{variant: variant, path: abs}, nil
}

// Variant returns the variant name.
func (a Artifact) Variant() string { return a.variant }

// Path returns the absolute artifact path.
func (a Artifact) Path() string { return a.path }

func (a Artifact) String() string {
	return a.variant + " (" + a.path + ")"
}

// Resolve returns the artifacts declared by l in declared order. A
// missing build directory or artifact is a SETUP_FAILURE.
func Resolve(l Layout) ([]Artifact, error) {
	l = l.WithDefaults()
	if l.BuildConfig == "" {
		return nil, failure.New(failure.Usage, "build configuration is required")
	}

	seen := make(map[string]bool, len(l.Variants))
	for _, v := range l.Variants {
		if v == "" {
			return nil, failure.New(failure.Usage, "empty variant name")
		}
		if seen[v] {
			return nil, failure.Newf(failure.Usage, "duplicate variant %q", v)
		}
		seen[v] = true
	}

	dir := l.Dir()
	info, err := os.Stat(dir)
	if err != nil {
		return nil, failure.Wrap(failure.SetupFailure,
			fmt.Sprintf("build configuration %q not found", l.BuildConfig), err)
	}
	if !info.IsDir() {
		return nil, failure.Newf(failure.SetupFailure, "%s is not a directory", dir)
	}

	artifacts := make([]Artifact, 0, len(l.Variants))
	for _, v := range l.Variants {
		p := l.Path(v)
		fi, err := os.Stat(p)
		if err != nil {
			return nil, failure.Wrap(failure.SetupFailure,
				fmt.Sprintf("variant %q artifact missing", v), err)
		}
		if fi.IsDir() {
			return nil, failure.Newf(failure.SetupFailure, "variant %q artifact %s is a directory", v, p)
		}
		a, err := NewArtifact(v, p)
		if err != nil {
			return nil, failure.Wrap(failure.SetupFailure, "resolving artifact", err)
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, nil
}
