package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/unbound-force/bindcheck/internal/failure"
	"github.com/unbound-force/bindcheck/internal/taxonomy"
)

// setupProject creates <root>/build/Release/<variant>.so for each
// variant and returns root.
func setupProject(t *testing.T, variants ...string) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "build", "Release")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, v := range variants {
		if err := os.WriteFile(filepath.Join(dir, v+".so"), []byte("built"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func noEnv(string) (string, bool) { return "", false }

func decodeReport(t *testing.T, raw []byte) taxonomy.RunReport {
	t.Helper()
	var rpt taxonomy.RunReport
	if err := json.Unmarshal(raw, &rpt); err != nil {
		t.Fatalf("output is not valid JSON: %v\noutput:\n%s", err, raw)
	}
	return rpt
}

// ---------------------------------------------------------------------------
// runRun tests
// ---------------------------------------------------------------------------

func TestRunRun_InvalidFormat(t *testing.T) {
	err := runRun(context.Background(), runParams{
		format: "yaml",
		lookup: noEnv,
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
	})
	if !failure.Is(err, failure.Usage) {
		t.Fatalf("expected USAGE error, got %v", err)
	}
	if !strings.Contains(err.Error(), `invalid format "yaml"`) {
		t.Errorf("unexpected error message: %s", err)
	}
}

func TestRunRun_CleanRunPrintsMarker(t *testing.T) {
	root := setupProject(t, "binding", "binding_noexcept")
	var stdout, stderr bytes.Buffer
	err := runRun(context.Background(), runParams{
		cfg:    configFlags{root: root},
		format: "text",
		lookup: noEnv,
		stdout: &stdout,
		stderr: &stderr,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v\nstderr:\n%s", err, stderr.String())
	}
	if got := stdout.String(); got != "ok\n" {
		t.Errorf("stdout = %q, want %q", got, "ok\n")
	}
}

func TestRunRun_CleanRunLogsNothing(t *testing.T) {
	var logs bytes.Buffer
	logger.SetOutput(&logs)
	t.Cleanup(func() { logger.SetOutput(os.Stderr) })

	root := setupProject(t, "binding", "binding_noexcept")
	var stdout, stderr bytes.Buffer
	err := runRun(context.Background(), runParams{
		cfg:    configFlags{root: root},
		format: "text",
		lookup: noEnv,
		stdout: &stdout,
		stderr: &stderr,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stdout.String() != "ok\n" {
		t.Errorf("stdout = %q, want %q", stdout.String(), "ok\n")
	}
	if stderr.Len() != 0 || logs.Len() != 0 {
		t.Errorf("a clean run should only print the marker, got stderr %q and logs %q",
			stderr.String(), logs.String())
	}
}

func TestRunRun_JSONFormat(t *testing.T) {
	root := setupProject(t, "binding", "binding_noexcept")
	var stdout bytes.Buffer
	err := runRun(context.Background(), runParams{
		cfg:    configFlags{root: root},
		format: "json",
		lookup: noEnv,
		stdout: &stdout,
		stderr: &bytes.Buffer{},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rpt := decodeReport(t, stdout.Bytes())
	if rpt.ExitCode != 0 {
		t.Errorf("exit_code = %d, want 0", rpt.ExitCode)
	}
	if rpt.Metadata.RunID == "" {
		t.Error("expected a run id")
	}
	if rpt.Metadata.BuildConfig != "Release" {
		t.Errorf("build_config = %q, want Release", rpt.Metadata.BuildConfig)
	}
	// Five modules over two variants.
	if len(rpt.Modules) != 10 {
		t.Errorf("expected 10 module results, got %d", len(rpt.Modules))
	}
	if !rpt.Audit.Ran {
		t.Error("expected the audit to run")
	}
}

func TestRunRun_CanonicalJSON(t *testing.T) {
	root := setupProject(t, "binding", "binding_noexcept")
	var stdout bytes.Buffer
	err := runRun(context.Background(), runParams{
		cfg:       configFlags{root: root, include: []string{"error"}},
		format:    "json",
		canonical: true,
		lookup:    noEnv,
		stdout:    &stdout,
		stderr:    &bytes.Buffer{},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := strings.Count(stdout.String(), "\n"); n != 1 {
		t.Errorf("canonical output should be one line, got %d", n)
	}
}

func TestRunRun_ModuleFilterAndVersionGate(t *testing.T) {
	root := setupProject(t, "binding", "binding_noexcept")
	var stdout bytes.Buffer
	err := runRun(context.Background(), runParams{
		cfg: configFlags{
			root:       root,
			include:    []string{"a*"},
			apiVersion: 1,
		},
		format: "json",
		lookup: noEnv,
		stdout: &stdout,
		stderr: &bytes.Buffer{},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	statuses := map[string]taxonomy.Status{}
	for _, m := range decodeReport(t, stdout.Bytes()).Modules {
		statuses[m.Module] = m.Status
	}
	if statuses["arraybuffer"] != taxonomy.StatusPass {
		t.Errorf("arraybuffer = %q, want pass", statuses["arraybuffer"])
	}
	if statuses["asyncworker"] != taxonomy.StatusSkip {
		t.Errorf("asyncworker below its API version should skip, got %q", statuses["asyncworker"])
	}
	if statuses["function"] != taxonomy.StatusSkip {
		t.Errorf("function should be filtered out, got %q", statuses["function"])
	}
}

func TestRunRun_EnvSelectsBuildConfig(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "build", "Debug")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, v := range []string{"binding", "binding_noexcept"} {
		if err := os.WriteFile(filepath.Join(dir, v+".so"), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	env := map[string]string{"BINDCHECK_BUILD_CONFIG": "Debug", "BINDCHECK_ROOT": root}

	var stdout bytes.Buffer
	err := runRun(context.Background(), runParams{
		format: "text",
		lookup: func(k string) (string, bool) { v, ok := env[k]; return v, ok },
		stdout: &stdout,
		stderr: &bytes.Buffer{},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stdout.String() != "ok\n" {
		t.Errorf("stdout = %q", stdout.String())
	}
}

func TestRunRun_MissingBuildConfigIsSetupFailure(t *testing.T) {
	root := t.TempDir()
	var stdout bytes.Buffer
	err := runRun(context.Background(), runParams{
		cfg:    configFlags{root: root},
		format: "text",
		lookup: noEnv,
		stdout: &stdout,
		stderr: &bytes.Buffer{},
	})
	if !failure.Is(err, failure.SetupFailure) {
		t.Fatalf("expected SETUP_FAILURE, got %v", err)
	}
	if stdout.Len() != 0 {
		t.Errorf("nothing should reach stdout, got %q", stdout.String())
	}
	if got := exitCode(&bytes.Buffer{}, err); got != 2 {
		t.Errorf("exit code = %d, want 2", got)
	}
}

func TestRunRun_UnknownVariantFailsItsModules(t *testing.T) {
	root := setupProject(t, "binding", "binding_debug")
	var stdout, stderr bytes.Buffer
	err := runRun(context.Background(), runParams{
		cfg:    configFlags{root: root, variants: []string{"binding", "binding_debug"}, include: []string{"error"}},
		format: "text",
		lookup: noEnv,
		stdout: &stdout,
		stderr: &stderr,
	})

	var status exitStatus
	if !errors.As(err, &status) || int(status) != 2 {
		t.Fatalf("expected exit status 2, got %v", err)
	}
	if stdout.Len() != 0 {
		t.Errorf("a failed run must not print the success marker, got %q", stdout.String())
	}
	if !strings.Contains(stderr.String(), "FAIL error (binding_debug)") {
		t.Errorf("expected a failure line for binding_debug, got:\n%s", stderr.String())
	}
}

// ---------------------------------------------------------------------------
// runVariants tests
// ---------------------------------------------------------------------------

func TestRunVariants(t *testing.T) {
	root := setupProject(t, "binding", "binding_noexcept")
	var stdout bytes.Buffer
	if err := runVariants(variantsParams{
		cfg:    configFlags{root: root},
		lookup: noEnv,
		stdout: &stdout,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d:\n%s", len(lines), stdout.String())
	}
	if !strings.HasPrefix(lines[0], "binding\t") || !strings.HasSuffix(lines[0], "binding.so") {
		t.Errorf("unexpected first line %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "binding_noexcept\t") {
		t.Errorf("unexpected second line %q", lines[1])
	}
}

func TestRunVariants_MissingArtifact(t *testing.T) {
	root := setupProject(t, "binding")
	err := runVariants(variantsParams{
		cfg:    configFlags{root: root},
		lookup: noEnv,
		stdout: &bytes.Buffer{},
	})
	if !failure.Is(err, failure.SetupFailure) {
		t.Fatalf("expected SETUP_FAILURE, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// exitCode tests
// ---------------------------------------------------------------------------

func TestExitCode(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		want      int
		wantPrint bool
	}{
		{"report status", exitStatus(1), 1, false},
		{"usage", failure.New(failure.Usage, "bad flag"), 2, true},
		{"capability", failure.New(failure.MissingCapability, "no gc"), 2, true},
		{"plain", errors.New("boom"), 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if got := exitCode(&buf, tt.err); got != tt.want {
				t.Errorf("exitCode = %d, want %d", got, tt.want)
			}
			if printed := buf.Len() > 0; printed != tt.wantPrint {
				t.Errorf("printed = %v, want %v (%q)", printed, tt.wantPrint, buf.String())
			}
		})
	}
}

// ---------------------------------------------------------------------------
// command wiring tests
// ---------------------------------------------------------------------------

func TestSchemaCmd(t *testing.T) {
	cmd := newSchemaCmd()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &parsed); err != nil {
		t.Fatalf("schema is not valid JSON: %v", err)
	}
	if parsed["title"] != "bindcheck Run Report" {
		t.Errorf("unexpected title %v", parsed["title"])
	}
}

func TestInitCmd(t *testing.T) {
	dir := t.TempDir()
	cmd := newInitCmd()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{dir, "--build-config", "Debug"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "bindcheck.yaml"))
	if err != nil {
		t.Fatalf("bindcheck.yaml not written: %v", err)
	}
	if !strings.HasPrefix(string(raw), "# scaffolded by bindcheck ") {
		t.Errorf("missing version marker:\n%s", raw)
	}
	if !strings.Contains(string(raw), "build_config: Debug") {
		t.Errorf("expected the requested build config:\n%s", raw)
	}
}

// ---------------------------------------------------------------------------
// runWatch tests
// ---------------------------------------------------------------------------

// syncBuffer is a bytes.Buffer safe for the watcher goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRunWatch_RerunsAfterRebuild(t *testing.T) {
	root := setupProject(t, "binding", "binding_noexcept")
	artifact := filepath.Join(root, "build", "Release", "binding.so")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var stdout syncBuffer
	done := make(chan error, 1)
	go func() {
		done <- runWatch(ctx, watchParams{
			cfg:    configFlags{root: root, include: []string{"error"}},
			format: "text",
			lookup: noEnv,
			stdout: &stdout,
			stderr: &bytes.Buffer{},
			ready: func() {
				_ = os.WriteFile(artifact, []byte("rebuilt"), 0o644)
			},
		})
	}()

	deadline := time.After(10 * time.Second)
	for strings.Count(stdout.String(), "ok\n") < 2 {
		select {
		case <-deadline:
			t.Fatalf("expected a rerun after the rebuild, got %q", stdout.String())
		case <-time.After(20 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("runWatch returned %v", err)
	}
}
