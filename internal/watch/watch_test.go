package watch_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/unbound-force/bindcheck/internal/watch"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRun_DebouncesArtifactWrites(t *testing.T) {
	dir := t.TempDir()
	w := watch.New(watch.Options{Dir: dir, Ext: ".so", Debounce: 100 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	batches := make(chan []string, 4)
	var wg sync.WaitGroup
	wg.Add(1)
	var runErr error
	go func() {
		defer wg.Done()
		runErr = w.Run(ctx, func(_ context.Context, changed []string) {
			batches <- changed
		})
	}()

	select {
	case <-w.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never became ready")
	}

	for _, name := range []string{"binding.so", "binding_noexcept.so", "notes.txt", "binding.so"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case got := <-batches:
		want := []string{filepath.Join(dir, "binding.so"), filepath.Join(dir, "binding_noexcept.so")}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("batch mismatch (-want +got):\n%s", diff)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	cancel()
	wg.Wait()
	if runErr != nil {
		t.Errorf("Run returned %v", runErr)
	}
}

func TestRun_MissingDir(t *testing.T) {
	w := watch.New(watch.Options{Dir: filepath.Join(t.TempDir(), "absent")})
	err := w.Run(context.Background(), func(context.Context, []string) {})
	if err == nil {
		t.Fatal("expected an error for a missing directory")
	}
}
