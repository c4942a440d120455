package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

func waitCount(t *testing.T, n *int32, want int32) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if atomic.LoadInt32(n) >= want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d callbacks, got %d", want, atomic.LoadInt32(n))
}

func TestWatcher_TriggersOnWebconfWrite(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "Tif")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	var calls int32
	w, err := New(zap.NewNop(), root, 20*time.Millisecond, func() { atomic.AddInt32(&calls, 1) })
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(sub, "Gebco.webconf"), []byte("Size 1 1 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitCount(t, &calls, 1)
}

func TestWatcher_HandleFiltersAndDebounces(t *testing.T) {
	var calls int32
	w, err := New(zap.NewNop(), t.TempDir(), 20*time.Millisecond, func() { atomic.AddInt32(&calls, 1) })
	if err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	w.handle(fsnotify.Event{Name: "/x/readme.txt", Op: fsnotify.Write})
	w.handle(fsnotify.Event{Name: "/x/a.webconf", Op: fsnotify.Chmod})
	time.Sleep(60 * time.Millisecond)
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatalf("irrelevant events must not trigger")
	}

	for i := 0; i < 5; i++ {
		w.handle(fsnotify.Event{Name: "/x/a.webconf", Op: fsnotify.Write})
	}
	w.handle(fsnotify.Event{Name: "/x/b.WEBCONF", Op: fsnotify.Remove})
	waitCount(t, &calls, 1)
	time.Sleep(60 * time.Millisecond)
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("burst should coalesce into one callback, got %d", got)
	}
}

func TestWatcher_StartFailsForMissingRoot(t *testing.T) {
	w, err := New(zap.NewNop(), filepath.Join(t.TempDir(), "missing"), 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	if err := w.Start(context.Background()); err == nil {
		t.Fatalf("expected error for missing root")
	}
}
