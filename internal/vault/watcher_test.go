package vault

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestWatch_NewFileTriggersRebuild(t *testing.T) {
	dir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var rebuilds atomic.Int64
	go Watch(ctx, dir, quietLogger(), func() { rebuilds.Add(1) })

	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(dir, "new.md"), []byte("# New"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rebuilds.Load() >= 1
	}, "new file did not trigger a rebuild")
}

func TestWatch_BurstDebounced(t *testing.T) {
	dir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var rebuilds atomic.Int64
	go Watch(ctx, dir, quietLogger(), func() { rebuilds.Add(1) })

	time.Sleep(100 * time.Millisecond)

	for i := 0; i < 5; i++ {
		_ = os.WriteFile(filepath.Join(dir, "burst.md"), []byte("tick"), 0o644)
		time.Sleep(10 * time.Millisecond)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rebuilds.Load() >= 1
	}, "burst did not trigger a rebuild")

	// The burst fits inside one debounce window; wait past it and make
	// sure we did not rebuild once per write.
	time.Sleep(2 * debounceWindow)
	if n := rebuilds.Load(); n > 2 {
		t.Errorf("rebuilds = %d, want coalesced (<= 2)", n)
	}
}

func TestWatch_NewDirWatched(t *testing.T) {
	dir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var rebuilds atomic.Int64
	go Watch(ctx, dir, quietLogger(), func() { rebuilds.Add(1) })

	time.Sleep(100 * time.Millisecond)

	subDir := filepath.Join(dir, "subdir")
	_ = os.MkdirAll(subDir, 0o755)
	time.Sleep(400 * time.Millisecond)
	before := rebuilds.Load()

	_ = os.WriteFile(filepath.Join(subDir, "deep.md"), []byte("# Deep"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rebuilds.Load() > before
	}, "file in new subdir did not trigger a rebuild")
}

func TestWatch_IgnoresNonMarkdownAndDotfiles(t *testing.T) {
	dir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var rebuilds atomic.Int64
	go Watch(ctx, dir, quietLogger(), func() { rebuilds.Add(1) })

	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(dir, "scratch.txt"), []byte("x"), 0o644)
	_ = os.WriteFile(filepath.Join(dir, ".othala-tmp-1.md"), []byte("x"), 0o644)

	time.Sleep(3 * debounceWindow)
	if n := rebuilds.Load(); n != 0 {
		t.Errorf("rebuilds = %d, want 0 for irrelevant files", n)
	}
}
