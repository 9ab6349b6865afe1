package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// batchCollector gathers handler invocations safely across goroutines.
type batchCollector struct {
	mu      sync.Mutex
	batches [][]Event
}

func (c *batchCollector) handle(events []Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, events)
}

func (c *batchCollector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.batches)
}

func (c *batchCollector) paths() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var paths []string
	for _, batch := range c.batches {
		for _, ev := range batch {
			paths = append(paths, ev.Path)
		}
	}
	return paths
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestWatcher_DeliversDebouncedBatch(t *testing.T) {
	root := t.TempDir()
	w, err := New(50*time.Millisecond, nil)
	require.NoError(t, err)
	defer w.Close()

	var collector batchCollector
	w.AddHandler(collector.handle)
	require.NoError(t, w.AddRecursive(root))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	target := filepath.Join(root, "file.txt")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))

	waitFor(t, 2*time.Second, func() bool { return collector.count() > 0 })
	assert.Contains(t, collector.paths(), target)
}

func TestWatcher_CollapsesRapidChanges(t *testing.T) {
	root := t.TempDir()
	w, err := New(100*time.Millisecond, nil)
	require.NoError(t, err)
	defer w.Close()

	var collector batchCollector
	w.AddHandler(collector.handle)
	require.NoError(t, w.AddRecursive(root))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	target := filepath.Join(root, "file.txt")
	for n := 0; n < 5; n++ {
		require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))
		time.Sleep(5 * time.Millisecond)
	}

	waitFor(t, 2*time.Second, func() bool { return collector.count() > 0 })
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, collector.count(), "rapid writes collapse into one batch")
}

func TestWatcher_PicksUpNewDirectories(t *testing.T) {
	root := t.TempDir()
	w, err := New(50*time.Millisecond, nil)
	require.NoError(t, err)
	defer w.Close()

	var collector batchCollector
	w.AddHandler(collector.handle)
	require.NoError(t, w.AddRecursive(root))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	sub := filepath.Join(root, "newdir")
	require.NoError(t, os.Mkdir(sub, 0o755))
	waitFor(t, 2*time.Second, func() bool { return collector.count() > 0 })

	// a file inside the newly created directory is also observed
	inner := filepath.Join(sub, "inner.txt")
	require.NoError(t, os.WriteFile(inner, []byte("x"), 0o644))
	waitFor(t, 2*time.Second, func() bool {
		for _, p := range collector.paths() {
			if p == inner {
				return true
			}
		}
		return false
	})
}

func TestWatcher_StartIsIdempotent(t *testing.T) {
	w, err := New(10*time.Millisecond, nil)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	assert.NotPanics(t, func() { w.Start(ctx) })
}
