package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestScan(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.pdf"))
	touch(t, filepath.Join(root, "b.PNG"))
	touch(t, filepath.Join(root, "notes.md"))
	touch(t, filepath.Join(root, "sub", "c.txt"))
	touch(t, filepath.Join(root, ".cache", "d.pdf"))
	touch(t, filepath.Join(root, ".e.pdf"))

	paths, stats, err := Scan(root, ScanOptions{SkipHidden: true})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "a.pdf"),
		filepath.Join(root, "b.PNG"),
		filepath.Join(root, "sub", "c.txt"),
	}, paths)
	assert.Equal(t, uint32(3), stats.Matched)

	paths, _, err = Scan(root, ScanOptions{Exts: []string{".pdf"}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(root, "a.pdf"),
		filepath.Join(root, ".cache", "d.pdf"),
		filepath.Join(root, ".e.pdf"),
	}, paths)
}

func TestScanErrors(t *testing.T) {
	_, _, err := Scan(" ", ScanOptions{})
	assert.Error(t, err)

	_, _, err = Scan(filepath.Join(t.TempDir(), "missing"), ScanOptions{})
	assert.Error(t, err)
}

func next(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case p := <-ch:
		return p
	case <-time.After(5 * time.Second):
		t.Fatal("no event")
		return ""
	}
}

func TestWatch(t *testing.T) {
	root := t.TempDir()
	existing := filepath.Join(root, "old.pdf")
	touch(t, existing)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := Watch(ctx, WatchConfig{
		Roots:       []string{root},
		InitialScan: true,
		Debounce:    20 * time.Millisecond,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, existing, next(t, events))

	fresh := filepath.Join(root, "new.jpg")
	touch(t, fresh)
	touch(t, filepath.Join(root, "ignored.md"))
	assert.Equal(t, fresh, next(t, events))

	cancel()
	for range events {
	}
}

func TestWatchRequiresRoots(t *testing.T) {
	_, _, err := Watch(context.Background(), WatchConfig{}, nil)
	assert.Error(t, err)
}
