package pages

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelevantEvents(t *testing.T) {
	assert.True(t, relevant(fsnotify.Event{Name: "/c/pages.yaml", Op: fsnotify.Write}))
	assert.True(t, relevant(fsnotify.Event{Name: "/c/vpn.txt", Op: fsnotify.Remove}))
	assert.False(t, relevant(fsnotify.Event{Name: "/c/pages.yaml", Op: fsnotify.Chmod}))
	assert.False(t, relevant(fsnotify.Event{Name: "/c/.pages.yaml.swx", Op: fsnotify.Create}))
	assert.False(t, relevant(fsnotify.Event{Name: "/c/pages.yaml~", Op: fsnotify.Write}))
	assert.False(t, relevant(fsnotify.Event{Name: "/c/pages.yaml.swp", Op: fsnotify.Write}))
}

func TestWatchCatalogSignalsChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pages.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pages: []\n"), 0o644))

	changed := make(chan struct{}, 16)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- WatchCatalog(ctx, path, func() { changed <- struct{}{} })
	}()

	// The watch is registered asynchronously; keep writing until it is seen.
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("pages:\n  - id: a\n    content: x\n"), 0o644)
		select {
		case <-changed:
			return true
		default:
			return false
		}
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

// startWatch runs WatchCatalog until the test ends and returns the channel
// its onChange signals on.
func startWatch(t *testing.T, path string) <-chan struct{} {
	t.Helper()
	changed := make(chan struct{}, 64)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- WatchCatalog(ctx, path, func() { changed <- struct{}{} })
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return changed
}

// drain empties ch and reports whether anything was in it.
func drain(ch <-chan struct{}) bool {
	seen := false
	for {
		select {
		case <-ch:
			seen = true
		default:
			return seen
		}
	}
}

func TestContentDirs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pages.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
pages:
  - id: vpn
    title: VPN
    path: pages/vpn.txt
  - id: reset
    title: Reset
    path: pages/reset.txt
  - id: inline
    title: Inline
    content: text
  - id: shared
    title: Shared
    path: /srv/helpdesk/shared.txt
`), 0o644))

	dirs, err := contentDirs(path)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "pages"), "/srv/helpdesk"}, dirs)

	_, err = contentDirs(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestWatchCatalogSeesContentFileInSubdirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "pages"), 0o755))
	content := filepath.Join(dir, "pages", "vpn.txt")
	require.NoError(t, os.WriteFile(content, []byte("connect to the vpn"), 0o644))
	path := filepath.Join(dir, "pages.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pages:\n  - id: vpn\n    title: VPN\n    path: pages/vpn.txt\n"), 0o644))

	changed := startWatch(t, path)

	require.Eventually(t, func() bool {
		_ = os.WriteFile(content, []byte("connect to the vpn with the new client"), 0o644)
		return drain(changed)
	}, 5*time.Second, 50*time.Millisecond)
}

func TestWatchCatalogFollowsNewContentDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "docs"), 0o755))
	content := filepath.Join(dir, "docs", "printing.txt")
	require.NoError(t, os.WriteFile(content, []byte("printer setup"), 0o644))
	path := filepath.Join(dir, "pages.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pages: []\n"), 0o644))

	changed := startWatch(t, path)

	catalog := []byte("pages:\n  - id: printing\n    title: Printing\n    path: docs/printing.txt\n")
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, catalog, 0o644)
		return drain(changed)
	}, 5*time.Second, 50*time.Millisecond)

	// The catalog change re-synced the watch list, so docs/ is now watched.
	require.Eventually(t, func() bool {
		drain(changed)
		_ = os.WriteFile(content, []byte("printer setup and toner"), 0o644)
		time.Sleep(20 * time.Millisecond)
		return drain(changed)
	}, 5*time.Second, 50*time.Millisecond)
}

func TestWatchCatalogMissingDirectory(t *testing.T) {
	err := WatchCatalog(context.Background(), filepath.Join(t.TempDir(), "nope", "pages.yaml"), func() {})
	assert.Error(t, err)
}
