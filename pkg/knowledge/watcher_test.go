package knowledge

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherRebuildsOnFactLogChange(t *testing.T) {
	root := t.TempDir()

	watcher, err := NewWatcher(root, NewIndexBuilder(), 100*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, watcher.Start())
	defer watcher.Close()

	// Two spaced appends: the first may race the watch registration for the
	// freshly created knowledge folder, the second is reliably observed.
	appendFacts(t, root, makeFact("fact_watched", []string{"watcher"}, nil))
	time.Sleep(300 * time.Millisecond)
	appendFacts(t, root, makeFact("fact_watched_2", []string{"watcher"}, nil))

	// The rebuild is asynchronous behind the debounce window; poll for it.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		data, err := os.ReadFile(SearchIndexPath(root))
		if err == nil {
			var index SearchIndex
			if json.Unmarshal(data, &index) == nil && len(index.Keywords["watcher"]) > 0 {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("index was not rebuilt after a fact log change")
}

func TestWatcherCloseStopsEventLoop(t *testing.T) {
	root := t.TempDir()
	watcher, err := NewWatcher(root, NewIndexBuilder(), time.Second)
	require.NoError(t, err)
	require.NoError(t, watcher.Start())

	done := make(chan struct{})
	go func() {
		assert.NoError(t, watcher.Close())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}
}
