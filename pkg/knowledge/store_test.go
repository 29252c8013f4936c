package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreAppendPreservesOrder(t *testing.T) {
	dir := t.TempDir()

	var want []string
	for i := 0; i < 10; i++ {
		id := uniqueID("fact_order", i)
		appendFacts(t, dir, makeFact(id, nil, nil))
		want = append(want, id)
	}

	got := NewLoader().LoadAll(dir)
	assert.Equal(t, want, factIDs(got), "LoadAll must return facts in append order")
}

func TestStoreAppendCreatesKnowledgeFolder(t *testing.T) {
	dir := t.TempDir()
	appendFacts(t, dir, makeFact("fact_mkdir", nil, nil))

	_, err := os.Stat(FactLogPath(dir))
	require.NoError(t, err, "fact log should exist after first append")
}

func TestStoreAppendRejectsInvalidFact(t *testing.T) {
	dir := t.TempDir()
	f := makeFact("fact_bad", nil, nil)
	f.Importance = "urgent"

	err := NewStore().Append(context.Background(), dir, f)
	require.Error(t, err)

	assert.Empty(t, NewLoader().LoadAll(dir), "invalid fact must not reach the log")
}

func TestStoreConcurrentAppends(t *testing.T) {
	// Writers with disjoint ids racing on one directory must produce a log
	// containing every fact exactly once. This is the property the OS file
	// lock exists to provide.
	dir := t.TempDir()
	const workers = 20

	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			store := NewStore()
			errs[i] = store.Append(context.Background(), dir, makeFact(uniqueID("fact_conc", i), nil, nil))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "worker %d", i)
	}

	facts := NewLoader().LoadAll(dir)
	require.Len(t, facts, workers)

	seen := make(map[string]int)
	for _, f := range facts {
		seen[f.ID]++
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, "fact %s must appear exactly once", id)
	}
}

func TestStoreAppendLockTimeout(t *testing.T) {
	dir := t.TempDir()
	knowledgeDir := filepath.Join(dir, KnowledgeDirName)
	require.NoError(t, os.MkdirAll(knowledgeDir, 0750))

	// Hold the directory lock from outside the store.
	holder := flock.New(filepath.Join(knowledgeDir, LockFileName))
	require.NoError(t, holder.Lock())
	defer holder.Unlock() //nolint:errcheck

	store := NewStore(
		WithLockTimeout(200*time.Millisecond),
		WithLockRetryDelay(20*time.Millisecond),
	)
	err := store.Append(context.Background(), dir, makeFact("fact_blocked", nil, nil))
	require.ErrorIs(t, err, ErrLockTimeout)

	assert.Empty(t, NewLoader().LoadAll(dir), "no partial write on lock timeout")
}
