package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSearchIndex(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "api")
	require.NoError(t, os.MkdirAll(sub, 0750))

	appendFacts(t, root, makeFact("fact_root", []string{"auth", "jwt"}, nil))
	appendFacts(t, sub, makeFact("fact_api", []string{"auth"}, nil))

	index, err := NewIndexBuilder().BuildSearchIndex(root)
	require.NoError(t, err)

	assert.Equal(t, []string{
		".knowledge/facts.jsonl:fact_root",
		"api/.knowledge/facts.jsonl:fact_api",
	}, index.Keywords["auth"])
	assert.Equal(t, []string{".knowledge/facts.jsonl:fact_root"}, index.Keywords["jwt"])

	_, err = os.Stat(SearchIndexPath(root))
	assert.NoError(t, err, "index must be persisted")
}

func TestBuildSearchIndexIsMonotonic(t *testing.T) {
	root := t.TempDir()
	appendFacts(t, root, makeFact("fact_live", []string{"auth"}, nil))

	builder := NewIndexBuilder()
	_, err := builder.BuildSearchIndex(root)
	require.NoError(t, err)

	// Remove the fact log; a rebuild must keep the now-stale entry. The
	// index never reconciles deletions.
	require.NoError(t, os.Remove(FactLogPath(root)))

	index, err := builder.BuildSearchIndex(root)
	require.NoError(t, err)
	assert.Equal(t, []string{".knowledge/facts.jsonl:fact_live"}, index.Keywords["auth"])
}

func TestBuildGraphAddsNodesOnly(t *testing.T) {
	root := t.TempDir()
	appendFacts(t, root,
		makeFact("fact_1", []string{"a", "b"}, nil),
		makeFact("fact_2", []string{"a", "b"}, nil),
	)

	graph, err := NewIndexBuilder().BuildGraph(root)
	require.NoError(t, err)

	assert.Equal(t, []string{"fact_1", "fact_2"}, graph.Nodes)
	assert.Empty(t, graph.Edges, "edge creation belongs to the linker, not the builder")
}

func TestBuildGraphPreservesExistingEdges(t *testing.T) {
	root := t.TempDir()
	b := makeFact("fact_b", []string{"order", "status"}, nil)
	a := makeFact("fact_a", []string{"order", "status"}, nil)
	appendFacts(t, root, b, a)
	require.NoError(t, NewLinker().LinkFact(context.Background(), a, root))

	graph, err := NewIndexBuilder().BuildGraph(root)
	require.NoError(t, err)

	assert.Len(t, graph.Edges, 2, "rebuild must carry linker-created edges through untouched")
}

func TestRebuildAllIsIdempotent(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "svc")
	require.NoError(t, os.MkdirAll(sub, 0750))
	appendFacts(t, root, makeFact("fact_1", []string{"x", "y"}, nil))
	appendFacts(t, sub, makeFact("fact_2", []string{"y", "z"}, nil))

	builder := NewIndexBuilder()
	require.NoError(t, builder.RebuildAll(root))

	graph1, err := os.ReadFile(GraphPath(root))
	require.NoError(t, err)
	index1, err := os.ReadFile(SearchIndexPath(root))
	require.NoError(t, err)

	require.NoError(t, builder.RebuildAll(root))

	graph2, err := os.ReadFile(GraphPath(root))
	require.NoError(t, err)
	index2, err := os.ReadFile(SearchIndexPath(root))
	require.NoError(t, err)

	assert.Equal(t, string(graph1), string(graph2), "second rebuild must be byte-identical")
	assert.Equal(t, string(index1), string(index2), "second rebuild must be byte-identical")
}

func TestCorruptPersistedArtifactsStartFresh(t *testing.T) {
	root := t.TempDir()
	appendFacts(t, root, makeFact("fact_1", []string{"k"}, nil))

	require.NoError(t, os.MkdirAll(filepath.Join(root, MemoryDirName), 0750))
	require.NoError(t, os.WriteFile(GraphPath(root), []byte("{{{"), 0644))
	require.NoError(t, os.WriteFile(SearchIndexPath(root), []byte("not json"), 0644))

	builder := NewIndexBuilder()
	graph, err := builder.BuildGraph(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"fact_1"}, graph.Nodes)

	index, err := builder.BuildSearchIndex(root)
	require.NoError(t, err)
	assert.Equal(t, []string{".knowledge/facts.jsonl:fact_1"}, index.Keywords["k"])
}
