package knowledge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverLogs(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0750))

	appendFacts(t, root, makeFact("fact_root", nil, nil))
	appendFacts(t, nested, makeFact("fact_nested", nil, nil))

	// Files that look similar but are not fact logs must be ignored.
	decoy := filepath.Join(root, "a", KnowledgeDirName)
	require.NoError(t, os.MkdirAll(decoy, 0750))
	require.NoError(t, os.WriteFile(filepath.Join(decoy, "notes.json"), []byte("{}"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, FactLogName), []byte("{}"), 0644))

	logs := DiscoverLogs(root)

	assert.Equal(t, []string{
		FactLogPath(root),
		FactLogPath(nested),
	}, logs, "discovery finds exactly the knowledge-folder logs, sorted")
}

func TestDiscoverLogsEmptyTree(t *testing.T) {
	assert.Empty(t, DiscoverLogs(t.TempDir()))
}
