package knowledge

import "path/filepath"

// On-disk layout. The per-directory knowledge folder holds the fact log and
// its lock sentinel; the project-global memory folder holds the derived
// graph and search index.
const (
	KnowledgeDirName = ".knowledge"
	FactLogName      = "facts.jsonl"
	LockFileName     = ".lock"

	MemoryDirName       = ".codebase-memory"
	GraphFileName       = "graph.json"
	SearchIndexFileName = "search-index.json"
)

// FactLogPath returns the fact log path for a directory.
func FactLogPath(dir string) string {
	return filepath.Join(dir, KnowledgeDirName, FactLogName)
}

// GraphPath returns the persisted graph path for a project root.
func GraphPath(projectRoot string) string {
	return filepath.Join(projectRoot, MemoryDirName, GraphFileName)
}

// SearchIndexPath returns the persisted search index path for a project root.
func SearchIndexPath(projectRoot string) string {
	return filepath.Join(projectRoot, MemoryDirName, SearchIndexFileName)
}

// logOwnerDir returns the directory a fact log belongs to: the parent of its
// .knowledge folder.
func logOwnerDir(logPath string) string {
	return filepath.Dir(filepath.Dir(logPath))
}
