package knowledge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/entrhq/recall/pkg/logging"
)

// IndexBuilder derives the project-global search index and graph skeleton
// from the set of all fact logs. Both artifacts are caches: they merge with
// whatever is already persisted and can be rebuilt from scratch at any time.
type IndexBuilder struct {
	loader *Loader
	log    *logging.Logger
}

// NewIndexBuilder creates an index builder.
func NewIndexBuilder() *IndexBuilder {
	log, _ := logging.NewLogger("knowledge.index")
	return &IndexBuilder{loader: NewLoader(), log: log}
}

// BuildSearchIndex scans every fact log under projectRoot and merges each
// fact's keywords into the persisted keyword->location index. The merge is
// monotonic: locations are added if absent and never removed, so entries for
// deleted facts linger until a manual cleanup (documented limitation).
func (b *IndexBuilder) BuildSearchIndex(projectRoot string) (*SearchIndex, error) {
	index := loadSearchIndex(SearchIndexPath(projectRoot), b.log)

	for _, logPath := range DiscoverLogs(projectRoot) {
		rel, err := filepath.Rel(projectRoot, logPath)
		if err != nil {
			b.log.Warnf("skipping fact log outside project root: %s", logPath)
			continue
		}
		rel = filepath.ToSlash(rel)
		for _, fact := range b.loader.loadLog(logPath) {
			location := rel + ":" + fact.ID
			for _, kw := range fact.Keywords {
				index.Add(kw, location)
			}
		}
	}

	if err := saveJSON(SearchIndexPath(projectRoot), index); err != nil {
		return nil, err
	}
	return index, nil
}

// BuildGraph scans every fact log under projectRoot and unions each fact id
// into the persisted graph's node set. Existing edges pass through untouched;
// edge creation belongs exclusively to the Linker.
func (b *IndexBuilder) BuildGraph(projectRoot string) (*KnowledgeGraph, error) {
	graph := loadGraph(GraphPath(projectRoot), b.log)

	for _, logPath := range DiscoverLogs(projectRoot) {
		for _, fact := range b.loader.loadLog(logPath) {
			graph.AddNode(fact.ID)
		}
	}

	if err := saveJSON(GraphPath(projectRoot), graph); err != nil {
		return nil, err
	}
	return graph, nil
}

// RebuildAll rebuilds both the search index and the graph, unconditionally.
// Exposed to the command surface as a recovery/maintenance operation.
func (b *IndexBuilder) RebuildAll(projectRoot string) error {
	if _, err := b.BuildSearchIndex(projectRoot); err != nil {
		return err
	}
	if _, err := b.BuildGraph(projectRoot); err != nil {
		return err
	}
	b.log.Infof("rebuilt search index and graph for %s", projectRoot)
	return nil
}

// loadSearchIndex reads a persisted search index. A missing or corrupt file
// is treated as absent: the build starts fresh and overwrites it on persist.
func loadSearchIndex(path string, log *logging.Logger) *SearchIndex {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warnf("failed to read search index %s, starting fresh: %v", path, err)
		}
		return NewSearchIndex()
	}
	var index SearchIndex
	if err := json.Unmarshal(data, &index); err != nil {
		log.Warnf("corrupt search index %s, starting fresh: %v", path, err)
		return NewSearchIndex()
	}
	if index.Keywords == nil {
		index.Keywords = make(map[string][]string)
	}
	return &index
}

// loadGraph reads a persisted knowledge graph with the same missing/corrupt
// tolerance as loadSearchIndex.
func loadGraph(path string, log *logging.Logger) *KnowledgeGraph {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warnf("failed to read graph %s, starting fresh: %v", path, err)
		}
		return NewKnowledgeGraph()
	}
	var graph KnowledgeGraph
	if err := json.Unmarshal(data, &graph); err != nil {
		log.Warnf("corrupt graph %s, starting fresh: %v", path, err)
		return NewKnowledgeGraph()
	}
	if graph.Nodes == nil {
		graph.Nodes = []string{}
	}
	if graph.Edges == nil {
		graph.Edges = []GraphEdge{}
	}
	graph.reindex()
	return &graph
}

// saveJSON persists a derived artifact as pretty-printed JSON via a temp
// file and rename. A directory-creation or write failure is fatal to the
// caller: silently losing a persist would desynchronize the caches.
func saveJSON(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("knowledge: create memory dir for %s: %w", path, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("knowledge: serialize %s: %w", path, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("knowledge: write temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp) // best-effort cleanup
		return fmt.Errorf("knowledge: atomic rename %s: %w", path, err)
	}
	return nil
}
