package knowledge

import (
	"fmt"
	"strings"
)

// Importance classifies how valuable a fact is when context space is limited.
type Importance string

const (
	ImportanceHigh   Importance = "high"
	ImportanceMedium Importance = "medium"
	ImportanceLow    Importance = "low"
)

// Rank returns the sort rank for an importance level. Lower ranks sort first.
// Unknown levels rank after low so malformed data never displaces real facts.
func (i Importance) Rank() int {
	switch i {
	case ImportanceHigh:
		return 0
	case ImportanceMedium:
		return 1
	case ImportanceLow:
		return 2
	default:
		return 3
	}
}

// Valid reports whether the importance is one of the three known levels.
func (i Importance) Valid() bool {
	return i == ImportanceHigh || i == ImportanceMedium || i == ImportanceLow
}

const (
	// MaxRelatedFacts caps the related-fact fan-out per fact, on both sides
	// of every relationship.
	MaxRelatedFacts = 5

	// RelationRelated is the only edge relation currently produced.
	RelationRelated = "related"
)

// Fact is the atomic unit of stored knowledge. Facts live in the JSON Lines
// log of the directory they were learned about and are never updated in
// place, except that the linker may extend RelatedFacts after creation.
type Fact struct {
	ID           string     `json:"id"`
	Timestamp    string     `json:"timestamp"`
	Subject      string     `json:"subject"`
	Fact         string     `json:"fact"`
	Citations    []string   `json:"citations"`
	Importance   Importance `json:"importance"`
	LearnedFrom  string     `json:"learned_from"`
	Keywords     []string   `json:"keywords"`
	RelatedFacts []string   `json:"related_facts"`
}

// Validate ensures the required fact fields are populated.
func (f *Fact) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("knowledge: fact missing id")
	}
	if f.Subject == "" {
		return fmt.Errorf("knowledge: fact %s missing subject", f.ID)
	}
	if f.Fact == "" {
		return fmt.Errorf("knowledge: fact %s missing content", f.ID)
	}
	if !f.Importance.Valid() {
		return fmt.Errorf("knowledge: fact %s has invalid importance %q", f.ID, f.Importance)
	}
	if len(f.RelatedFacts) > MaxRelatedFacts {
		return fmt.Errorf("knowledge: fact %s exceeds related-fact cap (%d > %d)",
			f.ID, len(f.RelatedFacts), MaxRelatedFacts)
	}
	return nil
}

// Normalize replaces nil slices with empty ones so a fact always serializes
// its list fields as empty arrays, never null. Empty RelatedFacts must
// round-trip as an empty sequence, not as an absent field.
func (f *Fact) Normalize() {
	if f.Citations == nil {
		f.Citations = []string{}
	}
	if f.Keywords == nil {
		f.Keywords = []string{}
	}
	if f.RelatedFacts == nil {
		f.RelatedFacts = []string{}
	}
}

// CitationFiles returns the file portion of each citation: the substring
// before the first ':'. Citations without a line range pass through intact.
// Duplicates are preserved.
func (f *Fact) CitationFiles() []string {
	files := make([]string, 0, len(f.Citations))
	for _, c := range f.Citations {
		if idx := strings.Index(c, ":"); idx >= 0 {
			files = append(files, c[:idx])
		} else {
			files = append(files, c)
		}
	}
	return files
}

// GraphEdge is a directed relationship record between two facts. The linker
// always creates edges in pairs (from->to and to->from) so the stored graph
// represents undirected relationships.
type GraphEdge struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Relation string `json:"relation"`
}

// KnowledgeGraph is the project-global node/edge structure over fact ids.
// Nodes are an insertion-ordered set; edges are deduplicated by exact
// (from, to, relation) triple.
type KnowledgeGraph struct {
	Nodes []string    `json:"nodes"`
	Edges []GraphEdge `json:"edges"`

	nodeSet map[string]struct{}
	edgeSet map[GraphEdge]struct{}
}

// NewKnowledgeGraph returns an empty graph ready for node and edge insertion.
func NewKnowledgeGraph() *KnowledgeGraph {
	g := &KnowledgeGraph{Nodes: []string{}, Edges: []GraphEdge{}}
	g.reindex()
	return g
}

// reindex rebuilds the lookup sets from the exported slices. Must be called
// after unmarshaling a persisted graph.
func (g *KnowledgeGraph) reindex() {
	g.nodeSet = make(map[string]struct{}, len(g.Nodes))
	for _, n := range g.Nodes {
		g.nodeSet[n] = struct{}{}
	}
	g.edgeSet = make(map[GraphEdge]struct{}, len(g.Edges))
	for _, e := range g.Edges {
		g.edgeSet[e] = struct{}{}
	}
}

// AddNode inserts a fact id into the node set, preserving insertion order.
// It reports whether the node was newly added.
func (g *KnowledgeGraph) AddNode(id string) bool {
	if _, ok := g.nodeSet[id]; ok {
		return false
	}
	g.Nodes = append(g.Nodes, id)
	g.nodeSet[id] = struct{}{}
	return true
}

// HasNode reports whether the fact id is already a node.
func (g *KnowledgeGraph) HasNode(id string) bool {
	_, ok := g.nodeSet[id]
	return ok
}

// AddEdge inserts an edge unless an identical (from, to, relation) triple
// already exists. It reports whether the edge was newly added.
func (g *KnowledgeGraph) AddEdge(e GraphEdge) bool {
	if _, ok := g.edgeSet[e]; ok {
		return false
	}
	g.Edges = append(g.Edges, e)
	g.edgeSet[e] = struct{}{}
	return true
}

// SearchIndex maps keywords to the locations of facts that carry them. A
// location is "<relative-path-to-fact-log>:<fact-id>". Lists are ordered and
// deduplicated per keyword; the index is monotonic and never reconciles
// deletions.
type SearchIndex struct {
	Keywords map[string][]string `json:"keywords"`
}

// NewSearchIndex returns an empty search index.
func NewSearchIndex() *SearchIndex {
	return &SearchIndex{Keywords: make(map[string][]string)}
}

// Add appends a location to a keyword's list if not already present. It
// reports whether the location was newly added.
func (ix *SearchIndex) Add(keyword, location string) bool {
	if ix.Keywords == nil {
		ix.Keywords = make(map[string][]string)
	}
	for _, loc := range ix.Keywords[keyword] {
		if loc == location {
			return false
		}
	}
	ix.Keywords[keyword] = append(ix.Keywords[keyword], location)
	return true
}
