package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/entrhq/recall/pkg/logging"
)

// Linker detects relationships between a newly stored fact and every fact
// already persisted anywhere in the project, creates bidirectional graph
// edges for each match, and writes the relationship back into both facts'
// related lists, capped at MaxRelatedFacts on both sides.
//
// Calls are serialized through a per-Linker mutex, so concurrent LinkFact
// invocations in one process cannot race on the graph or the fact logs.
// Cross-process callers must still serialize per project.
type Linker struct {
	mu             sync.Mutex
	loader         *Loader
	lockTimeout    time.Duration
	lockRetryDelay time.Duration
	log            *logging.Logger
}

// NewLinker creates a knowledge linker with default lock parameters.
func NewLinker() *Linker {
	log, _ := logging.NewLogger("knowledge.linker")
	return &Linker{
		loader:         NewLoader(),
		lockTimeout:    DefaultLockTimeout,
		lockRetryDelay: DefaultLockRetryDelay,
		log:            log,
	}
}

// locatedFact pairs a fact with the log it was read from so write-back can
// group updates per log.
type locatedFact struct {
	fact    Fact
	logPath string
}

// LinkFact scans all stored facts project-wide for relationships with
// newFact and records every match:
//
//   - a pair is related when the facts share at least two keywords
//     (case-sensitive exact match) or cite at least one common file,
//   - a candidate is skipped when either side's stored related list is
//     already full,
//   - scanning stops once newFact has gained MaxRelatedFacts new relations;
//     candidates are visited in log discovery order, so the first matches
//     win,
//   - newFact's related list is extended in place (existing ids first, then
//     new matches, truncated to the cap without deduplication),
//   - each matched fact gets newFact's id appended to its own related list
//     and its log rewritten, under the same per-directory lock the store
//     uses for appends.
//
// The graph is persisted even when no relationship is found, so newFact's
// node is always recorded.
func (ln *Linker) LinkFact(ctx context.Context, newFact *Fact, projectRoot string) error {
	ln.mu.Lock()
	defer ln.mu.Unlock()

	graph := loadGraph(GraphPath(projectRoot), ln.log)
	graph.AddNode(newFact.ID)

	var allFacts []locatedFact
	for _, logPath := range DiscoverLogs(projectRoot) {
		for _, f := range ln.loader.loadLog(logPath) {
			allFacts = append(allFacts, locatedFact{fact: f, logPath: logPath})
		}
	}

	var pending []string
	var staged []GraphEdge
	for i := range allFacts {
		candidate := &allFacts[i].fact
		if candidate.ID == newFact.ID {
			continue
		}
		// Hard short-circuit against the stored counts: a fact whose list is
		// already full never gains another relation, in either direction.
		if len(newFact.RelatedFacts) >= MaxRelatedFacts || len(candidate.RelatedFacts) >= MaxRelatedFacts {
			continue
		}

		if keywordOverlap(newFact.Keywords, candidate.Keywords) >= 2 ||
			citationFileOverlap(newFact, candidate) > 0 {
			pending = append(pending, candidate.ID)
			staged = append(staged,
				GraphEdge{From: newFact.ID, To: candidate.ID, Relation: RelationRelated},
				GraphEdge{From: candidate.ID, To: newFact.ID, Relation: RelationRelated},
			)
			if len(pending) >= MaxRelatedFacts {
				break
			}
		}
	}

	// Existing ids keep priority over new matches; the combined list is
	// truncated to the cap without deduplicating across the two sources.
	newFact.RelatedFacts = truncateRelated(append(newFact.RelatedFacts, pending...))

	for _, e := range staged {
		graph.AddEdge(e)
	}
	if err := saveJSON(GraphPath(projectRoot), graph); err != nil {
		return err
	}

	if len(pending) > 0 {
		if err := ln.writeBack(ctx, newFact.ID, pending, allFacts); err != nil {
			return err
		}
	}

	ln.log.Infof("linked fact %s to %d related fact(s)", newFact.ID, len(pending))
	return nil
}

// writeBack appends newID to the related list of every matched fact and
// rewrites each affected log once, under that directory's lock. The rewrite
// reserializes the parseable facts; write failures propagate.
func (ln *Linker) writeBack(ctx context.Context, newID string, matched []string, allFacts []locatedFact) error {
	matchedSet := make(map[string]struct{}, len(matched))
	for _, id := range matched {
		matchedSet[id] = struct{}{}
	}

	logSet := make(map[string]struct{})
	var logPaths []string
	for _, lf := range allFacts {
		if _, ok := matchedSet[lf.fact.ID]; !ok {
			continue
		}
		if _, seen := logSet[lf.logPath]; !seen {
			logSet[lf.logPath] = struct{}{}
			logPaths = append(logPaths, lf.logPath)
		}
	}

	for _, logPath := range logPaths {
		if err := ln.rewriteLog(ctx, logPath, matchedSet, newID); err != nil {
			return err
		}
	}
	return nil
}

// rewriteLog reloads one log under its directory lock, updates every
// matched fact in it, and rewrites the file only if something changed.
func (ln *Linker) rewriteLog(ctx context.Context, logPath string, matchedSet map[string]struct{}, newID string) error {
	dir := logOwnerDir(logPath)
	lock, err := acquireDirLock(ctx, dir, ln.lockTimeout, ln.lockRetryDelay, ln.log)
	if err != nil {
		return err
	}
	defer lock.release()

	facts := ln.loader.loadLog(logPath)
	modified := false
	for i := range facts {
		if _, ok := matchedSet[facts[i].ID]; !ok {
			continue
		}
		if containsString(facts[i].RelatedFacts, newID) {
			continue
		}
		facts[i].RelatedFacts = truncateRelated(append(facts[i].RelatedFacts, newID))
		modified = true
	}
	if !modified {
		return nil
	}

	var sb strings.Builder
	for i := range facts {
		line, err := json.Marshal(&facts[i])
		if err != nil {
			return fmt.Errorf("knowledge: serialize fact %s: %w", facts[i].ID, err)
		}
		sb.Write(line)
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(logPath, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("knowledge: rewrite fact log %s: %w", logPath, err)
	}

	ln.log.Debugf("rewrote %s with back-references to %s", logPath, newID)
	return nil
}

// keywordOverlap counts keywords present in both sets. Matching here is
// case-sensitive and exact, unlike the loader's relevance filter.
func keywordOverlap(a, b []string) int {
	set := make(map[string]struct{}, len(b))
	for _, kw := range b {
		set[kw] = struct{}{}
	}
	count := 0
	for _, kw := range a {
		if _, ok := set[kw]; ok {
			count++
		}
	}
	return count
}

// citationFileOverlap counts citations of a whose file portion also appears
// among b's cited files. Only presence matters to the caller; duplicates are
// not collapsed.
func citationFileOverlap(a, b *Fact) int {
	set := make(map[string]struct{})
	for _, file := range b.CitationFiles() {
		set[file] = struct{}{}
	}
	count := 0
	for _, file := range a.CitationFiles() {
		if _, ok := set[file]; ok {
			count++
		}
	}
	return count
}

func truncateRelated(ids []string) []string {
	if len(ids) > MaxRelatedFacts {
		return ids[:MaxRelatedFacts]
	}
	return ids
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
