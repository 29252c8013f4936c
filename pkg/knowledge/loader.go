package knowledge

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/entrhq/recall/pkg/logging"
)

// Loader is the tolerant read side of the fact store. Load operations never
// fail: the read path feeds context injection during normal file access and
// must not block the caller's primary workflow, so errors degrade to empty
// results with a logged warning.
type Loader struct {
	log *logging.Logger
}

// NewLoader creates a fact loader.
func NewLoader() *Loader {
	log, _ := logging.NewLogger("knowledge.loader")
	return &Loader{log: log}
}

// LoadAll returns every fact stored for a directory, in append order.
// A missing, empty, or unreadable log yields an empty slice.
func (l *Loader) LoadAll(directory string) []Fact {
	return l.loadLog(FactLogPath(directory))
}

// loadLog reads one fact log. Each line parses independently: a malformed
// line is skipped with a warning so partial corruption never causes total
// data loss. Blank lines are permitted and skipped.
func (l *Loader) loadLog(logPath string) []Fact {
	data, err := os.ReadFile(logPath)
	if err != nil {
		if !os.IsNotExist(err) {
			l.log.Warnf("failed to read fact log %s: %v", logPath, err)
		}
		return []Fact{}
	}

	lines := strings.Split(string(data), "\n")
	facts := make([]Fact, 0, len(lines))
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var f Fact
		if err := json.Unmarshal([]byte(line), &f); err != nil {
			l.log.Warnf("skipping malformed fact at %s:%d: %v", logPath, i+1, err)
			continue
		}
		f.Normalize()
		facts = append(facts, f)
	}
	return facts
}

// LoadRelevant returns the facts stored for filePath's parent directory,
// filtered to those where any keyword matches (case-insensitive substring of
// the subject, the fact text, or one of the fact's own keywords). An empty
// keyword set means no filter, not no matches.
func (l *Loader) LoadRelevant(filePath string, keywords []string) []Fact {
	facts := l.LoadAll(filepath.Dir(filePath))
	if len(keywords) == 0 {
		return facts
	}

	relevant := make([]Fact, 0, len(facts))
	for _, f := range facts {
		if factMatchesAny(&f, keywords) {
			relevant = append(relevant, f)
		}
	}
	return relevant
}

func factMatchesAny(f *Fact, keywords []string) bool {
	subject := strings.ToLower(f.Subject)
	content := strings.ToLower(f.Fact)
	for _, kw := range keywords {
		needle := strings.ToLower(kw)
		if strings.Contains(subject, needle) || strings.Contains(content, needle) {
			return true
		}
		for _, own := range f.Keywords {
			if strings.Contains(strings.ToLower(own), needle) {
				return true
			}
		}
	}
	return false
}

// SelectTop orders facts by importance (high first, stable within a level)
// and truncates to max. Callers own any further display formatting.
func SelectTop(facts []Fact, max int) []Fact {
	out := make([]Fact, len(facts))
	copy(out, facts)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Importance.Rank() < out[j].Importance.Rank()
	})
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}
