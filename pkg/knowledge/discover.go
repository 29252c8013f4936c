package knowledge

import (
	"io/fs"
	"path/filepath"
	"sort"
	"sync"

	"github.com/gobwas/glob"

	"github.com/entrhq/recall/pkg/logging"
)

// logMatcher matches slash-separated paths, relative to a project root,
// that point at a fact log inside a knowledge folder at any depth.
type logMatcher struct {
	patterns []glob.Glob
}

func newLogMatcher() *logMatcher {
	raw := []string{
		KnowledgeDirName + "/" + FactLogName,         // project root itself
		"**/" + KnowledgeDirName + "/" + FactLogName, // any nested directory
	}
	m := &logMatcher{}
	for _, p := range raw {
		m.patterns = append(m.patterns, glob.MustCompile(p, '/'))
	}
	return m
}

func (m *logMatcher) Match(relPath string) bool {
	for _, p := range m.patterns {
		if p.Match(relPath) {
			return true
		}
	}
	return false
}

var (
	discoverLog     *logging.Logger
	discoverLogOnce sync.Once
)

// DiscoverLogs walks the project tree and returns the absolute path of every
// fact log found under a knowledge folder. Results are sorted so rebuilds
// and relationship scans are reproducible run to run. Unreadable subtrees
// are logged and skipped; discovery itself never fails.
func DiscoverLogs(projectRoot string) []string {
	discoverLogOnce.Do(func() {
		discoverLog, _ = logging.NewLogger("knowledge.discovery")
	})

	matcher := newLogMatcher()
	var logs []string

	err := filepath.WalkDir(projectRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			discoverLog.Warnf("skipping unreadable path %s: %v", path, walkErr)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(projectRoot, path)
		if err != nil {
			return nil
		}
		if matcher.Match(filepath.ToSlash(rel)) {
			logs = append(logs, path)
		}
		return nil
	})
	if err != nil {
		discoverLog.Warnf("fact log discovery under %s aborted: %v", projectRoot, err)
	}

	sort.Strings(logs)
	return logs
}
