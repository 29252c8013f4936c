package knowledge

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// makeFact builds a valid fact for tests. Keywords and citations may be nil.
func makeFact(id string, keywords, citations []string) *Fact {
	return &Fact{
		ID:          id,
		Timestamp:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC).Format(time.RFC3339),
		Subject:     "subject for " + id,
		Fact:        "content for " + id,
		Citations:   citations,
		Importance:  ImportanceMedium,
		LearnedFrom: "session_test",
		Keywords:    keywords,
	}
}

// appendFacts persists facts to a directory's log in order, failing the test
// on any error.
func appendFacts(t *testing.T, dir string, facts ...*Fact) {
	t.Helper()
	store := NewStore()
	for _, f := range facts {
		if err := store.Append(context.Background(), dir, f); err != nil {
			t.Fatalf("Append(%s) failed: %v", f.ID, err)
		}
	}
}

// factIDs extracts ids in order.
func factIDs(facts []Fact) []string {
	ids := make([]string, len(facts))
	for i := range facts {
		ids[i] = facts[i].ID
	}
	return ids
}

// uniqueID returns a fact id that is unique within one test.
func uniqueID(prefix string, n int) string {
	return fmt.Sprintf("%s-%d", prefix, n)
}
