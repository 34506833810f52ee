package testutil

import (
	"fmt"
	"sync"
)

// ID returns a canonical, version-4-shaped UUID string for test record n.
//
//	ID(1) == "00000000-0000-4000-8000-000000000001"
func ID(n int) string {
	return fmt.Sprintf("00000000-0000-4000-8000-%012d", n)
}

// SequentialIDs generates commit ids commit-0001, commit-0002, ...
//
// Pass Next to store.WithCommitIDs so golden traces are byte-identical.
// Thread-safety: all methods are safe for concurrent use.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDs creates a generator. An empty prefix defaults to "commit".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "commit"
	}
	return &SequentialIDs{prefix: prefix}
}

// Next returns the next id.
func (g *SequentialIDs) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}
