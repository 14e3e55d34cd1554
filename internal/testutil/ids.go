package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs generates UUID-shaped identifiers in sequence.
//
// Stores normally assign UUIDv7 data ids to cached payloads. Tests inject
// SequentialIDs so that golden output is byte-identical across runs.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SequentialIDs struct {
	mu  sync.Mutex
	seq int64
}

// NewSequentialIDs creates a generator whose first ID ends in ...0001.
func NewSequentialIDs() *SequentialIDs {
	return &SequentialIDs{}
}

// Generate returns the next identifier.
func (g *SequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("00000000-0000-0000-0000-%012d", g.seq)
}

// Reset restarts the sequence.
func (g *SequentialIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq = 0
}
