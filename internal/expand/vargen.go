package expand

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Generator produces opaque identifiers for lambda-bound variables.
// Expression identity uses these IDs exclusively, so renaming a
// variable never touches shared state.
type Generator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 variable IDs.
//
// Uses github.com/google/uuid for RFC 4122 compliant UUIDs. The
// embedded timestamp makes IDs sortable by creation order, which keeps
// debug output readable.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent
// use (each compilation still owns its own expansion state).
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// SeqGenerator returns "v1", "v2", ... for deterministic tests and
// golden plan comparison.
type SeqGenerator struct {
	mu sync.Mutex
	n  int
}

// Generate returns the next sequential ID.
func (g *SeqGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("v%d", g.n)
}
