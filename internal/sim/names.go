package sim

import (
	"sync"

	"github.com/google/uuid"
)

// NameGenerator names runs. Run names are the remote-net names persisted
// values are addressed by.
type NameGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 run names.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined run names for testing.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu    sync.Mutex
	names []string
	idx   int
}

// NewFixedGenerator creates a generator that returns names in order.
//
//	gen := NewFixedGenerator("net-1", "net-2")
//	gen.Generate() // "net-1"
//	gen.Generate() // "net-2"
//	gen.Generate() // panic: all names exhausted
func NewFixedGenerator(names ...string) *FixedGenerator {
	return &FixedGenerator{names: names}
}

// Generate returns the next predetermined name. It panics once all names
// are used, which catches tests starting more runs than expected.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.names) {
		panic("FixedGenerator: all names exhausted")
	}
	name := g.names[g.idx]
	g.idx++
	return name
}
