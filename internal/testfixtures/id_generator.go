package testfixtures

import (
	"fmt"
	"sync"

	"github.com/example/meetsync/internal/ids"
)

// IDGenerator produces deterministic identifiers of ids.Length characters,
// e.g. "room0001", "user0002".
type IDGenerator struct {
	mu      sync.Mutex
	prefix  string
	counter uint64
}

// NewIDGenerator constructs a generator for prefix. When prefix is empty,
// "id" is used. Prefixes longer than ids.Length-1 are truncated.
func NewIDGenerator(prefix string) *IDGenerator {
	g := &IDGenerator{}
	g.SetPrefix(prefix)
	return g
}

// Next returns the next identifier in the sequence.
func (g *IDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++
	return fmt.Sprintf("%s%0*d", g.prefix, ids.Length-len(g.prefix), g.counter)
}

// NextFunc exposes Next as a function suitable for dependency injection.
func (g *IDGenerator) NextFunc() func() string {
	if g == nil {
		return ids.New
	}
	return g.Next
}

// SetPrefix updates the generator prefix.
func (g *IDGenerator) SetPrefix(prefix string) {
	if prefix == "" {
		prefix = "id"
	}
	if len(prefix) >= ids.Length {
		prefix = prefix[:ids.Length-1]
	}
	g.mu.Lock()
	g.prefix = prefix
	g.mu.Unlock()
}

// SetCounter overrides the internal counter, enabling deterministic resets.
func (g *IDGenerator) SetCounter(counter uint64) {
	g.mu.Lock()
	g.counter = counter
	g.mu.Unlock()
}
