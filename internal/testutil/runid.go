// Package testutil provides deterministic helpers and fake external tools for tests.
package testutil

// FixedRunIDGenerator returns the same run ID every time.
//
// Runs recorded with a fixed ID produce identical ledger rows, which keeps
// ledger assertions independent of UUIDv7 timestamps.
type FixedRunIDGenerator struct {
	id string
}

// NewFixedRunIDGenerator creates a generator for id.
// If id is empty, Generate() returns "test-run-default".
func NewFixedRunIDGenerator(id string) *FixedRunIDGenerator {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedRunIDGenerator{id: id}
}

// Generate returns the fixed run ID.
func (g *FixedRunIDGenerator) Generate() string {
	return g.id
}
