package testutil

// FixedIDGenerator generates the same id every time.
//
// Runtimes created with it carry a stable instance id, so their records and
// log lines are byte-identical across runs.
//
// Unlike engine.FixedGenerator which returns ids in sequence, this generator
// never runs out.
//
// Thread-safety: FixedIDGenerator is stateless and safe for concurrent use.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a new fixed id generator.
//
// If id is empty, Generate() returns "test-runtime".
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "test-runtime"
	}
	return &FixedIDGenerator{id: id}
}

// Generate returns the fixed id.
//
// Implements engine.IDGenerator.
func (g *FixedIDGenerator) Generate() string {
	return g.id
}
