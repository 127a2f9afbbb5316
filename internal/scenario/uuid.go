package scenario

import (
	"encoding/binary"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
)

// UUIDGenerator produces RFC 4122 version 4 UUIDs from a seedable PRNG, so a
// seeded run generates the same test data every time. It is safe for
// concurrent use.
type UUIDGenerator struct {
	mu  sync.Mutex
	rng *rand.ChaCha8
}

// NewUUIDGenerator seeds the generator. A zero seed uses the clock.
func NewUUIDGenerator(seed uint64) *UUIDGenerator {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	var key [32]byte
	binary.LittleEndian.PutUint64(key[:8], seed)
	return &UUIDGenerator{rng: rand.NewChaCha8(key)}
}

// Read fills p with pseudo-random bytes.
func (g *UUIDGenerator) Read(p []byte) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Read(p)
}

// New returns the next UUID. The version and variant bits are set by
// uuid.NewRandomFromReader.
func (g *UUIDGenerator) New() uuid.UUID {
	// Read on ChaCha8 never fails.
	id, _ := uuid.NewRandomFromReader(g)
	return id
}

