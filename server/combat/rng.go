package combat

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"sync"
)

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// lockedRoller makes a *rand.Rand safe to share between sessions.
type lockedRoller struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRoller) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

// NewRoller returns a goroutine-safe Roller seeded from crypto/rand.
func NewRoller() (Roller, error) {
	seed, err := NewSeed()
	if err != nil {
		return nil, err
	}
	return NewSeededRoller(seed), nil
}

// NewSeededRoller returns a goroutine-safe Roller with a fixed seed.
func NewSeededRoller(seed int64) Roller {
	return &lockedRoller{r: rand.New(rand.NewSource(seed))}
}
