package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// CreateULID returns a time-sortable ULID encoded as a 26-character string.
func CreateULID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
	return id.String()
}

// MaxSequence is the largest request id the wire protocol can carry.
const MaxSequence int64 = 1 << 53

// Sequence hands out request ids from 1 to MaxSequence, wrapping back to 1.
// The zero value is ready to use.
type Sequence struct {
	mu   sync.Mutex
	last int64
}

// Next returns the next id in the sequence.
func (s *Sequence) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.last >= MaxSequence {
		s.last = 0
	}
	s.last++
	return s.last
}
