package auth

import (
	"sync"
	"time"

	"github.com/drblury/protowamp/internal/runtime/wamp"
)

// DefaultChallengeTimeout bounds how long a challenge waits for its answer.
const DefaultChallengeTimeout = 30 * time.Second

// Pending is the router-side record of an issued challenge.
type Pending struct {
	Method       string
	AuthID       string
	AuthRole     string
	AuthProvider string
	// Challenge is the exact payload text sent to the client.
	Challenge string
	Issued    time.Time
}

// PendingStore keeps at most one pending challenge per session.
type PendingStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	pending map[wamp.ID]Pending
}

// NewPendingStore creates a store whose entries expire after ttl. A zero ttl
// uses DefaultChallengeTimeout, a negative one disables expiry.
func NewPendingStore(ttl time.Duration) *PendingStore {
	if ttl == 0 {
		ttl = DefaultChallengeTimeout
	}
	return &PendingStore{
		ttl:     ttl,
		now:     time.Now,
		pending: make(map[wamp.ID]Pending),
	}
}

// Put records p for the session, replacing any earlier challenge.
func (s *PendingStore) Put(id wamp.ID, p Pending) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.Issued.IsZero() {
		p.Issued = s.now()
	}
	s.pending[id] = p
}

// Take removes and returns the pending challenge of the session.
func (s *PendingStore) Take(id wamp.ID) (Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[id]
	if !ok {
		return Pending{}, ErrNoPendingChallenge
	}
	delete(s.pending, id)
	if s.ttl > 0 && s.now().Sub(p.Issued) > s.ttl {
		return Pending{}, ErrChallengeExpired
	}
	return p, nil
}

// Forget drops whatever is pending for the session.
func (s *PendingStore) Forget(id wamp.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
}

// Expire drops every challenge older than the ttl and returns how many went.
func (s *PendingStore) Expire() int {
	if s.ttl <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for id, p := range s.pending {
		if now.Sub(p.Issued) > s.ttl {
			delete(s.pending, id)
			n++
		}
	}
	return n
}

func (s *PendingStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Method returns the method of the session's pending challenge, or "".
func (s *PendingStore) Method(id wamp.ID) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending[id].Method
}
