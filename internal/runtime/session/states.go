package session

import (
	"sync"

	errspkg "github.com/drblury/protowamp/internal/runtime/errors"
	"github.com/drblury/protowamp/internal/runtime/wamp"
)

var _ Session = (*Peer)(nil)

// States holds per-session state keyed by session id. The purge callback runs
// once for every entry that leaves the holder, so per-session maps elsewhere
// can be cleared on disconnect.
type States[T any] struct {
	mu    sync.RWMutex
	items map[wamp.ID]T
	purge func(wamp.ID, T)
}

// NewStates returns an empty holder. purge may be nil.
func NewStates[T any](purge func(wamp.ID, T)) *States[T] {
	return &States[T]{items: make(map[wamp.ID]T), purge: purge}
}

// Put stores state for id. It fails if id is already present.
func (s *States[T]) Put(id wamp.ID, state T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; ok {
		return errspkg.ErrSessionExists
	}
	s.items[id] = state
	return nil
}

func (s *States[T]) Get(id wamp.ID) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.items[id]
	return state, ok
}

// Rekey moves the state stored under from to to, for clients that learn
// their session id from WELCOME.
func (s *States[T]) Rekey(from, to wamp.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.items[from]
	if !ok {
		return errspkg.ErrUnknownSession
	}
	if from == to {
		return nil
	}
	if _, taken := s.items[to]; taken {
		return errspkg.ErrSessionExists
	}
	delete(s.items, from)
	s.items[to] = state
	return nil
}

// Remove drops the state for id and runs the purge callback. It reports
// whether id was present.
func (s *States[T]) Remove(id wamp.ID) bool {
	s.mu.Lock()
	state, ok := s.items[id]
	delete(s.items, id)
	s.mu.Unlock()

	if ok && s.purge != nil {
		s.purge(id, state)
	}
	return ok
}

func (s *States[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Range calls fn for a snapshot of the stored states.
func (s *States[T]) Range(fn func(wamp.ID, T)) {
	s.mu.RLock()
	snapshot := make(map[wamp.ID]T, len(s.items))
	for id, state := range s.items {
		snapshot[id] = state
	}
	s.mu.RUnlock()

	for id, state := range snapshot {
		fn(id, state)
	}
}
