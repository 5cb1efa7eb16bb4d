package ids

import (
	"sync"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateULIDIsSortable(t *testing.T) {
	prev := CreateULID()
	for range 50 {
		next := CreateULID()
		_, err := ulid.Parse(next)
		require.NoError(t, err)
		require.Less(t, prev, next)
		prev = next
	}
}

func TestSequenceStartsAtOneAndWraps(t *testing.T) {
	var seq Sequence
	assert.Equal(t, int64(1), seq.Next())
	assert.Equal(t, int64(2), seq.Next())

	seq.last = MaxSequence - 1
	assert.Equal(t, MaxSequence, seq.Next())
	assert.Equal(t, int64(1), seq.Next())
}

func TestSequenceConcurrentCallersGetDistinctIDs(t *testing.T) {
	var (
		seq  Sequence
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[int64]struct{})
	)

	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 25 {
				id := seq.Next()
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 200)
	assert.Equal(t, int64(201), seq.Next())
}
