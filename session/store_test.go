package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreate(t *testing.T) {
	s := NewStore()

	sess := s.GetOrCreate("CA1")
	assert.Equal(t, "CA1", sess.CallID)
	assert.Empty(t, sess.ContinuationToken)
	assert.Equal(t, 1, s.Len())

	// Second call returns the same session, not a fresh one.
	s.UpdateContinuation("CA1", "resp_1")
	again := s.GetOrCreate("CA1")
	assert.Equal(t, "resp_1", again.ContinuationToken)
	assert.Equal(t, 1, s.Len())
}

func TestUpdateContinuationReplacesToken(t *testing.T) {
	s := NewStore()
	s.GetOrCreate("CA1")

	s.UpdateContinuation("CA1", "resp_1")
	s.UpdateContinuation("CA1", "resp_2")

	sess, ok := s.Get("CA1")
	require.True(t, ok)
	assert.Equal(t, "resp_2", sess.ContinuationToken)
}

func TestRemoveMissingIsNoop(t *testing.T) {
	s := NewStore()
	s.Remove("CA-unknown")
	assert.Equal(t, 0, s.Len())

	s.GetOrCreate("CA1")
	s.Remove("CA1")
	s.Remove("CA1")
	assert.Equal(t, 0, s.Len())

	_, ok := s.Get("CA1")
	assert.False(t, ok)
}

func TestConcurrentAccessAcrossCalls(t *testing.T) {
	s := NewStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("CA%d", i)
			s.GetOrCreate(id)
			s.UpdateContinuation(id, "tok")
			s.Remove(id)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, s.Len())
}
