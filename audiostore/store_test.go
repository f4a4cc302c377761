package audiostore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetDelete(t *testing.T) {
	s := NewStore()

	_, ok := s.Get("CA1")
	assert.False(t, ok)

	s.Put("CA1", "audio/mpeg", []byte("mp3-bytes"))
	a, ok := s.Get("CA1")
	require.True(t, ok)
	assert.Equal(t, "audio/mpeg", a.ContentType)
	assert.Equal(t, []byte("mp3-bytes"), a.Data)

	s.Delete("CA1")
	_, ok = s.Get("CA1")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestPutSupersedes(t *testing.T) {
	s := NewStore()

	s.Put("CA1", "audio/mpeg", []byte("turn-1"))
	s.Put("CA1", "audio/mpeg", []byte("turn-2"))

	a, ok := s.Get("CA1")
	require.True(t, ok)
	assert.Equal(t, []byte("turn-2"), a.Data)
	assert.Equal(t, 1, s.Len())
}

func TestDeleteMissingIsNoop(t *testing.T) {
	s := NewStore()
	s.Delete("CA-unknown")
	s.Delete("CA-unknown")
	assert.Equal(t, 0, s.Len())
}
