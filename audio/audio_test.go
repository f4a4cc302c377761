package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeWAVRoundTrip(t *testing.T) {
	samples := []int16{0, 100, -100, 32767, -32768, 42}

	data := EncodeWAV(samples, 8000)
	require.True(t, IsWAV(data))

	clip, err := DecodeWAV(data)
	require.NoError(t, err)
	assert.Equal(t, 1, clip.Channels)
	assert.Equal(t, 8000, clip.SampleRate)
	assert.Equal(t, samples, clip.Samples)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := DecodeWAV([]byte("definitely not audio"))
	assert.Error(t, err)

	_, err = Decode([]byte{0x00, 0x01, 0x02, 0x03})
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestDecodeTruncatedChunk(t *testing.T) {
	data := EncodeWAV([]int16{1, 2, 3, 4}, 8000)
	_, err := DecodeWAV(data[:20])
	assert.Error(t, err)
}

func TestDecodeSniffsWAV(t *testing.T) {
	data := EncodeWAV([]int16{5, 6, 7}, 16000)
	clip, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, []int16{5, 6, 7}, clip.Samples)
}

func TestIsMP3(t *testing.T) {
	assert.True(t, IsMP3([]byte("ID3\x04\x00")))
	assert.True(t, IsMP3([]byte{0xFF, 0xFB, 0x90, 0x00}))
	assert.False(t, IsMP3([]byte("RIFF")))
}

func TestToMono(t *testing.T) {
	stereo := []int16{100, 200, -100, 100, 0, 0}
	mono := ToMono(stereo, 2)
	assert.Equal(t, []int16{150, 0, 0}, mono)

	// Mono input passes through untouched.
	in := []int16{1, 2, 3}
	assert.Equal(t, in, ToMono(in, 1))
}

func TestResampleLinear(t *testing.T) {
	in := []int16{0, 1000, 2000, 3000}

	// Same rate returns a copy, not the same slice.
	same := ResampleLinear(in, 8000, 8000)
	assert.Equal(t, in, same)
	same[0] = 99
	assert.Equal(t, int16(0), in[0])

	// Upsampling doubles the length.
	up := ResampleLinear(in, 8000, 16000)
	assert.Len(t, up, 8)
	assert.Equal(t, int16(0), up[0])

	// Downsampling halves it.
	down := ResampleLinear(in, 16000, 8000)
	assert.Len(t, down, 2)

	assert.Empty(t, ResampleLinear(nil, 8000, 16000))
}
