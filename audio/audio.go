// Package audio decodes recorded caller audio into flat 16-bit PCM and
// normalizes it for transcription: multi-channel input is folded to mono by
// averaging and sample rates are converted by linear interpolation.
//
// Recordings arrive either as RIFF/WAVE (Twilio's default) or as MP3;
// Decode sniffs the container and dispatches accordingly.
package audio

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	mp3 "github.com/hajimehoshi/go-mp3"
	"github.com/pkg/errors"
)

// Clip is decoded audio: interleaved 16-bit samples with channel and rate
// metadata.
type Clip struct {
	Samples    []int16
	Channels   int
	SampleRate int
}

// Resampler converts samples from one rate to another. It is injected where
// resampling is optional so the degraded pass-through mode stays explicit.
type Resampler func(in []int16, inRate, outRate int) []int16

// ErrUnknownFormat is returned when data is neither WAV nor MP3.
var ErrUnknownFormat = errors.New("audio: unknown container format")

// IsWAV reports whether data starts with a RIFF/WAVE header.
func IsWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// IsMP3 reports whether data looks like an MP3 stream (ID3 tag or frame sync).
func IsMP3(data []byte) bool {
	return (len(data) >= 3 && string(data[:3]) == "ID3") ||
		(len(data) >= 2 && data[0] == 0xFF && (data[1]&0xE0) == 0xE0)
}

// Decode sniffs the container and decodes to PCM.
func Decode(data []byte) (Clip, error) {
	switch {
	case IsWAV(data):
		return DecodeWAV(data)
	case IsMP3(data):
		return DecodeMP3(data)
	default:
		return Clip{}, ErrUnknownFormat
	}
}

// DecodeWAV decodes a RIFF/WAVE container carrying 16-bit or 8-bit PCM.
func DecodeWAV(data []byte) (Clip, error) {
	if !IsWAV(data) {
		return Clip{}, errors.New("audio: not a WAV container")
	}

	var (
		format     uint16
		channels   uint16
		sampleRate uint32
		bits       uint16
		gotFmt     bool
		pcm        []byte
	)

	pos := 12
	for pos+8 <= len(data) {
		chunkID := string(data[pos : pos+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		pos += 8
		if chunkSize < 0 || pos+chunkSize > len(data) {
			return Clip{}, errors.Errorf("audio: truncated %q chunk", chunkID)
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return Clip{}, errors.New("audio: fmt chunk too small")
			}
			format = binary.LittleEndian.Uint16(data[pos : pos+2])
			channels = binary.LittleEndian.Uint16(data[pos+2 : pos+4])
			sampleRate = binary.LittleEndian.Uint32(data[pos+4 : pos+8])
			bits = binary.LittleEndian.Uint16(data[pos+14 : pos+16])
			gotFmt = true
		case "data":
			pcm = data[pos : pos+chunkSize]
		}

		pos += chunkSize
		if chunkSize%2 == 1 {
			pos++ // chunks are word-aligned
		}
	}

	if !gotFmt || pcm == nil {
		return Clip{}, errors.New("audio: missing fmt or data chunk")
	}
	if format != 1 {
		return Clip{}, errors.Errorf("audio: unsupported WAV format %d", format)
	}
	if channels == 0 {
		return Clip{}, errors.New("audio: zero channel count")
	}

	var samples []int16
	switch bits {
	case 16:
		if len(pcm)%2 != 0 {
			return Clip{}, errors.New("audio: odd 16-bit data length")
		}
		samples = make([]int16, len(pcm)/2)
		for i := range samples {
			samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		}
	case 8:
		// 8-bit WAV is unsigned.
		samples = make([]int16, len(pcm))
		for i, b := range pcm {
			samples[i] = (int16(b) - 128) << 8
		}
	default:
		return Clip{}, errors.Errorf("audio: unsupported bit depth %d", bits)
	}

	return Clip{
		Samples:    samples,
		Channels:   int(channels),
		SampleRate: int(sampleRate),
	}, nil
}

// DecodeMP3 decodes an MP3 stream. The decoder always yields interleaved
// 16-bit stereo.
func DecodeMP3(data []byte) (Clip, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return Clip{}, errors.Wrap(err, "audio: mp3 decode")
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return Clip{}, errors.Wrap(err, "audio: mp3 read")
	}
	if len(raw)%4 != 0 {
		return Clip{}, errors.New("audio: unexpected mp3 decoded length")
	}

	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[i*2 : i*2+2]))
	}

	return Clip{
		Samples:    samples,
		Channels:   2,
		SampleRate: dec.SampleRate(),
	}, nil
}

// ToMono folds interleaved multi-channel samples to a single channel by
// averaging. Mono input is returned unchanged.
func ToMono(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return samples
	}
	out := make([]int16, len(samples)/channels)
	for i := range out {
		sum := 0
		for ch := 0; ch < channels; ch++ {
			sum += int(samples[i*channels+ch])
		}
		out[i] = int16(sum / channels)
	}
	return out
}

// ResampleLinear converts mono samples from inRate to outRate by linear
// interpolation. Equal rates return a copy.
func ResampleLinear(in []int16, inRate, outRate int) []int16 {
	if inRate == outRate || len(in) == 0 {
		return append([]int16(nil), in...)
	}
	ratio := float64(outRate) / float64(inRate)
	outLen := int(math.Round(float64(len(in)) * ratio))
	if outLen <= 1 {
		return []int16{}
	}
	out := make([]int16, outLen)
	for i := range out {
		srcPos := float64(i) / ratio
		i0 := int(math.Floor(srcPos))
		i1 := i0 + 1
		if i1 >= len(in) {
			i1 = len(in) - 1
		}
		f := srcPos - float64(i0)
		v := float64(in[i0])*(1.0-f) + float64(in[i1])*f
		if v > math.MaxInt16 {
			v = math.MaxInt16
		}
		if v < math.MinInt16 {
			v = math.MinInt16
		}
		out[i] = int16(v)
	}
	return out
}

// EncodeWAV wraps mono 16-bit PCM in a minimal RIFF/WAVE container.
func EncodeWAV(samples []int16, sampleRate int) []byte {
	dataLen := len(samples) * 2

	var buf bytes.Buffer
	buf.Grow(44 + dataLen)

	buf.WriteString("RIFF")
	writeUint32(&buf, uint32(36+dataLen))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	writeUint32(&buf, 16)
	writeUint16(&buf, 1) // PCM
	writeUint16(&buf, 1) // mono
	writeUint32(&buf, uint32(sampleRate))
	writeUint32(&buf, uint32(sampleRate*2)) // byte rate
	writeUint16(&buf, 2)                    // block align
	writeUint16(&buf, 16)                   // bits per sample

	buf.WriteString("data")
	writeUint32(&buf, uint32(dataLen))
	for _, s := range samples {
		writeUint16(&buf, uint16(s))
	}

	return buf.Bytes()
}

func writeUint16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}
