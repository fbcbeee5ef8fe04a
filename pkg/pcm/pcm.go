// Package pcm converts between the float32 sample buffers the recorder
// produces and the 16-bit WAV clips speech services accept.
package pcm

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	SampleRate = 16000
	BitDepth   = 16
)

// EncodeWAV encodes mono float32 samples in [-1, 1] as a 16-bit PCM WAV clip.
func EncodeWAV(samples []float32, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		sampleRate = SampleRate
	}

	// wav.Encoder needs to seek back and patch the header sizes.
	f, err := os.CreateTemp("", "ivr-*.wav")
	if err != nil {
		return nil, fmt.Errorf("temp wav: %w", err)
	}
	defer os.Remove(f.Name())
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, BitDepth, 1, 1)

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           ToInt16(samples),
		SourceBitDepth: BitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("finalize wav: %w", err)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return io.ReadAll(f)
}

// ToInt16 scales float samples to the signed 16-bit range, clipping
// anything outside [-1, 1].
func ToInt16(samples []float32) []int {
	out := make([]int, len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		out[i] = int(math.Round(float64(s) * math.MaxInt16))
	}
	return out
}

// RMS is the root mean square level of a frame.
func RMS(f []float32) float64 {
	if len(f) == 0 {
		return 0
	}
	var s float64
	for _, x := range f {
		s += float64(x * x)
	}
	return math.Sqrt(s / float64(len(f)))
}

// Sniff names the container of an encoded clip: "wav", "mp3" or "".
func Sniff(clip []byte) string {
	switch {
	case len(clip) >= 12 && string(clip[:4]) == "RIFF" && string(clip[8:12]) == "WAVE":
		return "wav"
	case len(clip) >= 3 && string(clip[:3]) == "ID3":
		return "mp3"
	case len(clip) >= 2 && clip[0] == 0xFF && clip[1]&0xE0 == 0xE0:
		return "mp3"
	default:
		return ""
	}
}
