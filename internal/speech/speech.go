// Package speech holds the contracts between the dialogue and the speech
// backends, plus the glue that turns raw backends (a synthesizer that returns
// audio, a transcriber that takes PCM) into the blocking speak/listen calls the
// dialogue needs.
package speech

import (
	"context"
	"errors"
)

var (
	// ErrNoSpeech means the recognizer heard nothing it could transcribe.
	ErrNoSpeech = errors.New("no speech recognized")

	// ErrUnavailable means the backend refused the call without trying,
	// e.g. an open circuit breaker.
	ErrUnavailable = errors.New("speech service unavailable")

	// ErrFatal marks configuration problems (bad credentials, unknown voice)
	// that retrying will not fix.
	ErrFatal = errors.New("fatal speech configuration error")
)

// Prompt is one message to be spoken. ID identifies the message for caching;
// Audio, when set, overrides the name its cached clip is stored under.
type Prompt struct {
	ID    string
	Text  string
	Audio string
}

// Synthesizer speaks a prompt on the output device and returns once playback
// has finished.
type Synthesizer interface {
	Speak(ctx context.Context, p Prompt) error
}

// Recognizer captures one utterance and returns its transcript.
type Recognizer interface {
	RecognizeOnce(ctx context.Context) (string, error)
}

// AudioSynthesizer renders text to an encoded audio clip (WAV or MP3).
type AudioSynthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Transcriber turns mono 16 kHz float32 PCM into text.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm16k []float32) (string, error)
}

// Capturer records one utterance from the input device as mono 16 kHz PCM.
type Capturer interface {
	Capture(ctx context.Context) ([]float32, error)
}

// Player plays an encoded audio clip and blocks until it ends.
type Player interface {
	Play(ctx context.Context, clip []byte) error
}

// Cache stores synthesized clips by key.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, clip []byte) error
}
