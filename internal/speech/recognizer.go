package speech

import (
	"context"
	"fmt"
	log "log/slog"
	"strings"
)

// MicRecognizer records one utterance and hands it to a Transcriber.
type MicRecognizer struct {
	capturer    Capturer
	transcriber Transcriber

	// optional cue played right before capture starts
	cue    []byte
	player Player
}

func NewMicRecognizer(c Capturer, t Transcriber) *MicRecognizer {
	return &MicRecognizer{capturer: c, transcriber: t}
}

// WithCue makes the recognizer play clip through p before every capture.
func (r *MicRecognizer) WithCue(p Player, clip []byte) *MicRecognizer {
	r.player = p
	r.cue = clip
	return r
}

func (r *MicRecognizer) RecognizeOnce(ctx context.Context) (string, error) {
	if r.player != nil && len(r.cue) > 0 {
		if err := r.player.Play(ctx, r.cue); err != nil {
			log.Warn("Failed to play listening cue", "err", err)
		}
	}

	log.Info("Listening...")

	pcm, err := r.capturer.Capture(ctx)
	if err != nil {
		return "", fmt.Errorf("capture: %w", err)
	}
	if len(pcm) == 0 {
		return "", ErrNoSpeech
	}

	log.Debug("Recorded", "samples", len(pcm))

	text, err := r.transcriber.Transcribe(ctx, pcm)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrNoSpeech
	}

	log.Info("Transcribed", "text", text)
	return text, nil
}
