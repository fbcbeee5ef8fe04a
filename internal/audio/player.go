package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"

	"ivr/pkg/pcm"
)

var ErrUnknownFormat = errors.New("unknown audio format")

// Player plays WAV and MP3 clips on the default output device.
type Player struct {
	mu   sync.Mutex
	rate beep.SampleRate
}

func NewPlayer() *Player { return &Player{} }

// Play blocks until the clip finishes. Cancelling ctx stops playback.
func (p *Player) Play(ctx context.Context, clip []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	streamer, format, err := Decode(clip)
	if err != nil {
		return err
	}
	defer streamer.Close()

	if p.rate != format.SampleRate {
		if err := speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10)); err != nil {
			return fmt.Errorf("init speaker: %w", err)
		}
		p.rate = format.SampleRate
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(streamer, beep.Callback(func() {
		close(done)
	})))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	}
}

func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rate != 0 {
		speaker.Close()
		p.rate = 0
	}
}

// Decode sniffs the container of clip and returns a beep stream for it.
func Decode(clip []byte) (beep.StreamSeekCloser, beep.Format, error) {
	switch pcm.Sniff(clip) {
	case "wav":
		s, f, err := wav.Decode(bytes.NewReader(clip))
		if err != nil {
			return nil, beep.Format{}, fmt.Errorf("decode wav: %w", err)
		}
		return s, f, nil
	case "mp3":
		s, f, err := mp3.Decode(io.NopCloser(bytes.NewReader(clip)))
		if err != nil {
			return nil, beep.Format{}, fmt.Errorf("decode mp3: %w", err)
		}
		return s, f, nil
	default:
		return nil, beep.Format{}, ErrUnknownFormat
	}
}
