package audio

import (
	"context"
	"time"

	"github.com/gordonklaus/portaudio"

	"ivr/pkg/pcm"
)

type RecorderOptions struct {
	SilenceThreshold float64       // frame RMS above this counts as speech
	SilenceDuration  time.Duration // trailing silence that ends an utterance
	MaxLength        time.Duration // hard cap on one capture
}

func DefaultRecorderOptions() RecorderOptions {
	return RecorderOptions{
		SilenceThreshold: 0.015,
		SilenceDuration:  800 * time.Millisecond,
		MaxLength:        10 * time.Second,
	}
}

// Recorder captures one utterance at a time from the default input device.
type Recorder struct {
	opt RecorderOptions
}

func NewRecorder(opt RecorderOptions) *Recorder {
	def := DefaultRecorderOptions()
	if opt.SilenceThreshold <= 0 {
		opt.SilenceThreshold = def.SilenceThreshold
	}
	if opt.SilenceDuration <= 0 {
		opt.SilenceDuration = def.SilenceDuration
	}
	if opt.MaxLength <= 0 {
		opt.MaxLength = def.MaxLength
	}
	return &Recorder{opt: opt}
}

func (r *Recorder) Init() error {
	return portaudio.Initialize()
}

func (r *Recorder) Close() error {
	return portaudio.Terminate()
}

const (
	frameSize = 320 // 20ms at 16 kHz
	frameDur  = 20 * time.Millisecond
)

// Capture records until the speaker pauses, MaxLength passes or ctx is done.
// Leading silence is dropped; a capture with no speech returns nil samples.
func (r *Recorder) Capture(ctx context.Context) ([]float32, error) {
	buf := make([]float32, frameSize)

	stream, err := portaudio.OpenDefaultStream(1, 0, pcm.SampleRate, len(buf), buf)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, err
	}
	defer stream.Stop()

	return r.endpoint(ctx, func() ([]float32, error) {
		if err := stream.Read(); err != nil {
			return nil, err
		}
		return buf, nil
	})
}

// endpoint pulls 20ms frames from read and keeps the utterance between the
// first loud frame and SilenceDuration of trailing quiet.
func (r *Recorder) endpoint(ctx context.Context, read func() ([]float32, error)) ([]float32, error) {
	out := make([]float32, 0, pcm.SampleRate*3)

	var (
		speaking      bool
		silenceFrames int
	)

	maxFrames := int(r.opt.MaxLength / frameDur)
	silenceLimit := int(r.opt.SilenceDuration / frameDur)

	for i := 0; i < maxFrames; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		frame, err := read()
		if err != nil {
			return nil, err
		}

		if pcm.RMS(frame) > r.opt.SilenceThreshold {
			speaking = true
			silenceFrames = 0
			out = append(out, frame...)
			continue
		}

		if speaking {
			silenceFrames++
			if silenceFrames >= silenceLimit {
				break
			}
			out = append(out, frame...)
		}
	}

	if !speaking {
		return nil, nil
	}
	return out, nil
}
