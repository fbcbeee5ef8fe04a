// Package dialogue runs the voice menu: speak the welcome, then repeat
// speak-menu, listen, match, respond until the caller picks the exit option
// or keeps failing to pick anything.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"time"

	"ivr/internal/menu"
	"ivr/internal/speech"
)

const (
	DefaultMaxAttempts   = 3
	DefaultListenTimeout = 15 * time.Second
)

// Prompt ids used for the system messages.
const (
	PromptWelcome      = "welcome"
	PromptMenu         = "menu"
	PromptUnrecognized = "error"
	PromptFarewell     = "farewell"
	PromptGiveUp       = "give_up"
)

type Config struct {
	Menu     *menu.Menu
	Strategy menu.Strategy

	// MaxAttempts is the number of consecutive unrecognized turns after
	// which the session gives up. Zero means never give up.
	MaxAttempts int

	// ListenTimeout bounds a single listen. Zero means no bound.
	ListenTimeout time.Duration
}

type Session struct {
	cfg      Config
	matcher  *menu.Matcher
	synth    speech.Synthesizer
	rec      speech.Recognizer
	observer Observer

	state  State
	now    func() time.Time
	misses int
	result Result
}

func NewSession(cfg Config, synth speech.Synthesizer, rec speech.Recognizer, observer Observer) (*Session, error) {
	if cfg.Menu == nil {
		return nil, errors.New("nil menu")
	}
	if err := cfg.Menu.Validate(); err != nil {
		return nil, fmt.Errorf("invalid menu: %w", err)
	}
	if cfg.MaxAttempts < 0 {
		return nil, fmt.Errorf("negative max attempts: %d", cfg.MaxAttempts)
	}
	if synth == nil || rec == nil {
		return nil, errors.New("synthesizer and recognizer are required")
	}

	return &Session{
		cfg:      cfg,
		matcher:  menu.NewMatcher(cfg.Menu, cfg.Strategy),
		synth:    synth,
		rec:      rec,
		observer: observer,
		state:    Start,
		now:      time.Now,
	}, nil
}

// State returns the current dialogue state.
func (s *Session) State() State { return s.state }

// Run drives the dialogue until it terminates. The returned error is nil for
// a normal exit or give-up, ctx.Err() on cancellation, and the wrapped
// speech.ErrFatal when a backend reports a configuration problem.
func (s *Session) Run(ctx context.Context) (Result, error) {
	msgs := s.cfg.Menu.Messages

	log.Info("Session started", "options", len(s.cfg.Menu.Options), "strategy", s.cfg.Strategy.String(),
		"max_attempts", s.cfg.MaxAttempts)

	if err := s.speak(ctx, PromptWelcome, msgs.Welcome); err != nil {
		return s.finish(err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return s.finish(err)
		}

		s.state = AwaitingInput
		if err := s.speak(ctx, PromptMenu, msgs.Menu); err != nil {
			return s.finish(err)
		}

		transcript, listenDur, err := s.listen(ctx)
		if err != nil && isTerminal(ctx, err) {
			return s.finish(err)
		}
		s.result.Turns++

		id, ok := s.matcher.Identify(transcript)
		ev := Event{
			Kind:       EventTurn,
			Turn:       s.result.Turns,
			Transcript: transcript,
			OptionID:   id,
			Listen:     listenDur,
		}
		if err != nil {
			ev.Error = err.Error()
		}

		if !ok {
			s.state = Unrecognized
			s.misses++
			s.emit(ev)

			log.Info("Option not recognized", "transcript", transcript, "misses", s.misses)

			if err := s.speak(ctx, PromptUnrecognized, msgs.Unrecognized); err != nil {
				return s.finish(err)
			}

			if s.cfg.MaxAttempts > 0 && s.misses >= s.cfg.MaxAttempts {
				log.Warn("Too many unrecognized turns, giving up", "misses", s.misses)
				if err := s.speak(ctx, PromptGiveUp, msgs.GiveUp); err != nil {
					return s.finish(err)
				}
				s.result.Reason = ReasonMaxAttempts
				return s.finish(nil)
			}
			continue
		}

		s.state = OptionSelected
		s.misses = 0
		s.result.Selected = append(s.result.Selected, id)
		s.emit(ev)

		log.Info("Option selected", "option", id, "transcript", transcript)

		opt, _ := s.cfg.Menu.Option(id)

		if id == s.cfg.Menu.ExitID {
			p := speech.Prompt{ID: id, Text: opt.Prompt, Audio: opt.Audio}
			if p.Text == "" {
				p = speech.Prompt{ID: PromptFarewell, Text: msgs.Farewell}
			}
			if err := s.say(ctx, p); err != nil {
				return s.finish(err)
			}
			s.result.Reason = ReasonExit
			return s.finish(nil)
		}

		if err := s.say(ctx, speech.Prompt{ID: id, Text: opt.Prompt, Audio: opt.Audio}); err != nil {
			return s.finish(err)
		}
	}
}

// speak plays one prompt. Synthesis failures are logged and swallowed; only
// cancellation and fatal configuration errors come back to the caller.
func (s *Session) speak(ctx context.Context, id, text string) error {
	return s.say(ctx, speech.Prompt{ID: id, Text: text})
}

func (s *Session) say(ctx context.Context, p speech.Prompt) error {
	err := s.synth.Speak(ctx, p)
	if err == nil {
		return nil
	}
	if isTerminal(ctx, err) {
		return err
	}
	log.Error("Failed to speak", "prompt", p.ID, "err", err)
	return nil
}

func (s *Session) listen(ctx context.Context) (string, time.Duration, error) {
	lctx := ctx
	if s.cfg.ListenTimeout > 0 {
		var cancel context.CancelFunc
		lctx, cancel = context.WithTimeout(ctx, s.cfg.ListenTimeout)
		defer cancel()
	}

	start := s.now()
	text, err := s.rec.RecognizeOnce(lctx)
	dur := s.now().Sub(start)

	switch {
	case err == nil:
		return text, dur, nil
	case errors.Is(err, speech.ErrNoSpeech):
		log.Info("No speech recognized")
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		log.Warn("Listen timed out", "timeout", s.cfg.ListenTimeout)
	default:
		log.Error("Failed to recognize speech", "err", err)
	}
	return "", dur, err
}

func (s *Session) emit(ev Event) {
	if s.observer == nil {
		return
	}
	ev.State = s.state.String()
	ev.Time = s.now()
	s.observer.Observe(ev)
}

func (s *Session) finish(err error) (Result, error) {
	switch {
	case err == nil:
	case errors.Is(err, speech.ErrFatal):
		s.result.Reason = ReasonFatal
	default:
		s.result.Reason = ReasonCancelled
	}

	s.state = Terminated
	s.result.State = Terminated

	ev := Event{Kind: EventEnd, Turn: s.result.Turns, Reason: s.result.Reason}
	if err != nil {
		ev.Error = err.Error()
	}
	s.emit(ev)

	log.Info("Session finished", "reason", s.result.Reason, "turns", s.result.Turns, "selected", s.result.Selected)

	if err != nil {
		return s.result, fmt.Errorf("session: %w", err)
	}
	return s.result, nil
}

// isTerminal reports whether err must end the session instead of being
// folded into an unrecognized turn.
func isTerminal(ctx context.Context, err error) bool {
	if errors.Is(err, speech.ErrFatal) {
		return true
	}
	return ctx.Err() != nil
}
