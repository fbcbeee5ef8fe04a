package speech

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	log "log/slog"
	"path"
	"regexp"
	"strings"
)

var unsafeKeyRe = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// CachedSynthesizer plays prompts through a Player, synthesizing each one at
// most once per (voice, text) when a Cache is set.
type CachedSynthesizer struct {
	backend AudioSynthesizer
	player  Player
	cache   Cache
	voice   string
}

// NewCachedSynthesizer builds a synthesizer. cache may be nil.
func NewCachedSynthesizer(backend AudioSynthesizer, player Player, cache Cache, voice string) *CachedSynthesizer {
	return &CachedSynthesizer{
		backend: backend,
		player:  player,
		cache:   cache,
		voice:   voice,
	}
}

func (s *CachedSynthesizer) Speak(ctx context.Context, p Prompt) error {
	if p.Text == "" {
		return nil
	}

	key := CacheKey(p, s.voice)

	if s.cache != nil {
		clip, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			log.Warn("Audio cache read failed", "key", key, "err", err)
		}
		if ok {
			log.Debug("Using cached audio", "key", key)
			return s.play(ctx, clip)
		}
	}

	clip, err := s.backend.Synthesize(ctx, p.Text)
	if err != nil {
		return fmt.Errorf("synthesize %q: %w", p.ID, err)
	}

	log.Info("TTS", "id", p.ID, "text", p.Text)

	if s.cache != nil {
		if err := s.cache.Put(ctx, key, clip); err != nil {
			log.Warn("Audio cache write failed", "key", key, "err", err)
		}
	}

	return s.play(ctx, clip)
}

func (s *CachedSynthesizer) play(ctx context.Context, clip []byte) error {
	if err := s.player.Play(ctx, clip); err != nil {
		return fmt.Errorf("play: %w", err)
	}
	return nil
}

// CacheKey names a prompt's clip after its Audio hint (extension dropped) or
// its ID. The hash part changes whenever the text or the voice does, so edited
// messages are never served stale audio.
func CacheKey(p Prompt, voice string) string {
	sum := sha256.Sum256([]byte(voice + "\x00" + p.Text))
	name := p.ID
	if p.Audio != "" {
		name = strings.TrimSuffix(path.Base(p.Audio), path.Ext(p.Audio))
	}
	id := unsafeKeyRe.ReplaceAllString(name, "_")
	if id == "" {
		id = "prompt"
	}
	return id + "-" + hex.EncodeToString(sum[:4])
}
