// Package tts is the offline synthesizer: espeak-ng speaking straight to the
// default output device.
package tts

/*
#cgo LDFLAGS: -lespeak-ng
#include <stdlib.h>
#include <string.h>
#include <espeak-ng/speak_lib.h>

static int
espeak_open(const char *lang, int rate)
{
	if (espeak_Initialize(AUDIO_OUTPUT_SYNCH_PLAYBACK, 500, NULL, 0) < 0)
	{ return -1; }

	espeak_VOICE specs;
	memset(&specs, 0, sizeof(specs));
	specs.languages = lang;
	if (espeak_SetVoiceByProperties(&specs) != EE_OK)
	{ return -2; }

	if (rate > 0)
	{ espeak_SetParameter(espeakRATE, rate, 0); }

	return 0;
}

static int
espeak_say(const char *text)
{
	if (!text)
	{ return -1; }

	if (espeak_Synth(text, strlen(text) + 1, 0, POS_CHARACTER, 0, espeakCHARS_AUTO, NULL, NULL) != EE_OK)
	{ return -2; }

	espeak_Synchronize();
	return 0;
}
*/
import "C"

import (
	"context"
	"fmt"
	log "log/slog"
	"sync"
	"unsafe"

	"ivr/internal/speech"
)

// Espeak implements speech.Synthesizer. The library keeps global state, so
// only one instance should be open at a time.
type Espeak struct {
	mu sync.Mutex
}

// NewEspeak opens espeak-ng with a voice for lang (e.g. "pt-br"). rate is
// words per minute; zero keeps the library default.
func NewEspeak(lang string, rate int) (*Espeak, error) {
	clang := C.CString(lang)
	defer C.free(unsafe.Pointer(clang))

	if rc := C.espeak_open(clang, C.int(rate)); rc != 0 {
		return nil, fmt.Errorf("espeak_open %q failed: %d", lang, int(rc))
	}

	log.Debug("Loaded espeak", "lang", lang, "rate", rate)
	return &Espeak{}, nil
}

func (e *Espeak) Speak(ctx context.Context, p speech.Prompt) error {
	if p.Text == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ctext := C.CString(p.Text)
	defer C.free(unsafe.Pointer(ctext))

	if rc := C.espeak_say(ctext); rc != 0 {
		return fmt.Errorf("espeak_say %q failed: %d", p.ID, int(rc))
	}

	log.Info("TTS", "id", p.ID, "text", p.Text)
	return nil
}

func (e *Espeak) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	C.espeak_Terminate()
	return nil
}
