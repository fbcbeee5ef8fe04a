// Package menu describes the voice menu: its ordered options, the system
// messages spoken around them, and how a transcript is matched to an option.
package menu

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Option is one selectable branch of the menu.
type Option struct {
	ID       string   `json:"id"`
	Prompt   string   `json:"prompt"`
	Keywords []string `json:"keywords"`

	// Audio names the cached clip of Prompt, e.g. "saldo_response.wav".
	// Empty falls back to ID.
	Audio string `json:"audio,omitempty"`
}

// Messages are the system prompts spoken outside of option responses.
type Messages struct {
	Welcome      string `json:"welcome"`
	Menu         string `json:"menu"`
	Unrecognized string `json:"unrecognized"`
	Farewell     string `json:"farewell"`
	GiveUp       string `json:"give_up"`
}

// Menu is an ordered list of options. Order is priority: when keywords of
// several options appear in one transcript the matching strategy decides,
// and every strategy breaks ties in favour of the option declared first.
type Menu struct {
	Options  []Option `json:"options"`
	ExitID   string   `json:"exit_id"`
	Messages Messages `json:"messages"`
}

// Option returns the option with the given id.
func (m *Menu) Option(id string) (Option, bool) {
	for _, o := range m.Options {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}

// Validate checks ids are unique and non-empty, every option has a keyword
// and the exit option exists.
func (m *Menu) Validate() error {
	if len(m.Options) == 0 {
		return errors.New("menu has no options")
	}

	seen := make(map[string]bool, len(m.Options))
	for i, o := range m.Options {
		if o.ID == "" {
			return fmt.Errorf("option %d: empty id", i)
		}
		if seen[o.ID] {
			return fmt.Errorf("option %q: duplicate id", o.ID)
		}
		seen[o.ID] = true

		n := 0
		for _, k := range o.Keywords {
			if strings.TrimSpace(k) != "" {
				n++
			}
		}
		if n == 0 {
			return fmt.Errorf("option %q: no keywords", o.ID)
		}
	}

	if m.ExitID == "" {
		return errors.New("menu has no exit option")
	}
	if !seen[m.ExitID] {
		return fmt.Errorf("exit option %q is not in the menu", m.ExitID)
	}
	if m.Messages.Menu == "" {
		return errors.New("menu prompt is empty")
	}

	return nil
}

// Load reads a JSON menu from path. Missing messages are filled from Default.
func Load(path string) (*Menu, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read menu: %w", err)
	}

	var m Menu
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse menu %s: %w", path, err)
	}

	def := Default().Messages
	fill := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	fill(&m.Messages.Welcome, def.Welcome)
	fill(&m.Messages.Unrecognized, def.Unrecognized)
	fill(&m.Messages.Farewell, def.Farewell)
	fill(&m.Messages.GiveUp, def.GiveUp)

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("menu %s: %w", path, err)
	}

	return &m, nil
}
