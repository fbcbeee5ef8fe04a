package menu

import (
	"fmt"
	"slices"
	"strings"
)

// Strategy picks one option when keywords of several options appear in the
// same transcript.
type Strategy int

const (
	// FirstMatch returns the first declared option with any keyword hit.
	FirstMatch Strategy = iota
	// LongestMatch returns the option whose longest hit keyword is longest.
	LongestMatch
	// MostKeywords returns the option with the most distinct keyword hits.
	MostKeywords
)

func (s Strategy) String() string {
	switch s {
	case FirstMatch:
		return "first"
	case LongestMatch:
		return "longest"
	case MostKeywords:
		return "most"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "first":
		return FirstMatch, nil
	case "longest":
		return LongestMatch, nil
	case "most":
		return MostKeywords, nil
	default:
		return 0, fmt.Errorf("unknown match strategy %q", s)
	}
}

type entry struct {
	id       string
	keywords []string
}

// Matcher maps transcripts to option ids. It holds a lowercased copy of the
// menu keywords and is safe for concurrent use.
type Matcher struct {
	entries  []entry
	strategy Strategy
}

func NewMatcher(m *Menu, strategy Strategy) *Matcher {
	entries := make([]entry, 0, len(m.Options))
	for _, o := range m.Options {
		e := entry{id: o.ID}
		for _, k := range o.Keywords {
			k = strings.ToLower(strings.TrimSpace(k))
			if k != "" && !slices.Contains(e.keywords, k) {
				e.keywords = append(e.keywords, k)
			}
		}
		entries = append(entries, e)
	}
	return &Matcher{entries: entries, strategy: strategy}
}

// Identify returns the id of the option selected by transcript. Matching is
// plain substring containment, so short keywords like "um" also hit inside
// longer words ("algum"); keep keyword lists specific enough for the menu.
func (m *Matcher) Identify(transcript string) (string, bool) {
	text := strings.ToLower(strings.TrimSpace(transcript))
	if text == "" {
		return "", false
	}

	best, bestScore := -1, 0
	for i, e := range m.entries {
		score := m.score(e, text)
		if score == 0 {
			continue
		}
		if m.strategy == FirstMatch {
			return e.id, true
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}

	if best < 0 {
		return "", false
	}
	return m.entries[best].id, true
}

func (m *Matcher) score(e entry, text string) int {
	score := 0
	for _, k := range e.keywords {
		if !strings.Contains(text, k) {
			continue
		}
		switch m.strategy {
		case FirstMatch:
			return 1
		case LongestMatch:
			score = max(score, len([]rune(k)))
		case MostKeywords:
			score++
		}
	}
	return score
}
