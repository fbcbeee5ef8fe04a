package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"ivr/internal/speech"
)

type ssmlVoice struct {
	Name string `xml:"name,attr"`
	Text string `xml:",chardata"`
}

type ssmlSpeak struct {
	XMLName xml.Name  `xml:"http://www.w3.org/2001/10/synthesis speak"`
	Version string    `xml:"version,attr"`
	Lang    string    `xml:"http://www.w3.org/XML/1998/namespace lang,attr"`
	Voice   ssmlVoice `xml:"voice"`
}

// SSML renders text for the configured voice. Text is escaped.
func (c *Client) SSML(text string) ([]byte, error) {
	return xml.Marshal(ssmlSpeak{
		Version: "1.0",
		Lang:    c.cfg.Language,
		Voice:   ssmlVoice{Name: c.cfg.Voice, Text: text},
	})
}

// Synthesize implements speech.AudioSynthesizer. The clip is a RIFF WAV in
// the configured output format.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	body, err := c.SSML(text)
	if err != nil {
		return nil, fmt.Errorf("ssml: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TTSEndpoint+"/cognitiveservices/v1", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", c.cfg.OutputFormat)

	clip, err := c.do("tts", req)
	if err != nil {
		return nil, err
	}
	if len(clip) == 0 {
		return nil, errors.New("azure tts: empty audio")
	}
	return clip, nil
}

type voiceInfo struct {
	ShortName string `json:"ShortName"`
	Locale    string `json:"Locale"`
}

// Verify checks the key against the voice list and that the configured voice
// exists. Any failure here is fatal: the session cannot speak.
func (c *Client) Verify(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.TTSEndpoint+"/cognitiveservices/voices/list", nil)
	if err != nil {
		return err
	}

	body, err := c.do("voices", req)
	if err != nil {
		return fmt.Errorf("list voices: %w", err)
	}

	var voices []voiceInfo
	if err := json.Unmarshal(body, &voices); err != nil {
		return fmt.Errorf("parse voices: %w", err)
	}

	for _, v := range voices {
		if strings.EqualFold(v.ShortName, c.cfg.Voice) {
			return nil
		}
	}
	return fmt.Errorf("voice %q not offered in region %q: %w", c.cfg.Voice, c.cfg.Region, speech.ErrFatal)
}

var _ speech.AudioSynthesizer = (*Client)(nil)
