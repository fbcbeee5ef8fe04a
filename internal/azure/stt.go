package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	log "log/slog"
	"net/http"
	"net/url"

	"ivr/internal/speech"
	"ivr/pkg/pcm"
)

const sttPath = "/speech/recognition/conversation/cognitiveservices/v1"

type recognitionResult struct {
	RecognitionStatus string `json:"RecognitionStatus"`
	DisplayText       string `json:"DisplayText"`
	Offset            int64  `json:"Offset"`
	Duration          int64  `json:"Duration"`
}

// Transcribe implements speech.Transcriber using the short-audio endpoint.
func (c *Client) Transcribe(ctx context.Context, pcm16k []float32) (string, error) {
	clip, err := pcm.EncodeWAV(pcm16k, pcm.SampleRate)
	if err != nil {
		return "", err
	}
	return c.RecognizeWAV(ctx, clip)
}

// RecognizeWAV sends a 16 kHz mono 16-bit WAV clip for recognition.
func (c *Client) RecognizeWAV(ctx context.Context, clip []byte) (string, error) {
	q := url.Values{}
	q.Set("language", c.cfg.Language)
	q.Set("format", "simple")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.STTEndpoint+sttPath+"?"+q.Encode(), bytes.NewReader(clip))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", fmt.Sprintf("audio/wav; codecs=audio/pcm; samplerate=%d", pcm.SampleRate))
	req.Header.Set("Accept", "application/json")

	body, err := c.do("stt", req)
	if err != nil {
		return "", err
	}

	var res recognitionResult
	if err := json.Unmarshal(body, &res); err != nil {
		return "", fmt.Errorf("azure stt: parse result: %w", err)
	}

	switch res.RecognitionStatus {
	case "Success":
		if res.DisplayText == "" {
			return "", speech.ErrNoSpeech
		}
		return res.DisplayText, nil
	case "NoMatch", "InitialSilenceTimeout", "BabbleTimeout":
		log.Debug("Azure recognized nothing", "status", res.RecognitionStatus)
		return "", speech.ErrNoSpeech
	default:
		return "", fmt.Errorf("azure stt: recognition status %q", res.RecognitionStatus)
	}
}

var _ speech.Transcriber = (*Client)(nil)
