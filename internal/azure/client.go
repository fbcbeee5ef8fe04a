// Package azure talks to the Azure Speech REST API: text-to-speech with SSML,
// short-audio speech-to-text and the voice list used to validate credentials
// at startup.
package azure

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	log "log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"ivr/internal/speech"
)

const (
	DefaultVoice    = "pt-BR-LeticiaNeural"
	DefaultLanguage = "pt-BR"
	DefaultFormat   = "riff-24khz-16bit-mono-pcm"

	userAgent = "ivr-menu"
)

type Config struct {
	Key    string
	Region string

	Voice        string
	Language     string
	OutputFormat string

	// TTSEndpoint and STTEndpoint override the regional hosts, e.g. for a
	// private endpoint. Both are base URLs without a trailing slash.
	TTSEndpoint string
	STTEndpoint string

	HTTPClient *http.Client
}

// APIError is a non-2xx answer from the service.
type APIError struct {
	Op     string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("azure %s: status %d: %s", e.Op, e.Status, e.Body)
}

// Unwrap classifies auth failures as fatal so the dialogue stops instead of
// re-prompting forever with a dead key.
func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden {
		return speech.ErrFatal
	}
	return nil
}

// errCallerDone marks a request abandoned because its own context ended.
var errCallerDone = errors.New("request abandoned by caller")

type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.Key == "" {
		return nil, fmt.Errorf("missing subscription key: %w", speech.ErrFatal)
	}
	if cfg.Region == "" && (cfg.TTSEndpoint == "" || cfg.STTEndpoint == "") {
		return nil, fmt.Errorf("missing region: %w", speech.ErrFatal)
	}
	if cfg.Voice == "" {
		cfg.Voice = DefaultVoice
	}
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = DefaultFormat
	}
	if cfg.TTSEndpoint == "" {
		cfg.TTSEndpoint = fmt.Sprintf("https://%s.tts.speech.microsoft.com", cfg.Region)
	}
	if cfg.STTEndpoint == "" {
		cfg.STTEndpoint = fmt.Sprintf("https://%s.stt.speech.microsoft.com", cfg.Region)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}

	c := &Client{cfg: cfg, http: hc}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "azure-speech",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// No speech or a caller that gave up says nothing about the service.
			return err == nil ||
				errors.Is(err, speech.ErrNoSpeech) ||
				errors.Is(err, errCallerDone)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})

	return c, nil
}

func (c *Client) Voice() string { return c.cfg.Voice }

// do sends req through the breaker and returns the body of a 2xx response.
func (c *Client) do(op string, req *http.Request) ([]byte, error) {
	req.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.Key)
	req.Header.Set("User-Agent", userAgent)

	out, err := c.breaker.Execute(func() (interface{}, error) {
		body, err := c.roundTrip(op, req)
		// http.Client.Timeout leaves the request context alone, so only the
		// caller's own cancel or deadline is marked here.
		if err != nil && req.Context().Err() != nil {
			return nil, fmt.Errorf("%w: %w", errCallerDone, err)
		}
		return body, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("azure %s: %w: %v", op, speech.ErrUnavailable, err)
	}
	if err != nil {
		return nil, err
	}
	return out.([]byte), nil
}

func (c *Client) roundTrip(op string, req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("azure %s: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("azure %s: read body: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Op: op, Status: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	}
	return body, nil
}
