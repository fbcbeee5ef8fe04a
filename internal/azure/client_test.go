package azure

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ivr/internal/speech"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{
		Key:         "secret",
		Region:      "brazilsouth",
		TTSEndpoint: srv.URL,
		STTEndpoint: srv.URL,
		HTTPClient:  srv.Client(),
	})
	require.NoError(t, err)
	return c
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Config{Region: "eastus"})
	assert.ErrorIs(t, err, speech.ErrFatal)

	_, err = NewClient(Config{Key: "k"})
	assert.ErrorIs(t, err, speech.ErrFatal)

	c, err := NewClient(Config{Key: "k", Region: "eastus"})
	require.NoError(t, err)
	assert.Equal(t, DefaultVoice, c.Voice())
	assert.Equal(t, "https://eastus.tts.speech.microsoft.com", c.cfg.TTSEndpoint)
	assert.Equal(t, "https://eastus.stt.speech.microsoft.com", c.cfg.STTEndpoint)
}

func TestSSML_EscapesText(t *testing.T) {
	c, err := NewClient(Config{Key: "k", Region: "eastus"})
	require.NoError(t, err)

	out, err := c.SSML(`Saldo < 10 & "ok"`)
	require.NoError(t, err)

	s := string(out)
	assert.True(t, strings.HasPrefix(s, "<speak "), s)
	assert.Contains(t, s, `version="1.0"`)
	assert.Contains(t, s, `xmlns="http://www.w3.org/2001/10/synthesis"`)
	assert.Contains(t, s, `xml:lang="pt-BR"`)
	assert.Contains(t, s, `<voice name="pt-BR-LeticiaNeural">`)
	assert.Contains(t, s, "Saldo &lt; 10 &amp; &#34;ok&#34;")
}

func TestSynthesize(t *testing.T) {
	wav := []byte("RIFF\x00\x00\x00\x00WAVEfmt ")

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/cognitiveservices/v1", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("Ocp-Apim-Subscription-Key"))
		assert.Equal(t, "application/ssml+xml", r.Header.Get("Content-Type"))
		assert.Equal(t, DefaultFormat, r.Header.Get("X-Microsoft-OutputFormat"))

		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), "Bem-vindo")

		w.Header().Set("Content-Type", "audio/x-wav")
		_, _ = w.Write(wav)
	})

	clip, err := c.Synthesize(context.Background(), "Bem-vindo")
	require.NoError(t, err)
	assert.Equal(t, wav, clip)
}

func TestSynthesize_Unauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid subscription key", http.StatusUnauthorized)
	})

	_, err := c.Synthesize(context.Background(), "oi")
	require.Error(t, err)
	assert.ErrorIs(t, err, speech.ErrFatal)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "tts", apiErr.Op)
}

func TestSynthesize_ServerErrorIsNotFatal(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.Synthesize(context.Background(), "oi")
	require.Error(t, err)
	assert.NotErrorIs(t, err, speech.ErrFatal)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	for i := 0; i < 5; i++ {
		_, err := c.Synthesize(context.Background(), "oi")
		require.Error(t, err)
		assert.NotErrorIs(t, err, speech.ErrUnavailable)
	}

	_, err := c.Synthesize(context.Background(), "oi")
	assert.ErrorIs(t, err, speech.ErrUnavailable)
	assert.Equal(t, int32(5), calls.Load())
}

// slowServer answers recognition requests after delay, or gives up when the
// client goes away.
func slowServer(t *testing.T, delay time.Duration) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
		_, _ = io.WriteString(w, `{"RecognitionStatus":"Success","DisplayText":"sair"}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCallerDeadlineDoesNotTripBreaker(t *testing.T) {
	srv := slowServer(t, 200*time.Millisecond)
	c, err := NewClient(Config{
		Key:         "secret",
		Region:      "brazilsouth",
		TTSEndpoint: srv.URL,
		STTEndpoint: srv.URL,
		HTTPClient:  srv.Client(),
	})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		_, err := c.RecognizeWAV(ctx, []byte("RIFF"))
		cancel()
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	}

	text, err := c.RecognizeWAV(context.Background(), []byte("RIFF"))
	require.NoError(t, err)
	assert.Equal(t, "sair", text)
}

func TestClientTimeoutTripsBreaker(t *testing.T) {
	srv := slowServer(t, 200*time.Millisecond)
	hc := srv.Client()
	hc.Timeout = 10 * time.Millisecond

	c, err := NewClient(Config{
		Key:         "secret",
		Region:      "brazilsouth",
		TTSEndpoint: srv.URL,
		STTEndpoint: srv.URL,
		HTTPClient:  hc,
	})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := c.RecognizeWAV(context.Background(), []byte("RIFF"))
		require.Error(t, err)
		assert.NotErrorIs(t, err, speech.ErrUnavailable)
	}

	_, err = c.RecognizeWAV(context.Background(), []byte("RIFF"))
	assert.ErrorIs(t, err, speech.ErrUnavailable)
}

func TestRecognize(t *testing.T) {
	tests := []struct {
		name    string
		result  recognitionResult
		want    string
		wantErr error
	}{
		{"success", recognitionResult{RecognitionStatus: "Success", DisplayText: "Quero ver meu saldo."}, "Quero ver meu saldo.", nil},
		{"no match", recognitionResult{RecognitionStatus: "NoMatch"}, "", speech.ErrNoSpeech},
		{"silence", recognitionResult{RecognitionStatus: "InitialSilenceTimeout"}, "", speech.ErrNoSpeech},
		{"empty success", recognitionResult{RecognitionStatus: "Success"}, "", speech.ErrNoSpeech},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, sttPath, r.URL.Path)
				assert.Equal(t, "pt-BR", r.URL.Query().Get("language"))
				assert.Equal(t, "simple", r.URL.Query().Get("format"))
				assert.Equal(t, "audio/wav; codecs=audio/pcm; samplerate=16000", r.Header.Get("Content-Type"))

				body, _ := io.ReadAll(r.Body)
				assert.True(t, strings.HasPrefix(string(body), "RIFF"))

				_ = json.NewEncoder(w).Encode(tt.result)
			})

			text, err := c.Transcribe(context.Background(), []float32{0.1, -0.1, 0.2})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, text)
		})
	}
}

func TestRecognize_UnknownStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"RecognitionStatus":"Error"}`)
	})

	_, err := c.RecognizeWAV(context.Background(), []byte("RIFF"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, speech.ErrNoSpeech)
}

func TestNoSpeechDoesNotTripBreaker(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"RecognitionStatus":"NoMatch"}`)
	})

	for i := 0; i < 10; i++ {
		_, err := c.RecognizeWAV(context.Background(), []byte("RIFF"))
		assert.ErrorIs(t, err, speech.ErrNoSpeech)
	}
}

func TestVerify(t *testing.T) {
	voices := `[{"ShortName":"en-US-AvaNeural","Locale":"en-US"},{"ShortName":"pt-BR-LeticiaNeural","Locale":"pt-BR"}]`

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/cognitiveservices/voices/list", r.URL.Path)
		_, _ = io.WriteString(w, voices)
	})
	require.NoError(t, c.Verify(context.Background()))

	c.cfg.Voice = "pt-BR-Missing"
	assert.ErrorIs(t, c.Verify(context.Background()), speech.ErrFatal)
}

func TestVerify_Forbidden(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	assert.ErrorIs(t, c.Verify(context.Background()), speech.ErrFatal)
}
