package azure

import (
	"context"
	"encoding/xml"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/koscakluka/ema-assistant/core/audio"
	"github.com/koscakluka/ema-assistant/core/credentials"
	"github.com/koscakluka/ema-assistant/core/texttospeech"
)

type staticTokens struct {
	token string
	err   error
}

func (s staticTokens) Token(context.Context) (string, error) { return s.token, s.err }

func newSpeechServer(t *testing.T, check func(r *http.Request, body string)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if check != nil {
			check(r, string(body))
		}
		_, _ = w.Write(audio.EncodeWAV([]byte{1, 2, 3, 4}, audio.GetDefaultEncodingInfo()))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestSynthesizePostsSSMLAndReturnsClip(t *testing.T) {
	server := newSpeechServer(t, func(r *http.Request, body string) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("expected bearer token, got %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Content-Type") != "application/ssml+xml" {
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
		}
		if r.Header.Get(outputFormatHeader) != "riff-16khz-16bit-mono-pcm" {
			t.Errorf("unexpected output format %q", r.Header.Get(outputFormatHeader))
		}
		if !strings.Contains(body, ">It is 3 PM</voice>") {
			t.Errorf("expected reply text in SSML body, got %q", body)
		}
	})

	client := NewSpeechClient(server.URL, staticTokens{token: "tok"}, WithHTTPClient(server.Client()))
	clip, err := client.Synthesize(context.Background(), "It is 3 PM")
	if err != nil {
		t.Fatalf("expected synthesis to succeed, got %v", err)
	}

	pcm, _, err := clip.PCM()
	if err != nil {
		t.Fatalf("expected playable clip, got %v", err)
	}
	if len(pcm) != 4 {
		t.Fatalf("expected 4 pcm bytes, got %d", len(pcm))
	}
}

func TestSynthesizeEscapesMarkupInReply(t *testing.T) {
	server := newSpeechServer(t, func(r *http.Request, body string) {
		decoder := xml.NewDecoder(strings.NewReader(body))
		for {
			_, err := decoder.Token()
			if err == io.EOF {
				return
			}
			if err != nil {
				t.Errorf("expected well-formed SSML, got %v in %q", err, body)
				return
			}
		}
	})

	client := NewSpeechClient(server.URL, staticTokens{token: "tok"}, WithHTTPClient(server.Client()))
	if _, err := client.Synthesize(context.Background(), "Tom & Jerry <3"); err != nil {
		t.Fatalf("expected synthesis to succeed, got %v", err)
	}
}

func TestSynthesizeEmptyTextStillSendsDocument(t *testing.T) {
	requests := 0
	server := newSpeechServer(t, func(r *http.Request, body string) {
		requests++
		if !strings.HasPrefix(body, "<speak") || !strings.HasSuffix(body, "</speak>") {
			t.Errorf("expected speak document, got %q", body)
		}
	})

	client := NewSpeechClient(server.URL, staticTokens{token: "tok"}, WithHTTPClient(server.Client()))
	if _, err := client.Synthesize(context.Background(), ""); err != nil {
		t.Fatalf("expected empty synthesis to succeed, got %v", err)
	}
	if requests != 1 {
		t.Fatalf("expected one request, got %d", requests)
	}
}

func TestSynthesizeFailsOnNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "throttled", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewSpeechClient(server.URL, staticTokens{token: "tok"}, WithHTTPClient(server.Client()))
	_, err := client.Synthesize(context.Background(), "hello")

	var synthesisErr *texttospeech.SynthesisError
	if !errors.As(err, &synthesisErr) {
		t.Fatalf("expected SynthesisError, got %v", err)
	}
	if synthesisErr.HTTPStatus() != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", synthesisErr.HTTPStatus())
	}
}

func TestSynthesizePropagatesAuthErrors(t *testing.T) {
	client := NewSpeechClient("http://127.0.0.1:0", staticTokens{err: &credentials.AuthError{StatusCode: 403}})
	_, err := client.Synthesize(context.Background(), "hello")

	var authErr *credentials.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %v", err)
	}
}

func TestClipForFormat(t *testing.T) {
	raw, err := clipForFormat("raw-24khz-16bit-mono-pcm", []byte{0, 0})
	if err != nil {
		t.Fatalf("expected raw format to be supported, got %v", err)
	}
	if raw.Container != audio.ContainerRaw || raw.Encoding.SampleRate != 24000 {
		t.Fatalf("expected raw 24kHz clip, got %+v", raw)
	}

	if _, err := clipForFormat("audio-16khz-32kbitrate-mono-mp3", nil); err == nil {
		t.Fatalf("expected mp3 output to be rejected")
	}
}
