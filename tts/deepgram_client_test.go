/*
 * This file is part of Aloud (https://github.com/aloudlabs/aloud-tts).
 * Copyright (C) 2025 Aloud Labs
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package tts

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aloudlabs/aloud-tts/config"
)

// speakRecorder captures the request the client sent and holds the
// response until the test has registered its stream listeners.
type speakRecorder struct {
	mu      sync.Mutex
	method  string
	path    string
	query   map[string]string
	auth    string
	body    deepgramSpeakRequest
	rawBody map[string]any

	proceed chan struct{} // handler blocks here before responding
	status  int
	chunks  [][]byte
}

func newSpeakRecorder(status int, chunks ...[]byte) *speakRecorder {
	return &speakRecorder{
		proceed: make(chan struct{}),
		status:  status,
		chunks:  chunks,
	}
}

func (rec *speakRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)

	rec.mu.Lock()
	rec.method = r.Method
	rec.path = r.URL.Path
	rec.query = map[string]string{}
	for key := range r.URL.Query() {
		rec.query[key] = r.URL.Query().Get(key)
	}
	rec.auth = r.Header.Get("Authorization")
	_ = json.Unmarshal(raw, &rec.body)
	_ = json.Unmarshal(raw, &rec.rawBody)
	rec.mu.Unlock()

	<-rec.proceed

	w.WriteHeader(rec.status)
	flusher, _ := w.(http.Flusher)
	for _, chunk := range rec.chunks {
		_, _ = w.Write(chunk)
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func newTestDeepgramClient(serverURL string, overrides func(*config.TTSConfig)) *DeepgramClient {
	cfg := config.TTSConfig{
		Engine:         config.EngineDeepgram,
		DeepgramAPIKey: "test-key",
		BaseURL:        serverURL,
		Timeout:        5 * time.Second,
	}
	if overrides != nil {
		overrides(&cfg)
	}
	return NewDeepgramClient(cfg)
}

func TestDeepgramClient_MissingKeyFailsSynchronously(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer server.Close()

	client := newTestDeepgramClient(server.URL, func(cfg *config.TTSConfig) {
		cfg.DeepgramAPIKey = "   "
	})

	_, err := client.Stream("hello", nil)
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("Stream() error = %v, want ErrMissingAPIKey", err)
	}
	if requests.Load() != 0 {
		t.Errorf("request went out despite missing credential")
	}
}

func TestDeepgramClient_StreamsResponseBody(t *testing.T) {
	rec := newSpeakRecorder(http.StatusOK, []byte("first"), []byte("second"))
	server := httptest.NewServer(rec)
	defer server.Close()

	client := newTestDeepgramClient(server.URL, nil)
	stream, err := client.Stream("read this aloud", nil)
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	session := collect(stream)
	close(rec.proceed)
	session.wait(t)

	if session.err != nil {
		t.Fatalf("unexpected stream error: %v", session.err)
	}
	var audio []byte
	for _, chunk := range session.chunks {
		audio = append(audio, chunk...)
	}
	if string(audio) != "firstsecond" {
		t.Errorf("reassembled audio = %q, want %q", audio, "firstsecond")
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.method != http.MethodPost {
		t.Errorf("method = %q, want POST", rec.method)
	}
	if rec.path != "/v1/speak" {
		t.Errorf("path = %q, want /v1/speak", rec.path)
	}
	if rec.auth != "Token test-key" {
		t.Errorf("authorization = %q, want token scheme", rec.auth)
	}
	if rec.query["model"] != DefaultDeepgramModel {
		t.Errorf("model = %q, want default %q", rec.query["model"], DefaultDeepgramModel)
	}
	if rec.query["encoding"] != "mp3" {
		t.Errorf("encoding = %q, want mp3", rec.query["encoding"])
	}
	if rec.body.Text != "read this aloud" {
		t.Errorf("body text = %q", rec.body.Text)
	}
}

func TestDeepgramClient_RejectionEmitsErrorThenEnd(t *testing.T) {
	rec := newSpeakRecorder(http.StatusUnauthorized)
	server := httptest.NewServer(rec)
	defer server.Close()

	client := newTestDeepgramClient(server.URL, nil)
	stream, err := client.Stream("hello", nil)
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	var events []string
	var mu sync.Mutex
	done := make(chan struct{})
	stream.OnData(func([]byte) {
		mu.Lock()
		events = append(events, "data")
		mu.Unlock()
	})
	stream.OnError(func(err error) {
		mu.Lock()
		events = append(events, "error")
		mu.Unlock()
	})
	stream.OnEnd(func() {
		mu.Lock()
		events = append(events, "end")
		mu.Unlock()
		close(done)
	})

	close(rec.proceed)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not terminate")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 2 || events[0] != "error" || events[1] != "end" {
		t.Fatalf("events = %v, want [error end]", events)
	}
}

func TestDeepgramClient_RejectionErrorType(t *testing.T) {
	rec := newSpeakRecorder(http.StatusInternalServerError)
	server := httptest.NewServer(rec)
	defer server.Close()

	client := newTestDeepgramClient(server.URL, nil)
	stream, err := client.Stream("hello", nil)
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	errCh := make(chan error, 1)
	stream.OnError(func(err error) { errCh <- err })
	stream.OnData(func([]byte) {})

	close(rec.proceed)
	select {
	case err := <-errCh:
		var synthErr *SynthesisError
		if !errors.As(err, &synthErr) {
			t.Fatalf("error type = %T, want *SynthesisError", err)
		}
		if synthErr.Backend != "deepgram" {
			t.Errorf("backend = %q, want deepgram", synthErr.Backend)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no error event arrived")
	}
}

func TestDeepgramClient_SpeedParameter(t *testing.T) {
	tests := []struct {
		name      string
		prosody   *ProsodyOptions
		wantSpeed float64
		wantSent  bool
	}{
		{name: "faster", prosody: &ProsodyOptions{Rate: 1.5}, wantSpeed: 1.5, wantSent: true},
		{name: "slower", prosody: &ProsodyOptions{Rate: 0.75}, wantSpeed: 0.75, wantSent: true},
		{name: "unmodified omitted", prosody: &ProsodyOptions{Rate: 1.0}, wantSent: false},
		{name: "zero omitted", prosody: &ProsodyOptions{Rate: 0}, wantSent: false},
		{name: "nil prosody omitted", prosody: nil, wantSent: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newSpeakRecorder(http.StatusOK, []byte("audio"))
			server := httptest.NewServer(rec)
			defer server.Close()

			client := newTestDeepgramClient(server.URL, nil)
			stream, err := client.Stream("hello", tt.prosody)
			if err != nil {
				t.Fatalf("Stream() error = %v", err)
			}

			session := collect(stream)
			close(rec.proceed)
			session.wait(t)

			rec.mu.Lock()
			defer rec.mu.Unlock()
			_, sent := rec.rawBody["speed"]
			if sent != tt.wantSent {
				t.Fatalf("speed present = %v, want %v (body %v)", sent, tt.wantSent, rec.rawBody)
			}
			if tt.wantSent && rec.body.Speed != tt.wantSpeed {
				t.Errorf("speed = %v, want %v", rec.body.Speed, tt.wantSpeed)
			}
		})
	}
}

func TestDeepgramClient_SetMetadata(t *testing.T) {
	rec := newSpeakRecorder(http.StatusOK, []byte("audio"))
	server := httptest.NewServer(rec)
	defer server.Close()

	client := newTestDeepgramClient(server.URL, nil)
	if err := client.SetMetadata("aura-luna-en", "wav"); err != nil {
		t.Fatalf("SetMetadata() error = %v", err)
	}
	// A blank voice must not clobber the previous model.
	if err := client.SetMetadata("   ", "wav"); err != nil {
		t.Fatalf("SetMetadata() error = %v", err)
	}

	stream, err := client.Stream("hello", nil)
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	session := collect(stream)
	close(rec.proceed)
	session.wait(t)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.query["model"] != "aura-luna-en" {
		t.Errorf("model = %q, want aura-luna-en", rec.query["model"])
	}
	if rec.query["encoding"] != "linear16" {
		t.Errorf("encoding = %q, want linear16", rec.query["encoding"])
	}
}

func TestNormalizeEncoding(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{format: "", want: "mp3"},
		{format: "mp3", want: "mp3"},
		{format: "audio/mpeg", want: "mp3"},
		{format: "wav", want: "linear16"},
		{format: "audio/wav", want: "linear16"},
		{format: "pcm16", want: "linear16"},
		{format: "LINEAR16", want: "linear16"},
		{format: "ogg", want: "mp3"},
	}

	for _, tt := range tests {
		if got := normalizeEncoding(tt.format); got != tt.want {
			t.Errorf("normalizeEncoding(%q) = %q, want %q", tt.format, got, tt.want)
		}
	}
}
