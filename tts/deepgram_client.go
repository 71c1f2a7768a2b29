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
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aloudlabs/aloud-tts/config"
	"github.com/aloudlabs/aloud-tts/internal/logging"
)

const (
	deepgramSpeakPath = "/v1/speak"

	// DefaultDeepgramModel is used when no model is configured.
	DefaultDeepgramModel = "aura-asteria-en"

	// Encoding tokens accepted by the speak API.
	encodingMP3      = "mp3"
	encodingLinear16 = "linear16"

	defaultDeepgramTimeout = 60 * time.Second

	// speakReadBufferSize is the response body read granularity. Chunk
	// boundaries within one read are whatever the server framed.
	speakReadBufferSize = 4096
)

// deepgramSpeakRequest is the JSON body for the speak endpoint.
type deepgramSpeakRequest struct {
	Text  string  `json:"text"`
	Speed float64 `json:"speed,omitempty"`
}

// DeepgramClient bridges the Deepgram speak API's streamed HTTP response
// into AudioStream sessions. Unlike EdgeClient, consumption is eager: the
// request goes out as soon as Stream returns, listener or not.
type DeepgramClient struct {
	apiKey  string
	baseURL string
	client  *http.Client

	mu       sync.RWMutex
	model    string
	encoding string
}

// NewDeepgramClient creates a Deepgram speak client from host configuration.
func NewDeepgramClient(cfg config.TTSConfig) *DeepgramClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultDeepgramTimeout
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.deepgram.com"
	}

	model := strings.TrimSpace(cfg.DeepgramModel)
	if model == "" {
		model = DefaultDeepgramModel
	}

	return &DeepgramClient{
		apiKey:   cfg.DeepgramAPIKey,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		model:    model,
		encoding: encodingMP3,
	}
}

// SetMetadata records the voice (Deepgram model) and output format. A blank
// or whitespace-only voice leaves the prior value unchanged; the format is
// normalized onto one of the two encodings the speak API accepts.
func (c *DeepgramClient) SetMetadata(voice, format string) error {
	c.mu.Lock()
	if v := strings.TrimSpace(voice); v != "" {
		c.model = v
	}
	c.encoding = normalizeEncoding(format)
	c.mu.Unlock()
	return nil
}

// normalizeEncoding maps free-form format names onto a speak API encoding
// token by substring match, defaulting to mp3.
func normalizeEncoding(format string) string {
	f := strings.ToLower(format)
	if strings.Contains(f, "wav") || strings.Contains(f, "pcm") || strings.Contains(f, "linear") {
		return encodingLinear16
	}
	return encodingMP3
}

// Stream starts one synthesis session. It fails synchronously when no
// credential is configured; otherwise the HTTP request is issued on a
// background goroutine and the stream is returned immediately. A failure
// anywhere in the request/read sequence emits error followed by end.
func (c *DeepgramClient) Stream(text string, prosody *ProsodyOptions) (*AudioStream, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return nil, ErrMissingAPIKey
	}

	c.mu.RLock()
	model, encoding := c.model, c.encoding
	c.mu.RUnlock()
	if model == "" {
		model = DefaultDeepgramModel
	}

	body := deepgramSpeakRequest{Text: text}
	if prosody != nil && prosody.Rate > 0 && prosody.Rate != 1 {
		body.Speed = prosody.Rate
	}

	stream := newAudioStream()
	go c.run(stream, model, encoding, body)
	return stream, nil
}

func (c *DeepgramClient) run(stream *AudioStream, model, encoding string, body deepgramSpeakRequest) {
	payload, err := json.Marshal(body)
	if err != nil {
		c.fail(stream, "failed to marshal speak request", err)
		return
	}

	endpoint := fmt.Sprintf("%s%s?model=%s&encoding=%s",
		c.baseURL, deepgramSpeakPath, url.QueryEscape(model), url.QueryEscape(encoding))

	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		c.fail(stream, "failed to create speak request", err)
		return
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	logging.LogTTSOperation("speak_request",
		zap.String("model", model),
		zap.String("encoding", encoding),
		zap.Int("text_length", len(body.Text)),
		zap.Float64("speed", body.Speed),
	)

	resp, err := c.client.Do(req)
	if err != nil {
		c.fail(stream, "speak request failed", err)
		return
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		logging.LogWarn("speak request rejected",
			zap.Int("status_code", resp.StatusCode),
			zap.String("status", resp.Status),
		)
		c.fail(stream, fmt.Sprintf("speak request failed: %s", resp.Status), nil)
		return
	}

	buf := make([]byte, speakReadBufferSize)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			stream.emitData(chunk)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			c.fail(stream, "reading audio stream failed", err)
			return
		}
	}

	logging.LogStreamEvent("deepgram", "end")
	stream.emitEnd()
}

// fail reports a streaming failure. The speak path always follows error
// with end; consumers waiting on completion are released either way.
func (c *DeepgramClient) fail(stream *AudioStream, message string, cause error) {
	logging.LogError(cause, message, zap.String("backend", "deepgram"))
	stream.emitError(newSynthesisError("deepgram", message, cause))
	stream.emitEnd()
}
