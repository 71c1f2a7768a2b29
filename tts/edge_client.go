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
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/aloudlabs/aloud-tts/internal/logging"
)

// DefaultEdgeVoice is used when no voice metadata has been set.
const DefaultEdgeVoice = "en-US-AriaNeural"

// EdgeClient bridges a pull-based chunk provider into AudioStream sessions.
// Chunk consumption is lazy: nothing is pulled from the provider until the
// first data listener registers on the returned stream.
type EdgeClient struct {
	provider ChunkProvider

	mu     sync.RWMutex
	voice  string
	format string
}

// NewEdgeClient creates a client backed by the given chunk provider.
func NewEdgeClient(provider ChunkProvider, voice string) *EdgeClient {
	return &EdgeClient{provider: provider, voice: voice}
}

// SetMetadata records the voice and output format for later Stream calls.
// The voice is never validated against the provider's catalog.
func (c *EdgeClient) SetMetadata(voice, format string) error {
	c.mu.Lock()
	c.voice = voice
	c.format = format
	c.mu.Unlock()
	return nil
}

// Stream constructs one synthesis session. The provider request is built
// synchronously; if the provider rejects the prosody options, one fallback
// attempt is made with voice-only options before the error surfaces to the
// caller. The returned stream stays idle until a data listener registers.
func (c *EdgeClient) Stream(text string, prosody *ProsodyOptions) (*AudioStream, error) {
	c.mu.RLock()
	voice, format := c.voice, c.format
	c.mu.RUnlock()
	if voice == "" {
		voice = DefaultEdgeVoice
	}

	opts := SpeechOptions{Voice: voice, Format: format}
	if prosody != nil && prosody.Rate != 0 {
		if pct, ok := ratePercent(prosody.Rate); ok {
			opts.Rate = pct
		}
	}

	ctx := context.Background()
	chunks, err := c.provider.Synthesize(ctx, text, opts)
	if err != nil {
		// One retry with voice-only options; some providers reject
		// prosody shapes they do not support.
		logging.LogWarn("provider rejected synthesis options, retrying voice-only",
			zap.String("provider", c.provider.Name()),
			zap.Error(err),
		)
		chunks, err = c.provider.Synthesize(ctx, text, SpeechOptions{Voice: voice})
		if err != nil {
			return nil, newSynthesisError(c.provider.Name(), "synthesis request rejected", err)
		}
	}

	logging.LogTTSOperation("synthesis_start",
		zap.String("provider", c.provider.Name()),
		zap.String("voice", voice),
		zap.Int("text_length", len(text)),
	)

	stream := newAudioStream()
	stream.armStart(func() {
		c.pump(ctx, chunks, stream)
	})
	return stream, nil
}

// pump drives the chunk sequence into the stream. It forwards audio-kind
// chunks only; boundary and metadata chunks are dropped. Exhaustion emits
// end; a pull failure emits error with no trailing end.
func (c *EdgeClient) pump(ctx context.Context, chunks ChunkStream, stream *AudioStream) {
	name := c.provider.Name()
	for {
		chunk, err := chunks.Next(ctx)
		if errors.Is(err, io.EOF) {
			logging.LogStreamEvent(name, "end")
			stream.emitEnd()
			return
		}
		if err != nil {
			logging.LogError(err, "chunk pull failed", zap.String("provider", name))
			stream.emitError(newSynthesisError(name, "chunk pull failed", err))
			return
		}

		if chunk.Kind != ChunkKindAudio {
			continue
		}

		payload, ok := decodePayload(chunk.Payload)
		if !ok {
			// Degrade to a zero-length chunk rather than failing the
			// whole stream over one odd payload.
			logging.LogWarn("unrecognized chunk payload shape",
				zap.String("provider", name),
				zap.String("payload_type", fmt.Sprintf("%T", chunk.Payload)),
			)
			stream.emitData([]byte{})
			continue
		}
		if len(payload) == 0 {
			continue
		}
		stream.emitData(payload)
	}
}

// decodePayload normalizes the payload representations providers are known
// to produce: native byte slices, raw JSON, and base64-encoded text.
// Returns ok=false for shapes it cannot interpret.
func decodePayload(payload any) ([]byte, bool) {
	switch v := payload.(type) {
	case []byte:
		return v, true
	case json.RawMessage:
		return []byte(v), true
	case string:
		decoded, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, false
		}
		return decoded, true
	default:
		return nil, false
	}
}
