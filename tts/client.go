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
	"strings"

	"github.com/aloudlabs/aloud-tts/config"
)

// Client is the uniform contract exposed to the host playback pipeline.
// SetMetadata and Stream are expected to be sequenced by the caller;
// metadata is read as a snapshot when Stream is called.
type Client interface {
	// SetMetadata records the voice and audio format used by later
	// Stream calls. Neither value is validated against a catalog.
	SetMetadata(voice, format string) error

	// Stream starts one synthesis session for the given text and returns
	// its event stream. Configuration problems surface synchronously;
	// streaming problems arrive as error events on the returned stream.
	Stream(text string, prosody *ProsodyOptions) (*AudioStream, error)
}

// NewClient constructs the backend selected by the configuration. The
// Deepgram engine yields a DeepgramClient; anything else yields an
// EdgeClient backed by the first chunk provider that probes successfully.
// ErrNoProvider is returned when no provider can be constructed at all.
func NewClient(cfg config.TTSConfig) (Client, error) {
	if cfg.Engine == config.EngineDeepgram {
		return NewDeepgramClient(cfg), nil
	}

	provider, err := resolveProvider()
	if err != nil {
		return nil, err
	}
	return NewEdgeClient(provider, EffectiveVoice(cfg)), nil
}

// EffectiveVoice computes the voice identifier a client built from this
// configuration will speak with: the trimmed Deepgram model (or its fixed
// default) for the Deepgram engine, otherwise the trimmed custom voice
// override, falling back to the selected voice.
func EffectiveVoice(cfg config.TTSConfig) string {
	if cfg.Engine == config.EngineDeepgram {
		if model := strings.TrimSpace(cfg.DeepgramModel); model != "" {
			return model
		}
		return DefaultDeepgramModel
	}

	if voice := strings.TrimSpace(cfg.CustomVoice); voice != "" {
		return voice
	}
	if cfg.SelectedVoice != "" {
		return cfg.SelectedVoice
	}
	return DefaultEdgeVoice
}
