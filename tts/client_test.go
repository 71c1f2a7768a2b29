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
	"errors"
	"testing"

	"github.com/aloudlabs/aloud-tts/config"
)

func TestEffectiveVoice(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.TTSConfig
		want string
	}{
		{
			name: "deepgram uses configured model",
			cfg:  config.TTSConfig{Engine: config.EngineDeepgram, DeepgramModel: "aura-orion-en"},
			want: "aura-orion-en",
		},
		{
			name: "deepgram trims the model",
			cfg:  config.TTSConfig{Engine: config.EngineDeepgram, DeepgramModel: "  aura-orion-en  "},
			want: "aura-orion-en",
		},
		{
			name: "deepgram falls back to the default model",
			cfg:  config.TTSConfig{Engine: config.EngineDeepgram},
			want: DefaultDeepgramModel,
		},
		{
			name: "deepgram ignores edge voice fields",
			cfg: config.TTSConfig{
				Engine:        config.EngineDeepgram,
				SelectedVoice: "en-GB-SoniaNeural",
				CustomVoice:   "en-GB-RyanNeural",
			},
			want: DefaultDeepgramModel,
		},
		{
			name: "custom voice wins over selected",
			cfg: config.TTSConfig{
				Engine:        config.EngineEdge,
				SelectedVoice: "en-GB-SoniaNeural",
				CustomVoice:   "de-DE-KatjaNeural",
			},
			want: "de-DE-KatjaNeural",
		},
		{
			name: "whitespace custom voice is ignored",
			cfg: config.TTSConfig{
				Engine:        config.EngineEdge,
				SelectedVoice: "en-GB-SoniaNeural",
				CustomVoice:   "   ",
			},
			want: "en-GB-SoniaNeural",
		},
		{
			name: "selected voice alone",
			cfg:  config.TTSConfig{Engine: config.EngineEdge, SelectedVoice: "fr-FR-DeniseNeural"},
			want: "fr-FR-DeniseNeural",
		},
		{
			name: "empty config falls back to the default edge voice",
			cfg:  config.TTSConfig{Engine: config.EngineEdge},
			want: DefaultEdgeVoice,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EffectiveVoice(tt.cfg); got != tt.want {
				t.Errorf("EffectiveVoice() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewClient_SelectsBackend(t *testing.T) {
	deepgram, err := NewClient(config.TTSConfig{
		Engine:         config.EngineDeepgram,
		DeepgramAPIKey: "key",
	})
	if err != nil {
		t.Fatalf("NewClient(deepgram) error = %v", err)
	}
	if _, ok := deepgram.(*DeepgramClient); !ok {
		t.Errorf("deepgram engine yielded %T, want *DeepgramClient", deepgram)
	}

	edgeClient, err := NewClient(config.TTSConfig{Engine: config.EngineEdge})
	if err != nil {
		t.Fatalf("NewClient(edge) error = %v", err)
	}
	if _, ok := edgeClient.(*EdgeClient); !ok {
		t.Errorf("edge engine yielded %T, want *EdgeClient", edgeClient)
	}
}

func TestProbeProviders_FirstSuccessWins(t *testing.T) {
	first := &fakeProvider{stream: &fakeChunkStream{}}
	second := &fakeProvider{stream: &fakeChunkStream{}}

	p, err := probeProviders([]ProviderFactory{
		func() (ChunkProvider, error) { return first, nil },
		func() (ChunkProvider, error) { return second, nil },
	})
	if err != nil {
		t.Fatalf("probeProviders() error = %v", err)
	}
	if p != first {
		t.Errorf("probe selected the wrong provider")
	}
}

func TestProbeProviders_SkipsFailedFactories(t *testing.T) {
	working := &fakeProvider{stream: &fakeChunkStream{}}

	p, err := probeProviders([]ProviderFactory{
		func() (ChunkProvider, error) { return nil, errors.New("not available") },
		func() (ChunkProvider, error) { return nil, errors.New("also broken") },
		func() (ChunkProvider, error) { return working, nil },
	})
	if err != nil {
		t.Fatalf("probeProviders() error = %v", err)
	}
	if p != working {
		t.Errorf("probe did not skip to the working factory")
	}
}

func TestProbeProviders_AllFail(t *testing.T) {
	_, err := probeProviders([]ProviderFactory{
		func() (ChunkProvider, error) { return nil, errors.New("broken") },
	})
	if !errors.Is(err, ErrNoProvider) {
		t.Errorf("probeProviders() error = %v, want ErrNoProvider", err)
	}
}
