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
	"sync"

	"go.uber.org/zap"

	"github.com/aloudlabs/aloud-tts/edge"
	"github.com/aloudlabs/aloud-tts/internal/logging"
)

// Chunk kinds produced by pull-based providers. Only audio chunks carry
// playable payload; boundary chunks carry timing metadata.
const (
	ChunkKindAudio            = "audio"
	ChunkKindWordBoundary     = "WordBoundary"
	ChunkKindSentenceBoundary = "SentenceBoundary"
)

// Chunk is one unit of provider output. Payload shape is provider-dependent:
// a byte slice, base64-encoded text, or raw JSON. See decodePayload.
type Chunk struct {
	Kind    string
	Payload any
}

// ChunkStream is a pull-based sequence of chunks from one synthesis call.
// Next returns io.EOF once the sequence is exhausted.
type ChunkStream interface {
	Next(ctx context.Context) (Chunk, error)
}

// SpeechOptions is the option shape accepted by chunk providers. Prosody
// fields use the provider's native string encodings (signed percentage
// offsets); a provider may reject option combinations it does not support.
type SpeechOptions struct {
	Voice  string
	Rate   string // e.g. "+20%"
	Pitch  string // e.g. "+0Hz"
	Volume string // e.g. "-10%"
	Format string // provider output format token
}

// ChunkProvider starts pull-based synthesis sessions. Implementations are
// external capability providers; this package never validates voices
// against their catalogs.
type ChunkProvider interface {
	Name() string
	Synthesize(ctx context.Context, text string, opts SpeechOptions) (ChunkStream, error)
}

// ProviderFactory constructs a ChunkProvider. A factory failing is not
// fatal; the next factory in the probe order is tried.
type ProviderFactory func() (ChunkProvider, error)

var (
	providerMu        sync.Mutex
	providerFactories []ProviderFactory

	providerOnce sync.Once
	provider     ChunkProvider
	providerErr  error
)

// RegisterProvider prepends a factory to the ordered probe list. Factories
// registered after the first client construction have no effect; the
// selected provider is process-wide state that is never mutated afterward.
func RegisterProvider(factory ProviderFactory) {
	providerMu.Lock()
	providerFactories = append([]ProviderFactory{factory}, providerFactories...)
	providerMu.Unlock()
}

// resolveProvider probes the registered factories once, in order, and
// caches the first success for the life of the process.
func resolveProvider() (ChunkProvider, error) {
	providerOnce.Do(func() {
		providerMu.Lock()
		factories := append([]ProviderFactory{}, providerFactories...)
		providerMu.Unlock()
		factories = append(factories, defaultProviderFactories()...)

		provider, providerErr = probeProviders(factories)
	})
	return provider, providerErr
}

// probeProviders tries each factory inside its own failure boundary and
// returns the first provider that constructs successfully.
func probeProviders(factories []ProviderFactory) (ChunkProvider, error) {
	for _, factory := range factories {
		p, err := factory()
		if err != nil {
			logging.LogWarn("speech provider probe failed", zap.Error(err))
			continue
		}
		logging.LogTTSOperation("provider_selected", zap.String("provider", p.Name()))
		return p, nil
	}
	return nil, ErrNoProvider
}

func defaultProviderFactories() []ProviderFactory {
	return []ProviderFactory{
		func() (ChunkProvider, error) {
			c, err := edge.NewCommunicator()
			if err != nil {
				return nil, err
			}
			return &edgeProvider{c: c}, nil
		},
		func() (ChunkProvider, error) {
			c, err := edge.NewLegacyCommunicator()
			if err != nil {
				return nil, err
			}
			return &edgeProvider{c: c}, nil
		},
	}
}

// edgeProvider adapts the edge websocket communicator to the ChunkProvider
// contract.
type edgeProvider struct {
	c *edge.Communicator
}

func (p *edgeProvider) Name() string {
	return p.c.Name()
}

func (p *edgeProvider) Synthesize(ctx context.Context, text string, opts SpeechOptions) (ChunkStream, error) {
	reader, err := p.c.Stream(ctx, text, edge.SpeechOptions{
		Voice:        opts.Voice,
		Rate:         opts.Rate,
		Pitch:        opts.Pitch,
		Volume:       opts.Volume,
		OutputFormat: opts.Format,
	})
	if err != nil {
		return nil, err
	}
	return &edgeChunkStream{reader: reader}, nil
}

type edgeChunkStream struct {
	reader *edge.ChunkReader
}

func (s *edgeChunkStream) Next(ctx context.Context) (Chunk, error) {
	chunk, err := s.reader.Next(ctx)
	if err != nil {
		return Chunk{}, err
	}
	return Chunk{Kind: chunk.Kind, Payload: chunk.Data}, nil
}
