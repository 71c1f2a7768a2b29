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

import "sync"

// AudioStream is the consumer side of one synthesis session. A backend
// adapter pushes ordered data events into it, then exactly one terminal
// event. Listeners run synchronously on the emitting goroutine, in
// registration order. There is no backpressure; flow control belongs to
// the producing adapter.
type AudioStream struct {
	mu       sync.Mutex
	dataFns  []func([]byte)
	endFns   []func()
	errorFns []func(error)
	ended    bool
	start    func() // lazy-start hook, consumed by the first OnData
}

func newAudioStream() *AudioStream {
	return &AudioStream{}
}

// armStart installs a hook invoked once, when the first data listener
// registers. Used by pull-based backends to defer consumption until
// someone is actually listening.
func (s *AudioStream) armStart(fn func()) {
	s.mu.Lock()
	s.start = fn
	s.mu.Unlock()
}

// OnData registers a listener for audio chunks.
func (s *AudioStream) OnData(fn func(chunk []byte)) {
	s.mu.Lock()
	s.dataFns = append(s.dataFns, fn)
	start := s.start
	s.start = nil
	s.mu.Unlock()

	if start != nil {
		go start()
	}
}

// OnEnd registers a listener for stream completion. A listener registered
// after the stream already ended is invoked immediately, so late
// subscribers cannot miss the terminal state.
func (s *AudioStream) OnEnd(fn func()) {
	s.mu.Lock()
	s.endFns = append(s.endFns, fn)
	replay := s.ended
	s.mu.Unlock()

	if replay {
		fn()
	}
}

// OnError registers a listener for stream failure.
func (s *AudioStream) OnError(fn func(err error)) {
	s.mu.Lock()
	s.errorFns = append(s.errorFns, fn)
	s.mu.Unlock()
}

func (s *AudioStream) emitData(chunk []byte) {
	s.mu.Lock()
	fns := make([]func([]byte), len(s.dataFns))
	copy(fns, s.dataFns)
	s.mu.Unlock()

	for _, fn := range fns {
		fn(chunk)
	}
}

// emitEnd marks the stream ended before invoking listeners, so a listener
// that re-registers from its callback still sees the terminal state.
// A second emitEnd is a no-op.
func (s *AudioStream) emitEnd() {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	fns := make([]func(), len(s.endFns))
	copy(fns, s.endFns)
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func (s *AudioStream) emitError(err error) {
	s.mu.Lock()
	fns := make([]func(error), len(s.errorFns))
	copy(fns, s.errorFns)
	s.mu.Unlock()

	for _, fn := range fns {
		fn(err)
	}
}
