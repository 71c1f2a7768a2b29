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

// Package tts normalizes access to multiple text-to-speech backends behind
// one streaming client contract.
//
// A Client is constructed from host configuration with NewClient. The host
// sets voice/format metadata once, then requests one AudioStream per text:
//
//	client, err := tts.NewClient(cfg.TTS)
//	if err != nil { ... }
//	_ = client.SetMetadata("en-US-AriaNeural", "mp3")
//	stream, err := client.Stream("Hello world", &tts.ProsodyOptions{Rate: 1.2})
//	if err != nil { ... }
//	stream.OnData(func(chunk []byte) { play(chunk) })
//	stream.OnEnd(func() { done() })
//	stream.OnError(func(err error) { report(err) })
//
// Each AudioStream emits zero or more ordered data events followed by a
// terminal event. The edge backend pulls chunks lazily, starting only when
// the first data listener registers; the Deepgram backend issues its HTTP
// request eagerly. Streams are single-use and independent of each other.
package tts
