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

// Package messaging delivers synthesis sessions to playback relays over
// NATS, one message per audio chunk plus a terminal marker.
package messaging

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/aloudlabs/aloud-tts/config"
	"github.com/aloudlabs/aloud-tts/internal/logging"
	"github.com/aloudlabs/aloud-tts/tts"
)

// NATSConn is the subset of the NATS connection the publisher uses.
type NATSConn interface {
	Publish(subject string, data []byte) error
}

var _ NATSConn = (*nats.Conn)(nil)

// ChunkMessage is one unit of a streamed audio session on the bus. The
// terminal message has Final set; a failed session carries Error as well.
type ChunkMessage struct {
	StreamID string `json:"stream_id"`
	Sequence int    `json:"sequence"`
	Audio    []byte `json:"audio,omitempty"`
	Format   string `json:"audio_format,omitempty"`
	Final    bool   `json:"final"`
	Error    string `json:"error,omitempty"`
}

// StreamPublisher forwards AudioStream sessions to per-relay subjects.
type StreamPublisher struct {
	conn          NATSConn
	subjectPrefix string
}

// Connect dials NATS with the reconnect behavior the publisher relies on.
func Connect(cfg config.NATSConfig) (*nats.Conn, error) {
	return nats.Connect(cfg.URL,
		nats.Name("aloud-tts"),
		nats.MaxReconnects(cfg.MaxReconnect),
		nats.ReconnectWait(cfg.ReconnectWait),
	)
}

// NewStreamPublisher creates a publisher delivering to
// <subjectPrefix>.<relay_id> subjects.
func NewStreamPublisher(conn NATSConn, subjectPrefix string) *StreamPublisher {
	if subjectPrefix == "" {
		subjectPrefix = "aloud.audio"
	}
	return &StreamPublisher{conn: conn, subjectPrefix: subjectPrefix}
}

// PublishStream subscribes to one synthesis session and forwards its
// events to the relay's subject. It returns the stream ID immediately;
// delivery follows the session's own pacing. Chunk messages preserve the
// session's emission order because listeners run synchronously on the
// producing goroutine.
func (p *StreamPublisher) PublishStream(relayID, format string, stream *tts.AudioStream) string {
	streamID := uuid.New().String()[:8]
	subject := fmt.Sprintf("%s.%s", p.subjectPrefix, relayID)

	// Callbacks run synchronously on the session's producing goroutine,
	// so plain counters are safe here.
	sequence := 0
	finalSent := false
	stream.OnData(func(chunk []byte) {
		sequence++
		p.publish(subject, ChunkMessage{
			StreamID: streamID,
			Sequence: sequence,
			Audio:    chunk,
			Format:   format,
		})
	})
	stream.OnError(func(err error) {
		if finalSent {
			return
		}
		finalSent = true
		p.publish(subject, ChunkMessage{
			StreamID: streamID,
			Sequence: sequence + 1,
			Final:    true,
			Error:    err.Error(),
		})
	})
	stream.OnEnd(func() {
		// Backends that follow error with end would otherwise produce a
		// second terminal marker.
		if finalSent {
			return
		}
		finalSent = true
		p.publish(subject, ChunkMessage{
			StreamID: streamID,
			Sequence: sequence + 1,
			Final:    true,
		})
	})

	logging.LogNATSEvent(subject, "stream_started", zap.String("stream_id", streamID))
	return streamID
}

func (p *StreamPublisher) publish(subject string, msg ChunkMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		logging.LogError(err, "failed to marshal chunk message",
			zap.String("subject", subject),
			zap.String("stream_id", msg.StreamID),
		)
		return
	}

	if err := p.conn.Publish(subject, data); err != nil {
		logging.LogError(err, "failed to publish chunk message",
			zap.String("subject", subject),
			zap.String("stream_id", msg.StreamID),
			zap.Int("sequence", msg.Sequence),
		)
	}
}
