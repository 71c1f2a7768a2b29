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

// Package edge speaks the Edge read-aloud websocket protocol and exposes
// synthesis results as a pull-based chunk sequence.
package edge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	edgeEndpoint       = "wss://speech.platform.bing.com/consumer/speech/synthesize/readaloud/edge/v1"
	trustedClientToken = "6A5AA1D4EAFF4E9FB37E23D68491D6F4"

	// DefaultOutputFormat is the audio encoding requested when the caller
	// does not specify one.
	DefaultOutputFormat = "audio-24khz-48kbitrate-mono-mp3"

	// legacyOutputFormat is the encoding the pre-readaloud endpoint served.
	legacyOutputFormat = "webm-24khz-16bit-mono-opus"
)

// Chunk kinds yielded by a ChunkReader.
const (
	KindAudio            = "audio"
	KindWordBoundary     = "WordBoundary"
	KindSentenceBoundary = "SentenceBoundary"
)

// ErrUnsupportedOptions is returned when prosody options do not match the
// service's signed-offset encodings ("+20%", "-5Hz").
var ErrUnsupportedOptions = errors.New("unsupported prosody options")

var (
	percentPattern = regexp.MustCompile(`^[+-]\d+%$`)
	hertzPattern   = regexp.MustCompile(`^[+-]\d+Hz$`)
)

// Chunk is one unit of synthesis output. Audio chunks carry Data; boundary
// chunks carry timing in 100-nanosecond ticks as reported by the service.
type Chunk struct {
	Kind     string
	Data     []byte
	Offset   float64
	Duration float64
	Text     string
}

// SpeechOptions configures one synthesis request.
type SpeechOptions struct {
	Voice        string
	Rate         string // signed percentage offset, e.g. "+20%"
	Pitch        string // signed hertz offset, e.g. "+0Hz"
	Volume       string // signed percentage offset
	OutputFormat string // free-form format name, mapped onto a service token
}

// Communicator starts synthesis sessions against one service endpoint.
// It holds no connection state; each Stream call gets its own socket.
type Communicator struct {
	name         string
	endpoint     string
	dialer       *websocket.Dialer
	outputFormat string
}

// Option configures a Communicator.
type Option func(*Communicator)

// WithEndpoint sets a custom websocket endpoint (for testing or proxies).
func WithEndpoint(endpoint string) Option {
	return func(c *Communicator) {
		c.endpoint = endpoint
	}
}

// WithDialer sets a custom websocket dialer.
func WithDialer(dialer *websocket.Dialer) Option {
	return func(c *Communicator) {
		c.dialer = dialer
	}
}

// WithOutputFormat sets the default audio output format token.
func WithOutputFormat(format string) Option {
	return func(c *Communicator) {
		c.outputFormat = format
	}
}

// NewCommunicator creates a communicator for the read-aloud endpoint.
func NewCommunicator(opts ...Option) (*Communicator, error) {
	c := &Communicator{
		name:         "edge",
		endpoint:     edgeEndpoint,
		dialer:       websocket.DefaultDialer,
		outputFormat: DefaultOutputFormat,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.endpoint == "" {
		return nil, fmt.Errorf("edge endpoint cannot be empty")
	}
	return c, nil
}

// NewLegacyCommunicator creates a communicator with the older opus output
// profile, kept as a fallback for hosts pinned to the previous encoding.
func NewLegacyCommunicator(opts ...Option) (*Communicator, error) {
	c := &Communicator{
		name:         "edge-legacy",
		endpoint:     edgeEndpoint,
		dialer:       websocket.DefaultDialer,
		outputFormat: legacyOutputFormat,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.endpoint == "" {
		return nil, fmt.Errorf("edge endpoint cannot be empty")
	}
	return c, nil
}

// Name returns the provider identifier.
func (c *Communicator) Name() string {
	return c.name
}

// Stream prepares one synthesis session. Option validation happens here;
// the websocket is dialed lazily on the first Next call, so an unread
// session costs no network traffic.
func (c *Communicator) Stream(ctx context.Context, text string, opts SpeechOptions) (*ChunkReader, error) {
	normalized, err := normalizeOptions(opts)
	if err != nil {
		return nil, err
	}

	return &ChunkReader{
		c:      c,
		text:   text,
		opts:   normalized,
		format: c.mapOutputFormat(opts.OutputFormat),
	}, nil
}

// normalizeOptions fills default prosody values and rejects shapes the
// service does not accept.
func normalizeOptions(opts SpeechOptions) (SpeechOptions, error) {
	if opts.Rate == "" {
		opts.Rate = "+0%"
	}
	if opts.Volume == "" {
		opts.Volume = "+0%"
	}
	if opts.Pitch == "" {
		opts.Pitch = "+0Hz"
	}

	if !percentPattern.MatchString(opts.Rate) {
		return opts, fmt.Errorf("%w: rate %q", ErrUnsupportedOptions, opts.Rate)
	}
	if !percentPattern.MatchString(opts.Volume) {
		return opts, fmt.Errorf("%w: volume %q", ErrUnsupportedOptions, opts.Volume)
	}
	if !hertzPattern.MatchString(opts.Pitch) {
		return opts, fmt.Errorf("%w: pitch %q", ErrUnsupportedOptions, opts.Pitch)
	}
	return opts, nil
}

// mapOutputFormat maps free-form format names onto service tokens. Names
// that already look like service tokens pass through verbatim.
func (c *Communicator) mapOutputFormat(format string) string {
	f := strings.ToLower(format)
	switch {
	case f == "":
		return c.outputFormat
	case strings.Contains(f, "khz"):
		return format
	case strings.Contains(f, "opus") || strings.Contains(f, "webm"):
		return legacyOutputFormat
	default:
		return DefaultOutputFormat
	}
}

// ChunkReader is a single-use pull-based sequence of synthesis chunks.
// Not safe for concurrent use; one goroutine pulls at a time.
type ChunkReader struct {
	c      *Communicator
	text   string
	opts   SpeechOptions
	format string

	conn    *websocket.Conn
	started bool
	done    bool
}

// Next returns the next chunk, dialing the websocket on first use.
// io.EOF signals normal exhaustion (the service's turn.end).
func (r *ChunkReader) Next(ctx context.Context) (Chunk, error) {
	if r.done {
		return Chunk{}, io.EOF
	}
	if !r.started {
		if err := r.start(ctx); err != nil {
			r.done = true
			return Chunk{}, err
		}
		r.started = true
	}

	for {
		msgType, data, err := r.conn.ReadMessage()
		if err != nil {
			r.finish()
			return Chunk{}, fmt.Errorf("edge socket read: %w", err)
		}

		switch msgType {
		case websocket.BinaryMessage:
			headers, payload, err := parseBinaryMessage(data)
			if err != nil {
				r.finish()
				return Chunk{}, err
			}
			if headers["Path"] != "audio" || len(payload) == 0 {
				continue
			}
			return Chunk{Kind: KindAudio, Data: payload}, nil

		case websocket.TextMessage:
			headers, body := parseTextMessage(data)
			switch headers["Path"] {
			case "turn.end":
				r.finish()
				return Chunk{}, io.EOF
			case "audio.metadata":
				if chunk, ok := parseBoundary(body); ok {
					return chunk, nil
				}
			}
			// turn.start and response frames carry no chunk data
		}
	}
}

func (r *ChunkReader) start(ctx context.Context) error {
	u, err := url.Parse(r.c.endpoint)
	if err != nil {
		return fmt.Errorf("edge endpoint: %w", err)
	}
	q := u.Query()
	q.Set("TrustedClientToken", trustedClientToken)
	q.Set("ConnectionId", newRequestID())
	u.RawQuery = q.Encode()

	conn, resp, err := r.c.dialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("edge websocket dial: %w", err)
	}

	if err := conn.WriteMessage(websocket.TextMessage, speechConfigMessage(r.format)); err != nil {
		_ = conn.Close()
		return fmt.Errorf("edge speech.config send: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, ssmlMessage(newRequestID(), r.text, r.opts)); err != nil {
		_ = conn.Close()
		return fmt.Errorf("edge ssml send: %w", err)
	}

	r.conn = conn
	return nil
}

func (r *ChunkReader) finish() {
	if r.conn != nil {
		_ = r.conn.Close()
	}
	r.done = true
}

// newRequestID generates the dashless UUID shape the service expects.
func newRequestID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}
