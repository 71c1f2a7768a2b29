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

package edge

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"
	"time"
)

// Edge read-aloud wire format. Text messages are "Key:Value\r\n" headers,
// a blank line, then a body. Binary messages carry a 2-byte big-endian
// header-block length, the header block, then the audio payload.

const headerLengthSize = 2

// parseBinaryMessage splits a binary websocket message into its header
// fields and audio payload.
func parseBinaryMessage(data []byte) (map[string]string, []byte, error) {
	if len(data) < headerLengthSize {
		return nil, nil, fmt.Errorf("binary message too small: %d bytes (min %d)", len(data), headerLengthSize)
	}

	headerLen := int(binary.BigEndian.Uint16(data[:headerLengthSize]))
	if headerLengthSize+headerLen > len(data) {
		return nil, nil, fmt.Errorf("binary message header length %d exceeds message size %d", headerLen, len(data))
	}

	headers := parseHeaderBlock(data[headerLengthSize : headerLengthSize+headerLen])
	payload := data[headerLengthSize+headerLen:]
	return headers, payload, nil
}

// parseTextMessage splits a text websocket message into its header fields
// and body. A message without a header/body separator is all headers.
func parseTextMessage(data []byte) (map[string]string, []byte) {
	head, body, found := bytes.Cut(data, []byte("\r\n\r\n"))
	headers := parseHeaderBlock(head)
	if !found {
		return headers, nil
	}
	return headers, body
}

func parseHeaderBlock(block []byte) map[string]string {
	headers := make(map[string]string)
	for _, line := range bytes.Split(block, []byte("\r\n")) {
		key, value, found := bytes.Cut(line, []byte(":"))
		if !found {
			continue
		}
		headers[string(key)] = strings.TrimSpace(string(value))
	}
	return headers
}

// speechConfigMessage builds the session configuration message sent before
// any SSML request.
func speechConfigMessage(outputFormat string) []byte {
	config := fmt.Sprintf(
		`{"context":{"synthesis":{"audio":{"metadataoptions":{"sentenceBoundaryEnabled":"false","wordBoundaryEnabled":"true"},"outputFormat":%q}}}}`,
		outputFormat,
	)

	var b strings.Builder
	b.WriteString("X-Timestamp:" + timestamp() + "\r\n")
	b.WriteString("Content-Type:application/json; charset=utf-8\r\n")
	b.WriteString("Path:speech.config\r\n\r\n")
	b.WriteString(config)
	return []byte(b.String())
}

// ssmlMessage builds one synthesis request message.
func ssmlMessage(requestID, text string, opts SpeechOptions) []byte {
	var b strings.Builder
	b.WriteString("X-RequestId:" + requestID + "\r\n")
	b.WriteString("Content-Type:application/ssml+xml\r\n")
	b.WriteString("X-Timestamp:" + timestamp() + "\r\n")
	b.WriteString("Path:ssml\r\n\r\n")
	b.WriteString(buildSSML(text, opts))
	return []byte(b.String())
}

func buildSSML(text string, opts SpeechOptions) string {
	var escaped bytes.Buffer
	_ = xml.EscapeText(&escaped, []byte(text)) // bytes.Buffer writes cannot fail

	return fmt.Sprintf(
		"<speak version='1.0' xmlns='http://www.w3.org/2001/10/synthesis' xml:lang='en-US'>"+
			"<voice name='%s'><prosody pitch='%s' rate='%s' volume='%s'>%s</prosody></voice></speak>",
		opts.Voice, opts.Pitch, opts.Rate, opts.Volume, escaped.String(),
	)
}

// timestamp renders the header timestamp in the service's expected shape.
func timestamp() string {
	return time.Now().UTC().Format("Mon Jan 02 2006 15:04:05 GMT+0000 (Coordinated Universal Time)")
}

// boundaryMetadata mirrors the audio.metadata body for word and sentence
// boundary events.
type boundaryMetadata struct {
	Metadata []struct {
		Type string `json:"Type"`
		Data struct {
			Offset   float64 `json:"Offset"`
			Duration float64 `json:"Duration"`
			Text     struct {
				Text string `json:"Text"`
			} `json:"text"`
		} `json:"Data"`
	} `json:"Metadata"`
}

// parseBoundary extracts the first boundary entry from an audio.metadata
// body. Bodies with no recognizable entries yield ok=false and are skipped.
func parseBoundary(body []byte) (Chunk, bool) {
	var meta boundaryMetadata
	if err := json.Unmarshal(body, &meta); err != nil || len(meta.Metadata) == 0 {
		return Chunk{}, false
	}

	entry := meta.Metadata[0]
	switch entry.Type {
	case KindWordBoundary, KindSentenceBoundary:
	default:
		return Chunk{}, false
	}

	return Chunk{
		Kind:     entry.Type,
		Offset:   entry.Data.Offset,
		Duration: entry.Data.Duration,
		Text:     entry.Data.Text.Text,
	}, true
}
