// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package flow provides the HTTP client for executing remote flows and
// decoding their streaming responses.
package flow

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"

	"go.uber.org/zap"
)

// =============================================================================
// STREAM READER
// =============================================================================

// EventCallback is called for each decoded event, in wire order.
type EventCallback func(ev StreamEvent)

// StreamReader decodes a JSON-lines flow response incrementally.
//
// The wire contract guarantees one event per newline-terminated line, so the
// only buffering concern is retaining a trailing partial line across chunk
// boundaries; bufio.Reader handles that. A line that fails to parse is
// logged and dropped without aborting the stream.
type StreamReader struct {
	reader *bufio.Reader
	log    *zap.SugaredLogger
}

// NewStreamReader creates a stream reader over r. log may be nil.
func NewStreamReader(r io.Reader, log *zap.SugaredLogger) *StreamReader {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &StreamReader{
		reader: bufio.NewReader(r),
		log:    log,
	}
}

// Process reads the stream to completion, invoking callback for each event.
// The context is checked before every delivery: after cancellation no
// further callback fires, even if more lines are already buffered.
func (s *StreamReader) Process(ctx context.Context, callback EventCallback) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := s.reader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return err
		}
		atEOF := err == io.EOF

		if ev, ok := s.decodeLine(line); ok {
			if cerr := ctx.Err(); cerr != nil {
				return cerr
			}
			callback(ev)
		}

		if atEOF {
			return nil
		}
	}
}

// decodeLine parses one line into a typed event. Returns ok=false for blank
// lines, malformed JSON, and event kinds the decoder ignores.
func (s *StreamReader) decodeLine(line []byte) (StreamEvent, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return StreamEvent{}, false
	}

	var raw rawEvent
	if err := json.Unmarshal(line, &raw); err != nil {
		// A single bad line never aborts the stream.
		s.log.Debugw("dropping malformed event line", "error", err, "line", string(line))
		return StreamEvent{}, false
	}

	switch raw.Event {
	case "token":
		var data tokenData
		if err := json.Unmarshal(raw.Data, &data); err != nil || data.Chunk == "" {
			return StreamEvent{}, false
		}
		return StreamEvent{Kind: EventToken, Chunk: data.Chunk}, true

	case "end":
		var data endData
		if err := json.Unmarshal(raw.Data, &data); err != nil || data.Result == nil {
			return StreamEvent{}, false
		}
		return StreamEvent{Kind: EventEnd, Result: data.Result}, true

	case "add_message":
		var data addMessageData
		if err := json.Unmarshal(raw.Data, &data); err != nil {
			return StreamEvent{}, false
		}
		return StreamEvent{Kind: EventAddMessage, Text: data.Text}, true

	default:
		s.log.Debugw("ignoring unknown event", "event", raw.Event)
		return StreamEvent{}, false
	}
}

// =============================================================================
// BUFFERED DECODE (FALLBACK PATH)
// =============================================================================

// DecodeAll decodes a fully buffered response body into its event sequence.
// This is the fallback path for transports that cannot expose incremental
// reads: the body is split on newlines and each line is handled exactly as
// in the streaming path.
func DecodeAll(body []byte, log *zap.SugaredLogger) []StreamEvent {
	r := NewStreamReader(bytes.NewReader(nil), log)

	var events []StreamEvent
	for _, line := range bytes.Split(body, []byte("\n")) {
		if ev, ok := r.decodeLine(line); ok {
			events = append(events, ev)
		}
	}
	return events
}
