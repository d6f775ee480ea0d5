// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package flow provides the HTTP client for executing remote flows and
// decoding their streaming responses.
package flow

import (
	"bytes"
	"encoding/json"
)

// =============================================================================
// EVENT TYPES
// =============================================================================

// EventKind discriminates stream events.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventToken             // incremental text fragment
	EventEnd               // terminal event with the authoritative result
	EventAddMessage        // informational; does not affect accumulated text
)

// String returns the wire name of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventToken:
		return "token"
	case EventEnd:
		return "end"
	case EventAddMessage:
		return "add_message"
	default:
		return "unknown"
	}
}

// StreamEvent is one decoded line of a flow response stream.
type StreamEvent struct {
	Kind EventKind

	// Chunk is the text fragment for EventToken.
	Chunk string

	// Result is the structured output tree for EventEnd.
	Result *RunResult

	// Text is the informational payload for EventAddMessage.
	Text string
}

// =============================================================================
// RUN RESULT TREE
// =============================================================================

// RunResult is the structured output carried by an end event. The nesting
// mirrors the server's shape-fragile contract; every level is optional and
// absence is handled explicitly rather than assumed away.
type RunResult struct {
	Outputs []RunOutput `json:"outputs"`
}

// RunOutput is one flow-level output entry.
type RunOutput struct {
	Outputs []ComponentOutput `json:"outputs"`
}

// ComponentOutput is one component-level output entry.
type ComponentOutput struct {
	Results ComponentResults `json:"results"`
}

// ComponentResults holds the component's result values. Message is kept raw
// because the server sends either a plain string or an object with a "text"
// field.
type ComponentResults struct {
	Message json.RawMessage `json:"message"`
}

// ExtractFinalMessage walks outputs[0].outputs[0].results.message and
// returns the final message text if every level is present. Absence at any
// level yields ("", false), never a fault.
func ExtractFinalMessage(r *RunResult) (string, bool) {
	if r == nil || len(r.Outputs) == 0 {
		return "", false
	}
	if len(r.Outputs[0].Outputs) == 0 {
		return "", false
	}
	raw := r.Outputs[0].Outputs[0].Results.Message
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}

	// Plain string form: "message": "Answer"
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, s != ""
	}

	// Object form: "message": {"text": "Answer"}
	var obj struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Text != "" {
		return obj.Text, true
	}

	return "", false
}

// =============================================================================
// WIRE FORMATS
// =============================================================================

// rawEvent is the envelope of one response line.
type rawEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type tokenData struct {
	Chunk string `json:"chunk"`
}

type endData struct {
	Result *RunResult `json:"result"`
}

type addMessageData struct {
	Text string `json:"text"`
}

// runRequest is the JSON body of a flow run.
type runRequest struct {
	InputValue      string         `json:"input_value"`
	InputType       string         `json:"input_type"`
	OutputType      string         `json:"output_type"`
	OutputComponent string         `json:"output_component,omitempty"`
	SessionID       string         `json:"session_id"`
	Tweaks          map[string]any `json:"tweaks,omitempty"`
	ChatInputs      map[string]any `json:"chat_inputs,omitempty"`
	ChatInputField  string         `json:"chat_input_field,omitempty"`
}

// apiError is the best-effort shape of a non-2xx response body.
type apiError struct {
	Detail string `json:"detail"`
}
