// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package flow

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// STREAM READER TESTS
// =============================================================================

func collectEvents(t *testing.T, body string) []StreamEvent {
	t.Helper()

	reader := NewStreamReader(strings.NewReader(body), nil)
	var events []StreamEvent
	err := reader.Process(context.Background(), func(ev StreamEvent) {
		events = append(events, ev)
	})
	require.NoError(t, err)
	return events
}

func TestStreamReader_TokenEvents(t *testing.T) {
	body := `{"event":"token","data":{"chunk":"Hel"}}` + "\n" +
		`{"event":"token","data":{"chunk":"lo"}}` + "\n"

	events := collectEvents(t, body)

	require.Len(t, events, 2)
	assert.Equal(t, EventToken, events[0].Kind)
	assert.Equal(t, "Hel", events[0].Chunk)
	assert.Equal(t, "lo", events[1].Chunk)
}

func TestStreamReader_RoundTrip(t *testing.T) {
	// Concatenating token chunks in arrival order reproduces the text exactly.
	chunks := []string{"The ", "quick", " brown", " fox"}
	var body strings.Builder
	for _, chunk := range chunks {
		body.WriteString(`{"event":"token","data":{"chunk":"` + chunk + `"}}` + "\n")
	}

	var got strings.Builder
	for _, ev := range collectEvents(t, body.String()) {
		got.WriteString(ev.Chunk)
	}
	assert.Equal(t, "The quick brown fox", got.String())
}

func TestStreamReader_MalformedLineSkipped(t *testing.T) {
	body := `{"event":"token","data":{"chunk":"A"}}` + "\n" +
		`{not json` + "\n" +
		`{"event":"token","data":{"chunk":"B"}}` + "\n"

	events := collectEvents(t, body)

	require.Len(t, events, 2)
	assert.Equal(t, "A", events[0].Chunk)
	assert.Equal(t, "B", events[1].Chunk)
}

func TestStreamReader_BlankAndUnknownLinesSkipped(t *testing.T) {
	body := "\n" +
		`{"event":"heartbeat","data":{}}` + "\n" +
		"   \n" +
		`{"event":"token","data":{"chunk":"X"}}` + "\n"

	events := collectEvents(t, body)

	require.Len(t, events, 1)
	assert.Equal(t, "X", events[0].Chunk)
}

func TestStreamReader_EndEvent(t *testing.T) {
	body := `{"event":"end","data":{"result":{"outputs":[{"outputs":[{"results":{"message":{"text":"Answer"}}}]}]}}}` + "\n"

	events := collectEvents(t, body)

	require.Len(t, events, 1)
	assert.Equal(t, EventEnd, events[0].Kind)

	msg, ok := ExtractFinalMessage(events[0].Result)
	assert.True(t, ok)
	assert.Equal(t, "Answer", msg)
}

func TestStreamReader_EndEventWithoutResultSkipped(t *testing.T) {
	body := `{"event":"end","data":{}}` + "\n"
	events := collectEvents(t, body)
	assert.Empty(t, events)
}

func TestStreamReader_AddMessageEvent(t *testing.T) {
	body := `{"event":"add_message","data":{"text":"sidebar note"}}` + "\n"

	events := collectEvents(t, body)

	require.Len(t, events, 1)
	assert.Equal(t, EventAddMessage, events[0].Kind)
	assert.Equal(t, "sidebar note", events[0].Text)
}

func TestStreamReader_FinalLineWithoutNewline(t *testing.T) {
	// The last line may arrive without a trailing newline before EOF.
	body := `{"event":"token","data":{"chunk":"tail"}}`

	events := collectEvents(t, body)

	require.Len(t, events, 1)
	assert.Equal(t, "tail", events[0].Chunk)
}

func TestStreamReader_CancelledContextStopsDelivery(t *testing.T) {
	body := `{"event":"token","data":{"chunk":"A"}}` + "\n" +
		`{"event":"token","data":{"chunk":"B"}}` + "\n"

	ctx, cancel := context.WithCancel(context.Background())
	reader := NewStreamReader(strings.NewReader(body), nil)

	var delivered []string
	err := reader.Process(ctx, func(ev StreamEvent) {
		delivered = append(delivered, ev.Chunk)
		cancel() // cancel after the first event
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"A"}, delivered)
}

// =============================================================================
// BUFFERED DECODE TESTS
// =============================================================================

func TestDecodeAll(t *testing.T) {
	body := `{"event":"token","data":{"chunk":"Hel"}}` + "\n" +
		`bad line` + "\n" +
		`{"event":"token","data":{"chunk":"lo"}}` + "\n" +
		`{"event":"end","data":{"result":{}}}`

	events := DecodeAll([]byte(body), nil)

	require.Len(t, events, 3)
	assert.Equal(t, EventToken, events[0].Kind)
	assert.Equal(t, EventToken, events[1].Kind)
	assert.Equal(t, EventEnd, events[2].Kind)
}

func TestDecodeAll_Empty(t *testing.T) {
	assert.Empty(t, DecodeAll(nil, nil))
	assert.Empty(t, DecodeAll([]byte("\n\n"), nil))
}

// =============================================================================
// FINAL MESSAGE EXTRACTION TESTS
// =============================================================================

func TestExtractFinalMessage(t *testing.T) {
	tests := []struct {
		name   string
		json   string
		want   string
		wantOK bool
	}{
		{"nil result", "", "", false},
		{"empty result", `{}`, "", false},
		{"empty outputs", `{"outputs":[]}`, "", false},
		{"empty inner outputs", `{"outputs":[{"outputs":[]}]}`, "", false},
		{"missing message", `{"outputs":[{"outputs":[{"results":{}}]}]}`, "", false},
		{"null message", `{"outputs":[{"outputs":[{"results":{"message":null}}]}]}`, "", false},
		{"string message", `{"outputs":[{"outputs":[{"results":{"message":"Answer"}}]}]}`, "Answer", true},
		{"object message", `{"outputs":[{"outputs":[{"results":{"message":{"text":"Answer"}}}]}]}`, "Answer", true},
		{"empty string message", `{"outputs":[{"outputs":[{"results":{"message":""}}]}]}`, "", false},
		{"object without text", `{"outputs":[{"outputs":[{"results":{"message":{"other":1}}}]}]}`, "", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var result *RunResult
			if tc.json != "" {
				result = &RunResult{}
				require.NoError(t, json.Unmarshal([]byte(tc.json), result))
			}

			got, ok := ExtractFinalMessage(result)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}
