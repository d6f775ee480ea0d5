// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package flow provides the HTTP client for executing remote flows and
// decoding their streaming responses.
//
// A flow run is a POST to /api/v1/run/{flowId}?stream=true whose response
// body is a JSON-lines event stream: one JSON object per newline-terminated
// line, discriminated by an "event" field ("token", "end", "add_message").
// StreamReader turns the body into typed events; Client owns request
// construction, cumulative text accumulation, end-event reconciliation,
// cancellation, and the error taxonomy.
//
// The client performs no retries. Retry policy, if any, belongs to the
// caller.
package flow
