// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation tracks the ordered message log and the lifecycle of
// the single in-flight bot response.
//
// The log is a small state machine: Idle when no run is active,
// AwaitingResponse while one is. At most one non-settled message exists at
// any time (the pending bot message); it is the only message whose text may
// change, and it is either frozen on success, replaced by an error-role
// message on failure, or removed entirely on abort so the user never sees a
// truncated answer.
package conversation
