// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package citation extracts inline source-attribution markers from bot
// message text.
//
// Flow responses may embed markers of the form:
//
//	[src name="doc.pdf" page="3" total_pages="10"]
//
// Extract replaces each marker with a compact placeholder token and returns
// the ordered citation list so renderers can draw interactive bubbles in
// place of the raw markup. Extraction is a pure text transform: citations
// are derived per message and never persisted.
package citation
