// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package citation extracts inline source-attribution markers from bot
// message text.
package citation

import (
	"regexp"
	"strconv"
	"strings"
)

// =============================================================================
// TYPES
// =============================================================================

// Citation is one extracted source-attribution marker.
type Citation struct {
	// ID is the 1-based position of the marker within its message.
	ID int `json:"id"`

	Src        string `json:"src"`
	Page       string `json:"page"`
	TotalPages string `json:"total_pages"`
}

// DisplayLabel returns the human-readable label for a citation bubble,
// e.g. "doc.pdf - Page 3/10".
func (c Citation) DisplayLabel() string {
	return c.Src + " - Page " + c.Page + "/" + c.TotalPages
}

// ParsedMessage is the result of extracting citations from one message.
type ParsedMessage struct {
	// DisplayText is the message text with each marker replaced by a
	// placeholder token (see Placeholder).
	DisplayText string

	// Citations are in order of first appearance, ids 1..N.
	Citations []Citation
}

// =============================================================================
// EXTRACTION
// =============================================================================

// PERFORMANCE: compiled once at startup.
// All three attributes are required; values may not contain quotes.
// Markers missing an attribute do not match and are left verbatim.
var markerRegex = regexp.MustCompile(`\[src name="([^"]+)" page="([^"]+)" total_pages="([^"]+)"\]`)

// Placeholder returns the inert token substituted for citation id.
// The bracket glyphs are outside ASCII so the token cannot collide with
// ordinary prose and round-trips uniquely through markdown rendering.
func Placeholder(id int) string {
	return "◐" + strconv.Itoa(id) + "◑" // ◐N◑
}

// Extract scans text for citation markers in a single left-to-right pass.
// Each well-formed marker is assigned the next sequential id starting at 1
// and replaced with its placeholder token. Repeated (src, page) pairs are
// not deduplicated. Text without markers is returned unchanged.
//
// Re-running Extract on a DisplayText yields zero citations: placeholders
// are not themselves markup.
func Extract(text string) ParsedMessage {
	if !strings.Contains(text, "[src ") {
		return ParsedMessage{DisplayText: text}
	}

	var citations []Citation
	display := markerRegex.ReplaceAllStringFunc(text, func(match string) string {
		groups := markerRegex.FindStringSubmatch(match)
		c := Citation{
			ID:         len(citations) + 1,
			Src:        groups[1],
			Page:       groups[2],
			TotalPages: groups[3],
		}
		citations = append(citations, c)
		return Placeholder(c.ID)
	})

	return ParsedMessage{DisplayText: display, Citations: citations}
}

// =============================================================================
// RENDER SEGMENTATION
// =============================================================================

// Segment is one run of a parsed message: either prose or a citation bubble.
type Segment struct {
	Text     string
	Citation *Citation
}

// Split divides DisplayText into alternating prose and citation segments so
// a renderer can interleave text with citation bubbles. Placeholders never
// reach the end user raw.
func (p ParsedMessage) Split() []Segment {
	if len(p.Citations) == 0 {
		return []Segment{{Text: p.DisplayText}}
	}

	var segments []Segment
	rest := p.DisplayText
	for i := range p.Citations {
		c := &p.Citations[i]
		token := Placeholder(c.ID)
		idx := strings.Index(rest, token)
		if idx < 0 {
			continue
		}
		if idx > 0 {
			segments = append(segments, Segment{Text: rest[:idx]})
		}
		segments = append(segments, Segment{Citation: c})
		rest = rest[idx+len(token):]
	}
	if rest != "" {
		segments = append(segments, Segment{Text: rest})
	}
	return segments
}
