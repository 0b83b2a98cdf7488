// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"fmt"
	"strings"

	"github.com/jinterlante1206/VivaLocal/services/viva/datatypes"
)

// =============================================================================
// History Truncator
// =============================================================================

const (
	// DefaultRecentWindow is the number of most-recent turns always sent
	// verbatim to the completion service.
	DefaultRecentWindow = 8

	// minSummarizablePrefix is the smallest elided prefix worth collapsing
	// into a summary turn.
	minSummarizablePrefix = 4

	// earlyTurnThreshold is the turn count at or below which the full
	// history is always sent. Early turns are small and coherence matters
	// more than budget.
	earlyTurnThreshold = 4

	// descriptorChars is how much of a student turn each summary
	// descriptor quotes.
	descriptorChars = 80

	// maxDescriptors caps how many discussed-topic descriptors the
	// summary keeps (the most recent ones).
	maxDescriptors = 3
)

// TruncateHistory bounds the history sent to the completion service.
//
// # Description
//
// Returns the input unchanged for turnCount <= 4 or when the history fits
// inside the recent window. Otherwise the elided prefix, when it has at
// least 4 turns, collapses into exactly one system turn summarizing the
// topics already covered; a shorter prefix is not worth summarizing and
// the history passes through unchanged. Pure and deterministic; performs
// no I/O and never mutates its input.
//
// # Inputs
//
//   - history: Full turn-by-turn session history.
//   - turnCount: Completed assistant turns.
//   - recentWindow: Recent-turn window size; <= 0 selects
//     DefaultRecentWindow.
//
// # Outputs
//
//   - []datatypes.Turn: Either the input slice itself or a fresh slice of
//     length len(recent)+1 whose head is the summary turn.
func TruncateHistory(history []datatypes.Turn, turnCount, recentWindow int) []datatypes.Turn {
	if recentWindow <= 0 {
		recentWindow = DefaultRecentWindow
	}

	if turnCount <= earlyTurnThreshold {
		return history
	}
	if len(history) <= recentWindow {
		return history
	}

	early := history[:len(history)-recentWindow]
	recent := history[len(history)-recentWindow:]

	if len(early) < minSummarizablePrefix {
		return history
	}

	out := make([]datatypes.Turn, 0, len(recent)+1)
	out = append(out, summarizeEarly(early))
	out = append(out, recent...)
	return out
}

// summarizeEarly collapses an elided prefix into one system turn.
//
// # Description
//
// Scans for (student, assistant) adjacent pairs and emits a short
// "Discussed: ..." descriptor per pair, keeping only the most recent 3.
// The turn content instructs the model to build on covered ground instead
// of repeating questions. When no pairs exist the content falls back to a
// generic placeholder; it is never empty.
func summarizeEarly(early []datatypes.Turn) datatypes.Turn {
	var descriptors []string
	for i := 0; i+1 < len(early); i++ {
		if early[i].Role == datatypes.RoleStudent && early[i+1].Role == datatypes.RoleAssistant {
			descriptors = append(descriptors, "Discussed: "+clip(early[i].Content, descriptorChars))
		}
	}
	if len(descriptors) > maxDescriptors {
		descriptors = descriptors[len(descriptors)-maxDescriptors:]
	}

	covered := "Earlier conversation covered the opening questions."
	if len(descriptors) > 0 {
		covered = strings.Join(descriptors, "\n")
	}

	content := fmt.Sprintf(
		"[EARLIER CONVERSATION]\n%s\n[END]\nBuild on the topics already covered above. Do not repeat the same questions.",
		covered,
	)

	return datatypes.Turn{Role: datatypes.RoleSystem, Content: content}
}

// clip truncates s to at most n bytes on a rune boundary, appending an
// ellipsis when anything was cut.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
