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
	"sort"
	"strings"
)

// =============================================================================
// Context Assembler
// =============================================================================

// NoMaterialSentinel is returned when no documents resolved. Keeping the
// exact wording stable matters: the tutor prompt tells the model to ground
// questions in the reading block, and this string is its empty case.
const NoMaterialSentinel = "No reading materials provided."

// rawMaterialHeader labels inline reading text supplied at creation time.
const rawMaterialHeader = "Reading Material"

// AssembleContext builds the grounding material string from resolved
// documents.
//
// # Description
//
// Concatenates "=== {name} ===\n{text}" blocks joined by blank lines.
// Names are sorted so the output is deterministic regardless of map
// iteration order. Total: an empty map yields NoMaterialSentinel, never an
// error. Documents that failed to resolve simply do not appear in the map.
//
// # Inputs
//
//   - docs: Resolved document name -> extracted text.
//
// # Outputs
//
//   - string: The grounding context, never empty.
func AssembleContext(docs map[string]string) string {
	if len(docs) == 0 {
		return NoMaterialSentinel
	}

	names := make([]string, 0, len(docs))
	for name := range docs {
		names = append(names, name)
	}
	sort.Strings(names)

	sections := make([]string, 0, len(names))
	for _, name := range names {
		sections = append(sections, fmt.Sprintf("=== %s ===\n%s", name, docs[name]))
	}

	return strings.Join(sections, "\n\n")
}

// AssembleRawContext wraps caller-supplied reading text in the standard
// section header so the prompt sees the same shape either way.
func AssembleRawContext(text string) string {
	return fmt.Sprintf("=== %s ===\n%s", rawMaterialHeader, text)
}
