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
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// Session Identifiers
// =============================================================================

// Session ids follow the public contract
//
//	session_{studentId}_{assignmentId}_{unixTimestamp}
//
// consumed by the auto-recovery path and database-based evaluation
// recovery. Changing this format breaks both.

const idPrefix = "session"

// ParsedID is the decomposed form of a session identifier.
type ParsedID struct {
	StudentID    int
	AssignmentID int
	Timestamp    int64
}

// NewSessionID composes a session identifier for a (student, assignment)
// pair at the given creation time.
func NewSessionID(studentID, assignmentID int, createdAt time.Time) string {
	return fmt.Sprintf("%s_%d_%d_%d", idPrefix, studentID, assignmentID, createdAt.Unix())
}

// ParseSessionID decomposes a session identifier.
//
// # Description
//
// Lenient on the trailing timestamp (older clients sent fractional or
// missing timestamps) but strict on the prefix and the two numeric id
// components, which recovery depends on.
//
// # Inputs
//
//   - id: Candidate session identifier.
//
// # Outputs
//
//   - ParsedID: Student id, assignment id, and creation timestamp (zero if
//     absent or unparseable).
//   - error: ErrInvalidSessionID (wrapped) if the id does not follow the
//     contract.
func ParseSessionID(id string) (ParsedID, error) {
	parts := strings.Split(id, "_")
	if len(parts) < 3 || parts[0] != idPrefix {
		return ParsedID{}, fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
	}

	studentID, err := strconv.Atoi(parts[1])
	if err != nil || studentID <= 0 {
		return ParsedID{}, fmt.Errorf("%w: bad student component %q", ErrInvalidSessionID, parts[1])
	}

	assignmentID, err := strconv.Atoi(parts[2])
	if err != nil || assignmentID <= 0 {
		return ParsedID{}, fmt.Errorf("%w: bad assignment component %q", ErrInvalidSessionID, parts[2])
	}

	parsed := ParsedID{StudentID: studentID, AssignmentID: assignmentID}
	if len(parts) >= 4 {
		if ts, err := strconv.ParseInt(parts[3], 10, 64); err == nil {
			parsed.Timestamp = ts
		}
	}

	return parsed, nil
}
