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

import "errors"

// Sentinel errors returned by the orchestrator. Handlers map these to HTTP
// statuses; callers should test with errors.Is.
var (
	// ErrSessionNotFound means no live session exists and recovery (id
	// parse + durable-store lookup) produced nothing. Terminal for the
	// operation; the student must start a new assessment.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidSessionID means the identifier does not follow the
	// session_{studentId}_{assignmentId}_{unixTimestamp} contract.
	ErrInvalidSessionID = errors.New("invalid session id format")

	// ErrEvaluationFailed wraps completion-service failures during
	// evaluation. No partial score is ever attached to it.
	ErrEvaluationFailed = errors.New("evaluation failed")

	// ErrSessionConflict means a session already exists for the id.
	ErrSessionConflict = errors.New("session already exists")
)
