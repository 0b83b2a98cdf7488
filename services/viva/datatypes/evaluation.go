// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Score Categories
// =============================================================================

const (
	// CategoryGreen marks clear, thoughtful, text-grounded performance.
	CategoryGreen = "green"

	// CategoryYellow marks adequate but surface-level performance.
	CategoryYellow = "yellow"

	// CategoryRed marks weak or absent engagement.
	CategoryRed = "red"
)

// =============================================================================
// Evaluation Response Types
// =============================================================================

// EvaluationResponse is the body for POST /v1/sessions/:sessionId/evaluation.
//
// # Description
//
// Score and Category come from the deterministic majority-color aggregation
// over the evaluator feedback, never from the model's own "Overall:" line.
// Feedback is the raw per-objective text for display to the instructor.
//
// # Fields
//
//   - ResponseID: Server-generated UUID v4 for audit correlation.
//   - Timestamp: Unix milliseconds (UTC) when the evaluation completed.
//   - Score: 0-100 aggregate score.
//   - Category: green, yellow, or red.
//   - Feedback: Raw evaluator feedback text.
//   - QuestionCount: Assistant turns in the evaluated transcript.
type EvaluationResponse struct {
	ResponseID    string `json:"response_id"`
	Timestamp     int64  `json:"timestamp"`
	Score         int    `json:"score"`
	Category      string `json:"category"`
	Feedback      string `json:"feedback"`
	QuestionCount int    `json:"question_count"`
}

// NewEvaluationResponse creates an EvaluationResponse with auto-generated
// ResponseID and Timestamp.
func NewEvaluationResponse(score int, category, feedback string, questionCount int) *EvaluationResponse {
	return &EvaluationResponse{
		ResponseID:    uuid.NewString(),
		Timestamp:     time.Now().UnixMilli(),
		Score:         score,
		Category:      category,
		Feedback:      feedback,
		QuestionCount: questionCount,
	}
}
