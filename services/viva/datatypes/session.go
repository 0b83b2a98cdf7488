// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides data structures for the viva service.
//
// This file contains the conversation turn model plus request and response
// types for the session endpoints. Evaluation-specific types live in
// evaluation.go.
package datatypes

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// RoleStudent marks a turn spoken by the student.
	RoleStudent = "student"

	// RoleAssistant marks a turn spoken by the automated interlocutor.
	RoleAssistant = "assistant"

	// RoleSystem marks a synthetic turn (truncation summaries).
	RoleSystem = "system"
)

const (
	// MaxMessageContentBytes is the maximum size of a single message.
	// Bounds request memory the same way the chat endpoints do.
	MaxMessageContentBytes = 32 * 1024 // 32KB

	// MaxReadingTextBytes is the maximum size of inline reading material.
	MaxReadingTextBytes = 512 * 1024 // 512KB

	// MaxDocumentRefs is the maximum number of documents per session.
	MaxDocumentRefs = 16
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// sessionValidate is the validator instance for session datatypes.
var sessionValidate *validator.Validate

func init() {
	sessionValidate = validator.New()

	_ = sessionValidate.RegisterValidation("maxbytes", validateMaxBytes)
	_ = sessionValidate.RegisterValidation("maxreading", validateMaxReading)
}

// validateMaxBytes checks byte length (not rune count) against
// MaxMessageContentBytes to prevent memory exhaustion with large payloads.
func validateMaxBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxMessageContentBytes
}

// validateMaxReading checks inline reading material against MaxReadingTextBytes.
func validateMaxReading(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxReadingTextBytes
}

// =============================================================================
// Conversation Turns
// =============================================================================

// Turn is one role-tagged message in a session's history.
//
// # Description
//
// The session history is an insertion-ordered, append-only sequence of
// turns. Roles are domain roles (student/assistant/system); the completion
// backends map them to provider wire roles.
//
// # Fields
//
//   - Role: One of RoleStudent, RoleAssistant, RoleSystem.
//   - Content: The message text. Never empty for stored turns.
type Turn struct {
	Role    string `json:"role" validate:"required,oneof=student assistant system"`
	Content string `json:"content" validate:"required,maxbytes"`
}

// TranscriptEntry is one turn in the durable-store transcript format.
//
// Speaker is "student" or "assistant". Recovery also accepts the legacy
// "ai" speaker written by earlier snapshots.
type TranscriptEntry struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// =============================================================================
// Token Usage
// =============================================================================

// TokenUsage contains token consumption statistics for one turn.
//
// # Fields
//
//   - InputTokens: Number of tokens in the prompt/messages
//   - OutputTokens: Number of tokens in the generated reply
//   - TotalTokens: InputTokens + OutputTokens
//   - EstimatedCostUSD: Fixed linear cost estimate for monitoring
type TokenUsage struct {
	InputTokens      int     `json:"input_tokens"`
	OutputTokens     int     `json:"output_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	EstimatedCostUSD float64 `json:"estimated_cost"`
}

// =============================================================================
// Turn Metadata Envelope
// =============================================================================

// TurnMetadata is the per-turn envelope returned alongside every reply.
//
// # Description
//
// Carries the session's pacing state so the caller can drive its timer UI
// and know when the conversation is ending. On a completion-service
// failure only Error is populated; the session remains usable.
//
// # Fields
//
//   - TurnCount: Assistant turns produced so far.
//   - Phase: opening, exploration, synthesis, or wrap_up.
//   - ShouldWrapUp: True in the final 30 seconds of the session.
//   - FinalQuestion: True when only one more question should be asked.
//   - AutoEnd: True when the turn was answered with the fixed farewell.
//   - ElapsedSeconds / MinutesElapsed / RemainingSeconds: Wall-clock pacing.
//   - TokenUsage: Present on successful completion turns.
//   - Error: Short cause when the completion service failed.
type TurnMetadata struct {
	TurnCount        int         `json:"turn_count"`
	Phase            string      `json:"phase,omitempty"`
	ShouldWrapUp     bool        `json:"should_wrap_up"`
	FinalQuestion    bool        `json:"final_question"`
	AutoEnd          bool        `json:"auto_end"`
	ElapsedSeconds   int         `json:"elapsed_seconds"`
	MinutesElapsed   float64     `json:"minutes_elapsed"`
	RemainingSeconds int         `json:"remaining_seconds"`
	TokenUsage       *TokenUsage `json:"token_usage,omitempty"`
	Error            string      `json:"error,omitempty"`
}

// =============================================================================
// Session Request Types
// =============================================================================

// CreateSessionRequest is the body for POST /v1/sessions.
//
// # Description
//
// Exactly one grounding source must be supplied: DocumentRefs (resolved
// through the reading supplier) or ReadingText (used verbatim). Prompts
// are optional; defaults are resolved once at creation time.
//
// # Validation
//
//   - StudentID, AssignmentID: required, positive
//   - DocumentRefs: at most MaxDocumentRefs entries
//   - ReadingText: at most 512KB
type CreateSessionRequest struct {
	RequestID        string   `json:"request_id" validate:"omitempty,uuid4"`
	StudentID        int      `json:"student_id" validate:"required,gt=0"`
	AssignmentID     int      `json:"assignment_id" validate:"required,gt=0"`
	DocumentRefs     []string `json:"document_refs" validate:"max=16,dive,required"`
	ReadingText      string   `json:"reading_text" validate:"maxreading"`
	TutorPrompt      string   `json:"tutor_prompt"`
	EvaluationPrompt string   `json:"evaluation_prompt"`
	Timestamp        int64    `json:"timestamp"`
}

// Validate validates the CreateSessionRequest fields.
func (r *CreateSessionRequest) Validate() error {
	return sessionValidate.Struct(r)
}

// EnsureDefaults populates RequestID and Timestamp if the client omitted them.
func (r *CreateSessionRequest) EnsureDefaults() {
	if r.RequestID == "" {
		r.RequestID = uuid.NewString()
	}
	if r.Timestamp == 0 {
		r.Timestamp = time.Now().UnixMilli()
	}
}

// PostMessageRequest is the body for POST /v1/sessions/:sessionId/messages.
type PostMessageRequest struct {
	Message string `json:"message" validate:"required,maxbytes"`
}

// Validate validates the PostMessageRequest fields.
func (r *PostMessageRequest) Validate() error {
	return sessionValidate.Struct(r)
}

// =============================================================================
// Session Response Types
// =============================================================================

// CreateSessionResponse echoes the new session's identity and grounding size.
type CreateSessionResponse struct {
	SessionID     string `json:"session_id"`
	DocumentCount int    `json:"document_count"`
	TextLength    int    `json:"text_length,omitempty"`
}

// PostMessageResponse carries the interlocutor's reply plus pacing metadata.
type PostMessageResponse struct {
	Reply    string       `json:"reply"`
	Metadata TurnMetadata `json:"metadata"`
}

// StatsResponse is the body for GET /v1/sessions/:sessionId/stats.
type StatsResponse struct {
	TurnCount     int    `json:"turn_count"`
	Phase         string `json:"phase"`
	MessageCount  int    `json:"message_count"`
	DocumentCount int    `json:"document_count"`
	UsingRawText  bool   `json:"using_raw_text"`
}

// TranscriptResponse is the body for GET /v1/sessions/:sessionId/transcript.
type TranscriptResponse struct {
	SessionID  string            `json:"session_id"`
	Transcript []TranscriptEntry `json:"transcript"`
}
