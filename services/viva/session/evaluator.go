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
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jinterlante1206/VivaLocal/services/llm"
	"github.com/jinterlante1206/VivaLocal/services/viva/datatypes"
	"github.com/jinterlante1206/VivaLocal/services/viva/store"
)

const (
	// evalTemperature and evalMaxTokens keep the rubric output tight and
	// deterministic-ish.
	evalTemperature = 0.3
	evalMaxTokens   = 200

	// Participation floor: at most one student turn, or fewer than 50
	// substantive characters total, means there is nothing to grade.
	minStudentTurns        = 2
	minStudentContentChars = 50
)

// =============================================================================
// Evaluation
// =============================================================================

// Evaluate assesses a finished (or abandoned) session.
//
// # Description
//
// Reads the transcript from the live session when one exists, otherwise
// recovers it from the durable store keyed by the (student, assignment)
// pair parsed out of the id. Transcripts below the participation floor
// get a fixed red outcome with no completion call. Otherwise the rubric
// prompt runs against the rendered transcript and the color labels in the
// model's feedback are aggregated into the authoritative score; the
// model's own Overall line is ignored for scoring.
//
// # Outputs
//
//   - *datatypes.EvaluationResponse: Score, category, feedback, and the
//     number of questions asked.
//   - error: ErrSessionNotFound when neither live state nor a persisted
//     transcript exists; ErrEvaluationFailed when the completion service
//     fails.
func (o *Orchestrator) Evaluate(ctx context.Context, sessionID string) (*datatypes.EvaluationResponse, error) {
	ctx, span := tracer.Start(ctx, "Evaluate")
	defer span.End()

	transcript, questionCount, evalPrompt, err := o.evaluableTranscript(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	studentTurns, studentChars := participation(transcript)
	if studentTurns < minStudentTurns || studentChars < minStudentContentChars {
		slog.Info("Minimal participation, skipping model evaluation",
			"session_id", sessionID,
			"student_turns", studentTurns,
			"student_chars", studentChars)
		return datatypes.NewEvaluationResponse(40, datatypes.CategoryRed, minimalParticipationFeedback, questionCount), nil
	}

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.TurnTimeout)
	defer cancel()

	result, err := o.completions.Complete(callCtx, llm.CompletionRequest{
		SystemPrompt: evalPrompt,
		NewMessage:   "Evaluate this student assessment:\n\n" + renderTranscript(transcript),
		Temperature:  evalTemperature,
		MaxTokens:    evalMaxTokens,
	})
	if err != nil {
		slog.Error("Completion service failed for evaluation",
			"session_id", sessionID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrEvaluationFailed, err)
	}

	category, score := AggregateColors(result.Text)
	if claimed := overallLineColor(result.Text); claimed != "" && claimed != category {
		slog.Warn("Model's overall color disagrees with aggregated colors, keeping aggregate",
			"session_id", sessionID, "model", claimed, "aggregate", category)
	}

	slog.Info("Evaluated session",
		"session_id", sessionID,
		"score", score,
		"category", category,
		"questions", questionCount)
	return datatypes.NewEvaluationResponse(score, category, result.Text, questionCount), nil
}

// Complete finalizes a session: evaluates it, persists the outcome, and
// tears down live state.
//
// # Description
//
// Persistence and teardown are best-effort once the evaluation succeeds:
// a durable-store failure is logged but the evaluation is still returned,
// since the grade is the caller's primary concern.
func (o *Orchestrator) Complete(ctx context.Context, sessionID string) (*datatypes.EvaluationResponse, error) {
	eval, err := o.Evaluate(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	rec := store.OutcomeRecord{
		Status:      "completed",
		CompletedAt: o.now(),
		Score:       eval.Score,
		Category:    eval.Category,
		Feedback:    eval.Feedback,
	}

	if s, ok := o.sessions.Get(sessionID); ok {
		s.lock()
		rec.StudentID = s.StudentID
		rec.AssignmentID = s.AssignmentID
		rec.StartedAt = s.StartTime
		rec.Transcript = historyToTranscript(s.History)
		s.unlock()
	} else if parsed, perr := ParseSessionID(sessionID); perr == nil {
		rec.StudentID = parsed.StudentID
		rec.AssignmentID = parsed.AssignmentID
		rec.StartedAt = time.Unix(parsed.Timestamp, 0)
		if o.transcripts != nil {
			if transcript, terr := o.transcripts.FindTranscript(ctx, parsed.StudentID, parsed.AssignmentID); terr == nil {
				rec.Transcript = transcript
			}
		}
	}

	if o.transcripts != nil && len(rec.Transcript) > 0 {
		if err := o.transcripts.SaveOutcome(ctx, rec); err != nil {
			slog.Error("Failed to persist session outcome",
				"session_id", sessionID, "error", err)
		}
	}

	if err := o.Destroy(sessionID); err != nil {
		slog.Debug("No live session to destroy on completion", "session_id", sessionID)
	}
	return eval, nil
}

// evaluableTranscript resolves the transcript, question count, and
// evaluation prompt for a session id, preferring live state.
func (o *Orchestrator) evaluableTranscript(ctx context.Context, sessionID string) ([]datatypes.TranscriptEntry, int, string, error) {
	if s, ok := o.sessions.Get(sessionID); ok {
		s.lock()
		defer s.unlock()
		return historyToTranscript(s.History), s.TurnCount, s.EvaluationPrompt, nil
	}

	parsed, err := ParseSessionID(sessionID)
	if err != nil || o.transcripts == nil {
		return nil, 0, "", fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	transcript, err := o.transcripts.FindTranscript(ctx, parsed.StudentID, parsed.AssignmentID)
	if err != nil {
		slog.Warn("No live session and no persisted transcript",
			"session_id", sessionID, "error", err)
		return nil, 0, "", fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	questions := 0
	for _, e := range transcript {
		if !isStudentSpeaker(e.Speaker) {
			questions++
		}
	}
	slog.Info("Recovered transcript from durable store for evaluation",
		"session_id", sessionID, "entries", len(transcript))
	return transcript, questions, o.cfg.EvaluationPrompt, nil
}

// =============================================================================
// Transcript Analysis
// =============================================================================

// isStudentSpeaker matches both the current "student" label and legacy
// lowercase variants found in older persisted transcripts.
func isStudentSpeaker(speaker string) bool {
	return strings.EqualFold(speaker, "student")
}

// participation counts the student's turns and their total trimmed length.
func participation(transcript []datatypes.TranscriptEntry) (turns, chars int) {
	for _, e := range transcript {
		if isStudentSpeaker(e.Speaker) {
			turns++
			chars += len(strings.TrimSpace(e.Text))
		}
	}
	return turns, chars
}

// renderTranscript flattens the transcript into the STUDENT / AI PROFESSOR
// form the rubric prompt describes.
func renderTranscript(transcript []datatypes.TranscriptEntry) string {
	var b strings.Builder
	for _, e := range transcript {
		if isStudentSpeaker(e.Speaker) {
			b.WriteString("STUDENT: ")
		} else {
			b.WriteString("AI PROFESSOR: ")
		}
		b.WriteString(e.Text)
		b.WriteString("\n")
	}
	return b.String()
}

// =============================================================================
// Color Aggregation
// =============================================================================

// AggregateColors derives the authoritative category and score from the
// color labels in rubric feedback.
//
// # Description
//
// Counts case-insensitive occurrences of green/yellow/red anywhere in the
// feedback text. A color mentioned at least twice wins, checked in
// green, yellow, red order; three or more greens raise the green score
// from 85 to 90. No majority at all yields a cautious yellow 70.
func AggregateColors(feedback string) (category string, score int) {
	lower := strings.ToLower(feedback)
	greens := strings.Count(lower, "green")
	yellows := strings.Count(lower, "yellow")
	reds := strings.Count(lower, "red")

	switch {
	case greens >= 2:
		if greens >= 3 {
			return datatypes.CategoryGreen, 90
		}
		return datatypes.CategoryGreen, 85
	case yellows >= 2:
		return datatypes.CategoryYellow, 75
	case reds >= 2:
		return datatypes.CategoryRed, 60
	default:
		return datatypes.CategoryYellow, 70
	}
}

// overallLineColor extracts the color the model itself claimed on its
// "Overall:" line, for discrepancy logging only.
func overallLineColor(feedback string) string {
	for _, line := range strings.Split(feedback, "\n") {
		trimmed := strings.ToLower(strings.TrimSpace(line))
		if !strings.HasPrefix(trimmed, "overall:") {
			continue
		}
		for _, color := range []string{datatypes.CategoryGreen, datatypes.CategoryYellow, datatypes.CategoryRed} {
			if strings.Contains(trimmed, color) {
				return color
			}
		}
	}
	return ""
}
