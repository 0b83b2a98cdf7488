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
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/jinterlante1206/VivaLocal/services/llm"
	"github.com/jinterlante1206/VivaLocal/services/viva/datatypes"
	"github.com/jinterlante1206/VivaLocal/services/viva/readings"
	"github.com/jinterlante1206/VivaLocal/services/viva/store"
)

var tracer = otel.Tracer("viva.session")

// =============================================================================
// Completion Parameters
// =============================================================================

const (
	// turnTemperature and turnMaxTokens keep conversational replies short
	// and spoken-style.
	turnTemperature = 0.7
	turnMaxTokens   = 300

	// Per-token pricing for the cost estimate in the metadata envelope
	// (gpt-4o-mini rates, USD per 1K tokens).
	inputCostPer1K  = 0.00015
	outputCostPer1K = 0.0006
)

// =============================================================================
// Orchestrator
// =============================================================================

// Config holds orchestrator configuration. Zero values select defaults.
type Config struct {
	// Timing holds the phase bands and circuit-breaker thresholds.
	Timing Timing

	// RecentWindow is the truncator's verbatim-recent window size.
	// Default: DefaultRecentWindow.
	RecentWindow int

	// TurnTimeout bounds each completion-service call. Default: 30s.
	TurnTimeout time.Duration

	// DefaultDocumentRefs ground auto-recovered sessions that carry no
	// reading configuration of their own.
	DefaultDocumentRefs []string

	// TutorPrompt and EvaluationPrompt override the package defaults for
	// sessions that do not supply their own.
	TutorPrompt      string
	EvaluationPrompt string
}

// Orchestrator drives timed oral-assessment sessions.
//
// # Description
//
// Owns the live session registry and coordinates the collaborators: the
// completion service for generation, the reading supplier for grounding
// context, and the durable transcript store for post-mortem evaluation
// recovery. Per-session mutual exclusion lives on the Session itself, so
// turns for different sessions run fully in parallel.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type Orchestrator struct {
	cfg         Config
	sessions    Store
	completions llm.CompletionClient
	readings    readings.Supplier
	transcripts store.TranscriptStore

	// now is swapped in tests to drive the phase clock.
	now func() time.Time
}

// New creates an Orchestrator.
//
// # Inputs
//
//   - cfg: Configuration; zero-valued fields get defaults.
//   - sessions: Live session registry.
//   - completions: Completion-service client.
//   - supplier: Reading supplier. May be nil if all sessions use raw text.
//   - transcripts: Durable store for recovery and outcome persistence.
//     May be nil; recovery is then impossible.
//
// # Outputs
//
//   - *Orchestrator: Ready for concurrent use.
//   - error: Non-nil if the timing thresholds violate their ordering
//     invariant.
func New(cfg Config, sessions Store, completions llm.CompletionClient,
	supplier readings.Supplier, transcripts store.TranscriptStore) (*Orchestrator, error) {

	if cfg.Timing == (Timing{}) {
		cfg.Timing = DefaultTiming()
	}
	if err := cfg.Timing.Validate(); err != nil {
		return nil, err
	}
	if cfg.RecentWindow <= 0 {
		cfg.RecentWindow = DefaultRecentWindow
	}
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = 30 * time.Second
	}
	if cfg.TutorPrompt == "" {
		cfg.TutorPrompt = DefaultTutorPrompt
	}
	if cfg.EvaluationPrompt == "" {
		cfg.EvaluationPrompt = DefaultEvaluationPrompt
	}

	return &Orchestrator{
		cfg:         cfg,
		sessions:    sessions,
		completions: completions,
		readings:    supplier,
		transcripts: transcripts,
		now:         time.Now,
	}, nil
}

// =============================================================================
// Session Lifecycle
// =============================================================================

// CreateParams carries the caller-supplied session configuration.
type CreateParams struct {
	StudentID    int
	AssignmentID int

	// DocumentRefs or ReadingText ground the session. ReadingText wins
	// when both are set.
	DocumentRefs []string
	ReadingText  string

	TutorPrompt      string
	EvaluationPrompt string
}

// CreateSession initializes a new session and registers it.
//
// # Description
//
// Resolves documents through the reading supplier (failures omit the
// document, they never fail the call), assembles the background context
// once, resolves prompts onto the session record, and fixes the start
// time. The returned session id follows the public
// session_{studentId}_{assignmentId}_{unixTimestamp} contract.
func (o *Orchestrator) CreateSession(ctx context.Context, p CreateParams) (*Session, error) {
	now := o.now()
	id := NewSessionID(p.StudentID, p.AssignmentID, now)
	if _, exists := o.sessions.Get(id); exists {
		return nil, fmt.Errorf("%w: %s", ErrSessionConflict, id)
	}

	var background string
	var docCount int
	usingRaw := p.ReadingText != ""
	if usingRaw {
		background = AssembleRawContext(p.ReadingText)
	} else {
		docs := map[string]string{}
		if o.readings != nil && len(p.DocumentRefs) > 0 {
			resolved, err := o.readings.Resolve(ctx, p.DocumentRefs)
			if err != nil {
				slog.Warn("reading supplier failed, continuing without material",
					"session_id", id, "error", err)
			} else {
				docs = resolved
			}
		}
		background = AssembleContext(docs)
		docCount = len(docs)
	}

	s := &Session{
		ID:                id,
		StudentID:         p.StudentID,
		AssignmentID:      p.AssignmentID,
		BackgroundContext: background,
		TutorPrompt:       resolvePrompt(p.TutorPrompt, o.cfg.TutorPrompt),
		EvaluationPrompt:  resolvePrompt(p.EvaluationPrompt, o.cfg.EvaluationPrompt),
		StartTime:         now,
		LastActivity:      now,
		Phase:             PhaseOpening,
		DocumentCount:     docCount,
		UsingRawText:      usingRaw,
	}
	o.sessions.Put(s)

	slog.Info("Initialized session",
		"session_id", id,
		"documents", docCount,
		"raw_text", usingRaw,
		"context_chars", len(background))
	return s, nil
}

// resolvePrompt picks the first non-empty prompt.
func resolvePrompt(supplied, configured string) string {
	if supplied != "" {
		return supplied
	}
	return configured
}

// Destroy removes a session from the registry.
//
// # Description
//
// Waits behind the per-session lock so an in-flight turn finishes before
// the state goes away. Returns ErrSessionNotFound for unknown ids.
func (o *Orchestrator) Destroy(sessionID string) error {
	s, ok := o.sessions.Delete(sessionID)
	if !ok {
		slog.Warn("Attempted to destroy non-existent session", "session_id", sessionID)
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	s.lock()
	messageCount := len(s.History)
	s.unlock()

	slog.Info("Destroyed session", "session_id", sessionID, "messages", messageCount)
	return nil
}

// Stats reports a session's counters without mutating it.
func (o *Orchestrator) Stats(sessionID string) (datatypes.StatsResponse, error) {
	s, ok := o.sessions.Get(sessionID)
	if !ok {
		return datatypes.StatsResponse{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	s.lock()
	defer s.unlock()
	return datatypes.StatsResponse{
		TurnCount:     s.TurnCount,
		Phase:         string(s.Phase),
		MessageCount:  len(s.History),
		DocumentCount: s.DocumentCount,
		UsingRawText:  s.UsingRawText,
	}, nil
}

// Transcript exports the session history in durable-store format,
// dropping synthetic system turns.
func (o *Orchestrator) Transcript(sessionID string) ([]datatypes.TranscriptEntry, error) {
	s, ok := o.sessions.Get(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	s.lock()
	defer s.unlock()
	return historyToTranscript(s.History), nil
}

func historyToTranscript(history []datatypes.Turn) []datatypes.TranscriptEntry {
	out := make([]datatypes.TranscriptEntry, 0, len(history))
	for _, turn := range history {
		switch turn.Role {
		case datatypes.RoleStudent:
			out = append(out, datatypes.TranscriptEntry{Speaker: "student", Text: turn.Content})
		case datatypes.RoleAssistant:
			out = append(out, datatypes.TranscriptEntry{Speaker: "assistant", Text: turn.Content})
		}
	}
	return out
}

// =============================================================================
// Turn Execution
// =============================================================================

// HandleTurn runs one conversational turn.
//
// # Description
//
// Resolves (or leniently recovers) the session, consults the phase clock,
// and either short-circuits with the fixed farewell (auto-end) or calls
// the completion service with the truncated history and a rendered status
// block. Completion failures do not mutate the session: the student gets
// an apologetic in-character reply, the metadata envelope carries only the
// error, and the next turn proceeds normally.
//
// # Inputs
//
//   - ctx: Bounds the completion call together with Config.TurnTimeout.
//   - sessionID: Public session identifier.
//   - message: The student's new message.
//
// # Outputs
//
//   - string: The interlocutor's reply (or farewell / fallback text).
//   - datatypes.TurnMetadata: Pacing metadata for the caller's timer UI.
//   - error: ErrSessionNotFound when no live or recoverable session
//     exists. Completion failures are NOT returned as errors.
func (o *Orchestrator) HandleTurn(ctx context.Context, sessionID, message string) (string, datatypes.TurnMetadata, error) {
	ctx, span := tracer.Start(ctx, "HandleTurn")
	defer span.End()

	s, ok := o.sessions.Get(sessionID)
	if !ok {
		recovered, err := o.recoverSession(ctx, sessionID)
		if err != nil {
			span.SetStatus(codes.Error, "session not found")
			return "", datatypes.TurnMetadata{}, err
		}
		s = recovered
	}

	s.lock()
	defer s.unlock()

	now := o.now()
	s.LastActivity = now
	reading := o.cfg.Timing.At(int(now.Sub(s.StartTime).Seconds()))

	if s.Ended || reading.AutoEnd {
		return o.autoEndTurn(s, message, reading), o.autoEndMetadata(s, reading), nil
	}

	systemPrompt := renderSystemPrompt(s.TutorPrompt, s.BackgroundContext, reading, s.TurnCount)
	turns := TruncateHistory(s.History, s.TurnCount, o.cfg.RecentWindow)

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.TurnTimeout)
	defer cancel()

	result, err := o.completions.Complete(callCtx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Turns:        turns,
		NewMessage:   message,
		Temperature:  turnTemperature,
		MaxTokens:    turnMaxTokens,
	})
	if err != nil {
		// Local recovery: nothing was appended, the session stays usable.
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Completion service failed for turn",
			"session_id", s.ID, "turn", s.TurnCount+1, "error", err)
		return fmt.Sprintf(fallbackReplyFormat, err.Error()),
			datatypes.TurnMetadata{Error: err.Error()}, nil
	}

	s.History = append(s.History,
		datatypes.Turn{Role: datatypes.RoleStudent, Content: message},
		datatypes.Turn{Role: datatypes.RoleAssistant, Content: result.Text},
	)
	s.TurnCount++
	s.Phase = reading.Phase

	usage := &datatypes.TokenUsage{
		InputTokens:      result.InputTokens,
		OutputTokens:     result.OutputTokens,
		TotalTokens:      result.InputTokens + result.OutputTokens,
		EstimatedCostUSD: (float64(result.InputTokens)*inputCostPer1K + float64(result.OutputTokens)*outputCostPer1K) / 1000,
	}

	slog.Info("Completed turn",
		"session_id", s.ID,
		"turn", s.TurnCount,
		"phase", reading.Phase,
		"total_tokens", usage.TotalTokens)

	return result.Text, datatypes.TurnMetadata{
		TurnCount:        s.TurnCount,
		Phase:            string(reading.Phase),
		ShouldWrapUp:     reading.ShouldWrapUp,
		FinalQuestion:    reading.FinalQuestion,
		AutoEnd:          false,
		ElapsedSeconds:   reading.ElapsedSeconds,
		MinutesElapsed:   reading.MinutesElapsed(),
		RemainingSeconds: reading.RemainingSeconds,
		TokenUsage:       usage,
	}, nil
}

// autoEndTurn appends the student's message and the fixed farewell.
// TurnCount stays put: no assistant question was generated.
func (o *Orchestrator) autoEndTurn(s *Session, message string, reading ClockReading) string {
	if !s.Ended {
		slog.Info("Auto-ending session",
			"session_id", s.ID, "remaining_seconds", reading.RemainingSeconds)
	}
	s.History = append(s.History,
		datatypes.Turn{Role: datatypes.RoleStudent, Content: message},
		datatypes.Turn{Role: datatypes.RoleAssistant, Content: FarewellMessage},
	)
	s.Ended = true
	s.Phase = PhaseWrapUp
	return FarewellMessage
}

func (o *Orchestrator) autoEndMetadata(s *Session, reading ClockReading) datatypes.TurnMetadata {
	return datatypes.TurnMetadata{
		TurnCount:        s.TurnCount,
		Phase:            string(PhaseWrapUp),
		ShouldWrapUp:     true,
		FinalQuestion:    true,
		AutoEnd:          true,
		ElapsedSeconds:   reading.ElapsedSeconds,
		MinutesElapsed:   reading.MinutesElapsed(),
		RemainingSeconds: reading.RemainingSeconds,
		TokenUsage:       &datatypes.TokenUsage{},
	}
}

// renderSystemPrompt combines the tutor prompt, the reading material, and
// the per-turn status block.
func renderSystemPrompt(tutorPrompt, background string, reading ClockReading, turnCount int) string {
	return fmt.Sprintf("%s\n\n## READING MATERIALS:\n%s\n\n%s",
		tutorPrompt, background, renderStatusBlock(reading, turnCount))
}

// =============================================================================
// Lenient Recovery
// =============================================================================

// recoverSession rebuilds a session for an unknown id when the id itself
// parses. The recovered session starts its clock now and grounds itself on
// the default document set; live timing state is not recoverable.
func (o *Orchestrator) recoverSession(ctx context.Context, sessionID string) (*Session, error) {
	parsed, err := ParseSessionID(sessionID)
	if err != nil {
		slog.Error("Session not found and id is unrecoverable",
			"session_id", sessionID, "error", err)
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	slog.Info("Auto-recovering session with default documents",
		"session_id", sessionID,
		"student_id", parsed.StudentID,
		"assignment_id", parsed.AssignmentID)

	s, err := o.CreateSession(ctx, CreateParams{
		StudentID:    parsed.StudentID,
		AssignmentID: parsed.AssignmentID,
		DocumentRefs: o.cfg.DefaultDocumentRefs,
	})
	if err != nil {
		return nil, err
	}

	// CreateSession keyed the new record by its own creation time; the
	// caller keeps using the original id, so re-register under it.
	o.sessions.Delete(s.ID)
	s.ID = sessionID
	o.sessions.Put(s)
	return s, nil
}
