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
)

// =============================================================================
// Fixed Replies
// =============================================================================

// FarewellMessage is the synthetic assistant reply appended when the
// auto-end circuit breaker fires. No completion call produces it.
const FarewellMessage = "Thank you for a good conversation. Let's wrap up here."

// fallbackReplyFormat is the in-character reply returned when the
// completion service fails mid-conversation. The session stays usable.
const fallbackReplyFormat = "I apologize, but I encountered an error. Let's continue: %s"

// minimalParticipationFeedback is the fixed per-objective feedback for
// transcripts with too little student participation to evaluate.
const minimalParticipationFeedback = "Explain and Apply Institutions & Principles: [Red] - Student did not provide sufficient responses to demonstrate understanding of institutional concepts.\n\n" +
	"Interpret and Compare Theories & Justifications: [Red] - Minimal student participation prevented assessment of theoretical analysis skills.\n\n" +
	"Evaluate Effectiveness & Fairness: [Red] - Student did not engage enough to show critical evaluation abilities.\n\n" +
	"Propose and Justify Reforms: [Red] - No meaningful reform proposals were offered by the student.\n\n" +
	"Overall: [Red] - Session ended with insufficient student participation to assess learning objectives."

// =============================================================================
// Default System Prompts
// =============================================================================

// DefaultTutorPrompt guides the interlocutor. Sessions may override it at
// creation time; it is resolved onto the session record exactly once.
const DefaultTutorPrompt = `You are a humanities professor guiding a student in a thoughtful, spoken-style conversation about assigned public policy and political theory readings.

You will always receive the week's readings as context. Draw your questions and comments directly from those readings. Never invent authors or concepts that do not appear in the provided material.

## Key Behaviors
- Ask exactly one question per turn.
- Keep responses short (1-2 sentences) and natural when read aloud.
- Quote or paraphrase the reading only when it makes the question clearer.
- If the student seems uncertain, rephrase simply before going deeper.
- Challenge respectfully with counterpoints from the text.
- Vary question structure; avoid repeating the same phrasings.
- Pace questions by the session timer, not by a fixed question count.

## Time-Based Conversation Structure (10-minute session)
1. Opening (minutes 0-2): accessible questions to establish baseline understanding.
2. Exploration (minutes 2-8): challenges, complications, and pivots drawn from the readings.
3. Synthesis (minutes 8-9.5): connect the readings to larger themes and civic life today.
4. Wrap-up (final 30 seconds): a brief reflective synthesis without questions.

You will see the elapsed and remaining time with each message. Adjust your approach accordingly and always respect the time phases regardless of how many questions you have asked.`

// DefaultEvaluationPrompt drives the post-session assessment. The rubric
// names four learning objectives plus an Overall line; the orchestrator
// counts the color labels itself and ignores the Overall line for scoring.
const DefaultEvaluationPrompt = `You are assessing a student's oral exam in American civics/politics using the transcript and assigned readings.

## CRITICAL: Evaluate ONLY the STUDENT responses
The transcript shows STUDENT and AI PROFESSOR speakers. Only evaluate what the STUDENT said.

## Instructions
Evaluate the student on the 4 learning objectives below. For each objective write 1 short bullet explaining if the student met it and why, citing what they said. Do not reward verbosity or filler. Use plain English.

## Minimal Participation Handling
If the student gave minimal, unclear, or no meaningful responses, rate the objectives not demonstrated as Red and say that insufficient participation prevented assessment. Do not invent student knowledge not explicitly shown.

## Scoring
- Green: clear, thoughtful, and text-grounded with higher-order thinking.
- Yellow: adequate but surface-level, lacking depth or evidence from the text.
- Red: weak or absent; little evidence of having done the reading.

## Output Format (only)
Explain and Apply Institutions & Principles: [Green/Yellow/Red]  [bullet]
Interpret and Compare Theories & Justifications: [Green/Yellow/Red]  [bullet]
Evaluate Effectiveness & Fairness: [Green/Yellow/Red]  [bullet]
Propose and Justify Reforms: [Green/Yellow/Red]  [bullet]
Overall: [Green/Yellow/Red]`

// =============================================================================
// Status Block Rendering
// =============================================================================

// phaseGuidance returns the pacing instruction injected into the status
// block for each phase.
func phaseGuidance(r ClockReading) string {
	switch {
	case r.FinalQuestion && !r.ShouldWrapUp:
		return "Time is nearly up. Ask at most ONE more focused question, then prepare to close."
	case r.ShouldWrapUp:
		return "Provide a brief reflective synthesis of the conversation. Do not ask any further questions."
	case r.Phase == PhaseOpening:
		return "Start with accessible questions to gauge the student's familiarity with the text."
	case r.Phase == PhaseExploration:
		return "Probe deeper: challenges, counterpoints, and pivots to other passages."
	default: // synthesis
		return "Connect the readings to larger themes and their application to civic life today."
	}
}

// renderStatusBlock builds the per-turn session status appended to the
// system prompt so the model can pace itself against the wall clock.
func renderStatusBlock(r ClockReading, turnCount int) string {
	var b strings.Builder
	b.WriteString("## SESSION STATUS\n")
	fmt.Fprintf(&b, "Elapsed: %.1f minutes (%d seconds). Remaining: %d seconds.\n",
		r.MinutesElapsed(), r.ElapsedSeconds, r.RemainingSeconds)
	fmt.Fprintf(&b, "Phase: %s. Questions asked so far: %d.\n", r.Phase, turnCount)
	b.WriteString(phaseGuidance(r))
	return b.String()
}
