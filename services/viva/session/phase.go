// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session implements the per-session orchestrator for timed oral
// assessments: the phase clock, history truncation, turn execution, and
// final evaluation. The HTTP boundary, completion backends, reading
// supplier, and durable transcript store are collaborators injected at
// construction time.
package session

import (
	"fmt"
	"math"
)

// =============================================================================
// Pedagogical Phases
// =============================================================================

// Phase is a time-derived pedagogical stage of the conversation.
type Phase string

const (
	PhaseOpening     Phase = "opening"
	PhaseExploration Phase = "exploration"
	PhaseSynthesis   Phase = "synthesis"
	PhaseWrapUp      Phase = "wrap_up"
)

// Index returns the position of the phase in the opening < exploration <
// synthesis < wrap_up ordering. Used to assert monotonicity.
func (p Phase) Index() int {
	switch p {
	case PhaseOpening:
		return 0
	case PhaseExploration:
		return 1
	case PhaseSynthesis:
		return 2
	case PhaseWrapUp:
		return 3
	default:
		return -1
	}
}

// =============================================================================
// Timing Configuration
// =============================================================================

// Timing holds the phase-band and circuit-breaker thresholds for a session.
//
// # Description
//
// All values are seconds. The phase bands map elapsed time to a Phase;
// FinalQuestionSeconds and AutoEndSeconds map remaining time to prompt
// flags. The ordering AutoEndSeconds < FinalQuestionSeconds and
// SynthesisEndSeconds <= TotalSeconds is a correctness invariant: auto-end
// must always imply final-question and wrap-up. Validate enforces it.
//
// # Fields
//
//   - TotalSeconds: Fixed session length. Default 600 (10 minutes).
//   - OpeningEndSeconds: End of the opening band. Default 120.
//   - ExplorationEndSeconds: End of the exploration band. Default 480.
//   - SynthesisEndSeconds: End of the synthesis band; wrap-up starts here
//     and shouldWrapUp turns on. Default 570 (9.5 minutes).
//   - FinalQuestionSeconds: Remaining-time threshold for the one-more-
//     question signal. Default 45.
//   - AutoEndSeconds: Remaining-time threshold for the hard circuit
//     breaker. Default 20.
type Timing struct {
	TotalSeconds          int
	OpeningEndSeconds     int
	ExplorationEndSeconds int
	SynthesisEndSeconds   int
	FinalQuestionSeconds  int
	AutoEndSeconds        int
}

// DefaultTiming returns the standard 10-minute session thresholds.
func DefaultTiming() Timing {
	return Timing{
		TotalSeconds:          600,
		OpeningEndSeconds:     120,
		ExplorationEndSeconds: 480,
		SynthesisEndSeconds:   570,
		FinalQuestionSeconds:  45,
		AutoEndSeconds:        20,
	}
}

// Validate checks the threshold ordering invariant.
//
// # Description
//
// Requires 0 < AutoEndSeconds < FinalQuestionSeconds and
// 0 < OpeningEnd < ExplorationEnd < SynthesisEnd <= TotalSeconds.
// A Timing that fails Validate could produce an auto-end turn that is not
// also flagged as final-question and wrap-up, which downstream prompt
// rendering assumes never happens.
//
// # Outputs
//
//   - error: Non-nil with the violated relation named.
func (t Timing) Validate() error {
	if t.AutoEndSeconds <= 0 || t.AutoEndSeconds >= t.FinalQuestionSeconds {
		return fmt.Errorf("timing: auto-end threshold %d must be positive and below final-question threshold %d",
			t.AutoEndSeconds, t.FinalQuestionSeconds)
	}
	if t.OpeningEndSeconds <= 0 || t.OpeningEndSeconds >= t.ExplorationEndSeconds {
		return fmt.Errorf("timing: opening band end %d must be positive and below exploration band end %d",
			t.OpeningEndSeconds, t.ExplorationEndSeconds)
	}
	if t.ExplorationEndSeconds >= t.SynthesisEndSeconds {
		return fmt.Errorf("timing: exploration band end %d must be below synthesis band end %d",
			t.ExplorationEndSeconds, t.SynthesisEndSeconds)
	}
	if t.SynthesisEndSeconds > t.TotalSeconds {
		return fmt.Errorf("timing: synthesis band end %d must not exceed total session length %d",
			t.SynthesisEndSeconds, t.TotalSeconds)
	}
	return nil
}

// =============================================================================
// Phase Clock
// =============================================================================

// ClockReading is the phase clock's output for one instant.
type ClockReading struct {
	Phase            Phase
	ElapsedSeconds   int
	RemainingSeconds int
	ShouldWrapUp     bool
	FinalQuestion    bool
	AutoEnd          bool
}

// At maps elapsed seconds to a phase and the derived policy flags.
//
// # Description
//
// Pure function of elapsed time; the caller computes elapsed from the
// session's immutable start time, which makes the resulting phase
// monotonic by construction. FinalQuestion is reported true whenever the
// remaining time is at or below the final-question threshold, including
// inside the auto-end window, so AutoEnd implies FinalQuestion implies
// ShouldWrapUp.
//
// # Inputs
//
//   - elapsedSeconds: Whole seconds since session start. Negative values
//     are clamped to zero.
//
// # Outputs
//
//   - ClockReading: Phase, remaining time, and policy flags.
func (t Timing) At(elapsedSeconds int) ClockReading {
	if elapsedSeconds < 0 {
		elapsedSeconds = 0
	}

	remaining := t.TotalSeconds - elapsedSeconds
	if remaining < 0 {
		remaining = 0
	}

	var phase Phase
	switch {
	case elapsedSeconds < t.OpeningEndSeconds:
		phase = PhaseOpening
	case elapsedSeconds < t.ExplorationEndSeconds:
		phase = PhaseExploration
	case elapsedSeconds < t.SynthesisEndSeconds:
		phase = PhaseSynthesis
	default:
		phase = PhaseWrapUp
	}

	return ClockReading{
		Phase:            phase,
		ElapsedSeconds:   elapsedSeconds,
		RemainingSeconds: remaining,
		ShouldWrapUp:     elapsedSeconds >= t.SynthesisEndSeconds,
		FinalQuestion:    remaining <= t.FinalQuestionSeconds,
		AutoEnd:          remaining <= t.AutoEndSeconds,
	}
}

// MinutesElapsed reports elapsed time in minutes rounded to one decimal,
// matching the metadata envelope contract.
func (r ClockReading) MinutesElapsed() float64 {
	return math.Round(float64(r.ElapsedSeconds)/60*10) / 10
}
