// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// Tests for the phase clock and timing configuration

package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Phase Band Tests
// =============================================================================

func TestAt_PhaseBands(t *testing.T) {
	timing := DefaultTiming()

	tests := []struct {
		name    string
		elapsed int
		want    Phase
	}{
		{"session start", 0, PhaseOpening},
		{"just before opening end", 119, PhaseOpening},
		{"opening boundary", 120, PhaseExploration},
		{"mid exploration", 300, PhaseExploration},
		{"just before exploration end", 479, PhaseExploration},
		{"exploration boundary", 480, PhaseSynthesis},
		{"just before synthesis end", 569, PhaseSynthesis},
		{"synthesis boundary", 570, PhaseWrapUp},
		{"session end", 600, PhaseWrapUp},
		{"past session end", 700, PhaseWrapUp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, timing.At(tt.elapsed).Phase)
		})
	}
}

func TestAt_NegativeElapsedClampsToZero(t *testing.T) {
	reading := DefaultTiming().At(-30)

	assert.Equal(t, PhaseOpening, reading.Phase)
	assert.Equal(t, 0, reading.ElapsedSeconds)
	assert.Equal(t, 600, reading.RemainingSeconds)
}

func TestAt_RemainingNeverNegative(t *testing.T) {
	reading := DefaultTiming().At(9000)
	assert.Equal(t, 0, reading.RemainingSeconds)
}

// =============================================================================
// Policy Flag Tests
// =============================================================================

func TestAt_FlagThresholds(t *testing.T) {
	timing := DefaultTiming()

	tests := []struct {
		name          string
		elapsed       int
		shouldWrapUp  bool
		finalQuestion bool
		autoEnd       bool
	}{
		{"mid session", 300, false, false, false},
		{"just above final-question threshold", 554, false, false, false},
		{"final-question threshold", 555, false, true, false},
		{"wrap-up starts", 570, true, true, false},
		{"just above auto-end threshold", 579, true, true, false},
		{"auto-end threshold", 580, true, true, true},
		{"session end", 600, true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reading := timing.At(tt.elapsed)
			assert.Equal(t, tt.shouldWrapUp, reading.ShouldWrapUp, "shouldWrapUp")
			assert.Equal(t, tt.finalQuestion, reading.FinalQuestion, "finalQuestion")
			assert.Equal(t, tt.autoEnd, reading.AutoEnd, "autoEnd")
		})
	}
}

// TestAt_FlagImplications sweeps every second of the session and asserts
// the implication chain AutoEnd => FinalQuestion, and that the phase index
// never regresses.
func TestAt_FlagImplications(t *testing.T) {
	timing := DefaultTiming()

	prevIndex := -1
	for elapsed := 0; elapsed <= timing.TotalSeconds+60; elapsed++ {
		reading := timing.At(elapsed)

		if reading.AutoEnd {
			assert.True(t, reading.FinalQuestion,
				"auto-end without final-question at t=%d", elapsed)
			assert.True(t, reading.ShouldWrapUp,
				"auto-end without wrap-up at t=%d", elapsed)
		}

		index := reading.Phase.Index()
		require.GreaterOrEqual(t, index, 0, "unknown phase at t=%d", elapsed)
		assert.GreaterOrEqual(t, index, prevIndex, "phase regressed at t=%d", elapsed)
		prevIndex = index
	}
}

// =============================================================================
// Timing Validation Tests
// =============================================================================

func TestTimingValidate(t *testing.T) {
	assert.NoError(t, DefaultTiming().Validate())

	t.Run("auto-end above final-question", func(t *testing.T) {
		timing := DefaultTiming()
		timing.AutoEndSeconds = 50
		assert.Error(t, timing.Validate())
	})

	t.Run("opening band after exploration band", func(t *testing.T) {
		timing := DefaultTiming()
		timing.OpeningEndSeconds = 500
		assert.Error(t, timing.Validate())
	})

	t.Run("synthesis band past total", func(t *testing.T) {
		timing := DefaultTiming()
		timing.SynthesisEndSeconds = 650
		assert.Error(t, timing.Validate())
	})
}

// =============================================================================
// MinutesElapsed Tests
// =============================================================================

func TestMinutesElapsed_RoundsToOneDecimal(t *testing.T) {
	tests := []struct {
		elapsed int
		want    float64
	}{
		{0, 0.0},
		{30, 0.5},
		{90, 1.5},
		{585, 9.8}, // 9.75 rounds up
		{600, 10.0},
	}

	timing := DefaultTiming()
	for _, tt := range tests {
		assert.InDelta(t, tt.want, timing.At(tt.elapsed).MinutesElapsed(), 0.001,
			"elapsed=%d", tt.elapsed)
	}
}
