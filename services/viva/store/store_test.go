// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// Tests for the in-memory transcript store

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinterlante1206/VivaLocal/services/viva/datatypes"
)

func sampleRecord() OutcomeRecord {
	return OutcomeRecord{
		StudentID:    42,
		AssignmentID: 7,
		Status:       "completed",
		StartedAt:    time.Unix(1735000000, 0),
		CompletedAt:  time.Unix(1735000600, 0),
		Transcript: []datatypes.TranscriptEntry{
			{Speaker: "student", Text: "An answer."},
			{Speaker: "assistant", Text: "A question?"},
		},
		Score:    85,
		Category: "green",
		Feedback: "A: [Green]",
	}
}

// =============================================================================
// MemoryStore Tests
// =============================================================================

func TestMemoryStore_SaveAndFind(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	require.NoError(t, s.SaveOutcome(context.Background(), sampleRecord()))

	transcript, err := s.FindTranscript(context.Background(), 42, 7)
	require.NoError(t, err)
	require.Len(t, transcript, 2)
	assert.Equal(t, "student", transcript[0].Speaker)
}

func TestMemoryStore_FindMissing(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.FindTranscript(context.Background(), 1, 1)
	assert.ErrorIs(t, err, ErrNoTranscript)
}

func TestMemoryStore_EmptyTranscriptIsMissing(t *testing.T) {
	s := NewMemoryStore()
	rec := sampleRecord()
	rec.Transcript = nil
	require.NoError(t, s.SaveOutcome(context.Background(), rec))

	_, err := s.FindTranscript(context.Background(), 42, 7)
	assert.ErrorIs(t, err, ErrNoTranscript)
}

func TestMemoryStore_UpsertOverwrites(t *testing.T) {
	s := NewMemoryStore()

	first := sampleRecord()
	require.NoError(t, s.SaveOutcome(context.Background(), first))

	second := sampleRecord()
	second.Transcript = append(second.Transcript,
		datatypes.TranscriptEntry{Speaker: "student", Text: "One more."})
	require.NoError(t, s.SaveOutcome(context.Background(), second))

	transcript, err := s.FindTranscript(context.Background(), 42, 7)
	require.NoError(t, err)
	assert.Len(t, transcript, 3)
}

func TestMemoryStore_ReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.SaveOutcome(context.Background(), sampleRecord()))

	transcript, err := s.FindTranscript(context.Background(), 42, 7)
	require.NoError(t, err)
	transcript[0].Text = "mutated"

	again, err := s.FindTranscript(context.Background(), 42, 7)
	require.NoError(t, err)
	assert.Equal(t, "An answer.", again[0].Text)
}
