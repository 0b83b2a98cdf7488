// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store persists finalized session records and serves transcript
// recovery after in-memory session state has been discarded.
package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jinterlante1206/VivaLocal/services/viva/datatypes"
)

// ErrNoTranscript means no persisted record exists for the key.
var ErrNoTranscript = errors.New("no persisted transcript")

// OutcomeRecord is a finalized session as persisted by the durable store.
//
// One record exists per (student, assignment); re-completing a session
// overwrites the previous outcome.
type OutcomeRecord struct {
	StudentID    int
	AssignmentID int
	Status       string // "completed" or "failed"
	StartedAt    time.Time
	CompletedAt  time.Time
	Transcript   []datatypes.TranscriptEntry
	Score        int
	Category     string
	Feedback     string
}

// TranscriptStore is the durable-store collaborator.
//
// # Description
//
// FindTranscript backs the Evaluator's recovery path: after the live
// session is destroyed, the persisted transcript is the only evaluable
// state left. Implementations must be safe for concurrent use.
type TranscriptStore interface {
	// FindTranscript returns the persisted transcript for the key, or
	// ErrNoTranscript.
	FindTranscript(ctx context.Context, studentID, assignmentID int) ([]datatypes.TranscriptEntry, error)

	// SaveOutcome upserts a finalized session record.
	SaveOutcome(ctx context.Context, rec OutcomeRecord) error

	// Close releases backing resources.
	Close()
}

// =============================================================================
// In-Memory Store
// =============================================================================

// MemoryStore is a process-local TranscriptStore for tests and for
// deployments without Postgres configured.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[[2]int]OutcomeRecord
}

// NewMemoryStore returns an empty in-memory transcript store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[[2]int]OutcomeRecord)}
}

func (m *MemoryStore) FindTranscript(ctx context.Context, studentID, assignmentID int) ([]datatypes.TranscriptEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[[2]int{studentID, assignmentID}]
	if !ok || len(rec.Transcript) == 0 {
		return nil, ErrNoTranscript
	}
	out := make([]datatypes.TranscriptEntry, len(rec.Transcript))
	copy(out, rec.Transcript)
	return out, nil
}

func (m *MemoryStore) SaveOutcome(ctx context.Context, rec OutcomeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[[2]int{rec.StudentID, rec.AssignmentID}] = rec
	return nil
}

func (m *MemoryStore) Close() {}
