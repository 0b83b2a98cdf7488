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
	"sync"
	"time"

	"github.com/jinterlante1206/VivaLocal/services/viva/datatypes"
)

// =============================================================================
// Session State
// =============================================================================

// Session is the unit of orchestration: one student's timed conversation.
//
// # Description
//
// All mutable fields are guarded by mu, which also serializes turns: at
// most one turn is ever in flight per session, and destroy waits behind
// the same lock. StartTime and BackgroundContext never change after
// creation; Phase is recomputed from elapsed time each turn and therefore
// never regresses.
//
// # Thread Safety
//
// Callers must hold mu while reading or writing the mutable fields. The
// orchestrator is the only writer.
type Session struct {
	ID           string
	StudentID    int
	AssignmentID int

	// BackgroundContext is the assembled reading material, built once at
	// creation.
	BackgroundContext string

	// TutorPrompt and EvaluationPrompt are resolved (caller-supplied or
	// default) exactly once at creation.
	TutorPrompt      string
	EvaluationPrompt string

	StartTime    time.Time
	LastActivity time.Time

	// History is append-only during the conversation and never reordered.
	History []datatypes.Turn

	// TurnCount equals the number of assistant turns produced. Monotonic.
	TurnCount int

	// Phase is derived solely from elapsed time, recomputed each turn.
	Phase Phase

	// Ended latches true the first time auto-end fires; afterwards no
	// completion calls are made for this session.
	Ended bool

	DocumentCount int
	UsingRawText  bool

	mu sync.Mutex
}

// lock acquires the per-session mutex. Turn execution, evaluation reads,
// and destruction all serialize on it.
func (s *Session) lock()   { s.mu.Lock() }
func (s *Session) unlock() { s.mu.Unlock() }

// =============================================================================
// Session Registry
// =============================================================================

// Store is the keyed registry of live sessions.
//
// # Description
//
// Implementations must support concurrent insert/lookup/delete. The store
// holds only process-local state; finished sessions survive it through the
// durable transcript store.
type Store interface {
	// Get returns the session for id, or false.
	Get(id string) (*Session, bool)

	// Put registers a session under its ID, replacing any previous entry.
	Put(s *Session)

	// Delete removes the session for id and returns it, or false if absent.
	// Removing the map entry does not interrupt an in-flight turn; the
	// caller holds the session lock around actual teardown.
	Delete(id string) (*Session, bool)

	// IDs returns a snapshot of the registered session ids.
	IDs() []string

	// Len reports the number of live sessions.
	Len() int
}

// memoryStore is the in-process Store used in production and tests.
type memoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryStore returns an empty concurrency-safe session registry.
func NewMemoryStore() Store {
	return &memoryStore{sessions: make(map[string]*Session)}
}

func (m *memoryStore) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *memoryStore) Put(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
}

func (m *memoryStore) Delete(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	return s, ok
}

func (m *memoryStore) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

func (m *memoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
