// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// Tests for the turn orchestrator

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinterlante1206/VivaLocal/services/llm"
	"github.com/jinterlante1206/VivaLocal/services/viva/datatypes"
	"github.com/jinterlante1206/VivaLocal/services/viva/readings"
	"github.com/jinterlante1206/VivaLocal/services/viva/store"
)

// =============================================================================
// Test Fixtures
// =============================================================================

// mockCompletionClient records calls and returns a canned reply or error.
type mockCompletionClient struct {
	mu       sync.Mutex
	calls    int
	reply    string
	inTokens int
	outTok   int
	err      error
	lastReq  llm.CompletionRequest
}

func (m *mockCompletionClient) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return &llm.CompletionResult{
		Text:         m.reply,
		InputTokens:  m.inTokens,
		OutputTokens: m.outTok,
	}, nil
}

func (m *mockCompletionClient) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockCompletionClient) lastRequest() llm.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastReq
}

var testBase = time.Unix(1735000000, 0)

// newTestOrchestrator wires an orchestrator with in-memory collaborators
// and a frozen clock at testBase.
func newTestOrchestrator(t *testing.T, client llm.CompletionClient) (*Orchestrator, *store.MemoryStore) {
	t.Helper()

	transcripts := store.NewMemoryStore()
	supplier := &readings.StaticSupplier{Docs: map[string]string{
		"week1.txt": "The reading for week one.",
	}}

	orch, err := New(Config{
		DefaultDocumentRefs: []string{"week1.txt"},
	}, NewMemoryStore(), client, supplier, transcripts)
	require.NoError(t, err)

	orch.now = func() time.Time { return testBase }
	return orch, transcripts
}

// advanceTo moves the orchestrator clock to testBase + elapsed.
func advanceTo(orch *Orchestrator, elapsed time.Duration) {
	orch.now = func() time.Time { return testBase.Add(elapsed) }
}

func mustCreate(t *testing.T, orch *Orchestrator) *Session {
	t.Helper()
	s, err := orch.CreateSession(context.Background(), CreateParams{
		StudentID:    42,
		AssignmentID: 7,
		DocumentRefs: []string{"week1.txt"},
	})
	require.NoError(t, err)
	return s
}

// =============================================================================
// CreateSession Tests
// =============================================================================

func TestCreateSession_WithDocuments(t *testing.T) {
	orch, _ := newTestOrchestrator(t, &mockCompletionClient{reply: "ok"})
	s := mustCreate(t, orch)

	assert.Equal(t, "session_42_7_1735000000", s.ID)
	assert.Equal(t, 1, s.DocumentCount)
	assert.False(t, s.UsingRawText)
	assert.Equal(t, PhaseOpening, s.Phase)
	assert.Contains(t, s.BackgroundContext, "=== week1.txt ===")
	assert.NotEmpty(t, s.TutorPrompt)
	assert.NotEmpty(t, s.EvaluationPrompt)
}

func TestCreateSession_RawTextWins(t *testing.T) {
	orch, _ := newTestOrchestrator(t, &mockCompletionClient{reply: "ok"})

	s, err := orch.CreateSession(context.Background(), CreateParams{
		StudentID:    1,
		AssignmentID: 2,
		DocumentRefs: []string{"week1.txt"},
		ReadingText:  "Pasted text.",
	})
	require.NoError(t, err)

	assert.True(t, s.UsingRawText)
	assert.Zero(t, s.DocumentCount)
	assert.Contains(t, s.BackgroundContext, "=== Reading Material ===\nPasted text.")
}

func TestCreateSession_UnresolvedDocsYieldSentinel(t *testing.T) {
	orch, _ := newTestOrchestrator(t, &mockCompletionClient{reply: "ok"})

	s, err := orch.CreateSession(context.Background(), CreateParams{
		StudentID:    1,
		AssignmentID: 2,
		DocumentRefs: []string{"missing.txt"},
	})
	require.NoError(t, err)

	assert.Zero(t, s.DocumentCount)
	assert.Equal(t, NoMaterialSentinel, s.BackgroundContext)
}

// =============================================================================
// HandleTurn Tests
// =============================================================================

func TestHandleTurn_Success(t *testing.T) {
	client := &mockCompletionClient{reply: "What does Madison mean by faction?", inTokens: 1000, outTok: 500}
	orch, _ := newTestOrchestrator(t, client)
	s := mustCreate(t, orch)

	advanceTo(orch, 30*time.Second)
	reply, metadata, err := orch.HandleTurn(context.Background(), s.ID, "Hello, I'm ready.")
	require.NoError(t, err)

	assert.Equal(t, "What does Madison mean by faction?", reply)
	assert.Equal(t, 1, metadata.TurnCount)
	assert.Equal(t, "opening", metadata.Phase)
	assert.False(t, metadata.ShouldWrapUp)
	assert.False(t, metadata.AutoEnd)
	assert.Equal(t, 30, metadata.ElapsedSeconds)
	assert.Equal(t, 570, metadata.RemainingSeconds)
	assert.InDelta(t, 0.5, metadata.MinutesElapsed, 0.001)

	require.NotNil(t, metadata.TokenUsage)
	assert.Equal(t, 1500, metadata.TokenUsage.TotalTokens)
	assert.InDelta(t, 0.00045, metadata.TokenUsage.EstimatedCostUSD, 1e-9)

	s.lock()
	assert.Len(t, s.History, 2)
	assert.Equal(t, 1, s.TurnCount)
	assert.Equal(t, datatypes.RoleStudent, s.History[0].Role)
	assert.Equal(t, datatypes.RoleAssistant, s.History[1].Role)
	s.unlock()

	req := client.lastRequest()
	assert.Contains(t, req.SystemPrompt, "## READING MATERIALS:")
	assert.Contains(t, req.SystemPrompt, "## SESSION STATUS")
	assert.Contains(t, req.SystemPrompt, "Remaining: 570 seconds")
	assert.Equal(t, "Hello, I'm ready.", req.NewMessage)
	assert.InDelta(t, 0.7, float64(req.Temperature), 0.001)
	assert.Equal(t, 300, req.MaxTokens)
}

func TestHandleTurn_CompletionFailureLeavesSessionUntouched(t *testing.T) {
	client := &mockCompletionClient{err: errors.New("upstream 500")}
	orch, _ := newTestOrchestrator(t, client)
	s := mustCreate(t, orch)

	advanceTo(orch, time.Minute)
	reply, metadata, err := orch.HandleTurn(context.Background(), s.ID, "First answer.")
	require.NoError(t, err, "completion failure is not a turn error")

	assert.Contains(t, reply, "I apologize, but I encountered an error")
	assert.Contains(t, reply, "upstream 500")
	assert.Equal(t, "upstream 500", metadata.Error)
	assert.Nil(t, metadata.TokenUsage)

	s.lock()
	assert.Empty(t, s.History, "failed turn must not mutate history")
	assert.Zero(t, s.TurnCount)
	s.unlock()

	// The very next turn proceeds normally.
	client.mu.Lock()
	client.err = nil
	client.reply = "Recovered question?"
	client.mu.Unlock()

	reply, metadata, err = orch.HandleTurn(context.Background(), s.ID, "Trying again.")
	require.NoError(t, err)
	assert.Equal(t, "Recovered question?", reply)
	assert.Equal(t, 1, metadata.TurnCount)
}

func TestHandleTurn_FinalQuestionSignal(t *testing.T) {
	client := &mockCompletionClient{reply: "One last question."}
	orch, _ := newTestOrchestrator(t, client)
	s := mustCreate(t, orch)

	advanceTo(orch, 565*time.Second) // 35s remaining
	_, metadata, err := orch.HandleTurn(context.Background(), s.ID, "Answer.")
	require.NoError(t, err)

	assert.True(t, metadata.FinalQuestion)
	assert.False(t, metadata.AutoEnd)
	assert.Equal(t, 1, client.callCount(), "final-question turns still hit the completion service")
}

func TestHandleTurn_AutoEnd(t *testing.T) {
	client := &mockCompletionClient{reply: "should never be used"}
	orch, _ := newTestOrchestrator(t, client)
	s := mustCreate(t, orch)

	advanceTo(orch, 585*time.Second) // 15s remaining
	reply, metadata, err := orch.HandleTurn(context.Background(), s.ID, "Closing thoughts.")
	require.NoError(t, err)

	assert.Equal(t, FarewellMessage, reply)
	assert.True(t, metadata.AutoEnd)
	assert.True(t, metadata.FinalQuestion)
	assert.True(t, metadata.ShouldWrapUp)
	assert.Equal(t, "wrap_up", metadata.Phase)
	assert.Zero(t, metadata.TurnCount, "farewell does not count as an assistant question")
	assert.Equal(t, 0, client.callCount(), "auto-end never calls the completion service")

	s.lock()
	require.Len(t, s.History, 2)
	assert.Equal(t, "Closing thoughts.", s.History[0].Content)
	assert.Equal(t, FarewellMessage, s.History[1].Content)
	assert.True(t, s.Ended)
	s.unlock()
}

func TestHandleTurn_EndedSessionStaysEnded(t *testing.T) {
	client := &mockCompletionClient{reply: "unused"}
	orch, _ := newTestOrchestrator(t, client)
	s := mustCreate(t, orch)

	advanceTo(orch, 590*time.Second)
	_, _, err := orch.HandleTurn(context.Background(), s.ID, "First.")
	require.NoError(t, err)

	// Every later turn short-circuits to the farewell too.
	reply, metadata, err := orch.HandleTurn(context.Background(), s.ID, "Second.")
	require.NoError(t, err)
	assert.Equal(t, FarewellMessage, reply)
	assert.True(t, metadata.AutoEnd)
	assert.Equal(t, 0, client.callCount())
}

func TestHandleTurn_TruncatesLongHistory(t *testing.T) {
	client := &mockCompletionClient{reply: "Next question?"}
	orch, _ := newTestOrchestrator(t, client)
	s := mustCreate(t, orch)

	advanceTo(orch, 3*time.Minute)
	for i := 0; i < 10; i++ {
		_, _, err := orch.HandleTurn(context.Background(), s.ID, fmt.Sprintf("Answer %d.", i))
		require.NoError(t, err)
	}

	req := client.lastRequest()
	require.Len(t, req.Turns, DefaultRecentWindow+1)
	assert.Equal(t, datatypes.RoleSystem, req.Turns[0].Role)
	assert.Contains(t, req.Turns[0].Content, "[EARLIER CONVERSATION]")
}

// =============================================================================
// Recovery Tests
// =============================================================================

func TestHandleTurn_RecoversParsableUnknownID(t *testing.T) {
	client := &mockCompletionClient{reply: "Welcome back. What stood out to you?"}
	orch, _ := newTestOrchestrator(t, client)

	reply, metadata, err := orch.HandleTurn(context.Background(), "session_5_9_1735000123", "Hi again.")
	require.NoError(t, err)
	assert.Equal(t, "Welcome back. What stood out to you?", reply)
	assert.Equal(t, 1, metadata.TurnCount)

	// Recovered session is registered under the original id with the
	// default documents.
	s, ok := orch.sessions.Get("session_5_9_1735000123")
	require.True(t, ok)
	assert.Equal(t, 5, s.StudentID)
	assert.Equal(t, 9, s.AssignmentID)
	assert.Contains(t, s.BackgroundContext, "=== week1.txt ===")
}

func TestHandleTurn_UnparsableIDFails(t *testing.T) {
	orch, _ := newTestOrchestrator(t, &mockCompletionClient{reply: "ok"})

	_, _, err := orch.HandleTurn(context.Background(), "not-a-session", "Hello?")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

// =============================================================================
// Stats / Transcript / Destroy Tests
// =============================================================================

func TestStats(t *testing.T) {
	client := &mockCompletionClient{reply: "Q?"}
	orch, _ := newTestOrchestrator(t, client)
	s := mustCreate(t, orch)

	advanceTo(orch, time.Minute)
	_, _, err := orch.HandleTurn(context.Background(), s.ID, "A.")
	require.NoError(t, err)

	stats, err := orch.Stats(s.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TurnCount)
	assert.Equal(t, "opening", stats.Phase)
	assert.Equal(t, 2, stats.MessageCount)
	assert.Equal(t, 1, stats.DocumentCount)
	assert.False(t, stats.UsingRawText)

	_, err = orch.Stats("session_99_99_1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestTranscript(t *testing.T) {
	client := &mockCompletionClient{reply: "Q?"}
	orch, _ := newTestOrchestrator(t, client)
	s := mustCreate(t, orch)

	advanceTo(orch, time.Minute)
	_, _, err := orch.HandleTurn(context.Background(), s.ID, "My answer.")
	require.NoError(t, err)

	transcript, err := orch.Transcript(s.ID)
	require.NoError(t, err)
	require.Len(t, transcript, 2)
	assert.Equal(t, datatypes.TranscriptEntry{Speaker: "student", Text: "My answer."}, transcript[0])
	assert.Equal(t, datatypes.TranscriptEntry{Speaker: "assistant", Text: "Q?"}, transcript[1])
}

func TestDestroy(t *testing.T) {
	orch, _ := newTestOrchestrator(t, &mockCompletionClient{reply: "ok"})
	s := mustCreate(t, orch)

	require.NoError(t, orch.Destroy(s.ID))
	assert.Equal(t, 0, orch.sessions.Len())

	err := orch.Destroy(s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

// =============================================================================
// Concurrency Tests
// =============================================================================

// TestHandleTurn_SerializedPerSession hammers one session from many
// goroutines and checks the history never interleaves within a turn:
// every (student, assistant) pair stays adjacent.
func TestHandleTurn_SerializedPerSession(t *testing.T) {
	client := &mockCompletionClient{reply: "Q?"}
	orch, _ := newTestOrchestrator(t, client)
	s := mustCreate(t, orch)
	advanceTo(orch, 2*time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, _, err := orch.HandleTurn(context.Background(), s.ID, fmt.Sprintf("answer %d", n))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	s.lock()
	defer s.unlock()
	require.Len(t, s.History, 32)
	assert.Equal(t, 16, s.TurnCount)
	for i := 0; i < len(s.History); i += 2 {
		assert.Equal(t, datatypes.RoleStudent, s.History[i].Role, "index %d", i)
		assert.Equal(t, datatypes.RoleAssistant, s.History[i+1].Role, "index %d", i+1)
	}
}
