// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides completion-service backends for the viva service.
package llm

import (
	"context"

	"github.com/jinterlante1206/VivaLocal/services/viva/datatypes"
)

// CompletionRequest is one completion call: a system prompt, the (already
// truncated) conversation so far, and the student's new message.
type CompletionRequest struct {
	SystemPrompt string
	Turns        []datatypes.Turn
	NewMessage   string
	Temperature  float32
	MaxTokens    int
}

// CompletionResult carries the generated text plus token-usage counters.
type CompletionResult struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// CompletionClient defines the standard interface for any completion backend.
//
// # Description
//
// Complete is the only blocking operation in a conversational turn. It must
// honor ctx cancellation and deadlines; the orchestrator treats a timeout
// identically to any other failure. Implementations may retry transient
// provider errors internally, but only within the ctx deadline.
type CompletionClient interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error)
}
