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
	"sync"
	"time"
)

// =============================================================================
// Idle Session Reaper
// =============================================================================

// ReaperConfig holds configuration for the idle-session reaper.
//
// # Fields
//
//   - Interval: How often to sweep the registry. Default: 5 minutes.
//   - IdleTTL: Inactivity threshold after which a session is discarded.
//     Default: 30 minutes.
type ReaperConfig struct {
	Interval time.Duration
	IdleTTL  time.Duration
}

// DefaultReaperConfig returns production defaults: a 5-minute sweep with a
// 30-minute idle TTL, three times the full session length.
func DefaultReaperConfig() ReaperConfig {
	return ReaperConfig{
		Interval: 5 * time.Minute,
		IdleTTL:  30 * time.Minute,
	}
}

// Reaper discards sessions whose students walked away.
//
// # Description
//
// Sessions end through completion in the normal flow; the reaper is the
// backstop for browsers that closed mid-conversation. It sweeps the live
// registry on a ticker and destroys any session idle past the TTL. Uses
// the ticker + done channel pattern for graceful shutdown.
//
// # Thread Safety
//
// All public methods are thread-safe.
type Reaper struct {
	orch    *Orchestrator
	config  ReaperConfig
	done    chan struct{}
	mu      sync.Mutex
	running bool
}

// NewReaper creates a reaper over the orchestrator's session registry.
func NewReaper(orch *Orchestrator, config ReaperConfig) *Reaper {
	if config.Interval <= 0 {
		config.Interval = DefaultReaperConfig().Interval
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = DefaultReaperConfig().IdleTTL
	}
	return &Reaper{
		orch:   orch,
		config: config,
		done:   make(chan struct{}),
	}
}

// Start begins the background sweep goroutine.
//
// # Outputs
//
//   - error: Non-nil if the reaper is already running.
func (r *Reaper) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("reaper is already running")
	}
	r.running = true
	r.done = make(chan struct{})
	r.mu.Unlock()

	slog.Info("Idle session reaper starting",
		"interval", r.config.Interval.String(),
		"idle_ttl", r.config.IdleTTL.String())

	go r.runLoop(ctx)
	return nil
}

// Stop signals the sweep goroutine to exit. Safe to call multiple times.
func (r *Reaper) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return
	}
	slog.Info("Idle session reaper stopping")
	close(r.done)
	r.running = false
}

// RunNow sweeps immediately and reports how many sessions were discarded.
func (r *Reaper) RunNow() int {
	return r.sweep()
}

func (r *Reaper) runLoop(ctx context.Context) {
	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Idle session reaper stopped (context cancelled)")
			return
		case <-r.done:
			slog.Info("Idle session reaper stopped (stop requested)")
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

// sweep destroys every session idle past the TTL.
func (r *Reaper) sweep() int {
	now := r.orch.now()
	reaped := 0
	for _, id := range r.orch.sessions.IDs() {
		s, ok := r.orch.sessions.Get(id)
		if !ok {
			continue
		}

		s.lock()
		idle := now.Sub(s.LastActivity)
		s.unlock()

		if idle < r.config.IdleTTL {
			continue
		}
		if err := r.orch.Destroy(id); err == nil {
			slog.Info("Reaped idle session", "session_id", id, "idle", idle.String())
			reaped++
		}
	}
	if reaped > 0 {
		slog.Info("Idle sweep completed", "reaped", reaped, "remaining", r.orch.sessions.Len())
	}
	return reaped
}
