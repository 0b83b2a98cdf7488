// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/jinterlante1206/VivaLocal/services/viva/datatypes"
	"github.com/jinterlante1206/VivaLocal/services/viva/observability"
	"github.com/jinterlante1206/VivaLocal/services/viva/session"
)

var sessionTracer = otel.Tracer("viva.handlers")

// notFoundMessage tells the web client to restart the assessment rather
// than retry the same session id.
const notFoundMessage = "Session not found. Please restart the assessment."

// HandleCreateSession handles POST /v1/sessions.
func HandleCreateSession(orch *session.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := sessionTracer.Start(c.Request.Context(), "HandleCreateSession")
		defer span.End()

		var req datatypes.CreateSessionRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Failed to parse the create-session request", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		req.EnsureDefaults()
		if err := req.Validate(); err != nil {
			span.RecordError(err)
			slog.Error("Create-session request failed validation", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		s, err := orch.CreateSession(ctx, session.CreateParams{
			StudentID:        req.StudentID,
			AssignmentID:     req.AssignmentID,
			DocumentRefs:     req.DocumentRefs,
			ReadingText:      req.ReadingText,
			TutorPrompt:      req.TutorPrompt,
			EvaluationPrompt: req.EvaluationPrompt,
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if errors.Is(err, session.ErrSessionConflict) {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			slog.Error("Failed to create session", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		if m := observability.DefaultMetrics; m != nil {
			m.ActiveSessions.Inc()
		}

		resp := datatypes.CreateSessionResponse{
			SessionID:     s.ID,
			DocumentCount: s.DocumentCount,
		}
		if s.UsingRawText {
			resp.TextLength = len(req.ReadingText)
		}
		c.JSON(http.StatusOK, resp)
	}
}

// HandlePostMessage handles POST /v1/sessions/:sessionId/messages.
//
// # Description
//
// Runs one conversational turn. A completion failure is NOT an HTTP
// error: the client gets a 200 with the fallback reply and an error field
// in the metadata so the student's session keeps flowing.
func HandlePostMessage(orch *session.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := sessionTracer.Start(c.Request.Context(), "HandlePostMessage")
		defer span.End()

		sessionID := c.Param("sessionId")
		var req datatypes.PostMessageRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		start := time.Now()
		reply, metadata, err := orch.HandleTurn(ctx, sessionID, req.Message)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.JSON(http.StatusNotFound, gin.H{"error": notFoundMessage})
			return
		}

		recordTurnMetrics(metadata, time.Since(start))
		c.JSON(http.StatusOK, datatypes.PostMessageResponse{
			Reply:    reply,
			Metadata: metadata,
		})
	}
}

// recordTurnMetrics classifies the finished turn for Prometheus.
func recordTurnMetrics(metadata datatypes.TurnMetadata, elapsed time.Duration) {
	m := observability.DefaultMetrics
	if m == nil {
		return
	}

	status := observability.TurnStatusSuccess
	switch {
	case metadata.AutoEnd:
		status = observability.TurnStatusAutoEnd
		m.AutoEndsTotal.Inc()
	case metadata.Error != "":
		status = observability.TurnStatusFallback
	}
	m.TurnsTotal.WithLabelValues(status).Inc()
	m.TurnDurationSeconds.Observe(elapsed.Seconds())

	if usage := metadata.TokenUsage; usage != nil {
		m.TokensTotal.WithLabelValues("input").Add(float64(usage.InputTokens))
		m.TokensTotal.WithLabelValues("output").Add(float64(usage.OutputTokens))
	}
}

// HandleGetStats handles GET /v1/sessions/:sessionId/stats.
func HandleGetStats(orch *session.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, span := sessionTracer.Start(c.Request.Context(), "HandleGetStats")
		defer span.End()

		stats, err := orch.Stats(c.Param("sessionId"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": notFoundMessage})
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

// HandleGetTranscript handles GET /v1/sessions/:sessionId/transcript.
func HandleGetTranscript(orch *session.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, span := sessionTracer.Start(c.Request.Context(), "HandleGetTranscript")
		defer span.End()

		sessionID := c.Param("sessionId")
		transcript, err := orch.Transcript(sessionID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": notFoundMessage})
			return
		}
		c.JSON(http.StatusOK, datatypes.TranscriptResponse{
			SessionID:  sessionID,
			Transcript: transcript,
		})
	}
}

// HandleEvaluate handles POST /v1/sessions/:sessionId/evaluation.
//
// Evaluation does not destroy the session; instructors can re-run it.
func HandleEvaluate(orch *session.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := sessionTracer.Start(c.Request.Context(), "HandleEvaluate")
		defer span.End()

		eval, err := orch.Evaluate(ctx, c.Param("sessionId"))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			writeEvaluationError(c, err)
			return
		}

		if m := observability.DefaultMetrics; m != nil {
			m.EvaluationsTotal.WithLabelValues(eval.Category).Inc()
		}
		c.JSON(http.StatusOK, eval)
	}
}

// HandleCompleteSession handles POST /v1/sessions/:sessionId/complete.
//
// Evaluates, persists the outcome, and tears down the live session.
func HandleCompleteSession(orch *session.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := sessionTracer.Start(c.Request.Context(), "HandleCompleteSession")
		defer span.End()

		eval, err := orch.Complete(ctx, c.Param("sessionId"))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			writeEvaluationError(c, err)
			return
		}

		if m := observability.DefaultMetrics; m != nil {
			m.EvaluationsTotal.WithLabelValues(eval.Category).Inc()
			m.ActiveSessions.Dec()
		}
		c.JSON(http.StatusOK, eval)
	}
}

func writeEvaluationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": notFoundMessage})
	case errors.Is(err, session.ErrEvaluationFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// HandleDestroySession handles DELETE /v1/sessions/:sessionId.
func HandleDestroySession(orch *session.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, span := sessionTracer.Start(c.Request.Context(), "HandleDestroySession")
		defer span.End()

		if err := orch.Destroy(c.Param("sessionId")); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": notFoundMessage})
			return
		}
		if m := observability.DefaultMetrics; m != nil {
			m.ActiveSessions.Dec()
		}
		c.JSON(http.StatusOK, gin.H{"status": "destroyed"})
	}
}
