// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jinterlante1206/VivaLocal/services/viva/handlers"
	"github.com/jinterlante1206/VivaLocal/services/viva/session"
)

// SetupRoutes wires the assessment API onto the router.
func SetupRoutes(router *gin.Engine, orch *session.Orchestrator) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", handlers.HandleCreateSession(orch))
			sessions.POST("/:sessionId/messages", handlers.HandlePostMessage(orch))
			sessions.POST("/:sessionId/evaluation", handlers.HandleEvaluate(orch))
			sessions.POST("/:sessionId/complete", handlers.HandleCompleteSession(orch))
			sessions.GET("/:sessionId/stats", handlers.HandleGetStats(orch))
			sessions.GET("/:sessionId/transcript", handlers.HandleGetTranscript(orch))
			sessions.DELETE("/:sessionId", handlers.HandleDestroySession(orch))
		}
	}
}
