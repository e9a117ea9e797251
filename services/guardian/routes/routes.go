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

	"github.com/AleutianAI/AleutianGuard/pkg/extensions"
	"github.com/AleutianAI/AleutianGuard/pkg/telemetry"
	"github.com/AleutianAI/AleutianGuard/services/guardian/blacklist"
	"github.com/AleutianAI/AleutianGuard/services/guardian/events"
	"github.com/AleutianAI/AleutianGuard/services/guardian/handlers"
	"github.com/AleutianAI/AleutianGuard/services/guardian/middleware"
	"github.com/AleutianAI/AleutianGuard/services/guardian/pipeline"
	"github.com/AleutianAI/AleutianGuard/services/guardian/sanitize"
	"github.com/AleutianAI/AleutianGuard/services/guardian/stats"
)

// Deps carries the collaborators the route table binds handlers to.
type Deps struct {
	Engine    *pipeline.Engine
	Sanitizer *sanitize.Sanitizer
	Blacklist *blacklist.Store
	Stats     *stats.Store
	Events    *events.Hub
	License   extensions.LicenseProvider
	Version   string
}

// SetupRoutes registers every guardian endpoint on the router. The check
// and health endpoints are always open; blacklist management and the event
// stream sit behind the license gate (the default provider opens both).
func SetupRoutes(router *gin.Engine, deps Deps) {
	router.GET("/health", handlers.HandleHealth(deps.Engine, deps.Version))

	// Present only when the prometheus exporter is configured.
	if h := telemetry.MetricsHandler(); h != nil {
		router.GET("/metrics", gin.WrapH(h))
	}

	v1 := router.Group("/v1")
	{
		v1.POST("/check", handlers.HandleCheck(deps.Engine, deps.Sanitizer))
		v1.GET("/stats", handlers.HandleStats(deps.Stats))

		bl := v1.Group("/blacklist")
		bl.Use(middleware.RequireFeature(deps.License, extensions.FeatureBlacklistAPI))
		{
			bl.GET("", handlers.HandleBlacklistShow(deps.Blacklist))
			bl.PUT("", handlers.HandleBlacklistReplace(deps.Blacklist))
		}

		ev := v1.Group("/events")
		ev.Use(middleware.RequireFeature(deps.License, extensions.FeatureEventStream))
		{
			ev.GET("", handlers.HandleEvents(deps.Events))
		}
	}
}
