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
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianGuard/services/guardian/datatypes"
	"github.com/AleutianAI/AleutianGuard/services/guardian/pipeline"
)

// HandleHealth handles GET /health. Always 200 while the process serves;
// the body reports how many guards are wired and whether the keyword
// filter is on, so probes can tell a bare gateway from a full one.
func HandleHealth(engine *pipeline.Engine, version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, datatypes.HealthResponse{
			Status:               "ok",
			Timestamp:            time.Now().Unix(),
			Version:              version,
			GuardsAvailable:      engine.DetectorCount(),
			KeywordFilterEnabled: engine.KeywordFilterEnabled(),
		})
	}
}
