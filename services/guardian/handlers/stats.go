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
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianGuard/services/guardian/datatypes"
	"github.com/AleutianAI/AleutianGuard/services/guardian/middleware"
	"github.com/AleutianAI/AleutianGuard/services/guardian/stats"
)

// HandleStats handles GET /v1/stats: the cumulative check counters from the
// durable stats store.
func HandleStats(store *stats.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		sum, err := store.Snapshot(c.Request.Context())
		if err != nil {
			requestID := middleware.GetRequestID(c)
			slog.Error("Failed to read stats", "error", err, "request_id", requestID)
			c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{
				Error:     "failed to read statistics",
				Code:      datatypes.CodeInternal,
				RequestID: requestID,
			})
			return
		}
		c.JSON(http.StatusOK, sum)
	}
}
