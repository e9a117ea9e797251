// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the guardian HTTP endpoints. Handlers are
// closures over their collaborators and return gin.HandlerFunc, so routing
// stays declarative and each handler is testable with a bare router.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianGuard/pkg/telemetry"
	"github.com/AleutianAI/AleutianGuard/services/guardian/datatypes"
	"github.com/AleutianAI/AleutianGuard/services/guardian/middleware"
	"github.com/AleutianAI/AleutianGuard/services/guardian/pipeline"
	"github.com/AleutianAI/AleutianGuard/services/guardian/sanitize"
)

// HandleCheck handles POST /v1/check.
//
// Description:
//
//	Binds and validates the check request, runs the full guard pipeline,
//	and returns the sanitized public verdict. The pipeline fails safe
//	internally, so this handler has exactly two outcomes: 400 for a
//	structurally invalid request, 200 with a verdict for everything else.
//
// Response:
//
//	200 OK: datatypes.PublicVerdict
//	400 Bad Request: datatypes.ErrorResponse with code "invalid_request"
func HandleCheck(engine *pipeline.Engine, san *sanitize.Sanitizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := middleware.GetRequestID(c)

		var req datatypes.CheckRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{
				Error:     "request body must be JSON with a text field",
				Code:      datatypes.CodeInvalidRequest,
				RequestID: requestID,
			})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{
				Error:     "text must be a non-empty string",
				Code:      datatypes.CodeInvalidRequest,
				RequestID: requestID,
			})
			return
		}

		meta := datatypes.RequestMeta{
			ClientID:  c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			RequestID: requestID,
		}

		verdict, err := engine.Check(c.Request.Context(), req.Text, meta)
		if err != nil {
			// The decision stands even when the audit append failed; the
			// failure is loud in the logs but invisible to the caller.
			logger := telemetry.LoggerWithRequest(c.Request.Context(), slog.Default(), requestID)
			logger.Error("Audit append failed for completed check", "error", err)
		}

		c.JSON(http.StatusOK, san.Sanitize(verdict, requestID))
	}
}
