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

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianGuard/services/guardian/blacklist"
	"github.com/AleutianAI/AleutianGuard/services/guardian/datatypes"
	"github.com/AleutianAI/AleutianGuard/services/guardian/middleware"
)

// BlacklistResponse is the body of GET and PUT /v1/blacklist: the active
// keyword/pattern set and where it came from (embedded, file, or api).
type BlacklistResponse struct {
	Keywords      []string `json:"keywords"`
	RegexPatterns []string `json:"regex_patterns"`
	Source        string   `json:"source"`
}

func blacklistResponse(snap *blacklist.Snapshot) BlacklistResponse {
	f := snap.ToFile()
	return BlacklistResponse{
		Keywords:      f.Keywords,
		RegexPatterns: f.RegexPatterns,
		Source:        snap.Source,
	}
}

// HandleBlacklistShow handles GET /v1/blacklist.
func HandleBlacklistShow(store *blacklist.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, blacklistResponse(store.Snapshot()))
	}
}

// HandleBlacklistReplace handles PUT /v1/blacklist.
//
// Description:
//
//	Replaces the whole keyword/pattern set atomically. Every pattern must
//	compile; one bad pattern rejects the entire update and the previous
//	set stays live. The new set is persisted before the 200 ack, so a
//	restart never resurrects the replaced one.
//
// Response:
//
//	200 OK: BlacklistResponse for the installed set
//	400 Bad Request: code "invalid_pattern" naming the failing pattern
//	500 Internal Server Error: compile succeeded but persistence failed
func HandleBlacklistReplace(store *blacklist.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := middleware.GetRequestID(c)

		var req blacklist.File
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{
				Error:     "request body must be JSON with keywords and regex_patterns",
				Code:      datatypes.CodeInvalidRequest,
				RequestID: requestID,
			})
			return
		}

		plan := "community"
		if info := middleware.GetLicenseInfo(c); info != nil {
			plan = info.Plan
			if tier, ok := info.Metadata.GetString("tier"); ok {
				plan += "/" + tier
			}
		}

		if err := store.Replace(req.Keywords, req.RegexPatterns, blacklist.SourceAPI); err != nil {
			var patternErr *blacklist.PatternError
			if errors.As(err, &patternErr) {
				c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{
					Error:     patternErr.Error(),
					Code:      datatypes.CodeInvalidPattern,
					RequestID: requestID,
				})
				return
			}
			slog.Error("Blacklist replace failed", "error", err, "request_id", requestID)
			c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{
				Error:     "failed to install the new blacklist",
				Code:      datatypes.CodeInternal,
				RequestID: requestID,
			})
			return
		}

		slog.Info("Blacklist replaced",
			"request_id", requestID,
			"plan", plan,
			"keywords", len(req.Keywords),
			"patterns", len(req.RegexPatterns))
		c.JSON(http.StatusOK, blacklistResponse(store.Snapshot()))
	}
}
