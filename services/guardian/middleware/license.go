// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides HTTP middleware for the guardian service.
//
// This package contains middleware for request identification and license
// gating. It integrates with the extensions package to support enterprise
// features without coupling the core gateway to any licensing backend.
//
// # License Gating Flow
//
// The license middleware extracts a key from the X-License-Key header,
// validates it using the configured LicenseProvider, and verifies that the
// resulting license unlocks the gated feature.
//
//	Incoming request
//	   │
//	   ▼
//	RequireFeature("blacklist_api")
//	   │
//	   ├─► Extract key from "X-License-Key: <key>"
//	   │
//	   ├─► provider.Check(ctx, key)
//	   │
//	   ├─► info.HasFeature("blacklist_api")?
//	   │
//	   └─► Store LicenseInfo in context, then c.Next() into the
//	       handler, which reads it back via GetLicenseInfo
//
// # Community Edition Behavior
//
// When using NopLicenseProvider (default), every request carries a community
// license with all features unlocked. The gate never fires, so the local
// gateway works with no licensing infrastructure at all. Core content
// checking is never behind this middleware; only management and export
// surfaces are.
package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianGuard/pkg/extensions"
)

// =============================================================================
// Gin Context Keys
// =============================================================================

// licenseInfoKey is the Gin context key for storing LicenseInfo. The
// guardian_ prefix keeps it clear of keys set by other middleware.
const licenseInfoKey = "guardian_license_info"

// LicenseKeyHeader carries the caller's license key, if any.
const LicenseKeyHeader = "X-License-Key"

// =============================================================================
// License Context Accessors
// =============================================================================

// SetLicenseInfo stores the validated license in the Gin context.
//
// # Description
//
// Called by RequireFeature after a successful check. The stored LicenseInfo
// can be retrieved by handlers via GetLicenseInfo, for example to report the
// plan name in management responses.
//
// # Inputs
//
//   - c: Request-scoped Gin context. Must not be nil.
//   - info: Validated license. May be nil.
//
// # Thread Safety
//
// Safe for concurrent use; every request carries its own Gin context.
func SetLicenseInfo(c *gin.Context, info *extensions.LicenseInfo) {
	c.Set(licenseInfoKey, info)
}

// GetLicenseInfo retrieves the validated license from the Gin context.
//
// # Description
//
// Returns nil if no license is present, either because RequireFeature did
// not run on this route or because the stored value has the wrong type.
//
// # Inputs
//
//   - c: Request-scoped Gin context. Must not be nil.
//
// # Outputs
//
//   - *extensions.LicenseInfo: License details, or nil if not gated
//
// # Thread Safety
//
// Safe for concurrent use; every request carries its own Gin context.
func GetLicenseInfo(c *gin.Context) *extensions.LicenseInfo {
	if v, exists := c.Get(licenseInfoKey); exists {
		if info, ok := v.(*extensions.LicenseInfo); ok {
			return info
		}
	}
	return nil
}

// =============================================================================
// License Middleware
// =============================================================================

// RequireFeature creates a Gin middleware that gates a route on a feature.
//
// # Description
//
// Extracts the license key from the X-License-Key header, validates it with
// the provided LicenseProvider, and rejects the request unless the resulting
// license unlocks the named feature. On success the LicenseInfo is stored in
// the context for downstream handlers.
//
// An empty header is passed through to the provider as an empty key. The
// open source NopLicenseProvider accepts this and returns a community
// license with every feature unlocked.
//
// # Inputs
//
//   - provider: LicenseProvider to validate keys. Must not be nil.
//   - feature: Feature name the route requires, e.g. extensions.FeatureBlacklistAPI.
//
// # Outputs
//
//   - gin.HandlerFunc: Handler that can be passed straight to Group.Use
//
// # Examples
//
//	mgmt := router.Group("/v1/guard/blacklist")
//	mgmt.Use(middleware.RequireFeature(opts.LicenseProvider, extensions.FeatureBlacklistAPI))
//
// # Limitations
//
//   - Does not cache validation results (checks every request)
//   - One feature per gate; stack the middleware for compound requirements
//
// # Thread Safety
//
// One middleware value serves every request and keeps no per-request state.
func RequireFeature(provider extensions.LicenseProvider, feature string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(LicenseKeyHeader)

		info, err := provider.Check(c.Request.Context(), key)
		if err != nil {
			if errors.Is(err, extensions.ErrUnlicensed) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
					"error": "unlicensed",
				})
				return
			}
			// Provider failures (backend unreachable, malformed key) are
			// also a closed gate, never an open one.
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "license check failed",
			})
			return
		}
		if info == nil || !info.HasFeature(feature) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "feature not licensed",
				"feature": feature,
			})
			return
		}

		SetLicenseInfo(c, info)
		c.Next()
	}
}
