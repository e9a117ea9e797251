// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command guardianctl is the operator CLI for the AleutianGuard gateway.
//
// Usage:
//
//	guardianctl check "is this text safe?"
//	echo "piped content" | guardianctl check
//	guardianctl blacklist show
//	guardianctl blacklist replace blacklist.yaml
//	guardianctl stats
//	guardianctl watch
//	guardianctl audit tail -n 50
//	guardianctl audit verify
//	guardianctl audit archive --bucket my-bucket --key-file sa.json
//
// The gateway location comes from --server or GUARDIAN_SERVER and defaults
// to http://localhost:8086. Output styling follows --personality or
// GUARDIAN_PERSONALITY; piped output automatically switches to machine mode.
package main

import (
	"os"
)

func main() {
	// Cobra prints its own error before Execute returns.
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
