// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianGuard/pkg/ux"
)

func runHealth(cmd *cobra.Command, args []string) {
	client := newGuardianClient(serverURL, licenseKey)

	h, err := client.Health()
	if err != nil {
		ux.Error(fmt.Sprintf("Guardian unreachable: %v", err))
		os.Exit(1)
	}

	if h.Status == "ok" {
		ux.Success(fmt.Sprintf("Guardian %s is up", h.Version))
	} else {
		ux.Warning(fmt.Sprintf("Guardian %s reports status %q", h.Version, h.Status))
	}
	ux.Info(fmt.Sprintf("guards available: %d", h.GuardsAvailable))
	ux.Info(fmt.Sprintf("keyword filter enabled: %t", h.KeywordFilterEnabled))
}

func runStats(cmd *cobra.Command, args []string) {
	client := newGuardianClient(serverURL, licenseKey)

	s, err := client.Stats()
	if err != nil {
		ux.Error(fmt.Sprintf("Failed to fetch stats: %v", err))
		os.Exit(1)
	}

	ux.Title("Guardian Verdict Stats")
	ux.Summary(int(s.SafeCount), int(s.UnsafeCount), int(s.TotalChecks))
	ux.Info(fmt.Sprintf("fallbacks: %d", s.Fallbacks))
	ux.Info(fmt.Sprintf("keyword blocks: %d", s.KeywordBlocks))

	if len(s.ByCategory) > 0 {
		ux.Muted("by category:")
		cats := make([]string, 0, len(s.ByCategory))
		for cat := range s.ByCategory {
			cats = append(cats, cat)
		}
		sort.Strings(cats)
		for _, cat := range cats {
			if ux.GetPersonality().Level == ux.PersonalityMachine {
				fmt.Printf("CATEGORY: %s=%d\n", cat, s.ByCategory[cat])
				continue
			}
			fmt.Printf("  %s %s: %d\n", ux.IconBullet.Render(), cat, s.ByCategory[cat])
		}
	}
}
