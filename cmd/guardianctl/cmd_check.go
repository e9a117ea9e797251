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
	"io"
	"log"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianGuard/pkg/ux"
)

func runCheck(cmd *cobra.Command, args []string) {
	text := strings.Join(args, " ")
	if strings.TrimSpace(text) == "" {
		// Read stdin only when it is piped; an interactive terminal with
		// no argument would block forever waiting for input.
		if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				log.Fatalf("Failed to read text from stdin: %v", err)
			}
			text = string(data)
		}
	}
	if strings.TrimSpace(text) == "" {
		ux.Error("No text to check: pass it as an argument or pipe it to stdin")
		os.Exit(1)
	}

	client := newGuardianClient(serverURL, licenseKey)

	var spin *ux.Spinner
	if ux.ShouldShowProgress() {
		spin = ux.NewSpinner("Checking content")
		spin.Start()
	}
	verdict, err := client.CheckText(text)
	if spin != nil {
		spin.Stop()
	}
	if err != nil {
		ux.Error(fmt.Sprintf("Check failed: %v", err))
		os.Exit(1)
	}

	ux.Verdict(verdict.IsSafe, verdict.Category, verdict.Reason)

	// Machine mode stays a single parseable line; richer modes get the
	// per-guard breakdown and timing.
	if ux.GetPersonality().Level != ux.PersonalityMachine {
		for _, guard := range verdict.Analysis.Guards {
			icon := ux.IconSuccess
			detail := guard.Status
			if guard.Status != "safe" {
				icon = ux.IconError
				if guard.DetectionType != "" {
					detail = guard.DetectionType
				}
			}
			ux.DetectorStatus(guard.GuardID, icon, detail)
		}
		if kf := verdict.Analysis.KeywordFilter; kf != nil && kf.Enabled {
			icon := ux.IconSuccess
			detail := "no matches"
			if kf.MatchesFound > 0 {
				icon = ux.IconError
				detail = fmt.Sprintf("%d matches", kf.MatchesFound)
			}
			ux.DetectorStatus("keyword_filter", icon, detail)
		}
		ux.Muted(fmt.Sprintf("confidence=%s time=%.2fms tokens=%d total=%d",
			verdict.Confidence, verdict.ProcessingTimeMs,
			verdict.TokensProcessed, verdict.TotalTokensProcessed))
	}
	if verdict.Warning != "" {
		ux.Warning(verdict.Warning)
	}

	if !verdict.IsSafe {
		os.Exit(2)
	}
}
