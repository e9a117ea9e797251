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
	"log"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianGuard/pkg/ux"
)

func runBlacklistShow(cmd *cobra.Command, args []string) {
	client := newGuardianClient(serverURL, licenseKey)

	payload, err := client.BlacklistShow()
	if err != nil {
		ux.Error(fmt.Sprintf("Failed to fetch blacklist: %v", err))
		os.Exit(1)
	}

	// Machine mode emits YAML that `blacklist replace` accepts unchanged,
	// so `show > f.yaml` then `replace f.yaml` round-trips.
	if ux.GetPersonality().Level == ux.PersonalityMachine {
		out, err := yaml.Marshal(payload)
		if err != nil {
			log.Fatalf("Failed to render blacklist as YAML: %v", err)
		}
		fmt.Print(string(out))
		return
	}

	ux.Title("Active Blacklist")
	ux.Muted(fmt.Sprintf("source: %s", payload.Source))

	ux.Info(fmt.Sprintf("%d keywords", len(payload.Keywords)))
	for _, kw := range payload.Keywords {
		fmt.Printf("  %s %s\n", ux.IconBullet.Render(), kw)
	}
	ux.Info(fmt.Sprintf("%d regex patterns", len(payload.RegexPatterns)))
	for _, p := range payload.RegexPatterns {
		fmt.Printf("  %s %s\n", ux.IconBullet.Render(), p)
	}
}

func runBlacklistReplace(cmd *cobra.Command, args []string) {
	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Failed to read blacklist file %s: %v", path, err)
	}

	var payload blacklistPayload
	if err := yaml.Unmarshal(data, &payload); err != nil {
		log.Fatalf("Failed to parse blacklist file %s: %v", path, err)
	}
	if len(payload.Keywords) == 0 && len(payload.RegexPatterns) == 0 {
		ux.Error(fmt.Sprintf("%s contains no keywords or regex_patterns; refusing to install an empty blacklist", path))
		os.Exit(1)
	}

	client := newGuardianClient(serverURL, licenseKey)

	installed, err := client.BlacklistReplace(payload.Keywords, payload.RegexPatterns)
	if err != nil {
		ux.Error(fmt.Sprintf("Replace rejected: %v", err))
		os.Exit(1)
	}

	ux.Success(fmt.Sprintf("Installed %d keywords and %d regex patterns",
		len(installed.Keywords), len(installed.RegexPatterns)))
}
