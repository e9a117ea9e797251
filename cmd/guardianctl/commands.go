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
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianGuard/pkg/ux"
)

// --- Shared flag state ---
var (
	serverURL        string // Gateway base URL (--server / GUARDIAN_SERVER)
	licenseKey       string // License key for gated endpoints (--license-key / GUARDIAN_LICENSE_KEY)
	personalityLevel string // Output style (--personality / GUARDIAN_PERSONALITY)

	auditFile   string // Audit stream path for local audit commands
	counterFile string // Counter state path for audit verify
	tailLines   int    // Number of events for audit tail
	tailMarkers bool   // Include TOKEN_COUNTER markers in audit tail

	archiveBucket  string // GCS bucket for audit archive
	archiveProject string // GCS project for audit archive
	archivePrefix  string // Object prefix for audit archive
	archiveKeyFile string // Service account key file for audit archive

	rootCmd = &cobra.Command{
		Use:   "guardianctl",
		Short: "A cli to manage and query the AleutianGuard content safety gateway",
		Long: `guardianctl talks to a running guardian gateway: submit content checks,
inspect and replace the keyword blacklist, watch live verdicts, and
read stats. The audit subcommands work directly on the local audit
stream and need no running gateway.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// The flag wins over GUARDIAN_PERSONALITY and TTY detection.
			if personalityLevel != "" {
				ux.SetPersonalityLevel(ux.ParsePersonalityLevel(personalityLevel))
			} else {
				ux.InitPersonality()
			}
		},
	}

	// --- Checks ---
	checkCmd = &cobra.Command{
		Use:   "check [text]",
		Short: "Submit text for a safety verdict",
		Long: `Submits text to POST /v1/check and prints the verdict. Reads stdin when
no argument is given. Exits 0 for a safe verdict, 2 for unsafe, 1 on
errors, so the command composes into shell pipelines.`,
		Run: runCheck, // Defined in cmd_check.go
	}

	healthCmd = &cobra.Command{
		Use:   "health",
		Short: "Show gateway health and detector availability",
		Run:   runHealth, // Defined in cmd_stats.go
	}

	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate verdict counters from the gateway",
		Run:   runStats, // Defined in cmd_stats.go
	}

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Stream live verdict events from the gateway",
		Long: `Connects to the /v1/events websocket and prints one line per verdict
until interrupted. The endpoint is license gated; the open source
gateway accepts any key including none.`,
		Run: runWatch, // Defined in cmd_watch.go
	}

	// --- Blacklist Management ---
	blacklistCmd = &cobra.Command{
		Use:   "blacklist",
		Short: "Inspect and replace the gateway's keyword blacklist",
	}
	blacklistShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Print the active keywords and regex patterns",
		Run:   runBlacklistShow, // Defined in cmd_blacklist.go
	}
	blacklistReplaceCmd = &cobra.Command{
		Use:   "replace [file.yaml]",
		Short: "Atomically replace the whole blacklist from a YAML file",
		Args:  cobra.ExactArgs(1),
		Run:   runBlacklistReplace, // Defined in cmd_blacklist.go
	}

	// --- Audit Stream ---
	auditCmd = &cobra.Command{
		Use:   "audit",
		Short: "Work with the local audit stream",
	}
	auditTailCmd = &cobra.Command{
		Use:   "tail",
		Short: "Print the most recent audit events",
		Run:   runAuditTail, // Defined in cmd_audit.go
	}
	auditVerifyCmd = &cobra.Command{
		Use:   "verify",
		Short: "Check the audit stream's counter markers for consistency",
		Long: `Walks every TOKEN_COUNTER marker in the audit stream and verifies that
each running total equals the previous total plus the recorded delta,
then compares the final total against the counter state file. Exits 1
when any marker breaks the chain.`,
		Run: runAuditVerify, // Defined in cmd_audit.go
	}
	auditArchiveCmd = &cobra.Command{
		Use:   "archive",
		Short: "Upload the audit stream and counter state to Google Cloud Storage",
		Run:   runAuditArchive, // Defined in cmd_audit.go
	}
)

// envOr returns the environment value for key, or fallback when unset.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// init wires the flags and the command tree before Execute runs.
func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("GUARDIAN_SERVER", "http://localhost:8086"),
		"Base URL of the guardian gateway")
	rootCmd.PersistentFlags().StringVar(&licenseKey, "license-key", envOr("GUARDIAN_LICENSE_KEY", ""),
		"License key sent with gated requests (X-License-Key)")
	rootCmd.PersistentFlags().StringVar(&personalityLevel, "personality", "",
		"Output style: full, standard (default), minimal, or machine (scripting)")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(watchCmd)

	rootCmd.AddCommand(blacklistCmd)
	blacklistCmd.AddCommand(blacklistShowCmd)
	blacklistCmd.AddCommand(blacklistReplaceCmd)

	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditTailCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditArchiveCmd)

	auditCmd.PersistentFlags().StringVar(&auditFile, "file", envOr("GUARDIAN_AUDIT_LOG", "data/guardian_audit.log"),
		"Path to the audit stream")
	auditTailCmd.Flags().IntVarP(&tailLines, "lines", "n", 20, "Number of events to print")
	auditTailCmd.Flags().BoolVar(&tailMarkers, "markers", false, "Include TOKEN_COUNTER marker lines")
	auditVerifyCmd.Flags().StringVar(&counterFile, "state", "",
		"Path to the counter state file (default: <file>.counter)")

	auditArchiveCmd.Flags().StringVar(&archiveBucket, "bucket", "", "GCS bucket to upload into (required)")
	auditArchiveCmd.Flags().StringVar(&archiveProject, "project", "", "GCS project id")
	auditArchiveCmd.Flags().StringVar(&archivePrefix, "prefix", "guardian-audit", "Object prefix inside the bucket")
	auditArchiveCmd.Flags().StringVar(&archiveKeyFile, "key-file", "", "Service account key file (required)")
	auditArchiveCmd.MarkFlagRequired("bucket")
	auditArchiveCmd.MarkFlagRequired("key-file")
}
