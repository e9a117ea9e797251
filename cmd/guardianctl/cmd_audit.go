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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianGuard/cmd/guardianctl/gcs"
	"github.com/AleutianAI/AleutianGuard/pkg/ux"
)

// markerRe matches the counter lines the gateway interleaves with audit
// events: TOKEN_COUNTER=<running total> (+<delta>).
var markerRe = regexp.MustCompile(`^TOKEN_COUNTER=(\d+) \(\+(\d+)\)$`)

func isEventLine(line string) bool {
	return strings.HasPrefix(line, "SAFE | ") ||
		strings.HasPrefix(line, "UNSAFE | ") ||
		strings.HasPrefix(line, "FALLBACK | ")
}

func readAuditLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines, nil
}

// chainReport summarizes a walk over the audit stream's counter markers.
type chainReport struct {
	Events  int
	Markers int
	Final   int64
}

// walkChain checks every TOKEN_COUNTER marker against the one before it.
// The first marker carries whatever total the counter resumed from, so
// only totals after it are checkable.
func walkChain(lines []string) (chainReport, error) {
	var rep chainReport
	var prev int64 = -1
	for i, line := range lines {
		m := markerRe.FindStringSubmatch(line)
		if m == nil {
			if isEventLine(line) {
				rep.Events++
			}
			continue
		}
		rep.Markers++
		total, _ := strconv.ParseInt(m[1], 10, 64)
		delta, _ := strconv.ParseInt(m[2], 10, 64)
		if prev >= 0 && total != prev+delta {
			return rep, fmt.Errorf("chain break at line %d: total %d != previous %d + delta %d",
				i+1, total, prev, delta)
		}
		prev = total
		rep.Final = total
	}
	return rep, nil
}

func runAuditTail(cmd *cobra.Command, args []string) {
	lines, err := readAuditLines(auditFile)
	if err != nil {
		ux.Error(fmt.Sprintf("Failed to read audit stream %s: %v", auditFile, err))
		os.Exit(1)
	}

	// Walk backwards collecting the last N events. A marker follows its
	// event in the stream, so in the backward walk each kept event's
	// marker has already been seen and kept when --markers is set.
	kept := make([]string, 0, tailLines*2)
	events := 0
	for i := len(lines) - 1; i >= 0 && events < tailLines; i-- {
		line := lines[i]
		if markerRe.MatchString(line) {
			if tailMarkers {
				kept = append(kept, line)
			}
			continue
		}
		if isEventLine(line) {
			events++
			kept = append(kept, line)
		}
	}

	if len(kept) == 0 {
		ux.Muted(fmt.Sprintf("no audit events in %s", auditFile))
		return
	}
	for i := len(kept) - 1; i >= 0; i-- {
		printAuditLine(kept[i])
	}
}

func printAuditLine(line string) {
	if !ux.ShouldShowColors() {
		fmt.Println(line)
		return
	}
	switch {
	case strings.HasPrefix(line, "SAFE | "):
		fmt.Println(ux.Styles.Success.Render("SAFE") + strings.TrimPrefix(line, "SAFE"))
	case strings.HasPrefix(line, "UNSAFE | "):
		fmt.Println(ux.Styles.Error.Render("UNSAFE") + strings.TrimPrefix(line, "UNSAFE"))
	case strings.HasPrefix(line, "FALLBACK | "):
		fmt.Println(ux.Styles.Warning.Render("FALLBACK") + strings.TrimPrefix(line, "FALLBACK"))
	default:
		fmt.Println(ux.Styles.Muted.Render(line))
	}
}

func runAuditVerify(cmd *cobra.Command, args []string) {
	statePath := counterFile
	if statePath == "" {
		statePath = auditFile + ".counter"
	}

	lines, err := readAuditLines(auditFile)
	if err != nil {
		ux.Error(fmt.Sprintf("Failed to read audit stream %s: %v", auditFile, err))
		os.Exit(1)
	}

	rep, err := walkChain(lines)
	if err != nil {
		ux.Error(fmt.Sprintf("Audit stream %s failed verification: %v", auditFile, err))
		os.Exit(1)
	}

	if rep.Markers == 0 {
		ux.Warning(fmt.Sprintf("No counter markers found in %s", auditFile))
		return
	}
	if rep.Events != rep.Markers {
		ux.Warning(fmt.Sprintf("%d events but %d markers; the stream may be truncated mid write",
			rep.Events, rep.Markers))
	}

	state, err := os.ReadFile(statePath)
	if err != nil {
		if os.IsNotExist(err) {
			ux.Warning(fmt.Sprintf("Counter state file %s not found; verified chain only", statePath))
			ux.Success(fmt.Sprintf("Audit chain intact: %d events, final total %d units", rep.Events, rep.Final))
			return
		}
		ux.Error(fmt.Sprintf("Failed to read counter state %s: %v", statePath, err))
		os.Exit(1)
	}
	stored, err := strconv.ParseInt(strings.TrimSpace(string(state)), 10, 64)
	if err != nil {
		ux.Error(fmt.Sprintf("Counter state %s is not a number: %v", statePath, err))
		os.Exit(1)
	}
	if stored != rep.Final {
		ux.Error(fmt.Sprintf("Counter state %d does not match final marker total %d", stored, rep.Final))
		os.Exit(1)
	}
	ux.Success(fmt.Sprintf("Audit chain intact: %d events, final total %d units matches %s",
		rep.Events, rep.Final, statePath))
}

func runAuditArchive(cmd *cobra.Command, args []string) {
	if _, err := os.Stat(auditFile); err != nil {
		ux.Error(fmt.Sprintf("Audit stream %s not found: %v", auditFile, err))
		os.Exit(1)
	}

	ctx := context.Background()
	client, err := gcs.NewClient(ctx, archiveProject, archiveBucket, archiveKeyFile)
	if err != nil {
		ux.Error(fmt.Sprintf("Failed to create GCS client: %v", err))
		os.Exit(1)
	}
	defer client.Close()

	// Each run lands under its own timestamped prefix so repeated
	// archives never clobber earlier snapshots.
	stamp := time.Now().UTC().Format("20060102T150405Z")
	prefix := archivePrefix + "/" + stamp

	uploads := []string{auditFile}
	statePath := auditFile + ".counter"
	if _, err := os.Stat(statePath); err == nil {
		uploads = append(uploads, statePath)
	}

	spin := ux.NewProgressSpinner("Uploading audit archive", len(uploads))
	spin.Start()
	for _, path := range uploads {
		object := prefix + "/" + filepath.Base(path)
		if err := client.UploadFile(ctx, path, object); err != nil {
			spin.StopWithError(fmt.Sprintf("Upload failed for %s: %v", path, err))
			os.Exit(1)
		}
		spin.Increment()
	}
	spin.StopWithSuccess(fmt.Sprintf("Archived %d file(s) to gs://%s/%s", len(uploads), archiveBucket, prefix))
}
