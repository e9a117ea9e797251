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
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianGuard/pkg/ux"
)

// verdictEvent mirrors the /v1/events wire format.
type verdictEvent struct {
	RequestID        string  `json:"request_id"`
	IsSafe           bool    `json:"is_safe"`
	Category         string  `json:"category"`
	Confidence       string  `json:"confidence"`
	Fallback         bool    `json:"fallback,omitempty"`
	ProcessingTimeMs float64 `json:"processing_time_ms"`
	Timestamp        int64   `json:"timestamp"`
}

func runWatch(cmd *cobra.Command, args []string) {
	client := newGuardianClient(serverURL, licenseKey)

	header := http.Header{}
	if licenseKey != "" {
		header.Set("X-License-Key", licenseKey)
	}

	conn, resp, err := websocket.DefaultDialer.Dial(client.eventsURL(), header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusForbidden {
			ux.Error("Event stream refused: the license does not unlock event_stream")
		} else {
			ux.Error(fmt.Sprintf("Failed to connect to event stream: %v", err))
		}
		os.Exit(1)
	}
	defer conn.Close()

	ux.Info(fmt.Sprintf("Watching verdicts from %s (Ctrl-C to stop)", serverURL))

	// Close the socket on Ctrl-C so the blocked ReadJSON returns.
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-interrupt
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}()

	for {
		var ev verdictEvent
		if err := conn.ReadJSON(&ev); err != nil {
			// Normal closure, interrupt, or a dropped gateway all end the
			// stream; there is nothing to retry from here.
			return
		}
		printEvent(ev)
	}
}

func printEvent(ev verdictEvent) {
	ts := time.Unix(ev.Timestamp, 0).Format("15:04:05")

	if ux.GetPersonality().Level == ux.PersonalityMachine {
		status := "UNSAFE"
		if ev.IsSafe {
			status = "SAFE"
		}
		fmt.Printf("%s\t%s\t%s\t%s\t%.2f\n", ts, status, ev.Category, ev.RequestID, ev.ProcessingTimeMs)
		return
	}

	icon := ux.IconSuccess
	if !ev.IsSafe {
		icon = ux.IconError
	}
	line := fmt.Sprintf("%s %s %s %s",
		ux.Styles.Muted.Render(ts), icon.Render(), ev.Category,
		ux.Styles.Muted.Render(fmt.Sprintf("(%.2fms, %s)", ev.ProcessingTimeMs, ev.RequestID)))
	if ev.Fallback {
		line += " " + ux.Styles.Warning.Render("fallback")
	}
	fmt.Println(line)
}
