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
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/AleutianGuard/services/guardian/events"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 8 * 1024,
}

// HandleEvents handles GET /v1/events.
//
// Description:
//
//	Upgrades the connection to a websocket and streams one JSON object per
//	verdict as the pipeline produces them. The feed carries only sanitized
//	fields. A subscriber that cannot keep up misses events rather than
//	slowing checks down; the stream is a tail, not a durable queue.
func HandleEvents(hub *events.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("Failed to upgrade the websocket", "error", err)
			return
		}
		defer ws.Close()

		sub := hub.Subscribe(0)
		if sub == nil {
			// Hub already closed; the service is shutting down.
			return
		}
		defer sub.Close()
		slog.Info("Event stream client connected", "remote", ws.RemoteAddr().String())

		// Drain the client side so pings and close frames are processed and
		// a disconnect is noticed even when no events are flowing.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := ws.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case ev, ok := <-sub.C:
				if !ok {
					return
				}
				if err := ws.WriteJSON(ev); err != nil {
					slog.Info("Event stream client disconnected", "error", err.Error())
					return
				}
			case <-done:
				slog.Info("Event stream client closed the connection",
					"missed", sub.Dropped())
				return
			}
		}
	}
}
