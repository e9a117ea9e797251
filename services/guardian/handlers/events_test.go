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
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianGuard/services/guardian/events"
)

func TestHandleEvents_StreamsVerdicts(t *testing.T) {
	hub := events.NewHub()
	t.Cleanup(hub.Close)

	router := gin.New()
	router.GET("/v1/events", HandleEvents(hub))

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/v1/events"
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { ws.Close() })

	// The handler subscribes after the upgrade; wait for it before publishing.
	require.Eventually(t, func() bool {
		return hub.SubscriberCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	published := events.Event{
		RequestID:        "req-ws-1",
		IsSafe:           false,
		Category:         "injection_attempt",
		Confidence:       "high",
		ProcessingTimeMs: 12.34,
		Timestamp:        time.Now().Unix(),
	}
	hub.Publish(published)

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got events.Event
	require.NoError(t, ws.ReadJSON(&got))

	assert.Equal(t, published.RequestID, got.RequestID)
	assert.Equal(t, published.Category, got.Category)
	assert.False(t, got.IsSafe)
	assert.Equal(t, published.ProcessingTimeMs, got.ProcessingTimeMs)
}

func TestHandleEvents_DetachesOnClientClose(t *testing.T) {
	hub := events.NewHub()
	t.Cleanup(hub.Close)

	router := gin.New()
	router.GET("/v1/events", HandleEvents(hub))

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/v1/events"
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}

	require.Eventually(t, func() bool {
		return hub.SubscriberCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, ws.Close())

	// The handler notices the closed socket and unsubscribes.
	require.Eventually(t, func() bool {
		return hub.SubscriberCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}
