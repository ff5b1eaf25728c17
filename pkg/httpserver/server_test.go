/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthlab/hearth/pkg/logger"
	"github.com/hearthlab/hearth/pkg/models"
	"github.com/hearthlab/hearth/pkg/policy"
	"github.com/hearthlab/hearth/pkg/session"
)

type recordingDispatcher struct {
	mu      sync.Mutex
	inputs  []string
	intents []*models.Intent
}

func (d *recordingDispatcher) HandleInput(_ context.Context, _ string, rawText string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.inputs = append(d.inputs, rawText)
}

func (d *recordingDispatcher) Dispatch(_ context.Context, _ string, intent *models.Intent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.intents = append(d.intents, intent)
}

type wsFixture struct {
	sessions   *session.Registry
	dispatcher *recordingDispatcher
	conn       *websocket.Conn
	server     *httptest.Server
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()

	log := logger.NewTestLogger()
	sessions := session.NewRegistry(time.Minute, log)

	dispatcher := &recordingDispatcher{}
	auth := policy.NewAuthorizer(policy.NewVerifier("", ""), nopNotifier{}, nil, 3, time.Minute, time.Minute, log)

	srv := New(":0", sessions, dispatcher, auth, log)
	ts := httptest.NewServer(srv.Handler())

	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	t.Cleanup(func() { conn.Close() })

	return &wsFixture{sessions: sessions, dispatcher: dispatcher, conn: conn, server: ts}
}

type nopNotifier struct{}

func (nopNotifier) Send(string, *models.Event) {}

func (f *wsFixture) send(t *testing.T, msg map[string]interface{}) {
	t.Helper()

	require.NoError(t, f.conn.WriteJSON(msg))
}

func (f *wsFixture) readEvent(t *testing.T) *models.Event {
	t.Helper()

	require.NoError(t, f.conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var event models.Event

	require.NoError(t, f.conn.ReadJSON(&event))

	return &event
}

func TestHealthz(t *testing.T) {
	log := logger.NewTestLogger()
	sessions := session.NewRegistry(time.Minute, log)
	auth := policy.NewAuthorizer(policy.NewVerifier("", ""), nopNotifier{}, nil, 3, time.Minute, time.Minute, log)

	srv := New(":0", sessions, &recordingDispatcher{}, auth, log)
	ts := httptest.NewServer(srv.Handler())

	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)

	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestWSPingPong(t *testing.T) {
	f := newWSFixture(t)

	f.send(t, map[string]interface{}{"type": "ping"})

	event := f.readEvent(t)
	assert.Equal(t, models.EventPong, event.Type)
	assert.NotEmpty(t, event.Timestamp)
}

func TestWSMalformedMessageKeepsConnection(t *testing.T) {
	f := newWSFixture(t)

	require.NoError(t, f.conn.WriteMessage(websocket.TextMessage, []byte("{not json")))

	event := f.readEvent(t)
	assert.Equal(t, models.EventError, event.Type)
	assert.Equal(t, models.ErrMalformedMessage.Error(), event.Data["error"])

	// the connection survived: ping still answers
	f.send(t, map[string]interface{}{"type": "ping"})
	assert.Equal(t, models.EventPong, f.readEvent(t).Type)
}

func TestWSVoiceInputReachesDispatcher(t *testing.T) {
	f := newWSFixture(t)

	f.send(t, map[string]interface{}{"type": "voice_input", "text": "scan the network"})

	require.Eventually(t, func() bool {
		f.dispatcher.mu.Lock()
		defer f.dispatcher.mu.Unlock()
		return len(f.dispatcher.inputs) == 1
	}, time.Second, 5*time.Millisecond)

	f.dispatcher.mu.Lock()
	defer f.dispatcher.mu.Unlock()

	assert.Equal(t, "scan the network", f.dispatcher.inputs[0])
}

func TestWSToolRequestBuildsIntent(t *testing.T) {
	f := newWSFixture(t)

	f.send(t, map[string]interface{}{
		"type":      "tool_request",
		"tool":      "network",
		"action":    "get_devices",
		"args":      map[string]interface{}{"type": "camera"},
		"requestId": "req-7",
	})

	require.Eventually(t, func() bool {
		f.dispatcher.mu.Lock()
		defer f.dispatcher.mu.Unlock()
		return len(f.dispatcher.intents) == 1
	}, time.Second, 5*time.Millisecond)

	f.dispatcher.mu.Lock()
	defer f.dispatcher.mu.Unlock()

	intent := f.dispatcher.intents[0]
	assert.Equal(t, "network", intent.Tool)
	assert.Equal(t, "get_devices", intent.Action)
	assert.Equal(t, "req-7", intent.RequestID)
	assert.InDelta(t, 1.0, intent.Confidence, 0.001)
}

func TestWSUnknownTypeReportsError(t *testing.T) {
	f := newWSFixture(t)

	f.send(t, map[string]interface{}{"type": "teleport"})

	event := f.readEvent(t)
	assert.Equal(t, models.EventError, event.Type)
	assert.Equal(t, "teleport", event.Data["type"])
}

// TestWSFailedFactorIsRetryableNotDenied: a wrong PIN with attempts left
// reports a retryable failure, with wording distinct from terminal denial.
func TestWSFailedFactorIsRetryableNotDenied(t *testing.T) {
	log := logger.NewTestLogger()
	sessions := session.NewRegistry(time.Minute, log)

	pinHash, err := policy.HashPIN("4242")
	require.NoError(t, err)

	auth := policy.NewAuthorizer(policy.NewVerifier(pinHash, ""), nopNotifier{}, nil, 3, time.Minute, time.Minute, log)

	srv := New(":0", sessions, &recordingDispatcher{}, auth, log)
	ts := httptest.NewServer(srv.Handler())

	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	t.Cleanup(func() { conn.Close() })

	f := &wsFixture{sessions: sessions, conn: conn, server: ts}

	// Submit is keyed by authId alone, so the handshake can be opened out
	// of band for this connection to answer
	authID, err := auth.Open("sess-out-of-band", &models.Intent{Tool: "docker", Action: "restart", Confidence: 1},
		[]models.Factor{models.FactorPIN})
	require.NoError(t, err)

	f.send(t, map[string]interface{}{
		"type":   models.MsgAuthorizationResponse,
		"authId": authID,
		"pin":    "9999",
	})

	event := f.readEvent(t)
	require.Equal(t, models.EventError, event.Type)
	assert.Equal(t, "invalid factors, 2 attempts remaining", event.Data["error"])
	assert.Equal(t, float64(2), event.Data["remainingAttempts"])
	assert.NotContains(t, event.Data["error"], models.ErrAuthorizationDenied.Error())

	// exhausting the attempts is terminal, and says so
	f.send(t, map[string]interface{}{"type": models.MsgAuthorizationResponse, "authId": authID, "pin": "9999"})

	event = f.readEvent(t)
	assert.Equal(t, "invalid factors, 1 attempts remaining", event.Data["error"])

	f.send(t, map[string]interface{}{"type": models.MsgAuthorizationResponse, "authId": authID, "pin": "9999"})

	event = f.readEvent(t)
	require.Equal(t, models.EventError, event.Type)
	assert.Equal(t, models.ErrAuthorizationDenied.Error(), event.Data["error"])
}

func TestWSDisconnectUnregisters(t *testing.T) {
	f := newWSFixture(t)

	require.Eventually(t, func() bool { return f.sessions.Count() == 1 }, time.Second, 5*time.Millisecond)

	f.conn.Close()

	require.Eventually(t, func() bool { return f.sessions.Count() == 0 }, time.Second, 5*time.Millisecond)
}
