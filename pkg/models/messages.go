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

package models

import (
	"encoding/json"
	"time"
)

// Inbound message types accepted over a session connection.
const (
	MsgVoiceInput            = "voice_input"
	MsgToolRequest           = "tool_request"
	MsgSubscribe             = "subscribe"
	MsgPing                  = "ping"
	MsgAuthorizationResponse = "authorization_response"
)

// Outbound event types fanned out to subscribed sessions.
const (
	EventTranscript            = "transcript"
	EventIntent                = "intent"
	EventToolExecuting         = "tool_executing"
	EventToolResult            = "tool_result"
	EventToolError             = "tool_error"
	EventAuthorizationRequired = "authorization_required"
	EventAuthorizationSuccess  = "authorization_success"
	EventAuditEntry            = "audit_entry"
	EventSystemMetrics         = "system_metrics"
	EventNetworkScanComplete   = "network_scan_complete"
	EventError                 = "error"
	EventPong                  = "pong"
)

// InboundMessage is the envelope for messages received from a session.
type InboundMessage struct {
	Type      string                 `json:"type"`
	Text      string                 `json:"text,omitempty"`
	Tool      string                 `json:"tool,omitempty"`
	Action    string                 `json:"action,omitempty"`
	Args      map[string]interface{} `json:"args,omitempty"`
	RequestID string                 `json:"requestId,omitempty"`
	Topics    []string               `json:"topics,omitempty"`
	AuthID    string                 `json:"authId,omitempty"`
	PIN       string                 `json:"pin,omitempty"`
	TOTP      string                 `json:"totp,omitempty"`
}

// Event is the envelope for messages sent to sessions. Every event carries
// a wall-clock timestamp in RFC3339 form.
type Event struct {
	Type      string                 `json:"type"`
	Timestamp string                 `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// NewEvent builds an event stamped with the current time.
func NewEvent(eventType string, data map[string]interface{}) *Event {
	return &Event{
		Type:      eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      data,
	}
}

// Marshal renders the event as JSON, with a minimal fallback on failure.
func (e *Event) Marshal() []byte {
	data, err := json.Marshal(e)
	if err != nil {
		return []byte(`{"type":"error","data":{"message":"event marshal failed"}}`)
	}

	return data
}
