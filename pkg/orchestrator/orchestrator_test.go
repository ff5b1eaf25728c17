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

package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthlab/hearth/pkg/logger"
	"github.com/hearthlab/hearth/pkg/models"
	"github.com/hearthlab/hearth/pkg/policy"
)

type recordingSink struct {
	mu         sync.Mutex
	sent       []*models.Event
	broadcasts []*models.Event
}

func (r *recordingSink) Send(_ string, event *models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sent = append(r.sent, event)
}

func (r *recordingSink) Broadcast(_ string, event *models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.broadcasts = append(r.broadcasts, event)
}

func (r *recordingSink) sentByType(eventType string) []*models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.Event

	for _, e := range r.sent {
		if e.Type == eventType {
			out = append(out, e)
		}
	}

	return out
}

func (r *recordingSink) auditEntries() []*models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.Event

	for _, e := range r.broadcasts {
		if e.Type == models.EventAuditEntry {
			out = append(out, e)
		}
	}

	return out
}

type stubSkill struct {
	name    string
	execute func(action string, args map[string]interface{}) (*models.SkillResult, error)
	calls   int
	mu      sync.Mutex
}

func (s *stubSkill) Name() string           { return s.name }
func (s *stubSkill) Capabilities() []string { return []string{"*"} }

func (s *stubSkill) Execute(_ context.Context, action string, args map[string]interface{}) (*models.SkillResult, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.execute != nil {
		return s.execute(action, args)
	}

	return &models.SkillResult{OK: true, Message: "done"}, nil
}

func (s *stubSkill) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls
}

type noAuth struct{}

func (noAuth) Open(string, *models.Intent, []models.Factor) (string, error) { return "", nil }

func newOrchestrator(sink *recordingSink, rules []models.PolicyRule, auth AuthOpener) *Orchestrator {
	if auth == nil {
		auth = noAuth{}
	}

	return New(policy.NewEngine(rules), auth, sink, logger.NewTestLogger())
}

func TestClassifyTextCascade(t *testing.T) {
	o := newOrchestrator(&recordingSink{}, nil, nil)

	tests := []struct {
		text   string
		tool   string
		action string
	}{
		{"please scan the network", "network", "scan_network"},
		{"what devices are online?", "network", "get_devices"},
		{"classify devices again", "network", "classify_devices"},
		{"turn on the living room lights", "devices", "control"},
		{"activate the movie night scene", "devices", "activate_scene"},
		{"restart plex-server container", "docker", "restart"},
		{"pause the movie", "plex", "pause"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			intent := o.classifyText(tt.text)
			require.NotZero(t, intent.Confidence, "expected a match")
			assert.Equal(t, tt.tool, intent.Tool)
			assert.Equal(t, tt.action, intent.Action)
		})
	}
}

func TestClassifyTextFirstMatchWins(t *testing.T) {
	o := newOrchestrator(&recordingSink{}, nil, nil)

	// "restart" also appears, but the network matcher is declared first.
	intent := o.classifyText("scan the network and restart nothing")
	assert.Equal(t, "network", intent.Tool)
	assert.Equal(t, "scan_network", intent.Action)
}

func TestHandleInputUnknownIntent(t *testing.T) {
	sink := &recordingSink{}
	o := newOrchestrator(sink, nil, nil)

	o.HandleInput(context.Background(), "sess-1", "mumble mumble")

	errs := sink.sentByType(models.EventError)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Data["error"], "could not understand")

	// no dispatch happened
	assert.Empty(t, sink.sentByType(models.EventToolExecuting))
	assert.Empty(t, sink.auditEntries())
}

func TestDispatchUngatedExecutesAndAudits(t *testing.T) {
	sink := &recordingSink{}
	o := newOrchestrator(sink, nil, nil)

	skill := &stubSkill{name: "network"}
	o.RegisterSkill(skill)

	o.Dispatch(context.Background(), "sess-1", &models.Intent{
		Tool: "network", Action: "get_devices", Confidence: 1,
	})

	assert.Equal(t, 1, skill.callCount())
	require.Len(t, sink.sentByType(models.EventToolExecuting), 1)
	require.Len(t, sink.sentByType(models.EventToolResult), 1)

	audits := sink.auditEntries()
	require.Len(t, audits, 1)
	assert.Equal(t, true, audits[0].Data["success"])
	assert.Equal(t, "network", audits[0].Data["tool"])
}

func TestExecuteMissingSkillIsAudited(t *testing.T) {
	sink := &recordingSink{}
	o := newOrchestrator(sink, nil, nil)

	o.Execute(context.Background(), "sess-1", &models.Intent{Tool: "ghost", Action: "boo"})

	errs := sink.sentByType(models.EventToolError)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Data["error"], "skill not found")

	audits := sink.auditEntries()
	require.Len(t, audits, 1)
	assert.Equal(t, false, audits[0].Data["success"])
}

func TestInvokeSkillWrapsErrors(t *testing.T) {
	o := newOrchestrator(&recordingSink{}, nil, nil)
	o.RegisterSkill(&stubSkill{
		name: "docker",
		execute: func(string, map[string]interface{}) (*models.SkillResult, error) {
			return nil, errors.New("daemon unreachable")
		},
	})

	_, err := o.InvokeSkill(context.Background(), "docker", "restart", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrSkillExecution)
	assert.Contains(t, err.Error(), "daemon unreachable")
}

func TestInvokeSkillRecoversPanic(t *testing.T) {
	sink := &recordingSink{}
	o := newOrchestrator(sink, nil, nil)
	o.RegisterSkill(&stubSkill{
		name: "flaky",
		execute: func(string, map[string]interface{}) (*models.SkillResult, error) {
			panic("boom")
		},
	})

	// must not crash the process; still audited through Execute
	o.Execute(context.Background(), "sess-1", &models.Intent{Tool: "flaky", Action: "run"})

	audits := sink.auditEntries()
	require.Len(t, audits, 1)
	assert.Equal(t, false, audits[0].Data["success"])
}

// TestGatedDispatchEndToEnd walks the full handshake: a policy-gated action
// prompts for a PIN, and a correct submission executes the deferred intent
// exactly once.
func TestGatedDispatchEndToEnd(t *testing.T) {
	sink := &recordingSink{}

	pinHash, err := policy.HashPIN("4242")
	require.NoError(t, err)

	rules := []models.PolicyRule{
		{Pattern: "docker.*", Factors: []models.Factor{models.FactorPIN}},
	}

	var o *Orchestrator

	auth := policy.NewAuthorizer(
		policy.NewVerifier(pinHash, ""),
		sink,
		func(sessionID string, intent *models.Intent) {
			o.Execute(context.Background(), sessionID, intent)
		},
		3,
		time.Minute,
		time.Second,
		logger.NewTestLogger(),
	)

	o = newOrchestrator(sink, rules, auth)

	skill := &stubSkill{name: "docker"}
	o.RegisterSkill(skill)

	o.Dispatch(context.Background(), "sess-1", &models.Intent{
		Tool: "docker", Action: "restart", Confidence: 1,
	})

	// execution deferred: nothing ran yet
	assert.Zero(t, skill.callCount())

	required := sink.sentByType(models.EventAuthorizationRequired)
	require.Len(t, required, 1)
	assert.Equal(t, true, required[0].Data["requiresPin"])

	authID, ok := required[0].Data["authId"].(string)
	require.True(t, ok)

	result, err := auth.Submit(authID, "4242", "")
	require.NoError(t, err)
	assert.True(t, result.Authorized)

	assert.Equal(t, 1, skill.callCount())
	assert.Len(t, sink.sentByType(models.EventToolExecuting), 1)
	assert.Len(t, sink.sentByType(models.EventToolResult), 1)
	assert.Len(t, sink.auditEntries(), 1)
}

// TestGatedDispatchDeniedIsAudited covers the other end of the handshake: a
// deferred intent whose authorization is denied never executes, but the
// dispatch still leaves exactly one failure audit entry.
func TestGatedDispatchDeniedIsAudited(t *testing.T) {
	sink := &recordingSink{}

	pinHash, err := policy.HashPIN("4242")
	require.NoError(t, err)

	rules := []models.PolicyRule{
		{Pattern: "docker.*", Factors: []models.Factor{models.FactorPIN}},
	}

	var o *Orchestrator

	auth := policy.NewAuthorizer(
		policy.NewVerifier(pinHash, ""),
		sink,
		func(sessionID string, intent *models.Intent) {
			o.Execute(context.Background(), sessionID, intent)
		},
		1,
		time.Minute,
		time.Second,
		logger.NewTestLogger(),
	)

	o = newOrchestrator(sink, rules, auth)
	auth.OnTerminal(o.AuditFailure)

	skill := &stubSkill{name: "docker"}
	o.RegisterSkill(skill)

	o.Dispatch(context.Background(), "sess-1", &models.Intent{
		Tool: "docker", Action: "restart", Confidence: 1,
	})

	required := sink.sentByType(models.EventAuthorizationRequired)
	require.Len(t, required, 1)

	authID, ok := required[0].Data["authId"].(string)
	require.True(t, ok)

	_, err = auth.Submit(authID, "9999", "")
	require.ErrorIs(t, err, models.ErrAuthorizationDenied)

	assert.Zero(t, skill.callCount())

	entries := sink.auditEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, "sess-1", entries[0].Data["sessionId"])
	assert.Equal(t, "docker", entries[0].Data["tool"])
	assert.Equal(t, "restart", entries[0].Data["action"])
	assert.Equal(t, false, entries[0].Data["success"])
	assert.Equal(t, models.ErrAuthorizationDenied.Error(), entries[0].Data["resultSummary"])
}

// TestGatedDispatchExpiredIsAudited: an authorization that times out before
// any valid submission also audits exactly once, as a failure.
func TestGatedDispatchExpiredIsAudited(t *testing.T) {
	sink := &recordingSink{}

	pinHash, err := policy.HashPIN("4242")
	require.NoError(t, err)

	rules := []models.PolicyRule{
		{Pattern: "docker.*", Factors: []models.Factor{models.FactorPIN}},
	}

	var o *Orchestrator

	auth := policy.NewAuthorizer(
		policy.NewVerifier(pinHash, ""),
		sink,
		func(sessionID string, intent *models.Intent) {
			o.Execute(context.Background(), sessionID, intent)
		},
		3,
		time.Millisecond,
		time.Minute,
		logger.NewTestLogger(),
	)

	o = newOrchestrator(sink, rules, auth)
	auth.OnTerminal(o.AuditFailure)

	skill := &stubSkill{name: "docker"}
	o.RegisterSkill(skill)

	o.Dispatch(context.Background(), "sess-1", &models.Intent{
		Tool: "docker", Action: "restart", Confidence: 1,
	})

	required := sink.sentByType(models.EventAuthorizationRequired)
	require.Len(t, required, 1)

	authID, ok := required[0].Data["authId"].(string)
	require.True(t, ok)

	time.Sleep(20 * time.Millisecond)

	_, err = auth.Submit(authID, "4242", "")
	require.ErrorIs(t, err, models.ErrAuthorizationExpired)

	assert.Zero(t, skill.callCount())

	entries := sink.auditEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, false, entries[0].Data["success"])
	assert.Equal(t, models.ErrAuthorizationExpired.Error(), entries[0].Data["resultSummary"])
}
