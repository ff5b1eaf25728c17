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

// Package orchestrator routes incoming commands: it classifies raw text
// into intents, applies the authorization policy, executes the matched
// skill, and audits every dispatch.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hearthlab/hearth/pkg/logger"
	"github.com/hearthlab/hearth/pkg/models"
	"github.com/hearthlab/hearth/pkg/policy"
)

// Skill is a pluggable capability bound to one domain. Skills are registered
// by name at startup and treated as opaque by the orchestrator.
type Skill interface {
	Name() string
	Capabilities() []string
	Execute(ctx context.Context, action string, args map[string]interface{}) (*models.SkillResult, error)
}

// EventSink is where dispatch outcomes go. The session registry satisfies it.
type EventSink interface {
	Send(sessionID string, event *models.Event)
	Broadcast(topic string, event *models.Event)
}

// AuthOpener opens a pending authorization handshake for a gated intent.
type AuthOpener interface {
	Open(sessionID string, intent *models.Intent, factors []models.Factor) (string, error)
}

// AuditTopic is the broadcast topic carrying audit entries.
const AuditTopic = "audit"

const argsSummaryLimit = 160

// Orchestrator is the command router. Dispatch runs synchronously in the
// caller's goroutine: each session's read loop is its own unit of work, so
// per-session audit order is preserved while sessions never block each other.
type Orchestrator struct {
	mu     sync.RWMutex
	skills map[string]Skill

	matchers []intentMatcher
	policy   *policy.Engine
	auth     AuthOpener
	events   EventSink
	logger   logger.Logger
}

// New creates an orchestrator with the default intent matcher cascade.
func New(policyEngine *policy.Engine, auth AuthOpener, events EventSink, log logger.Logger) *Orchestrator {
	return &Orchestrator{
		skills:   make(map[string]Skill),
		matchers: defaultMatchers(),
		policy:   policyEngine,
		auth:     auth,
		events:   events,
		logger:   log.WithComponent("orchestrator"),
	}
}

// RegisterSkill adds a skill to the lookup table. Later registrations under
// the same name replace earlier ones.
func (o *Orchestrator) RegisterSkill(skill Skill) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.skills[skill.Name()] = skill
}

// HandleInput classifies free text into an intent and dispatches it.
func (o *Orchestrator) HandleInput(ctx context.Context, sessionID, rawText string) {
	o.events.Send(sessionID, models.NewEvent(models.EventTranscript, map[string]interface{}{
		"text": rawText,
	}))

	intent := o.classifyText(rawText)
	if intent.Confidence == 0 {
		o.events.Send(sessionID, models.NewEvent(models.EventError, map[string]interface{}{
			"error": models.ErrUnknownIntent.Error(),
			"text":  rawText,
		}))

		return
	}

	o.events.Send(sessionID, models.NewEvent(models.EventIntent, map[string]interface{}{
		"tool":       intent.Tool,
		"action":     intent.Action,
		"args":       intent.Args,
		"confidence": intent.Confidence,
	}))

	o.Dispatch(ctx, sessionID, intent)
}

// Dispatch consults the policy engine and either defers the intent behind
// an authorization handshake or executes it immediately.
func (o *Orchestrator) Dispatch(ctx context.Context, sessionID string, intent *models.Intent) {
	decision := o.policy.Classify(intent.Tool, intent.Action)
	if decision.Required {
		if _, err := o.auth.Open(sessionID, intent, decision.Factors); err != nil {
			o.events.Send(sessionID, models.NewEvent(models.EventToolError, map[string]interface{}{
				"tool":   intent.Tool,
				"action": intent.Action,
				"error":  err.Error(),
			}))
		}

		// Execution is deferred until the handshake resolves or expires.
		return
	}

	o.Execute(ctx, sessionID, intent)
}

// Execute runs an intent against its skill, emits the result events, and
// always emits one audit entry. It is also the authorization-granted
// callback, so a gated intent passes through here exactly once.
func (o *Orchestrator) Execute(ctx context.Context, sessionID string, intent *models.Intent) {
	o.events.Send(sessionID, models.NewEvent(models.EventToolExecuting, map[string]interface{}{
		"tool":      intent.Tool,
		"action":    intent.Action,
		"requestId": intent.RequestID,
	}))

	result, err := o.InvokeSkill(ctx, intent.Tool, intent.Action, intent.Args)

	if err != nil {
		o.events.Send(sessionID, models.NewEvent(models.EventToolError, map[string]interface{}{
			"tool":      intent.Tool,
			"action":    intent.Action,
			"requestId": intent.RequestID,
			"error":     err.Error(),
		}))
	} else {
		o.events.Send(sessionID, models.NewEvent(models.EventToolResult, map[string]interface{}{
			"tool":      intent.Tool,
			"action":    intent.Action,
			"requestId": intent.RequestID,
			"ok":        result.OK,
			"message":   result.Message,
			"payload":   result.Payload,
		}))
	}

	o.audit(sessionID, intent, result, err)
}

// AuditFailure records a dispatch that terminated without executing, such
// as a deferred intent whose authorization was denied or expired. The
// authorizer's terminal callback lands here so those dispatches still leave
// exactly one audit entry.
func (o *Orchestrator) AuditFailure(sessionID string, intent *models.Intent, err error) {
	o.audit(sessionID, intent, nil, err)
}

// InvokeSkill looks up a skill by name and executes one action. Panics and
// returned errors are converted to the execution-error taxonomy; routing
// misses surface as ErrSkillNotFound.
func (o *Orchestrator) InvokeSkill(
	ctx context.Context,
	tool, action string,
	args map[string]interface{},
) (result *models.SkillResult, err error) {
	o.mu.RLock()
	skill, ok := o.skills[tool]
	o.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrSkillNotFound, tool)
	}

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error().
				Interface("panic", r).
				Str("tool", tool).
				Str("action", action).
				Msg("Skill panicked")

			result = nil
			err = fmt.Errorf("%w: %s.%s: panic: %v", models.ErrSkillExecution, tool, action, r)
		}
	}()

	result, err = skill.Execute(ctx, action, args)
	if err != nil {
		return nil, fmt.Errorf("%w: %s.%s: %w", models.ErrSkillExecution, tool, action, err)
	}

	if result == nil {
		result = &models.SkillResult{OK: true}
	}

	return result, nil
}

// audit emits one entry per dispatch, success or failure, to the audit topic.
func (o *Orchestrator) audit(sessionID string, intent *models.Intent, result *models.SkillResult, execErr error) {
	entry := models.AuditEntry{
		Timestamp:   time.Now().UTC(),
		SessionID:   sessionID,
		Tool:        intent.Tool,
		Action:      intent.Action,
		ArgsSummary: summarizeArgs(intent.Args),
		Success:     execErr == nil,
	}

	switch {
	case execErr != nil:
		entry.ResultSummary = execErr.Error()
	case result != nil:
		entry.ResultSummary = result.Message
	}

	o.logger.Info().
		Str("session_id", sessionID).
		Str("tool", intent.Tool).
		Str("action", intent.Action).
		Bool("success", entry.Success).
		Msg("Dispatch audited")

	o.events.Broadcast(AuditTopic, models.NewEvent(models.EventAuditEntry, map[string]interface{}{
		"sessionId":     entry.SessionID,
		"tool":          entry.Tool,
		"action":        entry.Action,
		"argsSummary":   entry.ArgsSummary,
		"success":       entry.Success,
		"resultSummary": entry.ResultSummary,
	}))
}

func summarizeArgs(args map[string]interface{}) string {
	if len(args) == 0 {
		return ""
	}

	data, err := json.Marshal(args)
	if err != nil {
		return "<unserializable>"
	}

	if len(data) > argsSummaryLimit {
		return string(data[:argsSummaryLimit]) + "..."
	}

	return string(data)
}
