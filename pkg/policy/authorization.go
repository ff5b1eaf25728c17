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

package policy

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hearthlab/hearth/pkg/logger"
	"github.com/hearthlab/hearth/pkg/models"
)

// Notifier delivers events to the owning session. The session registry
// satisfies it.
type Notifier interface {
	Send(sessionID string, event *models.Event)
}

// AuthorizedFunc executes the deferred intent once all factors verify.
type AuthorizedFunc func(sessionID string, intent *models.Intent)

// TerminalFunc observes a deferred intent that will never execute: the
// handshake ended denied or expired. err is the taxonomy error for the
// outcome.
type TerminalFunc func(sessionID string, intent *models.Intent, err error)

// SubmitResult reports the outcome of one factor submission.
type SubmitResult struct {
	Authorized        bool `json:"authorized"`
	RemainingAttempts int  `json:"remaining_attempts"`
}

// Authorizer tracks pending authorization sessions: Pending -> Verifying ->
// {Authorized | Denied | Expired}. At most one pending session per
// (owner, tool.action) pair is accepted.
type Authorizer struct {
	mu       sync.Mutex
	sessions map[string]*models.AuthorizationSession

	verifier     CredentialVerifier
	notifier     Notifier
	onAuthorized AuthorizedFunc
	onTerminal   TerminalFunc

	maxAttempts int
	timeout     time.Duration
	sweepEvery  time.Duration
	now         func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
	logger logger.Logger
}

// NewAuthorizer creates the authorization state machine.
func NewAuthorizer(
	verifier CredentialVerifier,
	notifier Notifier,
	onAuthorized AuthorizedFunc,
	maxAttempts int,
	timeout, sweepEvery time.Duration,
	log logger.Logger,
) *Authorizer {
	if maxAttempts == 0 {
		maxAttempts = 3
	}

	if timeout == 0 {
		timeout = 2 * time.Minute
	}

	if sweepEvery == 0 {
		sweepEvery = 15 * time.Second
	}

	return &Authorizer{
		sessions:     make(map[string]*models.AuthorizationSession),
		verifier:     verifier,
		notifier:     notifier,
		onAuthorized: onAuthorized,
		maxAttempts:  maxAttempts,
		timeout:      timeout,
		sweepEvery:   sweepEvery,
		now:          time.Now,
		logger:       log.WithComponent("authorization"),
	}
}

// OnTerminal registers a handler called when a session ends denied or
// expired. Every dispatch leaves an audit trail; the handler is how the
// never-executed ones get theirs.
func (a *Authorizer) OnTerminal(fn TerminalFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.onTerminal = fn
}

func (a *Authorizer) terminal(auth *models.AuthorizationSession, err error) {
	a.mu.Lock()
	fn := a.onTerminal
	a.mu.Unlock()

	if fn != nil {
		fn(auth.SessionID, auth.Intent, err)
	}
}

// Open creates a Pending session for a gated intent and notifies the owner
// which factors are required. A duplicate pending (owner, tool.action) is
// rejected.
func (a *Authorizer) Open(sessionID string, intent *models.Intent, factors []models.Factor) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, existing := range a.sessions {
		if existing.SessionID == sessionID && existing.Intent.Path() == intent.Path() {
			return "", models.ErrAuthorizationPending
		}
	}

	auth := &models.AuthorizationSession{
		ID:          uuid.New().String(),
		SessionID:   sessionID,
		Intent:      intent,
		Factors:     factors,
		State:       models.AuthPending,
		CreatedAt:   a.now(),
		MaxAttempts: a.maxAttempts,
		Timeout:     a.timeout,
	}
	a.sessions[auth.ID] = auth

	a.logger.Info().
		Str("auth_id", auth.ID).
		Str("session_id", sessionID).
		Str("path", intent.Path()).
		Msg("Authorization required")

	a.notifier.Send(sessionID, models.NewEvent(models.EventAuthorizationRequired, map[string]interface{}{
		"authId":       auth.ID,
		"tool":         intent.Tool,
		"action":       intent.Action,
		"requiresPin":  auth.RequiresFactor(models.FactorPIN),
		"requiresTotp": auth.RequiresFactor(models.FactorTOTP),
		"timeout":      a.timeout.Seconds(),
	}))

	return auth.ID, nil
}

// Submit verifies the provided factors against a pending session. Every
// required factor must independently verify. Failures consume an attempt;
// exhausting attempts denies and destroys the session.
func (a *Authorizer) Submit(authID, pin, totpCode string) (SubmitResult, error) {
	a.mu.Lock()

	auth, ok := a.sessions[authID]
	if !ok {
		a.mu.Unlock()
		return SubmitResult{}, models.ErrAuthorizationNotFound
	}

	now := a.now()
	if auth.Expired(now) {
		delete(a.sessions, authID)
		auth.State = models.AuthExpired
		a.mu.Unlock()

		a.notifyTerminal(auth, "authorization expired")
		a.terminal(auth, models.ErrAuthorizationExpired)

		return SubmitResult{}, models.ErrAuthorizationExpired
	}

	auth.State = models.AuthVerifying

	verified := true

	if auth.RequiresFactor(models.FactorPIN) && !a.verifier.VerifyPIN(pin) {
		verified = false
	}

	if auth.RequiresFactor(models.FactorTOTP) && !a.verifier.VerifyTOTP(totpCode, now) {
		verified = false
	}

	if verified {
		auth.State = models.AuthAuthorized
		delete(a.sessions, authID)
		a.mu.Unlock()

		a.logger.Info().
			Str("auth_id", authID).
			Str("path", auth.Intent.Path()).
			Msg("Authorization granted")

		a.notifier.Send(auth.SessionID, models.NewEvent(models.EventAuthorizationSuccess, map[string]interface{}{
			"authId": authID,
			"tool":   auth.Intent.Tool,
			"action": auth.Intent.Action,
		}))

		a.onAuthorized(auth.SessionID, auth.Intent)

		return SubmitResult{Authorized: true}, nil
	}

	auth.Attempts++

	if auth.Attempts >= auth.MaxAttempts {
		auth.State = models.AuthDenied
		delete(a.sessions, authID)
		a.mu.Unlock()

		a.logger.Warn().
			Str("auth_id", authID).
			Str("path", auth.Intent.Path()).
			Msg("Authorization denied after max attempts")

		a.notifyTerminal(auth, "authorization denied")
		a.terminal(auth, models.ErrAuthorizationDenied)

		return SubmitResult{}, models.ErrAuthorizationDenied
	}

	auth.State = models.AuthPending
	remaining := auth.MaxAttempts - auth.Attempts
	a.mu.Unlock()

	return SubmitResult{RemainingAttempts: remaining}, nil
}

// DropSession destroys every pending authorization owned by a session. No
// action may be approved on behalf of a session that is gone.
func (a *Authorizer) DropSession(sessionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for id, auth := range a.sessions {
		if auth.SessionID == sessionID {
			delete(a.sessions, id)
		}
	}
}

// Pending returns the number of outstanding authorization sessions.
func (a *Authorizer) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.sessions)
}

// Start launches the expiry sweep.
func (a *Authorizer) Start(ctx context.Context) {
	sweepCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})

	go func() {
		defer close(a.done)

		ticker := time.NewTicker(a.sweepEvery)
		defer ticker.Stop()

		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				a.sweepExpired()
			}
		}
	}()
}

// Stop halts the expiry sweep.
func (a *Authorizer) Stop() {
	if a.cancel != nil {
		a.cancel()
		<-a.done
	}
}

// sweepExpired transitions overdue sessions to Expired and notifies their
// owners. This is the hard cancellation path: a late correct submission
// finds no session.
func (a *Authorizer) sweepExpired() {
	now := a.now()

	a.mu.Lock()
	expired := make([]*models.AuthorizationSession, 0)

	for id, auth := range a.sessions {
		if auth.Expired(now) {
			auth.State = models.AuthExpired
			delete(a.sessions, id)
			expired = append(expired, auth)
		}
	}
	a.mu.Unlock()

	for _, auth := range expired {
		a.logger.Info().
			Str("auth_id", auth.ID).
			Str("path", auth.Intent.Path()).
			Msg("Authorization expired")

		a.notifyTerminal(auth, "authorization expired")
		a.terminal(auth, models.ErrAuthorizationExpired)
	}
}

func (a *Authorizer) notifyTerminal(auth *models.AuthorizationSession, message string) {
	a.notifier.Send(auth.SessionID, models.NewEvent(models.EventToolError, map[string]interface{}{
		"authId": auth.ID,
		"tool":   auth.Intent.Tool,
		"action": auth.Intent.Action,
		"error":  message,
	}))
}
