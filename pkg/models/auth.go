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

import "time"

// Factor is one authorization factor a policy rule may require.
type Factor string

const (
	FactorPIN  Factor = "pin"
	FactorTOTP Factor = "totp"
)

// AuthState is the lifecycle state of an authorization session.
type AuthState string

const (
	AuthPending    AuthState = "pending"
	AuthVerifying  AuthState = "verifying"
	AuthAuthorized AuthState = "authorized"
	AuthDenied     AuthState = "denied"
	AuthExpired    AuthState = "expired"
)

// PolicyRule gates a tool.action path behind authorization factors.
// Patterns match exactly, or by prefix when they end in "*". Rules are
// immutable after load; declaration order expresses precedence.
type PolicyRule struct {
	Pattern string   `json:"pattern"`
	Factors []Factor `json:"factors"`
}

// AuthorizationSession tracks one pending privileged action awaiting
// factor verification.
type AuthorizationSession struct {
	ID          string        `json:"id"`
	SessionID   string        `json:"session_id"`
	Intent      *Intent       `json:"intent"`
	Factors     []Factor      `json:"factors"`
	State       AuthState     `json:"state"`
	CreatedAt   time.Time     `json:"created_at"`
	Attempts    int           `json:"attempts"`
	MaxAttempts int           `json:"max_attempts"`
	Timeout     time.Duration `json:"timeout"`
}

// Expired reports whether the session has outlived its timeout at now.
func (a *AuthorizationSession) Expired(now time.Time) bool {
	return now.Sub(a.CreatedAt) > a.Timeout
}

// RequiresFactor reports whether the session demands the given factor.
func (a *AuthorizationSession) RequiresFactor(f Factor) bool {
	for _, required := range a.Factors {
		if required == f {
			return true
		}
	}

	return false
}
