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

import "errors"

var (
	// Inbound message handling
	ErrMalformedMessage = errors.New("malformed message")
	ErrUnknownIntent    = errors.New("could not understand the command")

	// Skill routing and execution
	ErrSkillNotFound          = errors.New("skill not found")
	ErrCapabilityNotSupported = errors.New("capability not supported")
	ErrSkillExecution         = errors.New("skill execution failed")

	// Authorization flow
	ErrAuthorizationDenied   = errors.New("authorization denied")
	ErrAuthorizationExpired  = errors.New("authorization expired")
	ErrAuthorizationPending  = errors.New("authorization already pending")
	ErrAuthorizationNotFound = errors.New("authorization session not found")

	// Discovery
	ErrScanInProgress = errors.New("scan already in progress")
	ErrProbeFailure   = errors.New("probe failed")

	// Registry
	ErrDeviceNotFound = errors.New("device not found")
	ErrSceneNotFound  = errors.New("scene not found")
	ErrSessionClosed  = errors.New("session closed")
)
