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

// AuditEntry records one command dispatch, successful or not. One entry is
// emitted per dispatch, unconditionally.
type AuditEntry struct {
	Timestamp     time.Time `json:"timestamp"`
	SessionID     string    `json:"session_id"`
	Tool          string    `json:"tool"`
	Action        string    `json:"action"`
	ArgsSummary   string    `json:"args_summary,omitempty"`
	Success       bool      `json:"success"`
	ResultSummary string    `json:"result_summary,omitempty"`
}
