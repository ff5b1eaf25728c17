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

import "fmt"

// Intent is the structured interpretation of a raw command. Ephemeral:
// it lives for one dispatch and is never persisted.
type Intent struct {
	Tool       string                 `json:"tool"`
	Action     string                 `json:"action"`
	Args       map[string]interface{} `json:"args,omitempty"`
	Confidence float64                `json:"confidence"`
	RequestID  string                 `json:"request_id,omitempty"`
}

// Path returns the "tool.action" form used for policy matching and auditing.
func (i *Intent) Path() string {
	return fmt.Sprintf("%s.%s", i.Tool, i.Action)
}

// SkillResult is the outcome of one skill execution.
type SkillResult struct {
	OK      bool                   `json:"ok"`
	Message string                 `json:"message,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}
