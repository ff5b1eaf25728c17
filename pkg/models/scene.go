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

// Capability names a command a device supports, inferred once at
// registration from its classification and open ports.
type Capability string

const (
	CapPowerOn    Capability = "power_on"
	CapPowerOff   Capability = "power_off"
	CapStatus     Capability = "status"
	CapStream     Capability = "stream"
	CapPlayback   Capability = "playback"
	CapVolume     Capability = "volume"
	CapBrightness Capability = "brightness"
	CapColor      Capability = "color"
	CapSetTemp    Capability = "set_temperature"
	CapPrint      Capability = "print"
	CapWake       Capability = "wake"
)

// SceneAction is one device target state inside a scene.
type SceneAction struct {
	DeviceID string                 `json:"device_id"`
	Command  string                 `json:"command"`
	Params   map[string]interface{} `json:"params,omitempty"`
}

// Scene is a named, atomic multi-device activation. A scene either applies
// to every referenced device or to none.
type Scene struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Actions   []SceneAction `json:"actions"`
	CreatedAt time.Time     `json:"created_at"`
}

// AutomationRule triggers a scene or command when its condition fires.
// Referenced devices are revalidated at trigger time, fail closed.
type AutomationRule struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Trigger   string        `json:"trigger"`
	Actions   []SceneAction `json:"actions"`
	Enabled   bool          `json:"enabled"`
	CreatedAt time.Time     `json:"created_at"`
}

// ControlOutcome is the per-device result of a control or bulk operation.
type ControlOutcome struct {
	DeviceID string `json:"device_id"`
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
}

// BulkControlResult aggregates a concurrent multi-device command.
type BulkControlResult struct {
	Outcomes  []ControlOutcome `json:"outcomes"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
}
