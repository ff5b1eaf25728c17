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

package devices

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hearthlab/hearth/pkg/models"
)

// ControlDevice sends one command to one device. The command must be in the
// device's inferred capability set; anything else is rejected without
// touching the transport.
func (r *Registry) ControlDevice(ctx context.Context, deviceID, command string, params map[string]interface{}) error {
	r.mu.RLock()
	device, ok := r.devices[deviceID]
	allowed := r.capabilities[deviceID][models.Capability(command)]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", models.ErrDeviceNotFound, deviceID)
	}

	if !allowed {
		return fmt.Errorf("%w: %s does not support %q", models.ErrCapabilityNotSupported, deviceID, command)
	}

	if err := r.commander.Send(ctx, device, command, params); err != nil {
		return fmt.Errorf("control %s: %w", deviceID, err)
	}

	r.logger.Info().Str("ip", deviceID).Str("command", command).Msg("Device command sent")

	return nil
}

// BulkControl sends the same command to several devices concurrently. Each
// device succeeds or fails on its own; one failure never stops the rest.
func (r *Registry) BulkControl(ctx context.Context, deviceIDs []string, command string, params map[string]interface{}) *models.BulkControlResult {
	outcomes := make([]models.ControlOutcome, len(deviceIDs))

	var wg sync.WaitGroup

	for i, id := range deviceIDs {
		wg.Add(1)

		go func(i int, id string) {
			defer wg.Done()

			err := r.ControlDevice(ctx, id, command, params)

			outcomes[i] = models.ControlOutcome{DeviceID: id, OK: err == nil}
			if err != nil {
				outcomes[i].Error = err.Error()
			}
		}(i, id)
	}

	wg.Wait()

	result := &models.BulkControlResult{Outcomes: outcomes}

	for _, o := range outcomes {
		if o.OK {
			result.Succeeded++
		} else {
			result.Failed++
		}
	}

	return result
}

// CreateScene stores a named scene and returns its id.
func (r *Registry) CreateScene(name string, actions []models.SceneAction) *models.Scene {
	scene := &models.Scene{
		ID:        uuid.New().String(),
		Name:      name,
		Actions:   append([]models.SceneAction(nil), actions...),
		CreatedAt: time.Now(),
	}

	r.mu.Lock()
	r.scenes[scene.ID] = scene
	r.mu.Unlock()

	return scene
}

// GetScene returns a stored scene by id.
func (r *Registry) GetScene(id string) (*models.Scene, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	scene, ok := r.scenes[id]

	return scene, ok
}

// SceneByName returns the first scene whose name matches, case-insensitive.
func (r *Registry) SceneByName(name string) (*models.Scene, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, scene := range r.scenes {
		if strings.EqualFold(scene.Name, name) {
			return scene, true
		}
	}

	return nil, false
}

// ActivateScene applies every action of a scene. Validation is all-or-
// nothing: if any referenced device is missing or lacks the commanded
// capability, nothing is applied.
func (r *Registry) ActivateScene(ctx context.Context, sceneID string) (*models.BulkControlResult, error) {
	r.mu.RLock()
	scene, ok := r.scenes[sceneID]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrSceneNotFound, sceneID)
	}

	if err := r.validateActions(scene.Actions); err != nil {
		return nil, fmt.Errorf("scene %q: %w", scene.Name, err)
	}

	return r.applyActions(ctx, scene.Actions), nil
}

// AddRule stores an automation rule and returns its id.
func (r *Registry) AddRule(name, trigger string, actions []models.SceneAction) *models.AutomationRule {
	rule := &models.AutomationRule{
		ID:        uuid.New().String(),
		Name:      name,
		Trigger:   trigger,
		Actions:   append([]models.SceneAction(nil), actions...),
		Enabled:   true,
		CreatedAt: time.Now(),
	}

	r.mu.Lock()
	r.rules[rule.ID] = rule
	r.mu.Unlock()

	return rule
}

// SetRuleEnabled toggles a rule.
func (r *Registry) SetRuleEnabled(id string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rule, ok := r.rules[id]
	if !ok {
		return fmt.Errorf("%w: rule %s", models.ErrDeviceNotFound, id)
	}

	rule.Enabled = enabled

	return nil
}

// FireRule executes an enabled rule's actions. Referenced devices are
// revalidated at trigger time with the same fail-closed check as scenes.
func (r *Registry) FireRule(ctx context.Context, ruleID string) (*models.BulkControlResult, error) {
	r.mu.RLock()
	rule, ok := r.rules[ruleID]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: rule %s", models.ErrSceneNotFound, ruleID)
	}

	if !rule.Enabled {
		return nil, fmt.Errorf("rule %q is disabled", rule.Name)
	}

	if err := r.validateActions(rule.Actions); err != nil {
		return nil, fmt.Errorf("rule %q: %w", rule.Name, err)
	}

	return r.applyActions(ctx, rule.Actions), nil
}

// validateActions checks that every referenced device exists and supports
// its command before anything is applied.
func (r *Registry) validateActions(actions []models.SceneAction) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, action := range actions {
		if _, ok := r.devices[action.DeviceID]; !ok {
			return fmt.Errorf("%w: %s", models.ErrDeviceNotFound, action.DeviceID)
		}

		if !r.capabilities[action.DeviceID][models.Capability(action.Command)] {
			return fmt.Errorf("%w: %s does not support %q", models.ErrCapabilityNotSupported, action.DeviceID, action.Command)
		}
	}

	return nil
}

func (r *Registry) applyActions(ctx context.Context, actions []models.SceneAction) *models.BulkControlResult {
	outcomes := make([]models.ControlOutcome, len(actions))

	var wg sync.WaitGroup

	for i, action := range actions {
		wg.Add(1)

		go func(i int, action models.SceneAction) {
			defer wg.Done()

			err := r.ControlDevice(ctx, action.DeviceID, action.Command, action.Params)

			outcomes[i] = models.ControlOutcome{DeviceID: action.DeviceID, OK: err == nil}
			if err != nil {
				outcomes[i].Error = err.Error()
			}
		}(i, action)
	}

	wg.Wait()

	result := &models.BulkControlResult{Outcomes: outcomes}

	for _, o := range outcomes {
		if o.OK {
			result.Succeeded++
		} else {
			result.Failed++
		}
	}

	return result
}
