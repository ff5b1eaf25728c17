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

package skills

import (
	"context"
	"fmt"

	"github.com/hearthlab/hearth/pkg/devices"
	"github.com/hearthlab/hearth/pkg/logger"
	"github.com/hearthlab/hearth/pkg/models"
	"github.com/hearthlab/hearth/pkg/orchestrator"
)

// DevicesSkill exposes the device registry's control surface: single and
// bulk commands plus scene activation.
type DevicesSkill struct {
	registry *devices.Registry
	logger   logger.Logger
}

var _ orchestrator.Skill = (*DevicesSkill)(nil)

// NewDevicesSkill wires the devices skill.
func NewDevicesSkill(registry *devices.Registry, log logger.Logger) *DevicesSkill {
	return &DevicesSkill{
		registry: registry,
		logger:   log.WithComponent("skill.devices"),
	}
}

func (*DevicesSkill) Name() string { return "devices" }

func (*DevicesSkill) Capabilities() []string {
	return []string{"control", "bulk_control", "activate_scene"}
}

// Execute routes a device action.
func (s *DevicesSkill) Execute(ctx context.Context, action string, args map[string]interface{}) (*models.SkillResult, error) {
	switch action {
	case "control":
		return s.control(ctx, args)
	case "bulk_control":
		return s.bulkControl(ctx, args)
	case "activate_scene":
		return s.activateScene(ctx, args)
	default:
		return nil, fmt.Errorf("%w: devices has no action %q", models.ErrCapabilityNotSupported, action)
	}
}

func (s *DevicesSkill) control(ctx context.Context, args map[string]interface{}) (*models.SkillResult, error) {
	ref := stringArg(args, "device")
	command := stringArg(args, "command")

	device, ok := s.registry.Resolve(ref)
	if !ok {
		return nil, fmt.Errorf("%w: %q", models.ErrDeviceNotFound, ref)
	}

	params, _ := args["params"].(map[string]interface{})

	if err := s.registry.ControlDevice(ctx, device.IP, command, params); err != nil {
		return nil, err
	}

	return &models.SkillResult{
		OK:      true,
		Message: fmt.Sprintf("%s sent to %s", command, device.IP),
	}, nil
}

func (s *DevicesSkill) bulkControl(ctx context.Context, args map[string]interface{}) (*models.SkillResult, error) {
	command := stringArg(args, "command")

	refs := stringSliceArg(args, "devices")
	if len(refs) == 0 {
		return nil, fmt.Errorf("%w: no devices given", models.ErrDeviceNotFound)
	}

	ids := make([]string, 0, len(refs))

	for _, ref := range refs {
		if device, ok := s.registry.Resolve(ref); ok {
			ids = append(ids, device.IP)
		} else {
			// unknown references still show up as per-device failures
			ids = append(ids, ref)
		}
	}

	params, _ := args["params"].(map[string]interface{})
	result := s.registry.BulkControl(ctx, ids, command, params)

	return &models.SkillResult{
		OK:      result.Failed == 0,
		Message: fmt.Sprintf("%d succeeded, %d failed", result.Succeeded, result.Failed),
		Payload: map[string]interface{}{"outcomes": result.Outcomes},
	}, nil
}

func (s *DevicesSkill) activateScene(ctx context.Context, args map[string]interface{}) (*models.SkillResult, error) {
	ref := stringArg(args, "scene")

	scene, ok := s.registry.GetScene(ref)
	if !ok {
		scene, ok = s.registry.SceneByName(ref)
	}

	if !ok {
		return nil, fmt.Errorf("%w: %q", models.ErrSceneNotFound, ref)
	}

	result, err := s.registry.ActivateScene(ctx, scene.ID)
	if err != nil {
		return nil, err
	}

	return &models.SkillResult{
		OK:      result.Failed == 0,
		Message: fmt.Sprintf("scene %q activated: %d succeeded, %d failed", scene.Name, result.Succeeded, result.Failed),
		Payload: map[string]interface{}{"outcomes": result.Outcomes},
	}, nil
}

// stringSliceArg reads a list argument that may arrive as []string or as
// the []interface{} JSON decoding produces.
func stringSliceArg(args map[string]interface{}, key string) []string {
	if args == nil {
		return nil
	}

	switch v := args[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))

		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}

		return out
	}

	return nil
}
