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

// Package skills provides the built-in skills backing the hub's network and
// device command surface. External integrations register through the same
// interface.
package skills

import (
	"context"
	"fmt"
	"time"

	"github.com/hearthlab/hearth/pkg/devices"
	"github.com/hearthlab/hearth/pkg/logger"
	"github.com/hearthlab/hearth/pkg/models"
	"github.com/hearthlab/hearth/pkg/orchestrator"
)

// Scanner runs on-demand network scans. The discovery engine satisfies it.
type Scanner interface {
	ScanNetwork(ctx context.Context, subnet string, timeout time.Duration) (*models.ScanResult, error)
}

// MetricsMonitor is the periodic system sampler behind start_monitoring.
type MetricsMonitor interface {
	Start(interval time.Duration) error
	Stop()
	Running() bool
}

// Classifier rescoring devices from their accumulated evidence.
type Classifier interface {
	Classify(device *models.Device) models.Classification
}

// NetworkSkill exposes discovery and monitoring as orchestrator actions.
type NetworkSkill struct {
	scanner    Scanner
	registry   *devices.Registry
	monitor    MetricsMonitor
	classifier Classifier
	logger     logger.Logger
}

var _ orchestrator.Skill = (*NetworkSkill)(nil)

// NewNetworkSkill wires the network skill.
func NewNetworkSkill(scanner Scanner, registry *devices.Registry, monitor MetricsMonitor, classifier Classifier, log logger.Logger) *NetworkSkill {
	return &NetworkSkill{
		scanner:    scanner,
		registry:   registry,
		monitor:    monitor,
		classifier: classifier,
		logger:     log.WithComponent("skill.network"),
	}
}

func (*NetworkSkill) Name() string { return "network" }

func (*NetworkSkill) Capabilities() []string {
	return []string{
		"scan_network",
		"get_devices",
		"get_device_info",
		"classify_devices",
		"start_monitoring",
		"stop_monitoring",
	}
}

// Execute routes a network action.
func (s *NetworkSkill) Execute(ctx context.Context, action string, args map[string]interface{}) (*models.SkillResult, error) {
	switch action {
	case "scan_network":
		return s.scanNetwork(ctx, args)
	case "get_devices":
		return s.getDevices(args)
	case "get_device_info":
		return s.getDeviceInfo(args)
	case "classify_devices":
		return s.classifyDevices()
	case "start_monitoring":
		return s.startMonitoring(args)
	case "stop_monitoring":
		s.monitor.Stop()

		return &models.SkillResult{OK: true, Message: "monitoring stopped"}, nil
	default:
		return nil, fmt.Errorf("%w: network has no action %q", models.ErrCapabilityNotSupported, action)
	}
}

func (s *NetworkSkill) scanNetwork(ctx context.Context, args map[string]interface{}) (*models.SkillResult, error) {
	subnet := stringArg(args, "subnet")
	timeout := durationArg(args, "timeout")

	result, err := s.scanner.ScanNetwork(ctx, subnet, timeout)
	if err != nil {
		return nil, err
	}

	return &models.SkillResult{
		OK:      true,
		Message: fmt.Sprintf("found %d devices on %s", result.HostsFound, result.Subnet),
		Payload: map[string]interface{}{
			"scanId":     result.ScanID,
			"subnet":     result.Subnet,
			"hostsFound": result.HostsFound,
			"duration":   result.Duration.String(),
			"devices":    result.Devices,
		},
	}, nil
}

func (s *NetworkSkill) getDevices(args map[string]interface{}) (*models.SkillResult, error) {
	filter := devices.Filter{
		Type:   models.DeviceType(stringArg(args, "type")),
		Vendor: stringArg(args, "vendor"),
		IP:     stringArg(args, "ip"),
	}

	list := s.registry.List(filter)

	return &models.SkillResult{
		OK:      true,
		Message: fmt.Sprintf("%d devices", len(list)),
		Payload: map[string]interface{}{"devices": list},
	}, nil
}

func (s *NetworkSkill) getDeviceInfo(args map[string]interface{}) (*models.SkillResult, error) {
	ip := stringArg(args, "ip")

	device, ok := s.registry.Get(ip)
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrDeviceNotFound, ip)
	}

	return &models.SkillResult{
		OK: true,
		Payload: map[string]interface{}{
			"device":       device,
			"capabilities": s.registry.Capabilities(ip),
		},
	}, nil
}

// classifyDevices rescores every known device from its full accumulated
// evidence, replacing prior classifications.
func (s *NetworkSkill) classifyDevices() (*models.SkillResult, error) {
	list := s.registry.List(devices.Filter{})

	byType := make(map[string]int)

	for _, device := range list {
		if s.classifier != nil {
			s.registry.SetClassification(device.IP, s.classifier.Classify(device))
		}

		byType[string(device.Classification.Type)]++
	}

	return &models.SkillResult{
		OK:      true,
		Message: fmt.Sprintf("%d devices classified", len(list)),
		Payload: map[string]interface{}{"byType": byType, "devices": list},
	}, nil
}

func (s *NetworkSkill) startMonitoring(args map[string]interface{}) (*models.SkillResult, error) {
	interval := durationArg(args, "interval")
	if interval == 0 {
		interval = 10 * time.Second
	}

	if err := s.monitor.Start(interval); err != nil {
		return nil, err
	}

	return &models.SkillResult{
		OK:      true,
		Message: fmt.Sprintf("monitoring every %s", interval),
	}, nil
}

// stringArg pulls an optional string argument.
func stringArg(args map[string]interface{}, key string) string {
	if args == nil {
		return ""
	}

	if v, ok := args[key].(string); ok {
		return v
	}

	return ""
}

// durationArg accepts a Go duration string or a number of seconds, matching
// what loosely typed clients send.
func durationArg(args map[string]interface{}, key string) time.Duration {
	if args == nil {
		return 0
	}

	switch v := args[key].(type) {
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	case float64:
		return time.Duration(v * float64(time.Second))
	case int:
		return time.Duration(v) * time.Second
	}

	return 0
}
