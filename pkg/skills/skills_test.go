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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthlab/hearth/pkg/devices"
	"github.com/hearthlab/hearth/pkg/logger"
	"github.com/hearthlab/hearth/pkg/models"
)

type stubScanner struct {
	result *models.ScanResult
	err    error
	subnet string
}

func (s *stubScanner) ScanNetwork(_ context.Context, subnet string, _ time.Duration) (*models.ScanResult, error) {
	s.subnet = subnet

	return s.result, s.err
}

type stubMonitor struct {
	running  bool
	interval time.Duration
}

func (m *stubMonitor) Start(interval time.Duration) error {
	m.running = true
	m.interval = interval

	return nil
}

func (m *stubMonitor) Stop()         { m.running = false }
func (m *stubMonitor) Running() bool { return m.running }

type acceptAllCommander struct{ sent int }

func (c *acceptAllCommander) Send(context.Context, *models.Device, string, map[string]interface{}) error {
	c.sent++

	return nil
}

func seedRegistry(t *testing.T) (*devices.Registry, *acceptAllCommander) {
	t.Helper()

	commander := &acceptAllCommander{}
	registry := devices.NewRegistry(commander, 0, logger.NewTestLogger())

	registry.ApplyRecord(&models.DiscoveryRecord{
		IP:        "192.168.1.10",
		Hostname:  "living-room-lamp",
		Method:    models.DiscoveryMDNS,
		Timestamp: time.Now(),
	})
	registry.SetClassification("192.168.1.10", models.Classification{Type: models.DeviceTypeLight, Confidence: 85})

	return registry, commander
}

func TestNetworkSkillScan(t *testing.T) {
	scanner := &stubScanner{result: &models.ScanResult{
		ScanID:     "scan-1",
		Subnet:     "192.168.1.0/24",
		HostsFound: 3,
	}}
	registry, _ := seedRegistry(t)
	skill := NewNetworkSkill(scanner, registry, &stubMonitor{}, nil, logger.NewTestLogger())

	result, err := skill.Execute(context.Background(), "scan_network", map[string]interface{}{"subnet": "192.168.1.0/24"})
	require.NoError(t, err)

	assert.True(t, result.OK)
	assert.Equal(t, "192.168.1.0/24", scanner.subnet)
	assert.Equal(t, 3, result.Payload["hostsFound"])
}

func TestNetworkSkillScanInProgress(t *testing.T) {
	scanner := &stubScanner{err: models.ErrScanInProgress}
	registry, _ := seedRegistry(t)
	skill := NewNetworkSkill(scanner, registry, &stubMonitor{}, nil, logger.NewTestLogger())

	_, err := skill.Execute(context.Background(), "scan_network", nil)
	assert.ErrorIs(t, err, models.ErrScanInProgress)
}

func TestNetworkSkillGetDeviceInfo(t *testing.T) {
	registry, _ := seedRegistry(t)
	skill := NewNetworkSkill(&stubScanner{}, registry, &stubMonitor{}, nil, logger.NewTestLogger())

	result, err := skill.Execute(context.Background(), "get_device_info", map[string]interface{}{"ip": "192.168.1.10"})
	require.NoError(t, err)
	assert.True(t, result.OK)

	_, err = skill.Execute(context.Background(), "get_device_info", map[string]interface{}{"ip": "10.0.0.1"})
	assert.ErrorIs(t, err, models.ErrDeviceNotFound)
}

func TestNetworkSkillMonitoringLifecycle(t *testing.T) {
	monitor := &stubMonitor{}
	registry, _ := seedRegistry(t)
	skill := NewNetworkSkill(&stubScanner{}, registry, monitor, nil, logger.NewTestLogger())

	_, err := skill.Execute(context.Background(), "start_monitoring", map[string]interface{}{"interval": "5s"})
	require.NoError(t, err)
	assert.True(t, monitor.running)
	assert.Equal(t, 5*time.Second, monitor.interval)

	_, err = skill.Execute(context.Background(), "stop_monitoring", nil)
	require.NoError(t, err)
	assert.False(t, monitor.running)
}

type fixedClassifier struct {
	result models.Classification
}

func (c *fixedClassifier) Classify(*models.Device) models.Classification {
	return c.result
}

func TestNetworkSkillClassifyDevicesRescores(t *testing.T) {
	registry, _ := seedRegistry(t)

	classifier := &fixedClassifier{result: models.Classification{Type: models.DeviceTypeHub, Confidence: 95}}
	skill := NewNetworkSkill(&stubScanner{}, registry, &stubMonitor{}, classifier, logger.NewTestLogger())

	result, err := skill.Execute(context.Background(), "classify_devices", nil)
	require.NoError(t, err)
	assert.True(t, result.OK)

	device, ok := registry.Get("192.168.1.10")
	require.True(t, ok)
	assert.Equal(t, models.DeviceTypeHub, device.Classification.Type)
	assert.Equal(t, 95, device.Classification.Confidence)
}

func TestNetworkSkillUnknownAction(t *testing.T) {
	registry, _ := seedRegistry(t)
	skill := NewNetworkSkill(&stubScanner{}, registry, &stubMonitor{}, nil, logger.NewTestLogger())

	_, err := skill.Execute(context.Background(), "reboot_everything", nil)
	assert.ErrorIs(t, err, models.ErrCapabilityNotSupported)
}

func TestDevicesSkillControlResolvesByName(t *testing.T) {
	registry, commander := seedRegistry(t)
	skill := NewDevicesSkill(registry, logger.NewTestLogger())

	result, err := skill.Execute(context.Background(), "control", map[string]interface{}{
		"device":  "living room lamp",
		"command": "power_on",
	})
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Equal(t, 1, commander.sent)
}

func TestDevicesSkillControlUnknownDevice(t *testing.T) {
	registry, _ := seedRegistry(t)
	skill := NewDevicesSkill(registry, logger.NewTestLogger())

	_, err := skill.Execute(context.Background(), "control", map[string]interface{}{
		"device":  "garage door",
		"command": "power_on",
	})
	assert.ErrorIs(t, err, models.ErrDeviceNotFound)
}

func TestDevicesSkillBulkControl(t *testing.T) {
	registry, _ := seedRegistry(t)

	registry.ApplyRecord(&models.DiscoveryRecord{IP: "192.168.1.11", Method: models.DiscoveryARP, Timestamp: time.Now()})
	registry.SetClassification("192.168.1.11", models.Classification{Type: models.DeviceTypeLight, Confidence: 60})

	skill := NewDevicesSkill(registry, logger.NewTestLogger())

	result, err := skill.Execute(context.Background(), "bulk_control", map[string]interface{}{
		"devices": []interface{}{"192.168.1.10", "192.168.1.11", "192.168.1.99"},
		"command": "power_off",
	})
	require.NoError(t, err)

	assert.False(t, result.OK)
	assert.Equal(t, "2 succeeded, 1 failed", result.Message)

	outcomes, ok := result.Payload["outcomes"].([]models.ControlOutcome)
	require.True(t, ok)
	assert.Len(t, outcomes, 3)
}

func TestDevicesSkillActivateSceneByName(t *testing.T) {
	registry, commander := seedRegistry(t)

	registry.CreateScene("Movie Night", []models.SceneAction{
		{DeviceID: "192.168.1.10", Command: "power_off"},
	})

	skill := NewDevicesSkill(registry, logger.NewTestLogger())

	result, err := skill.Execute(context.Background(), "activate_scene", map[string]interface{}{"scene": "movie night"})
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Equal(t, 1, commander.sent)

	_, err = skill.Execute(context.Background(), "activate_scene", map[string]interface{}{"scene": "rave"})
	assert.ErrorIs(t, err, models.ErrSceneNotFound)
}

func TestDevicesSkillSceneFailsClosedThroughSkill(t *testing.T) {
	registry, commander := seedRegistry(t)

	registry.CreateScene("broken", []models.SceneAction{
		{DeviceID: "192.168.1.10", Command: "power_off"},
		{DeviceID: "192.168.1.50", Command: "power_off"},
	})

	skill := NewDevicesSkill(registry, logger.NewTestLogger())

	_, err := skill.Execute(context.Background(), "activate_scene", map[string]interface{}{"scene": "broken"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrDeviceNotFound))
	assert.Zero(t, commander.sent)
}
