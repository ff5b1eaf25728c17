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

// Package devices keeps the catalog of known devices, their inferred
// capabilities, scenes, and automation rules.
package devices

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hearthlab/hearth/pkg/discovery"
	"github.com/hearthlab/hearth/pkg/logger"
	"github.com/hearthlab/hearth/pkg/models"
)

var _ discovery.Store = (*Registry)(nil)

// Commander delivers a command to a device. Implementations talk to the
// actual transport (HTTP, vendor API); tests use fakes.
type Commander interface {
	Send(ctx context.Context, device *models.Device, command string, params map[string]interface{}) error
}

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	Type   models.DeviceType
	Vendor string
	IP     string
}

// Registry is the synchronized device catalog. Devices are keyed by IP,
// created on first observation, and marked stale (never deleted) after the
// configured silence window.
type Registry struct {
	mu           sync.RWMutex
	devices      map[string]*models.Device
	capabilities map[string]map[models.Capability]bool
	scenes       map[string]*models.Scene
	rules        map[string]*models.AutomationRule

	commander  Commander
	staleAfter time.Duration
	cancel     context.CancelFunc
	done       chan struct{}
	logger     logger.Logger
}

const defaultStaleAfter = 10 * time.Minute

// NewRegistry creates a device registry. A nil commander leaves control
// operations permission-checked but inert.
func NewRegistry(commander Commander, staleAfter time.Duration, log logger.Logger) *Registry {
	if staleAfter == 0 {
		staleAfter = defaultStaleAfter
	}

	if commander == nil {
		commander = noopCommander{}
	}

	return &Registry{
		devices:      make(map[string]*models.Device),
		capabilities: make(map[string]map[models.Capability]bool),
		scenes:       make(map[string]*models.Scene),
		rules:        make(map[string]*models.AutomationRule),
		commander:    commander,
		staleAfter:   staleAfter,
		logger:       log.WithComponent("devices"),
	}
}

type noopCommander struct{}

func (noopCommander) Send(context.Context, *models.Device, string, map[string]interface{}) error {
	return nil
}

// ApplyRecord merges a probe observation into the catalog, creating the
// device on first sight.
func (r *Registry) ApplyRecord(rec *models.DiscoveryRecord) *models.Device {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, ok := r.devices[rec.IP]
	if !ok {
		device = models.NewDevice(rec.IP)
		r.devices[rec.IP] = device

		r.logger.Debug().Str("ip", rec.IP).Str("method", string(rec.Method)).Msg("New device observed")
	}

	device.Apply(rec)

	return device
}

// SetClassification replaces the device's classification with a freshly
// computed one, then derives the capability set. Capabilities are inferred
// once per device and kept on re-classification.
func (r *Registry) SetClassification(ip string, c models.Classification) {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, ok := r.devices[ip]
	if !ok {
		return
	}

	device.Classification = c

	if _, inferred := r.capabilities[ip]; !inferred {
		r.capabilities[ip] = inferCapabilities(device)
	}
}

// Get returns the device for an IP.
func (r *Registry) Get(ip string) (*models.Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	device, ok := r.devices[ip]

	return device, ok
}

// List returns devices matching the filter, ordered by IP.
func (r *Registry) List(filter Filter) []*models.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Device, 0, len(r.devices))

	for _, device := range r.devices {
		if filter.IP != "" && device.IP != filter.IP {
			continue
		}

		if filter.Type != "" && device.Classification.Type != filter.Type {
			continue
		}

		if filter.Vendor != "" && !strings.Contains(strings.ToLower(device.Vendor), strings.ToLower(filter.Vendor)) {
			continue
		}

		out = append(out, device)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].IP < out[j].IP })

	return out
}

// Resolve maps a spoken device reference to a catalog entry: an exact IP
// first, then a hostname substring match. Hostnames and references are
// normalized so "living room lamp" finds "living-room-lamp".
func (r *Registry) Resolve(nameOrIP string) (*models.Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if device, ok := r.devices[nameOrIP]; ok {
		return device, true
	}

	needle := normalizeName(nameOrIP)
	if needle == "" {
		return nil, false
	}

	for _, device := range r.devices {
		if device.Hostname != "" && strings.Contains(normalizeName(device.Hostname), needle) {
			return device, true
		}
	}

	return nil, false
}

// normalizeName lowercases and strips separators so spoken references match
// mDNS-style hostnames.
func normalizeName(s string) string {
	var b strings.Builder

	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if r == ' ' || r == '-' || r == '_' || r == '.' {
			continue
		}

		b.WriteRune(r)
	}

	return b.String()
}

// Count returns the number of known devices.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.devices)
}

// Capabilities returns the inferred capability set for a device.
func (r *Registry) Capabilities(ip string) []models.Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()

	caps := r.capabilities[ip]
	out := make([]models.Capability, 0, len(caps))

	for c := range caps {
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

// MarkStale flags every device silent for longer than the configured window.
// Stale devices stay in the catalog; they are never deleted.
func (r *Registry) MarkStale(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	marked := 0

	for _, device := range r.devices {
		if device.Stale || device.LastSeen.IsZero() {
			continue
		}

		if now.Sub(device.LastSeen) > r.staleAfter {
			device.Stale = true
			marked++

			r.logger.Debug().Str("ip", device.IP).Time("last_seen", device.LastSeen).Msg("Device marked stale")
		}
	}

	return marked
}

// Start runs the periodic stale sweep until Stop is called.
func (r *Registry) Start(ctx context.Context, interval time.Duration) {
	sweepCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	go func() {
		defer close(r.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				r.MarkStale(time.Now())
			}
		}
	}()
}

// Stop halts the stale sweep.
func (r *Registry) Stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
}

// inferCapabilities derives the command set once, from classification type
// plus open ports. Callers hold the registry lock.
func inferCapabilities(device *models.Device) map[models.Capability]bool {
	caps := map[models.Capability]bool{models.CapStatus: true}

	switch device.Classification.Type {
	case models.DeviceTypeLight, models.DeviceTypeHub:
		caps[models.CapPowerOn] = true
		caps[models.CapPowerOff] = true
		caps[models.CapBrightness] = true
		caps[models.CapColor] = true
	case models.DeviceTypeSpeaker:
		caps[models.CapPowerOn] = true
		caps[models.CapPowerOff] = true
		caps[models.CapVolume] = true
		caps[models.CapPlayback] = true
	case models.DeviceTypeTV:
		caps[models.CapPowerOn] = true
		caps[models.CapPowerOff] = true
		caps[models.CapVolume] = true
		caps[models.CapPlayback] = true
	case models.DeviceTypeCamera:
		caps[models.CapStream] = true
	case models.DeviceTypeThermostat:
		caps[models.CapSetTemp] = true
	case models.DeviceTypePrinter:
		caps[models.CapPrint] = true
	case models.DeviceTypeComputer, models.DeviceTypeNAS:
		caps[models.CapWake] = true
		caps[models.CapPowerOff] = true
	}

	if device.HasPort(554) {
		caps[models.CapStream] = true
	}

	if device.HasPort(9100) || device.HasPort(631) {
		caps[models.CapPrint] = true
	}

	return caps
}
