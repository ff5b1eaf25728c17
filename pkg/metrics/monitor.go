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

// Package metrics samples host metrics on a timer and broadcasts them to
// subscribed sessions.
package metrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/hearthlab/hearth/pkg/logger"
	"github.com/hearthlab/hearth/pkg/models"
)

// Topic carries system metric events.
const Topic = "metrics"

var errAlreadyRunning = errors.New("monitoring already running")

// Broadcaster fans metric samples out to subscribers.
type Broadcaster interface {
	Broadcast(topic string, event *models.Event)
}

// Sample is one host metrics snapshot.
type Sample struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryUsed    uint64  `json:"memory_used"`
	MemoryTotal   uint64  `json:"memory_total"`
	DiskPercent   float64 `json:"disk_percent"`
	Load1         float64 `json:"load1"`
	UptimeSeconds uint64  `json:"uptime_seconds"`
}

// Monitor periodically samples the host and broadcasts system_metrics
// events. Start and Stop may be called repeatedly; a second Start while
// running is an error.
type Monitor struct {
	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	events  Broadcaster
	sampler func(ctx context.Context) (*Sample, error)
	logger  logger.Logger
}

// NewMonitor creates a stopped monitor.
func NewMonitor(events Broadcaster, log logger.Logger) *Monitor {
	return &Monitor{
		events:  events,
		sampler: collectSample,
		logger:  log.WithComponent("metrics"),
	}
}

// Start begins sampling at the given interval.
func (m *Monitor) Start(interval time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		return errAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})

	go m.run(ctx, interval, m.done)

	m.logger.Info().Dur("interval", interval).Msg("System monitoring started")

	return nil
}

// Stop halts sampling. Stopping a stopped monitor is a no-op.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	done := m.done
	m.cancel = nil
	m.done = nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done

	m.logger.Info().Msg("System monitoring stopped")
}

// Running reports whether the sampler loop is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.cancel != nil
}

func (m *Monitor) run(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sample, err := m.sampler(ctx)
			if err != nil {
				m.logger.Warn().Err(err).Msg("Metrics collection failed")
				continue
			}

			m.events.Broadcast(Topic, models.NewEvent(models.EventSystemMetrics, map[string]interface{}{
				"cpuPercent":    sample.CPUPercent,
				"memoryPercent": sample.MemoryPercent,
				"memoryUsed":    sample.MemoryUsed,
				"memoryTotal":   sample.MemoryTotal,
				"diskPercent":   sample.DiskPercent,
				"load1":         sample.Load1,
				"uptimeSeconds": sample.UptimeSeconds,
			}))
		}
	}
}

// collectSample gathers one snapshot. Individual collector failures zero
// their fields rather than failing the sample.
func collectSample(ctx context.Context) (*Sample, error) {
	sample := &Sample{}

	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		sample.CPUPercent = percents[0]
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		sample.MemoryPercent = vm.UsedPercent
		sample.MemoryUsed = vm.Used
		sample.MemoryTotal = vm.Total
	}

	if usage, err := disk.UsageWithContext(ctx, "/"); err == nil {
		sample.DiskPercent = usage.UsedPercent
	}

	if avg, err := load.AvgWithContext(ctx); err == nil {
		sample.Load1 = avg.Load1
	}

	if uptime, err := host.UptimeWithContext(ctx); err == nil {
		sample.UptimeSeconds = uptime
	}

	return sample, nil
}
