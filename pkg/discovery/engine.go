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

// Package discovery orchestrates the probe fan-out, merges partial
// observations per IP, and classifies the resulting devices.
package discovery

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hearthlab/hearth/pkg/logger"
	"github.com/hearthlab/hearth/pkg/models"
	"github.com/hearthlab/hearth/pkg/scan"
)

// Store receives merged observations and classification results. The
// device registry satisfies it.
type Store interface {
	ApplyRecord(rec *models.DiscoveryRecord) *models.Device
	SetClassification(ip string, c models.Classification)
	Get(ip string) (*models.Device, bool)
}

// Broadcaster fans scan completion events out to subscribers.
type Broadcaster interface {
	Broadcast(topic string, event *models.Event)
}

// ScanTopic carries scan lifecycle events.
const ScanTopic = "network"

// Engine runs network scans: subnet-wide probes concurrently, then per-IP
// enrichment under a bounded limit, then classification. Only one scan may
// be in flight at a time.
type Engine struct {
	subnetProbes []scan.Probe
	hostProbes   []scan.Probe
	classifier   *Classifier
	store        Store
	events       Broadcaster

	defaultSubnet string
	concurrency   int
	probeWindow   time.Duration
	scanTimeout   time.Duration

	inFlight atomic.Bool
	logger   logger.Logger
}

// Config wires an Engine.
type Config struct {
	SubnetProbes []scan.Probe
	HostProbes   []scan.Probe
	Classifier   *Classifier
	Store        Store
	Events       Broadcaster

	// DefaultSubnet is scanned when a request names no subnet. Empty means
	// auto-detect from the host's interfaces.
	DefaultSubnet string

	Concurrency int
	ProbeWindow time.Duration
	ScanTimeout time.Duration
}

// NewEngine creates a discovery engine.
func NewEngine(cfg Config, log logger.Logger) *Engine {
	if cfg.Classifier == nil {
		cfg.Classifier = NewClassifier(nil)
	}

	if cfg.Concurrency == 0 {
		cfg.Concurrency = 16
	}

	if cfg.ProbeWindow == 0 {
		cfg.ProbeWindow = 3 * time.Second
	}

	if cfg.ScanTimeout == 0 {
		cfg.ScanTimeout = 45 * time.Second
	}

	return &Engine{
		subnetProbes:  cfg.SubnetProbes,
		hostProbes:    cfg.HostProbes,
		classifier:    cfg.Classifier,
		store:         cfg.Store,
		events:        cfg.Events,
		defaultSubnet: cfg.DefaultSubnet,
		concurrency:   cfg.Concurrency,
		probeWindow:   cfg.ProbeWindow,
		scanTimeout:   cfg.ScanTimeout,
		logger:        log.WithComponent("discovery"),
	}
}

// ScanNetwork runs one full scan of the subnet. An empty subnet triggers
// auto-detection with a conservative fallback. A concurrent call while a
// scan is running returns ErrScanInProgress immediately; callers poll
// rather than queue.
func (e *Engine) ScanNetwork(ctx context.Context, subnet string, timeout time.Duration) (*models.ScanResult, error) {
	if !e.inFlight.CompareAndSwap(false, true) {
		return nil, models.ErrScanInProgress
	}
	defer e.inFlight.Store(false)

	if subnet == "" {
		subnet = e.defaultSubnet
	}

	if subnet == "" {
		subnet = scan.DetectLocalSubnet()
	}

	if timeout == 0 {
		timeout = e.scanTimeout
	}

	scanCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	scanID := uuid.New().String()

	e.logger.Info().Str("scan_id", scanID).Str("subnet", subnet).Msg("Network scan started")

	ips, probeErrs := e.runSubnetProbes(scanCtx, subnet)
	e.enrich(scanCtx, ips)
	devices := e.classify(ips)

	result := &models.ScanResult{
		ScanID:     scanID,
		Subnet:     subnet,
		StartedAt:  started,
		Duration:   time.Since(started),
		HostsFound: len(devices),
		Devices:    devices,
	}

	for _, perr := range probeErrs {
		result.ProbeErrors = append(result.ProbeErrors, perr.Error())
	}

	e.logger.Info().
		Str("scan_id", scanID).
		Int("hosts", result.HostsFound).
		Dur("duration", result.Duration).
		Msg("Network scan complete")

	if e.events != nil {
		e.events.Broadcast(ScanTopic, models.NewEvent(models.EventNetworkScanComplete, map[string]interface{}{
			"scanId":     scanID,
			"subnet":     subnet,
			"hostsFound": result.HostsFound,
			"duration":   result.Duration.String(),
		}))
	}

	return result, nil
}

// Scanning reports whether a scan is currently in flight.
func (e *Engine) Scanning() bool {
	return e.inFlight.Load()
}

// runSubnetProbes fans the subnet-wide probes out concurrently and merges
// every record into the store. Returns the distinct IPs observed plus the
// probes that failed; a broken probe degrades the scan, never aborts it.
func (e *Engine) runSubnetProbes(ctx context.Context, subnet string) ([]string, []error) {
	target := scan.Target{Subnet: subnet, Window: e.probeWindow}

	var (
		mu       sync.Mutex
		seen     = make(map[string]bool)
		failures []error
		wg       sync.WaitGroup
	)

	for _, probe := range e.subnetProbes {
		wg.Add(1)

		go func(probe scan.Probe) {
			defer wg.Done()

			records, err := probe.Run(ctx, target)
			if err != nil {
				// fail soft
				wrapped := fmt.Errorf("%w: %s: %v", models.ErrProbeFailure, probe.Name(), err)
				e.logger.Warn().Err(wrapped).Msg("Probe failed")

				mu.Lock()
				failures = append(failures, wrapped)
				mu.Unlock()

				return
			}

			mu.Lock()
			defer mu.Unlock()

			for i := range records {
				e.store.ApplyRecord(&records[i])
				seen[records[i].IP] = true
			}
		}(probe)
	}

	wg.Wait()

	ips := make([]string, 0, len(seen))
	for ip := range seen {
		ips = append(ips, ip)
	}

	sort.Strings(ips)

	return ips, failures
}

// enrich runs the per-host probes for every accumulated IP under a bounded
// parallelism limit. Failures are isolated per host and per probe.
func (e *Engine) enrich(ctx context.Context, ips []string) {
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.concurrency)

	for _, ip := range ips {
		ip := ip
		group.Go(func() error {
			target := scan.Target{Hosts: []string{ip}, Window: e.probeWindow}

			for _, probe := range e.hostProbes {
				records, err := probe.Run(groupCtx, target)
				if err != nil {
					e.logger.Debug().Err(err).Str("probe", probe.Name()).Str("ip", ip).Msg("Enrichment probe failed")
					continue
				}

				for i := range records {
					e.store.ApplyRecord(&records[i])
				}
			}

			return nil
		})
	}

	_ = group.Wait()
}

// classify recomputes every scanned device's classification from its full
// accumulated evidence.
func (e *Engine) classify(ips []string) []*models.Device {
	devices := make([]*models.Device, 0, len(ips))

	for _, ip := range ips {
		device, ok := e.store.Get(ip)
		if !ok {
			continue
		}

		c := e.classifier.Classify(device)
		e.store.SetClassification(ip, c)

		// re-read so the returned snapshot carries the classification
		if updated, ok := e.store.Get(ip); ok {
			devices = append(devices, updated)
		}
	}

	return devices
}
