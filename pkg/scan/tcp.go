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

package scan

import (
	"context"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/hearthlab/hearth/pkg/logger"
	"github.com/hearthlab/hearth/pkg/models"
)

// DefaultProbePorts is the candidate port list for home-network devices:
// remote access, web UIs, media, printing, IoT control planes.
var DefaultProbePorts = []int{
	22, 23, 53, 80, 139, 443, 445, 548, 554,
	1400, 1883, 3389, 5000, 5001, 5353, 8008, 8009,
	8080, 8123, 8443, 9100, 9999, 32400, 51826,
}

// TCPProbe attempts a bounded connect against each candidate port of each
// host, reporting the subset that accepted.
type TCPProbe struct {
	ports       []int
	timeout     time.Duration
	concurrency int
	logger      logger.Logger
}

var _ Probe = (*TCPProbe)(nil)

func NewTCPProbe(ports []int, timeout time.Duration, concurrency int, log logger.Logger) *TCPProbe {
	if len(ports) == 0 {
		ports = DefaultProbePorts
	}

	if timeout == 0 {
		timeout = 400 * time.Millisecond
	}

	if concurrency == 0 {
		concurrency = 128
	}

	return &TCPProbe{
		ports:       ports,
		timeout:     timeout,
		concurrency: concurrency,
		logger:      log.WithComponent("tcp"),
	}
}

func (*TCPProbe) Name() string { return "tcp" }

func (p *TCPProbe) Run(ctx context.Context, target Target) ([]models.DiscoveryRecord, error) {
	if len(target.Hosts) == 0 {
		return nil, ErrEmptyTarget
	}

	type unit struct {
		host string
		port int
	}

	units := make([]unit, 0, len(target.Hosts)*len(p.ports))

	for _, host := range target.Hosts {
		for _, port := range p.ports {
			units = append(units, unit{host, port})
		}
	}

	var (
		mu   sync.Mutex
		open = make(map[string][]int)
	)

	workCh := make(chan unit, p.concurrency)

	var wg sync.WaitGroup

	for i := 0; i < p.concurrency; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for u := range workCh {
				if !p.checkPort(ctx, u.host, u.port) {
					continue
				}

				mu.Lock()
				open[u.host] = append(open[u.host], u.port)
				mu.Unlock()
			}
		}()
	}

	for _, u := range units {
		select {
		case <-ctx.Done():
			close(workCh)
			wg.Wait()

			return p.collect(open), ctx.Err()
		case workCh <- u:
		}
	}

	close(workCh)
	wg.Wait()

	return p.collect(open), nil
}

func (p *TCPProbe) checkPort(ctx context.Context, host string, port int) bool {
	dialer := net.Dialer{Timeout: p.timeout}

	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return false
	}

	_ = conn.Close()

	return true
}

func (p *TCPProbe) collect(open map[string][]int) []models.DiscoveryRecord {
	now := time.Now()
	records := make([]models.DiscoveryRecord, 0, len(open))

	for host, ports := range open {
		sort.Ints(ports)

		records = append(records, models.DiscoveryRecord{
			IP:        host,
			OpenPorts: ports,
			Method:    models.DiscoveryTCP,
			Timestamp: now,
		})
	}

	return records
}
