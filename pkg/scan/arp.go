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
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/hearthlab/hearth/pkg/logger"
	"github.com/hearthlab/hearth/pkg/models"
)

// ARPProbe discovers link-local hosts through the OS neighbor table. It
// first primes the table by touching every host in the subnet with a cheap
// UDP write, then reads back the entries the kernel resolved.
type ARPProbe struct {
	concurrency  int
	neighborPath string
	logger       logger.Logger
}

var _ Probe = (*ARPProbe)(nil)

const defaultNeighborPath = "/proc/net/arp"

func NewARPProbe(concurrency int, log logger.Logger) *ARPProbe {
	if concurrency == 0 {
		concurrency = 64
	}

	return &ARPProbe{
		concurrency:  concurrency,
		neighborPath: defaultNeighborPath,
		logger:       log.WithComponent("arp"),
	}
}

func (*ARPProbe) Name() string { return "arp" }

func (p *ARPProbe) Run(ctx context.Context, target Target) ([]models.DiscoveryRecord, error) {
	if target.Subnet == "" {
		return nil, ErrEmptyTarget
	}

	hosts, err := HostsInSubnet(target.Subnet)
	if err != nil {
		return nil, err
	}

	p.prime(ctx, hosts)

	entries, err := p.neighborTable()
	if err != nil {
		return nil, err
	}

	_, ipnet, err := net.ParseCIDR(target.Subnet)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	records := make([]models.DiscoveryRecord, 0, len(entries))

	for ip, mac := range entries {
		if !ipnet.Contains(net.ParseIP(ip)) {
			continue
		}

		records = append(records, models.DiscoveryRecord{
			IP:        ip,
			MAC:       mac,
			Vendor:    VendorForMAC(mac),
			Method:    models.DiscoveryARP,
			Timestamp: now,
		})
	}

	p.logger.Debug().Int("hosts", len(records)).Str("subnet", target.Subnet).Msg("Neighbor scan complete")

	return records, nil
}

// prime nudges each host so the kernel issues an ARP request for it. The
// writes are fire-and-forget; only the neighbor-table side effect matters.
func (p *ARPProbe) prime(ctx context.Context, hosts []string) {
	forEachHost(ctx, hosts, p.concurrency, func(_ context.Context, host string) {
		conn, err := net.DialTimeout("udp4", net.JoinHostPort(host, "9"), 50*time.Millisecond)
		if err != nil {
			return
		}

		_, _ = conn.Write([]byte{0})
		_ = conn.Close()
	})

	// give the kernel a moment to collect replies
	select {
	case <-ctx.Done():
	case <-time.After(500 * time.Millisecond):
	}
}

// neighborTable parses /proc/net/arp style output: one header line, then
// "IP HWtype Flags HWaddress Mask Device" rows.
func (p *ARPProbe) neighborTable() (map[string]string, error) {
	f, err := os.Open(p.neighborPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoNeighborSource, err)
	}
	defer f.Close()

	entries := make(map[string]string)
	scanner := bufio.NewScanner(f)

	first := true
	for scanner.Scan() {
		if first {
			first = false
			continue
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			continue
		}

		ip, mac := fields[0], strings.ToLower(fields[3])
		if mac == "00:00:00:00:00:00" || net.ParseIP(ip) == nil {
			continue
		}

		if _, err := net.ParseMAC(mac); err != nil {
			continue
		}

		entries[ip] = mac
	}

	return entries, scanner.Err()
}
