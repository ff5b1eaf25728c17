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

// Package scan implements the independent network discovery probes. Each
// probe fails soft: an errored probe contributes nothing to a scan but never
// aborts it.
package scan

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/hearthlab/hearth/pkg/models"
)

// Target describes what one probe run should cover. Subnet-wide probes use
// Subnet; per-host enrichment probes use Hosts.
type Target struct {
	Subnet string
	Hosts  []string
	Window time.Duration
}

// Probe is one independent discovery technique.
type Probe interface {
	Name() string
	Run(ctx context.Context, target Target) ([]models.DiscoveryRecord, error)
}

// HostsInSubnet expands a CIDR into its usable host addresses, skipping the
// network and broadcast addresses. Only IPv4 subnets are supported.
func HostsInSubnet(subnet string) ([]string, error) {
	_, ipnet, err := net.ParseCIDR(subnet)
	if err != nil {
		return nil, err
	}

	ones, bits := ipnet.Mask.Size()
	if bits != 32 {
		return nil, ErrNotIPv4Subnet
	}

	// /31 and /32 have no network/broadcast pair to skip
	if ones >= 31 {
		return []string{ipnet.IP.String()}, nil
	}

	var hosts []string

	for ip := ipnet.IP.Mask(ipnet.Mask); ipnet.Contains(ip); incIP(ip) {
		if isNetworkOrBroadcast(ip, ipnet) {
			continue
		}

		hosts = append(hosts, ip.String())
	}

	return hosts, nil
}

func incIP(ip net.IP) {
	for i := len(ip) - 1; i >= 0; i-- {
		ip[i]++
		if ip[i] > 0 {
			break
		}
	}
}

func isNetworkOrBroadcast(ip net.IP, ipnet *net.IPNet) bool {
	v4 := ip.To4()
	if v4 == nil {
		return false
	}

	network := ipnet.IP.Mask(ipnet.Mask).To4()

	broadcast := make(net.IP, 4)
	for i := 0; i < 4; i++ {
		broadcast[i] = network[i] | ^ipnet.Mask[i]
	}

	return v4.Equal(network) || v4.Equal(broadcast)
}

// forEachHost fans work out over hosts with bounded parallelism.
func forEachHost(ctx context.Context, hosts []string, concurrency int, fn func(ctx context.Context, host string)) {
	if concurrency <= 0 {
		concurrency = 32
	}

	workCh := make(chan string, concurrency)

	var wg sync.WaitGroup

	for i := 0; i < concurrency; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for host := range workCh {
				fn(ctx, host)
			}
		}()
	}

	for _, host := range hosts {
		select {
		case <-ctx.Done():
			close(workCh)
			wg.Wait()

			return
		case workCh <- host:
		}
	}

	close(workCh)
	wg.Wait()
}

// DetectLocalSubnet derives the local /24 from the interface holding the
// default route, falling back to a conservative default when detection
// fails.
func DetectLocalSubnet() string {
	const fallback = "192.168.1.0/24"

	conn, err := net.Dial("udp4", "8.8.8.8:80")
	if err != nil {
		return fallback
	}
	defer conn.Close()

	local, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || local.IP.To4() == nil {
		return fallback
	}

	masked := local.IP.Mask(net.CIDRMask(24, 32))

	return (&net.IPNet{IP: masked, Mask: net.CIDRMask(24, 32)}).String()
}
