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
	"strings"
	"time"

	"github.com/hearthlab/hearth/pkg/logger"
	"github.com/hearthlab/hearth/pkg/models"
)

// RDNSProbe resolves hostnames through the local resolver, falling back to
// an mDNS reverse lookup for devices the router's DNS does not know.
type RDNSProbe struct {
	timeout  time.Duration
	resolver *net.Resolver
	logger   logger.Logger
}

var _ Probe = (*RDNSProbe)(nil)

func NewRDNSProbe(timeout time.Duration, log logger.Logger) *RDNSProbe {
	if timeout == 0 {
		timeout = time.Second
	}

	return &RDNSProbe{
		timeout:  timeout,
		resolver: net.DefaultResolver,
		logger:   log.WithComponent("rdns"),
	}
}

func (*RDNSProbe) Name() string { return "rdns" }

func (p *RDNSProbe) Run(ctx context.Context, target Target) ([]models.DiscoveryRecord, error) {
	if len(target.Hosts) == 0 {
		return nil, ErrEmptyTarget
	}

	now := time.Now()

	var records []models.DiscoveryRecord

	for _, host := range target.Hosts {
		if ctx.Err() != nil {
			break
		}

		hostname := p.lookup(ctx, host)
		if hostname == "" {
			continue
		}

		records = append(records, models.DiscoveryRecord{
			IP:        host,
			Hostname:  hostname,
			Method:    models.DiscoveryRDNS,
			Timestamp: now,
		})
	}

	return records, nil
}

func (p *RDNSProbe) lookup(ctx context.Context, ip string) string {
	lookupCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	names, err := p.resolver.LookupAddr(lookupCtx, ip)
	if err == nil && len(names) > 0 {
		return strings.TrimSuffix(names[0], ".")
	}

	if name, err := ReverseLookup(ip, p.timeout); err == nil && name != "" {
		return name
	}

	return ""
}
