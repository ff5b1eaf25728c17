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
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/hearthlab/hearth/pkg/logger"
	"github.com/hearthlab/hearth/pkg/models"
)

// SNMPProbe enriches hosts that answer on 161 with sysName and sysDescr.
// Routers, NAS boxes, and printers commonly expose these read-only against
// the public community.
type SNMPProbe struct {
	community string
	timeout   time.Duration
	logger    logger.Logger
}

var _ Probe = (*SNMPProbe)(nil)

const (
	oidSysDescr = "1.3.6.1.2.1.1.1.0"
	oidSysName  = "1.3.6.1.2.1.1.5.0"
)

func NewSNMPProbe(community string, timeout time.Duration, log logger.Logger) *SNMPProbe {
	if community == "" {
		community = "public"
	}

	if timeout == 0 {
		timeout = time.Second
	}

	return &SNMPProbe{
		community: community,
		timeout:   timeout,
		logger:    log.WithComponent("snmp"),
	}
}

func (*SNMPProbe) Name() string { return "snmp" }

func (p *SNMPProbe) Run(ctx context.Context, target Target) ([]models.DiscoveryRecord, error) {
	if len(target.Hosts) == 0 {
		return nil, ErrEmptyTarget
	}

	now := time.Now()

	var records []models.DiscoveryRecord

	for _, host := range target.Hosts {
		if ctx.Err() != nil {
			break
		}

		if rec, ok := p.query(host, now); ok {
			records = append(records, rec)
		}
	}

	return records, nil
}

func (p *SNMPProbe) query(host string, now time.Time) (models.DiscoveryRecord, bool) {
	client := &gosnmp.GoSNMP{
		Target:    host,
		Port:      161,
		Community: p.community,
		Version:   gosnmp.Version2c,
		Timeout:   p.timeout,
		Retries:   0,
	}

	if err := client.Connect(); err != nil {
		return models.DiscoveryRecord{}, false
	}
	defer client.Conn.Close()

	result, err := client.Get([]string{oidSysName, oidSysDescr})
	if err != nil {
		return models.DiscoveryRecord{}, false
	}

	rec := models.DiscoveryRecord{
		IP:        host,
		Method:    models.DiscoverySNMP,
		Timestamp: now,
	}

	for _, variable := range result.Variables {
		value, ok := variable.Value.([]byte)
		if !ok {
			continue
		}

		switch variable.Name {
		case "." + oidSysName:
			rec.Hostname = string(value)
		case "." + oidSysDescr:
			rec.Vendor = firstDescrToken(string(value))
		}
	}

	if rec.Hostname == "" && rec.Vendor == "" {
		return models.DiscoveryRecord{}, false
	}

	p.logger.Debug().Str("host", host).Str("sys_name", rec.Hostname).Msg("SNMP answered")

	return rec, true
}

// firstDescrToken trims a sysDescr like "Synology DS920+ DSM 7.2" down to
// its leading vendor token.
func firstDescrToken(descr string) string {
	fields := strings.Fields(descr)
	if len(fields) == 0 {
		return ""
	}

	return fields[0]
}
