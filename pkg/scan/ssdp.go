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

// SSDPProbe sends one multicast M-SEARCH and parses unicast responses for a
// fixed window. SERVER and LOCATION headers become the device type hint and
// description URL.
type SSDPProbe struct {
	window time.Duration
	logger logger.Logger
}

var _ Probe = (*SSDPProbe)(nil)

var ssdpGroup = &net.UDPAddr{IP: net.IPv4(239, 255, 255, 250), Port: 1900}

const ssdpReadBuffer = 8192

func NewSSDPProbe(window time.Duration, log logger.Logger) *SSDPProbe {
	if window == 0 {
		window = 3 * time.Second
	}

	return &SSDPProbe{window: window, logger: log.WithComponent("ssdp")}
}

func (*SSDPProbe) Name() string { return "ssdp" }

func (p *SSDPProbe) Run(ctx context.Context, target Target) ([]models.DiscoveryRecord, error) {
	window := target.Window
	if window == 0 {
		window = p.window
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	search := strings.Join([]string{
		"M-SEARCH * HTTP/1.1",
		"HOST: 239.255.255.250:1900",
		`MAN: "ssdp:discover"`,
		"MX: 2",
		"ST: ssdp:all",
		"", "",
	}, "\r\n")

	if _, err := conn.WriteToUDP([]byte(search), ssdpGroup); err != nil {
		return nil, err
	}

	_ = conn.SetReadDeadline(time.Now().Add(window))

	seen := make(map[string]*models.DiscoveryRecord)
	buf := make([]byte, ssdpReadBuffer)

	for ctx.Err() == nil {
		n, raddr, err := conn.ReadFromUDP(buf)
		if err != nil {
			break
		}

		ip := raddr.IP.String()
		headers := parseSSDPHeaders(string(buf[:n]))

		rec, ok := seen[ip]
		if !ok {
			rec = &models.DiscoveryRecord{
				IP:        ip,
				Method:    models.DiscoverySSDP,
				Timestamp: time.Now(),
			}
			seen[ip] = rec
		}

		// keep the most complete response per IP
		if rec.Vendor == "" {
			rec.Vendor = headers["server"]
		}

		if rec.Location == "" {
			rec.Location = headers["location"]
		}

		if rec.DeviceType == "" {
			rec.DeviceType = deviceTypeFromST(headers["st"])
		}
	}

	records := make([]models.DiscoveryRecord, 0, len(seen))
	for _, rec := range seen {
		records = append(records, *rec)
	}

	p.logger.Debug().Int("responders", len(records)).Msg("SSDP collection window closed")

	return records, nil
}

// parseSSDPHeaders lowercases header names from an HTTP-over-UDP response.
func parseSSDPHeaders(raw string) map[string]string {
	headers := make(map[string]string)

	for _, line := range strings.Split(raw, "\r\n") {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}

		headers[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(value)
	}

	return headers
}

// deviceTypeFromST extracts the device type from a search-target URN like
// "urn:schemas-upnp-org:device:MediaRenderer:1".
func deviceTypeFromST(st string) string {
	if st == "" || st == "ssdp:all" {
		return ""
	}

	parts := strings.Split(st, ":")
	for i, part := range parts {
		if part == "device" && i+1 < len(parts) {
			return parts[i+1]
		}
	}

	if strings.HasPrefix(st, "upnp:") {
		return strings.TrimPrefix(st, "upnp:")
	}

	return st
}
