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
	"fmt"
	"net"
	"strings"
	"time"

	"golang.org/x/net/dns/dnsmessage"

	"github.com/hearthlab/hearth/pkg/logger"
	"github.com/hearthlab/hearth/pkg/models"
)

// MDNSProbe sends one multicast service enumeration query and collects
// responses for a fixed window, yielding one record per distinct responder.
type MDNSProbe struct {
	window time.Duration
	logger logger.Logger
}

var _ Probe = (*MDNSProbe)(nil)

var mdnsGroup = &net.UDPAddr{IP: net.IPv4(224, 0, 0, 251), Port: 5353}

const (
	mdnsServiceQuery = "_services._dns-sd._udp.local."
	mdnsReadBuffer   = 4096
)

func NewMDNSProbe(window time.Duration, log logger.Logger) *MDNSProbe {
	if window == 0 {
		window = 3 * time.Second
	}

	return &MDNSProbe{window: window, logger: log.WithComponent("mdns")}
}

func (*MDNSProbe) Name() string { return "mdns" }

func (p *MDNSProbe) Run(ctx context.Context, target Target) ([]models.DiscoveryRecord, error) {
	window := target.Window
	if window == 0 {
		window = p.window
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	query, err := buildMDNSQuery(mdnsServiceQuery, dnsmessage.TypePTR)
	if err != nil {
		return nil, err
	}

	if _, err := conn.WriteToUDP(query, mdnsGroup); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(window)
	_ = conn.SetReadDeadline(deadline)

	seen := make(map[string]*models.DiscoveryRecord)
	buf := make([]byte, mdnsReadBuffer)

	for ctx.Err() == nil {
		n, raddr, err := conn.ReadFromUDP(buf)
		if err != nil {
			break
		}

		ip := raddr.IP.String()

		rec, ok := seen[ip]
		if !ok {
			rec = &models.DiscoveryRecord{
				IP:        ip,
				Method:    models.DiscoveryMDNS,
				Timestamp: time.Now(),
			}
			seen[ip] = rec
		}

		if hostname := parseMDNSHostname(buf[:n]); hostname != "" && rec.Hostname == "" {
			rec.Hostname = hostname
		}
	}

	records := make([]models.DiscoveryRecord, 0, len(seen))
	for _, rec := range seen {
		records = append(records, *rec)
	}

	p.logger.Debug().Int("responders", len(records)).Msg("mDNS collection window closed")

	return records, nil
}

// ReverseLookup resolves an IP to its mDNS .local name via a PTR query on
// in-addr.arpa. Useful for devices that never answer unicast DNS.
func ReverseLookup(ip string, timeout time.Duration) (string, error) {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil || parsed.To4() == nil {
		return "", ErrInvalidHost
	}

	v4 := parsed.To4()
	qname := fmt.Sprintf("%d.%d.%d.%d.in-addr.arpa.", v4[3], v4[2], v4[1], v4[0])

	query, err := buildMDNSQuery(qname, dnsmessage.TypePTR)
	if err != nil {
		return "", err
	}

	conn, err := net.DialUDP("udp4", nil, mdnsGroup)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(timeout))

	if _, err := conn.Write(query); err != nil {
		return "", err
	}

	buf := make([]byte, mdnsReadBuffer)

	n, err := conn.Read(buf)
	if err != nil {
		return "", err
	}

	return parsePTRName(buf[:n]), nil
}

func buildMDNSQuery(qname string, qtype dnsmessage.Type) ([]byte, error) {
	name, err := dnsmessage.NewName(qname)
	if err != nil {
		return nil, err
	}

	// mDNS queries use ID 0 and no recursion
	b := dnsmessage.NewBuilder(make([]byte, 0, 512), dnsmessage.Header{})
	b.EnableCompression()

	if err := b.StartQuestions(); err != nil {
		return nil, err
	}

	if err := b.Question(dnsmessage.Question{
		Name:  name,
		Type:  qtype,
		Class: dnsmessage.ClassINET,
	}); err != nil {
		return nil, err
	}

	return b.Finish()
}

// parseMDNSHostname pulls a .local hostname out of A or SRV answers.
func parseMDNSHostname(wire []byte) string {
	var parser dnsmessage.Parser

	if _, err := parser.Start(wire); err != nil {
		return ""
	}

	if err := parser.SkipAllQuestions(); err != nil {
		return ""
	}

	for {
		header, err := parser.AnswerHeader()
		if err != nil {
			return ""
		}

		name := header.Name.String()

		switch header.Type {
		case dnsmessage.TypeA, dnsmessage.TypeAAAA:
			if strings.HasSuffix(name, ".local.") {
				return strings.TrimSuffix(name, ".")
			}
		case dnsmessage.TypeSRV:
			srv, err := parser.SRVResource()
			if err != nil {
				return ""
			}

			return strings.TrimSuffix(srv.Target.String(), ".")
		}

		if err := parser.SkipAnswer(); err != nil {
			return ""
		}
	}
}

func parsePTRName(wire []byte) string {
	var parser dnsmessage.Parser

	if _, err := parser.Start(wire); err != nil {
		return ""
	}

	if err := parser.SkipAllQuestions(); err != nil {
		return ""
	}

	for {
		header, err := parser.AnswerHeader()
		if err != nil {
			return ""
		}

		if header.Type == dnsmessage.TypePTR {
			ptr, err := parser.PTRResource()
			if err != nil {
				return ""
			}

			return strings.TrimSuffix(ptr.PTR.String(), ".")
		}

		if err := parser.SkipAnswer(); err != nil {
			return ""
		}
	}
}
