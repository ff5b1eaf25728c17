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
	"os"
	"sync"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"

	"github.com/hearthlab/hearth/pkg/logger"
	"github.com/hearthlab/hearth/pkg/models"
)

// ICMPProbe sweeps a subnet with one echo request per usable host. Sends
// run through a bounded worker pool so large subnets cannot exhaust
// descriptors; replies are matched by peer address on a single listener.
type ICMPProbe struct {
	concurrency int
	timeout     time.Duration
	logger      logger.Logger
}

var _ Probe = (*ICMPProbe)(nil)

const icmpReadBuffer = 1500

func NewICMPProbe(concurrency int, timeout time.Duration, log logger.Logger) *ICMPProbe {
	if concurrency == 0 {
		concurrency = 64
	}

	if timeout == 0 {
		timeout = 2 * time.Second
	}

	return &ICMPProbe{
		concurrency: concurrency,
		timeout:     timeout,
		logger:      log.WithComponent("icmp"),
	}
}

func (*ICMPProbe) Name() string { return "icmp" }

func (p *ICMPProbe) Run(ctx context.Context, target Target) ([]models.DiscoveryRecord, error) {
	hosts := target.Hosts

	if len(hosts) == 0 {
		if target.Subnet == "" {
			return nil, ErrEmptyTarget
		}

		var err error

		hosts, err = HostsInSubnet(target.Subnet)
		if err != nil {
			return nil, err
		}
	}

	conn, privileged, err := listenICMP()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	window := target.Window
	if window == 0 {
		window = p.timeout
	}

	deadline := time.Now().Add(window + p.timeout)
	_ = conn.SetReadDeadline(deadline)

	var (
		mu      sync.Mutex
		sentAt  = make(map[string]time.Time, len(hosts))
		replies = make(map[string]time.Duration)
	)

	readerDone := make(chan struct{})

	go func() {
		defer close(readerDone)

		buf := make([]byte, icmpReadBuffer)

		for {
			n, peer, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}

			msg, err := icmp.ParseMessage(ipv4.ICMPTypeEchoReply.Protocol(), buf[:n])
			if err != nil || msg.Type != ipv4.ICMPTypeEchoReply {
				continue
			}

			ip := peerIP(peer)

			mu.Lock()
			if sent, ok := sentAt[ip]; ok {
				if _, seen := replies[ip]; !seen {
					replies[ip] = time.Since(sent)
				}
			}
			mu.Unlock()
		}
	}()

	ident := os.Getpid() & 0xffff
	seq := 0

	var seqMu sync.Mutex

	forEachHost(ctx, hosts, p.concurrency, func(_ context.Context, host string) {
		dst, err := resolveEchoAddr(host, privileged)
		if err != nil {
			return
		}

		seqMu.Lock()
		seq++
		echoSeq := seq
		seqMu.Unlock()

		msg := icmp.Message{
			Type: ipv4.ICMPTypeEcho,
			Body: &icmp.Echo{ID: ident, Seq: echoSeq, Data: []byte("hearth-sweep")},
		}

		wire, err := msg.Marshal(nil)
		if err != nil {
			return
		}

		mu.Lock()
		sentAt[host] = time.Now()
		mu.Unlock()

		_, _ = conn.WriteTo(wire, dst)
	})

	// collection window for stragglers
	select {
	case <-ctx.Done():
	case <-time.After(window):
	}

	_ = conn.SetReadDeadline(time.Now())
	<-readerDone

	now := time.Now()

	mu.Lock()
	defer mu.Unlock()

	records := make([]models.DiscoveryRecord, 0, len(replies))
	for ip, rtt := range replies {
		records = append(records, models.DiscoveryRecord{
			IP:           ip,
			ResponseTime: rtt,
			Method:       models.DiscoveryICMP,
			Timestamp:    now,
		})
	}

	p.logger.Debug().Int("sent", len(sentAt)).Int("replies", len(records)).Msg("Ping sweep complete")

	return records, nil
}

// listenICMP prefers a raw socket and falls back to the unprivileged
// datagram form (ping_group_range) when raw sockets are denied.
func listenICMP() (*icmp.PacketConn, bool, error) {
	if conn, err := icmp.ListenPacket("ip4:icmp", "0.0.0.0"); err == nil {
		return conn, true, nil
	}

	conn, err := icmp.ListenPacket("udp4", "0.0.0.0")
	if err != nil {
		return nil, false, err
	}

	return conn, false, nil
}

func resolveEchoAddr(host string, privileged bool) (net.Addr, error) {
	ip := net.ParseIP(host)
	if ip == nil || ip.To4() == nil {
		return nil, ErrInvalidHost
	}

	if privileged {
		return &net.IPAddr{IP: ip}, nil
	}

	return &net.UDPAddr{IP: ip}, nil
}

func peerIP(addr net.Addr) string {
	switch a := addr.(type) {
	case *net.IPAddr:
		return a.IP.String()
	case *net.UDPAddr:
		return a.IP.String()
	default:
		return addr.String()
	}
}
