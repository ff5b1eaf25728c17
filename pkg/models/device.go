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

// Package models provides the shared data models for the hearth core.
package models

import (
	"sort"
	"time"
)

// DeviceType categorizes a discovered network device.
type DeviceType string

const (
	DeviceTypeRouter     DeviceType = "router"
	DeviceTypeCamera     DeviceType = "camera"
	DeviceTypeSpeaker    DeviceType = "speaker"
	DeviceTypeTV         DeviceType = "tv"
	DeviceTypePrinter    DeviceType = "printer"
	DeviceTypeNAS        DeviceType = "nas"
	DeviceTypeHub        DeviceType = "hub"
	DeviceTypeLight      DeviceType = "light"
	DeviceTypeThermostat DeviceType = "thermostat"
	DeviceTypeComputer   DeviceType = "computer"
	DeviceTypeMobile     DeviceType = "mobile"
	DeviceTypeUnknown    DeviceType = "unknown"
)

// DiscoveryMethod indicates which probe produced an observation.
type DiscoveryMethod string

const (
	DiscoveryARP    DiscoveryMethod = "arp"
	DiscoveryICMP   DiscoveryMethod = "icmp"
	DiscoveryMDNS   DiscoveryMethod = "mdns"
	DiscoverySSDP   DiscoveryMethod = "ssdp"
	DiscoveryTCP    DiscoveryMethod = "tcp"
	DiscoveryHTTP   DiscoveryMethod = "http"
	DiscoverySNMP   DiscoveryMethod = "snmp"
	DiscoveryRDNS   DiscoveryMethod = "rdns"
	DiscoveryManual DiscoveryMethod = "manual"
)

// WebService describes an HTTP(S) endpoint found on a device.
type WebService struct {
	Port        int    `json:"port"`
	Scheme      string `json:"scheme"`
	Server      string `json:"server,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Title       string `json:"title,omitempty"`
}

// DiscoveryRecord is one probe's partial observation of a host. Records are
// immutable once produced; they are merged into a Device, never edited.
type DiscoveryRecord struct {
	IP           string          `json:"ip"`
	MAC          string          `json:"mac,omitempty"`
	Vendor       string          `json:"vendor,omitempty"`
	Hostname     string          `json:"hostname,omitempty"`
	DeviceType   string          `json:"device_type,omitempty"`
	Location     string          `json:"location,omitempty"`
	OpenPorts    []int           `json:"open_ports,omitempty"`
	WebServices  []WebService    `json:"web_services,omitempty"`
	ResponseTime time.Duration   `json:"response_time,omitempty"`
	Method       DiscoveryMethod `json:"method"`
	Timestamp    time.Time       `json:"timestamp"`
}

// Classification is the heuristic identity score for a device.
type Classification struct {
	Type       DeviceType `json:"type"`
	Confidence int        `json:"confidence"`
	Reasons    []string   `json:"reasons,omitempty"`
}

// Device is the canonical, mutable view of one host, keyed by IP. The MAC
// address, when known, is a stronger cross-scan identity hint.
type Device struct {
	IP               string                   `json:"ip"`
	MAC              string                   `json:"mac,omitempty"`
	Vendor           string                   `json:"vendor,omitempty"`
	Hostname         string                   `json:"hostname,omitempty"`
	UPnPType         string                   `json:"upnp_type,omitempty"`
	Location         string                   `json:"location,omitempty"`
	OpenPorts        []int                    `json:"open_ports,omitempty"`
	WebServices      []WebService             `json:"web_services,omitempty"`
	Classification   Classification           `json:"classification"`
	DiscoveryMethods map[DiscoveryMethod]bool `json:"discovery_methods"`
	FirstSeen        time.Time                `json:"first_seen"`
	LastSeen         time.Time                `json:"last_seen"`
	Stale            bool                     `json:"stale"`
}

// NewDevice creates an empty device for an IP.
func NewDevice(ip string) *Device {
	return &Device{
		IP:               ip,
		Classification:   Classification{Type: DeviceTypeUnknown},
		DiscoveryMethods: make(map[DiscoveryMethod]bool),
	}
}

// Apply merges one discovery record into the device. Scalar fields follow
// last-non-empty-wins: a known value is never clobbered by an empty one.
// Port and web-service sets are unioned, so applying the same records in any
// order yields the same device.
func (d *Device) Apply(rec *DiscoveryRecord) {
	if rec == nil || rec.IP != d.IP {
		return
	}

	if rec.MAC != "" {
		d.MAC = rec.MAC
	}

	if rec.Vendor != "" {
		d.Vendor = rec.Vendor
	}

	if rec.Hostname != "" {
		d.Hostname = rec.Hostname
	}

	if rec.DeviceType != "" {
		d.UPnPType = rec.DeviceType
	}

	if rec.Location != "" {
		d.Location = rec.Location
	}

	d.OpenPorts = unionPorts(d.OpenPorts, rec.OpenPorts)
	d.WebServices = unionWebServices(d.WebServices, rec.WebServices)

	if rec.Method != "" {
		if d.DiscoveryMethods == nil {
			d.DiscoveryMethods = make(map[DiscoveryMethod]bool)
		}

		d.DiscoveryMethods[rec.Method] = true
	}

	if d.FirstSeen.IsZero() || (!rec.Timestamp.IsZero() && rec.Timestamp.Before(d.FirstSeen)) {
		d.FirstSeen = rec.Timestamp
	}

	if rec.Timestamp.After(d.LastSeen) {
		d.LastSeen = rec.Timestamp
	}

	d.Stale = false
}

// HasPort reports whether the device has an observed open port.
func (d *Device) HasPort(port int) bool {
	for _, p := range d.OpenPorts {
		if p == port {
			return true
		}
	}

	return false
}

func unionPorts(a, b []int) []int {
	if len(b) == 0 {
		return a
	}

	seen := make(map[int]bool, len(a)+len(b))
	for _, p := range a {
		seen[p] = true
	}

	for _, p := range b {
		seen[p] = true
	}

	out := make([]int, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}

	sort.Ints(out)

	return out
}

func unionWebServices(a, b []WebService) []WebService {
	if len(b) == 0 {
		return a
	}

	type key struct {
		port   int
		scheme string
	}

	seen := make(map[key]bool, len(a))
	out := append([]WebService(nil), a...)

	for _, ws := range a {
		seen[key{ws.Port, ws.Scheme}] = true
	}

	for _, ws := range b {
		k := key{ws.Port, ws.Scheme}
		if !seen[k] {
			seen[k] = true

			out = append(out, ws)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Port != out[j].Port {
			return out[i].Port < out[j].Port
		}

		return out[i].Scheme < out[j].Scheme
	})

	return out
}
