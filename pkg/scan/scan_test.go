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
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostsInSubnet(t *testing.T) {
	tests := []struct {
		name    string
		subnet  string
		count   int
		first   string
		last    string
		wantErr bool
	}{
		{"slash 24", "192.168.1.0/24", 254, "192.168.1.1", "192.168.1.254", false},
		{"slash 30", "10.0.0.0/30", 2, "10.0.0.1", "10.0.0.2", false},
		{"slash 32", "10.0.0.7/32", 1, "10.0.0.7", "10.0.0.7", false},
		{"garbage", "not-a-subnet", 0, "", "", true},
		{"ipv6", "fe80::/64", 0, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hosts, err := HostsInSubnet(tt.subnet)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.Len(t, hosts, tt.count)
			assert.Equal(t, tt.first, hosts[0])
			assert.Equal(t, tt.last, hosts[len(hosts)-1])
		})
	}
}

func TestForEachHostBoundedConcurrency(t *testing.T) {
	hosts := make([]string, 200)
	for i := range hosts {
		hosts[i] = "10.0.0.1"
	}

	var (
		inFlight atomic.Int32
		peak     atomic.Int32
		total    atomic.Int32
	)

	forEachHost(context.Background(), hosts, 8, func(_ context.Context, _ string) {
		cur := inFlight.Add(1)

		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}

		total.Add(1)
		inFlight.Add(-1)
	})

	assert.Equal(t, int32(200), total.Load())
	assert.LessOrEqual(t, peak.Load(), int32(8))
}

func TestForEachHostHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran atomic.Int32

	hosts := make([]string, 1000)
	for i := range hosts {
		hosts[i] = "10.0.0.1"
	}

	forEachHost(ctx, hosts, 4, func(_ context.Context, _ string) {
		ran.Add(1)
	})

	// workers drain whatever was queued before cancellation was observed
	assert.Less(t, ran.Load(), int32(1000))
}

func TestVendorForMAC(t *testing.T) {
	assert.Equal(t, "Philips Hue", VendorForMAC("00:17:88:11:22:33"))
	assert.Equal(t, "Raspberry Pi", VendorForMAC("B8:27:EB:aa:bb:cc"))
	assert.Empty(t, VendorForMAC("ff:ff:ff:00:00:00"))
	assert.Empty(t, VendorForMAC("short"))
}

func TestParseSSDPHeaders(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\n" +
		"SERVER: Linux/3.14 UPnP/1.0 Sonos/70.1\r\n" +
		"LOCATION: http://192.168.1.50:1400/xml/device_description.xml\r\n" +
		"ST: urn:schemas-upnp-org:device:ZonePlayer:1\r\n\r\n"

	headers := parseSSDPHeaders(raw)
	assert.Equal(t, "Linux/3.14 UPnP/1.0 Sonos/70.1", headers["server"])
	assert.Equal(t, "http://192.168.1.50:1400/xml/device_description.xml", headers["location"])
}

func TestDeviceTypeFromST(t *testing.T) {
	tests := []struct {
		st   string
		want string
	}{
		{"urn:schemas-upnp-org:device:MediaRenderer:1", "MediaRenderer"},
		{"urn:schemas-upnp-org:device:ZonePlayer:1", "ZonePlayer"},
		{"upnp:rootdevice", "rootdevice"},
		{"ssdp:all", ""},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, deviceTypeFromST(tt.st), tt.st)
	}
}

func TestExtractTitle(t *testing.T) {
	assert.Equal(t, "Synology DiskStation",
		extractTitle([]byte(`<html><head><TITLE> Synology DiskStation </TITLE></head></html>`)))
	assert.Empty(t, extractTitle([]byte(`<html><body>no title</body></html>`)))
}

func TestConcurrentVendorLookupIsSafe(t *testing.T) {
	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for j := 0; j < 100; j++ {
				_ = VendorForMAC("b8:27:eb:00:00:01")
			}
		}()
	}

	wg.Wait()
}
