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

package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hearthlab/hearth/pkg/models"
)

func TestClassifyHueBridgeByMAC(t *testing.T) {
	c := NewClassifier(nil)

	device := models.NewDevice("192.168.1.10")
	device.MAC = "00:17:88:4a:bb:cc"
	device.OpenPorts = []int{80}

	result := c.Classify(device)

	assert.Equal(t, models.DeviceTypeHub, result.Type)
	assert.Equal(t, 70, result.Confidence)
	assert.Contains(t, result.Reasons, "mac prefix 00:17:88")
	assert.Contains(t, result.Reasons, "open port 80")
}

func TestClassifyUnknownDevice(t *testing.T) {
	c := NewClassifier(nil)

	device := models.NewDevice("192.168.1.200")

	result := c.Classify(device)

	assert.Equal(t, models.DeviceTypeUnknown, result.Type)
	assert.Zero(t, result.Confidence)
	assert.Empty(t, result.Reasons)
}

func TestClassifyWebBannerBeatsNameHint(t *testing.T) {
	c := NewClassifier(nil)

	device := models.NewDevice("192.168.1.20")
	device.Hostname = "nest-thermostat"
	device.WebServices = []models.WebService{
		{Port: 5000, Scheme: "http", Server: "Synology DSM", Title: "DiskStation"},
	}
	device.OpenPorts = []int{5000, 5001}

	result := c.Classify(device)

	// NAS: two ports (40) + web hint (15) = 55; thermostat name hint is only 10
	assert.Equal(t, models.DeviceTypeNAS, result.Type)
	assert.Equal(t, 55, result.Confidence)
}

func TestClassifyConfidenceClamped(t *testing.T) {
	c := NewClassifier([]Signature{
		{
			Type:        models.DeviceTypeRouter,
			MACPrefixes: []string{"aa:bb:cc"},
			Ports:       []int{22, 53, 80, 443},
			WebHints:    []string{"router"},
			NameHints:   []string{"router"},
		},
	})

	device := models.NewDevice("192.168.1.1")
	device.MAC = "aa:bb:cc:00:11:22"
	device.Hostname = "router.lan"
	device.OpenPorts = []int{22, 53, 80, 443}
	device.WebServices = []models.WebService{{Port: 80, Scheme: "http", Title: "Router Admin"}}

	result := c.Classify(device)

	assert.Equal(t, 100, result.Confidence)
}

func TestClassifyTieKeepsEarlierSignature(t *testing.T) {
	c := NewClassifier([]Signature{
		{Type: models.DeviceTypeCamera, Ports: []int{554}},
		{Type: models.DeviceTypeTV, Ports: []int{554}},
	})

	device := models.NewDevice("192.168.1.30")
	device.OpenPorts = []int{554}

	result := c.Classify(device)

	assert.Equal(t, models.DeviceTypeCamera, result.Type)
	assert.Equal(t, 20, result.Confidence)
}

func TestClassifySonosBySSD(t *testing.T) {
	c := NewClassifier(nil)

	device := models.NewDevice("192.168.1.40")
	device.UPnPType = "urn:schemas-upnp-org:device:ZonePlayer:1"
	device.Hostname = "Sonos-One"
	device.OpenPorts = []int{1400}

	result := c.Classify(device)

	assert.Equal(t, models.DeviceTypeSpeaker, result.Type)
	// port (20) + web hint via UPnP type (15) + name hint (10)
	assert.Equal(t, 45, result.Confidence)
}

func TestClassifyRecomputesFromScratch(t *testing.T) {
	c := NewClassifier(nil)

	device := models.NewDevice("192.168.1.50")
	device.Classification = models.Classification{Type: models.DeviceTypePrinter, Confidence: 99}
	device.OpenPorts = []int{554}

	result := c.Classify(device)

	assert.Equal(t, models.DeviceTypeCamera, result.Type)
	assert.Equal(t, 20, result.Confidence)
}
