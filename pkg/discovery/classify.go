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
	"fmt"
	"strings"

	"github.com/hearthlab/hearth/pkg/models"
)

// Signature is one candidate device identity. Fields are optional; each
// matching field contributes to the confidence score.
type Signature struct {
	Type        models.DeviceType
	MACPrefixes []string
	Ports       []int
	WebHints    []string
	NameHints   []string
}

// Signal weights preserve relative strength: a MAC prefix is near-proof,
// open ports are strong, web banners weaker, name similarity weakest.
const (
	weightMAC      = 50
	weightPort     = 20
	weightWebHint  = 15
	weightNameHint = 10
	maxConfidence  = 100
)

// defaultSignatures is scanned in declaration order; ties keep the earlier
// entry.
var defaultSignatures = []Signature{
	{
		Type:        models.DeviceTypeHub,
		MACPrefixes: []string{"00:17:88", "ec:b5:fa"},
		Ports:       []int{80},
		WebHints:    []string{"hue"},
		NameHints:   []string{"hue", "philips"},
	},
	{
		Type:        models.DeviceTypeSpeaker,
		MACPrefixes: []string{"18:b7:9e", "00:0e:58", "5c:aa:fd"},
		Ports:       []int{1400},
		WebHints:    []string{"sonos", "zoneplayer"},
		NameHints:   []string{"sonos"},
	},
	{
		Type:      models.DeviceTypeNAS,
		Ports:     []int{5000, 5001},
		WebHints:  []string{"synology", "diskstation", "qnap"},
		NameHints: []string{"synology", "diskstation", "nas", "qnap"},
	},
	{
		Type:      models.DeviceTypeCamera,
		Ports:     []int{554},
		WebHints:  []string{"hikvision", "dahua", "axis", "ipcam"},
		NameHints: []string{"cam", "doorbell"},
	},
	{
		Type:      models.DeviceTypePrinter,
		Ports:     []int{9100, 631},
		WebHints:  []string{"printer", "cups", "jetdirect"},
		NameHints: []string{"printer", "brother", "epson", "hp"},
	},
	{
		Type:      models.DeviceTypeTV,
		Ports:     []int{8008, 8009},
		WebHints:  []string{"chromecast", "cast", "eureka"},
		NameHints: []string{"chromecast", "tv", "shield"},
	},
	{
		Type:      models.DeviceTypeTV,
		WebHints:  []string{"roku"},
		NameHints: []string{"roku"},
		Ports:     []int{8060},
	},
	{
		Type:      models.DeviceTypeHub,
		Ports:     []int{8123},
		WebHints:  []string{"home assistant", "homeassistant"},
		NameHints: []string{"homeassistant", "hass"},
	},
	{
		Type:      models.DeviceTypeComputer,
		Ports:     []int{32400},
		WebHints:  []string{"plex"},
		NameHints: []string{"plex"},
	},
	{
		Type:        models.DeviceTypeThermostat,
		MACPrefixes: []string{"18:b4:30", "64:16:66", "ac:63:be", "44:61:32"},
		NameHints:   []string{"nest", "ecobee", "thermostat"},
	},
	{
		Type:      models.DeviceTypeRouter,
		Ports:     []int{53, 80, 443},
		WebHints:  []string{"router", "gateway", "openwrt", "mikrotik", "unifi"},
		NameHints: []string{"router", "gateway", "fritz", "unifi", "mikrotik"},
	},
	{
		Type:        models.DeviceTypeComputer,
		MACPrefixes: []string{"b8:27:eb", "dc:a6:32", "e4:5f:01"},
		Ports:       []int{22},
		NameHints:   []string{"raspberrypi", "pi"},
	},
	{
		Type:      models.DeviceTypeComputer,
		Ports:     []int{22, 3389, 445},
		NameHints: []string{"desktop", "laptop", "macbook", "pc"},
	},
	{
		Type:        models.DeviceTypeMobile,
		MACPrefixes: []string{"d0:03:4b", "f0:18:98", "a4:83:e7", "3c:22:fb"},
		NameHints:   []string{"iphone", "ipad", "android", "pixel", "galaxy"},
	},
}

// Classifier scores a device against the signature table.
type Classifier struct {
	signatures []Signature
}

// NewClassifier builds a classifier. A nil table uses the defaults.
func NewClassifier(signatures []Signature) *Classifier {
	if signatures == nil {
		signatures = defaultSignatures
	}

	return &Classifier{signatures: signatures}
}

// Classify scores the full accumulated evidence of a device against every
// signature and returns the best match. The score is always recomputed from
// scratch; it never patches a previous classification.
func (c *Classifier) Classify(device *models.Device) models.Classification {
	best := models.Classification{Type: models.DeviceTypeUnknown}

	for _, sig := range c.signatures {
		score, reasons := c.score(device, &sig)
		if score > best.Confidence {
			best = models.Classification{
				Type:       sig.Type,
				Confidence: score,
				Reasons:    reasons,
			}
		}
	}

	return best
}

func (c *Classifier) score(device *models.Device, sig *Signature) (int, []string) {
	score := 0

	var reasons []string

	mac := strings.ToLower(device.MAC)
	for _, prefix := range sig.MACPrefixes {
		if strings.HasPrefix(mac, prefix) {
			score += weightMAC

			reasons = append(reasons, fmt.Sprintf("mac prefix %s", prefix))

			break
		}
	}

	for _, port := range sig.Ports {
		if device.HasPort(port) {
			score += weightPort

			reasons = append(reasons, fmt.Sprintf("open port %d", port))
		}
	}

	if hint := matchWebHint(device, sig.WebHints); hint != "" {
		score += weightWebHint

		reasons = append(reasons, fmt.Sprintf("web banner %q", hint))
	}

	if hint := matchNameHint(device, sig.NameHints); hint != "" {
		score += weightNameHint

		reasons = append(reasons, fmt.Sprintf("name contains %q", hint))
	}

	if score > maxConfidence {
		score = maxConfidence
	}

	return score, reasons
}

func matchWebHint(device *models.Device, hints []string) string {
	if len(hints) == 0 {
		return ""
	}

	var haystack strings.Builder

	haystack.WriteString(strings.ToLower(device.UPnPType))
	haystack.WriteByte(' ')
	haystack.WriteString(strings.ToLower(device.Location))

	for _, ws := range device.WebServices {
		haystack.WriteByte(' ')
		haystack.WriteString(strings.ToLower(ws.Server))
		haystack.WriteByte(' ')
		haystack.WriteString(strings.ToLower(ws.Title))
	}

	text := haystack.String()

	for _, hint := range hints {
		if strings.Contains(text, hint) {
			return hint
		}
	}

	return ""
}

func matchNameHint(device *models.Device, hints []string) string {
	if len(hints) == 0 {
		return ""
	}

	text := strings.ToLower(device.Hostname + " " + device.Vendor)

	for _, hint := range hints {
		if strings.Contains(text, hint) {
			return hint
		}
	}

	return ""
}
