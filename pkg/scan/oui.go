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

import "strings"

// ouiVendors maps MAC OUI prefixes to vendors for the device families a
// home network actually contains. Not a full IEEE registry; unknown
// prefixes resolve to an empty vendor.
var ouiVendors = map[string]string{
	"00:17:88": "Philips Hue",
	"ec:b5:fa": "Philips Hue",
	"b0:4e:26": "TP-Link",
	"50:c7:bf": "TP-Link",
	"18:b4:30": "Nest",
	"64:16:66": "Nest",
	"fc:a6:67": "Amazon",
	"44:65:0d": "Amazon",
	"f0:d2:f1": "Amazon",
	"18:b7:9e": "Sonos",
	"00:0e:58": "Sonos",
	"5c:aa:fd": "Sonos",
	"00:04:f2": "Polycom",
	"00:1d:63": "Miele",
	"d0:03:4b": "Apple",
	"f0:18:98": "Apple",
	"a4:83:e7": "Apple",
	"3c:22:fb": "Apple",
	"00:50:56": "VMware",
	"00:0c:29": "VMware",
	"08:00:27": "VirtualBox",
	"52:54:00": "QEMU",
	"b8:27:eb": "Raspberry Pi",
	"dc:a6:32": "Raspberry Pi",
	"e4:5f:01": "Raspberry Pi",
	"00:11:32": "Synology",
	"90:09:d0": "Synology",
	"24:5e:be": "QNAP",
	"00:08:9b": "QNAP",
	"fc:ec:da": "Ubiquiti",
	"24:a4:3c": "Ubiquiti",
	"78:8a:20": "Ubiquiti",
	"00:1f:f3": "Roku",
	"d8:31:34": "Roku",
	"cc:6d:a0": "Roku",
	"00:1e:06": "Wibrain",
	"ac:63:be": "Ecobee",
	"44:61:32": "Ecobee",
	"00:24:e4": "Withings",
	"70:ee:50": "Netatmo",
	"00:80:92": "Silex",
	"00:21:5c": "Intel",
	"30:24:32": "Intel",
	"00:15:5d": "Microsoft",
	"28:18:78": "Microsoft",
	"00:12:fb": "Samsung",
	"8c:77:12": "Samsung",
	"fc:03:9f": "Samsung",
	"00:09:18": "Axis",
	"ac:cc:8e": "Axis",
	"9c:8e:cd": "Amcrest",
	"bc:32:5f": "Zhejiang Dahua",
	"c0:56:e3": "Hangzhou Hikvision",
	"28:57:be": "Hangzhou Hikvision",
	"00:1b:a9": "Brother",
	"30:05:5c": "Brother",
	"00:00:48": "Epson",
	"64:eb:8c": "Epson",
	"00:1e:0b": "Hewlett Packard",
	"94:57:a5": "Hewlett Packard",
	"3c:d9:2b": "Hewlett Packard",
}

// VendorForMAC resolves a MAC address to a vendor via its OUI prefix.
func VendorForMAC(mac string) string {
	mac = strings.ToLower(strings.TrimSpace(mac))
	if len(mac) < 8 {
		return ""
	}

	return ouiVendors[mac[:8]]
}
