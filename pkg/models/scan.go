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

package models

import "time"

// ScanResult summarizes one completed network scan.
type ScanResult struct {
	ScanID     string        `json:"scan_id"`
	Subnet     string        `json:"subnet"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	HostsFound int           `json:"hosts_found"`
	Devices    []*Device     `json:"devices"`

	// ProbeErrors lists the probes that failed; the scan proceeds on
	// whatever the remaining probes observed.
	ProbeErrors []string `json:"probe_errors,omitempty"`
}
