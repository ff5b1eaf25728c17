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

// Package config loads the hearth server configuration from a JSON file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/hearthlab/hearth/pkg/logger"
	"github.com/hearthlab/hearth/pkg/models"
)

// Duration wraps time.Duration so config files can use "30s" style strings.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case float64:
		*d = Duration(time.Duration(v))
		return nil
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}

		*d = Duration(parsed)

		return nil
	default:
		return fmt.Errorf("invalid duration value: %v", raw)
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// AuthConfig configures the authorization state machine.
type AuthConfig struct {
	PINHash     string   `json:"pin_hash"`
	TOTPSecret  string   `json:"totp_secret"`
	MaxAttempts int      `json:"max_attempts"`
	Timeout     Duration `json:"timeout"`
	SweepEvery  Duration `json:"sweep_every"`
}

// ScanConfig configures network discovery.
type ScanConfig struct {
	Subnet      string   `json:"subnet"`
	Ports       []int    `json:"ports"`
	Concurrency int      `json:"concurrency"`
	Timeout     Duration `json:"timeout"`
	ProbeWindow Duration `json:"probe_window"`
	StaleAfter  Duration `json:"stale_after"`
	Community   string   `json:"snmp_community"`
}

// Config is the top-level server configuration.
type Config struct {
	ListenAddr        string              `json:"listen_addr"`
	HeartbeatInterval Duration            `json:"heartbeat_interval"`
	Policy            []models.PolicyRule `json:"policy"`
	Auth              AuthConfig          `json:"auth"`
	Scan              ScanConfig          `json:"scan"`
	Logging           *logger.Config      `json:"logging,omitempty"`
}

const (
	defaultListenAddr        = ":8088"
	defaultHeartbeatInterval = 30 * time.Second
	defaultAuthTimeout       = 2 * time.Minute
	defaultAuthSweep         = 15 * time.Second
	defaultMaxAttempts       = 3
	defaultScanTimeout       = 45 * time.Second
	defaultProbeWindow       = 3 * time.Second
	defaultStaleAfter        = 10 * time.Minute
	defaultScanConcurrency   = 64
)

// LoadFile reads and unmarshals a JSON config file, then applies defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config %q: %w", path, err)
	}

	cfg.ApplyDefaults()

	return &cfg, nil
}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = defaultListenAddr
	}

	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = Duration(defaultHeartbeatInterval)
	}

	if c.Auth.MaxAttempts == 0 {
		c.Auth.MaxAttempts = defaultMaxAttempts
	}

	if c.Auth.Timeout == 0 {
		c.Auth.Timeout = Duration(defaultAuthTimeout)
	}

	if c.Auth.SweepEvery == 0 {
		c.Auth.SweepEvery = Duration(defaultAuthSweep)
	}

	if c.Scan.Timeout == 0 {
		c.Scan.Timeout = Duration(defaultScanTimeout)
	}

	if c.Scan.ProbeWindow == 0 {
		c.Scan.ProbeWindow = Duration(defaultProbeWindow)
	}

	if c.Scan.StaleAfter == 0 {
		c.Scan.StaleAfter = Duration(defaultStaleAfter)
	}

	if c.Scan.Concurrency == 0 {
		c.Scan.Concurrency = defaultScanConcurrency
	}

	if c.Scan.Community == "" {
		c.Scan.Community = "public"
	}
}
