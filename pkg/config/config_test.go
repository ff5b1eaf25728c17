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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "hearth.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `{
		"listen_addr": ":9000",
		"heartbeat_interval": "10s",
		"policy": [
			{"pattern": "docker.*", "factors": ["pin"]},
			{"pattern": "security.unlock", "factors": ["pin", "totp"]}
		],
		"auth": {"max_attempts": 5, "timeout": "90s"},
		"scan": {"subnet": "10.1.0.0/24", "ports": [22, 80]}
	}`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, 10*time.Second, time.Duration(cfg.HeartbeatInterval))
	require.Len(t, cfg.Policy, 2)
	assert.Equal(t, "docker.*", cfg.Policy[0].Pattern)
	assert.Equal(t, 5, cfg.Auth.MaxAttempts)
	assert.Equal(t, 90*time.Second, time.Duration(cfg.Auth.Timeout))
	assert.Equal(t, "10.1.0.0/24", cfg.Scan.Subnet)
}

func TestLoadFileAppliesDefaults(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, `{}`))
	require.NoError(t, err)

	assert.Equal(t, ":8088", cfg.ListenAddr)
	assert.Equal(t, 30*time.Second, time.Duration(cfg.HeartbeatInterval))
	assert.Equal(t, 3, cfg.Auth.MaxAttempts)
	assert.Equal(t, 64, cfg.Scan.Concurrency)
	assert.Equal(t, "public", cfg.Scan.Community)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile("/nonexistent/hearth.json")
	assert.Error(t, err)
}

func TestDurationUnmarshalForms(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{"string form", `"1m30s"`, 90 * time.Second, false},
		{"numeric nanoseconds", `1000000000`, time.Second, false},
		{"garbage", `"soon"`, 0, true},
		{"wrong type", `[1]`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration

			err := d.UnmarshalJSON([]byte(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, time.Duration(d))
		})
	}
}
