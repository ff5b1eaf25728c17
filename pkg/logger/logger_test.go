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

package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerDefaults(t *testing.T) {
	log, err := NewLogger(nil)
	require.NoError(t, err)
	require.NotNil(t, log)
}

func TestNewLoggerInvalidLevel(t *testing.T) {
	_, err := NewLogger(&Config{Level: "chatty"})
	assert.Error(t, err)
}

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
	}{
		{"debug flag", &Config{Debug: true}},
		{"explicit level", &Config{Level: "warn"}},
		{"stderr output", &Config{Level: "info", Output: "stderr"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := NewLogger(tt.config)
			require.NoError(t, err)
			assert.NotNil(t, log.Info())
		})
	}
}

func TestWithComponent(t *testing.T) {
	log := NewTestLogger()
	child := log.WithComponent("scanner")
	require.NotNil(t, child)

	// the child must be independently usable
	child.Info().Msg("ok")
}
