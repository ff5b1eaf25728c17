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

// Package logger provides JSON structured logging using zerolog.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config controls log level and output destination.
type Config struct {
	Level      string `json:"level"`
	Debug      bool   `json:"debug"`
	Output     string `json:"output"`
	TimeFormat string `json:"time_format"`
}

func DefaultConfig() *Config {
	return &Config{
		Level:  getEnvOrDefault("LOG_LEVEL", "info"),
		Debug:  getEnvBoolOrDefault("DEBUG", false),
		Output: getEnvOrDefault("LOG_OUTPUT", "stdout"),
	}
}

// Logger is the logging interface used throughout hearth.
type Logger interface {
	Trace() *zerolog.Event
	Debug() *zerolog.Event
	Info() *zerolog.Event
	Warn() *zerolog.Event
	Error() *zerolog.Event
	Fatal() *zerolog.Event
	With() zerolog.Context
	WithComponent(component string) Logger
	SetLevel(level zerolog.Level)
}

type zeroLogger struct {
	log zerolog.Logger
}

// NewLogger builds a Logger from config. An empty config yields an
// info-level JSON logger on stdout.
func NewLogger(config *Config) (Logger, error) {
	if config == nil {
		config = DefaultConfig()
	}

	var output io.Writer = os.Stdout
	if config.Output == "stderr" {
		output = os.Stderr
	}

	level := zerolog.InfoLevel

	if config.Debug {
		level = zerolog.DebugLevel
	} else if config.Level != "" {
		var err error

		level, err = zerolog.ParseLevel(config.Level)
		if err != nil {
			return nil, err
		}
	}

	if config.TimeFormat != "" {
		zerolog.TimeFieldFormat = config.TimeFormat
	} else {
		zerolog.TimeFieldFormat = time.RFC3339
	}

	log := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()

	return &zeroLogger{log: log}, nil
}

func (z *zeroLogger) Trace() *zerolog.Event { return z.log.Trace() }
func (z *zeroLogger) Debug() *zerolog.Event { return z.log.Debug() }
func (z *zeroLogger) Info() *zerolog.Event  { return z.log.Info() }
func (z *zeroLogger) Warn() *zerolog.Event  { return z.log.Warn() }
func (z *zeroLogger) Error() *zerolog.Event { return z.log.Error() }
func (z *zeroLogger) Fatal() *zerolog.Event { return z.log.Fatal() }
func (z *zeroLogger) With() zerolog.Context { return z.log.With() }

func (z *zeroLogger) WithComponent(component string) Logger {
	return &zeroLogger{log: z.log.With().Str("component", component).Logger()}
}

func (z *zeroLogger) SetLevel(level zerolog.Level) {
	z.log = z.log.Level(level)
}

// NewTestLogger creates a no-op logger for testing that discards all output.
func NewTestLogger() Logger {
	return &zeroLogger{log: zerolog.New(io.Discard).Level(zerolog.Disabled)}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	switch os.Getenv(key) {
	case "":
		return defaultValue
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}
