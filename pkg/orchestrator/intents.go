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

package orchestrator

import (
	"regexp"
	"strings"

	"github.com/hearthlab/hearth/pkg/models"
)

// intentMatcher pairs a pattern with a builder turning its captures into an
// intent. Matchers are tried in declaration order; the first match wins.
type intentMatcher struct {
	pattern *regexp.Regexp
	build   func(groups []string) *models.Intent
}

// defaultMatchers is the ordered cascade for free-text commands. It is not
// an NLP pipeline: matching is deterministic and order expresses priority.
func defaultMatchers() []intentMatcher {
	return []intentMatcher{
		{
			pattern: regexp.MustCompile(`(?i)\bscan\b.*\bnetwork\b|\bnetwork\b.*\bscan\b`),
			build: func(_ []string) *models.Intent {
				return &models.Intent{Tool: "network", Action: "scan_network", Confidence: 0.9}
			},
		},
		{
			pattern: regexp.MustCompile(`(?i)\b(?:what|which|list|show)\b.*\bdevices?\b`),
			build: func(_ []string) *models.Intent {
				return &models.Intent{Tool: "network", Action: "get_devices", Confidence: 0.9}
			},
		},
		{
			pattern: regexp.MustCompile(`(?i)\bclassify\b.*\bdevices?\b`),
			build: func(_ []string) *models.Intent {
				return &models.Intent{Tool: "network", Action: "classify_devices", Confidence: 0.9}
			},
		},
		{
			pattern: regexp.MustCompile(`(?i)\bturn\s+(on|off)\s+(?:the\s+)?(.+)`),
			build: func(groups []string) *models.Intent {
				return &models.Intent{
					Tool:   "devices",
					Action: "control",
					Args: map[string]interface{}{
						"command": "power_" + strings.ToLower(groups[1]),
						"device":  strings.TrimSpace(groups[2]),
					},
					Confidence: 0.8,
				}
			},
		},
		{
			pattern: regexp.MustCompile(`(?i)\bactivate\s+(?:the\s+)?(.+?)\s+scene\b`),
			build: func(groups []string) *models.Intent {
				return &models.Intent{
					Tool:       "devices",
					Action:     "activate_scene",
					Args:       map[string]interface{}{"scene": strings.TrimSpace(groups[1])},
					Confidence: 0.8,
				}
			},
		},
		{
			pattern: regexp.MustCompile(`(?i)\brestart\s+(?:the\s+)?([\w.-]+)(?:\s+container)?`),
			build: func(groups []string) *models.Intent {
				return &models.Intent{
					Tool:       "docker",
					Action:     "restart",
					Args:       map[string]interface{}{"container": groups[1]},
					Confidence: 0.7,
				}
			},
		},
		{
			pattern: regexp.MustCompile(`(?i)\b(play|pause|stop)\b.*\b(?:movie|music|plex|playback)\b`),
			build: func(groups []string) *models.Intent {
				return &models.Intent{
					Tool:       "plex",
					Action:     strings.ToLower(groups[1]),
					Confidence: 0.7,
				}
			},
		},
	}
}

// classifyText runs the matcher cascade over raw text. Unmatched input
// yields a zero-confidence intent.
func (o *Orchestrator) classifyText(rawText string) *models.Intent {
	text := strings.TrimSpace(rawText)

	for _, m := range o.matchers {
		if groups := m.pattern.FindStringSubmatch(text); groups != nil {
			return m.build(groups)
		}
	}

	return &models.Intent{Confidence: 0}
}
