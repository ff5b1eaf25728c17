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

// Package policy gates risky tool actions behind authorization factors and
// tracks the pending authorization handshakes.
package policy

import (
	"fmt"
	"strings"

	"github.com/hearthlab/hearth/pkg/models"
)

// Decision is the result of classifying a tool.action path.
type Decision struct {
	Required bool
	Factors  []models.Factor
}

// Engine matches tool.action paths against an ordered rule list. Rules are
// immutable after construction.
type Engine struct {
	rules []models.PolicyRule
}

// NewEngine builds an engine from rules in declaration order. Order is
// precedence: the first matching rule governs, later matches are ignored.
func NewEngine(rules []models.PolicyRule) *Engine {
	return &Engine{rules: append([]models.PolicyRule(nil), rules...)}
}

// Classify reports whether tool.action requires authorization and which
// factors. A pattern matches on exact equality, or as a prefix when it ends
// in "*".
func (e *Engine) Classify(tool, action string) Decision {
	path := fmt.Sprintf("%s.%s", tool, action)

	for _, rule := range e.rules {
		if matches(rule.Pattern, path) {
			return Decision{
				Required: len(rule.Factors) > 0,
				Factors:  rule.Factors,
			}
		}
	}

	return Decision{}
}

func matches(pattern, path string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(path, prefix)
	}

	return pattern == path
}
