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

import "errors"

var (
	ErrNotIPv4Subnet    = errors.New("only IPv4 subnets are supported")
	ErrNoNeighborSource = errors.New("no readable neighbor table")
	ErrInvalidHost      = errors.New("invalid host address")
	ErrEmptyTarget      = errors.New("probe target is empty")
)
