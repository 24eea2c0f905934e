/*
 * Copyright 2023 LiveKit, Inc
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

package types

import (
	"fmt"
	"strings"

	"github.com/pion/ice/v2"
)

type ICECandidateInfo struct {
	Type     string
	Protocol string
	Address  string
	Port     int
}

func (i ICECandidateInfo) String() string {
	return fmt.Sprintf("%s/%s/%s:%d", i.Type, i.Protocol, i.Address, i.Port)
}

// ParseCandidate decodes an a=candidate value, with or without its "candidate:" prefix.
// The empty end-of-candidates value yields nil.
func ParseCandidate(candidate string) (*ICECandidateInfo, error) {
	value := strings.TrimPrefix(strings.TrimPrefix(candidate, "a="), "candidate:")
	if value == "" {
		return nil, nil
	}

	c, err := ice.UnmarshalCandidate(value)
	if err != nil {
		return nil, err
	}

	return &ICECandidateInfo{
		Type:     c.Type().String(),
		Protocol: strings.ToLower(c.NetworkType().NetworkShort()),
		Address:  c.Address(),
		Port:     c.Port(),
	}, nil
}

// CandidateLabel is a short description of a candidate for logging.
func CandidateLabel(candidate string) string {
	info, err := ParseCandidate(candidate)
	if err != nil || info == nil {
		return "unknown"
	}
	return info.String()
}
