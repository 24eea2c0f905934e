// Copyright 2023 LiveKit, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rtc

import (
	"github.com/pion/webrtc/v3"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/whep-client/pkg/config"
	clientlogger "github.com/livekit/whep-client/pkg/logger"
)

type WebRTCConfig struct {
	Configuration webrtc.Configuration
	SettingEngine webrtc.SettingEngine
}

func NewWebRTCConfig(conf *config.RTCConfig, l logger.Logger, pionLevel string) (*WebRTCConfig, error) {
	c := webrtc.Configuration{
		SDPSemantics: webrtc.SDPSemanticsUnifiedPlan,
	}
	s := webrtc.SettingEngine{}

	if conf.UDPPortRangeStart != 0 && conf.UDPPortRangeEnd != 0 {
		if err := s.SetEphemeralUDPPortRange(conf.UDPPortRangeStart, conf.UDPPortRangeEnd); err != nil {
			return nil, err
		}
	}
	if len(conf.NodeIPs) != 0 {
		s.SetNAT1To1IPs(conf.NodeIPs, webrtc.ICECandidateTypeHost)
	}
	if conf.ICEDisconnectedTimeout != 0 || conf.ICEFailedTimeout != 0 || conf.ICEKeepaliveInterval != 0 {
		s.SetICETimeouts(conf.ICEDisconnectedTimeout, conf.ICEFailedTimeout, conf.ICEKeepaliveInterval)
	}
	if l != nil {
		s.LoggerFactory = clientlogger.NewLoggerFactory(l, pionLevel)
	}

	return &WebRTCConfig{
		Configuration: c,
		SettingEngine: s,
	}, nil
}
