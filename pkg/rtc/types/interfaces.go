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

package types

import (
	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v3"
)

// Engine creates peer connections on the local media transport engine.
type Engine interface {
	// audioCodecs are offered in addition to the engine defaults, at their own payload types
	NewPeerConnection(iceServers []webrtc.ICEServer, audioCodecs []sdp.Codec) (PeerConnection, error)
}

// PeerConnection is the part of a transport engine session the WHEP client drives.
// Descriptions are exchanged as raw SDP text: local descriptions are always offers,
// remote descriptions are always answers.
type PeerConnection interface {
	AddTransceiver(kind webrtc.RTPCodecType, direction webrtc.RTPTransceiverDirection) error
	CreateOffer() (string, error)
	SetLocalDescription(sdp string) error
	SetRemoteDescription(sdp string) error
	// codecs agreed with the remote side for receivers of the given kind, empty before an answer is applied
	NegotiatedCodecs(kind webrtc.RTPCodecType) []webrtc.RTPCodecParameters

	// a nil candidate signals the end of gathering
	OnICECandidate(f func(c *webrtc.ICECandidateInit))
	OnICEConnectionStateChange(f func(state webrtc.ICEConnectionState))
	OnTrack(f func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver))

	Close() error
}
