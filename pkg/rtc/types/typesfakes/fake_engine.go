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

package typesfakes

import (
	"errors"
	"sync"

	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v3"

	"github.com/livekit/whep-client/pkg/rtc/types"
	"github.com/livekit/whep-client/pkg/sdputil"
)

var ErrOfferModified = errors.New("new sdp does not match previous offer")

type FakeEngine struct {
	mu sync.Mutex

	// base of the offer returned by CreateOffer of every created peer connection,
	// opus gets stereo and the registered audio codecs are appended
	OfferSDP string
	// returned by NewPeerConnection when set
	NewPeerConnectionErr error
	// called on every created peer connection before it is returned
	Setup func(pc *FakePeerConnection)

	created     []*FakePeerConnection
	iceServers  [][]webrtc.ICEServer
	audioCodecs [][]sdp.Codec
}

func (e *FakeEngine) NewPeerConnection(iceServers []webrtc.ICEServer, audioCodecs []sdp.Codec) (types.PeerConnection, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.iceServers = append(e.iceServers, iceServers)
	e.audioCodecs = append(e.audioCodecs, audioCodecs)
	if e.NewPeerConnectionErr != nil {
		return nil, e.NewPeerConnectionErr
	}

	pc := &FakePeerConnection{
		Offer:  sdputil.AddAudioCodecs(sdputil.EditOffer(e.OfferSDP, nil), audioCodecs),
		codecs: make(map[webrtc.RTPCodecType][]webrtc.RTPCodecParameters),
	}
	if e.Setup != nil {
		e.Setup(pc)
	}
	e.created = append(e.created, pc)
	return pc, nil
}

func (e *FakeEngine) PeerConnections() []*FakePeerConnection {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*FakePeerConnection(nil), e.created...)
}

func (e *FakeEngine) PeerConnectionCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.created)
}

func (e *FakeEngine) LastPeerConnection() *FakePeerConnection {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.created) == 0 {
		return nil
	}
	return e.created[len(e.created)-1]
}

func (e *FakeEngine) ICEServers(i int) []webrtc.ICEServer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.iceServers[i]
}

func (e *FakeEngine) AudioCodecs(i int) []sdp.Codec {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.audioCodecs[i]
}

// --------------------------------------------

type FakeTransceiver struct {
	Kind      webrtc.RTPCodecType
	Direction webrtc.RTPTransceiverDirection
}

type FakePeerConnection struct {
	mu sync.Mutex

	Offer                   string
	CreateOfferErr          error
	SetLocalDescriptionErr  error
	SetRemoteDescriptionErr error
	// when set, replaces the codecs reported after SetRemoteDescription
	NegotiateFunc func(local, remote string) map[webrtc.RTPCodecType][]webrtc.RTPCodecParameters

	transceivers []FakeTransceiver
	offered      string
	local        string
	remote       string
	codecs       map[webrtc.RTPCodecType][]webrtc.RTPCodecParameters
	closeCount   int

	onICECandidate func(c *webrtc.ICECandidateInit)
	onICEState     func(state webrtc.ICEConnectionState)
	onTrack        func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)
}

func (p *FakePeerConnection) AddTransceiver(kind webrtc.RTPCodecType, direction webrtc.RTPTransceiverDirection) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transceivers = append(p.transceivers, FakeTransceiver{Kind: kind, Direction: direction})
	return nil
}

func (p *FakePeerConnection) CreateOffer() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.CreateOfferErr != nil {
		return "", p.CreateOfferErr
	}
	p.offered = p.Offer
	return p.Offer, nil
}

func (p *FakePeerConnection) SetLocalDescription(desc string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.SetLocalDescriptionErr != nil {
		return p.SetLocalDescriptionErr
	}
	if desc != p.offered {
		return ErrOfferModified
	}
	p.local = desc
	return nil
}

func (p *FakePeerConnection) SetRemoteDescription(desc string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.SetRemoteDescriptionErr != nil {
		return p.SetRemoteDescriptionErr
	}
	p.remote = desc
	if p.NegotiateFunc != nil {
		p.codecs = p.NegotiateFunc(p.local, desc)
	}
	return nil
}

func (p *FakePeerConnection) NegotiatedCodecs(kind webrtc.RTPCodecType) []webrtc.RTPCodecParameters {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.codecs[kind]
}

func (p *FakePeerConnection) OnICECandidate(f func(c *webrtc.ICECandidateInit)) {
	p.mu.Lock()
	p.onICECandidate = f
	p.mu.Unlock()
}

func (p *FakePeerConnection) OnICEConnectionStateChange(f func(state webrtc.ICEConnectionState)) {
	p.mu.Lock()
	p.onICEState = f
	p.mu.Unlock()
}

func (p *FakePeerConnection) OnTrack(f func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)) {
	p.mu.Lock()
	p.onTrack = f
	p.mu.Unlock()
}

func (p *FakePeerConnection) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeCount++
	return nil
}

// test controls

func (p *FakePeerConnection) Transceivers() []FakeTransceiver {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]FakeTransceiver(nil), p.transceivers...)
}

func (p *FakePeerConnection) LocalDescription() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.local
}

func (p *FakePeerConnection) RemoteDescription() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.remote
}

func (p *FakePeerConnection) CloseCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeCount
}

func (p *FakePeerConnection) IsClosed() bool {
	return p.CloseCount() > 0
}

func (p *FakePeerConnection) EmitICECandidate(mLineIndex uint16, candidate string) {
	p.mu.Lock()
	f := p.onICECandidate
	p.mu.Unlock()
	if f != nil {
		f(&webrtc.ICECandidateInit{Candidate: candidate, SDPMLineIndex: &mLineIndex})
	}
}

func (p *FakePeerConnection) EmitEndOfCandidates() {
	p.mu.Lock()
	f := p.onICECandidate
	p.mu.Unlock()
	if f != nil {
		f(nil)
	}
}

func (p *FakePeerConnection) EmitICEConnectionState(state webrtc.ICEConnectionState) {
	p.mu.Lock()
	f := p.onICEState
	p.mu.Unlock()
	if f != nil {
		f(state)
	}
}

func (p *FakePeerConnection) EmitTrack() {
	p.mu.Lock()
	f := p.onTrack
	p.mu.Unlock()
	if f != nil {
		f(nil, nil)
	}
}
