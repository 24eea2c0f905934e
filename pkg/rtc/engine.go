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
	"strconv"

	"github.com/pion/interceptor"
	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v3"

	"github.com/livekit/whep-client/pkg/rtc/types"
)

// StereoOpusParameters replaces the default opus registration so that offers ask for stereo in both directions.
var StereoOpusParameters = webrtc.RTPCodecParameters{
	RTPCodecCapability: webrtc.RTPCodecCapability{
		MimeType:    webrtc.MimeTypeOpus,
		ClockRate:   48000,
		Channels:    2,
		SDPFmtpLine: "minptime=10;useinbandfec=1;stereo=1;sprop-stereo=1",
	},
	PayloadType: 111,
}

// PionEngine creates pion peer connections. Every connection gets its own
// media engine and interceptor registry.
type PionEngine struct {
	config *WebRTCConfig
}

var _ types.Engine = (*PionEngine)(nil)

func NewPionEngine(config *WebRTCConfig) *PionEngine {
	return &PionEngine{
		config: config,
	}
}

func (e *PionEngine) NewPeerConnection(iceServers []webrtc.ICEServer, audioCodecs []sdp.Codec) (types.PeerConnection, error) {
	me, err := createMediaEngine(audioCodecs)
	if err != nil {
		return nil, err
	}

	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(me, ir); err != nil {
		return nil, err
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(me),
		webrtc.WithSettingEngine(e.config.SettingEngine),
		webrtc.WithInterceptorRegistry(ir),
	)

	configuration := e.config.Configuration
	configuration.ICEServers = iceServers
	pc, err := api.NewPeerConnection(configuration)
	if err != nil {
		return nil, err
	}
	return &pionPeerConnection{pc: pc}, nil
}

// pion keeps the first registration of a mime type and payload type pair,
// so codecs registered before the defaults replace them.
func createMediaEngine(audioCodecs []sdp.Codec) (*webrtc.MediaEngine, error) {
	me := &webrtc.MediaEngine{}
	if err := me.RegisterCodec(StereoOpusParameters, webrtc.RTPCodecTypeAudio); err != nil {
		return nil, err
	}
	for _, codec := range audioCodecs {
		if err := me.RegisterCodec(audioCodecParameters(codec), webrtc.RTPCodecTypeAudio); err != nil {
			return nil, err
		}
	}
	if err := me.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}
	return me, nil
}

func audioCodecParameters(c sdp.Codec) webrtc.RTPCodecParameters {
	channels, _ := strconv.Atoi(c.EncodingParameters)
	return webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:    "audio/" + c.Name,
			ClockRate:   c.ClockRate,
			Channels:    uint16(channels),
			SDPFmtpLine: c.Fmtp,
		},
		PayloadType: webrtc.PayloadType(c.PayloadType),
	}
}

// --------------------------------------------

type pionPeerConnection struct {
	pc *webrtc.PeerConnection
}

func (p *pionPeerConnection) AddTransceiver(kind webrtc.RTPCodecType, direction webrtc.RTPTransceiverDirection) error {
	_, err := p.pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{Direction: direction})
	return err
}

func (p *pionPeerConnection) CreateOffer() (string, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return "", err
	}
	return offer.SDP, nil
}

func (p *pionPeerConnection) SetLocalDescription(sdp string) error {
	return p.pc.SetLocalDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  sdp,
	})
}

func (p *pionPeerConnection) SetRemoteDescription(sdp string) error {
	return p.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  sdp,
	})
}

func (p *pionPeerConnection) NegotiatedCodecs(kind webrtc.RTPCodecType) []webrtc.RTPCodecParameters {
	for _, tr := range p.pc.GetTransceivers() {
		if tr.Kind() != kind || tr.Receiver() == nil {
			continue
		}
		return tr.Receiver().GetParameters().Codecs
	}
	return nil
}

func (p *pionPeerConnection) OnICECandidate(f func(c *webrtc.ICECandidateInit)) {
	p.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			f(nil)
			return
		}
		init := c.ToJSON()
		f(&init)
	})
}

func (p *pionPeerConnection) OnICEConnectionStateChange(f func(state webrtc.ICEConnectionState)) {
	p.pc.OnICEConnectionStateChange(f)
}

func (p *pionPeerConnection) OnTrack(f func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)) {
	p.pc.OnTrack(f)
}

func (p *pionPeerConnection) Close() error {
	return p.pc.Close()
}
