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
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/require"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/whep-client/pkg/rtc/types/typesfakes"
	"github.com/livekit/whep-client/pkg/sdputil"
)

const probeOffer = "v=0\r\n" +
	"o=- 1 2 IN IP4 127.0.0.1\r\n" +
	"s=-\r\n" +
	"t=0 0\r\n" +
	"m=audio 9 UDP/TLS/RTP/SAVPF 111 0 8\r\n" +
	"c=IN IP4 0.0.0.0\r\n" +
	"a=mid:0\r\n" +
	"a=recvonly\r\n" +
	"a=rtpmap:111 opus/48000/2\r\n" +
	"a=rtpmap:0 PCMU/8000\r\n" +
	"a=rtpmap:8 PCMA/8000\r\n"

// negotiates every codec of the answer whose name is in accepted
func acceptCodecs(accepted ...string) func(local, remote string) map[webrtc.RTPCodecType][]webrtc.RTPCodecParameters {
	return func(_, remote string) map[webrtc.RTPCodecType][]webrtc.RTPCodecParameters {
		var parsed sdp.SessionDescription
		if err := parsed.Unmarshal([]byte(remote)); err != nil {
			return nil
		}

		var codecs []webrtc.RTPCodecParameters
		for _, md := range parsed.MediaDescriptions {
			for _, format := range md.MediaName.Formats {
				pt, _ := strconv.Atoi(format)
				c, err := parsed.GetCodecForPayloadType(uint8(pt))
				if err != nil {
					continue
				}
				for _, name := range accepted {
					if !strings.EqualFold(name, c.Name) {
						continue
					}
					channels, _ := strconv.Atoi(c.EncodingParameters)
					codecs = append(codecs, webrtc.RTPCodecParameters{
						RTPCodecCapability: webrtc.RTPCodecCapability{
							MimeType:    "audio/" + c.Name,
							ClockRate:   c.ClockRate,
							Channels:    uint16(channels),
							SDPFmtpLine: c.Fmtp,
						},
						PayloadType: webrtc.PayloadType(c.PayloadType),
					})
				}
			}
		}
		return map[webrtc.RTPCodecType][]webrtc.RTPCodecParameters{webrtc.RTPCodecTypeAudio: codecs}
	}
}

func TestProbeCodec(t *testing.T) {
	ctx := context.Background()
	l := logger.GetLogger()

	t.Run("negotiated codec is supported", func(t *testing.T) {
		engine := &typesfakes.FakeEngine{
			OfferSDP: probeOffer,
			Setup: func(pc *typesfakes.FakePeerConnection) {
				pc.NegotiateFunc = acceptCodecs("PCMA")
			},
		}
		require.True(t, ProbeCodec(ctx, engine, sdputil.StereoPCMA, l))
		require.Equal(t, []sdp.Codec{{PayloadType: 118, Name: "PCMA", ClockRate: 8000, EncodingParameters: "2"}}, engine.AudioCodecs(0))

		pc := engine.LastPeerConnection()
		require.Equal(t, []typesfakes.FakeTransceiver{{Kind: webrtc.RTPCodecTypeAudio, Direction: webrtc.RTPTransceiverDirectionRecvonly}}, pc.Transceivers())
		require.Contains(t, pc.LocalDescription(), "m=audio 9 UDP/TLS/RTP/SAVPF 111 0 8 118\r\n")
		require.Contains(t, pc.LocalDescription(), "a=rtpmap:118 PCMA/8000/2\r\n")
		require.Contains(t, pc.RemoteDescription(), "a=rtpmap:118 PCMA/8000/2\r\n")
		require.Contains(t, pc.RemoteDescription(), "a=sendonly\r\n")
		require.Equal(t, 1, pc.CloseCount())
	})

	t.Run("fmtp is carried into the probe", func(t *testing.T) {
		engine := &typesfakes.FakeEngine{
			OfferSDP: probeOffer,
			Setup: func(pc *typesfakes.FakePeerConnection) {
				pc.NegotiateFunc = acceptCodecs("multiopus")
			},
		}
		require.True(t, ProbeCodec(ctx, engine, sdputil.MultichannelOpus, l))
		require.Contains(t, engine.LastPeerConnection().RemoteDescription(), "a=fmtp:118 channel_mapping=0,4,1,2,3,5;num_streams=4;coupled_streams=2\r\n")
	})

	t.Run("natively advertised codec is not reported", func(t *testing.T) {
		engine := &typesfakes.FakeEngine{
			OfferSDP: strings.Replace(probeOffer, "a=rtpmap:8 PCMA/8000\r\n", "a=rtpmap:8 PCMA/8000/2\r\n", 1),
			Setup: func(pc *typesfakes.FakePeerConnection) {
				pc.NegotiateFunc = acceptCodecs("PCMA")
			},
		}
		require.False(t, ProbeCodec(ctx, engine, sdputil.StereoPCMA, l))

		pc := engine.LastPeerConnection()
		require.Empty(t, pc.LocalDescription())
		require.Equal(t, 1, pc.CloseCount())
	})

	t.Run("codec not negotiated", func(t *testing.T) {
		engine := &typesfakes.FakeEngine{
			OfferSDP: probeOffer,
			Setup: func(pc *typesfakes.FakePeerConnection) {
				pc.NegotiateFunc = acceptCodecs("opus")
			},
		}
		require.False(t, ProbeCodec(ctx, engine, sdputil.StereoL16, l))
		require.Equal(t, 1, engine.LastPeerConnection().CloseCount())
	})

	t.Run("engine error", func(t *testing.T) {
		engine := &typesfakes.FakeEngine{
			OfferSDP: probeOffer,
			Setup: func(pc *typesfakes.FakePeerConnection) {
				pc.SetRemoteDescriptionErr = errors.New("rejected")
				pc.NegotiateFunc = acceptCodecs("PCMA")
			},
		}
		require.False(t, ProbeCodec(ctx, engine, sdputil.StereoPCMA, l))
		require.Equal(t, 1, engine.LastPeerConnection().CloseCount())

		engine = &typesfakes.FakeEngine{NewPeerConnectionErr: errors.New("no engine")}
		require.False(t, ProbeCodec(ctx, engine, sdputil.StereoPCMA, l))
	})

	t.Run("unparsable offer", func(t *testing.T) {
		engine := &typesfakes.FakeEngine{OfferSDP: "garbage"}
		require.False(t, ProbeCodec(ctx, engine, sdputil.StereoPCMA, l))
		require.Equal(t, 1, engine.LastPeerConnection().CloseCount())
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		engine := &typesfakes.FakeEngine{OfferSDP: probeOffer}
		require.False(t, ProbeCodec(cctx, engine, sdputil.StereoPCMA, l))
		require.Equal(t, 0, engine.PeerConnectionCount())
	})
}

func TestProbeNonAdvertisedCodecs(t *testing.T) {
	engine := &typesfakes.FakeEngine{
		OfferSDP: probeOffer,
		Setup: func(pc *typesfakes.FakePeerConnection) {
			pc.NegotiateFunc = acceptCodecs("L16", "PCMA")
		},
	}

	set := ProbeNonAdvertisedCodecs(context.Background(), engine, logger.GetLogger())
	require.Equal(t, sdputil.NonAdvertisedCodecSet{sdputil.StereoPCMA, sdputil.StereoL16}, set)

	require.Equal(t, len(sdputil.ProbedCodecs), engine.PeerConnectionCount())
	for _, pc := range engine.PeerConnections() {
		require.Equal(t, 1, pc.CloseCount())
	}
}

func TestCodecFromParameters(t *testing.T) {
	c := CodecFromParameters(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypePCMA, ClockRate: 8000},
		PayloadType:        8,
	})
	require.Equal(t, sdp.Codec{PayloadType: 8, Name: "PCMA", ClockRate: 8000}, c)
	require.True(t, sdputil.SameCodec(c, sdp.Codec{Name: "pcma", ClockRate: 8000, EncodingParameters: "1"}))
}
