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
	"strconv"
	"strings"

	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v3"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/whep-client/pkg/rtc/types"
	"github.com/livekit/whep-client/pkg/sdputil"
)

var (
	ErrCodecAdvertised    = errors.New("codec advertised by default")
	ErrCodecNotNegotiated = errors.New("codec not negotiated")
)

// ProbeCodec reports whether the engine can receive codec even though it does not offer it by default.
// Failures and timeouts count as unsupported.
func ProbeCodec(ctx context.Context, engine types.Engine, codec sdp.Codec, l logger.Logger) bool {
	if ctx.Err() != nil {
		return false
	}

	res := make(chan error, 1)
	go func() {
		res <- probeCodec(engine, codec)
	}()

	var err error
	select {
	case err = <-res:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		l.Debugw("codec probe failed", "codec", sdputil.CodecString(codec), "error", err)
		return false
	}
	return true
}

// ProbeNonAdvertisedCodecs runs every probe concurrently and returns the supported codecs in probe order.
func ProbeNonAdvertisedCodecs(ctx context.Context, engine types.Engine, l logger.Logger) sdputil.NonAdvertisedCodecSet {
	supported := make([]bool, len(sdputil.ProbedCodecs))

	var g errgroup.Group
	for i, codec := range sdputil.ProbedCodecs {
		i, codec := i, codec
		g.Go(func() error {
			supported[i] = ProbeCodec(ctx, engine, codec, l)
			return nil
		})
	}
	_ = g.Wait()

	set := sdputil.NonAdvertisedCodecSet{}
	for i, codec := range sdputil.ProbedCodecs {
		if supported[i] {
			set = append(set, codec)
		}
	}
	l.Debugw("non advertised codecs", "codecs", set.String())
	return set
}

func probeCodec(engine types.Engine, codec sdp.Codec) error {
	candidate := codec
	candidate.PayloadType = sdputil.ProbePayloadType

	pc, err := engine.NewPeerConnection(nil, []sdp.Codec{candidate})
	if err != nil {
		return err
	}
	defer func() {
		_ = pc.Close()
	}()

	if err = pc.AddTransceiver(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverDirectionRecvonly); err != nil {
		return err
	}

	offer, err := pc.CreateOffer()
	if err != nil {
		return err
	}

	pts, err := sdputil.AdvertisedPayloadTypes(offer, codec)
	if err != nil {
		return errors.Wrap(err, "could not parse probe offer")
	}
	for _, pt := range pts {
		if pt != candidate.PayloadType {
			return ErrCodecAdvertised
		}
	}

	if err = pc.SetLocalDescription(offer); err != nil {
		return err
	}
	if err = pc.SetRemoteDescription(probeAnswer(candidate)); err != nil {
		return err
	}

	for _, negotiated := range pc.NegotiatedCodecs(webrtc.RTPCodecTypeAudio) {
		if sdputil.SameCodec(CodecFromParameters(negotiated), codec) {
			return nil
		}
	}
	return ErrCodecNotNegotiated
}

// canned sendonly answer accepting only the probed codec
func probeAnswer(codec sdp.Codec) string {
	pt := strconv.Itoa(int(codec.PayloadType))
	lines := []string{
		"v=0",
		"o=- 6539324223450680508 0 IN IP4 0.0.0.0",
		"s=-",
		"t=0 0",
		"a=fingerprint:sha-256 0D:9F:78:15:42:B5:4B:E6:E2:94:3E:5B:37:78:E1:4B:54:59:A3:36:3A:E5:05:EB:27:EE:8F:D2:2D:41:29:25",
		"m=audio 9 UDP/TLS/RTP/SAVPF " + pt,
		"c=IN IP4 0.0.0.0",
		"a=ice-pwd:7c3bf4770007e7432ee4ea4d697db675",
		"a=ice-ufrag:29e036dc",
		"a=mid:0",
		"a=setup:active",
		"a=sendonly",
		"a=rtcp-mux",
		"a=rtpmap:" + pt + " " + sdputil.CodecString(codec),
	}
	if codec.Fmtp != "" {
		lines = append(lines, "a=fmtp:"+pt+" "+codec.Fmtp)
	}
	return strings.Join(lines, "\r\n") + "\r\n"
}

// CodecFromParameters converts negotiated engine parameters into an SDP codec descriptor.
func CodecFromParameters(p webrtc.RTPCodecParameters) sdp.Codec {
	name := p.MimeType
	if _, after, found := strings.Cut(name, "/"); found {
		name = after
	}

	c := sdp.Codec{
		PayloadType: uint8(p.PayloadType),
		Name:        name,
		ClockRate:   p.ClockRate,
		Fmtp:        p.SDPFmtpLine,
	}
	if p.Channels > 0 {
		c.EncodingParameters = strconv.Itoa(int(p.Channels))
	}
	return c
}
