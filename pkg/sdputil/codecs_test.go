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

package sdputil

import (
	"strings"
	"testing"

	"github.com/pion/sdp/v3"
	"github.com/stretchr/testify/require"
)

const browserOffer = "v=0\r\n" +
	"o=- 4215775240449105457 2 IN IP4 127.0.0.1\r\n" +
	"s=-\r\n" +
	"t=0 0\r\n" +
	"a=group:BUNDLE 0 1\r\n" +
	"m=video 9 UDP/TLS/RTP/SAVPF 96 97\r\n" +
	"c=IN IP4 0.0.0.0\r\n" +
	"a=ice-ufrag:Vd3X\r\n" +
	"a=ice-pwd:kcB7xKh3cdzWrN4Sx6TYgAtB\r\n" +
	"a=mid:0\r\n" +
	"a=sendrecv\r\n" +
	"a=rtpmap:96 VP8/90000\r\n" +
	"a=rtpmap:97 rtx/90000\r\n" +
	"a=fmtp:97 apt=96\r\n" +
	"m=audio 9 UDP/TLS/RTP/SAVPF 111 0 8\r\n" +
	"c=IN IP4 0.0.0.0\r\n" +
	"a=ice-ufrag:Vd3X\r\n" +
	"a=ice-pwd:kcB7xKh3cdzWrN4Sx6TYgAtB\r\n" +
	"a=mid:1\r\n" +
	"a=sendrecv\r\n" +
	"a=rtpmap:111 opus/48000/2\r\n" +
	"a=fmtp:111 minptime=10;useinbandfec=1\r\n" +
	"a=rtpmap:0 PCMU/8000\r\n" +
	"a=rtpmap:8 PCMA/8000\r\n"

var allCodecs = NonAdvertisedCodecSet{StereoPCMA, MultichannelOpus, StereoL16}

func TestEnableStereoOpus(t *testing.T) {
	section := "audio 9 UDP/TLS/RTP/SAVPF 111\r\na=rtpmap:111 opus/48000/2\r\na=fmtp:111 minptime=10;useinbandfec=1\r\n"

	once := EnableStereoOpus(section)
	require.Contains(t, once, "a=fmtp:111 minptime=10;useinbandfec=1;stereo=1;sprop-stereo=1\r\n")
	require.Equal(t, once, EnableStereoOpus(once))

	t.Run("existing sprop-stereo only adds stereo", func(t *testing.T) {
		out := EnableStereoOpus("a=rtpmap:111 opus/48000/2\r\na=fmtp:111 sprop-stereo=1")
		require.Equal(t, "a=rtpmap:111 opus/48000/2\r\na=fmtp:111 sprop-stereo=1;stereo=1", out)
	})

	t.Run("no opus is untouched", func(t *testing.T) {
		in := "a=rtpmap:0 PCMU/8000\r\na=fmtp:0 foo=bar"
		require.Equal(t, in, EnableStereoOpus(in))
	})

	t.Run("multiopus is not the default opus", func(t *testing.T) {
		in := "a=rtpmap:112 multiopus/48000/3\r\na=fmtp:112 channel_mapping=0,2,1\r\na=rtpmap:111 opus/48000/2\r\na=fmtp:111 minptime=10"
		out := EnableStereoOpus(in)
		require.Contains(t, out, "a=fmtp:112 channel_mapping=0,2,1\r\n")
		require.Contains(t, out, "a=fmtp:111 minptime=10;stereo=1;sprop-stereo=1")
	})
}

func TestEditOffer(t *testing.T) {
	edited := EditOffer(browserOffer, allCodecs)

	require.Contains(t, edited, "m=audio 9 UDP/TLS/RTP/SAVPF 111 0 8 118 119 112 113 114 115 116 117 120 121 122\r\n")
	require.Contains(t, edited, "a=rtpmap:118 PCMU/8000/2\r\n")
	require.Contains(t, edited, "a=rtpmap:119 PCMA/8000/2\r\n")
	require.Contains(t, edited, "a=rtpmap:115 multiopus/48000/6\r\na=fmtp:115 channel_mapping=0,4,1,2,3,5;num_streams=4;coupled_streams=2\r\na=rtcp-fb:115 transport-cc\r\n")
	require.Contains(t, edited, "a=rtpmap:122 L16/48000/2\r\n")
	require.Contains(t, edited, "a=fmtp:111 minptime=10;useinbandfec=1;stereo=1;sprop-stereo=1\r\n")
	require.True(t, strings.HasSuffix(edited, "a=rtcp-fb:122 transport-cc\r\n"))

	// video section is left alone
	videoStart := strings.Index(edited, "m=video")
	audioStart := strings.Index(edited, "m=audio")
	require.Equal(t, browserOffer[videoStart:audioStart], edited[videoStart:audioStart])

	// the result is still valid SDP
	var parsed sdp.SessionDescription
	require.NoError(t, parsed.Unmarshal([]byte(edited)))
	codec, err := parsed.GetCodecForPayloadType(115)
	require.NoError(t, err)
	require.Equal(t, "multiopus", codec.Name)

	t.Run("idempotent", func(t *testing.T) {
		twice := EditOffer(edited, allCodecs)
		require.Equal(t, edited, twice)
		for _, pt := range []string{"112", "113", "114", "115", "116", "117", "118", "119", "120", "121", "122"} {
			require.Equal(t, 1, strings.Count(twice, "a=rtpmap:"+pt+" "), pt)
			require.Equal(t, 1, strings.Count(twice, "a=rtcp-fb:"+pt+" "), pt)
		}
		require.Equal(t, 1, strings.Count(twice, "stereo=1;sprop-stereo=1"))
	})

	t.Run("only triggered families", func(t *testing.T) {
		out := EditOffer(browserOffer, NonAdvertisedCodecSet{StereoL16})
		require.Contains(t, out, "a=rtpmap:120 L16/8000/2")
		require.NotContains(t, out, "a=rtpmap:118")
		require.NotContains(t, out, "multiopus")
	})

	t.Run("no audio section", func(t *testing.T) {
		in := "v=0\r\nm=video 9 UDP/TLS/RTP/SAVPF 96\r\na=rtpmap:96 VP8/90000\r\n"
		require.Equal(t, in, EditOffer(in, allCodecs))
	})
}

func TestNonAdvertisedCodecSet(t *testing.T) {
	set := NonAdvertisedCodecSet{StereoPCMA}
	require.True(t, set.Contains(sdp.Codec{Name: "pcma", ClockRate: 8000, EncodingParameters: "2"}))
	require.False(t, set.Contains(sdp.Codec{Name: "PCMA", ClockRate: 8000}))
	require.Equal(t, "[PCMA/8000/2]", set.String())
	require.Equal(t, "multiopus/48000/6", CodecString(MultichannelOpus))
}

func TestAddAudioCodecs(t *testing.T) {
	out := AddAudioCodecs(browserOffer, []sdp.Codec{{PayloadType: ProbePayloadType, Name: "PCMA", ClockRate: 8000, EncodingParameters: "2"}})
	require.Contains(t, out, "m=audio 9 UDP/TLS/RTP/SAVPF 111 0 8 118\r\n")
	require.Contains(t, out, "a=rtpmap:118 PCMA/8000/2\r\n")
	require.NotContains(t, out, "stereo=1")
}

func TestAdvertisedPayloadTypes(t *testing.T) {
	pts, err := AdvertisedPayloadTypes(browserOffer, sdp.Codec{Name: "opus", ClockRate: 48000, EncodingParameters: "2"})
	require.NoError(t, err)
	require.Equal(t, []uint8{111}, pts)

	pts, err = AdvertisedPayloadTypes(browserOffer, StereoPCMA)
	require.NoError(t, err)
	require.Empty(t, pts)

	pts, err = AdvertisedPayloadTypes(EditOffer(browserOffer, NonAdvertisedCodecSet{StereoPCMA}), StereoPCMA)
	require.NoError(t, err)
	require.Equal(t, []uint8{119}, pts)

	_, err = AdvertisedPayloadTypes("not sdp", StereoPCMA)
	require.Error(t, err)
}

func TestReservedCodecs(t *testing.T) {
	require.Empty(t, ReservedCodecs(nil))

	reserved := ReservedCodecs(NonAdvertisedCodecSet{StereoL16, StereoPCMA})
	var pts []uint8
	for _, c := range reserved {
		pts = append(pts, c.PayloadType)
	}
	require.Equal(t, []uint8{118, 119, 120, 121, 122}, pts)

	// the reserved codecs are exactly what EditOffer adds
	edited := EditOffer(browserOffer, NonAdvertisedCodecSet{StereoL16, StereoPCMA})
	require.Equal(t, edited, AddAudioCodecs(EditOffer(browserOffer, nil), reserved))
}
