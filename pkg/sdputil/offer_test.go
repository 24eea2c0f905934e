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
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const twoMediaOffer = "m=audio 9 UDP/TLS/RTP/SAVPF 111\r\n" +
	"a=ice-ufrag:abc\r\n" +
	"a=ice-pwd:def\r\n" +
	"m=video 9 UDP/TLS/RTP/SAVPF 96\r\n"

func TestParseOffer(t *testing.T) {
	t.Run("credentials and medias", func(t *testing.T) {
		o := ParseOffer(twoMediaOffer)
		require.Equal(t, OfferData{
			ICEUfrag: "abc",
			ICEPwd:   "def",
			Medias:   []string{"audio 9 UDP/TLS/RTP/SAVPF 111", "video 9 UDP/TLS/RTP/SAVPF 96"},
		}, o)
	})

	t.Run("first occurrence wins", func(t *testing.T) {
		o := ParseOffer("a=ice-ufrag:first\r\na=ice-pwd:p1\r\nm=audio 9 X 0\r\na=ice-ufrag:second\r\na=ice-pwd:p2\r\n")
		require.Equal(t, "first", o.ICEUfrag)
		require.Equal(t, "p1", o.ICEPwd)
	})

	t.Run("empty input", func(t *testing.T) {
		o := ParseOffer("")
		require.Empty(t, o.ICEUfrag)
		require.Empty(t, o.ICEPwd)
		require.Empty(t, o.Medias)
	})

	t.Run("bare line feeds", func(t *testing.T) {
		o := ParseOffer("a=ice-ufrag:u\na=ice-pwd:p\nm=video 9 X 96\n")
		require.Equal(t, "u", o.ICEUfrag)
		require.Equal(t, []string{"video 9 X 96"}, o.Medias)
	})
}

func TestGenerateSDPFragment(t *testing.T) {
	offer := ParseOffer(twoMediaOffer)

	t.Run("only sections with candidates", func(t *testing.T) {
		frag := GenerateSDPFragment(offer, []ICECandidate{
			{SDPMLineIndex: 1, Candidate: "candidate:1 1 UDP 2122260223 192.168.1.2 50000 typ host"},
		})
		require.Equal(t, "a=ice-ufrag:abc\r\n"+
			"a=ice-pwd:def\r\n"+
			"m=video 9 UDP/TLS/RTP/SAVPF 96\r\n"+
			"a=mid:1\r\n"+
			"a=candidate:1 1 UDP 2122260223 192.168.1.2 50000 typ host\r\n", frag)
		require.NotContains(t, frag, "m=audio")
	})

	t.Run("ascending index, arrival order within a section", func(t *testing.T) {
		frag := GenerateSDPFragment(offer, []ICECandidate{
			{SDPMLineIndex: 1, Candidate: "candidate:v1"},
			{SDPMLineIndex: 0, Candidate: "candidate:a1"},
			{SDPMLineIndex: 1, Candidate: "candidate:v2"},
		})
		audio := strings.Index(frag, "m=audio")
		video := strings.Index(frag, "m=video")
		require.True(t, audio >= 0 && video > audio)
		require.Less(t, strings.Index(frag, "a=candidate:v1"), strings.Index(frag, "a=candidate:v2"))
		require.Greater(t, strings.Index(frag, "a=candidate:v1"), video)
	})

	t.Run("out of range index dropped", func(t *testing.T) {
		frag := GenerateSDPFragment(offer, []ICECandidate{{SDPMLineIndex: 5, Candidate: "candidate:x"}})
		require.Equal(t, "a=ice-ufrag:abc\r\na=ice-pwd:def\r\n", frag)
	})

	t.Run("missing credentials degrade to empty lines", func(t *testing.T) {
		frag := GenerateSDPFragment(ParseOffer("m=video 9 X 96\r\n"), []ICECandidate{{Candidate: "candidate:x"}})
		require.True(t, strings.HasPrefix(frag, "a=ice-ufrag:\r\na=ice-pwd:\r\n"))
	})
}

func TestFragmentRoundTrip(t *testing.T) {
	for n := 1; n <= 4; n++ {
		var sb strings.Builder
		sb.WriteString("a=ice-ufrag:uf\r\na=ice-pwd:pw\r\n")
		for i := 0; i < n; i++ {
			sb.WriteString(fmt.Sprintf("m=media%d 9 UDP/TLS/RTP/SAVPF %d\r\n", i, 96+i))
		}
		offer := ParseOffer(sb.String())
		require.Equal(t, n, offer.NumMedias())

		// candidates on every even section
		var candidates []ICECandidate
		for i := 0; i < n; i += 2 {
			candidates = append(candidates, ICECandidate{SDPMLineIndex: uint16(i), Candidate: fmt.Sprintf("candidate:%d", i)})
		}

		parsed := ParseOffer(GenerateSDPFragment(offer, candidates))
		require.Equal(t, offer.ICEUfrag, parsed.ICEUfrag)
		require.Equal(t, offer.ICEPwd, parsed.ICEPwd)

		var expected []string
		for i := 0; i < n; i += 2 {
			// fixed media indexing: medias[i] pairs with sdpMLineIndex i
			expected = append(expected, offer.Medias[i])
		}
		require.Equal(t, expected, parsed.Medias)
	}
}
