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
	"strconv"
	"strings"
)

const (
	iceUfragPrefix = "a=ice-ufrag:"
	icePwdPrefix   = "a=ice-pwd:"
	mediaPrefix    = "m="
	crlf           = "\r\n"
)

// OfferData is the subset of a local offer needed to build trickle fragments.
// Medias keeps the original m= ordering, Medias[i] is the section with
// media line index i.
type OfferData struct {
	ICEUfrag string
	ICEPwd   string
	Medias   []string
}

// ICECandidate is a locally gathered candidate, as produced by the engine.
type ICECandidate struct {
	SDPMLineIndex uint16
	Candidate     string
}

// ParseOffer extracts ICE credentials and media lines from a session description.
// Missing values are left empty, it never fails.
func ParseOffer(offer string) OfferData {
	var ret OfferData
	for _, line := range splitLines(offer) {
		switch {
		case strings.HasPrefix(line, mediaPrefix):
			ret.Medias = append(ret.Medias, line[len(mediaPrefix):])
		case ret.ICEUfrag == "" && strings.HasPrefix(line, iceUfragPrefix):
			ret.ICEUfrag = line[len(iceUfragPrefix):]
		case ret.ICEPwd == "" && strings.HasPrefix(line, icePwdPrefix):
			ret.ICEPwd = line[len(icePwdPrefix):]
		}
	}
	return ret
}

// NumMedias returns the number of media sections in the offer.
func (o OfferData) NumMedias() int {
	return len(o.Medias)
}

// GenerateSDPFragment builds an application/trickle-ice-sdpfrag body.
//
// Session level credentials come first, then one block per media section that
// has candidates, in ascending media line index order. Sections without
// candidates are left out, candidates pointing past the last section are dropped.
func GenerateSDPFragment(offerData OfferData, candidates []ICECandidate) string {
	byMedia := make(map[uint16][]ICECandidate)
	for _, c := range candidates {
		byMedia[c.SDPMLineIndex] = append(byMedia[c.SDPMLineIndex], c)
	}

	var frag strings.Builder
	frag.WriteString(iceUfragPrefix + offerData.ICEUfrag + crlf)
	frag.WriteString(icePwdPrefix + offerData.ICEPwd + crlf)

	for mid, media := range offerData.Medias {
		grouped, ok := byMedia[uint16(mid)]
		if !ok {
			continue
		}

		frag.WriteString(mediaPrefix + media + crlf)
		frag.WriteString("a=mid:" + strconv.Itoa(mid) + crlf)
		for _, c := range grouped {
			frag.WriteString("a=" + c.Candidate + crlf)
		}
	}

	return frag.String()
}

// splitLines splits on CRLF, tolerating bare LF line endings.
func splitLines(s string) []string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
