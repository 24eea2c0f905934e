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
	"strconv"
	"strings"

	"github.com/pion/sdp/v3"
)

const (
	rtpmapPrefix = "a=rtpmap:"
	fmtpPrefix   = "a=fmtp:"

	// payload type used by the capability probe
	ProbePayloadType uint8 = 118
)

var (
	StereoPCMA = sdp.Codec{
		Name:               "PCMA",
		ClockRate:          8000,
		EncodingParameters: "2",
	}
	MultichannelOpus = sdp.Codec{
		Name:               "multiopus",
		ClockRate:          48000,
		EncodingParameters: "6",
		Fmtp:               "channel_mapping=0,4,1,2,3,5;num_streams=4;coupled_streams=2",
	}
	StereoL16 = sdp.Codec{
		Name:               "L16",
		ClockRate:          48000,
		EncodingParameters: "2",
	}

	// ProbedCodecs are the codecs checked at startup, in probe order.
	ProbedCodecs = []sdp.Codec{StereoPCMA, MultichannelOpus, StereoL16}
)

type reservedGroup struct {
	trigger sdp.Codec
	codecs  []sdp.Codec
}

// payload types are fixed per codec family so that edited offers stay stable across restarts
var reservedGroups = []reservedGroup{
	{
		trigger: StereoPCMA,
		codecs: []sdp.Codec{
			{PayloadType: 118, Name: "PCMU", ClockRate: 8000, EncodingParameters: "2"},
			{PayloadType: 119, Name: "PCMA", ClockRate: 8000, EncodingParameters: "2"},
		},
	},
	{
		trigger: MultichannelOpus,
		codecs: []sdp.Codec{
			{PayloadType: 112, Name: "multiopus", ClockRate: 48000, EncodingParameters: "3", Fmtp: "channel_mapping=0,2,1;num_streams=2;coupled_streams=1"},
			{PayloadType: 113, Name: "multiopus", ClockRate: 48000, EncodingParameters: "4", Fmtp: "channel_mapping=0,1,2,3;num_streams=2;coupled_streams=2"},
			{PayloadType: 114, Name: "multiopus", ClockRate: 48000, EncodingParameters: "5", Fmtp: "channel_mapping=0,4,1,2,3;num_streams=3;coupled_streams=2"},
			{PayloadType: 115, Name: "multiopus", ClockRate: 48000, EncodingParameters: "6", Fmtp: "channel_mapping=0,4,1,2,3,5;num_streams=4;coupled_streams=2"},
			{PayloadType: 116, Name: "multiopus", ClockRate: 48000, EncodingParameters: "7", Fmtp: "channel_mapping=0,4,1,2,3,5,6;num_streams=4;coupled_streams=4"},
			{PayloadType: 117, Name: "multiopus", ClockRate: 48000, EncodingParameters: "8", Fmtp: "channel_mapping=0,6,1,4,5,2,3,7;num_streams=5;coupled_streams=4"},
		},
	},
	{
		trigger: StereoL16,
		codecs: []sdp.Codec{
			{PayloadType: 120, Name: "L16", ClockRate: 8000, EncodingParameters: "2"},
			{PayloadType: 121, Name: "L16", ClockRate: 16000, EncodingParameters: "2"},
			{PayloadType: 122, Name: "L16", ClockRate: 48000, EncodingParameters: "2"},
		},
	},
}

// NonAdvertisedCodecSet holds the codecs the local engine can receive but does not offer by default.
type NonAdvertisedCodecSet []sdp.Codec

func (s NonAdvertisedCodecSet) Contains(codec sdp.Codec) bool {
	for _, c := range s {
		if SameCodec(c, codec) {
			return true
		}
	}
	return false
}

func (s NonAdvertisedCodecSet) String() string {
	names := make([]string, 0, len(s))
	for _, c := range s {
		names = append(names, CodecString(c))
	}
	return "[" + strings.Join(names, " ") + "]"
}

// SameCodec compares name, clock rate and channel count, ignoring payload type and fmtp.
func SameCodec(a, b sdp.Codec) bool {
	return strings.EqualFold(a.Name, b.Name) &&
		a.ClockRate == b.ClockRate &&
		channels(a) == channels(b)
}

// CodecString renders a codec the way it appears in an rtpmap attribute, e.g. PCMA/8000/2.
func CodecString(c sdp.Codec) string {
	s := fmt.Sprintf("%s/%d", c.Name, c.ClockRate)
	if c.EncodingParameters != "" {
		s += "/" + c.EncodingParameters
	}
	return s
}

func channels(c sdp.Codec) string {
	if c.EncodingParameters == "" {
		return "1"
	}
	return c.EncodingParameters
}

// EditOffer rewrites the first audio section of an offer so that it advertises stereo opus
// and the reserved payload types of every codec family present in codecs.
// Applying it to an already edited offer is a no-op.
func EditOffer(offer string, codecs NonAdvertisedCodecSet) string {
	lines := splitLines(offer)
	start, end := findSection(lines, "audio")
	if start < 0 {
		return offer
	}

	section := append([]string(nil), lines[start:end]...)
	section = enableStereoOpus(section)
	for _, group := range reservedGroups {
		if !codecs.Contains(group.trigger) {
			continue
		}
		section = AddCodecs(section, group.codecs)
	}

	out := make([]string, 0, len(lines)+len(section)-(end-start))
	out = append(out, lines[:start]...)
	out = append(out, section...)
	out = append(out, lines[end:]...)
	return strings.Join(out, crlf)
}

// AddAudioCodecs appends codecs to the first audio section of a session description.
func AddAudioCodecs(offer string, codecs []sdp.Codec) string {
	lines := splitLines(offer)
	start, end := findSection(lines, "audio")
	if start < 0 {
		return offer
	}

	section := AddCodecs(append([]string(nil), lines[start:end]...), codecs)

	out := make([]string, 0, len(lines)+len(section)-(end-start))
	out = append(out, lines[:start]...)
	out = append(out, section...)
	out = append(out, lines[end:]...)
	return strings.Join(out, crlf)
}

// AdvertisedPayloadTypes returns the payload types mapping the codec in the audio sections of a session description.
func AdvertisedPayloadTypes(sessionDescription string, codec sdp.Codec) ([]uint8, error) {
	var parsed sdp.SessionDescription
	if err := parsed.Unmarshal([]byte(sessionDescription)); err != nil {
		return nil, err
	}

	var pts []uint8
	for _, md := range parsed.MediaDescriptions {
		if md.MediaName.Media != "audio" {
			continue
		}
		for _, format := range md.MediaName.Formats {
			pt, err := strconv.ParseUint(format, 10, 8)
			if err != nil {
				continue
			}
			c, err := parsed.GetCodecForPayloadType(uint8(pt))
			if err != nil {
				continue
			}
			if SameCodec(c, codec) {
				pts = append(pts, uint8(pt))
			}
		}
	}
	return pts, nil
}

// ReservedCodecs returns the reserved payload types of every codec family present in codecs,
// in the order EditOffer adds them.
func ReservedCodecs(codecs NonAdvertisedCodecSet) []sdp.Codec {
	var reserved []sdp.Codec
	for _, group := range reservedGroups {
		if codecs.Contains(group.trigger) {
			reserved = append(reserved, group.codecs...)
		}
	}
	return reserved
}

// EnableStereoOpus forces stereo=1 and sprop-stereo=1 on the fmtp line of the first opus
// payload type of a media section.
func EnableStereoOpus(section string) string {
	return strings.Join(enableStereoOpus(splitLines(section)), crlf)
}

func enableStereoOpus(lines []string) []string {
	opusPayloadType := ""
	for _, line := range lines {
		pt, encoding, ok := parseRtpmap(line)
		if ok && strings.HasPrefix(strings.ToLower(encoding), "opus/") {
			opusPayloadType = pt
			break
		}
	}
	if opusPayloadType == "" {
		return lines
	}

	prefix := fmtpPrefix + opusPayloadType + " "
	for i, line := range lines {
		if !strings.HasPrefix(line, prefix) {
			continue
		}

		params := strings.TrimSpace(line[len(prefix):])
		keys := fmtpKeys(params)
		var extra []string
		if !keys["stereo"] {
			extra = append(extra, "stereo=1")
		}
		if !keys["sprop-stereo"] {
			extra = append(extra, "sprop-stereo=1")
		}
		if len(extra) == 0 {
			continue
		}
		if params != "" {
			extra = append([]string{params}, extra...)
		}
		lines[i] = prefix + strings.Join(extra, ";")
	}
	return lines
}

// AddCodecs appends codecs to a media section, given as lines with the m= header first.
// Payload types already mapped in the section are skipped.
func AddCodecs(section []string, codecs []sdp.Codec) []string {
	if len(section) == 0 {
		return section
	}

	for _, c := range codecs {
		pt := strconv.Itoa(int(c.PayloadType))
		if hasRtpmap(section, pt) {
			continue
		}

		section[0] += " " + pt
		section = append(section, rtpmapPrefix+pt+" "+CodecString(c))
		if c.Fmtp != "" {
			section = append(section, fmtpPrefix+pt+" "+c.Fmtp)
		}
		section = append(section, "a=rtcp-fb:"+pt+" transport-cc")
	}
	return section
}

// findSection returns the line range [start, end) of the first media section of the given kind,
// or -1 when there is none. Trailing empty lines are not part of the section.
func findSection(lines []string, kind string) (int, int) {
	start := -1
	for i, line := range lines {
		if strings.HasPrefix(line, mediaPrefix+kind) {
			start = i
			break
		}
	}
	if start < 0 {
		return -1, -1
	}

	end := start + 1
	for end < len(lines) && !strings.HasPrefix(lines[end], mediaPrefix) {
		end++
	}
	for end > start+1 && lines[end-1] == "" {
		end--
	}
	return start, end
}

func parseRtpmap(line string) (string, string, bool) {
	if !strings.HasPrefix(line, rtpmapPrefix) {
		return "", "", false
	}
	pt, encoding, found := strings.Cut(line[len(rtpmapPrefix):], " ")
	if !found {
		return "", "", false
	}
	return pt, encoding, true
}

func hasRtpmap(lines []string, pt string) bool {
	for _, line := range lines {
		if p, _, ok := parseRtpmap(line); ok && p == pt {
			return true
		}
	}
	return false
}

func fmtpKeys(params string) map[string]bool {
	keys := make(map[string]bool)
	for _, p := range strings.Split(params, ";") {
		k, _, _ := strings.Cut(strings.TrimSpace(p), "=")
		if k != "" {
			keys[strings.ToLower(k)] = true
		}
	}
	return keys
}
