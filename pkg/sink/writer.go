package sink

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media/ivfwriter"
	"github.com/pion/webrtc/v3/pkg/media/oggwriter"
)

type rtpWriter interface {
	WriteRTP(packet *rtp.Packet) error
	Close() error
}

// newRTPWriter opens a container file for codecs that have one. Other codecs get a nil writer.
func newRTPWriter(dir string, trackID string, codec webrtc.RTPCodecParameters) (rtpWriter, string, error) {
	name := fmt.Sprintf("%s_%s", sanitize(trackID), time.Now().Format("20060102T150405"))

	switch {
	case strings.EqualFold(codec.MimeType, webrtc.MimeTypeOpus):
		channels := codec.Channels
		if channels == 0 {
			channels = 2
		}
		path := filepath.Join(dir, name+".ogg")
		w, err := oggwriter.New(path, codec.ClockRate, channels)
		return w, path, err
	case strings.EqualFold(codec.MimeType, webrtc.MimeTypeVP8):
		path := filepath.Join(dir, name+".ivf")
		w, err := ivfwriter.New(path)
		return w, path, err
	default:
		return nil, "", nil
	}
}

func sanitize(s string) string {
	if s == "" {
		return "track"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
