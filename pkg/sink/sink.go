// Package sink consumes the media of a WHEP session, counting packets and
// optionally recording tracks to disk.
package sink

import (
	"errors"
	"io"
	"sync"

	"github.com/pion/webrtc/v3"
	"go.uber.org/atomic"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/whep-client/pkg/telemetry/prometheus"
	"github.com/livekit/whep-client/pkg/whep"
)

type TrackSink struct {
	whep.UnimplementedHandler

	dir    string
	logger logger.Logger
	online atomic.Bool
	wg     sync.WaitGroup
}

var _ whep.Handler = (*TrackSink)(nil)

// NewTrackSink returns a handler that drains every track. When dir is set,
// Opus and VP8 tracks are also written there.
func NewTrackSink(dir string, l logger.Logger) *TrackSink {
	if l == nil {
		l = logger.GetLogger()
	}
	return &TrackSink{
		dir:    dir,
		logger: l.WithName("sink"),
	}
}

func (s *TrackSink) OnTrack(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.drain(track)
	}()
}

func (s *TrackSink) OnOnline() {
	s.online.Store(true)
}

func (s *TrackSink) OnOffline(err error) {
	s.online.Store(false)
	s.logger.Infow("stream offline", "reason", err)
}

func (s *TrackSink) Online() bool {
	return s.online.Load()
}

// Wait blocks until every track reader has returned.
func (s *TrackSink) Wait() {
	s.wg.Wait()
}

func (s *TrackSink) drain(track *webrtc.TrackRemote) {
	codec := track.Codec()
	kind := track.Kind().String()
	l := s.logger.WithValues("trackID", track.ID(), "kind", kind, "mime", codec.MimeType)
	l.Infow("receiving track", "ssrc", uint32(track.SSRC()), "payloadType", uint8(track.PayloadType()))

	var w rtpWriter
	if s.dir != "" {
		var (
			path string
			err  error
		)
		w, path, err = newRTPWriter(s.dir, track.ID(), codec)
		switch {
		case err != nil:
			l.Warnw("could not open track file", err)
			w = nil
		case w == nil:
			l.Debugw("no container for codec, track will not be recorded")
		default:
			l.Infow("recording track", "path", path)
		}
	}
	defer func() {
		if w != nil {
			_ = w.Close()
		}
	}()

	var packets uint64
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				l.Debugw("track read ended", "error", err)
			}
			l.Infow("track ended", "packets", packets)
			return
		}
		packets++
		prometheus.IncrementPackets(kind, 1, uint64(pkt.MarshalSize()))

		if w != nil {
			if err := w.WriteRTP(pkt); err != nil {
				l.Warnw("could not write packet, recording stopped", err)
				_ = w.Close()
				w = nil
			}
		}
	}
}
