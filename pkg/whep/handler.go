package whep

import (
	"github.com/pion/webrtc/v3"
)

// Handler receives the client's media and connectivity events.
// Callbacks run on the client's event loop and must not block.
type Handler interface {
	OnTrack(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)
	// OnOnline fires once per session, on the first received track.
	OnOnline()
	// OnOffline fires every time the session is torn down for a restart.
	OnOffline(err error)
}

type UnimplementedHandler struct{}

func (h UnimplementedHandler) OnTrack(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {}
func (h UnimplementedHandler) OnOnline()                                                        {}
func (h UnimplementedHandler) OnOffline(err error)                                              {}
