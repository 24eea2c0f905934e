package whep

import (
	"context"
	"sync"
	"time"

	"github.com/frostbyte73/core"
	"github.com/pion/webrtc/v3"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/whep-client/pkg/rtc"
	"github.com/livekit/whep-client/pkg/rtc/types"
	"github.com/livekit/whep-client/pkg/sdputil"
	"github.com/livekit/whep-client/pkg/telemetry/prometheus"
	"github.com/livekit/whep-client/pkg/utils"
)

const (
	DefaultRestartPause   = 2 * time.Second
	DefaultRequestTimeout = 10 * time.Second
	DefaultProbeTimeout   = 5 * time.Second

	opsQueueWarnSize = 200
)

type ClientParams struct {
	URL            string
	Token          string
	RestartPause   time.Duration
	RequestTimeout time.Duration
	ProbeCodecs    bool
	ProbeTimeout   time.Duration
	Engine         types.Engine
	Handler        Handler
	Logger         logger.Logger
}

// Client reads a stream from a WHEP endpoint and keeps the session alive,
// restarting from scratch after every failure.
//
// Session state is only touched on the ops queue goroutine. Engine callbacks
// and request results are posted to it tagged with the epoch that produced
// them, results of an older epoch are dropped.
type Client struct {
	params ClientParams
	logger logger.Logger
	signal *SignalClient
	ops    *utils.OpsQueue

	ctx    context.Context
	cancel context.CancelFunc

	state     atomic.Int32
	closeOnce sync.Once
	closed    core.Fuse

	epoch          uint32
	restartPending bool
	restartTimer   *time.Timer
	pc             types.PeerConnection
	offerData      sdputil.OfferData
	queue          candidateQueue
	session        *Session
	nonAdvertised  sdputil.NonAdvertisedCodecSet
	online         bool
	setup          *utils.Stopwatch
	trickle        *utils.OpsQueue
}

func NewClient(params ClientParams) (*Client, error) {
	if params.Engine == nil {
		return nil, errors.New("engine is required")
	}
	if params.Handler == nil {
		params.Handler = UnimplementedHandler{}
	}
	if params.Logger == nil {
		params.Logger = logger.GetLogger()
	}
	if params.RestartPause <= 0 {
		params.RestartPause = DefaultRestartPause
	}
	if params.RequestTimeout <= 0 {
		params.RequestTimeout = DefaultRequestTimeout
	}
	if params.ProbeTimeout <= 0 {
		params.ProbeTimeout = DefaultProbeTimeout
	}

	signal, err := NewSignalClient(params.URL, params.Token, params.RequestTimeout)
	if err != nil {
		return nil, errors.Wrap(err, "invalid WHEP URL")
	}

	l := params.Logger.WithValues("url", signal.URL())
	c := &Client{
		params: params,
		logger: l,
		signal: signal,
		ops:    utils.NewOpsQueue(l, "whep-client", opsQueueWarnSize),
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c, nil
}

func (c *Client) Start() {
	if c.closed.IsBroken() {
		return
	}
	c.ops.Enqueue(c.start)
	c.ops.Start()
}

// Close stops the client and deletes the current session, if any.
// It must not be called from a Handler callback.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.ops.Enqueue(c.close)
		c.ops.Start()
	})
	<-c.closed.Watch()
}

func (c *Client) State() State {
	return State(c.state.Load())
}

func (c *Client) Done() <-chan struct{} {
	return c.closed.Watch()
}

func (c *Client) setState(state State) {
	prev := State(c.state.Swap(int32(state)))
	prometheus.SetState(int32(state))
	if prev != state {
		c.logger.Debugw("state changed", "from", prev.String(), "to", state.String(), "epoch", c.epoch)
	}
}

func (c *Client) enqueueForEpoch(epoch uint32, op func()) {
	c.ops.Enqueue(func() {
		if !c.isCurrent(epoch) {
			return
		}
		op()
	})
}

func (c *Client) isCurrent(epoch uint32) bool {
	return epoch == c.epoch && !c.restartPending && !c.closed.IsBroken()
}

func (c *Client) start() {
	if c.closed.IsBroken() {
		return
	}

	if !c.params.ProbeCodecs {
		c.newEpoch()
		return
	}

	c.setState(StateProbingCodecs)
	go func() {
		ctx, cancel := context.WithTimeout(c.ctx, c.params.ProbeTimeout)
		defer cancel()

		codecs := rtc.ProbeNonAdvertisedCodecs(ctx, c.params.Engine, c.logger)
		c.ops.Enqueue(func() {
			if c.closed.IsBroken() {
				return
			}
			c.nonAdvertised = codecs
			c.newEpoch()
		})
	}()
}

func (c *Client) newEpoch() {
	c.epoch++
	c.restartPending = false
	c.restartTimer = nil
	c.online = false
	c.setup = utils.NewStopwatch()
	c.trickle = utils.NewOpsQueue(c.logger, "whep-trickle", opsQueueWarnSize)
	c.trickle.Start()

	c.fetchIceServers()
}

func (c *Client) fetchIceServers() {
	c.setState(StateFetchingIceServers)

	epoch := c.epoch
	go func() {
		servers, err := c.signal.Options(c.ctx)
		c.enqueueForEpoch(epoch, func() {
			if err != nil {
				c.handleError(errors.Wrap(err, "could not fetch ICE servers"))
				return
			}
			c.setup.Mark("iceServers")
			c.createPeerConnection(servers)
		})
	}()
}

func (c *Client) createPeerConnection(iceServers []webrtc.ICEServer) {
	c.setState(StateAwaitingLocalOffer)

	pc, err := c.params.Engine.NewPeerConnection(iceServers, sdputil.ReservedCodecs(c.nonAdvertised))
	if err != nil {
		c.handleError(errors.Wrap(err, "could not create peer connection"))
		return
	}
	c.pc = pc

	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeVideo, webrtc.RTPCodecTypeAudio} {
		if err = pc.AddTransceiver(kind, webrtc.RTPTransceiverDirectionSendrecv); err != nil {
			c.handleError(errors.Wrapf(err, "could not add %s transceiver", kind))
			return
		}
	}

	epoch := c.epoch
	pc.OnICECandidate(func(candidate *webrtc.ICECandidateInit) {
		if candidate == nil {
			// end of candidates is not signalled
			return
		}
		ic := sdputil.ICECandidate{Candidate: candidate.Candidate}
		if candidate.SDPMLineIndex != nil {
			ic.SDPMLineIndex = *candidate.SDPMLineIndex
		}
		c.enqueueForEpoch(epoch, func() {
			c.onLocalCandidate(ic)
		})
	})
	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		c.enqueueForEpoch(epoch, func() {
			c.onICEConnectionStateChange(state)
		})
	})
	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		c.enqueueForEpoch(epoch, func() {
			c.onTrack(track, receiver)
		})
	})

	offer, err := pc.CreateOffer()
	if err != nil {
		c.handleError(errors.Wrap(err, "could not create offer"))
		return
	}
	c.onLocalOffer(offer)
}

func (c *Client) onLocalOffer(offer string) {
	// no-op when the engine already offers the reserved codecs
	offer = sdputil.EditOffer(offer, c.nonAdvertised)
	c.offerData = sdputil.ParseOffer(offer)

	if err := c.pc.SetLocalDescription(offer); err != nil {
		c.handleError(errors.Wrap(err, "could not set local description"))
		return
	}
	c.setup.Mark("offer")

	c.sendOffer(offer)
}

func (c *Client) sendOffer(offer string) {
	c.setState(StateSendingOffer)

	epoch := c.epoch
	go func() {
		session, answer, err := c.signal.PostOffer(c.ctx, offer)
		c.ops.Enqueue(func() {
			if !c.isCurrent(epoch) {
				if session != nil {
					// the server created a session nobody will use
					go c.deleteSession(*session)
				}
				return
			}
			if err != nil {
				c.handleError(errors.Wrap(err, "could not send offer"))
				return
			}
			c.onRemoteAnswer(session, answer)
		})
	}()
}

func (c *Client) onRemoteAnswer(session *Session, answer string) {
	c.session = session
	c.setState(StateAwaitingAnswer)

	if err := c.pc.SetRemoteDescription(answer); err != nil {
		c.handleError(errors.Wrap(err, "could not set remote description"))
		return
	}
	c.setup.Mark("answer")
	c.setState(StateConnected)

	if c.queue.Len() != 0 {
		c.sendLocalCandidates(c.queue.Drain(), prometheus.CandidateDeliveryBatch)
	}
}

func (c *Client) onLocalCandidate(candidate sdputil.ICECandidate) {
	c.logger.Debugw("local candidate",
		"candidate", types.CandidateLabel(candidate.Candidate),
		"mLineIndex", candidate.SDPMLineIndex,
		"queued", c.session == nil,
	)

	if c.session == nil {
		c.queue.Push(candidate)
		return
	}
	c.sendLocalCandidates([]sdputil.ICECandidate{candidate}, prometheus.CandidateDeliverySingle)
}

// PATCH requests go through the per epoch trickle queue so they leave in the order they were issued.
func (c *Client) sendLocalCandidates(candidates []sdputil.ICECandidate, delivery string) {
	fragment := sdputil.GenerateSDPFragment(c.offerData, candidates)
	session := *c.session
	epoch := c.epoch
	prometheus.RecordCandidates(delivery, len(candidates))

	c.trickle.Enqueue(func() {
		if err := c.signal.PatchCandidates(c.ctx, session, fragment); err != nil {
			c.enqueueForEpoch(epoch, func() {
				c.handleError(errors.Wrap(err, "could not send candidates"))
			})
		}
	})
}

func (c *Client) onICEConnectionStateChange(state webrtc.ICEConnectionState) {
	c.logger.Debugw("ICE connection state changed", "state", state.String())

	switch state {
	case webrtc.ICEConnectionStateDisconnected, webrtc.ICEConnectionStateFailed:
		c.handleError(ErrConnectionLost)
	}
}

func (c *Client) onTrack(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
	c.params.Handler.OnTrack(track, receiver)

	if !c.online {
		c.online = true
		c.setup.Mark("firstTrack")
		c.logger.Infow("stream online", "setup", c.setup)
		c.params.Handler.OnOnline()
	}
}

func (c *Client) handleError(err error) {
	if c.restartPending || c.closed.IsBroken() {
		return
	}

	c.logger.Warnw("session failed, restarting", err, "restartPause", c.params.RestartPause)
	c.setState(StateErrorOrDisconnected)
	c.params.Handler.OnOffline(err)

	if session := c.teardown(); session != nil {
		go c.deleteSession(*session)
	}

	c.restartPending = true
	c.setState(StateRestartScheduled)
	prometheus.IncrementRestarts()
	c.restartTimer = time.AfterFunc(c.params.RestartPause, func() {
		c.ops.Enqueue(c.restart)
	})
}

func (c *Client) restart() {
	if !c.restartPending || c.closed.IsBroken() {
		return
	}
	c.newEpoch()
}

// teardown releases everything tied to the current epoch and returns the session to delete.
func (c *Client) teardown() *Session {
	if c.trickle != nil {
		c.trickle.Stop()
		c.trickle = nil
	}
	if c.pc != nil {
		if err := c.pc.Close(); err != nil {
			c.logger.Debugw("could not close peer connection", "error", err)
		}
		c.pc = nil
	}

	session := c.session
	c.session = nil
	c.offerData = sdputil.OfferData{}
	prometheus.RecordCandidates(prometheus.CandidateDeliveryDropped, c.queue.Len())
	c.queue.Reset()
	return session
}

func (c *Client) deleteSession(session Session) {
	ctx, cancel := context.WithTimeout(context.Background(), c.params.RequestTimeout)
	defer cancel()

	if err := c.signal.Delete(ctx, session); err != nil {
		c.logger.Debugw("could not delete session", "error", err, "session", session.URL)
	}
}

func (c *Client) close() {
	if c.restartTimer != nil {
		c.restartTimer.Stop()
		c.restartTimer = nil
	}
	c.restartPending = false

	session := c.teardown()
	c.cancel()
	if session != nil {
		c.deleteSession(*session)
	}

	c.setState(StateClosed)
	c.logger.Infow("client closed")
	c.ops.Stop()
	c.closed.Break()
}
