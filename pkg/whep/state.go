package whep

import (
	"fmt"
)

type State int32

const (
	StateIdle State = iota
	StateProbingCodecs
	StateFetchingIceServers
	StateAwaitingLocalOffer
	StateSendingOffer
	StateAwaitingAnswer
	StateConnected
	StateErrorOrDisconnected
	StateRestartScheduled
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateProbingCodecs:
		return "PROBING_CODECS"
	case StateFetchingIceServers:
		return "FETCHING_ICE_SERVERS"
	case StateAwaitingLocalOffer:
		return "AWAITING_LOCAL_OFFER"
	case StateSendingOffer:
		return "SENDING_OFFER"
	case StateAwaitingAnswer:
		return "AWAITING_ANSWER"
	case StateConnected:
		return "CONNECTED"
	case StateErrorOrDisconnected:
		return "ERROR_OR_DISCONNECTED"
	case StateRestartScheduled:
		return "RESTART_SCHEDULED"
	case StateClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("%d", int(s))
	}
}
