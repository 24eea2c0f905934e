package whep

import (
	"github.com/gammazero/deque"

	"github.com/livekit/whep-client/pkg/sdputil"
)

// candidateQueue holds local candidates gathered before a session exists.
type candidateQueue struct {
	candidates deque.Deque[sdputil.ICECandidate]
}

func (q *candidateQueue) Push(c sdputil.ICECandidate) {
	q.candidates.PushBack(c)
}

// Drain returns every queued candidate in arrival order and empties the queue.
func (q *candidateQueue) Drain() []sdputil.ICECandidate {
	out := make([]sdputil.ICECandidate, 0, q.candidates.Len())
	for q.candidates.Len() > 0 {
		out = append(out, q.candidates.PopFront())
	}
	return out
}

func (q *candidateQueue) Reset() {
	q.candidates.Clear()
}

func (q *candidateQueue) Len() int {
	return q.candidates.Len()
}
