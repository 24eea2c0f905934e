package whep

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/livekit/whep-client/pkg/sdputil"
)

func TestCandidateQueue(t *testing.T) {
	var q candidateQueue
	require.Empty(t, q.Drain())

	q.Push(sdputil.ICECandidate{SDPMLineIndex: 1, Candidate: "candidate:a"})
	q.Push(sdputil.ICECandidate{SDPMLineIndex: 0, Candidate: "candidate:b"})
	require.Equal(t, 2, q.Len())

	require.Equal(t, []sdputil.ICECandidate{
		{SDPMLineIndex: 1, Candidate: "candidate:a"},
		{SDPMLineIndex: 0, Candidate: "candidate:b"},
	}, q.Drain())
	require.Equal(t, 0, q.Len())
	require.Empty(t, q.Drain())

	q.Push(sdputil.ICECandidate{Candidate: "candidate:c"})
	q.Reset()
	require.Equal(t, 0, q.Len())
}
