package socket

import (
	"testing"

	"github.com/abyesilyurt/netkernel/pkg/frame"
	"github.com/stretchr/testify/require"
)

func TestTransitionActiveOpenHandshake(t *testing.T) {
	// SynSent + SYN -> SynReceived, ack = N+1, send ACK.
	tr := transitionTCP(SynSent, Segment{Flags: frame.TCPFlagSyn, SequenceNumber: 100})
	require.Equal(t, SynReceived, tr.NextState)
	require.True(t, tr.AckNumberSet)
	require.Equal(t, uint32(101), tr.AckNumber)
	require.Len(t, tr.Actions, 1)
	require.Equal(t, ActionSendSegment, tr.Actions[0].Kind)
	require.Equal(t, uint8(frame.TCPFlagAck), tr.Actions[0].Flags)

	// SynSent + SYN|ACK -> Established directly, signalling connected.
	tr = transitionTCP(SynSent, Segment{Flags: frame.TCPFlagSyn | frame.TCPFlagAck, SequenceNumber: 200})
	require.Equal(t, Established, tr.NextState)
	require.Equal(t, uint32(201), tr.AckNumber)
	require.Len(t, tr.Actions, 2)
	require.Equal(t, ActionSendSegment, tr.Actions[0].Kind)
	require.Equal(t, ActionSetConnected, tr.Actions[1].Kind)
	require.True(t, tr.Actions[1].Connected)

	// SynReceived + ACK -> Established, no segment sent.
	tr = transitionTCP(SynReceived, Segment{Flags: frame.TCPFlagAck, SequenceNumber: 300})
	require.Equal(t, Established, tr.NextState)
	require.Equal(t, uint32(301), tr.AckNumber)
	require.Len(t, tr.Actions, 1)
	require.Equal(t, ActionSetConnected, tr.Actions[0].Kind)
}

func TestTransitionSynSentRejectsAnythingElse(t *testing.T) {
	tr := transitionTCP(SynSent, Segment{Flags: frame.TCPFlagAck, SequenceNumber: 1})
	require.Equal(t, Closed, tr.NextState)
	require.Equal(t, []Action{sendSegment(frame.TCPFlagRst)}, tr.Actions)
}

func TestTransitionEstablishedDataAcksWithoutAdvancing(t *testing.T) {
	payload := []byte("hello")
	tr := transitionTCP(Established, Segment{Flags: frame.TCPFlagAck, SequenceNumber: 500, Payload: payload})
	require.Equal(t, Established, tr.NextState)
	// N = seq + len(payload); Established's non-FIN ack is N, not N+1.
	require.Equal(t, uint32(505), tr.AckNumber)
	require.Equal(t, []Action{sendSegment(frame.TCPFlagAck), deliver(payload)}, tr.Actions)
}

func TestTransitionEstablishedFinDeliversThenAcksAndDisconnects(t *testing.T) {
	payload := []byte("tail")
	tr := transitionTCP(Established, Segment{Flags: frame.TCPFlagFin, SequenceNumber: 700, Payload: payload})
	require.Equal(t, CloseWait, tr.NextState)
	require.Equal(t, uint32(705), tr.AckNumber)
	require.Equal(t, []Action{deliver(payload), sendSegment(frame.TCPFlagAck), setConnected(false)}, tr.Actions)
	require.True(t, tr.NextState.IsDisconnected())
}

func TestTransitionPassiveCloseSequence(t *testing.T) {
	// CloseWait always resets: this stack only reaches CloseWait via a
	// FIN it already acked, and closes actively from there via LastAck.
	tr := transitionTCP(CloseWait, Segment{Flags: frame.TCPFlagAck, SequenceNumber: 1})
	require.Equal(t, Closed, tr.NextState)

	tr = transitionTCP(LastAck, Segment{Flags: frame.TCPFlagAck, SequenceNumber: 900})
	require.Equal(t, Closed, tr.NextState)
	require.Equal(t, uint32(901), tr.AckNumber)
}

func TestTransitionActiveCloseSequence(t *testing.T) {
	tr := transitionTCP(FinWait1, Segment{Flags: frame.TCPFlagAck, SequenceNumber: 10})
	require.Equal(t, FinWait2, tr.NextState)

	tr = transitionTCP(FinWait2, Segment{Flags: frame.TCPFlagFin, SequenceNumber: 20})
	require.Equal(t, TimeWait, tr.NextState)
	require.Equal(t, uint32(21), tr.AckNumber)

	// Simultaneous close: FinWait1 sees the peer's FIN before its own ACK.
	tr = transitionTCP(FinWait1, Segment{Flags: frame.TCPFlagFin, SequenceNumber: 30})
	require.Equal(t, Closing, tr.NextState)

	tr = transitionTCP(Closing, Segment{Flags: frame.TCPFlagAck, SequenceNumber: 40})
	require.Equal(t, TimeWait, tr.NextState)
}

func TestTransitionClosedAndTimeWaitAlwaysReset(t *testing.T) {
	for _, st := range []State{Closed, TimeWait} {
		tr := transitionTCP(st, Segment{Flags: frame.TCPFlagAck, SequenceNumber: 1})
		require.Equal(t, Closed, tr.NextState)
		require.Equal(t, []Action{sendSegment(frame.TCPFlagRst)}, tr.Actions)
	}
}

func TestTransitionListenDropsEverything(t *testing.T) {
	tr := transitionTCP(Listen, Segment{Flags: frame.TCPFlagSyn, SequenceNumber: 1})
	require.Equal(t, Listen, tr.NextState)
	require.Empty(t, tr.Actions)
}

func TestStateIsDisconnected(t *testing.T) {
	require.False(t, SynSent.IsDisconnected())
	require.False(t, Established.IsDisconnected())
	require.False(t, Listen.IsDisconnected())
	for _, st := range []State{Closed, CloseWait, LastAck, FinWait1, FinWait2, Closing, TimeWait} {
		require.True(t, st.IsDisconnected(), "%s should be disconnected", st)
	}
}
