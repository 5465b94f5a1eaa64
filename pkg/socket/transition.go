package socket

import "github.com/abyesilyurt/netkernel/pkg/frame"

// State is a TCP connection's place in the RFC-793-style state machine.
type State int

const (
	Closed State = iota
	Listen
	SynSent
	SynReceived
	Established
	FinWait1
	FinWait2
	CloseWait
	Closing
	LastAck
	TimeWait
)

func (s State) String() string {
	switch s {
	case Closed:
		return "Closed"
	case Listen:
		return "Listen"
	case SynSent:
		return "SynSent"
	case SynReceived:
		return "SynReceived"
	case Established:
		return "Established"
	case FinWait1:
		return "FinWait1"
	case FinWait2:
		return "FinWait2"
	case CloseWait:
		return "CloseWait"
	case Closing:
		return "Closing"
	case LastAck:
		return "LastAck"
	case TimeWait:
		return "TimeWait"
	default:
		return "Unknown"
	}
}

// IsDisconnected reports whether s has no further data to send or receive.
func (s State) IsDisconnected() bool {
	switch s {
	case Closed, CloseWait, LastAck, FinWait1, FinWait2, Closing, TimeWait:
		return true
	default:
		return false
	}
}

// Segment is the subset of an incoming TCP segment the state machine
// needs: its flags, sequence number, and payload. It is intentionally
// decoupled from frame.TCP so the transition function below is a pure,
// IO-free function of (state, segment).
type Segment struct {
	Flags          uint8
	SequenceNumber uint32
	Payload        []byte
}

func (s Segment) payloadSize() uint32 { return uint32(len(s.Payload)) }

// ActionKind enumerates the three effects a transition can produce.
type ActionKind int

const (
	ActionSendSegment ActionKind = iota
	ActionDeliver
	ActionSetConnected
)

// Action is one IO effect a transition requests. The caller (TCPSocket)
// executes these in order after applying the transition's next state and
// ack number.
type Action struct {
	Kind      ActionKind
	Flags     uint8  // ActionSendSegment
	Payload   []byte // ActionDeliver
	Connected bool   // ActionSetConnected
}

func sendSegment(flags uint8) Action   { return Action{Kind: ActionSendSegment, Flags: flags} }
func deliver(payload []byte) Action    { return Action{Kind: ActionDeliver, Payload: payload} }
func setConnected(v bool) Action       { return Action{Kind: ActionSetConnected, Connected: v} }

// Transition is the result of applying the state table to one incoming
// segment: the next state, an optional new ack number, and the actions to
// perform.
type Transition struct {
	NextState    State
	AckNumber    uint32
	AckNumberSet bool
	Actions      []Action
}

// transitionTCP is the total function (state, segment) -> (state',
// actions) driving the state machine. It assumes the caller has already
// applied the ack/seq guard clause (incoming ack number ==
// socket's current sequence number); this function is only ever reached
// once that holds.
func transitionTCP(state State, seg Segment) Transition {
	n := seg.SequenceNumber + seg.payloadSize()

	switch state {
	case Closed:
		return Transition{NextState: Closed, Actions: []Action{sendSegment(frame.TCPFlagRst)}}

	case TimeWait:
		return Transition{NextState: Closed, Actions: []Action{sendSegment(frame.TCPFlagRst)}}

	case Listen:
		// Incoming connections are unsupported: a SYN here, or anything
		// else, is simply dropped.
		return Transition{NextState: Listen}

	case SynSent:
		switch seg.Flags {
		case frame.TCPFlagSyn:
			return Transition{
				NextState: SynReceived, AckNumber: n + 1, AckNumberSet: true,
				Actions: []Action{sendSegment(frame.TCPFlagAck)},
			}
		case frame.TCPFlagSyn | frame.TCPFlagAck:
			return Transition{
				NextState: Established, AckNumber: n + 1, AckNumberSet: true,
				Actions: []Action{sendSegment(frame.TCPFlagAck), setConnected(true)},
			}
		default:
			return Transition{NextState: Closed, Actions: []Action{sendSegment(frame.TCPFlagRst)}}
		}

	case SynReceived:
		switch seg.Flags {
		case frame.TCPFlagAck:
			return Transition{
				NextState: Established, AckNumber: n + 1, AckNumberSet: true,
				Actions: []Action{setConnected(true)},
			}
		default:
			return Transition{NextState: Closed, Actions: []Action{sendSegment(frame.TCPFlagRst)}}
		}

	case Established:
		if seg.Flags&frame.TCPFlagFin != 0 {
			var actions []Action
			if len(seg.Payload) > 0 {
				actions = append(actions, deliver(seg.Payload))
			}
			actions = append(actions, sendSegment(frame.TCPFlagAck), setConnected(false))
			return Transition{NextState: CloseWait, AckNumber: n + 1, AckNumberSet: true, Actions: actions}
		}
		// Established's non-FIN ack is N, not N+1: data segments do not
		// consume an extra sequence number, unlike FIN above.
		actions := []Action{sendSegment(frame.TCPFlagAck)}
		if len(seg.Payload) > 0 {
			actions = append(actions, deliver(seg.Payload))
		}
		return Transition{NextState: Established, AckNumber: n, AckNumberSet: true, Actions: actions}

	case FinWait1:
		switch seg.Flags {
		case frame.TCPFlagAck:
			return Transition{NextState: FinWait2, AckNumber: n + 1, AckNumberSet: true}
		case frame.TCPFlagFin:
			return Transition{NextState: Closing, AckNumber: n + 1, AckNumberSet: true}
		default:
			return Transition{NextState: Closed, Actions: []Action{sendSegment(frame.TCPFlagRst)}}
		}

	case FinWait2:
		switch seg.Flags {
		case frame.TCPFlagFin:
			return Transition{NextState: TimeWait, AckNumber: n + 1, AckNumberSet: true}
		default:
			return Transition{NextState: Closed, Actions: []Action{sendSegment(frame.TCPFlagRst)}}
		}

	case Closing:
		switch seg.Flags {
		case frame.TCPFlagAck:
			return Transition{NextState: TimeWait, AckNumber: n + 1, AckNumberSet: true}
		default:
			return Transition{NextState: Closed, Actions: []Action{sendSegment(frame.TCPFlagRst)}}
		}

	case CloseWait:
		return Transition{NextState: Closed, Actions: []Action{sendSegment(frame.TCPFlagRst)}}

	case LastAck:
		switch seg.Flags {
		case frame.TCPFlagAck:
			return Transition{NextState: Closed, AckNumber: n + 1, AckNumberSet: true}
		default:
			return Transition{NextState: Closed, Actions: []Action{sendSegment(frame.TCPFlagRst)}}
		}

	default:
		return Transition{NextState: state}
	}
}
