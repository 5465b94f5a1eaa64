package socket

import (
	"github.com/smallnest/ringbuffer"
)

// recvWindowSize is the byte capacity backing a TCP socket's receive
// window. This is purely storage for delivered payload bytes -- there is
// no flow-control interaction with it.
const recvWindowSize = 1 << 16

// window is a TCP socket's received-payload storage: an in-order byte
// ring buffer fed by the state machine's Deliver action, with a
// best-effort wake-up signal for blocked readers. There is no
// out-of-order reassembly or window-size negotiation layered on top of
// it.
type window struct {
	buf           *ringbuffer.RingBuffer
	dataAvailable chan struct{}
}

func newWindow() *window {
	return &window{
		buf:           ringbuffer.New(recvWindowSize),
		dataAvailable: make(chan struct{}, 1),
	}
}

// deliver appends payload to the window, matching Kernel/Net/TCPSocket's
// did_receive push. It never blocks: a full window drops the payload
// rather than stall the caller.
func (w *window) deliver(payload []byte) {
	if len(payload) == 0 {
		return
	}
	_, _ = w.buf.Write(payload)
	select {
	case w.dataAvailable <- struct{}{}:
	default:
	}
}

// read copies up to len(buf) available bytes into buf, blocking until data
// arrives or done is closed. It returns (0, false) on done.
func (w *window) read(buf []byte, done <-chan struct{}) (int, bool) {
	for {
		n, _ := w.buf.Read(buf)
		if n > 0 {
			return n, true
		}
		select {
		case <-w.dataAvailable:
		case <-done:
			return 0, false
		}
	}
}
