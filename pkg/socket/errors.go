package socket

import "errors"

// Sentinel errors surfaced to the socket syscall boundary, named after
// their POSIX equivalents.
var (
	ErrAddrNotAvail = errors.New("address not available")
	ErrAddrInUse    = errors.New("address already in use")
	ErrHostUnreach  = errors.New("no route to host")
	ErrInProgress   = errors.New("operation in progress")
	ErrIntr         = errors.New("interrupted")
	ErrNotConnected = errors.New("transport endpoint is not connected")
)
