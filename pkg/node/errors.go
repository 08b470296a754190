package node

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport matches every failure to obtain a usable answer from the
	// node, malformed answers included.
	ErrTransport = errors.New("node request failed")
	// ErrProtocol matches answers that arrived but could not be decoded.
	ErrProtocol = errors.New("unexpected node response")
)

// TransportError reports a request that failed, timed out or was refused
// with a non-2xx status.
type TransportError struct {
	Op     string
	Status int // zero when no response was received
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}

// ProtocolError reports a response whose body did not have the expected shape.
// It is recovered from exactly like a TransportError.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: malformed response: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() []error {
	return []error{ErrTransport, ErrProtocol, e.Err}
}
