package sphero

import (
	"errors"
	"fmt"
)

// ErrUsage is wrapped by every error caused by calling the API incorrectly.
var ErrUsage = errors.New("usage error")

// Usage errors, returned synchronously by NewCommand and Send.
var (
	ErrInvalidCommand  = fmt.Errorf("%w: command not created with NewCommand", ErrUsage)
	ErrPayloadTooLarge = fmt.Errorf("%w: payload exceeds %d bytes", ErrUsage, MaxPayloadSize)
)

// Framing errors. These never leave the link; they are logged and counted.
var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrOrphanReply    = errors.New("orphan reply")
)

// ErrShortNotification is returned when a notification payload is shorter
// than its layout requires.
var ErrShortNotification = errors.New("notification payload too short")

// Protocol error kinds, one per non-OK response code.
var (
	ErrGeneric       = errors.New("general error")
	ErrChecksum      = errors.New("checksum failure")
	ErrFragmentation = errors.New("fragmented command")
	ErrBadCommand    = errors.New("unknown command")
	ErrUnsupported   = errors.New("command unsupported")
	ErrBadMessage    = errors.New("bad message format")
	ErrBadParameter  = errors.New("parameter value invalid")
	ErrExecution     = errors.New("failed to execute command")
	ErrBadDevice     = errors.New("unknown device id")
	ErrPowerNoGood   = errors.New("voltage too low for reflash")
	ErrPageIllegal   = errors.New("illegal page number")
	ErrFlashFail     = errors.New("page did not reprogram correctly")
	ErrMACorrupt     = errors.New("main application corrupt")
	ErrMsgTimeout    = errors.New("message timed out")
	ErrUnknownStatus = errors.New("unknown response code")
)

// ProtocolError is passed to a response handler when the device replied
// with a non-OK status.
type ProtocolError struct {
	Status   Status
	Response Response
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("device replied %s to sequence %d: %v", e.Status, e.Response.Seq, e.Status.Err())
}

// Unwrap returns the error kind of the status, for use with errors.Is.
func (e *ProtocolError) Unwrap() error {
	return e.Status.Err()
}

// TransportError wraps a failure of the underlying byte stream.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
