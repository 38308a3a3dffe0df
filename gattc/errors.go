package gattc

import (
	"fmt"

	"github.com/user/gattc/att"
)

// ErrKind is the taxonomy of outcomes a procedure callback can observe.
// Exactly one of these reaches the application per procedure, never more
// than once.
type ErrKind int

const (
	// KindOK marks a successful, non-terminal data callback; it is not an
	// error at all but shares the Result plumbing.
	KindOK ErrKind = iota
	// KindTimeout: the 30s ATT transaction deadline expired.
	KindTimeout
	// KindNotConnected: the connection was gone while the procedure was active.
	KindNotConnected
	// KindOutOfMemory: resource exhaustion surfaced to the caller: the
	// record pool had no free record, the transport had no buffer for an
	// MTU exchange's request, or it had no buffer for a fire-and-forget
	// send. Other stalled procedures are retried and, if still stalled at
	// their deadline, fail with KindTimeout.
	KindOutOfMemory
	// KindBadData: a protocol violation (out-of-order handles, mismatched
	// prepare-write echo, malformed PDU).
	KindBadData
	// KindAttError: the peer returned an ATT error response whose code
	// carries no special engine meaning.
	KindAttError
	// KindDone: pseudo-error marking normal end-of-stream for a streaming
	// procedure.
	KindDone
	// KindNotSupported: the operation is disabled by a feature gate.
	KindNotSupported
	// KindInvalidArgument: caller-supplied arguments are invalid (e.g. too
	// many handles for read-multiple).
	KindInvalidArgument
	// KindAuthenticationRequired: Signed Write with no CSRK on file.
	KindAuthenticationRequired
	// KindEncrypted: Signed Write attempted on an already-encrypted link.
	KindEncrypted
)

func (k ErrKind) String() string {
	switch k {
	case KindOK:
		return "OK"
	case KindTimeout:
		return "Timeout"
	case KindNotConnected:
		return "NotConnected"
	case KindOutOfMemory:
		return "OutOfMemory"
	case KindBadData:
		return "BadData"
	case KindAttError:
		return "AttError"
	case KindDone:
		return "Done"
	case KindNotSupported:
		return "NotSupported"
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindAuthenticationRequired:
		return "AuthenticationRequired"
	case KindEncrypted:
		return "Encrypted"
	default:
		return "Unknown"
	}
}

// Error is the boundary error type every procedure callback receives. When
// Kind is KindAttError, AttCode and Handle carry the peer's ATT error code
// and attribute handle.
type Error struct {
	Kind    ErrKind
	Handle  uint16
	AttCode uint8 // valid when Kind == KindAttError
	msg     string
}

func (e *Error) Error() string {
	if e.msg != "" {
		return e.msg
	}
	if e.Kind == KindAttError {
		return (&att.Error{Code: e.AttCode, Handle: e.Handle}).Error()
	}
	return fmt.Sprintf("gattc: %s (handle 0x%04X)", e.Kind, e.Handle)
}

func errTimeout() *Error              { return &Error{Kind: KindTimeout} }
func errNotConnected() *Error         { return &Error{Kind: KindNotConnected} }
func errOutOfMemory() *Error          { return &Error{Kind: KindOutOfMemory} }
func errDone() *Error                 { return &Error{Kind: KindDone} }
func errNotSupported(msg string) *Error {
	return &Error{Kind: KindNotSupported, msg: msg}
}
func errInvalidArgument(msg string) *Error {
	return &Error{Kind: KindInvalidArgument, msg: msg}
}
func errAuthenticationRequired() *Error { return &Error{Kind: KindAuthenticationRequired} }
func errEncrypted() *Error              { return &Error{Kind: KindEncrypted} }

func errBadData(handle uint16, msg string) *Error {
	return &Error{Kind: KindBadData, Handle: handle, msg: fmt.Sprintf("gattc: bad data: %s", msg)}
}

// errBadDataWrap fails with KindBadData from a lower-level parse error,
// wrapping it with wrapf first so the message carries which response
// shape failed to parse, not just the underlying gatt package complaint.
func errBadDataWrap(handle uint16, err error, context string) *Error {
	return errBadData(handle, wrapf(err, context).Error())
}

func errAtt(code uint8, handle uint16) *Error {
	return &Error{Kind: KindAttError, Handle: handle, AttCode: code}
}

// isEndOfStream reports whether an ATT error code received during a
// discovery-style procedure means "no more results" rather than a real
// failure.
func isEndOfStream(code uint8) bool {
	return code == att.ErrAttributeNotFound
}
