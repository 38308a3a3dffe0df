package gattc

import (
	"time"

	"github.com/user/gattc/gatt"
)

// MaxReliableWriteAttrs bounds the attribute array of a reliable-write
// procedure (Core Spec allows an implementation-defined maximum; NimBLE
// uses 4).
const MaxReliableWriteAttrs = 4

// MaxReadMultipleHandles bounds a single Read Multiple / Read Multiple
// Variable request.
const MaxReadMultipleHandles = 16

// mtuState: one round trip, no retained range.
type mtuState struct {
	clientMTU uint16
	cb        MTUCallback
}

// discState covers the pagination shared by discover-all-services,
// discover-service-by-UUID, discover-all-characteristics, and
// discover-characteristics-by-UUID.
type discState struct {
	prevHandle uint16
	endHandle  uint16
	targetUUID gatt.UUID
	hasTarget  bool
	svcCB      ServiceCallback
	charCB     CharacteristicCallback
}

// includeState covers find-included-services' two-stage scan/resolve.
type includeState struct {
	prevHandle uint16
	endHandle  uint16
	curStart   uint16 // non-zero while a follow-up read is outstanding
	curEnd     uint16
	pending    []gatt.HandleValue // unprocessed entries from the current scan batch
	cb         IncludedServiceCallback
}

// descState covers discover-all-descriptors.
type descState struct {
	prevHandle uint16
	endHandle  uint16
	cb         DescriptorCallback
}

// readState covers a single Read.
type readState struct {
	handle uint16
	cb     ReadCallback
}

// readByUUIDState covers Read By UUID (a single Read By Type request whose
// responses stream (handle, value) pairs).
type readByUUIDState struct {
	startHandle uint16
	endHandle   uint16
	uuid        gatt.UUID
	cb          ReadByUUIDCallback
}

// readLongState covers Read Long's advancing-offset chunk sequence.
type readLongState struct {
	handle uint16
	offset uint16
	cb     ReadLongCallback
}

// readMultipleState covers fixed-format Read Multiple.
type readMultipleState struct {
	handles []uint16
	cb      ReadMultipleCallback
}

// readMultipleVariableState covers variable-length Read Multiple.
type readMultipleVariableState struct {
	handles []uint16
	cb      ReadMultipleVariableCallback
}

// writeState covers Write With Response. payload is retained for the
// lifetime of the procedure, both to resend verbatim if the transport
// stalls and, when auto-pair replay is enabled, to resubmit after a
// security elevation the first attempt provoked.
type writeState struct {
	handle  uint16
	payload []byte
	cb      WriteCallback
}

// writeAttr is one attribute's pending payload within write-long or
// reliable-write.
type writeAttr struct {
	handle       uint16
	payload      []byte // owned buffer, the full value to write
	offset       uint16 // bytes already prepared and acknowledged
	fragmentLen  uint16 // length of the fragment currently in flight
}

// writeLongState covers Write Long: a single attribute prepared in chunks
// then committed with Execute Write.
type writeLongState struct {
	attr         writeAttr
	anyPrepared  bool   // a prepare response was received; cancel needed on failure
	executing    bool   // an Execute Write (commit or cancel) is outstanding
	cancelReason *Error // set while waiting for a cancelling Execute Write's response
	cb           WriteCallback
}

// reliableWriteState covers Reliable Write across up to
// MaxReliableWriteAttrs attributes.
type reliableWriteState struct {
	attrs        []writeAttr
	curAttr      int
	anyPrepared  bool
	executing    bool
	cancelReason *Error
	cb           WriteCallback
}

// indicateState covers Indicate: a single outstanding confirmation.
// payload is retained so a stalled indication can be resent verbatim.
type indicateState struct {
	handle  uint16
	payload []byte
	cb      IndicateCallback
}

// Record is the central entity: one per in-flight GATT client operation.
// Exactly one of the kind-state fields below is non-nil for the lifetime of
// the record, selected by Op.
type Record struct {
	Conn     uint16
	CID      uint16
	Op       Op
	Flags    Flag
	Deadline time.Time

	mtu            *mtuState
	disc           *discState
	include        *includeState
	desc           *descState
	read           *readState
	readByUUID     *readByUUIDState
	readLong       *readLongState
	readMultiple   *readMultipleState
	readMultipleVar *readMultipleVariableState
	write          *writeState
	writeLong      *writeLongState
	reliableWrite  *reliableWriteState
	indicate       *indicateState
}

func (r *Record) stalled() bool { return r.Flags&FlagStalled != 0 }
func (r *Record) setStalled()   { r.Flags |= FlagStalled }
func (r *Record) clearStalled() { r.Flags &^= FlagStalled }

// reset zeroes every field of a record, Conn/CID/Op included, for reuse by
// the pool.
func (r *Record) reset() {
	*r = Record{}
}
