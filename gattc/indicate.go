package gattc

import "encoding/binary"

// Indicate sends a Handle Value Indication and waits for the peer's
// confirmation, tracked like any other procedure so it gets the same 30s
// deadline and stall/resume handling. The Core Spec permits only one
// outstanding indication per connection, not per handle.
func (e *Engine) Indicate(conn uint16, handle uint16, payload []byte, cb IndicateCallback) {
	if e.table.hasMatching(byConnOp(conn, OpIndicate)) {
		if cb != nil {
			cb(conn, handle, errInvalidArgument("an indication is already outstanding on this connection"))
		}
		return
	}

	r, cid, berr := e.beginProcedure(conn, OpIndicate)
	if berr != nil {
		if cb != nil {
			cb(conn, handle, berr)
		}
		return
	}
	r.indicate = &indicateState{handle: handle, payload: payload, cb: cb}

	result := e.transport.TxIndicate(conn, cid, handle, payload)
	if terminal := e.commitStart(r, result); terminal != nil {
		invokeTerminal(r, terminal)
		e.finish(r)
	}
}

// rxIndicateConfirm handles a Handle Value Confirmation, which carries no
// payload of its own.
func (e *Engine) rxIndicateConfirm(conn, cid uint16) {
	r := e.table.extractFirst(byConnCIDOp(conn, cid, OpIndicate))
	if r == nil {
		return
	}
	cb := r.indicate.cb
	handle := r.indicate.handle
	e.finish(r)
	if cb != nil {
		cb(conn, handle, nil)
	}
}

// rxErrIndicate handles an ATT error matched to an outstanding indication.
func (e *Engine) rxErrIndicate(r *Record, code uint8, handle uint16) {
	e.terminateWithError(r, errAtt(code, handle))
}

// NotifyCustom sends a Handle Value Notification: fire-and-forget, no
// confirmation, no record.
func (e *Engine) NotifyCustom(conn uint16, handle uint16, payload []byte) error {
	if e.connMgr != nil && !e.connMgr.ConnFind(conn) {
		return errNotConnected()
	}
	cid := e.channels.PickTransient(conn)
	switch e.transport.TxNotify(conn, cid, handle, payload) {
	case TxOK:
		return nil
	case TxOutOfMemory:
		return errOutOfMemory()
	default:
		return errNotConnected()
	}
}

// NotifyMultipleCustom sends a Multiple Handle Value Notification (Core
// Spec 5.2, EATT only) batching several handles' values into one PDU.
func (e *Engine) NotifyMultipleCustom(conn uint16, entries []WriteAttr) error {
	if len(entries) == 0 {
		return errInvalidArgument("notify multiple requires at least one entry")
	}
	if e.connMgr != nil && !e.connMgr.ConnFind(conn) {
		return errNotConnected()
	}
	cid := e.channels.PickTransient(conn)
	switch e.transport.TxNotifyMultiple(conn, cid, encodeNotifyMultiple(entries)) {
	case TxOK:
		return nil
	case TxOutOfMemory:
		return errOutOfMemory()
	default:
		return errNotConnected()
	}
}

// encodeNotifyMultiple builds the [Handle: 2][Length: 2][Value: Length] *
// sequence a Handle Value Multiple Notification PDU carries.
func encodeNotifyMultiple(entries []WriteAttr) []byte {
	size := 0
	for _, e := range entries {
		size += 4 + len(e.Value)
	}
	buf := make([]byte, size)
	offset := 0
	for _, e := range entries {
		binary.LittleEndian.PutUint16(buf[offset:], e.Handle)
		binary.LittleEndian.PutUint16(buf[offset+2:], uint16(len(e.Value)))
		copy(buf[offset+4:], e.Value)
		offset += 4 + len(e.Value)
	}
	return buf
}
