package gattc

import (
	"encoding/binary"
	"fmt"

	"github.com/user/gattc/att"
	"github.com/user/gattc/gatt"
)

// Read performs a single Read Request against handle.
func (e *Engine) Read(conn uint16, handle uint16, cb ReadCallback) {
	r, cid, berr := e.beginProcedure(conn, OpRead)
	if berr != nil {
		if cb != nil {
			cb(conn, handle, nil, berr)
		}
		return
	}
	r.read = &readState{handle: handle, cb: cb}

	result := e.transport.TxRead(conn, cid, handle)
	if terminal := e.commitStart(r, result); terminal != nil {
		invokeTerminal(r, terminal)
		e.finish(r)
	}
}

// ReadByUUID performs "Read Using Characteristic UUID": a Read By Type
// Request whose attribute type is the target value UUID, streaming every
// matching (handle, value) pair within [startHandle, endHandle].
func (e *Engine) ReadByUUID(conn uint16, startHandle, endHandle uint16, uuid gatt.UUID, cb ReadByUUIDCallback) {
	if startHandle == 0 || startHandle > endHandle {
		if cb != nil {
			cb(conn, 0, nil, errInvalidArgument("invalid handle range"))
		}
		return
	}

	r, cid, berr := e.beginProcedure(conn, OpReadByUUID)
	if berr != nil {
		if cb != nil {
			cb(conn, 0, nil, berr)
		}
		return
	}
	r.readByUUID = &readByUUIDState{startHandle: startHandle, endHandle: endHandle, uuid: uuid, cb: cb}

	result := e.transport.TxReadByType(conn, cid, Range{Start: startHandle, End: endHandle}, uuid.Bytes())
	if terminal := e.commitStart(r, result); terminal != nil {
		invokeTerminal(r, terminal)
		e.finish(r)
	}
}

func (e *Engine) onReadByTypeValues(r *Record, data []byte) {
	entries, err := gatt.ParseAttributeDataList(data)
	if err != nil {
		e.terminateWithError(r, errBadDataWrap(r.readByUUID.startHandle, err, "read by type response (read by UUID)"))
		return
	}

	var lastHandle uint16
	for _, entry := range entries {
		if entry.Handle < r.readByUUID.startHandle {
			e.terminateWithError(r, errBadData(entry.Handle, "read-by-UUID handle out of order"))
			return
		}
		lastHandle = entry.Handle
		if r.readByUUID.cb != nil && r.readByUUID.cb(r.Conn, entry.Handle, entry.Value, nil) {
			e.terminateWithError(r, errDone())
			return
		}
	}

	next := lastHandle + 1
	if next <= lastHandle || next > r.readByUUID.endHandle {
		e.terminateWithError(r, errDone())
		return
	}
	r.readByUUID.startHandle = next

	result := e.transport.TxReadByType(r.Conn, r.CID, Range{Start: next, End: r.readByUUID.endHandle}, r.readByUUID.uuid.Bytes())
	if terminal, outcome := e.advance(r, result); terminal {
		e.terminateWithError(r, outcome)
	}
}

// ReadLong performs Read Long: an initial Read Request, then successive
// Read Blob Requests at increasing offsets until a chunk shorter than
// MTU-1 signals the attribute's end.
func (e *Engine) ReadLong(conn uint16, handle uint16, cb ReadLongCallback) {
	r, cid, berr := e.beginProcedure(conn, OpReadLong)
	if berr != nil {
		if cb != nil {
			cb(conn, handle, 0, nil, berr)
		}
		return
	}
	r.readLong = &readLongState{handle: handle, offset: 0, cb: cb}

	result := e.transport.TxRead(conn, cid, handle)
	if terminal := e.commitStart(r, result); terminal != nil {
		invokeTerminal(r, terminal)
		e.finish(r)
	}
}

// rxRead handles a Read Response, shared by Read, Read Long's first chunk,
// and find-included-services' 128-bit UUID resolution step.
func (e *Engine) rxRead(conn, cid uint16, value []byte) {
	r := e.table.extractFirst(byConnCIDOps(conn, cid, OpRead, OpReadLong, OpFindIncludedServices))
	if r == nil {
		return
	}

	switch r.Op {
	case OpRead:
		cb := r.read.cb
		handle := r.read.handle
		e.finish(r)
		if cb != nil {
			cb(conn, handle, value, nil)
		}
	case OpReadLong:
		e.onReadLongChunk(r, value)
	case OpFindIncludedServices:
		e.rxReadInclude(r, value)
	}
}

func (e *Engine) onReadLongChunk(r *Record, value []byte) {
	handle, offset := r.readLong.handle, r.readLong.offset
	if r.readLong.cb != nil && r.readLong.cb(r.Conn, handle, offset, value, nil) {
		e.terminateWithError(r, errDone())
		return
	}
	r.readLong.offset += uint16(len(value))

	mtu := e.connMgr.MTUByCID(r.Conn, r.CID)
	if mtu == 0 || uint16(len(value)) < mtu-1 {
		e.terminateWithError(r, errDone())
		return
	}

	result := e.transport.TxReadBlob(r.Conn, r.CID, handle, r.readLong.offset)
	if terminal, outcome := e.advance(r, result); terminal {
		e.terminateWithError(r, outcome)
	}
}

// rxReadBlob handles a Read Blob Response, Read Long's only consumer.
func (e *Engine) rxReadBlob(conn, cid uint16, value []byte) {
	r := e.table.extractFirst(byConnCIDOp(conn, cid, OpReadLong))
	if r == nil {
		return
	}
	e.onReadLongChunk(r, value)
}

// rxErrRead is the error-response handler for a plain Read; no ATT error
// code carries end-of-stream meaning for a single-attribute read.
func (e *Engine) rxErrRead(r *Record, code uint8, handle uint16) {
	e.terminateWithError(r, errAtt(code, handle))
}

// rxErrReadLong handles an ATT error matched to Read Long. Invalid Offset
// means the client's length heuristic over-ran the attribute by exactly one
// chunk boundary; that is normal completion, not a failure.
func (e *Engine) rxErrReadLong(r *Record, code uint8, handle uint16) {
	if code == att.ErrInvalidOffset {
		e.terminateWithError(r, errDone())
		return
	}
	e.terminateWithError(r, errAtt(code, handle))
}

// ReadMultiple performs a fixed-format Read Multiple: the peer concatenates
// every handle's value into one response with no length framing, so the
// handles must all be of known, fixed-length types.
func (e *Engine) ReadMultiple(conn uint16, handles []uint16, cb ReadMultipleCallback) {
	if len(handles) < 2 || len(handles) > MaxReadMultipleHandles {
		if cb != nil {
			cb(conn, nil, errInvalidArgument("read multiple requires 2..16 handles"))
		}
		return
	}

	r, cid, berr := e.beginProcedure(conn, OpReadMultiple)
	if berr != nil {
		if cb != nil {
			cb(conn, nil, berr)
		}
		return
	}
	r.readMultiple = &readMultipleState{handles: append([]uint16{}, handles...), cb: cb}

	result := e.transport.TxReadMultiple(conn, cid, r.readMultiple.handles, false)
	if terminal := e.commitStart(r, result); terminal != nil {
		invokeTerminal(r, terminal)
		e.finish(r)
	}
}

// rxReadMultiple handles a Read Multiple Response.
func (e *Engine) rxReadMultiple(conn, cid uint16, data []byte) {
	r := e.table.extractFirst(byConnCIDOp(conn, cid, OpReadMultiple))
	if r == nil {
		return
	}
	cb := r.readMultiple.cb
	e.finish(r)
	if cb != nil {
		cb(conn, data, nil)
	}
}

// ReadMultipleVariable performs Read Multiple Variable Length, whose
// response frames each handle's value with an explicit length, so handles
// of differing or variable length may be mixed.
func (e *Engine) ReadMultipleVariable(conn uint16, handles []uint16, cb ReadMultipleVariableCallback) {
	if len(handles) < 2 || len(handles) > MaxReadMultipleHandles {
		if cb != nil {
			cb(conn, nil, errInvalidArgument("read multiple requires 2..16 handles"))
		}
		return
	}

	r, cid, berr := e.beginProcedure(conn, OpReadMultipleVariable)
	if berr != nil {
		if cb != nil {
			cb(conn, nil, berr)
		}
		return
	}
	r.readMultipleVar = &readMultipleVariableState{handles: append([]uint16{}, handles...), cb: cb}

	result := e.transport.TxReadMultiple(conn, cid, r.readMultipleVar.handles, true)
	if terminal := e.commitStart(r, result); terminal != nil {
		invokeTerminal(r, terminal)
		e.finish(r)
	}
}

// rxReadMultipleVariable handles a Read Multiple Variable Length Response:
// a sequence of [Length: 2][Value: Length] entries, one per handle.
func (e *Engine) rxReadMultipleVariable(conn, cid uint16, data []byte) {
	r := e.table.extractFirst(byConnCIDOp(conn, cid, OpReadMultipleVariable))
	if r == nil {
		return
	}

	values, err := parseReadMultipleVariableResponse(data)
	if err != nil {
		e.terminateWithError(r, errBadDataWrap(0, err, "read multiple variable response"))
		return
	}

	cb := r.readMultipleVar.cb
	e.finish(r)
	if cb != nil {
		cb(conn, values, nil)
	}
}

func parseReadMultipleVariableResponse(data []byte) ([][]byte, error) {
	var values [][]byte
	for len(data) > 0 {
		if len(data) < 2 {
			return nil, fmt.Errorf("gatt: truncated read-multiple-variable entry")
		}
		length := binary.LittleEndian.Uint16(data[0:2])
		data = data[2:]
		if uint16(len(data)) < length {
			return nil, fmt.Errorf("gatt: truncated read-multiple-variable value")
		}
		values = append(values, append([]byte{}, data[:length]...))
		data = data[length:]
	}
	return values, nil
}

// rxErrReadMultiple is the error-response handler for both Read Multiple
// variants; neither has an end-of-stream mapping.
func (e *Engine) rxErrReadMultiple(r *Record, code uint8, handle uint16) {
	e.terminateWithError(r, errAtt(code, handle))
}
