package gattc

import (
	"github.com/user/gattc/att"
	"github.com/user/gattc/security"
)

// WriteAttr is one (handle, value) pair submitted to ReliableWrite.
type WriteAttr struct {
	Handle uint16
	Value  []byte
}

// WriteNoRsp sends a Write Without Response: fire-and-forget, no record, no
// retry on transient transport exhaustion.
func (e *Engine) WriteNoRsp(conn uint16, handle uint16, payload []byte) error {
	if e.connMgr != nil && !e.connMgr.ConnFind(conn) {
		return errNotConnected()
	}
	cid := e.channels.PickTransient(conn)
	switch e.transport.TxWriteCommand(conn, cid, handle, payload) {
	case TxOK:
		return nil
	case TxOutOfMemory:
		return errOutOfMemory()
	default:
		return errNotConnected()
	}
}

// SignedWrite sends an Authenticated Signed Write Command, using the
// connection's on-file CSRK and sign counter. It requires a bonded link
// that is not already encrypted (Core Spec Vol 3, Part C, 10.4.1: signed
// writes only make sense on an unencrypted bearer).
func (e *Engine) SignedWrite(conn uint16, handle uint16, payload []byte) error {
	if e.cfg.security == nil {
		return errNotSupported("signed write requires a security manager")
	}
	if e.connMgr != nil && !e.connMgr.ConnFind(conn) {
		return errNotConnected()
	}

	sec, err := e.cfg.security.StoreReadOurSec(conn)
	if err != nil {
		return errNotConnected()
	}
	if sec.Encrypted {
		return errEncrypted()
	}
	if !sec.CSRKPresent {
		return errAuthenticationRequired()
	}

	sig, serr := security.SignCounter(sec.CSRK, sec.Counter, att.OpSignedWriteCommand, handle, payload)
	if serr != nil {
		return errInvalidArgument(wrapf(serr, "signed write: compute signature").Error())
	}

	cid := e.channels.PickTransient(conn)
	switch e.transport.TxSignedWriteCommand(conn, cid, handle, sec.Counter, sig, payload) {
	case TxOK:
		if ierr := e.cfg.security.IncrementSignCounter(conn); ierr != nil {
			e.log.WithError(ierr).Warn("failed to persist sign counter")
		}
		return nil
	case TxOutOfMemory:
		return errOutOfMemory()
	default:
		return errNotConnected()
	}
}

// Write performs Write With Response against a single handle. The payload
// is retained for the life of the procedure so it can be resent verbatim
// if the transport stalls, and, when auto-pair replay is configured,
// resubmitted automatically if the peer demands elevated security.
func (e *Engine) Write(conn uint16, handle uint16, payload []byte, cb WriteCallback) {
	r, cid, berr := e.beginProcedure(conn, OpWrite)
	if berr != nil {
		if cb != nil {
			cb(conn, handle, berr)
		}
		return
	}

	r.write = &writeState{handle: handle, payload: append([]byte{}, payload...), cb: cb}

	result := e.transport.TxWriteRequest(conn, cid, handle, r.write.payload)
	if terminal := e.commitStart(r, result); terminal != nil {
		invokeTerminal(r, terminal)
		e.finish(r)
	}
}

// rxWrite handles a Write Response, which carries no value.
func (e *Engine) rxWrite(conn, cid uint16) {
	r := e.table.extractFirst(byConnCIDOp(conn, cid, OpWrite))
	if r == nil {
		return
	}
	cb := r.write.cb
	handle := r.write.handle
	e.finish(r)
	if cb != nil {
		cb(conn, handle, nil)
	}
}

// rxErrWrite handles an ATT error matched to Write With Response. A
// security-elevation error is first offered to the auto-pair path, which
// may park the procedure for replay instead of failing it outright.
func (e *Engine) rxErrWrite(r *Record, code uint8, handle uint16) {
	if e.autoPair != nil && e.autoPair.tryPark(r, code, handle) {
		return
	}
	e.terminateWithError(r, errAtt(code, handle))
}

// prepareFragment sends the next Prepare Write Request for attr's current
// offset, capping the chunk to what the negotiated MTU allows (5 bytes of
// opcode/handle/offset overhead).
func (e *Engine) prepareFragment(conn, cid uint16, attr *writeAttr) TxResult {
	mtu := int(e.connMgr.MTUByCID(conn, cid))
	maxChunk := mtu - 5
	if maxChunk < 0 {
		maxChunk = 0
	}
	remaining := attr.payload[attr.offset:]
	chunkLen := len(remaining)
	if chunkLen > maxChunk {
		chunkLen = maxChunk
	}
	attr.fragmentLen = uint16(chunkLen)
	return e.transport.TxPrepareWrite(conn, cid, attr.handle, attr.offset, remaining[:chunkLen])
}

// WriteLong performs Write Long: payload is prepared in chunks and
// committed with Execute Write once every chunk is queued.
func (e *Engine) WriteLong(conn uint16, handle uint16, payload []byte, cb WriteCallback) {
	r, cid, berr := e.beginProcedure(conn, OpWriteLong)
	if berr != nil {
		if cb != nil {
			cb(conn, handle, berr)
		}
		return
	}
	r.writeLong = &writeLongState{attr: writeAttr{handle: handle, payload: append([]byte{}, payload...)}, cb: cb}

	result := e.prepareFragment(conn, cid, &r.writeLong.attr)
	if terminal := e.commitStart(r, result); terminal != nil {
		invokeTerminal(r, terminal)
		e.finish(r)
	}
}

// ReliableWrite performs Reliable Write across up to MaxReliableWriteAttrs
// attributes: every attribute is prepared and its server echo verified
// before Execute Write commits the whole set atomically.
func (e *Engine) ReliableWrite(conn uint16, attrs []WriteAttr, cb WriteCallback) {
	if len(attrs) == 0 || len(attrs) > MaxReliableWriteAttrs {
		if cb != nil {
			cb(conn, 0, errInvalidArgument("reliable write requires 1..4 attributes"))
		}
		return
	}

	r, cid, berr := e.beginProcedure(conn, OpReliableWrite)
	if berr != nil {
		if cb != nil {
			cb(conn, attrs[0].Handle, berr)
		}
		return
	}

	internal := make([]writeAttr, len(attrs))
	for i, a := range attrs {
		internal[i] = writeAttr{handle: a.Handle, payload: append([]byte{}, a.Value...)}
	}
	r.reliableWrite = &reliableWriteState{attrs: internal, cb: cb}

	result := e.prepareFragment(conn, cid, &r.reliableWrite.attrs[0])
	if terminal := e.commitStart(r, result); terminal != nil {
		invokeTerminal(r, terminal)
		e.finish(r)
	}
}

// rxPrepareWrite handles a Prepare Write Response, shared by Write Long and
// Reliable Write.
func (e *Engine) rxPrepareWrite(conn, cid uint16, handle uint16, offset uint16, value []byte) {
	r := e.table.extractFirst(byConnCIDOps(conn, cid, OpWriteLong, OpReliableWrite))
	if r == nil {
		return
	}

	switch r.Op {
	case OpWriteLong:
		e.onPrepareWriteLong(r, handle, offset, value)
	case OpReliableWrite:
		e.onPrepareReliable(r, handle, offset, value)
	}
}

func (e *Engine) onPrepareWriteLong(r *Record, handle uint16, offset uint16, value []byte) {
	r.writeLong.anyPrepared = true
	attr := &r.writeLong.attr

	if !echoMatches(attr, handle, offset, value) {
		e.cancelAndWait(r, errBadData(handle, "prepare write echo mismatch"))
		return
	}
	attr.offset += attr.fragmentLen

	if int(attr.offset) >= len(attr.payload) {
		r.writeLong.executing = true
		result := e.transport.TxExecuteWrite(r.Conn, r.CID, true)
		if terminal, outcome := e.advance(r, result); terminal {
			e.terminateWithError(r, outcome)
		}
		return
	}

	result := e.prepareFragment(r.Conn, r.CID, attr)
	if terminal, outcome := e.advance(r, result); terminal {
		e.terminateWithError(r, outcome)
	}
}

func (e *Engine) onPrepareReliable(r *Record, handle uint16, offset uint16, value []byte) {
	r.reliableWrite.anyPrepared = true
	attr := &r.reliableWrite.attrs[r.reliableWrite.curAttr]

	if !echoMatches(attr, handle, offset, value) {
		e.cancelAndWait(r, errBadData(handle, "prepare write echo mismatch"))
		return
	}
	attr.offset += attr.fragmentLen

	if int(attr.offset) < len(attr.payload) {
		result := e.prepareFragment(r.Conn, r.CID, attr)
		if terminal, outcome := e.advance(r, result); terminal {
			e.terminateWithError(r, outcome)
		}
		return
	}

	r.reliableWrite.curAttr++
	if r.reliableWrite.curAttr >= len(r.reliableWrite.attrs) {
		r.reliableWrite.executing = true
		result := e.transport.TxExecuteWrite(r.Conn, r.CID, true)
		if terminal, outcome := e.advance(r, result); terminal {
			e.terminateWithError(r, outcome)
		}
		return
	}

	next := &r.reliableWrite.attrs[r.reliableWrite.curAttr]
	result := e.prepareFragment(r.Conn, r.CID, next)
	if terminal, outcome := e.advance(r, result); terminal {
		e.terminateWithError(r, outcome)
	}
}

func echoMatches(attr *writeAttr, handle uint16, offset uint16, value []byte) bool {
	if handle != attr.handle || offset != attr.offset {
		return false
	}
	want := attr.payload[attr.offset : int(attr.offset)+int(attr.fragmentLen)]
	if len(value) != len(want) {
		return false
	}
	for i := range value {
		if value[i] != want[i] {
			return false
		}
	}
	return true
}

// cancelAndWait sends an Execute Write cancel (Flags=0x00) and records
// reason as the error to deliver once the cancel's own response arrives,
// per the Core Spec requirement that a client clear its prepare queue
// before abandoning a long or reliable write it partially queued.
func (e *Engine) cancelAndWait(r *Record, reason *Error) {
	switch r.Op {
	case OpWriteLong:
		r.writeLong.cancelReason = reason
		r.writeLong.executing = true
	case OpReliableWrite:
		r.reliableWrite.cancelReason = reason
		r.reliableWrite.executing = true
	}

	result := e.transport.TxExecuteWrite(r.Conn, r.CID, false)
	if terminal, outcome := e.advance(r, result); terminal {
		e.terminateWithError(r, outcome)
	}
}

// rxErrPrepareWrite handles an ATT error returned for the Prepare Write
// Request itself (as opposed to a malformed echo). If nothing was queued
// yet, the procedure simply fails; otherwise the queue must be cancelled.
func (e *Engine) rxErrPrepareWrite(r *Record, code uint8, handle uint16) {
	if e.autoPair != nil && e.autoPair.tryPark(r, code, handle) {
		return
	}

	var anyPrepared bool
	switch r.Op {
	case OpWriteLong:
		anyPrepared = r.writeLong.anyPrepared
	case OpReliableWrite:
		anyPrepared = r.reliableWrite.anyPrepared
	}

	reason := errAtt(code, handle)
	if !anyPrepared {
		e.terminateWithError(r, reason)
		return
	}
	e.cancelAndWait(r, reason)
}

// rxExecuteWrite handles an Execute Write Response for Write Long or
// Reliable Write, whether it committed the queue or cancelled it.
func (e *Engine) rxExecuteWrite(conn, cid uint16) {
	r := e.table.extractFirst(byConnCIDOps(conn, cid, OpWriteLong, OpReliableWrite))
	if r == nil {
		return
	}

	switch r.Op {
	case OpWriteLong:
		if r.writeLong.cancelReason != nil {
			e.terminateWithError(r, r.writeLong.cancelReason)
			return
		}
		cb := r.writeLong.cb
		handle := r.writeLong.attr.handle
		e.finish(r)
		if cb != nil {
			cb(conn, handle, nil)
		}
	case OpReliableWrite:
		if r.reliableWrite.cancelReason != nil {
			e.terminateWithError(r, r.reliableWrite.cancelReason)
			return
		}
		cb := r.reliableWrite.cb
		handle := r.reliableWrite.attrs[0].handle
		e.finish(r)
		if cb != nil {
			cb(conn, handle, nil)
		}
	}
}

// rxErrExecuteWrite handles an ATT error for the Execute Write Request
// itself; a cancel already in flight still reports its original reason.
func (e *Engine) rxErrExecuteWrite(r *Record, code uint8, handle uint16) {
	switch r.Op {
	case OpWriteLong:
		if r.writeLong.cancelReason != nil {
			e.terminateWithError(r, r.writeLong.cancelReason)
			return
		}
	case OpReliableWrite:
		if r.reliableWrite.cancelReason != nil {
			e.terminateWithError(r, r.reliableWrite.cancelReason)
			return
		}
	}
	e.terminateWithError(r, errAtt(code, handle))
}
