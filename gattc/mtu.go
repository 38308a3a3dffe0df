package gattc

// ExchangeMTU starts an MTU exchange: one round trip, the client's MTU
// going out, the peer's MTU coming back. A second exchange may not be
// started while one is already in flight on conn; once that procedure
// completes (or the connection drops and reconnects) a fresh exchange is
// allowed.
func (e *Engine) ExchangeMTU(conn uint16, clientMTU uint16, cb MTUCallback) {
	if e.table.hasMatching(byConnOp(conn, OpMTU)) {
		if cb != nil {
			cb(conn, 0, errInvalidArgument("MTU exchange already in progress"))
		}
		return
	}

	r, cid, berr := e.beginProcedure(conn, OpMTU)
	if berr != nil {
		if cb != nil {
			cb(conn, 0, berr)
		}
		return
	}
	r.mtu = &mtuState{clientMTU: clientMTU, cb: cb}

	result := e.transport.TxMTU(conn, cid, clientMTU)
	if terminal := e.commitStart(r, result); terminal != nil {
		invokeTerminal(r, terminal)
		e.finish(r)
	}
}

// rxMTU handles an Exchange MTU Response. The negotiated MTU delivered to
// the callback is the smaller of the two sides' advertised values, per
// Core Spec Vol 3 Part F 3.4.2.
func (e *Engine) rxMTU(conn, cid uint16, serverMTU uint16) {
	r := e.table.extractFirst(byConnCIDOp(conn, cid, OpMTU))
	if r == nil {
		return
	}

	negotiated := r.mtu.clientMTU
	if serverMTU < negotiated {
		negotiated = serverMTU
	}

	cb := r.mtu.cb
	e.finish(r)
	if cb != nil {
		cb(conn, negotiated, nil)
	}
}

// rxErrMTU handles an ATT error response matched to an outstanding MTU
// exchange. Any ATT error terminates the procedure with that error; there
// is no end-of-stream mapping for MTU.
func (e *Engine) rxErrMTU(r *Record, code uint8, handle uint16) {
	e.terminateWithError(r, errAtt(code, handle))
}
