package gattc

// TxResult is the outcome of handing a PDU to the ATT transport.
type TxResult int

const (
	// TxOK: the PDU was accepted by the transport.
	TxOK TxResult = iota
	// TxOutOfMemory: transient buffer exhaustion; the caller should stall
	// and retry later, not fail the procedure.
	TxOutOfMemory
	// TxFatal: the transport reported a permanent failure (e.g. the link is
	// gone). The caller should fail the procedure with NotConnected.
	TxFatal
)

// Range is an inclusive ATT handle range.
type Range struct {
	Start uint16
	End   uint16
}

// Transport is the ATT transport collaborator the engine drives. Every
// Tx* method hands a fully-formed request to the transport for the given
// connection and CID and returns immediately; it must not block waiting for
// a peer response. RX delivery happens out of band through the Dispatcher's
// entry points.
type Transport interface {
	TxMTU(conn, cid uint16, clientMTU uint16) TxResult
	TxRead(conn, cid uint16, handle uint16) TxResult
	TxReadBlob(conn, cid uint16, handle uint16, offset uint16) TxResult
	TxReadByType(conn, cid uint16, r Range, typeUUID []byte) TxResult
	TxReadByGroupType(conn, cid uint16, r Range, typeUUID []byte) TxResult
	TxFindInfo(conn, cid uint16, r Range) TxResult
	TxFindByTypeValue(conn, cid uint16, r Range, typ, value []byte) TxResult
	TxReadMultiple(conn, cid uint16, handles []uint16, variable bool) TxResult
	TxWriteCommand(conn, cid uint16, handle uint16, payload []byte) TxResult
	TxWriteRequest(conn, cid uint16, handle uint16, payload []byte) TxResult
	TxSignedWriteCommand(conn, cid uint16, handle uint16, counter uint32, signature [8]byte, payload []byte) TxResult
	TxPrepareWrite(conn, cid uint16, handle uint16, offset uint16, chunk []byte) TxResult
	TxExecuteWrite(conn, cid uint16, commit bool) TxResult
	TxNotify(conn, cid uint16, handle uint16, payload []byte) TxResult
	TxNotifyMultiple(conn, cid uint16, batch []byte) TxResult
	TxIndicate(conn, cid uint16, handle uint16, payload []byte) TxResult
}

// TerminationReason mirrors the Core Spec disconnect reason codes the
// engine needs to request explicitly.
type TerminationReason uint8

const (
	// ReasonRemoteUserTerminated is the reason code the engine asks the
	// connection manager to tear a link down with on an ATT transaction
	// timeout, matching ble_gattc_timer()'s BLE_ERR_REM_USER_CONN_TERM.
	ReasonRemoteUserTerminated TerminationReason = 0x13
)

// ConnectionManager is the connection-management collaborator consumed by
// the engine to validate connection handles, look up negotiated MTU per
// CID, and terminate a link on an unrecoverable ATT timeout.
type ConnectionManager interface {
	ConnFind(conn uint16) (exists bool)
	Terminate(conn uint16, reason TerminationReason)
	MTUByCID(conn, cid uint16) uint16
}
