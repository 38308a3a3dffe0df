package gattc

import (
	"encoding/binary"
	"fmt"

	"github.com/user/gattc/att"
)

// Dispatch decodes one incoming ATT PDU and routes it to the procedure
// tracked for (conn, cid) that is waiting for it. It is the engine's only
// RX entry point; callers (a real transport's receive loop, or a test
// harness) own reading PDUs off the wire and call this once per PDU.
func (e *Engine) Dispatch(conn, cid uint16, pdu []byte) error {
	if len(pdu) < 1 {
		return fmt.Errorf("gattc: empty PDU")
	}
	opcode, body := pdu[0], pdu[1:]

	switch opcode {
	case att.OpErrorResponse:
		return e.dispatchErrorResponse(conn, cid, body)
	case att.OpExchangeMTUResponse:
		if len(body) < 2 {
			return fmt.Errorf("gattc: truncated MTU response")
		}
		e.rxMTU(conn, cid, binary.LittleEndian.Uint16(body))
	case att.OpReadByGroupTypeResponse:
		e.rxReadByGroupType(conn, cid, body)
	case att.OpFindByTypeValueResponse:
		e.rxFindByTypeValue(conn, cid, body)
	case att.OpReadByTypeResponse:
		e.rxReadByType(conn, cid, body)
	case att.OpFindInformationResponse:
		e.rxFindInfo(conn, cid, body)
	case att.OpReadResponse:
		e.rxRead(conn, cid, body)
	case att.OpReadBlobResponse:
		e.rxReadBlob(conn, cid, body)
	case att.OpReadMultipleResponse:
		e.rxReadMultiple(conn, cid, body)
	case att.OpReadMultipleVariableResponse:
		e.rxReadMultipleVariable(conn, cid, body)
	case att.OpWriteResponse:
		e.rxWrite(conn, cid)
	case att.OpPrepareWriteResponse:
		handle, offset, value, perr := parsePrepareWriteResponse(body)
		if perr != nil {
			return wrapf(perr, "conn %d cid %d: prepare write response", conn, cid)
		}
		e.rxPrepareWrite(conn, cid, handle, offset, value)
	case att.OpExecuteWriteResponse:
		e.rxExecuteWrite(conn, cid)
	case att.OpHandleValueConfirmation:
		e.rxIndicateConfirm(conn, cid)
	default:
		e.log.WithFields(map[string]interface{}{"conn": conn, "cid": cid, "opcode": opcode}).
			Debug("unhandled ATT opcode")
	}
	return nil
}

func parsePrepareWriteResponse(body []byte) (handle, offset uint16, value []byte, err error) {
	if len(body) < 4 {
		return 0, 0, nil, fmt.Errorf("gattc: truncated prepare write response")
	}
	return binary.LittleEndian.Uint16(body[0:2]), binary.LittleEndian.Uint16(body[2:4]), body[4:], nil
}

// dispatchErrorResponse extracts the first procedure tracked for (conn,
// cid), any op, and routes it to that op's error handler. A Database Out
// Of Sync error first invalidates whatever the configured cache holds for
// conn, mirroring what a fresh discovery would now find.
func (e *Engine) dispatchErrorResponse(conn, cid uint16, body []byte) error {
	if len(body) < 4 {
		return fmt.Errorf("gattc: truncated error response")
	}
	handle := binary.LittleEndian.Uint16(body[1:3])
	code := body[3]

	if code == att.ErrDatabaseOutOfSync {
		if gc := e.cacheLookup(); gc != nil {
			gc.ConnUpdate(conn, 0x0000, 0xFFFF)
		}
	}

	r := e.table.extractFirst(byConnCID(conn, cid))
	if r == nil {
		return nil
	}

	switch r.Op {
	case OpMTU:
		e.rxErrMTU(r, code, handle)
	case OpDiscAllServices, OpDiscServiceByUUID,
		OpFindIncludedServices, OpDiscAllCharacteristics, OpDiscCharacteristicsByUUID,
		OpDiscAllDescriptors, OpReadByUUID:
		e.rxErrDiscovery(r, code, handle)
	case OpRead:
		e.rxErrRead(r, code, handle)
	case OpReadLong:
		e.rxErrReadLong(r, code, handle)
	case OpReadMultiple, OpReadMultipleVariable:
		e.rxErrReadMultiple(r, code, handle)
	case OpWrite:
		e.rxErrWrite(r, code, handle)
	case OpWriteLong:
		if r.writeLong.executing {
			e.rxErrExecuteWrite(r, code, handle)
		} else {
			e.rxErrPrepareWrite(r, code, handle)
		}
	case OpReliableWrite:
		if r.reliableWrite.executing {
			e.rxErrExecuteWrite(r, code, handle)
		} else {
			e.rxErrPrepareWrite(r, code, handle)
		}
	case OpIndicate:
		e.rxErrIndicate(r, code, handle)
	default:
		e.terminateWithError(r, errAtt(code, handle))
	}
	return nil
}
