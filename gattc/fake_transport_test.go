package gattc

import (
	"encoding/binary"
	"sync"

	"github.com/user/gattc/att"
)

// txCall records one Tx* invocation the engine made against fakeTransport,
// logged generically since tests care about "did this method fire with
// these arguments", not a typed per-method history.
type txCall struct {
	method  string
	conn    uint16
	cid     uint16
	handle  uint16
	offset  uint16
	commit  bool
	payload []byte
	r       Range
}

type terminateCall struct {
	conn   uint16
	reason TerminationReason
}

// fakeTransport is a Transport and ConnectionManager double: it never talks
// to a real peer, just logs every Tx* call and hands back a scripted
// TxResult, while tests feed RX PDUs straight into Engine.Dispatch.
type fakeTransport struct {
	mu sync.Mutex

	calls  []txCall
	forced []TxResult

	connected  map[uint16]bool
	mtu        map[uint16]uint16
	terminated []terminateCall
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		connected: map[uint16]bool{1: true},
		mtu:       map[uint16]uint16{},
	}
}

// forceNext queues results to be returned by the next len(results) Tx*
// calls, in order. Calls made once the queue drains get TxOK.
func (f *fakeTransport) forceNext(results ...TxResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forced = append(f.forced, results...)
}

func (f *fakeTransport) nextResult() TxResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.forced) == 0 {
		return TxOK
	}
	r := f.forced[0]
	f.forced = f.forced[1:]
	return r
}

func (f *fakeTransport) log(c txCall) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
}

func (f *fakeTransport) setMTU(conn, cid uint16, mtu uint16) {
	f.mu.Lock()
	f.mtu[conn<<16|cid] = mtu
	f.mu.Unlock()
}

func (f *fakeTransport) setConnected(conn uint16, up bool) {
	f.mu.Lock()
	f.connected[conn] = up
	f.mu.Unlock()
}

func (f *fakeTransport) lastCall() txCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return txCall{}
	}
	return f.calls[len(f.calls)-1]
}

func (f *fakeTransport) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeTransport) TxMTU(conn, cid uint16, clientMTU uint16) TxResult {
	f.log(txCall{method: "TxMTU", conn: conn, cid: cid, offset: clientMTU})
	return f.nextResult()
}

func (f *fakeTransport) TxRead(conn, cid uint16, handle uint16) TxResult {
	f.log(txCall{method: "TxRead", conn: conn, cid: cid, handle: handle})
	return f.nextResult()
}

func (f *fakeTransport) TxReadBlob(conn, cid uint16, handle uint16, offset uint16) TxResult {
	f.log(txCall{method: "TxReadBlob", conn: conn, cid: cid, handle: handle, offset: offset})
	return f.nextResult()
}

func (f *fakeTransport) TxReadByType(conn, cid uint16, r Range, typeUUID []byte) TxResult {
	f.log(txCall{method: "TxReadByType", conn: conn, cid: cid, r: r, payload: typeUUID})
	return f.nextResult()
}

func (f *fakeTransport) TxReadByGroupType(conn, cid uint16, r Range, typeUUID []byte) TxResult {
	f.log(txCall{method: "TxReadByGroupType", conn: conn, cid: cid, r: r, payload: typeUUID})
	return f.nextResult()
}

func (f *fakeTransport) TxFindInfo(conn, cid uint16, r Range) TxResult {
	f.log(txCall{method: "TxFindInfo", conn: conn, cid: cid, r: r})
	return f.nextResult()
}

func (f *fakeTransport) TxFindByTypeValue(conn, cid uint16, r Range, typ, value []byte) TxResult {
	f.log(txCall{method: "TxFindByTypeValue", conn: conn, cid: cid, r: r, payload: value})
	return f.nextResult()
}

func (f *fakeTransport) TxReadMultiple(conn, cid uint16, handles []uint16, variable bool) TxResult {
	f.log(txCall{method: "TxReadMultiple", conn: conn, cid: cid})
	return f.nextResult()
}

func (f *fakeTransport) TxWriteCommand(conn, cid uint16, handle uint16, payload []byte) TxResult {
	f.log(txCall{method: "TxWriteCommand", conn: conn, cid: cid, handle: handle, payload: payload})
	return f.nextResult()
}

func (f *fakeTransport) TxWriteRequest(conn, cid uint16, handle uint16, payload []byte) TxResult {
	f.log(txCall{method: "TxWriteRequest", conn: conn, cid: cid, handle: handle, payload: payload})
	return f.nextResult()
}

func (f *fakeTransport) TxSignedWriteCommand(conn, cid uint16, handle uint16, counter uint32, signature [8]byte, payload []byte) TxResult {
	f.log(txCall{method: "TxSignedWriteCommand", conn: conn, cid: cid, handle: handle, offset: uint16(counter), payload: append(append([]byte{}, signature[:]...), payload...)})
	return f.nextResult()
}

func (f *fakeTransport) TxPrepareWrite(conn, cid uint16, handle uint16, offset uint16, chunk []byte) TxResult {
	f.log(txCall{method: "TxPrepareWrite", conn: conn, cid: cid, handle: handle, offset: offset, payload: chunk})
	return f.nextResult()
}

func (f *fakeTransport) TxExecuteWrite(conn, cid uint16, commit bool) TxResult {
	f.log(txCall{method: "TxExecuteWrite", conn: conn, cid: cid, commit: commit})
	return f.nextResult()
}

func (f *fakeTransport) TxNotify(conn, cid uint16, handle uint16, payload []byte) TxResult {
	f.log(txCall{method: "TxNotify", conn: conn, cid: cid, handle: handle, payload: payload})
	return f.nextResult()
}

func (f *fakeTransport) TxNotifyMultiple(conn, cid uint16, batch []byte) TxResult {
	f.log(txCall{method: "TxNotifyMultiple", conn: conn, cid: cid, payload: batch})
	return f.nextResult()
}

func (f *fakeTransport) TxIndicate(conn, cid uint16, handle uint16, payload []byte) TxResult {
	f.log(txCall{method: "TxIndicate", conn: conn, cid: cid, handle: handle, payload: payload})
	return f.nextResult()
}

func (f *fakeTransport) ConnFind(conn uint16) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected[conn]
}

func (f *fakeTransport) Terminate(conn uint16, reason TerminationReason) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terminated = append(f.terminated, terminateCall{conn: conn, reason: reason})
}

func (f *fakeTransport) MTUByCID(conn, cid uint16) uint16 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if mtu, ok := f.mtu[conn<<16|cid]; ok {
		return mtu
	}
	return 23
}

// --- PDU builders: tests construct raw wire bytes directly rather than
// going through att.EncodePacket, since several of these response shapes
// (Read Blob, Execute Write, Handle Value Confirmation) carry no struct of
// their own in the packet codec — their body is exactly what the type
// already guarantees (a bare value, or nothing at all).

// errorResponsePDU builds an Error Response: opcode, the one-byte request
// opcode it answers, the attribute handle in error, and the error code.
func errorResponsePDU(reqOpcode uint8, handle uint16, code uint8) []byte {
	b := make([]byte, 5)
	b[0] = att.OpErrorResponse
	b[1] = reqOpcode
	binary.LittleEndian.PutUint16(b[2:4], handle)
	b[4] = code
	return b
}

func readByGroupTypeResponsePDU(entryLen int, entries ...[]byte) []byte {
	buf := []byte{att.OpReadByGroupTypeResponse, byte(entryLen)}
	for _, e := range entries {
		buf = append(buf, e...)
	}
	return buf
}

func readResponsePDU(value []byte) []byte {
	return append([]byte{att.OpReadResponse}, value...)
}

func readBlobResponsePDU(value []byte) []byte {
	return append([]byte{att.OpReadBlobResponse}, value...)
}

func executeWriteResponsePDU() []byte {
	return []byte{att.OpExecuteWriteResponse}
}

func prepareWriteResponsePDU(handle, offset uint16, value []byte) []byte {
	buf := make([]byte, 5+len(value))
	buf[0] = att.OpPrepareWriteResponse
	binary.LittleEndian.PutUint16(buf[1:3], handle)
	binary.LittleEndian.PutUint16(buf[3:5], offset)
	copy(buf[5:], value)
	return buf
}

func handleValueConfirmationPDU() []byte {
	return []byte{att.OpHandleValueConfirmation}
}
