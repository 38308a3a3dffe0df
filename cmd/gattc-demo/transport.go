package main

import (
	"encoding/binary"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/user/gattc/gattc"
)

// pendingPDU is one synthesized response a demoTransport has queued for
// the caller to hand to Engine.Dispatch once the initiating Tx* call has
// returned, matching the engine's requirement that RX delivery happen out
// of band rather than from inside a Tx* call.
type pendingPDU struct {
	conn, cid uint16
	pdu       []byte
}

// demoTransport is a loopback stand-in for a real ATT transport: every
// request-style Tx* call is logged and answered with a canned PDU queued on
// pending; the write commands are logged but get no reply, and the
// notification sends are neither logged nor answered. This lets this
// binary exercise the engine end to end without real hardware, in the same simulated-peer spirit as the device it was
// adapted from.
type demoTransport struct {
	log     *logrus.Entry
	pending []pendingPDU
	mtu     map[uint16]uint16
}

func newDemoTransport(log *logrus.Entry) *demoTransport {
	return &demoTransport{log: log, mtu: map[uint16]uint16{}}
}

func (d *demoTransport) queue(conn, cid uint16, pdu []byte) {
	d.pending = append(d.pending, pendingPDU{conn: conn, cid: cid, pdu: pdu})
}

// drain hands every queued response to the engine, including any further
// responses a handler's own re-transmission queues along the way.
func (d *demoTransport) drain(e *gattc.Engine) {
	for len(d.pending) > 0 {
		p := d.pending[0]
		d.pending = d.pending[1:]
		if err := e.Dispatch(p.conn, p.cid, p.pdu); err != nil {
			d.log.WithError(err).Warn("dispatch failed")
		}
	}
}

func (d *demoTransport) TxMTU(conn, cid uint16, clientMTU uint16) gattc.TxResult {
	d.log.WithFields(logrus.Fields{"conn": conn, "clientMTU": clientMTU}).Info("-> Exchange MTU Request")
	serverMTU := uint16(185)
	d.mtu[conn<<16|cid] = min16(clientMTU, serverMTU)
	body := make([]byte, 2)
	binary.LittleEndian.PutUint16(body, serverMTU)
	d.queue(conn, cid, append([]byte{0x03}, body...))
	return gattc.TxOK
}

func (d *demoTransport) TxRead(conn, cid uint16, handle uint16) gattc.TxResult {
	d.log.WithFields(logrus.Fields{"conn": conn, "handle": fmt.Sprintf("0x%04X", handle)}).Info("-> Read Request")
	d.queue(conn, cid, append([]byte{0x0B}, []byte(fmt.Sprintf("value@%04x", handle))...))
	return gattc.TxOK
}

func (d *demoTransport) TxReadBlob(conn, cid uint16, handle uint16, offset uint16) gattc.TxResult {
	d.log.WithFields(logrus.Fields{"conn": conn, "handle": fmt.Sprintf("0x%04X", handle), "offset": offset}).Info("-> Read Blob Request")
	d.queue(conn, cid, []byte{0x0D}) // nothing more to read; ends the chunk walk
	return gattc.TxOK
}

func (d *demoTransport) TxReadByType(conn, cid uint16, r gattc.Range, typeUUID []byte) gattc.TxResult {
	d.log.WithFields(logrus.Fields{"conn": conn, "start": r.Start, "end": r.End}).Info("-> Read By Type Request")
	d.queue(conn, cid, errorPDU(0x08, r.Start, 0x0A)) // Attribute Not Found: nothing in this demo range
	return gattc.TxOK
}

func (d *demoTransport) TxReadByGroupType(conn, cid uint16, r gattc.Range, typeUUID []byte) gattc.TxResult {
	d.log.WithFields(logrus.Fields{"conn": conn, "start": r.Start, "end": r.End}).Info("-> Read By Group Type Request")
	if r.Start <= 0x0001 {
		entry := make([]byte, 6)
		binary.LittleEndian.PutUint16(entry[0:2], 0x0001)
		binary.LittleEndian.PutUint16(entry[2:4], 0x0005)
		binary.LittleEndian.PutUint16(entry[4:6], 0x1800) // Generic Access
		d.queue(conn, cid, append([]byte{0x11, 6}, entry...))
		return gattc.TxOK
	}
	d.queue(conn, cid, errorPDU(0x10, r.Start, 0x0A))
	return gattc.TxOK
}

func (d *demoTransport) TxFindInfo(conn, cid uint16, r gattc.Range) gattc.TxResult {
	d.log.WithFields(logrus.Fields{"conn": conn, "start": r.Start, "end": r.End}).Info("-> Find Information Request")
	d.queue(conn, cid, errorPDU(0x04, r.Start, 0x0A))
	return gattc.TxOK
}

func (d *demoTransport) TxFindByTypeValue(conn, cid uint16, r gattc.Range, typ, value []byte) gattc.TxResult {
	d.log.WithFields(logrus.Fields{"conn": conn, "start": r.Start, "end": r.End}).Info("-> Find By Type Value Request")
	d.queue(conn, cid, errorPDU(0x06, r.Start, 0x0A))
	return gattc.TxOK
}

func (d *demoTransport) TxReadMultiple(conn, cid uint16, handles []uint16, variable bool) gattc.TxResult {
	d.log.WithFields(logrus.Fields{"conn": conn, "handles": handles, "variable": variable}).Info("-> Read Multiple Request")
	d.queue(conn, cid, []byte{0x0F})
	return gattc.TxOK
}

func (d *demoTransport) TxWriteCommand(conn, cid uint16, handle uint16, payload []byte) gattc.TxResult {
	d.log.WithFields(logrus.Fields{"conn": conn, "handle": fmt.Sprintf("0x%04X", handle)}).Info("-> Write Command")
	return gattc.TxOK
}

func (d *demoTransport) TxWriteRequest(conn, cid uint16, handle uint16, payload []byte) gattc.TxResult {
	d.log.WithFields(logrus.Fields{"conn": conn, "handle": fmt.Sprintf("0x%04X", handle), "len": len(payload)}).Info("-> Write Request")
	d.queue(conn, cid, []byte{0x13})
	return gattc.TxOK
}

func (d *demoTransport) TxSignedWriteCommand(conn, cid uint16, handle uint16, counter uint32, signature [8]byte, payload []byte) gattc.TxResult {
	d.log.WithFields(logrus.Fields{"conn": conn, "handle": fmt.Sprintf("0x%04X", handle), "counter": counter, "signature": fmt.Sprintf("%x", signature)}).Info("-> Signed Write Command")
	return gattc.TxOK
}

func (d *demoTransport) TxPrepareWrite(conn, cid uint16, handle uint16, offset uint16, chunk []byte) gattc.TxResult {
	d.log.WithFields(logrus.Fields{"conn": conn, "handle": fmt.Sprintf("0x%04X", handle), "offset": offset, "len": len(chunk)}).Info("-> Prepare Write Request")
	body := make([]byte, 4+len(chunk))
	binary.LittleEndian.PutUint16(body[0:2], handle)
	binary.LittleEndian.PutUint16(body[2:4], offset)
	copy(body[4:], chunk)
	d.queue(conn, cid, append([]byte{0x17}, body...))
	return gattc.TxOK
}

func (d *demoTransport) TxExecuteWrite(conn, cid uint16, commit bool) gattc.TxResult {
	d.log.WithFields(logrus.Fields{"conn": conn, "commit": commit}).Info("-> Execute Write Request")
	d.queue(conn, cid, []byte{0x19})
	return gattc.TxOK
}

func (d *demoTransport) TxNotify(conn, cid uint16, handle uint16, payload []byte) gattc.TxResult {
	return gattc.TxOK
}

func (d *demoTransport) TxNotifyMultiple(conn, cid uint16, batch []byte) gattc.TxResult {
	return gattc.TxOK
}

func (d *demoTransport) TxIndicate(conn, cid uint16, handle uint16, payload []byte) gattc.TxResult {
	d.log.WithFields(logrus.Fields{"conn": conn, "handle": fmt.Sprintf("0x%04X", handle), "len": len(payload)}).Info("-> Handle Value Indication")
	d.queue(conn, cid, []byte{0x1E})
	return gattc.TxOK
}

func (d *demoTransport) ConnFind(conn uint16) bool { return conn == 1 }

func (d *demoTransport) Terminate(conn uint16, reason gattc.TerminationReason) {
	d.log.WithFields(logrus.Fields{"conn": conn, "reason": reason}).Warn("connection manager asked to terminate link")
}

func (d *demoTransport) MTUByCID(conn, cid uint16) uint16 {
	if mtu, ok := d.mtu[conn<<16|cid]; ok {
		return mtu
	}
	return 23
}

func errorPDU(reqOpcode uint8, handle uint16, code uint8) []byte {
	b := make([]byte, 5)
	b[0] = 0x01
	b[1] = reqOpcode
	binary.LittleEndian.PutUint16(b[2:4], handle)
	b[4] = code
	return b
}

func min16(a, b uint16) uint16 {
	if a < b {
		return a
	}
	return b
}
