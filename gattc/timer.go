package gattc

import (
	"time"

	"github.com/user/gattc/gatt"
)

// Tick drives both of the engine's time-based sweeps: it fails any
// procedure whose 30s transaction deadline has passed and, if a transport
// stall was flagged since the last call, retries every STALLED record in
// FIFO order. Callers own the cadence — a real transport's event loop ticks
// this on a timer; there is no goroutine of the engine's own, and Tick does
// not consult the WithResumeRate value.
func (e *Engine) Tick(now time.Time) {
	e.sweepTimeouts(now)

	e.resumeMu.Lock()
	due := e.resumePending
	e.resumePending = false
	e.resumeMu.Unlock()

	if due {
		e.sweepResume()
	}
}

// sweepTimeouts fails every record whose deadline has passed with
// KindTimeout and asks the connection manager to tear down its link, since
// an ATT transaction timeout is fatal to the bearer, not just to the
// procedure that was waiting on it. One Terminate call per connection per
// sweep, even if several procedures timed out on it at once.
func (e *Engine) sweepTimeouts(now time.Time) {
	expiredRecords := e.table.extractMatching(expired(now), 0)
	if len(expiredRecords) == 0 {
		return
	}

	terminated := make(map[uint16]bool)
	for _, r := range expiredRecords {
		conn := r.Conn
		e.terminateWithError(r, errTimeout())
		if !terminated[conn] {
			terminated[conn] = true
			if e.connMgr != nil {
				e.connMgr.Terminate(conn, ReasonRemoteUserTerminated)
			}
		}
	}
}

// sweepResume retries every STALLED record by resending its last
// outstanding request. A record whose resend succeeds is reinserted with a
// fresh deadline by advance(); one that still can't get a buffer stays
// STALLED and re-arms the next sweep.
func (e *Engine) sweepResume() {
	stalled := e.table.extractMatching(stalledPredicate(), 0)
	for _, r := range stalled {
		result := e.resend(r)
		if terminal, outcome := e.advance(r, result); terminal {
			e.terminateWithError(r, outcome)
		}
	}
}

// resend reissues r's current outstanding request verbatim, using exactly
// the state its initiator or last onEvent handler already committed to
// (the target handle/range/offset, the prepare fragment in flight, the
// commit-vs-cancel direction of an Execute Write). It never advances a
// record's logical position; that only happens once the peer actually
// answers.
func (e *Engine) resend(r *Record) TxResult {
	switch r.Op {
	// OpMTU never appears here: commitStart fails an MTU exchange outright
	// on a first-TX stall instead of queuing it, since MTU has no retry on
	// stall (§4.4.1) and ble_gattc_resume_dispatch has no MTU case either.

	case OpDiscAllServices:
		return e.transport.TxReadByGroupType(r.Conn, r.CID, Range{Start: r.disc.prevHandle + 1, End: 0xFFFF}, gatt.UUIDPrimaryService)
	case OpDiscServiceByUUID:
		return e.transport.TxFindByTypeValue(r.Conn, r.CID, Range{Start: r.disc.prevHandle + 1, End: 0xFFFF}, gatt.UUIDPrimaryService, r.disc.targetUUID.Bytes())
	case OpDiscAllCharacteristics, OpDiscCharacteristicsByUUID:
		return e.transport.TxReadByType(r.Conn, r.CID, Range{Start: r.disc.prevHandle + 1, End: r.disc.endHandle}, gatt.UUIDCharacteristic)
	case OpDiscAllDescriptors:
		return e.transport.TxFindInfo(r.Conn, r.CID, Range{Start: r.desc.prevHandle + 1, End: r.desc.endHandle})
	case OpFindIncludedServices:
		if r.include.curStart != 0 {
			return e.transport.TxRead(r.Conn, r.CID, r.include.curStart)
		}
		return e.transport.TxReadByType(r.Conn, r.CID, Range{Start: r.include.prevHandle + 1, End: r.include.endHandle}, gatt.UUIDInclude)

	case OpRead:
		return e.transport.TxRead(r.Conn, r.CID, r.read.handle)
	case OpReadByUUID:
		return e.transport.TxReadByType(r.Conn, r.CID, Range{Start: r.readByUUID.startHandle, End: r.readByUUID.endHandle}, r.readByUUID.uuid.Bytes())
	case OpReadLong:
		if r.readLong.offset == 0 {
			return e.transport.TxRead(r.Conn, r.CID, r.readLong.handle)
		}
		return e.transport.TxReadBlob(r.Conn, r.CID, r.readLong.handle, r.readLong.offset)
	case OpReadMultiple:
		return e.transport.TxReadMultiple(r.Conn, r.CID, r.readMultiple.handles, false)
	case OpReadMultipleVariable:
		return e.transport.TxReadMultiple(r.Conn, r.CID, r.readMultipleVar.handles, true)

	case OpWrite:
		return e.transport.TxWriteRequest(r.Conn, r.CID, r.write.handle, r.write.payload)
	case OpWriteLong:
		if r.writeLong.executing {
			return e.transport.TxExecuteWrite(r.Conn, r.CID, r.writeLong.cancelReason == nil)
		}
		return e.prepareFragment(r.Conn, r.CID, &r.writeLong.attr)
	case OpReliableWrite:
		if r.reliableWrite.executing {
			return e.transport.TxExecuteWrite(r.Conn, r.CID, r.reliableWrite.cancelReason == nil)
		}
		return e.prepareFragment(r.Conn, r.CID, &r.reliableWrite.attrs[r.reliableWrite.curAttr])

	case OpIndicate:
		return e.transport.TxIndicate(r.Conn, r.CID, r.indicate.handle, r.indicate.payload)

	default:
		return TxFatal
	}
}
