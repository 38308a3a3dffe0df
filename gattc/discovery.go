package gattc

import (
	"encoding/binary"
	"fmt"

	"github.com/user/gattc/gatt"
)

// DiscAllServices discovers every primary service on conn by repeated Read
// By Group Type requests, advancing past the highest end handle seen on
// each page until the peer answers Attribute Not Found. A cache hit
// satisfies the whole call synchronously, without a record or a wire round
// trip.
func (e *Engine) DiscAllServices(conn uint16, cb ServiceCallback) {
	if gc := e.cacheLookup(); gc != nil {
		if services, ok := gc.SearchAllServices(conn); ok {
			deliverCachedServices(conn, services, cb)
			return
		}
	}

	r, cid, berr := e.beginProcedure(conn, OpDiscAllServices)
	if berr != nil {
		if cb != nil {
			cb(conn, nil, berr)
		}
		return
	}
	r.disc = &discState{prevHandle: 0x0000, endHandle: 0xFFFF, svcCB: cb}

	result := e.transport.TxReadByGroupType(conn, cid, Range{Start: 0x0001, End: 0xFFFF}, gatt.UUIDPrimaryService)
	if terminal := e.commitStart(r, result); terminal != nil {
		invokeTerminal(r, terminal)
		e.finish(r)
	}
}

// DiscServiceByUUID discovers primary services matching target by repeated
// Find By Type Value requests. The peer returns only (start, end) handle
// pairs; the UUID in each delivered service is target, already known.
func (e *Engine) DiscServiceByUUID(conn uint16, target gatt.UUID, cb ServiceCallback) {
	if gc := e.cacheLookup(); gc != nil {
		if services, ok := gc.SearchServiceByUUID(conn, target); ok {
			deliverCachedServices(conn, services, cb)
			return
		}
	}

	r, cid, berr := e.beginProcedure(conn, OpDiscServiceByUUID)
	if berr != nil {
		if cb != nil {
			cb(conn, nil, berr)
		}
		return
	}
	r.disc = &discState{prevHandle: 0x0000, endHandle: 0xFFFF, targetUUID: target, hasTarget: true, svcCB: cb}

	result := e.transport.TxFindByTypeValue(conn, cid, Range{Start: 0x0001, End: 0xFFFF}, gatt.UUIDPrimaryService, target.Bytes())
	if terminal := e.commitStart(r, result); terminal != nil {
		invokeTerminal(r, terminal)
		e.finish(r)
	}
}

func deliverCachedServices(conn uint16, services []gatt.DiscoveredService, cb ServiceCallback) {
	if cb == nil {
		return
	}
	for i := range services {
		if cb(conn, &services[i], nil) {
			break
		}
	}
	cb(conn, nil, errDone())
}

// rxReadByGroupType handles a Read By Group Type Response for
// disc-all-services.
func (e *Engine) rxReadByGroupType(conn, cid uint16, data []byte) {
	r := e.table.extractFirst(byConnCIDOp(conn, cid, OpDiscAllServices))
	if r == nil {
		return
	}

	services, err := gatt.ParseReadByGroupTypeResponse(data)
	if err != nil {
		e.terminateWithError(r, errBadDataWrap(r.disc.prevHandle, err, "read by group type response"))
		return
	}

	for i := range services {
		svc := &services[i]
		if svc.EndHandle <= r.disc.prevHandle {
			e.terminateWithError(r, errBadData(svc.StartHandle, "group end handle out of order"))
			return
		}
		r.disc.prevHandle = svc.EndHandle
		if r.disc.svcCB != nil && r.disc.svcCB(conn, svc, nil) {
			e.terminateWithError(r, errDone())
			return
		}
	}

	if r.disc.prevHandle >= 0xFFFF {
		e.terminateWithError(r, errDone())
		return
	}

	result := e.transport.TxReadByGroupType(conn, r.CID, Range{Start: r.disc.prevHandle + 1, End: 0xFFFF}, gatt.UUIDPrimaryService)
	if terminal, outcome := e.advance(r, result); terminal {
		e.terminateWithError(r, outcome)
	}
}

// rxFindByTypeValue handles a Find By Type Value Response for
// disc-service-by-uuid.
func (e *Engine) rxFindByTypeValue(conn, cid uint16, data []byte) {
	r := e.table.extractFirst(byConnCIDOp(conn, cid, OpDiscServiceByUUID))
	if r == nil {
		return
	}

	pairs, err := parseHandlesInformationList(data)
	if err != nil {
		e.terminateWithError(r, errBadDataWrap(r.disc.prevHandle, err, "find by type value response"))
		return
	}

	for _, p := range pairs {
		if p.end <= r.disc.prevHandle {
			e.terminateWithError(r, errBadData(p.start, "group end handle out of order"))
			return
		}
		r.disc.prevHandle = p.end
		svc := &gatt.DiscoveredService{UUID: r.disc.targetUUID.Bytes(), StartHandle: p.start, EndHandle: p.end}
		if r.disc.svcCB != nil && r.disc.svcCB(conn, svc, nil) {
			e.terminateWithError(r, errDone())
			return
		}
	}

	if r.disc.prevHandle >= 0xFFFF {
		e.terminateWithError(r, errDone())
		return
	}

	result := e.transport.TxFindByTypeValue(conn, r.CID, Range{Start: r.disc.prevHandle + 1, End: 0xFFFF}, gatt.UUIDPrimaryService, r.disc.targetUUID.Bytes())
	if terminal, outcome := e.advance(r, result); terminal {
		e.terminateWithError(r, outcome)
	}
}

type handleRange struct{ start, end uint16 }

// parseHandlesInformationList parses a Find By Type Value Response: a flat
// list of (Found Attribute Handle, Group End Handle) uint16 pairs.
func parseHandlesInformationList(data []byte) ([]handleRange, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("gatt: handles information list has %d trailing bytes", len(data)%4)
	}
	var out []handleRange
	for len(data) >= 4 {
		out = append(out, handleRange{
			start: binary.LittleEndian.Uint16(data[0:2]),
			end:   binary.LittleEndian.Uint16(data[2:4]),
		})
		data = data[4:]
	}
	return out, nil
}

// DiscAllCharacteristics discovers every characteristic declaration within
// [startHandle, endHandle] by repeated Read By Type requests.
func (e *Engine) DiscAllCharacteristics(conn uint16, startHandle, endHandle uint16, cb CharacteristicCallback) {
	e.startCharacteristicDiscovery(conn, OpDiscAllCharacteristics, startHandle, endHandle, gatt.UUID{}, false, cb)
}

// DiscCharacteristicsByUUID discovers characteristics within
// [startHandle, endHandle] matching target, scanning the same way as
// DiscAllCharacteristics but delivering only matching entries; handles that
// don't match still advance the scan position.
func (e *Engine) DiscCharacteristicsByUUID(conn uint16, startHandle, endHandle uint16, target gatt.UUID, cb CharacteristicCallback) {
	e.startCharacteristicDiscovery(conn, OpDiscCharacteristicsByUUID, startHandle, endHandle, target, true, cb)
}

func (e *Engine) startCharacteristicDiscovery(conn uint16, op Op, startHandle, endHandle uint16, target gatt.UUID, hasTarget bool, cb CharacteristicCallback) {
	if startHandle == 0 || startHandle > endHandle {
		if cb != nil {
			cb(conn, nil, errInvalidArgument("invalid handle range"))
		}
		return
	}

	if gc := e.cacheLookup(); gc != nil {
		var chars []gatt.DiscoveredCharacteristic
		var ok bool
		if hasTarget {
			chars, ok = gc.SearchCharacteristicsByUUID(conn, startHandle, endHandle, target)
		} else {
			chars, ok = gc.SearchAllCharacteristics(conn, startHandle, endHandle)
		}
		if ok {
			deliverCachedCharacteristics(conn, chars, cb)
			return
		}
	}

	r, cid, berr := e.beginProcedure(conn, op)
	if berr != nil {
		if cb != nil {
			cb(conn, nil, berr)
		}
		return
	}
	r.disc = &discState{prevHandle: startHandle - 1, endHandle: endHandle, targetUUID: target, hasTarget: hasTarget, charCB: cb}

	result := e.transport.TxReadByType(conn, cid, Range{Start: startHandle, End: endHandle}, gatt.UUIDCharacteristic)
	if terminal := e.commitStart(r, result); terminal != nil {
		invokeTerminal(r, terminal)
		e.finish(r)
	}
}

func deliverCachedCharacteristics(conn uint16, chars []gatt.DiscoveredCharacteristic, cb CharacteristicCallback) {
	if cb == nil {
		return
	}
	for i := range chars {
		if cb(conn, &chars[i], nil) {
			break
		}
	}
	cb(conn, nil, errDone())
}

// rxReadByType handles a Read By Type Response. The PDU is shared by three
// procedures; exactly one can be outstanding on (conn, cid) at a time since
// ATT permits only one in-flight request per bearer.
func (e *Engine) rxReadByType(conn, cid uint16, data []byte) {
	r := e.table.extractFirst(byConnCIDOps(conn, cid, OpDiscAllCharacteristics, OpDiscCharacteristicsByUUID, OpFindIncludedServices, OpReadByUUID))
	if r == nil {
		return
	}

	switch r.Op {
	case OpDiscAllCharacteristics, OpDiscCharacteristicsByUUID:
		e.onReadByTypeCharacteristics(r, data)
	case OpFindIncludedServices:
		e.onReadByTypeInclude(r, data)
	case OpReadByUUID:
		e.onReadByTypeValues(r, data)
	}
}

func (e *Engine) onReadByTypeCharacteristics(r *Record, data []byte) {
	conn, cid := r.Conn, r.CID
	chars, err := gatt.ParseReadByTypeResponse(data)
	if err != nil {
		e.terminateWithError(r, errBadDataWrap(r.disc.prevHandle, err, "read by type response"))
		return
	}

	for i := range chars {
		ch := &chars[i]
		if ch.DeclarationHandle <= r.disc.prevHandle {
			e.terminateWithError(r, errBadData(ch.DeclarationHandle, "characteristic handle out of order"))
			return
		}
		r.disc.prevHandle = ch.DeclarationHandle

		deliver := true
		if r.disc.hasTarget {
			chUUID, uerr := gatt.UUIDFromBytes(ch.UUID)
			deliver = uerr == nil && chUUID.Equal(r.disc.targetUUID)
		}
		if deliver && r.disc.charCB != nil && r.disc.charCB(conn, ch, nil) {
			e.terminateWithError(r, errDone())
			return
		}
	}

	if r.disc.prevHandle >= r.disc.endHandle {
		e.terminateWithError(r, errDone())
		return
	}

	result := e.transport.TxReadByType(conn, cid, Range{Start: r.disc.prevHandle + 1, End: r.disc.endHandle}, gatt.UUIDCharacteristic)
	if terminal, outcome := e.advance(r, result); terminal {
		e.terminateWithError(r, outcome)
	}
}

// rxErrDiscovery is the shared error-response handler for every discovery
// procedure (service, characteristic, descriptor, include-scan): Attribute
// Not Found is the peer's normal end-of-results signal, never a failure.
func (e *Engine) rxErrDiscovery(r *Record, code uint8, handle uint16) {
	if isEndOfStream(code) {
		e.terminateWithError(r, errDone())
		return
	}
	e.terminateWithError(r, errAtt(code, handle))
}

// DiscAllDescriptors discovers every descriptor within
// [startHandle, endHandle] by repeated Find Information requests.
func (e *Engine) DiscAllDescriptors(conn uint16, startHandle, endHandle uint16, cb DescriptorCallback) {
	if startHandle == 0 || startHandle > endHandle {
		if cb != nil {
			cb(conn, nil, errInvalidArgument("invalid handle range"))
		}
		return
	}

	if gc := e.cacheLookup(); gc != nil {
		if descs, ok := gc.SearchAllDescriptors(conn, startHandle); ok {
			deliverCachedDescriptors(conn, descs, cb)
			return
		}
	}

	r, cid, berr := e.beginProcedure(conn, OpDiscAllDescriptors)
	if berr != nil {
		if cb != nil {
			cb(conn, nil, berr)
		}
		return
	}
	r.desc = &descState{prevHandle: startHandle - 1, endHandle: endHandle, cb: cb}

	result := e.transport.TxFindInfo(conn, cid, Range{Start: startHandle, End: endHandle})
	if terminal := e.commitStart(r, result); terminal != nil {
		invokeTerminal(r, terminal)
		e.finish(r)
	}
}

func deliverCachedDescriptors(conn uint16, descs []gatt.DiscoveredDescriptor, cb DescriptorCallback) {
	if cb == nil {
		return
	}
	for i := range descs {
		if cb(conn, &descs[i], nil) {
			break
		}
	}
	cb(conn, nil, errDone())
}

// rxFindInfo handles a Find Information Response for disc-all-descriptors.
func (e *Engine) rxFindInfo(conn, cid uint16, data []byte) {
	r := e.table.extractFirst(byConnCIDOp(conn, cid, OpDiscAllDescriptors))
	if r == nil {
		return
	}

	descs, err := gatt.ParseFindInformationResponse(data)
	if err != nil {
		e.terminateWithError(r, errBadDataWrap(r.desc.prevHandle, err, "find information response"))
		return
	}

	for i := range descs {
		d := &descs[i]
		if d.Handle <= r.desc.prevHandle {
			e.terminateWithError(r, errBadData(d.Handle, "descriptor handle out of order"))
			return
		}
		r.desc.prevHandle = d.Handle
		if r.desc.cb != nil && r.desc.cb(conn, d, nil) {
			e.terminateWithError(r, errDone())
			return
		}
	}

	if r.desc.prevHandle >= r.desc.endHandle {
		e.terminateWithError(r, errDone())
		return
	}

	result := e.transport.TxFindInfo(conn, cid, Range{Start: r.desc.prevHandle + 1, End: r.desc.endHandle})
	if terminal, outcome := e.advance(r, result); terminal {
		e.terminateWithError(r, outcome)
	}
}

// FindIncludedServices discovers the services included by the service
// spanning [startHandle, endHandle]. The scan stage reads Include
// declarations with Read By Type; any declaration whose included service
// has a 128-bit UUID omits the UUID and requires a follow-up Read of that
// service's declaration handle to resolve it.
func (e *Engine) FindIncludedServices(conn uint16, startHandle, endHandle uint16, cb IncludedServiceCallback) {
	if startHandle == 0 || startHandle > endHandle {
		if cb != nil {
			cb(conn, nil, errInvalidArgument("invalid handle range"))
		}
		return
	}

	if gc := e.cacheLookup(); gc != nil {
		if inc, ok := gc.SearchIncludedServices(conn, startHandle, endHandle); ok {
			deliverCachedIncludes(conn, inc, cb)
			return
		}
	}

	r, cid, berr := e.beginProcedure(conn, OpFindIncludedServices)
	if berr != nil {
		if cb != nil {
			cb(conn, nil, berr)
		}
		return
	}
	r.include = &includeState{prevHandle: startHandle - 1, endHandle: endHandle, cb: cb}

	result := e.transport.TxReadByType(conn, cid, Range{Start: startHandle, End: endHandle}, gatt.UUIDInclude)
	if terminal := e.commitStart(r, result); terminal != nil {
		invokeTerminal(r, terminal)
		e.finish(r)
	}
}

func deliverCachedIncludes(conn uint16, inc []gatt.DiscoveredService, cb IncludedServiceCallback) {
	if cb == nil {
		return
	}
	for i := range inc {
		if cb(conn, &inc[i], nil) {
			break
		}
	}
	cb(conn, nil, errDone())
}

func (e *Engine) onReadByTypeInclude(r *Record, data []byte) {
	entries, err := gatt.ParseAttributeDataList(data)
	if err != nil {
		e.terminateWithError(r, errBadDataWrap(r.include.prevHandle, err, "read by type response (include)"))
		return
	}
	r.include.pending = entries
	e.processIncludeBatch(r)
}

// processIncludeBatch drains the current scan batch one entry at a time,
// since a 128-bit included service requires a Read round trip before the
// next entry in the same batch can be delivered.
func (e *Engine) processIncludeBatch(r *Record) {
	conn, cid := r.Conn, r.CID

	for len(r.include.pending) > 0 {
		entry := r.include.pending[0]
		r.include.pending = r.include.pending[1:]

		if entry.Handle <= r.include.prevHandle {
			e.terminateWithError(r, errBadData(entry.Handle, "include handle out of order"))
			return
		}
		r.include.prevHandle = entry.Handle

		switch len(entry.Value) {
		case 4:
			r.include.curStart = binary.LittleEndian.Uint16(entry.Value[0:2])
			r.include.curEnd = binary.LittleEndian.Uint16(entry.Value[2:4])
			result := e.transport.TxRead(conn, cid, r.include.curStart)
			if terminal, outcome := e.advance(r, result); terminal {
				e.terminateWithError(r, outcome)
			}
			return
		case 6:
			start := binary.LittleEndian.Uint16(entry.Value[0:2])
			end := binary.LittleEndian.Uint16(entry.Value[2:4])
			uuid16 := binary.LittleEndian.Uint16(entry.Value[4:6])
			svc := &gatt.DiscoveredService{UUID: gatt.NewUUID16(uuid16).Bytes(), StartHandle: start, EndHandle: end}
			if r.include.cb != nil && r.include.cb(conn, svc, nil) {
				e.terminateWithError(r, errDone())
				return
			}
		default:
			e.terminateWithError(r, errBadData(entry.Handle, "malformed include declaration"))
			return
		}
	}

	if r.include.prevHandle >= r.include.endHandle {
		e.terminateWithError(r, errDone())
		return
	}

	result := e.transport.TxReadByType(conn, cid, Range{Start: r.include.prevHandle + 1, End: r.include.endHandle}, gatt.UUIDInclude)
	if terminal, outcome := e.advance(r, result); terminal {
		e.terminateWithError(r, outcome)
	}
}

// rxReadInclude handles the Read Response resolving a 128-bit included
// service's UUID, the second stage of find-included-services.
func (e *Engine) rxReadInclude(r *Record, value []byte) {
	if len(value) != 16 {
		e.terminateWithError(r, errBadData(r.include.curStart, "included service declaration's 128-bit UUID resolve read returned a value that is not 16 bytes"))
		return
	}
	svc := &gatt.DiscoveredService{UUID: append([]byte{}, value...), StartHandle: r.include.curStart, EndHandle: r.include.curEnd}
	r.include.curStart, r.include.curEnd = 0, 0
	if r.include.cb != nil && r.include.cb(r.Conn, svc, nil) {
		e.terminateWithError(r, errDone())
		return
	}
	e.processIncludeBatch(r)
}
