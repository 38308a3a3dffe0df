package gattc

// invokeTerminal delivers the single terminal callback a record is owed,
// selecting the right typed callback by Op. It must be called with the
// record already detached from the table and never more than once per
// record.
func invokeTerminal(r *Record, err *Error) {
	switch r.Op {
	case OpMTU:
		if r.mtu.cb != nil {
			r.mtu.cb(r.Conn, 0, err)
		}
	case OpDiscAllServices, OpDiscServiceByUUID:
		if r.disc.svcCB != nil {
			r.disc.svcCB(r.Conn, nil, err)
		}
	case OpFindIncludedServices:
		if r.include.cb != nil {
			r.include.cb(r.Conn, nil, err)
		}
	case OpDiscAllCharacteristics, OpDiscCharacteristicsByUUID:
		if r.disc.charCB != nil {
			r.disc.charCB(r.Conn, nil, err)
		}
	case OpDiscAllDescriptors:
		if r.desc.cb != nil {
			r.desc.cb(r.Conn, nil, err)
		}
	case OpRead:
		if r.read.cb != nil {
			r.read.cb(r.Conn, r.read.handle, nil, err)
		}
	case OpReadByUUID:
		if r.readByUUID.cb != nil {
			r.readByUUID.cb(r.Conn, 0, nil, err)
		}
	case OpReadLong:
		if r.readLong.cb != nil {
			r.readLong.cb(r.Conn, r.readLong.handle, r.readLong.offset, nil, err)
		}
	case OpReadMultiple:
		if r.readMultiple.cb != nil {
			r.readMultiple.cb(r.Conn, nil, err)
		}
	case OpReadMultipleVariable:
		if r.readMultipleVar.cb != nil {
			r.readMultipleVar.cb(r.Conn, nil, err)
		}
	case OpWrite:
		if r.write.cb != nil {
			r.write.cb(r.Conn, r.write.handle, err)
		}
	case OpWriteLong:
		if r.writeLong.cb != nil {
			r.writeLong.cb(r.Conn, r.writeLong.attr.handle, err)
		}
	case OpReliableWrite:
		if r.reliableWrite.cb != nil {
			handle := uint16(0)
			if len(r.reliableWrite.attrs) > 0 {
				handle = r.reliableWrite.attrs[0].handle
			}
			r.reliableWrite.cb(r.Conn, handle, err)
		}
	case OpIndicate:
		if r.indicate.cb != nil {
			r.indicate.cb(r.Conn, r.indicate.handle, err)
		}
	}
}
