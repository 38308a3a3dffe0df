package gattc

import "github.com/user/gattc/gatt"

// Streaming callbacks deliver zero or more data calls (err == nil) followed
// by exactly one terminal call (err != nil, always either *Error{Kind:
// KindDone} on success or some other *Error on failure). Returning true from
// a data call aborts the procedure early, as if the peer had ended the
// stream; the terminal call still fires.

// MTUCallback reports the outcome of an MTU exchange. mtu is the
// negotiated (min of both sides) value on success.
type MTUCallback func(conn uint16, mtu uint16, err error)

// ServiceCallback streams discovered primary services.
type ServiceCallback func(conn uint16, svc *gatt.DiscoveredService, err error) bool

// IncludedServiceCallback streams included services found within a service.
type IncludedServiceCallback func(conn uint16, inc *gatt.DiscoveredService, err error) bool

// CharacteristicCallback streams discovered characteristics.
type CharacteristicCallback func(conn uint16, ch *gatt.DiscoveredCharacteristic, err error) bool

// DescriptorCallback streams discovered descriptors.
type DescriptorCallback func(conn uint16, d *gatt.DiscoveredDescriptor, err error) bool

// ReadCallback reports the outcome of a single Read.
type ReadCallback func(conn uint16, handle uint16, value []byte, err error)

// ReadByUUIDCallback streams (handle, value) pairs from a Read By Type scan.
type ReadByUUIDCallback func(conn uint16, handle uint16, value []byte, err error) bool

// ReadLongCallback streams successive chunks of a long read; offset is the
// position of value within the attribute.
type ReadLongCallback func(conn uint16, handle uint16, offset uint16, value []byte, err error) bool

// ReadMultipleCallback reports the single concatenated buffer from a
// fixed-format Read Multiple.
type ReadMultipleCallback func(conn uint16, value []byte, err error)

// ReadMultipleVariableCallback reports the per-handle buffers from a
// variable-length Read Multiple.
type ReadMultipleVariableCallback func(conn uint16, values [][]byte, err error)

// WriteCallback reports the outcome of a Write With Response, Write Long, or
// Reliable Write.
type WriteCallback func(conn uint16, handle uint16, err error)

// IndicateCallback reports the outcome of an Indicate, once the peer's
// confirmation (or error) arrives.
type IndicateCallback func(conn uint16, handle uint16, err error)
